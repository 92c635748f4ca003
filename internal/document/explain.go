package document

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/peternagy/mongobrowse/internal/bsonutil"
	"github.com/peternagy/mongobrowse/internal/connection"
	"github.com/peternagy/mongobrowse/internal/core"
	"github.com/peternagy/mongobrowse/internal/database"
	"github.com/peternagy/mongobrowse/internal/query"
	"github.com/peternagy/mongobrowse/internal/types"
)

// Explain asks the server how it would run opts, with executionStats
// verbosity. Aggregations are explained as a whole pipeline.
func (s *Service) Explain(ctx context.Context, target types.ServerTarget, ns types.Namespace, opts *query.Options) (*types.ExplainResult, error) {
	if err := database.ValidateNamespace(ns); err != nil {
		return nil, err
	}

	ctx, cancel := core.WithTimeout(ctx, s.timeout)
	defer cancel()

	cmd := bson.D{
		{Key: "explain", Value: explainedCommand(ns, opts)},
		{Key: "verbosity", Value: "executionStats"},
	}
	raw, err := connection.Execute(ctx, s.exec, target, func(ctx context.Context, c connection.Client) (bson.D, error) {
		reply, err := c.RunCommand(ctx, ns.Database, cmd)
		if err != nil {
			return nil, fmt.Errorf("failed to run explain: %w", err)
		}
		return reply, nil
	})
	if err != nil {
		return nil, err
	}
	return summarizeExplain(raw), nil
}

func explainedCommand(ns types.Namespace, opts *query.Options) bson.D {
	if opts.IsAggregate() {
		pipeline := make(bson.A, 0, len(opts.Stages()))
		for _, stage := range opts.Stages() {
			pipeline = append(pipeline, stage)
		}
		return bson.D{
			{Key: "aggregate", Value: ns.Collection},
			{Key: "pipeline", Value: pipeline},
			{Key: "cursor", Value: bson.D{}},
		}
	}

	find := bson.D{{Key: "find", Value: ns.Collection}, {Key: "filter", Value: opts.Filter()}}
	if len(opts.Projection()) > 0 {
		find = append(find, bson.E{Key: "projection", Value: opts.Projection()})
	}
	if len(opts.Sort()) > 0 {
		find = append(find, bson.E{Key: "sort", Value: opts.Sort()})
	}
	if opts.ResultLimit() > 0 {
		find = append(find, bson.E{Key: "limit", Value: int64(opts.ResultLimit())})
	}
	return find
}

func summarizeExplain(raw bson.D) *types.ExplainResult {
	result := &types.ExplainResult{Raw: raw}

	if planner, ok := bsonutil.DocFromDoc(raw, "queryPlanner"); ok {
		if ns, ok := bsonutil.Lookup(planner, "namespace"); ok {
			result.Namespace = bsonutil.ToString(ns)
		}
		if rejected, ok := bsonutil.Lookup(planner, "rejectedPlans"); ok {
			if plans, ok := rejected.(bson.A); ok {
				result.RejectedPlans = len(plans)
			}
		}
		if plan, ok := bsonutil.DocFromDoc(planner, "winningPlan"); ok {
			// Newer servers nest the classic plan under queryPlan.
			if inner, ok := bsonutil.DocFromDoc(plan, "queryPlan"); ok {
				plan = inner
			}
			result.WinningPlan = planSummary(plan)
			result.WinningPlanStage = stageOf(plan)
			result.IndexUsed = indexName(plan)
			result.IsCollectionScan = isCollectionScan(plan)
		}
	}

	if exec, ok := bsonutil.DocFromDoc(raw, "executionStats"); ok {
		result.NReturned = bsonutil.Int64FromDoc(exec, "nReturned")
		result.ExecutionTimeMs = bsonutil.Int64FromDoc(exec, "executionTimeMillis")
		result.TotalKeysExamined = bsonutil.Int64FromDoc(exec, "totalKeysExamined")
		result.TotalDocsExamined = bsonutil.Int64FromDoc(exec, "totalDocsExamined")
	}
	return result
}

var stageLabels = map[string]string{
	"FETCH":              "Fetch",
	"SORT":               "Sort",
	"LIMIT":              "Limit",
	"SKIP":               "Skip",
	"PROJECTION_COVERED": "Covered Projection",
	"PROJECTION_SIMPLE":  "Projection",
	"PROJECTION_DEFAULT": "Projection",
}

// planSummary renders a plan as a chain of stages from the top down.
func planSummary(plan bson.D) string {
	stage := stageOf(plan)
	switch stage {
	case "COLLSCAN":
		return "Collection Scan (no index used)"
	case "IXSCAN":
		name, _ := bsonutil.Lookup(plan, "indexName")
		return fmt.Sprintf("Index Scan using '%s'", bsonutil.ToString(name))
	case "IDHACK", "EXPRESS_IXSCAN":
		return "ID Lookup (fast path)"
	}

	label, known := stageLabels[stage]
	if !known {
		if stage == "" {
			return "Unknown"
		}
		label = stage
	}
	if input, ok := bsonutil.DocFromDoc(plan, "inputStage"); ok {
		return label + " -> " + planSummary(input)
	}
	return label
}

func stageOf(plan bson.D) string {
	stage, _ := bsonutil.Lookup(plan, "stage")
	return bsonutil.ToString(stage)
}

func indexName(plan bson.D) string {
	if stageOf(plan) == "IXSCAN" {
		name, _ := bsonutil.Lookup(plan, "indexName")
		return bsonutil.ToString(name)
	}
	if input, ok := bsonutil.DocFromDoc(plan, "inputStage"); ok {
		return indexName(input)
	}
	return ""
}

func isCollectionScan(plan bson.D) bool {
	if stageOf(plan) == "COLLSCAN" {
		return true
	}
	if input, ok := bsonutil.DocFromDoc(plan, "inputStage"); ok {
		return isCollectionScan(input)
	}
	return false
}
