package app

import (
	"context"

	"github.com/peternagy/mongobrowse/internal/pagination"
	"github.com/peternagy/mongobrowse/internal/query"
	"github.com/peternagy/mongobrowse/internal/schema"
	"github.com/peternagy/mongobrowse/internal/types"
)

// DefaultLimit asks for the server's configured default row limit.
const DefaultLimit = -1

// QueryRequest is a query as the user typed it.
type QueryRequest struct {
	Filter     string
	Projection string
	Sort       string
	Pipeline   string
	// Limit caps the result; 0 means unlimited and DefaultLimit means the
	// server's default row limit.
	Limit int
}

// Options parses the request. defaultLimit replaces DefaultLimit.
func (r QueryRequest) Options(defaultLimit int) (*query.Options, error) {
	opts := query.NewOptions()
	if err := opts.SetFilter(r.Filter); err != nil {
		return nil, err
	}
	if err := opts.SetProjection(r.Projection); err != nil {
		return nil, err
	}
	if err := opts.SetSort(r.Sort); err != nil {
		return nil, err
	}
	if err := opts.SetAggregationStages(r.Pipeline); err != nil {
		return nil, err
	}
	limit := r.Limit
	if limit == DefaultLimit {
		limit = defaultLimit
	}
	if err := opts.SetResultLimit(limit); err != nil {
		return nil, err
	}
	return opts, nil
}

func requestOf(q types.SavedQuery) QueryRequest {
	return QueryRequest{
		Filter:     q.Filter,
		Projection: q.Projection,
		Sort:       q.Sort,
		Pipeline:   q.Pipeline,
		Limit:      q.ResultLimit,
	}
}

// Query runs a find, or an aggregation when the request has a pipeline.
func (a *App) Query(ctx context.Context, ref string, ns types.Namespace, req QueryRequest) (*types.CollectionResult, error) {
	target, err := a.Target(ref)
	if err != nil {
		return nil, err
	}
	opts, err := req.Options(target.DefaultRowLimit)
	if err != nil {
		return nil, err
	}
	return a.document.Query(ctx, target, ns, opts)
}

// Explain returns the plan the server would use for a request.
func (a *App) Explain(ctx context.Context, ref string, ns types.Namespace, req QueryRequest) (*types.ExplainResult, error) {
	target, err := a.Target(ref)
	if err != nil {
		return nil, err
	}
	opts, err := req.Options(target.DefaultRowLimit)
	if err != nil {
		return nil, err
	}
	return a.document.Explain(ctx, target, ns, opts)
}

// InferSchema samples up to sampleSize random documents of ns and reports
// the fields they contain. A non-positive size uses schema.DefaultSampleSize.
func (a *App) InferSchema(ctx context.Context, ref string, ns types.Namespace, sampleSize int) (*schema.Result, error) {
	result, err := a.Query(ctx, ref, ns, QueryRequest{Pipeline: schema.SampleStage(sampleSize)})
	if err != nil {
		return nil, err
	}
	return schema.Infer(ns, result.Documents), nil
}

// Page cuts one page out of a result. The returned pagination reflects the
// clamped page number and the total page count.
func Page[T any](items []T, size pagination.PageSize, page int) ([]T, *pagination.Pagination) {
	p := pagination.New()
	p.SetTotalItemCount(len(items))
	p.SetPageSize(size)
	if page > p.TotalPageNumber() {
		page = p.TotalPageNumber()
	}
	p.SetPageNumber(page)
	return pagination.Slice(p, items), p
}

// =============================================================================
// Saved queries
// =============================================================================

// SaveQuery stores a request under a name for a server. Saving an existing
// name replaces that query. The request is parsed first so broken text is
// never saved.
func (a *App) SaveQuery(ref, name string, ns types.Namespace, req QueryRequest) (types.SavedQuery, error) {
	cfg, err := a.servers.Find(ref)
	if err != nil {
		return types.SavedQuery{}, err
	}
	if _, err := req.Options(0); err != nil {
		return types.SavedQuery{}, err
	}

	saved := types.SavedQuery{
		Name:        name,
		ServerID:    cfg.ID,
		Database:    ns.Database,
		Collection:  ns.Collection,
		Filter:      req.Filter,
		Projection:  req.Projection,
		Sort:        req.Sort,
		Pipeline:    req.Pipeline,
		ResultLimit: req.Limit,
	}
	if existing, err := a.queries.FindQuery(cfg.ID, name); err == nil {
		saved.ID = existing.ID
	}
	return a.queries.SaveQuery(saved)
}

// ListQueries returns the saved queries of a server.
func (a *App) ListQueries(ref string) ([]types.SavedQuery, error) {
	cfg, err := a.servers.Find(ref)
	if err != nil {
		return nil, err
	}
	return a.queries.ListQueries(cfg.ID, "", ""), nil
}

// RunSavedQuery runs a saved query by ID or name.
func (a *App) RunSavedQuery(ctx context.Context, ref, name string) (*types.CollectionResult, error) {
	cfg, err := a.servers.Find(ref)
	if err != nil {
		return nil, err
	}
	saved, err := a.queries.FindQuery(cfg.ID, name)
	if err != nil {
		return nil, err
	}
	return a.Query(ctx, cfg.ID, saved.Namespace(), requestOf(saved))
}

// DeleteQuery removes a saved query by ID or name.
func (a *App) DeleteQuery(ref, name string) error {
	cfg, err := a.servers.Find(ref)
	if err != nil {
		return err
	}
	saved, err := a.queries.FindQuery(cfg.ID, name)
	if err != nil {
		return err
	}
	return a.queries.DeleteQuery(saved.ID)
}
