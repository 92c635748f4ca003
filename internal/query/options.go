// Package query holds the options of a find or aggregate request and the
// parsing of the user's query text.
package query

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/peternagy/mongobrowse/internal/core"
)

// Names used in QuerySyntaxError.Field.
const (
	FieldFilter      = "filter"
	FieldProjection  = "projection"
	FieldSort        = "sort"
	FieldAggregation = "aggregation"
)

// Options describes one request. It is an aggregate request iff it has at
// least one stage; filter, projection and sort are ignored in that case.
type Options struct {
	filter      bson.D
	projection  bson.D
	sort        bson.D
	resultLimit int
	stages      []bson.D
}

// NewOptions returns options for an unfiltered, unlimited find.
func NewOptions() *Options {
	return &Options{filter: bson.D{}, projection: bson.D{}, sort: bson.D{}}
}

// SetFilter parses and stores the filter text.
func (o *Options) SetFilter(text string) error {
	doc, err := ParseDocument(FieldFilter, text)
	if err != nil {
		return err
	}
	o.filter = doc
	return nil
}

// SetProjection parses and stores the projection text.
func (o *Options) SetProjection(text string) error {
	doc, err := ParseDocument(FieldProjection, text)
	if err != nil {
		return err
	}
	o.projection = doc
	return nil
}

// SetSort parses and stores the sort text.
func (o *Options) SetSort(text string) error {
	doc, err := ParseDocument(FieldSort, text)
	if err != nil {
		return err
	}
	o.sort = doc
	return nil
}

// SetAggregationStages parses text as an array of stage documents.
// Clearing the text turns the request back into a find.
func (o *Options) SetAggregationStages(text string) error {
	stages, err := ParsePipeline(text)
	if err != nil {
		return err
	}
	o.stages = stages
	return nil
}

// SetResultLimit sets the maximum number of documents returned; 0 means no limit.
func (o *Options) SetResultLimit(limit int) error {
	if limit < 0 {
		return &core.ConfigurationError{Field: "resultLimit", Reason: fmt.Sprintf("must not be negative, got %d", limit)}
	}
	o.resultLimit = limit
	return nil
}

// WithFilter replaces the filter with an already parsed document.
func (o *Options) WithFilter(filter bson.D) *Options {
	o.filter = nonNil(filter)
	return o
}

// WithProjection replaces the projection with an already parsed document.
func (o *Options) WithProjection(projection bson.D) *Options {
	o.projection = nonNil(projection)
	return o
}

// WithSort replaces the sort with an already parsed document.
func (o *Options) WithSort(sort bson.D) *Options {
	o.sort = nonNil(sort)
	return o
}

// WithStages replaces the aggregation stages.
func (o *Options) WithStages(stages ...bson.D) *Options {
	o.stages = stages
	return o
}

func nonNil(d bson.D) bson.D {
	if d == nil {
		return bson.D{}
	}
	return d
}

func (o *Options) Filter() bson.D     { return o.filter }
func (o *Options) Projection() bson.D { return o.projection }
func (o *Options) Sort() bson.D       { return o.sort }
func (o *Options) ResultLimit() int   { return o.resultLimit }

// Stages returns the aggregation pipeline.
func (o *Options) Stages() []bson.D { return o.stages }

// IsAggregate reports whether the request runs as an aggregation.
func (o *Options) IsAggregate() bool {
	return len(o.stages) > 0
}
