// Package schema infers the field layout of a collection from sample documents.
package schema

import (
	"fmt"
	"sort"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/peternagy/mongobrowse/internal/types"
	"github.com/peternagy/mongobrowse/internal/value"
)

// DefaultSampleSize is used when no sample size is given.
const DefaultSampleSize = 100

// Field describes one field path seen in the samples. Nested document
// fields use dotted paths; fields of documents inside lists use "list[].key".
type Field struct {
	Path       string   `json:"path"`
	Types      []string `json:"types"`
	Count      int      `json:"count"`
	Occurrence float64  `json:"occurrence"` // percent of sampled documents
}

// Result is the inferred schema of a collection.
type Result struct {
	Namespace  types.Namespace `json:"namespace"`
	SampleSize int             `json:"sampleSize"`
	Fields     []Field         `json:"fields"`
}

// SampleStage returns the aggregation stage that draws n random documents.
func SampleStage(n int) string {
	if n <= 0 {
		n = DefaultSampleSize
	}
	return fmt.Sprintf(`[{"$sample": {"size": %d}}]`, n)
}

type fieldStats struct {
	count int
	types map[string]bool
}

// Infer analyzes docs. Fields are listed in order of first appearance.
func Infer(ns types.Namespace, docs []bson.D) *Result {
	var order []string
	seen := map[string]*fieldStats{}

	var visit func(prefix string, v value.Value)
	visit = func(prefix string, v value.Value) {
		for _, f := range v.Fields() {
			path := f.Key
			if prefix != "" {
				path = prefix + "." + f.Key
			}
			st, ok := seen[path]
			if !ok {
				st = &fieldStats{types: map[string]bool{}}
				seen[path] = st
				order = append(order, path)
			}
			st.count++
			st.types[TypeName(f.Value)] = true

			switch f.Value.Kind() {
			case value.KindDocument:
				visit(path, f.Value)
			case value.KindList:
				// Only the first element is inspected, so a list counts once.
				if items := f.Value.Items(); len(items) > 0 && items[0].Kind() == value.KindDocument {
					visit(path+"[]", items[0])
				}
			}
		}
	}
	for _, doc := range docs {
		visit("", value.FromDocument(doc))
	}

	result := &Result{Namespace: ns, SampleSize: len(docs), Fields: make([]Field, 0, len(order))}
	for _, path := range order {
		st := seen[path]
		names := make([]string, 0, len(st.types))
		for t := range st.types {
			names = append(names, t)
		}
		sort.Strings(names)
		result.Fields = append(result.Fields, Field{
			Path:       path,
			Types:      names,
			Count:      st.count,
			Occurrence: float64(st.count) / float64(len(docs)) * 100,
		})
	}
	return result
}

// TypeName names the BSON type of v. Lists carry the type of their first element.
func TypeName(v value.Value) string {
	if v.Kind() == value.KindList {
		items := v.Items()
		if len(items) == 0 {
			return "list"
		}
		return "list<" + TypeName(items[0]) + ">"
	}
	if v.IsOpaque() {
		switch v.Interface().(type) {
		case primitive.Decimal128:
			return "decimal128"
		case primitive.Timestamp:
			return "timestamp"
		case primitive.Regex:
			return "regex"
		case primitive.JavaScript, primitive.CodeWithScope:
			return "javascript"
		case primitive.MinKey:
			return "minKey"
		case primitive.MaxKey:
			return "maxKey"
		}
	}
	return v.Kind().String()
}

// Summary renders "path: type | type (n%)" lines.
func (r *Result) Summary() []string {
	lines := make([]string, len(r.Fields))
	for i, f := range r.Fields {
		lines[i] = fmt.Sprintf("%s: %s (%.0f%%)", f.Path, strings.Join(f.Types, " | "), f.Occurrence)
	}
	return lines
}
