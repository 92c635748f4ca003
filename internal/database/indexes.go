package database

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/peternagy/mongobrowse/internal/bsonutil"
	"github.com/peternagy/mongobrowse/internal/connection"
	"github.com/peternagy/mongobrowse/internal/core"
	"github.com/peternagy/mongobrowse/internal/debug"
	"github.com/peternagy/mongobrowse/internal/types"
)

// ListIndexes returns the indexes of a collection with their sizes. Sizes
// come from collStats and are left at 0 when that command fails.
func (s *Service) ListIndexes(ctx context.Context, target types.ServerTarget, ns types.Namespace) ([]types.Index, error) {
	if err := ValidateNamespace(ns); err != nil {
		return nil, err
	}

	ctx, cancel := core.WithTimeout(ctx, s.timeout)
	defer cancel()

	return connection.Execute(ctx, s.exec, target, func(ctx context.Context, c connection.Client) ([]types.Index, error) {
		reply, err := c.RunCommand(ctx, ns.Database, bson.D{{Key: "listIndexes", Value: ns.Collection}})
		if err != nil {
			return nil, fmt.Errorf("failed to list indexes: %w", err)
		}

		sizes := bson.D{}
		if collStats, err := c.RunCommand(ctx, ns.Database, bson.D{{Key: "collStats", Value: ns.Collection}}); err == nil {
			if doc, ok := bsonutil.DocFromDoc(collStats, "indexSizes"); ok {
				sizes = doc
			}
		}

		indexes := []types.Index{}
		for _, indexDoc := range firstBatch(reply) {
			name := bsonutil.ToString(lookup(indexDoc, "name"))
			keys, _ := bsonutil.DocFromDoc(indexDoc, "key")
			indexes = append(indexes, types.Index{
				Name:   name,
				Keys:   keys,
				Unique: bsonutil.BoolFromDoc(indexDoc, "unique"),
				Sparse: bsonutil.BoolFromDoc(indexDoc, "sparse"),
				TTL:    bsonutil.Int64FromDoc(indexDoc, "expireAfterSeconds"),
				Size:   bsonutil.Int64FromDoc(sizes, name),
			})
		}
		return indexes, nil
	})
}

// CreateIndex creates an index on a collection and returns its name.
func (s *Service) CreateIndex(ctx context.Context, target types.ServerTarget, ns types.Namespace, keys bson.D, opts types.IndexOptions) (string, error) {
	if err := ValidateNamespace(ns); err != nil {
		return "", err
	}
	if len(keys) == 0 {
		return "", &core.ConfigurationError{Field: "index keys", Reason: "index keys cannot be empty"}
	}

	name := opts.Name
	if name == "" {
		name = defaultIndexName(keys)
	}
	indexDoc := bson.D{{Key: "key", Value: keys}, {Key: "name", Value: name}}
	if opts.Unique {
		indexDoc = append(indexDoc, bson.E{Key: "unique", Value: true})
	}
	if opts.Sparse {
		indexDoc = append(indexDoc, bson.E{Key: "sparse", Value: true})
	}
	if opts.ExpireAfterSeconds > 0 {
		indexDoc = append(indexDoc, bson.E{Key: "expireAfterSeconds", Value: opts.ExpireAfterSeconds})
	}

	cmd := bson.D{{Key: "createIndexes", Value: ns.Collection}, {Key: "indexes", Value: bson.A{indexDoc}}}
	if _, err := s.runCommand(ctx, target, ns.Database, cmd); err != nil {
		return "", err
	}
	debug.LogQuery("Index created", map[string]interface{}{"namespace": ns.String(), "index": name})
	return name, nil
}

// DropIndex drops an index from a collection. The _id index cannot be dropped.
func (s *Service) DropIndex(ctx context.Context, target types.ServerTarget, ns types.Namespace, indexName string) error {
	if err := ValidateNamespace(ns); err != nil {
		return err
	}
	if indexName == "" {
		return &core.ConfigurationError{Field: "index name", Reason: "index name cannot be empty"}
	}
	if indexName == "_id_" {
		return &core.ConfigurationError{Field: "index name", Reason: "cannot drop the default _id index"}
	}

	cmd := bson.D{{Key: "dropIndexes", Value: ns.Collection}, {Key: "index", Value: indexName}}
	_, err := s.runCommand(ctx, target, ns.Database, cmd)
	return err
}

// defaultIndexName builds the name the server would give an index: each key
// and its direction joined by underscores.
func defaultIndexName(keys bson.D) string {
	name := ""
	for i, k := range keys {
		if i > 0 {
			name += "_"
		}
		name += k.Key + "_" + bsonutil.ToString(k.Value)
	}
	return name
}

// firstBatch returns the documents of a command cursor reply.
func firstBatch(reply bson.D) []bson.D {
	cursor, ok := bsonutil.DocFromDoc(reply, "cursor")
	if !ok {
		return nil
	}
	batch, ok := lookup(cursor, "firstBatch").(bson.A)
	if !ok {
		return nil
	}
	docs := make([]bson.D, 0, len(batch))
	for _, item := range batch {
		if doc, ok := item.(bson.D); ok {
			docs = append(docs, doc)
		}
	}
	return docs
}

func lookup(doc bson.D, key string) interface{} {
	v, _ := bsonutil.Lookup(doc, key)
	return v
}
