// Package document handles MongoDB document queries and edits.
package document

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/peternagy/mongobrowse/internal/connection"
	"github.com/peternagy/mongobrowse/internal/core"
	"github.com/peternagy/mongobrowse/internal/database"
	"github.com/peternagy/mongobrowse/internal/debug"
	"github.com/peternagy/mongobrowse/internal/query"
	"github.com/peternagy/mongobrowse/internal/types"
)

// Service handles document operations. Every call opens its own connection.
type Service struct {
	exec    *connection.Executor
	timeout time.Duration
}

// NewService creates a new document service.
func NewService(exec *connection.Executor) *Service {
	return &Service{exec: exec, timeout: core.DefaultQueryTimeout}
}

// SetTimeout bounds each operation; 0 leaves only the caller's deadline.
func (s *Service) SetTimeout(d time.Duration) {
	s.timeout = d
}

// Query runs opts as an aggregation when it has stages and as a find otherwise.
func (s *Service) Query(ctx context.Context, target types.ServerTarget, ns types.Namespace, opts *query.Options) (*types.CollectionResult, error) {
	if opts.IsAggregate() {
		return s.Aggregate(ctx, target, ns, opts)
	}
	return s.FindDocuments(ctx, target, ns, opts)
}

// FindOptions builds driver find options. Projection and sort are only set
// when non-empty, and the limit only when positive: a zero limit means
// unlimited here and is never forwarded.
func FindOptions(opts *query.Options) *options.FindOptions {
	findOpts := options.Find()
	if len(opts.Projection()) > 0 {
		findOpts.SetProjection(opts.Projection())
	}
	if len(opts.Sort()) > 0 {
		findOpts.SetSort(opts.Sort())
	}
	if opts.ResultLimit() > 0 {
		findOpts.SetLimit(int64(opts.ResultLimit()))
	}
	return findOpts
}

// FindDocuments runs a find with the filter, projection, sort and limit of opts.
func (s *Service) FindDocuments(ctx context.Context, target types.ServerTarget, ns types.Namespace, opts *query.Options) (*types.CollectionResult, error) {
	if err := database.ValidateNamespace(ns); err != nil {
		return nil, err
	}

	ctx, cancel := core.WithTimeout(ctx, s.timeout)
	defer cancel()

	startTime := time.Now()
	docs, err := connection.Execute(ctx, s.exec, target, func(ctx context.Context, c connection.Client) ([]bson.D, error) {
		cursor, err := c.Find(ctx, ns, opts.Filter(), FindOptions(opts))
		if err != nil {
			return nil, fmt.Errorf("failed to find documents: %w", err)
		}
		return collect(ctx, cursor, 0)
	})
	if err != nil {
		return nil, err
	}

	result := &types.CollectionResult{Namespace: ns, Documents: docs, Elapsed: time.Since(startTime)}
	debug.LogQuery("Find completed", map[string]interface{}{
		"namespace": ns.String(),
		"documents": len(docs),
		"limit":     opts.ResultLimit(),
		"elapsedMs": result.Elapsed.Milliseconds(),
	})
	return result, nil
}

// Aggregate runs the pipeline of opts. The result limit truncates on the
// client; the server only limits when the pipeline has a $limit stage.
func (s *Service) Aggregate(ctx context.Context, target types.ServerTarget, ns types.Namespace, opts *query.Options) (*types.CollectionResult, error) {
	if err := database.ValidateNamespace(ns); err != nil {
		return nil, err
	}

	ctx, cancel := core.WithTimeout(ctx, s.timeout)
	defer cancel()

	startTime := time.Now()
	docs, err := connection.Execute(ctx, s.exec, target, func(ctx context.Context, c connection.Client) ([]bson.D, error) {
		cursor, err := c.Aggregate(ctx, ns, opts.Stages())
		if err != nil {
			return nil, fmt.Errorf("failed to run aggregation: %w", err)
		}
		return collect(ctx, cursor, opts.ResultLimit())
	})
	if err != nil {
		return nil, err
	}

	result := &types.CollectionResult{Namespace: ns, Documents: docs, Aggregate: true, Elapsed: time.Since(startTime)}
	debug.LogQuery("Aggregation completed", map[string]interface{}{
		"namespace": ns.String(),
		"stages":    len(opts.Stages()),
		"documents": len(docs),
		"elapsedMs": result.Elapsed.Milliseconds(),
	})
	return result, nil
}

// collect drains cursor, stopping after limit documents when limit > 0.
// The cursor is always closed.
func collect(ctx context.Context, cursor connection.Cursor, limit int) ([]bson.D, error) {
	defer cursor.Close(ctx)

	docs := []bson.D{}
	for (limit <= 0 || len(docs) < limit) && cursor.Next(ctx) {
		var doc bson.D
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode document: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}
	return docs, nil
}

// GetDocument returns the document with the given _id.
func (s *Service) GetDocument(ctx context.Context, target types.ServerTarget, ns types.Namespace, id interface{}) (bson.D, error) {
	if err := database.ValidateNamespace(ns); err != nil {
		return nil, err
	}

	ctx, cancel := core.WithTimeout(ctx, s.timeout)
	defer cancel()

	docs, err := connection.Execute(ctx, s.exec, target, func(ctx context.Context, c connection.Client) ([]bson.D, error) {
		cursor, err := c.Find(ctx, ns, bson.D{{Key: "_id", Value: id}}, options.Find().SetLimit(1))
		if err != nil {
			return nil, fmt.Errorf("failed to get document: %w", err)
		}
		return collect(ctx, cursor, 1)
	})
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, &core.DocumentNotFoundError{Namespace: ns.String(), ID: FormatDocumentID(id)}
	}
	return docs[0], nil
}

// Upsert saves doc. A document without _id is inserted; otherwise it
// replaces the document with the same _id, or is inserted if there is none.
// It returns the document's _id.
func (s *Service) Upsert(ctx context.Context, target types.ServerTarget, ns types.Namespace, doc bson.D) (interface{}, error) {
	if err := database.ValidateNamespace(ns); err != nil {
		return nil, err
	}

	ctx, cancel := core.WithTimeout(ctx, s.timeout)
	defer cancel()

	return connection.Execute(ctx, s.exec, target, func(ctx context.Context, c connection.Client) (interface{}, error) {
		id, ok := DocumentID(doc)
		if !ok {
			insertedID, err := c.InsertOne(ctx, ns, doc)
			if err != nil {
				return nil, fmt.Errorf("failed to insert document: %w", err)
			}
			debug.LogDocument("Document inserted", map[string]interface{}{
				"namespace": ns.String(),
				"id":        FormatDocumentID(insertedID),
			})
			return insertedID, nil
		}

		if err := c.ReplaceOneUpsert(ctx, ns, id, doc); err != nil {
			return nil, fmt.Errorf("failed to save document: %w", err)
		}
		debug.LogDocument("Document saved", map[string]interface{}{
			"namespace": ns.String(),
			"id":        FormatDocumentID(id),
		})
		return id, nil
	})
}

// Delete removes the document with the given _id.
func (s *Service) Delete(ctx context.Context, target types.ServerTarget, ns types.Namespace, id interface{}) error {
	if err := database.ValidateNamespace(ns); err != nil {
		return err
	}

	ctx, cancel := core.WithTimeout(ctx, s.timeout)
	defer cancel()

	deleted, err := connection.Execute(ctx, s.exec, target, func(ctx context.Context, c connection.Client) (int64, error) {
		n, err := c.DeleteOne(ctx, ns, id)
		if err != nil {
			return 0, fmt.Errorf("failed to delete document: %w", err)
		}
		return n, nil
	})
	if err != nil {
		return err
	}
	if deleted == 0 {
		return &core.DocumentNotFoundError{Namespace: ns.String(), ID: FormatDocumentID(id)}
	}
	debug.LogDocument("Document deleted", map[string]interface{}{
		"namespace": ns.String(),
		"id":        FormatDocumentID(id),
	})
	return nil
}
