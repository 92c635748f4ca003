// Package database handles MongoDB database and collection operations.
package database

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/peternagy/mongobrowse/internal/connection"
	"github.com/peternagy/mongobrowse/internal/core"
	"github.com/peternagy/mongobrowse/internal/debug"
	"github.com/peternagy/mongobrowse/internal/stats"
	"github.com/peternagy/mongobrowse/internal/types"
)

// Service handles database operations. Every call opens its own connection.
type Service struct {
	exec    *connection.Executor
	timeout time.Duration
}

// NewService creates a new database service.
func NewService(exec *connection.Executor) *Service {
	return &Service{exec: exec, timeout: core.DefaultQueryTimeout}
}

// SetTimeout bounds each operation; 0 leaves only the caller's deadline.
func (s *Service) SetTimeout(d time.Duration) {
	s.timeout = d
}

// LoadDatabases lists databases and their collections. A target restricted
// to one user database never enumerates the others, since restricted
// accounts are not allowed to.
func (s *Service) LoadDatabases(ctx context.Context, target types.ServerTarget) ([]types.Database, error) {
	if target.UserDatabase != "" {
		if err := ValidateDatabaseName(target.UserDatabase); err != nil {
			return nil, err
		}
	}

	ctx, cancel := core.WithTimeout(ctx, s.timeout)
	defer cancel()

	return connection.Execute(ctx, s.exec, target, func(ctx context.Context, c connection.Client) ([]types.Database, error) {
		var names []string
		if target.UserDatabase != "" {
			names = []string{target.UserDatabase}
		} else {
			all, err := c.ListDatabaseNames(ctx)
			if err != nil {
				return nil, fmt.Errorf("failed to list databases: %w", err)
			}
			names = all
			sort.Strings(names)
		}

		databases := make([]types.Database, 0, len(names))
		for _, name := range names {
			colls, err := c.ListCollectionNames(ctx, name)
			if err != nil {
				return nil, fmt.Errorf("failed to list collections of %s: %w", name, err)
			}
			sort.Strings(colls)

			db := types.Database{Name: name, Collections: make([]types.Collection, 0, len(colls))}
			for _, coll := range colls {
				if target.Ignores(coll) {
					continue
				}
				db.Collections = append(db.Collections, types.Collection{Name: coll, Database: name})
			}
			databases = append(databases, db)
		}

		debug.LogConnection("Databases loaded", map[string]interface{}{
			"target":     target.Label,
			"databases":  len(databases),
			"restricted": target.UserDatabase != "",
		})
		return databases, nil
	})
}

// DropCollection drops a collection. It cannot be undone.
func (s *Service) DropCollection(ctx context.Context, target types.ServerTarget, ns types.Namespace) error {
	if err := ValidateNamespace(ns); err != nil {
		return err
	}

	ctx, cancel := core.WithTimeout(ctx, s.timeout)
	defer cancel()

	return connection.Run(ctx, s.exec, target, func(ctx context.Context, c connection.Client) error {
		if err := c.DropCollection(ctx, ns); err != nil {
			return fmt.Errorf("failed to drop collection: %w", err)
		}
		debug.LogConnection("Collection dropped", map[string]interface{}{"namespace": ns.String()})
		return nil
	})
}

// DropDatabase drops an entire database. It cannot be undone.
func (s *Service) DropDatabase(ctx context.Context, target types.ServerTarget, dbName string) error {
	if err := ValidateDatabaseName(dbName); err != nil {
		return err
	}

	ctx, cancel := core.WithTimeout(ctx, s.timeout)
	defer cancel()

	return connection.Run(ctx, s.exec, target, func(ctx context.Context, c connection.Client) error {
		if err := c.DropDatabase(ctx, dbName); err != nil {
			return fmt.Errorf("failed to drop database: %w", err)
		}
		debug.LogConnection("Database dropped", map[string]interface{}{"database": dbName})
		return nil
	})
}

// CollectionStats runs collStats and adapts the reply into report rows.
func (s *Service) CollectionStats(ctx context.Context, target types.ServerTarget, ns types.Namespace) ([]stats.Row, error) {
	if err := ValidateNamespace(ns); err != nil {
		return nil, err
	}
	raw, err := s.runCommand(ctx, target, ns.Database, bson.D{{Key: "collStats", Value: ns.Collection}})
	if err != nil {
		return nil, err
	}
	debug.LogStats("Collection stats fetched", map[string]interface{}{"namespace": ns.String()})
	return stats.AdaptCollectionStats(raw), nil
}

// DatabaseStats runs dbStats and adapts the reply into report rows.
func (s *Service) DatabaseStats(ctx context.Context, target types.ServerTarget, dbName string) ([]stats.Row, error) {
	if err := ValidateDatabaseName(dbName); err != nil {
		return nil, err
	}
	raw, err := s.runCommand(ctx, target, dbName, bson.D{{Key: "dbStats", Value: 1}})
	if err != nil {
		return nil, err
	}
	debug.LogStats("Database stats fetched", map[string]interface{}{"database": dbName})
	return stats.AdaptDatabaseStats(raw), nil
}

func (s *Service) runCommand(ctx context.Context, target types.ServerTarget, dbName string, cmd bson.D) (bson.D, error) {
	ctx, cancel := core.WithTimeout(ctx, s.timeout)
	defer cancel()

	return connection.Execute(ctx, s.exec, target, func(ctx context.Context, c connection.Client) (bson.D, error) {
		reply, err := c.RunCommand(ctx, dbName, cmd)
		if err != nil {
			return nil, fmt.Errorf("failed to run %s: %w", cmd[0].Key, err)
		}
		return reply, nil
	})
}
