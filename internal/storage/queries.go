package storage

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/peternagy/mongobrowse/internal/debug"
	"github.com/peternagy/mongobrowse/internal/types"
)

// QueryNotFoundError reports a saved query reference that matched nothing.
type QueryNotFoundError struct {
	Ref string
}

func (e *QueryNotFoundError) Error() string {
	return fmt.Sprintf("saved query not found: %s", e.Ref)
}

// QueryService keeps named queries per server in saved_queries.json.
type QueryService struct {
	storage *Service
	queries []types.SavedQuery
	mu      sync.RWMutex
	now     func() time.Time
}

// NewQueryService creates a query service and loads the saved queries.
func NewQueryService(storage *Service) (*QueryService, error) {
	queries, err := storage.LoadQueries()
	if err != nil {
		return nil, fmt.Errorf("failed to load saved queries: %w", err)
	}
	return &QueryService{storage: storage, queries: queries, now: time.Now}, nil
}

// indexOf must be called with mu held.
func (s *QueryService) indexOf(id string) int {
	for i, q := range s.queries {
		if q.ID == id {
			return i
		}
	}
	return -1
}

// commit persists next and makes it current. Must be called with mu held.
func (s *QueryService) commit(next []types.SavedQuery) error {
	if err := s.storage.PersistQueries(next); err != nil {
		return err
	}
	s.queries = next
	return nil
}

// keep returns the queries for which fn is true, in stored order.
func (s *QueryService) keep(fn func(types.SavedQuery) bool) []types.SavedQuery {
	kept := []types.SavedQuery{}
	for _, q := range s.queries {
		if fn(q) {
			kept = append(kept, q)
		}
	}
	return kept
}

// SaveQuery stores q. Without an ID it is added; with one it replaces the
// stored query, keeping its creation time.
func (s *QueryService) SaveQuery(q types.SavedQuery) (types.SavedQuery, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := append([]types.SavedQuery{}, s.queries...)
	q.UpdatedAt = s.now()
	if q.ID == "" {
		q.ID = uuid.New().String()
		q.CreatedAt = q.UpdatedAt
		next = append(next, q)
	} else {
		i := s.indexOf(q.ID)
		if i < 0 {
			return types.SavedQuery{}, &QueryNotFoundError{Ref: q.ID}
		}
		q.CreatedAt = next[i].CreatedAt
		next[i] = q
	}

	if err := s.commit(next); err != nil {
		return types.SavedQuery{}, fmt.Errorf("failed to save query: %w", err)
	}
	debug.LogStorage("Query saved", map[string]interface{}{"id": q.ID, "name": q.Name})
	return q, nil
}

// GetQuery returns the saved query with the given ID.
func (s *QueryService) GetQuery(id string) (types.SavedQuery, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if i := s.indexOf(id); i >= 0 {
		return s.queries[i], nil
	}
	return types.SavedQuery{}, &QueryNotFoundError{Ref: id}
}

// FindQuery returns the query of a server whose ID or name is ref.
func (s *QueryService) FindQuery(serverID, ref string) (types.SavedQuery, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matches := s.keep(func(q types.SavedQuery) bool {
		return q.ServerID == serverID && (q.ID == ref || q.Name == ref)
	})
	if len(matches) == 0 {
		return types.SavedQuery{}, &QueryNotFoundError{Ref: ref}
	}
	return matches[0], nil
}

// ListQueries returns saved queries. Empty arguments match everything.
func (s *QueryService) ListQueries(serverID, database, collection string) []types.SavedQuery {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.keep(func(q types.SavedQuery) bool {
		return (serverID == "" || q.ServerID == serverID) &&
			(database == "" || q.Database == database) &&
			(collection == "" || q.Collection == collection)
	})
}

// DeleteQuery removes the saved query with the given ID.
func (s *QueryService) DeleteQuery(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.indexOf(id) < 0 {
		return &QueryNotFoundError{Ref: id}
	}
	return s.commit(s.keep(func(q types.SavedQuery) bool { return q.ID != id }))
}

// DeleteQueriesForServer removes every saved query of a server.
func (s *QueryService) DeleteQueriesForServer(serverID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.keep(func(q types.SavedQuery) bool { return q.ServerID != serverID })
	if len(kept) == len(s.queries) {
		return nil
	}
	return s.commit(kept)
}
