package storage

import "github.com/peternagy/mongobrowse/internal/debug"

// ServerLifecycle orchestrates operations that span the server store and the
// data kept for each server.
type ServerLifecycle struct {
	servers *ServerService
	queries *QueryService
}

// NewServerLifecycle creates a new lifecycle manager.
func NewServerLifecycle(servers *ServerService, queries *QueryService) *ServerLifecycle {
	return &ServerLifecycle{servers: servers, queries: queries}
}

// DeleteServer deletes a server configuration and its saved queries. Failing
// to remove the queries does not undo the deletion; it is logged instead.
func (l *ServerLifecycle) DeleteServer(id string) error {
	if err := l.servers.Delete(id); err != nil {
		return err
	}
	if err := l.queries.DeleteQueriesForServer(id); err != nil {
		debug.LogStorage("Failed to remove saved queries", map[string]interface{}{
			"server": id,
			"error":  err.Error(),
		})
	}
	return nil
}
