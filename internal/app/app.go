// Package app is the facade a host (the CLI or a Wails window) drives. It
// resolves saved servers into targets and delegates to the core services.
package app

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/peternagy/mongobrowse/internal/connection"
	"github.com/peternagy/mongobrowse/internal/core"
	"github.com/peternagy/mongobrowse/internal/credential"
	"github.com/peternagy/mongobrowse/internal/database"
	"github.com/peternagy/mongobrowse/internal/debug"
	"github.com/peternagy/mongobrowse/internal/document"
	"github.com/peternagy/mongobrowse/internal/performance"
	"github.com/peternagy/mongobrowse/internal/stats"
	"github.com/peternagy/mongobrowse/internal/storage"
	"github.com/peternagy/mongobrowse/internal/types"
)

// Config selects where the app keeps its files and how it reaches servers.
type Config struct {
	// ConfigDir overrides $MONGOBROWSE_CONFIG_DIR and the user config dir.
	ConfigDir string
	// Emitter receives debug log events. Nil leaves debug logging off.
	Emitter core.EventEmitter
	// Executor runs operations; nil uses the MongoDB driver and SSH tunnels.
	Executor *connection.Executor
	// Secrets stores passwords; nil uses the OS keyring.
	Secrets storage.SecretStore
}

// App holds the services behind every host operation.
type App struct {
	storage   *storage.Service
	servers   *storage.ServerService
	queries   *storage.QueryService
	lifecycle *storage.ServerLifecycle
	exec      *connection.Executor
	perf      *performance.Service
	database  *database.Service
	document  *document.Service
}

// New creates an App and loads the saved servers and queries.
func New(cfg Config) (*App, error) {
	if cfg.Emitter != nil {
		debug.Init(cfg.Emitter)
		debug.SetEnabled(true)
	}

	configDir, err := storage.InitConfigDir(cfg.ConfigDir)
	if err != nil {
		return nil, err
	}
	storageSvc := storage.NewService(configDir)

	secrets := cfg.Secrets
	if secrets == nil {
		secrets = credential.NewService()
	}
	servers, err := storage.NewServerService(storageSvc, secrets)
	if err != nil {
		return nil, err
	}
	queries, err := storage.NewQueryService(storageSvc)
	if err != nil {
		return nil, err
	}

	exec := cfg.Executor
	if exec == nil {
		exec = connection.NewDefaultExecutor()
	}
	perf := performance.NewService()
	if prev := exec.OnTransition; prev != nil {
		exec.OnTransition = func(t connection.Transition) {
			prev(t)
			perf.Observe(t)
		}
	} else {
		exec.OnTransition = perf.Observe
	}

	return &App{
		storage:   storageSvc,
		servers:   servers,
		queries:   queries,
		lifecycle: storage.NewServerLifecycle(servers, queries),
		exec:      exec,
		perf:      perf,
		database:  database.NewService(exec),
		document:  document.NewService(exec),
	}, nil
}

// Startup is the Wails startup hook: debug events go to the window.
func (a *App) Startup(ctx context.Context) {
	debug.Init(&core.WailsEventEmitter{Ctx: ctx})
}

// Metrics returns runtime and executor call counters.
func (a *App) Metrics() *performance.Metrics {
	return a.perf.GetMetrics()
}

// ConfigDir returns the directory holding the saved configuration.
func (a *App) ConfigDir() string {
	return a.storage.ConfigDir()
}

// =============================================================================
// Servers
// =============================================================================

// ListServers returns the saved server configurations.
func (a *App) ListServers() []types.ServerConfiguration {
	return a.servers.List()
}

// GetServer returns the configuration whose ID or label is ref.
func (a *App) GetServer(ref string) (types.ServerConfiguration, error) {
	return a.servers.Find(ref)
}

// SaveServer validates and stores a configuration with its secrets.
func (a *App) SaveServer(cfg types.ServerConfiguration, secrets types.Secrets) (types.ServerConfiguration, error) {
	return a.servers.Save(cfg, secrets)
}

// ImportServerURI stores the server described by a MongoDB connection string.
func (a *App) ImportServerURI(label, uri string) (types.ServerConfiguration, error) {
	cfg, secrets, err := credential.ParseURI(uri)
	if err != nil {
		return types.ServerConfiguration{}, err
	}
	cfg.Label = label
	return a.servers.Save(cfg, secrets)
}

// ServerURI renders a saved server as a connection string, with the stored
// password only when includePassword is set.
func (a *App) ServerURI(ref string, includePassword bool) (string, error) {
	cfg, err := a.servers.Find(ref)
	if err != nil {
		return "", err
	}
	password := ""
	if includePassword {
		target, err := a.servers.Target(cfg.ID)
		if err != nil {
			return "", err
		}
		if target.Auth != nil {
			password = target.Auth.Password
		}
	}
	return credential.BuildURI(cfg, password), nil
}

// DeleteServer removes a server with its secrets and saved queries.
func (a *App) DeleteServer(ref string) error {
	cfg, err := a.servers.Find(ref)
	if err != nil {
		return err
	}
	return a.lifecycle.DeleteServer(cfg.ID)
}

// Target resolves ref into a target and records the access.
func (a *App) Target(ref string) (types.ServerTarget, error) {
	cfg, err := a.servers.Find(ref)
	if err != nil {
		return types.ServerTarget{}, err
	}
	target, err := a.servers.Target(cfg.ID)
	if err != nil {
		return types.ServerTarget{}, err
	}
	if err := a.servers.UpdateLastAccessed(cfg.ID); err != nil {
		debug.LogStorage("Failed to record server access", map[string]interface{}{
			"id":    cfg.ID,
			"error": err.Error(),
		})
	}
	return target, nil
}

// =============================================================================
// Databases and collections
// =============================================================================

// LoadDatabases lists the databases and collections of a server.
func (a *App) LoadDatabases(ctx context.Context, ref string) ([]types.Database, error) {
	target, err := a.Target(ref)
	if err != nil {
		return nil, err
	}
	return a.database.LoadDatabases(ctx, target)
}

// DropDatabase drops a database. There is no confirmation at this level.
func (a *App) DropDatabase(ctx context.Context, ref, dbName string) error {
	target, err := a.Target(ref)
	if err != nil {
		return err
	}
	return a.database.DropDatabase(ctx, target, dbName)
}

// DropCollection drops a collection. There is no confirmation at this level.
func (a *App) DropCollection(ctx context.Context, ref string, ns types.Namespace) error {
	target, err := a.Target(ref)
	if err != nil {
		return err
	}
	return a.database.DropCollection(ctx, target, ns)
}

// CollectionStats returns the report rows of a collection.
func (a *App) CollectionStats(ctx context.Context, ref string, ns types.Namespace) ([]stats.Row, error) {
	target, err := a.Target(ref)
	if err != nil {
		return nil, err
	}
	return a.database.CollectionStats(ctx, target, ns)
}

// DatabaseStats returns the report rows of a database.
func (a *App) DatabaseStats(ctx context.Context, ref, dbName string) ([]stats.Row, error) {
	target, err := a.Target(ref)
	if err != nil {
		return nil, err
	}
	return a.database.DatabaseStats(ctx, target, dbName)
}

// ListIndexes returns the indexes of a collection.
func (a *App) ListIndexes(ctx context.Context, ref string, ns types.Namespace) ([]types.Index, error) {
	target, err := a.Target(ref)
	if err != nil {
		return nil, err
	}
	return a.database.ListIndexes(ctx, target, ns)
}

// CreateIndex creates an index from key text such as {"name": 1}.
func (a *App) CreateIndex(ctx context.Context, ref string, ns types.Namespace, keysText string, opts types.IndexOptions) (string, error) {
	keys, err := parseDocument("index keys", keysText)
	if err != nil {
		return "", err
	}
	target, err := a.Target(ref)
	if err != nil {
		return "", err
	}
	return a.database.CreateIndex(ctx, target, ns, keys, opts)
}

// DropIndex drops an index by name.
func (a *App) DropIndex(ctx context.Context, ref string, ns types.Namespace, name string) error {
	target, err := a.Target(ref)
	if err != nil {
		return err
	}
	return a.database.DropIndex(ctx, target, ns, name)
}

// DocumentIDText renders a document id the way the host shows it.
func DocumentIDText(doc bson.D) string {
	id, ok := document.DocumentID(doc)
	if !ok {
		return ""
	}
	return document.FormatDocumentID(id)
}
