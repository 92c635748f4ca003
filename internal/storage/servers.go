package storage

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/peternagy/mongobrowse/internal/core"
	"github.com/peternagy/mongobrowse/internal/debug"
	"github.com/peternagy/mongobrowse/internal/types"
)

// SecretStore keeps the secrets of a configuration outside the JSON files.
type SecretStore interface {
	LoadSecrets(configID string) (types.Secrets, error)
	SaveSecrets(configID string, secrets types.Secrets) error
	DeleteSecrets(configID string) error
}

// ServerService handles server configuration storage operations.
type ServerService struct {
	storage *Service
	secrets SecretStore
	servers []types.ServerConfiguration
	mu      sync.RWMutex
	now     func() time.Time
}

// NewServerService creates a server service and loads the saved configurations.
func NewServerService(storage *Service, secrets SecretStore) (*ServerService, error) {
	servers, err := storage.LoadServers()
	if err != nil {
		return nil, fmt.Errorf("failed to load server configurations: %w", err)
	}
	return &ServerService{storage: storage, secrets: secrets, servers: servers, now: time.Now}, nil
}

// List returns all saved configurations in the order they were added.
func (s *ServerService) List() []types.ServerConfiguration {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]types.ServerConfiguration, len(s.servers))
	copy(result, s.servers)
	return result
}

// Get returns the configuration with the given ID.
func (s *ServerService) Get(id string) (types.ServerConfiguration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if i := s.indexOf(id); i >= 0 {
		return s.servers[i], nil
	}
	return types.ServerConfiguration{}, &core.ConfigurationNotFoundError{ID: id}
}

// Find returns the configuration whose ID or label is ref. IDs take precedence.
func (s *ServerService) Find(ref string) (types.ServerConfiguration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if i := s.indexOf(ref); i >= 0 {
		return s.servers[i], nil
	}
	for _, c := range s.servers {
		if c.Label == ref {
			return c, nil
		}
	}
	return types.ServerConfiguration{}, &core.ConfigurationNotFoundError{ID: ref}
}

// indexOf must be called with mu held.
func (s *ServerService) indexOf(id string) int {
	for i, c := range s.servers {
		if c.ID == id {
			return i
		}
	}
	return -1
}

// Save creates or updates a configuration and stores its secrets. The
// configuration is validated first. A new configuration gets an ID and a
// creation time; an update keeps the stored timestamps, and empty secrets
// keep the stored ones.
func (s *ServerService) Save(cfg types.ServerConfiguration, secrets types.Secrets) (types.ServerConfiguration, error) {
	if _, err := cfg.Target(secrets); err != nil {
		return types.ServerConfiguration{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if cfg.ID == "" {
		cfg.ID = uuid.New().String()
	}
	i := s.indexOf(cfg.ID)
	if i >= 0 {
		cfg.CreatedAt = s.servers[i].CreatedAt
		cfg.LastAccessedAt = s.servers[i].LastAccessedAt
	} else if cfg.CreatedAt.IsZero() {
		cfg.CreatedAt = s.now()
	}

	if err := s.secrets.SaveSecrets(cfg.ID, secrets); err != nil {
		return types.ServerConfiguration{}, err
	}

	updated := make([]types.ServerConfiguration, len(s.servers))
	copy(updated, s.servers)
	if i >= 0 {
		updated[i] = cfg
	} else {
		updated = append(updated, cfg)
	}
	if err := s.storage.PersistServers(updated); err != nil {
		return types.ServerConfiguration{}, fmt.Errorf("failed to save server configuration: %w", err)
	}
	s.servers = updated

	debug.LogStorage("Server configuration saved", map[string]interface{}{
		"id":    cfg.ID,
		"label": cfg.Label,
		"new":   i < 0,
	})
	return cfg, nil
}

// Delete removes a configuration and its secrets.
func (s *ServerService) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return &core.ConfigurationNotFoundError{ID: id}
	}

	updated := make([]types.ServerConfiguration, 0, len(s.servers)-1)
	updated = append(updated, s.servers[:i]...)
	updated = append(updated, s.servers[i+1:]...)
	if err := s.storage.PersistServers(updated); err != nil {
		return fmt.Errorf("failed to delete server configuration: %w", err)
	}
	s.servers = updated

	if err := s.secrets.DeleteSecrets(id); err != nil {
		return err
	}
	debug.LogStorage("Server configuration deleted", map[string]interface{}{"id": id})
	return nil
}

// UpdateLastAccessed records that a configuration was just used.
func (s *ServerService) UpdateLastAccessed(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return &core.ConfigurationNotFoundError{ID: id}
	}
	s.servers[i].LastAccessedAt = s.now()
	return s.storage.PersistServers(s.servers)
}

// Target resolves a saved configuration and its secrets into a ServerTarget.
func (s *ServerService) Target(id string) (types.ServerTarget, error) {
	cfg, err := s.Get(id)
	if err != nil {
		return types.ServerTarget{}, err
	}
	secrets, err := s.secrets.LoadSecrets(id)
	if err != nil {
		return types.ServerTarget{}, err
	}
	return cfg.Target(secrets)
}
