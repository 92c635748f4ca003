// Package storage handles configuration file I/O operations.
package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/peternagy/mongobrowse/internal/types"
)

// ConfigDirEnv overrides the configuration directory.
const ConfigDirEnv = "MONGOBROWSE_CONFIG_DIR"

// Service handles configuration file persistence.
type Service struct {
	configDir string
}

// NewService creates a new storage service.
func NewService(configDir string) *Service {
	return &Service{configDir: configDir}
}

// ConfigDir returns the directory that holds the configuration files.
func (s *Service) ConfigDir() string {
	return s.configDir
}

// InitConfigDir resolves and creates the config directory. An explicit dir
// wins over $MONGOBROWSE_CONFIG_DIR, which wins over the user config dir.
func InitConfigDir(dir string) (string, error) {
	if dir == "" {
		dir = os.Getenv(ConfigDirEnv)
	}
	if dir == "" {
		configDir, err := os.UserConfigDir()
		if err != nil {
			configDir = os.Getenv("HOME")
		}
		dir = filepath.Join(configDir, "mongobrowse")
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	return dir, nil
}

// ServersFile returns the path to the server configurations file.
func (s *Service) ServersFile() string {
	return filepath.Join(s.configDir, "servers.json")
}

// QueriesFile returns the path to the saved queries file.
func (s *Service) QueriesFile() string {
	return filepath.Join(s.configDir, "saved_queries.json")
}

// LoadServers loads saved server configurations from disk.
func (s *Service) LoadServers() ([]types.ServerConfiguration, error) {
	servers := []types.ServerConfiguration{}
	if err := loadJSON(s.ServersFile(), &servers); err != nil {
		return nil, err
	}
	return servers, nil
}

// PersistServers saves server configurations to disk.
func (s *Service) PersistServers(servers []types.ServerConfiguration) error {
	return persistJSON(s.ServersFile(), servers)
}

// LoadQueries loads saved queries from disk.
func (s *Service) LoadQueries() ([]types.SavedQuery, error) {
	queries := []types.SavedQuery{}
	if err := loadJSON(s.QueriesFile(), &queries); err != nil {
		return nil, err
	}
	return queries, nil
}

// PersistQueries saves queries to disk.
func (s *Service) PersistQueries(queries []types.SavedQuery) error {
	return persistJSON(s.QueriesFile(), queries)
}

// loadJSON leaves v untouched when path does not exist.
func loadJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}
	return nil
}

func persistJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}
