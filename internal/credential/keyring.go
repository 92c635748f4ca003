// Package credential handles secret storage and MongoDB URI credentials.
package credential

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"

	"github.com/peternagy/mongobrowse/internal/debug"
	"github.com/peternagy/mongobrowse/internal/types"
)

const keyringService = "mongobrowse"

// SecretKind names one of the secrets kept for a server configuration.
type SecretKind string

const (
	SecretPassword      SecretKind = "password"
	SecretSSHPassword   SecretKind = "ssh-password"
	SecretSSHPassphrase SecretKind = "ssh-passphrase"
)

var secretKinds = []SecretKind{SecretPassword, SecretSSHPassword, SecretSSHPassphrase}

// Service handles secret storage in the OS keyring.
type Service struct{}

// NewService creates a new credential service.
func NewService() *Service {
	return &Service{}
}

func keyringUser(configID string, kind SecretKind) string {
	return configID + ":" + string(kind)
}

// Set stores a secret. An empty secret removes any stored value.
func (s *Service) Set(configID string, kind SecretKind, secret string) error {
	if secret == "" {
		return s.Delete(configID, kind)
	}
	if err := keyring.Set(keyringService, keyringUser(configID, kind), secret); err != nil {
		return fmt.Errorf("failed to store %s: %w", kind, err)
	}
	return nil
}

// Get retrieves a secret. A missing secret is returned as "".
func (s *Service) Get(configID string, kind SecretKind) (string, error) {
	secret, err := keyring.Get(keyringService, keyringUser(configID, kind))
	if errors.Is(err, keyring.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", kind, err)
	}
	return secret, nil
}

// Delete removes a secret. Deleting a missing secret is not an error.
func (s *Service) Delete(configID string, kind SecretKind) error {
	err := keyring.Delete(keyringService, keyringUser(configID, kind))
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("failed to delete %s: %w", kind, err)
	}
	return nil
}

// LoadSecrets reads every secret kept for a configuration.
func (s *Service) LoadSecrets(configID string) (types.Secrets, error) {
	var secrets types.Secrets
	var err error
	if secrets.Password, err = s.Get(configID, SecretPassword); err != nil {
		return types.Secrets{}, err
	}
	if secrets.SSHPassword, err = s.Get(configID, SecretSSHPassword); err != nil {
		return types.Secrets{}, err
	}
	if secrets.SSHPassphrase, err = s.Get(configID, SecretSSHPassphrase); err != nil {
		return types.Secrets{}, err
	}
	return secrets, nil
}

// SaveSecrets stores the non-empty secrets of a configuration. Empty values
// leave what is already stored untouched, so a form saved without
// re-entering a password keeps the old one.
func (s *Service) SaveSecrets(configID string, secrets types.Secrets) error {
	values := map[SecretKind]string{
		SecretPassword:      secrets.Password,
		SecretSSHPassword:   secrets.SSHPassword,
		SecretSSHPassphrase: secrets.SSHPassphrase,
	}
	for _, kind := range secretKinds {
		if values[kind] == "" {
			continue
		}
		if err := s.Set(configID, kind, values[kind]); err != nil {
			return err
		}
	}
	debug.LogStorage("Secrets saved", map[string]interface{}{"id": configID})
	return nil
}

// DeleteSecrets removes every secret kept for a configuration.
func (s *Service) DeleteSecrets(configID string) error {
	for _, kind := range secretKinds {
		if err := s.Delete(configID, kind); err != nil {
			return err
		}
	}
	return nil
}
