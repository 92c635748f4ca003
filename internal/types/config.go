package types

import (
	"fmt"
	"strings"
	"time"

	"github.com/peternagy/mongobrowse/internal/core"
)

// =============================================================================
// Persisted Configuration
// =============================================================================

// ServerConfiguration is the saved form of a server. Secrets are kept out of
// it and live in the OS keyring.
type ServerConfiguration struct {
	ID                  string         `json:"id"`
	Label               string         `json:"label"`
	Addresses           []string       `json:"addresses"`
	TLS                 bool           `json:"tls"`
	ReadPreference      ReadPreference `json:"readPreference,omitempty"`
	Username            string         `json:"username,omitempty"`
	AuthDatabase        string         `json:"authDatabase,omitempty"`
	AuthMechanism       string         `json:"authMechanism,omitempty"`
	UserDatabase        string         `json:"userDatabase,omitempty"`
	CollectionsToIgnore []string       `json:"collectionsToIgnore,omitempty"`
	DefaultRowLimit     int            `json:"defaultRowLimit,omitempty"`
	SSHTunnel           *SSHTunnel     `json:"sshTunnel,omitempty"`
	CreatedAt           time.Time      `json:"createdAt"`
	LastAccessedAt      time.Time      `json:"lastAccessedAt,omitempty"`
}

// Secrets are the keyring-held values needed to turn a configuration into a target.
type Secrets struct {
	Password      string
	SSHPassword   string
	SSHPassphrase string
}

// Target validates the configuration and resolves it into a ServerTarget.
// Ports default to 27017 (server) and 22 (SSH); the authentication database
// defaults to "admin" when a username is set.
func (c ServerConfiguration) Target(secrets Secrets) (ServerTarget, error) {
	if len(c.Addresses) == 0 {
		return ServerTarget{}, &core.ConfigurationError{Field: "addresses", Reason: "at least one server address is required"}
	}
	addrs := make([]Address, 0, len(c.Addresses))
	for _, text := range c.Addresses {
		addr, err := ParseAddress(text)
		if err != nil {
			return ServerTarget{}, &core.ConfigurationError{Field: "addresses", Reason: err.Error()}
		}
		addrs = append(addrs, addr)
	}

	target := ServerTarget{
		Label:               c.Label,
		Addresses:           addrs,
		TLS:                 c.TLS,
		ReadPreference:      c.ReadPreference,
		UserDatabase:        strings.TrimSpace(c.UserDatabase),
		CollectionsToIgnore: c.CollectionsToIgnore,
		DefaultRowLimit:     c.DefaultRowLimit,
	}

	if c.Username != "" {
		authDB := c.AuthDatabase
		if authDB == "" {
			authDB = DefaultAuthDatabase
		}
		target.Auth = &Auth{
			Username:     c.Username,
			Password:     secrets.Password,
			AuthDatabase: authDB,
			Mechanism:    c.AuthMechanism,
		}
	}

	if c.SSHTunnel != nil {
		tunnel := *c.SSHTunnel
		if tunnel.Port == 0 {
			tunnel.Port = DefaultSSHPort
		}
		if tunnel.AuthMethod == "" {
			tunnel.AuthMethod = SSHAuthPassword
		}
		tunnel.Password = secrets.SSHPassword
		tunnel.Passphrase = secrets.SSHPassphrase
		target.Tunnel = &tunnel
	}

	if err := target.Validate(); err != nil {
		return ServerTarget{}, err
	}
	return target, nil
}

// Validate checks a target before any connection attempt.
func (t ServerTarget) Validate() error {
	if len(t.Addresses) == 0 {
		return &core.ConfigurationError{Field: "addresses", Reason: "at least one server address is required"}
	}
	for _, addr := range t.Addresses {
		if addr.Host == "" {
			return &core.ConfigurationError{Field: "addresses", Reason: "host must not be empty"}
		}
		if addr.Port < 1 || addr.Port > 65535 {
			return &core.ConfigurationError{Field: "addresses", Reason: fmt.Sprintf("port %d out of range", addr.Port)}
		}
	}
	if !t.ReadPreference.Valid() {
		return &core.ConfigurationError{Field: "readPreference", Reason: fmt.Sprintf("unknown mode %q", t.ReadPreference)}
	}
	if t.DefaultRowLimit < 0 {
		return &core.ConfigurationError{Field: "defaultRowLimit", Reason: "must not be negative"}
	}
	if t.Tunnel != nil {
		if err := t.Tunnel.validate(); err != nil {
			return err
		}
	}
	return nil
}

func (t SSHTunnel) validate() error {
	switch {
	case t.Host == "":
		return &core.ConfigurationError{Field: "sshTunnel.host", Reason: "SSH host is required"}
	case t.User == "":
		return &core.ConfigurationError{Field: "sshTunnel.user", Reason: "SSH user is required"}
	case t.Port < 1 || t.Port > 65535:
		return &core.ConfigurationError{Field: "sshTunnel.port", Reason: fmt.Sprintf("port %d out of range", t.Port)}
	case t.LocalPort < 0 || t.LocalPort > 65535:
		return &core.ConfigurationError{Field: "sshTunnel.localPort", Reason: fmt.Sprintf("port %d out of range", t.LocalPort)}
	}
	switch t.AuthMethod {
	case "", SSHAuthPassword:
	case SSHAuthPrivateKey:
		if t.PrivateKeyPath == "" {
			return &core.ConfigurationError{Field: "sshTunnel.privateKeyPath", Reason: "private key path is required"}
		}
	default:
		return &core.ConfigurationError{Field: "sshTunnel.authMethod", Reason: fmt.Sprintf("unknown method %q", t.AuthMethod)}
	}
	return nil
}

// SavedQuery is a named query kept for a server. The query parts are kept as
// the text the user typed so they can be shown and edited again.
type SavedQuery struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	ServerID    string    `json:"serverId"`
	Database    string    `json:"database"`
	Collection  string    `json:"collection"`
	Filter      string    `json:"filter,omitempty"`
	Projection  string    `json:"projection,omitempty"`
	Sort        string    `json:"sort,omitempty"`
	Pipeline    string    `json:"pipeline,omitempty"`
	ResultLimit int       `json:"resultLimit,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Namespace returns the collection the query runs against.
func (q SavedQuery) Namespace() Namespace {
	return Namespace{Database: q.Database, Collection: q.Collection}
}
