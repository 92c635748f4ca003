package credential

import (
	"fmt"
	"net/url"
	"strings"

	"go.mongodb.org/mongo-driver/x/mongo/driver/connstring"

	"github.com/peternagy/mongobrowse/internal/core"
	"github.com/peternagy/mongobrowse/internal/types"
)

// ParseURI turns a MongoDB connection string into a server configuration and
// the secrets it carries. The database in the path becomes the user database
// and, unless authSource says otherwise, the authentication database.
// mongodb+srv URIs are resolved to their seed list through DNS.
func ParseURI(uri string) (types.ServerConfiguration, types.Secrets, error) {
	cs, err := connstring.ParseAndValidate(strings.TrimSpace(uri))
	if err != nil {
		return types.ServerConfiguration{}, types.Secrets{}, &core.ConfigurationError{Field: "uri", Reason: err.Error()}
	}

	cfg := types.ServerConfiguration{
		Addresses:      cs.Hosts,
		TLS:            cs.SSL,
		ReadPreference: types.ReadPreference(cs.ReadPreference),
		Username:       cs.Username,
		AuthMechanism:  cs.AuthMechanism,
		UserDatabase:   cs.Database,
	}
	if cfg.Username != "" {
		cfg.AuthDatabase = cs.AuthSource
		if cfg.AuthDatabase == "" {
			cfg.AuthDatabase = cs.Database
		}
	}
	if !cfg.ReadPreference.Valid() {
		return types.ServerConfiguration{}, types.Secrets{}, &core.ConfigurationError{Field: "readPreference", Reason: fmt.Sprintf("unknown mode %q", cs.ReadPreference)}
	}
	return cfg, types.Secrets{Password: cs.Password}, nil
}

// BuildURI renders a configuration as a mongodb:// URI for external tools.
// The password is only included when given. Default values are omitted.
func BuildURI(cfg types.ServerConfiguration, password string) string {
	var b strings.Builder
	b.WriteString("mongodb://")

	if cfg.Username != "" {
		if password != "" {
			b.WriteString(url.UserPassword(cfg.Username, password).String())
		} else {
			b.WriteString(url.User(cfg.Username).String())
		}
		b.WriteByte('@')
	}

	for i, text := range cfg.Addresses {
		if i > 0 {
			b.WriteByte(',')
		}
		addr, err := types.ParseAddress(text)
		if err != nil {
			b.WriteString(text)
			continue
		}
		b.WriteString(formatHost(addr.Host, addr.Port))
	}

	b.WriteByte('/')
	b.WriteString(cfg.UserDatabase)

	var params []string
	addParam := func(key, value string) {
		params = append(params, key+"="+value)
	}
	if cfg.Username != "" && cfg.AuthDatabase != "" && cfg.AuthDatabase != types.DefaultAuthDatabase {
		addParam("authSource", url.QueryEscape(cfg.AuthDatabase))
	}
	if cfg.AuthMechanism != "" {
		addParam("authMechanism", cfg.AuthMechanism)
	}
	if cfg.TLS {
		addParam("tls", "true")
	}
	if cfg.ReadPreference != "" && cfg.ReadPreference != types.ReadPrimary {
		addParam("readPreference", string(cfg.ReadPreference))
	}
	if len(cfg.Addresses) == 1 && cfg.SSHTunnel == nil {
		addParam("directConnection", "true")
	}

	if len(params) > 0 {
		b.WriteByte('?')
		b.WriteString(strings.Join(params, "&"))
	}
	return b.String()
}

// formatHost formats a host:port pair, handling IPv6 addresses.
func formatHost(host string, port int) string {
	if strings.Contains(host, ":") && !strings.HasPrefix(host, "[") {
		host = "[" + host + "]"
	}
	if port == types.DefaultMongoPort || port == 0 {
		return host
	}
	return fmt.Sprintf("%s:%d", host, port)
}

// StripPassword removes the password from a URI so it can be shown or logged.
// URIs that do not parse are returned unchanged.
func StripPassword(uri string) string {
	parsed, err := url.Parse(uri)
	if err != nil || parsed.User == nil {
		return uri
	}
	if _, ok := parsed.User.Password(); !ok {
		return uri
	}
	parsed.User = url.User(parsed.User.Username())
	return parsed.String()
}
