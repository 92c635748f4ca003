// Package types contains shared type definitions used across the mongobrowse application.
package types

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
)

// Defaults applied when a configuration leaves them out.
const (
	DefaultMongoPort    = 27017
	DefaultSSHPort      = 22
	DefaultAuthDatabase = "admin"
)

// =============================================================================
// Server Target Types
// =============================================================================

// Address is one host/port pair of a server or replica set member.
type Address struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

func (a Address) String() string {
	return net.JoinHostPort(a.Host, strconv.Itoa(a.Port))
}

// ParseAddress parses "host", "host:port" or "[ipv6]:port". The port
// defaults to 27017.
func ParseAddress(text string) (Address, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Address{}, fmt.Errorf("empty address")
	}
	host, portText, err := net.SplitHostPort(text)
	if err != nil {
		// No port given.
		return Address{Host: strings.Trim(text, "[]"), Port: DefaultMongoPort}, nil
	}
	port, err := strconv.Atoi(portText)
	if err != nil {
		return Address{}, fmt.Errorf("invalid port %q", portText)
	}
	return Address{Host: host, Port: port}, nil
}

// Auth holds the credentials used by the driver.
type Auth struct {
	Username     string `json:"username"`
	Password     string `json:"-"`
	AuthDatabase string `json:"authDatabase"`
	Mechanism    string `json:"mechanism,omitempty"` // empty lets the driver negotiate
}

// SSHAuthMethod selects how the tunnel authenticates against the SSH host.
type SSHAuthMethod string

const (
	SSHAuthPassword   SSHAuthMethod = "password"
	SSHAuthPrivateKey SSHAuthMethod = "privateKey"
)

// SSHTunnel describes a local port forward through an SSH host.
type SSHTunnel struct {
	Host           string        `json:"host"`
	Port           int           `json:"port"`
	User           string        `json:"user"`
	AuthMethod     SSHAuthMethod `json:"authMethod"`
	Password       string        `json:"-"`
	PrivateKeyPath string        `json:"privateKeyPath,omitempty"`
	Passphrase     string        `json:"-"`
	KnownHostsFile string        `json:"knownHostsFile,omitempty"`
	LocalPort      int           `json:"localPort,omitempty"` // 0 picks a free port
}

// Addr returns the SSH host address.
func (t SSHTunnel) Addr() string {
	return net.JoinHostPort(t.Host, strconv.Itoa(t.Port))
}

// ReadPreference mirrors the driver's read preference modes.
type ReadPreference string

const (
	ReadPrimary            ReadPreference = "primary"
	ReadPrimaryPreferred   ReadPreference = "primaryPreferred"
	ReadSecondary          ReadPreference = "secondary"
	ReadSecondaryPreferred ReadPreference = "secondaryPreferred"
	ReadNearest            ReadPreference = "nearest"
)

// ReadPreferences lists the supported modes.
var ReadPreferences = []ReadPreference{
	ReadPrimary, ReadPrimaryPreferred, ReadSecondary, ReadSecondaryPreferred, ReadNearest,
}

// Valid reports whether p is a known mode. The empty value means primary.
func (p ReadPreference) Valid() bool {
	if p == "" {
		return true
	}
	for _, known := range ReadPreferences {
		if p == known {
			return true
		}
	}
	return false
}

// ServerTarget is everything needed to reach one server for one operation.
// It is built from a ServerConfiguration and not modified afterwards.
type ServerTarget struct {
	Label               string
	Addresses           []Address
	Auth                *Auth
	TLS                 bool
	ReadPreference      ReadPreference
	Tunnel              *SSHTunnel
	UserDatabase        string // restricts listing to a single database
	CollectionsToIgnore []string
	DefaultRowLimit     int
}

// Tunneled reports whether the target goes through an SSH tunnel.
func (t ServerTarget) Tunneled() bool {
	return t.Tunnel != nil
}

// Ignores reports whether collection is in the ignore list.
func (t ServerTarget) Ignores(collection string) bool {
	for _, name := range t.CollectionsToIgnore {
		if name == collection {
			return true
		}
	}
	return false
}

// =============================================================================
// Database and Collection Types
// =============================================================================

// Namespace identifies a collection inside a database.
type Namespace struct {
	Database   string `json:"database"`
	Collection string `json:"collection"`
}

func (n Namespace) String() string {
	return n.Database + "." + n.Collection
}

// ParseNamespace splits "db.collection". Collection names may contain dots.
func ParseNamespace(text string) (Namespace, error) {
	db, coll, ok := strings.Cut(text, ".")
	if !ok || db == "" || coll == "" {
		return Namespace{}, fmt.Errorf("invalid namespace %q: expected <database>.<collection>", text)
	}
	return Namespace{Database: db, Collection: coll}, nil
}

// Database describes a database and its collections.
type Database struct {
	Name        string       `json:"name"`
	Collections []Collection `json:"collections"`
}

// Collection describes a MongoDB collection.
type Collection struct {
	Name     string `json:"name"`
	Database string `json:"database"`
}

// Namespace returns the collection's namespace.
func (c Collection) Namespace() Namespace {
	return Namespace{Database: c.Database, Collection: c.Name}
}

// CollectionResult holds the documents of one find or aggregate, in server order.
type CollectionResult struct {
	Namespace Namespace `json:"namespace"`
	Documents []bson.D  `json:"documents"`
	Aggregate bool      `json:"aggregate"`
	Elapsed   time.Duration
}

// Len returns the number of documents.
func (r *CollectionResult) Len() int {
	return len(r.Documents)
}

// =============================================================================
// Indexes and query plans
// =============================================================================

// Index describes one index of a collection.
type Index struct {
	Name   string `json:"name"`
	Keys   bson.D `json:"keys"`
	Unique bool   `json:"unique"`
	Sparse bool   `json:"sparse"`
	TTL    int64  `json:"ttl,omitempty"` // expireAfterSeconds, 0 when not a TTL index
	Size   int64  `json:"size"`
}

// IndexOptions are the options accepted when creating an index.
type IndexOptions struct {
	Name               string `json:"name,omitempty"`
	Unique             bool   `json:"unique,omitempty"`
	Sparse             bool   `json:"sparse,omitempty"`
	ExpireAfterSeconds int32  `json:"expireAfterSeconds,omitempty"`
}

// ExplainResult summarizes the plan the server chose for a query.
type ExplainResult struct {
	Namespace         string `json:"namespace"`
	WinningPlan       string `json:"winningPlan"` // human-readable stage chain
	WinningPlanStage  string `json:"winningPlanStage"`
	IndexUsed         string `json:"indexUsed"`
	IsCollectionScan  bool   `json:"isCollectionScan"`
	RejectedPlans     int    `json:"rejectedPlans"`
	NReturned         int64  `json:"nReturned"`
	ExecutionTimeMs   int64  `json:"executionTimeMs"`
	TotalKeysExamined int64  `json:"totalKeysExamined"`
	TotalDocsExamined int64  `json:"totalDocsExamined"`
	Raw               bson.D `json:"-"`
}
