package database

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/peternagy/mongobrowse/internal/core"
	"github.com/peternagy/mongobrowse/internal/types"
)

// MongoDB naming constraints:
// - Database names: max 64 bytes, none of /\. "$*<>:|? or NUL
// - Collection names: max 120 bytes, no $ prefix, no NUL

const (
	maxDatabaseNameBytes   = 64
	maxCollectionNameBytes = 120
	invalidDatabaseChars   = `/\. "$*<>:|?`
)

func nameError(kind, name, reason string) error {
	return &core.ConfigurationError{Field: kind + " name", Reason: fmt.Sprintf("%q %s", name, reason)}
}

// ValidateDatabaseName checks a database name before it is sent to the server.
func ValidateDatabaseName(name string) error {
	switch {
	case name == "":
		return nameError("database", name, "cannot be empty")
	case len(name) > maxDatabaseNameBytes:
		return nameError("database", name, fmt.Sprintf("exceeds %d bytes", maxDatabaseNameBytes))
	case strings.ContainsRune(name, 0):
		return nameError("database", name, "contains a null character")
	}
	if i := strings.IndexAny(name, invalidDatabaseChars); i >= 0 {
		return nameError("database", name, fmt.Sprintf("contains invalid character %q", name[i]))
	}
	return nil
}

// ValidateCollectionName checks a collection name before it is sent to the server.
func ValidateCollectionName(name string) error {
	switch {
	case name == "":
		return nameError("collection", name, "cannot be empty")
	case len(name) > maxCollectionNameBytes:
		return nameError("collection", name, fmt.Sprintf("exceeds %d bytes", maxCollectionNameBytes))
	case strings.ContainsRune(name, 0):
		return nameError("collection", name, "contains a null character")
	case strings.HasPrefix(name, "$"):
		return nameError("collection", name, "cannot start with $")
	case !utf8.ValidString(name):
		return nameError("collection", name, "is not valid UTF-8")
	}
	return nil
}

// ValidateNamespace validates both parts of ns.
func ValidateNamespace(ns types.Namespace) error {
	if err := ValidateDatabaseName(ns.Database); err != nil {
		return err
	}
	return ValidateCollectionName(ns.Collection)
}
