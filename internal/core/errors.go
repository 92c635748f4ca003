package core

import (
	"errors"
	"fmt"
)

// =============================================================================
// Custom Error Types
// =============================================================================

// QuerySyntaxError reports malformed filter, projection, sort or pipeline text.
type QuerySyntaxError struct {
	Field   string // "filter", "projection", "sort" or "aggregation"
	Message string
}

func (e *QuerySyntaxError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// DuplicateKeyError indicates a key already present among a node's children.
type DuplicateKeyError struct {
	Key string
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("duplicate key: %q already exists", e.Key)
}

// ValueParseError indicates text that cannot be parsed as a value of a given kind.
type ValueParseError struct {
	Kind   string
	Input  string
	Reason string
}

func (e *ValueParseError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("cannot parse %q as %s", e.Input, e.Kind)
	}
	return fmt.Sprintf("cannot parse %q as %s: %s", e.Input, e.Kind, e.Reason)
}

// ConnectionError wraps any failure reaching, authenticating to or talking to a server,
// tunnel failures included.
type ConnectionError struct {
	Message string
	Err     error
}

func (e *ConnectionError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// ConfigurationError indicates a missing or invalid server target or option.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return "invalid configuration: " + e.Reason
	}
	return fmt.Sprintf("invalid configuration %s: %s", e.Field, e.Reason)
}

// ConfigurationNotFoundError indicates a saved server configuration was not found.
type ConfigurationNotFoundError struct {
	ID string
}

func (e *ConfigurationNotFoundError) Error() string {
	return fmt.Sprintf("server configuration not found: %s", e.ID)
}

// DocumentNotFoundError indicates that no document in Namespace has the given _id.
type DocumentNotFoundError struct {
	Namespace string
	ID        string
}

func (e *DocumentNotFoundError) Error() string {
	return fmt.Sprintf("document not found in %s: %s", e.Namespace, e.ID)
}

// IsCallerError reports whether err belongs to the validation part of the taxonomy
// (query syntax, tree edits, configuration). Those errors are never rewrapped as
// connection failures.
func IsCallerError(err error) bool {
	var qe *QuerySyntaxError
	var dk *DuplicateKeyError
	var vp *ValueParseError
	var ce *ConfigurationError
	var nf *ConfigurationNotFoundError
	var dn *DocumentNotFoundError
	return errors.As(err, &qe) || errors.As(err, &dk) || errors.As(err, &vp) ||
		errors.As(err, &ce) || errors.As(err, &nf) || errors.As(err, &dn)
}
