package errors

import "fmt"

// ConfigError indicates missing or invalid application-level configuration.
// It is raised before any network call is attempted.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return "config: " + e.Message
}

// CredentialError indicates that no usable token exists for an account.
// It aborts that account's sync; other accounts are unaffected.
type CredentialError struct {
	AccountID uint
	Message   string
}

func (e *CredentialError) Error() string {
	return fmt.Sprintf("credential (account %d): %s", e.AccountID, e.Message)
}

// AuthError is returned when an OAuth exchange or shop listing fails.
type AuthError struct {
	Message string
}

func (e *AuthError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "authorization failed"
}

// ValidationError is returned for malformed payloads, e.g. an order
// without an id. It fails that single record, never the batch.
type ValidationError struct {
	Message string
	Fields  map[string]string
}

func (e *ValidationError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "validation failed"
}

// NotFoundError is returned when a resource does not exist.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}
