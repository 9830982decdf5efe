package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration signals a missing or invalid setting. Not retried.
	ErrConfiguration = errors.New("configuration error")
	// ErrUpstream signals a non-2xx answer from an external service.
	ErrUpstream = errors.New("upstream error")
	// ErrEmptyEmbeddedField signals a document whose embedded text is blank.
	ErrEmptyEmbeddedField = errors.New("embedded field is empty")
)

// ConfigurationError wraps ErrConfiguration with the offending setting.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrConfiguration.Error(), e.Field, e.Reason)
}

func (e *ConfigurationError) Unwrap() error { return ErrConfiguration }

// NewConfigurationError creates a configuration error for field.
func NewConfigurationError(field, reason string) error {
	return &ConfigurationError{Field: field, Reason: reason}
}

// UpstreamError wraps ErrUpstream with the status and message reported by the service.
type UpstreamError struct {
	Service string
	Status  int
	Message string
	Details string
}

func (e *UpstreamError) Error() string {
	msg := fmt.Sprintf("%s: %s returned %d", ErrUpstream.Error(), e.Service, e.Status)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Details != "" {
		msg += " (" + e.Details + ")"
	}
	return msg
}

func (e *UpstreamError) Unwrap() error { return ErrUpstream }
