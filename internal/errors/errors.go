package errors

import (
	"fmt"
)

// VaultError is the structured error type for vaultmcp.
// It provides rich context for error handling, logging, and user presentation.
type VaultError struct {
	// Kind classifies the failure (VaultRead, Index, Encoder, ...).
	Kind Kind

	// Message is the human-readable error message.
	Message string

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool

	// Suggestion is an actionable suggestion for the user.
	Suggestion string
}

// Error implements the error interface.
func (e *VaultError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *VaultError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by kind.
// This enables errors.Is() to work with VaultError.
func (e *VaultError) Is(target error) bool {
	if t, ok := target.(*VaultError); ok {
		return e.Kind == t.Kind
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *VaultError) WithDetail(key, value string) *VaultError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
// Returns the error for method chaining.
func (e *VaultError) WithSuggestion(suggestion string) *VaultError {
	e.Suggestion = suggestion
	return e
}

// New creates a new VaultError with the given kind and message.
// Severity and the retryable flag are derived from the kind.
func New(kind Kind, message string, cause error) *VaultError {
	return &VaultError{
		Kind:      kind,
		Message:   message,
		Severity:  severityForKind(kind),
		Cause:     cause,
		Retryable: isRetryableKind(kind),
	}
}

// Newf creates a new VaultError with a formatted message.
func Newf(kind Kind, format string, args ...any) *VaultError {
	return New(kind, fmt.Sprintf(format, args...), nil)
}

// Wrap creates a VaultError from an existing error.
// The error's message becomes the VaultError message.
func Wrap(kind Kind, err error) *VaultError {
	if err == nil {
		return nil
	}
	return New(kind, err.Error(), err)
}

// VaultReadError creates a vault-read error (walk, stat, or file read failure).
func VaultReadError(message string, cause error) *VaultError {
	return New(KindVaultRead, message, cause)
}

// IndexError creates an index build or persistence error.
func IndexError(message string, cause error) *VaultError {
	return New(KindIndex, message, cause)
}

// StorageMismatchError creates the vault-safety violation error. It records
// the vault path the storage was built for and the one now requested.
func StorageMismatchError(storedVault, requestedVault, storageDir string) *VaultError {
	e := New(KindStorageMismatch,
		fmt.Sprintf("storage at %s was built for a different vault", storageDir), nil)
	return e.
		WithDetail("stored_vault", storedVault).
		WithDetail("requested_vault", requestedVault).
		WithDetail("storage_dir", storageDir).
		WithSuggestion("pass force to rebuild the index for the new vault path")
}

// EncoderError creates an embedding-backend error. Encoder errors are
// typically retryable.
func EncoderError(message string, cause error) *VaultError {
	return New(KindEncoder, message, cause)
}

// IndexUnavailableError signals that a query requires an index that has not
// been built yet.
func IndexUnavailableError(message string) *VaultError {
	return New(KindIndexUnavailable, message, nil).
		WithSuggestion("run 'vaultmcp index' to build the index first")
}

// DeadlineError signals that a search deadline expired mid-pipeline.
func DeadlineError(stage string) *VaultError {
	return New(KindDeadline, "search deadline exceeded", nil).
		WithDetail("stage", stage)
}

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *VaultError {
	return New(KindConfig, message, cause)
}

// TooManyRequestsError signals rate-limit rejection for a client.
func TooManyRequestsError(client string) *VaultError {
	return New(KindTooManyRequests, "rate limit exceeded", nil).
		WithDetail("client", client)
}

// IsRetryable checks if an error is retryable.
// Returns true if the error is a VaultError with the Retryable flag set.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if ve, ok := err.(*VaultError); ok {
		return ve.Retryable
	}
	return false
}

// IsKind reports whether err is a VaultError of the given kind anywhere in
// its chain.
func IsKind(err error, kind Kind) bool {
	for err != nil {
		if ve, ok := err.(*VaultError); ok && ve.Kind == kind {
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// GetKind extracts the kind from a VaultError.
// Returns KindUnknown if not a VaultError.
func GetKind(err error) Kind {
	if ve, ok := err.(*VaultError); ok {
		return ve.Kind
	}
	return KindUnknown
}
