// Package errors provides structured error handling for vaultmcp.
//
// Every failure surfaced to callers carries a Kind so transports can map it
// to an exit code or HTTP status without string matching.
package errors

// Kind classifies VaultError values.
type Kind string

const (
	// KindVaultRead indicates a vault walk, stat, or file read failure.
	KindVaultRead Kind = "VAULT_READ"
	// KindIndex indicates an index build, merge, or persistence failure.
	KindIndex Kind = "INDEX"
	// KindStorageMismatch indicates the storage dir belongs to another vault.
	KindStorageMismatch Kind = "STORAGE_MISMATCH"
	// KindEncoder indicates an embedding backend failure.
	KindEncoder Kind = "ENCODER"
	// KindIndexUnavailable indicates a query against a missing index.
	KindIndexUnavailable Kind = "INDEX_UNAVAILABLE"
	// KindDeadline indicates a search deadline expired mid-pipeline.
	KindDeadline Kind = "DEADLINE"
	// KindConfig indicates invalid or unreadable configuration.
	KindConfig Kind = "CONFIG"
	// KindTooManyRequests indicates rate-limit rejection.
	KindTooManyRequests Kind = "TOO_MANY_REQUESTS"
	// KindUnknown is returned when the error is not a VaultError.
	KindUnknown Kind = "UNKNOWN"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates unrecoverable error, must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates operation failed but can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
)

// severityForKind determines severity based on the error kind.
func severityForKind(kind Kind) Severity {
	switch kind {
	case KindStorageMismatch, KindConfig:
		return SeverityFatal
	case KindEncoder, KindTooManyRequests:
		return SeverityWarning
	default:
		return SeverityError
	}
}

// isRetryableKind checks if a kind represents a retryable failure.
func isRetryableKind(kind Kind) bool {
	switch kind {
	case KindEncoder, KindTooManyRequests:
		return true
	default:
		return false
	}
}
