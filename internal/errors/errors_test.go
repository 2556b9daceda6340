package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name          string
		kind          Kind
		wantSeverity  Severity
		wantRetryable bool
	}{
		{"vault read", KindVaultRead, SeverityError, false},
		{"index", KindIndex, SeverityError, false},
		{"storage mismatch", KindStorageMismatch, SeverityFatal, false},
		{"encoder", KindEncoder, SeverityWarning, true},
		{"deadline", KindDeadline, SeverityError, false},
		{"config", KindConfig, SeverityFatal, false},
		{"too many requests", KindTooManyRequests, SeverityWarning, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.kind, "boom", nil)
			assert.Equal(t, tt.kind, err.Kind)
			assert.Equal(t, tt.wantSeverity, err.Severity)
			assert.Equal(t, tt.wantRetryable, err.Retryable)
			assert.Contains(t, err.Error(), string(tt.kind))
			assert.Contains(t, err.Error(), "boom")
		})
	}
}

func TestUnwrap(t *testing.T) {
	cause := stderrors.New("disk on fire")
	err := Wrap(KindVaultRead, cause)

	require.NotNil(t, err)
	assert.Equal(t, cause, stderrors.Unwrap(err))
	assert.True(t, stderrors.Is(err, cause))
}

func TestWrapNil(t *testing.T) {
	assert.Nil(t, Wrap(KindIndex, nil))
}

func TestIsByKind(t *testing.T) {
	err := IndexError("merge failed", nil)
	assert.True(t, stderrors.Is(err, New(KindIndex, "", nil)))
	assert.False(t, stderrors.Is(err, New(KindConfig, "", nil)))
}

func TestIsKindThroughChain(t *testing.T) {
	inner := EncoderError("backend down", nil)
	wrapped := fmt.Errorf("embedding batch 3: %w", inner)

	assert.True(t, IsKind(wrapped, KindEncoder))
	assert.False(t, IsKind(wrapped, KindIndex))
	assert.False(t, IsKind(nil, KindEncoder))
}

func TestWithDetail(t *testing.T) {
	err := IndexError("merge failed", nil).
		WithDetail("path", "notes/a.md").
		WithDetail("stage", "append")

	assert.Equal(t, "notes/a.md", err.Details["path"])
	assert.Equal(t, "append", err.Details["stage"])
}

func TestStorageMismatchError(t *testing.T) {
	err := StorageMismatchError("/old/vault", "/new/vault", "/new/vault/.vaultmcp")

	assert.Equal(t, KindStorageMismatch, err.Kind)
	assert.Equal(t, SeverityFatal, err.Severity)
	assert.Equal(t, "/old/vault", err.Details["stored_vault"])
	assert.Equal(t, "/new/vault", err.Details["requested_vault"])
	assert.NotEmpty(t, err.Suggestion)
}

func TestDeadlineError(t *testing.T) {
	err := DeadlineError("fusion")
	assert.Equal(t, KindDeadline, err.Kind)
	assert.Equal(t, "fusion", err.Details["stage"])
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(EncoderError("timeout", nil)))
	assert.False(t, IsRetryable(IndexError("corrupt", nil)))
	assert.False(t, IsRetryable(stderrors.New("plain")))
	assert.False(t, IsRetryable(nil))
}

func TestGetKind(t *testing.T) {
	assert.Equal(t, KindDeadline, GetKind(DeadlineError("rerank")))
	assert.Equal(t, KindUnknown, GetKind(stderrors.New("plain")))
}
