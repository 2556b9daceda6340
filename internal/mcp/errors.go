// Package mcp exposes the vault search engine over the Model Context
// Protocol so AI clients can query notes as tools.
package mcp

import (
	"context"
	"errors"
	"fmt"

	vmcperrors "github.com/vaultmcp/vaultmcp/internal/errors"
)

// Custom MCP error codes, in the implementation-defined JSON-RPC range.
const (
	// ErrCodeIndexUnavailable indicates the index has not been built yet.
	ErrCodeIndexUnavailable = -32001

	// ErrCodeEncoderFailed indicates the embedding backend failed.
	ErrCodeEncoderFailed = -32002

	// ErrCodeTimeout indicates the request hit its deadline.
	ErrCodeTimeout = -32003

	// ErrCodeStorageMismatch indicates the storage directory belongs to a
	// different vault.
	ErrCodeStorageMismatch = -32004

	// ErrCodeBusy indicates another reindex holds the writer lock.
	ErrCodeBusy = -32005

	// Standard JSON-RPC error codes.
	ErrCodeInvalidParams = -32602
	ErrCodeInternalError = -32603
)

// MCPError is a protocol error with a JSON-RPC code.
type MCPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// NewInvalidParamsError creates an invalid-params error.
func NewInvalidParamsError(message string) *MCPError {
	return &MCPError{Code: ErrCodeInvalidParams, Message: message}
}

// MapError converts engine errors to MCP errors so clients get stable codes
// instead of Go error strings.
func MapError(err error) *MCPError {
	if err == nil {
		return nil
	}

	var verr *vmcperrors.VaultError
	if errors.As(err, &verr) {
		msg := verr.Message
		if verr.Suggestion != "" {
			msg += ". " + verr.Suggestion
		}
		switch verr.Kind {
		case vmcperrors.KindIndexUnavailable:
			return &MCPError{Code: ErrCodeIndexUnavailable, Message: msg}
		case vmcperrors.KindEncoder:
			return &MCPError{Code: ErrCodeEncoderFailed, Message: msg}
		case vmcperrors.KindDeadline:
			return &MCPError{Code: ErrCodeTimeout, Message: msg}
		case vmcperrors.KindStorageMismatch:
			return &MCPError{Code: ErrCodeStorageMismatch, Message: msg}
		case vmcperrors.KindTooManyRequests:
			return &MCPError{Code: ErrCodeBusy, Message: msg}
		case vmcperrors.KindConfig:
			return &MCPError{Code: ErrCodeInvalidParams, Message: msg}
		case vmcperrors.KindIndex:
			// Busy writers are the common Index failure a client can act on.
			return &MCPError{Code: ErrCodeBusy, Message: msg}
		default:
			return &MCPError{Code: ErrCodeInternalError, Message: msg}
		}
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request timed out."}
	case errors.Is(err, context.Canceled):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request was canceled."}
	}
	return &MCPError{Code: ErrCodeInternalError, Message: err.Error()}
}
