package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Sentinel error identity ---

func TestSentinelErrors_AreDistinct(t *testing.T) {
	sentinels := []error{
		ErrNotFound, ErrAlreadyExists, ErrInvalidInput, ErrInvalidState,
		ErrUnauthorized, ErrForbidden, ErrInternal, ErrConflict,
		ErrTransient, ErrServiceUnavail,
	}

	for i := 0; i < len(sentinels); i++ {
		for j := i + 1; j < len(sentinels); j++ {
			assert.NotEqual(t, sentinels[i], sentinels[j],
				"sentinels %d and %d should be distinct", i, j)
		}
	}
}

// --- AppError behavior ---

func TestAppError_ErrorString(t *testing.T) {
	appErr := &AppError{Code: "NOT_FOUND", Message: "review not found"}
	assert.Equal(t, "NOT_FOUND: review not found", appErr.Error())

	wrapped := &AppError{Code: "INTERNAL_ERROR", Message: "boom", Err: fmt.Errorf("db connection lost")}
	assert.Contains(t, wrapped.Error(), "db connection lost")
}

// --- Constructors ---

func TestConstructors(t *testing.T) {
	tests := []struct {
		name     string
		err      *AppError
		code     string
		status   int
		sentinel error
	}{
		{"not found", NotFound("review", "r-1"), "NOT_FOUND", http.StatusNotFound, ErrNotFound},
		{"already exists", AlreadyExists("subscription", "course_id", "COMP248"), "ALREADY_EXISTS", http.StatusConflict, ErrAlreadyExists},
		{"invalid input", InvalidInput("difficulty must be between 1 and 5"), "INVALID_INPUT", http.StatusBadRequest, ErrInvalidInput},
		{"invalid state", InvalidState("course COMP248 no longer exists"), "INVALID_STATE", http.StatusConflict, ErrInvalidState},
		{"conflict", Conflict("interaction changed concurrently"), "CONFLICT", http.StatusConflict, ErrConflict},
		{"transient", Transient(errors.New("dial tcp: connection refused")), "TRANSIENT", http.StatusServiceUnavailable, ErrTransient},
		{"forbidden", Forbidden("not the author"), "FORBIDDEN", http.StatusForbidden, ErrForbidden},
		{"unauthorized", Unauthorized("missing user"), "UNAUTHORIZED", http.StatusUnauthorized, ErrUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NotNil(t, tt.err)
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.status, tt.err.Status)
			assert.ErrorIs(t, tt.err, tt.sentinel)
			assert.Equal(t, tt.status, HTTPStatus(tt.err))
		})
	}
}

func TestNotFound_Message(t *testing.T) {
	err := NotFound("review", "abc-123")
	assert.Equal(t, "review with id abc-123 not found", err.Message)
}

func TestTransient_KeepsCause(t *testing.T) {
	cause := errors.New("i/o timeout")
	err := Transient(cause)
	assert.ErrorIs(t, err, cause)
	assert.True(t, IsRetryable(err))
}

func TestInternal_KeepsCause(t *testing.T) {
	cause := errors.New("disk full")
	err := Internal(cause)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, http.StatusInternalServerError, err.Status)
}

// --- Wrap / IsRetryable / HTTPStatus ---

func TestWrap_PreservesChain(t *testing.T) {
	err := Wrap(ErrNotFound, "load review")
	assert.Equal(t, "load review: resource not found", err.Error())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(Conflict("race")))
	assert.True(t, IsRetryable(fmt.Errorf("wrapped: %w", ErrServiceUnavail)))
	assert.False(t, IsRetryable(NotFound("review", "x")))
	assert.False(t, IsRetryable(nil))
}

func TestHTTPStatus_Sentinels(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{fmt.Errorf("x: %w", ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("x: %w", ErrAlreadyExists), http.StatusConflict},
		{fmt.Errorf("x: %w", ErrInvalidState), http.StatusConflict},
		{fmt.Errorf("x: %w", ErrInvalidInput), http.StatusBadRequest},
		{fmt.Errorf("x: %w", ErrTransient), http.StatusServiceUnavailable},
		{errors.New("plain"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.status, HTTPStatus(tt.err), tt.err.Error())
	}
}
