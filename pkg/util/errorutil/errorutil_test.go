package errorutil

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstructorsCarryCodeAndStatus(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		code   string
		status int
	}{
		{"validation", NewValidationError("bad input", nil), CodeValidationFailed, http.StatusBadRequest},
		{"policy", NewPolicyViolation("not allowed", nil), CodePolicyViolation, http.StatusForbidden},
		{"transition", NewInvalidTransition("NEW", "RESOLVED"), CodeInvalidTransition, http.StatusConflict},
		{"not found", NewNotFound("ticket", nil), CodeNotFound, http.StatusNotFound},
		{"unauthorized", NewUnauthorized("nope"), CodeUnauthorized, http.StatusForbidden},
		{"concurrent", NewConcurrentModification("t-1"), CodeConcurrentModification, http.StatusConflict},
		{"storage", NewStorageUnavailable(errors.New("dial refused")), CodeStorageUnavailable, http.StatusServiceUnavailable},
		{"internal", NewInternalError(errors.New("boom")), CodeInternal, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var domainErr *DomainError
			require.True(t, errors.As(tc.err, &domainErr))
			assert.Equal(t, tc.code, domainErr.Code)
			assert.Equal(t, tc.status, domainErr.HTTPStatus)
			assert.True(t, HasCode(tc.err, tc.code))
		})
	}
}

func TestInvalidTransitionDetails(t *testing.T) {
	err := NewInvalidTransition("RESOLVED", "IN_PROGRESS")
	var domainErr *DomainError
	require.True(t, errors.As(err, &domainErr))
	assert.Equal(t, "RESOLVED", domainErr.Details["from"])
	assert.Equal(t, "IN_PROGRESS", domainErr.Details["to"])
	assert.Contains(t, domainErr.Error(), "RESOLVED")
}

func TestRetryable(t *testing.T) {
	assert.True(t, ToDomainError(NewConcurrentModification("t-1")).Retryable())
	assert.True(t, ToDomainError(NewStorageUnavailable(errors.New("x"))).Retryable())
	assert.False(t, ToDomainError(NewValidationError("x", nil)).Retryable())
	assert.False(t, ToDomainError(NewNotFound("ticket", nil)).Retryable())
}

func TestToDomainError(t *testing.T) {
	assert.Nil(t, ToDomainError(nil))

	// Already a DomainError, possibly wrapped.
	wrapped := fmt.Errorf("loading ticket: %w", NewNotFound("ticket", nil))
	assert.Equal(t, CodeNotFound, ToDomainError(wrapped).Code)

	// Driver-level empty result maps to not found.
	assert.Equal(t, CodeNotFound, ToDomainError(pgx.ErrNoRows).Code)

	// Anything else is an internal error that keeps its cause.
	cause := errors.New("boom")
	converted := ToDomainError(cause)
	assert.Equal(t, CodeInternal, converted.Code)
	assert.ErrorIs(t, converted, cause)
}

func TestHasCodeOnForeignErrors(t *testing.T) {
	assert.False(t, HasCode(nil, CodeNotFound))
	assert.False(t, HasCode(errors.New("plain"), CodeNotFound))
	assert.False(t, HasCode(NewNotFound("ticket", nil), CodeValidationFailed))
}
