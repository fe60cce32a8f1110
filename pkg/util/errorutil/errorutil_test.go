package errorutil

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToDomainError_PassesThroughWrapped(t *testing.T) {
	base := NewConflict("already sent", map[string]any{"to_id": "u2"})
	wrapped := fmt.Errorf("send request: %w", base)

	de := ToDomainError(wrapped)
	require.NotNil(t, de)
	assert.Equal(t, "CONFLICT", de.Code)
	assert.Equal(t, http.StatusConflict, de.HTTPStatus)
	assert.Equal(t, "u2", de.Details["to_id"])
}

func TestToDomainError_FiberError(t *testing.T) {
	de := ToDomainError(fiber.NewError(http.StatusForbidden, "insufficient role"))
	assert.Equal(t, http.StatusForbidden, de.HTTPStatus)
	assert.Equal(t, "insufficient role", de.Message)
}

func TestToDomainError_UnknownBecomesInternal(t *testing.T) {
	de := ToDomainError(errors.New("boom"))
	assert.Equal(t, "INTERNAL_ERROR", de.Code)
	assert.Equal(t, http.StatusInternalServerError, de.HTTPStatus)
	assert.Nil(t, ToDomainError(nil))
	assert.NoError(t, MapError(nil))
}

func TestNewIllegalTransition_CarriesStatus(t *testing.T) {
	err := NewIllegalTransition("verified", "assign", nil)
	assert.True(t, Is(err, "ILLEGAL_TRANSITION"))
	assert.Contains(t, err.Error(), "verified")

	de := ToDomainError(err)
	assert.Equal(t, "verified", de.Details["current_status"])
	assert.False(t, Is(errors.New("x"), "ILLEGAL_TRANSITION"))
}
