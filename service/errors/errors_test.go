package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_IsMatchesCategoryAndCode(t *testing.T) {
	err := NewEntityNotRegistered("User")
	assert.True(t, errors.Is(err, ErrEntityNotRegistered))
	assert.False(t, errors.Is(err, ErrNotFound))

	wrapped := fmt.Errorf("lookup: %w", err)
	assert.True(t, errors.Is(wrapped, ErrEntityNotRegistered))
	assert.Equal(t, CodeEntityNotRegistered, GetCode(wrapped))
	assert.Equal(t, CategoryRegistry, GetCategory(wrapped))
}

func TestError_UnwrapCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewDegraded("Insert", cause)

	assert.True(t, errors.Is(err, cause))
	assert.Contains(t, err.Error(), "OPERATION_DEGRADED")
	assert.Contains(t, err.Error(), "connection refused")
}

func TestError_WithDetailsCopies(t *testing.T) {
	base := NewUnsupported("ListDatabases", "sqlite")
	detailed := base.WithDetails(map[string]interface{}{"dialect": "sqlite"})

	assert.Nil(t, base.Details)
	assert.Equal(t, "sqlite", detailed.Details["dialect"])
	assert.True(t, errors.Is(detailed, ErrUnsupportedOperation))
}

func TestGetCode_PlainError(t *testing.T) {
	assert.Equal(t, "", GetCode(errors.New("plain")))
	assert.Equal(t, Category(""), GetCategory(nil))
}
