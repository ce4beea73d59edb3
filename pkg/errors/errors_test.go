package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorFormatting(t *testing.T) {
	err := NewError(ErrCodeQueryFailed, "query failed")
	assert.Equal(t, "QUERY_FAILED: query failed", err.Error())

	err = err.WithComponent("query")
	assert.Equal(t, "[query] QUERY_FAILED: query failed", err.Error())

	err = err.WithOperation("execute")
	assert.Equal(t, "[query:execute] QUERY_FAILED: query failed", err.Error())
}

func TestCategories(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want ErrorCategory
	}{
		{ErrCodeInvalidConfig, CategoryConfiguration},
		{ErrCodeConfigValidation, CategoryConfiguration},
		{ErrCodeUnknownServer, CategoryConnection},
		{ErrCodeConnectionTimeout, CategoryConnection},
		{ErrCodeQueryFailed, CategoryQuery},
		{ErrCodeResponseInvalid, CategoryQuery},
		{ErrCodeMountFailed, CategoryFilesystem},
		{ErrCodePathInvalid, CategoryFilesystem},
		{ErrCodeSeedFailed, CategoryFilesystem},
		{ErrCodeBackingStore, CategoryFilesystem},
		{ErrCodeInternalError, CategoryInternal},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, GetCategory(tt.code), "code %s", tt.code)
	}
}

func TestWrapAndUnwrap(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := Wrap(ErrCodeConnectionFailed, "connecting", cause)

	assert.Equal(t, cause, err.Unwrap())
	assert.True(t, stderrors.Is(err, cause))
}

func TestIsMatchesByCode(t *testing.T) {
	err := NewError(ErrCodeQueryTimeout, "slow query")
	target := NewError(ErrCodeQueryTimeout, "different message")

	assert.True(t, stderrors.Is(err, target))
	assert.False(t, stderrors.Is(err, NewError(ErrCodeQueryFailed, "x")))
}

func TestHasCode(t *testing.T) {
	inner := NewError(ErrCodeQueryTimeout, "deadline hit")
	outer := fmt.Errorf("materializing view: %w", inner)

	assert.True(t, HasCode(outer, ErrCodeQueryTimeout))
	assert.False(t, HasCode(outer, ErrCodeQueryFailed))
	assert.False(t, HasCode(nil, ErrCodeQueryFailed))
}

func TestWithContext(t *testing.T) {
	err := NewError(ErrCodeBackingStore, "write failed").
		WithContext("path", "/dump/prod/tables")

	assert.Equal(t, "/dump/prod/tables", err.Context["path"])
}
