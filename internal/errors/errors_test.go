package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppErrorError(t *testing.T) {
	withCause := Statement("insert failed", stderrors.New("boom"))
	assert.Equal(t, "insert failed: boom", withCause.Error())

	withoutCause := Validation("order_id is required")
	assert.Equal(t, "order_id is required", withoutCause.Error())
}

func TestAppErrorUnwrap(t *testing.T) {
	cause := stderrors.New("connection refused")
	err := StoreUnavailable("database is unreachable", cause)

	assert.True(t, stderrors.Is(err, cause))

	var appErr *AppError
	require.True(t, stderrors.As(err, &appErr))
	assert.Equal(t, ErrCodeStoreUnavailable, appErr.Code)
}

func TestCodeOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCode
	}{
		{"nil error", nil, ""},
		{"direct app error", Statement("x", nil), ErrCodeStatement},
		{"wrapped app error", fmt.Errorf("task: %w", Timeout("t", nil)), ErrCodeTimeout},
		{"plain error", stderrors.New("plain"), ErrCodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CodeOf(tt.err))
		})
	}
}

func TestIs(t *testing.T) {
	err := fmt.Errorf("run task: %w", TaskFailure("work failed", stderrors.New("smtp down")))
	assert.True(t, Is(err, ErrCodeTaskFailure))
	assert.False(t, Is(err, ErrCodeTimeout))
}
