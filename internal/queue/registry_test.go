package queue

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lodeworks/lode/internal/errors"
	"github.com/lodeworks/lode/internal/interfaces"
)

func noopHandler(context.Context, interfaces.Task) error { return nil }

func TestTaskRegistryRegisterResolve(t *testing.T) {
	r := NewTaskRegistry()

	require.NoError(t, r.Register("index.fetch", noopHandler))

	handler, err := r.Resolve("index.fetch")
	require.NoError(t, err)
	assert.NotNil(t, handler)
}

func TestTaskRegistryRejectsDuplicates(t *testing.T) {
	r := NewTaskRegistry()

	require.NoError(t, r.Register("index.fetch", noopHandler))
	err := r.Register("index.fetch", noopHandler)
	require.Error(t, err)

	var lodeErr *errors.LodeError
	require.True(t, errors.As(err, &lodeErr))
	assert.Equal(t, errors.ErrCodeTaskDuplicate, lodeErr.Code)
}

func TestTaskRegistryValidation(t *testing.T) {
	r := NewTaskRegistry()

	assert.Error(t, r.Register("", noopHandler), "empty name should be rejected")
	assert.Error(t, r.Register("task", nil), "nil handler should be rejected")
}

func TestTaskRegistryResolveUnknown(t *testing.T) {
	r := NewTaskRegistry()

	_, err := r.Resolve("ghost")
	require.Error(t, err)

	var lodeErr *errors.LodeError
	require.True(t, errors.As(err, &lodeErr))
	assert.Equal(t, errors.ErrCodeTaskUnknown, lodeErr.Code)
}

func TestTaskRegistryNamesSorted(t *testing.T) {
	r := NewTaskRegistry()

	require.NoError(t, r.Register("zeta", noopHandler))
	require.NoError(t, r.Register("alpha", noopHandler))
	require.NoError(t, r.Register("mid", noopHandler))

	assert.Equal(t, []string{"alpha", "mid", "zeta"}, r.Names())
}
