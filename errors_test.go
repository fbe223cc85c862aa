package rpreporter

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRuntimeError(t *testing.T) {
	cause := errors.New("event log truncated")
	err := NewRuntimeError(cause)

	assert.Equal(t, "runtime error: event log truncated", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.True(t, IsRuntimeError(err))
	assert.True(t, IsRuntimeError(fmt.Errorf("failed to start: %w", err)))
	assert.False(t, IsRuntimeError(cause))
	assert.False(t, IsRuntimeError(nil))
	assert.False(t, IsTestFailureError(err))
}

func TestTestFailureError(t *testing.T) {
	err := NewTestFailureError("launch finished FAILED")

	assert.Equal(t, "test failure: launch finished FAILED", err.Error())
	assert.True(t, IsTestFailureError(err))
	assert.True(t, IsTestFailureError(fmt.Errorf("wrapped: %w", err)))
	assert.False(t, IsTestFailureError(errors.New("launch finished FAILED")))
	assert.False(t, IsTestFailureError(nil))
	assert.False(t, IsRuntimeError(err))
}
