package apperrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassification(t *testing.T) {
	transient := NewTransient("summarize", "rate limited", nil)
	persistent := NewPersistent("tag", "malformed output", nil)

	assert.True(t, IsTransient(transient))
	assert.False(t, IsPersistent(transient))
	assert.True(t, IsPersistent(persistent))
	assert.False(t, IsTransient(persistent))
}

func TestUnclassifiedErrorsAreTransient(t *testing.T) {
	err := errors.New("connection reset by peer")
	assert.True(t, IsTransient(err))
	assert.False(t, IsPersistent(err))
}

func TestClassificationSurvivesWrapping(t *testing.T) {
	wrapped := fmt.Errorf("stage failed: %w", NewPersistent("summarize", "rejected", nil))
	assert.True(t, IsPersistent(wrapped))
}

func TestProcessingErrorUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := NewTransient("summarize", "downstream error", cause)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "summarize")
	assert.Contains(t, err.Error(), "downstream error")
}
