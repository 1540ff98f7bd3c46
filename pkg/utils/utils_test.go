package utils

import (
	"context"
	"testing"

	"golang-news-aggregator/pkg/logger"

	"github.com/stretchr/testify/assert"
)

func TestCleanToValidUTF8(t *testing.T) {
	assert.Equal(t, "hello", CleanToValidUTF8("hello"))
	assert.Equal(t, "ab", CleanToValidUTF8("a\x00b"))
	assert.Equal(t, "ab", CleanToValidUTF8("a\xffb"))
}

func TestShouldContinue(t *testing.T) {
	log := logger.NewNop()
	assert.True(t, ShouldContinue(context.Background(), log))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, ShouldContinue(ctx, log))
}
