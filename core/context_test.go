package core

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSuppressHeader(t *testing.T) {
	ctx := context.Background()
	assert.False(t, shouldSuppressHeader(ctx))
	assert.True(t, shouldSuppressHeader(withSuppressHeader(ctx)))
}

func TestRunID(t *testing.T) {
	ctx := context.Background()
	_, ok := getRunID(ctx)
	assert.False(t, ok)

	_, ok = getRunID(withRunID(ctx, ""))
	assert.False(t, ok)

	id, ok := getRunID(withRunID(ctx, "run-1"))
	assert.True(t, ok)
	assert.Equal(t, "run-1", id)
}
