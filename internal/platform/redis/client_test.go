package redis

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rechtsbron/internal/platform/config"
)

func TestNew_NotConfigured(t *testing.T) {
	c, err := New(context.Background(), config.RedisConfig{})
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestNew_BadURL(t *testing.T) {
	_, err := New(context.Background(), config.RedisConfig{URL: "mysql://nope"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse redis URL")
}
