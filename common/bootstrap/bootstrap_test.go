package bootstrap

import (
	"context"
	"testing"

	"github.com/adamstavely/cautious-lamp-sub001/common/config"
	"github.com/adamstavely/cautious-lamp-sub001/common/logger"
	"github.com/adamstavely/cautious-lamp-sub001/common/queue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetup_MemoryBackends(t *testing.T) {
	ctx := context.Background()

	cfg, err := config.Load("request-engine")
	require.NoError(t, err)
	cfg.Storage.Backend = "memory"
	cfg.Events.Backend = "memory"

	components, err := Setup(ctx, "request-engine",
		WithCustomConfig(cfg),
		WithCustomLogger(logger.Discard()),
		WithoutTelemetry(),
	)
	require.NoError(t, err)

	assert.Nil(t, components.DB)
	assert.Nil(t, components.Redis)
	require.NotNil(t, components.Queue)
	assert.IsType(t, &queue.MemoryQueue{}, components.Queue)
	assert.NoError(t, components.Health(ctx))

	require.NoError(t, components.Shutdown(ctx))
	assert.ErrorIs(t, components.Queue.Publish(ctx, "t", "k", nil), queue.ErrClosed)
}

func TestSetup_WithoutQueue(t *testing.T) {
	ctx := context.Background()

	cfg, err := config.Load("request-engine")
	require.NoError(t, err)

	components, err := Setup(ctx, "request-engine",
		WithCustomConfig(cfg),
		WithCustomLogger(logger.Discard()),
		WithoutQueue(),
		WithoutTelemetry(),
		WithoutDB(),
	)
	require.NoError(t, err)
	assert.Nil(t, components.Queue)
	require.NoError(t, components.Shutdown(ctx))
}
