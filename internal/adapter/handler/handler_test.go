package handler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rl1809/store-sim/internal/adapter/storage"
	"github.com/rl1809/store-sim/internal/core/service"
)

func newTestEngine(t *testing.T) (*service.Engine, *storage.MemoryGateway) {
	t.Helper()
	gw, err := storage.NewMemoryGateway(storage.DefaultSeed(storage.DefaultInitialStock))
	require.NoError(t, err)

	engine, err := service.NewEngine(context.Background(), gw, service.EngineConfig{Seed: 7},
		service.WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	return engine, gw
}
