package storage

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rl1809/store-sim/internal/core/domain"
	"github.com/rl1809/store-sim/internal/core/service"
	"github.com/rl1809/store-sim/internal/port"
)

type testEnv struct {
	redis *redis.Client
	db    *SQLGateway
}

func setupTestEnv(t *testing.T) *testEnv {
	rdb := getRedisClient(t)
	t.Cleanup(func() { rdb.Close() })
	gw := getMySQLGateway(t)

	ctx := context.Background()
	for _, table := range []string{"purchases", "transactions", "store_users", "items"} {
		_, err := gw.DB().ExecContext(ctx, "DELETE FROM "+table)
		require.NoError(t, err)
	}
	_, err := gw.SeedIfEmpty(ctx, DefaultSeed(DefaultInitialStock))
	require.NoError(t, err)

	return &testEnv{redis: rdb, db: gw}
}

func TestIntegration_SimulationMirrorsRedisStockIntoMySQL(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	namespace := "integration:" + uuid.NewString() + ":"
	t.Cleanup(func() {
		keys, _ := env.redis.Keys(ctx, namespace+"*").Result()
		if len(keys) > 0 {
			env.redis.Del(ctx, keys...)
		}
	})

	var redisLedger *RedisLedger
	engine, err := service.NewEngine(ctx, env.db, service.EngineConfig{
		Seed:       1,
		Simulation: service.Config{Shoppers: 4, MaxTicks: 200},
	},
		service.WithLogger(zaptest.NewLogger(t)),
		service.WithLedger(func(ctx context.Context, items []domain.Item) (port.StockLedger, error) {
			l, err := NewRedisLedger(ctx, env.redis, namespace, items)
			redisLedger = l
			return l, err
		}),
	)
	require.NoError(t, err)
	require.NoError(t, engine.Simulator.Run(ctx))

	items, err := env.db.LoadCatalog(ctx)
	require.NoError(t, err)
	for _, it := range items {
		stock, err := redisLedger.StockOf(ctx, it.ID)
		require.NoError(t, err)
		assert.Equal(t, stock, it.Stock, "item %d", it.ID)
	}

	var stored int
	require.NoError(t, env.db.DB().GetContext(ctx, &stored, `SELECT COUNT(*) FROM transactions`))
	assert.Equal(t, engine.Journal.Len(), stored)
}

func TestIntegration_ReplayedAppendWritesOnce(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	tx := domain.Transaction{ID: 700000100, UserID: 500000001, Date: time.Now(), PaymentMethod: domain.PaymentCredit}
	lines := []domain.PurchaseLine{{ID: 800000100, TransactionID: tx.ID, ItemID: 300000001, Quantity: 1}}

	require.NoError(t, env.db.AppendTransaction(ctx, tx, lines))
	require.NoError(t, env.db.AppendTransaction(ctx, tx, lines))

	var count int
	require.NoError(t, env.db.DB().GetContext(ctx, &count, `SELECT COUNT(*) FROM purchases WHERE transaction_id = ?`, tx.ID))
	assert.Equal(t, 1, count)
}
