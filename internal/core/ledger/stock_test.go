package ledger

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/store-sim/internal/core/domain"
)

func items(stocks ...int) []domain.Item {
	out := make([]domain.Item, len(stocks))
	for i, s := range stocks {
		out[i] = domain.Item{ID: domain.ItemID(i + 1), Name: "item", Price: decimal.NewFromInt(1), Stock: s}
	}
	return out
}

func newStock(t *testing.T, stocks ...int) *Stock {
	t.Helper()
	s, err := NewStock(items(stocks...))
	require.NoError(t, err)
	return s
}

func TestNewStock_RejectsBadCatalog(t *testing.T) {
	_, err := NewStock(append(items(1), domain.Item{ID: 1}))
	assert.ErrorIs(t, err, domain.ErrInconsistentState)

	_, err = NewStock(items(-1))
	assert.ErrorIs(t, err, domain.ErrInconsistentState)
}

func TestReserve_ClampsToAvailable(t *testing.T) {
	s := newStock(t, 5)
	ctx := context.Background()

	taken, err := s.Reserve(ctx, 1, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, taken)

	taken, err = s.Reserve(ctx, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, taken)

	taken, err = s.Reserve(ctx, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, taken)

	stock, err := s.StockOf(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, stock)
}

func TestReserve_Errors(t *testing.T) {
	s := newStock(t, 5)
	ctx := context.Background()

	_, err := s.Reserve(ctx, 9, 1)
	var unknown *domain.UnknownItemError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, domain.ItemID(9), unknown.ItemID)

	_, err = s.Reserve(ctx, 1, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	s.cells[1].stock = -2
	_, err = s.Reserve(ctx, 1, 1)
	assert.ErrorIs(t, err, domain.ErrInconsistentState)
}

func TestReleaseAndReplenish(t *testing.T) {
	s := newStock(t, 0, 4)
	ctx := context.Background()

	require.NoError(t, s.Replenish(ctx, 1, 7))
	require.NoError(t, s.Release(ctx, 2, 1))
	assert.ErrorIs(t, s.Replenish(ctx, 1, 0), domain.ErrInvalidAmount)
	assert.ErrorIs(t, s.Release(ctx, 3, 1), domain.ErrUnknownItem)

	assert.Equal(t, map[domain.ItemID]int{1: 7, 2: 5}, s.Snapshot())
}

func TestItemsWithStock(t *testing.T) {
	s := newStock(t, 3, 0, 1, 0)
	ctx := context.Background()

	with, err := s.ItemsWithStock(ctx)
	require.NoError(t, err)
	assert.Equal(t, []domain.ItemID{1, 3}, with)

	zero, err := s.ItemsWithZeroStock(ctx)
	require.NoError(t, err)
	assert.Equal(t, []domain.ItemID{2, 4}, zero)
}

func TestReserve_ConcurrentNeverOversells(t *testing.T) {
	const initial = 100
	s := newStock(t, initial)
	ctx := context.Background()

	var wg sync.WaitGroup
	var sold atomic.Int64
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				taken, err := s.Reserve(ctx, 1, 1+j%3)
				if err != nil {
					t.Errorf("reserve: %v", err)
					return
				}
				sold.Add(int64(taken))
			}
		}()
	}
	wg.Wait()

	stock, err := s.StockOf(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, stock)
	assert.Equal(t, int64(initial), sold.Load())
}
