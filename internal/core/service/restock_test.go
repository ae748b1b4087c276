package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/rl1809/store-sim/internal/core/chance"
	"github.com/rl1809/store-sim/internal/core/domain"
	"github.com/rl1809/store-sim/internal/core/ledger"
)

func TestRestockPolicy_ScriptedSubset(t *testing.T) {
	stock, err := ledger.NewStock([]domain.Item{
		item(1, "Milk", "2.50", 0),
		item(2, "Eggs", "1.75", 5),
		item(3, "Bread", "3.00", 0),
	})
	require.NoError(t, err)

	// two items, shuffle picks item 3 first, amounts 100 and 1
	rng := chance.NewScripted(2, 1, 0, 99, 0)
	got, err := NewRestockPolicy(stock, rng, 0, nil).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []Restock{{ItemID: 3, Amount: 100}, {ItemID: 1, Amount: 1}}, got)
	assert.Equal(t, map[domain.ItemID]int{1: 1, 2: 5, 3: 100}, stock.Snapshot())
}

func TestRestockPolicy_MayRestockNothing(t *testing.T) {
	stock, err := ledger.NewStock([]domain.Item{item(1, "Milk", "2.50", 0)})
	require.NoError(t, err)

	got, err := NewRestockPolicy(stock, chance.NewScripted(0), 10, nil).Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, map[domain.ItemID]int{1: 0}, stock.Snapshot())
}

func TestRestockPolicy_NothingSoldOut(t *testing.T) {
	stock, err := ledger.NewStock([]domain.Item{item(1, "Milk", "2.50", 3)})
	require.NoError(t, err)

	rng := chance.NewScripted(7)
	got, err := NewRestockPolicy(stock, rng, 10, nil).Run(context.Background())
	require.NoError(t, err)
	assert.Nil(t, got)

	// the draw was not consumed
	assert.Equal(t, 7, rng.IntN(100))
}

func TestRestockPolicy_OnlyRaisesSoldOutItems(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		stocks := rapid.SliceOfN(rapid.IntRange(0, 3), 1, 8).Draw(rt, "stocks")
		maxAmount := rapid.IntRange(1, 50).Draw(rt, "max")
		seed := rapid.Uint64().Draw(rt, "seed")

		items := make([]domain.Item, len(stocks))
		for i, s := range stocks {
			items[i] = item(int64(i+1), "item", "1.00", s)
		}
		stock, err := ledger.NewStock(items)
		require.NoError(rt, err)
		before := stock.Snapshot()

		got, err := NewRestockPolicy(stock, chance.New(seed), maxAmount, nil).Run(context.Background())
		require.NoError(rt, err)

		after := stock.Snapshot()
		restocked := make(map[domain.ItemID]int)
		for _, r := range got {
			_, dup := restocked[r.ItemID]
			require.False(rt, dup, "item %d restocked twice", r.ItemID)
			require.Zero(rt, before[r.ItemID], "item %d was not sold out", r.ItemID)
			require.True(rt, r.Amount >= 1 && r.Amount <= maxAmount, "amount %d", r.Amount)
			restocked[r.ItemID] = r.Amount
		}
		for id, was := range before {
			require.Equal(rt, was+restocked[id], after[id], "item %d", id)
		}
	})
}
