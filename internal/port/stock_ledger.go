package port

import (
	"context"

	"github.com/rl1809/store-sim/internal/core/domain"
)

type StockLedger interface {
	// Reserve atomically takes min(desired, available) units and returns the
	// amount taken. Zero means the item is sold out; nothing is mutated then.
	Reserve(ctx context.Context, itemID domain.ItemID, desired int) (int, error)

	// Release returns units of a reservation that could not be recorded.
	Release(ctx context.Context, itemID domain.ItemID, quantity int) error

	// Replenish adds amount units; amount must be positive.
	Replenish(ctx context.Context, itemID domain.ItemID, amount int) error

	StockOf(ctx context.Context, itemID domain.ItemID) (int, error)

	// ItemsWithStock and ItemsWithZeroStock are point-in-time snapshots,
	// ordered by item ID.
	ItemsWithStock(ctx context.Context) ([]domain.ItemID, error)
	ItemsWithZeroStock(ctx context.Context) ([]domain.ItemID, error)
}
