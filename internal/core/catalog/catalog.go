// Package catalog holds the read-mostly registries the generator draws from:
// the item catalog and the user directory.
package catalog

import (
	"context"
	"fmt"
	"sort"

	"github.com/rl1809/store-sim/internal/core/chance"
	"github.com/rl1809/store-sim/internal/core/domain"
	"github.com/rl1809/store-sim/internal/port"
)

// Catalog is immutable after construction. Stock lives in the ledger; the
// catalog only knows names and prices.
type Catalog struct {
	items  map[domain.ItemID]domain.Item
	ids    []domain.ItemID
	ledger port.StockLedger
	rng    chance.Source
}

func New(items []domain.Item, ledger port.StockLedger, rng chance.Source) (*Catalog, error) {
	c := &Catalog{
		items:  make(map[domain.ItemID]domain.Item, len(items)),
		ledger: ledger,
		rng:    rng,
	}
	for _, it := range items {
		if _, dup := c.items[it.ID]; dup {
			return nil, domain.Inconsistent("duplicate item id %d", it.ID)
		}
		if it.Price.IsNegative() {
			return nil, fmt.Errorf("item %d: negative price %s: %w", it.ID, it.Price, domain.ErrInvalidAmount)
		}
		c.items[it.ID] = it
		c.ids = append(c.ids, it.ID)
	}
	sort.Slice(c.ids, func(i, j int) bool { return c.ids[i] < c.ids[j] })
	return c, nil
}

func (c *Catalog) Item(id domain.ItemID) (domain.Item, error) {
	it, ok := c.items[id]
	if !ok {
		return domain.Item{}, &domain.UnknownItemError{ItemID: id}
	}
	return it, nil
}

// Items returns the catalog in ID order. Stock fields reflect load time.
func (c *Catalog) Items() []domain.Item {
	out := make([]domain.Item, 0, len(c.ids))
	for _, id := range c.ids {
		out = append(out, c.items[id])
	}
	return out
}

func (c *Catalog) Len() int {
	return len(c.ids)
}

// SellableItems returns the items currently holding stock.
func (c *Catalog) SellableItems(ctx context.Context) ([]domain.ItemID, error) {
	return c.ledger.ItemsWithStock(ctx)
}

func (c *Catalog) RandomItemWithStock(ctx context.Context) (domain.ItemID, error) {
	ids, err := c.SellableItems(ctx)
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, domain.ErrNoStockAvailable
	}
	return chance.Pick(c.rng, ids), nil
}
