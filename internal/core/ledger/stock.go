// Package ledger holds the authoritative in-memory stock counters, the
// append-only journal of recorded orders and the identifier sequencer.
package ledger

import (
	"context"
	"sort"
	"sync"

	"github.com/rl1809/store-sim/internal/core/domain"
)

type stockCell struct {
	mu    sync.Mutex
	stock int
}

// Stock is an in-memory StockLedger. Each item has its own mutex, so
// reservations on different items never contend. The item set is fixed at
// construction; only counters change afterwards.
type Stock struct {
	cells map[domain.ItemID]*stockCell
	ids   []domain.ItemID
}

func NewStock(items []domain.Item) (*Stock, error) {
	s := &Stock{
		cells: make(map[domain.ItemID]*stockCell, len(items)),
		ids:   make([]domain.ItemID, 0, len(items)),
	}
	for _, it := range items {
		if _, dup := s.cells[it.ID]; dup {
			return nil, domain.Inconsistent("duplicate item id %d", it.ID)
		}
		if it.Stock < 0 {
			return nil, domain.Inconsistent("item %d loaded with negative stock %d", it.ID, it.Stock)
		}
		s.cells[it.ID] = &stockCell{stock: it.Stock}
		s.ids = append(s.ids, it.ID)
	}
	sort.Slice(s.ids, func(i, j int) bool { return s.ids[i] < s.ids[j] })
	return s, nil
}

func (s *Stock) cell(id domain.ItemID) (*stockCell, error) {
	c, ok := s.cells[id]
	if !ok {
		return nil, &domain.UnknownItemError{ItemID: id}
	}
	return c, nil
}

func (s *Stock) Reserve(_ context.Context, id domain.ItemID, desired int) (int, error) {
	c, err := s.cell(id)
	if err != nil {
		return 0, err
	}
	if desired <= 0 {
		return 0, &domain.InvalidAmountError{ItemID: id, Amount: desired}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stock < 0 {
		return 0, domain.Inconsistent("item %d has negative stock %d", id, c.stock)
	}
	actual := min(desired, c.stock)
	c.stock -= actual
	return actual, nil
}

func (s *Stock) Release(_ context.Context, id domain.ItemID, quantity int) error {
	return s.add(id, quantity)
}

func (s *Stock) Replenish(_ context.Context, id domain.ItemID, amount int) error {
	return s.add(id, amount)
}

func (s *Stock) add(id domain.ItemID, amount int) error {
	c, err := s.cell(id)
	if err != nil {
		return err
	}
	if amount <= 0 {
		return &domain.InvalidAmountError{ItemID: id, Amount: amount}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.stock += amount
	return nil
}

func (s *Stock) StockOf(_ context.Context, id domain.ItemID) (int, error) {
	c, err := s.cell(id)
	if err != nil {
		return 0, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stock, nil
}

func (s *Stock) ItemsWithStock(_ context.Context) ([]domain.ItemID, error) {
	return s.filter(func(n int) bool { return n > 0 }), nil
}

func (s *Stock) ItemsWithZeroStock(_ context.Context) ([]domain.ItemID, error) {
	return s.filter(func(n int) bool { return n == 0 }), nil
}

// Snapshot returns every counter. Counters are read one at a time, so the
// result is consistent per item, not across items.
func (s *Stock) Snapshot() map[domain.ItemID]int {
	out := make(map[domain.ItemID]int, len(s.ids))
	for _, id := range s.ids {
		c := s.cells[id]
		c.mu.Lock()
		out[id] = c.stock
		c.mu.Unlock()
	}
	return out
}

func (s *Stock) filter(keep func(int) bool) []domain.ItemID {
	var out []domain.ItemID
	for _, id := range s.ids {
		c := s.cells[id]
		c.mu.Lock()
		n := c.stock
		c.mu.Unlock()
		if keep(n) {
			out = append(out, id)
		}
	}
	return out
}
