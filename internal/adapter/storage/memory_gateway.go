package storage

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/rl1809/store-sim/internal/core/domain"
)

var ErrDuplicateKey = errors.New("duplicate key")

// MemoryGateway keeps the store tables in process. It is the default
// gateway and the reference behaviour the SQL gateway is tested against.
type MemoryGateway struct {
	mu      sync.RWMutex
	items   map[domain.ItemID]domain.Item
	users   map[domain.UserID]domain.User
	orders  []domain.Order
	txIDs   map[domain.TransactionID]string
	lineIDs map[domain.PurchaseLineID]struct{}
}

func NewMemoryGateway(seed Seed) (*MemoryGateway, error) {
	g := &MemoryGateway{
		items:   make(map[domain.ItemID]domain.Item, len(seed.Items)),
		users:   make(map[domain.UserID]domain.User, len(seed.Users)),
		txIDs:   make(map[domain.TransactionID]string),
		lineIDs: make(map[domain.PurchaseLineID]struct{}),
	}
	for _, it := range seed.Items {
		if _, ok := g.items[it.ID]; ok {
			return nil, fmt.Errorf("item %d: %w", it.ID, ErrDuplicateKey)
		}
		g.items[it.ID] = it
	}
	for _, u := range seed.Users {
		if _, ok := g.users[u.ID]; ok {
			return nil, fmt.Errorf("user %d: %w", u.ID, ErrDuplicateKey)
		}
		g.users[u.ID] = u
	}
	for _, o := range seed.Orders {
		if err := g.append(o.Transaction, o.Lines); err != nil {
			return nil, err
		}
	}
	return g, nil
}

func (g *MemoryGateway) LoadCatalog(_ context.Context) ([]domain.Item, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	items := make([]domain.Item, 0, len(g.items))
	for _, it := range g.items {
		items = append(items, it)
	}
	slices.SortFunc(items, func(a, b domain.Item) int { return cmp.Compare(a.ID, b.ID) })
	return items, nil
}

func (g *MemoryGateway) LoadUsers(_ context.Context) ([]domain.User, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	users := make([]domain.User, 0, len(g.users))
	for _, u := range g.users {
		users = append(users, u)
	}
	slices.SortFunc(users, func(a, b domain.User) int { return cmp.Compare(a.ID, b.ID) })
	return users, nil
}

func (g *MemoryGateway) LoadTransactions(_ context.Context) ([]domain.Order, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	orders := make([]domain.Order, len(g.orders))
	for i, o := range g.orders {
		orders[i] = domain.Order{Transaction: o.Transaction, Lines: slices.Clone(o.Lines)}
	}
	slices.SortFunc(orders, func(a, b domain.Order) int {
		return cmp.Compare(a.Transaction.ID, b.Transaction.ID)
	})
	return orders, nil
}

func (g *MemoryGateway) AppendTransaction(_ context.Context, tx domain.Transaction, lines []domain.PurchaseLine) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.append(tx, lines)
}

// append validates the whole transaction before mutating anything. An
// identical transaction that is already stored is a replay and succeeds.
func (g *MemoryGateway) append(tx domain.Transaction, lines []domain.PurchaseLine) error {
	reqID := requestID(tx, lines)
	if stored, ok := g.txIDs[tx.ID]; ok {
		if stored == reqID {
			return nil
		}
		return fmt.Errorf("transaction %d: %w", tx.ID, ErrDuplicateKey)
	}
	seen := make(map[domain.PurchaseLineID]struct{}, len(lines))
	for _, l := range lines {
		if _, ok := g.lineIDs[l.ID]; ok {
			return fmt.Errorf("purchase %d: %w", l.ID, ErrDuplicateKey)
		}
		if _, ok := seen[l.ID]; ok {
			return fmt.Errorf("purchase %d: %w", l.ID, ErrDuplicateKey)
		}
		seen[l.ID] = struct{}{}
		if _, ok := g.items[l.ItemID]; !ok {
			return &domain.UnknownItemError{ItemID: l.ItemID}
		}
		if l.TransactionID != tx.ID {
			return fmt.Errorf("purchase %d belongs to transaction %d, not %d", l.ID, l.TransactionID, tx.ID)
		}
	}

	g.txIDs[tx.ID] = reqID
	for id := range seen {
		g.lineIDs[id] = struct{}{}
	}
	g.orders = append(g.orders, domain.Order{Transaction: tx, Lines: slices.Clone(lines)})
	return nil
}

func (g *MemoryGateway) UpdateStock(_ context.Context, itemID domain.ItemID, quantity int) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	it, ok := g.items[itemID]
	if !ok {
		return &domain.UnknownItemError{ItemID: itemID}
	}
	if quantity < 0 {
		return &domain.InvalidAmountError{ItemID: itemID, Amount: quantity}
	}
	it.Stock = quantity
	g.items[itemID] = it
	return nil
}

func (g *MemoryGateway) AddUser(_ context.Context, user domain.User) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.users[user.ID]; ok {
		return fmt.Errorf("user %d: %w", user.ID, ErrDuplicateKey)
	}
	g.users[user.ID] = user
	return nil
}

// QueryReportRows aggregates the stored purchase lines the same way the SQL
// report query does.
func (g *MemoryGateway) QueryReportRows(_ context.Context) ([]domain.ReportRow, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	byItem := make(map[domain.ItemID]*domain.ReportRow)
	for _, o := range g.orders {
		for _, l := range o.Lines {
			it := g.items[l.ItemID]
			row, ok := byItem[l.ItemID]
			if !ok {
				row = &domain.ReportRow{ItemID: it.ID, ItemName: it.Name, Stock: it.Stock}
				byItem[l.ItemID] = row
			}
			row.TotalQuantity += l.Quantity
			row.TotalRevenue = row.TotalRevenue.Add(it.Price.Mul(decimal.NewFromInt(int64(l.Quantity))))
		}
	}

	rows := make([]domain.ReportRow, 0, len(byItem))
	for _, r := range byItem {
		rows = append(rows, *r)
	}
	domain.SortReportRows(rows)
	return rows, nil
}
