package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/store-sim/internal/adapter/storage"
	"github.com/rl1809/store-sim/internal/core/catalog"
	"github.com/rl1809/store-sim/internal/core/chance"
	"github.com/rl1809/store-sim/internal/core/domain"
	"github.com/rl1809/store-sim/internal/core/ledger"
	"github.com/rl1809/store-sim/internal/port"
)

var testNow = time.Date(2024, time.March, 14, 15, 9, 26, 0, time.UTC)

func fixedNow() time.Time { return testNow }

func item(id int64, name, price string, stock int) domain.Item {
	return domain.Item{ID: domain.ItemID(id), Name: name, Price: decimal.RequireFromString(price), Stock: stock}
}

func members(ids ...int64) []domain.User {
	out := make([]domain.User, len(ids))
	for i, id := range ids {
		out[i] = domain.User{ID: domain.UserID(id), Name: "member", MembershipDate: domain.Date(testNow)}
	}
	return out
}

// world wires the core pieces around a single random source so scripted
// draws are consumed in call order.
type world struct {
	catalog *catalog.Catalog
	users   *catalog.Directory
	stock   *ledger.Stock
	journal *ledger.Journal
	seq     *ledger.Sequencer
	rng     chance.Source
}

func newWorld(t *testing.T, rng chance.Source, items []domain.Item, users []domain.User) *world {
	t.Helper()
	stock, err := ledger.NewStock(items)
	require.NoError(t, err)
	cat, err := catalog.New(items, stock, rng)
	require.NoError(t, err)
	dir, err := catalog.NewDirectory(users, rng)
	require.NoError(t, err)
	return &world{
		catalog: cat,
		users:   dir,
		stock:   stock,
		journal: ledger.NewJournal(),
		seq:     ledger.NewSequencer(10, 20),
		rng:     rng,
	}
}

func (w *world) generator(stock port.StockLedger) *Generator {
	if stock == nil {
		stock = w.stock
	}
	return NewGenerator(w.catalog, w.users, stock, w.seq, w.rng, NamePools{}, fixedNow, nil)
}

// newSeededEngine builds an engine over the default grocery seed held in
// memory.
func newSeededEngine(t *testing.T, cfg Config, opts ...EngineOption) (*Engine, *storage.MemoryGateway) {
	t.Helper()
	gw, err := storage.NewMemoryGateway(storage.DefaultSeed(storage.DefaultInitialStock))
	require.NoError(t, err)
	opts = append([]EngineOption{WithClock(fixedNow)}, opts...)
	eng, err := NewEngine(context.Background(), gw, EngineConfig{Seed: 42, Simulation: cfg}, opts...)
	require.NoError(t, err)
	return eng, gw
}

var errStorageDown = errors.New("storage down")

// flakyGateway fails appends while failAppend is set and user inserts while
// failAddUser is set.
type flakyGateway struct {
	port.PersistenceGateway
	failAppend  atomic.Bool
	failAddUser atomic.Bool
}

func (g *flakyGateway) AddUser(ctx context.Context, u domain.User) error {
	if g.failAddUser.Load() {
		return errStorageDown
	}
	return g.PersistenceGateway.AddUser(ctx, u)
}

func (g *flakyGateway) AppendTransaction(ctx context.Context, tx domain.Transaction, lines []domain.PurchaseLine) error {
	if g.failAppend.Load() {
		return errStorageDown
	}
	return g.PersistenceGateway.AppendTransaction(ctx, tx, lines)
}

// failingReserve refuses reservations on one item.
type failingReserve struct {
	port.StockLedger
	item domain.ItemID
}

func (l failingReserve) Reserve(ctx context.Context, id domain.ItemID, desired int) (int, error) {
	if id == l.item {
		return 0, errStorageDown
	}
	return l.StockLedger.Reserve(ctx, id, desired)
}

// tally counts observer callbacks.
type tally struct {
	mu        sync.Mutex
	orders    int
	skipped   map[string]int
	restocked map[domain.ItemID]int
	users     int
	failures  []error
}

func newTally() *tally {
	return &tally{skipped: map[string]int{}, restocked: map[domain.ItemID]int{}}
}

func (t *tally) OrderRecorded(domain.Order) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.orders++
}

func (t *tally) CycleSkipped(reason string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.skipped[reason]++
}

func (t *tally) Restocked(id domain.ItemID, amount int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.restocked[id] += amount
}

func (t *tally) UserAdded(domain.User) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.users++
}

func (t *tally) TickFailed(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failures = append(t.failures, err)
}
