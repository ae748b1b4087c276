package service

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/rl1809/store-sim/internal/core/catalog"
	"github.com/rl1809/store-sim/internal/core/chance"
	"github.com/rl1809/store-sim/internal/core/domain"
	"github.com/rl1809/store-sim/internal/core/ledger"
	"github.com/rl1809/store-sim/internal/port"
)

// LedgerFactory builds the stock ledger from the loaded catalog.
type LedgerFactory func(ctx context.Context, items []domain.Item) (port.StockLedger, error)

func MemoryLedger(_ context.Context, items []domain.Item) (port.StockLedger, error) {
	return ledger.NewStock(items)
}

type EngineConfig struct {
	Seed       uint64
	Simulation Config
	Names      NamePools
	MaxRestock int
}

type engineOptions struct {
	ledger    LedgerFactory
	rng       chance.Source
	publisher port.EventPublisher
	observer  port.Observer
	sink      io.Writer
	logger    *zap.Logger
	now       func() time.Time
}

type EngineOption func(*engineOptions)

func WithLedger(f LedgerFactory) EngineOption {
	return func(o *engineOptions) { o.ledger = f }
}

func WithRandom(src chance.Source) EngineOption {
	return func(o *engineOptions) { o.rng = src }
}

func WithPublisher(p port.EventPublisher) EngineOption {
	return func(o *engineOptions) { o.publisher = p }
}

func WithObserver(obs port.Observer) EngineOption {
	return func(o *engineOptions) { o.observer = obs }
}

func WithReportSink(w io.Writer) EngineOption {
	return func(o *engineOptions) { o.sink = w }
}

func WithLogger(l *zap.Logger) EngineOption {
	return func(o *engineOptions) { o.logger = l }
}

func WithClock(now func() time.Time) EngineOption {
	return func(o *engineOptions) { o.now = now }
}

// Engine is the explicitly constructed simulation: every shared object
// lives here instead of in package state.
type Engine struct {
	Catalog   *catalog.Catalog
	Users     *catalog.Directory
	Ledger    port.StockLedger
	Journal   *ledger.Journal
	Sequencer *ledger.Sequencer
	Generator *Generator
	Restock   *RestockPolicy
	Reporter  *Reporter
	Simulator *Simulator
	Gateway   port.PersistenceGateway
}

// NewEngine loads catalog, users and the historical log through the gateway
// and assembles the simulation around them.
func NewEngine(ctx context.Context, gw port.PersistenceGateway, cfg EngineConfig, opts ...EngineOption) (*Engine, error) {
	o := engineOptions{
		ledger: MemoryLedger,
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.rng == nil {
		o.rng = chance.New(cfg.Seed)
	}

	items, err := gw.LoadCatalog(ctx)
	if err != nil {
		return nil, domain.Persistence("load_catalog", err)
	}
	users, err := gw.LoadUsers(ctx)
	if err != nil {
		return nil, domain.Persistence("load_users", err)
	}
	history, err := gw.LoadTransactions(ctx)
	if err != nil {
		return nil, domain.Persistence("load_transactions", err)
	}

	stock, err := o.ledger(ctx, items)
	if err != nil {
		return nil, fmt.Errorf("build ledger: %w", err)
	}
	cat, err := catalog.New(items, stock, o.rng)
	if err != nil {
		return nil, err
	}
	dir, err := catalog.NewDirectory(users, o.rng)
	if err != nil {
		return nil, err
	}

	journal := ledger.NewJournal()
	for _, order := range history {
		for _, l := range order.Lines {
			if _, err := cat.Item(l.ItemID); err != nil {
				return nil, fmt.Errorf("historical line %d: %w", l.ID, err)
			}
		}
		if err := journal.Append(order); err != nil {
			return nil, err
		}
	}
	lastTx, lastLine := journal.LastIDs()
	seq := ledger.NewSequencer(lastTx, lastLine)
	journal.Follow(lastTx + 1)

	gen := NewGenerator(cat, dir, stock, seq, o.rng, cfg.Names, o.now, o.logger.Named("generator"))
	restock := NewRestockPolicy(stock, o.rng, cfg.MaxRestock, o.logger.Named("restock"))
	reporter := NewReporter(cat, stock, journal, o.now)
	sim := NewSimulator(SimulatorDeps{
		Generator:  gen,
		Restock:    restock,
		Reporter:   reporter,
		Ledger:     stock,
		Journal:    journal,
		Gateway:    gw,
		Publisher:  o.publisher,
		Observer:   o.observer,
		ReportSink: o.sink,
		Logger:     o.logger.Named("simulator"),
		Now:        o.now,
	}, cfg.Simulation)

	o.logger.Info("engine ready",
		zap.Int("items", cat.Len()),
		zap.Int("users", dir.Len()),
		zap.Int("historical_transactions", journal.Len()))

	return &Engine{
		Catalog:   cat,
		Users:     dir,
		Ledger:    stock,
		Journal:   journal,
		Sequencer: seq,
		Generator: gen,
		Restock:   restock,
		Reporter:  reporter,
		Simulator: sim,
		Gateway:   gw,
	}, nil
}

// Replenish is the manual restock entry point used by the ops surfaces.
// It goes through the same ledger contract and mirrors the new counter.
func (e *Engine) Replenish(ctx context.Context, id domain.ItemID, amount int) (int, error) {
	if err := e.Ledger.Replenish(ctx, id, amount); err != nil {
		return 0, err
	}
	if err := e.Simulator.syncStock(ctx, []domain.ItemID{id}); err != nil {
		return 0, err
	}
	return e.Ledger.StockOf(ctx, id)
}
