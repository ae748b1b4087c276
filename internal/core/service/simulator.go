package service

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rl1809/store-sim/internal/core/domain"
	"github.com/rl1809/store-sim/internal/core/ledger"
	"github.com/rl1809/store-sim/internal/port"
)

var ErrAlreadyStarted = errors.New("simulation already started")

type State int32

const (
	StateIdle State = iota
	StateRunning
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	}
	return "unknown"
}

type Config struct {
	Interval time.Duration // pause between ticks of one shopper
	Duration time.Duration // zero runs until cancelled or out of ticks
	MaxTicks int64         // zero means no tick budget
	Shoppers int           // concurrent tick loops sharing the ledger
}

type TickResult struct {
	Number     int64
	Order      *domain.Order
	NewUser    *domain.User
	Restocks   []Restock
	Report     domain.Report
	SkipReason string
}

type SimulatorDeps struct {
	Generator  *Generator
	Restock    *RestockPolicy
	Reporter   *Reporter
	Ledger     port.StockLedger
	Journal    *ledger.Journal
	Gateway    port.PersistenceGateway
	Publisher  port.EventPublisher
	Observer   port.Observer
	ReportSink io.Writer
	Logger     *zap.Logger
	Now        func() time.Time
}

type Simulator struct {
	SimulatorDeps
	cfg Config

	state      atomic.Int32
	claimed    atomic.Int64
	completed  atomic.Int64
	lastReport atomic.Pointer[domain.Report]
	sinkMu     sync.Mutex
	syncMu     sync.Mutex
}

func NewSimulator(deps SimulatorDeps, cfg Config) *Simulator {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Observer == nil {
		deps.Observer = nopObserver{}
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if cfg.Shoppers <= 0 {
		cfg.Shoppers = 1
	}
	return &Simulator{SimulatorDeps: deps, cfg: cfg}
}

func (s *Simulator) State() State {
	return State(s.state.Load())
}

// Ticks returns the number of ticks that completed successfully.
func (s *Simulator) Ticks() int64 {
	return s.completed.Load()
}

func (s *Simulator) LastReport() (domain.Report, bool) {
	r := s.lastReport.Load()
	if r == nil {
		return domain.Report{}, false
	}
	return *r, true
}

// Run drives the tick loops until the duration elapses, the tick budget is
// spent, ctx is cancelled or a tick fails. Cancellation is only observed
// between ticks. Stopped is terminal: Run cannot be called again.
func (s *Simulator) Run(ctx context.Context) error {
	if !s.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		return ErrAlreadyStarted
	}
	defer s.state.Store(int32(StateStopped))

	var deadline time.Time
	if s.cfg.Duration > 0 {
		deadline = s.Now().Add(s.cfg.Duration)
	}

	s.Logger.Info("simulation started",
		zap.Int("shoppers", s.cfg.Shoppers),
		zap.Duration("interval", s.cfg.Interval),
		zap.Duration("duration", s.cfg.Duration),
		zap.Int64("max_ticks", s.cfg.MaxTicks))

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < s.cfg.Shoppers; i++ {
		g.Go(func() error {
			return s.shop(gctx, deadline)
		})
	}
	err := g.Wait()

	s.Logger.Info("simulation stopped", zap.Int64("ticks", s.Ticks()), zap.Error(err))
	return err
}

func (s *Simulator) shop(ctx context.Context, deadline time.Time) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		if !deadline.IsZero() && !s.Now().Before(deadline) {
			return nil
		}
		n := s.claimed.Add(1)
		if s.cfg.MaxTicks > 0 && n > s.cfg.MaxTicks {
			return nil
		}

		// An in-flight tick always completes, even if ctx is cancelled meanwhile.
		if _, err := s.tick(context.WithoutCancel(ctx), n); err != nil {
			return err
		}

		if s.cfg.Interval > 0 {
			t := time.NewTimer(s.cfg.Interval)
			select {
			case <-ctx.Done():
				t.Stop()
				return nil
			case <-t.C:
			}
		}
	}
}

// Tick runs a single generate, record, report, restock cycle outside of Run.
func (s *Simulator) Tick(ctx context.Context) (TickResult, error) {
	return s.tick(ctx, s.claimed.Add(1))
}

func (s *Simulator) tick(ctx context.Context, n int64) (TickResult, error) {
	logger := s.Logger.With(zap.Int64("tick", n))
	res := TickResult{Number: n}

	gen, err := s.Generator.Generate(ctx)
	if err != nil {
		return res, s.fail(logger, err)
	}
	res.SkipReason = gen.SkipReason

	if gen.Order != nil {
		if err := s.record(ctx, logger, *gen.Order); err != nil {
			return res, s.fail(logger, err)
		}
		res.Order = gen.Order
	} else {
		logger.Info("cycle skipped", zap.String("reason", gen.SkipReason))
		s.Observer.CycleSkipped(gen.SkipReason)
	}

	if gen.NewUserName != "" {
		user, err := s.Generator.Enroll(gen.NewUserName, func(u domain.User) error {
			if s.Gateway == nil {
				return nil
			}
			return s.Gateway.AddUser(ctx, u)
		})
		if err != nil {
			return res, s.fail(logger, domain.Persistence("add_user", err))
		}
		res.NewUser = &user
		logger.Info("user created",
			zap.Int64("user_id", int64(user.ID)),
			zap.String("name", user.Name))
		s.Observer.UserAdded(user)
	}

	report, err := s.Reporter.Report(ctx)
	if err != nil {
		return res, s.fail(logger, err)
	}
	res.Report = report
	s.lastReport.Store(&report)
	s.render(logger, report)

	restocks, err := s.Restock.Run(ctx)
	res.Restocks = restocks
	if err != nil {
		return res, s.fail(logger, err)
	}
	ids := make([]domain.ItemID, 0, len(restocks))
	for _, r := range restocks {
		ids = append(ids, r.ItemID)
		s.Observer.Restocked(r.ItemID, r.Amount)
	}
	if err := s.syncStock(ctx, ids); err != nil {
		return res, s.fail(logger, err)
	}

	s.completed.Add(1)
	return res, nil
}

// record persists the order, then appends it to the journal. If the gateway
// rejects it the reservations are handed back so the ledger only reflects
// recorded sales, and the transaction ID is abandoned so later orders can
// still become visible.
func (s *Simulator) record(ctx context.Context, logger *zap.Logger, order domain.Order) error {
	tx := order.Transaction
	if s.Gateway != nil {
		if err := s.Gateway.AppendTransaction(ctx, tx, order.Lines); err != nil {
			s.Journal.Abandon(tx.ID)
			return errors.Join(
				domain.Persistence("append_transaction", err),
				s.Generator.release(ctx, order.Lines),
			)
		}
	}
	if err := s.Journal.Append(order); err != nil {
		s.Journal.Abandon(tx.ID)
		return err
	}
	if err := s.syncStock(ctx, order.Touched()); err != nil {
		return err
	}

	logger.Info("transaction recorded",
		zap.Int64("transaction_id", int64(tx.ID)),
		zap.Int64("user_id", int64(tx.UserID)),
		zap.String("payment_method", string(tx.PaymentMethod)),
		zap.Int("lines", len(order.Lines)),
		zap.Int("units", order.TotalQuantity()))

	if s.Publisher != nil {
		if err := s.Publisher.PublishOrderRecorded(ctx, order); err != nil {
			logger.Warn("failed to publish recorded transaction",
				zap.Int64("transaction_id", int64(tx.ID)), zap.Error(err))
		}
	}
	s.Observer.OrderRecorded(order)
	return nil
}

// syncStock mirrors the current ledger counters of ids to the gateway.
// Reads and writes are serialised so the last mirror written for an item
// carries its latest counter.
func (s *Simulator) syncStock(ctx context.Context, ids []domain.ItemID) error {
	if s.Gateway == nil {
		return nil
	}
	s.syncMu.Lock()
	defer s.syncMu.Unlock()
	for _, id := range ids {
		qty, err := s.Ledger.StockOf(ctx, id)
		if err != nil {
			return err
		}
		if err := s.Gateway.UpdateStock(ctx, id, qty); err != nil {
			return domain.Persistence("update_stock", err)
		}
	}
	return nil
}

func (s *Simulator) render(logger *zap.Logger, report domain.Report) {
	if s.ReportSink == nil {
		return
	}
	s.sinkMu.Lock()
	defer s.sinkMu.Unlock()
	if err := report.Render(s.ReportSink); err != nil {
		logger.Warn("failed to render report", zap.Error(err))
	}
}

func (s *Simulator) fail(logger *zap.Logger, err error) error {
	if domain.IsFatal(err) {
		logger.Error("internal consistency fault", zap.Error(err))
	} else {
		logger.Error("tick failed", zap.Error(err))
	}
	s.Observer.TickFailed(err)
	return err
}

type nopObserver struct{}

func (nopObserver) OrderRecorded(domain.Order)   {}
func (nopObserver) CycleSkipped(string)          {}
func (nopObserver) Restocked(domain.ItemID, int) {}
func (nopObserver) UserAdded(domain.User)        {}
func (nopObserver) TickFailed(error)             {}
