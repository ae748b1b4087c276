package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/rl1809/store-sim/internal/core/chance"
	"github.com/rl1809/store-sim/internal/core/domain"
	"github.com/rl1809/store-sim/internal/port"
)

const DefaultMaxRestock = 1000

type Restock struct {
	ItemID domain.ItemID
	Amount int
}

// RestockPolicy refills a random subset of sold-out items. The subset size
// is drawn from 0..len(sold out), so some cycles refill nothing.
type RestockPolicy struct {
	ledger    port.StockLedger
	rng       chance.Source
	maxAmount int
	logger    *zap.Logger
}

func NewRestockPolicy(stock port.StockLedger, rng chance.Source, maxAmount int, logger *zap.Logger) *RestockPolicy {
	if maxAmount <= 0 {
		maxAmount = DefaultMaxRestock
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RestockPolicy{ledger: stock, rng: rng, maxAmount: maxAmount, logger: logger}
}

func (p *RestockPolicy) Run(ctx context.Context) ([]Restock, error) {
	empty, err := p.ledger.ItemsWithZeroStock(ctx)
	if err != nil {
		return nil, err
	}
	if len(empty) == 0 {
		p.logger.Debug("no items out of stock")
		return nil, nil
	}

	n := p.rng.IntN(len(empty) + 1)
	var done []Restock
	for _, id := range chance.Sample(p.rng, empty, n) {
		amount := chance.Between(p.rng, 1, p.maxAmount)
		if err := p.ledger.Replenish(ctx, id, amount); err != nil {
			return done, fmt.Errorf("replenish item %d: %w", id, err)
		}
		p.logger.Info("restocked item", zap.Int64("item_id", int64(id)), zap.Int("amount", amount))
		done = append(done, Restock{ItemID: id, Amount: amount})
	}
	return done, nil
}
