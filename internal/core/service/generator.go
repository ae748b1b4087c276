package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/rl1809/store-sim/internal/core/catalog"
	"github.com/rl1809/store-sim/internal/core/chance"
	"github.com/rl1809/store-sim/internal/core/domain"
	"github.com/rl1809/store-sim/internal/core/ledger"
	"github.com/rl1809/store-sim/internal/port"
)

const (
	maxItemsPerOrder = 3
	maxDrawsPerItem  = 64
)

type NamePools struct {
	First []string `json:"first"`
	Last  []string `json:"last"`
}

var DefaultNamePools = NamePools{
	First: []string{"Thomas", "Micah", "Josh", "Joan", "Cat", "Bill", "Ted"},
	Last:  []string{"Walter", "Weatherly", "Aperture", "Bishop", "Hope"},
}

// Generation is what one Generate call produced. Order is nil when the
// cycle was skipped. NewUserName is set when the independent new-user draw
// hit; the user joins the directory only through Enroll.
type Generation struct {
	Order       *domain.Order
	NewUserName string
	SkipReason  string
}

func (g Generation) Skipped() bool {
	return g.Order == nil
}

type Generator struct {
	catalog   *catalog.Catalog
	users     *catalog.Directory
	ledger    port.StockLedger
	sequencer *ledger.Sequencer
	rng       chance.Source
	names     NamePools
	now       func() time.Time
	logger    *zap.Logger
}

func NewGenerator(
	cat *catalog.Catalog,
	users *catalog.Directory,
	stock port.StockLedger,
	seq *ledger.Sequencer,
	rng chance.Source,
	names NamePools,
	now func() time.Time,
	logger *zap.Logger,
) *Generator {
	if len(names.First) == 0 || len(names.Last) == 0 {
		names = DefaultNamePools
	}
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{
		catalog:   cat,
		users:     users,
		ledger:    stock,
		sequencer: seq,
		rng:       rng,
		names:     names,
		now:       now,
		logger:    logger,
	}
}

// Generate builds one order. Running out of users or stock is a skipped
// cycle, not an error. On any ledger error the units already reserved for
// this order are released before returning.
func (g *Generator) Generate(ctx context.Context) (Generation, error) {
	var gen Generation

	userID, err := g.users.RandomUser()
	if errors.Is(err, domain.ErrUnknownUser) {
		gen.SkipReason = "no users"
		return gen, nil
	}
	if err != nil {
		return gen, err
	}

	lines, err := g.reserveLines(ctx)
	switch {
	case errors.Is(err, domain.ErrNoStockAvailable):
		gen.SkipReason = "no stock"
	case err != nil:
		return gen, err
	case len(lines) == 0:
		gen.SkipReason = "stock drained during selection"
	default:
		order := g.stamp(userID, lines)
		gen.Order = &order
	}

	gen.NewUserName = g.drawNewUser()
	return gen, nil
}

func (g *Generator) reserveLines(ctx context.Context) ([]domain.PurchaseLine, error) {
	sellable, err := g.catalog.SellableItems(ctx)
	if err != nil {
		return nil, err
	}
	if len(sellable) == 0 {
		return nil, domain.ErrNoStockAvailable
	}

	k := min(chance.Between(g.rng, 1, maxItemsPerOrder), len(sellable))
	picked := make(map[domain.ItemID]struct{}, k)
	var lines []domain.PurchaseLine

	// Duplicates are re-sampled. Other shoppers may drain items while we
	// pick, so the number of draws is bounded.
	for draws := 0; len(picked) < k && draws < maxDrawsPerItem*k; draws++ {
		itemID, err := g.catalog.RandomItemWithStock(ctx)
		if errors.Is(err, domain.ErrNoStockAvailable) {
			break
		}
		if err != nil {
			return nil, errors.Join(err, g.release(ctx, lines))
		}
		if _, dup := picked[itemID]; dup {
			continue
		}
		picked[itemID] = struct{}{}

		qty, err := g.reserve(ctx, itemID)
		if err != nil {
			return nil, errors.Join(err, g.release(ctx, lines))
		}
		if qty == 0 {
			g.logger.Debug("item sold out during selection", zap.Int64("item_id", int64(itemID)))
			continue
		}
		lines = append(lines, domain.PurchaseLine{ItemID: itemID, Quantity: qty})
	}
	return lines, nil
}

// reserve draws a desired quantity bounded by the current stock and takes
// whatever the ledger grants.
func (g *Generator) reserve(ctx context.Context, itemID domain.ItemID) (int, error) {
	stock, err := g.ledger.StockOf(ctx, itemID)
	if err != nil {
		return 0, err
	}
	if stock <= 0 {
		return 0, nil
	}
	desired := chance.Between(g.rng, 1, stock)
	actual, err := g.ledger.Reserve(ctx, itemID, desired)
	if err != nil {
		return 0, err
	}
	if actual < 0 || actual > desired {
		return 0, domain.Inconsistent("reserve of %d units on item %d returned %d", desired, itemID, actual)
	}
	if actual < desired {
		g.logger.Debug("partial reservation",
			zap.Int64("item_id", int64(itemID)),
			zap.Int("desired", desired),
			zap.Int("reserved", actual))
	}
	return actual, nil
}

func (g *Generator) stamp(userID domain.UserID, lines []domain.PurchaseLine) domain.Order {
	txID, lineIDs := g.sequencer.Allocate(len(lines))
	for i := range lines {
		lines[i].ID = lineIDs[i]
		lines[i].TransactionID = txID
	}
	return domain.Order{
		Transaction: domain.Transaction{
			ID:            txID,
			UserID:        userID,
			Date:          domain.Date(g.now()),
			PaymentMethod: chance.Pick(g.rng, domain.PaymentMethods),
		},
		Lines: lines,
	}
}

// drawNewUser hits with probability 1/N, N being the current directory
// size, and returns the name of the user to create.
func (g *Generator) drawNewUser() string {
	n := g.users.Len()
	if n == 0 || g.rng.IntN(n) != 0 {
		return ""
	}
	return chance.Pick(g.rng, g.names.First) + " " + chance.Pick(g.rng, g.names.Last)
}

// Enroll adds a drawn user to the directory once persist has stored it.
func (g *Generator) Enroll(name string, persist func(domain.User) error) (domain.User, error) {
	return g.users.Enroll(name, g.now(), persist)
}

// release hands back reservations that will not be recorded.
func (g *Generator) release(ctx context.Context, lines []domain.PurchaseLine) error {
	var errs []error
	for _, l := range lines {
		if err := g.ledger.Release(ctx, l.ItemID, l.Quantity); err != nil {
			errs = append(errs, fmt.Errorf("release item %d: %w", l.ItemID, err))
		}
	}
	return errors.Join(errs...)
}
