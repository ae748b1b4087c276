package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rl1809/store-sim/internal/core/catalog"
	"github.com/rl1809/store-sim/internal/core/domain"
	"github.com/rl1809/store-sim/internal/core/ledger"
	"github.com/rl1809/store-sim/internal/port"
)

// Reporter aggregates the journal into per-item sales rows. It never
// mutates anything and can run alongside generation.
type Reporter struct {
	catalog *catalog.Catalog
	ledger  port.StockLedger
	journal *ledger.Journal
	now     func() time.Time
}

func NewReporter(cat *catalog.Catalog, stock port.StockLedger, journal *ledger.Journal, now func() time.Time) *Reporter {
	if now == nil {
		now = time.Now
	}
	return &Reporter{catalog: cat, ledger: stock, journal: journal, now: now}
}

func (r *Reporter) Report(ctx context.Context) (domain.Report, error) {
	rows, err := Aggregate(r.catalog, r.journal.Lines())
	if err != nil {
		return domain.Report{}, err
	}
	for i := range rows {
		stock, err := r.ledger.StockOf(ctx, rows[i].ItemID)
		if err != nil {
			return domain.Report{}, err
		}
		rows[i].Stock = stock
	}
	return domain.Report{GeneratedAt: r.now(), Rows: rows}, nil
}

// Aggregate groups lines by item and returns sorted rows without stock.
func Aggregate(cat *catalog.Catalog, lines []domain.PurchaseLine) ([]domain.ReportRow, error) {
	byItem := make(map[domain.ItemID]*domain.ReportRow)
	prices := make(map[domain.ItemID]decimal.Decimal)
	var order []domain.ItemID

	for _, l := range lines {
		row, ok := byItem[l.ItemID]
		if !ok {
			item, err := cat.Item(l.ItemID)
			if err != nil {
				return nil, err
			}
			row = &domain.ReportRow{ItemID: item.ID, ItemName: item.Name, TotalRevenue: decimal.Zero}
			byItem[l.ItemID] = row
			prices[l.ItemID] = item.Price
			order = append(order, l.ItemID)
		}
		row.TotalQuantity += l.Quantity
		row.TotalRevenue = row.TotalRevenue.Add(prices[l.ItemID].Mul(decimal.NewFromInt(int64(l.Quantity))))
	}

	rows := make([]domain.ReportRow, 0, len(order))
	for _, id := range order {
		rows = append(rows, *byItem[id])
	}
	domain.SortReportRows(rows)
	return rows, nil
}
