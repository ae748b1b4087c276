package service

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/store-sim/internal/core/chance"
	"github.com/rl1809/store-sim/internal/core/domain"
)

func order(tx int64, lines ...domain.PurchaseLine) domain.Order {
	for i := range lines {
		lines[i].TransactionID = domain.TransactionID(tx)
	}
	return domain.Order{
		Transaction: domain.Transaction{ID: domain.TransactionID(tx), UserID: 100, Date: domain.Date(testNow), PaymentMethod: domain.PaymentDebit},
		Lines:       lines,
	}
}

func line(id, itemID int64, qty int) domain.PurchaseLine {
	return domain.PurchaseLine{ID: domain.PurchaseLineID(id), ItemID: domain.ItemID(itemID), Quantity: qty}
}

func TestReporter_OrdersByRevenueThenQuantity(t *testing.T) {
	w := newWorld(t, chance.New(1), []domain.Item{
		item(1, "A", "2.00", 7),
		item(2, "B", "1.00", 8),
		item(3, "C", "5.00", 9),
		item(4, "D", "9.99", 1),
	}, members(100))

	require.NoError(t, w.journal.Append(order(1, line(1, 1, 3), line(2, 2, 4))))
	require.NoError(t, w.journal.Append(order(2, line(3, 1, 2), line(4, 2, 6))))
	require.NoError(t, w.journal.Append(order(3, line(5, 3, 1))))

	report, err := NewReporter(w.catalog, w.stock, w.journal, fixedNow).Report(context.Background())
	require.NoError(t, err)
	assert.Equal(t, testNow, report.GeneratedAt)

	// A and B both earn 10.00; B sold more units and comes first.
	require.Len(t, report.Rows, 3)
	assert.Equal(t, []domain.ItemID{2, 1, 3}, []domain.ItemID{
		report.Rows[0].ItemID, report.Rows[1].ItemID, report.Rows[2].ItemID,
	})

	b := report.Rows[0]
	assert.Equal(t, "B", b.ItemName)
	assert.Equal(t, 10, b.TotalQuantity)
	assert.True(t, decimal.RequireFromString("10.00").Equal(b.TotalRevenue))
	assert.Equal(t, 8, b.Stock)

	_, ok := report.Row(4)
	assert.False(t, ok, "items without sales are not reported")
}

func TestReporter_EmptyJournal(t *testing.T) {
	w := newWorld(t, chance.New(1), []domain.Item{item(1, "A", "2.00", 7)}, nil)

	report, err := NewReporter(w.catalog, w.stock, w.journal, fixedNow).Report(context.Background())
	require.NoError(t, err)
	assert.Empty(t, report.Rows)
}

func TestAggregate_UnknownItem(t *testing.T) {
	w := newWorld(t, chance.New(1), []domain.Item{item(1, "A", "2.00", 7)}, nil)

	_, err := Aggregate(w.catalog, []domain.PurchaseLine{line(1, 1, 1), line(2, 9, 1)})
	assert.ErrorIs(t, err, domain.ErrUnknownItem)
}
