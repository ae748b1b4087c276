package port

import (
	"context"

	"github.com/rl1809/store-sim/internal/core/domain"
)

// PersistenceGateway is the only boundary through which the simulation
// reaches durable storage. Callers must never hold a ledger lock while
// invoking it.
type PersistenceGateway interface {
	LoadCatalog(ctx context.Context) ([]domain.Item, error)
	LoadUsers(ctx context.Context) ([]domain.User, error)

	// LoadTransactions returns the historical log ordered by transaction ID.
	LoadTransactions(ctx context.Context) ([]domain.Order, error)

	// AppendTransaction persists a transaction and all its lines, or nothing.
	AppendTransaction(ctx context.Context, tx domain.Transaction, lines []domain.PurchaseLine) error

	UpdateStock(ctx context.Context, itemID domain.ItemID, quantity int) error
	AddUser(ctx context.Context, user domain.User) error
}

// ReportQuerier is implemented by gateways able to aggregate the sales
// report on the storage side.
type ReportQuerier interface {
	QueryReportRows(ctx context.Context) ([]domain.ReportRow, error)
}
