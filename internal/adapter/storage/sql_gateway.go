package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/rl1809/store-sim/internal/core/domain"
)

const (
	mysqlDuplicateEntry     = 1062
	postgresUniqueViolation = "23505"
)

// requestNamespace derives a stable request ID from a transaction's content
// so a retried append of an already committed transaction is recognised as
// a replay.
var requestNamespace = uuid.MustParse("6f1d7a8e-3c2b-4f5e-9a0d-2b7c4e8f1a3d")

type itemRow struct {
	ID    int64           `db:"id"`
	Name  string          `db:"item_name"`
	Price decimal.Decimal `db:"price"`
	Stock int             `db:"stock"`
}

type userRow struct {
	ID             int64     `db:"id"`
	Name           string    `db:"username"`
	MembershipDate time.Time `db:"membership_date"`
}

type transactionRow struct {
	ID            int64     `db:"id"`
	UserID        int64     `db:"user_id"`
	Date          time.Time `db:"transaction_date"`
	PaymentMethod string    `db:"payment_method"`
}

type purchaseRow struct {
	ID            int64 `db:"id"`
	TransactionID int64 `db:"transaction_id"`
	ItemID        int64 `db:"item_id"`
	Quantity      int   `db:"quantity"`
}

type reportRow struct {
	ItemID        int64           `db:"item_id"`
	ItemName      string          `db:"item_name"`
	Price         decimal.Decimal `db:"price"`
	Stock         int             `db:"stock"`
	TotalQuantity int             `db:"total_quantity"`
}

// SQLGateway persists the store in MySQL, PostgreSQL or SQLite through sqlx.
// Queries are written with ? placeholders and rebound per driver.
type SQLGateway struct {
	db *sqlx.DB
}

func NewSQLGateway(db *sqlx.DB) *SQLGateway {
	return &SQLGateway{db: db}
}

// OpenSQL connects with pool settings suited to the driver. SQLite gets a
// single connection so that :memory: databases are shared by all callers.
func OpenSQL(ctx context.Context, driver, dsn string) (*SQLGateway, error) {
	db, err := sqlx.ConnectContext(ctx, driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", driver, err)
	}
	if driver == "sqlite3" {
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(50)
		db.SetMaxIdleConns(25)
		db.SetConnMaxLifetime(5 * time.Minute)
	}
	return NewSQLGateway(db), nil
}

func (g *SQLGateway) DB() *sqlx.DB {
	return g.db
}

func (g *SQLGateway) Close() error {
	return g.db.Close()
}

// Migrate creates the store tables if they do not exist.
func (g *SQLGateway) Migrate(ctx context.Context) error {
	stmts, ok := schemas[g.db.DriverName()]
	if !ok {
		return fmt.Errorf("no schema for driver %q", g.db.DriverName())
	}
	for _, stmt := range stmts {
		if _, err := g.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// SeedIfEmpty loads seed into a database with no items. It reports whether
// anything was written.
func (g *SQLGateway) SeedIfEmpty(ctx context.Context, seed Seed) (seeded bool, err error) {
	var count int
	if err := g.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM items`); err != nil {
		return false, fmt.Errorf("count items: %w", err)
	}
	if count > 0 {
		return false, nil
	}

	tx, err := g.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			err = errors.Join(err, tx.Rollback())
		}
	}()

	for _, it := range seed.Items {
		if _, err = tx.ExecContext(ctx, tx.Rebind(`
			INSERT INTO items (id, item_name, price, stock) VALUES (?, ?, ?, ?)`),
			it.ID, it.Name, it.Price, it.Stock,
		); err != nil {
			return false, fmt.Errorf("insert item %d: %w", it.ID, err)
		}
	}
	for _, u := range seed.Users {
		if err = insertUser(ctx, tx, u); err != nil {
			return false, err
		}
	}
	for _, o := range seed.Orders {
		if err = insertTransaction(ctx, tx, o.Transaction, o.Lines); err != nil {
			return false, err
		}
	}

	if err = tx.Commit(); err != nil {
		return false, fmt.Errorf("commit seed: %w", err)
	}
	return true, nil
}

func (g *SQLGateway) LoadCatalog(ctx context.Context) ([]domain.Item, error) {
	var rows []itemRow
	if err := g.db.SelectContext(ctx, &rows, `
		SELECT id, item_name, price, stock FROM items ORDER BY id`); err != nil {
		return nil, fmt.Errorf("select items: %w", err)
	}

	items := make([]domain.Item, len(rows))
	for i, r := range rows {
		items[i] = domain.Item{ID: domain.ItemID(r.ID), Name: r.Name, Price: r.Price, Stock: r.Stock}
	}
	return items, nil
}

func (g *SQLGateway) LoadUsers(ctx context.Context) ([]domain.User, error) {
	var rows []userRow
	if err := g.db.SelectContext(ctx, &rows, `
		SELECT id, username, membership_date FROM store_users ORDER BY id`); err != nil {
		return nil, fmt.Errorf("select users: %w", err)
	}

	users := make([]domain.User, len(rows))
	for i, r := range rows {
		users[i] = domain.User{ID: domain.UserID(r.ID), Name: r.Name, MembershipDate: domain.Date(r.MembershipDate)}
	}
	return users, nil
}

func (g *SQLGateway) LoadTransactions(ctx context.Context) ([]domain.Order, error) {
	var txRows []transactionRow
	if err := g.db.SelectContext(ctx, &txRows, `
		SELECT id, user_id, transaction_date, payment_method FROM transactions ORDER BY id`); err != nil {
		return nil, fmt.Errorf("select transactions: %w", err)
	}
	var lineRows []purchaseRow
	if err := g.db.SelectContext(ctx, &lineRows, `
		SELECT id, transaction_id, item_id, quantity FROM purchases ORDER BY id`); err != nil {
		return nil, fmt.Errorf("select purchases: %w", err)
	}

	orders := make([]domain.Order, len(txRows))
	index := make(map[int64]int, len(txRows))
	for i, r := range txRows {
		pm, err := domain.ParsePaymentMethod(r.PaymentMethod)
		if err != nil {
			return nil, fmt.Errorf("transaction %d: %w", r.ID, err)
		}
		orders[i].Transaction = domain.Transaction{
			ID:            domain.TransactionID(r.ID),
			UserID:        domain.UserID(r.UserID),
			Date:          domain.Date(r.Date),
			PaymentMethod: pm,
		}
		index[r.ID] = i
	}
	for _, r := range lineRows {
		i, ok := index[r.TransactionID]
		if !ok {
			return nil, domain.Inconsistent("purchase %d references missing transaction %d", r.ID, r.TransactionID)
		}
		orders[i].Lines = append(orders[i].Lines, domain.PurchaseLine{
			ID:            domain.PurchaseLineID(r.ID),
			TransactionID: domain.TransactionID(r.TransactionID),
			ItemID:        domain.ItemID(r.ItemID),
			Quantity:      r.Quantity,
		})
	}
	return orders, nil
}

// AppendTransaction writes the transaction row and all purchase rows in one
// database transaction. Appending a transaction that is already stored with
// the same request ID succeeds without writing.
func (g *SQLGateway) AppendTransaction(ctx context.Context, t domain.Transaction, lines []domain.PurchaseLine) error {
	err := g.appendTx(ctx, t, lines)
	if errors.Is(err, ErrDuplicateKey) && g.alreadyStored(ctx, t, lines) {
		return nil
	}
	return err
}

func (g *SQLGateway) appendTx(ctx context.Context, t domain.Transaction, lines []domain.PurchaseLine) (err error) {
	tx, err := g.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			err = errors.Join(err, tx.Rollback())
		}
	}()

	if err = insertTransaction(ctx, tx, t, lines); err != nil {
		return err
	}
	return tx.Commit()
}

func (g *SQLGateway) alreadyStored(ctx context.Context, t domain.Transaction, lines []domain.PurchaseLine) bool {
	var stored string
	err := g.db.GetContext(ctx, &stored, g.db.Rebind(`
		SELECT request_id FROM transactions WHERE id = ?`), t.ID)
	return err == nil && stored == requestID(t, lines)
}

func (g *SQLGateway) UpdateStock(ctx context.Context, itemID domain.ItemID, quantity int) error {
	if quantity < 0 {
		return &domain.InvalidAmountError{ItemID: itemID, Amount: quantity}
	}
	res, err := g.db.ExecContext(ctx, g.db.Rebind(`
		UPDATE items SET stock = ? WHERE id = ?`), quantity, itemID)
	if err != nil {
		return fmt.Errorf("update stock: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update stock: %w", err)
	}
	if rows == 0 {
		// MySQL reports zero affected rows when the value is unchanged.
		var exists int
		if err := g.db.GetContext(ctx, &exists, g.db.Rebind(`SELECT COUNT(*) FROM items WHERE id = ?`), itemID); err != nil {
			return fmt.Errorf("check item: %w", err)
		}
		if exists == 0 {
			return &domain.UnknownItemError{ItemID: itemID}
		}
	}
	return nil
}

func (g *SQLGateway) AddUser(ctx context.Context, user domain.User) error {
	return insertUser(ctx, g.db, user)
}

// QueryReportRows aggregates purchases per item in the database. Revenue is
// computed from the stored price so that it stays exact on every driver.
func (g *SQLGateway) QueryReportRows(ctx context.Context) ([]domain.ReportRow, error) {
	var rows []reportRow
	if err := g.db.SelectContext(ctx, &rows, `
		SELECT i.id AS item_id, i.item_name, i.price, i.stock, SUM(p.quantity) AS total_quantity
		FROM purchases p
		JOIN items i ON p.item_id = i.id
		GROUP BY i.id, i.item_name, i.price, i.stock
		ORDER BY SUM(p.quantity * i.price) DESC, total_quantity DESC, i.item_name ASC`); err != nil {
		return nil, fmt.Errorf("query report: %w", err)
	}

	out := make([]domain.ReportRow, len(rows))
	for i, r := range rows {
		out[i] = domain.ReportRow{
			ItemID:        domain.ItemID(r.ItemID),
			ItemName:      r.ItemName,
			TotalQuantity: r.TotalQuantity,
			TotalRevenue:  r.Price.Mul(decimal.NewFromInt(int64(r.TotalQuantity))),
			Stock:         r.Stock,
		}
	}
	domain.SortReportRows(out)
	return out, nil
}

func insertUser(ctx context.Context, ext sqlx.ExtContext, u domain.User) error {
	_, err := ext.ExecContext(ctx, ext.Rebind(`
		INSERT INTO store_users (id, username, membership_date) VALUES (?, ?, ?)`),
		u.ID, u.Name, domain.Date(u.MembershipDate),
	)
	if err != nil {
		return fmt.Errorf("insert user %d: %w", u.ID, classify(err))
	}
	return nil
}

func insertTransaction(ctx context.Context, tx *sqlx.Tx, t domain.Transaction, lines []domain.PurchaseLine) error {
	if _, err := tx.ExecContext(ctx, tx.Rebind(`
		INSERT INTO transactions (id, user_id, transaction_date, payment_method, request_id)
		VALUES (?, ?, ?, ?, ?)`),
		t.ID, t.UserID, domain.Date(t.Date), t.PaymentMethod, requestID(t, lines),
	); err != nil {
		return fmt.Errorf("insert transaction %d: %w", t.ID, classify(err))
	}
	for _, l := range lines {
		if _, err := tx.ExecContext(ctx, tx.Rebind(`
			INSERT INTO purchases (id, transaction_id, item_id, quantity) VALUES (?, ?, ?, ?)`),
			l.ID, t.ID, l.ItemID, l.Quantity,
		); err != nil {
			return fmt.Errorf("insert purchase %d: %w", l.ID, classify(err))
		}
	}
	return nil
}

func requestID(t domain.Transaction, lines []domain.PurchaseLine) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d|%d|%s|%s", t.ID, t.UserID, domain.Date(t.Date).Format(time.DateOnly), t.PaymentMethod)
	for _, l := range lines {
		fmt.Fprintf(&b, "|%d:%d:%d", l.ID, l.ItemID, l.Quantity)
	}
	return uuid.NewSHA1(requestNamespace, []byte(b.String())).String()
}

// classify maps driver-specific unique violations to ErrDuplicateKey.
func classify(err error) error {
	var (
		myErr   *mysql.MySQLError
		pqErr   *pq.Error
		liteErr sqlite3.Error
	)
	switch {
	case errors.As(err, &myErr) && myErr.Number == mysqlDuplicateEntry,
		errors.As(err, &pqErr) && pqErr.Code == postgresUniqueViolation,
		errors.As(err, &liteErr) && (liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
			liteErr.ExtendedCode == sqlite3.ErrConstraintUnique):
		return errors.Join(ErrDuplicateKey, err)
	}
	return err
}
