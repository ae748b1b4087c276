package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type ItemID int64

type Item struct {
	ID    ItemID
	Name  string
	Price decimal.Decimal
	Stock int // available units at load time; the ledger owns it afterwards
}

type UserID int64

type User struct {
	ID             UserID
	Name           string
	MembershipDate time.Time
}

// Date truncates t to midnight in its own location. Transactions and
// memberships are recorded at day granularity.
func Date(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
