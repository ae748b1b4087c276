package domain

import (
	"fmt"
	"strings"
	"time"
)

type TransactionID int64

type PurchaseLineID int64

type PaymentMethod string

const (
	PaymentCredit PaymentMethod = "credit"
	PaymentDebit  PaymentMethod = "debit"
	PaymentCash   PaymentMethod = "cash"
)

// PaymentMethods is the fixed set a transaction draws from.
var PaymentMethods = []PaymentMethod{PaymentCredit, PaymentDebit, PaymentCash}

func ParsePaymentMethod(s string) (PaymentMethod, error) {
	pm := PaymentMethod(strings.ToLower(strings.TrimSpace(s)))
	switch pm {
	case PaymentCredit, PaymentDebit, PaymentCash:
		return pm, nil
	}
	return "", fmt.Errorf("unknown payment method %q", s)
}

type Transaction struct {
	ID            TransactionID
	UserID        UserID
	Date          time.Time
	PaymentMethod PaymentMethod
}

type PurchaseLine struct {
	ID            PurchaseLineID
	TransactionID TransactionID
	ItemID        ItemID
	Quantity      int
}

// Order is a transaction together with its purchase lines. It is the unit
// that gets persisted atomically and appended to the journal.
type Order struct {
	Transaction Transaction
	Lines       []PurchaseLine
}

func (o Order) TotalQuantity() int {
	total := 0
	for _, l := range o.Lines {
		total += l.Quantity
	}
	return total
}

// Touched returns the distinct item IDs referenced by the order's lines.
func (o Order) Touched() []ItemID {
	seen := make(map[ItemID]struct{}, len(o.Lines))
	ids := make([]ItemID, 0, len(o.Lines))
	for _, l := range o.Lines {
		if _, ok := seen[l.ItemID]; ok {
			continue
		}
		seen[l.ItemID] = struct{}{}
		ids = append(ids, l.ItemID)
	}
	return ids
}
