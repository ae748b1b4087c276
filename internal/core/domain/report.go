package domain

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type ReportRow struct {
	ItemID        ItemID
	ItemName      string
	TotalQuantity int
	TotalRevenue  decimal.Decimal
	Stock         int
}

type Report struct {
	GeneratedAt time.Time
	Rows        []ReportRow
}

// SortReportRows orders rows by revenue desc, then quantity desc, then
// item name asc. Every report source must use this ordering.
func SortReportRows(rows []ReportRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if c := a.TotalRevenue.Cmp(b.TotalRevenue); c != 0 {
			return c > 0
		}
		if a.TotalQuantity != b.TotalQuantity {
			return a.TotalQuantity > b.TotalQuantity
		}
		return a.ItemName < b.ItemName
	})
}

func (r Report) Row(id ItemID) (ReportRow, bool) {
	for _, row := range r.Rows {
		if row.ItemID == id {
			return row, true
		}
	}
	return ReportRow{}, false
}

func (r Report) Render(w io.Writer) error {
	var b strings.Builder
	b.WriteString("\n########### REPORT ###########\n")
	for _, row := range r.Rows {
		fmt.Fprintf(&b, "%s has been purchased %d times yielding %s\n",
			row.ItemName, row.TotalQuantity, FormatMoney(row.TotalRevenue))
		fmt.Fprintf(&b, "%s stock remaining: %d\n\n", row.ItemName, row.Stock)
	}
	b.WriteString("##############################\n")
	_, err := io.WriteString(w, b.String())
	return err
}

// FormatMoney renders d as dollars with thousands separators, e.g. $1,234.50.
func FormatMoney(d decimal.Decimal) string {
	whole, frac, _ := strings.Cut(d.Abs().StringFixed(2), ".")

	var b strings.Builder
	if d.IsNegative() {
		b.WriteByte('-')
	}
	b.WriteByte('$')
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	b.WriteByte('.')
	b.WriteString(frac)
	return b.String()
}
