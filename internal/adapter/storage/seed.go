package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rl1809/store-sim/internal/core/domain"
)

const DefaultInitialStock = 100

// Seed is the data a fresh store starts from.
type Seed struct {
	Items  []domain.Item
	Users  []domain.User
	Orders []domain.Order
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DefaultSeed is the grocery store fixture: seven items, seven members and
// four historical transactions.
func DefaultSeed(initialStock int) Seed {
	item := func(id int64, name, price string) domain.Item {
		return domain.Item{
			ID:    domain.ItemID(id),
			Name:  name,
			Price: decimal.RequireFromString(price),
			Stock: initialStock,
		}
	}
	user := func(id int64, name string, joined time.Time) domain.User {
		return domain.User{ID: domain.UserID(id), Name: name, MembershipDate: joined}
	}
	order := func(id int64, userID int64, date time.Time, pm domain.PaymentMethod, lines ...[3]int64) domain.Order {
		o := domain.Order{Transaction: domain.Transaction{
			ID:            domain.TransactionID(id),
			UserID:        domain.UserID(userID),
			Date:          date,
			PaymentMethod: pm,
		}}
		for _, l := range lines {
			o.Lines = append(o.Lines, domain.PurchaseLine{
				ID:            domain.PurchaseLineID(l[0]),
				TransactionID: domain.TransactionID(id),
				ItemID:        domain.ItemID(l[1]),
				Quantity:      int(l[2]),
			})
		}
		return o
	}

	return Seed{
		Items: []domain.Item{
			item(300000001, "Sliced White Bread", "3.50"),
			item(300000002, "Eggs (Dozen)", "5.25"),
			item(300000003, "2% Milk (Gallon)", "4.99"),
			item(300000004, "Fat Free Milk (Gallon)", "4.99"),
			item(300000005, "Beefsteak Tomato", "0.79"),
			item(300000006, "Whole Chicken Breast (4pc)", "15.99"),
			item(300000007, "Oreos (8oz)", "5.99"),
		},
		Users: []domain.User{
			user(500000001, "Thomas Walter", day(2023, 10, 1)),
			user(500000002, "Ronald McDonald", day(2023, 10, 5)),
			user(500000003, "Mickey Mouse", day(2023, 10, 10)),
			user(500000004, "Donald Duck", day(2023, 10, 10)),
			user(500000005, "Bill Gates", day(2023, 10, 12)),
			user(500000006, "Rick Roll", day(2023, 10, 15)),
			user(500000007, "Lebron James", day(2023, 10, 20)),
		},
		Orders: []domain.Order{
			order(700000001, 500000001, day(2023, 10, 10), domain.PaymentCredit,
				[3]int64{800000001, 300000001, 1},
				[3]int64{800000002, 300000002, 1},
				[3]int64{800000003, 300000004, 2}),
			order(700000002, 500000003, day(2023, 10, 12), domain.PaymentCredit,
				[3]int64{800000004, 300000003, 3},
				[3]int64{800000005, 300000005, 1},
				[3]int64{800000006, 300000006, 2}),
			order(700000003, 500000004, day(2023, 10, 15), domain.PaymentDebit,
				[3]int64{800000007, 300000003, 2},
				[3]int64{800000008, 300000007, 1},
				[3]int64{800000009, 300000002, 4}),
			order(700000004, 500000007, day(2023, 10, 20), domain.PaymentCash,
				[3]int64{800000010, 300000007, 2}),
		},
	}
}

type seedFile struct {
	Items []struct {
		ID    int64           `json:"id"`
		Name  string          `json:"name"`
		Price decimal.Decimal `json:"price"`
		Stock *int            `json:"stock"`
	} `json:"items"`
	Users []struct {
		ID             int64  `json:"id"`
		Name           string `json:"name"`
		MembershipDate string `json:"membership_date"`
	} `json:"users"`
	Transactions []struct {
		ID            int64  `json:"id"`
		UserID        int64  `json:"user_id"`
		Date          string `json:"date"`
		PaymentMethod string `json:"payment_method"`
		Lines         []struct {
			ID       int64 `json:"id"`
			ItemID   int64 `json:"item_id"`
			Quantity int   `json:"quantity"`
		} `json:"lines"`
	} `json:"transactions"`
}

// LoadSeedFile reads a JSON seed. Items without a stock value start with
// initialStock units. Dates use the YYYY-MM-DD layout.
func LoadSeedFile(path string, initialStock int) (Seed, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Seed{}, fmt.Errorf("read seed file: %w", err)
	}
	return ParseSeed(raw, initialStock)
}

func ParseSeed(raw []byte, initialStock int) (Seed, error) {
	var f seedFile
	if err := json.Unmarshal(raw, &f); err != nil {
		return Seed{}, fmt.Errorf("decode seed: %w", err)
	}

	var seed Seed
	for _, it := range f.Items {
		stock := initialStock
		if it.Stock != nil {
			stock = *it.Stock
		}
		seed.Items = append(seed.Items, domain.Item{
			ID:    domain.ItemID(it.ID),
			Name:  it.Name,
			Price: it.Price,
			Stock: stock,
		})
	}
	for _, u := range f.Users {
		joined, err := time.Parse(time.DateOnly, u.MembershipDate)
		if err != nil {
			return Seed{}, fmt.Errorf("user %d: %w", u.ID, err)
		}
		seed.Users = append(seed.Users, domain.User{ID: domain.UserID(u.ID), Name: u.Name, MembershipDate: joined})
	}
	for _, t := range f.Transactions {
		date, err := time.Parse(time.DateOnly, t.Date)
		if err != nil {
			return Seed{}, fmt.Errorf("transaction %d: %w", t.ID, err)
		}
		pm, err := domain.ParsePaymentMethod(t.PaymentMethod)
		if err != nil {
			return Seed{}, fmt.Errorf("transaction %d: %w", t.ID, err)
		}
		o := domain.Order{Transaction: domain.Transaction{
			ID:            domain.TransactionID(t.ID),
			UserID:        domain.UserID(t.UserID),
			Date:          date,
			PaymentMethod: pm,
		}}
		for _, l := range t.Lines {
			o.Lines = append(o.Lines, domain.PurchaseLine{
				ID:            domain.PurchaseLineID(l.ID),
				TransactionID: o.Transaction.ID,
				ItemID:        domain.ItemID(l.ItemID),
				Quantity:      l.Quantity,
			})
		}
		seed.Orders = append(seed.Orders, o)
	}
	return seed, nil
}
