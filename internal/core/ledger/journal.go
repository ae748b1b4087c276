package ledger

import (
	"sort"
	"sync"

	"github.com/rl1809/store-sim/internal/core/domain"
)

// Journal is the append-only log of recorded orders. Readers only see
// orders in transaction ID order.
//
// Before Follow is called, orders are inserted at their sorted position;
// this is how the historical log is loaded. After Follow, an order becomes
// visible only once every lower identifier has been appended or abandoned,
// so concurrent readers always observe a gap-free prefix.
type Journal struct {
	mu      sync.RWMutex
	orders  []domain.Order
	txIDs   map[domain.TransactionID]struct{}
	lineIDs map[domain.PurchaseLineID]struct{}

	next      domain.TransactionID
	held      map[domain.TransactionID]domain.Order
	abandoned map[domain.TransactionID]struct{}
}

func NewJournal() *Journal {
	return &Journal{
		txIDs:   make(map[domain.TransactionID]struct{}),
		lineIDs: make(map[domain.PurchaseLineID]struct{}),
	}
}

// Follow switches the journal to sequenced mode, expecting next as the
// following transaction identifier.
func (j *Journal) Follow(next domain.TransactionID) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.next = next
	j.held = make(map[domain.TransactionID]domain.Order)
	j.abandoned = make(map[domain.TransactionID]struct{})
	j.advance()
}

// Abandon gives up an identifier that will never be appended. It is a no-op
// outside sequenced mode.
func (j *Journal) Abandon(id domain.TransactionID) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.next == 0 || id < j.next {
		return
	}
	if _, used := j.txIDs[id]; used {
		return
	}
	j.abandoned[id] = struct{}{}
	j.advance()
}

// Held returns the number of appended orders still waiting on a lower
// identifier.
func (j *Journal) Held() int {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return len(j.held)
}

// Append records an order. A reused transaction or line identifier is an
// internal-consistency fault and leaves the journal untouched.
func (j *Journal) Append(order domain.Order) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	tx := order.Transaction
	if _, dup := j.txIDs[tx.ID]; dup {
		return domain.Inconsistent("duplicate transaction id %d", tx.ID)
	}
	if j.next != 0 && tx.ID < j.next {
		return domain.Inconsistent("transaction %d is behind the journal cursor %d", tx.ID, j.next)
	}
	seen := make(map[domain.PurchaseLineID]struct{}, len(order.Lines))
	for _, l := range order.Lines {
		if _, dup := j.lineIDs[l.ID]; dup {
			return domain.Inconsistent("duplicate purchase line id %d", l.ID)
		}
		if _, dup := seen[l.ID]; dup {
			return domain.Inconsistent("duplicate purchase line id %d", l.ID)
		}
		if l.TransactionID != tx.ID {
			return domain.Inconsistent("line %d points at transaction %d, not %d", l.ID, l.TransactionID, tx.ID)
		}
		if l.Quantity <= 0 {
			return domain.Inconsistent("line %d has quantity %d", l.ID, l.Quantity)
		}
		seen[l.ID] = struct{}{}
	}

	j.txIDs[tx.ID] = struct{}{}
	for id := range seen {
		j.lineIDs[id] = struct{}{}
	}

	if j.next != 0 {
		delete(j.abandoned, tx.ID)
		j.held[tx.ID] = order
		j.advance()
		return nil
	}

	i := sort.Search(len(j.orders), func(i int) bool {
		return j.orders[i].Transaction.ID > tx.ID
	})
	j.orders = append(j.orders, domain.Order{})
	copy(j.orders[i+1:], j.orders[i:])
	j.orders[i] = order
	return nil
}

// advance publishes held orders while the cursor finds them.
func (j *Journal) advance() {
	for {
		if o, ok := j.held[j.next]; ok {
			delete(j.held, j.next)
			j.orders = append(j.orders, o)
			j.next++
			continue
		}
		if _, ok := j.abandoned[j.next]; ok {
			delete(j.abandoned, j.next)
			j.next++
			continue
		}
		return
	}
}

func (j *Journal) Len() int {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return len(j.orders)
}

func (j *Journal) Orders() []domain.Order {
	j.mu.RLock()
	defer j.mu.RUnlock()
	out := make([]domain.Order, len(j.orders))
	copy(out, j.orders)
	return out
}

// Lines flattens the journal into purchase lines in ID order.
func (j *Journal) Lines() []domain.PurchaseLine {
	j.mu.RLock()
	defer j.mu.RUnlock()
	var out []domain.PurchaseLine
	for _, o := range j.orders {
		out = append(out, o.Lines...)
	}
	return out
}

// LastIDs returns the highest transaction and line identifiers recorded.
func (j *Journal) LastIDs() (domain.TransactionID, domain.PurchaseLineID) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	var lastTx domain.TransactionID
	var lastLine domain.PurchaseLineID
	for _, o := range j.orders {
		lastTx = max(lastTx, o.Transaction.ID)
		for _, l := range o.Lines {
			lastLine = max(lastLine, l.ID)
		}
	}
	return lastTx, lastLine
}
