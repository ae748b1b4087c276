package ledger

import (
	"sync"

	"github.com/rl1809/store-sim/internal/core/domain"
)

// Sequencer stamps transaction and purchase-line identifiers. Both counters
// advance under one lock so that a later transaction always carries later
// line IDs as well.
type Sequencer struct {
	mu       sync.Mutex
	lastTx   domain.TransactionID
	lastLine domain.PurchaseLineID
}

func NewSequencer(lastTx domain.TransactionID, lastLine domain.PurchaseLineID) *Sequencer {
	return &Sequencer{lastTx: lastTx, lastLine: lastLine}
}

func (s *Sequencer) Allocate(lines int) (domain.TransactionID, []domain.PurchaseLineID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastTx++
	ids := make([]domain.PurchaseLineID, lines)
	for i := range ids {
		s.lastLine++
		ids[i] = s.lastLine
	}
	return s.lastTx, ids
}

func (s *Sequencer) Last() (domain.TransactionID, domain.PurchaseLineID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastTx, s.lastLine
}
