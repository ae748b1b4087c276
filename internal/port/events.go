package port

import (
	"context"

	"github.com/rl1809/store-sim/internal/core/domain"
)

type EventPublisher interface {
	PublishOrderRecorded(ctx context.Context, order domain.Order) error
}

// Observer receives simulation outcomes. Implementations must be cheap and
// safe for concurrent use; they are called from shopper goroutines.
type Observer interface {
	OrderRecorded(order domain.Order)
	CycleSkipped(reason string)
	Restocked(itemID domain.ItemID, amount int)
	UserAdded(user domain.User)
	TickFailed(err error)
}
