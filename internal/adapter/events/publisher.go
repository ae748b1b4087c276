package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/rl1809/store-sim/internal/core/domain"
)

const (
	TopicOrderRecorded = "store.order_recorded"

	eventTypeKey = "event_type"
)

type LineRecorded struct {
	PurchaseID int64 `json:"purchase_id"`
	ItemID     int64 `json:"item_id"`
	Quantity   int   `json:"quantity"`
}

// OrderRecorded is published after a transaction has been persisted and
// journaled.
type OrderRecorded struct {
	TransactionID int64          `json:"transaction_id"`
	UserID        int64          `json:"user_id"`
	Date          string         `json:"date"`
	PaymentMethod string         `json:"payment_method"`
	Lines         []LineRecorded `json:"lines"`
	RecordedAt    time.Time      `json:"recorded_at"`
}

func NewOrderRecorded(order domain.Order, at time.Time) OrderRecorded {
	ev := OrderRecorded{
		TransactionID: int64(order.Transaction.ID),
		UserID:        int64(order.Transaction.UserID),
		Date:          order.Transaction.Date.Format(time.DateOnly),
		PaymentMethod: string(order.Transaction.PaymentMethod),
		Lines:         make([]LineRecorded, len(order.Lines)),
		RecordedAt:    at,
	}
	for i, l := range order.Lines {
		ev.Lines[i] = LineRecorded{PurchaseID: int64(l.ID), ItemID: int64(l.ItemID), Quantity: l.Quantity}
	}
	return ev
}

// Publisher marshals domain events onto a watermill publisher.
type Publisher struct {
	pub   message.Publisher
	topic string
	now   func() time.Time
}

func NewPublisher(pub message.Publisher) *Publisher {
	return &Publisher{pub: pub, topic: TopicOrderRecorded, now: time.Now}
}

func (p *Publisher) PublishOrderRecorded(ctx context.Context, order domain.Order) error {
	payload, err := json.Marshal(NewOrderRecorded(order, p.now()))
	if err != nil {
		return fmt.Errorf("marshal order recorded: %w", err)
	}

	msg := message.NewMessage(uuid.NewString(), payload)
	msg.Metadata.Set(eventTypeKey, "OrderRecorded")
	msg.SetContext(ctx)

	if err := p.pub.Publish(p.topic, msg); err != nil {
		return fmt.Errorf("publish %s: %w", p.topic, err)
	}
	return nil
}

func (p *Publisher) Close() error {
	return p.pub.Close()
}

// NewRedisStreamPublisher publishes onto Redis streams, one stream per topic.
func NewRedisStreamPublisher(client redis.UniversalClient, logger watermill.LoggerAdapter) (message.Publisher, error) {
	pub, err := redisstream.NewPublisher(redisstream.PublisherConfig{
		Client: client,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create redis stream publisher: %w", err)
	}
	return pub, nil
}

// NewInProcessPubSub is used when no broker is configured and in tests.
func NewInProcessPubSub(logger watermill.LoggerAdapter) *gochannel.GoChannel {
	return gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 256}, logger)
}

func DecodeOrderRecorded(msg *message.Message) (OrderRecorded, error) {
	var ev OrderRecorded
	if err := json.Unmarshal(msg.Payload, &ev); err != nil {
		return OrderRecorded{}, fmt.Errorf("decode order recorded: %w", err)
	}
	return ev, nil
}
