package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/rl1809/store-sim/internal/core/domain"
)

func sampleOrder() domain.Order {
	return domain.Order{
		Transaction: domain.Transaction{
			ID:            700000005,
			UserID:        500000002,
			Date:          time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC),
			PaymentMethod: domain.PaymentDebit,
		},
		Lines: []domain.PurchaseLine{
			{ID: 800000011, TransactionID: 700000005, ItemID: 300000001, Quantity: 2},
			{ID: 800000012, TransactionID: 700000005, ItemID: 300000007, Quantity: 1},
		},
	}
}

func TestPublisher_PublishOrderRecorded(t *testing.T) {
	pubSub := NewInProcessPubSub(NewZapLogger(zap.NewNop()))
	defer pubSub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	messages, err := pubSub.Subscribe(ctx, TopicOrderRecorded)
	require.NoError(t, err)

	pub := NewPublisher(pubSub)
	at := time.Date(2024, 5, 6, 12, 0, 0, 0, time.UTC)
	pub.now = func() time.Time { return at }

	require.NoError(t, pub.PublishOrderRecorded(ctx, sampleOrder()))

	var msg *message.Message
	select {
	case msg = <-messages:
		msg.Ack()
	case <-ctx.Done():
		t.Fatal("no message received")
	}

	assert.NotEmpty(t, msg.UUID)
	assert.Equal(t, "OrderRecorded", msg.Metadata.Get(eventTypeKey))

	ev, err := DecodeOrderRecorded(msg)
	require.NoError(t, err)
	assert.Equal(t, int64(700000005), ev.TransactionID)
	assert.Equal(t, "2024-05-06", ev.Date)
	assert.Equal(t, "debit", ev.PaymentMethod)
	assert.Equal(t, at, ev.RecordedAt)
	assert.Equal(t, []LineRecorded{
		{PurchaseID: 800000011, ItemID: 300000001, Quantity: 2},
		{PurchaseID: 800000012, ItemID: 300000007, Quantity: 1},
	}, ev.Lines)
}

type failingPublisher struct{}

func (failingPublisher) Publish(string, ...*message.Message) error { return errors.New("broker down") }
func (failingPublisher) Close() error                              { return nil }

func TestPublisher_PropagatesBrokerErrors(t *testing.T) {
	err := NewPublisher(failingPublisher{}).PublishOrderRecorded(context.Background(), sampleOrder())
	assert.ErrorContains(t, err, "broker down")
}

func TestZapLogger(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := NewZapLogger(zap.New(core)).With(map[string]any{"topic": TopicOrderRecorded})

	l.Info("published", map[string]any{"n": 1})
	l.Trace("trace", nil)
	l.Error("failed", errors.New("boom"), nil)

	entries := logs.All()
	require.Len(t, entries, 3)
	assert.Equal(t, TopicOrderRecorded, entries[0].ContextMap()["topic"])
	assert.Equal(t, zap.DebugLevel, entries[1].Level)
	assert.Equal(t, "boom", entries[2].ContextMap()["error"])
}
