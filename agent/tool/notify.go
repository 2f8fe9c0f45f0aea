package tool

import (
	"context"
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/Chative-Sales-Interceptor/agent/contract"
)

// Publisher delivers a message to a queue destination.
type Publisher interface {
	Publish(ctx context.Context, destination string, body []byte) (string, error)
}

type unconfirmedEvent struct {
	Event         string            `json:"event"`
	BusinessID    int64             `json:"business_id"`
	CustomerPhone string            `json:"customer_phone"`
	Product       contractx.Product `json:"product"`
	RequestedAt   time.Time         `json:"requested_at"`
}

// QueueNotifier asks a human to confirm a product through a message queue.
type QueueNotifier struct {
	publisher   Publisher
	destination string
	now         func() time.Time
}

func NewQueueNotifier(publisher Publisher, destination string) *QueueNotifier {
	return &QueueNotifier{publisher: publisher, destination: destination, now: time.Now}
}

func (n *QueueNotifier) NotifyUnconfirmed(ctx context.Context, businessID int64, customerPhone string, product contractx.Product) error {
	body, err := jsoniter.Marshal(unconfirmedEvent{
		Event:         "product.unconfirmed",
		BusinessID:    businessID,
		CustomerPhone: customerPhone,
		Product:       product,
		RequestedAt:   n.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("%w: encode notification: %v", contractx.ErrToolExecution, err)
	}

	id, err := n.publisher.Publish(ctx, n.destination, body)
	if err != nil {
		return fmt.Errorf("%w: publish notification: %v", contractx.ErrToolExecution, err)
	}
	log.Debug().Str("message_id", id).Int64("product_id", product.ID).Msg("tool: unconfirmed product notification queued")
	return nil
}

// LogNotifier only records the request for a human decision.
type LogNotifier struct {
	Logger zerolog.Logger
}

func (n LogNotifier) NotifyUnconfirmed(_ context.Context, businessID int64, customerPhone string, product contractx.Product) error {
	n.Logger.Info().
		Int64("business_id", businessID).
		Str("customer_phone", customerPhone).
		Int64("product_id", product.ID).
		Str("product_name", product.Name).
		Msg("[HITL] customer asked for an unconfirmed product, review price and availability")
	return nil
}
