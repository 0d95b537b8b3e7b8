package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/port"
)

const DefaultSender = "dontreply@storefront.local"

var (
	_ port.Notifier = (*KafkaNotifier)(nil)
	_ port.Notifier = (*LogNotifier)(nil)
)

// ConfirmationMessage is the event a mail relay turns into the customer's
// confirmation e-mail.
type ConfirmationMessage struct {
	OrderID  string    `json:"order_id"`
	From     string    `json:"from"`
	To       string    `json:"to"`
	Subject  string    `json:"subject"`
	Total    string    `json:"total"`
	PlacedAt time.Time `json:"placed_at"`
}

func NewConfirmationMessage(sender string, c domain.OrderConfirmation) ConfirmationMessage {
	return ConfirmationMessage{
		OrderID:  c.OrderID,
		From:     sender,
		To:       c.Recipient,
		Subject:  "Confirmation of order #" + c.OrderID,
		Total:    c.Total.StringFixed(2),
		PlacedAt: c.PlacedAt,
	}
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaNotifier publishes order confirmations to a topic, keyed by order ID.
type KafkaNotifier struct {
	writer messageWriter
	sender string
}

func NewKafkaNotifier(brokers []string, topic, sender string) *KafkaNotifier {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           10 * time.Millisecond,
		BatchSize:              100,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}
	return newKafkaNotifier(w, sender)
}

func newKafkaNotifier(w messageWriter, sender string) *KafkaNotifier {
	if sender == "" {
		sender = DefaultSender
	}
	return &KafkaNotifier{writer: w, sender: sender}
}

func (n *KafkaNotifier) SendOrderConfirmation(ctx context.Context, c domain.OrderConfirmation) error {
	payload, err := json.Marshal(NewConfirmationMessage(n.sender, c))
	if err != nil {
		return fmt.Errorf("marshal confirmation: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(c.OrderID),
		Value: payload,
	}
	otel.GetTextMapPropagator().Inject(ctx, (*headerCarrier)(&msg.Headers))

	if err := n.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish confirmation %s: %w", c.OrderID, err)
	}
	return nil
}

func (n *KafkaNotifier) Close() error {
	return n.writer.Close()
}

// headerCarrier lets the trace context ride along in the message headers.
type headerCarrier []kafka.Header

func (h *headerCarrier) Get(key string) string {
	for _, hdr := range *h {
		if hdr.Key == key {
			return string(hdr.Value)
		}
	}
	return ""
}

func (h *headerCarrier) Set(key, value string) {
	for i := range *h {
		if (*h)[i].Key == key {
			(*h)[i].Value = []byte(value)
			return
		}
	}
	*h = append(*h, kafka.Header{Key: key, Value: []byte(value)})
}

func (h *headerCarrier) Keys() []string {
	keys := make([]string, 0, len(*h))
	for _, hdr := range *h {
		keys = append(keys, hdr.Key)
	}
	return keys
}
