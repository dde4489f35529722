package delivery

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"legacy-portal/internal/models"
)

const DefaultSubject = "shop.delivery.enqueued"

// Event is published once a delivery row has been committed. The queue row
// stays the source of truth; consumers treat events as a wake-up hint.
type Event struct {
	ID          string    `json:"id"`
	QueueID     int64     `json:"queueId"`
	AccountID   int64     `json:"accountId"`
	CharacterID int64     `json:"characterId"`
	ItemID      int       `json:"itemId"`
	ItemValue   string    `json:"itemValue"`
	CreatedAt   time.Time `json:"createdAt"`
}

type Notifier interface {
	Enqueued(ctx context.Context, entry models.DeliveryEntry)
}

type publisher interface {
	Publish(subject string, data []byte) error
}

type NATSNotifier struct {
	pub     publisher
	subject string
	logger  *slog.Logger
}

// Connect dials NATS. An empty url yields a nil connection and no error.
func Connect(url string) (*nats.Conn, error) {
	if url == "" {
		return nil, nil
	}
	return nats.Connect(url, nats.Name("legacy-portal"), nats.MaxReconnects(-1))
}

// New returns a NATS notifier, or a no-op one when nc is nil.
func New(nc *nats.Conn, subject string, logger *slog.Logger) Notifier {
	if nc == nil {
		return Nop{}
	}
	return newNATSNotifier(nc, subject, logger)
}

func newNATSNotifier(pub publisher, subject string, logger *slog.Logger) *NATSNotifier {
	if subject == "" {
		subject = DefaultSubject
	}
	return &NATSNotifier{pub: pub, subject: subject, logger: logger}
}

func (n *NATSNotifier) Enqueued(ctx context.Context, entry models.DeliveryEntry) {
	ev := Event{
		ID:          uuid.NewString(),
		QueueID:     entry.ID,
		AccountID:   entry.AccountID,
		CharacterID: entry.CharacterID,
		ItemID:      entry.ItemID,
		ItemValue:   entry.ItemValue,
		CreatedAt:   entry.CreatedAt,
	}
	data, err := json.Marshal(ev)
	if err != nil {
		n.logger.WarnContext(ctx, "failed to encode delivery event", "queue_id", entry.ID, "error", err)
		return
	}
	if err := n.pub.Publish(n.subject, data); err != nil {
		n.logger.WarnContext(ctx, "failed to publish delivery event", "queue_id", entry.ID, "subject", n.subject, "error", err)
	}
}

type Nop struct{}

func (Nop) Enqueued(context.Context, models.DeliveryEntry) {}
