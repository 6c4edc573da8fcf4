package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Event describes a request reaching a terminal state or being held.
type Event struct {
	RequestID uuid.UUID `json:"request_id"`
	UserID    uuid.UUID `json:"user_id"`
	Kind      string    `json:"kind"`
	Status    string    `json:"status"`
	Reason    string    `json:"reason,omitempty"`
	At        time.Time `json:"at"`
}

// Publisher pushes events to a Redis channel for the notification service
// to fan out. Delivery is fire-and-forget: failures are logged and dropped,
// never surfaced to the transition that produced the event.
type Publisher struct {
	rdb     *redis.Client
	channel string
	log     *slog.Logger
}

func NewPublisher(rdb *redis.Client, channel string, log *slog.Logger) *Publisher {
	if channel == "" {
		channel = "wallet.events"
	}
	if log == nil {
		log = slog.Default()
	}
	return &Publisher{rdb: rdb, channel: channel, log: log}
}

func (p *Publisher) Publish(ctx context.Context, ev Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		p.log.Error("marshal notification event", "error", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := p.rdb.Publish(ctx, p.channel, payload).Err(); err != nil {
		p.log.Warn("notification publish failed", "request_id", ev.RequestID, "error", err)
	}
}
