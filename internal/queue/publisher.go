package queue

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/iliyamo/blog-platform/internal/model"
)

// AuditPublisher publishes account changes to a durable queue.  Errors are
// logged and returned so the caller can decide to carry on.
type AuditPublisher struct {
	url         string
	queue       string
	dialTimeout time.Duration
	log         *zap.Logger
}

func NewAuditPublisher(url, queue string, log *zap.Logger) *AuditPublisher {
	return &AuditPublisher{url: url, queue: queue, dialTimeout: defaultDialTimeout, log: log.Named("audit-publisher")}
}

// Record publishes rec as an AccountChangedEvent.
func (p *AuditPublisher) Record(ctx context.Context, rec model.AuditRecord) error {
	return p.Publish(ctx, EventFromRecord(rec))
}

// Publish sends ev as a persistent message on the configured queue.  Admin
// changes are rare, so every call opens its own connection.
func (p *AuditPublisher) Publish(ctx context.Context, ev AccountChangedEvent) error {
	conn, err := dial(ctx, p.url, p.dialTimeout)
	if err != nil {
		p.log.Warn("dial failed", zap.Error(err))
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		p.log.Warn("channel open failed", zap.Error(err))
		return err
	}
	defer func() { _ = ch.Close() }()

	// Idempotent; durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		p.log.Warn("queue declare failed", zap.Error(err))
		return err
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", p.queue, false, false, pub); err != nil {
		p.log.Warn("publish failed", zap.Error(err))
		return err
	}
	return nil
}

const defaultDialTimeout = 5 * time.Second

// dial connects to url within limit or the deadline of ctx, whichever comes
// first.  The bound covers the TCP connect and the AMQP handshake.
func dial(ctx context.Context, url string, limit time.Duration) (*amqp.Connection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if dl, ok := ctx.Deadline(); ok {
		left := time.Until(dl)
		if left <= 0 {
			return nil, context.DeadlineExceeded
		}
		if left < limit {
			limit = left
		}
	}
	return amqp.DialConfig(url, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(limit),
	})
}
