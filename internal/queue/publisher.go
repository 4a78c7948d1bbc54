package queue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/labstack/gommon/log"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher sends audit events to RabbitMQ.  It dials per publish: admin
// mutations are rare and a broken broker must never take a request down
// with it.  Errors are logged and returned so callers can ignore them.
type Publisher struct {
	url   string
	queue string
	log   *log.Logger
}

// NewPublisher returns a publisher for the broker at url.  An empty queue
// name means AuditQueueName.
func NewPublisher(url, queue string, logger *log.Logger) *Publisher {
	if logger == nil {
		panic("queue: nil logger")
	}
	if queue == "" {
		queue = AuditQueueName
	}
	return &Publisher{url: url, queue: queue, log: logger}
}

// Record publishes ev as a persistent JSON message on the audit queue.
func (p *Publisher) Record(ctx context.Context, ev AuditEvent) error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		p.log.Warnj(log.JSON{"msg": "rabbitmq dial failed", "error": err.Error(), "kind": ev.Kind})
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		p.log.Warnj(log.JSON{"msg": "rabbitmq channel open failed", "error": err.Error()})
		return err
	}
	defer func() { _ = ch.Close() }()

	// Idempotent; durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		p.log.Warnj(log.JSON{"msg": "rabbitmq queue declare failed", "error": err.Error()})
		return err
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    ev.ID,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", p.queue, false, false, pub); err != nil {
		p.log.Warnj(log.JSON{"msg": "rabbitmq publish failed", "error": err.Error(), "kind": ev.Kind})
		return err
	}
	return nil
}

// LogRecorder is the fallback when no broker is configured: audit events are
// written to the logger instead.
type LogRecorder struct {
	Log *log.Logger
}

// Record logs ev at INFO.
func (r LogRecorder) Record(_ context.Context, ev AuditEvent) error {
	r.Log.Infoj(log.JSON{
		"msg":          "audit",
		"audit_id":     ev.ID,
		"kind":         ev.Kind,
		"operation_id": ev.OperationID,
		"actor":        ev.Actor,
		"subject":      ev.Subject,
		"details":      ev.Details,
		"applied":      ev.Applied,
		"error":        ev.Error,
	})
	return nil
}
