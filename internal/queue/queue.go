package queue

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/streadway/amqp"
)

// Publisher is the planner-side handle: it wakes the dispatcher up after
// outbox entries are committed. Queue deliveries are a wake-up signal only;
// the database claim is the concurrency authority.
type Publisher interface {
	PublishOutboxEntry(id uuid.UUID) error
}

// DispatchJob is the wire payload carried on the outbox queue.
type DispatchJob struct {
	OutboxEntryID uuid.UUID `json:"outbox_entry_id"`
}

// RabbitQueue wraps a durable RabbitMQ work queue.
type RabbitQueue struct {
	conn *amqp.Connection
	ch   *amqp.Channel
	name string
}

func Dial(url, queueName string) (*RabbitQueue, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	_, err = ch.QueueDeclare(
		queueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare queue %s: %w", queueName, err)
	}

	return &RabbitQueue{conn: conn, ch: ch, name: queueName}, nil
}

func (q *RabbitQueue) PublishOutboxEntry(id uuid.UUID) error {
	body, err := json.Marshal(DispatchJob{OutboxEntryID: id})
	if err != nil {
		return fmt.Errorf("encode dispatch job: %w", err)
	}
	err = q.ch.Publish(
		"",     // default exchange
		q.name, // routing key
		false,  // mandatory
		false,  // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish dispatch job: %w", err)
	}
	return nil
}

// Consume returns the delivery channel for the worker. Deliveries are
// acked on receipt: they only trigger a drain, the database claim decides
// what actually gets sent.
func (q *RabbitQueue) Consume() (<-chan amqp.Delivery, error) {
	msgs, err := q.ch.Consume(
		q.name,
		"",    // consumer tag
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("consume %s: %w", q.name, err)
	}
	return msgs, nil
}

func (q *RabbitQueue) Close() {
	if q.ch != nil {
		q.ch.Close()
	}
	if q.conn != nil {
		q.conn.Close()
	}
}

var _ Publisher = (*RabbitQueue)(nil)
