package rabbitmq

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const EventConsultationCompleted = "consultation.completed"

type CompletedEvent struct {
	Type        string    `json:"type"`
	SessionID   string    `json:"session_id"`
	CompletedAt time.Time `json:"completed_at"`
}

type Publisher struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string
	// amqp channels are not safe for concurrent publishing
	mu sync.Mutex
}

func NewPublisher(url, queue string) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := DeclareQueues(ch, queue); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	return &Publisher{conn: conn, ch: ch, queue: queue}, nil
}

// DeclareQueues declares queue with its ".retry" and ".dlq" companions.
// Publisher and worker must agree on these arguments.
func DeclareQueues(ch *amqp.Channel, queue string) error {
	mainQ := queue
	retryQ := queue + ".retry"
	dlqQ := queue + ".dlq"

	// DLQ
	if _, err := ch.QueueDeclare(
		dlqQ,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false,
		nil,
	); err != nil {
		return err
	}

	// Retry queue: message TTL -> dead-letter back to main queue
	if _, err := ch.QueueDeclare(
		retryQ,
		true,
		false,
		false,
		false,
		amqp.Table{
			"x-dead-letter-exchange":    "",
			"x-dead-letter-routing-key": mainQ,
		},
	); err != nil {
		return err
	}

	// Main queue: dead-letter to DLQ on reject/nack(requeue=false)
	_, err := ch.QueueDeclare(
		mainQ,
		true,
		false,
		false,
		false,
		amqp.Table{
			"x-dead-letter-exchange":    "",
			"x-dead-letter-routing-key": dlqQ,
		},
	)
	return err
}

func (p *Publisher) Close() error {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

func (p *Publisher) PublishCompleted(ctx context.Context, sessionID string, completedAt time.Time) error {
	return p.publish(ctx, p.queue, CompletedEvent{
		Type:        EventConsultationCompleted,
		SessionID:   sessionID,
		CompletedAt: completedAt,
	}, nil)
}

// Retry parks ev on the retry queue; it returns to the main queue after delay.
// attempt is carried in the x-retry header.
func (p *Publisher) Retry(ctx context.Context, ev CompletedEvent, attempt int, delay time.Duration) error {
	return p.publish(ctx, p.queue+".retry", ev, func(m *amqp.Publishing) {
		m.Expiration = formatMillis(delay)
		m.Headers = amqp.Table{"x-retry": int32(attempt)}
	})
}

func (p *Publisher) publish(ctx context.Context, routingKey string, ev CompletedEvent, opt func(*amqp.Publishing)) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Type:         ev.Type,
		Body:         body,
		Timestamp:    time.Now(),
	}
	if opt != nil {
		opt(&msg)
	}

	cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ch.PublishWithContext(cctx,
		"",         // default exchange
		routingKey, // routing key = queue
		false,
		false,
		msg,
	)
}

// DecodeCompleted parses a delivery body published by PublishCompleted.
func DecodeCompleted(body []byte) (CompletedEvent, error) {
	var ev CompletedEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return ev, err
	}
	if ev.SessionID == "" {
		return ev, errMissingSession
	}
	return ev, nil
}
