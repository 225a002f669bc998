package queue

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher hands events to the broker.  Implementations must not block
// the caller on broker availability.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }

// DirectPublisher hands events to Sink in the calling goroutine.  It
// stands in for the broker when AMQP is disabled.
type DirectPublisher struct {
	Sink Sink
}

func (p DirectPublisher) Publish(ctx context.Context, ev Event) error {
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}
	return p.Sink.HandleEvent(ctx, ev)
}

// ErrBufferFull is returned by AMQPPublisher.Publish when the outbound
// buffer is saturated, typically because the broker is down.
var ErrBufferFull = errors.New("event buffer full")

// AMQPPublisher buffers events in memory and publishes them from a single
// goroutine started with Run.  The connection is opened lazily and
// reopened after any failure.  An event that fails to publish is held and
// retried with backoff; the buffer fills up behind it.
type AMQPPublisher struct {
	url    string
	queue  string
	events chan Event

	// held is the event being retried, owned by Run.
	held       *Event
	minBackoff time.Duration
	maxBackoff time.Duration

	conn *amqp.Connection
	ch   *amqp.Channel
}

// NewAMQPPublisher returns a publisher for url buffering up to buffer events.
func NewAMQPPublisher(url string, buffer int) *AMQPPublisher {
	if buffer <= 0 {
		buffer = 256
	}
	return &AMQPPublisher{
		url:        url,
		queue:      QueueName,
		events:     make(chan Event, buffer),
		minBackoff: time.Second,
		maxBackoff: 30 * time.Second,
	}
}

// Publish enqueues ev without waiting for the broker.
func (p *AMQPPublisher) Publish(_ context.Context, ev Event) error {
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}
	select {
	case p.events <- ev:
		return nil
	default:
		slog.Warn("event dropped", "type", ev.Type, "err", ErrBufferFull)
		return ErrBufferFull
	}
}

// Run publishes buffered events in order until ctx is cancelled.  Events
// not yet published when Run returns stay pending for the next Run.
func (p *AMQPPublisher) Run(ctx context.Context) {
	defer p.reset()
	backoff := p.minBackoff
	for {
		if p.held == nil {
			select {
			case <-ctx.Done():
				return
			case ev := <-p.events:
				p.held = &ev
			}
		}
		err := p.send(ctx, *p.held)
		if err == nil {
			p.held = nil
			backoff = p.minBackoff
			continue
		}
		slog.Error("event publish failed", "type", p.held.Type, "err", err, "retry_in", backoff)
		p.reset()
		if !sleep(ctx, backoff) {
			return
		}
		backoff = min(backoff*2, p.maxBackoff)
	}
}

// Pending counts the events not yet published.  It must not race with Run.
func (p *AMQPPublisher) Pending() int {
	n := len(p.events)
	if p.held != nil {
		n++
	}
	return n
}

func (p *AMQPPublisher) send(ctx context.Context, ev Event) error {
	if p.ch == nil {
		if err := p.open(); err != nil {
			return err
		}
	}
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent, // store on disk
		Timestamp:    ev.OccurredAt,
		Type:         ev.Type,
		Body:         body,
	}
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return p.ch.PublishWithContext(pctx,
		"",      // default exchange
		p.queue, // routing key = queue name
		false,   // mandatory
		false,   // immediate
		pub,
	)
}

func (p *AMQPPublisher) open() error {
	conn, err := amqp.DialConfig(p.url, amqp.Config{Dial: amqp.DefaultDial(3 * time.Second)})
	if err != nil {
		return err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return err
	}
	// Durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return err
	}
	p.conn, p.ch = conn, ch
	return nil
}

func (p *AMQPPublisher) reset() {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
	p.conn, p.ch = nil, nil
}
