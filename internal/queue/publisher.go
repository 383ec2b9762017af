package queue

import (
    "context"
    "encoding/json"
    "errors"
    "log"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
)

// ExchangeName is the durable topic exchange all events go through.
const ExchangeName = "seminar.events"

// ErrPublishQueueFull is returned by AMQPPublisher.Publish when the send
// buffer is full.  The event is dropped.
var ErrPublishQueueFull = errors.New("rabbitmq: publish queue full")

// Publisher hands events to the broker.  Implementations must not panic;
// callers treat a returned error as non-fatal.
type Publisher interface {
    Publish(ctx context.Context, ev Event) error
}

// AMQPPublisher publishes to RabbitMQ over one long-lived connection owned
// by Run.  Publish only enqueues, so a slow or absent broker never blocks a
// request.  Messages are persistent and routed by Event.Type.
type AMQPPublisher struct {
    URL         string
    DialTimeout time.Duration
    // MaxBackoff caps the wait between reconnect attempts.
    MaxBackoff time.Duration

    events chan Event
    conn   *amqp.Connection
    ch     *amqp.Channel
}

// NewAMQPPublisher returns a publisher for the broker at url that queues up
// to buffer events.  Nothing is sent until Run is started.
func NewAMQPPublisher(url string, buffer int) *AMQPPublisher {
    if buffer <= 0 {
        buffer = 256
    }
    return &AMQPPublisher{
        URL:         url,
        DialTimeout: 2 * time.Second,
        MaxBackoff:  30 * time.Second,
        events:      make(chan Event, buffer),
    }
}

// Publish queues ev for Run.  It never waits: a full queue returns
// ErrPublishQueueFull.
func (p *AMQPPublisher) Publish(ctx context.Context, ev Event) error {
    if err := ctx.Err(); err != nil {
        return err
    }
    select {
    case p.events <- ev:
        return nil
    default:
        return ErrPublishQueueFull
    }
}

// Run sends queued events until ctx is cancelled, then flushes what is
// still queued on the open connection and closes it.  A failed dial or
// publish drops the event in hand and backs off before reconnecting.
func (p *AMQPPublisher) Run(ctx context.Context) error {
    defer p.disconnect()
    backoff := time.Second
    for {
        select {
        case <-ctx.Done():
            p.flush()
            return ctx.Err()
        case ev := <-p.events:
            if err := p.send(ctx, ev); err != nil {
                log.Printf("rabbitmq: publish %s failed: %v; retrying connection in %s", ev.Type, err, backoff)
                p.disconnect()
                if !sleepCtx(ctx, backoff) {
                    return ctx.Err()
                }
                backoff = min(backoff*2, p.MaxBackoff)
                continue
            }
            backoff = time.Second
        }
    }
}

func (p *AMQPPublisher) flush() {
    if p.ch == nil || p.ch.IsClosed() {
        return
    }
    ctx, cancel := context.WithTimeout(context.Background(), p.DialTimeout)
    defer cancel()
    for {
        select {
        case ev := <-p.events:
            if err := p.send(ctx, ev); err != nil {
                log.Printf("rabbitmq: flush %s failed: %v", ev.Type, err)
                return
            }
        default:
            return
        }
    }
}

func (p *AMQPPublisher) send(ctx context.Context, ev Event) error {
    if err := p.connect(); err != nil {
        return err
    }
    body, err := json.Marshal(ev)
    if err != nil {
        log.Printf("rabbitmq: marshal event failed: %v", err)
        return nil
    }
    pub := amqp.Publishing{
        ContentType:  "application/json",
        DeliveryMode: amqp.Persistent,
        Timestamp:    time.Now().UTC(),
        Type:         ev.Type,
        Body:         body,
    }
    return p.ch.PublishWithContext(ctx, ExchangeName, ev.Type, false, false, pub)
}

// connect opens the connection and channel if they are missing or closed.
func (p *AMQPPublisher) connect() error {
    if p.conn != nil && !p.conn.IsClosed() && p.ch != nil && !p.ch.IsClosed() {
        return nil
    }
    p.disconnect()

    conn, err := amqp.DialConfig(p.URL, amqp.Config{Dial: amqp.DefaultDial(p.DialTimeout)})
    if err != nil {
        return err
    }
    ch, err := conn.Channel()
    if err != nil {
        _ = conn.Close()
        return err
    }
    if err := declareExchange(ch); err != nil {
        _ = conn.Close()
        return err
    }
    p.conn, p.ch = conn, ch
    return nil
}

func (p *AMQPPublisher) disconnect() {
    if p.ch != nil {
        _ = p.ch.Close()
        p.ch = nil
    }
    if p.conn != nil {
        _ = p.conn.Close()
        p.conn = nil
    }
}

// NopPublisher drops every event.  It is used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }

func declareExchange(ch *amqp.Channel) error {
    return ch.ExchangeDeclare(ExchangeName, "topic", true, false, false, false, nil)
}
