package queue

import (
    "context"
    "encoding/json"
    "fmt"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"

    "github.com/iliyamo/notes-marketplace/internal/logging"
)

// Publisher sends one event to the named queue.
type Publisher interface {
    Publish(ctx context.Context, queue string, event any) error
}

// dial is swapped in tests.
var dial = amqp.Dial

// AMQPPublisher publishes JSON events to RabbitMQ. A connection is opened
// per publish; events are rare compared to reads, and this keeps the
// publisher free of reconnect state. Errors are logged and returned so
// the caller can choose to ignore them.
type AMQPPublisher struct {
    url string
    log logging.Logger
}

func NewAMQPPublisher(url string, log logging.Logger) *AMQPPublisher {
    return &AMQPPublisher{url: url, log: log}
}

// Publish declares the durable queue (idempotent) and sends event as a
// persistent message.
func (p *AMQPPublisher) Publish(ctx context.Context, queue string, event any) error {
    body, err := json.Marshal(event)
    if err != nil {
        p.log.Error(ctx, "rabbitmq: marshal event failed", "queue", queue, "err", err)
        return fmt.Errorf("marshal event: %w", err)
    }

    conn, err := dial(p.url)
    if err != nil {
        p.log.Error(ctx, "rabbitmq: dial failed", "err", err)
        return err
    }
    defer func() { _ = conn.Close() }()

    ch, err := conn.Channel()
    if err != nil {
        p.log.Error(ctx, "rabbitmq: channel open failed", "err", err)
        return err
    }
    defer func() { _ = ch.Close() }()

    if _, err := ch.QueueDeclare(
        queue, // name
        true,  // durable
        false, // autoDelete
        false, // exclusive
        false, // noWait
        nil,   // args
    ); err != nil {
        p.log.Error(ctx, "rabbitmq: queue declare failed", "queue", queue, "err", err)
        return err
    }

    pub := amqp.Publishing{
        ContentType:  "application/json",
        DeliveryMode: amqp.Persistent, // store on disk
        Timestamp:    time.Now().UTC(),
        Body:         body,
    }
    if err := ch.PublishWithContext(ctx,
        "",    // default exchange
        queue, // routing key = queue name
        false, // mandatory
        false, // immediate
        pub,
    ); err != nil {
        p.log.Error(ctx, "rabbitmq: publish failed", "queue", queue, "err", err)
        return err
    }
    return nil
}

// NopPublisher drops every event. It is used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, any) error { return nil }
