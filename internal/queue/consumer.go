package queue

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "os"
    "path/filepath"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"

    "github.com/iliyamo/notes-marketplace/internal/logging"
)

// Consumer listens to the marketplace queues and appends one line per
// event to an audit log file under Dir (purchases.log, withdrawals.log).
type Consumer struct {
    URL string
    Dir string
    Log logging.Logger
}

// Run connects to RabbitMQ and consumes until ctx is cancelled, redialing
// with exponential backoff (capped at 30s) whenever the connection drops.
// Messages that fail processing are rejected without requeue so a poison
// message cannot cause a tight loop.
func (c *Consumer) Run(ctx context.Context) error {
    backoff := time.Second
    for {
        conn, err := dial(c.URL)
        if err != nil {
            c.Log.Warn(ctx, "consumer: failed to dial broker", "err", err, "retry_in", backoff.String())
            if !sleep(ctx, backoff) {
                return ctx.Err()
            }
            if backoff < 30*time.Second {
                backoff *= 2
            }
            continue
        }
        backoff = time.Second

        err = c.consumeLoop(ctx, conn)
        _ = conn.Close()
        if ctx.Err() != nil {
            return ctx.Err()
        }
        c.Log.Warn(ctx, "consumer: consume loop ended; reconnecting", "err", err)
        if !sleep(ctx, 2*time.Second) {
            return ctx.Err()
        }
    }
}

func sleep(ctx context.Context, d time.Duration) bool {
    t := time.NewTimer(d)
    defer t.Stop()
    select {
    case <-t.C:
        return true
    case <-ctx.Done():
        return false
    }
}

func (c *Consumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
    ch, err := conn.Channel()
    if err != nil {
        return fmt.Errorf("channel open: %w", err)
    }
    defer func() { _ = ch.Close() }()

    if err := ch.Qos(50, 0, false); err != nil {
        c.Log.Warn(ctx, "consumer: set QoS failed", "err", err)
    }

    type source struct {
        queue string
        msgs  <-chan amqp.Delivery
    }
    var sources []source
    for _, q := range []string{PurchaseCompletedQueue, WithdrawalCompletedQueue} {
        if _, err := ch.QueueDeclare(q, true, false, false, false, nil); err != nil {
            return fmt.Errorf("queue declare %s: %w", q, err)
        }
        msgs, err := ch.Consume(q, "", false, false, false, false, nil)
        if err != nil {
            return fmt.Errorf("queue consume %s: %w", q, err)
        }
        sources = append(sources, source{queue: q, msgs: msgs})
    }

    purchases, withdrawals := sources[0].msgs, sources[1].msgs
    for {
        var (
            d     amqp.Delivery
            ok    bool
            queue string
        )
        select {
        case <-ctx.Done():
            return ctx.Err()
        case d, ok = <-purchases:
            queue = PurchaseCompletedQueue
        case d, ok = <-withdrawals:
            queue = WithdrawalCompletedQueue
        }
        if !ok {
            return errors.New("deliveries channel closed")
        }
        if err := c.HandleMessage(queue, d.Body); err != nil {
            c.Log.Error(ctx, "consumer: handle message failed", "queue", queue, "err", err)
            _ = d.Nack(false, false)
            continue
        }
        _ = d.Ack(false)
    }
}

// HandleMessage decodes one event and appends its audit line.
func (c *Consumer) HandleMessage(queue string, body []byte) error {
    var (
        file string
        line string
    )
    switch queue {
    case PurchaseCompletedQueue:
        var ev PurchaseCompletedEvent
        if err := json.Unmarshal(body, &ev); err != nil {
            return fmt.Errorf("unmarshal: %w", err)
        }
        file = "purchases.log"
        line = fmt.Sprintf("[%s] Purchase completed | purchase_id=%d | buyer_id=%d | note_id=%d | seller_id=%d | amount=%d cents | method=%s | ref=%s\n",
            ev.CompletedAt, ev.PurchaseID, ev.BuyerID, ev.NoteID, ev.SellerID, ev.AmountCents, ev.PaymentMethod, ev.PaymentRef)
    case WithdrawalCompletedQueue:
        var ev WithdrawalCompletedEvent
        if err := json.Unmarshal(body, &ev); err != nil {
            return fmt.Errorf("unmarshal: %w", err)
        }
        file = "withdrawals.log"
        line = fmt.Sprintf("[%s] Withdrawal completed | withdrawal_id=%d | user_id=%d | amount=%d cents | method=%s\n",
            ev.CompletedAt, ev.WithdrawalID, ev.UserID, ev.AmountCents, ev.PaymentMethod)
    default:
        return fmt.Errorf("unknown queue %q", queue)
    }

    dir := c.Dir
    if dir == "" {
        dir = "logs"
    }
    if err := os.MkdirAll(dir, 0o755); err != nil {
        return fmt.Errorf("mkdir logs: %w", err)
    }
    f, err := os.OpenFile(filepath.Join(dir, file), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
    if err != nil {
        return fmt.Errorf("open log file: %w", err)
    }
    defer f.Close()
    if _, err := f.WriteString(line); err != nil {
        return fmt.Errorf("write log: %w", err)
    }
    return nil
}
