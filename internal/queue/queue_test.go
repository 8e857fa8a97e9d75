package queue

import (
    "context"
    "encoding/json"
    "errors"
    "os"
    "path/filepath"
    "testing"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/iliyamo/notes-marketplace/internal/logging"
)

func TestHandleMessage_AppendsAuditLines(t *testing.T) {
    dir := t.TempDir()
    c := &Consumer{Dir: dir, Log: logging.Nop()}

    p, _ := json.Marshal(PurchaseCompletedEvent{PurchaseID: 1, BuyerID: 2, NoteID: 3, SellerID: 4, AmountCents: 10000, PaymentMethod: "paypal", CompletedAt: "2026-01-01T00:00:00Z"})
    require.NoError(t, c.HandleMessage(PurchaseCompletedQueue, p))
    require.NoError(t, c.HandleMessage(PurchaseCompletedQueue, p))

    w, _ := json.Marshal(WithdrawalCompletedEvent{WithdrawalID: 9, UserID: 4, AmountCents: 15000, PaymentMethod: "swish"})
    require.NoError(t, c.HandleMessage(WithdrawalCompletedQueue, w))

    purchases, err := os.ReadFile(filepath.Join(dir, "purchases.log"))
    require.NoError(t, err)
    assert.Contains(t, string(purchases), "purchase_id=1 | buyer_id=2 | note_id=3 | seller_id=4 | amount=10000 cents")
    assert.Equal(t, 2, countLines(purchases))

    withdrawals, err := os.ReadFile(filepath.Join(dir, "withdrawals.log"))
    require.NoError(t, err)
    assert.Contains(t, string(withdrawals), "withdrawal_id=9 | user_id=4 | amount=15000 cents | method=swish")
}

func TestHandleMessage_Rejects(t *testing.T) {
    c := &Consumer{Dir: t.TempDir(), Log: logging.Nop()}
    assert.Error(t, c.HandleMessage(PurchaseCompletedQueue, []byte("{")))
    assert.Error(t, c.HandleMessage("other.queue", []byte("{}")))
}

func TestAMQPPublisher_DialError(t *testing.T) {
    orig := dial
    t.Cleanup(func() { dial = orig })
    dial = func(url string) (*amqp.Connection, error) { return nil, errors.New("refused") }

    err := NewAMQPPublisher("amqp://x", logging.Nop()).Publish(context.Background(), PurchaseCompletedQueue, PurchaseCompletedEvent{})
    assert.EqualError(t, err, "refused")
}

func TestAMQPPublisher_MarshalError(t *testing.T) {
    err := NewAMQPPublisher("amqp://x", logging.Nop()).Publish(context.Background(), PurchaseCompletedQueue, make(chan int))
    assert.ErrorContains(t, err, "marshal event")
}

func TestConsumer_RunStopsOnCancel(t *testing.T) {
    orig := dial
    t.Cleanup(func() { dial = orig })
    dial = func(url string) (*amqp.Connection, error) { return nil, errors.New("refused") }

    ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
    defer cancel()
    err := (&Consumer{URL: "amqp://x", Log: logging.Nop()}).Run(ctx)
    assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func countLines(b []byte) int {
    n := 0
    for _, c := range b {
        if c == '\n' {
            n++
        }
    }
    return n
}
