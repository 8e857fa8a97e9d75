// Package queue defines message payloads exchanged over the message broker
// together with the RabbitMQ publisher and the background consumer.
package queue

// Queue names. Each event type has its own durable queue on the default
// exchange; the routing key equals the queue name.
const (
    PurchaseCompletedQueue   = "purchase.completed"
    WithdrawalCompletedQueue = "withdrawal.completed"
)

// PurchaseCompletedEvent is published after a purchase transaction commits.
// It carries enough information for downstream consumers to log, notify the
// seller, or trigger analytics without querying the primary database.
type PurchaseCompletedEvent struct {
    PurchaseID    uint64 `json:"purchase_id"`
    BuyerID       uint64 `json:"buyer_id"`
    NoteID        uint64 `json:"note_id"`
    SellerID      uint64 `json:"seller_id"`
    AmountCents   int64  `json:"amount_cents"`
    PaymentMethod string `json:"payment_method"`
    PaymentRef    string `json:"payment_ref"`
    CompletedAt   string `json:"completed_at"`
}

// WithdrawalCompletedEvent is published after a withdrawal commits.
type WithdrawalCompletedEvent struct {
    WithdrawalID  uint64 `json:"withdrawal_id"`
    UserID        uint64 `json:"user_id"`
    AmountCents   int64  `json:"amount_cents"`
    PaymentMethod string `json:"payment_method"`
    CompletedAt   string `json:"completed_at"`
}
