package model

import "time"

// Purchase records that a buyer holds an entitlement to a note.  There
// is at most one row per (BuyerID, NoteID); rows are never updated or
// deleted.  AmountCents is the note price at the time of purchase and
// is not affected by later price edits.
type Purchase struct {
    ID            uint64    // purchases.id
    BuyerID       uint64    // purchases.buyer_id
    NoteID        uint64    // purchases.note_id
    AmountCents   Cents     // purchases.amount_cents
    PaymentMethod string    // purchases.payment_method
    PaymentRef    string    // purchases.payment_ref
    CreatedAt     time.Time // purchases.created_at
}

// Comment is a rating plus free text left on a note.
type Comment struct {
    ID         uint64    // comments.id
    NoteID     uint64    // comments.note_id
    AuthorID   uint64    // comments.author_id
    AuthorName string    // users.name (joined, read only)
    Rating     int       // comments.rating (1..5)
    Body       string    // comments.body
    CreatedAt  time.Time // comments.created_at
}
