package model

import "time"

// EntryKind is the direction of a ledger entry.
type EntryKind string

const (
    EntryCredit EntryKind = "CREDIT" // earnings from a sale
    EntryDebit  EntryKind = "DEBIT"  // withdrawal payout
)

// MinimumWithdrawalCents is the smallest available balance that may be
// withdrawn (150.00).  It is policy, not configuration.
const MinimumWithdrawalCents Cents = 15000

// LedgerEntry is one append-only monetary event for a user.  Exactly one
// of PurchaseID and WithdrawalID is set.
type LedgerEntry struct {
    ID           uint64    // ledger_entries.id
    UserID       uint64    // ledger_entries.user_id
    Kind         EntryKind // ledger_entries.kind
    AmountCents  Cents     // ledger_entries.amount_cents (> 0)
    PurchaseID   *uint64   // ledger_entries.purchase_id
    WithdrawalID *uint64   // ledger_entries.withdrawal_id
    CreatedAt    time.Time // ledger_entries.created_at
}

// Withdrawal is a payout of a user's whole available balance.
type Withdrawal struct {
    ID            uint64    // withdrawals.id
    UserID        uint64    // withdrawals.user_id
    AmountCents   Cents     // withdrawals.amount_cents
    PaymentMethod string    // withdrawals.payment_method
    CreatedAt     time.Time // withdrawals.created_at
}

// Balance is the fold of a user's ledger.
type Balance struct {
    Earnings  Cents
    Withdrawn Cents
}

// Available returns earnings minus withdrawals.
func (b Balance) Available() Cents { return b.Earnings - b.Withdrawn }

// CanWithdraw reports whether the available balance reaches the minimum.
func (b Balance) CanWithdraw() bool { return b.Available() >= MinimumWithdrawalCents }

// Apply folds one entry into the balance.
func (b Balance) Apply(e LedgerEntry) Balance {
    switch e.Kind {
    case EntryCredit:
        b.Earnings += e.AmountCents
    case EntryDebit:
        b.Withdrawn += e.AmountCents
    }
    return b
}
