package repository

import (
	"context"

	"github.com/iliyamo/notes-marketplace/internal/dbx"
	"github.com/iliyamo/notes-marketplace/internal/model"
)

// LedgerRepo appends monetary entries. There is no update or delete:
// a user's balance is always the fold of their entries.
type LedgerRepo struct{ db dbx.DBTX }

func NewLedgerRepo(db dbx.DBTX) *LedgerRepo { return &LedgerRepo{db: db} }

// Append inserts e and sets its ID.
func (r *LedgerRepo) Append(ctx context.Context, e *model.LedgerEntry) error {
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO ledger_entries (user_id, kind, amount_cents, purchase_id, withdrawal_id) VALUES (?,?,?,?,?)",
		e.UserID, e.Kind, e.AmountCents, e.PurchaseID, e.WithdrawalID)
	if err != nil {
		return translate("append ledger", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return translate("append ledger", err)
	}
	e.ID = uint64(id)
	return nil
}

// Balance folds the user's ledger in SQL.
func (r *LedgerRepo) Balance(ctx context.Context, userID uint64) (model.Balance, error) {
	const q = `SELECT COALESCE(SUM(CASE WHEN kind='CREDIT' THEN amount_cents ELSE 0 END),0),
                      COALESCE(SUM(CASE WHEN kind='DEBIT'  THEN amount_cents ELSE 0 END),0)
                 FROM ledger_entries WHERE user_id=?`
	var b model.Balance
	err := r.db.QueryRowContext(ctx, q, userID).Scan(&b.Earnings, &b.Withdrawn)
	return b, translate("ledger balance", err)
}

// CreateWithdrawal inserts w and sets its ID. The matching DEBIT entry
// is appended separately by the caller in the same transaction.
func (r *LedgerRepo) CreateWithdrawal(ctx context.Context, w *model.Withdrawal) error {
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO withdrawals (user_id, amount_cents, payment_method) VALUES (?,?,?)",
		w.UserID, w.AmountCents, w.PaymentMethod)
	if err != nil {
		return translate("insert withdrawal", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return translate("insert withdrawal", err)
	}
	w.ID = uint64(id)
	return nil
}
