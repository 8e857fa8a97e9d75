package repository

import (
	"context"

	"github.com/iliyamo/notes-marketplace/internal/dbx"
	"github.com/iliyamo/notes-marketplace/internal/model"
)

// PurchaseRepo persists entitlements. Rows are insert-only.
type PurchaseRepo struct{ db dbx.DBTX }

func NewPurchaseRepo(db dbx.DBTX) *PurchaseRepo { return &PurchaseRepo{db: db} }

// Create inserts p and sets its ID. The (buyer_id, note_id) unique key
// makes a second purchase fail with ErrDuplicate.
func (r *PurchaseRepo) Create(ctx context.Context, p *model.Purchase) error {
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO purchases (buyer_id, note_id, amount_cents, payment_method, payment_ref) VALUES (?,?,?,?,?)",
		p.BuyerID, p.NoteID, p.AmountCents, p.PaymentMethod, p.PaymentRef)
	if err != nil {
		return translate("insert purchase", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return translate("insert purchase", err)
	}
	p.ID = uint64(id)
	return nil
}

// Exists reports whether buyerID holds an entitlement to noteID.
func (r *PurchaseRepo) Exists(ctx context.Context, buyerID, noteID uint64) (bool, error) {
	var ok bool
	err := r.db.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM purchases WHERE buyer_id=? AND note_id=?)",
		buyerID, noteID).Scan(&ok)
	if err != nil {
		return false, translate("purchase exists", err)
	}
	return ok, nil
}

// CountByBuyer counts notes purchased by buyerID.
func (r *PurchaseRepo) CountByBuyer(ctx context.Context, buyerID uint64) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM purchases WHERE buyer_id=?", buyerID).Scan(&n)
	return n, translate("count purchases", err)
}
