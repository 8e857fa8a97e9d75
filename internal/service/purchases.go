package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/notes-marketplace/internal/access"
	"github.com/iliyamo/notes-marketplace/internal/dbx"
	"github.com/iliyamo/notes-marketplace/internal/model"
	"github.com/iliyamo/notes-marketplace/internal/payment"
	"github.com/iliyamo/notes-marketplace/internal/queue"
	"github.com/iliyamo/notes-marketplace/internal/repository"
)

// PurchaseService records entitlements and credits sellers.
type PurchaseService struct{ d Deps }

func NewPurchaseService(d Deps) *PurchaseService { return &PurchaseService{d: d.withDefaults()} }

// Receipt confirms a completed purchase.
type Receipt struct {
	PurchaseID    uint64
	NoteID        uint64
	Amount        model.Cents
	PaymentMethod string
	PaymentRef    string
}

// IdempotencyKey identifies the single charge allowed for a buyer/note pair.
func IdempotencyKey(buyerID, noteID uint64) string {
	return fmt.Sprintf("purchase:%d:%d", buyerID, noteID)
}

// Purchase buys noteID for buyerID in one transaction:
//
//  1. lock the note row; concurrent purchases of the same note queue here
//  2. run the access gate (missing/deleted note, self purchase), then
//     reject existing ownership
//  3. charge the gateway for the current price (skipped for free notes);
//     the charge stays under the note lock so a buyer/note pair never
//     has two captures sharing one idempotency key
//  4. insert the purchase, bump downloads and credit the seller
//
// The (buyer, note) unique key backs up step 2. A charge whose
// transaction does not commit is refunded.
func (s *PurchaseService) Purchase(ctx context.Context, buyerID, noteID uint64, method string) (Receipt, error) {
	if buyerID == 0 {
		return Receipt{}, ErrUnauthorized
	}
	method, err := payment.NormalizeMethod(method)
	if err != nil {
		return Receipt{}, validation("unsupported payment_method")
	}

	var (
		receipt  Receipt
		sellerID uint64
		charge   *payment.Charge
	)
	err = s.d.Tx.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		notes := s.d.Repos.Notes(tx)
		purchases := s.d.Repos.Purchases(tx)

		n, err := notes.LockByID(ctx, noteID)
		if err != nil {
			return err
		}
		switch access.CheckPurchase(buyerID, n) {
		case access.PurchaseAnonymous:
			return ErrUnauthorized
		case access.PurchaseUnavailable:
			return ErrNotFound
		case access.PurchaseOwnNote:
			return ErrSelfPurchase
		}
		owned, err := purchases.Exists(ctx, buyerID, noteID)
		if err != nil {
			return err
		}
		if owned {
			return ErrAlreadyOwned
		}

		p := &model.Purchase{BuyerID: buyerID, NoteID: noteID, AmountCents: n.PriceCents, PaymentMethod: method}
		if p.AmountCents > 0 {
			c, err := s.d.Payments.Charge(ctx, payment.ChargeRequest{
				IdempotencyKey: IdempotencyKey(buyerID, noteID),
				Amount:         p.AmountCents,
				Method:         method,
			})
			if err != nil {
				return fmt.Errorf("%w: charge: %v", ErrUpstream, err)
			}
			charge = &c
			p.PaymentRef = c.Ref
		}
		if err := purchases.Create(ctx, p); err != nil {
			return err
		}
		if err := notes.IncrementDownloads(ctx, noteID); err != nil {
			return err
		}
		if p.AmountCents > 0 {
			if err := s.d.Repos.Ledger(tx).Append(ctx, &model.LedgerEntry{
				UserID:      n.OwnerID,
				Kind:        model.EntryCredit,
				AmountCents: p.AmountCents,
				PurchaseID:  &p.ID,
			}); err != nil {
				return err
			}
		}
		sellerID = n.OwnerID
		receipt = Receipt{PurchaseID: p.ID, NoteID: noteID, Amount: p.AmountCents, PaymentMethod: method, PaymentRef: p.PaymentRef}
		return nil
	})
	if err != nil {
		if charge != nil {
			s.refund(ctx, charge.Ref)
		}
		return Receipt{}, s.purchaseErr(err)
	}

	s.d.Log.Info(ctx, "purchase completed",
		"purchase_id", receipt.PurchaseID, "buyer_id", buyerID, "note_id", noteID,
		"seller_id", sellerID, "amount_cents", int64(receipt.Amount))
	s.d.invalidateSearch(ctx)
	ev := queue.PurchaseCompletedEvent{
		PurchaseID:    receipt.PurchaseID,
		BuyerID:       buyerID,
		NoteID:        noteID,
		SellerID:      sellerID,
		AmountCents:   int64(receipt.Amount),
		PaymentMethod: method,
		PaymentRef:    receipt.PaymentRef,
		CompletedAt:   s.d.Now().Format(time.RFC3339),
	}
	if err := s.d.Events.Publish(ctx, queue.PurchaseCompletedQueue, ev); err != nil {
		s.d.Log.Warn(ctx, "publish purchase event failed", "purchase_id", receipt.PurchaseID, "err", err)
	}
	return receipt, nil
}

func (s *PurchaseService) refund(ctx context.Context, ref string) {
	if err := s.d.Payments.Refund(context.WithoutCancel(ctx), ref); err != nil {
		s.d.Log.Error(ctx, "refund after failed purchase failed", "payment_ref", ref, "err", err)
		return
	}
	s.d.Log.Warn(ctx, "charge refunded after failed purchase", "payment_ref", ref)
}

// purchaseErr keeps domain errors and reports everything else, including
// commit failures, as an upstream failure.
func (s *PurchaseService) purchaseErr(err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, repository.ErrDuplicate):
		return ErrAlreadyOwned
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrConflict), errors.Is(err, ErrUpstream), errors.Is(err, ErrUnauthorized):
		return err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	}
	return upstream("purchase", err)
}
