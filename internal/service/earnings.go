package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/notes-marketplace/internal/dbx"
	"github.com/iliyamo/notes-marketplace/internal/model"
	"github.com/iliyamo/notes-marketplace/internal/payment"
	"github.com/iliyamo/notes-marketplace/internal/queue"
	"github.com/iliyamo/notes-marketplace/internal/repository"
)

// EarningsService exposes the ledger fold and withdrawals.
type EarningsService struct{ d Deps }

func NewEarningsService(d Deps) *EarningsService { return &EarningsService{d: d.withDefaults()} }

// Balance folds the user's ledger.
func (s *EarningsService) Balance(ctx context.Context, userID uint64) (model.Balance, error) {
	return s.d.Repos.Ledger(s.d.Tx.Conn()).Balance(ctx, userID)
}

// Withdraw pays out the whole available balance. requested is the amount
// the caller believes is available; zero means "everything". The user row
// is locked for the duration so concurrent withdrawals serialize and the
// second one sees the first one's debit.
func (s *EarningsService) Withdraw(ctx context.Context, userID uint64, requested model.Cents, method string) (model.Withdrawal, error) {
	if requested < 0 {
		return model.Withdrawal{}, validation("amount must not be negative")
	}
	method, err := payment.NormalizeMethod(method)
	if err != nil {
		return model.Withdrawal{}, validation("unsupported payment_method")
	}

	var w model.Withdrawal
	err = s.d.Tx.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := s.d.Repos.Users(tx).LockByID(ctx, userID); err != nil {
			return err
		}
		ledger := s.d.Repos.Ledger(tx)
		bal, err := ledger.Balance(ctx, userID)
		if err != nil {
			return err
		}
		available := bal.Available()
		if !bal.CanWithdraw() {
			return fmt.Errorf("%w: available %s, minimum %s", ErrBelowMinimum, available, model.MinimumWithdrawalCents)
		}
		if requested > available {
			return fmt.Errorf("%w: requested %s, available %s", ErrInsufficientBalance, requested, available)
		}
		w = model.Withdrawal{UserID: userID, AmountCents: available, PaymentMethod: method}
		if err := ledger.CreateWithdrawal(ctx, &w); err != nil {
			return err
		}
		return ledger.Append(ctx, &model.LedgerEntry{
			UserID:       userID,
			Kind:         model.EntryDebit,
			AmountCents:  available,
			WithdrawalID: &w.ID,
		})
	})
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return model.Withdrawal{}, ErrNotFound
		case errors.Is(err, ErrBelowMinimum), errors.Is(err, ErrInsufficientBalance):
			return model.Withdrawal{}, err
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return model.Withdrawal{}, err
		}
		return model.Withdrawal{}, upstream("withdraw", err)
	}
	w.CreatedAt = s.d.Now()

	s.d.Log.Info(ctx, "withdrawal completed", "withdrawal_id", w.ID, "user_id", userID, "amount_cents", int64(w.AmountCents))
	ev := queue.WithdrawalCompletedEvent{
		WithdrawalID:  w.ID,
		UserID:        userID,
		AmountCents:   int64(w.AmountCents),
		PaymentMethod: method,
		CompletedAt:   w.CreatedAt.Format(time.RFC3339),
	}
	if err := s.d.Events.Publish(ctx, queue.WithdrawalCompletedQueue, ev); err != nil {
		s.d.Log.Warn(ctx, "publish withdrawal event failed", "withdrawal_id", w.ID, "err", err)
	}
	return w, nil
}
