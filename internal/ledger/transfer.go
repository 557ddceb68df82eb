package ledger

import (
	"bytes"
	"context"

	"github.com/google/uuid"
	"github.com/jbily/BANKS-MO/internal/models"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Transfer moves amount between two accounts as a single atomic unit.
// Both row locks are taken in ascending id order regardless of direction,
// so two opposite transfers between the same pair can never deadlock.
// The source must be owned by userID; the destination only has to exist,
// be active and hold the same currency.
func (s *Service) Transfer(ctx context.Context, userID, fromID, toID uuid.UUID, amount decimal.Decimal, description string) (rec *models.Transaction, err error) {
	defer s.observe("transfer", s.cfg.Now(), &err)

	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if fromID == toID {
		return nil, ErrInvalidTransfer
	}
	if description == "" {
		description = "Account transfer"
	}

	err = s.store.Within(ctx, func(tx Tx) error {
		firstID, secondID := orderIDs(fromID, toID)
		first, err := tx.AccountForUpdate(ctx, firstID)
		if err != nil {
			return err
		}
		second, err := tx.AccountForUpdate(ctx, secondID)
		if err != nil {
			return err
		}

		from, to := first, second
		if from.ID != fromID {
			from, to = second, first
		}

		if from.UserID != userID {
			return ErrNotFound
		}
		if !from.IsActive || !to.IsActive {
			return ErrInactiveAccount
		}
		if from.Currency != to.Currency {
			return ErrCurrencyMismatch
		}
		if from.Balance.LessThan(amount) {
			return ErrInsufficientFunds
		}
		if err := Reserve(&from.Transfer, amount, s.cfg.Now()); err != nil {
			return err
		}

		from.Balance = from.Balance.Sub(amount)
		to.Balance = to.Balance.Add(amount)
		if err := tx.SaveAccount(ctx, from); err != nil {
			return err
		}
		if err := tx.SaveAccount(ctx, to); err != nil {
			return err
		}

		r := &models.Transaction{
			Type:          models.TxTransfer,
			Amount:        amount,
			Currency:      from.Currency,
			Description:   description,
			Status:        models.StatusCompleted,
			FromAccountID: &from.ID,
			ToAccountID:   &to.ID,
			Metadata:      models.Metadata{"source": "user_transfer"},
		}
		if err := Record(ctx, tx, r, s.cfg.Rand, s.cfg.Now()); err != nil {
			return err
		}
		rec = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("transfer completed",
		zap.String("from", fromID.String()),
		zap.String("to", toID.String()),
		zap.String("amount", amount.String()),
		zap.String("reference", rec.Reference))
	return rec, nil
}

// ChargeFee debits a fee from an active account. Fees do not consume the
// transfer-limit windows.
func (s *Service) ChargeFee(ctx context.Context, userID, accountID uuid.UUID, amount decimal.Decimal, description string) (acct *models.Account, rec *models.Transaction, err error) {
	defer s.observe("charge_fee", s.cfg.Now(), &err)

	if !amount.IsPositive() {
		return nil, nil, ErrInvalidAmount
	}
	if description == "" {
		description = "Service fee"
	}

	err = s.store.Within(ctx, func(tx Tx) error {
		a, err := s.lockOwned(ctx, tx, accountID, userID)
		if err != nil {
			return err
		}
		if !a.IsActive {
			return ErrInactiveAccount
		}
		if a.Balance.LessThan(amount) {
			return ErrInsufficientFunds
		}

		a.Balance = a.Balance.Sub(amount)
		if err := tx.SaveAccount(ctx, a); err != nil {
			return err
		}

		r := &models.Transaction{
			Type:          models.TxFee,
			Amount:        amount,
			Currency:      a.Currency,
			Description:   description,
			Status:        models.StatusCompleted,
			FromAccountID: &a.ID,
			Metadata:      models.Metadata{"source": "fee"},
		}
		if err := Record(ctx, tx, r, s.cfg.Rand, s.cfg.Now()); err != nil {
			return err
		}
		acct, rec = a, r
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return acct, rec, nil
}

// Refund credits part or all of a completed debit (payment, withdrawal or
// fee) back to its source account, recording a refund transaction linked to
// the original reference. Refunds against one original may never sum past
// its amount; the cumulative cap is checked under the source account's row
// lock so concurrent refunds serialize.
func (s *Service) Refund(ctx context.Context, userID uuid.UUID, reference string, amount decimal.Decimal, description string) (rec *models.Transaction, err error) {
	defer s.observe("refund", s.cfg.Now(), &err)

	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if description == "" {
		description = "Refund of " + reference
	}

	err = s.store.Within(ctx, func(tx Tx) error {
		orig, err := tx.TransactionByReference(ctx, reference)
		if err != nil {
			return err
		}
		switch orig.Type {
		case models.TxPayment, models.TxWithdrawal, models.TxFee:
		default:
			return ErrNotRefundable
		}
		if orig.Status != models.StatusCompleted || orig.FromAccountID == nil {
			return ErrNotRefundable
		}

		a, err := s.lockOwned(ctx, tx, *orig.FromAccountID, userID)
		if err != nil {
			return err
		}
		if !a.IsActive {
			return ErrInactiveAccount
		}

		refunded, err := tx.RefundedTotal(ctx, reference)
		if err != nil {
			return err
		}
		if refunded.Add(amount).GreaterThan(orig.Amount) {
			return ErrInvalidAmount
		}

		a.Balance = a.Balance.Add(amount)
		if err := tx.SaveAccount(ctx, a); err != nil {
			return err
		}

		r := &models.Transaction{
			Type:        models.TxRefund,
			Amount:      amount,
			Currency:    orig.Currency,
			Description: description,
			Status:      models.StatusCompleted,
			ToAccountID: orig.FromAccountID,
			CardID:      orig.CardID,
			RefundOf:    &orig.Reference,
			Metadata:    models.Metadata{"refundOf": reference},
		}
		if err := Record(ctx, tx, r, s.cfg.Rand, s.cfg.Now()); err != nil {
			return err
		}
		rec = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("refund completed",
		zap.String("refundOf", reference),
		zap.String("reference", rec.Reference),
		zap.String("amount", amount.String()))
	return rec, nil
}

// CancelTransaction moves a pending transaction owned by userID to
// cancelled. Terminal statuses never transition again.
func (s *Service) CancelTransaction(ctx context.Context, userID uuid.UUID, reference string) (err error) {
	defer s.observe("cancel_transaction", s.cfg.Now(), &err)

	orig, err := s.store.TransactionByReference(ctx, reference)
	if err != nil {
		return err
	}
	if !s.ownsSide(ctx, userID, orig.FromAccountID) && !s.ownsSide(ctx, userID, orig.ToAccountID) {
		return ErrNotFound
	}
	return s.store.Within(ctx, func(tx Tx) error {
		return tx.UpdateTransactionStatus(ctx, orig.ID, models.StatusCancelled)
	})
}

func (s *Service) ownsSide(ctx context.Context, userID uuid.UUID, accountID *uuid.UUID) bool {
	if accountID == nil {
		return false
	}
	a, err := s.store.AccountByID(ctx, *accountID)
	return err == nil && a.UserID == userID
}

// orderIDs returns the pair in ascending byte order, the global lock order
// for multi-account units.
func orderIDs(a, b uuid.UUID) (uuid.UUID, uuid.UUID) {
	if bytes.Compare(a[:], b[:]) <= 0 {
		return a, b
	}
	return b, a
}
