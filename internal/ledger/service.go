package ledger

import (
	"context"
	"crypto/rand"
	"errors"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/jbily/BANKS-MO/internal/models"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Default transfer limits applied to newly opened accounts.
var (
	DefaultDailyTransferLimit   = decimal.NewFromInt(5000)
	DefaultMonthlyTransferLimit = decimal.NewFromInt(50000)
)

// Observer receives one callback per finished ledger operation.
type Observer interface {
	Observe(op string, d time.Duration, err error)
}

// Config carries the deployment choices of the ledger core.
type Config struct {
	// CountWithdrawalsAgainstLimits makes Withdraw reserve the account's
	// transfer-limit windows the way Transfer does. The default keeps
	// withdrawals unlimited; only transfers consume the windows.
	CountWithdrawalsAgainstLimits bool

	// Now and Rand default to time.Now and crypto/rand.Reader. Tests
	// substitute a fixed clock and a deterministic source.
	Now  func() time.Time
	Rand io.Reader
}

// Service owns every balance mutation. All writes go through one atomic
// unit per call: the balance update and its transaction record either both
// persist or neither does.
type Service struct {
	store Store
	cfg   Config
	log   *zap.Logger
	obs   Observer
}

func NewService(store Store, cfg Config, log *zap.Logger, obs Observer) *Service {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Rand == nil {
		cfg.Rand = rand.Reader
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: store, cfg: cfg, log: log, obs: obs}
}

// OpenAccountParams describes a new account. A positive InitialDeposit is
// applied in the same atomic unit as the account row, paired with a
// completed deposit transaction.
type OpenAccountParams struct {
	Type           models.AccountType
	Currency       models.Currency
	InitialDeposit decimal.Decimal
}

func (s *Service) OpenAccount(ctx context.Context, userID uuid.UUID, p OpenAccountParams) (acct *models.Account, err error) {
	defer s.observe("open_account", s.cfg.Now(), &err)

	if !p.Type.Valid() {
		return nil, ErrInvalidAccountType
	}
	if !p.Currency.Supported() {
		return nil, ErrUnsupportedCurrency
	}
	if p.InitialDeposit.IsNegative() {
		return nil, ErrInvalidAmount
	}

	now := s.cfg.Now()
	a := &models.Account{
		UserID:      userID,
		AccountType: p.Type,
		Balance:     decimal.Zero,
		Currency:    p.Currency,
		IsActive:    true,
		Transfer: models.LimitUsage{
			DailyLimit:   DefaultDailyTransferLimit,
			MonthlyLimit: DefaultMonthlyTransferLimit,
			DailyUsed:    decimal.Zero,
			MonthlyUsed:  decimal.Zero,
			LastReset:    now,
		},
	}
	if p.InitialDeposit.IsPositive() {
		a.Balance = p.InitialDeposit
	}

	err = s.store.Within(ctx, func(tx Tx) error {
		if err := s.createAccountUniqueNumber(ctx, tx, a); err != nil {
			return err
		}
		if p.InitialDeposit.IsPositive() {
			rec := &models.Transaction{
				Type:        models.TxDeposit,
				Amount:      p.InitialDeposit,
				Currency:    a.Currency,
				Description: "Initial deposit",
				Status:      models.StatusCompleted,
				ToAccountID: &a.ID,
				Metadata:    models.Metadata{"source": "account_opening"},
			}
			return Record(ctx, tx, rec, s.cfg.Rand, now)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("account opened",
		zap.String("account", a.ID.String()),
		zap.String("number", a.AccountNumber),
		zap.String("currency", string(a.Currency)))
	return a, nil
}

// createAccountUniqueNumber inserts a with a generated 8-digit account
// number, regenerating on collision.
func (s *Service) createAccountUniqueNumber(ctx context.Context, tx Tx, a *models.Account) error {
	var err error
	for attempt := 0; attempt < maxUniqueAttempts; attempt++ {
		a.ID = uuid.New()
		a.AccountNumber, err = RandomDigits(s.cfg.Rand, 8)
		if err != nil {
			return err
		}
		// A leading zero would shorten the printed number elsewhere.
		if a.AccountNumber[0] == '0' {
			a.AccountNumber = "1" + a.AccountNumber[1:]
		}
		err = tx.CreateAccount(ctx, a)
		if !errors.Is(err, ErrDuplicate) {
			return err
		}
	}
	return err
}

// Deposit credits amount to an active account owned by userID and records a
// completed deposit transaction in the same atomic unit.
func (s *Service) Deposit(ctx context.Context, userID, accountID uuid.UUID, amount decimal.Decimal, description string) (acct *models.Account, rec *models.Transaction, err error) {
	defer s.observe("deposit", s.cfg.Now(), &err)

	if !amount.IsPositive() {
		return nil, nil, ErrInvalidAmount
	}
	if description == "" {
		description = "Account deposit"
	}

	err = s.store.Within(ctx, func(tx Tx) error {
		a, err := s.lockOwned(ctx, tx, accountID, userID)
		if err != nil {
			return err
		}
		if !a.IsActive {
			return ErrInactiveAccount
		}

		a.Balance = a.Balance.Add(amount)
		if err := tx.SaveAccount(ctx, a); err != nil {
			return err
		}

		r := &models.Transaction{
			Type:        models.TxDeposit,
			Amount:      amount,
			Currency:    a.Currency,
			Description: description,
			Status:      models.StatusCompleted,
			ToAccountID: &a.ID,
			Metadata:    models.Metadata{"source": "user_deposit"},
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
	s.log.Info("deposit completed",
		zap.String("account", accountID.String()),
		zap.String("amount", amount.String()),
		zap.String("reference", rec.Reference))
	return acct, rec, nil
}

// Withdraw debits amount from an active account owned by userID. The
// balance may never go negative. When configured, the withdrawal also
// reserves the account's transfer-limit windows.
func (s *Service) Withdraw(ctx context.Context, userID, accountID uuid.UUID, amount decimal.Decimal, description string) (acct *models.Account, rec *models.Transaction, err error) {
	defer s.observe("withdraw", s.cfg.Now(), &err)

	if !amount.IsPositive() {
		return nil, nil, ErrInvalidAmount
	}
	if description == "" {
		description = "Account withdrawal"
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
		if s.cfg.CountWithdrawalsAgainstLimits {
			if err := Reserve(&a.Transfer, amount, s.cfg.Now()); err != nil {
				return err
			}
		}

		a.Balance = a.Balance.Sub(amount)
		if err := tx.SaveAccount(ctx, a); err != nil {
			return err
		}

		r := &models.Transaction{
			Type:          models.TxWithdrawal,
			Amount:        amount,
			Currency:      a.Currency,
			Description:   description,
			Status:        models.StatusCompleted,
			FromAccountID: &a.ID,
			Metadata:      models.Metadata{"source": "user_withdrawal"},
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
	s.log.Info("withdrawal completed",
		zap.String("account", accountID.String()),
		zap.String("amount", amount.String()),
		zap.String("reference", rec.Reference))
	return acct, rec, nil
}

// Close deactivates an account whose balance is exactly zero. Closing is
// one-way; a closed account never becomes active again.
func (s *Service) Close(ctx context.Context, userID, accountID uuid.UUID) (err error) {
	defer s.observe("close_account", s.cfg.Now(), &err)

	err = s.store.Within(ctx, func(tx Tx) error {
		a, err := s.lockOwned(ctx, tx, accountID, userID)
		if err != nil {
			return err
		}
		if !a.IsActive {
			return ErrInactiveAccount
		}
		if !a.Balance.IsZero() {
			return ErrBalanceNonZero
		}
		a.IsActive = false
		return tx.SaveAccount(ctx, a)
	})
	if err == nil {
		s.log.Info("account closed", zap.String("account", accountID.String()))
	}
	return err
}

// UpdateLimits replaces the stored transfer limits. Counters already used
// in the current windows are not retroactively validated.
func (s *Service) UpdateLimits(ctx context.Context, userID, accountID uuid.UUID, daily, monthly *decimal.Decimal) (acct *models.Account, err error) {
	defer s.observe("update_limits", s.cfg.Now(), &err)

	if daily != nil && daily.IsNegative() {
		return nil, ErrInvalidAmount
	}
	if monthly != nil && monthly.IsNegative() {
		return nil, ErrInvalidAmount
	}

	err = s.store.Within(ctx, func(tx Tx) error {
		a, err := s.lockOwned(ctx, tx, accountID, userID)
		if err != nil {
			return err
		}
		if daily != nil {
			a.Transfer.DailyLimit = *daily
		}
		if monthly != nil {
			a.Transfer.MonthlyLimit = *monthly
		}
		if err := tx.SaveAccount(ctx, a); err != nil {
			return err
		}
		acct = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return acct, nil
}

// Account returns a committed snapshot of an account owned by userID.
func (s *Service) Account(ctx context.Context, userID, accountID uuid.UUID) (*models.Account, error) {
	a, err := s.store.AccountByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if a.UserID != userID {
		return nil, ErrNotFound
	}
	return a, nil
}

// Accounts lists every account owned by userID.
func (s *Service) Accounts(ctx context.Context, userID uuid.UUID) ([]models.Account, error) {
	return s.store.AccountsByUser(ctx, userID)
}

// Transactions pages the committed history touching an owned account.
func (s *Service) Transactions(ctx context.Context, userID, accountID uuid.UUID, f TransactionFilter) ([]models.Transaction, int64, error) {
	if _, err := s.Account(ctx, userID, accountID); err != nil {
		return nil, 0, err
	}
	return s.store.TransactionsByAccount(ctx, accountID, f)
}

// lockOwned loads an account under its row lock and verifies ownership.
// A foreign account is reported as ErrNotFound, identically to absence.
func (s *Service) lockOwned(ctx context.Context, tx Tx, accountID, userID uuid.UUID) (*models.Account, error) {
	a, err := tx.AccountForUpdate(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if a.UserID != userID {
		return nil, ErrNotFound
	}
	return a, nil
}

func (s *Service) observe(op string, start time.Time, err *error) {
	if s.obs != nil {
		s.obs.Observe(op, s.cfg.Now().Sub(start), *err)
	}
	if *err != nil && !IsBusinessError(*err) {
		s.log.Error("ledger operation failed", zap.String("op", op), zap.Error(*err))
	}
}
