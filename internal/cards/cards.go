// Package cards implements issuance and spending control for payment cards.
// A card is owned by a user, linked to exactly one account, and shares the
// ledger's daily/monthly limit-window algorithm for its spending limits.
package cards

import (
	"context"
	"crypto/rand"
	"errors"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/jbily/BANKS-MO/internal/ledger"
	"github.com/jbily/BANKS-MO/internal/models"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	// ErrFrozen is returned when a spending operation hits a frozen card.
	ErrFrozen = errors.New("cards: card is frozen")

	// ErrInactive is returned when a card has been deactivated.
	ErrInactive = errors.New("cards: card is not active")

	// ErrExpired is returned when a card's expiry date has passed.
	ErrExpired = errors.New("cards: card has expired")

	// ErrChannelBlocked is returned when the purchase channel is disabled
	// on the card (ATM or online).
	ErrChannelBlocked = errors.New("cards: channel not allowed for this card")
)

// Channel is the path a card purchase arrives through.
type Channel string

const (
	ChannelPOS    Channel = "pos"
	ChannelATM    Channel = "atm"
	ChannelOnline Channel = "online"
)

// Default spending limits applied to newly issued cards.
var (
	DefaultDailySpendingLimit   = decimal.NewFromInt(1000)
	DefaultMonthlySpendingLimit = decimal.NewFromInt(10000)
)

const cardValidityYears = 4

type Config struct {
	Now  func() time.Time
	Rand io.Reader
}

// Service issues cards and authorizes card spending against the ledger.
type Service struct {
	store ledger.Store
	cfg   Config
	log   *zap.Logger
	obs   ledger.Observer
}

func NewService(store ledger.Store, cfg Config, log *zap.Logger, obs ledger.Observer) *Service {
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

// Issue creates a card linked to an active account owned by userID. The
// card number and CVV come from the injected random source; the number is
// regenerated on a uniqueness collision.
func (s *Service) Issue(ctx context.Context, userID, accountID uuid.UUID, holderName string) (card *models.Card, err error) {
	defer s.observe("issue_card", s.cfg.Now(), &err)

	now := s.cfg.Now()
	err = s.store.Within(ctx, func(tx ledger.Tx) error {
		a, err := tx.AccountForUpdate(ctx, accountID)
		if err != nil {
			return err
		}
		if a.UserID != userID {
			return ledger.ErrNotFound
		}
		if !a.IsActive {
			return ledger.ErrInactiveAccount
		}

		cvv, err := ledger.RandomDigits(s.cfg.Rand, 3)
		if err != nil {
			return err
		}
		c := &models.Card{
			UserID:          userID,
			LinkedAccountID: a.ID,
			CardHolderName:  holderName,
			ExpiryMonth:     int(now.Month()),
			ExpiryYear:      now.Year() + cardValidityYears,
			CVV:             cvv,
			IsActive:        true,
			AllowATM:        true,
			AllowOnline:     true,
			AllowIntl:       true,
			Spending: models.LimitUsage{
				DailyLimit:   DefaultDailySpendingLimit,
				MonthlyLimit: DefaultMonthlySpendingLimit,
				DailyUsed:    decimal.Zero,
				MonthlyUsed:  decimal.Zero,
				LastReset:    now,
			},
		}
		for attempt := 0; attempt < 5; attempt++ {
			c.ID = uuid.New()
			digits, err := ledger.RandomDigits(s.cfg.Rand, 15)
			if err != nil {
				return err
			}
			c.CardNumber = "4" + digits
			err = tx.CreateCard(ctx, c)
			if !errors.Is(err, ledger.ErrDuplicate) {
				if err == nil {
					card = c
				}
				return err
			}
		}
		return errors.New("cards: card number generation kept colliding")
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("card issued",
		zap.String("card", card.ID.String()),
		zap.String("account", accountID.String()))
	return card, nil
}

// Freeze blocks all spending on the card until Unfreeze. Idempotent.
func (s *Service) Freeze(ctx context.Context, userID, cardID uuid.UUID) (*models.Card, error) {
	return s.setFrozen(ctx, userID, cardID, true)
}

// Unfreeze lifts a freeze. Idempotent.
func (s *Service) Unfreeze(ctx context.Context, userID, cardID uuid.UUID) (*models.Card, error) {
	return s.setFrozen(ctx, userID, cardID, false)
}

func (s *Service) setFrozen(ctx context.Context, userID, cardID uuid.UUID, frozen bool) (card *models.Card, err error) {
	defer s.observe("set_card_frozen", s.cfg.Now(), &err)

	err = s.store.Within(ctx, func(tx ledger.Tx) error {
		c, err := tx.CardForUpdate(ctx, cardID)
		if err != nil {
			return err
		}
		if c.UserID != userID {
			return ledger.ErrNotFound
		}
		if !c.IsActive {
			return ErrInactive
		}
		c.IsFrozen = frozen
		if err := tx.SaveCard(ctx, c); err != nil {
			return err
		}
		card = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return card, nil
}

// Purchase authorizes a card payment: the card must be active, unfrozen,
// unexpired and allow the channel; the spend reserves the card's limit
// windows and debits the linked account, all in one atomic unit with a
// completed payment transaction.
func (s *Service) Purchase(ctx context.Context, userID, cardID uuid.UUID, amount decimal.Decimal, merchant string, channel Channel) (rec *models.Transaction, err error) {
	defer s.observe("card_purchase", s.cfg.Now(), &err)

	if !amount.IsPositive() {
		return nil, ledger.ErrInvalidAmount
	}

	now := s.cfg.Now()
	err = s.store.Within(ctx, func(tx ledger.Tx) error {
		c, err := tx.CardForUpdate(ctx, cardID)
		if err != nil {
			return err
		}
		if c.UserID != userID {
			return ledger.ErrNotFound
		}
		if !c.IsActive {
			return ErrInactive
		}
		if c.IsFrozen {
			return ErrFrozen
		}
		if expired(c, now) {
			return ErrExpired
		}
		switch channel {
		case ChannelATM:
			if !c.AllowATM {
				return ErrChannelBlocked
			}
		case ChannelOnline:
			if !c.AllowOnline {
				return ErrChannelBlocked
			}
		}
		if err := ledger.Reserve(&c.Spending, amount, now); err != nil {
			return err
		}

		a, err := tx.AccountForUpdate(ctx, c.LinkedAccountID)
		if err != nil {
			return err
		}
		if !a.IsActive {
			return ledger.ErrInactiveAccount
		}
		if a.Balance.LessThan(amount) {
			return ledger.ErrInsufficientFunds
		}

		a.Balance = a.Balance.Sub(amount)
		if err := tx.SaveAccount(ctx, a); err != nil {
			return err
		}
		if err := tx.SaveCard(ctx, c); err != nil {
			return err
		}

		r := &models.Transaction{
			Type:          models.TxPayment,
			Amount:        amount,
			Currency:      a.Currency,
			Description:   "Card purchase at " + merchant,
			Status:        models.StatusCompleted,
			FromAccountID: &a.ID,
			CardID:        &c.ID,
			Metadata:      models.Metadata{"merchant": merchant, "channel": string(channel)},
		}
		if err := ledger.Record(ctx, tx, r, s.cfg.Rand, now); err != nil {
			return err
		}
		rec = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("card purchase completed",
		zap.String("card", cardID.String()),
		zap.String("amount", amount.String()),
		zap.String("reference", rec.Reference))
	return rec, nil
}

// Card returns a committed snapshot of a card owned by userID.
func (s *Service) Card(ctx context.Context, userID, cardID uuid.UUID) (*models.Card, error) {
	c, err := s.store.CardByID(ctx, cardID)
	if err != nil {
		return nil, err
	}
	if c.UserID != userID {
		return nil, ledger.ErrNotFound
	}
	return c, nil
}

// Cards lists every card owned by userID.
func (s *Service) Cards(ctx context.Context, userID uuid.UUID) ([]models.Card, error) {
	return s.store.CardsByUser(ctx, userID)
}

// expired reports whether the card's validity window has ended. A card is
// good through the last day of its expiry month.
func expired(c *models.Card, now time.Time) bool {
	if now.Year() != c.ExpiryYear {
		return now.Year() > c.ExpiryYear
	}
	return int(now.Month()) > c.ExpiryMonth
}

func (s *Service) observe(op string, start time.Time, err *error) {
	if s.obs != nil {
		s.obs.Observe(op, s.cfg.Now().Sub(start), *err)
	}
}
