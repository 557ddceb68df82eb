package seed

import (
	"context"
	"errors"

	"golang.org/x/crypto/bcrypt"

	"github.com/jbily/BANKS-MO/internal/cards"
	"github.com/jbily/BANKS-MO/internal/ledger"
	"github.com/jbily/BANKS-MO/internal/logger"
	"github.com/jbily/BANKS-MO/internal/models"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const seedPassword = "password123"

var testUsers = []struct {
	First, Last, Email string
}{
	{"Test", "User One", "user1@test.com"},
	{"Test", "User Two", "user2@test.com"},
	{"Test", "User Three", "user3@test.com"},
}

// Run provisions demo users, each with a funded checking account, an empty
// savings account and a card on the checking account. Skips silently when
// the users already exist.
func Run(ctx context.Context, store ledger.Store, ledgerSvc *ledger.Service, cardSvc *cards.Service) {
	if _, err := store.UserByEmail(ctx, testUsers[0].Email); err == nil {
		logger.Log.Info("seed already applied, skipping")
		return
	} else if !errors.Is(err, ledger.ErrNotFound) {
		logger.Log.Fatal("seed check failed", zap.Error(err))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(seedPassword), bcrypt.DefaultCost)
	if err != nil {
		logger.Log.Fatal("failed to hash seed password", zap.Error(err))
	}

	opening := decimal.RequireFromString("1000.00")

	for _, u := range testUsers {
		user := &models.User{
			FirstName: u.First,
			LastName:  u.Last,
			Email:     u.Email,
			Password:  string(hash),
		}
		if err := store.CreateUser(ctx, user); err != nil {
			logger.Log.Fatal("seed user failed", zap.Error(err))
		}

		checking, err := ledgerSvc.OpenAccount(ctx, user.ID, ledger.OpenAccountParams{
			Type:           models.AccountChecking,
			Currency:       models.USD,
			InitialDeposit: opening,
		})
		if err != nil {
			logger.Log.Fatal("seed checking account failed", zap.Error(err))
		}
		if _, err := ledgerSvc.OpenAccount(ctx, user.ID, ledger.OpenAccountParams{
			Type:     models.AccountSavings,
			Currency: models.EUR,
		}); err != nil {
			logger.Log.Fatal("seed savings account failed", zap.Error(err))
		}
		if _, err := cardSvc.Issue(ctx, user.ID, checking.ID, u.First+" "+u.Last); err != nil {
			logger.Log.Fatal("seed card failed", zap.Error(err))
		}
	}

	logger.Log.Info("seeded test users", zap.Int("count", len(testUsers)))
}
