package ledger

import (
	"context"

	"github.com/google/uuid"
	"github.com/jbily/BANKS-MO/internal/models"
	"github.com/shopspring/decimal"
)

// TransactionFilter narrows and pages a transaction history query.
type TransactionFilter struct {
	Status  models.TransactionStatus // zero value matches any status
	Page    int                      // 1-based; values below 1 mean page 1
	PerPage int                      // values below 1 fall back to 20
}

// Normalize clamps paging values to usable defaults.
func (f TransactionFilter) Normalize() TransactionFilter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PerPage < 1 {
		f.PerPage = 20
	}
	if f.PerPage > 100 {
		f.PerPage = 100
	}
	return f
}

// Tx is one atomic unit of work against the persistence collaborator.
// Every mutation performed through a Tx either commits as a whole or leaves
// no durable trace. Row locks taken via the ForUpdate methods are held until
// the unit commits or aborts.
type Tx interface {
	// AccountForUpdate loads an account under an exclusive row lock.
	// Returns ErrNotFound if absent, ErrContentionTimeout if the lock is
	// not obtained within the store's wait bound.
	AccountForUpdate(ctx context.Context, id uuid.UUID) (*models.Account, error)
	CreateAccount(ctx context.Context, a *models.Account) error
	SaveAccount(ctx context.Context, a *models.Account) error

	// CardForUpdate loads a card under an exclusive row lock.
	CardForUpdate(ctx context.Context, id uuid.UUID) (*models.Card, error)
	CreateCard(ctx context.Context, c *models.Card) error
	SaveCard(ctx context.Context, c *models.Card) error

	// CreateTransaction inserts an immutable history record. Returns
	// ErrDuplicate when the reference collides; the unit stays usable so
	// the caller can regenerate and retry.
	CreateTransaction(ctx context.Context, t *models.Transaction) error

	// TransactionByReference loads a history record inside the unit.
	TransactionByReference(ctx context.Context, reference string) (*models.Transaction, error)

	// RefundedTotal sums the completed refunds already issued against the
	// referenced transaction, including ones staged in this unit. Callers
	// must hold the source account's row lock so concurrent refunds of the
	// same original serialize.
	RefundedTotal(ctx context.Context, reference string) (decimal.Decimal, error)

	// UpdateTransactionStatus applies pending -> completed|failed|cancelled.
	// Returns ErrTransactionFinal when the current status is terminal.
	UpdateTransactionStatus(ctx context.Context, id uuid.UUID, status models.TransactionStatus) error
}

// Store is the transactional contract the ledger requires from its
// persistence collaborator. Read methods outside Within observe only
// committed state, never a partially applied unit.
type Store interface {
	// Within executes fn as one atomic unit. Any error from fn aborts the
	// unit with zero persisted side effects and is returned unchanged.
	Within(ctx context.Context, fn func(tx Tx) error) error

	AccountByID(ctx context.Context, id uuid.UUID) (*models.Account, error)
	AccountsByUser(ctx context.Context, userID uuid.UUID) ([]models.Account, error)
	CardByID(ctx context.Context, id uuid.UUID) (*models.Card, error)
	CardsByUser(ctx context.Context, userID uuid.UUID) ([]models.Card, error)
	TransactionByReference(ctx context.Context, reference string) (*models.Transaction, error)
	// TransactionsByAccount lists committed history touching the account on
	// either side, newest first, with the total count before paging.
	TransactionsByAccount(ctx context.Context, accountID uuid.UUID, f TransactionFilter) ([]models.Transaction, int64, error)

	CreateUser(ctx context.Context, u *models.User) error
	UserByEmail(ctx context.Context, email string) (*models.User, error)
	UserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}
