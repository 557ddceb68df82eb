// Package store provides the Postgres implementation of the ledger's
// persistence contract: row-level exclusive locking, multi-row atomic
// commit, and durable uniqueness for account numbers, card numbers and
// transaction references.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jbily/BANKS-MO/internal/ledger"
	"github.com/jbily/BANKS-MO/internal/models"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// Postgres error codes the adapter maps onto ledger sentinels.
const (
	pgUniqueViolation  = "23505"
	pgLockNotAvailable = "55P03"
)

type Config struct {
	DSN string
	// LockWait bounds how long a row lock acquisition may block before the
	// unit aborts with ErrContentionTimeout. Zero disables the bound.
	LockWait time.Duration
}

// Postgres implements ledger.Store on a gorm connection.
type Postgres struct {
	db       *gorm.DB
	lockWait time.Duration
	log      *zap.Logger
}

func Open(cfg Config, log *zap.Logger) (*Postgres, error) {
	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  cfg.DSN,
		PreferSimpleProtocol: false,
	}), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("store: connect: %w", err)
	}
	log.Info("connected to the database")
	return &Postgres{db: db, lockWait: cfg.LockWait, log: log}, nil
}

func (p *Postgres) Migrate() error {
	err := p.db.AutoMigrate(
		&models.User{},
		&models.Account{},
		&models.Card{},
		&models.Transaction{},
	)
	if err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	p.log.Info("migrations loaded")
	return nil
}

// Close releases the underlying connection pool.
func (p *Postgres) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Within runs fn inside one database transaction. A lock_timeout local to
// the transaction turns indefinite blocking on row locks into a bounded
// wait surfaced as ErrContentionTimeout.
func (p *Postgres) Within(ctx context.Context, fn func(tx ledger.Tx) error) error {
	return p.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		if p.lockWait > 0 {
			stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", p.lockWait.Milliseconds())
			if err := db.Exec(stmt).Error; err != nil {
				return fmt.Errorf("store: set lock_timeout: %w", err)
			}
		}
		return fn(&pgTx{db: db})
	})
}

func (p *Postgres) AccountByID(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	var a models.Account
	if err := p.db.WithContext(ctx).First(&a, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &a, nil
}

func (p *Postgres) AccountsByUser(ctx context.Context, userID uuid.UUID) ([]models.Account, error) {
	var accounts []models.Account
	err := p.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at").
		Find(&accounts).Error
	if err != nil {
		return nil, translate(err)
	}
	return accounts, nil
}

func (p *Postgres) CardByID(ctx context.Context, id uuid.UUID) (*models.Card, error) {
	var c models.Card
	if err := p.db.WithContext(ctx).First(&c, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &c, nil
}

func (p *Postgres) CardsByUser(ctx context.Context, userID uuid.UUID) ([]models.Card, error) {
	var cards []models.Card
	err := p.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at").
		Find(&cards).Error
	if err != nil {
		return nil, translate(err)
	}
	return cards, nil
}

func (p *Postgres) TransactionByReference(ctx context.Context, reference string) (*models.Transaction, error) {
	var t models.Transaction
	if err := p.db.WithContext(ctx).First(&t, "reference = ?", reference).Error; err != nil {
		return nil, translate(err)
	}
	return &t, nil
}

func (p *Postgres) TransactionsByAccount(ctx context.Context, accountID uuid.UUID, f ledger.TransactionFilter) ([]models.Transaction, int64, error) {
	f = f.Normalize()
	q := p.db.WithContext(ctx).Model(&models.Transaction{}).
		Where("from_account_id = ? OR to_account_id = ?", accountID, accountID)
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, translate(err)
	}

	var txs []models.Transaction
	err := q.Order("created_at DESC").
		Offset((f.Page - 1) * f.PerPage).
		Limit(f.PerPage).
		Find(&txs).Error
	if err != nil {
		return nil, 0, translate(err)
	}
	return txs, total, nil
}

func (p *Postgres) CreateUser(ctx context.Context, u *models.User) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return translate(p.db.WithContext(ctx).Create(u).Error)
}

func (p *Postgres) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	if err := p.db.WithContext(ctx).First(&u, "email = ?", email).Error; err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (p *Postgres) UserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var u models.User
	if err := p.db.WithContext(ctx).First(&u, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

// pgTx is one open database transaction.
type pgTx struct {
	db *gorm.DB
}

func (t *pgTx) AccountForUpdate(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	var a models.Account
	err := t.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&a, "id = ?", id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &a, nil
}

func (t *pgTx) CreateAccount(ctx context.Context, a *models.Account) error {
	return t.createUnique(ctx, "create_account", a)
}

func (t *pgTx) SaveAccount(ctx context.Context, a *models.Account) error {
	return translate(t.db.WithContext(ctx).Save(a).Error)
}

func (t *pgTx) CardForUpdate(ctx context.Context, id uuid.UUID) (*models.Card, error) {
	var c models.Card
	err := t.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&c, "id = ?", id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &c, nil
}

func (t *pgTx) CreateCard(ctx context.Context, c *models.Card) error {
	return t.createUnique(ctx, "create_card", c)
}

func (t *pgTx) SaveCard(ctx context.Context, c *models.Card) error {
	return translate(t.db.WithContext(ctx).Save(c).Error)
}

func (t *pgTx) CreateTransaction(ctx context.Context, rec *models.Transaction) error {
	return t.createUnique(ctx, "create_transaction", rec)
}

func (t *pgTx) TransactionByReference(ctx context.Context, reference string) (*models.Transaction, error) {
	var rec models.Transaction
	if err := t.db.WithContext(ctx).First(&rec, "reference = ?", reference).Error; err != nil {
		return nil, translate(err)
	}
	return &rec, nil
}

func (t *pgTx) RefundedTotal(ctx context.Context, reference string) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := t.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Where("type = ? AND status = ? AND refund_of = ?",
			models.TxRefund, models.StatusCompleted, reference).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&total).Error
	if err != nil {
		return decimal.Zero, translate(err)
	}
	return total, nil
}

func (t *pgTx) UpdateTransactionStatus(ctx context.Context, id uuid.UUID, status models.TransactionStatus) error {
	var rec models.Transaction
	err := t.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&rec, "id = ?", id).Error
	if err != nil {
		return translate(err)
	}
	if rec.Status.Terminal() {
		return ledger.ErrTransactionFinal
	}
	return translate(t.db.WithContext(ctx).
		Model(&rec).
		Update("status", status).Error)
}

// createUnique wraps an insert in a savepoint so that a uniqueness
// violation leaves the surrounding transaction usable. The caller
// regenerates the colliding value and retries.
func (t *pgTx) createUnique(ctx context.Context, name string, value any) error {
	if err := t.db.WithContext(ctx).SavePoint(name).Error; err != nil {
		return fmt.Errorf("store: savepoint: %w", err)
	}
	err := t.db.WithContext(ctx).Create(value).Error
	if err == nil {
		return nil
	}
	if isPgCode(err, pgUniqueViolation) {
		if rbErr := t.db.WithContext(ctx).RollbackTo(name).Error; rbErr != nil {
			return fmt.Errorf("store: rollback to savepoint: %w", rbErr)
		}
		return ledger.ErrDuplicate
	}
	return translate(err)
}

// translate maps driver errors onto the ledger's sentinel kinds; anything
// unrecognized is wrapped as a persistence failure.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ledger.ErrNotFound
	case isPgCode(err, pgUniqueViolation):
		return ledger.ErrDuplicate
	case isPgCode(err, pgLockNotAvailable):
		return ledger.ErrContentionTimeout
	default:
		return fmt.Errorf("store: %w", err)
	}
}

func isPgCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}
