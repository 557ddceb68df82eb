// Package memory is an in-process implementation of the ledger's
// persistence contract. It honors the same semantics as the Postgres
// adapter: exclusive per-row locks held for one atomic unit, bounded lock
// waits, all-or-nothing commit, and uniqueness of account numbers, card
// numbers, emails and transaction references.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jbily/BANKS-MO/internal/ledger"
	"github.com/jbily/BANKS-MO/internal/models"
	"github.com/shopspring/decimal"
)

const defaultLockWait = 5 * time.Second

// Store keeps all state in maps guarded by a single mutex; row locks are
// buffered channels so acquisition can race against a timeout.
type Store struct {
	lockWait time.Duration

	mu             sync.Mutex
	users          map[uuid.UUID]*models.User
	emails         map[string]uuid.UUID
	accounts       map[uuid.UUID]*models.Account
	accountNumbers map[string]uuid.UUID
	cards          map[uuid.UUID]*models.Card
	cardNumbers    map[string]uuid.UUID
	transactions   map[uuid.UUID]*models.Transaction
	txOrder        []uuid.UUID
	references     map[string]uuid.UUID
	rowLocks       map[uuid.UUID]chan struct{}
}

func New(lockWait time.Duration) *Store {
	if lockWait <= 0 {
		lockWait = defaultLockWait
	}
	return &Store{
		lockWait:       lockWait,
		users:          make(map[uuid.UUID]*models.User),
		emails:         make(map[string]uuid.UUID),
		accounts:       make(map[uuid.UUID]*models.Account),
		accountNumbers: make(map[string]uuid.UUID),
		cards:          make(map[uuid.UUID]*models.Card),
		cardNumbers:    make(map[string]uuid.UUID),
		transactions:   make(map[uuid.UUID]*models.Transaction),
		references:     make(map[string]uuid.UUID),
		rowLocks:       make(map[uuid.UUID]chan struct{}),
	}
}

// Within runs fn as one atomic unit. Mutations stage inside the unit and
// reach the committed maps only when fn returns nil; any error rolls the
// whole unit back, releasing row locks and unique-value reservations.
func (s *Store) Within(ctx context.Context, fn func(tx ledger.Tx) error) (err error) {
	t := &memTx{
		s:             s,
		accounts:      make(map[uuid.UUID]*models.Account),
		dirtyAccounts: make(map[uuid.UUID]bool),
		cards:         make(map[uuid.UUID]*models.Card),
		dirtyCards:    make(map[uuid.UUID]bool),
		statusChanges: make(map[uuid.UUID]models.TransactionStatus),
	}
	defer func() {
		if err != nil {
			t.rollback()
		}
	}()
	if err = fn(t); err != nil {
		return err
	}
	t.commit()
	return nil
}

// lockRow acquires the exclusive lock for id, creating the lock channel on
// first use. Channels are kept for the store's lifetime: removing one while
// a waiter still holds its reference would let two units lock the same row,
// and an in-process store never accumulates enough rows for the map to
// matter.
func (s *Store) lockRow(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	ch, ok := s.rowLocks[id]
	if !ok {
		ch = make(chan struct{}, 1)
		s.rowLocks[id] = ch
	}
	s.mu.Unlock()

	timer := time.NewTimer(s.lockWait)
	defer timer.Stop()
	select {
	case ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("memory: %w", ctx.Err())
	case <-timer.C:
		return ledger.ErrContentionTimeout
	}
}

func (s *Store) unlockRow(id uuid.UUID) {
	s.mu.Lock()
	ch := s.rowLocks[id]
	s.mu.Unlock()
	<-ch
}

func (s *Store) AccountByID(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return nil, ledger.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *Store) AccountsByUser(ctx context.Context, userID uuid.UUID) ([]models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Account
	for _, a := range s.accounts {
		if a.UserID == userID {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].AccountNumber < out[j].AccountNumber
	})
	return out, nil
}

func (s *Store) CardByID(ctx context.Context, id uuid.UUID) (*models.Card, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.cards[id]
	if !ok {
		return nil, ledger.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *Store) CardsByUser(ctx context.Context, userID uuid.UUID) ([]models.Card, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Card
	for _, c := range s.cards {
		if c.UserID == userID {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].CardNumber < out[j].CardNumber
	})
	return out, nil
}

func (s *Store) TransactionByReference(ctx context.Context, reference string) (*models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.references[reference]
	if !ok {
		return nil, ledger.ErrNotFound
	}
	rec, ok := s.transactions[id]
	if !ok {
		return nil, ledger.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (s *Store) TransactionsByAccount(ctx context.Context, accountID uuid.UUID, f ledger.TransactionFilter) ([]models.Transaction, int64, error) {
	f = f.Normalize()
	s.mu.Lock()
	defer s.mu.Unlock()

	var matches []models.Transaction
	// txOrder is append-only, so walking it backwards yields newest first.
	for i := len(s.txOrder) - 1; i >= 0; i-- {
		rec := s.transactions[s.txOrder[i]]
		if !touches(rec, accountID) {
			continue
		}
		if f.Status != "" && rec.Status != f.Status {
			continue
		}
		matches = append(matches, *rec)
	}

	total := int64(len(matches))
	start := (f.Page - 1) * f.PerPage
	if start >= len(matches) {
		return nil, total, nil
	}
	end := start + f.PerPage
	if end > len(matches) {
		end = len(matches)
	}
	return matches[start:end], total, nil
}

func touches(rec *models.Transaction, accountID uuid.UUID) bool {
	return (rec.FromAccountID != nil && *rec.FromAccountID == accountID) ||
		(rec.ToAccountID != nil && *rec.ToAccountID == accountID)
}

func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.emails[u.Email]; exists {
		return ledger.ErrDuplicate
	}
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	now := time.Now()
	u.CreatedAt, u.UpdatedAt = now, now
	cp := *u
	s.users[u.ID] = &cp
	s.emails[u.Email] = u.ID
	return nil
}

func (s *Store) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.emails[email]
	if !ok {
		return nil, ledger.ErrNotFound
	}
	cp := *s.users[id]
	return &cp, nil
}

func (s *Store) UserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ledger.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

// memTx stages one atomic unit of work.
type memTx struct {
	s *Store

	held []uuid.UUID // row locks in acquisition order

	accounts      map[uuid.UUID]*models.Account // working copies under lock
	dirtyAccounts map[uuid.UUID]bool
	newAccounts   []*models.Account

	cards      map[uuid.UUID]*models.Card
	dirtyCards map[uuid.UUID]bool
	newCards   []*models.Card

	newTransactions []*models.Transaction
	statusChanges   map[uuid.UUID]models.TransactionStatus

	reservations []reservation
}

type reservation struct {
	set map[string]uuid.UUID
	key string
}

func (t *memTx) AccountForUpdate(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	if a, ok := t.accounts[id]; ok {
		return a, nil
	}
	if err := t.s.lockRow(ctx, id); err != nil {
		return nil, err
	}
	t.held = append(t.held, id)

	t.s.mu.Lock()
	src, ok := t.s.accounts[id]
	if !ok {
		t.s.mu.Unlock()
		return nil, ledger.ErrNotFound
	}
	cp := *src
	t.s.mu.Unlock()

	t.accounts[id] = &cp
	return &cp, nil
}

func (t *memTx) CreateAccount(ctx context.Context, a *models.Account) error {
	if err := t.reserve(t.s.accountNumbers, a.AccountNumber, a.ID); err != nil {
		return err
	}
	now := time.Now()
	a.CreatedAt, a.UpdatedAt = now, now
	cp := *a
	t.newAccounts = append(t.newAccounts, &cp)
	return nil
}

func (t *memTx) SaveAccount(ctx context.Context, a *models.Account) error {
	t.accounts[a.ID] = a
	t.dirtyAccounts[a.ID] = true
	return nil
}

func (t *memTx) CardForUpdate(ctx context.Context, id uuid.UUID) (*models.Card, error) {
	if c, ok := t.cards[id]; ok {
		return c, nil
	}
	if err := t.s.lockRow(ctx, id); err != nil {
		return nil, err
	}
	t.held = append(t.held, id)

	t.s.mu.Lock()
	src, ok := t.s.cards[id]
	if !ok {
		t.s.mu.Unlock()
		return nil, ledger.ErrNotFound
	}
	cp := *src
	t.s.mu.Unlock()

	t.cards[id] = &cp
	return &cp, nil
}

func (t *memTx) CreateCard(ctx context.Context, c *models.Card) error {
	if err := t.reserve(t.s.cardNumbers, c.CardNumber, c.ID); err != nil {
		return err
	}
	now := time.Now()
	c.CreatedAt, c.UpdatedAt = now, now
	cp := *c
	t.newCards = append(t.newCards, &cp)
	return nil
}

func (t *memTx) SaveCard(ctx context.Context, c *models.Card) error {
	t.cards[c.ID] = c
	t.dirtyCards[c.ID] = true
	return nil
}

func (t *memTx) CreateTransaction(ctx context.Context, rec *models.Transaction) error {
	if err := t.reserve(t.s.references, rec.Reference, rec.ID); err != nil {
		return err
	}
	now := time.Now()
	rec.CreatedAt, rec.UpdatedAt = now, now
	cp := *rec
	t.newTransactions = append(t.newTransactions, &cp)
	return nil
}

func (t *memTx) TransactionByReference(ctx context.Context, reference string) (*models.Transaction, error) {
	for _, rec := range t.newTransactions {
		if rec.Reference == reference {
			cp := *rec
			return &cp, nil
		}
	}
	return t.s.TransactionByReference(ctx, reference)
}

func (t *memTx) RefundedTotal(ctx context.Context, reference string) (decimal.Decimal, error) {
	total := decimal.Zero
	add := func(rec *models.Transaction) {
		if rec.Type == models.TxRefund && rec.Status == models.StatusCompleted &&
			rec.RefundOf != nil && *rec.RefundOf == reference {
			total = total.Add(rec.Amount)
		}
	}
	t.s.mu.Lock()
	for _, rec := range t.s.transactions {
		add(rec)
	}
	t.s.mu.Unlock()
	for _, rec := range t.newTransactions {
		add(rec)
	}
	return total, nil
}

func (t *memTx) UpdateTransactionStatus(ctx context.Context, id uuid.UUID, status models.TransactionStatus) error {
	for _, rec := range t.newTransactions {
		if rec.ID == id {
			if rec.Status.Terminal() {
				return ledger.ErrTransactionFinal
			}
			rec.Status = status
			return nil
		}
	}

	t.s.mu.Lock()
	rec, ok := t.s.transactions[id]
	if !ok {
		t.s.mu.Unlock()
		return ledger.ErrNotFound
	}
	terminal := rec.Status.Terminal()
	t.s.mu.Unlock()

	if terminal {
		return ledger.ErrTransactionFinal
	}
	t.statusChanges[id] = status
	return nil
}

// reserve claims a unique key immediately so a concurrent unit sees the
// collision; rollback releases the claim.
func (t *memTx) reserve(set map[string]uuid.UUID, key string, id uuid.UUID) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if _, exists := set[key]; exists {
		return ledger.ErrDuplicate
	}
	set[key] = id
	t.reservations = append(t.reservations, reservation{set: set, key: key})
	return nil
}

func (t *memTx) commit() {
	s := t.s
	now := time.Now()

	s.mu.Lock()
	for _, a := range t.newAccounts {
		cp := *a
		s.accounts[cp.ID] = &cp
	}
	for id := range t.dirtyAccounts {
		cp := *t.accounts[id]
		cp.UpdatedAt = now
		s.accounts[id] = &cp
	}
	for _, c := range t.newCards {
		cp := *c
		s.cards[cp.ID] = &cp
	}
	for id := range t.dirtyCards {
		cp := *t.cards[id]
		cp.UpdatedAt = now
		s.cards[id] = &cp
	}
	for _, rec := range t.newTransactions {
		cp := *rec
		s.transactions[cp.ID] = &cp
		s.txOrder = append(s.txOrder, cp.ID)
	}
	for id, status := range t.statusChanges {
		if rec, ok := s.transactions[id]; ok && !rec.Status.Terminal() {
			rec.Status = status
			rec.UpdatedAt = now
		}
	}
	s.mu.Unlock()

	t.releaseLocks()
}

func (t *memTx) rollback() {
	s := t.s
	s.mu.Lock()
	for _, r := range t.reservations {
		delete(r.set, r.key)
	}
	s.mu.Unlock()

	t.releaseLocks()
}

func (t *memTx) releaseLocks() {
	for i := len(t.held) - 1; i >= 0; i-- {
		t.s.unlockRow(t.held[i])
	}
	t.held = nil
}
