package ledger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/jbily/BANKS-MO/internal/models"
)

// maxUniqueAttempts bounds regenerate-and-retry loops on uniqueness
// conflicts. With a crypto-random component a second collision in a row
// already means something is badly wrong.
const maxUniqueAttempts = 5

// NewReference produces a globally unique, human-auditable transaction
// reference: millisecond timestamp plus a random component drawn from r.
func NewReference(r io.Reader, now time.Time) (string, error) {
	digits, err := RandomDigits(r, 6)
	if err != nil {
		return "", fmt.Errorf("ledger: generate reference: %w", err)
	}
	return fmt.Sprintf("TXN-%d-%s", now.UnixMilli(), digits), nil
}

// RandomDigits returns n decimal digits drawn from r, which must be a
// cryptographically strong source.
func RandomDigits(r io.Reader, n int) (string, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	out := make([]byte, n)
	for i, b := range buf {
		out[i] = '0' + b%10
	}
	return string(out), nil
}

// Record assigns rec a fresh id and reference and inserts it within tx.
// On a reference collision it regenerates and retries; a reference is never
// silently reused. rec must carry a positive amount and, on the completed
// path, the account side(s) appropriate to its type.
func Record(ctx context.Context, tx Tx, rec *models.Transaction, r io.Reader, now time.Time) error {
	var err error
	for attempt := 0; attempt < maxUniqueAttempts; attempt++ {
		rec.ID = uuid.New()
		rec.Reference, err = NewReference(r, now)
		if err != nil {
			return err
		}
		err = tx.CreateTransaction(ctx, rec)
		if !errors.Is(err, ErrDuplicate) {
			return err
		}
	}
	return fmt.Errorf("ledger: reference generation kept colliding: %w", err)
}
