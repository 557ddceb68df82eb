package ledger

import (
	"time"

	"github.com/jbily/BANKS-MO/internal/models"
	"github.com/shopspring/decimal"
)

// ResetIfStale zeroes the daily-used counter when now falls on a different
// calendar day than the last reset, additionally zeroes the monthly-used
// counter when the calendar month differs, then stamps the reset time.
func ResetIfStale(u *models.LimitUsage, now time.Time) {
	ly, lm, ld := u.LastReset.Date()
	ny, nm, nd := now.Date()

	if nd != ld || nm != lm || ny != ly {
		u.DailyUsed = decimal.Zero
	}
	if nm != lm || ny != ly {
		u.MonthlyUsed = decimal.Zero
	}
	u.LastReset = now
}

// Reserve counts amount against both limit windows, all or nothing. It must
// be called inside the same atomic unit as the balance mutation it guards; a
// reservation made outside the account lock is unsound under concurrency.
func Reserve(u *models.LimitUsage, amount decimal.Decimal, now time.Time) error {
	ResetIfStale(u, now)

	if u.DailyUsed.Add(amount).GreaterThan(u.DailyLimit) {
		return ErrLimitExceeded
	}
	if u.MonthlyUsed.Add(amount).GreaterThan(u.MonthlyLimit) {
		return ErrLimitExceeded
	}
	u.DailyUsed = u.DailyUsed.Add(amount)
	u.MonthlyUsed = u.MonthlyUsed.Add(amount)
	return nil
}
