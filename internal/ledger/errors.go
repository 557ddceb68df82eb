package ledger

import "errors"

// Business-rule errors. These are terminal for the call that produced them:
// they are never retried and are surfaced verbatim to the caller.
var (
	// ErrInvalidAmount is returned when an amount is zero, negative or malformed.
	ErrInvalidAmount = errors.New("ledger: amount must be greater than zero")

	// ErrUnsupportedCurrency is returned when a currency code is outside the supported set.
	ErrUnsupportedCurrency = errors.New("ledger: unsupported currency")

	// ErrCurrencyMismatch is returned when a transfer spans accounts in different currencies.
	ErrCurrencyMismatch = errors.New("ledger: accounts hold different currencies")

	// ErrNotFound is returned when an account or card does not exist or is
	// not owned by the calling user. Ownership failures deliberately look
	// identical to absence so that no foreign account is ever confirmed.
	ErrNotFound = errors.New("ledger: not found")

	// ErrInactiveAccount is returned when an operation targets a closed account.
	ErrInactiveAccount = errors.New("ledger: account is not active")

	// ErrInsufficientFunds is returned when a debit would drive the balance negative.
	ErrInsufficientFunds = errors.New("ledger: insufficient funds")

	// ErrLimitExceeded is returned when a reservation would overflow the
	// daily or monthly limit window.
	ErrLimitExceeded = errors.New("ledger: daily or monthly limit exceeded")

	// ErrBalanceNonZero is returned when closing an account that still holds funds.
	ErrBalanceNonZero = errors.New("ledger: account balance must be zero to close")

	// ErrInvalidTransfer is returned for a self-transfer.
	ErrInvalidTransfer = errors.New("ledger: cannot transfer to the same account")

	// ErrInvalidAccountType is returned when an account type is outside savings|checking.
	ErrInvalidAccountType = errors.New("ledger: invalid account type")

	// ErrNotRefundable is returned when a refund targets a transaction that
	// is not a completed debit.
	ErrNotRefundable = errors.New("ledger: transaction cannot be refunded")

	// ErrTransactionFinal is returned on an attempted transition out of a
	// terminal transaction status.
	ErrTransactionFinal = errors.New("ledger: transaction status is terminal")
)

// Infrastructure errors. Retrying after either is safe because an aborted
// atomic unit leaves no durable side effects; reference generation is redone
// on every attempt.
var (
	// ErrContentionTimeout is returned when a row lock is not obtained
	// within the configured wait bound.
	ErrContentionTimeout = errors.New("ledger: lock not acquired in time")

	// ErrDuplicate is returned by the store when an insert violates a
	// uniqueness constraint (transaction reference, account or card number).
	// Callers regenerate and retry, never reuse.
	ErrDuplicate = errors.New("ledger: duplicate unique value")
)

// IsBusinessError reports whether err is one of the non-retryable
// business-rule kinds.
func IsBusinessError(err error) bool {
	for _, e := range []error{
		ErrInvalidAmount, ErrUnsupportedCurrency, ErrCurrencyMismatch,
		ErrNotFound, ErrInactiveAccount, ErrInsufficientFunds,
		ErrLimitExceeded, ErrBalanceNonZero, ErrInvalidTransfer,
		ErrInvalidAccountType, ErrNotRefundable, ErrTransactionFinal,
	} {
		if errors.Is(err, e) {
			return true
		}
	}
	return false
}
