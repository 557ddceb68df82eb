package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type AccountType string

const (
	AccountSavings  AccountType = "savings"
	AccountChecking AccountType = "checking"
)

func (t AccountType) Valid() bool {
	return t == AccountSavings || t == AccountChecking
}

type TransactionType string

const (
	TxDeposit    TransactionType = "deposit"
	TxWithdrawal TransactionType = "withdrawal"
	TxTransfer   TransactionType = "transfer"
	TxPayment    TransactionType = "payment"
	TxRefund     TransactionType = "refund"
	TxFee        TransactionType = "fee"
)

type TransactionStatus string

const (
	StatusPending   TransactionStatus = "pending"
	StatusCompleted TransactionStatus = "completed"
	StatusFailed    TransactionStatus = "failed"
	StatusCancelled TransactionStatus = "cancelled"
)

// Terminal reports whether a status admits no further transitions.
func (s TransactionStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

type User struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	FirstName string    `gorm:"size:100;not null" json:"firstName"`
	LastName  string    `gorm:"size:100;not null" json:"lastName"`
	Email     string    `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Password  string    `gorm:"size:255;not null" json:"-"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// LimitUsage is the rolling daily/monthly quota shape shared by Account
// (transfer limits) and Card (spending limits). Embedded with a gorm
// column prefix by both owners.
type LimitUsage struct {
	DailyLimit   decimal.Decimal `gorm:"type:numeric(19,4);not null" json:"dailyLimit"`
	MonthlyLimit decimal.Decimal `gorm:"type:numeric(19,4);not null" json:"monthlyLimit"`
	DailyUsed    decimal.Decimal `gorm:"type:numeric(19,4);not null" json:"dailyUsed"`
	MonthlyUsed  decimal.Decimal `gorm:"type:numeric(19,4);not null" json:"monthlyUsed"`
	LastReset    time.Time       `gorm:"not null" json:"lastResetDate"`
}

type Account struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	UserID        uuid.UUID       `gorm:"type:uuid;index;not null" json:"userId"`
	AccountNumber string          `gorm:"uniqueIndex;size:32;not null" json:"accountNumber"`
	AccountType   AccountType     `gorm:"size:16;not null" json:"accountType"`
	Balance       decimal.Decimal `gorm:"type:numeric(19,4);not null" json:"balance"`
	Currency      Currency        `gorm:"size:3;not null" json:"currency"`
	IsActive      bool            `gorm:"not null;default:true" json:"isActive"`
	Transfer      LimitUsage      `gorm:"embedded;embeddedPrefix:transfer_" json:"transferLimits"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

type Card struct {
	ID              uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID          uuid.UUID  `gorm:"type:uuid;index;not null" json:"userId"`
	LinkedAccountID uuid.UUID  `gorm:"type:uuid;index;not null" json:"linkedAccountId"`
	CardNumber      string     `gorm:"uniqueIndex;size:32;not null" json:"cardNumber"`
	CardHolderName  string     `gorm:"size:255;not null" json:"cardHolderName"`
	ExpiryMonth     int        `gorm:"not null" json:"expiryMonth"`
	ExpiryYear      int        `gorm:"not null" json:"expiryYear"`
	CVV             string     `gorm:"size:8;not null" json:"-"`
	IsActive        bool       `gorm:"not null;default:true" json:"isActive"`
	IsFrozen        bool       `gorm:"not null;default:false" json:"isFrozen"`
	AllowATM        bool       `gorm:"not null;default:true" json:"allowAtm"`
	AllowOnline     bool       `gorm:"not null;default:true" json:"allowOnlinePurchases"`
	AllowIntl       bool       `gorm:"not null;default:true" json:"allowInternationalTransactions"`
	Spending        LimitUsage `gorm:"embedded;embeddedPrefix:spending_" json:"spendingLimits"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

type Transaction struct {
	ID            uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	Type          TransactionType   `gorm:"size:16;not null;index" json:"type"`
	Amount        decimal.Decimal   `gorm:"type:numeric(19,4);not null" json:"amount"`
	Currency      Currency          `gorm:"size:3;not null" json:"currency"`
	Description   string            `gorm:"type:text" json:"description"`
	Status        TransactionStatus `gorm:"size:16;not null;index" json:"status"`
	Reference     string            `gorm:"uniqueIndex;size:64;not null" json:"reference"`
	FromAccountID *uuid.UUID        `gorm:"type:uuid;index" json:"fromAccountId,omitempty"`
	ToAccountID   *uuid.UUID        `gorm:"type:uuid;index" json:"toAccountId,omitempty"`
	CardID        *uuid.UUID        `gorm:"type:uuid;index" json:"cardId,omitempty"`
	RefundOf      *string           `gorm:"size:64;index" json:"refundOf,omitempty"`
	Metadata      Metadata          `gorm:"type:jsonb" json:"metadata"`
	CreatedAt     time.Time         `json:"createdAt"`
	UpdatedAt     time.Time         `json:"updatedAt"`
}
