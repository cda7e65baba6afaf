package ledger

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/smartwallet/smartwallet/internal/store"
)

var (
	// ErrTransactionNotFound is returned when confirm or fail references an
	// unknown transaction, or one that has already settled.
	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrInsufficientFunds occurs when a debit would take the balance below
	// zero. The ledger only raises it when EnforceNonNegative is enabled;
	// payment flows raise it from their own pre-check.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrInvalidTransaction reports an input with an unknown type or source.
	ErrInvalidTransaction = errors.New("invalid transaction")

	// ErrStorageUnavailable is the store failure surfaced by ledger operations.
	ErrStorageUnavailable = store.ErrStorageUnavailable
)

// Type is the kind of funds movement.
type Type string

const (
	TypeTopUp    Type = "topup"
	TypeTransfer Type = "transfer"
	TypePayment  Type = "payment"
	TypeReceive  Type = "receive"
)

// Valid reports whether t is a known transaction type.
func (t Type) Valid() bool {
	switch t {
	case TypeTopUp, TypeTransfer, TypePayment, TypeReceive:
		return true
	}
	return false
}

// Source is the origin or method of a funds movement.
type Source string

const (
	SourceBank    Source = "bank"
	SourceEWallet Source = "ewallet"
)

// Valid reports whether s is a known source.
func (s Source) Valid() bool {
	return s == SourceBank || s == SourceEWallet
}

// Status is the lifecycle state of a transaction.
type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusSuccess, StatusFailed:
		return true
	}
	return false
}

// WalletBalance is the singleton balance record of a wallet.
type WalletBalance struct {
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	LastUpdated time.Time       `json:"lastUpdated"`
}

// Transaction is a single ledger entry. Positive amounts credit the balance,
// negative amounts debit it.
type Transaction struct {
	ID          string          `json:"id"`
	Type        Type            `json:"type"`
	Source      Source          `json:"source"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Status      Status          `json:"status"`
	Icon        string          `json:"icon,omitempty"`
	Date        time.Time       `json:"date"`
	StartedAt   *time.Time      `json:"startedAt,omitempty"`
	FinishedAt  *time.Time      `json:"finishedAt,omitempty"`
}

// EffectiveAt returns finishedAt, else startedAt, else date.
func (t Transaction) EffectiveAt() time.Time {
	if t.FinishedAt != nil {
		return *t.FinishedAt
	}
	if t.StartedAt != nil {
		return *t.StartedAt
	}
	return t.Date
}

// Settled reports whether the transaction reached a terminal state.
func (t Transaction) Settled() bool {
	return t.Status == StatusSuccess || t.Status == StatusFailed
}

// IsCredit reports whether the transaction adds to the balance.
func (t Transaction) IsCredit() bool {
	return t.Amount.IsPositive()
}

// TransactionInput carries the caller-supplied fields of a new transaction.
// Identifier, status and timestamps are assigned by the service.
type TransactionInput struct {
	Type        Type
	Source      Source
	Amount      decimal.Decimal
	Description string
	Category    string
	Icon        string
}

func (in TransactionInput) validate() error {
	if !in.Type.Valid() {
		return fmt.Errorf("%w: unknown type %q", ErrInvalidTransaction, in.Type)
	}
	if !in.Source.Valid() {
		return fmt.Errorf("%w: unknown source %q", ErrInvalidTransaction, in.Source)
	}
	return nil
}
