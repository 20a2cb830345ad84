package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionType is the direction of a balance-affecting event.
type TransactionType string

const (
	TransactionTypeDeposit    TransactionType = "Deposit"
	TransactionTypeWithdrawal TransactionType = "Withdrawal"
)

// ParseTransactionType accepts any casing ("deposit", "WITHDRAWAL") and returns
// the canonical type. ok is false for anything else.
func ParseTransactionType(s string) (TransactionType, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "deposit":
		return TransactionTypeDeposit, true
	case "withdrawal":
		return TransactionTypeWithdrawal, true
	default:
		return "", false
	}
}

// Sign returns +1 for deposits and -1 for withdrawals.
func (t TransactionType) Sign() int64 {
	if t == TransactionTypeWithdrawal {
		return -1
	}
	return 1
}

// TransactionRecord is an immutable, append-only history entry for one account.
type TransactionRecord struct {
	ID             uuid.UUID       `json:"id"`
	AccountID      string          `json:"account_id"`
	Type           TransactionType `json:"type"`
	Amount         decimal.Decimal `json:"amount"`
	Description    string          `json:"description"`
	CounterpartyID *string         `json:"counterparty_id,omitempty"`
	BalanceAfter   decimal.Decimal `json:"balance_after"`
	CreatedAt      time.Time       `json:"created_at"`
}

// SignedAmount is the record's effect on the owner's balance.
func (r *TransactionRecord) SignedAmount() decimal.Decimal {
	return r.Amount.Mul(decimal.NewFromInt(r.Type.Sign()))
}

// Replay folds records (in any order) onto an initial balance.
func Replay(initial decimal.Decimal, records []TransactionRecord) decimal.Decimal {
	balance := initial
	for i := range records {
		balance = balance.Add(records[i].SignedAmount())
	}
	return balance
}
