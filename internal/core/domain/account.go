package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// MaxBalance is the exclusive upper bound for balances and amounts, matching NUMERIC(20,2).
var MaxBalance = decimal.New(1, 18)

// Account holds a balance and identity, addressed by a payment address (e.g. a UPI id).
type Account struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Email     string          `json:"email"`
	Balance   decimal.Decimal `json:"balance"`
	Version   int64           `json:"version"` // Bumped on every balance update
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// CanCover reports whether the balance is enough for a withdrawal of amount.
func (a *Account) CanCover(amount decimal.Decimal) bool {
	return a.Balance.GreaterThanOrEqual(amount)
}

// Apply returns the balance that results from applying a record of type t and amount.
func (a *Account) Apply(t TransactionType, amount decimal.Decimal) decimal.Decimal {
	return a.Balance.Add(amount.Mul(decimal.NewFromInt(t.Sign())))
}
