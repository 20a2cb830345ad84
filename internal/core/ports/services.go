package ports

import (
	"context"

	"fastpay/internal/core/domain"

	"github.com/shopspring/decimal"
)

//go:generate mockgen -source=services.go -destination=mocks/mock_services.go -package=mocks

// TransactionService applies balance-affecting requests.
type TransactionService interface {
	ApplyTransaction(ctx context.Context, req TransactionRequest) (*TransactionResult, error)
	Transfer(ctx context.Context, req TransferRequest) (*TransactionResult, error)
}

// TransactionRequest is a single deposit or withdrawal against one account.
// Type is the raw client value; the service parses and validates it.
type TransactionRequest struct {
	AccountID   string
	Amount      decimal.Decimal
	Type        string
	Description string
}

// TransferRequest moves Amount from SenderID to ReceiverID.
type TransferRequest struct {
	SenderID    string
	ReceiverID  string
	Amount      decimal.Decimal
	Description string
}

// TransactionResult holds the balance after the request and the record written for it.
// For transfers both are the sender's.
type TransactionResult struct {
	Balance decimal.Decimal
	Record  *domain.TransactionRecord
}

// QueryService serves read-only account views.
type QueryService interface {
	GetBalance(ctx context.Context, accountID string) (decimal.Decimal, error)
	GetHistory(ctx context.Context, params HistoryParams) (*History, error)
	GetAccount(ctx context.Context, accountID string) (*domain.Account, error)
}

// HistoryParams selects one page of an account's history.
// A zero Limit means the configured default.
type HistoryParams struct {
	AccountID string
	Limit     int
	Offset    int
}

// History is an account's balance plus one page of its records, newest first.
type History struct {
	Balance decimal.Decimal
	Records []domain.TransactionRecord
	Total   int64
	Limit   int
	Offset  int
}
