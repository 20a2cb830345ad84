package ports

import (
	"context"
	"errors"

	"fastpay/internal/core/domain"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

//go:generate mockgen -source=repositories.go -destination=mocks/mock_repositories.go -package=mocks

// ErrVersionConflict is returned by UpdateBalance when the stored version no longer
// matches the one the caller read.
var ErrVersionConflict = errors.New("account version conflict")

// AccountRepository defines persistence operations for accounts.
// Methods accepting pgx.Tx are used inside transaction blocks and hold the account lock
// until the transaction ends.
type AccountRepository interface {
	Create(ctx context.Context, account *domain.Account) error
	GetByID(ctx context.Context, id string) (*domain.Account, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id string) (*domain.Account, error)
	UpdateBalance(ctx context.Context, tx pgx.Tx, id string, balance decimal.Decimal, expectedVersion int64) error
}

// TransactionRepository defines persistence operations for the append-only history.
type TransactionRepository interface {
	Create(ctx context.Context, tx pgx.Tx, record *domain.TransactionRecord) error
	// ListByAccount returns one page of records, newest first, and the total count.
	ListByAccount(ctx context.Context, params HistoryParams) ([]domain.TransactionRecord, int64, error)
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// BalanceCache is a non-authoritative read cache for account balances.
type BalanceCache interface {
	// Get returns nil, nil on a miss.
	Get(ctx context.Context, accountID string) (*decimal.Decimal, error)
	// Set stores the balance of an account version unless the cache already holds
	// the same or a newer version.
	Set(ctx context.Context, accountID string, balance decimal.Decimal, version int64) error
	Delete(ctx context.Context, accountIDs ...string) error
}
