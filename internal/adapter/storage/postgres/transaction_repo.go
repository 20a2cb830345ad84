package postgres

import (
	"context"
	"fmt"

	"fastpay/internal/core/domain"
	"fastpay/internal/core/ports"

	"github.com/jackc/pgx/v5"
)

// TransactionRepo implements ports.TransactionRepository.
type TransactionRepo struct {
	pool Pool
}

// NewTransactionRepo creates a new TransactionRepo.
func NewTransactionRepo(pool Pool) *TransactionRepo {
	return &TransactionRepo{pool: pool}
}

// Create inserts a history record within a database transaction.
func (r *TransactionRepo) Create(ctx context.Context, tx pgx.Tx, t *domain.TransactionRecord) error {
	query := `INSERT INTO transactions (id, account_id, type, amount, description, counterparty_id, balance_after, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := tx.Exec(ctx, query,
		t.ID, t.AccountID, string(t.Type), t.Amount, t.Description,
		t.CounterpartyID, t.BalanceAfter, t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

// ListByAccount fetches one page of an account's records, newest first.
// seq breaks ties between records sharing a timestamp.
func (r *TransactionRepo) ListByAccount(ctx context.Context, params ports.HistoryParams) ([]domain.TransactionRecord, int64, error) {
	var total int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM transactions WHERE account_id = $1`, params.AccountID).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count transactions: %w", err)
	}

	query := `SELECT id, account_id, type, amount, description, counterparty_id, balance_after, created_at
		FROM transactions WHERE account_id = $1
		ORDER BY created_at DESC, seq DESC LIMIT $2 OFFSET $3`

	rows, err := r.pool.Query(ctx, query, params.AccountID, params.Limit, params.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	records := make([]domain.TransactionRecord, 0, params.Limit)
	for rows.Next() {
		var (
			t       domain.TransactionRecord
			txnType string
		)
		err := rows.Scan(
			&t.ID, &t.AccountID, &txnType, &t.Amount, &t.Description,
			&t.CounterpartyID, &t.BalanceAfter, &t.CreatedAt,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("scan transaction row: %w", err)
		}
		t.Type = domain.TransactionType(txnType)
		records = append(records, t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate transaction rows: %w", err)
	}
	return records, total, nil
}
