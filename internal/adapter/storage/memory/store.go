// Package memory is a process-local storage backend. It gives the same guarantees the
// services rely on from PostgreSQL: an account locked through a Tx stays locked until
// Commit or Rollback, and a Tx's writes become visible all at once on Commit.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"fastpay/internal/core/domain"
	"fastpay/internal/core/ports"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

var (
	// ErrDuplicateAccount is returned when creating an account whose ID already exists.
	ErrDuplicateAccount = errors.New("account already exists")
	// ErrNotLocked is returned when a write targets an account the Tx did not lock.
	ErrNotLocked = errors.New("account not locked by transaction")
	errForeignTx = errors.New("transaction was not started by the memory store")
)

type storedRecord struct {
	domain.TransactionRecord
	seq int64
}

// Store holds committed state plus one lock per account. A lock is a channel with
// a single slot so waiting for it can be abandoned when the caller's context ends.
type Store struct {
	mu       sync.RWMutex
	accounts map[string]domain.Account
	records  map[string][]storedRecord
	seq      int64

	locksMu sync.Mutex
	locks   map[string]chan struct{}
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		accounts: make(map[string]domain.Account),
		records:  make(map[string][]storedRecord),
		locks:    make(map[string]chan struct{}),
	}
}

func (s *Store) accountLock(id string) chan struct{} {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	l, ok := s.locks[id]
	if !ok {
		l = make(chan struct{}, 1)
		s.locks[id] = l
	}
	return l
}

func (s *Store) account(id string) (domain.Account, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[id]
	return a, ok
}

// Transactor implements ports.DBTransactor for the memory store.
type Transactor struct {
	store *Store
}

// NewTransactor creates a new Transactor.
func NewTransactor(store *Store) *Transactor {
	return &Transactor{store: store}
}

// Begin starts a new transaction.
func (t *Transactor) Begin(ctx context.Context) (pgx.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &Tx{
		store:    t.store,
		locked:   make(map[string]chan struct{}),
		accounts: make(map[string]domain.Account),
	}, nil
}

// Tx stages writes until Commit. Only Commit and Rollback of pgx.Tx are implemented;
// the repositories are the only other callers and they use the staging methods directly.
type Tx struct {
	pgx.Tx

	store    *Store
	order    []string
	locked   map[string]chan struct{}
	accounts map[string]domain.Account
	records  []domain.TransactionRecord
	done     bool
}

func asTx(tx pgx.Tx) (*Tx, error) {
	mtx, ok := tx.(*Tx)
	if !ok {
		return nil, errForeignTx
	}
	if mtx.done {
		return nil, pgx.ErrTxClosed
	}
	return mtx, nil
}

// lock takes the account lock once per Tx, giving up when ctx is done.
func (tx *Tx) lock(ctx context.Context, id string) error {
	if _, held := tx.locked[id]; held {
		return nil
	}
	l := tx.store.accountLock(id)
	select {
	case l <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	tx.locked[id] = l
	tx.order = append(tx.order, id)
	return nil
}

func (tx *Tx) release() {
	for i := len(tx.order) - 1; i >= 0; i-- {
		<-tx.locked[tx.order[i]]
	}
	tx.order = nil
	tx.locked = map[string]chan struct{}{}
}

// Commit publishes staged balances and records, then releases the account locks.
func (tx *Tx) Commit(ctx context.Context) error {
	if tx.done {
		return pgx.ErrTxClosed
	}
	tx.done = true
	defer tx.release()

	s := tx.store
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, a := range tx.accounts {
		s.accounts[id] = a
	}
	for _, r := range tx.records {
		s.seq++
		s.records[r.AccountID] = append(s.records[r.AccountID], storedRecord{TransactionRecord: r, seq: s.seq})
	}
	return nil
}

// Rollback discards staged writes and releases the account locks.
func (tx *Tx) Rollback(ctx context.Context) error {
	if tx.done {
		return pgx.ErrTxClosed
	}
	tx.done = true
	tx.release()
	return nil
}

// AccountRepo implements ports.AccountRepository.
type AccountRepo struct {
	store *Store
}

// NewAccountRepo creates a new AccountRepo.
func NewAccountRepo(store *Store) *AccountRepo {
	return &AccountRepo{store: store}
}

// Create stores a new account.
func (r *AccountRepo) Create(ctx context.Context, a *domain.Account) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.accounts[a.ID]; exists {
		return fmt.Errorf("insert account %s: %w", a.ID, ErrDuplicateAccount)
	}
	s.accounts[a.ID] = *a
	return nil
}

// GetByID returns the committed account, or nil if it does not exist.
func (r *AccountRepo) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	a, ok := r.store.account(id)
	if !ok {
		return nil, nil
	}
	return &a, nil
}

// GetByIDForUpdate locks the account for the rest of tx and returns it.
// Missing accounts return nil without taking a lock.
func (r *AccountRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id string) (*domain.Account, error) {
	mtx, err := asTx(tx)
	if err != nil {
		return nil, fmt.Errorf("get account for update: %w", err)
	}
	if _, ok := r.store.account(id); !ok {
		return nil, nil
	}

	if err := mtx.lock(ctx, id); err != nil {
		return nil, fmt.Errorf("lock account %s: %w", id, err)
	}

	if staged, ok := mtx.accounts[id]; ok {
		return &staged, nil
	}
	a, ok := r.store.account(id)
	if !ok {
		return nil, nil
	}
	return &a, nil
}

// UpdateBalance stages a new balance. The account must be locked by tx.
func (r *AccountRepo) UpdateBalance(ctx context.Context, tx pgx.Tx, id string, balance decimal.Decimal, expectedVersion int64) error {
	mtx, err := asTx(tx)
	if err != nil {
		return fmt.Errorf("update account balance: %w", err)
	}
	if _, held := mtx.locked[id]; !held {
		return fmt.Errorf("update account balance %s: %w", id, ErrNotLocked)
	}

	current, ok := mtx.accounts[id]
	if !ok {
		current, ok = r.store.account(id)
		if !ok {
			return fmt.Errorf("account not found: %s", id)
		}
	}
	if current.Version != expectedVersion {
		return fmt.Errorf("update account balance %s: %w", id, ports.ErrVersionConflict)
	}

	current.Balance = balance
	current.Version++
	current.UpdatedAt = time.Now().UTC()
	mtx.accounts[id] = current
	return nil
}

// TransactionRepo implements ports.TransactionRepository.
type TransactionRepo struct {
	store *Store
}

// NewTransactionRepo creates a new TransactionRepo.
func NewTransactionRepo(store *Store) *TransactionRepo {
	return &TransactionRepo{store: store}
}

// Create stages a record inside tx.
func (r *TransactionRepo) Create(ctx context.Context, tx pgx.Tx, rec *domain.TransactionRecord) error {
	mtx, err := asTx(tx)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	mtx.records = append(mtx.records, *rec)
	return nil
}

// ListByAccount returns committed records newest first, ties broken by insertion order.
func (r *TransactionRepo) ListByAccount(ctx context.Context, params ports.HistoryParams) ([]domain.TransactionRecord, int64, error) {
	s := r.store
	s.mu.RLock()
	stored := make([]storedRecord, len(s.records[params.AccountID]))
	copy(stored, s.records[params.AccountID])
	s.mu.RUnlock()

	sort.Slice(stored, func(i, j int) bool {
		if !stored[i].CreatedAt.Equal(stored[j].CreatedAt) {
			return stored[i].CreatedAt.After(stored[j].CreatedAt)
		}
		return stored[i].seq > stored[j].seq
	})

	total := int64(len(stored))
	if params.Offset >= len(stored) {
		return []domain.TransactionRecord{}, total, nil
	}
	end := len(stored)
	if params.Limit > 0 && params.Offset+params.Limit < end {
		end = params.Offset + params.Limit
	}

	page := make([]domain.TransactionRecord, 0, end-params.Offset)
	for _, sr := range stored[params.Offset:end] {
		page = append(page, sr.TransactionRecord)
	}
	return page, total, nil
}

// HealthCheck implements ports.HealthChecker for the memory store.
type HealthCheck struct{}

// NewHealthCheck creates a memory store health checker.
func NewHealthCheck() *HealthCheck {
	return &HealthCheck{}
}

// Ping always succeeds.
func (h *HealthCheck) Ping(ctx context.Context) error {
	return nil
}

// Name returns the dependency name.
func (h *HealthCheck) Name() string {
	return "memory"
}
