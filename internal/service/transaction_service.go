package service

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"fastpay/internal/core/domain"
	"fastpay/internal/core/ports"
	"fastpay/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	maxDescriptionLen = 255
	amountScale       = 2
)

// TransactionServiceImpl implements ports.TransactionService.
type TransactionServiceImpl struct {
	accountRepo ports.AccountRepository
	txRepo      ports.TransactionRepository
	transactor  ports.DBTransactor
	cache       ports.BalanceCache // nil = no balance cache
	log         zerolog.Logger
	now         func() time.Time
}

// NewTransactionService creates a new TransactionServiceImpl.
func NewTransactionService(
	accountRepo ports.AccountRepository,
	txRepo ports.TransactionRepository,
	transactor ports.DBTransactor,
	cache ports.BalanceCache,
	log zerolog.Logger,
) *TransactionServiceImpl {
	return &TransactionServiceImpl{
		accountRepo: accountRepo,
		txRepo:      txRepo,
		transactor:  transactor,
		cache:       cache,
		log:         log,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// ApplyTransaction applies a deposit or withdrawal with the account row locked,
// writing the balance update and the history record in one storage transaction.
func (s *TransactionServiceImpl) ApplyTransaction(ctx context.Context, req ports.TransactionRequest) (*ports.TransactionResult, error) {
	if strings.TrimSpace(req.AccountID) == "" {
		return nil, apperror.Validation("sender_id is required")
	}
	txType, ok := domain.ParseTransactionType(req.Type)
	if !ok {
		return nil, apperror.ErrInvalidTransactionType()
	}
	if err := validateAmount(req.Amount); err != nil {
		return nil, err
	}
	description, err := normalizeDescription(req.Description)
	if err != nil {
		return nil, err
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.StorageError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	account, err := s.accountRepo.GetByIDForUpdate(ctx, dbTx, req.AccountID)
	if err != nil {
		return nil, apperror.StorageError(fmt.Errorf("lock account: %w", err))
	}
	if account == nil {
		return nil, apperror.ErrAccountNotFound(req.AccountID)
	}

	if txType == domain.TransactionTypeWithdrawal && !account.CanCover(req.Amount) {
		return nil, apperror.ErrInsufficientFunds()
	}

	record, err := s.applyLocked(ctx, dbTx, account, txType, req.Amount, description, nil)
	if err != nil {
		return nil, err
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.StorageError(fmt.Errorf("commit tx: %w", err))
	}

	s.refreshCache(ctx, account)

	s.log.Info().
		Str("tx_id", record.ID.String()).
		Str("account_id", account.ID).
		Str("type", string(txType)).
		Str("amount", req.Amount.StringFixed(amountScale)).
		Str("balance", record.BalanceAfter.StringFixed(amountScale)).
		Msg("transaction applied")

	return &ports.TransactionResult{Balance: record.BalanceAfter, Record: record}, nil
}

// Transfer withdraws from the sender and deposits to the receiver atomically.
// Both accounts are locked in ID order so opposite transfers cannot deadlock.
func (s *TransactionServiceImpl) Transfer(ctx context.Context, req ports.TransferRequest) (*ports.TransactionResult, error) {
	if strings.TrimSpace(req.SenderID) == "" || strings.TrimSpace(req.ReceiverID) == "" {
		return nil, apperror.Validation("sender_id and receiver_id are required")
	}
	if req.SenderID == req.ReceiverID {
		return nil, apperror.Validation("cannot transfer to the same account")
	}
	if err := validateAmount(req.Amount); err != nil {
		return nil, err
	}
	description, err := normalizeDescription(req.Description)
	if err != nil {
		return nil, err
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.StorageError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	first, second := req.SenderID, req.ReceiverID
	if second < first {
		first, second = second, first
	}
	locked := make(map[string]*domain.Account, 2)
	for _, id := range []string{first, second} {
		account, err := s.accountRepo.GetByIDForUpdate(ctx, dbTx, id)
		if err != nil {
			return nil, apperror.StorageError(fmt.Errorf("lock account %s: %w", id, err))
		}
		if account == nil {
			return nil, apperror.ErrAccountNotFound(id)
		}
		locked[id] = account
	}

	sender, receiver := locked[req.SenderID], locked[req.ReceiverID]
	if !sender.CanCover(req.Amount) {
		return nil, apperror.ErrInsufficientFunds()
	}

	senderRecord, err := s.applyLocked(ctx, dbTx, sender, domain.TransactionTypeWithdrawal, req.Amount, description, &receiver.ID)
	if err != nil {
		return nil, err
	}
	receiverRecord, err := s.applyLocked(ctx, dbTx, receiver, domain.TransactionTypeDeposit, req.Amount, description, &sender.ID)
	if err != nil {
		return nil, err
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.StorageError(fmt.Errorf("commit tx: %w", err))
	}

	s.refreshCache(ctx, sender, receiver)

	s.log.Info().
		Str("sender_tx_id", senderRecord.ID.String()).
		Str("receiver_tx_id", receiverRecord.ID.String()).
		Str("sender_id", sender.ID).
		Str("receiver_id", receiver.ID).
		Str("amount", req.Amount.StringFixed(amountScale)).
		Msg("transfer applied")

	return &ports.TransactionResult{Balance: senderRecord.BalanceAfter, Record: senderRecord}, nil
}

// applyLocked persists one balance change and its record. account must be locked by dbTx.
func (s *TransactionServiceImpl) applyLocked(
	ctx context.Context,
	dbTx pgx.Tx,
	account *domain.Account,
	txType domain.TransactionType,
	amount decimal.Decimal,
	description string,
	counterpartyID *string,
) (*domain.TransactionRecord, error) {
	newBalance := account.Apply(txType, amount)
	if newBalance.IsNegative() {
		return nil, apperror.ErrInsufficientFunds()
	}
	if newBalance.GreaterThanOrEqual(domain.MaxBalance) {
		return nil, apperror.Validation(fmt.Sprintf("balance of %s would exceed the account limit", account.ID))
	}

	// Under the row lock the version always matches; a conflict means the lock was not held.
	if err := s.accountRepo.UpdateBalance(ctx, dbTx, account.ID, newBalance, account.Version); err != nil {
		return nil, apperror.StorageError(fmt.Errorf("update balance of %s: %w", account.ID, err))
	}
	account.Balance = newBalance
	account.Version++

	record := &domain.TransactionRecord{
		ID:             uuid.New(),
		AccountID:      account.ID,
		Type:           txType,
		Amount:         amount,
		Description:    description,
		CounterpartyID: counterpartyID,
		BalanceAfter:   newBalance,
		CreatedAt:      s.now(),
	}
	if err := s.txRepo.Create(ctx, dbTx, record); err != nil {
		return nil, apperror.StorageError(fmt.Errorf("create transaction record: %w", err))
	}
	return record, nil
}

// refreshCache writes committed balances through to the cache, tagged with the new
// account version. If the write fails the entry is dropped instead.
func (s *TransactionServiceImpl) refreshCache(ctx context.Context, accounts ...*domain.Account) {
	if s.cache == nil {
		return
	}
	for _, a := range accounts {
		err := s.cache.Set(ctx, a.ID, a.Balance, a.Version)
		if err == nil {
			continue
		}
		s.log.Warn().Err(err).Str("account_id", a.ID).Msg("failed to refresh balance cache, dropping entry")
		if err := s.cache.Delete(ctx, a.ID); err != nil {
			s.log.Warn().Err(err).Str("account_id", a.ID).Msg("failed to invalidate balance cache")
		}
	}
}

func validateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return apperror.ErrInvalidAmount()
	}
	if amount.GreaterThanOrEqual(domain.MaxBalance) {
		return apperror.Validation(fmt.Sprintf("amount must be less than %s", domain.MaxBalance))
	}
	if !amount.Equal(amount.Truncate(amountScale)) {
		return apperror.Validation("amount must have at most 2 decimal places")
	}
	return nil
}

func normalizeDescription(description string) (string, error) {
	description = strings.TrimSpace(description)
	if utf8.RuneCountInString(description) > maxDescriptionLen {
		return "", apperror.Validation(fmt.Sprintf("description must be at most %d characters", maxDescriptionLen))
	}
	return description, nil
}
