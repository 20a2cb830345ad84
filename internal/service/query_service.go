package service

import (
	"context"
	"fmt"
	"strings"

	"fastpay/internal/core/domain"
	"fastpay/internal/core/ports"
	"fastpay/pkg/apperror"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// HistoryLimits bounds history page sizes.
type HistoryLimits struct {
	Default int
	Max     int
}

// queryService implements ports.QueryService.
type queryService struct {
	accountRepo ports.AccountRepository
	txRepo      ports.TransactionRepository
	cache       ports.BalanceCache // nil = no balance cache
	limits      HistoryLimits
	log         zerolog.Logger
}

// NewQueryService creates a new query service.
func NewQueryService(
	accountRepo ports.AccountRepository,
	txRepo ports.TransactionRepository,
	cache ports.BalanceCache,
	limits HistoryLimits,
	log zerolog.Logger,
) ports.QueryService {
	return &queryService{
		accountRepo: accountRepo,
		txRepo:      txRepo,
		cache:       cache,
		limits:      limits,
		log:         log,
	}
}

// GetBalance returns the current balance, served from the cache when one is configured.
func (s *queryService) GetBalance(ctx context.Context, accountID string) (decimal.Decimal, error) {
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, accountID)
		if err != nil {
			s.log.Warn().Err(err).Str("account_id", accountID).Msg("balance cache read failed, falling through to store")
		}
		if cached != nil {
			return *cached, nil
		}
	}

	account, err := s.getAccount(ctx, accountID)
	if err != nil {
		return decimal.Zero, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, accountID, account.Balance, account.Version); err != nil {
			s.log.Warn().Err(err).Str("account_id", accountID).Msg("failed to cache balance")
		}
	}
	return account.Balance, nil
}

// GetHistory returns the authoritative balance and one page of records, newest first.
// An account without records yields an empty, non-nil slice.
func (s *queryService) GetHistory(ctx context.Context, params ports.HistoryParams) (*ports.History, error) {
	if params.Offset < 0 {
		return nil, apperror.Validation("offset must not be negative")
	}
	if params.Limit < 0 {
		return nil, apperror.Validation("limit must not be negative")
	}
	if params.Limit == 0 {
		params.Limit = s.limits.Default
	}
	if params.Limit > s.limits.Max {
		params.Limit = s.limits.Max
	}

	account, err := s.getAccount(ctx, params.AccountID)
	if err != nil {
		return nil, err
	}

	records, total, err := s.txRepo.ListByAccount(ctx, params)
	if err != nil {
		return nil, apperror.StorageError(fmt.Errorf("list transactions: %w", err))
	}
	if records == nil {
		records = []domain.TransactionRecord{}
	}

	return &ports.History{
		Balance: account.Balance,
		Records: records,
		Total:   total,
		Limit:   params.Limit,
		Offset:  params.Offset,
	}, nil
}

// GetAccount returns the account profile with its current balance.
func (s *queryService) GetAccount(ctx context.Context, accountID string) (*domain.Account, error) {
	return s.getAccount(ctx, accountID)
}

func (s *queryService) getAccount(ctx context.Context, accountID string) (*domain.Account, error) {
	if strings.TrimSpace(accountID) == "" {
		return nil, apperror.Validation("account id is required")
	}
	account, err := s.accountRepo.GetByID(ctx, accountID)
	if err != nil {
		return nil, apperror.StorageError(fmt.Errorf("get account: %w", err))
	}
	if account == nil {
		return nil, apperror.ErrAccountNotFound(accountID)
	}
	return account, nil
}
