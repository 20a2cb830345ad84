package service

import (
	"context"
	"fmt"
	"time"

	"fastpay/internal/core/domain"
	"fastpay/internal/core/ports"

	"github.com/rs/zerolog"
)

// SeedAccounts creates the given accounts, skipping any that already exist.
// It returns the number of accounts created.
func SeedAccounts(ctx context.Context, repo ports.AccountRepository, accounts []domain.Account, log zerolog.Logger) (int, error) {
	created := 0
	for i := range accounts {
		acc := accounts[i]
		if acc.ID == "" {
			return created, fmt.Errorf("seed account %d: id is required", i)
		}
		if acc.Balance.IsNegative() {
			return created, fmt.Errorf("seed account %s: balance must not be negative", acc.ID)
		}

		existing, err := repo.GetByID(ctx, acc.ID)
		if err != nil {
			return created, fmt.Errorf("seed account %s: %w", acc.ID, err)
		}
		if existing != nil {
			log.Debug().Str("account_id", acc.ID).Msg("seed account already exists, skipping")
			continue
		}

		now := time.Now().UTC()
		if acc.CreatedAt.IsZero() {
			acc.CreatedAt = now
		}
		acc.UpdatedAt = now
		if err := repo.Create(ctx, &acc); err != nil {
			return created, fmt.Errorf("seed account %s: %w", acc.ID, err)
		}
		created++
		log.Info().Str("account_id", acc.ID).Str("balance", acc.Balance.StringFixed(amountScale)).Msg("seeded account")
	}
	return created, nil
}
