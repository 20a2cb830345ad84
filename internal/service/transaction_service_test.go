package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"fastpay/internal/core/domain"
	"fastpay/internal/core/ports"
	"fastpay/internal/core/ports/mocks"
	"fastpay/pkg/apperror"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type txTestDeps struct {
	svc         *TransactionServiceImpl
	accountRepo *mocks.MockAccountRepository
	txRepo      *mocks.MockTransactionRepository
	transactor  *mocks.MockDBTransactor
	cache       *mocks.MockBalanceCache
	ctrl        *gomock.Controller
}

var fixedNow = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func setupTransactionService(t *testing.T) *txTestDeps {
	ctrl := gomock.NewController(t)
	d := &txTestDeps{
		accountRepo: mocks.NewMockAccountRepository(ctrl),
		txRepo:      mocks.NewMockTransactionRepository(ctrl),
		transactor:  mocks.NewMockDBTransactor(ctrl),
		cache:       mocks.NewMockBalanceCache(ctrl),
		ctrl:        ctrl,
	}
	d.svc = NewTransactionService(d.accountRepo, d.txRepo, d.transactor, d.cache, zerolog.Nop())
	d.svc.now = func() time.Time { return fixedNow }
	return d
}

// mockTx implements pgx.Tx for testing
type mockTx struct {
	pgx.Tx
	commitErr error
}

func (m *mockTx) Rollback(_ context.Context) error { return nil }
func (m *mockTx) Commit(_ context.Context) error   { return m.commitErr }

// decimalEq matches decimals by value, ignoring representation.
type decimalEq struct{ want decimal.Decimal }

func (m decimalEq) Matches(x any) bool {
	d, ok := x.(decimal.Decimal)
	return ok && d.Equal(m.want)
}

func (m decimalEq) String() string { return "is decimal " + m.want.String() }

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func decEq(s string) gomock.Matcher { return decimalEq{want: dec(s)} }

func assertAppError(t *testing.T, err error, expectedCode string) {
	t.Helper()
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, expectedCode, appErr.Code)
}

func aliceAccount(balance string) *domain.Account {
	return &domain.Account{ID: "alice@upi", Name: "Alice", Balance: dec(balance), Version: 4}
}

// ==================== ApplyTransaction Tests ====================

func TestTransactionService_ApplyTransaction_Deposit(t *testing.T) {
	d := setupTransactionService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.accountRepo.EXPECT().GetByIDForUpdate(ctx, tx, "alice@upi").Return(aliceAccount("100"), nil)
	d.accountRepo.EXPECT().UpdateBalance(ctx, tx, "alice@upi", decEq("150.25"), int64(4)).Return(nil)
	d.txRepo.EXPECT().Create(ctx, tx, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ pgx.Tx, rec *domain.TransactionRecord) error {
			assert.Equal(t, "alice@upi", rec.AccountID)
			assert.Equal(t, domain.TransactionTypeDeposit, rec.Type)
			assert.True(t, rec.Amount.Equal(dec("50.25")))
			assert.True(t, rec.BalanceAfter.Equal(dec("150.25")))
			assert.Equal(t, "Salary", rec.Description)
			assert.Nil(t, rec.CounterpartyID)
			assert.Equal(t, fixedNow, rec.CreatedAt)
			return nil
		})
	// Committed balance is written through with the bumped version.
	d.cache.EXPECT().Set(ctx, "alice@upi", decEq("150.25"), int64(5)).Return(nil)

	result, err := d.svc.ApplyTransaction(ctx, ports.TransactionRequest{
		AccountID:   "alice@upi",
		Amount:      dec("50.25"),
		Type:        "Deposit",
		Description: "  Salary ",
	})
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.True(t, result.Balance.Equal(dec("150.25")))
	require.NotNil(t, result.Record)
	assert.Equal(t, domain.TransactionTypeDeposit, result.Record.Type)
}

func TestTransactionService_ApplyTransaction_WithdrawalCaseInsensitive(t *testing.T) {
	d := setupTransactionService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.accountRepo.EXPECT().GetByIDForUpdate(ctx, tx, "alice@upi").Return(aliceAccount("100"), nil)
	d.accountRepo.EXPECT().UpdateBalance(ctx, tx, "alice@upi", decEq("69.50"), int64(4)).Return(nil)
	d.txRepo.EXPECT().Create(ctx, tx, gomock.Any()).Return(nil)
	d.cache.EXPECT().Set(ctx, "alice@upi", decEq("69.50"), int64(5)).Return(nil)

	result, err := d.svc.ApplyTransaction(ctx, ports.TransactionRequest{
		AccountID: "alice@upi",
		Amount:    dec("30.50"),
		Type:      "withdrawal",
	})
	require.NoError(t, err)
	assert.True(t, result.Balance.Equal(dec("69.50")))
	assert.Equal(t, domain.TransactionTypeWithdrawal, result.Record.Type)
}

func TestTransactionService_ApplyTransaction_WithdrawExactBalance(t *testing.T) {
	d := setupTransactionService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.accountRepo.EXPECT().GetByIDForUpdate(ctx, tx, "alice@upi").Return(aliceAccount("40"), nil)
	d.accountRepo.EXPECT().UpdateBalance(ctx, tx, "alice@upi", decEq("0"), int64(4)).Return(nil)
	d.txRepo.EXPECT().Create(ctx, tx, gomock.Any()).Return(nil)
	d.cache.EXPECT().Set(ctx, "alice@upi", decEq("0"), int64(5)).Return(nil)

	result, err := d.svc.ApplyTransaction(ctx, ports.TransactionRequest{
		AccountID: "alice@upi", Amount: dec("40"), Type: "Withdrawal",
	})
	require.NoError(t, err)
	assert.True(t, result.Balance.IsZero())
}

func TestTransactionService_ApplyTransaction_InsufficientFunds(t *testing.T) {
	d := setupTransactionService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.accountRepo.EXPECT().GetByIDForUpdate(ctx, tx, "alice@upi").Return(aliceAccount("10"), nil)
	// No UpdateBalance, no Create, no cache invalidation.

	result, err := d.svc.ApplyTransaction(ctx, ports.TransactionRequest{
		AccountID: "alice@upi", Amount: dec("10.01"), Type: "Withdrawal",
	})
	assert.Nil(t, result)
	assertAppError(t, err, apperror.CodeInsufficientFunds)
	assert.Equal(t, "Insufficient balance", err.(*apperror.AppError).Message)
}

func TestTransactionService_ApplyTransaction_InvalidAmount(t *testing.T) {
	tests := []struct {
		name   string
		amount decimal.Decimal
	}{
		{"zero", decimal.Zero},
		{"negative", dec("-5")},
		{"too many decimals", dec("1.005")},
		{"at column limit", dec("1000000000000000000")},
		{"above column limit", dec("5e20")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := setupTransactionService(t)
			defer d.ctrl.Finish()

			result, err := d.svc.ApplyTransaction(context.Background(), ports.TransactionRequest{
				AccountID: "alice@upi", Amount: tt.amount, Type: "Deposit",
			})
			assert.Nil(t, result)
			assertAppError(t, err, apperror.CodeValidation)
		})
	}
}

func TestTransactionService_ApplyTransaction_InvalidType(t *testing.T) {
	d := setupTransactionService(t)
	defer d.ctrl.Finish()

	for _, typ := range []string{"", "Transfer", "refund"} {
		result, err := d.svc.ApplyTransaction(context.Background(), ports.TransactionRequest{
			AccountID: "alice@upi", Amount: dec("1"), Type: typ,
		})
		assert.Nil(t, result)
		assertAppError(t, err, apperror.CodeValidation)
	}
}

func TestTransactionService_ApplyTransaction_MissingAccountID(t *testing.T) {
	d := setupTransactionService(t)
	defer d.ctrl.Finish()

	result, err := d.svc.ApplyTransaction(context.Background(), ports.TransactionRequest{
		AccountID: "  ", Amount: dec("1"), Type: "Deposit",
	})
	assert.Nil(t, result)
	assertAppError(t, err, apperror.CodeValidation)
}

func TestTransactionService_ApplyTransaction_DescriptionTooLong(t *testing.T) {
	d := setupTransactionService(t)
	defer d.ctrl.Finish()

	result, err := d.svc.ApplyTransaction(context.Background(), ports.TransactionRequest{
		AccountID:   "alice@upi",
		Amount:      dec("1"),
		Type:        "Deposit",
		Description: strings.Repeat("x", maxDescriptionLen+1),
	})
	assert.Nil(t, result)
	assertAppError(t, err, apperror.CodeValidation)
}

func TestTransactionService_ApplyTransaction_AccountNotFound(t *testing.T) {
	d := setupTransactionService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.accountRepo.EXPECT().GetByIDForUpdate(ctx, tx, "ghost@upi").Return(nil, nil)

	result, err := d.svc.ApplyTransaction(ctx, ports.TransactionRequest{
		AccountID: "ghost@upi", Amount: dec("1"), Type: "Deposit",
	})
	assert.Nil(t, result)
	assertAppError(t, err, apperror.CodeAccountNotFound)
}

func TestTransactionService_ApplyTransaction_StorageFailures(t *testing.T) {
	storageErr := errors.New("connection refused")

	tests := []struct {
		name  string
		setup func(d *txTestDeps, ctx context.Context, tx *mockTx)
	}{
		{
			name: "begin",
			setup: func(d *txTestDeps, ctx context.Context, _ *mockTx) {
				d.transactor.EXPECT().Begin(ctx).Return(nil, storageErr)
			},
		},
		{
			name: "lock",
			setup: func(d *txTestDeps, ctx context.Context, tx *mockTx) {
				d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
				d.accountRepo.EXPECT().GetByIDForUpdate(ctx, tx, "alice@upi").Return(nil, storageErr)
			},
		},
		{
			name: "update balance",
			setup: func(d *txTestDeps, ctx context.Context, tx *mockTx) {
				d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
				d.accountRepo.EXPECT().GetByIDForUpdate(ctx, tx, "alice@upi").Return(aliceAccount("100"), nil)
				d.accountRepo.EXPECT().UpdateBalance(ctx, tx, "alice@upi", gomock.Any(), int64(4)).Return(ports.ErrVersionConflict)
			},
		},
		{
			name: "create record",
			setup: func(d *txTestDeps, ctx context.Context, tx *mockTx) {
				d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
				d.accountRepo.EXPECT().GetByIDForUpdate(ctx, tx, "alice@upi").Return(aliceAccount("100"), nil)
				d.accountRepo.EXPECT().UpdateBalance(ctx, tx, "alice@upi", gomock.Any(), int64(4)).Return(nil)
				d.txRepo.EXPECT().Create(ctx, tx, gomock.Any()).Return(storageErr)
			},
		},
		{
			name: "commit",
			setup: func(d *txTestDeps, ctx context.Context, tx *mockTx) {
				tx.commitErr = storageErr
				d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
				d.accountRepo.EXPECT().GetByIDForUpdate(ctx, tx, "alice@upi").Return(aliceAccount("100"), nil)
				d.accountRepo.EXPECT().UpdateBalance(ctx, tx, "alice@upi", gomock.Any(), int64(4)).Return(nil)
				d.txRepo.EXPECT().Create(ctx, tx, gomock.Any()).Return(nil)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := setupTransactionService(t)
			defer d.ctrl.Finish()

			ctx := context.Background()
			tt.setup(d, ctx, &mockTx{})

			result, err := d.svc.ApplyTransaction(ctx, ports.TransactionRequest{
				AccountID: "alice@upi", Amount: dec("5"), Type: "Deposit",
			})
			assert.Nil(t, result)
			assertAppError(t, err, apperror.CodeStorage)
		})
	}
}

func TestTransactionService_ApplyTransaction_BalanceLimit(t *testing.T) {
	d := setupTransactionService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.accountRepo.EXPECT().GetByIDForUpdate(ctx, tx, "alice@upi").Return(aliceAccount("999999999999999999.99"), nil)
	// No UpdateBalance: the new balance would not fit the column.

	result, err := d.svc.ApplyTransaction(ctx, ports.TransactionRequest{
		AccountID: "alice@upi", Amount: dec("0.01"), Type: "Deposit",
	})
	assert.Nil(t, result)
	assertAppError(t, err, apperror.CodeValidation)
}

func TestTransactionService_ApplyTransaction_CacheRefreshFailureDropsEntry(t *testing.T) {
	d := setupTransactionService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.accountRepo.EXPECT().GetByIDForUpdate(ctx, tx, "alice@upi").Return(aliceAccount("1"), nil)
	d.accountRepo.EXPECT().UpdateBalance(ctx, tx, "alice@upi", decEq("2"), int64(4)).Return(nil)
	d.txRepo.EXPECT().Create(ctx, tx, gomock.Any()).Return(nil)
	gomock.InOrder(
		d.cache.EXPECT().Set(ctx, "alice@upi", decEq("2"), int64(5)).Return(errors.New("redis down")),
		d.cache.EXPECT().Delete(ctx, "alice@upi").Return(errors.New("redis down")),
	)

	result, err := d.svc.ApplyTransaction(ctx, ports.TransactionRequest{
		AccountID: "alice@upi", Amount: dec("1"), Type: "Deposit",
	})
	require.NoError(t, err)
	assert.True(t, result.Balance.Equal(dec("2")))
}

func TestTransactionService_ApplyTransaction_NoCache(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	accountRepo := mocks.NewMockAccountRepository(ctrl)
	txRepo := mocks.NewMockTransactionRepository(ctrl)
	transactor := mocks.NewMockDBTransactor(ctrl)
	svc := NewTransactionService(accountRepo, txRepo, transactor, nil, zerolog.Nop())

	ctx := context.Background()
	tx := &mockTx{}
	transactor.EXPECT().Begin(ctx).Return(tx, nil)
	accountRepo.EXPECT().GetByIDForUpdate(ctx, tx, "alice@upi").Return(aliceAccount("0"), nil)
	accountRepo.EXPECT().UpdateBalance(ctx, tx, "alice@upi", decEq("7"), int64(4)).Return(nil)
	txRepo.EXPECT().Create(ctx, tx, gomock.Any()).Return(nil)

	result, err := svc.ApplyTransaction(ctx, ports.TransactionRequest{
		AccountID: "alice@upi", Amount: dec("7"), Type: "Deposit",
	})
	require.NoError(t, err)
	assert.True(t, result.Balance.Equal(dec("7")))
}

// ==================== Transfer Tests ====================

func TestTransactionService_Transfer_Success(t *testing.T) {
	d := setupTransactionService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}
	bob := &domain.Account{ID: "bob@upi", Balance: dec("80"), Version: 2}
	alice := &domain.Account{ID: "alice@upi", Balance: dec("5"), Version: 9}

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	gomock.InOrder(
		// Locks are taken in ID order regardless of direction.
		d.accountRepo.EXPECT().GetByIDForUpdate(ctx, tx, "alice@upi").Return(alice, nil),
		d.accountRepo.EXPECT().GetByIDForUpdate(ctx, tx, "bob@upi").Return(bob, nil),
	)
	d.accountRepo.EXPECT().UpdateBalance(ctx, tx, "bob@upi", decEq("55"), int64(2)).Return(nil)
	d.accountRepo.EXPECT().UpdateBalance(ctx, tx, "alice@upi", decEq("30"), int64(9)).Return(nil)

	var written []*domain.TransactionRecord
	d.txRepo.EXPECT().Create(ctx, tx, gomock.Any()).Times(2).DoAndReturn(
		func(_ context.Context, _ pgx.Tx, rec *domain.TransactionRecord) error {
			written = append(written, rec)
			return nil
		})
	d.cache.EXPECT().Set(ctx, "bob@upi", decEq("55"), int64(3)).Return(nil)
	d.cache.EXPECT().Set(ctx, "alice@upi", decEq("30"), int64(10)).Return(nil)

	result, err := d.svc.Transfer(ctx, ports.TransferRequest{
		SenderID: "bob@upi", ReceiverID: "alice@upi", Amount: dec("25"), Description: "Dinner",
	})
	require.NoError(t, err)
	assert.True(t, result.Balance.Equal(dec("55")))

	require.Len(t, written, 2)
	assert.Equal(t, "bob@upi", written[0].AccountID)
	assert.Equal(t, domain.TransactionTypeWithdrawal, written[0].Type)
	require.NotNil(t, written[0].CounterpartyID)
	assert.Equal(t, "alice@upi", *written[0].CounterpartyID)
	assert.Equal(t, "alice@upi", written[1].AccountID)
	assert.Equal(t, domain.TransactionTypeDeposit, written[1].Type)
	require.NotNil(t, written[1].CounterpartyID)
	assert.Equal(t, "bob@upi", *written[1].CounterpartyID)
	assert.Equal(t, "Dinner", written[1].Description)
}

func TestTransactionService_Transfer_InsufficientFunds(t *testing.T) {
	d := setupTransactionService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.accountRepo.EXPECT().GetByIDForUpdate(ctx, tx, "alice@upi").Return(aliceAccount("10"), nil)
	d.accountRepo.EXPECT().GetByIDForUpdate(ctx, tx, "bob@upi").Return(&domain.Account{ID: "bob@upi"}, nil)

	result, err := d.svc.Transfer(ctx, ports.TransferRequest{
		SenderID: "alice@upi", ReceiverID: "bob@upi", Amount: dec("20"),
	})
	assert.Nil(t, result)
	assertAppError(t, err, apperror.CodeInsufficientFunds)
}

func TestTransactionService_Transfer_ReceiverNotFound(t *testing.T) {
	d := setupTransactionService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.accountRepo.EXPECT().GetByIDForUpdate(ctx, tx, "alice@upi").Return(aliceAccount("10"), nil)
	d.accountRepo.EXPECT().GetByIDForUpdate(ctx, tx, "zed@upi").Return(nil, nil)

	result, err := d.svc.Transfer(ctx, ports.TransferRequest{
		SenderID: "alice@upi", ReceiverID: "zed@upi", Amount: dec("1"),
	})
	assert.Nil(t, result)
	assertAppError(t, err, apperror.CodeAccountNotFound)
	assert.Contains(t, err.Error(), "zed@upi")
}

func TestTransactionService_Transfer_Validation(t *testing.T) {
	tests := []struct {
		name string
		req  ports.TransferRequest
	}{
		{"missing sender", ports.TransferRequest{ReceiverID: "bob@upi", Amount: dec("1")}},
		{"missing receiver", ports.TransferRequest{SenderID: "alice@upi", Amount: dec("1")}},
		{"same account", ports.TransferRequest{SenderID: "alice@upi", ReceiverID: "alice@upi", Amount: dec("1")}},
		{"zero amount", ports.TransferRequest{SenderID: "alice@upi", ReceiverID: "bob@upi"}},
		{"sub-cent amount", ports.TransferRequest{SenderID: "alice@upi", ReceiverID: "bob@upi", Amount: dec("0.001")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := setupTransactionService(t)
			defer d.ctrl.Finish()

			result, err := d.svc.Transfer(context.Background(), tt.req)
			assert.Nil(t, result)
			assertAppError(t, err, apperror.CodeValidation)
		})
	}
}

func TestTransactionService_Transfer_StorageFailure(t *testing.T) {
	d := setupTransactionService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.accountRepo.EXPECT().GetByIDForUpdate(ctx, tx, "alice@upi").Return(nil, fmt.Errorf("lock timeout"))

	result, err := d.svc.Transfer(ctx, ports.TransferRequest{
		SenderID: "bob@upi", ReceiverID: "alice@upi", Amount: dec("1"),
	})
	assert.Nil(t, result)
	assertAppError(t, err, apperror.CodeStorage)
}
