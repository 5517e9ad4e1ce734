package wallet_test

import (
	"context"
	"database/sql"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "github.com/uptrace/bun/driver/sqliteshim"

	"ms-auction/internal/escrow"
	"ms-auction/internal/fault"
	"ms-auction/internal/ledger"
	"ms-auction/internal/logger"
	"ms-auction/internal/models"
	"ms-auction/internal/store"
	"ms-auction/internal/wallet"
)

type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) CreateHold(ctx context.Context, customerRef string, amount int64, currency string, md escrow.Metadata) (string, error) {
	args := m.Called(ctx, customerRef, amount, currency, md)
	return args.String(0), args.Error(1)
}

func (m *mockGateway) Capture(ctx context.Context, holdRef string) (int64, error) {
	args := m.Called(ctx, holdRef)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockGateway) Cancel(ctx context.Context, holdRef string) error {
	args := m.Called(ctx, holdRef)
	return args.Error(0)
}

func setupWallet(t *testing.T) (*wallet.Service, *mockGateway) {
	sqldb, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Failed to connect to in-memory database: %v", err)
	}
	sqldb.SetMaxOpenConns(1)

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())
	if err := store.Migrate(context.Background(), bunDB); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}
	t.Cleanup(func() { bunDB.Close() })

	log := logger.NewTestLogger()
	db := &store.DB{Bun: bunDB}
	gateway := &mockGateway{}
	return wallet.NewService(db, ledger.New(bunDB, log), gateway, "usd", log), gateway
}

func TestTopUpChargesAndCredits(t *testing.T) {
	svc, gateway := setupWallet(t)
	ctx := context.Background()

	gateway.On("CreateHold", mock.Anything, "alice", int64(500), "usd", mock.Anything).
		Return("pi_topup", nil).Once()
	gateway.On("Capture", mock.Anything, "pi_topup").Return(int64(500), nil).Once()

	entry, err := svc.TopUp(ctx, "alice", 500)
	assert.NoError(t, err)
	assert.Equal(t, int64(500), entry.ResultingBalance)
	assert.Equal(t, models.ReasonWalletTopUp, entry.Reason)

	balance, err := svc.Balance(ctx, "alice")
	assert.NoError(t, err)
	assert.Equal(t, int64(500), balance)
	gateway.AssertExpectations(t)
}

func TestTopUpFailsWhenGatewayFails(t *testing.T) {
	svc, gateway := setupWallet(t)
	ctx := context.Background()

	gateway.On("CreateHold", mock.Anything, "alice", int64(500), "usd", mock.Anything).
		Return("", assert.AnError).Once()

	_, err := svc.TopUp(ctx, "alice", 500)
	assert.Error(t, err)

	balance, _ := svc.Balance(ctx, "alice")
	assert.Equal(t, int64(0), balance)
}

func TestTopUpRollsBackCreditWhenCaptureFails(t *testing.T) {
	svc, gateway := setupWallet(t)
	ctx := context.Background()

	gateway.On("CreateHold", mock.Anything, "alice", int64(500), "usd", mock.Anything).
		Return("pi_topup", nil).Once()
	gateway.On("Capture", mock.Anything, "pi_topup").
		Return(int64(0), assert.AnError).Once()

	_, err := svc.TopUp(ctx, "alice", 500)
	assert.Error(t, err)

	// The append happened inside the transaction that the failed capture
	// rolled back, so no credit survives.
	balance, _ := svc.Balance(ctx, "alice")
	assert.Equal(t, int64(0), balance)
	assert.NoError(t, svc.Verify(ctx, "alice"))
}

func TestConcurrentTopUpsKeepChainConsistent(t *testing.T) {
	svc, gateway := setupWallet(t)
	ctx := context.Background()

	gateway.On("CreateHold", mock.Anything, "alice", int64(10), "usd", mock.Anything).
		Return("pi_topup", nil)
	gateway.On("Capture", mock.Anything, "pi_topup").Return(int64(10), nil)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.TopUp(ctx, "alice", 10)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	// Every append read the previous entry under the same transaction, so
	// the chain replays cleanly and no credit was lost to a stale read.
	balance, err := svc.Balance(ctx, "alice")
	assert.NoError(t, err)
	assert.Equal(t, int64(200), balance)
	assert.NoError(t, svc.Verify(ctx, "alice"))
}

func TestWithdrawDebitsAndGuards(t *testing.T) {
	svc, gateway := setupWallet(t)
	ctx := context.Background()

	gateway.On("CreateHold", mock.Anything, "alice", int64(300), "usd", mock.Anything).
		Return("pi_topup", nil).Once()
	gateway.On("Capture", mock.Anything, "pi_topup").Return(int64(300), nil).Once()
	_, err := svc.TopUp(ctx, "alice", 300)
	assert.NoError(t, err)

	entry, err := svc.Withdraw(ctx, "alice", 120)
	assert.NoError(t, err)
	assert.Equal(t, int64(180), entry.ResultingBalance)

	_, err = svc.Withdraw(ctx, "alice", 181)
	assert.ErrorIs(t, err, fault.ErrPreconditionFailed)

	_, err = svc.Withdraw(ctx, "alice", 0)
	assert.ErrorIs(t, err, fault.ErrPreconditionFailed)

	assert.NoError(t, svc.Verify(ctx, "alice"))
}
