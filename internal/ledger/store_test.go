package ledger_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "github.com/uptrace/bun/driver/sqliteshim"

	"ms-auction/internal/fault"
	"ms-auction/internal/ledger"
	"ms-auction/internal/logger"
	"ms-auction/internal/models"
	"ms-auction/internal/store"
)

func setupTestLedger(t *testing.T) (*ledger.Store, *bun.DB) {
	sqldb, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Failed to connect to in-memory database: %v", err)
	}
	sqldb.SetMaxOpenConns(1)

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())
	if err := store.Migrate(context.Background(), bunDB); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	return ledger.New(bunDB, logger.NewTestLogger()), bunDB
}

func TestAppendChainsBalances(t *testing.T) {
	ledgerStore, bunDB := setupTestLedger(t)
	defer bunDB.Close()
	ctx := context.Background()

	e1, err := ledgerStore.Append(ctx, bunDB, "user1", 500, models.DirectionDeposit, models.ReasonWalletTopUp, "")
	assert.NoError(t, err)
	assert.Equal(t, int64(500), e1.ResultingBalance)

	e2, err := ledgerStore.Append(ctx, bunDB, "user1", 200, models.DirectionWithdrawal, models.ReasonSellerDeposit, "auction1")
	assert.NoError(t, err)
	assert.Equal(t, int64(300), e2.ResultingBalance)

	balance, err := ledgerStore.Balance(ctx, bunDB, "user1")
	assert.NoError(t, err)
	assert.Equal(t, int64(300), balance)
}

func TestAppendRejectsOverdraft(t *testing.T) {
	ledgerStore, bunDB := setupTestLedger(t)
	defer bunDB.Close()
	ctx := context.Background()

	_, err := ledgerStore.Append(ctx, bunDB, "user1", 100, models.DirectionDeposit, models.ReasonWalletTopUp, "")
	assert.NoError(t, err)

	_, err = ledgerStore.Append(ctx, bunDB, "user1", 101, models.DirectionWithdrawal, models.ReasonWalletWithdraw, "")
	assert.ErrorIs(t, err, fault.ErrPreconditionFailed)

	// The failed withdrawal must not leave a trace.
	balance, err := ledgerStore.Balance(ctx, bunDB, "user1")
	assert.NoError(t, err)
	assert.Equal(t, int64(100), balance)
}

func TestAppendRejectsNonPositiveAmounts(t *testing.T) {
	ledgerStore, bunDB := setupTestLedger(t)
	defer bunDB.Close()
	ctx := context.Background()

	_, err := ledgerStore.Append(ctx, bunDB, "user1", 0, models.DirectionDeposit, models.ReasonWalletTopUp, "")
	assert.ErrorIs(t, err, fault.ErrLedgerInconsistency)

	_, err = ledgerStore.Append(ctx, bunDB, "user1", -5, models.DirectionDeposit, models.ReasonWalletTopUp, "")
	assert.ErrorIs(t, err, fault.ErrLedgerInconsistency)
}

func TestAccountsAreIsolated(t *testing.T) {
	ledgerStore, bunDB := setupTestLedger(t)
	defer bunDB.Close()
	ctx := context.Background()

	_, err := ledgerStore.Append(ctx, bunDB, "user1", 500, models.DirectionDeposit, models.ReasonWalletTopUp, "")
	assert.NoError(t, err)
	_, err = ledgerStore.Append(ctx, bunDB, "user2", 50, models.DirectionDeposit, models.ReasonWalletTopUp, "")
	assert.NoError(t, err)

	b1, _ := ledgerStore.Balance(ctx, bunDB, "user1")
	b2, _ := ledgerStore.Balance(ctx, bunDB, "user2")
	b3, _ := ledgerStore.Balance(ctx, bunDB, "nobody")
	assert.Equal(t, int64(500), b1)
	assert.Equal(t, int64(50), b2)
	assert.Equal(t, int64(0), b3)
}

func TestPlatformChain(t *testing.T) {
	ledgerStore, bunDB := setupTestLedger(t)
	defer bunDB.Close()
	ctx := context.Background()

	_, err := ledgerStore.AppendPlatform(ctx, bunDB, 100, models.DirectionDeposit, models.ReasonSellerDeposit, "auction1")
	assert.NoError(t, err)

	_, err = ledgerStore.AppendPlatform(ctx, bunDB, 15, models.DirectionWithdrawal, models.ReasonCompensation, "auction1")
	assert.NoError(t, err)

	balance, err := ledgerStore.PlatformBalance(ctx, bunDB)
	assert.NoError(t, err)
	assert.Equal(t, int64(85), balance)

	// The platform chain going negative is corruption, not overdraft.
	_, err = ledgerStore.AppendPlatform(ctx, bunDB, 86, models.DirectionWithdrawal, models.ReasonCompensation, "auction1")
	assert.ErrorIs(t, err, fault.ErrLedgerInconsistency)
}

func TestVerifyAccountDetectsTampering(t *testing.T) {
	ledgerStore, bunDB := setupTestLedger(t)
	defer bunDB.Close()
	ctx := context.Background()

	_, err := ledgerStore.Append(ctx, bunDB, "user1", 500, models.DirectionDeposit, models.ReasonWalletTopUp, "")
	assert.NoError(t, err)
	_, err = ledgerStore.Append(ctx, bunDB, "user1", 100, models.DirectionWithdrawal, models.ReasonBidderDeposit, "auction1")
	assert.NoError(t, err)

	assert.NoError(t, ledgerStore.VerifyAccount(ctx, "user1"))

	_, err = bunDB.NewUpdate().
		Model((*models.LedgerEntry)(nil)).
		Set("resulting_balance = ?", 999).
		Where("account_id = ?", "user1").
		Where("resulting_balance = ?", 400).
		Exec(ctx)
	assert.NoError(t, err)

	assert.ErrorIs(t, ledgerStore.VerifyAccount(ctx, "user1"), fault.ErrLedgerInconsistency)
}
