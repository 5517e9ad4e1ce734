package auction_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "github.com/uptrace/bun/driver/sqliteshim"

	"ms-auction/internal/auction"
	"ms-auction/internal/config"
	"ms-auction/internal/fault"
	"ms-auction/internal/logger"
	"ms-auction/internal/models"
	"ms-auction/internal/store"
)

func setupService(t *testing.T) (*auction.Service, *store.DB) {
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

	cfg := config.AuctionConfig{DefaultCurrency: "usd"}
	db := &store.DB{Bun: bunDB}
	return auction.NewService(db, cfg, logger.NewTestLogger()), db
}

func validRequest() models.AuctionRequest {
	return models.AuctionRequest{
		Type:           models.AuctionOnTime,
		DurationUnit:   models.DurationDays,
		Duration:       3,
		StartBidAmount: 100,
	}
}

func TestCreateDefaultsToPendingDeposit(t *testing.T) {
	svc, _ := setupService(t)

	created, err := svc.Create(context.Background(), "seller", validRequest())
	assert.NoError(t, err)
	assert.Equal(t, models.StatusPendingOwnerDeposit, created.Status)
	assert.Equal(t, "usd", created.Currency)
	assert.NotEmpty(t, created.AuctionID)
}

func TestCreateDraftStaysEditable(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	req := validRequest()
	req.Draft = true
	created, err := svc.Create(ctx, "seller", req)
	assert.NoError(t, err)
	assert.Equal(t, models.StatusDrafted, created.Status)

	req.StartBidAmount = 250
	updated, err := svc.Update(ctx, created.AuctionID, "seller", req)
	assert.NoError(t, err)
	assert.Equal(t, int64(250), updated.StartBidAmount)
	assert.Equal(t, models.StatusDrafted, updated.Status)

	assert.NoError(t, svc.Delete(ctx, created.AuctionID, "seller"))
	_, err = svc.Get(ctx, created.AuctionID)
	assert.ErrorIs(t, err, fault.ErrNotFound)
}

func TestUpdateRejectedOncePublished(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, "seller", validRequest())
	assert.NoError(t, err)

	_, err = svc.Update(ctx, created.AuctionID, "seller", validRequest())
	assert.ErrorIs(t, err, fault.ErrIllegalStateTransition)

	err = svc.Delete(ctx, created.AuctionID, "seller")
	assert.ErrorIs(t, err, fault.ErrIllegalStateTransition)
}

func TestUpdateAndDeleteRequireOwner(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	req := validRequest()
	req.Draft = true
	created, err := svc.Create(ctx, "seller", req)
	assert.NoError(t, err)

	_, err = svc.Update(ctx, created.AuctionID, "mallory", req)
	assert.ErrorIs(t, err, fault.ErrForbidden)
	err = svc.Delete(ctx, created.AuctionID, "mallory")
	assert.ErrorIs(t, err, fault.ErrForbidden)
}

func TestPublishMovesDraftForward(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	req := validRequest()
	req.Draft = true
	created, err := svc.Create(ctx, "seller", req)
	assert.NoError(t, err)

	published, err := svc.Publish(ctx, created.AuctionID, "seller")
	assert.NoError(t, err)
	assert.Equal(t, models.StatusPendingOwnerDeposit, published.Status)

	// Publishing twice has no legal transition.
	_, err = svc.Publish(ctx, created.AuctionID, "seller")
	assert.ErrorIs(t, err, fault.ErrIllegalStateTransition)
}

func TestCreateValidation(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	req := validRequest()
	req.StartBidAmount = 0
	_, err := svc.Create(ctx, "seller", req)
	assert.ErrorIs(t, err, fault.ErrPreconditionFailed)

	req = validRequest()
	req.Duration = 0
	_, err = svc.Create(ctx, "seller", req)
	assert.ErrorIs(t, err, fault.ErrPreconditionFailed)

	req = validRequest()
	req.Type = models.AuctionScheduled
	_, err = svc.Create(ctx, "seller", req)
	assert.ErrorIs(t, err, fault.ErrPreconditionFailed)

	req.StartDate = time.Now().Add(24 * time.Hour)
	_, err = svc.Create(ctx, "seller", req)
	assert.NoError(t, err)

	req = validRequest()
	req.IsBuyNowAllowed = true
	_, err = svc.Create(ctx, "seller", req)
	assert.ErrorIs(t, err, fault.ErrPreconditionFailed)

	req.AcceptedAmount = 500
	_, err = svc.Create(ctx, "seller", req)
	assert.NoError(t, err)
}

func TestDepositAmountIsStartBid(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, "seller", validRequest())
	assert.NoError(t, err)

	amount, err := svc.DepositAmount(ctx, created.AuctionID)
	assert.NoError(t, err)
	assert.Equal(t, int64(100), amount)
}
