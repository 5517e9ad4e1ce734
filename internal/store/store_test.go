package store_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "github.com/uptrace/bun/driver/sqliteshim"

	"ms-auction/internal/fault"
	"ms-auction/internal/models"
	"ms-auction/internal/store"
)

func setupTestDB(t *testing.T) *store.DB {
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
	return &store.DB{Bun: bunDB}
}

func seedAuction(t *testing.T, db *store.DB, status models.AuctionStatus) *models.Auction {
	auction := &models.Auction{
		AuctionID:      uuid.NewString(),
		OwnerID:        "seller",
		Status:         status,
		Type:           models.AuctionOnTime,
		DurationUnit:   models.DurationDays,
		Duration:       3,
		StartBidAmount: 100,
		Currency:       "usd",
		CreatedAt:      time.Now(),
	}
	if err := db.CreateAuction(context.Background(), auction); err != nil {
		t.Fatalf("Failed to seed auction: %v", err)
	}
	return auction
}

func TestGetAuctionByID(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	auction := seedAuction(t, db, models.StatusDrafted)

	found, err := db.GetAuctionByID(ctx, db.Bun, auction.AuctionID)
	assert.NoError(t, err)
	assert.Equal(t, auction.AuctionID, found.AuctionID)
	assert.Equal(t, models.StatusDrafted, found.Status)

	_, err = db.GetAuctionByID(ctx, db.Bun, "missing")
	assert.ErrorIs(t, err, fault.ErrNotFound)
}

func TestCurrentPriceFallsBackToStartBid(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	auction := seedAuction(t, db, models.StatusActive)

	price, err := db.CurrentPrice(ctx, db.Bun, auction)
	assert.NoError(t, err)
	assert.Equal(t, int64(100), price)

	bid := &models.Bid{
		BidID:     uuid.NewString(),
		AuctionID: auction.AuctionID,
		UserID:    "alice",
		Amount:    140,
		CreatedAt: time.Now(),
	}
	assert.NoError(t, db.InsertBid(ctx, db.Bun, bid))

	price, err = db.CurrentPrice(ctx, db.Bun, auction)
	assert.NoError(t, err)
	assert.Equal(t, int64(140), price)

	highest, err := db.HighestBid(ctx, db.Bun, auction.AuctionID)
	assert.NoError(t, err)
	assert.Equal(t, "alice", highest.UserID)
}

func TestListExpiredActive(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	past := seedAuction(t, db, models.StatusActive)
	past.ExpiryDate = time.Now().Add(-time.Hour)
	assert.NoError(t, db.UpdateAuction(ctx, db.Bun, past))

	future := seedAuction(t, db, models.StatusActive)
	future.ExpiryDate = time.Now().Add(time.Hour)
	assert.NoError(t, db.UpdateAuction(ctx, db.Bun, future))

	expired, err := db.ListExpiredActive(ctx, time.Now())
	assert.NoError(t, err)
	assert.Len(t, expired, 1)
	assert.Equal(t, past.AuctionID, expired[0].AuctionID)
}

func TestListPaymentOverdue(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	window := 48 * time.Hour

	overdue := seedAuction(t, db, models.StatusWaitingForPayment)
	overdue.ExpiryDate = time.Now().Add(-72 * time.Hour)
	assert.NoError(t, db.UpdateAuction(ctx, db.Bun, overdue))

	inWindow := seedAuction(t, db, models.StatusWaitingForPayment)
	inWindow.ExpiryDate = time.Now().Add(-time.Hour)
	assert.NoError(t, db.UpdateAuction(ctx, db.Bun, inWindow))

	found, err := db.ListPaymentOverdue(ctx, time.Now(), window)
	assert.NoError(t, err)
	assert.Len(t, found, 1)
	assert.Equal(t, overdue.AuctionID, found[0].AuctionID)
}

func TestHeldDepositsExcludeSettledOnes(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	auction := seedAuction(t, db, models.StatusActive)

	for _, tc := range []struct {
		user   string
		status models.PaymentStatus
	}{
		{"alice", models.StatusHold},
		{"bob", models.StatusSuccess},
		{"carol", models.StatusCancelled},
		{"dave", models.StatusFailed},
	} {
		payment := &models.Payment{
			PaymentID: uuid.NewString(),
			UserID:    tc.user,
			AuctionID: auction.AuctionID,
			Type:      models.BidderDeposit,
			Status:    tc.status,
			Amount:    100,
			Currency:  "usd",
			CreatedAt: time.Now(),
		}
		assert.NoError(t, db.CreatePayment(ctx, db.Bun, payment))
	}

	held, err := db.ListHeldDeposits(ctx, db.Bun, auction.AuctionID, models.BidderDeposit)
	assert.NoError(t, err)
	assert.Len(t, held, 2)
}

func TestUpsertJoined(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	auction := seedAuction(t, db, models.StatusWaitingForPayment)

	assert.NoError(t, db.UpsertJoined(ctx, db.Bun, auction.AuctionID, "alice", models.JoinedPendingPayment))
	assert.NoError(t, db.UpsertJoined(ctx, db.Bun, auction.AuctionID, "alice", models.JoinedWaitingForDelivery))

	joined, err := db.GetJoined(ctx, db.Bun, auction.AuctionID, "alice")
	assert.NoError(t, err)
	assert.Equal(t, models.JoinedWaitingForDelivery, joined.Status)

	all, err := db.ListJoinedByAuction(ctx, db.Bun, auction.AuctionID)
	assert.NoError(t, err)
	assert.Len(t, all, 1)

	missing, err := db.GetJoined(ctx, db.Bun, auction.AuctionID, "nobody")
	assert.NoError(t, err)
	assert.Nil(t, missing)
}
