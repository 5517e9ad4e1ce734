package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"ms-auction/internal/models"
)

// ---------------- JOINED AUCTIONS ----------------

func (d *DB) GetJoined(ctx context.Context, idb bun.IDB, auctionID, userID string) (*models.JoinedAuction, error) {
	var j models.JoinedAuction
	err := idb.NewSelect().
		Model(&j).
		Where("auction_id = ?", auctionID).
		Where("user_id = ?", userID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &j, nil
}

// UpsertJoined records a bidder's standing, creating the row on first use.
func (d *DB) UpsertJoined(ctx context.Context, idb bun.IDB, auctionID, userID string, status models.JoinedAuctionStatus) error {
	existing, err := d.GetJoined(ctx, idb, auctionID, userID)
	if err != nil {
		return err
	}
	if existing != nil {
		existing.Status = status
		existing.UpdatedAt = time.Now()
		_, err = idb.NewUpdate().
			Model(existing).
			Column("status", "updated_at").
			Where("joined_id = ?", existing.JoinedID).
			Exec(ctx)
		return err
	}
	j := &models.JoinedAuction{
		JoinedID:  uuid.NewString(),
		AuctionID: auctionID,
		UserID:    userID,
		Status:    status,
		CreatedAt: time.Now(),
	}
	_, err = idb.NewInsert().Model(j).Exec(ctx)
	return err
}

func (d *DB) ListJoinedByAuction(ctx context.Context, idb bun.IDB, auctionID string) ([]models.JoinedAuction, error) {
	var joined []models.JoinedAuction
	err := idb.NewSelect().
		Model(&joined).
		Where("auction_id = ?", auctionID).
		Scan(ctx)
	return joined, err
}
