package store

import (
	"context"
	"database/sql"

	"github.com/uptrace/bun"

	"ms-auction/internal/models"
)

// ---------------- BIDS ----------------

func (d *DB) InsertBid(ctx context.Context, idb bun.IDB, bid *models.Bid) error {
	_, err := idb.NewInsert().Model(bid).Exec(ctx)
	return err
}

// HighestBid returns the top bid for an auction, or nil when no bids
// exist. Callers that mutate on the result must hold the auction row lock.
func (d *DB) HighestBid(ctx context.Context, idb bun.IDB, auctionID string) (*models.Bid, error) {
	var bid models.Bid
	err := idb.NewSelect().
		Model(&bid).
		Where("auction_id = ?", auctionID).
		Order("amount DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &bid, nil
}

// CurrentPrice is the highest bid amount, falling back to the start bid
// amount when the auction has no bids yet.
func (d *DB) CurrentPrice(ctx context.Context, idb bun.IDB, auction *models.Auction) (int64, error) {
	highest, err := d.HighestBid(ctx, idb, auction.AuctionID)
	if err != nil {
		return 0, err
	}
	if highest == nil {
		return auction.StartBidAmount, nil
	}
	return highest.Amount, nil
}

func (d *DB) CountBids(ctx context.Context, idb bun.IDB, auctionID string) (int, error) {
	return idb.NewSelect().
		Model((*models.Bid)(nil)).
		Where("auction_id = ?", auctionID).
		Count(ctx)
}

func (d *DB) ListBidsByAuction(ctx context.Context, auctionID string) ([]models.Bid, error) {
	var bids []models.Bid
	err := d.Bun.NewSelect().
		Model(&bids).
		Where("auction_id = ?", auctionID).
		Order("created_at ASC").
		Scan(ctx)
	return bids, err
}
