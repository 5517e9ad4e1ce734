package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Bid rows are append-only; the current price of an auction is the
// highest bid amount, or the start bid amount when no bids exist.
type Bid struct {
	bun.BaseModel `bun:"table:bids"`

	BidID     string    `bun:"bid_id,pk" json:"bid_id"`
	AuctionID string    `bun:"auction_id" json:"auction_id"`
	UserID    string    `bun:"user_id" json:"user_id"`
	Amount    int64     `bun:"amount" json:"amount"`
	CreatedAt time.Time `bun:"created_at" json:"created_at"`
}

type BidRequest struct {
	Amount int64 `json:"amount"`
}

type BidUpdate struct {
	AuctionID string `json:"auction_id"`
	NewPrice  int64  `json:"new_price"`
	BidCount  int    `json:"bid_count"`
}
