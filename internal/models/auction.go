package models

import (
	"time"

	"github.com/uptrace/bun"
)

type AuctionStatus string

const (
	StatusDrafted             AuctionStatus = "DRAFTED"
	StatusPendingOwnerDeposit AuctionStatus = "PENDING_OWNER_DEPOSIT"
	StatusActive              AuctionStatus = "ACTIVE"
	StatusInScheduled         AuctionStatus = "IN_SCHEDULED"
	StatusWaitingForPayment   AuctionStatus = "WAITING_FOR_PAYMENT"
	StatusSold                AuctionStatus = "SOLD"
	StatusExpired             AuctionStatus = "EXPIRED"
	StatusCancelledBeforeExp  AuctionStatus = "CANCELLED_BEFORE_EXP_DATE"
	StatusCancelledAfterExp   AuctionStatus = "CANCELLED_AFTER_EXP_DATE"
)

type AuctionType string

const (
	AuctionOnTime    AuctionType = "ON_TIME"
	AuctionScheduled AuctionType = "SCHEDULED"
)

type DurationUnit string

const (
	DurationDays  DurationUnit = "DAYS"
	DurationHours DurationUnit = "HOURS"
)

type Auction struct {
	bun.BaseModel `bun:"table:auctions"`

	AuctionID       string        `bun:"auction_id,pk" json:"auction_id"`
	OwnerID         string        `bun:"owner_id" json:"owner_id"`
	Status          AuctionStatus `bun:"status" json:"status"`
	Type            AuctionType   `bun:"type" json:"type"`
	DurationUnit    DurationUnit  `bun:"duration_unit" json:"duration_unit"`
	Duration        int           `bun:"duration" json:"duration"`
	StartBidAmount  int64         `bun:"start_bid_amount" json:"start_bid_amount"`
	AcceptedAmount  int64         `bun:"accepted_amount,nullzero" json:"accepted_amount,omitempty"`
	IsBuyNowAllowed bool          `bun:"is_buy_now_allowed" json:"is_buy_now_allowed"`
	Currency        string        `bun:"currency" json:"currency"`
	StartDate       time.Time     `bun:"start_date,nullzero" json:"start_date,omitempty"`
	ExpiryDate      time.Time     `bun:"expiry_date,nullzero" json:"expiry_date,omitempty"`
	EndDate         time.Time     `bun:"end_date,nullzero" json:"end_date,omitempty"`

	// Advisory lease mirrored from Redis for observability. The Redis
	// entry with its TTL is the authority; these fields only record who
	// held the lease last and since when.
	IsLocked       bool      `bun:"is_locked" json:"is_locked"`
	LockedByUserID string    `bun:"locked_by_user_id,nullzero" json:"locked_by_user_id,omitempty"`
	LockedAt       time.Time `bun:"locked_at,nullzero" json:"locked_at,omitempty"`

	CreatedAt time.Time `bun:"created_at" json:"created_at"`
}

// Terminal reports whether the auction can never change status again.
func (a *Auction) Terminal() bool {
	switch a.Status {
	case StatusSold, StatusExpired, StatusCancelledBeforeExp, StatusCancelledAfterExp:
		return true
	}
	return false
}

type AuctionRequest struct {
	Type            AuctionType  `json:"type"`
	DurationUnit    DurationUnit `json:"duration_unit"`
	Duration        int          `json:"duration"`
	StartBidAmount  int64        `json:"start_bid_amount"`
	AcceptedAmount  int64        `json:"accepted_amount,omitempty"`
	IsBuyNowAllowed bool         `json:"is_buy_now_allowed"`
	Currency        string       `json:"currency,omitempty"`
	StartDate       time.Time    `json:"start_date,omitempty"`
	Draft           bool         `json:"draft,omitempty"`
}
