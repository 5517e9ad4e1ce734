package models

import (
	"time"

	"github.com/uptrace/bun"
)

type JoinedAuctionStatus string

const (
	JoinedPendingPayment     JoinedAuctionStatus = "PENDING_PAYMENT"
	JoinedWaitingForDelivery JoinedAuctionStatus = "WAITING_FOR_DELIVERY"
	JoinedCompleted          JoinedAuctionStatus = "COMPLETED"
	JoinedLost               JoinedAuctionStatus = "LOST"
	JoinedCancelledBeforeExp JoinedAuctionStatus = "CANCELLED_BEFORE_EXP_DATE"
	JoinedCancelledAfterExp  JoinedAuctionStatus = "CANCELLED_AFTER_EXP_DATE"
	JoinedPaymentExpired     JoinedAuctionStatus = "PAYMENT_EXPIRED"
)

// JoinedAuction is a bidder's standing record for one auction. Rows are
// created and updated by the settlement engine only.
type JoinedAuction struct {
	bun.BaseModel `bun:"table:joined_auctions"`

	JoinedID  string              `bun:"joined_id,pk" json:"joined_id"`
	AuctionID string              `bun:"auction_id" json:"auction_id"`
	UserID    string              `bun:"user_id" json:"user_id"`
	Status    JoinedAuctionStatus `bun:"status" json:"status"`
	CreatedAt time.Time           `bun:"created_at" json:"created_at"`
	UpdatedAt time.Time           `bun:"updated_at,nullzero" json:"updated_at,omitempty"`
}
