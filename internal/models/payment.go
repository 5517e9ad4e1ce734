package models

import (
	"time"

	"github.com/uptrace/bun"
)

type PaymentType string

const (
	SellerDeposit   PaymentType = "SELLER_DEPOSIT"
	BidderDeposit   PaymentType = "BIDDER_DEPOSIT"
	AuctionPurchase PaymentType = "AUCTION_PURCHASE"
	BuyNowPurchase  PaymentType = "BUY_NOW_PURCHASE"
)

type PaymentStatus string

const (
	StatusPending   PaymentStatus = "PENDING"
	StatusHold      PaymentStatus = "HOLD"
	StatusSuccess   PaymentStatus = "SUCCESS"
	StatusCancelled PaymentStatus = "CANCELLED"
	StatusFailed    PaymentStatus = "FAILED"
)

// Payment is the escrow record for a deposit or purchase. HoldRef is the
// opaque gateway reference; it is empty for wallet-funded payments.
type Payment struct {
	bun.BaseModel `bun:"table:payments"`

	PaymentID       string        `bun:"payment_id,pk" json:"payment_id"`
	UserID          string        `bun:"user_id" json:"user_id"`
	AuctionID       string        `bun:"auction_id" json:"auction_id"`
	Type            PaymentType   `bun:"type" json:"type"`
	Status          PaymentStatus `bun:"status" json:"status"`
	Amount          int64         `bun:"amount" json:"amount"`
	Currency        string        `bun:"currency" json:"currency"`
	IsWalletPayment bool          `bun:"is_wallet_payment" json:"is_wallet_payment"`
	HoldRef         string        `bun:"hold_ref,nullzero" json:"hold_ref,omitempty"`
	CreatedAt       time.Time     `bun:"created_at" json:"created_at"`
	UpdatedAt       time.Time     `bun:"updated_at,nullzero" json:"updated_at,omitempty"`
}

// Held reports whether the payment still reserves funds that a settlement
// must either capture or release.
func (p *Payment) Held() bool {
	return p.Status == StatusHold || p.Status == StatusSuccess
}

type DepositRequest struct {
	Amount    int64 `json:"amount,omitempty"`
	UseWallet bool  `json:"use_wallet"`
}

type PurchaseRequest struct {
	UseWallet bool `json:"use_wallet"`
}
