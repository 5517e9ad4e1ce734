package models

import (
	"time"

	"github.com/uptrace/bun"
)

type LedgerDirection string

const (
	DirectionDeposit    LedgerDirection = "DEPOSIT"
	DirectionWithdrawal LedgerDirection = "WITHDRAWAL"
)

type LedgerReason string

const (
	ReasonWalletTopUp      LedgerReason = "WALLET_TOP_UP"
	ReasonWalletWithdraw   LedgerReason = "WALLET_WITHDRAW"
	ReasonSellerDeposit    LedgerReason = "SELLER_DEPOSIT"
	ReasonBidderDeposit    LedgerReason = "BIDDER_DEPOSIT"
	ReasonDepositRefund    LedgerReason = "DEPOSIT_REFUND"
	ReasonForfeitedDeposit LedgerReason = "FORFEITED_DEPOSIT"
	ReasonCompensation     LedgerReason = "CANCELLATION_COMPENSATION"
	ReasonPurchase         LedgerReason = "AUCTION_PURCHASE"
	ReasonSellerPayout     LedgerReason = "SELLER_PAYOUT"
)

// LedgerEntry is one immutable balance change on a user wallet. Entries
// are never updated or deleted; the wallet balance is the resulting
// balance of the most recent entry.
type LedgerEntry struct {
	bun.BaseModel `bun:"table:ledger_entries"`

	ID               int64           `bun:"id,pk,autoincrement" json:"id"`
	AccountID        string          `bun:"account_id" json:"account_id"`
	Amount           int64           `bun:"amount" json:"amount"`
	Direction        LedgerDirection `bun:"direction" json:"direction"`
	Reason           LedgerReason    `bun:"reason" json:"reason"`
	AuctionID        string          `bun:"auction_id,nullzero" json:"auction_id,omitempty"`
	ResultingBalance int64           `bun:"resulting_balance" json:"resulting_balance"`
	CreatedAt        time.Time       `bun:"created_at" json:"created_at"`
}

// PlatformLedgerEntry is the platform-side counterpart of LedgerEntry,
// kept in its own chain so platform money never mixes with user wallets.
type PlatformLedgerEntry struct {
	bun.BaseModel `bun:"table:platform_ledger_entries"`

	ID               int64           `bun:"id,pk,autoincrement" json:"id"`
	Amount           int64           `bun:"amount" json:"amount"`
	Direction        LedgerDirection `bun:"direction" json:"direction"`
	Reason           LedgerReason    `bun:"reason" json:"reason"`
	AuctionID        string          `bun:"auction_id,nullzero" json:"auction_id,omitempty"`
	ResultingBalance int64           `bun:"resulting_balance" json:"resulting_balance"`
	CreatedAt        time.Time       `bun:"created_at" json:"created_at"`
}
