package statemachine

import (
	"fmt"

	"ms-auction/internal/fault"
	"ms-auction/internal/models"
)

type Action string

const (
	ActionAuctionUpdate  Action = "AUCTION_UPDATE"
	ActionAuctionDelete  Action = "AUCTION_DELETE"
	ActionAuctionCancel  Action = "AUCTION_CANCEL"
	ActionSellerDeposit  Action = "SELLER_DEPOSIT"
	ActionBidderDeposit  Action = "BIDDER_DEPOSIT"
	ActionSubmitBid      Action = "SUBMIT_BID"
	ActionBuyNow         Action = "BUY_NOW"
	ActionBidderPurchase Action = "BIDDER_PURCHASE"
)

// allowedTransitions gates every status change. A status missing from the
// map is terminal.
var allowedTransitions = map[models.AuctionStatus][]models.AuctionStatus{
	models.StatusDrafted:             {models.StatusPendingOwnerDeposit},
	models.StatusPendingOwnerDeposit: {models.StatusActive, models.StatusInScheduled},
	models.StatusInScheduled:         {models.StatusActive, models.StatusCancelledBeforeExp},
	models.StatusActive: {
		models.StatusExpired,
		models.StatusWaitingForPayment,
		models.StatusSold,
		models.StatusCancelledBeforeExp,
	},
	models.StatusWaitingForPayment: {
		models.StatusSold,
		models.StatusExpired,
		models.StatusCancelledAfterExp,
	},
}

// allowedActions gates every mutating operation before it touches money
// or state.
var allowedActions = map[models.AuctionStatus][]Action{
	models.StatusDrafted:             {ActionAuctionUpdate, ActionAuctionDelete},
	models.StatusPendingOwnerDeposit: {ActionSellerDeposit},
	models.StatusInScheduled:         {ActionAuctionCancel},
	models.StatusActive: {
		ActionBidderDeposit,
		ActionSubmitBid,
		ActionBuyNow,
		ActionAuctionCancel,
	},
	models.StatusWaitingForPayment: {ActionBidderPurchase, ActionAuctionCancel},
}

// ValidateAction fails with ErrIllegalStateTransition unless the action is
// listed for the auction's current status.
func ValidateAction(auction *models.Auction, action Action) error {
	actions, ok := allowedActions[auction.Status]
	if !ok {
		return fmt.Errorf("%w: auction %s is %s, no actions permitted",
			fault.ErrIllegalStateTransition, auction.AuctionID, auction.Status)
	}
	for _, a := range actions {
		if a == action {
			return nil
		}
	}
	return fmt.Errorf("%w: %s not permitted while auction %s is %s",
		fault.ErrIllegalStateTransition, action, auction.AuctionID, auction.Status)
}

// ValidateTransition fails with ErrIllegalStateTransition unless the
// auction may move to the requested status.
func ValidateTransition(auction *models.Auction, next models.AuctionStatus) error {
	nexts, ok := allowedTransitions[auction.Status]
	if !ok {
		return fmt.Errorf("%w: auction %s is terminal (%s)",
			fault.ErrIllegalStateTransition, auction.AuctionID, auction.Status)
	}
	for _, s := range nexts {
		if s == next {
			return nil
		}
	}
	return fmt.Errorf("%w: auction %s cannot move %s -> %s",
		fault.ErrIllegalStateTransition, auction.AuctionID, auction.Status, next)
}

// Actions returns the actions permitted for a status. Used by tests and
// the API to expose what a caller may do next.
func Actions(status models.AuctionStatus) []Action {
	return allowedActions[status]
}

// Transitions returns the statuses reachable from a status.
func Transitions(status models.AuctionStatus) []models.AuctionStatus {
	return allowedTransitions[status]
}
