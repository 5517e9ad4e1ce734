package statemachine_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"ms-auction/internal/fault"
	"ms-auction/internal/models"
	"ms-auction/internal/statemachine"
)

func auctionIn(status models.AuctionStatus) *models.Auction {
	return &models.Auction{AuctionID: "a1", Status: status}
}

func TestActionsPerStatus(t *testing.T) {
	cases := []struct {
		status  models.AuctionStatus
		allowed []statemachine.Action
	}{
		{models.StatusDrafted, []statemachine.Action{statemachine.ActionAuctionUpdate, statemachine.ActionAuctionDelete}},
		{models.StatusPendingOwnerDeposit, []statemachine.Action{statemachine.ActionSellerDeposit}},
		{models.StatusInScheduled, []statemachine.Action{statemachine.ActionAuctionCancel}},
		{models.StatusActive, []statemachine.Action{
			statemachine.ActionBidderDeposit,
			statemachine.ActionSubmitBid,
			statemachine.ActionBuyNow,
			statemachine.ActionAuctionCancel,
		}},
		{models.StatusWaitingForPayment, []statemachine.Action{statemachine.ActionBidderPurchase, statemachine.ActionAuctionCancel}},
	}

	all := []statemachine.Action{
		statemachine.ActionAuctionUpdate,
		statemachine.ActionAuctionDelete,
		statemachine.ActionAuctionCancel,
		statemachine.ActionSellerDeposit,
		statemachine.ActionBidderDeposit,
		statemachine.ActionSubmitBid,
		statemachine.ActionBuyNow,
		statemachine.ActionBidderPurchase,
	}

	for _, tc := range cases {
		allowed := make(map[statemachine.Action]bool)
		for _, a := range tc.allowed {
			allowed[a] = true
		}
		for _, action := range all {
			err := statemachine.ValidateAction(auctionIn(tc.status), action)
			if allowed[action] {
				assert.NoError(t, err, "%s should permit %s", tc.status, action)
			} else {
				assert.ErrorIs(t, err, fault.ErrIllegalStateTransition, "%s should reject %s", tc.status, action)
			}
		}
	}
}

func TestTerminalStatusesPermitNothing(t *testing.T) {
	terminals := []models.AuctionStatus{
		models.StatusSold,
		models.StatusExpired,
		models.StatusCancelledBeforeExp,
		models.StatusCancelledAfterExp,
	}

	for _, status := range terminals {
		err := statemachine.ValidateAction(auctionIn(status), statemachine.ActionSubmitBid)
		assert.ErrorIs(t, err, fault.ErrIllegalStateTransition)

		err = statemachine.ValidateTransition(auctionIn(status), models.StatusActive)
		assert.ErrorIs(t, err, fault.ErrIllegalStateTransition)

		assert.Empty(t, statemachine.Actions(status))
		assert.Empty(t, statemachine.Transitions(status))
	}
}

func TestTransitions(t *testing.T) {
	assert.NoError(t, statemachine.ValidateTransition(auctionIn(models.StatusDrafted), models.StatusPendingOwnerDeposit))
	assert.NoError(t, statemachine.ValidateTransition(auctionIn(models.StatusPendingOwnerDeposit), models.StatusActive))
	assert.NoError(t, statemachine.ValidateTransition(auctionIn(models.StatusPendingOwnerDeposit), models.StatusInScheduled))
	assert.NoError(t, statemachine.ValidateTransition(auctionIn(models.StatusInScheduled), models.StatusActive))
	assert.NoError(t, statemachine.ValidateTransition(auctionIn(models.StatusActive), models.StatusWaitingForPayment))
	assert.NoError(t, statemachine.ValidateTransition(auctionIn(models.StatusActive), models.StatusSold))
	assert.NoError(t, statemachine.ValidateTransition(auctionIn(models.StatusActive), models.StatusExpired))
	assert.NoError(t, statemachine.ValidateTransition(auctionIn(models.StatusActive), models.StatusCancelledBeforeExp))
	assert.NoError(t, statemachine.ValidateTransition(auctionIn(models.StatusWaitingForPayment), models.StatusSold))
	assert.NoError(t, statemachine.ValidateTransition(auctionIn(models.StatusWaitingForPayment), models.StatusCancelledAfterExp))

	// A couple of paths that must stay closed.
	assert.Error(t, statemachine.ValidateTransition(auctionIn(models.StatusDrafted), models.StatusActive))
	assert.Error(t, statemachine.ValidateTransition(auctionIn(models.StatusActive), models.StatusCancelledAfterExp))
	assert.Error(t, statemachine.ValidateTransition(auctionIn(models.StatusWaitingForPayment), models.StatusCancelledBeforeExp))
	assert.Error(t, statemachine.ValidateTransition(auctionIn(models.StatusExpired), models.StatusActive))
}

func TestErrorsUnwrapToSentinel(t *testing.T) {
	err := statemachine.ValidateAction(auctionIn(models.StatusSold), statemachine.ActionBuyNow)
	assert.True(t, errors.Is(err, fault.ErrIllegalStateTransition))
	assert.Contains(t, err.Error(), "SOLD")
}
