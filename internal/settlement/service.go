package settlement

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"ms-auction/internal/config"
	"ms-auction/internal/deposit"
	"ms-auction/internal/escrow"
	"ms-auction/internal/fault"
	"ms-auction/internal/ledger"
	"ms-auction/internal/logger"
	"ms-auction/internal/models"
	"ms-auction/internal/statemachine"
	"ms-auction/internal/store"
)

// Broadcaster announces settlement outcomes to auction subscribers.
type Broadcaster interface {
	PublishAuctionCancelled(auctionID string) error
	PublishNewAuctionListed(auction models.Auction) error
}

// Service executes the money-moving operations: cancellation
// compensation, purchase, delivery confirmation and the time sweeps.
// Each operation is one transaction: ledger writes, deposit
// capture/release, status transitions and joined-auction updates commit
// together or not at all.
type Service struct {
	DB       *store.DB
	Ledger   *ledger.Store
	Gateway  escrow.Gateway
	Deposits *deposit.Service
	Notify   Broadcaster
	Cfg      config.AuctionConfig
	Log      *logger.Logger
}

func NewService(db *store.DB, ledgerStore *ledger.Store, gateway escrow.Gateway, deposits *deposit.Service, notify Broadcaster, cfg config.AuctionConfig, log *logger.Logger) *Service {
	return &Service{
		DB:       db,
		Ledger:   ledgerStore,
		Gateway:  gateway,
		Deposits: deposits,
		Notify:   notify,
		Cfg:      cfg,
		Log:      log,
	}
}

// CancelAuction is the seller-initiated cancellation. With no bidders the
// seller deposit is simply released; with bidders it is forfeited and
// split between the highest bidder and the platform.
func (s *Service) CancelAuction(ctx context.Context, auctionID, callerID string) error {
	err := s.DB.RunInTx(ctx, func(ctx context.Context, tx bun.IDB) error {
		auction, err := s.DB.AuctionForUpdate(ctx, tx, auctionID)
		if err != nil {
			return err
		}
		if err := statemachine.ValidateAction(auction, statemachine.ActionAuctionCancel); err != nil {
			return err
		}
		if auction.OwnerID != callerID {
			return fmt.Errorf("%w: only the seller can cancel the auction", fault.ErrForbidden)
		}

		afterExpiry := auction.Status == models.StatusWaitingForPayment
		next := models.StatusCancelledBeforeExp
		pct := s.Cfg.CompensationBeforeExpiryPct
		joinedStatus := models.JoinedCancelledBeforeExp
		if afterExpiry {
			next = models.StatusCancelledAfterExp
			pct = s.Cfg.CompensationAfterExpiryPct
			joinedStatus = models.JoinedCancelledAfterExp
		}
		if err := statemachine.ValidateTransition(auction, next); err != nil {
			return err
		}

		sellerDeposits, err := s.DB.ListHeldDeposits(ctx, tx, auctionID, models.SellerDeposit)
		if err != nil {
			return err
		}
		bidderDeposits, err := s.DB.ListHeldDeposits(ctx, tx, auctionID, models.BidderDeposit)
		if err != nil {
			return err
		}

		if len(bidderDeposits) == 0 {
			// Nobody joined: the seller just gets the deposit back.
			for i := range sellerDeposits {
				if err := s.Deposits.ReleaseDepositTx(ctx, tx, &sellerDeposits[i]); err != nil {
					return err
				}
			}
		} else {
			winnerID, err := s.winnerOf(ctx, tx, auction, bidderDeposits)
			if err != nil {
				return err
			}

			// The seller walks away from joined bidders: the deposit is
			// forfeited into platform custody.
			var forfeited int64
			for i := range sellerDeposits {
				if err := s.Deposits.CaptureDepositTx(ctx, tx, &sellerDeposits[i], models.ReasonForfeitedDeposit); err != nil {
					return err
				}
				forfeited += sellerDeposits[i].Amount
			}

			compensation := forfeited * pct / 100
			if compensation > 0 {
				if _, err := s.Ledger.AppendPlatform(ctx, tx, compensation, models.DirectionWithdrawal, models.ReasonCompensation, auctionID); err != nil {
					return err
				}
				if _, err := s.Ledger.Append(ctx, tx, winnerID, compensation, models.DirectionDeposit, models.ReasonCompensation, auctionID); err != nil {
					return err
				}
			}

			// Every bidder deposit goes back in full, the highest
			// bidder's included: cancellation voids all obligations.
			for i := range bidderDeposits {
				if err := s.Deposits.ReleaseDepositTx(ctx, tx, &bidderDeposits[i]); err != nil {
					return err
				}
				if err := s.DB.UpsertJoined(ctx, tx, auctionID, bidderDeposits[i].UserID, joinedStatus); err != nil {
					return err
				}
			}

			s.Log.LogSettlement("CANCEL", auctionID,
				fmt.Sprintf("seller deposit %d forfeited, %d%% (%d) compensates highest bidder %s", forfeited, pct, compensation, winnerID))
		}

		auction.Status = next
		auction.EndDate = time.Now()
		return s.DB.UpdateAuction(ctx, tx, auction)
	})
	if err != nil {
		return err
	}

	s.Log.LogSettlement("CANCEL", auctionID, "auction cancelled")
	if err := s.Notify.PublishAuctionCancelled(auctionID); err != nil {
		s.Log.Error("KAFKA", fmt.Sprintf("Failed to publish cancellation of auction %s: %v", auctionID, err))
	}
	return nil
}

// CompletePurchase is the winning bidder paying the full winning amount
// during the payment window. The money lands in platform custody until
// delivery is confirmed.
func (s *Service) CompletePurchase(ctx context.Context, auctionID, userID string, useWallet bool) error {
	return s.DB.RunInTx(ctx, func(ctx context.Context, tx bun.IDB) error {
		auction, err := s.DB.AuctionForUpdate(ctx, tx, auctionID)
		if err != nil {
			return err
		}
		if err := statemachine.ValidateAction(auction, statemachine.ActionBidderPurchase); err != nil {
			return err
		}

		joined, err := s.DB.GetJoined(ctx, tx, auctionID, userID)
		if err != nil {
			return err
		}
		if joined == nil || joined.Status != models.JoinedPendingPayment {
			return fmt.Errorf("%w: user %s is not the pending-payment winner of auction %s", fault.ErrForbidden, userID, auctionID)
		}

		highest, err := s.DB.HighestBid(ctx, tx, auctionID)
		if err != nil {
			return err
		}
		if highest == nil {
			return fmt.Errorf("%w: auction %s has a winner but no bids", fault.ErrLedgerInconsistency, auctionID)
		}

		if err := s.collectPurchase(ctx, tx, auction, userID, highest.Amount, models.AuctionPurchase, useWallet); err != nil {
			return err
		}

		// Paying in full discharges the deposit obligation.
		winnerDeposits, err := s.DB.ListHeldDeposits(ctx, tx, auctionID, models.BidderDeposit)
		if err != nil {
			return err
		}
		for i := range winnerDeposits {
			if winnerDeposits[i].UserID != userID {
				continue
			}
			if err := s.Deposits.ReleaseDepositTx(ctx, tx, &winnerDeposits[i]); err != nil {
				return err
			}
		}

		if err := s.DB.UpsertJoined(ctx, tx, auctionID, userID, models.JoinedWaitingForDelivery); err != nil {
			return err
		}

		if err := statemachine.ValidateTransition(auction, models.StatusSold); err != nil {
			return err
		}
		auction.Status = models.StatusSold
		auction.EndDate = time.Now()
		if err := s.DB.UpdateAuction(ctx, tx, auction); err != nil {
			return err
		}

		s.Log.LogSettlement("PURCHASE", auctionID, fmt.Sprintf("winner %s paid %d", userID, highest.Amount))
		return nil
	})
}

// BuyNow sells the auction immediately at the accepted amount, releasing
// every joined bidder's deposit.
func (s *Service) BuyNow(ctx context.Context, auctionID, userID string, useWallet bool) error {
	return s.DB.RunInTx(ctx, func(ctx context.Context, tx bun.IDB) error {
		auction, err := s.DB.AuctionForUpdate(ctx, tx, auctionID)
		if err != nil {
			return err
		}
		if err := statemachine.ValidateAction(auction, statemachine.ActionBuyNow); err != nil {
			return err
		}
		if auction.OwnerID == userID {
			return fmt.Errorf("%w: sellers cannot buy their own auction", fault.ErrForbidden)
		}
		if !auction.IsBuyNowAllowed || auction.AcceptedAmount <= 0 {
			return fmt.Errorf("%w: auction %s does not allow buy-now", fault.ErrPreconditionFailed, auctionID)
		}

		if err := s.collectPurchase(ctx, tx, auction, userID, auction.AcceptedAmount, models.BuyNowPurchase, useWallet); err != nil {
			return err
		}

		// Buy-now voids every other bidder's standing.
		bidderDeposits, err := s.DB.ListHeldDeposits(ctx, tx, auctionID, models.BidderDeposit)
		if err != nil {
			return err
		}
		for i := range bidderDeposits {
			if bidderDeposits[i].UserID == userID {
				if err := s.Deposits.ReleaseDepositTx(ctx, tx, &bidderDeposits[i]); err != nil {
					return err
				}
				continue
			}
			if err := s.Deposits.ReleaseDepositTx(ctx, tx, &bidderDeposits[i]); err != nil {
				return err
			}
			if err := s.DB.UpsertJoined(ctx, tx, auctionID, bidderDeposits[i].UserID, models.JoinedLost); err != nil {
				return err
			}
		}

		if err := s.DB.UpsertJoined(ctx, tx, auctionID, userID, models.JoinedWaitingForDelivery); err != nil {
			return err
		}

		if err := statemachine.ValidateTransition(auction, models.StatusSold); err != nil {
			return err
		}
		auction.Status = models.StatusSold
		auction.EndDate = time.Now()
		if err := s.DB.UpdateAuction(ctx, tx, auction); err != nil {
			return err
		}

		s.Log.LogSettlement("BUY_NOW", auctionID, fmt.Sprintf("user %s bought at %d", userID, auction.AcceptedAmount))
		return nil
	})
}

// collectPurchase moves the purchase amount into platform custody.
func (s *Service) collectPurchase(ctx context.Context, tx bun.IDB, auction *models.Auction, userID string, amount int64, typ models.PaymentType, useWallet bool) error {
	payment := &models.Payment{
		PaymentID:       uuid.NewString(),
		UserID:          userID,
		AuctionID:       auction.AuctionID,
		Type:            typ,
		Status:          models.StatusSuccess,
		Amount:          amount,
		Currency:        auction.Currency,
		IsWalletPayment: useWallet,
		CreatedAt:       time.Now(),
	}

	if useWallet {
		if _, err := s.Ledger.Append(ctx, tx, userID, amount, models.DirectionWithdrawal, models.ReasonPurchase, auction.AuctionID); err != nil {
			return err
		}
	} else {
		holdRef, err := s.Gateway.CreateHold(ctx, userID, amount, auction.Currency, escrow.Metadata{
			"auction_id": auction.AuctionID,
			"user_id":    userID,
			"payment_id": payment.PaymentID,
		})
		if err != nil {
			return err
		}
		if _, err := s.Gateway.Capture(ctx, holdRef); err != nil {
			return err
		}
		payment.HoldRef = holdRef
	}

	if _, err := s.Ledger.AppendPlatform(ctx, tx, amount, models.DirectionDeposit, models.ReasonPurchase, auction.AuctionID); err != nil {
		return err
	}
	return s.DB.CreatePayment(ctx, tx, payment)
}

// ConfirmDelivery is triggered by the winning bidder once the item
// arrives: the seller deposit is released and the purchase amount minus
// the platform fee moves to the seller's wallet.
func (s *Service) ConfirmDelivery(ctx context.Context, auctionID, callerID string) error {
	return s.DB.RunInTx(ctx, func(ctx context.Context, tx bun.IDB) error {
		auction, err := s.DB.AuctionForUpdate(ctx, tx, auctionID)
		if err != nil {
			return err
		}

		joined, err := s.DB.GetJoined(ctx, tx, auctionID, callerID)
		if err != nil {
			return err
		}
		if joined == nil {
			return fmt.Errorf("%w: user %s did not win auction %s", fault.ErrForbidden, callerID, auctionID)
		}
		if joined.Status != models.JoinedWaitingForDelivery {
			return fmt.Errorf("%w: cannot confirm delivery while standing is %s",
				fault.ErrIllegalStateTransition, joined.Status)
		}

		purchase, err := s.DB.GetPurchase(ctx, tx, auctionID)
		if err != nil {
			return err
		}
		if purchase == nil {
			return fmt.Errorf("%w: auction %s has no settled purchase", fault.ErrLedgerInconsistency, auctionID)
		}

		sellerDeposits, err := s.DB.ListHeldDeposits(ctx, tx, auctionID, models.SellerDeposit)
		if err != nil {
			return err
		}
		for i := range sellerDeposits {
			if err := s.Deposits.ReleaseDepositTx(ctx, tx, &sellerDeposits[i]); err != nil {
				return err
			}
		}

		fee := purchase.Amount * s.Cfg.PlatformFeePct / 100
		payout := purchase.Amount - fee
		if _, err := s.Ledger.AppendPlatform(ctx, tx, payout, models.DirectionWithdrawal, models.ReasonSellerPayout, auctionID); err != nil {
			return err
		}
		if _, err := s.Ledger.Append(ctx, tx, auction.OwnerID, payout, models.DirectionDeposit, models.ReasonSellerPayout, auctionID); err != nil {
			return err
		}

		if err := s.DB.UpsertJoined(ctx, tx, auctionID, callerID, models.JoinedCompleted); err != nil {
			return err
		}

		s.Log.LogSettlement("DELIVERY", auctionID,
			fmt.Sprintf("seller %s paid %d (fee %d retained)", auction.OwnerID, payout, fee))
		return nil
	})
}

// MarkExpired is the time-sweep entry point. It moves past-expiry ACTIVE
// auctions to EXPIRED or WAITING_FOR_PAYMENT and activates scheduled
// auctions whose start date arrived. Re-running is a no-op for auctions
// already swept.
func (s *Service) MarkExpired(ctx context.Context) (int, error) {
	now := time.Now()
	swept := 0

	expired, err := s.DB.ListExpiredActive(ctx, now)
	if err != nil {
		return 0, err
	}
	for _, candidate := range expired {
		if err := s.expireOne(ctx, candidate.AuctionID, now); err != nil {
			s.Log.Error("SWEEP", fmt.Sprintf("Failed to expire auction %s: %v", candidate.AuctionID, err))
			continue
		}
		swept++
	}

	scheduled, err := s.DB.ListScheduledToStart(ctx, now)
	if err != nil {
		return swept, err
	}
	for _, candidate := range scheduled {
		if err := s.startOne(ctx, candidate.AuctionID); err != nil {
			s.Log.Error("SWEEP", fmt.Sprintf("Failed to start auction %s: %v", candidate.AuctionID, err))
			continue
		}
		swept++
	}

	return swept, nil
}

func (s *Service) expireOne(ctx context.Context, auctionID string, now time.Time) error {
	return s.DB.RunInTx(ctx, func(ctx context.Context, tx bun.IDB) error {
		auction, err := s.DB.AuctionForUpdate(ctx, tx, auctionID)
		if err != nil {
			return err
		}
		// Re-check under the lock: another sweep may have won the race.
		if auction.Status != models.StatusActive || auction.ExpiryDate.After(now) {
			return nil
		}

		bidderDeposits, err := s.DB.ListHeldDeposits(ctx, tx, auctionID, models.BidderDeposit)
		if err != nil {
			return err
		}

		if len(bidderDeposits) == 0 {
			if err := statemachine.ValidateTransition(auction, models.StatusExpired); err != nil {
				return err
			}
			auction.Status = models.StatusExpired
			auction.EndDate = now
			return s.DB.UpdateAuction(ctx, tx, auction)
		}

		winnerID, err := s.winnerOf(ctx, tx, auction, bidderDeposits)
		if err != nil {
			return err
		}
		if err := s.DB.UpsertJoined(ctx, tx, auctionID, winnerID, models.JoinedPendingPayment); err != nil {
			return err
		}
		for i := range bidderDeposits {
			if bidderDeposits[i].UserID == winnerID {
				continue
			}
			if err := s.Deposits.ReleaseDepositTx(ctx, tx, &bidderDeposits[i]); err != nil {
				return err
			}
			if err := s.DB.UpsertJoined(ctx, tx, auctionID, bidderDeposits[i].UserID, models.JoinedLost); err != nil {
				return err
			}
		}

		if err := statemachine.ValidateTransition(auction, models.StatusWaitingForPayment); err != nil {
			return err
		}
		auction.Status = models.StatusWaitingForPayment
		if err := s.DB.UpdateAuction(ctx, tx, auction); err != nil {
			return err
		}

		s.Log.LogSettlement("EXPIRE", auctionID, fmt.Sprintf("winner %s pending payment", winnerID))
		return nil
	})
}

func (s *Service) startOne(ctx context.Context, auctionID string) error {
	var started *models.Auction
	err := s.DB.RunInTx(ctx, func(ctx context.Context, tx bun.IDB) error {
		auction, err := s.DB.AuctionForUpdate(ctx, tx, auctionID)
		if err != nil {
			return err
		}
		if auction.Status != models.StatusInScheduled {
			return nil
		}
		if err := statemachine.ValidateTransition(auction, models.StatusActive); err != nil {
			return err
		}
		auction.Status = models.StatusActive
		if err := s.DB.UpdateAuction(ctx, tx, auction); err != nil {
			return err
		}
		started = auction
		return nil
	})
	if err != nil || started == nil {
		return err
	}

	s.Log.LogAuction("START", auctionID, "scheduled auction is now live")
	if err := s.Notify.PublishNewAuctionListed(*started); err != nil {
		s.Log.Error("KAFKA", fmt.Sprintf("Failed to publish listing for auction %s: %v", auctionID, err))
	}
	return nil
}

// MarkPaymentExpired forfeits winners who never paid within the payment
// window: their deposit is captured to the platform and their standing
// becomes PAYMENT_EXPIRED.
func (s *Service) MarkPaymentExpired(ctx context.Context) (int, error) {
	now := time.Now()
	overdue, err := s.DB.ListPaymentOverdue(ctx, now, s.Cfg.PaymentWindow)
	if err != nil {
		return 0, err
	}

	swept := 0
	for _, candidate := range overdue {
		err := s.DB.RunInTx(ctx, func(ctx context.Context, tx bun.IDB) error {
			auction, err := s.DB.AuctionForUpdate(ctx, tx, candidate.AuctionID)
			if err != nil {
				return err
			}
			if auction.Status != models.StatusWaitingForPayment {
				return nil
			}

			bidderDeposits, err := s.DB.ListHeldDeposits(ctx, tx, auction.AuctionID, models.BidderDeposit)
			if err != nil {
				return err
			}
			winnerID, err := s.winnerOf(ctx, tx, auction, bidderDeposits)
			if err != nil {
				return err
			}
			for i := range bidderDeposits {
				if bidderDeposits[i].UserID != winnerID {
					continue
				}
				if err := s.Deposits.CaptureDepositTx(ctx, tx, &bidderDeposits[i], models.ReasonForfeitedDeposit); err != nil {
					return err
				}
			}
			if err := s.DB.UpsertJoined(ctx, tx, auction.AuctionID, winnerID, models.JoinedPaymentExpired); err != nil {
				return err
			}

			if err := statemachine.ValidateTransition(auction, models.StatusExpired); err != nil {
				return err
			}
			auction.Status = models.StatusExpired
			auction.EndDate = now
			return s.DB.UpdateAuction(ctx, tx, auction)
		})
		if err != nil {
			s.Log.Error("SWEEP", fmt.Sprintf("Failed to expire payment for auction %s: %v", candidate.AuctionID, err))
			continue
		}
		swept++
	}
	return swept, nil
}

// winnerOf resolves the highest bidder holding a deposit; with no bids
// the earliest depositor stands in.
func (s *Service) winnerOf(ctx context.Context, tx bun.IDB, auction *models.Auction, bidderDeposits []models.Payment) (string, error) {
	highest, err := s.DB.HighestBid(ctx, tx, auction.AuctionID)
	if err != nil {
		return "", err
	}
	if highest != nil {
		return highest.UserID, nil
	}
	if len(bidderDeposits) == 0 {
		return "", fmt.Errorf("%w: auction %s has no candidate winner", fault.ErrPreconditionFailed, auction.AuctionID)
	}
	return bidderDeposits[0].UserID, nil
}

// AccountBalance is the read query behind the wallet endpoint.
func (s *Service) AccountBalance(ctx context.Context, accountID string) (int64, error) {
	return s.Ledger.Balance(ctx, s.DB.Bun, accountID)
}

// PlatformBalance returns the platform custody balance.
func (s *Service) PlatformBalance(ctx context.Context) (int64, error) {
	return s.Ledger.PlatformBalance(ctx, s.DB.Bun)
}
