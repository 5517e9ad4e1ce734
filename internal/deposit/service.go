package deposit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"ms-auction/internal/escrow"
	"ms-auction/internal/fault"
	"ms-auction/internal/ledger"
	"ms-auction/internal/logger"
	"ms-auction/internal/models"
	"ms-auction/internal/statemachine"
	"ms-auction/internal/store"
)

// AddressChecker verifies the paying user has a main address.
type AddressChecker interface {
	MainAddress(ctx context.Context, userID string) (*models.Address, error)
}

// Leaser serializes payment-intent creation per auction.
type Leaser interface {
	Acquire(ctx context.Context, auctionID, userID string) (bool, error)
	Release(ctx context.Context, auctionID, userID string) error
}

// Broadcaster announces auctions going live.
type Broadcaster interface {
	PublishNewAuctionListed(auction models.Auction) error
}

// Service coordinates seller and bidder deposits: wallet-funded deposits
// move money immediately through the ledger, gateway-funded deposits
// create a manual-capture hold and settle on the webhook callback.
type Service struct {
	DB        *store.DB
	Ledger    *ledger.Store
	Gateway   escrow.Gateway
	Lease     Leaser
	Addresses AddressChecker
	Notify    Broadcaster
	Log       *logger.Logger
}

func NewService(db *store.DB, ledgerStore *ledger.Store, gateway escrow.Gateway, lease Leaser, addresses AddressChecker, notify Broadcaster, log *logger.Logger) *Service {
	return &Service{
		DB:        db,
		Ledger:    ledgerStore,
		Gateway:   gateway,
		Lease:     lease,
		Addresses: addresses,
		Notify:    notify,
		Log:       log,
	}
}

// PaySellerDeposit is the pay-to-publish flow. On wallet funding the
// auction activates immediately; on gateway funding it activates when the
// hold is confirmed.
func (s *Service) PaySellerDeposit(ctx context.Context, auctionID, userID string, useWallet bool) (*models.Payment, error) {
	if _, err := s.Addresses.MainAddress(ctx, userID); err != nil {
		return nil, err
	}

	if useWallet {
		return s.payWalletDeposit(ctx, auctionID, userID, models.SellerDeposit, 0)
	}
	return s.payGatewayDeposit(ctx, auctionID, userID, models.SellerDeposit, 0)
}

// PayBidderDeposit is the pay-to-bid flow. The intended bid amount must
// beat the current price under the same lock discipline as Submit, so a
// depositor cannot join below the running price.
func (s *Service) PayBidderDeposit(ctx context.Context, auctionID, userID string, bidAmount int64, useWallet bool) (*models.Payment, error) {
	if _, err := s.Addresses.MainAddress(ctx, userID); err != nil {
		return nil, err
	}

	if useWallet {
		return s.payWalletDeposit(ctx, auctionID, userID, models.BidderDeposit, bidAmount)
	}
	return s.payGatewayDeposit(ctx, auctionID, userID, models.BidderDeposit, bidAmount)
}

// validate gates the deposit against the state machine and rechecks the
// price for bidders. Must run with the auction row locked.
func (s *Service) validate(ctx context.Context, tx bun.IDB, auction *models.Auction, userID string, typ models.PaymentType, bidAmount int64) error {
	switch typ {
	case models.SellerDeposit:
		if err := statemachine.ValidateAction(auction, statemachine.ActionSellerDeposit); err != nil {
			return err
		}
		if auction.OwnerID != userID {
			return fmt.Errorf("%w: only the owner pays the seller deposit", fault.ErrForbidden)
		}
	case models.BidderDeposit:
		if err := statemachine.ValidateAction(auction, statemachine.ActionBidderDeposit); err != nil {
			return err
		}
		if auction.OwnerID == userID {
			return fmt.Errorf("%w: sellers cannot join their own auction", fault.ErrForbidden)
		}
		currentPrice, err := s.DB.CurrentPrice(ctx, tx, auction)
		if err != nil {
			return err
		}
		if bidAmount <= currentPrice {
			return fmt.Errorf("%w: current price is %d, got %d", fault.ErrInvalidBid, currentPrice, bidAmount)
		}
	default:
		return fmt.Errorf("%w: %s is not a deposit type", fault.ErrPreconditionFailed, typ)
	}

	existing, err := s.DB.GetDeposit(ctx, tx, auction.AuctionID, userID, typ)
	if err != nil {
		return err
	}
	if existing != nil && (existing.Held() || existing.Status == models.StatusPending) {
		return fmt.Errorf("%w: deposit %s already %s", fault.ErrConflict, existing.PaymentID, existing.Status)
	}
	return nil
}

func (s *Service) payWalletDeposit(ctx context.Context, auctionID, userID string, typ models.PaymentType, bidAmount int64) (*models.Payment, error) {
	var payment *models.Payment

	err := s.DB.RunInTx(ctx, func(ctx context.Context, tx bun.IDB) error {
		auction, err := s.DB.AuctionForUpdate(ctx, tx, auctionID)
		if err != nil {
			return err
		}
		if err := s.validate(ctx, tx, auction, userID, typ, bidAmount); err != nil {
			return err
		}

		amount := auction.StartBidAmount
		reason := models.ReasonSellerDeposit
		if typ == models.BidderDeposit {
			reason = models.ReasonBidderDeposit
		}

		// Wallet funding moves the deposit into platform custody at once.
		if _, err := s.Ledger.Append(ctx, tx, userID, amount, models.DirectionWithdrawal, reason, auctionID); err != nil {
			return err
		}
		if _, err := s.Ledger.AppendPlatform(ctx, tx, amount, models.DirectionDeposit, reason, auctionID); err != nil {
			return err
		}

		payment = &models.Payment{
			PaymentID:       uuid.NewString(),
			UserID:          userID,
			AuctionID:       auctionID,
			Type:            typ,
			Status:          models.StatusHold,
			Amount:          amount,
			Currency:        auction.Currency,
			IsWalletPayment: true,
			CreatedAt:       time.Now(),
		}
		if err := s.DB.CreatePayment(ctx, tx, payment); err != nil {
			return err
		}

		if typ == models.SellerDeposit {
			return s.activate(ctx, tx, auction)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Log.LogAuction("DEPOSIT", auctionID, fmt.Sprintf("wallet %s of %d held for user %s", typ, payment.Amount, userID))
	return payment, nil
}

func (s *Service) payGatewayDeposit(ctx context.Context, auctionID, userID string, typ models.PaymentType, bidAmount int64) (*models.Payment, error) {
	// The lease keeps two payers from opening payment sheets for the same
	// auction at once; the webhook callback releases it.
	ok, err := s.Lease.Acquire(ctx, auctionID, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: auction %s has a payment in progress", fault.ErrConflict, auctionID)
	}

	// Validation and the pending payment share the auction row lock, so a
	// bid landing concurrently cannot slip a depositor in below the
	// running price.
	var payment *models.Payment
	err = s.DB.RunInTx(ctx, func(ctx context.Context, tx bun.IDB) error {
		auction, err := s.DB.AuctionForUpdate(ctx, tx, auctionID)
		if err != nil {
			return err
		}
		if err := s.validate(ctx, tx, auction, userID, typ, bidAmount); err != nil {
			return err
		}

		payment = &models.Payment{
			PaymentID: uuid.NewString(),
			UserID:    userID,
			AuctionID: auctionID,
			Type:      typ,
			Status:    models.StatusPending,
			Amount:    auction.StartBidAmount,
			Currency:  auction.Currency,
			CreatedAt: time.Now(),
		}
		return s.DB.CreatePayment(ctx, tx, payment)
	})
	if err != nil {
		_ = s.Lease.Release(ctx, auctionID, userID)
		return nil, err
	}

	holdRef, err := s.Gateway.CreateHold(ctx, userID, payment.Amount, payment.Currency, escrow.Metadata{
		"auction_id": auctionID,
		"user_id":    userID,
		"payment_id": payment.PaymentID,
	})
	if err != nil {
		_ = s.Lease.Release(ctx, auctionID, userID)
		_ = s.DB.UpdatePaymentStatus(ctx, s.DB.Bun, payment, models.StatusFailed)
		return nil, err
	}

	if err := s.DB.SetPaymentHoldRef(ctx, s.DB.Bun, payment, holdRef); err != nil {
		return nil, err
	}

	if err := s.markLeased(ctx, auctionID, userID); err != nil {
		s.Log.Warn("LEASE", fmt.Sprintf("Failed to mirror lease on auction %s: %v", auctionID, err))
	}

	s.Log.LogAuction("DEPOSIT", auctionID, fmt.Sprintf("gateway %s hold %s created for user %s", typ, holdRef, userID))
	return payment, nil
}

// activate moves a published auction out of PENDING_OWNER_DEPOSIT and
// stamps the bidding window.
func (s *Service) activate(ctx context.Context, tx bun.IDB, auction *models.Auction) error {
	start := time.Now()
	next := models.StatusActive
	if auction.Type == models.AuctionScheduled && auction.StartDate.After(start) {
		next = models.StatusInScheduled
		start = auction.StartDate
	}
	if err := statemachine.ValidateTransition(auction, next); err != nil {
		return err
	}

	unit := 24 * time.Hour
	if auction.DurationUnit == models.DurationHours {
		unit = time.Hour
	}

	auction.Status = next
	auction.StartDate = start
	auction.ExpiryDate = start.Add(time.Duration(auction.Duration) * unit)
	if err := s.DB.UpdateAuction(ctx, tx, auction); err != nil {
		return err
	}

	s.Log.LogAuction("PUBLISH", auction.AuctionID, fmt.Sprintf("now %s, expires %s", next, auction.ExpiryDate))

	if err := s.Notify.PublishNewAuctionListed(*auction); err != nil {
		s.Log.Error("KAFKA", fmt.Sprintf("Failed to publish listing for auction %s: %v", auction.AuctionID, err))
	}
	return nil
}

// CaptureDepositTx finalizes a held deposit into platform custody inside
// the caller's settlement transaction. Idempotent on repeated capture.
func (s *Service) CaptureDepositTx(ctx context.Context, tx bun.IDB, payment *models.Payment, reason models.LedgerReason) error {
	if payment.Status == models.StatusSuccess {
		return nil
	}
	if payment.Status != models.StatusHold {
		return fmt.Errorf("%w: payment %s is %s, cannot capture", fault.ErrPreconditionFailed, payment.PaymentID, payment.Status)
	}

	if !payment.IsWalletPayment {
		if _, err := s.Gateway.Capture(ctx, payment.HoldRef); err != nil {
			return err
		}
		// Captured gateway funds enter the platform chain now; wallet
		// deposits entered it when the deposit was paid.
		if _, err := s.Ledger.AppendPlatform(ctx, tx, payment.Amount, models.DirectionDeposit, reason, payment.AuctionID); err != nil {
			return err
		}
	}

	return s.DB.UpdatePaymentStatus(ctx, tx, payment, models.StatusSuccess)
}

// ReleaseDepositTx returns a held deposit to the payer inside the
// caller's settlement transaction. Idempotent on repeated release.
func (s *Service) ReleaseDepositTx(ctx context.Context, tx bun.IDB, payment *models.Payment) error {
	if payment.Status == models.StatusCancelled {
		return nil
	}
	if !payment.Held() {
		return fmt.Errorf("%w: payment %s is %s, cannot release", fault.ErrPreconditionFailed, payment.PaymentID, payment.Status)
	}

	if payment.IsWalletPayment || payment.Status == models.StatusSuccess {
		// Funds sit in the platform chain; move them back to the wallet.
		if _, err := s.Ledger.AppendPlatform(ctx, tx, payment.Amount, models.DirectionWithdrawal, models.ReasonDepositRefund, payment.AuctionID); err != nil {
			return err
		}
		if _, err := s.Ledger.Append(ctx, tx, payment.UserID, payment.Amount, models.DirectionDeposit, models.ReasonDepositRefund, payment.AuctionID); err != nil {
			return err
		}
	} else {
		if err := s.Gateway.Cancel(ctx, payment.HoldRef); err != nil {
			return err
		}
	}

	return s.DB.UpdatePaymentStatus(ctx, tx, payment, models.StatusCancelled)
}

// CaptureDeposit and CancelDeposit are the standalone entry points used
// by operators and reconciliation; settlements use the Tx variants.
func (s *Service) CaptureDeposit(ctx context.Context, paymentID string) error {
	return s.DB.RunInTx(ctx, func(ctx context.Context, tx bun.IDB) error {
		payment, err := s.DB.GetPaymentByID(ctx, tx, paymentID)
		if err != nil {
			return err
		}
		return s.CaptureDepositTx(ctx, tx, payment, models.ReasonForfeitedDeposit)
	})
}

func (s *Service) CancelDeposit(ctx context.Context, paymentID string) error {
	return s.DB.RunInTx(ctx, func(ctx context.Context, tx bun.IDB) error {
		payment, err := s.DB.GetPaymentByID(ctx, tx, paymentID)
		if err != nil {
			return err
		}
		return s.ReleaseDepositTx(ctx, tx, payment)
	})
}

// HandleEscrowEvent applies a gateway callback. The lease is cleared on
// both success and failure so a settled intent never wedges the auction
// for other payers.
func (s *Service) HandleEscrowEvent(ctx context.Context, event escrow.Event) error {
	return s.DB.RunInTx(ctx, func(ctx context.Context, tx bun.IDB) error {
		payment, err := s.findPayment(ctx, tx, event)
		if err != nil {
			return err
		}

		switch event.Kind {
		case escrow.EventHoldCreated:
			if payment.Status != models.StatusPending {
				return nil
			}
			if err := s.DB.UpdatePaymentStatus(ctx, tx, payment, models.StatusHold); err != nil {
				return err
			}
			if payment.Type == models.SellerDeposit {
				auction, err := s.DB.AuctionForUpdate(ctx, tx, payment.AuctionID)
				if err != nil {
					return err
				}
				if err := s.activate(ctx, tx, auction); err != nil {
					return err
				}
			}
			return s.clearLease(ctx, tx, payment)

		case escrow.EventCaptured:
			if payment.Status == models.StatusSuccess {
				return nil
			}
			return s.DB.UpdatePaymentStatus(ctx, tx, payment, models.StatusSuccess)

		case escrow.EventCancelled:
			if payment.Status == models.StatusCancelled {
				return nil
			}
			return s.DB.UpdatePaymentStatus(ctx, tx, payment, models.StatusCancelled)

		case escrow.EventFailed:
			if err := s.DB.UpdatePaymentStatus(ctx, tx, payment, models.StatusFailed); err != nil {
				return err
			}
			return s.clearLease(ctx, tx, payment)
		}
		return nil
	})
}

func (s *Service) findPayment(ctx context.Context, tx bun.IDB, event escrow.Event) (*models.Payment, error) {
	if event.PaymentID != "" {
		if payment, err := s.DB.GetPaymentByID(ctx, tx, event.PaymentID); err == nil {
			return payment, nil
		} else if !errors.Is(err, fault.ErrNotFound) {
			return nil, err
		}
	}
	return s.DB.GetPaymentByHoldRef(ctx, tx, event.HoldRef)
}

// markLeased and clearLease mirror the Redis lease onto the auction row.
// Only the lock columns are written: a webhook may move the auction
// forward between our read and this write, and that change must survive.
func (s *Service) markLeased(ctx context.Context, auctionID, userID string) error {
	return s.DB.SetAuctionLock(ctx, s.DB.Bun, auctionID, true, userID, time.Now())
}

func (s *Service) clearLease(ctx context.Context, tx bun.IDB, payment *models.Payment) error {
	if err := s.Lease.Release(ctx, payment.AuctionID, payment.UserID); err != nil {
		s.Log.Warn("LEASE", fmt.Sprintf("Failed to release lease for auction %s: %v", payment.AuctionID, err))
	}
	return s.DB.SetAuctionLock(ctx, tx, payment.AuctionID, false, "", time.Time{})
}
