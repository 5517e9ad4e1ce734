package auction

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"ms-auction/internal/config"
	"ms-auction/internal/fault"
	"ms-auction/internal/logger"
	"ms-auction/internal/models"
	"ms-auction/internal/statemachine"
	"ms-auction/internal/store"
)

// Service owns the auction catalogue side: create, read, update, delete.
// Nothing here moves money; the state machine decides which of these are
// allowed at any point.
type Service struct {
	DB  *store.DB
	Cfg config.AuctionConfig
	Log *logger.Logger
}

func NewService(db *store.DB, cfg config.AuctionConfig, log *logger.Logger) *Service {
	return &Service{DB: db, Cfg: cfg, Log: log}
}

// Create registers a new auction for the seller. A draft stays editable;
// otherwise the auction immediately awaits the seller deposit.
func (s *Service) Create(ctx context.Context, ownerID string, req models.AuctionRequest) (*models.Auction, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	status := models.StatusPendingOwnerDeposit
	if req.Draft {
		status = models.StatusDrafted
	}

	currency := req.Currency
	if currency == "" {
		currency = s.Cfg.DefaultCurrency
	}

	auction := &models.Auction{
		AuctionID:       uuid.NewString(),
		OwnerID:         ownerID,
		Status:          status,
		Type:            req.Type,
		DurationUnit:    req.DurationUnit,
		Duration:        req.Duration,
		StartBidAmount:  req.StartBidAmount,
		AcceptedAmount:  req.AcceptedAmount,
		IsBuyNowAllowed: req.IsBuyNowAllowed,
		Currency:        currency,
		StartDate:       req.StartDate,
		CreatedAt:       time.Now(),
	}

	if err := s.DB.CreateAuction(ctx, auction); err != nil {
		return nil, fmt.Errorf("failed to create auction: %w", err)
	}

	s.Log.LogAuction("CREATE", auction.AuctionID, fmt.Sprintf("owner %s, status %s", ownerID, status))
	return auction, nil
}

// Get returns a single auction.
func (s *Service) Get(ctx context.Context, auctionID string) (*models.Auction, error) {
	return s.DB.GetAuctionByID(ctx, s.DB.Bun, auctionID)
}

// Update replaces the mutable fields of a drafted auction.
func (s *Service) Update(ctx context.Context, auctionID, callerID string, req models.AuctionRequest) (*models.Auction, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	var updated *models.Auction
	err := s.DB.RunInTx(ctx, func(ctx context.Context, tx bun.IDB) error {
		auction, err := s.DB.AuctionForUpdate(ctx, tx, auctionID)
		if err != nil {
			return err
		}
		if err := statemachine.ValidateAction(auction, statemachine.ActionAuctionUpdate); err != nil {
			return err
		}
		if auction.OwnerID != callerID {
			return fmt.Errorf("%w: only the seller can update the auction", fault.ErrForbidden)
		}

		auction.Type = req.Type
		auction.DurationUnit = req.DurationUnit
		auction.Duration = req.Duration
		auction.StartBidAmount = req.StartBidAmount
		auction.AcceptedAmount = req.AcceptedAmount
		auction.IsBuyNowAllowed = req.IsBuyNowAllowed
		if req.Currency != "" {
			auction.Currency = req.Currency
		}
		auction.StartDate = req.StartDate
		if !req.Draft {
			if err := statemachine.ValidateTransition(auction, models.StatusPendingOwnerDeposit); err != nil {
				return err
			}
			auction.Status = models.StatusPendingOwnerDeposit
		}

		if err := s.DB.UpdateAuction(ctx, tx, auction); err != nil {
			return err
		}
		updated = auction
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Log.LogAuction("UPDATE", auctionID, fmt.Sprintf("owner %s updated draft", callerID))
	return updated, nil
}

// Publish moves a draft to PENDING_OWNER_DEPOSIT without other changes.
func (s *Service) Publish(ctx context.Context, auctionID, callerID string) (*models.Auction, error) {
	var published *models.Auction
	err := s.DB.RunInTx(ctx, func(ctx context.Context, tx bun.IDB) error {
		auction, err := s.DB.AuctionForUpdate(ctx, tx, auctionID)
		if err != nil {
			return err
		}
		if auction.OwnerID != callerID {
			return fmt.Errorf("%w: only the seller can publish the auction", fault.ErrForbidden)
		}
		if err := statemachine.ValidateTransition(auction, models.StatusPendingOwnerDeposit); err != nil {
			return err
		}
		auction.Status = models.StatusPendingOwnerDeposit
		if err := s.DB.UpdateAuction(ctx, tx, auction); err != nil {
			return err
		}
		published = auction
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Log.LogAuction("PUBLISH", auctionID, "draft awaiting seller deposit")
	return published, nil
}

// Delete removes a drafted auction permanently.
func (s *Service) Delete(ctx context.Context, auctionID, callerID string) error {
	err := s.DB.RunInTx(ctx, func(ctx context.Context, tx bun.IDB) error {
		auction, err := s.DB.AuctionForUpdate(ctx, tx, auctionID)
		if err != nil {
			return err
		}
		if err := statemachine.ValidateAction(auction, statemachine.ActionAuctionDelete); err != nil {
			return err
		}
		if auction.OwnerID != callerID {
			return fmt.Errorf("%w: only the seller can delete the auction", fault.ErrForbidden)
		}
		return s.DB.DeleteAuction(ctx, auctionID)
	})
	if err != nil {
		return err
	}

	s.Log.LogAuction("DELETE", auctionID, fmt.Sprintf("deleted by owner %s", callerID))
	return nil
}

// DepositAmount is the amount both the seller and joining bidders must
// put in escrow: the auction's starting bid.
func (s *Service) DepositAmount(ctx context.Context, auctionID string) (int64, error) {
	auction, err := s.DB.GetAuctionByID(ctx, s.DB.Bun, auctionID)
	if err != nil {
		return 0, err
	}
	return auction.StartBidAmount, nil
}

func validateRequest(req models.AuctionRequest) error {
	if req.StartBidAmount <= 0 {
		return fmt.Errorf("%w: start bid amount must be positive", fault.ErrPreconditionFailed)
	}
	if req.Duration <= 0 {
		return fmt.Errorf("%w: duration must be positive", fault.ErrPreconditionFailed)
	}
	switch req.DurationUnit {
	case models.DurationDays, models.DurationHours:
	default:
		return fmt.Errorf("%w: unknown duration unit %q", fault.ErrPreconditionFailed, req.DurationUnit)
	}
	switch req.Type {
	case models.AuctionOnTime:
	case models.AuctionScheduled:
		if req.StartDate.IsZero() {
			return fmt.Errorf("%w: scheduled auctions need a start date", fault.ErrPreconditionFailed)
		}
	default:
		return fmt.Errorf("%w: unknown auction type %q", fault.ErrPreconditionFailed, req.Type)
	}
	if req.IsBuyNowAllowed && req.AcceptedAmount <= 0 {
		return fmt.Errorf("%w: buy-now requires an accepted amount", fault.ErrPreconditionFailed)
	}
	return nil
}
