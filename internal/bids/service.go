package bids

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"ms-auction/internal/fault"
	"ms-auction/internal/logger"
	"ms-auction/internal/models"
	"ms-auction/internal/statemachine"
	"ms-auction/internal/store"
)

// Broadcaster pushes price updates to auction subscribers after a bid
// commits.
type Broadcaster interface {
	PublishBidUpdate(auctionID string, newPrice int64, bidCount int) error
}

// Service admits or rejects bids. The read-compare-insert sequence runs
// inside one transaction holding the auction row lock, so two bidders
// racing with the same stale price cannot both commit.
type Service struct {
	DB     *store.DB
	Notify Broadcaster
	Log    *logger.Logger
}

func NewService(db *store.DB, notify Broadcaster, log *logger.Logger) *Service {
	return &Service{DB: db, Notify: notify, Log: log}
}

// Submit validates and records a bid. Amounts must strictly exceed the
// current price; ties lose.
func (s *Service) Submit(ctx context.Context, auctionID, userID string, amount int64) (*models.Bid, error) {
	var bid *models.Bid
	var bidCount int

	err := s.DB.RunInTx(ctx, func(ctx context.Context, tx bun.IDB) error {
		auction, err := s.DB.AuctionForUpdate(ctx, tx, auctionID)
		if err != nil {
			return err
		}
		if err := statemachine.ValidateAction(auction, statemachine.ActionSubmitBid); err != nil {
			return err
		}
		if auction.OwnerID == userID {
			return fmt.Errorf("%w: sellers cannot bid on their own auction", fault.ErrForbidden)
		}

		currentPrice, err := s.DB.CurrentPrice(ctx, tx, auction)
		if err != nil {
			return err
		}
		if amount <= currentPrice {
			return fmt.Errorf("%w: current price is %d, got %d", fault.ErrInvalidBid, currentPrice, amount)
		}

		bid = &models.Bid{
			BidID:     uuid.NewString(),
			AuctionID: auctionID,
			UserID:    userID,
			Amount:    amount,
			CreatedAt: time.Now(),
		}
		if err := s.DB.InsertBid(ctx, tx, bid); err != nil {
			return fmt.Errorf("failed to record bid: %w", err)
		}

		bidCount, err = s.DB.CountBids(ctx, tx, auctionID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.Log.LogAuction("BID", auctionID, fmt.Sprintf("user %s bid %d (%d bids total)", userID, amount, bidCount))

	if err := s.Notify.PublishBidUpdate(auctionID, bid.Amount, bidCount); err != nil {
		s.Log.Error("KAFKA", fmt.Sprintf("Failed to publish bid update for auction %s: %v", auctionID, err))
	}

	return bid, nil
}

// CurrentPrice is the read-only query shared with the deposit path.
func (s *Service) CurrentPrice(ctx context.Context, auctionID string) (int64, error) {
	auction, err := s.DB.GetAuctionByID(ctx, s.DB.Bun, auctionID)
	if err != nil {
		return 0, err
	}
	return s.DB.CurrentPrice(ctx, s.DB.Bun, auction)
}

// History returns the bids of an auction in acceptance order.
func (s *Service) History(ctx context.Context, auctionID string) ([]models.Bid, error) {
	return s.DB.ListBidsByAuction(ctx, auctionID)
}
