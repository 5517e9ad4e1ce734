package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"ms-auction/internal/fault"
	"ms-auction/internal/models"
)

// ---------------- PAYMENTS (escrow records) ----------------

func (d *DB) CreatePayment(ctx context.Context, idb bun.IDB, p *models.Payment) error {
	_, err := idb.NewInsert().Model(p).Exec(ctx)
	return err
}

func (d *DB) GetPaymentByID(ctx context.Context, idb bun.IDB, id string) (*models.Payment, error) {
	var p models.Payment
	err := idb.NewSelect().
		Model(&p).
		Where("payment_id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%w: payment %s", fault.ErrNotFound, id)
		}
		return nil, err
	}
	return &p, nil
}

func (d *DB) GetPaymentByHoldRef(ctx context.Context, idb bun.IDB, holdRef string) (*models.Payment, error) {
	var p models.Payment
	err := idb.NewSelect().
		Model(&p).
		Where("hold_ref = ?", holdRef).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%w: payment for hold %s", fault.ErrNotFound, holdRef)
		}
		return nil, err
	}
	return &p, nil
}

// GetDeposit returns a user's deposit of the given type for an auction,
// or nil when none exists.
func (d *DB) GetDeposit(ctx context.Context, idb bun.IDB, auctionID, userID string, typ models.PaymentType) (*models.Payment, error) {
	var p models.Payment
	err := idb.NewSelect().
		Model(&p).
		Where("auction_id = ?", auctionID).
		Where("user_id = ?", userID).
		Where("type = ?", typ).
		Order("created_at DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

// ListHeldDeposits returns the deposits of the given type still holding
// funds for an auction.
func (d *DB) ListHeldDeposits(ctx context.Context, idb bun.IDB, auctionID string, typ models.PaymentType) ([]models.Payment, error) {
	var payments []models.Payment
	err := idb.NewSelect().
		Model(&payments).
		Where("auction_id = ?", auctionID).
		Where("type = ?", typ).
		Where("status IN (?)", bun.In([]models.PaymentStatus{models.StatusHold, models.StatusSuccess})).
		Order("created_at ASC").
		Scan(ctx)
	return payments, err
}

// GetPurchase returns the settled purchase payment for an auction, or nil.
func (d *DB) GetPurchase(ctx context.Context, idb bun.IDB, auctionID string) (*models.Payment, error) {
	var p models.Payment
	err := idb.NewSelect().
		Model(&p).
		Where("auction_id = ?", auctionID).
		Where("type IN (?)", bun.In([]models.PaymentType{models.AuctionPurchase, models.BuyNowPurchase})).
		Where("status = ?", models.StatusSuccess).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

// SetPaymentHoldRef records the gateway reference without touching the
// status column, which a webhook may have advanced in the meantime.
func (d *DB) SetPaymentHoldRef(ctx context.Context, idb bun.IDB, p *models.Payment, holdRef string) error {
	p.HoldRef = holdRef
	p.UpdatedAt = time.Now()
	_, err := idb.NewUpdate().
		Model(p).
		Column("hold_ref", "updated_at").
		Where("payment_id = ?", p.PaymentID).
		Exec(ctx)
	return err
}

func (d *DB) UpdatePaymentStatus(ctx context.Context, idb bun.IDB, p *models.Payment, status models.PaymentStatus) error {
	p.Status = status
	p.UpdatedAt = time.Now()
	_, err := idb.NewUpdate().
		Model(p).
		Column("status", "hold_ref", "updated_at").
		Where("payment_id = ?", p.PaymentID).
		Exec(ctx)
	return err
}
