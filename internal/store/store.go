package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"

	"ms-auction/internal/fault"
	"ms-auction/internal/models"
)

// DB wraps the bun connection shared by every auction store. Methods take
// a bun.IDB so they run either on the pool or inside a caller transaction.
type DB struct {
	Bun *bun.DB
}

// RunInTx executes fn inside one database transaction. Every settlement
// unit (ledger writes, status updates, joined-auction updates) goes
// through here so partial failures roll back together.
func (d *DB) RunInTx(ctx context.Context, fn func(ctx context.Context, tx bun.IDB) error) error {
	return d.Bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, tx)
	})
}

// rowLocks reports whether the dialect supports SELECT ... FOR UPDATE.
// The sqlite test harness serializes writers on its own.
func (d *DB) rowLocks() bool {
	return d.Bun.Dialect().Name() == dialect.PG
}

// ---------------- AUCTIONS ----------------

func (d *DB) CreateAuction(ctx context.Context, a *models.Auction) error {
	_, err := d.Bun.NewInsert().Model(a).Exec(ctx)
	return err
}

func (d *DB) GetAuctionByID(ctx context.Context, idb bun.IDB, id string) (*models.Auction, error) {
	var a models.Auction
	err := idb.NewSelect().
		Model(&a).
		Where("auction_id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%w: auction %s", fault.ErrNotFound, id)
		}
		return nil, err
	}
	return &a, nil
}

// AuctionForUpdate locks the auction row for the remainder of the
// transaction. All bid, deposit and settlement mutations on one auction
// serialize on this lock.
func (d *DB) AuctionForUpdate(ctx context.Context, tx bun.IDB, id string) (*models.Auction, error) {
	var a models.Auction
	q := tx.NewSelect().
		Model(&a).
		Where("auction_id = ?", id).
		Limit(1)
	if d.rowLocks() {
		q = q.For("UPDATE")
	}
	if err := q.Scan(ctx); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%w: auction %s", fault.ErrNotFound, id)
		}
		return nil, err
	}
	return &a, nil
}

func (d *DB) UpdateAuction(ctx context.Context, idb bun.IDB, a *models.Auction) error {
	_, err := idb.NewUpdate().
		Model(a).
		Column("status", "type", "duration_unit", "duration", "start_bid_amount",
			"accepted_amount", "is_buy_now_allowed", "currency",
			"start_date", "expiry_date", "end_date",
			"is_locked", "locked_by_user_id", "locked_at").
		Where("auction_id = ?", a.AuctionID).
		Exec(ctx)
	return err
}

// SetAuctionLock updates only the lease mirror columns. Writing the full
// row here would clobber status changes landing from a webhook between
// the caller's read and this write.
func (d *DB) SetAuctionLock(ctx context.Context, idb bun.IDB, auctionID string, locked bool, userID string, at time.Time) error {
	_, err := idb.NewUpdate().
		Model((*models.Auction)(nil)).
		Set("is_locked = ?", locked).
		Set("locked_by_user_id = ?", userID).
		Set("locked_at = ?", at).
		Where("auction_id = ?", auctionID).
		Exec(ctx)
	return err
}

func (d *DB) DeleteAuction(ctx context.Context, id string) error {
	_, err := d.Bun.NewDelete().
		Model((*models.Auction)(nil)).
		Where("auction_id = ?", id).
		Exec(ctx)
	return err
}

// ListExpiredActive returns ACTIVE auctions whose expiry date has passed.
func (d *DB) ListExpiredActive(ctx context.Context, now time.Time) ([]models.Auction, error) {
	var auctions []models.Auction
	err := d.Bun.NewSelect().
		Model(&auctions).
		Where("status = ?", models.StatusActive).
		Where("expiry_date <= ?", now).
		Scan(ctx)
	return auctions, err
}

// ListScheduledToStart returns IN_SCHEDULED auctions whose start date has
// been reached.
func (d *DB) ListScheduledToStart(ctx context.Context, now time.Time) ([]models.Auction, error) {
	var auctions []models.Auction
	err := d.Bun.NewSelect().
		Model(&auctions).
		Where("status = ?", models.StatusInScheduled).
		Where("start_date <= ?", now).
		Scan(ctx)
	return auctions, err
}

// ListPaymentOverdue returns WAITING_FOR_PAYMENT auctions whose end of
// payment window has passed. The window starts at the expiry date.
func (d *DB) ListPaymentOverdue(ctx context.Context, now time.Time, window time.Duration) ([]models.Auction, error) {
	var auctions []models.Auction
	err := d.Bun.NewSelect().
		Model(&auctions).
		Where("status = ?", models.StatusWaitingForPayment).
		Where("expiry_date <= ?", now.Add(-window)).
		Scan(ctx)
	return auctions, err
}
