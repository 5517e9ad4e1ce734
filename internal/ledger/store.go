package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"

	"ms-auction/internal/fault"
	"ms-auction/internal/logger"
	"ms-auction/internal/models"
)

// Store is the append-only balance ledger for user wallets and the
// platform account. Balances are never stored in a mutable column: the
// balance of an account is the resulting balance of its latest entry.
// Every Append reads that entry inside the caller's transaction, so two
// settlements touching the same account serialize on the row lock.
type Store struct {
	Bun *bun.DB
	Log *logger.Logger
}

func New(bunDB *bun.DB, log *logger.Logger) *Store {
	return &Store{Bun: bunDB, Log: log}
}

func (s *Store) rowLocks() bool {
	return s.Bun.Dialect().Name() == dialect.PG
}

func signed(amount int64, direction models.LedgerDirection) (int64, error) {
	switch direction {
	case models.DirectionDeposit:
		return amount, nil
	case models.DirectionWithdrawal:
		return -amount, nil
	}
	return 0, fmt.Errorf("%w: unknown direction %q", fault.ErrLedgerInconsistency, direction)
}

// Append writes one entry to a user wallet chain and returns it. Fails
// with ErrPreconditionFailed when a withdrawal would push the wallet
// below zero.
func (s *Store) Append(ctx context.Context, idb bun.IDB, accountID string, amount int64, direction models.LedgerDirection, reason models.LedgerReason, auctionID string) (*models.LedgerEntry, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: non-positive amount %d for account %s", fault.ErrLedgerInconsistency, amount, accountID)
	}
	delta, err := signed(amount, direction)
	if err != nil {
		return nil, err
	}

	prev, err := s.lastEntry(ctx, idb, accountID)
	if err != nil {
		return nil, fmt.Errorf("%w: reading last entry for account %s: %v", fault.ErrLedgerInconsistency, accountID, err)
	}
	var prevBalance int64
	if prev != nil {
		prevBalance = prev.ResultingBalance
	}

	newBalance := prevBalance + delta
	if newBalance < 0 {
		return nil, fmt.Errorf("%w: insufficient wallet balance for account %s (have %d, need %d)",
			fault.ErrPreconditionFailed, accountID, prevBalance, amount)
	}

	entry := &models.LedgerEntry{
		AccountID:        accountID,
		Amount:           amount,
		Direction:        direction,
		Reason:           reason,
		AuctionID:        auctionID,
		ResultingBalance: newBalance,
		CreatedAt:        time.Now(),
	}
	if _, err := idb.NewInsert().Model(entry).Exec(ctx); err != nil {
		return nil, fmt.Errorf("%w: appending entry for account %s: %v", fault.ErrLedgerInconsistency, accountID, err)
	}

	s.Log.LogDatabase("APPEND", "ledger_entries",
		fmt.Sprintf("account %s %s %d (%s) -> balance %d", accountID, direction, amount, reason, newBalance))
	return entry, nil
}

func (s *Store) lastEntry(ctx context.Context, idb bun.IDB, accountID string) (*models.LedgerEntry, error) {
	var entry models.LedgerEntry
	q := idb.NewSelect().
		Model(&entry).
		Where("account_id = ?", accountID).
		Order("id DESC").
		Limit(1)
	if s.rowLocks() {
		q = q.For("UPDATE")
	}
	err := q.Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}

// Balance returns the current wallet balance of an account, zero when the
// account has no entries yet.
func (s *Store) Balance(ctx context.Context, idb bun.IDB, accountID string) (int64, error) {
	entry, err := s.lastEntry(ctx, idb, accountID)
	if err != nil {
		return 0, err
	}
	if entry == nil {
		return 0, nil
	}
	return entry.ResultingBalance, nil
}

// AppendPlatform writes one entry to the platform chain.
func (s *Store) AppendPlatform(ctx context.Context, idb bun.IDB, amount int64, direction models.LedgerDirection, reason models.LedgerReason, auctionID string) (*models.PlatformLedgerEntry, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: non-positive platform amount %d", fault.ErrLedgerInconsistency, amount)
	}
	delta, err := signed(amount, direction)
	if err != nil {
		return nil, err
	}

	prev, err := s.lastPlatformEntry(ctx, idb)
	if err != nil {
		return nil, fmt.Errorf("%w: reading last platform entry: %v", fault.ErrLedgerInconsistency, err)
	}
	var prevBalance int64
	if prev != nil {
		prevBalance = prev.ResultingBalance
	}

	newBalance := prevBalance + delta
	if newBalance < 0 {
		return nil, fmt.Errorf("%w: platform balance would go negative (have %d, need %d)",
			fault.ErrLedgerInconsistency, prevBalance, amount)
	}

	entry := &models.PlatformLedgerEntry{
		Amount:           amount,
		Direction:        direction,
		Reason:           reason,
		AuctionID:        auctionID,
		ResultingBalance: newBalance,
		CreatedAt:        time.Now(),
	}
	if _, err := idb.NewInsert().Model(entry).Exec(ctx); err != nil {
		return nil, fmt.Errorf("%w: appending platform entry: %v", fault.ErrLedgerInconsistency, err)
	}

	s.Log.LogDatabase("APPEND", "platform_ledger_entries",
		fmt.Sprintf("platform %s %d (%s) -> balance %d", direction, amount, reason, newBalance))
	return entry, nil
}

func (s *Store) lastPlatformEntry(ctx context.Context, idb bun.IDB) (*models.PlatformLedgerEntry, error) {
	var entry models.PlatformLedgerEntry
	q := idb.NewSelect().
		Model(&entry).
		Order("id DESC").
		Limit(1)
	if s.rowLocks() {
		q = q.For("UPDATE")
	}
	err := q.Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}

// PlatformBalance returns the current platform balance.
func (s *Store) PlatformBalance(ctx context.Context, idb bun.IDB) (int64, error) {
	entry, err := s.lastPlatformEntry(ctx, idb)
	if err != nil {
		return 0, err
	}
	if entry == nil {
		return 0, nil
	}
	return entry.ResultingBalance, nil
}

// VerifyAccount replays an account's chain from zero and fails with
// ErrLedgerInconsistency on the first stored balance that does not match.
func (s *Store) VerifyAccount(ctx context.Context, accountID string) error {
	var entries []models.LedgerEntry
	err := s.Bun.NewSelect().
		Model(&entries).
		Where("account_id = ?", accountID).
		Order("id ASC").
		Scan(ctx)
	if err != nil {
		return err
	}

	var balance int64
	for _, entry := range entries {
		delta, err := signed(entry.Amount, entry.Direction)
		if err != nil {
			return err
		}
		balance += delta
		if balance != entry.ResultingBalance {
			return fmt.Errorf("%w: account %s entry %d stored balance %d, replay gives %d",
				fault.ErrLedgerInconsistency, accountID, entry.ID, entry.ResultingBalance, balance)
		}
	}
	return nil
}
