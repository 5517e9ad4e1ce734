package wallet

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"ms-auction/internal/escrow"
	"ms-auction/internal/fault"
	"ms-auction/internal/ledger"
	"ms-auction/internal/logger"
	"ms-auction/internal/models"
	"ms-auction/internal/store"
)

// Service exposes the user-facing wallet: top-ups funded through the
// payment gateway, withdrawals back out, and the running balance.
type Service struct {
	DB       *store.DB
	Ledger   *ledger.Store
	Gateway  escrow.Gateway
	Currency string
	Log      *logger.Logger
}

func NewService(db *store.DB, ledgerStore *ledger.Store, gateway escrow.Gateway, currency string, log *logger.Logger) *Service {
	return &Service{DB: db, Ledger: ledgerStore, Gateway: gateway, Currency: currency, Log: log}
}

// TopUp charges the user's card and credits the wallet ledger.
func (s *Service) TopUp(ctx context.Context, userID string, amount int64) (*models.LedgerEntry, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: top-up amount must be positive", fault.ErrPreconditionFailed)
	}

	holdRef, err := s.Gateway.CreateHold(ctx, userID, amount, s.Currency, escrow.Metadata{
		"user_id": userID,
		"purpose": "wallet_top_up",
	})
	if err != nil {
		return nil, err
	}

	// The locked balance read and the insert must share one transaction
	// so concurrent top-ups for the same account serialize on the chain.
	// Capturing last keeps a failed charge from leaving a credited
	// wallet; a failed append rolls back before any money moves.
	var entry *models.LedgerEntry
	err = s.DB.RunInTx(ctx, func(ctx context.Context, tx bun.IDB) error {
		entry, err = s.Ledger.Append(ctx, tx, userID, amount, models.DirectionDeposit, models.ReasonWalletTopUp, "")
		if err != nil {
			return err
		}
		_, err = s.Gateway.Capture(ctx, holdRef)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.Log.LogSettlement("TOP_UP", userID, fmt.Sprintf("wallet credited %d, balance %d", amount, entry.ResultingBalance))
	return entry, nil
}

// Withdraw debits the wallet. Overdrawing fails before any entry is
// written.
func (s *Service) Withdraw(ctx context.Context, userID string, amount int64) (*models.LedgerEntry, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: withdrawal amount must be positive", fault.ErrPreconditionFailed)
	}

	var entry *models.LedgerEntry
	err := s.DB.RunInTx(ctx, func(ctx context.Context, tx bun.IDB) error {
		var err error
		entry, err = s.Ledger.Append(ctx, tx, userID, amount, models.DirectionWithdrawal, models.ReasonWalletWithdraw, "")
		return err
	})
	if err != nil {
		return nil, err
	}

	s.Log.LogSettlement("WITHDRAW", userID, fmt.Sprintf("wallet debited %d, balance %d", amount, entry.ResultingBalance))
	return entry, nil
}

// Balance returns the account's current wallet balance.
func (s *Service) Balance(ctx context.Context, userID string) (int64, error) {
	return s.Ledger.Balance(ctx, s.DB.Bun, userID)
}

// Verify replays the account's entry chain and reports the first break.
func (s *Service) Verify(ctx context.Context, userID string) error {
	return s.Ledger.VerifyAccount(ctx, userID)
}
