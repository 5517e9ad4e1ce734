package store

import (
	"context"

	"github.com/uptrace/bun"

	"ms-auction/internal/models"
)

// Migrate creates the auction tables when they do not exist yet.
func Migrate(ctx context.Context, db *bun.DB) error {
	tables := []interface{}{
		(*models.Auction)(nil),
		(*models.Bid)(nil),
		(*models.JoinedAuction)(nil),
		(*models.Payment)(nil),
		(*models.LedgerEntry)(nil),
		(*models.PlatformLedgerEntry)(nil),
		(*models.Address)(nil),
	}

	for _, table := range tables {
		if _, err := db.NewCreateTable().Model(table).IfNotExists().Exec(ctx); err != nil {
			return err
		}
	}
	return nil
}
