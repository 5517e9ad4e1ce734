package address

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/uptrace/bun"

	"ms-auction/internal/fault"
	"ms-auction/internal/models"
)

// Store is the read-only view of the address service the core depends
// on: paying users must have exactly one address marked main.
type Store struct {
	Bun *bun.DB
}

func New(bunDB *bun.DB) *Store {
	return &Store{Bun: bunDB}
}

// MainAddress returns the user's main address, or ErrPreconditionFailed
// when none is flagged.
func (s *Store) MainAddress(ctx context.Context, userID string) (*models.Address, error) {
	var addr models.Address
	err := s.Bun.NewSelect().
		Model(&addr).
		Where("user_id = ?", userID).
		Where("is_main = ?", true).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%w: user %s has no main address", fault.ErrPreconditionFailed, userID)
		}
		return nil, err
	}
	return &addr, nil
}
