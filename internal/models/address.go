package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Address is read-only reference data for the core: deposit and purchase
// flows require the paying user to have exactly one address marked main.
type Address struct {
	bun.BaseModel `bun:"table:addresses"`

	AddressID string    `bun:"address_id,pk" json:"address_id"`
	UserID    string    `bun:"user_id" json:"user_id"`
	Line1     string    `bun:"line1" json:"line1"`
	Line2     string    `bun:"line2,nullzero" json:"line2,omitempty"`
	City      string    `bun:"city" json:"city"`
	Country   string    `bun:"country" json:"country"`
	IsMain    bool      `bun:"is_main" json:"is_main"`
	CreatedAt time.Time `bun:"created_at" json:"created_at"`
}
