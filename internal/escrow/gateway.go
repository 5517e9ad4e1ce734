package escrow

import "context"

// Metadata travels with a hold and comes back on gateway events so
// callbacks can be routed to the right auction and payer.
type Metadata map[string]string

// Gateway abstracts the external payment processor. A hold reserves funds
// without moving them; capture finalizes the hold to the platform; cancel
// releases it back to the payer. Capture and Cancel are idempotent.
type Gateway interface {
	CreateHold(ctx context.Context, customerRef string, amount int64, currency string, md Metadata) (string, error)
	Capture(ctx context.Context, holdRef string) (int64, error)
	Cancel(ctx context.Context, holdRef string) error
}

type EventKind string

const (
	EventHoldCreated EventKind = "hold_created"
	EventCaptured    EventKind = "captured"
	EventCancelled   EventKind = "cancelled"
	EventFailed      EventKind = "failed"
)

// Event is a gateway callback normalized from the wire format.
type Event struct {
	Kind      EventKind
	HoldRef   string
	AuctionID string
	UserID    string
	PaymentID string
	Amount    int64
}

// CallbackHandler is implemented by the deposit coordinator; webhook
// delivery hands normalized events to it.
type CallbackHandler interface {
	HandleEscrowEvent(ctx context.Context, event Event) error
}
