package notify

import (
	"ms-auction/internal/models"
	"ms-auction/internal/sse"
)

// Tee fans a bid update out to Kafka and to local SSE subscribers. The
// SSE emit never fails; the Kafka result is reported to the caller.
type Tee struct {
	Producer *Producer
	Emitter  *sse.BidEventEmitter
}

func NewTee(producer *Producer, emitter *sse.BidEventEmitter) *Tee {
	return &Tee{Producer: producer, Emitter: emitter}
}

func (t *Tee) PublishBidUpdate(auctionID string, newPrice int64, bidCount int) error {
	t.Emitter.Emit(models.BidUpdate{
		AuctionID: auctionID,
		NewPrice:  newPrice,
		BidCount:  bidCount,
	})
	return t.Producer.PublishBidUpdate(auctionID, newPrice, bidCount)
}
