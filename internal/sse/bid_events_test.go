package sse_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"ms-auction/internal/models"
	"ms-auction/internal/sse"
)

func TestSubscribeReceivesUpdates(t *testing.T) {
	emitter := sse.NewBidEventEmitter()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	updates := emitter.Subscribe(ctx, "auction1")
	assert.Equal(t, 1, emitter.ClientCount("auction1"))

	emitter.Emit(models.BidUpdate{AuctionID: "auction1", NewPrice: 120, BidCount: 1})

	select {
	case update := <-updates:
		assert.Equal(t, int64(120), update.NewPrice)
		assert.Equal(t, 1, update.BidCount)
	case <-time.After(time.Second):
		t.Fatal("no update received")
	}
}

func TestUpdatesAreScopedPerAuction(t *testing.T) {
	emitter := sse.NewBidEventEmitter()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	one := emitter.Subscribe(ctx, "auction1")
	emitter.Emit(models.BidUpdate{AuctionID: "auction2", NewPrice: 99, BidCount: 1})

	select {
	case update := <-one:
		t.Fatalf("unexpected update for other auction: %+v", update)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestCancelledSubscriberIsRemoved(t *testing.T) {
	emitter := sse.NewBidEventEmitter()
	ctx, cancel := context.WithCancel(context.Background())

	updates := emitter.Subscribe(ctx, "auction1")
	cancel()

	// The removal happens on a goroutine watching the context.
	assert.Eventually(t, func() bool {
		return emitter.ClientCount("auction1") == 0
	}, time.Second, 10*time.Millisecond)

	_, open := <-updates
	assert.False(t, open)
}

func TestSlowClientDoesNotBlockEmit(t *testing.T) {
	emitter := sse.NewBidEventEmitter()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	emitter.Subscribe(ctx, "auction1")

	// Fill the buffer well past capacity; Emit must never block.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			emitter.Emit(models.BidUpdate{AuctionID: "auction1", NewPrice: int64(i), BidCount: i})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("emit blocked on a slow client")
	}
}
