package sse

import (
	"context"
	"sync"

	"ms-auction/internal/models"
)

// BidEventEmitter manages SSE connections and price broadcasting for
// live auctions.
type BidEventEmitter struct {
	// key: auctionID, value: slice of client channels
	clients     map[string][]chan models.BidUpdate
	clientMutex sync.RWMutex
}

func NewBidEventEmitter() *BidEventEmitter {
	return &BidEventEmitter{
		clients: make(map[string][]chan models.BidUpdate),
	}
}

// Subscribe adds a client to an auction's price updates. The channel is
// closed and removed when the context ends.
func (e *BidEventEmitter) Subscribe(ctx context.Context, auctionID string) chan models.BidUpdate {
	clientChan := make(chan models.BidUpdate, 10)

	e.clientMutex.Lock()
	e.clients[auctionID] = append(e.clients[auctionID], clientChan)
	e.clientMutex.Unlock()

	go func() {
		<-ctx.Done()
		e.removeClient(auctionID, clientChan)
	}()

	return clientChan
}

// Emit broadcasts a price update to all subscribed clients.
func (e *BidEventEmitter) Emit(update models.BidUpdate) {
	e.clientMutex.RLock()
	clients := e.clients[update.AuctionID]
	e.clientMutex.RUnlock()

	for _, clientChan := range clients {
		// Non-blocking send: a slow client misses the update rather
		// than stalling the emitter.
		select {
		case clientChan <- update:
		default:
		}
	}
}

func (e *BidEventEmitter) removeClient(auctionID string, clientChan chan models.BidUpdate) {
	e.clientMutex.Lock()
	defer e.clientMutex.Unlock()

	clients := e.clients[auctionID]
	for i, ch := range clients {
		if ch == clientChan {
			e.clients[auctionID] = append(clients[:i], clients[i+1:]...)
			close(clientChan)
			break
		}
	}

	if len(e.clients[auctionID]) == 0 {
		delete(e.clients, auctionID)
	}
}

// ClientCount returns the number of clients subscribed to an auction.
func (e *BidEventEmitter) ClientCount(auctionID string) int {
	e.clientMutex.RLock()
	defer e.clientMutex.RUnlock()
	return len(e.clients[auctionID])
}
