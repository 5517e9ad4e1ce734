package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"ms-auction/internal/config"
	"ms-auction/internal/logger"
	"ms-auction/internal/models"
)

// Producer broadcasts auction events. All publishes are fire-and-forget
// from the caller's point of view: errors are logged, never returned into
// the money path.
type Producer struct {
	writer *kafka.Writer
	topics config.TopicConfig
	log    *logger.Logger
}

func NewProducer(brokers []string, topics config.TopicConfig, log *logger.Logger) *Producer {
	writer := &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Balancer: &kafka.LeastBytes{},
	}
	return &Producer{writer: writer, topics: topics, log: log}
}

func (p *Producer) publish(topic, key string, payload interface{}) error {
	msgBytes, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	p.log.LogKafka("PUBLISH", topic, string(msgBytes))

	return p.writer.WriteMessages(context.Background(), kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: msgBytes,
	})
}

// PublishBidUpdate streams the new price and bid count to auction
// subscribers after a bid commits.
func (p *Producer) PublishBidUpdate(auctionID string, newPrice int64, bidCount int) error {
	return p.publish(p.topics.BidUpdates, auctionID, models.BidUpdate{
		AuctionID: auctionID,
		NewPrice:  newPrice,
		BidCount:  bidCount,
	})
}

// PublishAuctionCancelled announces a seller-initiated cancellation.
func (p *Producer) PublishAuctionCancelled(auctionID string) error {
	return p.publish(p.topics.AuctionCancelled, auctionID, map[string]interface{}{
		"auction_id":   auctionID,
		"cancelled_at": time.Now().UTC(),
	})
}

// PublishNewAuctionListed announces an auction going live.
func (p *Producer) PublishNewAuctionListed(auction models.Auction) error {
	return p.publish(p.topics.AuctionListed, auction.AuctionID, auction)
}

func (p *Producer) Close() error {
	if p.writer == nil {
		return nil
	}
	p.log.Info("KAFKA", "Closing Kafka producer")
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("closing kafka writer: %w", err)
	}
	return nil
}
