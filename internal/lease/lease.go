package lease

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"ms-auction/internal/logger"
)

const keyPrefix = "auction_lease:"

// Lease is the advisory lock serializing payment-intent creation per
// auction. The TTL bounds how long a crashed holder can keep an auction
// locked; callbacks release it explicitly on success and failure.
type Lease struct {
	Client *redis.Client
	TTL    time.Duration
	Log    *logger.Logger
}

func New(client *redis.Client, ttl time.Duration, log *logger.Logger) *Lease {
	return &Lease{Client: client, TTL: ttl, Log: log}
}

// Acquire takes the lease for userID. Returns false when another user
// currently holds it.
func (l *Lease) Acquire(ctx context.Context, auctionID, userID string) (bool, error) {
	key := keyPrefix + auctionID
	ok, err := l.Client.SetNX(ctx, key, userID, l.TTL).Result()
	if err != nil {
		return false, err
	}
	if !ok {
		// Re-acquiring one's own live lease extends it.
		holder, err := l.Client.Get(ctx, key).Result()
		if err == redis.Nil {
			return l.Client.SetNX(ctx, key, userID, l.TTL).Result()
		}
		if err != nil {
			return false, err
		}
		if holder == userID {
			return true, l.Client.Expire(ctx, key, l.TTL).Err()
		}
		return false, nil
	}
	l.Log.Debug("LEASE", fmt.Sprintf("auction %s leased to %s for %s", auctionID, userID, l.TTL))
	return true, nil
}

// Release drops the lease when userID still holds it. Releasing an
// expired or foreign lease is a no-op.
func (l *Lease) Release(ctx context.Context, auctionID, userID string) error {
	key := keyPrefix + auctionID
	holder, err := l.Client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		return err
	}
	if holder == userID {
		_, err := l.Client.Del(ctx, key).Result()
		return err
	}
	return nil
}

// Holder returns the current lease holder, empty when unheld.
func (l *Lease) Holder(ctx context.Context, auctionID string) (string, error) {
	holder, err := l.Client.Get(ctx, keyPrefix+auctionID).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return holder, nil
}
