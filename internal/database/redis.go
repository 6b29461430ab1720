package database

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisClients separates the blocking queue traffic from the pub/sub
// progress stream. Workers park on BLPOP for long stretches, so the queue
// client needs a connection per worker plus headroom for the API's LPUSH.
type RedisClients struct {
	Queue  *redis.Client
	PubSub *redis.Client
}

func NewRedisClients(redisURL string) (*RedisClients, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	queueOpt := *opt
	queueOpt.PoolSize = 10
	queueClient := redis.NewClient(&queueOpt)
	if err := queueClient.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping Redis (queue): %w", err)
	}

	// Subscriptions hold their connection for the life of the websocket,
	// one per connected user.
	pubsubOpt := *opt
	pubsubOpt.PoolSize = 50
	pubsubClient := redis.NewClient(&pubsubOpt)
	if err := pubsubClient.Ping(ctx).Err(); err != nil {
		queueClient.Close()
		return nil, fmt.Errorf("failed to ping Redis (pubsub): %w", err)
	}

	return &RedisClients{
		Queue:  queueClient,
		PubSub: pubsubClient,
	}, nil
}

func (r *RedisClients) Close() {
	r.Queue.Close()
	r.PubSub.Close()
}
