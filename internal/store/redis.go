package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ubhp-protocol/agenthub/internal/models"
)

const historyTTL = 24 * time.Hour

// RedisStore keeps a rolling history of routed envelopes per channel.
// History is best-effort observability, not a delivery log: entries expire
// after 24 hours and a write failure never blocks routing.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a new Redis store.
func NewRedisStore(ctx context.Context, redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &RedisStore{client: client}, nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// channelHistoryKey returns the key for a channel's envelope sorted set.
func channelHistoryKey(channel string) string {
	return fmt.Sprintf("channel:%s:envelopes", channel)
}

// AddEnvelope appends a routed envelope to its channel's history.
func (s *RedisStore) AddEnvelope(ctx context.Context, env *models.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}

	key := channelHistoryKey(env.Meta.Channel)

	err = s.client.ZAdd(ctx, key, redis.Z{
		Score:  float64(env.Timestamp),
		Member: string(data),
	}).Err()
	if err != nil {
		return err
	}

	s.client.Expire(ctx, key, historyTTL)

	return nil
}

// GetChannelEnvelopes retrieves recent envelopes from a channel's history,
// newest first. A before timestamp of 0 means "from now".
func (s *RedisStore) GetChannelEnvelopes(ctx context.Context, channel string, limit int, before int64) ([]models.Envelope, error) {
	key := channelHistoryKey(channel)

	var maxScore string
	if before > 0 {
		maxScore = fmt.Sprintf("(%d", before) // exclusive
	} else {
		maxScore = "+inf"
	}

	results, err := s.client.ZRevRangeByScore(ctx, key, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   maxScore,
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, err
	}

	envelopes := make([]models.Envelope, 0, len(results))
	for _, data := range results {
		var env models.Envelope
		if err := json.Unmarshal([]byte(data), &env); err != nil {
			continue
		}
		envelopes = append(envelopes, env)
	}

	return envelopes, nil
}

// CountChannelEnvelopes returns the number of retained envelopes for a channel.
func (s *RedisStore) CountChannelEnvelopes(ctx context.Context, channel string) (int64, error) {
	return s.client.ZCard(ctx, channelHistoryKey(channel)).Result()
}
