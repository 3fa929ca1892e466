package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fortuna/crease/internal/match"
)

// Stream names
const (
	StreamListing = "cricket.listing"
	StreamDetail  = "cricket.detail"
	StreamErrors  = "cricket.errors"

	// DefaultStreamMaxLen is the approximate length each stream is trimmed to
	DefaultStreamMaxLen = 1000

	publishTimeout = 5 * time.Second
)

// Connect opens a Redis client from a URL and checks it answers
func Connect(ctx context.Context, redisURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// RedisStreamPublisher is a Listener that mirrors every event onto Redis
// streams for consumers outside the widget.
type RedisStreamPublisher struct {
	client *redis.Client
	maxLen int64
	logger *slog.Logger
}

// NewRedisStreamPublisher creates a new Redis stream publisher from existing client
func NewRedisStreamPublisher(client *redis.Client, maxLen int64, logger *slog.Logger) *RedisStreamPublisher {
	if maxLen <= 0 {
		maxLen = DefaultStreamMaxLen
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisStreamPublisher{
		client: client,
		maxLen: maxLen,
		logger: logger.With("component", "redis_publisher"),
	}
}

// Close closes the Redis connection
func (p *RedisStreamPublisher) Close() error {
	return p.client.Close()
}

// OnListingUpdated publishes the listing
func (p *RedisStreamPublisher) OnListingUpdated(ctx context.Context, summaries []match.MatchSummary) {
	p.publish(ctx, StreamListing, summaries)
}

// OnDetailUpdated publishes the detail
func (p *RedisStreamPublisher) OnDetailUpdated(ctx context.Context, detail match.MatchDetail) {
	p.publish(ctx, StreamDetail, detail)
}

// OnFetchError publishes the failure
func (p *RedisStreamPublisher) OnFetchError(ctx context.Context, failure match.FetchFailure) {
	p.publish(ctx, StreamErrors, failure)
}

// publish never fails the caller; Redis is a side channel.
func (p *RedisStreamPublisher) publish(ctx context.Context, stream string, payload interface{}) {
	args, err := p.xaddArgs(stream, payload, time.Now())
	if err != nil {
		p.logger.Warn("encode stream payload failed", "stream", stream, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	if err := p.client.XAdd(ctx, args).Err(); err != nil {
		p.logger.Warn("publish to stream failed", "stream", stream, "error", err)
	}
}

func (p *RedisStreamPublisher) xaddArgs(stream string, payload interface{}, now time.Time) (*redis.XAddArgs, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return &redis.XAddArgs{
		Stream: stream,
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]interface{}{
			"data":      string(data),
			"timestamp": now.Unix(),
		},
	}, nil
}
