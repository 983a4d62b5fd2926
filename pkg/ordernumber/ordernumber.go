package ordernumber

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/redis/go-redis/v9"
)

// Generator hands out globally unique, human-readable order numbers.
type Generator interface {
	Next(ctx context.Context, now time.Time) (string, error)
}

// Snowflake derives order numbers from a snowflake node. Unique as long as
// every running instance has its own node id.
type Snowflake struct {
	prefix string
	node   *snowflake.Node
}

func NewSnowflake(prefix string, nodeID int64) (*Snowflake, error) {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, fmt.Errorf("failed to create snowflake node %d: %w", nodeID, err)
	}
	return &Snowflake{prefix: prefix, node: node}, nil
}

func (g *Snowflake) Next(_ context.Context, _ time.Time) (string, error) {
	return fmt.Sprintf("%s-%s", g.prefix, g.node.Generate().String()), nil
}

// Counter is the subset of the redis client the daily sequence needs.
type Counter interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
}

// RedisDaily numbers orders PREFIX-YYYYMMDD-NNNNNN from a per-day redis counter.
type RedisDaily struct {
	prefix string
	client Counter
}

func NewRedisDaily(prefix string, client Counter) *RedisDaily {
	return &RedisDaily{prefix: prefix, client: client}
}

const sequenceTTL = 48 * time.Hour

func (g *RedisDaily) Next(ctx context.Context, now time.Time) (string, error) {
	day := now.UTC()
	key := fmt.Sprintf("order_seq:%s", day.Format("20060102"))

	seq, err := g.client.Incr(ctx, key).Result()
	if err != nil {
		return "", fmt.Errorf("failed to increment order sequence: %w", err)
	}
	if seq == 1 {
		if err := g.client.Expire(ctx, key, sequenceTTL).Err(); err != nil {
			return "", fmt.Errorf("failed to set order sequence expiry: %w", err)
		}
	}
	return Format(g.prefix, day, seq)
}

// Format renders PREFIX-YYYYMMDD-NNNNNN.
func Format(prefix string, day time.Time, seq int64) (string, error) {
	if seq <= 0 {
		return "", fmt.Errorf("invalid order sequence: %d", seq)
	}
	return fmt.Sprintf("%s-%s-%06d", prefix, day.Format("20060102"), seq), nil
}
