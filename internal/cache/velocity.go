package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/monay/risk-engine/internal/config"
	"github.com/monay/risk-engine/internal/pkg/logger"
)

const hourBucketLayout = "2006010215"

// VelocityCache keeps per-account transaction counts and sums bucketed by
// hour in Redis. The velocity detector reads the trailing 24 buckets; the
// buckets expire shortly after leaving the window.
type VelocityCache struct {
	rdb *redis.Client
	ttl time.Duration
	log *logger.Logger
}

// NewVelocityCache connects a velocity cache to Redis
func NewVelocityCache(cfg *config.RedisConfig, log *logger.Logger) *VelocityCache {
	rdb := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})
	return &VelocityCache{
		rdb: rdb,
		ttl: cfg.BucketTTL,
		log: log.Named("velocity_cache"),
	}
}

// Ping verifies connectivity
func (c *VelocityCache) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close releases the underlying client
func (c *VelocityCache) Close() error {
	return c.rdb.Close()
}

// Record increments the account's count and sum buckets for the
// transaction's hour
func (c *VelocityCache) Record(ctx context.Context, accountID uuid.UUID, amount float64, ts time.Time) error {
	countKey, sumKey := c.keys(accountID, ts)

	pipe := c.rdb.TxPipeline()
	pipe.Incr(ctx, countKey)
	pipe.IncrByFloat(ctx, sumKey, amount)
	pipe.Expire(ctx, countKey, c.ttl)
	pipe.Expire(ctx, sumKey, c.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("record velocity bucket: %w", err)
	}
	return nil
}

// HourlyCounts returns the trailing 24 hourly transaction counts for an
// account, oldest first. Missing buckets read as zero.
func (c *VelocityCache) HourlyCounts(ctx context.Context, accountID uuid.UUID, now time.Time) ([]int, error) {
	keys := make([]string, 0, 24)
	for i := 23; i >= 0; i-- {
		countKey, _ := c.keys(accountID, now.Add(-time.Duration(i)*time.Hour))
		keys = append(keys, countKey)
	}

	vals, err := c.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("read velocity buckets: %w", err)
	}

	counts := make([]int, len(vals))
	for i, v := range vals {
		if v == nil {
			continue
		}
		s, ok := v.(string)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			continue
		}
		counts[i] = n
	}
	return counts, nil
}

func (c *VelocityCache) keys(accountID uuid.UUID, ts time.Time) (countKey, sumKey string) {
	bucket := ts.UTC().Format(hourBucketLayout)
	countKey = fmt.Sprintf("velocity:%s:%s:count", accountID, bucket)
	sumKey = fmt.Sprintf("velocity:%s:%s:sum", accountID, bucket)
	return
}
