package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/paddock-market/internal/config"
	"github.com/paddock-market/internal/domain"
)

// StandingsCache stores computed standings in Redis. The order of a table
// lives in a sorted set scored by position; the entries live in a hash.
type StandingsCache struct {
	client *redis.Client
	logger *slog.Logger
}

// NewClient creates a Redis client and checks the connection
func NewClient(cfg *config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	return client, nil
}

// NewStandingsCache creates a new standings cache
func NewStandingsCache(client *redis.Client, logger *slog.Logger) *StandingsCache {
	return &StandingsCache{
		client: client,
		logger: logger,
	}
}

// Close closes the Redis connection
func (c *StandingsCache) Close() error {
	return c.client.Close()
}

// Ping checks the Redis connection
func (c *StandingsCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// orderKey returns the key of the sorted set holding the table order
func orderKey(sport domain.Sport, view string) string {
	return fmt.Sprintf("standings:%s:%s", sport, view)
}

// entriesKey returns the key of the hash holding the table entries
func entriesKey(sport domain.Sport, view string) string {
	return fmt.Sprintf("standings:%s:%s:entries", sport, view)
}

// GetStandings returns the first limit entries of a cached table
func (c *StandingsCache) GetStandings(ctx context.Context, sport domain.Sport, view string, limit int) ([]domain.StandingsEntry, error) {
	ids, err := c.client.ZRange(ctx, orderKey(sport, view), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("reading standings order: %w", err)
	}
	if len(ids) == 0 {
		return nil, domain.ErrCacheMiss
	}

	values, err := c.client.HMGet(ctx, entriesKey(sport, view), ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("reading standings entries: %w", err)
	}

	entries := make([]domain.StandingsEntry, 0, len(values))
	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			// the hash expired between the two reads
			return nil, domain.ErrCacheMiss
		}
		var entry domain.StandingsEntry
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			return nil, fmt.Errorf("decoding standings entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// SetStandings replaces a cached table
func (c *StandingsCache) SetStandings(ctx context.Context, sport domain.Sport, view string, entries []domain.StandingsEntry, ttl time.Duration) error {
	order := orderKey(sport, view)
	hash := entriesKey(sport, view)

	members := make([]redis.Z, 0, len(entries))
	fields := make([]interface{}, 0, 2*len(entries))
	for i, e := range entries {
		id := strconv.FormatInt(e.ParticipantID, 10)
		data, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("encoding standings entry: %w", err)
		}
		members = append(members, redis.Z{Score: float64(i), Member: id})
		fields = append(fields, id, data)
	}

	pipe := c.client.TxPipeline()
	pipe.Del(ctx, order, hash)
	if len(members) > 0 {
		pipe.ZAdd(ctx, order, members...)
		pipe.HSet(ctx, hash, fields...)
		pipe.Expire(ctx, order, ttl)
		pipe.Expire(ctx, hash, ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("storing standings: %w", err)
	}
	return nil
}

// Invalidate drops every cached table of a sport
func (c *StandingsCache) Invalidate(ctx context.Context, sport domain.Sport) error {
	var keys []string
	iter := c.client.Scan(ctx, 0, fmt.Sprintf("standings:%s:*", sport), 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scanning standings keys: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}

	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("deleting standings keys: %w", err)
	}
	c.logger.Debug("standings cache invalidated", "sport", sport, "keys", len(keys))
	return nil
}
