// Package usage keeps best-effort per-user token counters in Redis.
// Tracking failures are logged and swallowed: usage accounting must
// never block or roll back a chat turn.
package usage

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// counterTTL keeps daily counters around long enough for reporting.
const counterTTL = 90 * 24 * time.Hour

type Tracker struct {
	rdb    *redis.Client
	logger *log.Logger
}

// Conn opens and pings a Redis client.
func Conn(ctx context.Context, addr, pass string, db int, timeout time.Duration) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        addr,
		DialTimeout: timeout,
		Password:    pass,
		DB:          db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed (%s): %w", addr, err)
	}
	return client, nil
}

// NewTracker wraps a Redis client; rdb may be nil, in which case every
// call is a no-op.
func NewTracker(rdb *redis.Client) *Tracker {
	return &Tracker{rdb: rdb, logger: log.New(log.Writer(), "[USAGE] ", log.LstdFlags)}
}

// Record adds tokens to the user's counter for today.
func (t *Tracker) Record(ctx context.Context, userID string, tokens int64) {
	if t == nil || t.rdb == nil {
		return
	}
	key := dailyKey(userID, time.Now())
	pipe := t.rdb.Pipeline()
	pipe.IncrBy(ctx, key, tokens)
	pipe.Expire(ctx, key, counterTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		t.logger.Printf("record usage for %s: %v", userID, err)
	}
}

// Today returns the user's token count for the current day; 0 when
// Redis is unavailable.
func (t *Tracker) Today(ctx context.Context, userID string) int64 {
	if t == nil || t.rdb == nil {
		return 0
	}
	n, err := t.rdb.Get(ctx, dailyKey(userID, time.Now())).Int64()
	if err != nil && err != redis.Nil {
		t.logger.Printf("read usage for %s: %v", userID, err)
	}
	return n
}

func dailyKey(userID string, day time.Time) string {
	return fmt.Sprintf("usage:%s:%s", day.Format("20060102"), userID)
}
