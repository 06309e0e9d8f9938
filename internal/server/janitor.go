package server

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/gorhill/cronexpr"
	"github.com/redis/go-redis/v9"

	"github.com/pravin-sketch/studyflow-ai1/internal/store"
)

const janitorLockKey = "janitor:lock"

// Janitor prunes chat sessions idle longer than the retention window.
// It wakes hourly and consults the cron schedule to decide whether a
// sweep is due; a redis lock keeps replicas from sweeping twice.
type Janitor struct {
	Store     *store.Store
	Rdb       *redis.Client
	Schedule  string
	Retention time.Duration
	Stop      chan struct{}
	Logger    *log.Logger

	lastRun time.Time
}

func (j *Janitor) Start() {
	ticker := time.NewTicker(1 * time.Hour)
	go func() {
		for {
			select {
			case <-j.Stop:
				ticker.Stop()
				return
			case <-ticker.C:
				j.tick()
			}
		}
	}()
}

func (j *Janitor) tick() {
	if !j.due(time.Now()) {
		return
	}
	ctx := context.Background()
	if j.Rdb != nil {
		token := uuid.NewString()
		ok, _ := j.Rdb.SetNX(ctx, janitorLockKey, token, 10*time.Minute).Result()
		if !ok {
			return
		}
		// release only if we still hold it
		defer func() {
			if v, err := j.Rdb.Get(ctx, janitorLockKey).Result(); err == nil && v == token {
				j.Rdb.Del(ctx, janitorLockKey)
			}
		}()
	}
	j.sweep(ctx)
}

func (j *Janitor) sweep(ctx context.Context) {
	cutoff := time.Now().Add(-j.Retention)
	n, err := j.Store.DeleteSessionsBefore(ctx, cutoff)
	j.lastRun = time.Now()
	if err != nil {
		j.Logger.Printf("sweep failed: %v", err)
		return
	}
	if n > 0 {
		janitorDeletes.Add(float64(n))
		j.Logger.Printf("removed %d sessions idle since before %s", n, cutoff.Format(time.RFC3339))
	}
}

// due reports whether the schedule has fired since the last sweep.
// Supports "@daily", "@hourly", and standard cron expressions.
func (j *Janitor) due(now time.Time) bool {
	if j.lastRun.IsZero() {
		return true
	}
	switch j.Schedule {
	case "@daily":
		return now.Sub(j.lastRun) >= 24*time.Hour
	case "@hourly":
		return now.Sub(j.lastRun) >= time.Hour
	}
	expr, err := cronexpr.Parse(j.Schedule)
	if err != nil {
		return now.Sub(j.lastRun) >= 24*time.Hour
	}
	return !expr.Next(j.lastRun).After(now)
}
