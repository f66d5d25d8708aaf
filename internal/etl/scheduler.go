package etl

import (
	"context"
	"log"
	"time"

	"github.com/gorhill/cronexpr"
	"github.com/redis/go-redis/v9"
)

// Scheduler fires the pipeline on a cron schedule. Runs execute inline in the
// ticker loop, so at most one run is ever active. Rdb is optional: when set,
// a SetNX lock keeps multiple deployments from running the window twice.
type Scheduler struct {
	Pipeline *Pipeline
	Cron     string
	Rdb      *redis.Client
	Logger   *log.Logger

	lastRun *time.Time
}

func NewScheduler(p *Pipeline, cron string, rdb *redis.Client, logger *log.Logger) *Scheduler {
	if logger == nil {
		logger = log.New(log.Writer(), "[SCHED] ", log.LstdFlags)
	}
	return &Scheduler{Pipeline: p, Cron: cron, Rdb: rdb, Logger: logger}
}

// Run blocks until ctx is cancelled, firing the pipeline whenever the cron
// expression comes due.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	now := time.Now()
	if !isDue(s.Cron, s.lastRun, now) {
		return
	}
	if s.Rdb != nil {
		ok, err := s.Rdb.SetNX(ctx, "monchat:etl:lock", "1", 10*time.Minute).Result()
		if err != nil {
			s.Logger.Printf("warn: etl lock: %v", err)
			return
		}
		if !ok {
			return
		}
		defer s.Rdb.Del(ctx, "monchat:etl:lock")
	}

	s.lastRun = &now
	if _, err := s.Pipeline.Run(ctx); err != nil {
		s.Logger.Printf("etl run failed: %v", err)
	}
}

// isDue reports whether a schedule with cronSpec should fire at now given the
// last firing time. Supports "@daily", "@hourly" and 5-field cron expressions;
// an invalid expression degrades to @daily.
func isDue(cronSpec string, last *time.Time, now time.Time) bool {
	switch cronSpec {
	case "@daily":
		if last == nil {
			return true
		}
		return now.Sub(*last) >= 24*time.Hour
	case "@hourly":
		if last == nil {
			return true
		}
		return now.Sub(*last) >= time.Hour
	default:
		expr, err := cronexpr.Parse(cronSpec)
		if err != nil {
			if last == nil {
				return true
			}
			return now.Sub(*last) >= 24*time.Hour
		}
		if last == nil {
			return true
		}
		next := expr.Next(*last)
		return !next.After(now)
	}
}
