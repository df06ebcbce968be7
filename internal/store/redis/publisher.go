// Package redis publishes run records to Redis for dashboards and other
// consumers: an append-only stream of runs, the latest run per series and
// rule set, and a pub/sub notification. Redis is optional; a failing
// server trips a circuit breaker and records are buffered until it
// recovers.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/OffGrid0xDAO/OffGrid-Scalp-Bot-sub003/internal/report"

	goredis "github.com/go-redis/redis/v8"
)

const (
	runsStream    = "backtest:runs"
	runsChannel   = "pub:backtest:runs"
	runsMaxLen    = 5000
	latestTTL     = 7 * 24 * time.Hour
	defaultMaxBuf = 256
)

// Config configures the Redis connection.
type Config struct {
	Addr     string // Redis address, e.g. "localhost:6379"
	Password string
	DB       int
}

// runStore is the Redis surface the publisher needs.
type runStore interface {
	publish(ctx context.Context, rec report.RunRecord, payload string) error
	latest(ctx context.Context, key string) (string, error)
	recent(ctx context.Context, n int64) ([]string, error)
	ping(ctx context.Context) error
	close() error
}

// Publisher writes run records through a circuit breaker.
type Publisher struct {
	store runStore
	cb    *CircuitBreaker

	mu      sync.Mutex
	pending []report.RunRecord
	maxBuf  int

	OnBuffer func()          // called when a record is buffered
	OnFlush  func(count int) // called after buffered records are flushed
}

// New connects to Redis and pings the server.
func New(cfg Config) (*Publisher, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	log.Printf("[redis] connected to %s", cfg.Addr)
	return newPublisher(&redisStore{client: client}), nil
}

func newPublisher(s runStore) *Publisher {
	return &Publisher{
		store:   s,
		cb:      NewCircuitBreaker(3, 30*time.Second),
		pending: make([]report.RunRecord, 0, 8),
		maxBuf:  defaultMaxBuf,
	}
}

// Breaker exposes the circuit breaker so callers can observe transitions.
func (p *Publisher) Breaker() *CircuitBreaker { return p.cb }

// LatestKey is the key holding the newest run of a series and rule set.
func LatestKey(series, ruleSet string) string {
	return "backtest:latest:" + series + ":" + ruleSet
}

// PublishRun writes rec. When the breaker is open the record is buffered
// and nil is returned; other failures are buffered and returned.
func (p *Publisher) PublishRun(ctx context.Context, rec report.RunRecord) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("redis marshal run: %w", err)
	}

	if p.cb.Allow() != nil {
		p.buffer(rec)
		return nil
	}
	err = p.store.publish(ctx, rec, string(payload))
	p.cb.Record(err)
	if err != nil {
		p.buffer(rec)
		return fmt.Errorf("redis publish run %s: %w", rec.RunID, err)
	}

	p.flush(ctx)
	return nil
}

func (p *Publisher) buffer(rec report.RunRecord) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.pending) >= p.maxBuf {
		p.pending = p.pending[1:]
	}
	p.pending = append(p.pending, rec)
	if p.OnBuffer != nil {
		p.OnBuffer()
	}
}

// flush replays buffered records after a successful write. Records that
// fail again stay buffered.
func (p *Publisher) flush(ctx context.Context) {
	p.mu.Lock()
	if len(p.pending) == 0 {
		p.mu.Unlock()
		return
	}
	toFlush := p.pending
	p.pending = make([]report.RunRecord, 0, 8)
	p.mu.Unlock()

	flushed := 0
	for _, rec := range toFlush {
		payload, err := json.Marshal(rec)
		if err != nil {
			continue
		}
		if err := p.store.publish(ctx, rec, string(payload)); err != nil {
			log.Printf("[redis] flush of run %s failed: %v", rec.RunID, err)
			p.buffer(rec)
			continue
		}
		flushed++
	}

	log.Printf("[redis] flushed %d buffered runs", flushed)
	if p.OnFlush != nil {
		p.OnFlush(flushed)
	}
}

// Ping checks the connection.
func (p *Publisher) Ping(ctx context.Context) error { return p.store.ping(ctx) }

// PendingCount returns the number of buffered records.
func (p *Publisher) PendingCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}

// Close closes the Redis client. Buffered records are dropped.
func (p *Publisher) Close() error {
	if n := p.PendingCount(); n > 0 {
		log.Printf("[redis] closing with %d unpublished runs", n)
	}
	return p.store.close()
}

// redisStore implements runStore on a go-redis client.
type redisStore struct {
	client *goredis.Client
}

func (s *redisStore) publish(ctx context.Context, rec report.RunRecord, payload string) error {
	pipe := s.client.Pipeline()

	pipe.XAdd(ctx, &goredis.XAddArgs{
		Stream: runsStream,
		MaxLen: runsMaxLen,
		Approx: true,
		Values: map[string]interface{}{
			"run_id": rec.RunID,
			"data":   payload,
		},
	})
	pipe.Set(ctx, LatestKey(rec.Series, rec.RuleSetVersion), payload, latestTTL)
	pipe.Publish(ctx, runsChannel, payload)

	_, err := pipe.Exec(ctx)
	return err
}

func (s *redisStore) latest(ctx context.Context, key string) (string, error) {
	return s.client.Get(ctx, key).Result()
}

func (s *redisStore) recent(ctx context.Context, n int64) ([]string, error) {
	msgs, err := s.client.XRevRangeN(ctx, runsStream, "+", "-", n).Result()
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		if data, ok := m.Values["data"].(string); ok {
			out = append(out, data)
		}
	}
	return out, nil
}

func (s *redisStore) ping(ctx context.Context) error { return s.client.Ping(ctx).Err() }

func (s *redisStore) close() error { return s.client.Close() }
