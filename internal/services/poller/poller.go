// Package poller drives paid orders through fulfillment. Each cycle claims
// due orders, asks the fulfillment provider for progress and publishes the
// result as an order.status.updated message.
package poller

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/BearBump/xtreeshop/internal/broker/messages"
	"github.com/BearBump/xtreeshop/internal/integrations/fulfillment"
	"github.com/BearBump/xtreeshop/internal/models"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type Repository interface {
	ClaimDueOrders(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]*models.Order, error)
}

// Sweeper removes expired sessions once per sweep interval.
type Sweeper interface {
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}

type Producer interface {
	PublishJSON(ctx context.Context, topic, key string, v any) error
}

type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error)
}

type Poller struct {
	repo     Repository
	client   fulfillment.Client
	producer Producer
	rl       RateLimiter
	sweeper  Sweeper
	log      *zap.Logger

	topic    string
	provider string

	planner *Planner

	pollInterval       time.Duration
	batchSize          int
	concurrency        int
	lease              time.Duration
	rateLimitPerMinute int64
	rateLimitWait      time.Duration
	sweepInterval      time.Duration

	triggerCh chan struct{}

	startedAtUnixNano   int64
	lastCycleUnixNano   atomic.Int64
	lastTriggerUnixNano atomic.Int64
	lastSweepUnixNano   atomic.Int64
	totalClaimed        atomic.Int64
	totalProcessed      atomic.Int64
	totalErrors         atomic.Int64
	totalSwept          atomic.Int64
	inFlight            atomic.Int64
	lastErrorMu         sync.Mutex
	lastError           string
}

func New(repo Repository, client fulfillment.Client, producer Producer, rl RateLimiter, topic string, log *zap.Logger) *Poller {
	if log == nil {
		log = zap.NewNop()
	}
	return &Poller{
		repo: repo, client: client, producer: producer, rl: rl, topic: topic, log: log,
		provider:           "fake",
		planner:            DefaultPlanner(),
		pollInterval:       2 * time.Second,
		batchSize:          100,
		concurrency:        10,
		lease:              120 * time.Second,
		rateLimitPerMinute: 120,
		rateLimitWait:      500 * time.Millisecond,
		sweepInterval:      15 * time.Minute,
		triggerCh:          make(chan struct{}, 1),
		startedAtUnixNano:  time.Now().UTC().UnixNano(),
	}
}

func DefaultPlanner() *Planner {
	return NewPlanner(DefaultPlannerConfig(), nil)
}

func (p *Poller) WithSettings(pollInterval time.Duration, batchSize, concurrency int, lease time.Duration, rlPerMin int64) *Poller {
	if pollInterval > 0 {
		p.pollInterval = pollInterval
	}
	if batchSize > 0 {
		p.batchSize = batchSize
	}
	if concurrency > 0 {
		p.concurrency = concurrency
	}
	if lease > 0 {
		p.lease = lease
	}
	if rlPerMin > 0 {
		p.rateLimitPerMinute = rlPerMin
	}
	return p
}

func (p *Poller) WithPlanner(cfg PlannerConfig) *Poller {
	p.planner = NewPlanner(cfg, nil)
	return p
}

// WithProvider names the fulfillment provider; the name scopes the rate limit key.
func (p *Poller) WithProvider(name string) *Poller {
	if name != "" {
		p.provider = name
	}
	return p
}

func (p *Poller) WithSweeper(s Sweeper, every time.Duration) *Poller {
	p.sweeper = s
	if every > 0 {
		p.sweepInterval = every
	}
	return p
}

// Trigger forces an immediate poll cycle (best-effort, non-blocking).
func (p *Poller) Trigger() {
	p.lastTriggerUnixNano.Store(time.Now().UTC().UnixNano())
	select {
	case p.triggerCh <- struct{}{}:
	default:
	}
}

type Stats struct {
	StartedAt      time.Time  `json:"startedAt"`
	LastCycleAt    *time.Time `json:"lastCycleAt,omitempty"`
	LastTriggerAt  *time.Time `json:"lastTriggerAt,omitempty"`
	LastSweepAt    *time.Time `json:"lastSweepAt,omitempty"`
	TotalClaimed   int64      `json:"totalClaimed"`
	TotalProcessed int64      `json:"totalProcessed"`
	TotalErrors    int64      `json:"totalErrors"`
	TotalSwept     int64      `json:"totalSweptSessions"`
	InFlight       int64      `json:"inFlight"`
	LastError      string     `json:"lastError,omitempty"`
}

func (p *Poller) Stats() Stats {
	st := Stats{
		StartedAt:      time.Unix(0, p.startedAtUnixNano).UTC(),
		TotalClaimed:   p.totalClaimed.Load(),
		TotalProcessed: p.totalProcessed.Load(),
		TotalErrors:    p.totalErrors.Load(),
		TotalSwept:     p.totalSwept.Load(),
		InFlight:       p.inFlight.Load(),
	}
	st.LastCycleAt = unixPtr(p.lastCycleUnixNano.Load())
	st.LastTriggerAt = unixPtr(p.lastTriggerUnixNano.Load())
	st.LastSweepAt = unixPtr(p.lastSweepUnixNano.Load())
	p.lastErrorMu.Lock()
	st.LastError = p.lastError
	p.lastErrorMu.Unlock()
	return st
}

func unixPtr(n int64) *time.Time {
	if n <= 0 {
		return nil
	}
	t := time.Unix(0, n).UTC()
	return &t
}

func (p *Poller) setLastError(err error) {
	p.lastErrorMu.Lock()
	p.lastError = err.Error()
	p.lastErrorMu.Unlock()
}

func (p *Poller) Run(ctx context.Context) error {
	t := time.NewTicker(p.pollInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			p.runOnce(ctx)
		case <-p.triggerCh:
			p.runOnce(ctx)
		}
	}
}

func (p *Poller) runOnce(ctx context.Context) {
	now := time.Now().UTC()
	p.lastCycleUnixNano.Store(now.UnixNano())

	p.maybeSweep(ctx, now)

	items, err := p.repo.ClaimDueOrders(ctx, now, p.batchSize, p.lease)
	if err != nil {
		p.log.Error("claim due orders", zap.Error(err))
		p.setLastError(err)
		return
	}
	p.totalClaimed.Add(int64(len(items)))

	sem := make(chan struct{}, p.concurrency)
	var wg sync.WaitGroup
	for _, o := range items {
		sem <- struct{}{}
		wg.Add(1)
		p.inFlight.Add(1)
		go func(o *models.Order) {
			defer func() {
				p.inFlight.Add(-1)
				<-sem
				wg.Done()
			}()
			if err := p.processOne(ctx, o); err != nil {
				p.totalErrors.Add(1)
				p.setLastError(err)
				p.log.Error("process order", zap.Uint64("order_id", o.ID), zap.Error(err))
			}
			p.totalProcessed.Add(1)
		}(o)
	}
	wg.Wait()
}

func (p *Poller) maybeSweep(ctx context.Context, now time.Time) {
	if p.sweeper == nil {
		return
	}
	last := p.lastSweepUnixNano.Load()
	if last > 0 && now.Sub(time.Unix(0, last)) < p.sweepInterval {
		return
	}
	p.lastSweepUnixNano.Store(now.UnixNano())

	n, err := p.sweeper.DeleteExpiredSessions(ctx, now)
	if err != nil {
		p.log.Warn("sweep expired sessions", zap.Error(err))
		return
	}
	p.totalSwept.Add(n)
	if n > 0 {
		p.log.Info("expired sessions removed", zap.Int64("count", n))
	}
}

func (p *Poller) processOne(ctx context.Context, o *models.Order) error {
	now := time.Now().UTC()

	if p.rl != nil && p.rateLimitPerMinute > 0 {
		minuteKey := fmt.Sprintf("rl:fulfillment:%s:%s", p.provider, now.Format("200601021504"))
		allowed, n, err := p.rl.Allow(ctx, minuteKey, p.rateLimitPerMinute, 70*time.Second)
		if err != nil {
			return err
		}
		if !allowed {
			// over the provider budget for this minute; slow down instead of skipping
			p.log.Warn("rate limit exceeded", zap.String("provider", p.provider), zap.Int64("count", n))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(p.rateLimitWait):
			}
		}
	}

	res, err := p.client.GetProgress(ctx, o)
	msg := messages.OrderStatusUpdated{
		OrderID:   o.ID,
		CheckedAt: now,
		Source:    p.provider,
	}

	if err != nil {
		e := err.Error()
		msg.Error = &e
		msg.NextCheckAt = now.Add(p.planner.BackoffDelay(o.CheckFailCount + 1))
	} else {
		msg.Status = string(res.Status)
		msg.StatusAt = res.StatusAt
		msg.Reference = res.Reference
		msg.NextCheckAt = now.Add(p.planner.NextCheckDelay(res.Status))
	}

	if err := p.producer.PublishJSON(ctx, p.topic, strconv.FormatUint(o.ID, 10), msg); err != nil {
		return errors.Wrap(err, "publish status update")
	}
	return nil
}
