package ipintel

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"fraud-risk-engine/internal/domain/fraud"
	"fraud-risk-engine/internal/pkg/metrics"
)

// Refresh outcomes reported to metrics
const (
	OutcomeStored   = "stored"
	OutcomeFailed   = "failed"
	OutcomeRejected = "rejected"
	OutcomeDropped  = "dropped"
)

// RefresherConfig tunes the background refresh
type RefresherConfig struct {
	QueueSize int
	Workers   int
	TTL       time.Duration
}

// Refresher fetches verdicts for IPs the check path missed and writes them
// to the intelligence store. Requests never block the caller.
type Refresher struct {
	provider Provider
	store    fraud.IPIntelligenceRepository
	breaker  *gobreaker.CircuitBreaker
	metrics  *metrics.Metrics
	logger   *zap.Logger
	ttl      time.Duration
	workers  int
	now      func() time.Time

	queue    chan string
	mu       sync.Mutex
	inflight map[string]struct{}

	startOnce sync.Once
	stopOnce  sync.Once
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// NewRefresher creates a refresher. Call Start to run workers.
func NewRefresher(provider Provider, store fraud.IPIntelligenceRepository, cfg RefresherConfig, m *metrics.Metrics, logger *zap.Logger) *Refresher {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 24 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	r := &Refresher{
		provider: provider,
		store:    store,
		metrics:  m,
		logger:   logger,
		ttl:      cfg.TTL,
		workers:  cfg.Workers,
		now:      func() time.Time { return time.Now().UTC() },
		queue:    make(chan string, cfg.QueueSize),
		inflight: make(map[string]struct{}),
	}
	r.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "ip-intelligence",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	return r
}

// Request queues ip for refresh. Duplicates of a queued ip and requests
// beyond the queue capacity are dropped.
func (r *Refresher) Request(ip string) bool {
	if ip == "" {
		return false
	}
	r.mu.Lock()
	if _, ok := r.inflight[ip]; ok {
		r.mu.Unlock()
		return false
	}
	r.inflight[ip] = struct{}{}
	r.mu.Unlock()

	select {
	case r.queue <- ip:
		return true
	default:
		r.done(ip)
		r.metrics.IPRefresh(OutcomeDropped)
		return false
	}
}

// Start launches the workers
func (r *Refresher) Start(ctx context.Context) {
	r.startOnce.Do(func() {
		ctx, r.cancel = context.WithCancel(ctx)
		for i := 0; i < r.workers; i++ {
			r.wg.Add(1)
			go r.run(ctx)
		}
	})
}

// Stop halts the workers and waits for in-progress lookups
func (r *Refresher) Stop() {
	r.stopOnce.Do(func() {
		if r.cancel != nil {
			r.cancel()
		}
		r.wg.Wait()
	})
}

func (r *Refresher) run(ctx context.Context) {
	defer r.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case ip := <-r.queue:
			r.refresh(ctx, ip)
			r.done(ip)
		}
	}
}

func (r *Refresher) refresh(ctx context.Context, ip string) {
	result, err := r.breaker.Execute(func() (interface{}, error) {
		return r.provider.Lookup(ctx, ip)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			r.metrics.IPRefresh(OutcomeRejected)
			return
		}
		r.metrics.IPRefresh(OutcomeFailed)
		r.logger.Warn("ip lookup failed", zap.String("ip", ip), zap.Error(err))
		return
	}

	verdict, _ := result.(*Verdict)
	if verdict == nil {
		verdict = &Verdict{}
	}
	intel := &fraud.IPIntelligence{
		IPAddress: ip,
		IsVPN:     verdict.IsVPN,
		IsProxy:   verdict.IsProxy,
		Country:   verdict.Country,
		ExpiresAt: r.now().Add(r.ttl),
	}
	if err := r.store.Upsert(ctx, intel); err != nil {
		r.metrics.IPRefresh(OutcomeFailed)
		r.logger.Warn("failed to store ip intelligence", zap.String("ip", ip), zap.Error(err))
		return
	}
	r.metrics.IPRefresh(OutcomeStored)
}

func (r *Refresher) done(ip string) {
	r.mu.Lock()
	delete(r.inflight, ip)
	r.mu.Unlock()
}
