package auth

import (
	"context"
	"sync"
	"time"

	"github.com/userhub/accounts/internal/logger"
)

const (
	DefaultCleanupInterval = time.Hour
	cleanupTimeout         = 30 * time.Second
)

// ExpiredTokenPurger removes refresh tokens past their expiry.
type ExpiredTokenPurger interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// MetricTokensPurged counts refresh tokens removed by the janitor.
const MetricTokensPurged = "auth_refresh_tokens_purged_total"

type PurgeCounter interface {
	AddCounter(name string, delta uint64)
}

// Janitor periodically purges expired refresh tokens. Expired rows are
// already ignored by lookups; purging only bounds table growth.
type Janitor struct {
	store    ExpiredTokenPurger
	interval time.Duration
	metrics  PurgeCounter
	log      *logger.Logger

	wg       sync.WaitGroup
	stopChan chan struct{}
	mu       sync.Mutex
	running  bool
}

func NewJanitor(store ExpiredTokenPurger, interval time.Duration) *Janitor {
	if interval <= 0 {
		interval = DefaultCleanupInterval
	}
	return &Janitor{
		store:    store,
		interval: interval,
		log:      logger.Default().WithComponent("janitor"),
	}
}

func (j *Janitor) WithMetrics(metrics PurgeCounter) *Janitor {
	j.metrics = metrics
	return j
}

// Start launches the purge loop. Calling Start on a running janitor is a no-op.
func (j *Janitor) Start() {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.running {
		return
	}
	j.running = true
	j.stopChan = make(chan struct{})

	j.wg.Add(1)
	go j.loop(j.stopChan)

	j.log.Info(context.Background(), "token janitor started", map[string]interface{}{
		"interval": j.interval.String(),
	})
}

// Stop waits for an in-flight purge to finish or ctx to expire.
func (j *Janitor) Stop(ctx context.Context) error {
	j.mu.Lock()
	if !j.running {
		j.mu.Unlock()
		return nil
	}
	j.running = false
	close(j.stopChan)
	j.mu.Unlock()

	done := make(chan struct{})
	go func() {
		j.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (j *Janitor) loop(stop <-chan struct{}) {
	defer j.wg.Done()

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			j.RunOnce(context.Background())
		}
	}
}

// RunOnce performs a single purge and returns the number of rows removed.
func (j *Janitor) RunOnce(ctx context.Context) int64 {
	ctx, cancel := context.WithTimeout(ctx, cleanupTimeout)
	defer cancel()

	n, err := j.store.DeleteExpired(ctx)
	if err != nil {
		j.log.Error(ctx, "failed to purge expired refresh tokens", err)
		return 0
	}
	if n > 0 {
		if j.metrics != nil {
			j.metrics.AddCounter(MetricTokensPurged, uint64(n))
		}
		j.log.Info(ctx, "purged expired refresh tokens", map[string]interface{}{"count": n})
	}
	return n
}
