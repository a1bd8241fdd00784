package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/maltedev/dampfi-automation/internal/catalog"
)

// ProductRefresher is implemented by *catalog.ProductService.
type ProductRefresher interface {
	RefreshAll(ctx context.Context) (catalog.RefreshSummary, error)
}

// Status describes the most recent refresh pass.
type Status struct {
	Enabled     bool                    `json:"enabled"`
	Interval    string                  `json:"interval,omitempty"`
	Running     bool                    `json:"running"`
	LastStarted *time.Time              `json:"last_started,omitempty"`
	LastSummary *catalog.RefreshSummary `json:"last_summary,omitempty"`
	LastError   string                  `json:"last_error,omitempty"`
}

// Refresher re-extracts every tracked product on a fixed interval.
type Refresher struct {
	products ProductRefresher
	interval time.Duration
	logger   *slog.Logger

	mu     sync.Mutex
	status Status
}

func NewRefresher(products ProductRefresher, interval time.Duration, logger *slog.Logger) *Refresher {
	r := &Refresher{
		products: products,
		interval: interval,
		logger:   logger.With("component", "refresher"),
	}
	r.status.Enabled = interval > 0
	if r.status.Enabled {
		r.status.Interval = interval.String()
	}
	return r
}

// Start blocks until ctx is done. With a non-positive interval it returns immediately.
func (r *Refresher) Start(ctx context.Context) {
	if r.interval <= 0 {
		r.logger.Info("product refresher disabled")
		return
	}

	r.logger.Info("product refresher started", "interval", r.interval)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("product refresher stopping")
			return
		case <-ticker.C:
			r.RunOnce(ctx)
		}
	}
}

// RunOnce performs one refresh pass unless another one is still running.
func (r *Refresher) RunOnce(ctx context.Context) bool {
	r.mu.Lock()
	if r.status.Running {
		r.mu.Unlock()
		r.logger.Warn("previous refresh still running, skipping tick")
		return false
	}
	started := time.Now()
	r.status.Running = true
	r.status.LastStarted = &started
	r.mu.Unlock()

	summary, err := r.products.RefreshAll(ctx)

	r.mu.Lock()
	r.status.Running = false
	r.status.LastSummary = &summary
	r.status.LastError = ""
	if err != nil {
		r.status.LastError = err.Error()
	}
	r.mu.Unlock()

	if err != nil {
		r.logger.Error("refresh pass failed", "error", err, "refreshed", summary.Refreshed)
		return true
	}
	r.logger.Info("refresh pass complete",
		"total", summary.Total,
		"refreshed", summary.Refreshed,
		"failed", summary.Failed,
		"duration", time.Since(started))
	return true
}

func (r *Refresher) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}
