package daemon

import (
	"context"
	"io"
	"log/slog"
	"time"
)

// ReconcileResult summarizes one reconciliation pass.
type ReconcileResult struct {
	Refreshed int
	Forgotten []int
	Expired   []string
	Pruned    int
}

// ReconcileTarget performs a single pass. It is called on the daemon loop.
type ReconcileTarget interface {
	Reconcile(now time.Time) ReconcileResult
}

// ReconcilerConfig holds configuration for the reconciler.
type ReconcilerConfig struct {
	Interval time.Duration
	Logger   *slog.Logger
}

// Reconciler periodically checks for state drift and corrects it.
type Reconciler struct {
	interval time.Duration
	loop     *Loop
	target   ReconcileTarget
	now      func() time.Time
	logger   *slog.Logger
}

// NewReconciler creates a new reconciler with the given configuration.
// Passes run on loop.
func NewReconciler(cfg ReconcilerConfig, loop *Loop, target ReconcileTarget) *Reconciler {
	interval := cfg.Interval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Reconciler{
		interval: interval,
		loop:     loop,
		target:   target,
		now:      time.Now,
		logger:   logger,
	}
}

// Run starts the reconciliation loop. Blocks until context is cancelled.
func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("reconciler started", "interval", r.interval)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("reconciler stopped")
			return
		case <-r.loop.Done():
			r.logger.Info("reconciler stopped", "reason", "loop stopped")
			return
		case <-ticker.C:
			r.ReconcileNow()
		}
	}
}

// ReconcileNow runs a pass on the loop and waits for it.
func (r *Reconciler) ReconcileNow() {
	var res ReconcileResult
	err := r.loop.Do(func() {
		res = r.reconcile()
	})
	if err != nil {
		r.logger.Debug("reconciler: pass skipped", "error", err)
		return
	}
	if len(res.Forgotten) > 0 || len(res.Expired) > 0 || res.Pruned > 0 {
		r.logger.Info("reconciler: drift corrected",
			"forgotten", res.Forgotten,
			"expired", res.Expired,
			"pruned", res.Pruned)
	}
}

// reconcile performs a single reconciliation pass.
func (r *Reconciler) reconcile() (res ReconcileResult) {
	// Recover from panics to prevent crashing the daemon
	defer func() {
		if err := recover(); err != nil {
			r.logger.Error("reconciler panic recovered", "error", err)
		}
	}()
	return r.target.Reconcile(r.now())
}
