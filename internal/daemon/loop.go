package daemon

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
)

// ErrLoopStopped is returned by Do once the loop has stopped.
var ErrLoopStopped = errors.New("daemon loop stopped")

// Loop runs closures one at a time on a single goroutine. Everything that
// touches the display manager, the suppression service or the session table
// goes through it; IPC handlers, hotkeys and X event hooks run elsewhere.
type Loop struct {
	tasks    chan func()
	done     chan struct{}
	stopOnce sync.Once
	logger   *slog.Logger
}

// NewLoop creates a loop with room for queue pending closures.
func NewLoop(queue int, logger *slog.Logger) *Loop {
	if queue <= 0 {
		queue = 64
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Loop{
		tasks:  make(chan func(), queue),
		done:   make(chan struct{}),
		logger: logger,
	}
}

// Run executes queued closures until ctx is cancelled or Stop is called.
func (l *Loop) Run(ctx context.Context) {
	defer l.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-l.done:
			return
		case fn := <-l.tasks:
			l.run(fn)
		}
	}
}

func (l *Loop) run(fn func()) {
	defer func() {
		if err := recover(); err != nil {
			l.logger.Error("loop task panic recovered", "error", err)
		}
	}()
	fn()
}

// Do runs fn on the loop and waits for it to finish. It must not be called
// from the loop goroutine.
func (l *Loop) Do(fn func()) error {
	finished := make(chan struct{})
	task := func() {
		defer close(finished)
		fn()
	}
	select {
	case <-l.done:
		return ErrLoopStopped
	case l.tasks <- task:
	}
	select {
	case <-finished:
		return nil
	case <-l.done:
		return ErrLoopStopped
	}
}

// Post queues fn without waiting. It reports false when the loop has
// stopped and fn was dropped.
func (l *Loop) Post(fn func()) bool {
	select {
	case <-l.done:
		return false
	default:
	}
	select {
	case <-l.done:
		return false
	case l.tasks <- fn:
		return true
	}
}

// Stop ends Run. Closures still queued are dropped.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() { close(l.done) })
}

// Done is closed once the loop stops.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}
