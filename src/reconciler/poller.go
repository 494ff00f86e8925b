// backend/src/reconciler/poller.go
package reconciler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/username/chamasats/backend/src/logger"
	"github.com/username/chamasats/backend/src/models"
)

// ErrNotPollable is returned when a payment is already in a terminal
// status and therefore never eligible for polling.
var ErrNotPollable = errors.New("payment is not in a pollable status")

// Config bounds every poll task: one fetch per interval, self-cancelling
// after the wall-clock timeout.
type Config struct {
	Interval time.Duration
	Timeout  time.Duration
}

// PollSource yields the latest unified status for one tracked payment,
// together with the raw payload so callers can extract rail artifacts.
type PollSource interface {
	Key() string
	Fetch(ctx context.Context) (models.UnifiedStatus, any, error)
}

// Callbacks receive poll events. The terminal callback (OnComplete or
// OnFail) fires exactly once; after cancellation no callback fires at
// all, including for a fetch already in flight.
type Callbacks struct {
	OnStatusChange func(status models.UnifiedStatus, raw any)
	OnComplete     func(status models.UnifiedStatus, raw any)
	OnFail         func(status models.UnifiedStatus, raw any)
	OnTimeout      func()
}

// Outcome is the final state of a finished poll task.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeFailed    Outcome = "failed"
	OutcomeTimedOut  Outcome = "timed_out"
	OutcomeCancelled Outcome = "cancelled"
)

// Handle is a first-class cancellable poll task.
type Handle struct {
	key    string
	cancel context.CancelFunc
	done   chan struct{}

	mu      sync.Mutex
	outcome Outcome
}

// Cancel stops the task. Safe to call repeatedly and after completion.
func (h *Handle) Cancel() { h.cancel() }

// Done is closed once the task has fully stopped and will emit no
// further callbacks.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Outcome reports the task's final state. Valid once Done is closed.
func (h *Handle) Outcome() Outcome {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.outcome
}

func (h *Handle) finish(o Outcome) {
	h.mu.Lock()
	h.outcome = o
	h.mu.Unlock()
	close(h.done)
}

// Reconciler runs poll tasks for in-flight payments. A given source key
// is polled by at most one task at a time.
type Reconciler struct {
	cfg Config

	mu     sync.Mutex
	active map[string]*Handle
}

func New(cfg Config) *Reconciler {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	return &Reconciler{cfg: cfg, active: make(map[string]*Handle)}
}

// Start begins polling a source. The payment must currently be in a
// pollable status; terminal payments are refused. If the source is
// already being polled the existing handle is returned, guaranteeing a
// single concurrent task per transaction.
func (r *Reconciler) Start(ctx context.Context, src PollSource, initial models.UnifiedStatus, cb Callbacks) (*Handle, error) {
	if !initial.IsPollable() {
		return nil, ErrNotPollable
	}

	r.mu.Lock()
	if existing, ok := r.active[src.Key()]; ok {
		r.mu.Unlock()
		return existing, nil
	}

	taskCtx, cancel := context.WithCancel(ctx)
	h := &Handle{key: src.Key(), cancel: cancel, done: make(chan struct{})}
	r.active[src.Key()] = h
	r.mu.Unlock()

	go r.run(taskCtx, src, initial, cb, h)
	return h, nil
}

// StopAll cancels every active task and waits for them to drain.
func (r *Reconciler) StopAll() {
	r.mu.Lock()
	handles := make([]*Handle, 0, len(r.active))
	for _, h := range r.active {
		handles = append(handles, h)
	}
	r.mu.Unlock()

	for _, h := range handles {
		h.Cancel()
		<-h.Done()
	}
}

func (r *Reconciler) run(ctx context.Context, src PollSource, initial models.UnifiedStatus, cb Callbacks, h *Handle) {
	defer func() {
		r.mu.Lock()
		delete(r.active, src.Key())
		r.mu.Unlock()
	}()

	maxTicks := int((r.cfg.Timeout + r.cfg.Interval - 1) / r.cfg.Interval)
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	last := initial
	for tick := 0; tick < maxTicks; tick++ {
		select {
		case <-ctx.Done():
			h.finish(OutcomeCancelled)
			return
		case <-ticker.C:
		}

		status, raw, err := src.Fetch(ctx)

		// A response that lands after cancellation is discarded, not
		// applied: no callback may fire once Cancel has been requested.
		if ctx.Err() != nil {
			h.finish(OutcomeCancelled)
			return
		}
		if err != nil {
			// Transient errors keep the poll alive until the budget runs out.
			logger.FromContext(ctx).Warn("Poll tick failed",
				"key", src.Key(), "tick", tick+1, "error", err)
			continue
		}

		if status != last {
			last = status
			if cb.OnStatusChange != nil {
				cb.OnStatusChange(status, raw)
			}
		}

		if status.IsTerminal() {
			switch status {
			case models.StatusCompleted:
				if cb.OnComplete != nil {
					cb.OnComplete(status, raw)
				}
				h.finish(OutcomeCompleted)
			default:
				if cb.OnFail != nil {
					cb.OnFail(status, raw)
				}
				h.finish(OutcomeFailed)
			}
			return
		}
	}

	// Budget exhausted without a terminal status: distinct from failure,
	// the payment may still settle later.
	logger.FromContext(ctx).Info("Poll timed out", "key", src.Key(), "lastStatus", last)
	if cb.OnTimeout != nil {
		cb.OnTimeout()
	}
	h.finish(OutcomeTimedOut)
}
