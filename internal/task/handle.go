package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"imageseq/internal/logging"
)

var (
	// ErrNotRunning reports an operation that needs a running worker.
	ErrNotRunning = errors.New("task not running")
	// ErrNotPaused reports Resume on a worker that is not paused.
	ErrNotPaused = errors.New("task not paused")
)

// State is the lifecycle position of a Handle.
type State int

const (
	StateIdle State = iota
	StateRunning
	StatePaused
	StateCompleting
	StateCanceled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StatePaused:
		return "paused"
	case StateCompleting:
		return "completing"
	case StateCanceled:
		return "canceled"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Body is the loop a Handle runs. It must return promptly once h.Canceled
// reports true and must keep its own cursor so a later call continues where
// the previous one stopped.
type Body func(ctx context.Context, h *Handle)

// Outcome is passed to the completion callback.
type Outcome struct {
	Name     string
	Canceled bool
	Elapsed  time.Duration
}

// Handle owns one background loop.
type Handle struct {
	name      string
	body      Body
	scheduler Scheduler
	onDone    func(Outcome)
	logger    *slog.Logger

	// running flips to false when the body returns.
	running atomic.Bool
	wg      sync.WaitGroup

	mu         sync.Mutex
	state      State
	canceled   bool
	paused     bool
	finished   bool
	subscribed bool
	sub        Subscription
	ctx        context.Context
	stop       context.CancelFunc
	started    time.Time
}

// New prepares a handle. onDone may be nil.
func New(name string, body Body, scheduler Scheduler, onDone func(Outcome), logger *slog.Logger) *Handle {
	return &Handle{
		name:      name,
		body:      body,
		scheduler: scheduler,
		onDone:    onDone,
		logger:    logging.NewComponentLogger(logger, "task").With(logging.String("task", name)),
		state:     StateIdle,
	}
}

// Name returns the handle name.
func (h *Handle) Name() string { return h.name }

// Start launches the body and subscribes the completion poll. Cancelling ctx
// has the same effect on the body as RequestCancel.
func (h *Handle) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	h.mu.Lock()
	if h.state != StateIdle {
		state := h.state
		h.mu.Unlock()
		return fmt.Errorf("start %s: already %s", h.name, state)
	}
	h.ctx, h.stop = context.WithCancel(ctx)
	h.state = StateRunning
	h.started = time.Now()
	if h.scheduler != nil {
		h.sub = h.scheduler.Subscribe(h.Poll)
		h.subscribed = true
	}
	h.launchLocked()
	h.mu.Unlock()

	h.logger.Debug("task started")
	return nil
}

func (h *Handle) launchLocked() {
	ctx := h.ctx
	h.running.Store(true)
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		defer h.running.Store(false)
		h.body(ctx, h)
	}()
}

// Pause stops the body and waits for it to return. The operation is not
// finished; Resume continues it.
func (h *Handle) Pause() error {
	h.mu.Lock()
	if h.state != StateRunning {
		h.mu.Unlock()
		return fmt.Errorf("pause %s: %w", h.name, ErrNotRunning)
	}
	h.canceled = true
	h.paused = true
	h.state = StatePaused
	h.mu.Unlock()

	h.wg.Wait()
	h.logger.Debug("task paused")
	return nil
}

// Resume clears the cancellation flag and runs the body again.
func (h *Handle) Resume() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state != StatePaused {
		return fmt.Errorf("resume %s: %w", h.name, ErrNotPaused)
	}
	h.canceled = false
	h.paused = false
	h.state = StateRunning
	h.launchLocked()
	h.logger.Debug("task resumed")
	return nil
}

// Cancel stops the body and blocks until it has returned. The completion
// callback still runs on the next poll with Outcome.Canceled set.
func (h *Handle) Cancel() error {
	h.mu.Lock()
	if h.state != StateRunning && h.state != StatePaused {
		h.mu.Unlock()
		return fmt.Errorf("cancel %s: %w", h.name, ErrNotRunning)
	}
	h.canceled = true
	h.paused = false
	h.state = StateCanceled
	h.mu.Unlock()

	h.wg.Wait()
	h.logger.Debug("task canceled")
	return nil
}

// RequestCancel raises the cancellation flag without waiting.
func (h *Handle) RequestCancel() {
	h.mu.Lock()
	h.canceled = true
	h.mu.Unlock()
}

// Join waits for the body to return.
func (h *Handle) Join() { h.wg.Wait() }

// Canceled reports whether the body should stop before its next unit of work.
func (h *Handle) Canceled() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.canceled {
		return true
	}
	return h.ctx != nil && h.ctx.Err() != nil
}

// Running reports whether the body goroutine is live.
func (h *Handle) Running() bool { return h.running.Load() }

// State returns the lifecycle state.
func (h *Handle) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Finished reports whether the completion callback ran or the handle was detached.
func (h *Handle) Finished() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.finished
}

// Poll is the per-tick completion check. Once the body has returned while the
// handle is not paused it unsubscribes itself and invokes the completion
// callback. Later polls do nothing.
func (h *Handle) Poll() {
	if h.running.Load() {
		return
	}
	h.mu.Lock()
	if h.finished || h.paused || h.state == StateIdle {
		h.mu.Unlock()
		return
	}
	h.finished = true
	canceled := h.canceled || (h.ctx != nil && h.ctx.Err() != nil)
	if canceled {
		h.state = StateCanceled
	} else {
		h.state = StateCompleting
	}
	h.unsubscribeLocked()
	if h.stop != nil {
		h.stop()
	}
	outcome := Outcome{Name: h.name, Canceled: canceled, Elapsed: time.Since(h.started)}
	onDone := h.onDone
	h.mu.Unlock()

	h.logger.Debug("task finished", logging.Bool("canceled", canceled), logging.Duration("elapsed", outcome.Elapsed))
	if onDone != nil {
		onDone(outcome)
	}
}

// Detach drops the poll subscription and suppresses the completion callback.
// It does not stop the body; callers tearing down cancel first.
func (h *Handle) Detach() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.finished = true
	h.unsubscribeLocked()
	if h.stop != nil && !h.running.Load() {
		h.stop()
	}
}

func (h *Handle) unsubscribeLocked() {
	if h.subscribed && h.scheduler != nil {
		h.scheduler.Unsubscribe(h.sub)
	}
	h.subscribed = false
}
