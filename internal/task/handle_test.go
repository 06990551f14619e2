package task_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"imageseq/internal/task"
)

// steppedBody processes total items, one per value received on step, and
// records how often each item was handled.
type steppedBody struct {
	total  int
	step   chan struct{}
	cursor atomic.Int64

	mu   sync.Mutex
	seen map[int]int
}

func newSteppedBody(total int) *steppedBody {
	return &steppedBody{total: total, step: make(chan struct{}, total), seen: make(map[int]int)}
}

func (b *steppedBody) run(_ context.Context, h *task.Handle) {
	for int(b.cursor.Load()) < b.total {
		if h.Canceled() {
			return
		}
		select {
		case <-b.step:
			i := int(b.cursor.Load())
			b.mu.Lock()
			b.seen[i]++
			b.mu.Unlock()
			b.cursor.Add(1)
		case <-time.After(time.Millisecond):
		}
	}
}

func (b *steppedBody) feed(n int) {
	for i := 0; i < n; i++ {
		b.step <- struct{}{}
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(time.Millisecond)
	}
}

type recorder struct {
	mu       sync.Mutex
	outcomes []task.Outcome
}

func (r *recorder) done(o task.Outcome) {
	r.mu.Lock()
	r.outcomes = append(r.outcomes, o)
	r.mu.Unlock()
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.outcomes)
}

func TestHandleCompletesOnPoll(t *testing.T) {
	loop := task.NewLoop()
	body := newSteppedBody(3)
	rec := &recorder{}
	h := task.New("import", body.run, loop, rec.done, nil)

	if err := h.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if loop.Len() != 1 {
		t.Fatalf("expected poll subscription, got %d", loop.Len())
	}
	loop.Tick()
	if rec.count() != 0 {
		t.Fatal("callback ran before the body finished")
	}

	body.feed(3)
	waitFor(t, func() bool { return !h.Running() })
	loop.Tick()
	loop.Tick()

	if rec.count() != 1 {
		t.Fatalf("expected exactly one completion, got %d", rec.count())
	}
	if rec.outcomes[0].Canceled || rec.outcomes[0].Name != "import" {
		t.Fatalf("unexpected outcome %+v", rec.outcomes[0])
	}
	if h.State() != task.StateCompleting || !h.Finished() {
		t.Fatalf("unexpected state %s", h.State())
	}
	if loop.Len() != 0 {
		t.Fatalf("expected poll to unsubscribe, %d left", loop.Len())
	}
	if err := h.Start(context.Background()); err == nil {
		t.Fatal("expected restart to be rejected")
	}
}

func TestHandlePauseResumeContinuesFromCursor(t *testing.T) {
	loop := task.NewLoop()
	body := newSteppedBody(20)
	rec := &recorder{}
	h := task.New("import", body.run, loop, rec.done, nil)
	if err := h.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	body.feed(10)
	waitFor(t, func() bool { return body.cursor.Load() == 10 })
	if err := h.Pause(); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	if h.Running() || h.State() != task.StatePaused {
		t.Fatalf("expected paused and stopped, state=%s running=%v", h.State(), h.Running())
	}
	loop.Tick()
	if rec.count() != 0 {
		t.Fatal("paused task must not complete")
	}
	if err := h.Pause(); !errors.Is(err, task.ErrNotRunning) {
		t.Fatalf("expected ErrNotRunning on double pause, got %v", err)
	}

	if err := h.Resume(); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if err := h.Resume(); !errors.Is(err, task.ErrNotPaused) {
		t.Fatalf("expected ErrNotPaused, got %v", err)
	}
	body.feed(10)
	waitFor(t, func() bool { return !h.Running() })
	loop.Tick()

	if rec.count() != 1 || rec.outcomes[0].Canceled {
		t.Fatalf("expected one successful completion, got %+v", rec.outcomes)
	}
	body.mu.Lock()
	defer body.mu.Unlock()
	for i := 0; i < 20; i++ {
		if body.seen[i] != 1 {
			t.Fatalf("item %d processed %d times", i, body.seen[i])
		}
	}
}

func TestHandleCancelIsSynchronous(t *testing.T) {
	loop := task.NewLoop()
	var processed atomic.Int64
	body := func(_ context.Context, h *task.Handle) {
		for i := 0; i < 100; i++ {
			if h.Canceled() {
				return
			}
			time.Sleep(2 * time.Millisecond)
			processed.Add(1)
		}
	}
	rec := &recorder{}
	h := task.New("export", body, loop, rec.done, nil)
	if err := h.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitFor(t, func() bool { return processed.Load() > 0 })

	if err := h.Cancel(); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if h.Running() {
		t.Fatal("Cancel returned while the body was still running")
	}
	after := processed.Load()
	if after >= 100 {
		t.Fatalf("expected cancel to stop early, processed %d", after)
	}
	time.Sleep(10 * time.Millisecond)
	if processed.Load() != after {
		t.Fatal("body kept running after Cancel")
	}

	loop.Tick()
	loop.Tick()
	if rec.count() != 1 || !rec.outcomes[0].Canceled {
		t.Fatalf("expected one canceled outcome, got %+v", rec.outcomes)
	}
	if err := h.Cancel(); !errors.Is(err, task.ErrNotRunning) {
		t.Fatalf("expected ErrNotRunning on second cancel, got %v", err)
	}
}

func TestHandleCancelWhilePaused(t *testing.T) {
	loop := task.NewLoop()
	body := newSteppedBody(5)
	rec := &recorder{}
	h := task.New("import", body.run, loop, rec.done, nil)
	if err := h.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := h.Pause(); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	if err := h.Cancel(); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	loop.Tick()
	if rec.count() != 1 || !rec.outcomes[0].Canceled {
		t.Fatalf("expected canceled outcome, got %+v", rec.outcomes)
	}
	if h.State() != task.StateCanceled {
		t.Fatalf("state = %s", h.State())
	}
}

func TestHandleContextCancellation(t *testing.T) {
	loop := task.NewLoop()
	body := newSteppedBody(5)
	rec := &recorder{}
	h := task.New("import", body.run, loop, rec.done, nil)
	ctx, cancel := context.WithCancel(context.Background())
	if err := h.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	cancel()
	waitFor(t, func() bool { return !h.Running() })
	loop.Tick()
	if rec.count() != 1 || !rec.outcomes[0].Canceled {
		t.Fatalf("expected canceled outcome, got %+v", rec.outcomes)
	}
}

func TestHandleDetachSuppressesCallback(t *testing.T) {
	loop := task.NewLoop()
	body := newSteppedBody(1)
	rec := &recorder{}
	h := task.New("import", body.run, loop, rec.done, nil)
	if err := h.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := h.Cancel(); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	h.Detach()
	loop.Tick()
	if rec.count() != 0 {
		t.Fatalf("detached handle must not call back, got %d", rec.count())
	}
	if loop.Len() != 0 {
		t.Fatalf("expected detach to unsubscribe, %d left", loop.Len())
	}
}

func TestHandleWithoutScheduler(t *testing.T) {
	rec := &recorder{}
	body := newSteppedBody(1)
	h := task.New("load", body.run, nil, rec.done, nil)
	if err := h.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	body.feed(1)
	h.Join()
	h.Poll()
	if rec.count() != 1 {
		t.Fatalf("manual Poll should complete, got %d", rec.count())
	}
	if got := task.StateIdle.String(); got != "idle" {
		t.Fatalf("StateIdle.String() = %q", got)
	}
}
