package sequence_test

import (
	"context"
	"errors"
	"testing"

	"imageseq/internal/framestore"
	"imageseq/internal/sequence"
	"imageseq/internal/testsupport"
)

func loadedController(t *testing.T, n int, deps sequence.Deps) *sequence.Controller {
	t.Helper()
	c := newController(t, nil, deps)
	c.StartLoading(n)
	for i := 0; i < n; i++ {
		if _, err := c.AddFrame(testsupport.Frame(2, 2, uint8(i)), ""); err != nil {
			t.Fatalf("AddFrame: %v", err)
		}
	}
	if err := c.CompleteLoading(); err != nil {
		t.Fatalf("CompleteLoading: %v", err)
	}
	return c
}

func TestLoadingLifecycle(t *testing.T) {
	c := newController(t, func(o *sequence.Options) { o.NamePadding = 4 }, sequence.Deps{})
	events := countEvents(c)

	c.StartLoading(3)
	if !c.IsLoading() || c.Status() != sequence.StatusLoading {
		t.Fatalf("expected loading status, got %s", c.Status())
	}
	if _, err := c.AddFrame(testsupport.Frame(6, 4, 0), ""); err != nil {
		t.Fatal(err)
	}
	if got := c.CompletionPercent(); got < 0.33 || got > 0.34 {
		t.Fatalf("expected a third complete, got %v", got)
	}
	if _, err := c.AddFrame(testsupport.Frame(6, 4, 1), "custom"); err != nil {
		t.Fatal(err)
	}
	if _, err := c.AddFrame(testsupport.Frame(6, 4, 2), ""); err != nil {
		t.Fatal(err)
	}
	if err := c.CompleteLoading(); err != nil {
		t.Fatalf("CompleteLoading: %v", err)
	}

	if !c.IsLoaded() || c.IsLoading() || !c.IsReady() {
		t.Fatalf("expected loaded and ready, got %s", c.Status())
	}
	if c.PercentLoaded() != 1 {
		t.Fatalf("expected loaded percent 1, got %v", c.PercentLoaded())
	}
	if c.Width() != 6 || c.Height() != 4 {
		t.Fatalf("unexpected dimensions %dx%d", c.Width(), c.Height())
	}
	var names []string
	for _, slot := range c.Frames() {
		names = append(names, slot.Identifier)
	}
	if names[0] != "0000" || names[1] != "custom" || names[2] != "0001" {
		t.Fatalf("unexpected identifiers %v", names)
	}
	if events.count(sequence.EventLoadComplete) != 1 {
		t.Fatal("expected one load event")
	}
}

func TestCompleteLoadingWithoutFrames(t *testing.T) {
	c := newController(t, nil, sequence.Deps{})
	events := countEvents(c)

	if _, err := c.AddFrame(testsupport.Frame(1, 1, 0), "x"); !errors.Is(err, sequence.ErrNotLoading) {
		t.Fatalf("expected ErrNotLoading, got %v", err)
	}

	c.StartLoading(0)
	if c.CompletionPercent() != 0 {
		t.Fatal("zero expected length must report zero, not divide")
	}
	if _, err := c.AddFrame(nil, ""); err != nil {
		t.Fatal(err)
	}
	if err := c.CompleteLoading(); !errors.Is(err, sequence.ErrNoFrames) {
		t.Fatalf("expected ErrNoFrames, got %v", err)
	}
	if c.IsLoaded() || c.Status() != sequence.StatusUndefined {
		t.Fatalf("expected failed load, got %s", c.Status())
	}
	if ev := events.lastEvent(sequence.EventLoadComplete); ev.Succeeded || events.count(sequence.EventLoadComplete) != 1 {
		t.Fatalf("expected one failed load event, got %+v", ev)
	}
	if err := c.CompleteLoading(); !errors.Is(err, sequence.ErrNotLoading) {
		t.Fatalf("expected ErrNotLoading on second completion, got %v", err)
	}
}

func TestNavigationRequiresReady(t *testing.T) {
	c := newController(t, nil, sequence.Deps{})
	if err := c.SetCurrentFrameIndex(0); !errors.Is(err, sequence.ErrNotReady) {
		t.Fatalf("expected ErrNotReady, got %v", err)
	}
	if err := c.SetFrameAtPercent(0.5); !errors.Is(err, sequence.ErrNotReady) {
		t.Fatalf("expected ErrNotReady, got %v", err)
	}
	if _, err := c.FrameForTime(1); !errors.Is(err, sequence.ErrNotReady) {
		t.Fatalf("expected ErrNotReady, got %v", err)
	}
	if err := c.PreloadFrame(0); !errors.Is(err, sequence.ErrNotReady) {
		t.Fatalf("expected ErrNotReady, got %v", err)
	}
	if c.CompletionPercent() != 0 {
		t.Fatal("undefined status should report zero")
	}
}

func TestBindSameIndexUploadsOnce(t *testing.T) {
	uploader := &countingUploader{}
	c := loadedController(t, 4, sequence.Deps{Uploader: uploader})
	c.SetMinMagFilter(9728, 9729)

	if err := c.SetCurrentFrameIndex(1); err != nil {
		t.Fatalf("SetCurrentFrameIndex: %v", err)
	}
	if err := c.SetCurrentFrameIndex(1); err != nil {
		t.Fatalf("SetCurrentFrameIndex: %v", err)
	}
	if err := c.SetCurrentFrameIndex(5); err != nil {
		t.Fatalf("SetCurrentFrameIndex: %v", err)
	}
	if uploader.count() != 1 {
		t.Fatalf("expected one upload, got %d", uploader.count())
	}
	if got := uploader.filters[0]; got != (framestore.Filter{Min: 9728, Mag: 9729}) {
		t.Fatalf("filter not passed through: %+v", got)
	}

	handle, err := c.FrameAtIndex(-3)
	if err != nil {
		t.Fatalf("FrameAtIndex: %v", err)
	}
	if c.CurrentFrameIndex() != 0 || c.LoadedFrameIndex() != 0 {
		t.Fatalf("negative index should clamp to 0, got %d", c.CurrentFrameIndex())
	}
	if handle != 2 || c.Handle() != 2 || uploader.count() != 2 {
		t.Fatalf("expected second upload handle, got %v", handle)
	}
	if c.Pixels() == nil {
		t.Fatal("expected bound pixels")
	}
}

func TestPercentAndTimeNavigation(t *testing.T) {
	c := loadedController(t, 10, sequence.Deps{})

	if err := c.SetFrameAtPercent(1.2); err != nil {
		t.Fatalf("SetFrameAtPercent: %v", err)
	}
	if c.CurrentFrameIndex() != c.FrameIndexAtPercent(0.2) || c.CurrentFrameIndex() != 2 {
		t.Fatalf("expected wrapped index 2, got %d", c.CurrentFrameIndex())
	}

	c.SetFrameRate(10)
	c.SetFrameRate(-1)
	if c.LengthInSeconds() != 1 {
		t.Fatalf("expected 1s at 10fps, got %v", c.LengthInSeconds())
	}
	if _, err := c.FrameForTime(0.55); err != nil {
		t.Fatalf("FrameForTime: %v", err)
	}
	if c.CurrentFrameIndex() != 5 {
		t.Fatalf("expected frame 5 at 0.55s, got %d", c.CurrentFrameIndex())
	}
	if _, err := c.FrameAtPercent(0.999); err != nil {
		t.Fatal(err)
	}
	if c.CurrentFrameIndex() != 9 {
		t.Fatalf("expected last frame, got %d", c.CurrentFrameIndex())
	}
	if p := c.PercentAtFrameIndex(9); p != 1 {
		t.Fatalf("expected percent 1 at last index, got %v", p)
	}

	last := -1.0
	for p := 0.0; p < 1; p += 0.01 {
		got := c.PercentAtFrameIndex(c.FrameIndexAtPercent(p))
		if got < last {
			t.Fatalf("percent mapping not monotonic at %v", p)
		}
		last = got
	}
}

func TestFailedFrameKeepsDisplay(t *testing.T) {
	uploader := &countingUploader{}
	c := newController(t, nil, sequence.Deps{Uploader: uploader})
	c.StartLoading(2)
	if _, err := c.AddFrame(testsupport.Frame(2, 2, 0), ""); err != nil {
		t.Fatal(err)
	}
	if _, err := c.AddFrame(nil, "broken"); err != nil {
		t.Fatal(err)
	}
	if err := c.CompleteLoading(); err != nil {
		t.Fatalf("CompleteLoading: %v", err)
	}

	if err := c.SetCurrentFrameIndex(0); err != nil {
		t.Fatal(err)
	}
	if err := c.SetCurrentFrameIndex(1); err != nil {
		t.Fatalf("failed frame should be a quiet no-op, got %v", err)
	}
	if c.LoadedFrameIndex() != 0 || c.CurrentFrameIndex() != 1 {
		t.Fatalf("expected display to stay on 0, got bound=%d current=%d", c.LoadedFrameIndex(), c.CurrentFrameIndex())
	}
	if uploader.count() != 1 {
		t.Fatalf("expected a single upload, got %d", uploader.count())
	}
}

func TestPreloadFrameDecodesWithoutBinding(t *testing.T) {
	dir := t.TempDir()
	testsupport.WriteSequence(t, dir, 3, 2, 2)
	decoder := newCountingDecoder()
	c := newController(t, synchronous, sequence.Deps{Decoder: decoder})
	if err := c.StartImport(context.Background(), dir); err != nil {
		t.Fatal(err)
	}
	if err := c.PreloadFrame(2); err != nil {
		t.Fatalf("PreloadFrame: %v", err)
	}
	if decoder.total() != 2 || c.LoadedFrameIndex() != -1 {
		t.Fatalf("expected decode without bind, decodes=%d bound=%d", decoder.total(), c.LoadedFrameIndex())
	}
	if err := c.PreloadFrame(2); err != nil || decoder.total() != 2 {
		t.Fatal("preloading twice should not decode again")
	}
}

func TestCloseResetsEverything(t *testing.T) {
	c := loadedController(t, 3, sequence.Deps{})
	if err := c.SetCurrentFrameIndex(2); err != nil {
		t.Fatal(err)
	}
	c.Close()

	if c.TotalFrames() != 0 || c.IsLoaded() || c.Status() != sequence.StatusUndefined {
		t.Fatalf("expected empty undefined sequence, got %d frames %s", c.TotalFrames(), c.Status())
	}
	if c.Width() != -1 || c.LoadedFrameIndex() != -1 || c.CurrentFrameIndex() != 0 {
		t.Fatal("expected display state reset")
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	c := newController(t, nil, sequence.Deps{})
	calls := 0
	unsubscribe := c.OnLoadComplete(func(sequence.Event) { calls++ })

	c.StartLoading(1)
	_, _ = c.AddFrame(testsupport.Frame(1, 1, 0), "")
	_ = c.CompleteLoading()
	unsubscribe()
	unsubscribe()

	c.StartLoading(1)
	_, _ = c.AddFrame(testsupport.Frame(1, 1, 0), "")
	_ = c.CompleteLoading()
	if calls != 1 {
		t.Fatalf("expected one delivery, got %d", calls)
	}
}
