package sequence_test

import (
	"image"
	"sync"
	"testing"
	"time"

	"imageseq/internal/codec"
	"imageseq/internal/framestore"
	"imageseq/internal/sequence"
)

func newController(t *testing.T, mutate func(*sequence.Options), deps sequence.Deps) *sequence.Controller {
	t.Helper()
	opts := sequence.DefaultOptions()
	opts.ImportDelay = 0
	opts.ExportDelay = 0
	opts.Timestamp = "run"
	if mutate != nil {
		mutate(&opts)
	}
	c := sequence.New(opts, deps)
	t.Cleanup(c.Close)
	return c
}

func synchronous(o *sequence.Options) {
	o.ThreadedImport = false
	o.ThreadedExport = false
}

// awaitEvent ticks the controller until ch delivers.
func awaitEvent(t *testing.T, c *sequence.Controller, ch <-chan sequence.Event) sequence.Event {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case ev := <-ch:
			return ev
		case <-deadline:
			t.Fatal("timed out waiting for completion event")
		default:
		}
		c.Tick()
		time.Sleep(time.Millisecond)
	}
}

// eventCounter counts deliveries per kind.
type eventCounter struct {
	mu     sync.Mutex
	counts map[sequence.EventKind]int
	last   map[sequence.EventKind]sequence.Event
}

func countEvents(c *sequence.Controller) *eventCounter {
	ec := &eventCounter{
		counts: make(map[sequence.EventKind]int),
		last:   make(map[sequence.EventKind]sequence.Event),
	}
	record := func(ev sequence.Event) {
		ec.mu.Lock()
		ec.counts[ev.Kind]++
		ec.last[ev.Kind] = ev
		ec.mu.Unlock()
	}
	c.OnImportComplete(record)
	c.OnExportComplete(record)
	c.OnLoadComplete(record)
	return ec
}

func (ec *eventCounter) count(kind sequence.EventKind) int {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	return ec.counts[kind]
}

func (ec *eventCounter) lastEvent(kind sequence.EventKind) sequence.Event {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	return ec.last[kind]
}

type countingUploader struct {
	mu      sync.Mutex
	calls   int
	filters []framestore.Filter
}

func (u *countingUploader) Upload(_ image.Image, f framestore.Filter) (framestore.Handle, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.calls++
	u.filters = append(u.filters, f)
	return u.calls, nil
}

func (u *countingUploader) count() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.calls
}

// countingDecoder decodes through the real codec and counts calls per path.
// When step is non-nil every decode waits for one value (or its close).
type countingDecoder struct {
	next codec.Decoder
	step chan struct{}

	mu    sync.Mutex
	calls map[string]int
}

func newCountingDecoder() *countingDecoder {
	return &countingDecoder{next: codec.New(), calls: make(map[string]int)}
}

func (d *countingDecoder) Decode(path string) (image.Image, error) {
	if d.step != nil {
		<-d.step
	}
	d.mu.Lock()
	d.calls[path]++
	d.mu.Unlock()
	return d.next.Decode(path)
}

func (d *countingDecoder) total() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, c := range d.calls {
		n += c
	}
	return n
}

func (d *countingDecoder) maxPerPath() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	most := 0
	for _, c := range d.calls {
		most = max(most, c)
	}
	return most
}
