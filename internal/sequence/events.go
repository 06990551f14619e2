package sequence

import (
	"sync"
	"time"
)

// Event is delivered once per finished operation, whether it succeeded,
// failed or was canceled.
type Event struct {
	Kind EventKind
	// Sequence is the controller that finished; it is not owned by the event.
	Sequence *Controller
	RunID    string
	// Folder is the import source or export destination root.
	Folder string
	// Frames counts slots for import and load, files written for export.
	Frames int
	// Failed counts slots that failed to decode, or frames export could not write.
	Failed    int
	Skipped   int
	Succeeded bool
	Canceled  bool
	Err       error
	Elapsed   time.Duration
}

// Outcome is the label used by metrics and the catalog.
func (e Event) Outcome() string {
	switch {
	case e.Succeeded:
		return "succeeded"
	case e.Canceled:
		return "canceled"
	default:
		return "failed"
	}
}

type listener struct {
	id int
	fn func(Event)
}

// OnImportComplete registers fn for every import completion.
func (c *Controller) OnImportComplete(fn func(Event)) (unsubscribe func()) {
	return c.subscribe(EventImportComplete, fn)
}

// OnExportComplete registers fn for every export completion.
func (c *Controller) OnExportComplete(fn func(Event)) (unsubscribe func()) {
	return c.subscribe(EventExportComplete, fn)
}

// OnLoadComplete registers fn for every in-memory load completion.
func (c *Controller) OnLoadComplete(fn func(Event)) (unsubscribe func()) {
	return c.subscribe(EventLoadComplete, fn)
}

// Await returns a channel that receives the next event of kind and is then
// closed. The subscription removes itself after delivery.
func (c *Controller) Await(kind EventKind) <-chan Event {
	ch := make(chan Event, 1)
	var once sync.Once

	c.evMu.Lock()
	defer c.evMu.Unlock()
	var id int
	id = c.addListenerLocked(kind, func(ev Event) {
		once.Do(func() {
			ch <- ev
			close(ch)
			c.removeListener(kind, id)
		})
	})
	return ch
}

func (c *Controller) subscribe(kind EventKind, fn func(Event)) func() {
	if fn == nil {
		return func() {}
	}
	c.evMu.Lock()
	id := c.addListenerLocked(kind, fn)
	c.evMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { c.removeListener(kind, id) })
	}
}

func (c *Controller) addListenerLocked(kind EventKind, fn func(Event)) int {
	c.nextEvID++
	id := c.nextEvID
	c.listeners[kind] = append(c.listeners[kind], listener{id: id, fn: fn})
	return id
}

func (c *Controller) removeListener(kind EventKind, id int) {
	c.evMu.Lock()
	defer c.evMu.Unlock()
	list := c.listeners[kind]
	for i, l := range list {
		if l.id == id {
			c.listeners[kind] = append(list[:i:i], list[i+1:]...)
			return
		}
	}
}

// emit calls the listeners registered for ev.Kind outside every lock, so a
// listener may query or drive the controller.
func (c *Controller) emit(ev Event) {
	ev.Sequence = c
	c.evMu.Lock()
	list := make([]listener, len(c.listeners[ev.Kind]))
	copy(list, c.listeners[ev.Kind])
	c.evMu.Unlock()

	c.metrics.OperationFinished(ev.Kind.Operation(), ev.Outcome(), ev.Elapsed)
	for _, l := range list {
		l.fn(ev)
	}
}
