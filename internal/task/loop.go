package task

import (
	"context"
	"sync"
	"time"
)

// Subscription identifies a function registered with a Scheduler.
type Subscription uint64

// Scheduler invokes subscribed functions once per host tick.
type Scheduler interface {
	Subscribe(fn func()) Subscription
	Unsubscribe(id Subscription)
}

// Loop is a Scheduler driven by explicit ticks. Tick must only be called from
// one goroutine at a time; subscribing and unsubscribing are safe from any
// goroutine, including from inside a subscribed function.
type Loop struct {
	mu    sync.Mutex
	next  Subscription
	order []Subscription
	subs  map[Subscription]func()
}

// NewLoop returns an empty loop.
func NewLoop() *Loop {
	return &Loop{subs: make(map[Subscription]func())}
}

// Subscribe registers fn to run on every tick.
func (l *Loop) Subscribe(fn func()) Subscription {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.next++
	id := l.next
	l.subs[id] = fn
	l.order = append(l.order, id)
	return id
}

// Unsubscribe removes a registration. Unknown ids are ignored.
func (l *Loop) Unsubscribe(id Subscription) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.subs[id]; !ok {
		return
	}
	delete(l.subs, id)
	for i, existing := range l.order {
		if existing == id {
			l.order = append(l.order[:i], l.order[i+1:]...)
			break
		}
	}
}

// Len reports the number of live subscriptions.
func (l *Loop) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.subs)
}

// Tick runs every subscribed function in registration order. Functions
// removed by an earlier function during the same tick are skipped.
func (l *Loop) Tick() {
	l.mu.Lock()
	ids := append([]Subscription(nil), l.order...)
	l.mu.Unlock()

	for _, id := range ids {
		l.mu.Lock()
		fn, ok := l.subs[id]
		l.mu.Unlock()
		if ok {
			fn()
		}
	}
}

// Run ticks the loop every interval until ctx is done.
func (l *Loop) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = 10 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			l.Tick()
		}
	}
}
