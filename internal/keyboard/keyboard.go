// Package keyboard exposes on-screen keyboard geometry as an explicit event
// source the screen container subscribes to and releases on teardown.
package keyboard

import (
	"context"
	"sync"
	"time"

	"github.com/go-rod/rod"
)

// Event is one observed keyboard geometry change.
type Event struct {
	// Height of the keyboard inset in CSS pixels.
	Height float64 `json:"height"`
	// Visible is true while the keyboard occludes part of the layout.
	Visible bool `json:"visible"`
}

// PollFunc samples the current keyboard inset.
type PollFunc func(ctx context.Context) (Event, error)

// Monitor polls a PollFunc on an interval and fans out changes to
// subscribers. Identical consecutive samples are not re-delivered.
type Monitor struct {
	poll     PollFunc
	interval time.Duration

	mu     sync.Mutex
	subs   map[int]chan Event
	nextID int
	last   *Event
}

func NewMonitor(poll PollFunc, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}
	return &Monitor{poll: poll, interval: interval, subs: make(map[int]chan Event)}
}

// NewPageMonitor samples the page's visualViewport. The visual viewport
// shrinks under the on-screen keyboard while the layout viewport does not;
// the difference is the inset.
func NewPageMonitor(page *rod.Page, interval time.Duration) *Monitor {
	poll := func(ctx context.Context) (Event, error) {
		res, err := page.Context(ctx).Evaluate(&rod.EvalOptions{
			JS: `
			() => {
				const vv = window.visualViewport;
				if (!vv) return { inset: 0 };
				return { inset: Math.max(0, window.innerHeight - vv.height - vv.offsetTop) };
			}
			`,
			ByValue:      true,
			AwaitPromise: true,
		})
		if err != nil || res == nil {
			return Event{}, err
		}
		inset := res.Value.Get("inset").Num()
		return Event{Height: inset, Visible: inset > 0}, nil
	}
	return NewMonitor(poll, interval)
}

// Subscribe registers a listener. The returned release func must be called
// on teardown; after release the channel receives nothing further.
func (m *Monitor) Subscribe() (<-chan Event, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextID
	m.nextID++
	ch := make(chan Event, 4)
	m.subs[id] = ch

	release := func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if sub, ok := m.subs[id]; ok {
			delete(m.subs, id)
			close(sub)
		}
	}
	return ch, release
}

// Run samples until the context ends. Poll errors are skipped; the page may
// be mid-navigation.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ev, err := m.poll(ctx)
			if err != nil {
				continue
			}
			m.publish(ev)
		}
	}
}

func (m *Monitor) publish(ev Event) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.last != nil && *m.last == ev {
		return
	}
	last := ev
	m.last = &last

	for _, sub := range m.subs {
		// Drop rather than block when a subscriber lags.
		select {
		case sub <- ev:
		default:
		}
	}
}
