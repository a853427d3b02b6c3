package clock

import (
	"sort"
	"sync"
	"time"
)

// Manual is a Clock that only moves when told to. Callbacks run synchronously
// inside Advance, in deadline order.
type Manual struct {
	mu      sync.Mutex
	now     time.Time
	pending []*manualTimer
}

func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *Manual) AfterFunc(d time.Duration, f func()) Timer {
	m.mu.Lock()
	defer m.mu.Unlock()

	t := &manualTimer{clock: m, left: d, deadline: m.now.Add(d), f: f, active: true}
	m.pending = append(m.pending, t)
	return t
}

// Advance moves the clock forward by d, firing every timer that expires on the way.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	end := m.now.Add(d)
	m.mu.Unlock()

	for {
		m.mu.Lock()
		sort.SliceStable(m.pending, func(i, j int) bool { return m.pending[i].deadline.Before(m.pending[j].deadline) })

		var due *manualTimer
		for i, t := range m.pending {
			if t.active && !t.deadline.After(end) {
				due = t
				m.pending = append(m.pending[:i], m.pending[i+1:]...)
				break
			}
		}

		if due == nil {
			m.now = end
			m.mu.Unlock()
			return
		}

		m.now = due.deadline
		due.active = false
		m.mu.Unlock()

		due.f()
	}
}

// Pending returns the number of armed timers.
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, t := range m.pending {
		if t.active {
			n++
		}
	}
	return n
}

type manualTimer struct {
	clock    *Manual
	left     time.Duration
	deadline time.Time
	f        func()
	active   bool
	paused   bool
}

func (t *manualTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()

	if !t.active && !t.paused {
		return false
	}
	t.active, t.paused = false, false
	return true
}

func (t *manualTimer) Pause() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()

	if !t.active {
		return false
	}
	t.active, t.paused = false, true
	t.left = t.deadline.Sub(t.clock.now)
	return true
}

func (t *manualTimer) Resume() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()

	if !t.paused {
		return false
	}
	t.active, t.paused = true, false
	t.deadline = t.clock.now.Add(t.left)
	return true
}
