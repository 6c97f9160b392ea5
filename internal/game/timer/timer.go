// Package timer provides deterministic, tick-driven timers for a single world.
//
// Timers never fire on their own goroutine. A world advances its Manager once per tick
// and every expired callback runs on the caller's goroutine, in deadline order.
package timer

import (
	"sort"
	"time"
)

// Handle identifies a timer slot owned by a caller. The zero value is an empty handle.
// Setting a timer on a handle that already holds one replaces it.
type Handle struct {
	id uint64
}

// IsValid reports whether the handle has ever been bound to a timer.
func (h Handle) IsValid() bool {
	return h.id != 0
}

type entry struct {
	id       uint64
	deadline time.Duration
	seq      uint64
	fn       func()
}

// Manager owns every timer of one world. It is not safe for concurrent use.
type Manager struct {
	now    time.Duration
	nextID uint64
	seq    uint64
	timers map[uint64]*entry
}

// NewManager returns a Manager whose clock starts at zero.
//
// Postcondition: no timers are active.
func NewManager() *Manager {
	return &Manager{timers: make(map[uint64]*entry)}
}

// Now returns the elapsed world time.
func (m *Manager) Now() time.Duration {
	return m.now
}

// Set schedules fn to run once after delay, replacing any timer already bound to h.
// A delay <= 0 fires on the next Advance.
//
// Precondition: h and fn must be non-nil.
// Postcondition: IsActive(*h) is true until fn runs or Clear is called.
func (m *Manager) Set(h *Handle, delay time.Duration, fn func()) {
	m.Clear(h)
	if delay < 0 {
		delay = 0
	}
	m.nextID++
	m.seq++
	h.id = m.nextID
	m.timers[h.id] = &entry{
		id:       h.id,
		deadline: m.now + delay,
		seq:      m.seq,
		fn:       fn,
	}
}

// IsActive reports whether the timer bound to h is still pending.
func (m *Manager) IsActive(h Handle) bool {
	if !h.IsValid() {
		return false
	}
	_, ok := m.timers[h.id]
	return ok
}

// Remaining returns the time left on the timer bound to h, or zero if it is not active.
func (m *Manager) Remaining(h Handle) time.Duration {
	e, ok := m.timers[h.id]
	if !ok {
		return 0
	}
	if r := e.deadline - m.now; r > 0 {
		return r
	}
	return 0
}

// Clear cancels the timer bound to h. Safe to call multiple times.
//
// Postcondition: IsActive(*h) is false.
func (m *Manager) Clear(h *Handle) {
	if h == nil || !h.IsValid() {
		return
	}
	delete(m.timers, h.id)
}

// ActiveCount returns the number of pending timers.
func (m *Manager) ActiveCount() int {
	return len(m.timers)
}

// Advance moves the clock forward by dt and runs every timer whose deadline has passed.
// The clock is stepped to each deadline before its callback runs, so Now inside a
// callback is the deadline. Callbacks may set or clear timers; a timer set by a callback
// with a deadline inside this step fires within the same Advance.
//
// Precondition: dt >= 0.
func (m *Manager) Advance(dt time.Duration) {
	target := m.now
	if dt > 0 {
		target += dt
	}
	for {
		e := m.next(target)
		if e == nil {
			break
		}
		delete(m.timers, e.id)
		if e.deadline > m.now {
			m.now = e.deadline
		}
		e.fn()
	}
	m.now = target
}

// next returns the earliest timer due at or before target.
func (m *Manager) next(target time.Duration) *entry {
	var due []*entry
	for _, e := range m.timers {
		if e.deadline <= target {
			due = append(due, e)
		}
	}
	if len(due) == 0 {
		return nil
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].deadline != due[j].deadline {
			return due[i].deadline < due[j].deadline
		}
		return due[i].seq < due[j].seq
	})
	return due[0]
}
