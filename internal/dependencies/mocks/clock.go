package mocks

import (
	"sync"
	"time"

	"github.com/hexhold/hexhold/internal/dependencies/clock"
)

// MockClock is a mock implementation of Clock for testing. Timers
// created through After never fire on their own; tests fire them with
// FireTimers or by advancing past their deadline.
type MockClock struct {
	mu          sync.Mutex
	currentTime time.Time
	timers      []*mockTimer
}

type mockTimer struct {
	deadline time.Time
	ch       chan time.Time
	fired    bool
}

// Ensure MockClock implements Clock
var _ clock.Clock = (*MockClock)(nil)

// NewMockClock creates a MockClock set to the given time
func NewMockClock(t time.Time) *MockClock {
	return &MockClock{currentTime: t}
}

// Now returns the mocked current time
func (c *MockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentTime
}

// After registers a timer that fires when the mock time passes its deadline
func (c *MockClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &mockTimer{
		deadline: c.currentTime.Add(d),
		ch:       make(chan time.Time, 1),
	}
	c.timers = append(c.timers, t)
	return t.ch
}

// Advance moves the clock forward, firing any timer whose deadline has passed
func (c *MockClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.currentTime = c.currentTime.Add(d)
	c.fireDueLocked()
}

// Set sets the clock to the given time, firing due timers
func (c *MockClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.currentTime = t
	c.fireDueLocked()
}

// PendingTimers reports how many registered timers have not yet fired
func (c *MockClock) PendingTimers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.fired {
			n++
		}
	}
	return n
}

func (c *MockClock) fireDueLocked() {
	for _, t := range c.timers {
		if !t.fired && !t.deadline.After(c.currentTime) {
			t.fired = true
			t.ch <- c.currentTime
		}
	}
}
