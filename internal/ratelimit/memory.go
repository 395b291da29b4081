package ratelimit

import (
	"context"
	"sync"
	"time"
)

// WindowState tracks a single key's usage within its current window.
type WindowState struct {
	Count     int
	ResetTime time.Time
}

// MemoryLimiter keeps window state in process memory.
type MemoryLimiter struct {
	Limits map[string]RateLimit
	Clock  func() time.Time

	// OnReject, when set, is called for every rejected request.
	OnReject func(class, clientID string)

	mu      sync.Mutex
	windows map[string]*WindowState
}

// NewMemoryLimiter returns a limiter for the given class budgets.
func NewMemoryLimiter(limits map[string]RateLimit) *MemoryLimiter {
	return &MemoryLimiter{
		Limits:  limits,
		windows: make(map[string]*WindowState),
	}
}

// IsRateLimited records the request and reports whether it exceeds the budget.
func (m *MemoryLimiter) IsRateLimited(_ context.Context, class, clientID string) (bool, error) {
	limit := ResolveLimit(m.Limits, class)
	now := m.now()
	k := Key(class, clientID)

	m.mu.Lock()
	if m.windows == nil {
		m.windows = make(map[string]*WindowState)
	}

	state, ok := m.windows[k]
	if !ok || now.After(state.ResetTime) {
		m.windows[k] = &WindowState{Count: 1, ResetTime: now.Add(limit.WindowDuration)}
		m.mu.Unlock()
		return false, nil
	}

	if state.Count >= limit.RequestsPerWindow {
		m.mu.Unlock()
		if m.OnReject != nil {
			m.OnReject(class, clientID)
		}
		return true, nil
	}

	state.Count++
	m.mu.Unlock()
	return false, nil
}

// State returns a copy of the window for a key, if any.
func (m *MemoryLimiter) State(class, clientID string) (WindowState, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	state, ok := m.windows[Key(class, clientID)]
	if !ok {
		return WindowState{}, false
	}
	return *state, true
}

// Size reports the number of tracked keys.
func (m *MemoryLimiter) Size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.windows)
}

// Sweep drops windows that expired more than grace ago and returns the count removed.
func (m *MemoryLimiter) Sweep(grace time.Duration) int {
	cutoff := m.now().Add(-grace)

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for k, state := range m.windows {
		if state.ResetTime.Before(cutoff) {
			delete(m.windows, k)
			removed++
		}
	}
	return removed
}

// StartSweeper runs Sweep every interval until ctx is done. The grace period is
// the longest configured window. A non-positive interval disables sweeping.
func (m *MemoryLimiter) StartSweeper(ctx context.Context, interval time.Duration, onSweep func(removed, remaining int)) {
	if interval <= 0 {
		return
	}
	grace := LongestWindow(m.Limits)

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				removed := m.Sweep(grace)
				if onSweep != nil {
					onSweep(removed, m.Size())
				}
			}
		}
	}()
}

func (m *MemoryLimiter) now() time.Time {
	if m.Clock != nil {
		return m.Clock()
	}
	return time.Now().UTC()
}
