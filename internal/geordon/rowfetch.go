package geordon

import "time"

// RowFetch is the half-row fetch cursor over the half-open range [next, end).
// The zero value is idle.
type RowFetch struct {
	next         int
	end          int
	startedAt    time.Time
	lastActivity time.Time
}

// FetchState is a read-only view of the cursor.
type FetchState struct {
	Active       bool
	Next         int
	End          int
	StartedAt    time.Time
	LastActivity time.Time
}

// FetchStep reports one consumed half-row.
type FetchStep struct {
	Index   uint8
	Done    bool
	Next    uint8
	Elapsed time.Duration
}

// Begin replaces any in-flight range with [start, end) and returns the first
// index to request. Callers validate 0 <= start < end <= HalfRowCount.
func (f *RowFetch) Begin(start, end int, now time.Time) uint8 {
	f.next = start
	f.end = end
	f.startedAt = now
	f.lastActivity = now
	return uint8(start)
}

func (f *RowFetch) Active() bool {
	return f.next < f.end
}

// Current is the index the next GDHalfRow is applied to.
func (f *RowFetch) Current() (uint8, bool) {
	if !f.Active() {
		return 0, false
	}
	return uint8(f.next), true
}

func (f *RowFetch) Pending() int {
	if !f.Active() {
		return 0
	}
	return f.end - f.next
}

// Advance consumes the current index. ok is false when the cursor is idle.
func (f *RowFetch) Advance(now time.Time) (FetchStep, bool) {
	if !f.Active() {
		return FetchStep{}, false
	}
	step := FetchStep{Index: uint8(f.next)}
	f.next++
	f.lastActivity = now
	if !f.Active() {
		step.Done = true
		step.Elapsed = now.Sub(f.startedAt)
		f.reset()
		return step, true
	}
	step.Next = uint8(f.next)
	return step, true
}

// RetryDue reports whether strictly more than interval has passed since the
// last activity on an active cursor.
func (f *RowFetch) RetryDue(now time.Time, interval time.Duration) bool {
	return f.Active() && now.Sub(f.lastActivity) > interval
}

func (f *RowFetch) Touch(now time.Time) {
	if f.Active() {
		f.lastActivity = now
	}
}

func (f *RowFetch) State() FetchState {
	return FetchState{
		Active:       f.Active(),
		Next:         f.next,
		End:          f.end,
		StartedAt:    f.startedAt,
		LastActivity: f.lastActivity,
	}
}

func (f *RowFetch) reset() {
	*f = RowFetch{}
}
