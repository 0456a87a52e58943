package u

import (
	"sync"
	"time"
)

// Debouncer calls a function once after a burst of Debounce() calls.
// The first call in a burst starts the timer, calls made while
// the timer is running are collapsed into that one.
type Debouncer struct {
	Timeout time.Duration

	mu           sync.Mutex
	isDebouncing bool
	f            func()
}

func (d *Debouncer) run() {
	// subtle:
	//  - grab and clear f under lock to avoid data races with Debounce
	//  - set isDebouncing to false before calling f() to minimize the possibility
	//    of Debounce() not registering a function to call
	d.mu.Lock()
	f := d.f
	d.f = nil
	d.isDebouncing = false
	d.mu.Unlock()
	if f != nil {
		f()
	}
}

// Debounce schedules f to run after Timeout unless a call is already
// scheduled, in which case f replaces the scheduled function.
func (d *Debouncer) Debounce(f func()) {
	PanicIf(d.Timeout == 0, "debounce timeout is 0")
	d.mu.Lock()
	defer d.mu.Unlock()
	d.f = f
	if d.isDebouncing {
		return
	}
	d.isDebouncing = true
	time.AfterFunc(d.Timeout, d.run)
}
