package transport

import (
	"sync"
	"time"

	"github.com/appnet-org/meshsar/pkg/logging"
	"go.uber.org/zap"
)

// TimerCallback is a function type for timer callbacks
type TimerCallback func()

type timer struct {
	name     string
	periodic bool
	callback TimerCallback
	stop     chan struct{}
}

// TimerManager runs named one-shot and periodic jobs, such as stats reports
// for a link. Callbacks run on their own goroutine; a panicking callback is
// logged and does not stop the manager.
type TimerManager struct {
	mu      sync.Mutex
	timers  map[string]*timer
	stopAll chan struct{}
	stopped bool
	wg      sync.WaitGroup
}

// NewTimerManager creates an empty timer manager.
func NewTimerManager() *TimerManager {
	return &TimerManager{
		timers:  make(map[string]*timer),
		stopAll: make(chan struct{}),
	}
}

// Schedule runs callback once after d. A timer with the same name is replaced.
func (tm *TimerManager) Schedule(name string, d time.Duration, callback TimerCallback) {
	tm.start(&timer{name: name, callback: callback, stop: make(chan struct{})}, d)
}

// SchedulePeriodic runs callback every interval until stopped. A timer with
// the same name is replaced.
func (tm *TimerManager) SchedulePeriodic(name string, interval time.Duration, callback TimerCallback) {
	tm.start(&timer{name: name, periodic: true, callback: callback, stop: make(chan struct{})}, interval)
}

func (tm *TimerManager) start(t *timer, d time.Duration) {
	tm.mu.Lock()
	if tm.stopped {
		tm.mu.Unlock()
		return
	}
	// Delete before close so StopTimer never closes the same channel twice.
	if existing, ok := tm.timers[t.name]; ok {
		delete(tm.timers, t.name)
		close(existing.stop)
	}
	tm.timers[t.name] = t
	tm.wg.Add(1)
	tm.mu.Unlock()

	go tm.run(t, d)
}

func (tm *TimerManager) run(t *timer, d time.Duration) {
	defer tm.wg.Done()

	if t.periodic {
		ticker := time.NewTicker(d)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				tm.execute(t)
			case <-t.stop:
				return
			case <-tm.stopAll:
				tm.remove(t)
				return
			}
		}
	}

	tt := time.NewTimer(d)
	defer tt.Stop()
	select {
	case <-tt.C:
		tm.execute(t)
		tm.remove(t)
	case <-t.stop:
	case <-tm.stopAll:
		tm.remove(t)
	}
}

// remove deletes t if it is still the registered timer for its name.
func (tm *TimerManager) remove(t *timer) {
	tm.mu.Lock()
	if tm.timers[t.name] == t {
		delete(tm.timers, t.name)
	}
	tm.mu.Unlock()
}

func (tm *TimerManager) execute(t *timer) {
	defer func() {
		if r := recover(); r != nil {
			logging.Error("Timer callback panicked", zap.String("timer", t.name), zap.Any("panic", r))
		}
	}()
	t.callback()
}

// StopTimer cancels the named timer and reports whether it existed.
func (tm *TimerManager) StopTimer(name string) bool {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	t, ok := tm.timers[name]
	if !ok {
		return false
	}
	delete(tm.timers, name)
	close(t.stop)
	return true
}

// HasTimer checks if a timer with the given name is pending.
func (tm *TimerManager) HasTimer(name string) bool {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	_, ok := tm.timers[name]
	return ok
}

// Stop cancels every timer and waits for running callbacks to return.
func (tm *TimerManager) Stop() {
	tm.mu.Lock()
	if tm.stopped {
		tm.mu.Unlock()
		return
	}
	tm.stopped = true
	close(tm.stopAll)
	tm.mu.Unlock()
	tm.wg.Wait()
}
