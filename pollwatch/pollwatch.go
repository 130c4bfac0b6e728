// Package pollwatch implements the interval-based stat-diffing watcher
// (spec §4.7): watchFile registers a timer that periodically stats a path
// and compares every field of the result against the previously observed
// snapshot, invoking a listener on any inequality.
package pollwatch

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/memvfs/clock"
	"github.com/google/memvfs/inode"
)

// StatFunc stats path, reporting whether it currently exists. A
// non-existent path stats as the zero inode.Stat with exists=false.
type StatFunc func(path string) (stat inode.Stat, exists bool)

// Listener is invoked with the newly observed stat and the previously
// observed one whenever they differ.
type Listener func(current, previous inode.Stat)

// Handle identifies one registered watch, returned by WatchFile so a
// caller can unregister that specific registration (Go has no function
// value equality, so a handle stands in for the listener-identity
// comparison spec §4.7's unwatchFile performs).
type Handle uint64

var nextHandle uint64

func newHandle() Handle { return Handle(atomic.AddUint64(&nextHandle, 1)) }

type entry struct {
	handle   Handle
	path     string
	interval time.Duration
	listener Listener
	last     inode.Stat
	exists   bool
	stop     chan struct{}
}

// Watcher holds the set of active poll registrations for one filesystem.
type Watcher struct {
	clk  clock.Clock
	stat StatFunc

	mu      sync.Mutex
	entries map[Handle]*entry
}

// New builds a Watcher that stats through statFn and schedules through
// clk (clock.SimulatedClock in tests, clock.RealClock in production).
func New(clk clock.Clock, statFn StatFunc) *Watcher {
	return &Watcher{clk: clk, stat: statFn, entries: make(map[Handle]*entry)}
}

// WatchFile registers path for interval-based stat diffing, delivering
// through listener. If path does not exist at registration time, listener
// fires synchronously, once, with (empty-stat, empty-stat) (spec §4.7).
func (w *Watcher) WatchFile(path string, interval time.Duration, listener Listener) Handle {
	cur, exists := w.stat(path)

	e := &entry{
		handle:   newHandle(),
		path:     path,
		interval: interval,
		listener: listener,
		stop:     make(chan struct{}),
	}

	if !exists {
		listener(inode.Stat{}, inode.Stat{})
	} else {
		e.last, e.exists = cur, true
	}

	w.mu.Lock()
	w.entries[e.handle] = e
	w.mu.Unlock()

	go w.run(e)

	return e.handle
}

func (w *Watcher) run(e *entry) {
	for {
		select {
		case <-e.stop:
			return
		case <-w.clk.After(e.interval):
		}

		cur, exists := w.stat(e.path)
		prev, prevExists := e.last, e.exists

		if exists != prevExists || cur != prev {
			e.listener(statOrZero(cur, exists), statOrZero(prev, prevExists))
			e.last, e.exists = cur, exists
		}
	}
}

func statOrZero(s inode.Stat, exists bool) inode.Stat {
	if !exists {
		return inode.Stat{}
	}
	return s
}

// UnwatchFile clears registrations for path. With no handles given, every
// registration on path is cleared; otherwise only the matching handles
// are (spec §4.7: "passing a specific listener removes only matching
// entries").
func (w *Watcher) UnwatchFile(path string, handles ...Handle) {
	w.mu.Lock()
	defer w.mu.Unlock()

	match := func(e *entry) bool {
		if e.path != path {
			return false
		}
		if len(handles) == 0 {
			return true
		}
		for _, h := range handles {
			if h == e.handle {
				return true
			}
		}
		return false
	}

	for h, e := range w.entries {
		if match(e) {
			close(e.stop)
			delete(w.entries, h)
		}
	}
}

// Count reports how many registrations are currently active, for tests.
func (w *Watcher) Count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.entries)
}
