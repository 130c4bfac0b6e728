// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package clock

import (
	"sync"
	"time"
)

// pendingAfter is a scheduled After call waiting for the simulated clock to
// reach or pass its target.
type pendingAfter struct {
	targetMs int64
	ch       chan time.Time
}

// SimulatedClock is a Clock callers drive by hand instead of the wall
// clock, so tests can assert exact inode timestamps (spec §6) and exercise
// pollwatch's interval timer deterministically. Time is tracked natively
// at millisecond resolution — the only resolution memvfs's stat records
// ever need — rather than round-tripping through time.Time internally.
// The zero value starts at the Unix epoch.
type SimulatedClock struct {
	mu      sync.RWMutex
	nowMs   int64          // GUARDED_BY(mu)
	pending []pendingAfter // GUARDED_BY(mu)
}

// NewSimulatedClock builds a clock starting at startTime.
func NewSimulatedClock(startTime time.Time) *SimulatedClock {
	return &SimulatedClock{nowMs: startTime.UnixMilli()}
}

func (c *SimulatedClock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return time.UnixMilli(c.nowMs)
}

// Millis returns the simulated time in milliseconds since the Unix epoch,
// matching the resolution of inode.Header's AtimeMs/MtimeMs/CtimeMs/
// BirthtimeMs fields.
func (c *SimulatedClock) Millis() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.nowMs
}

// SetTime jumps the clock to t, firing any pending After calls whose
// target has now been reached or passed.
func (c *SimulatedClock) SetTime(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nowMs = t.UnixMilli()
	c.firePending()
}

// AdvanceTime moves the clock forward by d, firing any pending After calls
// whose target has now been reached or passed.
func (c *SimulatedClock) AdvanceTime(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nowMs += d.Milliseconds()
	c.firePending()
}

// After returns a channel that receives the simulated fire time once the
// clock reaches now+d; a non-positive d fires immediately.
func (c *SimulatedClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch := make(chan time.Time, 1)
	targetMs := c.nowMs + d.Milliseconds()

	if targetMs <= c.nowMs {
		ch <- time.UnixMilli(c.nowMs)
		return ch
	}

	c.pending = append(c.pending, pendingAfter{targetMs: targetMs, ch: ch})
	return ch
}

// firePending delivers every pending request whose target has been
// reached or passed. Must be called with c.mu held.
func (c *SimulatedClock) firePending() {
	var remaining []pendingAfter
	for _, p := range c.pending {
		if c.nowMs >= p.targetMs {
			p.ch <- time.UnixMilli(p.targetMs)
		} else {
			remaining = append(remaining, p)
		}
	}
	c.pending = remaining
}
