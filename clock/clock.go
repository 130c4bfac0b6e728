// Package clock supplies the timestamp source for memvfs inodes. It is
// injected everywhere the core touches atime/mtime/ctime/birthtime so that
// tests can drive time deterministically instead of depending on the wall
// clock.
package clock

import "time"

// Clock is the dependency every inode-mutating operation takes for
// generating timestamps, and every poll-watcher takes for scheduling.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

// NowMs returns c.Now() in the millisecond-resolution form the stat record
// (spec §6) requires for atimeMs/mtimeMs/ctimeMs/birthtimeMs.
func NowMs(c Clock) int64 {
	return c.Now().UnixMilli()
}
