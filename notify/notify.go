// Package notify implements the inotify-style watch/event subsystem (spec
// §4.6): an Instance owns watch descriptors and delivers masked events
// synchronously through a callback, matching the Linux inotify ABI values
// so the numeric masks stay stable across the boundary (spec §6).
package notify

import (
	"github.com/google/memvfs/inode"
	"github.com/google/memvfs/vfserrors"
)

// Mask is the IN_* event bitmask type.
type Mask uint32

// Event bits, fixed at the canonical Linux inotify ABI values (see
// <sys/inotify.h>) so they remain stable for interop.
const (
	IN_ACCESS        Mask = 0x00000001
	IN_MODIFY        Mask = 0x00000002
	IN_ATTRIB        Mask = 0x00000004
	IN_CLOSE_WRITE   Mask = 0x00000008
	IN_CLOSE_NOWRITE Mask = 0x00000010
	IN_OPEN          Mask = 0x00000020
	IN_MOVED_FROM    Mask = 0x00000040
	IN_MOVED_TO      Mask = 0x00000080
	IN_CREATE        Mask = 0x00000100
	IN_DELETE        Mask = 0x00000200
	IN_DELETE_SELF   Mask = 0x00000400
	IN_MOVE_SELF     Mask = 0x00000800

	IN_UNMOUNT    Mask = 0x00002000
	IN_Q_OVERFLOW Mask = 0x00004000
	IN_IGNORED    Mask = 0x00008000

	IN_ONLYDIR     Mask = 0x01000000
	IN_DONT_FOLLOW Mask = 0x02000000
	IN_EXCL_UNLINK Mask = 0x04000000
	IN_MASK_ADD    Mask = 0x20000000
	IN_ISDIR       Mask = 0x40000000
	IN_ONESHOT     Mask = 0x80000000

	IN_CLOSE = IN_CLOSE_WRITE | IN_CLOSE_NOWRITE
	IN_MOVE  = IN_MOVED_FROM | IN_MOVED_TO

	IN_ALL_EVENTS = IN_ACCESS | IN_MODIFY | IN_ATTRIB | IN_CLOSE_WRITE | IN_CLOSE_NOWRITE |
		IN_OPEN | IN_MOVED_FROM | IN_MOVED_TO | IN_CREATE | IN_DELETE | IN_DELETE_SELF | IN_MOVE_SELF
)

// Event is what a watcher's callback receives.
type Event struct {
	Wd     uint64
	Mask   Mask
	Name   string
	Cookie uint64
}

// Watch is a single watch description: wd, owning Instance, watched path
// and inode, and the event mask the watcher asked for.
type Watch struct {
	wd    uint64
	owner *Instance
	path  string
	node  *inode.Inode
	mask  Mask
}

func (w *Watch) WatchID() uint64 { return w.wd }
func (w *Watch) Mask() Mask      { return w.mask }
func (w *Watch) Path() string    { return w.path }

// Deliver implements inode.WatchTarget. It computes the delivered mask per
// spec §4.6: "(mask & watch.mask) | (mask & ~IN_ALL_EVENTS)", skipping
// delivery entirely if that's zero, and tearing down a IN_ONESHOT watch
// after delivery without emitting IN_IGNORED.
func (w *Watch) Deliver(rawMask uint32, name string, cookie uint64) {
	mask := Mask(rawMask)
	delivered := (mask & w.mask) | (mask &^ IN_ALL_EVENTS)
	if delivered == 0 {
		return
	}
	w.owner.deliver(Event{Wd: w.wd, Mask: delivered, Name: name, Cookie: cookie})
	if w.mask&IN_ONESHOT != 0 {
		w.node.RemoveWatch(w.wd)
		w.owner.forget(w)
	}
}

// Ignore implements inode.WatchTarget: final teardown delivers IN_IGNORED.
func (w *Watch) Ignore() {
	w.owner.deliver(Event{Wd: w.wd, Mask: IN_IGNORED})
}

// Instance is an inotify descriptor: a (wd -> watch) map, a (path ->
// watch) map for fast lookup, and a delivery callback (spec §4.6 state).
type Instance struct {
	fd       uint64
	byWd     map[uint64]*Watch
	byPath   map[string]*Watch
	Callback func(Event)
}

// NewInstance mints a new inotify descriptor id and returns an Instance
// that delivers through callback.
func NewInstance(callback func(Event)) *Instance {
	return &Instance{
		fd:       inode.NextFD(),
		byWd:     make(map[uint64]*Watch),
		byPath:   make(map[string]*Watch),
		Callback: callback,
	}
}

func (in *Instance) FD() uint64 { return in.fd }

func (in *Instance) deliver(e Event) {
	if in.Callback != nil {
		in.Callback(e)
	}
}

func (in *Instance) forget(w *Watch) {
	delete(in.byWd, w.wd)
	delete(in.byPath, w.path)
}

// AddWatch implements inotify_add_watch (spec §4.6). node must already be
// the resolved target of path, walked by the caller with noFollow set iff
// IN_DONT_FOLLOW is present in mask.
func (in *Instance) AddWatch(path string, node *inode.Inode, mask Mask) (wd uint64, err error) {
	if mask&IN_ONLYDIR != 0 && !node.IsDir() {
		return 0, vfserrors.New("inotify_add_watch", vfserrors.ENOTDIR, path)
	}

	if existing, ok := in.byPath[path]; ok {
		if mask&IN_MASK_ADD != 0 {
			existing.mask |= mask & IN_ALL_EVENTS
		} else {
			existing.mask = mask &^ IN_MASK_ADD
		}
		return existing.wd, nil
	}

	wd = inode.NextWD()
	w := &Watch{wd: wd, owner: in, path: path, node: node, mask: mask &^ IN_MASK_ADD}
	in.byWd[wd] = w
	in.byPath[path] = w
	node.AddWatch(w)
	return wd, nil
}

// RmWatch implements inotify_rm_watch: detach from the inode and both
// maps, then deliver a final IN_IGNORED.
func (in *Instance) RmWatch(wd uint64) error {
	w, ok := in.byWd[wd]
	if !ok {
		return vfserrors.New("inotify_rm_watch", vfserrors.EINVAL, "")
	}
	in.forget(w)
	w.node.RemoveWatch(wd)
	in.deliver(Event{Wd: wd, Mask: IN_IGNORED})
	return nil
}

// Close detaches every watch from its inode without emitting IN_IGNORED
// (spec §4.5 close semantics for an inotify descriptor).
func (in *Instance) Close() {
	for wd, w := range in.byWd {
		delete(in.byWd, wd)
		delete(in.byPath, w.path)
		w.node.RemoveWatch(wd)
	}
}

// WatchCount reports how many watches this instance currently owns.
func (in *Instance) WatchCount() int { return len(in.byWd) }

// NextCookie mints a monotonically increasing, globally unique move
// cookie (spec §4.6 "Move cookies").
func NextCookie() uint64 { return inode.NextCookie() }
