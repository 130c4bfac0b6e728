// Package inode implements the tagged-union inode model memvfs is built
// on: a shared header plus one of three variant payloads (regular file,
// directory, symlink). It owns the process-wide id counters and the
// per-inode invariant-checked mutex, but knows nothing about path
// resolution, descriptors or notification — those are layered on top by
// the resolver, fdtable and notify packages.
package inode

import (
	"sync/atomic"

	"github.com/google/memvfs/clock"
	"github.com/jacobsa/syncutil"
	"golang.org/x/sys/unix"
)

// Kind discriminates the three inode variants.
type Kind uint8

const (
	KindRegular Kind = iota
	KindDirectory
	KindSymlink
)

// Mode type bits, aliasing the stable S_IF* values from golang.org/x/sys/unix
// so that callers across the boundary (spec §6) can mask with the same
// constants.
const (
	TypeMask = unix.S_IFMT
	TypeReg  = unix.S_IFREG
	TypeDir  = unix.S_IFDIR
	TypeLnk  = unix.S_IFLNK
)

// WatchTarget is the minimal surface a notify.Watch exposes so that an
// inode can hold a reference to it without the inode package depending on
// notify (which depends on inode). Delivery and final teardown are driven
// entirely from here.
type WatchTarget interface {
	WatchID() uint64
	Deliver(mask uint32, name string, cookie uint64)
	Ignore()
}

// Header is the data every inode variant shares.
type Header struct {
	Dev, Ino                                uint64
	Mode                                    uint32 // type bits | 12-bit permission bits
	Nlink                                   uint32
	Uid, Gid                                uint32
	AtimeMs, MtimeMs, CtimeMs, BirthtimeMs  int64
}

// ExternalResolver is the injected trio a mount point uses to lazily
// materialise content from outside the in-memory graph (spec §4.9, §6).
type ExternalResolver interface {
	StatSync(path string) (mode uint32, size int64, err error)
	ReaddirSync(path string) ([]string, error)
	ReadFileSync(path string) ([]byte, error)
}

type fileData struct {
	size     *int64
	bytes    []byte // nil means "not yet materialised"
	source   string
	resolver ExternalResolver
	shadow   *Inode
}

type dirData struct {
	children *ChildMap // nil means "not yet materialised"
	source   string
	resolver ExternalResolver
	shadow   *Inode
}

type symlinkData struct {
	target string
	shadow *Inode
}

// Inode is the tagged union. Exactly one of file/dir/symlink is non-nil,
// matching Kind.
type Inode struct {
	mu syncutil.InvariantMutex

	header Header
	kind   Kind

	file    *fileData
	dir     *dirData
	symlink *symlinkData

	meta    map[string]string
	watches map[uint64]WatchTarget
}

func (n *Inode) checkInvariants() {
	switch n.kind {
	case KindRegular:
		if n.file == nil || n.dir != nil || n.symlink != nil {
			panic("inode: regular file missing file payload")
		}
	case KindDirectory:
		if n.dir == nil || n.file != nil || n.symlink != nil {
			panic("inode: directory missing dir payload")
		}
	case KindSymlink:
		if n.symlink == nil || n.file != nil || n.dir != nil {
			panic("inode: symlink missing symlink payload")
		}
	default:
		panic("inode: unknown kind")
	}
}

// Lock/Unlock satisfy sync.Locker. The Store constructors leave mu as a
// zero InvariantMutex with no check function attached, so checkInvariants
// is not run on acquire or release.
func (n *Inode) Lock()   { n.mu.Lock() }
func (n *Inode) Unlock() { n.mu.Unlock() }

func (n *Inode) Kind() Kind { return n.kind }
func (n *Inode) IsDir() bool { return n.kind == KindDirectory }
func (n *Inode) IsRegular() bool { return n.kind == KindRegular }
func (n *Inode) IsSymlink() bool { return n.kind == KindSymlink }

// Header returns a copy of the inode's header.
func (n *Inode) Header() Header { return n.header }

func (n *Inode) Dev() uint64 { return n.header.Dev }
func (n *Inode) Ino() uint64 { return n.header.Ino }

// Mode returns the full mode word (type bits | permission bits).
func (n *Inode) Mode() uint32 { return n.header.Mode }

// Perm returns just the 12 low permission/setuid/setgid/sticky bits.
func (n *Inode) Perm() uint32 { return n.header.Mode & 0o7777 }

func (n *Inode) SetMode(permAndBits uint32) {
	n.header.Mode = (n.header.Mode &^ 0o7777) | (permAndBits & 0o7777)
}

func (n *Inode) Nlink() uint32 { return n.header.Nlink }

// IncNlink increments the link count, e.g. for a new hard link.
func (n *Inode) IncNlink() { n.header.Nlink++ }

// DecNlink decrements the link count and reports whether it reached zero.
func (n *Inode) DecNlink() (reachedZero bool) {
	if n.header.Nlink > 0 {
		n.header.Nlink--
	}
	return n.header.Nlink == 0
}

func (n *Inode) Owner() (uid, gid uint32) { return n.header.Uid, n.header.Gid }

func (n *Inode) SetOwner(uid, gid uint32) {
	n.header.Uid, n.header.Gid = uid, gid
}

func (n *Inode) Times() (atime, mtime, ctime, birth int64) {
	return n.header.AtimeMs, n.header.MtimeMs, n.header.CtimeMs, n.header.BirthtimeMs
}

func (n *Inode) TouchAtime(c clock.Clock)  { n.header.AtimeMs = clock.NowMs(c) }
func (n *Inode) TouchMtime(c clock.Clock)  { n.header.MtimeMs = clock.NowMs(c) }
func (n *Inode) TouchCtime(c clock.Clock)  { n.header.CtimeMs = clock.NowMs(c) }
func (n *Inode) TouchMtimeCtime(c clock.Clock) {
	ms := clock.NowMs(c)
	n.header.MtimeMs, n.header.CtimeMs = ms, ms
}

func (n *Inode) SetTimes(atimeMs, mtimeMs *int64) {
	if atimeMs != nil {
		n.header.AtimeMs = *atimeMs
	}
	if mtimeMs != nil {
		n.header.MtimeMs = *mtimeMs
	}
}

// Meta looks up an opaque metadata key, falling through to a shadow root
// chain (spec §4.8: "Metadata is layered: child metadata inherits from
// parent metadata by lookup fall-through").
func (n *Inode) Meta(key string) (string, bool) {
	if v, ok := n.meta[key]; ok {
		return v, true
	}
	if sr := n.ShadowRoot(); sr != nil {
		return sr.Meta(key)
	}
	return "", false
}

func (n *Inode) SetMeta(key, value string) {
	if n.meta == nil {
		n.meta = make(map[string]string)
	}
	n.meta[key] = value
}

// ShadowRoot returns the frozen inode this node lazily materialises from,
// if any.
func (n *Inode) ShadowRoot() *Inode {
	switch n.kind {
	case KindRegular:
		return n.file.shadow
	case KindDirectory:
		return n.dir.shadow
	case KindSymlink:
		return n.symlink.shadow
	}
	return nil
}

// Watches

func (n *Inode) AddWatch(w WatchTarget) {
	if n.watches == nil {
		n.watches = make(map[uint64]WatchTarget)
	}
	n.watches[w.WatchID()] = w
}

func (n *Inode) RemoveWatch(id uint64) {
	delete(n.watches, id)
}

func (n *Inode) Watch(id uint64) (WatchTarget, bool) {
	w, ok := n.watches[id]
	return w, ok
}

func (n *Inode) WatchCount() int { return len(n.watches) }

// Notify delivers mask to every watch on this inode via its owner's
// callback, per spec §4.6 delivery algorithm.
func (n *Inode) Notify(mask uint32, name string, cookie uint64) {
	for _, w := range n.watches {
		w.Deliver(mask, name, cookie)
	}
}

// TeardownWatches removes every watch on this inode, delivering IN_IGNORED
// to each (spec: "reaches 0 only on final unlink — at which point all
// watches on the inode must be torn down with an IN_IGNORED event").
func (n *Inode) TeardownWatches() {
	for id, w := range n.watches {
		delete(n.watches, id)
		w.Ignore()
	}
}

// --- process-wide id counters ---

var (
	devCounter    uint64
	inoCounter    uint64
	fdCounter     uint64
	wdCounter     uint64
	cookieCounter uint64
)

// NextDev mints a globally unique device id.
func NextDev() uint64 { return atomic.AddUint64(&devCounter, 1) }

// NextIno mints a globally unique inode id.
func NextIno() uint64 { return atomic.AddUint64(&inoCounter, 1) }

// NextFD mints a globally unique file-descriptor id.
func NextFD() uint64 { return atomic.AddUint64(&fdCounter, 1) }

// NextWD mints a globally unique watch-descriptor id.
func NextWD() uint64 { return atomic.AddUint64(&wdCounter, 1) }

// NextCookie mints a globally unique move cookie.
func NextCookie() uint64 { return atomic.AddUint64(&cookieCounter, 1) }
