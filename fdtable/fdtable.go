// Package fdtable implements the open-file-description table (spec
// §4.5): open/read/write/fsync/truncate/close with copy-before-write
// staging, so concurrent descriptors on the same inode never observe
// each other's unpublished writes.
package fdtable

import (
	"golang.org/x/sys/unix"

	"github.com/google/memvfs/clock"
	"github.com/google/memvfs/inode"
	"github.com/google/memvfs/notify"
	"github.com/google/memvfs/permission"
	"github.com/google/memvfs/resolver"
	"github.com/google/memvfs/vfserrors"
)

// Flags is the O_* bitmask, aliasing the stable golang.org/x/sys/unix
// values (spec §6 interop requirement).
type Flags uint32

const (
	O_RDONLY    = Flags(unix.O_RDONLY)
	O_WRONLY    = Flags(unix.O_WRONLY)
	O_RDWR      = Flags(unix.O_RDWR)
	O_CREAT     = Flags(unix.O_CREAT)
	O_EXCL      = Flags(unix.O_EXCL)
	O_TRUNC     = Flags(unix.O_TRUNC)
	O_APPEND    = Flags(unix.O_APPEND)
	O_SYNC      = Flags(unix.O_SYNC)
	O_DIRECTORY = Flags(unix.O_DIRECTORY)
	O_NOFOLLOW  = Flags(unix.O_NOFOLLOW)

	accessModeMask = Flags(unix.O_ACCMODE)
)

// ParseFlags maps a symbolic alias (spec §4.5: "r", "r+", "w", "wx", "w+",
// "wx+", "a", "ax", "a+", "ax+", "rs+") to its O_* bitmask equivalent.
func ParseFlags(alias string) (Flags, error) {
	switch alias {
	case "r":
		return O_RDONLY, nil
	case "r+":
		return O_RDWR, nil
	case "rs+":
		return O_RDWR | O_SYNC, nil
	case "w":
		return O_WRONLY | O_CREAT | O_TRUNC, nil
	case "wx":
		return O_WRONLY | O_CREAT | O_TRUNC | O_EXCL, nil
	case "w+":
		return O_RDWR | O_CREAT | O_TRUNC, nil
	case "wx+":
		return O_RDWR | O_CREAT | O_TRUNC | O_EXCL, nil
	case "a":
		return O_WRONLY | O_CREAT | O_APPEND, nil
	case "ax":
		return O_WRONLY | O_CREAT | O_APPEND | O_EXCL, nil
	case "a+":
		return O_RDWR | O_CREAT | O_APPEND, nil
	case "ax+":
		return O_RDWR | O_CREAT | O_APPEND | O_EXCL, nil
	default:
		return 0, vfserrors.New("open", vfserrors.EINVAL, alias)
	}
}

// Descriptor is one open-file-description entry.
type Descriptor struct {
	FD     uint64
	Node   *inode.Inode
	Parent *inode.Inode
	Name   string // basename within Parent, for notification
	Path   string
	Flags  Flags
	Offset int64
	Dirty  bool
	Staged []byte // nil means "no staged buffer yet" (spec §3, §4.5)
}

func (d *Descriptor) readable() bool {
	am := d.Flags & accessModeMask
	return am == O_RDONLY || am == O_RDWR
}

func (d *Descriptor) writable() bool {
	am := d.Flags & accessModeMask
	return am == O_WRONLY || am == O_RDWR
}

// Table is the per-filesystem-instance descriptor table.
type Table struct {
	clk clock.Clock
	res *resolver.Resolver

	byFD map[uint64]*Descriptor
}

// New builds a Table bound to res for path resolution/materialisation
// and clk for timestamping.
func New(clk clock.Clock, res *resolver.Resolver) *Table {
	return &Table{clk: clk, res: res, byFD: make(map[uint64]*Descriptor)}
}

// Get looks up an open descriptor by fd.
func (t *Table) Get(fd uint64) (*Descriptor, bool) {
	d, ok := t.byFD[fd]
	return d, ok
}

// Open implements open(path, flags, mode) (spec §4.5).
func (t *Table) Open(path string, flags Flags, mode uint32, caller permission.Caller) (*Descriptor, error) {
	noFollow := flags&O_NOFOLLOW != 0
	result, err := t.res.Resolve("open", path, noFollow, caller)
	if err != nil {
		return nil, err
	}

	node, parent := result.Node, result.Parent

	if node == nil {
		if flags&O_CREAT == 0 {
			return nil, vfserrors.New("open", vfserrors.ENOENT, path)
		}
		if parent == nil {
			return nil, vfserrors.New("open", vfserrors.ENOENT, path)
		}
		if !permission.Access(parent.Perm(), parent.Header().Uid, parent.Header().Gid, caller, permission.W_OK) {
			return nil, vfserrors.New("open", vfserrors.EACCES, path)
		}

		perm := mode & 0o1777
		uid, gid := caller.Uid, caller.Gid
		if parent.Perm()&unix.S_ISGID != 0 {
			_, pgid := parent.Owner()
			gid = pgid
			perm |= unix.S_ISGID
		}

		node = t.res.Store.NewRegularFile(perm, uid, gid)
		parent.ChildrenIfMaterialized().Set(result.Basename, node)
		flags &^= O_TRUNC // "O_TRUNC implicitly cleared" on fresh create.
		parent.Notify(uint32(notify.IN_CREATE), result.Basename, 0)
	} else {
		if flags&O_CREAT != 0 && flags&O_EXCL != 0 {
			return nil, vfserrors.New("open", vfserrors.EEXIST, path)
		}
		if flags&O_DIRECTORY != 0 && !node.IsDir() {
			return nil, vfserrors.New("open", vfserrors.ENOTDIR, path)
		}
		if (flags&accessModeMask == O_WRONLY || flags&accessModeMask == O_RDWR) && node.IsDir() {
			return nil, vfserrors.New("open", vfserrors.EISDIR, path)
		}

		var requested uint32
		switch flags & accessModeMask {
		case O_WRONLY:
			requested = permission.W_OK
		case O_RDWR:
			requested = permission.R_OK | permission.W_OK
		default:
			requested = permission.R_OK
		}
		if !permission.Access(node.Perm(), node.Header().Uid, node.Header().Gid, caller, requested) {
			return nil, vfserrors.New("open", vfserrors.EACCES, path)
		}
	}

	d := &Descriptor{
		FD:     inode.NextFD(),
		Node:   node,
		Parent: parent,
		Name:   result.Basename,
		Path:   result.Path,
	}
	d.Flags = flags

	if flags&O_APPEND != 0 && flags&O_TRUNC == 0 {
		d.Offset = node.Size()
	}
	if flags&O_TRUNC != 0 {
		d.Staged = []byte{}
		d.Dirty = true
	}

	t.byFD[d.FD] = d

	if parent != nil {
		parent.Notify(uint32(notify.IN_OPEN), d.Name, 0)
	}
	node.Notify(uint32(notify.IN_OPEN), "", 0)

	return d, nil
}

// stagedOrBound returns d's staged buffer, binding the inode's
// materialised content as the descriptor's read view on first access if
// no write has staged a private copy yet (spec §4.5 read semantics).
func (t *Table) stagedOrBound(d *Descriptor) ([]byte, error) {
	if d.Staged != nil {
		return d.Staged, nil
	}
	return t.res.MaterializeFile(d.Node)
}

// Read implements read(fd, dst, dstOff, len, pos).
func (t *Table) Read(d *Descriptor, dst []byte, pos *int64) (int, error) {
	if len(dst) == 0 {
		return 0, nil
	}
	if !d.readable() {
		return 0, vfserrors.New("read", vfserrors.EBADF, d.Path)
	}

	buf, err := t.stagedOrBound(d)
	if err != nil {
		return 0, err
	}

	offset := d.Offset
	if pos != nil && *pos >= 0 {
		offset = *pos
	}
	if offset >= int64(len(buf)) {
		return 0, nil
	}

	n := copy(dst, buf[offset:])
	if pos == nil || *pos < 0 {
		d.Offset += int64(n)
	}

	if d.Parent != nil {
		d.Parent.Notify(uint32(notify.IN_ACCESS), d.Name, 0)
	}
	d.Node.Notify(uint32(notify.IN_ACCESS), "", 0)

	return n, nil
}

// Write implements write(fd, src, srcOff, len, pos): copy-before-write —
// the first write against a descriptor snapshots the inode's current
// bytes privately, so other descriptors keep seeing pre-write content
// until fsync/close publishes the staged buffer (spec §4.5).
func (t *Table) Write(d *Descriptor, src []byte, pos *int64) (int, error) {
	if !d.writable() {
		return 0, vfserrors.New("write", vfserrors.EBADF, d.Path)
	}

	if d.Staged == nil {
		bound, err := t.res.MaterializeFile(d.Node)
		if err != nil {
			return 0, err
		}
		d.Staged = append([]byte{}, bound...)
	}

	offset := d.Offset
	if d.Flags&O_APPEND != 0 {
		offset = int64(len(d.Staged))
	} else if pos != nil && *pos >= 0 {
		offset = *pos
	}

	end := offset + int64(len(src))
	if end > int64(len(d.Staged)) {
		grown := make([]byte, end)
		copy(grown, d.Staged)
		d.Staged = grown
	}
	copy(d.Staged[offset:end], src)
	d.Dirty = true

	if pos == nil || *pos < 0 {
		d.Offset = end
	}

	if d.Flags&O_SYNC != 0 {
		if err := t.Fsync(d, true); err != nil {
			return 0, err
		}
	}

	return len(src), nil
}

// publish writes d's staged buffer to the inode, bumping mtime/ctime,
// and clears the dirty flag.
func (t *Table) publish(d *Descriptor, updateSize bool) {
	if d.Staged != nil {
		d.Node.SetBytes(d.Staged)
	}
	d.Node.TouchMtimeCtime(t.clk)
	d.Dirty = false
}

// Fsync/Fdatasync implement fsync/fdatasync (spec §4.5). Both publish the
// staged buffer through SetBytes, which also updates the size; the
// metadata flag does not change what is published.
func (t *Table) Fsync(d *Descriptor, metadata bool) error {
	t.publish(d, metadata)
	if d.Parent != nil {
		d.Parent.Notify(uint32(notify.IN_MODIFY), d.Name, 0)
	}
	d.Node.Notify(uint32(notify.IN_MODIFY), "", 0)
	return nil
}

func (t *Table) Fdatasync(d *Descriptor) error { return t.Fsync(d, false) }

// Truncate/Ftruncate resize the inode's buffer, shrinking or
// zero-extending, and bump mtime/ctime (spec §4.5).
func (t *Table) Ftruncate(d *Descriptor, length int64) error {
	return t.truncateNode(d.Node, length, d.Parent, d.Name)
}

// Truncate resizes node's published bytes directly (no open descriptor
// required), used by the vfs façade's truncate(path, length).
func (t *Table) Truncate(node *inode.Inode, length int64, parent *inode.Inode, name string) error {
	return t.truncateNode(node, length, parent, name)
}

func (t *Table) truncateNode(node *inode.Inode, length int64, parent *inode.Inode, name string) error {
	b, err := t.res.MaterializeFile(node)
	if err != nil {
		return err
	}
	if length < 0 {
		return vfserrors.New("truncate", vfserrors.EINVAL, name)
	}
	grown := make([]byte, length)
	copy(grown, b)
	node.SetBytes(grown)
	node.TouchMtimeCtime(t.clk)

	if parent != nil {
		parent.Notify(uint32(notify.IN_MODIFY), name, 0)
	}
	node.Notify(uint32(notify.IN_MODIFY), "", 0)
	return nil
}

// Close implements close(fd) (spec §4.5): publish via fsync(metadata =
// true), emit IN_CLOSE_WRITE or IN_CLOSE_NOWRITE based on access mode.
func (t *Table) Close(fd uint64) error {
	d, ok := t.byFD[fd]
	if !ok {
		return vfserrors.New("close", vfserrors.EBADF, "")
	}
	delete(t.byFD, fd)

	if d.Dirty {
		if err := t.Fsync(d, true); err != nil {
			return err
		}
	}

	mask := notify.IN_CLOSE_NOWRITE
	if d.writable() {
		mask = notify.IN_CLOSE_WRITE
	}
	if d.Parent != nil {
		d.Parent.Notify(uint32(mask), d.Name, 0)
	}
	d.Node.Notify(uint32(mask), "", 0)

	return nil
}

// Count reports the number of open descriptors, for tests and
// resource-accounting callers.
func (t *Table) Count() int { return len(t.byFD) }
