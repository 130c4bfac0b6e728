// Package vfs is the top-level façade: it wires inode/resolver/fdtable/
// notify/shadow/extmount into the directory operations spec §4.4 names,
// plus the Cwd/Chdir/Chmod/Chown/Utimes attribute mutators spec §9 adds.
// Every mutating method follows the same control flow (spec §2): resolve
// a path to an entry, check permissions and read-only status, mutate the
// inode store and parent mapping, update timestamps, emit notifications.
package vfs

import (
	"golang.org/x/sys/unix"

	"github.com/google/memvfs/clock"
	"github.com/google/memvfs/fdtable"
	"github.com/google/memvfs/inode"
	"github.com/google/memvfs/metrics"
	"github.com/google/memvfs/notify"
	"github.com/google/memvfs/pathutil"
	"github.com/google/memvfs/permission"
	"github.com/google/memvfs/resolver"
	"github.com/google/memvfs/shadow"
	"github.com/google/memvfs/vfserrors"
)

// Filesystem is one in-memory filesystem instance.
type Filesystem struct {
	Store *inode.Store
	Root  *inode.Inode
	Res   *resolver.Resolver
	Table *fdtable.Table
	Guard *shadow.Guard
	Clock clock.Clock

	Comparator pathutil.Comparator
	Cwd        string

	Metrics *metrics.Recorder
}

// New constructs a filesystem with a fresh root directory.
func New(clk clock.Clock, cmp pathutil.Comparator, rootMode uint32) *Filesystem {
	store := inode.NewStore(clk, cmp)
	root := store.NewDirectory(rootMode, 0, 0)
	res := resolver.New(store, root, cmp)
	return &Filesystem{
		Store:      store,
		Root:       root,
		Res:        res,
		Table:      fdtable.New(clk, res),
		Guard:      &shadow.Guard{},
		Clock:      clk,
		Comparator: cmp,
		Cwd:        "/",
	}
}

func (fs *Filesystem) record(fn func(*metrics.Recorder)) {
	if fs.Metrics != nil {
		fn(fs.Metrics)
	}
}

// --- working directory ---

// Chdir sets the current working directory used to resolve relative
// paths; the target must already exist and be a directory.
func (fs *Filesystem) Chdir(path string, caller permission.Caller) error {
	result, err := fs.Res.Resolve("chdir", path, false, caller)
	if err != nil {
		return err
	}
	if result.Node == nil || !result.Node.IsDir() {
		return vfserrors.New("chdir", vfserrors.ENOTDIR, path)
	}
	fs.Cwd = result.Path
	fs.Res.Cwd = result.Path
	fs.Table = fdtable.New(fs.Clock, fs.Res)
	return nil
}

func (fs *Filesystem) GetCwd() string { return fs.Cwd }

// --- directory operations (spec §4.4) ---

// Mkdir implements mkdir(path, mode).
func (fs *Filesystem) Mkdir(path string, mode uint32, caller permission.Caller) error {
	if err := fs.Guard.CheckWritable("mkdir", path); err != nil {
		return err
	}
	result, err := fs.Res.Resolve("mkdir", path, false, caller)
	if err != nil {
		return err
	}
	if result.Node != nil {
		return vfserrors.New("mkdir", vfserrors.EEXIST, path)
	}
	parent := result.Parent
	if parent == nil || !parent.IsDir() {
		return vfserrors.New("mkdir", vfserrors.ENOTDIR, path)
	}
	if !permission.Access(parent.Perm(), parent.Header().Uid, parent.Header().Gid, caller, permission.W_OK) {
		return vfserrors.New("mkdir", vfserrors.EACCES, path)
	}

	perm, uid, gid := inheritSGID(parent, mode&0o1777, caller)
	children, err := fs.Res.MaterializeDir(parent)
	if err != nil {
		return err
	}

	child := fs.Store.NewDirectory(perm, uid, gid)
	children.Set(result.Basename, child)
	parent.TouchMtimeCtime(fs.Clock)
	parent.Notify(uint32(notify.IN_CREATE|notify.IN_ISDIR), result.Basename, 0)
	fs.record(func(r *metrics.Recorder) { r.IncInodes() })
	return nil
}

// Rmdir implements rmdir(path).
func (fs *Filesystem) Rmdir(path string, caller permission.Caller) error {
	if err := fs.Guard.CheckWritable("rmdir", path); err != nil {
		return err
	}
	result, err := fs.Res.Resolve("rmdir", path, true, caller)
	if err != nil {
		return err
	}
	node := result.Node
	if node == nil {
		return vfserrors.New("rmdir", vfserrors.ENOENT, path)
	}
	if !node.IsDir() {
		return vfserrors.New("rmdir", vfserrors.ENOTDIR, path)
	}
	children, err := fs.Res.MaterializeDir(node)
	if err != nil {
		return err
	}
	if children.Len() != 0 {
		return vfserrors.New("rmdir", vfserrors.ENOTEMPTY, path)
	}

	parent := result.Parent
	parentChildren, err := fs.Res.MaterializeDir(parent)
	if err != nil {
		return err
	}
	parentChildren.Delete(result.Basename)

	if node.DecNlink() {
		node.TeardownWatches()
	}
	parent.TouchMtimeCtime(fs.Clock)
	parent.Notify(uint32(notify.IN_DELETE|notify.IN_ISDIR), result.Basename, 0)
	node.Notify(uint32(notify.IN_DELETE_SELF), "", 0)
	return nil
}

// Link implements link(old, new): a new hard link to an existing
// non-directory inode.
func (fs *Filesystem) Link(oldPath, newPath string, caller permission.Caller) error {
	if err := fs.Guard.CheckWritable("link", newPath); err != nil {
		return err
	}
	oldRes, err := fs.Res.Resolve("link", oldPath, false, caller)
	if err != nil {
		return err
	}
	if oldRes.Node == nil {
		return vfserrors.New2("link", vfserrors.ENOENT, oldPath, newPath)
	}
	if oldRes.Node.IsDir() {
		return vfserrors.New2("link", vfserrors.EISDIR, oldPath, newPath)
	}

	newRes, err := fs.Res.Resolve("link", newPath, false, caller)
	if err != nil {
		return err
	}
	if newRes.Node != nil {
		return vfserrors.New2("link", vfserrors.EEXIST, oldPath, newPath)
	}
	parent := newRes.Parent
	if parent == nil || !parent.IsDir() {
		return vfserrors.New2("link", vfserrors.ENOTDIR, oldPath, newPath)
	}
	if !permission.Access(parent.Perm(), parent.Header().Uid, parent.Header().Gid, caller, permission.W_OK) {
		return vfserrors.New2("link", vfserrors.EACCES, oldPath, newPath)
	}

	children, err := fs.Res.MaterializeDir(parent)
	if err != nil {
		return err
	}
	children.Set(newRes.Basename, oldRes.Node)
	oldRes.Node.IncNlink()
	oldRes.Node.TouchCtime(fs.Clock)

	parent.Notify(uint32(notify.IN_CREATE), newRes.Basename, 0)
	oldRes.Node.Notify(uint32(notify.IN_ATTRIB), "", 0)
	return nil
}

// Unlink implements unlink(path).
func (fs *Filesystem) Unlink(path string, caller permission.Caller) error {
	if err := fs.Guard.CheckWritable("unlink", path); err != nil {
		return err
	}
	result, err := fs.Res.Resolve("unlink", path, true, caller)
	if err != nil {
		return err
	}
	node := result.Node
	if node == nil {
		return vfserrors.New("unlink", vfserrors.ENOENT, path)
	}
	if node.IsDir() {
		return vfserrors.New("unlink", vfserrors.EISDIR, path)
	}

	parent := result.Parent
	children, err := fs.Res.MaterializeDir(parent)
	if err != nil {
		return err
	}
	children.Delete(result.Basename)

	reachedZero := node.DecNlink()
	parent.TouchMtimeCtime(fs.Clock)
	parent.Notify(uint32(notify.IN_DELETE), result.Basename, 0)
	node.Notify(uint32(notify.IN_ATTRIB), "", 0)
	if reachedZero {
		node.Notify(uint32(notify.IN_DELETE_SELF), "", 0)
		node.TeardownWatches()
	}
	return nil
}

// Rename implements rename(old, new) as a single atomic step with a
// cookie-paired IN_MOVED_FROM/IN_MOVED_TO/IN_MOVE_SELF triple.
func (fs *Filesystem) Rename(oldPath, newPath string, caller permission.Caller) error {
	if err := fs.Guard.CheckWritable("rename", newPath); err != nil {
		return err
	}
	oldRes, err := fs.Res.Resolve("rename", oldPath, true, caller)
	if err != nil {
		return err
	}
	if oldRes.Node == nil {
		return vfserrors.New2("rename", vfserrors.ENOENT, oldPath, newPath)
	}

	newRes, err := fs.Res.Resolve("rename", newPath, true, caller)
	if err != nil {
		return err
	}

	if newRes.Node != nil {
		sameKind := oldRes.Node.IsDir() == newRes.Node.IsDir()
		if !sameKind {
			return vfserrors.New2("rename", vfserrors.EINVAL, oldPath, newPath)
		}
		if newRes.Node.IsDir() {
			destChildren, err := fs.Res.MaterializeDir(newRes.Node)
			if err != nil {
				return err
			}
			if destChildren.Len() != 0 {
				return vfserrors.New2("rename", vfserrors.ENOTEMPTY, oldPath, newPath)
			}
		}
	}

	oldParent, newParent := oldRes.Parent, newRes.Parent
	oldChildren, err := fs.Res.MaterializeDir(oldParent)
	if err != nil {
		return err
	}
	newChildren, err := fs.Res.MaterializeDir(newParent)
	if err != nil {
		return err
	}

	if newRes.Node != nil {
		if newRes.Node.DecNlink() {
			newRes.Node.TeardownWatches()
		}
	}

	oldChildren.Delete(oldRes.Basename)
	newChildren.Set(newRes.Basename, oldRes.Node)

	cookie := notify.NextCookie()
	oldRes.Node.TouchCtime(fs.Clock)
	oldParent.TouchMtimeCtime(fs.Clock)
	newParent.TouchMtimeCtime(fs.Clock)
	oldParent.Notify(uint32(notify.IN_MOVED_FROM), oldRes.Basename, cookie)
	newParent.Notify(uint32(notify.IN_MOVED_TO), newRes.Basename, cookie)
	oldRes.Node.Notify(uint32(notify.IN_MOVE_SELF), "", cookie)

	fs.record(func(r *metrics.Recorder) { r.IncRenames() })
	return nil
}

// Symlink implements symlink(target, link).
func (fs *Filesystem) Symlink(target, linkPath string, caller permission.Caller) error {
	if err := fs.Guard.CheckWritable("symlink", linkPath); err != nil {
		return err
	}
	result, err := fs.Res.Resolve("symlink", linkPath, true, caller)
	if err != nil {
		return err
	}
	if result.Node != nil {
		return vfserrors.New("symlink", vfserrors.EEXIST, linkPath)
	}
	parent := result.Parent
	if parent == nil || !parent.IsDir() {
		return vfserrors.New("symlink", vfserrors.ENOTDIR, linkPath)
	}
	if !permission.Access(parent.Perm(), parent.Header().Uid, parent.Header().Gid, caller, permission.W_OK) {
		return vfserrors.New("symlink", vfserrors.EACCES, linkPath)
	}

	children, err := fs.Res.MaterializeDir(parent)
	if err != nil {
		return err
	}
	link := fs.Store.NewSymlink(target, caller.Uid, caller.Gid)
	children.Set(result.Basename, link)
	parent.TouchMtimeCtime(fs.Clock)
	parent.Notify(uint32(notify.IN_CREATE|notify.IN_ISDIR), result.Basename, 0)
	return nil
}

// --- attribute mutators (spec §9) ---

// Chmod changes permission bits; only root or the owner may call it.
func (fs *Filesystem) Chmod(path string, mode uint32, caller permission.Caller) error {
	if err := fs.Guard.CheckWritable("chmod", path); err != nil {
		return err
	}
	result, err := fs.Res.Resolve("chmod", path, false, caller)
	if err != nil {
		return err
	}
	if result.Node == nil {
		return vfserrors.New("chmod", vfserrors.ENOENT, path)
	}
	uid, _ := result.Node.Owner()
	if permission.RequiresRootChmod(uid, caller) && !caller.IsRoot() {
		return vfserrors.New("chmod", vfserrors.EPERM, path)
	}
	result.Node.SetMode(mode)
	result.Node.TouchCtime(fs.Clock)
	result.Node.Notify(uint32(notify.IN_ATTRIB), "", 0)
	return nil
}

// Chown changes ownership; only root may reassign to a different owner.
func (fs *Filesystem) Chown(path string, uid, gid uint32, caller permission.Caller) error {
	return fs.chown(path, uid, gid, caller, false)
}

// Lchown is Chown but never follows a trailing symlink.
func (fs *Filesystem) Lchown(path string, uid, gid uint32, caller permission.Caller) error {
	return fs.chown(path, uid, gid, caller, true)
}

func (fs *Filesystem) chown(path string, uid, gid uint32, caller permission.Caller, noFollow bool) error {
	if err := fs.Guard.CheckWritable("chown", path); err != nil {
		return err
	}
	result, err := fs.Res.Resolve("chown", path, noFollow, caller)
	if err != nil {
		return err
	}
	if result.Node == nil {
		return vfserrors.New("chown", vfserrors.ENOENT, path)
	}
	curUid, _ := result.Node.Owner()
	if (uid != curUid || permission.RequiresRootChown(curUid, caller)) && !caller.IsRoot() {
		return vfserrors.New("chown", vfserrors.EPERM, path)
	}
	result.Node.SetOwner(uid, gid)
	result.Node.TouchCtime(fs.Clock)
	result.Node.Notify(uint32(notify.IN_ATTRIB), "", 0)
	return nil
}

// Utimes sets atime/mtime (either may be left unchanged with a nil).
func (fs *Filesystem) Utimes(path string, atimeMs, mtimeMs *int64, caller permission.Caller) error {
	if err := fs.Guard.CheckWritable("utimes", path); err != nil {
		return err
	}
	result, err := fs.Res.Resolve("utimes", path, false, caller)
	if err != nil {
		return err
	}
	if result.Node == nil {
		return vfserrors.New("utimes", vfserrors.ENOENT, path)
	}
	result.Node.SetTimes(atimeMs, mtimeMs)
	result.Node.TouchCtime(fs.Clock)
	result.Node.Notify(uint32(notify.IN_ATTRIB), "", 0)
	return nil
}

// --- stat ---

func (fs *Filesystem) Stat(path string, caller permission.Caller) (inode.Stat, error) {
	result, err := fs.Res.Resolve("stat", path, false, caller)
	if err != nil {
		return inode.Stat{}, err
	}
	if result.Node == nil {
		return inode.Stat{}, vfserrors.New("stat", vfserrors.ENOENT, path)
	}
	return result.Node.Stat(), nil
}

func (fs *Filesystem) Lstat(path string, caller permission.Caller) (inode.Stat, error) {
	result, err := fs.Res.Resolve("lstat", path, true, caller)
	if err != nil {
		return inode.Stat{}, err
	}
	if result.Node == nil {
		return inode.Stat{}, vfserrors.New("lstat", vfserrors.ENOENT, path)
	}
	return result.Node.Stat(), nil
}

// Readlink returns the target of the symlink at path, without following it.
func (fs *Filesystem) Readlink(path string, caller permission.Caller) (string, error) {
	result, err := fs.Res.Resolve("readlink", path, true, caller)
	if err != nil {
		return "", err
	}
	if result.Node == nil {
		return "", vfserrors.New("readlink", vfserrors.ENOENT, path)
	}
	if !result.Node.IsSymlink() {
		return "", vfserrors.New("readlink", vfserrors.EINVAL, path)
	}
	return result.Node.Target(), nil
}

// --- read-only / shadow entry points (spec §4.8) ---

func (fs *Filesystem) MakeReadonly() { fs.Guard.MakeReadonly() }

// Shadow creates a new mutable filesystem lazily overlaying fs's root
// (spec §4.8). fs must already be frozen via MakeReadonly: "shadow()
// requires the source filesystem to be frozen (read-only)".
func (fs *Filesystem) Shadow(clk clock.Clock, childCmp pathutil.Comparator) (*Filesystem, error) {
	if !fs.Guard.IsReadonly() {
		return nil, vfserrors.New("shadow", vfserrors.EINVAL, "")
	}
	childStore := inode.NewStore(clk, childCmp)
	shadowRoot, err := shadow.New(childStore, fs.Root, fs.Comparator, childCmp)
	if err != nil {
		return nil, err
	}
	res := resolver.New(childStore, shadowRoot, childCmp)
	return &Filesystem{
		Store:      childStore,
		Root:       shadowRoot,
		Res:        res,
		Table:      fdtable.New(clk, res),
		Guard:      &shadow.Guard{},
		Clock:      clk,
		Comparator: childCmp,
		Cwd:        "/",
	}, nil
}

// --- mount entry point (spec §4.9) ---

// Mount binds a lazily-materialised external directory at target.
func (fs *Filesystem) Mount(target string, mode uint32, source string, ext inode.ExternalResolver, caller permission.Caller) error {
	if err := fs.Guard.CheckWritable("mount", target); err != nil {
		return err
	}
	result, err := fs.Res.Resolve("mount", target, false, caller)
	if err != nil {
		return err
	}
	if result.Node != nil {
		return vfserrors.New("mount", vfserrors.EEXIST, target)
	}
	parent := result.Parent
	if parent == nil || !parent.IsDir() {
		return vfserrors.New("mount", vfserrors.ENOTDIR, target)
	}
	if pathutil.IsRoot(result.Path) && !caller.IsRoot() {
		return vfserrors.New("mount", vfserrors.EPERM, target)
	}

	children, err := fs.Res.MaterializeDir(parent)
	if err != nil {
		return err
	}
	node := fs.Store.NewMountDirectory(mode&0o7777, caller.Uid, caller.Gid, source, ext)
	children.Set(result.Basename, node)
	parent.TouchMtimeCtime(fs.Clock)
	parent.Notify(uint32(notify.IN_CREATE|notify.IN_ISDIR), result.Basename, 0)
	return nil
}

// inheritSGID applies spec §4.4's mkdir rule: "mode & 0o1777 adjusted by
// parent SGID (inherit gid, set SGID)".
func inheritSGID(parent *inode.Inode, perm uint32, caller permission.Caller) (outPerm, uid, gid uint32) {
	uid, gid = caller.Uid, caller.Gid
	if parent.Perm()&unix.S_ISGID != 0 {
		_, pgid := parent.Owner()
		gid = pgid
		perm |= unix.S_ISGID
	}
	return perm, uid, gid
}
