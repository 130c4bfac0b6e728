package main

import (
	"sync"

	"github.com/jacobsa/fuse"
	"github.com/jacobsa/fuse/fuseops"
	"github.com/jacobsa/fuse/fuseutil"

	"github.com/google/memvfs/fdtable"
	"github.com/google/memvfs/inode"
	"github.com/google/memvfs/pathutil"
	"github.com/google/memvfs/permission"
	"github.com/google/memvfs/vfs"
	"github.com/google/memvfs/vfserrors"
)

// fileSystem is a best-effort fuseutil.FileSystem projection of a
// vfs.Filesystem (spec §4.14): lookup, getattr, mkdir, create, open,
// read/write/release, readdir, unlink, rmdir, rename, symlink and readlink
// are implemented; everything else falls through to
// fuseutil.NotImplementedFileSystem's ENOSYS, mirroring how gcsfuse's
// fileSystem only implements the subset GCS objects can actually back.
type fileSystem struct {
	fuseutil.NotImplementedFileSystem

	fs     *vfs.Filesystem
	caller permission.Caller

	mu sync.Mutex // GUARDED_BY below

	inodes *inodeTable

	dirHandles  map[fuseops.HandleID]*dirHandle
	fileHandles map[fuseops.HandleID]*fdtable.Descriptor
	nextHandle  fuseops.HandleID
}

type dirHandle struct {
	entries []fuseutil.Dirent
}

// newFileSystem wraps an already-populated vfs.Filesystem for serving over
// FUSE. caller supplies the uid/gid used to evaluate every permission
// check, mirroring gcsfuse's mount-wide fixed uid/gid rather than deriving
// credentials from each op's header.
func newFileSystem(vfsys *vfs.Filesystem, caller permission.Caller) fuse.Server {
	fs := &fileSystem{
		fs:          vfsys,
		caller:      caller,
		inodes:      newInodeTable(),
		dirHandles:  make(map[fuseops.HandleID]*dirHandle),
		fileHandles: make(map[fuseops.HandleID]*fdtable.Descriptor),
	}
	return fuseutil.NewFileSystemServer(fs)
}

func (fs *fileSystem) Init(op *fuseops.InitOp) error {
	return nil
}

// LOCKS_EXCLUDED(fs.mu)
func (fs *fileSystem) LookUpInode(op *fuseops.LookUpInodeOp) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	parentPath, ok := fs.inodes.pathForID(op.Parent)
	if !ok {
		return fuse.ENOENT
	}
	childPath := pathutil.Combine(parentPath, op.Name)

	st, err := fs.fs.Lstat(childPath, fs.caller)
	if err != nil {
		return toErrno(err)
	}

	op.Entry.Child = fs.inodes.idForPath(childPath)
	op.Entry.Attributes = statToAttributes(st)
	return nil
}

// LOCKS_EXCLUDED(fs.mu)
func (fs *fileSystem) GetInodeAttributes(op *fuseops.GetInodeAttributesOp) error {
	fs.mu.Lock()
	path, ok := fs.inodes.pathForID(op.Inode)
	fs.mu.Unlock()
	if !ok {
		return fuse.ENOENT
	}

	st, err := fs.fs.Lstat(path, fs.caller)
	if err != nil {
		return toErrno(err)
	}
	op.Attributes = statToAttributes(st)
	return nil
}

// LOCKS_EXCLUDED(fs.mu)
func (fs *fileSystem) SetInodeAttributes(op *fuseops.SetInodeAttributesOp) error {
	fs.mu.Lock()
	path, ok := fs.inodes.pathForID(op.Inode)
	fs.mu.Unlock()
	if !ok {
		return fuse.ENOENT
	}

	if op.Mode != nil {
		if err := fs.fs.Chmod(path, uint32(op.Mode.Perm()), fs.caller); err != nil {
			return toErrno(err)
		}
	}
	if op.Size != nil {
		desc, err := fs.fs.Open(path, fdtable.O_WRONLY, 0, fs.caller)
		if err != nil {
			return toErrno(err)
		}
		err = fs.fs.Ftruncate(desc, int64(*op.Size))
		fs.fs.Close(desc.FD)
		if err != nil {
			return toErrno(err)
		}
	}
	if op.Atime != nil || op.Mtime != nil {
		var atimeMs, mtimeMs *int64
		if op.Atime != nil {
			v := op.Atime.UnixMilli()
			atimeMs = &v
		}
		if op.Mtime != nil {
			v := op.Mtime.UnixMilli()
			mtimeMs = &v
		}
		if err := fs.fs.Utimes(path, atimeMs, mtimeMs, fs.caller); err != nil {
			return toErrno(err)
		}
	}

	st, err := fs.fs.Lstat(path, fs.caller)
	if err != nil {
		return toErrno(err)
	}
	op.Attributes = statToAttributes(st)
	return nil
}

// LOCKS_EXCLUDED(fs.mu)
func (fs *fileSystem) ForgetInode(op *fuseops.ForgetInodeOp) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.inodes.forget(op.Inode)
	return nil
}

// LOCKS_EXCLUDED(fs.mu)
func (fs *fileSystem) MkDir(op *fuseops.MkDirOp) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	parentPath, ok := fs.inodes.pathForID(op.Parent)
	if !ok {
		return fuse.ENOENT
	}
	childPath := pathutil.Combine(parentPath, op.Name)

	if err := fs.fs.Mkdir(childPath, uint32(op.Mode.Perm()), fs.caller); err != nil {
		return toErrno(err)
	}

	st, err := fs.fs.Lstat(childPath, fs.caller)
	if err != nil {
		return toErrno(err)
	}
	op.Entry.Child = fs.inodes.idForPath(childPath)
	op.Entry.Attributes = statToAttributes(st)
	return nil
}

// LOCKS_EXCLUDED(fs.mu)
func (fs *fileSystem) CreateFile(op *fuseops.CreateFileOp) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	parentPath, ok := fs.inodes.pathForID(op.Parent)
	if !ok {
		return fuse.ENOENT
	}
	childPath := pathutil.Combine(parentPath, op.Name)

	if err := fs.fs.WriteFile(childPath, nil, uint32(op.Mode.Perm()), fs.caller); err != nil {
		return toErrno(err)
	}

	st, err := fs.fs.Lstat(childPath, fs.caller)
	if err != nil {
		return toErrno(err)
	}
	op.Entry.Child = fs.inodes.idForPath(childPath)
	op.Entry.Attributes = statToAttributes(st)
	return nil
}

// LOCKS_EXCLUDED(fs.mu)
func (fs *fileSystem) CreateSymlink(op *fuseops.CreateSymlinkOp) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	parentPath, ok := fs.inodes.pathForID(op.Parent)
	if !ok {
		return fuse.ENOENT
	}
	childPath := pathutil.Combine(parentPath, op.Name)

	if err := fs.fs.Symlink(op.Target, childPath, fs.caller); err != nil {
		return toErrno(err)
	}

	st, err := fs.fs.Lstat(childPath, fs.caller)
	if err != nil {
		return toErrno(err)
	}
	op.Entry.Child = fs.inodes.idForPath(childPath)
	op.Entry.Attributes = statToAttributes(st)
	return nil
}

// LOCKS_EXCLUDED(fs.mu)
func (fs *fileSystem) RmDir(op *fuseops.RmDirOp) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	parentPath, ok := fs.inodes.pathForID(op.Parent)
	if !ok {
		return fuse.ENOENT
	}
	childPath := pathutil.Combine(parentPath, op.Name)

	if err := fs.fs.Rmdir(childPath, fs.caller); err != nil {
		return toErrno(err)
	}
	fs.inodes.forget(fs.inodes.idForPath(childPath))
	return nil
}

// LOCKS_EXCLUDED(fs.mu)
func (fs *fileSystem) Unlink(op *fuseops.UnlinkOp) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	parentPath, ok := fs.inodes.pathForID(op.Parent)
	if !ok {
		return fuse.ENOENT
	}
	childPath := pathutil.Combine(parentPath, op.Name)

	if err := fs.fs.Unlink(childPath, fs.caller); err != nil {
		return toErrno(err)
	}
	return nil
}

// LOCKS_EXCLUDED(fs.mu)
func (fs *fileSystem) Rename(op *fuseops.RenameOp) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	oldParent, ok := fs.inodes.pathForID(op.OldParent)
	if !ok {
		return fuse.ENOENT
	}
	newParent, ok := fs.inodes.pathForID(op.NewParent)
	if !ok {
		return fuse.ENOENT
	}
	oldPath := pathutil.Combine(oldParent, op.OldName)
	newPath := pathutil.Combine(newParent, op.NewName)

	if err := fs.fs.Rename(oldPath, newPath, fs.caller); err != nil {
		return toErrno(err)
	}
	fs.inodes.rename(oldPath, newPath)
	return nil
}

// LOCKS_EXCLUDED(fs.mu)
func (fs *fileSystem) OpenDir(op *fuseops.OpenDirOp) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	path, ok := fs.inodes.pathForID(op.Inode)
	if !ok {
		return fuse.ENOENT
	}

	st, err := fs.fs.Lstat(path, fs.caller)
	if err != nil {
		return toErrno(err)
	}
	if !st.IsDir() {
		return fuse.ENOTDIR
	}

	handle := fs.nextHandle
	fs.nextHandle++
	fs.dirHandles[handle] = &dirHandle{}
	op.Handle = handle
	return nil
}

// LOCKS_EXCLUDED(fs.mu)
func (fs *fileSystem) ReadDir(op *fuseops.ReadDirOp) error {
	fs.mu.Lock()
	path, pathOk := fs.inodes.pathForID(op.Inode)
	dh, handleOk := fs.dirHandles[op.Handle]
	fs.mu.Unlock()
	if !pathOk || !handleOk {
		return fuse.ENOENT
	}

	if op.Offset == 0 {
		names, err := fs.listDirNames(path)
		if err != nil {
			return toErrno(err)
		}
		dh.entries = dh.entries[:0]
		for i, name := range names {
			childSt, err := fs.fs.Lstat(pathutil.Combine(path, name), fs.caller)
			if err != nil {
				continue
			}
			dh.entries = append(dh.entries, fuseutil.Dirent{
				Offset: fuseops.DirOffset(i + 1),
				Inode:  fs.inodes.idForPath(pathutil.Combine(path, name)),
				Name:   name,
				Type:   direntType(childSt),
			})
		}
	}

	for index := int(op.Offset); index < len(dh.entries); index++ {
		op.Data = fuseutil.AppendDirent(op.Data, dh.entries[index])
	}
	return nil
}

// listDirNames materializes path's children (triggering mount/shadow
// lazy-materialization on first touch, per the resolver's contract) and
// returns their names in iteration order.
func (fs *fileSystem) listDirNames(path string) ([]string, error) {
	result, err := fs.fs.Res.Resolve("readdir", path, true, fs.caller)
	if err != nil {
		return nil, err
	}
	if result.Node == nil {
		return nil, vfserrors.New("readdir", vfserrors.ENOENT, path)
	}
	children, err := fs.fs.Res.MaterializeDir(result.Node)
	if err != nil {
		return nil, err
	}
	return children.Names(), nil
}

// LOCKS_EXCLUDED(fs.mu)
func (fs *fileSystem) ReleaseDirHandle(op *fuseops.ReleaseDirHandleOp) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	delete(fs.dirHandles, op.Handle)
	return nil
}

// LOCKS_EXCLUDED(fs.mu)
func (fs *fileSystem) OpenFile(op *fuseops.OpenFileOp) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	path, ok := fs.inodes.pathForID(op.Inode)
	if !ok {
		return fuse.ENOENT
	}

	desc, err := fs.fs.Open(path, fdtable.Flags(op.Flags), 0, fs.caller)
	if err != nil {
		return toErrno(err)
	}

	handle := fs.nextHandle
	fs.nextHandle++
	fs.fileHandles[handle] = desc
	op.Handle = handle
	return nil
}

// LOCKS_EXCLUDED(fs.mu)
func (fs *fileSystem) ReadFile(op *fuseops.ReadFileOp) error {
	fs.mu.Lock()
	desc, ok := fs.fileHandles[op.Handle]
	fs.mu.Unlock()
	if !ok {
		return fuse.EIO
	}

	buf := make([]byte, op.Size)
	pos := op.Offset
	n, err := fs.fs.Read(desc, buf, &pos)
	if err != nil && n == 0 {
		return toErrno(err)
	}
	op.Data = buf[:n]
	return nil
}

// LOCKS_EXCLUDED(fs.mu)
func (fs *fileSystem) WriteFile(op *fuseops.WriteFileOp) error {
	fs.mu.Lock()
	desc, ok := fs.fileHandles[op.Handle]
	fs.mu.Unlock()
	if !ok {
		return fuse.EIO
	}

	pos := op.Offset
	_, err := fs.fs.Write(desc, op.Data, &pos)
	if err != nil {
		return toErrno(err)
	}
	return nil
}

// LOCKS_EXCLUDED(fs.mu)
func (fs *fileSystem) SyncFile(op *fuseops.SyncFileOp) error {
	fs.mu.Lock()
	desc, ok := fs.fileHandles[op.Handle]
	fs.mu.Unlock()
	if !ok {
		return fuse.EIO
	}
	return fs.fs.Fsync(desc)
}

// LOCKS_EXCLUDED(fs.mu)
func (fs *fileSystem) FlushFile(op *fuseops.FlushFileOp) error {
	fs.mu.Lock()
	desc, ok := fs.fileHandles[op.Handle]
	fs.mu.Unlock()
	if !ok {
		return fuse.EIO
	}
	return fs.fs.Fsync(desc)
}

// LOCKS_EXCLUDED(fs.mu)
func (fs *fileSystem) ReleaseFileHandle(op *fuseops.ReleaseFileHandleOp) error {
	fs.mu.Lock()
	desc, ok := fs.fileHandles[op.Handle]
	delete(fs.fileHandles, op.Handle)
	fs.mu.Unlock()
	if !ok {
		return nil
	}
	return fs.fs.Close(desc.FD)
}

// LOCKS_EXCLUDED(fs.mu)
func (fs *fileSystem) ReadSymlink(op *fuseops.ReadSymlinkOp) error {
	fs.mu.Lock()
	path, ok := fs.inodes.pathForID(op.Inode)
	fs.mu.Unlock()
	if !ok {
		return fuse.ENOENT
	}

	target, err := fs.fs.Readlink(path, fs.caller)
	if err != nil {
		return toErrno(err)
	}
	op.Target = target
	return nil
}

func direntType(st inode.Stat) fuseutil.DirentType {
	switch {
	case st.IsDir():
		return fuseutil.DT_Directory
	case st.IsSymlink():
		return fuseutil.DT_Link
	default:
		return fuseutil.DT_File
	}
}

// toErrno maps a vfserrors.PathError's POSIX code onto the matching syscall
// errno fuse understands, falling back to EIO for anything unmapped.
func toErrno(err error) error {
	switch vfserrors.CodeOf(err) {
	case vfserrors.ENOENT:
		return fuse.ENOENT
	case vfserrors.EEXIST:
		return fuse.EEXIST
	case vfserrors.ENOTDIR:
		return fuse.ENOTDIR
	case vfserrors.EISDIR:
		return fuse.EISDIR
	case vfserrors.ENOTEMPTY:
		return fuse.ENOTEMPTY
	case vfserrors.EACCES:
		return fuse.EACCES
	case vfserrors.EPERM:
		return fuse.EPERM
	case vfserrors.EINVAL:
		return fuse.EINVAL
	case vfserrors.EROFS:
		return fuse.EIO
	case vfserrors.ELOOP:
		return fuse.EIO
	default:
		return fuse.EIO
	}
}
