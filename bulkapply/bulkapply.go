// Package bulkapply applies a declarative FileMap tree to a vfs.Filesystem
// in one call (spec §4.10): absent entries are removed recursively,
// directories and regular files are created first, then links, symlinks
// and mounts are created in a second pass so their targets already exist.
package bulkapply

import (
	"github.com/google/memvfs/inode"
	"github.com/google/memvfs/pathutil"
	"github.com/google/memvfs/permission"
	"github.com/google/memvfs/vfs"
	"github.com/google/memvfs/vfserrors"
)

// Kind discriminates the FileMap entry tagged-wrapper forms.
type Kind int

const (
	// KindAuto infers Directory (Children != nil) or File (otherwise) from
	// the entry's populated fields, matching spec §4.10's untagged forms
	// (a nested map, or a byte string).
	KindAuto Kind = iota
	KindAbsent
	KindFile
	KindDirectory
	KindLink
	KindSymlink
	KindMount
)

// Entry is one node of a FileMap: either a plain nested directory (set
// Children), a plain file (set Content), or an explicitly tagged wrapper
// carrying Kind plus whichever fields that kind needs.
type Entry struct {
	Kind Kind

	// Common optional attributes (spec §4.10: "each carrying optional
	// uid/gid/mode/meta").
	Uid, Gid uint32
	Mode     uint32
	HasMode  bool
	Meta     map[string]string

	// KindFile / untagged byte content.
	Content []byte

	// KindDirectory / untagged nested map.
	Children map[string]*Entry

	// KindLink: path (relative to the FileMap root) of the existing entry
	// to hard-link to.
	LinkTarget string

	// KindSymlink: raw symlink target string (not resolved against the map).
	SymlinkTarget string

	// KindMount.
	MountSource   string
	MountResolver inode.ExternalResolver
}

// FileMap is the root of a declarative tree, keyed by name under root.
type FileMap map[string]*Entry

type deferredOp struct {
	path  string
	entry *Entry
	root  string
}

// Apply applies m under root (an existing directory) in fs, as caller.
// Directories and files are created in the first pass; links, symlinks
// and mounts are deferred to a second pass so any FileMap-local targets
// they reference already exist (spec §4.10).
func Apply(fs *vfs.Filesystem, root string, m FileMap, caller permission.Caller) error {
	var deferred []deferredOp
	if err := applyLevel(fs, root, root, m, caller, &deferred); err != nil {
		return err
	}
	for _, d := range deferred {
		if err := applyDeferred(fs, d.path, d.root, d.entry, caller); err != nil {
			return err
		}
	}
	return nil
}

func applyLevel(fs *vfs.Filesystem, root, dir string, m FileMap, caller permission.Caller, deferred *[]deferredOp) error {
	for name, entry := range m {
		path := pathutil.Combine(dir, name)
		if err := applyEntry(fs, root, path, entry, caller, deferred); err != nil {
			return err
		}
	}
	return nil
}

func applyEntry(fs *vfs.Filesystem, root, path string, entry *Entry, caller permission.Caller, deferred *[]deferredOp) error {
	// A nil entry is the FileMap's "null/absent" form (spec §4.10).
	if entry == nil {
		return removePath(fs, path, caller)
	}
	kind := entry.effectiveKind()

	if kind == KindAbsent {
		return removePath(fs, path, caller)
	}
	if err := checkRootProtection(path, kind); err != nil {
		return err
	}

	switch kind {
	case KindDirectory:
		if err := ensureDir(fs, path, entry, caller); err != nil {
			return err
		}
		return applyLevel(fs, root, path, entry.Children, caller, deferred)
	case KindFile:
		return writeFileEntry(fs, path, entry, caller)
	case KindLink, KindSymlink, KindMount:
		*deferred = append(*deferred, deferredOp{path: path, entry: entry, root: root})
		return nil
	default:
		return vfserrors.New("apply", vfserrors.EINVAL, path)
	}
}

func applyDeferred(fs *vfs.Filesystem, path, root string, entry *Entry, caller permission.Caller) error {
	switch entry.Kind {
	case KindLink:
		if err := checkRootProtection(path, KindLink); err != nil {
			return err
		}
		target := pathutil.Combine(root, entry.LinkTarget)
		return fs.Link(target, path, caller)
	case KindSymlink:
		if err := checkRootProtection(path, KindSymlink); err != nil {
			return err
		}
		if err := fs.Symlink(entry.SymlinkTarget, path, caller); err != nil {
			return err
		}
		return applyOwnership(fs, path, entry, caller)
	case KindMount:
		mode := entry.Mode
		if !entry.HasMode {
			mode = 0o755
		}
		return fs.Mount(path, mode, entry.MountSource, entry.MountResolver, caller)
	}
	return nil
}

func ensureDir(fs *vfs.Filesystem, path string, entry *Entry, caller permission.Caller) error {
	mode := entry.Mode
	if !entry.HasMode {
		mode = 0o755
	}
	err := fs.Mkdir(path, mode, caller)
	if err != nil && vfserrors.CodeOf(err) != vfserrors.EEXIST {
		return err
	}
	return applyAttrs(fs, path, entry, caller)
}

func writeFileEntry(fs *vfs.Filesystem, path string, entry *Entry, caller permission.Caller) error {
	mode := entry.Mode
	if !entry.HasMode {
		mode = 0o644
	}
	if err := fs.WriteFile(path, entry.Content, mode, caller); err != nil {
		return err
	}
	return applyAttrs(fs, path, entry, caller)
}

func applyAttrs(fs *vfs.Filesystem, path string, entry *Entry, caller permission.Caller) error {
	if err := applyOwnership(fs, path, entry, caller); err != nil {
		return err
	}
	if len(entry.Meta) == 0 {
		return nil
	}
	node, err := lookupNode(fs, path, caller)
	if err != nil {
		return err
	}
	for k, v := range entry.Meta {
		node.SetMeta(k, v)
	}
	return nil
}

func applyOwnership(fs *vfs.Filesystem, path string, entry *Entry, caller permission.Caller) error {
	if entry.Uid == 0 && entry.Gid == 0 {
		return nil
	}
	return fs.Chown(path, entry.Uid, entry.Gid, caller)
}

func lookupNode(fs *vfs.Filesystem, path string, caller permission.Caller) (*inode.Inode, error) {
	res, err := fs.Res.Resolve("apply", path, true, caller)
	if err != nil {
		return nil, err
	}
	if res.Node == nil {
		return nil, vfserrors.New("apply", vfserrors.ENOENT, path)
	}
	return res.Node, nil
}

// removePath recursively rimrafs path: directories are emptied depth-first
// via Rmdir, files/symlinks via Unlink.
func removePath(fs *vfs.Filesystem, path string, caller permission.Caller) error {
	res, err := fs.Res.Resolve("apply", path, true, caller)
	if err != nil {
		if vfserrors.CodeOf(err) == vfserrors.ENOENT {
			return nil
		}
		return err
	}
	if res.Node == nil {
		return nil
	}
	if err := checkRootProtectionForRemoval(path); err != nil {
		return err
	}

	if res.Node.IsDir() {
		children, err := fs.Res.MaterializeDir(res.Node)
		if err != nil {
			return err
		}
		for _, name := range children.Names() {
			if err := removePath(fs, pathutil.Combine(path, name), caller); err != nil {
				return err
			}
		}
		return fs.Rmdir(path, caller)
	}
	return fs.Unlink(path, caller)
}

// checkRootProtection rejects attempts to make a filesystem root path
// (pathutil.IsRoot) a file, symlink or hard link (spec §4.10: "Roots cannot be deleted, be
// files, be symlinks, or be hard links").
func checkRootProtection(path string, kind Kind) error {
	if !pathutil.IsRoot(path) {
		return nil
	}
	switch kind {
	case KindFile, KindSymlink, KindLink:
		return vfserrors.New("apply", vfserrors.EINVAL, path)
	}
	return nil
}

func checkRootProtectionForRemoval(path string) error {
	if pathutil.IsRoot(path) {
		return vfserrors.New("apply", vfserrors.EINVAL, path)
	}
	return nil
}

// effectiveKind resolves KindAuto against the entry's populated fields.
func (e *Entry) effectiveKind() Kind {
	if e.Kind != KindAuto {
		return e.Kind
	}
	if e.Children != nil {
		return KindDirectory
	}
	return KindFile
}
