// Package resolver implements the path-to-entry walk (spec §4.2): parsing
// a path into segments, descending the directory graph, expanding
// symlinks with loop detection, and checking X_OK on every intermediate
// directory. It also owns on-first-touch materialisation of mount and
// shadow directories/files, since that is exactly when the resolver
// descends into them.
package resolver

import (
	"github.com/google/memvfs/inode"
	"github.com/google/memvfs/pathutil"
	"github.com/google/memvfs/permission"
	"github.com/google/memvfs/vfserrors"
)

// maxSymlinkDepth bounds symlink expansion (spec §4.2 step 3: "if depth >=
// 40, fail with ELOOP").
const maxSymlinkDepth = 40

// Result is what a successful resolve produces: the normalized path, its
// basename, the parent directory inode (the root itself when Node is the
// filesystem root), and the target node (nil when the basename was not
// found but the parent was — e.g. for mkdir/create callers).
type Result struct {
	Path     string
	Basename string
	Parent   *inode.Inode
	Node     *inode.Inode
}

// Resolver walks paths against one filesystem instance's root.
type Resolver struct {
	Store      *inode.Store
	Root       *inode.Inode
	Cwd        string
	Comparator pathutil.Comparator
}

// New builds a Resolver rooted at root, backed by store for minting
// materialised mount/shadow children.
func New(store *inode.Store, root *inode.Inode, cmp pathutil.Comparator) *Resolver {
	return &Resolver{Store: store, Root: root, Comparator: cmp}
}

// Resolve walks path per spec §4.2, expanding symlinks unless noFollow is
// set for the final segment. caller is used for the X_OK check required
// on every intermediate directory.
func (r *Resolver) Resolve(op, path string, noFollow bool, caller permission.Caller) (Result, error) {
	effective := path
	if !pathutil.IsAbsolute(path) {
		if r.Cwd == "" {
			return Result{}, vfserrors.New(op, vfserrors.ENOENT, path)
		}
		effective = pathutil.Resolve(r.Cwd, path)
	} else {
		effective = pathutil.Normalize(path)
	}

	pp := pathutil.Parse(effective)
	segments := pp.Segments

	current := r.Root
	var parent *inode.Inode
	depth := 0
	basename := ""

	for i := 0; i < len(segments); i++ {
		seg := segments[i]
		isLast := i == len(segments)-1

		children, err := r.MaterializeDir(current)
		if err != nil {
			return Result{}, err
		}

		child, ok := children.Get(seg)
		if !ok {
			if isLast {
				return Result{Path: effective, Basename: seg, Parent: current}, nil
			}
			return Result{}, vfserrors.New(op, vfserrors.ENOENT, path)
		}

		if child.IsSymlink() && !(noFollow && isLast) {
			prefix := segmentsPrefix(pp.Root, segments, i-1)
			target := pathutil.Resolve(prefix, child.Target())
			if !pathutil.IsAbsolute(target) {
				return Result{}, vfserrors.New(op, vfserrors.ENOENT, path)
			}
			depth++
			if depth >= maxSymlinkDepth {
				return Result{}, vfserrors.New(op, vfserrors.ELOOP, prefix)
			}

			tpp := pathutil.Parse(target)
			remaining := append(append([]string{}, tpp.Segments...), segments[i+1:]...)
			segments = remaining
			current = r.Root
			parent = nil
			i = -1
			continue
		}

		if !isLast {
			if !child.IsDir() {
				return Result{}, vfserrors.New(op, vfserrors.ENOTDIR, path)
			}
			if !permission.Access(child.Perm(), child.Header().Uid, child.Header().Gid, caller, permission.X_OK) {
				return Result{}, vfserrors.New(op, vfserrors.EACCES, path)
			}
			parent = current
			current = child
			continue
		}

		parent = current
		basename = seg
		return Result{Path: effective, Basename: basename, Parent: parent, Node: child}, nil
	}

	// Zero segments: the path names the root itself.
	if !current.IsDir() {
		return Result{}, vfserrors.New(op, vfserrors.ENOTDIR, path)
	}
	return Result{Path: effective, Basename: "", Parent: current, Node: current}, nil
}

// segmentsPrefix rebuilds the absolute path of segments[:upTo+1] under
// root, used as the directory context a symlink target is resolved
// relative to (spec §4.2 step 3: "compute resolve(current-prefix,
// symlink.target)"). Callers pass the index of the symlink's parent
// directory, not the symlink itself, so a relative target like "f" found
// at "/a/g" resolves against "/a", not "/a/g".
func segmentsPrefix(root string, segments []string, upTo int) string {
	if upTo < 0 {
		return root
	}
	return pathutil.Format(pathutil.ParsedPath{Root: root, Segments: append([]string{}, segments[:upTo+1]...)})
}

// MaterializeFile returns n's bytes, faulting in mount or shadow content
// on first touch (spec §3, §4.8, §4.9). Shadow bytes are copied, never
// aliased, so a later write to either side cannot leak across the
// overlay boundary.
func (r *Resolver) MaterializeFile(n *inode.Inode) ([]byte, error) {
	if b := n.BytesIfMaterialized(); b != nil {
		return b, nil
	}

	if shadowRoot := n.ShadowRoot(); shadowRoot != nil {
		return n.EnsureFileMaterialized(func() ([]byte, error) {
			src, err := r.MaterializeFile(shadowRoot)
			if err != nil {
				return nil, err
			}
			return append([]byte{}, src...), nil
		})
	}

	if source, ext, ok := n.FileSource(); ok {
		return n.EnsureFileMaterialized(func() ([]byte, error) {
			return ext.ReadFileSync(source)
		})
	}

	panic("resolver: file has no bytes, shadow root, or mount source")
}

// MaterializeDir returns n's children, faulting in mount or shadow
// content on first touch (spec §3, §4.8, §4.9).
func (r *Resolver) MaterializeDir(n *inode.Inode) (*inode.ChildMap, error) {
	if cm := n.ChildrenIfMaterialized(); cm != nil {
		return cm, nil
	}

	if shadowRoot := n.ShadowRoot(); shadowRoot != nil {
		return n.EnsureDirMaterialized(func() (*inode.ChildMap, error) {
			shadowChildren, err := r.MaterializeDir(shadowRoot)
			if err != nil {
				return nil, err
			}
			cm := inode.NewChildMap(r.Comparator)
			shadowChildren.Each(func(name string, child *inode.Inode) {
				var shadowChild *inode.Inode
				switch child.Kind() {
				case inode.KindDirectory:
					shadowChild = r.Store.NewShadowDirectory(child)
				case inode.KindRegular:
					shadowChild = r.Store.NewShadowFile(child)
				case inode.KindSymlink:
					shadowChild = r.Store.NewShadowSymlink(child)
				}
				cm.Set(name, shadowChild)
			})
			return cm, nil
		})
	}

	if source, ext, ok := n.DirSource(); ok {
		return n.EnsureDirMaterialized(func() (*inode.ChildMap, error) {
			names, err := ext.ReaddirSync(source)
			if err != nil {
				return nil, err
			}
			cm := inode.NewChildMap(r.Comparator)
			for _, name := range names {
				childSource := pathutil.Combine(source, name)
				mode, size, err := ext.StatSync(childSource)
				if err != nil {
					return nil, err
				}
				var child *inode.Inode
				if mode&inode.TypeMask == inode.TypeDir {
					child = r.Store.NewMountDirectory(mode&0o7777, 0, 0, childSource, ext)
				} else {
					child = r.Store.NewMountFile(mode&0o7777, 0, 0, size, childSource, ext)
				}
				cm.Set(name, child)
			}
			return cm, nil
		})
	}

	// Already materialised as empty (a plain directory created with no
	// children) but ChildrenIfMaterialized returned nil only if it truly
	// hasn't been set; NewDirectory always sets a non-nil ChildMap, so
	// reaching here means the directory has neither a shadow root nor a
	// mount source and yet reports unmaterialised children, which would
	// be a construction bug upstream.
	panic("resolver: directory has no children, shadow root, or mount source")
}
