// Package extmount implements the mount mechanism (spec §4.9): a
// directory inode whose children are lazily faulted in from an injected
// external resolver. The lazy-copy mechanics themselves live in
// resolver.MaterializeFile/MaterializeDir, since that is exactly where
// the "materialise on first touch" moment occurs during path resolution;
// this package owns construction and the concrete OS-backed resolver
// implementation.
package extmount

import (
	"os"
	"path/filepath"

	"github.com/google/memvfs/inode"
)

// Mount creates a directory inode at the caller's chosen location whose
// (source, resolver) fields are populated, per spec §4.9. The caller
// (vfs.Filesystem) is responsible for binding the returned inode into a
// parent's children map under the target basename.
func Mount(store *inode.Store, perm, uid, gid uint32, source string, resolver inode.ExternalResolver) *inode.Inode {
	return store.NewMountDirectory(perm, uid, gid, source, resolver)
}

// OSResolver implements inode.ExternalResolver against the real host
// filesystem, the concrete form of the "FileSystemResolver" spec §6
// names: "statSync(path) -> {mode, size}", "readdirSync(path) -> [name]",
// "readFileSync(path) -> bytes".
type OSResolver struct{}

func (OSResolver) StatSync(path string) (mode uint32, size int64, err error) {
	fi, err := os.Stat(path)
	if err != nil {
		return 0, 0, err
	}
	m := uint32(fi.Mode().Perm())
	if fi.IsDir() {
		m |= inode.TypeDir
	} else {
		m |= inode.TypeReg
	}
	return m, fi.Size(), nil
}

func (OSResolver) ReaddirSync(path string) ([]string, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name()
	}
	return names, nil
}

func (OSResolver) ReadFileSync(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// JoinSource joins a mount source path and a child name with filepath.Join,
// using forward slashes. The resolver does not call it: it builds child
// source paths with pathutil.Combine.
func JoinSource(source, name string) string {
	return filepath.ToSlash(filepath.Join(source, name))
}
