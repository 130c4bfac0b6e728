// Package shadow implements the copy-on-read overlay (spec §4.8): a new,
// mutable filesystem whose root is lazily populated from a frozen parent.
// The actual per-node lazy-copy mechanics live in resolver (which already
// owns "materialise on first touch" for both shadow and mount sources);
// this package owns construction, casing-compatibility rejection, and the
// read-only write barrier (Guard) that each filesystem instance holds.
package shadow

import (
	"github.com/google/memvfs/inode"
	"github.com/google/memvfs/pathutil"
	"github.com/google/memvfs/vfserrors"
)

// Guard is the global write barrier a filesystem instance consults
// before every mutation (spec §5: "freezing (makeReadonly) is a global
// write barrier; any attempt to mutate a frozen filesystem fails with
// EROFS (or EPERM for identity changes)").
type Guard struct {
	frozen bool
}

// MakeReadonly freezes the filesystem. Freezing is one-way: there is no
// unfreeze operation in the source contract.
func (g *Guard) MakeReadonly() { g.frozen = true }

func (g *Guard) IsReadonly() bool { return g.frozen }

// CheckWritable returns EROFS if the filesystem is frozen.
func (g *Guard) CheckWritable(op, path string) error {
	if g.frozen {
		return vfserrors.New(op, vfserrors.EROFS, path)
	}
	return nil
}

// CheckIdentityWritable returns EPERM if the filesystem is frozen, for
// identity-affecting operations (setuid/setgid/umask) spec §5 calls out
// as failing EPERM rather than EROFS while frozen.
func (g *Guard) CheckIdentityWritable(op, path string) error {
	if g.frozen {
		return vfserrors.New(op, vfserrors.EPERM, path)
	}
	return nil
}

// New builds the root inode of a shadow filesystem lazily overlaying
// parentRoot (spec §4.8). store must already be constructed with the
// comparator childCmp; casing compatibility is checked here because it
// is a property of the pairing, not of either filesystem alone: "a
// case-insensitive child atop a case-sensitive parent is rejected at
// construction."
func New(store *inode.Store, parentRoot *inode.Inode, parentCmp, childCmp pathutil.Comparator) (*inode.Inode, error) {
	if childCmp.CaseInsensitive() && !parentCmp.CaseInsensitive() {
		return nil, vfserrors.New("shadow", vfserrors.EINVAL, "")
	}
	return store.NewShadowDirectory(parentRoot), nil
}
