package shadow_test

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/google/memvfs/clock"
	"github.com/google/memvfs/fdtable"
	"github.com/google/memvfs/inode"
	"github.com/google/memvfs/pathutil"
	"github.com/google/memvfs/permission"
	"github.com/google/memvfs/resolver"
	"github.com/google/memvfs/shadow"
	"github.com/google/memvfs/vfserrors"
)

type ShadowTest struct {
	suite.Suite
	parentStore *inode.Store
	parentRoot  *inode.Inode
	root0       permission.Caller
}

func TestShadowSuite(t *testing.T) {
	suite.Run(t, new(ShadowTest))
}

func (t *ShadowTest) SetupTest() {
	cmp := pathutil.NewCaseSensitiveComparator()
	t.parentStore = inode.NewStore(&clock.RealClock{}, cmp)
	t.parentRoot = t.parentStore.NewDirectory(0o755, 0, 0)
	t.root0 = permission.Caller{Uid: 0, Gid: 0}
}

func (t *ShadowTest) TestCaseInsensitiveChildOverCaseSensitiveParentRejected() {
	childCmp := pathutil.NewCaseInsensitiveComparator()
	childStore := inode.NewStore(&clock.RealClock{}, childCmp)

	_, err := shadow.New(childStore, t.parentRoot, pathutil.NewCaseSensitiveComparator(), childCmp)
	t.Require().Error(err)
	t.True(vfserrors.Is(err, vfserrors.EINVAL))
}

func (t *ShadowTest) TestGuardRejectsMutationWhileFrozen() {
	var g shadow.Guard
	t.NoError(g.CheckWritable("write", "/f"))
	g.MakeReadonly()
	err := g.CheckWritable("write", "/f")
	t.Require().Error(err)
	t.True(vfserrors.Is(err, vfserrors.EROFS))

	err = g.CheckIdentityWritable("chmod", "/f")
	t.True(vfserrors.Is(err, vfserrors.EPERM))
}

func (t *ShadowTest) TestShadowChildMutationDoesNotAffectParent() {
	cmp := pathutil.NewCaseSensitiveComparator()

	a := t.parentStore.NewDirectory(0o755, 0, 0)
	t.parentRoot.ChildrenIfMaterialized().Set("a", a)
	f := t.parentStore.NewRegularFile(0o644, 0, 0)
	f.SetBytes([]byte("original"))
	a.ChildrenIfMaterialized().Set("f", f)

	childStore := inode.NewStore(&clock.RealClock{}, cmp)
	shadowRoot, err := shadow.New(childStore, t.parentRoot, cmp, cmp)
	t.Require().NoError(err)

	childRes := resolver.New(childStore, shadowRoot, cmp)
	childTable := fdtable.New(&clock.RealClock{}, childRes)

	d, err := childTable.Open("/a/f", fdtable.O_RDWR, 0, t.root0)
	t.Require().NoError(err)
	_, err = childTable.Write(d, []byte("MUTATED!"), int64Zero())
	t.Require().NoError(err)
	t.Require().NoError(childTable.Close(d.FD))

	t.Equal("original", string(f.BytesIfMaterialized()), "parent content must be untouched by shadow child writes")

	buf := make([]byte, 8)
	rd, err := childTable.Open("/a/f", fdtable.O_RDONLY, 0, t.root0)
	t.Require().NoError(err)
	_, err = childTable.Read(rd, buf, int64Zero())
	t.Require().NoError(err)
	t.Equal("MUTATED!", string(buf))
}

func (t *ShadowTest) TestMetadataFallsThroughToParent() {
	t.parentRoot.SetMeta("owner-team", "fs")

	childStore := inode.NewStore(&clock.RealClock{}, pathutil.NewCaseSensitiveComparator())
	shadowRoot, err := shadow.New(childStore, t.parentRoot, pathutil.NewCaseSensitiveComparator(), pathutil.NewCaseSensitiveComparator())
	t.Require().NoError(err)

	v, ok := shadowRoot.Meta("owner-team")
	t.Require().True(ok)
	t.Equal("fs", v)
}

func int64Zero() *int64 {
	v := int64(0)
	return &v
}
