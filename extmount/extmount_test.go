package extmount_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/google/memvfs/clock"
	"github.com/google/memvfs/extmount"
	"github.com/google/memvfs/inode"
	"github.com/google/memvfs/pathutil"
	"github.com/google/memvfs/permission"
	"github.com/google/memvfs/resolver"
)

type ExtMountTest struct {
	suite.Suite
	store *inode.Store
	root  *inode.Inode
	res   *resolver.Resolver
	root0 permission.Caller
}

func TestExtMountSuite(t *testing.T) {
	suite.Run(t, new(ExtMountTest))
}

func (t *ExtMountTest) SetupTest() {
	cmp := pathutil.NewCaseSensitiveComparator()
	t.store = inode.NewStore(&clock.RealClock{}, cmp)
	t.root = t.store.NewDirectory(0o755, 0, 0)
	t.res = resolver.New(t.store, t.root, cmp)
	t.root0 = permission.Caller{Uid: 0, Gid: 0}
}

func (t *ExtMountTest) TestMountAgainstRealDirectory() {
	dir := t.T().TempDir()
	t.Require().NoError(os.WriteFile(filepath.Join(dir, "hello.txt"), []byte("hi"), 0o644))
	t.Require().NoError(os.Mkdir(filepath.Join(dir, "sub"), 0o755))

	mnt := extmount.Mount(t.store, 0o755, 0, 0, dir, extmount.OSResolver{})
	t.root.ChildrenIfMaterialized().Set("ext", mnt)

	res, err := t.res.Resolve("stat", "/ext/hello.txt", false, t.root0)
	t.Require().NoError(err)
	t.Require().NotNil(res.Node)
	t.True(res.Node.IsRegular())

	b, err := t.res.MaterializeFile(res.Node)
	t.Require().NoError(err)
	t.Equal("hi", string(b))

	sres, err := t.res.Resolve("stat", "/ext/sub", false, t.root0)
	t.Require().NoError(err)
	t.True(sres.Node.IsDir())
}
