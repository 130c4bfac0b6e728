package fdtable_test

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/google/memvfs/clock"
	"github.com/google/memvfs/fdtable"
	"github.com/google/memvfs/inode"
	"github.com/google/memvfs/pathutil"
	"github.com/google/memvfs/permission"
	"github.com/google/memvfs/resolver"
	"github.com/google/memvfs/vfserrors"
)

type FdTableTest struct {
	suite.Suite
	store *inode.Store
	root  *inode.Inode
	res   *resolver.Resolver
	table *fdtable.Table
	root0 permission.Caller
}

func TestFdTableSuite(t *testing.T) {
	suite.Run(t, new(FdTableTest))
}

func (t *FdTableTest) SetupTest() {
	cmp := pathutil.NewCaseSensitiveComparator()
	clk := &clock.RealClock{}
	t.store = inode.NewStore(clk, cmp)
	t.root = t.store.NewDirectory(0o755, 0, 0)
	t.res = resolver.New(t.store, t.root, cmp)
	t.table = fdtable.New(clk, t.res)
	t.root0 = permission.Caller{Uid: 0, Gid: 0}
}

func (t *FdTableTest) TestCreateWriteReadClose() {
	d, err := t.table.Open("/f", fdtable.O_WRONLY|fdtable.O_CREAT, 0o644, t.root0)
	t.Require().NoError(err)

	n, err := t.table.Write(d, []byte("hello"), nil)
	t.Require().NoError(err)
	t.Equal(5, n)

	t.Require().NoError(t.table.Close(d.FD))

	rd, err := t.table.Open("/f", fdtable.O_RDONLY, 0, t.root0)
	t.Require().NoError(err)

	buf := make([]byte, 5)
	n, err = t.table.Read(rd, buf, nil)
	t.Require().NoError(err)
	t.Equal(5, n)
	t.Equal("hello", string(buf))
	t.Require().NoError(t.table.Close(rd.FD))
}

func (t *FdTableTest) TestCopyOnWriteIsolatesReaders() {
	d1, err := t.table.Open("/f", fdtable.O_WRONLY|fdtable.O_CREAT, 0o644, t.root0)
	t.Require().NoError(err)
	_, err = t.table.Write(d1, []byte("v1"), nil)
	t.Require().NoError(err)
	t.Require().NoError(t.table.Close(d1.FD))

	d2, err := t.table.Open("/f", fdtable.O_RDWR, 0, t.root0)
	t.Require().NoError(err)
	_, err = t.table.Write(d2, []byte("XX"), int64Ptr(0))
	t.Require().NoError(err)

	d3, err := t.table.Open("/f", fdtable.O_RDONLY, 0, t.root0)
	t.Require().NoError(err)
	buf := make([]byte, 2)
	_, err = t.table.Read(d3, buf, int64Ptr(0))
	t.Require().NoError(err)
	t.Equal("v1", string(buf), "reader opened before fsync must not see unpublished write")

	t.Require().NoError(t.table.Close(d2.FD))

	d4, err := t.table.Open("/f", fdtable.O_RDONLY, 0, t.root0)
	t.Require().NoError(err)
	_, err = t.table.Read(d4, buf, int64Ptr(0))
	t.Require().NoError(err)
	t.Equal("XX", string(buf), "published write is visible to new opens")
}

func (t *FdTableTest) TestOpenMissingWithoutCreateFails() {
	_, err := t.table.Open("/missing", fdtable.O_RDONLY, 0, t.root0)
	t.Require().Error(err)
	t.True(vfserrors.Is(err, vfserrors.ENOENT))
}

func (t *FdTableTest) TestOpenExclWithExistingFails() {
	_, err := t.table.Open("/f", fdtable.O_WRONLY|fdtable.O_CREAT, 0o644, t.root0)
	t.Require().NoError(err)

	_, err = t.table.Open("/f", fdtable.O_WRONLY|fdtable.O_CREAT|fdtable.O_EXCL, 0o644, t.root0)
	t.Require().Error(err)
	t.True(vfserrors.Is(err, vfserrors.EEXIST))
}

func (t *FdTableTest) TestCloseUnknownFDFailsEBADF() {
	err := t.table.Close(999999)
	t.Require().Error(err)
	t.True(vfserrors.Is(err, vfserrors.EBADF))
}

func (t *FdTableTest) TestTruncateGrowsWithZeros() {
	d, err := t.table.Open("/f", fdtable.O_WRONLY|fdtable.O_CREAT, 0o644, t.root0)
	t.Require().NoError(err)
	_, err = t.table.Write(d, []byte("ab"), nil)
	t.Require().NoError(err)
	t.Require().NoError(t.table.Close(d.FD))

	node := d.Node
	t.Require().NoError(t.table.Truncate(node, 4, nil, "f"))
	t.EqualValues(4, node.Size())
	t.Equal([]byte("ab\x00\x00"), node.BytesIfMaterialized())
}

func int64Ptr(v int64) *int64 { return &v }
