package inode_test

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/google/memvfs/clock"
	"github.com/google/memvfs/inode"
	"github.com/google/memvfs/pathutil"
)

type InodeTest struct {
	suite.Suite
	store *inode.Store
}

func TestInodeSuite(t *testing.T) {
	suite.Run(t, new(InodeTest))
}

func (t *InodeTest) SetupTest() {
	t.store = inode.NewStore(&clock.RealClock{}, pathutil.NewCaseSensitiveComparator())
}

func (t *InodeTest) TestKindDiscriminants() {
	dir := t.store.NewDirectory(0o755, 0, 0)
	t.True(dir.IsDir())
	t.False(dir.IsRegular())
	t.False(dir.IsSymlink())

	file := t.store.NewRegularFile(0o644, 0, 0)
	t.True(file.IsRegular())
	t.False(file.IsDir())

	link := t.store.NewSymlink("/target", 0, 0)
	t.True(link.IsSymlink())
	t.False(link.IsDir())
}

func (t *InodeTest) TestIdCountersAreMonotonicAndUnique() {
	a := t.store.NewRegularFile(0o644, 0, 0)
	b := t.store.NewRegularFile(0o644, 0, 0)
	t.NotEqual(a.Ino(), b.Ino())
	t.Less(a.Ino(), b.Ino())
}

func (t *InodeTest) TestDevIsSharedAcrossInodesFromSameStore() {
	a := t.store.NewRegularFile(0o644, 0, 0)
	b := t.store.NewDirectory(0o755, 0, 0)
	t.Equal(a.Dev(), b.Dev())
}

func (t *InodeTest) TestDevDiffersAcrossStores() {
	other := inode.NewStore(&clock.RealClock{}, pathutil.NewCaseSensitiveComparator())
	a := t.store.NewRegularFile(0o644, 0, 0)
	b := other.NewRegularFile(0o644, 0, 0)
	t.NotEqual(a.Dev(), b.Dev())
}

func (t *InodeTest) TestNewDirectoryStartsAtNlinkTwo() {
	dir := t.store.NewDirectory(0o755, 0, 0)
	t.EqualValues(2, dir.Nlink())
}

func (t *InodeTest) TestNewRegularFileStartsAtNlinkOne() {
	file := t.store.NewRegularFile(0o644, 0, 0)
	t.EqualValues(1, file.Nlink())
}

func (t *InodeTest) TestIncDecNlink() {
	file := t.store.NewRegularFile(0o644, 0, 0)
	file.IncNlink()
	t.EqualValues(2, file.Nlink())

	reachedZero := file.DecNlink()
	t.False(reachedZero)
	t.EqualValues(1, file.Nlink())

	reachedZero = file.DecNlink()
	t.True(reachedZero)
	t.EqualValues(0, file.Nlink())
}

func (t *InodeTest) TestDecNlinkNeverGoesNegative() {
	file := t.store.NewRegularFile(0o644, 0, 0)
	file.DecNlink()
	reachedZero := file.DecNlink()
	t.True(reachedZero)
	t.EqualValues(0, file.Nlink())
}

func (t *InodeTest) TestSetModePreservesTypeBits() {
	dir := t.store.NewDirectory(0o755, 0, 0)
	dir.SetMode(0o700)
	t.EqualValues(0o700, dir.Perm())
	t.Equal(uint32(inode.TypeDir), dir.Mode()&inode.TypeMask)
}

func (t *InodeTest) TestOwner() {
	file := t.store.NewRegularFile(0o644, 7, 9)
	uid, gid := file.Owner()
	t.EqualValues(7, uid)
	t.EqualValues(9, gid)

	file.SetOwner(1, 2)
	uid, gid = file.Owner()
	t.EqualValues(1, uid)
	t.EqualValues(2, gid)
}

func (t *InodeTest) TestMetaFallsThroughToShadowRoot() {
	root := t.store.NewDirectory(0o755, 0, 0)
	root.SetMeta("color", "blue")

	shadowDir := t.store.NewShadowDirectory(root)
	v, ok := shadowDir.Meta("color")
	t.True(ok)
	t.Equal("blue", v)

	shadowDir.SetMeta("color", "red")
	v, ok = shadowDir.Meta("color")
	t.True(ok)
	t.Equal("red", v)

	_, ok = shadowDir.Meta("missing")
	t.False(ok)
}

func (t *InodeTest) TestMetaOnNonShadowedInodeMissesCleanly() {
	file := t.store.NewRegularFile(0o644, 0, 0)
	_, ok := file.Meta("anything")
	t.False(ok)
}

func (t *InodeTest) TestShadowRootNilForOrdinaryInode() {
	file := t.store.NewRegularFile(0o644, 0, 0)
	t.Nil(file.ShadowRoot())

	dir := t.store.NewDirectory(0o755, 0, 0)
	t.Nil(dir.ShadowRoot())

	link := t.store.NewSymlink("/x", 0, 0)
	t.Nil(link.ShadowRoot())
}

func (t *InodeTest) TestShadowRootSetForShadowVariants() {
	root := t.store.NewDirectory(0o755, 0, 0)
	shadowDir := t.store.NewShadowDirectory(root)
	t.Same(root, shadowDir.ShadowRoot())

	file := t.store.NewRegularFile(0o644, 0, 0)
	shadowFile := t.store.NewShadowFile(file)
	t.Same(file, shadowFile.ShadowRoot())

	link := t.store.NewSymlink("/x", 0, 0)
	shadowLink := t.store.NewShadowSymlink(link)
	t.Same(link, shadowLink.ShadowRoot())
	t.Equal("/x", shadowLink.Target())
}

func (t *InodeTest) TestTargetPanicsOnNonSymlink() {
	file := t.store.NewRegularFile(0o644, 0, 0)
	t.Panics(func() { file.Target() })
}

func (t *InodeTest) TestChildrenIfMaterializedPanicsOnNonDir() {
	file := t.store.NewRegularFile(0o644, 0, 0)
	t.Panics(func() { file.ChildrenIfMaterialized() })
}

func (t *InodeTest) TestBytesIfMaterializedPanicsOnNonFile() {
	dir := t.store.NewDirectory(0o755, 0, 0)
	t.Panics(func() { dir.BytesIfMaterialized() })
}

// watchSpy is a minimal inode.WatchTarget double recording deliveries.
type watchSpy struct {
	id        uint64
	delivered []uint32
	ignored   bool
}

func (w *watchSpy) WatchID() uint64 { return w.id }
func (w *watchSpy) Deliver(mask uint32, name string, cookie uint64) {
	w.delivered = append(w.delivered, mask)
}
func (w *watchSpy) Ignore() { w.ignored = true }

func (t *InodeTest) TestAddRemoveWatch() {
	file := t.store.NewRegularFile(0o644, 0, 0)
	t.Equal(0, file.WatchCount())

	w := &watchSpy{id: 1}
	file.AddWatch(w)
	t.Equal(1, file.WatchCount())

	_, ok := file.Watch(1)
	t.True(ok)

	file.RemoveWatch(1)
	t.Equal(0, file.WatchCount())
	_, ok = file.Watch(1)
	t.False(ok)
}

func (t *InodeTest) TestNotifyDeliversToAllWatches() {
	file := t.store.NewRegularFile(0o644, 0, 0)
	a := &watchSpy{id: 1}
	b := &watchSpy{id: 2}
	file.AddWatch(a)
	file.AddWatch(b)

	file.Notify(0x123, "name", 42)

	t.Equal([]uint32{0x123}, a.delivered)
	t.Equal([]uint32{0x123}, b.delivered)
}

func (t *InodeTest) TestTeardownWatchesIgnoresAndClears() {
	file := t.store.NewRegularFile(0o644, 0, 0)
	a := &watchSpy{id: 1}
	file.AddWatch(a)

	file.TeardownWatches()

	t.True(a.ignored)
	t.Equal(0, file.WatchCount())
}

func (t *InodeTest) TestEnsureFileMaterializedInvokesOnlyOnce() {
	mnt := t.store.NewMountFile(0o644, 0, 0, 5, "/src", nil)

	calls := 0
	materialize := func() ([]byte, error) {
		calls++
		return []byte("hello"), nil
	}

	b, err := mnt.EnsureFileMaterialized(materialize)
	t.Require().NoError(err)
	t.Equal("hello", string(b))
	t.Equal(1, calls)

	b, err = mnt.EnsureFileMaterialized(materialize)
	t.Require().NoError(err)
	t.Equal("hello", string(b))
	t.Equal(1, calls, "materialize is not invoked again once cached")
}

func (t *InodeTest) TestStatRegularFileReflectsMaterializedSize() {
	file := t.store.NewRegularFile(0o644, 0, 0)
	file.SetBytes([]byte("hello"))

	st := file.Stat()
	t.True(st.IsFile())
	t.EqualValues(5, st.Size)
}

func (t *InodeTest) TestStatSymlinkSizeIsTargetLength() {
	link := t.store.NewSymlink("/a/b/c", 0, 0)
	st := link.Stat()
	t.True(st.IsSymlink())
	t.EqualValues(len("/a/b/c"), st.Size)
}

func (t *InodeTest) TestStatDirectorySizeIsZero() {
	dir := t.store.NewDirectory(0o755, 0, 0)
	st := dir.Stat()
	t.True(st.IsDir())
	t.EqualValues(0, st.Size)
}
