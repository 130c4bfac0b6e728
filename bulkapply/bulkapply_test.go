package bulkapply_test

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/google/memvfs/bulkapply"
	"github.com/google/memvfs/clock"
	"github.com/google/memvfs/pathutil"
	"github.com/google/memvfs/permission"
	"github.com/google/memvfs/vfs"
	"github.com/google/memvfs/vfserrors"
)

type BulkApplyTest struct {
	suite.Suite
	fs    *vfs.Filesystem
	root0 permission.Caller
}

func TestBulkApplySuite(t *testing.T) {
	suite.Run(t, new(BulkApplyTest))
}

func (t *BulkApplyTest) SetupTest() {
	t.fs = vfs.New(&clock.RealClock{}, pathutil.NewCaseSensitiveComparator(), 0o755)
	t.root0 = permission.Caller{Uid: 0, Gid: 0}
}

func (t *BulkApplyTest) TestDirectoriesAndFilesCreated() {
	m := bulkapply.FileMap{
		"a": {
			Kind: bulkapply.KindDirectory,
			Children: map[string]*bulkapply.Entry{
				"f": {Kind: bulkapply.KindFile, Content: []byte("hi")},
			},
		},
		"b.txt": {Content: []byte("plain")}, // untagged KindAuto -> file
	}
	t.Require().NoError(bulkapply.Apply(t.fs, "/", m, t.root0))

	b, err := t.fs.ReadFile("/a/f", t.root0)
	t.Require().NoError(err)
	t.Equal("hi", string(b))

	b2, err := t.fs.ReadFile("/b.txt", t.root0)
	t.Require().NoError(err)
	t.Equal("plain", string(b2))

	st, err := t.fs.Stat("/a", t.root0)
	t.Require().NoError(err)
	t.True(inodeIsDir(st))
}

func inodeIsDir(st interface{ IsDir() bool }) bool { return st.IsDir() }

func (t *BulkApplyTest) TestSymlinkAndLinkDeferredUntilTargetsExist() {
	m := bulkapply.FileMap{
		"real.txt": {Content: []byte("content")},
		"lnk.txt":  {Kind: bulkapply.KindLink, LinkTarget: "real.txt"},
		"sym.txt":  {Kind: bulkapply.KindSymlink, SymlinkTarget: "real.txt"},
	}
	t.Require().NoError(bulkapply.Apply(t.fs, "/", m, t.root0))

	b, err := t.fs.ReadFile("/lnk.txt", t.root0)
	t.Require().NoError(err)
	t.Equal("content", string(b))

	b2, err := t.fs.ReadFile("/sym.txt", t.root0)
	t.Require().NoError(err)
	t.Equal("content", string(b2))

	lst, err := t.fs.Lstat("/sym.txt", t.root0)
	t.Require().NoError(err)
	t.True(lst.IsSymlink())

	lnkSt, err := t.fs.Lstat("/lnk.txt", t.root0)
	t.Require().NoError(err)
	t.Equal(uint32(2), lnkSt.Nlink)
}

func (t *BulkApplyTest) TestAbsentRemovesExistingTree() {
	setup := bulkapply.FileMap{
		"dir": {
			Kind: bulkapply.KindDirectory,
			Children: map[string]*bulkapply.Entry{
				"f": {Content: []byte("x")},
			},
		},
	}
	t.Require().NoError(bulkapply.Apply(t.fs, "/", setup, t.root0))

	teardown := bulkapply.FileMap{"dir": nil}
	t.Require().NoError(bulkapply.Apply(t.fs, "/", teardown, t.root0))

	_, err := t.fs.Stat("/dir", t.root0)
	t.True(vfserrors.Is(err, vfserrors.ENOENT))
}

func (t *BulkApplyTest) TestRootCannotBecomeFileOrSymlinkOrLink() {
	fileErr := applyRootAs(t.fs, bulkapply.KindFile, t.root0)
	t.True(vfserrors.Is(fileErr, vfserrors.EINVAL))

	symErr := applyRootAs(t.fs, bulkapply.KindSymlink, t.root0)
	t.True(vfserrors.Is(symErr, vfserrors.EINVAL))

	linkErr := applyRootAs(t.fs, bulkapply.KindLink, t.root0)
	t.True(vfserrors.Is(linkErr, vfserrors.EINVAL))
}

// applyRootAs builds a single-entry FileMap keyed by the empty name so that,
// once combined with the "/" root directory argument, the resulting path is
// the filesystem root itself — exercising the same protection path Apply enforces internally.
func applyRootAs(fs *vfs.Filesystem, kind bulkapply.Kind, caller permission.Caller) error {
	entry := &bulkapply.Entry{Kind: kind}
	switch kind {
	case bulkapply.KindLink:
		entry.LinkTarget = "somewhere"
	case bulkapply.KindSymlink:
		entry.SymlinkTarget = "somewhere"
	}
	m := bulkapply.FileMap{"": entry}
	return bulkapply.Apply(fs, "/", m, caller)
}

func (t *BulkApplyTest) TestAttributesApplied() {
	m := bulkapply.FileMap{
		"owned.txt": {
			Content: []byte("x"),
			Uid:     7, Gid: 8,
			Meta: map[string]string{"tag": "v1"},
		},
	}
	t.Require().NoError(bulkapply.Apply(t.fs, "/", m, t.root0))

	st, err := t.fs.Stat("/owned.txt", t.root0)
	t.Require().NoError(err)
	t.Equal(uint32(7), st.Uid)
	t.Equal(uint32(8), st.Gid)
}
