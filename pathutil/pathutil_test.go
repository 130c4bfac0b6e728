package pathutil_test

import (
	"testing"

	"github.com/google/memvfs/pathutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

type PathUtilTest struct {
	suite.Suite
}

func TestPathUtilSuite(t *testing.T) {
	suite.Run(t, new(PathUtilTest))
}

func (t *PathUtilTest) TestParsePosixAbsolute() {
	pp := pathutil.Parse("/a/b/c")
	assert.Equal(t.T(), "/", pp.Root)
	assert.Equal(t.T(), []string{"a", "b", "c"}, pp.Segments)
}

func (t *PathUtilTest) TestParseUNC() {
	pp := pathutil.Parse("//host/share/a/b")
	assert.Equal(t.T(), "//host/share/", pp.Root)
	assert.Equal(t.T(), []string{"a", "b"}, pp.Segments)
}

func (t *PathUtilTest) TestParseDOS() {
	pp := pathutil.Parse("c:/a/b")
	assert.Equal(t.T(), "c:/", pp.Root)
	assert.Equal(t.T(), []string{"a", "b"}, pp.Segments)
}

func (t *PathUtilTest) TestFormatRoundTrip() {
	for _, p := range []string{"/a/b/c", "//host/share/a", "c:/a/b", "rel/a"} {
		pp := pathutil.Parse(p)
		assert.Equal(t.T(), pathutil.NormalizeSeparators(p), pathutil.Format(pp))
	}
}

func (t *PathUtilTest) TestNormalizeCollapsesDotDot() {
	assert.Equal(t.T(), "/a/c", pathutil.Normalize("/a/b/../c"))
	assert.Equal(t.T(), "/a", pathutil.Normalize("/a/b/.."))
}

func (t *PathUtilTest) TestNormalizeNeverEscapesRoot() {
	assert.Equal(t.T(), "/", pathutil.Normalize("/../../a/../.."))
}

func (t *PathUtilTest) TestNormalizeIdempotent() {
	p := "/a/./b/../c/d"
	once := pathutil.Normalize(p)
	twice := pathutil.Normalize(once)
	assert.Equal(t.T(), once, twice)
}

func (t *PathUtilTest) TestResolveRelativeAgainstBase() {
	got := pathutil.Resolve("/a/b", "../c")
	assert.Equal(t.T(), "/a/c", got)
}

func (t *PathUtilTest) TestIsAbsolute() {
	assert.True(t.T(), pathutil.IsAbsolute("/a"))
	assert.True(t.T(), pathutil.IsAbsolute("c:/a"))
	assert.True(t.T(), pathutil.IsAbsolute("//host/share/a"))
	assert.False(t.T(), pathutil.IsAbsolute("a/b"))
}

func (t *PathUtilTest) TestDirnameBasenameExtname() {
	assert.Equal(t.T(), "/a/b", pathutil.Dirname("/a/b/c.txt"))
	assert.Equal(t.T(), "c.txt", pathutil.Basename("/a/b/c.txt"))
	assert.Equal(t.T(), ".txt", pathutil.Extname("/a/b/c.txt"))
	assert.Equal(t.T(), "", pathutil.Extname("/a/b/.hidden"))
}

func (t *PathUtilTest) TestCaseInsensitiveComparator() {
	c := pathutil.NewCaseInsensitiveComparator()
	assert.True(t.T(), c.Equal("Foo", "foo"))
	assert.True(t.T(), c.CaseInsensitive())
}

func (t *PathUtilTest) TestValidateRequiresRoot() {
	err := pathutil.Validate("a/b", pathutil.RequireRoot|pathutil.AllowBasename|pathutil.AllowDirname)
	assert.Error(t.T(), err)
}

func (t *PathUtilTest) TestValidateForbidsNavigationByDefault() {
	err := pathutil.Validate("/a/../b", pathutil.Absolute&^pathutil.AllowNavigation)
	assert.Error(t.T(), err)
}

func (t *PathUtilTest) TestValidateAcceptsAbsolute() {
	err := pathutil.Validate("/a/b", pathutil.Absolute)
	assert.NoError(t.T(), err)
}

func (t *PathUtilTest) TestHasTrailingSeparatorFalseForRoot() {
	assert.False(t.T(), pathutil.HasTrailingSeparator("/"))
	assert.True(t.T(), pathutil.HasTrailingSeparator("/a/"))
}
