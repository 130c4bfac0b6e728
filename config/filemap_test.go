package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/google/memvfs/bulkapply"
	"github.com/google/memvfs/config"
)

type FileMapTest struct {
	suite.Suite
}

func TestFileMapSuite(t *testing.T) {
	suite.Run(t, new(FileMapTest))
}

const sampleYAML = `
a:
  kind: directory
  children:
    f:
      kind: file
      content: "hi"
      mode: "644"
b.txt:
  kind: file
  content: "plain"
lnk.txt:
  kind: link
  link-target: b.txt
sym.txt:
  kind: symlink
  symlink-target: b.txt
`

func (t *FileMapTest) TestLoadFileMapParsesNestedTree() {
	dir := t.T().TempDir()
	path := filepath.Join(dir, "filemap.yaml")
	t.Require().NoError(os.WriteFile(path, []byte(sampleYAML), 0o644))

	m, err := config.LoadFileMap(path)
	t.Require().NoError(err)

	a, ok := m["a"]
	t.Require().True(ok)
	t.Equal(bulkapply.KindDirectory, a.Kind)
	f, ok := a.Children["f"]
	t.Require().True(ok)
	t.Equal(bulkapply.KindFile, f.Kind)
	t.Equal("hi", string(f.Content))
	t.True(f.HasMode)
	t.Equal(uint32(0o644), f.Mode)

	lnk, ok := m["lnk.txt"]
	t.Require().True(ok)
	t.Equal(bulkapply.KindLink, lnk.Kind)
	t.Equal("b.txt", lnk.LinkTarget)

	sym, ok := m["sym.txt"]
	t.Require().True(ok)
	t.Equal(bulkapply.KindSymlink, sym.Kind)
	t.Equal("b.txt", sym.SymlinkTarget)
}
