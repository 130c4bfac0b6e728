package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/suite"
)

type ApplyCmdTest struct {
	suite.Suite
}

func TestApplyCmdSuite(t *testing.T) {
	suite.Run(t, new(ApplyCmdTest))
}

const applyTestYAML = `
greeting.txt:
  kind: file
  content: "hello"
`

func (t *ApplyCmdTest) TestApplyRunEAppliesFileMap() {
	dir := t.T().TempDir()
	mapPath := filepath.Join(dir, "map.yaml")
	t.Require().NoError(os.WriteFile(mapPath, []byte(applyTestYAML), 0o644))

	err := applyCmd.RunE(applyCmd, []string{mapPath, "/"})
	t.Require().NoError(err)
}
