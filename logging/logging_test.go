package logging_test

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/google/memvfs/logging"
)

type LoggingTest struct {
	suite.Suite
}

func TestLoggingSuite(t *testing.T) {
	suite.Run(t, new(LoggingTest))
}

func (t *LoggingTest) TestSeverityFiltersBelowThreshold() {
	logPath := filepath.Join(t.T().TempDir(), "out.log")
	logger, level := logging.New(logging.Options{Severity: logging.Warning, LogFile: logPath})
	t.Require().NotNil(level)

	logger.Info("should be filtered")
	logger.Warn("should appear")

	data, err := os.ReadFile(logPath)
	t.Require().NoError(err)
	t.NotContains(string(data), "should be filtered")
	t.Contains(string(data), "should appear")
}

func (t *LoggingTest) TestJSONHandlerRewritesSeverityKey() {
	logPath := filepath.Join(t.T().TempDir(), "out.log")
	logger, _ := logging.New(logging.Options{Severity: logging.Trace, LogFile: logPath})
	logger.Error("boom")

	data, err := os.ReadFile(logPath)
	t.Require().NoError(err)

	var rec map[string]interface{}
	t.Require().NoError(json.NewDecoder(bytes.NewReader(data)).Decode(&rec))
	t.Equal("ERROR", rec["severity"])
	t.Equal("boom", rec["msg"])
}
