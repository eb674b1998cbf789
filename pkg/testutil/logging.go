package testutil

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// TestLogLevelEnvName selects the log level of test binaries importing this
// package. Logs are discarded when it is unset.
const TestLogLevelEnvName = "OCFS2_TEST_LOG_LEVEL"

func init() {
	level, err := logrus.ParseLevel(os.Getenv(TestLogLevelEnvName))
	if err != nil {
		logrus.SetOutput(io.Discard)
		logrus.SetLevel(logrus.TraceLevel)
		return
	}
	logrus.SetLevel(level)
}
