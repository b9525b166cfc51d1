// Package debug provides global debug/verbose logging control
package debug

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Verbose controls whether debug output is enabled
var Verbose bool

var logger = newLogger()

func newLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(logrus.InfoLevel)
	l.SetFormatter(&logrus.TextFormatter{
		DisableTimestamp: true,
		DisableQuote:     true,
	})
	return l
}

// Logger returns the shared logger.
func Logger() *logrus.Logger {
	return logger
}

// SetVerbose toggles debug output for Printf and for the shared logger.
func SetVerbose(v bool) {
	Verbose = v
	if v {
		logger.SetLevel(logrus.DebugLevel)
	} else {
		logger.SetLevel(logrus.InfoLevel)
	}
}

// SetOutput redirects the shared logger.
func SetOutput(w io.Writer) {
	logger.SetOutput(w)
}

// Printf prints debug output if verbose mode is enabled
func Printf(format string, args ...interface{}) {
	if Verbose {
		logger.Debug(strings.TrimSuffix(fmt.Sprintf(format, args...), "\n"))
	}
}
