// Package logging builds the process logger.
package logging

import (
	"io"
	"os"
	"path/filepath"

	"github.com/jrick/logrotate/rotator"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	// rotateThresholdKB is the size at which the log file is rolled.
	rotateThresholdKB = 10 * 1024
	maxRolls          = 3
)

// Logger is the root logger and the log file it writes to, if any.
type Logger struct {
	*logrus.Logger
	rotator *rotator.Rotator
}

// New returns a text logger at level writing to stdout and, when logFile is
// set, to a rotating log file.
func New(level, logFile string) (*Logger, error) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid log level %q", level)
	}

	l := &Logger{Logger: logrus.New()}
	l.SetLevel(lvl)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	var out io.Writer = os.Stdout
	if logFile != "" {
		if err := os.MkdirAll(filepath.Dir(logFile), 0o700); err != nil {
			return nil, errors.Wrapf(err, "could not create log directory for %s", logFile)
		}
		r, err := rotator.New(logFile, rotateThresholdKB, false, maxRolls)
		if err != nil {
			return nil, errors.Wrapf(err, "could not open log file %s", logFile)
		}
		l.rotator = r
		out = io.MultiWriter(os.Stdout, r)
	}
	l.SetOutput(out)
	return l, nil
}

// Service returns a logger tagged with the component name.
func (l *Logger) Service(name string) logrus.FieldLogger {
	return l.WithField("service", name)
}

// Close flushes and closes the log file.
func (l *Logger) Close() error {
	if l.rotator == nil {
		return nil
	}
	return l.rotator.Close()
}
