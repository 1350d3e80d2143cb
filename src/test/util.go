package test

import (
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
)

// Timeout bounds every wait in tests.
const Timeout = 5 * time.Second

// quietPeriod is how long AssertNoReceive waits for an unexpected value.
const quietPeriod = 200 * time.Millisecond

// SkipIfShort skips a test if testing in short mode
func SkipIfShort(t *testing.T) {
	if testing.Short() {
		// t.Skip() kills the goroutine
		t.Skip("Skipping " + t.Name() + " since it's not a unit test.")
	}
}

// Receive returns the next value of ch or fails the test after Timeout.
func Receive[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(Timeout):
		t.Fatalf("timed out after %s waiting for a %T", Timeout, *new(T))
	}
	var zero T
	return zero
}

// AssertNoReceive fails the test if ch yields a value within a short
// quiet period.
func AssertNoReceive[T any](t *testing.T, ch <-chan T) {
	t.Helper()
	select {
	case v := <-ch:
		t.Errorf("unexpected value %+v", v)
	case <-time.After(quietPeriod):
	}
}

// NewLogger returns a discarding logger at debug level and a hook recording
// its entries.
func NewLogger() (*logrus.Logger, *logtest.Hook) {
	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	return logger, hook
}

// HasLogEntry reports whether hook recorded an entry at level whose message
// contains msg.
func HasLogEntry(hook *logtest.Hook, level logrus.Level, msg string) bool {
	for _, e := range hook.AllEntries() {
		if e.Level == level && strings.Contains(e.Message, msg) {
			return true
		}
	}
	return false
}
