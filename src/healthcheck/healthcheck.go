// Package healthcheck implements the retrying health probe shared by the
// NBXplorer and ntfy services.
package healthcheck

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/lightningnetwork/lnd/clock"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/0xb10c/block-alert/src/metrics"
)

const (
	// DefaultMaxAttempts is the number of probes before giving up.
	DefaultMaxAttempts = 10
	// DefaultMaxDelay caps the exponential backoff between probes.
	DefaultMaxDelay = 32 * time.Second

	baseDelay = time.Second
)

// ErrMaxAttempts is returned once every probe attempt failed.
var ErrMaxAttempts = errors.New("health check failed after maximum attempts")

// ProbeFunc performs a single health probe. A nil error means healthy.
type ProbeFunc func(ctx context.Context) error

// Checker repeatedly probes a service until it reports healthy.
type Checker struct {
	Name        string
	Probe       ProbeFunc
	MaxAttempts int
	MaxDelay    time.Duration
	Clock       clock.Clock
	Log         logrus.FieldLogger
	Metrics     *metrics.Metrics
}

// New returns a Checker with the default attempt ceiling and delay cap.
func New(name string, probe ProbeFunc, clk clock.Clock, log logrus.FieldLogger) *Checker {
	return &Checker{
		Name:        name,
		Probe:       probe,
		MaxAttempts: DefaultMaxAttempts,
		MaxDelay:    DefaultMaxDelay,
		Clock:       clk,
		Log:         log,
	}
}

// Backoff returns the delay after the given 1-based failed attempt:
// min(1s * 2^(attempt-1), maxDelay).
func Backoff(attempt int, maxDelay time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	// beyond 2^30 seconds the shift would overflow
	if attempt > 31 {
		return maxDelay
	}
	delay := baseDelay << uint(attempt-1)
	if delay > maxDelay {
		return maxDelay
	}
	return delay
}

// Run probes until the service is healthy, sleeping Backoff(attempt)
// between failures. After MaxAttempts failures it returns an error wrapping
// ErrMaxAttempts. No delay follows the last attempt.
func (c *Checker) Run(ctx context.Context) error {
	c.Log.Infof("Starting %s health check...", c.Name)

	for attempt := 1; attempt <= c.MaxAttempts; attempt++ {
		err := c.Probe(ctx)
		c.Metrics.ObserveHealthCheck(c.Name, err)
		if err == nil {
			c.Log.Infof("%s health check passed", c.Name)
			return nil
		}
		c.Log.WithField("attempt", attempt).Warnf("Health check error: %s", err)

		if attempt == c.MaxAttempts {
			break
		}

		delay := Backoff(attempt, c.MaxDelay)
		c.Log.Infof("Retrying health check in %d ms...", delay.Milliseconds())

		select {
		case <-c.Clock.TickAfter(delay):
		case <-ctx.Done():
			return errors.Wrapf(ctx.Err(), "%s health check interrupted", c.Name)
		}
	}

	c.Log.Errorf("%s health check failed after maximum attempts", c.Name)
	return errors.Wrapf(ErrMaxAttempts, "%s health check failed", c.Name)
}

// HTTPProbe returns a probe that GETs url with the given headers and
// succeeds only on HTTP 200.
func HTTPProbe(client *http.Client, url string, header http.Header) ProbeFunc {
	return func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return errors.WithStack(err)
		}
		for k, v := range header {
			req.Header[k] = v
		}

		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		_, _ = io.Copy(io.Discard, resp.Body)

		if resp.StatusCode != http.StatusOK {
			return errors.Errorf("health check failed with status: %d", resp.StatusCode)
		}
		return nil
	}
}
