package nbxplorer

import (
	"context"
	"testing"
	"time"

	"github.com/lightningnetwork/lnd/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xb10c/block-alert/src/test"
)

func newTestScheduler(t *testing.T) (*balanceScheduler, *clock.TestClock, chan time.Duration, chan struct{}) {
	ticks := make(chan time.Duration, 10)
	clk := clock.NewTestClockWithTickSignal(testStart, ticks)
	reports := make(chan struct{}, 10)

	b := newBalanceScheduler(clk, time.Minute, func(ctx context.Context) {
		reports <- struct{}{}
	})
	t.Cleanup(b.Stop)
	return b, clk, ticks, reports
}

func TestBalanceScheduler_ReportsEveryInterval(t *testing.T) {
	b, clk, ticks, reports := newTestScheduler(t)
	b.Start()

	test.Receive(t, reports)
	require.Equal(t, time.Minute, test.Receive(t, ticks))
	test.AssertNoReceive(t, reports)

	for i := 1; i <= 3; i++ {
		clk.SetTime(testStart.Add(time.Duration(i) * time.Minute))
		test.Receive(t, reports)
		require.Equal(t, time.Minute, test.Receive(t, ticks))
	}
	assert.Equal(t, 1, b.timers())
}

func TestBalanceScheduler_RestartCancelsPendingTimer(t *testing.T) {
	b, clk, ticks, reports := newTestScheduler(t)

	b.Start()
	test.Receive(t, reports)
	test.Receive(t, ticks)

	// a second start while the first timer is pending
	b.Start()
	test.Receive(t, reports)
	test.Receive(t, ticks)

	require.Eventually(t, func() bool { return b.timers() == 1 },
		test.Timeout, 10*time.Millisecond)

	// both timers were due at the same instant; only the second one fires
	clk.SetTime(testStart.Add(time.Minute))
	test.Receive(t, reports)
	test.Receive(t, ticks)
	test.AssertNoReceive(t, reports)
	assert.Equal(t, 1, b.timers())
}

func TestBalanceScheduler_Stop(t *testing.T) {
	b, clk, ticks, reports := newTestScheduler(t)

	b.Start()
	test.Receive(t, reports)
	test.Receive(t, ticks)

	b.Stop()
	assert.Equal(t, 0, b.timers())

	clk.SetTime(testStart.Add(time.Hour))
	test.AssertNoReceive(t, reports)

	// a stopped scheduler can be started again
	b.Start()
	test.Receive(t, reports)
	require.Equal(t, time.Minute, test.Receive(t, ticks))
}

func TestBalanceScheduler_StopBeforeStart(t *testing.T) {
	b, _, _, reports := newTestScheduler(t)
	b.Stop()
	test.AssertNoReceive(t, reports)
	assert.Equal(t, 0, b.timers())
}
