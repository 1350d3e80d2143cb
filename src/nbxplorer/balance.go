package nbxplorer

import (
	"context"
	"sync"
	"time"

	"github.com/lightningnetwork/lnd/clock"
)

// balanceScheduler runs report immediately and then again interval after
// each report finished. It holds at most one pending timer: arming a timer
// cancels the previous one.
type balanceScheduler struct {
	clock    clock.Clock
	interval time.Duration
	report   func(ctx context.Context)

	wg sync.WaitGroup

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	// pending is closed to cancel the armed timer.
	pending chan struct{}
	// waiting counts timer goroutines that have not returned yet.
	waiting int
}

func newBalanceScheduler(clk clock.Clock, interval time.Duration,
	report func(ctx context.Context)) *balanceScheduler {

	return &balanceScheduler{
		clock:    clk,
		interval: interval,
		report:   report,
	}
}

// Start triggers a report now. A pending timer of a previous Start is
// canceled.
func (b *balanceScheduler) Start() {
	b.mu.Lock()
	if b.ctx == nil || b.ctx.Err() != nil {
		b.ctx, b.cancel = context.WithCancel(context.Background())
	}
	b.cancelPendingLocked()
	ctx := b.ctx
	b.wg.Add(1)
	b.mu.Unlock()

	go func() {
		defer b.wg.Done()
		b.tick(ctx)
	}()
}

// Stop cancels the pending timer and any running report, then waits for
// the scheduler's goroutines.
func (b *balanceScheduler) Stop() {
	b.mu.Lock()
	if b.cancel != nil {
		b.cancel()
	}
	b.cancelPendingLocked()
	b.mu.Unlock()

	b.wg.Wait()
}

func (b *balanceScheduler) tick(ctx context.Context) {
	b.mu.Lock()
	b.cancelPendingLocked()
	b.mu.Unlock()

	b.report(ctx)
	b.arm(ctx)
}

// arm schedules the next tick regardless of the outcome of the last report.
func (b *balanceScheduler) arm(ctx context.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ctx.Err() != nil {
		return
	}
	b.cancelPendingLocked()

	cancelTimer := make(chan struct{})
	b.pending = cancelTimer
	b.waiting++
	fire := b.clock.TickAfter(b.interval)

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()

		select {
		case <-fire:
			b.mu.Lock()
			fired := b.pending == cancelTimer
			if fired {
				b.pending = nil
			}
			b.waiting--
			b.mu.Unlock()

			if fired {
				b.tick(ctx)
			}

		case <-cancelTimer:
			b.mu.Lock()
			b.waiting--
			b.mu.Unlock()
		}
	}()
}

func (b *balanceScheduler) cancelPendingLocked() {
	if b.pending != nil {
		close(b.pending)
		b.pending = nil
	}
}

// timers returns the number of timers not yet fired or canceled.
func (b *balanceScheduler) timers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.waiting
}

// reportBalance fetches the UTXO set of the tracked key and publishes it.
// Failures are logged; the schedule continues.
func (s *Service) reportBalance(ctx context.Context) {
	snapshot, err := s.client.Utxos(ctx, s.cfg.ExtendedPubKey)
	if err != nil {
		s.metrics.ObserveBalanceReport(nil, err)
		if ctx.Err() == nil {
			s.log.WithError(err).Error("Failed to get UTXOs periodically")
		}
		return
	}
	s.metrics.ObserveBalanceReport(&snapshot, nil)

	s.log.Info("UTXOs retrieved successfully")
	s.emitter.EmitBalance(snapshot)
}
