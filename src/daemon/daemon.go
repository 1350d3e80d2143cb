// Package daemon starts and stops block-alert's services in order and turns
// shutdown events into process termination.
package daemon

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/0xb10c/block-alert/src/events"
)

// ServiceName is the service log field of the coordinator.
const ServiceName = "ProcessManager"

// StartupFailure is the shutdown reason logged when a service fails to
// start.
const StartupFailure = "Startup failure"

// ErrShutdownEvent is returned by Run when a service requested shutdown.
var ErrShutdownEvent = errors.New("shutdown requested by service")

// Service is a component with an explicit lifecycle.
type Service interface {
	Start(ctx context.Context) error
	Stop() error
}

type BlockAlertDaemon struct {
	bus        *events.Bus
	connector  Service
	dispatcher Service
	log        logrus.FieldLogger

	quit     chan struct{}
	stopOnce sync.Once

	mu      sync.Mutex
	running bool
	closed  bool
	reason  string
	cancel  context.CancelFunc
}

// NewBlockAlertDaemon wires the wallet connector and the notification
// dispatcher to bus, which the daemon owns from now on.
func NewBlockAlertDaemon(bus *events.Bus, connector, dispatcher Service, log logrus.FieldLogger) *BlockAlertDaemon {
	return &BlockAlertDaemon{
		bus:        bus,
		connector:  connector,
		dispatcher: dispatcher,
		log:        log,
		quit:       make(chan struct{}),
	}
}

// Run starts the dispatcher, then the connector, and publishes
// startup_success. It blocks until a service emits shutdown, Stop is called
// or ctx is done. Stop also interrupts a startup in progress. Run returns
// nil only for a requested shutdown; the caller must call Close in every
// case.
func (d *BlockAlertDaemon) Run(ctx context.Context) error {
	startCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		d.log.Warn("ProcessManager is already running")
		return nil
	}
	d.running = true
	d.cancel = cancel
	d.mu.Unlock()

	select {
	case <-d.quit:
		d.log.Infof("Initiating shutdown: %s", d.stopReason())
		return nil
	default:
	}

	d.log.Info("Starting all services...")
	if err := d.start(startCtx); err != nil {
		select {
		case <-d.quit:
			d.log.WithError(err).Info("Startup interrupted")
			d.log.Infof("Initiating shutdown: %s", d.stopReason())
			return nil
		default:
		}
		d.log.WithError(err).Error("Error occurred during startup")
		d.log.Infof("Initiating shutdown: %s", StartupFailure)
		return errors.Wrap(err, StartupFailure)
	}
	d.bus.EmitStartupSuccess()
	d.log.Info("Application started successfully")

	select {
	case reason := <-d.bus.Shutdown():
		d.log.Infof("Initiating shutdown: %s", reason)
		return errors.Wrap(ErrShutdownEvent, reason)

	case <-d.quit:
		d.log.Infof("Initiating shutdown: %s", d.stopReason())
		return nil

	case <-ctx.Done():
		d.log.Infof("Initiating shutdown: %s", ctx.Err())
		return nil
	}
}

func (d *BlockAlertDaemon) stopReason() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.reason
}

func (d *BlockAlertDaemon) start(ctx context.Context) error {
	if err := d.dispatcher.Start(ctx); err != nil {
		return errors.Wrap(err, "could not start notification dispatcher")
	}
	if err := d.connector.Start(ctx); err != nil {
		return errors.Wrap(err, "could not start wallet connector")
	}
	return nil
}

// Stop makes Run return and cancels the context of a startup in progress.
// Only the first reason is kept.
func (d *BlockAlertDaemon) Stop(reason string) {
	d.stopOnce.Do(func() {
		d.mu.Lock()
		d.reason = reason
		cancel := d.cancel
		d.mu.Unlock()

		close(d.quit)
		if cancel != nil {
			cancel()
		}
	})
}

// Close stops the connector, then the dispatcher, and closes the bus. Both
// services are stopped even if the first one fails.
func (d *BlockAlertDaemon) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		d.log.Warn("ProcessManager is not running")
		return nil
	}
	d.closed = true
	d.mu.Unlock()

	var errs []error
	if err := d.connector.Stop(); err != nil {
		errs = append(errs, errors.Wrap(err, "could not stop wallet connector"))
	}
	if err := d.dispatcher.Stop(); err != nil {
		errs = append(errs, errors.Wrap(err, "could not stop notification dispatcher"))
	}
	d.bus.Close()

	if len(errs) > 0 {
		for _, err := range errs {
			d.log.WithError(err).Error("Error occurred during shutdown")
		}
		return errs[0]
	}
	d.log.Info("All services stopped successfully")
	return nil
}
