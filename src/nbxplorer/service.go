// Package nbxplorer implements the wallet connector: it tracks one extended
// public key on an NBXplorer instance, streams its transactions over a
// WebSocket and periodically reports its UTXO set.
package nbxplorer

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/0xb10c/block-alert/src/events"
	"github.com/0xb10c/block-alert/src/healthcheck"
	"github.com/0xb10c/block-alert/src/httpauth"
	"github.com/0xb10c/block-alert/src/metrics"
)

// ServiceName is the service log field of the connector.
const ServiceName = "NBXplorerService"

// healthCheckName labels the NBXplorer health check in logs and metrics.
const healthCheckName = "NBXplorer"

const handshakeTimeout = 30 * time.Second

// Config configures a Service.
type Config struct {
	URL                   string
	CryptoCode            string
	ExtendedPubKey        string
	BalanceReportInterval time.Duration
	Credentials           fn.Option[httpauth.Credentials]

	// HealthMaxAttempts overrides healthcheck.DefaultMaxAttempts when set.
	HealthMaxAttempts int

	// Optional collaborators. Nil values select the defaults.
	HTTPClient *http.Client
	Clock      clock.Clock
	Metrics    *metrics.Metrics
}

// Service is the wallet connector. It is stopped after construction.
type Service struct {
	cfg     Config
	client  *Client
	dialer  *websocket.Dialer
	emitter events.Emitter
	log     logrus.FieldLogger
	clock   clock.Clock
	metrics *metrics.Metrics
	health  *healthcheck.Checker
	balance *balanceScheduler

	// reconnects allows one recovery sequence in flight.
	reconnects singleflight.Group
	wg         sync.WaitGroup

	mu      sync.Mutex
	running bool
	conn    *connection
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewService returns a stopped connector publishing to emitter.
func NewService(cfg Config, emitter events.Emitter, log logrus.FieldLogger) *Service {
	if cfg.Clock == nil {
		cfg.Clock = clock.NewDefaultClock()
	}

	s := &Service{
		cfg:     cfg,
		client:  NewClient(cfg.URL, cfg.CryptoCode, cfg.Credentials, cfg.HTTPClient),
		emitter: emitter,
		log:     log,
		clock:   cfg.Clock,
		metrics: cfg.Metrics,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: handshakeTimeout,
		},
	}

	s.health = healthcheck.New(healthCheckName, s.client.StatusProbe(), s.clock, log)
	s.health.Metrics = cfg.Metrics
	if cfg.HealthMaxAttempts > 0 {
		s.health.MaxAttempts = cfg.HealthMaxAttempts
	}

	s.balance = newBalanceScheduler(s.clock, cfg.BalanceReportInterval, s.reportBalance)
	return s
}

// Running reports whether Start completed and Stop was not called since.
func (s *Service) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Start health-checks NBXplorer, tracks the key, opens and subscribes the
// WebSocket, waits for the UTXO scan and starts the balance reports. The
// steps run strictly in order. A failed step is logged and returned; the
// caller is expected to call Stop.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.log.Warn("NBXplorerService is already running")
		return nil
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.mu.Unlock()

	s.log.Info("Starting NBXplorerService")

	if err := s.start(ctx); err != nil {
		s.log.WithError(err).Error("Failed to start NBXplorerService")
		return err
	}

	s.mu.Lock()
	s.running = true
	s.mu.Unlock()

	s.log.Info("NBXplorerService started successfully")
	return nil
}

func (s *Service) start(ctx context.Context) error {
	if err := s.health.Run(ctx); err != nil {
		return err
	}
	if err := s.trackExtendedPubKey(ctx); err != nil {
		return err
	}
	if err := s.connectWebSocket(ctx); err != nil {
		return err
	}
	if err := s.subscribeEvents(); err != nil {
		return err
	}
	if err := s.waitForScanCompletion(ctx); err != nil {
		return err
	}
	s.log.Info("Starting periodic balance report")
	s.balance.Start()
	return nil
}

func (s *Service) trackExtendedPubKey(ctx context.Context) error {
	xpub := s.cfg.ExtendedPubKey
	if err := s.client.Track(ctx, xpub); err != nil {
		s.log.WithError(err).Errorf("Failed to track extended public key: %s", xpub)
		return err
	}
	s.log.Infof("Tracked extended public key: %s", xpub)
	return nil
}

// Stop closes the WebSocket with a normal closure, cancels the pending
// balance timer and interrupts an in-flight recovery sequence.
func (s *Service) Stop() error {
	s.mu.Lock()
	if !s.running {
		// a failed Start may have left a socket behind
		conn := s.conn
		s.conn = nil
		if s.cancel != nil {
			s.cancel()
		}
		s.mu.Unlock()

		s.log.Warn("NBXplorerService is not running")
		if conn != nil {
			_ = conn.closeNormally()
		}
		s.wg.Wait()
		return nil
	}
	// canceled under the lock so a concurrent reconnect cannot install a
	// new handle afterwards
	s.cancel()
	conn := s.conn
	s.conn = nil
	s.running = false
	s.mu.Unlock()

	s.log.Info("Stopping NBXplorerService")

	var err error
	if conn != nil {
		err = conn.closeNormally()
	}
	s.balance.Stop()
	s.wg.Wait()
	s.metrics.SetConnected(false)

	if err != nil {
		s.log.WithError(err).Error("Failed to stop NBXplorerService")
		return err
	}
	s.log.Info("NBXplorerService stopped")
	return nil
}

// lifetime returns the context canceled by Stop.
func (s *Service) lifetime() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx == nil {
		return context.Background()
	}
	return s.ctx
}
