// Package ntfy delivers block-alert notifications to an ntfy server.
package ntfy

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/lightningnetwork/lnd/clock"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/0xb10c/block-alert/src/format"
	"github.com/0xb10c/block-alert/src/healthcheck"
	"github.com/0xb10c/block-alert/src/httpauth"
	"github.com/0xb10c/block-alert/src/metrics"
	"github.com/0xb10c/block-alert/src/types"
)

const (
	// ServiceName is the service log field of the dispatcher.
	ServiceName = "NtfyService"

	// SetupMessage is sent once after every service started.
	SetupMessage = "Block-Alert setup completed successfully 👍"

	// DefaultExplorerTxURL prefixes the txid in the "View" action.
	DefaultExplorerTxURL = "https://mempool.space/tx/"

	healthCheckName = "Ntfy"
	requestTimeout  = 30 * time.Second
)

// Notification kinds used as metric labels.
const (
	KindSetup       = "setup"
	KindTransaction = "transaction"
	KindBalance     = "balance"
)

// ErrUnexpectedStatus is returned when ntfy rejects a message.
var ErrUnexpectedStatus = errors.New("unexpected status from ntfy")

// Events are the event streams the dispatcher consumes.
type Events interface {
	Transactions() <-chan types.TransactionAnalysis
	Balances() <-chan types.UtxoSnapshot
	StartupSuccess() <-chan struct{}
}

type Config struct {
	URL           string
	Topic         string
	Credentials   fn.Option[httpauth.Credentials]
	ExplorerTxURL string

	// HealthMaxAttempts overrides healthcheck.DefaultMaxAttempts when set.
	HealthMaxAttempts int

	HTTPClient *http.Client
	Clock      clock.Clock
	Metrics    *metrics.Metrics
}

// Service is the notification dispatcher. Delivery is best effort: failed
// messages are logged and dropped.
type Service struct {
	cfg      Config
	topicURL string
	header   http.Header
	http     *http.Client
	events   Events
	log      logrus.FieldLogger
	metrics  *metrics.Metrics
	health   *healthcheck.Checker

	wg sync.WaitGroup

	mu        sync.Mutex
	running   bool
	cancel    context.CancelFunc
	setupSent bool
}

func NewService(cfg Config, events Events, log logrus.FieldLogger) *Service {
	if cfg.Clock == nil {
		cfg.Clock = clock.NewDefaultClock()
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: requestTimeout}
	}
	if cfg.ExplorerTxURL == "" {
		cfg.ExplorerTxURL = DefaultExplorerTxURL
	}

	baseURL := strings.TrimRight(cfg.URL, "/")
	header := httpauth.Header(cfg.Credentials)

	s := &Service{
		cfg:      cfg,
		topicURL: baseURL + "/" + cfg.Topic,
		header:   header,
		http:     cfg.HTTPClient,
		events:   events,
		log:      log,
		metrics:  cfg.Metrics,
	}

	probe := healthcheck.HTTPProbe(cfg.HTTPClient, baseURL+"/v1/health", header)
	s.health = healthcheck.New(healthCheckName, probe, cfg.Clock, log)
	s.health.Metrics = cfg.Metrics
	if cfg.HealthMaxAttempts > 0 {
		s.health.MaxAttempts = cfg.HealthMaxAttempts
	}
	return s
}

// Start health-checks ntfy and starts dispatching events.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.log.Warn("NtfyService is already running")
		return nil
	}
	s.mu.Unlock()

	s.log.Info("Starting NtfyService")
	if err := s.health.Run(ctx); err != nil {
		s.log.WithError(err).Error("Failed to start NtfyService")
		return err
	}

	dispatchCtx, cancel := context.WithCancel(context.Background())

	s.mu.Lock()
	s.running = true
	s.cancel = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	go s.dispatch(dispatchCtx)

	s.log.Info("NtfyService started successfully")
	return nil
}

// Stop stops dispatching. Events published afterwards are not delivered.
func (s *Service) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		s.log.Warn("NtfyService is not running")
		return nil
	}
	s.running = false
	cancel := s.cancel
	s.mu.Unlock()

	cancel()
	s.wg.Wait()

	s.log.Info("NtfyService stopped")
	return nil
}

func (s *Service) dispatch(ctx context.Context) {
	defer s.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return

		case <-s.events.StartupSuccess():
			s.sendSetup(ctx)

		case analysis := <-s.events.Transactions():
			s.sendTransaction(ctx, analysis)

		case snapshot := <-s.events.Balances():
			s.sendBalanceReport(ctx, snapshot)
		}
	}
}

// sendSetup sends SetupMessage for the first startup_success only.
func (s *Service) sendSetup(ctx context.Context) {
	s.mu.Lock()
	sent := s.setupSent
	s.setupSent = true
	s.mu.Unlock()
	if sent {
		return
	}

	err := s.post(ctx, SetupMessage, nil)
	s.metrics.ObserveNotification(KindSetup, err)
	if err != nil {
		s.log.WithError(err).Error("Failed to send message to ntfy server")
	}
}

func (s *Service) sendTransaction(ctx context.Context, analysis types.TransactionAnalysis) {
	header := http.Header{}
	header.Set("Actions", "view, View on mempool.space, "+s.cfg.ExplorerTxURL+analysis.TxID)

	err := s.post(ctx, format.Transaction(analysis), header)
	s.metrics.ObserveNotification(KindTransaction, err)
	if err != nil {
		s.log.WithError(err).WithField("txid", analysis.TxID).
			Error("Failed to send transaction notification")
		return
	}
	s.log.WithField("txid", analysis.TxID).Info("Transaction notification sent successfully")
}

func (s *Service) sendBalanceReport(ctx context.Context, snapshot types.UtxoSnapshot) {
	err := s.post(ctx, format.BalanceReport(snapshot), nil)
	s.metrics.ObserveNotification(KindBalance, err)
	if err != nil {
		s.log.WithError(err).Error("Failed to send balance report")
		return
	}
	s.log.Info("Balance report sent successfully")
}

// post publishes body to the topic.
func (s *Service) post(ctx context.Context, body string, extra http.Header) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.topicURL, strings.NewReader(body))
	if err != nil {
		return errors.WithStack(err)
	}
	for k, v := range s.header {
		req.Header[k] = v
	}
	for k, v := range extra {
		req.Header[k] = v
	}
	req.Header.Set("Content-Type", "text/plain")

	resp, err := s.http.Do(req)
	if err != nil {
		return errors.Wrap(err, "posting to ntfy")
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode/100 != 2 {
		return errors.Wrapf(ErrUnexpectedStatus, "status %d", resp.StatusCode)
	}
	return nil
}
