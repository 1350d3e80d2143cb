// Package metrics exposes block-alert's Prometheus metrics.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/0xb10c/block-alert/src/types"
)

const namespace = "blockalert"

// Result label values.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// Metrics holds all collectors. A nil *Metrics is valid and records nothing,
// so components can be used without a registry.
type Metrics struct {
	TransactionsDetected *prometheus.CounterVec
	BalanceReports       *prometheus.CounterVec
	Reconnects           *prometheus.CounterVec
	HealthChecks         *prometheus.CounterVec
	Notifications        *prometheus.CounterVec
	WebSocketConnected   prometheus.Gauge
	WalletBalance        *prometheus.GaugeVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		TransactionsDetected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transactions_detected_total",
			Help:      "Wallet transactions received from NBXplorer",
		}, []string{"type", "status"}),
		BalanceReports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "balance_reports_total",
			Help:      "Periodic UTXO fetches by result",
		}, []string{"result"}),
		Reconnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconnects_total",
			Help:      "WebSocket recovery attempts by result",
		}, []string{"result"}),
		HealthChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "health_checks_total",
			Help:      "Health probes by service and result",
		}, []string{"service", "result"}),
		Notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Messages posted to ntfy by kind and result",
		}, []string{"kind", "result"}),
		WebSocketConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "websocket_connected",
			Help:      "1 while the NBXplorer WebSocket is open",
		}),
		WalletBalance: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "wallet_balance_sats",
			Help:      "Balance of the tracked key in satoshis from the last report",
		}, []string{"state"}),
	}

	reg.MustRegister(
		m.TransactionsDetected, m.BalanceReports, m.Reconnects,
		m.HealthChecks, m.Notifications, m.WebSocketConnected,
		m.WalletBalance,
	)
	return m
}

func result(err error) string {
	if err != nil {
		return ResultError
	}
	return ResultOK
}

func (m *Metrics) ObserveTransaction(a types.TransactionAnalysis) {
	if m == nil {
		return
	}
	m.TransactionsDetected.WithLabelValues(string(a.Type), string(a.Status)).Inc()
}

// ObserveBalanceReport counts a balance fetch and, on success, records the
// wallet totals.
func (m *Metrics) ObserveBalanceReport(snapshot *types.UtxoSnapshot, err error) {
	if m == nil {
		return
	}
	m.BalanceReports.WithLabelValues(result(err)).Inc()
	if err != nil || snapshot == nil {
		return
	}
	unconfirmed, confirmed := snapshot.Totals()
	m.WalletBalance.WithLabelValues("unconfirmed").Set(float64(unconfirmed))
	m.WalletBalance.WithLabelValues("confirmed").Set(float64(confirmed))
}

func (m *Metrics) ObserveReconnect(err error) {
	if m == nil {
		return
	}
	m.Reconnects.WithLabelValues(result(err)).Inc()
}

func (m *Metrics) ObserveHealthCheck(service string, err error) {
	if m == nil {
		return
	}
	m.HealthChecks.WithLabelValues(service, result(err)).Inc()
}

func (m *Metrics) ObserveNotification(kind string, err error) {
	if m == nil {
		return
	}
	m.Notifications.WithLabelValues(kind, result(err)).Inc()
}

func (m *Metrics) SetConnected(connected bool) {
	if m == nil {
		return
	}
	if connected {
		m.WebSocketConnected.Set(1)
	} else {
		m.WebSocketConnected.Set(0)
	}
}

// Server serves /metrics and /healthz.
type Server struct {
	server *http.Server
}

// NewServer returns a metrics server for the collectors in gatherer.
func NewServer(addr string, gatherer prometheus.Gatherer) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return &Server{
		server: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 5 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}
}

// Serve blocks until the server fails or is shut down. A clean shutdown
// returns nil.
func (s *Server) Serve() error {
	if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error { return s.server.Shutdown(ctx) }

// Handler returns the server's mux, for tests.
func (s *Server) Handler() http.Handler { return s.server.Handler }
