package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xb10c/block-alert/src/types"
)

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveTransaction(types.TransactionAnalysis{})
	m.ObserveBalanceReport(nil, errors.New("boom"))
	m.ObserveReconnect(nil)
	m.ObserveHealthCheck("nbxplorer", nil)
	m.ObserveNotification("transaction", nil)
	m.SetConnected(true)
}

func TestMetrics_ObserveBalanceReport(t *testing.T) {
	m := New(prometheus.NewRegistry())

	snapshot := &types.UtxoSnapshot{
		Unconfirmed: types.UtxoSet{Utxos: []types.Utxo{
			{Address: "a", Value: 1000, Confirmations: 0},
		}},
		Confirmed: types.UtxoSet{Utxos: []types.Utxo{
			{Address: "a", Value: 5000, Confirmations: 2},
			{Address: "b", Value: 7000, Confirmations: 1},
		}},
	}

	m.ObserveBalanceReport(snapshot, nil)
	m.ObserveBalanceReport(nil, errors.New("unreachable"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.BalanceReports.WithLabelValues(ResultOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BalanceReports.WithLabelValues(ResultError)))
	assert.Equal(t, 1000.0, testutil.ToFloat64(m.WalletBalance.WithLabelValues("unconfirmed")))
	assert.Equal(t, 12000.0, testutil.ToFloat64(m.WalletBalance.WithLabelValues("confirmed")))
}

func TestMetrics_ObserveTransaction(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.ObserveTransaction(types.TransactionAnalysis{Type: types.Received, Status: types.Confirmed})
	m.ObserveTransaction(types.TransactionAnalysis{Type: types.Received, Status: types.Confirmed})

	assert.Equal(t, 2.0, testutil.ToFloat64(
		m.TransactionsDetected.WithLabelValues("Received", "Confirmed"),
	))
}

func TestServer_Handler(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.SetConnected(true)

	srv := httptest.NewServer(NewServer(":0", reg).Handler())
	defer srv.Close()

	res, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)

	res, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)
}
