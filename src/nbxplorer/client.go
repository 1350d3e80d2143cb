package nbxplorer

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/pkg/errors"

	"github.com/0xb10c/block-alert/src/healthcheck"
	"github.com/0xb10c/block-alert/src/httpauth"
	"github.com/0xb10c/block-alert/src/types"
)

const defaultRequestTimeout = 30 * time.Second

// ErrUnexpectedStatus is returned when NBXplorer answers with a non-2xx status.
var ErrUnexpectedStatus = errors.New("unexpected status from NBXplorer")

// Client is a REST client for NBXplorer's `/v1/cryptos/{code}` API.
type Client struct {
	baseURL string
	http    *http.Client
	header  http.Header
}

// NewClient returns a client for the given NBXplorer instance and crypto
// code. A nil httpClient selects a client with a 30 second timeout.
func NewClient(nbxURL, cryptoCode string, creds fn.Option[httpauth.Credentials],
	httpClient *http.Client) *Client {

	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultRequestTimeout}
	}

	header := httpauth.Header(creds)
	header.Set("Content-Type", "application/json")

	return &Client{
		baseURL: strings.TrimRight(nbxURL, "/") + "/v1/cryptos/" + cryptoCode,
		http:    httpClient,
		header:  header,
	}
}

// BaseURL returns `{url}/v1/cryptos/{code}`.
func (c *Client) BaseURL() string { return c.baseURL }

// WebSocketURL returns the `/connect` endpoint with a ws or wss scheme.
func (c *Client) WebSocketURL() string {
	u := c.baseURL + "/connect"
	switch {
	case strings.HasPrefix(u, "https://"):
		return "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		return "ws://" + strings.TrimPrefix(u, "http://")
	}
	return u
}

// StatusProbe probes `GET /status` for the health checker.
func (c *Client) StatusProbe() healthcheck.ProbeFunc {
	return healthcheck.HTTPProbe(c.http, c.baseURL+"/status", c.header)
}

// Track registers the derivation strategy with NBXplorer.
func (c *Client) Track(ctx context.Context, strategy string) error {
	return c.do(ctx, http.MethodPost, derivationPath(strategy), nil)
}

// StartScan starts a UTXO scan of the derivation strategy.
func (c *Client) StartScan(ctx context.Context, strategy string) error {
	return c.do(ctx, http.MethodPost, derivationPath(strategy)+"/utxos/scan", nil)
}

// ScanStatus returns the progress of the last scan of the derivation strategy.
func (c *Client) ScanStatus(ctx context.Context, strategy string) (types.ScanStatus, error) {
	var status types.ScanStatus
	err := c.do(ctx, http.MethodGet, derivationPath(strategy)+"/utxos/scan", &status)
	return status, err
}

// Utxos returns the current UTXO snapshot of the derivation strategy.
func (c *Client) Utxos(ctx context.Context, strategy string) (types.UtxoSnapshot, error) {
	var snapshot types.UtxoSnapshot
	err := c.do(ctx, http.MethodGet, derivationPath(strategy)+"/utxos", &snapshot)
	return snapshot, err
}

// Transaction returns a transaction of the derivation strategy.
func (c *Client) Transaction(ctx context.Context, strategy, txid string) (types.TransactionRecord, error) {
	var tx types.TransactionRecord
	path := derivationPath(strategy) + "/transactions/" + url.PathEscape(txid)
	err := c.do(ctx, http.MethodGet, path, &tx)
	return tx, err
}

func derivationPath(strategy string) string {
	return "/derivations/" + url.PathEscape(strategy)
}

// do sends a request and decodes a JSON response into out unless out is nil.
func (c *Client) do(ctx context.Context, method, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return errors.WithStack(err)
	}
	for k, v := range c.header {
		req.Header[k] = v
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, path)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return errors.Wrapf(err, "reading response of %s %s", method, path)
	}

	if resp.StatusCode/100 != 2 {
		return errors.Wrapf(ErrUnexpectedStatus, "%s %s: status %d: %s",
			method, path, resp.StatusCode, snippet(body))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return errors.Wrapf(err, "decoding response of %s %s", method, path)
	}
	return nil
}

func snippet(body []byte) string {
	const max = 256
	body = bytes.TrimSpace(body)
	if len(body) > max {
		return string(body[:max]) + "..."
	}
	return string(body)
}
