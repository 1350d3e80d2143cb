package test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/0xb10c/block-alert/src/types"
)

// TestEnv bundles a fake NBXplorer and a fake ntfy server.
type TestEnv struct {
	NBXplorer *FakeNBXplorer
	Ntfy      *FakeNtfy
}

func NewTestEnv(cryptoCode string) *TestEnv {
	return &TestEnv{
		NBXplorer: NewFakeNBXplorer(cryptoCode),
		Ntfy:      NewFakeNtfy(),
	}
}

// Quit shuts both servers down.
func (e *TestEnv) Quit() {
	e.NBXplorer.Close()
	e.Ntfy.Close()
}

// next pops the head of a scripted response sequence. The last element
// repeats forever.
func next[T any](seq *[]T, fallback T) T {
	if len(*seq) == 0 {
		return fallback
	}
	v := (*seq)[0]
	if len(*seq) > 1 {
		*seq = (*seq)[1:]
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// FakeNBXplorer serves the subset of the NBXplorer REST and WebSocket API
// used by block-alert.
type FakeNBXplorer struct {
	server   *httptest.Server
	prefix   string
	upgrader websocket.Upgrader

	subscriptions chan types.SubscribeMessage
	connects      chan struct{}
	closeCodes    chan int

	mu             sync.Mutex
	statusCodes    []int
	trackStatus    int
	scanStatuses   []types.ScanStatus
	utxos          types.UtxoSnapshot
	utxosStatus    int
	transactions   map[string]types.TransactionRecord
	rejectConnect  bool
	requests       map[string]int
	connectHeaders []http.Header
	conns          []*websocket.Conn
}

func NewFakeNBXplorer(cryptoCode string) *FakeNBXplorer {
	f := &FakeNBXplorer{
		prefix:        "/v1/cryptos/" + cryptoCode,
		subscriptions: make(chan types.SubscribeMessage, 16),
		connects:      make(chan struct{}, 16),
		closeCodes:    make(chan int, 16),
		trackStatus:   http.StatusOK,
		utxosStatus:   http.StatusOK,
		transactions:  make(map[string]types.TransactionRecord),
		requests:      make(map[string]int),
	}
	f.server = httptest.NewServer(f)
	return f
}

func (f *FakeNBXplorer) URL() string { return f.server.URL }

// Close drops every open WebSocket and stops the server.
func (f *FakeNBXplorer) Close() {
	f.mu.Lock()
	for _, c := range f.conns {
		c.Close()
	}
	f.mu.Unlock()
	f.server.Close()
}

// SetStatusCodes scripts the answers of `GET /status`.
func (f *FakeNBXplorer) SetStatusCodes(codes ...int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusCodes = codes
}

func (f *FakeNBXplorer) SetTrackStatus(code int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.trackStatus = code
}

// SetScanStatuses scripts the answers of `GET .../utxos/scan`. Without a
// script every poll reports Complete.
func (f *FakeNBXplorer) SetScanStatuses(statuses ...types.ScanStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scanStatuses = statuses
}

func (f *FakeNBXplorer) SetUtxos(snapshot types.UtxoSnapshot, status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.utxos = snapshot
	f.utxosStatus = status
}

func (f *FakeNBXplorer) AddTransaction(tx types.TransactionRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transactions[tx.TransactionID] = tx
}

// RejectConnect makes WebSocket upgrades fail with 503.
func (f *FakeNBXplorer) RejectConnect(reject bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rejectConnect = reject
}

// Requests returns how often `method path` was called. path is relative to
// `/v1/cryptos/{code}`.
func (f *FakeNBXplorer) Requests(method, path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[method+" "+path]
}

// Connections returns the number of accepted WebSocket connections.
func (f *FakeNBXplorer) Connections() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.conns)
}

// ConnectHeader returns the request headers of the i-th WebSocket upgrade
// attempt.
func (f *FakeNBXplorer) ConnectHeader(i int) http.Header {
	f.mu.Lock()
	defer f.mu.Unlock()
	if i >= len(f.connectHeaders) {
		return nil
	}
	return f.connectHeaders[i]
}

// Subscriptions receives every subscribetransaction message.
func (f *FakeNBXplorer) Subscriptions() <-chan types.SubscribeMessage { return f.subscriptions }

// Connects is signaled on every accepted WebSocket connection.
func (f *FakeNBXplorer) Connects() <-chan struct{} { return f.connects }

// CloseCodes receives the code of every close frame sent by a client.
func (f *FakeNBXplorer) CloseCodes() <-chan int { return f.closeCodes }

func (f *FakeNBXplorer) latest() (*websocket.Conn, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.conns) == 0 {
		return nil, errors.New("no WebSocket connection")
	}
	return f.conns[len(f.conns)-1], nil
}

// SendRaw writes a text frame to the latest connection.
func (f *FakeNBXplorer) SendRaw(data []byte) error {
	conn, err := f.latest()
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}

// SendJSON writes v as JSON to the latest connection.
func (f *FakeNBXplorer) SendJSON(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errors.WithStack(err)
	}
	return f.SendRaw(data)
}

// SendNewTransaction announces txid for strategy on the latest connection.
func (f *FakeNBXplorer) SendNewTransaction(cryptoCode, strategy, txid string) error {
	var event types.NewTransactionEvent
	event.CryptoCode = cryptoCode
	event.DerivationStrategy = strategy
	event.TrackedSource = "DERIVATIONSCHEME:" + strategy
	event.TransactionData.TransactionHash = txid

	data, err := json.Marshal(event)
	if err != nil {
		return errors.WithStack(err)
	}
	return f.SendJSON(types.Message{Type: types.MessageNewTransaction, EventID: 1, Data: data})
}

// CloseConnection sends a close frame with code and reason, then closes the
// latest connection.
func (f *FakeNBXplorer) CloseConnection(code int, reason string) error {
	conn, err := f.latest()
	if err != nil {
		return err
	}
	msg := websocket.FormatCloseMessage(code, reason)
	if err := conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second)); err != nil {
		return err
	}
	return conn.Close()
}

// DropConnection closes the latest connection without a close frame.
func (f *FakeNBXplorer) DropConnection() error {
	conn, err := f.latest()
	if err != nil {
		return err
	}
	return conn.Close()
}

func (f *FakeNBXplorer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !strings.HasPrefix(r.URL.Path, f.prefix) {
		http.NotFound(w, r)
		return
	}
	path := strings.TrimPrefix(r.URL.Path, f.prefix)

	f.mu.Lock()
	f.requests[r.Method+" "+path]++
	f.mu.Unlock()

	if path == "/connect" {
		f.serveWebSocket(w, r)
		return
	}
	if path == "/status" && r.Method == http.MethodGet {
		f.mu.Lock()
		code := next(&f.statusCodes, http.StatusOK)
		f.mu.Unlock()
		writeJSON(w, code, map[string]interface{}{"isFullySynched": code == http.StatusOK})
		return
	}
	if !strings.HasPrefix(path, "/derivations/") {
		http.NotFound(w, r)
		return
	}

	// strategies never contain a slash
	_, sub, _ := strings.Cut(strings.TrimPrefix(path, "/derivations/"), "/")

	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case sub == "" && r.Method == http.MethodPost:
		writeJSON(w, f.trackStatus, struct{}{})
	case sub == "utxos/scan" && r.Method == http.MethodPost:
		writeJSON(w, http.StatusOK, struct{}{})
	case sub == "utxos/scan" && r.Method == http.MethodGet:
		writeJSON(w, http.StatusOK, next(&f.scanStatuses, types.ScanStatus{Status: types.ScanComplete}))
	case sub == "utxos" && r.Method == http.MethodGet:
		writeJSON(w, f.utxosStatus, f.utxos)
	case strings.HasPrefix(sub, "transactions/") && r.Method == http.MethodGet:
		tx, ok := f.transactions[strings.TrimPrefix(sub, "transactions/")]
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"code": "tx-not-found"})
			return
		}
		writeJSON(w, http.StatusOK, tx)
	default:
		http.NotFound(w, r)
	}
}

func (f *FakeNBXplorer) serveWebSocket(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.connectHeaders = append(f.connectHeaders, r.Header.Clone())
	reject := f.rejectConnect
	f.mu.Unlock()

	if reject {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
		return
	}

	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	f.mu.Lock()
	f.conns = append(f.conns, conn)
	f.mu.Unlock()

	select {
	case f.connects <- struct{}{}:
	default:
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) {
				select {
				case f.closeCodes <- closeErr.Code:
				default:
				}
			}
			return
		}
		var msg types.SubscribeMessage
		if json.Unmarshal(data, &msg) != nil || msg.Type != types.MessageSubscribeTransaction {
			continue
		}
		select {
		case f.subscriptions <- msg:
		default:
		}
	}
}

// NtfyMessage is a message published to the fake ntfy server.
type NtfyMessage struct {
	Topic  string
	Body   string
	Header http.Header
}

// FakeNtfy serves `GET /v1/health` and `POST /{topic}`.
type FakeNtfy struct {
	server   *httptest.Server
	messages chan NtfyMessage

	mu             sync.Mutex
	healthCodes    []int
	publishStatus  int
	healthRequests int
}

func NewFakeNtfy() *FakeNtfy {
	f := &FakeNtfy{
		messages:      make(chan NtfyMessage, 64),
		publishStatus: http.StatusOK,
	}
	f.server = httptest.NewServer(f)
	return f
}

func (f *FakeNtfy) URL() string { return f.server.URL }
func (f *FakeNtfy) Close()      { f.server.Close() }

// SetHealthCodes scripts the answers of `GET /v1/health`.
func (f *FakeNtfy) SetHealthCodes(codes ...int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.healthCodes = codes
}

func (f *FakeNtfy) SetPublishStatus(code int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.publishStatus = code
}

func (f *FakeNtfy) HealthRequests() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.healthRequests
}

// Messages receives every published message, including rejected ones.
func (f *FakeNtfy) Messages() <-chan NtfyMessage { return f.messages }

func (f *FakeNtfy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/v1/health" && r.Method == http.MethodGet {
		f.mu.Lock()
		f.healthRequests++
		code := next(&f.healthCodes, http.StatusOK)
		f.mu.Unlock()
		writeJSON(w, code, map[string]bool{"healthy": code == http.StatusOK})
		return
	}
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	f.messages <- NtfyMessage{
		Topic:  strings.TrimPrefix(r.URL.Path, "/"),
		Body:   string(body),
		Header: r.Header.Clone(),
	}

	f.mu.Lock()
	status := f.publishStatus
	f.mu.Unlock()
	writeJSON(w, status, map[string]string{"event": "message"})
}
