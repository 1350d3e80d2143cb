package nbxplorer

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/0xb10c/block-alert/src/analyzer"
	"github.com/0xb10c/block-alert/src/httpauth"
	"github.com/0xb10c/block-alert/src/types"
)

const closeTimeout = 5 * time.Second

// ErrNotConnected is returned when a message is sent without an open socket.
var ErrNotConnected = errors.New("WebSocket is not open")

// connection is one NBXplorer WebSocket. Only its read loop reads from it.
type connection struct {
	*websocket.Conn
	id  string
	ctx context.Context
	log logrus.FieldLogger

	writeMu sync.Mutex
}

func (c *connection) writeJSON(v interface{}) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.Conn.WriteJSON(v)
}

// closeNormally sends a 1000 close frame and closes the socket. A failed
// close frame is not an error: the peer may already be gone.
func (c *connection) closeNormally() error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "Normal closure")
	if err := c.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeTimeout)); err != nil {
		c.log.WithError(err).Debug("Could not send close frame")
	}
	return errors.Wrap(c.Conn.Close(), "closing WebSocket")
}

// connectWebSocket dials `{base}/connect` and starts the read loop of the
// new connection, which replaces the previous handle.
func (s *Service) connectWebSocket(ctx context.Context) error {
	header := httpauth.Header(s.cfg.Credentials)

	ws, resp, err := s.dialer.DialContext(ctx, s.client.WebSocketURL(), header)
	if err != nil {
		if resp != nil {
			err = errors.Wrapf(err, "handshake status %d", resp.StatusCode)
		}
		s.log.WithError(err).Error("Error connecting to NBXplorer WebSocket")
		return errors.Wrap(err, "could not connect to NBXplorer WebSocket")
	}

	id := uuid.NewString()
	c := &connection{
		Conn: ws,
		id:   id,
		ctx:  s.lifetime(),
		log:  s.log.WithField("conn_id", id),
	}

	s.mu.Lock()
	if c.ctx.Err() != nil {
		s.mu.Unlock()
		_ = ws.Close()
		return errors.Wrap(c.ctx.Err(), "NBXplorerService stopped while connecting")
	}
	old := s.conn
	s.conn = c
	s.mu.Unlock()

	if old != nil {
		_ = old.Conn.Close()
	}

	s.metrics.SetConnected(true)
	c.log.Info("Connected to NBXplorer WebSocket")

	s.wg.Add(1)
	go s.readLoop(c)
	return nil
}

// subscribeEvents subscribes the current connection to transactions of the
// tracked key.
func (s *Service) subscribeEvents() error {
	s.mu.Lock()
	c := s.conn
	s.mu.Unlock()

	if c == nil {
		s.log.Error("WebSocket is not open. Cannot subscribe to events.")
		return ErrNotConnected
	}

	msg := types.NewSubscribeMessage(s.cfg.CryptoCode, s.cfg.ExtendedPubKey)
	if err := c.writeJSON(msg); err != nil {
		c.log.WithError(err).Error("Failed to send subscribe message")
		return errors.Wrap(err, "sending subscribe message")
	}

	c.log.Infof("Subscribed %s to NBXplorer", s.cfg.ExtendedPubKey)
	return nil
}

func (s *Service) isCurrent(c *connection) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn == c
}

func (s *Service) readLoop(c *connection) {
	defer s.wg.Done()

	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			s.handleClose(c, err)
			return
		}
		s.handleMessage(c, data)
	}
}

// closeDetails extracts the close code and reason from a read error. Errors
// without a close frame count as an abnormal closure.
func closeDetails(err error) (int, string) {
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		return closeErr.Code, closeErr.Text
	}
	return websocket.CloseAbnormalClosure, err.Error()
}

func (s *Service) handleClose(c *connection, err error) {
	// replaced by a newer connection or closed by Stop
	if !s.isCurrent(c) || c.ctx.Err() != nil {
		return
	}
	s.metrics.SetConnected(false)

	code, reason := closeDetails(err)
	log := c.log.WithField("code", code)
	if code == websocket.CloseNormalClosure {
		log.Info("WebSocket closed normally")
		return
	}

	log.Warnf("WebSocket closed with code %d. Reason: %s", code, reason)
	s.reconnect(c.ctx)
}

// reconnect runs health check, connect and subscribe once. Concurrent
// callers share the in-flight attempt. A failure that is not caused by Stop
// publishes a shutdown event.
func (s *Service) reconnect(ctx context.Context) {
	_, _, _ = s.reconnects.Do("reconnect", func() (interface{}, error) {
		s.log.Info("Attempting to reconnect to NBXplorer")

		err := s.recoverConnection(ctx)
		if ctx.Err() != nil {
			s.log.Info("Reconnection aborted, NBXplorerService is stopping")
			return nil, ctx.Err()
		}
		s.metrics.ObserveReconnect(err)

		if err != nil {
			s.log.WithError(err).Error("Reconnection failed")
			s.emitter.EmitShutdown(fmt.Sprintf("Reconnection failed: %v", err))
			return nil, err
		}
		s.log.Info("Reconnected to NBXplorer")
		return nil, nil
	})
}

func (s *Service) recoverConnection(ctx context.Context) error {
	if err := s.health.Run(ctx); err != nil {
		return err
	}
	if err := s.connectWebSocket(ctx); err != nil {
		return err
	}
	return s.subscribeEvents()
}

// handleMessage acts on newtransaction messages. Failures are logged and
// never affect the connection.
func (s *Service) handleMessage(c *connection, data []byte) {
	var msg types.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		c.log.WithError(err).Error("Failed to process incoming message")
		return
	}
	if msg.Type != types.MessageNewTransaction {
		c.log.Debugf("Ignoring %s message", msg.Type)
		return
	}

	var event types.NewTransactionEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		c.log.WithError(err).Error("Failed to process incoming message")
		return
	}
	if err := s.handleNewTransaction(c.ctx, event); err != nil {
		c.log.WithError(err).Error("Failed to process incoming message")
	}
}

func (s *Service) handleNewTransaction(ctx context.Context, event types.NewTransactionEvent) error {
	txid := event.TransactionData.TransactionHash
	if len(txid) != chainhash.MaxHashStringSize {
		return errors.Errorf("invalid transaction hash %q", txid)
	}
	if _, err := chainhash.NewHashFromStr(txid); err != nil {
		return errors.Wrapf(err, "invalid transaction hash %q", txid)
	}

	tx, err := s.client.Transaction(ctx, event.DerivationStrategy, txid)
	if err != nil {
		s.log.WithError(err).Errorf("Failed to get transaction: %s", txid)
		return err
	}

	analysis := analyzer.Analyze(tx, event.DerivationStrategy)
	s.metrics.ObserveTransaction(analysis)
	s.emitter.EmitTransaction(analysis)

	s.log.WithField("txid", analysis.TxID).
		Infof("%s transaction detected - txid: %s", analysis.Status, analysis.TxID)
	return nil
}
