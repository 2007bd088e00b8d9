package qq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/wyapx/nekobox/internal/logger"
	"github.com/wyapx/nekobox/pkg/constants"
)

// ErrGatewayClosed is returned for calls made after Close.
var ErrGatewayClosed = errors.New("gateway closed")

// CallError is a failure reported by the sidecar for a single RPC.
type CallError struct {
	Action  string
	Message string
}

func (e *CallError) Error() string {
	return fmt.Sprintf("gateway call %s failed: %s", e.Action, e.Message)
}

// frame is the envelope of every gateway message in either direction.
type frame struct {
	Op      string          `json:"op"`
	Echo    string          `json:"echo,omitempty"`
	Action  string          `json:"action,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Type    string          `json:"type,omitempty"`
	Status  string          `json:"status,omitempty"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// EventHandler receives every decoded inbound event.
type EventHandler func(Event)

// QRCodeHandler receives the login QR code link when the sidecar needs a
// scan to authenticate.
type QRCodeHandler func(url string)

// Gateway is the Client implementation speaking JSON RPC over a WebSocket
// to a Lagrange sidecar. A single writer goroutine discipline is enforced
// with a write mutex; responses are matched to calls by echo id.
type Gateway struct {
	addr  string
	token string
	uin   int64

	mu      sync.Mutex // guards conn during (re)connect
	conn    *websocket.Conn
	writeMu sync.Mutex

	pending sync.Map // echo -> chan frame
	handler atomic.Pointer[EventHandler]
	qrcode  atomic.Pointer[QRCodeHandler]

	evMu  sync.Mutex // guards evBuf
	evBuf []Event
	evSig chan struct{}

	online atomic.Bool
	closed atomic.Bool
	done   chan struct{}
}

// NewGateway creates a Gateway for the sidecar at addr (a ws:// URL),
// authenticating with token for account uin.
func NewGateway(addr, token string, uin int64) *Gateway {
	return &Gateway{
		addr:  addr,
		token: token,
		uin:   uin,
		evSig: make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
}

// Uin returns the bot account's numeric id.
func (g *Gateway) Uin() int64 { return g.uin }

// Online reports whether the sidecar session is usable.
func (g *Gateway) Online() bool { return g.online.Load() }

// OnEvent registers the inbound event handler. Must be called before
// Connect. The handler runs on a dedicated dispatch goroutine, so it may
// call back into the gateway; events are delivered in arrival order.
func (g *Gateway) OnEvent(h EventHandler) {
	g.handler.Store(&h)
}

// OnQRCode registers the login QR code handler.
func (g *Gateway) OnQRCode(h QRCodeHandler) {
	g.qrcode.Store(&h)
}

// Connect dials the sidecar and starts the read loop. Reconnection after a
// dropped connection is handled internally until Close is called.
func (g *Gateway) Connect(ctx context.Context) error {
	if err := g.dial(ctx); err != nil {
		return err
	}
	go g.readLoop()
	go g.dispatchLoop()
	return nil
}

func (g *Gateway) dial(ctx context.Context) error {
	header := map[string][]string{}
	if g.token != "" {
		header["Authorization"] = []string{"Bearer " + g.token}
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, g.addr, header)
	if err != nil {
		return fmt.Errorf("dial gateway %s: %w", g.addr, err)
	}
	g.mu.Lock()
	g.conn = conn
	g.mu.Unlock()
	return nil
}

// Close shuts the gateway down and fails all pending calls.
func (g *Gateway) Close() error {
	if !g.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(g.done)
	g.online.Store(false)
	g.failPending()
	g.mu.Lock()
	conn := g.conn
	g.conn = nil
	g.mu.Unlock()
	if conn != nil {
		return conn.Close()
	}
	return nil
}

// failPending closes every in-flight call channel; call() reports
// ErrGatewayClosed when its channel closes without a frame.
func (g *Gateway) failPending() {
	g.pending.Range(func(key, value any) bool {
		g.pending.Delete(key)
		close(value.(chan frame))
		return true
	})
}

func (g *Gateway) writeFrame(f *frame) error {
	g.mu.Lock()
	conn := g.conn
	g.mu.Unlock()
	if conn == nil {
		return ErrGatewayClosed
	}
	g.writeMu.Lock()
	defer g.writeMu.Unlock()
	return conn.WriteJSON(f)
}

// call performs one RPC against the sidecar and decodes the response data
// into out (when out is non-nil).
func (g *Gateway) call(ctx context.Context, action string, params any, out any) error {
	if g.closed.Load() {
		return ErrGatewayClosed
	}

	raw, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("encode %s params: %w", action, err)
	}

	echo := uuid.NewString()
	ch := make(chan frame, 1)
	g.pending.Store(echo, ch)
	defer g.pending.Delete(echo)

	if err := g.writeFrame(&frame{Op: "call", Echo: echo, Action: action, Params: raw}); err != nil {
		return fmt.Errorf("send %s: %w", action, err)
	}

	timer := time.NewTimer(constants.GatewayCallTimeout)
	defer timer.Stop()

	select {
	case rsp, ok := <-ch:
		if !ok {
			return ErrGatewayClosed
		}
		if rsp.Status != "ok" {
			return &CallError{Action: action, Message: rsp.Message}
		}
		if out != nil && len(rsp.Data) > 0 {
			if err := json.Unmarshal(rsp.Data, out); err != nil {
				return fmt.Errorf("decode %s response: %w", action, err)
			}
		}
		return nil
	case <-timer.C:
		return fmt.Errorf("gateway call %s: timeout", action)
	case <-g.done:
		return ErrGatewayClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g *Gateway) readLoop() {
	for {
		g.mu.Lock()
		conn := g.conn
		g.mu.Unlock()
		if conn == nil {
			return
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			if g.closed.Load() {
				return
			}
			logger.WithField("error", err).Warn("gateway connection lost, reconnecting")
			g.online.Store(false)
			g.emit(&StatusEvent{Status: StatusReconnecting})
			if !g.reconnect() {
				return
			}
			continue
		}

		var f frame
		if err := json.Unmarshal(data, &f); err != nil {
			logger.WithField("error", err).Warn("gateway sent an undecodable frame")
			continue
		}
		g.handleFrame(&f)
	}
}

func (g *Gateway) reconnect() bool {
	for {
		select {
		case <-g.done:
			return false
		case <-time.After(constants.GatewayReconnectDelay):
		}
		ctx, cancel := context.WithTimeout(context.Background(), constants.GatewayCallTimeout)
		err := g.dial(ctx)
		cancel()
		if err == nil {
			logger.Info("gateway reconnected")
			return true
		}
		logger.WithField("error", err).Warn("gateway reconnect failed")
	}
}

func (g *Gateway) handleFrame(f *frame) {
	switch f.Op {
	case "response":
		if ch, ok := g.pending.Load(f.Echo); ok {
			select {
			case ch.(chan frame) <- *f:
			default:
			}
		}
	case "event":
		ev, err := decodeEvent(f.Type, f.Data)
		if err != nil {
			logger.WithFields(logrus.Fields{
				"type":  f.Type,
				"error": err,
			}).Warn("dropping undecodable gateway event")
			return
		}
		if st, ok := ev.(*StatusEvent); ok {
			g.online.Store(st.Status == StatusOnline)
		}
		g.emit(ev)
	case "qrcode":
		var payload struct {
			URL string `json:"url"`
		}
		if err := json.Unmarshal(f.Data, &payload); err != nil || payload.URL == "" {
			logger.Warn("gateway sent an unusable qrcode frame")
			return
		}
		if h := g.qrcode.Load(); h != nil {
			(*h)(payload.URL)
		}
	default:
		logger.WithField("op", f.Op).Debug("ignoring unknown gateway frame")
	}
}

// emit buffers one event for the dispatch goroutine. The read loop never
// runs handlers itself: a handler that issues a gateway call must not hold
// up the loop that delivers its response.
func (g *Gateway) emit(ev Event) {
	g.evMu.Lock()
	g.evBuf = append(g.evBuf, ev)
	g.evMu.Unlock()
	select {
	case g.evSig <- struct{}{}:
	default:
	}
}

// dispatchLoop drains buffered events to the registered handler in arrival
// order until Close.
func (g *Gateway) dispatchLoop() {
	for {
		select {
		case <-g.done:
			return
		case <-g.evSig:
		}
		for {
			g.evMu.Lock()
			if len(g.evBuf) == 0 {
				g.evMu.Unlock()
				break
			}
			ev := g.evBuf[0]
			g.evBuf = g.evBuf[1:]
			g.evMu.Unlock()
			if h := g.handler.Load(); h != nil {
				(*h)(ev)
			}
		}
	}
}
