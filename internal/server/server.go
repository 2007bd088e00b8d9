// Package server exposes the Satori surface over HTTP and WebSocket: API
// routes under /v1/, the event feed at /v1/events and the deferred media
// proxy at /v1/proxy. The translation core lives elsewhere; this layer only
// decodes requests, checks the bearer token and maps handler errors onto
// protocol status codes.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/wyapx/nekobox/internal/api"
	"github.com/wyapx/nekobox/internal/logger"
	"github.com/wyapx/nekobox/internal/msgid"
	"github.com/wyapx/nekobox/internal/satori"
	"github.com/wyapx/nekobox/internal/transform"
	"github.com/wyapx/nekobox/internal/uid"
)

// Satori signaling opcodes.
const (
	opEvent    = 0
	opPing     = 1
	opPong     = 2
	opIdentify = 3
	opReady    = 4
)

// identifyTimeout bounds how long a WebSocket client may take to send
// IDENTIFY after connecting.
const identifyTimeout = 10 * time.Second

type signal struct {
	Op   int             `json:"op"`
	Body json.RawMessage `json:"body,omitempty"`
}

type identifyBody struct {
	Token string `json:"token,omitempty"`
}

// Caller dispatches one API operation by route name.
type Caller interface {
	Call(ctx context.Context, route string, p api.Params) (any, error)
}

// ProxyFunc serves a deferred media download for an adapter-issued
// locator or a re-signed media host URL.
type ProxyFunc func(ctx context.Context, rawURL string) ([]byte, error)

// LoginsFunc reports the current logins for the READY payload.
type LoginsFunc func() []*satori.Login

// Server is the Satori HTTP/WebSocket listener.
type Server struct {
	addr   string
	token  string
	caller Caller
	logins LoginsFunc
	proxy  ProxyFunc

	httpServer *http.Server
	upgrader   websocket.Upgrader

	mu   sync.Mutex
	subs map[*subscriber]struct{}
}

// subscriber is one connected event-feed client. Writes are serialized per
// connection.
type subscriber struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *subscriber) write(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(v)
}

// New creates a Server. proxy may be nil to disable the proxy route.
func New(addr, token string, caller Caller, logins LoginsFunc, proxy ProxyFunc) *Server {
	return &Server{
		addr:   addr,
		token:  token,
		caller: caller,
		logins: logins,
		proxy:  proxy,
		subs:   map[*subscriber]struct{}{},
	}
}

// Run serves until the listener fails or Shutdown is called.
func (s *Server) Run() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/events", s.handleEvents)
	mux.HandleFunc("/v1/proxy", s.handleProxy)
	mux.HandleFunc("/v1/", s.handleAPI)

	s.httpServer = &http.Server{
		Addr:    s.addr,
		Handler: mux,
	}

	logger.WithField("address", s.addr).Info("satori server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops the listener and closes every event-feed connection.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	for sub := range s.subs {
		sub.conn.Close()
		delete(s.subs, sub)
	}
	s.mu.Unlock()

	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// Publish pushes one event to every connected feed client. A failed write
// drops that client; the others are unaffected.
func (s *Server) Publish(ev *satori.Event) {
	body, err := json.Marshal(ev)
	if err != nil {
		logger.Errorf("event marshal failed: %v", err)
		return
	}
	frame := signal{Op: opEvent, Body: body}

	s.mu.Lock()
	subs := make([]*subscriber, 0, len(s.subs))
	for sub := range s.subs {
		subs = append(subs, sub)
	}
	s.mu.Unlock()

	for _, sub := range subs {
		if err := sub.write(frame); err != nil {
			logger.Warnf("event feed write failed, dropping client: %v", err)
			s.drop(sub)
		}
	}
}

// Subscribers reports the number of connected event-feed clients.
func (s *Server) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

func (s *Server) drop(sub *subscriber) {
	s.mu.Lock()
	if _, ok := s.subs[sub]; ok {
		delete(s.subs, sub)
		sub.conn.Close()
	}
	s.mu.Unlock()
}

func (s *Server) authorized(r *http.Request) bool {
	if s.token == "" {
		return true
	}
	return r.Header.Get("Authorization") == "Bearer "+s.token
}

func (s *Server) handleAPI(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.authorized(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	route := strings.TrimPrefix(r.URL.Path, "/v1/")
	defer r.Body.Close()
	params := api.Params{}
	// an empty body means an empty parameter map
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "malformed request body", http.StatusBadRequest)
		return
	}

	result, err := s.caller.Call(r.Context(), route, params)
	if err != nil {
		logger.WithFields(logrus.Fields{
			"route": route,
			"error": err,
		}).Warn("api call failed")
		http.Error(w, err.Error(), statusOf(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(result); err != nil {
		logger.Errorf("response encode failed: %v", err)
	}
}

// statusOf maps handler error taxonomy onto HTTP status codes.
func statusOf(err error) int {
	switch {
	case errors.Is(err, msgid.ErrMalformedID),
		errors.Is(err, msgid.ErrUnsupportedKind),
		errors.Is(err, api.ErrInvalidArgument),
		errors.Is(err, transform.ErrInvalidMention),
		errors.Is(err, transform.ErrAmbiguousDestination):
		return http.StatusBadRequest
	case errors.Is(err, api.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, transform.ErrMessageNotFound),
		errors.Is(err, api.ErrRequestExpired),
		errors.Is(err, uid.ErrUnresolvedIdentity):
		return http.StatusNotFound
	case errors.Is(err, api.ErrUnsupportedOperation):
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

// handleEvents upgrades to the WebSocket event feed. The client must send
// IDENTIFY first; the server answers READY with the current logins, then
// answers PING with PONG until the connection drops.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warnf("event feed upgrade failed: %v", err)
		return
	}

	conn.SetReadDeadline(time.Now().Add(identifyTimeout))
	var hello signal
	if err := conn.ReadJSON(&hello); err != nil || hello.Op != opIdentify {
		conn.Close()
		return
	}
	var ident identifyBody
	if len(hello.Body) > 0 {
		_ = json.Unmarshal(hello.Body, &ident)
	}
	if s.token != "" && ident.Token != s.token {
		logger.Warn("event feed authentication failed, check upstream token setting")
		conn.Close()
		return
	}
	conn.SetReadDeadline(time.Time{})

	sub := &subscriber{conn: conn}
	ready, err := json.Marshal(map[string]any{"logins": s.logins()})
	if err == nil {
		err = sub.write(signal{Op: opReady, Body: ready})
	}
	if err != nil {
		conn.Close()
		return
	}

	s.mu.Lock()
	s.subs[sub] = struct{}{}
	s.mu.Unlock()
	logger.WithField("remote", conn.RemoteAddr().String()).Info("event feed client connected")

	go s.readLoop(sub)
}

func (s *Server) readLoop(sub *subscriber) {
	defer s.drop(sub)
	for {
		var frame signal
		if err := sub.conn.ReadJSON(&frame); err != nil {
			return
		}
		if frame.Op == opPing {
			if err := sub.write(signal{Op: opPong}); err != nil {
				return
			}
		}
	}
}

// handleProxy serves deferred media downloads, including the adapter's own
// audio locators.
func (s *Server) handleProxy(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if s.proxy == nil {
		http.Error(w, "proxy disabled", http.StatusNotFound)
		return
	}
	rawURL := r.URL.Query().Get("url")
	if rawURL == "" {
		http.Error(w, "missing url parameter", http.StatusBadRequest)
		return
	}

	data, err := s.proxy(r.Context(), rawURL)
	if err != nil {
		logger.WithFields(logrus.Fields{
			"url":   rawURL,
			"error": err,
		}).Warn("media proxy fetch failed")
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Write(data)
}
