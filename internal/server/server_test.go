package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyapx/nekobox/internal/api"
	"github.com/wyapx/nekobox/internal/satori"
	"github.com/wyapx/nekobox/internal/transform"
)

type fakeCaller struct {
	routes []string
	params []api.Params
	result any
	err    error
}

func (f *fakeCaller) Call(ctx context.Context, route string, p api.Params) (any, error) {
	f.routes = append(f.routes, route)
	f.params = append(f.params, p)
	return f.result, f.err
}

func noLogins() []*satori.Login { return nil }

func newTestServer(t *testing.T, caller Caller, token string, proxy ProxyFunc) (*Server, *httptest.Server) {
	t.Helper()
	s := New("", token, caller, noLogins, proxy)
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/events", s.handleEvents)
	mux.HandleFunc("/v1/proxy", s.handleProxy)
	mux.HandleFunc("/v1/", s.handleAPI)
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return s, ts
}

func TestHandleAPI_DispatchesRoute(t *testing.T) {
	caller := &fakeCaller{result: map[string]any{"ok": true}}
	_, ts := newTestServer(t, caller, "secret", nil)

	body := bytes.NewBufferString(`{"channel_id":"777","content":"hi"}`)
	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/v1/message.create", body)
	req.Header.Set("Authorization", "Bearer secret")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.Len(t, caller.routes, 1)
	assert.Equal(t, "message.create", caller.routes[0])
	assert.Equal(t, "777", caller.params[0].String("channel_id"))

	var decoded map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	assert.Equal(t, true, decoded["ok"])
}

func TestHandleAPI_EmptyBody(t *testing.T) {
	caller := &fakeCaller{result: map[string]any{}}
	_, ts := newTestServer(t, caller, "", nil)

	resp, err := http.Post(ts.URL+"/v1/login.get", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, caller.routes, 1)
}

func TestHandleAPI_Unauthorized(t *testing.T) {
	caller := &fakeCaller{}
	_, ts := newTestServer(t, caller, "secret", nil)

	resp, err := http.Post(ts.URL+"/v1/login.get", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Empty(t, caller.routes)
}

func TestHandleAPI_MethodNotAllowed(t *testing.T) {
	_, ts := newTestServer(t, &fakeCaller{}, "", nil)

	resp, err := http.Get(ts.URL + "/v1/login.get")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestStatusOf(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{api.ErrInvalidArgument, http.StatusBadRequest},
		{api.ErrPermissionDenied, http.StatusForbidden},
		{api.ErrRequestExpired, http.StatusNotFound},
		{api.ErrUnsupportedOperation, http.StatusNotImplemented},
		{fmt.Errorf("wrapped: %w", api.ErrInvalidArgument), http.StatusBadRequest},
		{fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, statusOf(tc.err), "error %v", tc.err)
	}
}

func dialEvents(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestEventFeed_IdentifyReadyPublish(t *testing.T) {
	s, ts := newTestServer(t, &fakeCaller{}, "secret", nil)
	conn := dialEvents(t, ts)

	ident, _ := json.Marshal(identifyBody{Token: "secret"})
	require.NoError(t, conn.WriteJSON(signal{Op: opIdentify, Body: ident}))

	var ready signal
	require.NoError(t, conn.ReadJSON(&ready))
	assert.Equal(t, opReady, ready.Op)

	// wait for registration before publishing
	require.Eventually(t, func() bool { return s.Subscribers() == 1 },
		time.Second, 10*time.Millisecond)

	s.Publish(&satori.Event{ID: 1, Type: satori.EventMessageCreated, Platform: "nekobox"})

	var frame signal
	require.NoError(t, conn.ReadJSON(&frame))
	assert.Equal(t, opEvent, frame.Op)
	var ev satori.Event
	require.NoError(t, json.Unmarshal(frame.Body, &ev))
	assert.Equal(t, int64(1), ev.ID)
	assert.Equal(t, satori.EventMessageCreated, ev.Type)
}

func TestEventFeed_PingPong(t *testing.T) {
	s, ts := newTestServer(t, &fakeCaller{}, "", nil)
	conn := dialEvents(t, ts)

	require.NoError(t, conn.WriteJSON(signal{Op: opIdentify}))
	var ready signal
	require.NoError(t, conn.ReadJSON(&ready))
	require.Eventually(t, func() bool { return s.Subscribers() == 1 },
		time.Second, 10*time.Millisecond)

	require.NoError(t, conn.WriteJSON(signal{Op: opPing}))
	var pong signal
	require.NoError(t, conn.ReadJSON(&pong))
	assert.Equal(t, opPong, pong.Op)
}

func TestEventFeed_BadTokenClosed(t *testing.T) {
	_, ts := newTestServer(t, &fakeCaller{}, "secret", nil)
	conn := dialEvents(t, ts)

	ident, _ := json.Marshal(identifyBody{Token: "wrong"})
	require.NoError(t, conn.WriteJSON(signal{Op: opIdentify, Body: ident}))

	conn.SetReadDeadline(time.Now().Add(time.Second))
	var ready signal
	assert.Error(t, conn.ReadJSON(&ready))
}

func TestHandleProxy(t *testing.T) {
	proxy := func(ctx context.Context, rawURL string) ([]byte, error) {
		assert.Equal(t, "upload://nekobox/10000/audio/gid/777/key", rawURL)
		return []byte("audio-bytes"), nil
	}
	_, ts := newTestServer(t, &fakeCaller{}, "", proxy)

	resp, err := http.Get(ts.URL + "/v1/proxy?url=" + "upload%3A%2F%2Fnekobox%2F10000%2Faudio%2Fgid%2F777%2Fkey")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	buf := new(bytes.Buffer)
	buf.ReadFrom(resp.Body)
	assert.Equal(t, "audio-bytes", buf.String())
}

func TestHandleProxy_ServesRewrittenURLs(t *testing.T) {
	fetched := make([]string, 0, 2)
	proxy := func(ctx context.Context, rawURL string) ([]byte, error) {
		fetched = append(fetched, rawURL)
		return []byte("bytes"), nil
	}
	_, ts := newTestServer(t, &fakeCaller{}, "", proxy)

	// the URLs the rewriter publishes must resolve against this route
	rw := transform.NewRewriter(ts.URL + "/v1/proxy")
	for _, published := range []string{
		rw.RewriteOutbound("https://gchat.qpic.cn/a.png?rkey=x"),
		rw.RewriteLocator("upload://nekobox/10000/audio/gid/777/key"),
	} {
		resp, err := http.Get(published)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, published)
	}

	assert.Equal(t, []string{
		"https://gchat.qpic.cn/a.png",
		"upload://nekobox/10000/audio/gid/777/key",
	}, fetched)
}

func TestHandleProxy_MissingURL(t *testing.T) {
	proxy := func(ctx context.Context, rawURL string) ([]byte, error) { return nil, nil }
	_, ts := newTestServer(t, &fakeCaller{}, "", proxy)

	resp, err := http.Get(ts.URL + "/v1/proxy")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
