package qq

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSidecar speaks the gateway frame protocol over a real WebSocket:
// it answers every call frame with an ok response and lets tests push
// event frames at will.
type fakeSidecar struct {
	t        *testing.T
	upgrader websocket.Upgrader

	mu      sync.Mutex // guards conn writes
	conn    *websocket.Conn
	ready   chan struct{}
	answers map[string]json.RawMessage // action -> response data
}

func newFakeSidecar(t *testing.T) *fakeSidecar {
	return &fakeSidecar{
		t:       t,
		ready:   make(chan struct{}),
		answers: map[string]json.RawMessage{},
	}
}

func (s *fakeSidecar) answer(action, data string) {
	s.answers[action] = json.RawMessage(data)
}

func (s *fakeSidecar) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.t.Errorf("upgrade: %v", err)
		return
	}
	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
	close(s.ready)

	for {
		var f frame
		if err := conn.ReadJSON(&f); err != nil {
			return
		}
		if f.Op != "call" {
			continue
		}
		rsp := &frame{Op: "response", Echo: f.Echo, Status: "ok", Data: s.answers[f.Action]}
		s.write(rsp)
	}
}

func (s *fakeSidecar) write(f *frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return
	}
	if err := s.conn.WriteJSON(f); err != nil {
		s.t.Errorf("sidecar write: %v", err)
	}
}

func (s *fakeSidecar) pushEvent(typ, data string) {
	s.write(&frame{Op: "event", Type: typ, Data: json.RawMessage(data)})
}

func startGateway(t *testing.T, sidecar *fakeSidecar) *Gateway {
	ts := httptest.NewServer(sidecar)
	t.Cleanup(ts.Close)

	g := NewGateway("ws"+strings.TrimPrefix(ts.URL, "http"), "", 10000)
	t.Cleanup(func() { g.Close() })
	return g
}

func TestGatewayHandlerMayCallBack(t *testing.T) {
	sidecar := newFakeSidecar(t)
	sidecar.answer("get_friend_list", `{"friends":[{"uin":10002,"uid":"u_abc","nickname":"momo"}]}`)
	g := startGateway(t, sidecar)

	type result struct {
		friends []*Friend
		err     error
	}
	got := make(chan result, 1)
	g.OnEvent(func(ev Event) {
		if _, ok := ev.(*FriendMessageEvent); !ok {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		friends, err := g.GetFriendList(ctx)
		got <- result{friends, err}
	})

	require.NoError(t, g.Connect(context.Background()))
	<-sidecar.ready
	sidecar.pushEvent("friend_message", `{"seq":1,"from_uin":10002,"time":1,"elements":[{"type":"text","data":{"text":"hi"}}]}`)

	select {
	case r := <-got:
		require.NoError(t, r.err)
		require.Len(t, r.friends, 1)
		assert.Equal(t, int64(10002), r.friends[0].Uin)
	case <-time.After(5 * time.Second):
		t.Fatal("call issued from the event handler never completed")
	}
}

func TestGatewayDeliversEventsInArrivalOrder(t *testing.T) {
	sidecar := newFakeSidecar(t)
	g := startGateway(t, sidecar)

	const n = 20
	seqs := make(chan uint64, n)
	g.OnEvent(func(ev Event) {
		if msg, ok := ev.(*FriendMessageEvent); ok {
			seqs <- msg.Message.Seq
		}
	})

	require.NoError(t, g.Connect(context.Background()))
	<-sidecar.ready
	for i := 1; i <= n; i++ {
		sidecar.pushEvent("friend_message", `{"seq":`+strconv.Itoa(i)+`,"from_uin":10002,"time":1,"elements":[]}`)
	}

	for i := 1; i <= n; i++ {
		select {
		case seq := <-seqs:
			require.Equal(t, uint64(i), seq)
		case <-time.After(5 * time.Second):
			t.Fatalf("event %d never delivered", i)
		}
	}
}
