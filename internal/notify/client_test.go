package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/juju/errors"
	"go.uber.org/goleak"

	"github.com/bl4ckh401/chama/internal/model"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// socketServer is a minimal notification backend.
type socketServer struct {
	*httptest.Server
	upgrader websocket.Upgrader

	dials       atomic.Int32
	accepted    atomic.Int32
	live        atomic.Int32
	mu          sync.Mutex
	conns       []*websocket.Conn
	gate        chan struct{}
	received    chan Frame
	reject      atomic.Bool
	unavailable atomic.Bool
}

func newSocketServer(t *testing.T) *socketServer {
	t.Helper()
	s := &socketServer{received: make(chan Frame, 16)}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(func() {
		s.dropAll()
		s.Close()
	})
	return s
}

func (s *socketServer) handle(w http.ResponseWriter, r *http.Request) {
	s.dials.Add(1)
	s.mu.Lock()
	gate := s.gate
	s.mu.Unlock()
	if gate != nil {
		<-gate
	}
	if s.unavailable.Load() {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
		return
	}
	if s.reject.Load() || r.URL.Query().Get("token") != "tok" || r.Header.Get("Authorization") != "Bearer tok" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	s.mu.Lock()
	s.conns = append(s.conns, ws)
	s.mu.Unlock()
	s.accepted.Add(1)
	s.live.Add(1)
	defer s.live.Add(-1)

	for {
		var f Frame
		if err := ws.ReadJSON(&f); err != nil {
			return
		}
		s.received <- f
	}
}

func (s *socketServer) url() string {
	return "ws" + strings.TrimPrefix(s.URL, "http") + "/socket"
}

func (s *socketServer) broadcast(t *testing.T, event string, data any) {
	t.Helper()
	raw, _ := json.Marshal(data)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ws := range s.conns {
		if err := ws.WriteJSON(Frame{Event: event, Data: raw}); err != nil {
			t.Logf("broadcast: %v", err)
		}
	}
}

// sendRaw writes text as-is to every open socket.
func (s *socketServer) sendRaw(t *testing.T, text string) {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ws := range s.conns {
		if err := ws.WriteMessage(websocket.TextMessage, []byte(text)); err != nil {
			t.Logf("sendRaw: %v", err)
		}
	}
}

// hold makes handshakes wait until the returned func is called.
func (s *socketServer) hold(t *testing.T) (release func()) {
	t.Helper()
	gate := make(chan struct{})
	s.mu.Lock()
	s.gate = gate
	s.mu.Unlock()
	var once sync.Once
	release = func() {
		once.Do(func() {
			s.mu.Lock()
			s.gate = nil
			s.mu.Unlock()
			close(gate)
		})
	}
	t.Cleanup(release)
	return release
}

func (s *socketServer) dropAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ws := range s.conns {
		_ = ws.Close()
	}
	s.conns = nil
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestConnectTwiceOpensOneSocket(t *testing.T) {
	srv := newSocketServer(t)
	c := New(Config{URL: srv.url(), Token: "tok"})
	defer c.Disconnect()

	ctx := context.Background()
	if err := c.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := c.Connect(ctx); err != nil {
		t.Fatalf("second Connect: %v", err)
	}
	waitFor(t, "handshake", func() bool { return srv.accepted.Load() >= 1 })
	time.Sleep(20 * time.Millisecond)
	if n := srv.accepted.Load(); n != 1 {
		t.Fatalf("server accepted %d sockets, want 1", n)
	}
}

func TestSubscribeAfterConnectReceivesNotifications(t *testing.T) {
	srv := newSocketServer(t)
	c := New(Config{URL: srv.url(), Token: "tok"})
	defer c.Disconnect()

	if err := c.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "handshake", func() bool { return srv.accepted.Load() == 1 })

	got := make(chan model.Notification, 4)
	unsubscribe := c.Subscribe(func(n model.Notification) { got <- n })

	var perKind atomic.Int32
	c.Handle(model.NotifyOther, func(model.Notification) { perKind.Add(1) })

	srv.broadcast(t, EventNotification, map[string]string{"type": "payment", "message": "KES 500 received"})
	srv.broadcast(t, EventNotification, map[string]string{"type": "promo", "message": "?"})

	first := <-got
	if first.Type != model.NotifyPayment || first.Message != "KES 500 received" {
		t.Errorf("first = %+v", first)
	}
	if first.ReceivedAt.IsZero() {
		t.Error("ReceivedAt not stamped")
	}
	second := <-got
	if second.Type != model.NotifyOther {
		t.Errorf("unknown type dispatched as %q, want other", second.Type)
	}
	waitFor(t, "per-kind handler", func() bool { return perKind.Load() == 1 })

	unsubscribe()
	srv.broadcast(t, EventNotification, map[string]string{"type": "system", "message": "maintenance"})
	select {
	case n := <-got:
		t.Fatalf("unsubscribed handler received %+v", n)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestListenAndSendPassThrough(t *testing.T) {
	srv := newSocketServer(t)
	c := New(Config{URL: srv.url(), Token: "tok"})
	defer c.Disconnect()

	if err := c.Send("ping", nil); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("Send before Connect = %v, want ErrNotConnected", err)
	}

	if err := c.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "handshake", func() bool { return srv.accepted.Load() == 1 })

	raw := make(chan json.RawMessage, 1)
	c.Listen("meeting", func(data json.RawMessage) { raw <- data })
	srv.broadcast(t, "meeting", map[string]string{"at": "Saturday"})
	if got := string(<-raw); got != `{"at":"Saturday"}` {
		t.Errorf("meeting data = %s", got)
	}

	if err := c.Send("join", map[string]string{"chamaId": "c1"}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	f := <-srv.received
	if f.Event != "join" || string(f.Data) != `{"chamaId":"c1"}` {
		t.Errorf("server got %+v", f)
	}
}

func TestReconnectsAfterTransportDrop(t *testing.T) {
	srv := newSocketServer(t)
	c := New(Config{URL: srv.url(), Token: "tok", ReconnectDelay: 10 * time.Millisecond})
	defer c.Disconnect()

	if err := c.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "handshake", func() bool { return srv.accepted.Load() == 1 })

	srv.dropAll()
	waitFor(t, "reconnect", func() bool { return srv.accepted.Load() == 2 })
	if !c.Connected() {
		t.Error("client should still be connected after reconnect")
	}
}

func TestReconnectGivesUpOnRejectedHandshake(t *testing.T) {
	srv := newSocketServer(t)
	c := New(Config{URL: srv.url(), Token: "tok", ReconnectDelay: 10 * time.Millisecond})
	defer c.Disconnect()

	if err := c.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "handshake", func() bool { return srv.accepted.Load() == 1 })

	srv.reject.Store(true)
	srv.dropAll()
	waitFor(t, "client to give up", func() bool { return !c.Connected() })
}

func TestDisconnectStopsReconnectAndAllowsFreshConnect(t *testing.T) {
	srv := newSocketServer(t)
	c := New(Config{URL: srv.url(), Token: "tok", ReconnectDelay: 10 * time.Millisecond})

	if err := c.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "handshake", func() bool { return srv.accepted.Load() == 1 })

	c.Disconnect()
	if c.Connected() {
		t.Fatal("Connected after Disconnect")
	}
	time.Sleep(50 * time.Millisecond)
	if n := srv.accepted.Load(); n != 1 {
		t.Fatalf("client reconnected after Disconnect (%d sockets)", n)
	}

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("fresh Connect: %v", err)
	}
	waitFor(t, "second handshake", func() bool { return srv.accepted.Load() == 2 })
	c.Disconnect()
	c.Disconnect()
}

func TestConnectRejectedToken(t *testing.T) {
	srv := newSocketServer(t)
	c := New(Config{URL: srv.url(), Token: "wrong"})
	err := c.Connect(context.Background())
	if !errors.Is(err, errors.Unauthorized) {
		t.Fatalf("Connect = %v, want Unauthorized", err)
	}
	if c.Connected() {
		t.Error("Connected after rejected handshake")
	}
}

func TestMalformedFramesKeepTheSocket(t *testing.T) {
	srv := newSocketServer(t)
	c := New(Config{URL: srv.url(), Token: "tok", ReconnectDelay: 10 * time.Millisecond})
	defer c.Disconnect()

	got := make(chan model.Notification, 4)
	defer c.Subscribe(func(n model.Notification) { got <- n })()

	if err := c.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "handshake", func() bool { return srv.accepted.Load() == 1 })

	srv.sendRaw(t, `{"event":5}`)
	srv.sendRaw(t, `{`)
	srv.sendRaw(t, `{"event":"notification","data":"not an object"}`)
	srv.broadcast(t, EventNotification, map[string]string{"type": "loan", "message": "approved"})

	select {
	case n := <-got:
		if n.Message != "approved" {
			t.Fatalf("got %+v", n)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("notification after malformed frames never arrived")
	}

	time.Sleep(50 * time.Millisecond)
	if n := srv.accepted.Load(); n != 1 {
		t.Fatalf("server accepted %d sockets, want 1", n)
	}
	if n := srv.live.Load(); n != 1 {
		t.Fatalf("%d sockets open on the server, want 1", n)
	}
}

func TestDroppedSocketIsClosedBeforeReconnect(t *testing.T) {
	srv := newSocketServer(t)
	c := New(Config{URL: srv.url(), Token: "tok", ReconnectDelay: 10 * time.Millisecond})
	defer c.Disconnect()

	if err := c.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "handshake", func() bool { return srv.accepted.Load() == 1 })

	srv.dropAll()
	waitFor(t, "reconnect", func() bool { return srv.accepted.Load() == 2 })
	waitFor(t, "one live socket", func() bool { return srv.live.Load() == 1 })
}

func TestReconnectStopsAfterFiveAttempts(t *testing.T) {
	srv := newSocketServer(t)
	c := New(Config{URL: srv.url(), Token: "tok", ReconnectDelay: 10 * time.Millisecond})
	defer c.Disconnect()

	if err := c.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "handshake", func() bool { return srv.accepted.Load() == 1 })

	srv.unavailable.Store(true)
	srv.dropAll()
	waitFor(t, "client to give up", func() bool { return !c.Connected() })

	time.Sleep(100 * time.Millisecond)
	if n := srv.dials.Load() - 1; n != 5 {
		t.Fatalf("client made %d reconnect attempts, want 5", n)
	}
	if c.Connected() {
		t.Error("Connected after reconnects were exhausted")
	}
}

func TestPendingHandshakeDoesNotBlockClient(t *testing.T) {
	srv := newSocketServer(t)
	release := srv.hold(t)
	c := New(Config{URL: srv.url(), Token: "tok"})
	defer c.Disconnect()

	errc := make(chan error, 1)
	go func() { errc <- c.Connect(context.Background()) }()
	waitFor(t, "handshake to start", func() bool { return srv.dials.Load() == 1 })

	done := make(chan struct{})
	go func() {
		defer close(done)
		if c.Connected() {
			t.Error("Connected before the handshake finished")
		}
		if err := c.Send("ping", nil); !errors.Is(err, ErrNotConnected) {
			t.Errorf("Send = %v, want ErrNotConnected", err)
		}
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Connected or Send blocked on a pending handshake")
	}

	release()
	if err := <-errc; err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if !c.Connected() {
		t.Error("not connected after handshake")
	}
}

func TestConcurrentConnectKeepsOneSocket(t *testing.T) {
	srv := newSocketServer(t)
	release := srv.hold(t)
	c := New(Config{URL: srv.url(), Token: "tok"})
	defer c.Disconnect()

	errc := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() { errc <- c.Connect(context.Background()) }()
	}
	waitFor(t, "both handshakes to start", func() bool { return srv.dials.Load() == 2 })
	release()

	for i := 0; i < 2; i++ {
		if err := <-errc; err != nil {
			t.Fatalf("Connect: %v", err)
		}
	}
	waitFor(t, "one live socket", func() bool { return srv.live.Load() == 1 })
	if !c.Connected() {
		t.Error("not connected")
	}
}
