package feed_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alejandrodnm/kalshibot/internal/feed"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingHandler struct {
	url      string
	connects atomic.Int32
	mu       sync.Mutex
	messages []string
}

func (h *recordingHandler) ID() string  { return "mock" }
func (h *recordingHandler) URL() string { return h.url }

func (h *recordingHandler) OnConnect(_ context.Context, conn feed.Conn) error {
	h.connects.Add(1)
	return conn.WriteJSON(map[string]string{"op": "subscribe"})
}

func (h *recordingHandler) OnMessage(_ context.Context, msg []byte) error {
	h.mu.Lock()
	h.messages = append(h.messages, string(msg))
	h.mu.Unlock()
	return nil
}

func (h *recordingHandler) received() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.messages...)
}

func newWSServer(t *testing.T, serve func(*websocket.Conn)) *httptest.Server {
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		serve(conn)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return strings.Replace(srv.URL, "http://", "ws://", 1)
}

func TestConnection_SubscribesAndReceives(t *testing.T) {
	srv := newWSServer(t, func(conn *websocket.Conn) {
		var sub map[string]string
		if err := conn.ReadJSON(&sub); err != nil || sub["op"] != "subscribe" {
			return
		}
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"price":"1"}`))
		time.Sleep(300 * time.Millisecond)
	})

	h := &recordingHandler{url: wsURL(srv)}
	status := feed.NewStatus()
	c := feed.NewConnection(h, status, feed.NewBackoff(10*time.Millisecond, 50*time.Millisecond, 0))
	c.Start(context.Background())

	require.Eventually(t, func() bool { return len(h.received()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.True(t, status.Connected("mock"))

	c.Stop()
	assert.False(t, status.Connected("mock"))
	assert.Equal(t, `{"price":"1"}`, h.received()[0])
}

func TestConnection_ReconnectsAfterClose(t *testing.T) {
	srv := newWSServer(t, func(conn *websocket.Conn) {
		var sub map[string]string
		_ = conn.ReadJSON(&sub)
		// cierra enseguida para forzar la reconexión
	})

	h := &recordingHandler{url: wsURL(srv)}
	c := feed.NewConnection(h, feed.NewStatus(), feed.NewBackoff(10*time.Millisecond, 20*time.Millisecond, 0))
	c.Start(context.Background())
	defer c.Stop()

	require.Eventually(t, func() bool { return h.connects.Load() >= 3 }, 3*time.Second, 10*time.Millisecond)
}

func TestConnection_StopWhileDialFails(t *testing.T) {
	h := &recordingHandler{url: "ws://127.0.0.1:1/nowhere"}
	b := feed.NewBackoff(5*time.Millisecond, 10*time.Millisecond, 0)
	c := feed.NewConnection(h, feed.NewStatus(), b)
	c.Start(context.Background())

	require.Eventually(t, func() bool { return b.Failures() >= 2 }, 2*time.Second, 5*time.Millisecond)

	done := make(chan struct{})
	go func() {
		c.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return")
	}
	assert.Equal(t, int32(0), h.connects.Load())
}

type fakeStreamer struct{ runs atomic.Int32 }

func (s *fakeStreamer) ID() string { return "stream" }

func (s *fakeStreamer) Stream(ctx context.Context, connected func()) error {
	s.runs.Add(1)
	connected()
	<-ctx.Done()
	return nil
}

func TestManager_RunStopsAllFeeds(t *testing.T) {
	status := feed.NewStatus()
	s := &fakeStreamer{}
	m := feed.NewManager(feed.NewStreamConnection(s, status, feed.NewBackoff(time.Millisecond, time.Millisecond, 0)))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	require.Eventually(t, func() bool { return status.Connected("stream") }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("manager did not stop")
	}
	assert.False(t, status.Connected("stream"))
	assert.Equal(t, int32(1), s.runs.Load())
}
