package netplane

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"noderig/internal/config"
)

func startRouter(t *testing.T, defects config.Defects) (*Router, string, context.CancelFunc, chan error) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	r := NewRouter(defects)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Serve(ctx, ln) }()
	t.Cleanup(cancel)
	return r, "ws://" + ln.Addr().String(), cancel, done
}

func connect(t *testing.T, r *Router, url, name string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(name)))
	require.Eventually(t, func() bool {
		for _, p := range r.Peers() {
			if p == name {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)
	return conn
}

func TestRouter_Relays(t *testing.T) {
	r, url, _, _ := startRouter(t, config.Defects{})
	a := connect(t, r, url, "a.dev")
	b := connect(t, r, url, "b.dev")

	frame := []byte(`{"target":"b.dev","payload":[1,2,3]}`)
	require.NoError(t, a.WriteMessage(websocket.BinaryMessage, frame))

	require.NoError(t, b.SetReadDeadline(time.Now().Add(2*time.Second)))
	mt, got, err := b.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.BinaryMessage, mt)
	assert.Equal(t, frame, got)
	assert.Equal(t, []string{"a.dev", "b.dev"}, r.Peers())
}

func TestRouter_DropsEverythingAtFullDropRate(t *testing.T) {
	r, url, _, _ := startRouter(t, config.Defects{DropRate: 1})
	a := connect(t, r, url, "a.dev")
	b := connect(t, r, url, "b.dev")

	require.NoError(t, a.WriteMessage(websocket.TextMessage, []byte(`{"target":"b.dev"}`)))

	require.NoError(t, b.SetReadDeadline(time.Now().Add(300*time.Millisecond)))
	_, _, err := b.ReadMessage()
	assert.Error(t, err)
}

func TestRouter_Latency(t *testing.T) {
	r, url, _, _ := startRouter(t, config.Defects{Latency: 200 * time.Millisecond})
	a := connect(t, r, url, "a.dev")
	b := connect(t, r, url, "b.dev")

	start := time.Now()
	require.NoError(t, a.WriteMessage(websocket.TextMessage, []byte(`{"target":"b.dev"}`)))

	require.NoError(t, b.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, _, err := b.ReadMessage()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 200*time.Millisecond)
}

func TestRouter_UnknownTargetIsDropped(t *testing.T) {
	r, url, _, _ := startRouter(t, config.Defects{})
	a := connect(t, r, url, "a.dev")
	b := connect(t, r, url, "b.dev")

	require.NoError(t, a.WriteMessage(websocket.TextMessage, []byte(`{"target":"c.dev"}`)))
	require.NoError(t, a.WriteMessage(websocket.TextMessage, []byte(`not json`)))
	require.NoError(t, a.WriteMessage(websocket.TextMessage, []byte(`{"target":"b.dev","n":2}`)))

	require.NoError(t, b.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, got, err := b.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"target":"b.dev","n":2}`, string(got))
}

func TestRouter_StopsOnCancel(t *testing.T) {
	r, url, cancel, done := startRouter(t, config.Defects{})
	a := connect(t, r, url, "a.dev")

	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("router did not stop")
	}

	require.NoError(t, a.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := a.ReadMessage()
	assert.Error(t, err)
}
