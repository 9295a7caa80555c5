// Package netplane simulates the network between the nodes of a scenario.
//
// Nodes connect to the router over WebSocket. The first frame a node sends is
// its name; every later frame is a JSON object whose "target" field names the
// node it is for. Frames are forwarded unchanged, subject to the configured
// defects.
package netplane

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand/v2"
	"net"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"noderig/internal/config"
	"noderig/pkg/logging"
)

type envelope struct {
	Target string `json:"target"`
}

type peer struct {
	name string
	conn *websocket.Conn
	wmu  sync.Mutex
}

func (p *peer) write(messageType int, data []byte) error {
	p.wmu.Lock()
	defer p.wmu.Unlock()
	return p.conn.WriteMessage(messageType, data)
}

// Router relays frames between connected nodes.
type Router struct {
	defects  config.Defects
	upgrader websocket.Upgrader

	mu      sync.Mutex
	peers   map[string]*peer
	closing chan struct{}
	once    sync.Once
}

// NewRouter returns a router applying defects to every frame.
func NewRouter(defects config.Defects) *Router {
	return &Router{
		defects: defects,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		peers:   make(map[string]*peer),
		closing: make(chan struct{}),
	}
}

// Serve accepts nodes on ln until ctx ends, then disconnects them all.
func (r *Router) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{Handler: r, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		<-ctx.Done()
		r.shutdown()
		srv.Close()
	}()

	logging.Info("NetPlane", "Network plane listening on %s (latency=%v drop_rate=%.2f)", ln.Addr(), r.defects.Latency, r.defects.DropRate)
	err := srv.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Peers lists the names of connected nodes.
func (r *Router) Peers() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.peers))
	for name := range r.peers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		logging.Warn("NetPlane", "Upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	_, name, err := conn.ReadMessage()
	if err != nil {
		logging.Debug("NetPlane", "Connection closed before handshake: %v", err)
		return
	}
	p := &peer{name: string(name), conn: conn}
	if !r.register(p) {
		return
	}
	defer r.unregister(p)
	logging.Debug("NetPlane", "Node %s connected", p.name)

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			logging.Debug("NetPlane", "Node %s disconnected: %v", p.name, err)
			return
		}
		r.relay(p.name, messageType, data)
	}
}

func (r *Router) register(p *peer) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	select {
	case <-r.closing:
		return false
	default:
	}
	if old, ok := r.peers[p.name]; ok {
		old.conn.Close()
	}
	r.peers[p.name] = p
	return true
}

func (r *Router) unregister(p *peer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.peers[p.name] == p {
		delete(r.peers, p.name)
	}
}

func (r *Router) relay(from string, messageType int, data []byte) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil || env.Target == "" {
		logging.Warn("NetPlane", "Dropping unaddressed frame from %s", from)
		return
	}

	if r.dropped() {
		logging.Debug("NetPlane", "Dropped frame %s -> %s", from, env.Target)
		return
	}
	if r.defects.Latency > 0 {
		timer := time.NewTimer(r.defects.Latency)
		select {
		case <-timer.C:
		case <-r.closing:
			timer.Stop()
			return
		}
	}

	r.mu.Lock()
	target, ok := r.peers[env.Target]
	r.mu.Unlock()
	if !ok {
		logging.Debug("NetPlane", "No node %s connected, dropping frame from %s", env.Target, from)
		return
	}
	if err := target.write(messageType, data); err != nil {
		logging.Debug("NetPlane", "Failed to forward %s -> %s: %v", from, env.Target, err)
	}
}

func (r *Router) dropped() bool {
	return r.defects.DropRate > 0 && rand.Float64() < r.defects.DropRate
}

func (r *Router) shutdown() {
	r.once.Do(func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		close(r.closing)
		for _, p := range r.peers {
			p.conn.Close()
		}
	})
}
