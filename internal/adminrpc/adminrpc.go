// Package adminrpc is the local admin control plane (spec.md §9 design
// note): a WebSocket endpoint an identity-manager operator's CLI talks to
// in order to trigger a revocation, plus a live feed of blacklist updates
// for any connected subscriber. Grounded on the teacher's
// internal/rpc/websocket.go (upgrade-then-read-loop-plus-send-channel
// shape per connection), with the XRPL command/subscription set replaced
// by DLedger's single revoke command and single blacklist stream.
package adminrpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/dledger/dlnode/internal/record"
	"github.com/gorilla/websocket"
)

// Revoker is the subset of internal/revocation.Manager the admin surface
// drives.
type Revoker interface {
	Generate(ctx context.Context, revokedNodeID string) (*record.Record, error)
}

// command is the shape of an inbound WebSocket message.
type command struct {
	Command       string `json:"command"`
	RevokedNodeID string `json:"revoked_node_id,omitempty"`
	ID            any    `json:"id,omitempty"`
}

// response is the shape of every outbound WebSocket message, whether a
// command reply or an unsolicited blacklist-stream push.
type response struct {
	Type   string `json:"type"`
	ID     any    `json:"id,omitempty"`
	Status string `json:"status"`
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

const (
	writeTimeout = 10 * time.Second
	pingInterval = 30 * time.Second
	pongTimeout  = 90 * time.Second
	sendBuffer   = 64
)

// Server is the admin WebSocket endpoint. One Server instance serves every
// connected operator client.
type Server struct {
	upgrader websocket.Upgrader
	revoker  Revoker
	log      *slog.Logger

	mu    sync.RWMutex
	conns map[string]*conn

	httpServer *http.Server
}

type conn struct {
	id            string
	ws            *websocket.Conn
	send          chan []byte
	subscribed    bool
	subscribeOnce sync.Once
}

// New builds a Server that drives revoker in response to "revoke"
// commands.
func New(revoker Revoker, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		revoker: revoker,
		log:     log,
		conns:   make(map[string]*conn),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Handler returns the http.Handler that upgrades /admin requests to a
// WebSocket connection, exposed separately from ListenAndServe so tests
// can drive it over an httptest.Server instead of a real socket.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/admin", s.handleUpgrade)
	return mux
}

// ListenAndServe starts the admin HTTP/WebSocket endpoint on addr. It
// returns once the listener is bound; serving runs in a background
// goroutine until Close.
func (s *Server) ListenAndServe(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("adminrpc: listening on %s: %w", addr, err)
	}

	s.httpServer = &http.Server{Handler: s.Handler()}
	go func() {
		if err := s.httpServer.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("adminrpc: serve exited", "error", err)
		}
	}()
	return nil
}

// Close shuts down the HTTP server and every open connection.
func (s *Server) Close() error {
	s.mu.Lock()
	for _, c := range s.conns {
		close(c.send)
		_ = c.ws.Close()
	}
	s.conns = make(map[string]*conn)
	s.mu.Unlock()

	if s.httpServer == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	wsConn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("adminrpc: upgrade failed", "error", err)
		return
	}
	c := &conn{id: connID(), ws: wsConn, send: make(chan []byte, sendBuffer)}

	s.mu.Lock()
	s.conns[c.id] = c
	s.mu.Unlock()

	go s.readLoop(c)
	go s.writeLoop(c)
}

func (s *Server) readLoop(c *conn) {
	defer s.dropConn(c)

	c.ws.SetReadLimit(64 * 1024)
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongTimeout))
	})
	_ = c.ws.SetReadDeadline(time.Now().Add(pongTimeout))

	for {
		_, msg, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		s.handleCommand(c, msg)
	}
}

func (s *Server) writeLoop(c *conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return
			}
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Server) handleCommand(c *conn, raw []byte) {
	var cmd command
	if err := json.Unmarshal(raw, &cmd); err != nil {
		s.reply(c, response{Type: "response", Status: "error", Error: "invalid JSON: " + err.Error()})
		return
	}

	switch cmd.Command {
	case "revoke":
		s.handleRevoke(c, cmd)
	case "subscribe_blacklist":
		c.subscribeOnce.Do(func() { c.subscribed = true })
		s.reply(c, response{Type: "response", ID: cmd.ID, Status: "success", Result: "subscribed"})
	default:
		s.reply(c, response{Type: "response", ID: cmd.ID, Status: "error", Error: "unknown command: " + cmd.Command})
	}
}

func (s *Server) handleRevoke(c *conn, cmd command) {
	if cmd.RevokedNodeID == "" {
		s.reply(c, response{Type: "response", ID: cmd.ID, Status: "error", Error: "revoked_node_id is required"})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	rec, err := s.revoker.Generate(ctx, cmd.RevokedNodeID)
	if err != nil {
		s.reply(c, response{Type: "response", ID: cmd.ID, Status: "error", Error: err.Error()})
		return
	}
	s.reply(c, response{Type: "response", ID: cmd.ID, Status: "success", Result: rec.Name})
	s.BroadcastBlacklisted(cmd.RevokedNodeID)
}

// BroadcastBlacklisted pushes an unsolicited notification to every
// subscribed connection when a node is added to the blacklist, whether by
// this peer's own Generate call above or by ingesting another peer's
// revocation record (wired from internal/node's intake commit hook,
// which calls this alongside internal/revocation.Manager.OnCommit).
func (s *Server) BroadcastBlacklisted(nodeID string) {
	data, err := json.Marshal(response{Type: "blacklist_update", Status: "success", Result: nodeID})
	if err != nil {
		return
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.conns {
		if !c.subscribed {
			continue
		}
		select {
		case c.send <- data:
		default:
			s.log.Warn("adminrpc: dropping slow connection", "conn", c.id)
		}
	}
}

func (s *Server) reply(c *conn, resp response) {
	data, err := json.Marshal(resp)
	if err != nil {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

func (s *Server) dropConn(c *conn) {
	s.mu.Lock()
	if _, ok := s.conns[c.id]; ok {
		delete(s.conns, c.id)
		close(c.send)
	}
	s.mu.Unlock()
	_ = c.ws.Close()
}

var connSeq struct {
	mu sync.Mutex
	n  int
}

func connID() string {
	connSeq.mu.Lock()
	defer connSeq.mu.Unlock()
	connSeq.n++
	return fmt.Sprintf("admin-conn-%d", connSeq.n)
}
