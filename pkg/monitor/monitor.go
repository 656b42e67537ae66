// Package monitor provides a small WebSocket server that streams rewrite
// progress and log events. A browser or print-farm dashboard can connect
// while a long rewrite runs and watch the percentage advance.
//
// Copyright (C) 2026  TempTower Go Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package monitor

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"temptower-go/pkg/log"
)

// Event is one broadcast message.
type Event struct {
	// Type is "progress", "log" or "done".
	Type string `json:"type"`

	// Percent is set for progress events (e.g. "42%").
	Percent string `json:"percent,omitempty"`

	// Level and Message are set for log events.
	Level   string `json:"level,omitempty"`
	Message string `json:"message,omitempty"`

	// Dest is set for done events.
	Dest string `json:"dest,omitempty"`

	Time time.Time `json:"time"`
}

// Server broadcasts rewrite events to connected WebSocket clients.
type Server struct {
	addr       string
	httpServer *http.Server

	upgrader websocket.Upgrader
	clients  map[int64]*client
	clientMu sync.RWMutex
	nextID   int64

	// lastProgress is served on /status for plain HTTP polling.
	lastMu       sync.RWMutex
	lastProgress string

	running atomic.Bool
}

// New creates a server that will listen on addr (e.g. ":7125").
func New(addr string) *Server {
	s := &Server{
		addr:    addr,
		clients: make(map[int64]*client),
	}
	s.upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}
	return s
}

// Start serves until Stop is called. It blocks, so run it in a goroutine.
func (s *Server) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/websocket", s.handleWebSocket)
	mux.HandleFunc("/status", s.handleStatus)

	s.httpServer = &http.Server{Addr: s.addr, Handler: mux}
	s.running.Store(true)
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Stop closes all clients and shuts the listener down.
func (s *Server) Stop() error {
	s.running.Store(false)

	s.clientMu.Lock()
	for _, c := range s.clients {
		c.close()
	}
	s.clients = make(map[int64]*client)
	s.clientMu.Unlock()

	if s.httpServer != nil {
		return s.httpServer.Close()
	}
	return nil
}

// Broadcast queues an event for every connected client. Slow clients drop
// events rather than stalling the rewrite.
func (s *Server) Broadcast(ev Event) {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	if ev.Type == "progress" {
		s.lastMu.Lock()
		s.lastProgress = ev.Percent
		s.lastMu.Unlock()
	}

	s.clientMu.RLock()
	defer s.clientMu.RUnlock()
	for _, c := range s.clients {
		c.send(ev)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.lastMu.RLock()
	progress := s.lastProgress
	s.lastMu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"progress": progress,
		"clients":  s.clientCount(),
	})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	id := atomic.AddInt64(&s.nextID, 1)
	c := &client{
		id:     id,
		conn:   conn,
		sendCh: make(chan Event, 64),
		done:   make(chan struct{}),
	}

	s.clientMu.Lock()
	s.clients[id] = c
	s.clientMu.Unlock()

	go c.writePump()
	go c.readPump(func() { s.removeClient(id) })
}

func (s *Server) removeClient(id int64) {
	s.clientMu.Lock()
	delete(s.clients, id)
	s.clientMu.Unlock()
}

func (s *Server) clientCount() int {
	s.clientMu.RLock()
	defer s.clientMu.RUnlock()
	return len(s.clients)
}

// client is one WebSocket subscriber.
type client struct {
	id     int64
	conn   *websocket.Conn
	sendCh chan Event
	done   chan struct{}
	mu     sync.Mutex
}

func (c *client) send(ev Event) {
	select {
	case c.sendCh <- ev:
	case <-c.done:
	default:
		// Channel full; the client is too slow and loses this event.
	}
}

func (c *client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	select {
	case <-c.done:
		return
	default:
		close(c.done)
	}
	c.conn.Close()
}

// readPump discards inbound messages; subscribers only listen. It exists to
// detect disconnects and answer pings.
func (c *client) readPump(onClose func()) {
	defer func() {
		onClose()
		c.close()
	}()

	c.conn.SetReadLimit(4 * 1024)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case ev := <-c.sendCh:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

// Echo wraps another Echo and mirrors everything it sees to the server's
// WebSocket clients.
type Echo struct {
	inner  log.Echo
	server *Server
}

// NewEcho builds the broadcasting wrapper.
func NewEcho(inner log.Echo, server *Server) *Echo {
	return &Echo{inner: inner, server: server}
}

func (e *Echo) Debug(msg string, args ...interface{}) {
	e.inner.Debug(msg, args...)
}

func (e *Echo) Info(msg string, args ...interface{}) {
	e.inner.Info(msg, args...)
	e.server.Broadcast(Event{Type: "log", Level: "info", Message: format(msg, args)})
}

func (e *Echo) Warn(msg string, args ...interface{}) {
	e.inner.Warn(msg, args...)
	e.server.Broadcast(Event{Type: "log", Level: "warn", Message: format(msg, args)})
}

func (e *Echo) Error(msg string, args ...interface{}) {
	e.inner.Error(msg, args...)
	e.server.Broadcast(Event{Type: "log", Level: "error", Message: format(msg, args)})
}

func (e *Echo) Progress(percent string) {
	e.inner.Progress(percent)
	e.server.Broadcast(Event{Type: "progress", Percent: percent})
}

func format(msg string, args []interface{}) string {
	if len(args) == 0 {
		return msg
	}
	return fmt.Sprintf(msg, args...)
}
