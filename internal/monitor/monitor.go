// Package monitor exposes pool statistics over HTTP and websocket.
package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/coder/quartz"
	"golang.org/x/net/websocket"

	"github.com/mv82/webpool/internal/logger"
	"github.com/mv82/webpool/pkg/pool"
)

// DefaultInterval is how often stats are pushed to websocket clients
const DefaultInterval = time.Second

// Option configures a Server before Start
type Option func(*Server)

// WithClock sets the clock driving the broadcast ticker
func WithClock(clock quartz.Clock) Option {
	return func(s *Server) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithInterval sets the websocket broadcast interval
func WithInterval(interval time.Duration) Option {
	return func(s *Server) {
		if interval > 0 {
			s.interval = interval
		}
	}
}

// Server serves read-only pool statistics. It never mutates the pool.
type Server struct {
	addr     string
	pool     *pool.Pool
	log      *logger.Logger
	clock    quartz.Clock
	interval time.Duration

	mu        sync.Mutex
	wsClients map[*websocket.Conn]bool

	listener   net.Listener
	httpServer *http.Server
	stopCh     chan struct{}
	doneCh     chan struct{}
	stopOnce   sync.Once
}

// New creates a monitor server for the given pool
func New(addr string, p *pool.Pool, log *logger.Logger, opts ...Option) *Server {
	s := &Server{
		addr:      addr,
		pool:      p,
		log:       log,
		clock:     quartz.NewReal(),
		interval:  DefaultInterval,
		wsClients: make(map[*websocket.Conn]bool),
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start binds the listener and serves in the background
func (s *Server) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/stats", s.handleStats)
	mux.HandleFunc("/api/workers", s.handleWorkers)
	mux.Handle("/ws", websocket.Handler(s.handleWebSocket))

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = ln
	s.httpServer = &http.Server{Handler: mux}

	go s.broadcastLoop()
	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Errorf("monitor server error: %v", err)
		}
	}()

	s.log.Infof("monitor listening on http://%s", ln.Addr())
	return nil
}

// Stop shuts the HTTP server down gracefully and ends the broadcast loop
func (s *Server) Stop() {
	if s.httpServer == nil {
		return
	}

	s.stopOnce.Do(func() {
		close(s.stopCh)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.httpServer.Shutdown(shutdownCtx)

		// hijacked websocket connections are not covered by Shutdown
		s.mu.Lock()
		clients := make([]*websocket.Conn, 0, len(s.wsClients))
		for ws := range s.wsClients {
			clients = append(clients, ws)
		}
		s.mu.Unlock()
		for _, ws := range clients {
			_ = ws.Close()
		}
	})
	<-s.doneCh
}

// Addr returns the bound listener address, or nil before Start
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// StatsResponse is the pool snapshot served by the stats endpoint
type StatsResponse struct {
	State          string  `json:"state"`
	PoolSize       int     `json:"pool_size"`
	ActiveWorkers  int     `json:"active_workers"`
	QueueLength    int     `json:"queue_length"`
	TotalProcessed int64   `json:"total_processed"`
	TotalRecovered int64   `json:"total_recovered"`
	UptimeSeconds  float64 `json:"uptime_seconds"`
}

// WorkerInfo is one worker's diagnostic snapshot
type WorkerInfo struct {
	ID        int    `json:"id"`
	State     string `json:"state"`
	Active    bool   `json:"active"`
	Processed int64  `json:"processed"`
	Recovered int64  `json:"recovered"`
}

func (s *Server) snapshot() StatsResponse {
	stats := s.pool.Stats()
	return StatsResponse{
		State:          s.pool.State().String(),
		PoolSize:       stats.PoolSize,
		ActiveWorkers:  stats.ActiveWorkers,
		QueueLength:    stats.QueueLength,
		TotalProcessed: stats.TotalProcessed,
		TotalRecovered: stats.TotalRecovered,
		UptimeSeconds:  stats.Uptime.Seconds(),
	}
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.writeJSON(w, s.snapshot())
}

func (s *Server) handleWorkers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	workerStats := s.pool.GetWorkerStats()
	workers := make([]WorkerInfo, len(workerStats))
	for i, ws := range workerStats {
		workers[i] = WorkerInfo{
			ID:        ws.ID,
			State:     ws.State.String(),
			Active:    ws.IsActive(),
			Processed: ws.TotalProcessed,
			Recovered: ws.TotalRecovered,
		}
	}

	s.writeJSON(w, workers)
}

// WebSocket handling
func (s *Server) handleWebSocket(ws *websocket.Conn) {
	s.mu.Lock()
	s.wsClients[ws] = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.wsClients, ws)
		s.mu.Unlock()
		_ = ws.Close()
	}()

	// keep the connection open until the client goes away
	for {
		var msg string
		if err := websocket.Message.Receive(ws, &msg); err != nil {
			return
		}
	}
}

func (s *Server) clientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.wsClients)
}

func (s *Server) broadcast(data interface{}) {
	s.mu.Lock()
	clients := make([]*websocket.Conn, 0, len(s.wsClients))
	for ws := range s.wsClients {
		clients = append(clients, ws)
	}
	s.mu.Unlock()

	jsonData, err := json.Marshal(data)
	if err != nil {
		return
	}

	for _, ws := range clients {
		_ = websocket.Message.Send(ws, string(jsonData))
	}
}

func (s *Server) broadcastLoop() {
	defer close(s.doneCh)

	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			if s.clientCount() == 0 {
				continue
			}
			s.broadcast(map[string]interface{}{
				"type":  "stats",
				"stats": s.snapshot(),
			})
		}
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Errorf("failed to encode JSON: %v", err)
	}
}
