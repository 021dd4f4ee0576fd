// Package server exposes easel over HTTP: health, the publisher trigger,
// read endpoints for contents and schedules, and a WebSocket feed of
// publication events.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/easelhq/easel/config"
	"github.com/easelhq/easel/content"
	"github.com/easelhq/easel/logger"
	"github.com/easelhq/easel/publish"
)

// Server serves the easel HTTP API and WebSocket event feed.
type Server struct {
	cfg       *config.Config
	contents  *content.Store
	schedules *publish.Store
	publisher *publish.Publisher
	logger    *zap.SugaredLogger

	httpServer *http.Server

	mu      sync.RWMutex
	clients map[*Client]bool
	wg      sync.WaitGroup
}

// New creates a server over the stores. The server builds its own publisher
// with itself as the Broadcaster, so WS clients see publication events from
// both the run-now endpoint and the ticker.
func New(cfg *config.Config, contents *content.Store, schedules *publish.Store) *Server {
	s := &Server{
		cfg:       cfg,
		contents:  contents,
		schedules: schedules,
		logger:    logger.ComponentLogger("server"),
		clients:   make(map[*Client]bool),
	}
	s.publisher = publish.NewPublisher(contents, schedules, s)
	return s
}

// Publisher returns the server's publisher, for driving from a ticker.
func (s *Server) Publisher() *publish.Publisher {
	return s.publisher
}

// Start begins serving on the configured port. Blocks until the listener
// fails or Shutdown is called.
func (s *Server) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.HandleHealth)
	mux.HandleFunc("POST /api/publisher/run", s.HandlePublisherRun)
	mux.HandleFunc("GET /api/contents", s.HandleContents)
	mux.HandleFunc("POST /api/contents/{id}/view", s.HandleContentView)
	mux.HandleFunc("POST /api/contents/{id}/engagement", s.HandleContentEngagement)
	mux.HandleFunc("GET /api/scheduled", s.HandleScheduled)
	mux.HandleFunc("GET /ws", s.HandleWebSocket)

	port := s.cfg.Server.Port
	if port == 0 {
		port = config.DefaultServerPort
	}

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Infow("Server listening", logger.FieldPort, port)
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown closes the listener and disconnects WS clients.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	for client := range s.clients {
		client.close()
	}
	s.clients = make(map[*Client]bool)
	s.mu.Unlock()

	var err error
	if s.httpServer != nil {
		err = s.httpServer.Shutdown(ctx)
	}
	s.wg.Wait()
	return err
}

// registerClient adds a connected WS client.
func (s *Server) registerClient(client *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[client] = true
	s.logger.Debugw("WebSocket client connected", "client_id", client.id, logger.FieldCount, len(s.clients))
}

// unregisterClient removes a WS client.
func (s *Server) unregisterClient(client *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[client]; ok {
		delete(s.clients, client)
		client.close()
	}
}
