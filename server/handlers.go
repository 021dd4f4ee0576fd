package server

// HTTP handler methods for Server:
// - Health checks (HandleHealth)
// - Publisher trigger (HandlePublisherRun)
// - Content and schedule listings (HandleContents, HandleScheduled)
// - View and engagement counters (HandleContentView, HandleContentEngagement)
// - WebSocket connections (HandleWebSocket)

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/easelhq/easel/content"
	"github.com/easelhq/easel/errors"
	"github.com/easelhq/easel/logger"
)

// HandleHealth reports liveness.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// HandlePublisherRun triggers one publisher batch and returns its report.
// This is the parameterless "run now" surface; the report lists every
// processed schedule with its outcome.
func (s *Server) HandlePublisherRun(w http.ResponseWriter, r *http.Request) {
	report, err := s.publisher.RunOnce(r.Context())
	if err != nil {
		s.logger.Errorw("Publisher run failed", logger.FieldError, err)
		s.writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": err.Error(),
		})
		return
	}

	s.writeJSON(w, http.StatusOK, report)
}

// HandleContents lists content records, optionally filtered by status and
// type query parameters.
func (s *Server) HandleContents(w http.ResponseWriter, r *http.Request) {
	filter := content.Filter{
		Status: content.Status(r.URL.Query().Get("status")),
		Type:   content.Type(r.URL.Query().Get("type")),
	}
	if filter.Status != "" && !content.ValidStatus(filter.Status) {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": fmt.Sprintf("unknown status %q", filter.Status),
		})
		return
	}
	if filter.Type != "" && !content.ValidType(filter.Type) {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": fmt.Sprintf("unknown type %q", filter.Type),
		})
		return
	}

	contents, err := s.contents.List(r.Context(), filter)
	if err != nil {
		s.logger.Errorw("Content listing failed", logger.FieldError, err)
		s.writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": err.Error(),
		})
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"contents": contents,
		"count":    len(contents),
	})
}

// HandleContentView records one view of a content record.
func (s *Server) HandleContentView(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.contents.IncrementViewCount(r.Context(), id); err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "recorded"})
}

// HandleContentEngagement adds an engagement delta to a content record.
func (s *Server) HandleContentEngagement(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Delta float64 `json:"delta"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid request body",
		})
		return
	}

	id := r.PathValue("id")
	if err := s.contents.AddEngagement(r.Context(), id, body.Delta); err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "recorded"})
}

// HandleScheduled lists scheduled publications, soonest first. The status
// query parameter narrows the result; default is all.
func (s *Server) HandleScheduled(w http.ResponseWriter, r *http.Request) {
	schedules, err := s.schedules.List(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		s.logger.Errorw("Schedule listing failed", logger.FieldError, err)
		s.writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": err.Error(),
		})
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"scheduled": schedules,
		"count":     len(schedules),
	})
}

// HandleWebSocket upgrades the connection and subscribes the client to
// publication events.
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Errorw("WebSocket upgrade failed", logger.FieldError, err)
		return
	}

	id := fmt.Sprintf("%s_%d", r.RemoteAddr, time.Now().UnixNano())
	client := &Client{
		server:  s,
		conn:    conn,
		send:    make(chan interface{}, 64),
		id:      id,
		logger:  logger.ChildLogger(s.logger, "client_id", id),
		limiter: rate.NewLimiter(rate.Limit(s.cfg.Publisher.BroadcastEventsPerSecond), 1),
	}

	s.registerClient(client)

	s.wg.Add(2)
	go client.writePump(&s.wg)
	go client.readPump(&s.wg)
}

// checkOrigin allows same-host connections plus configured origins.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range s.cfg.Server.AllowedOrigins {
		if origin == allowed {
			return true
		}
	}
	return false
}

// writeStoreError maps store errors to HTTP status codes.
func (s *Server) writeStoreError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if errors.IsNotFound(err) {
		status = http.StatusNotFound
	}
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Debugw("Failed to write response", logger.FieldError, err)
	}
}
