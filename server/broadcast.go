package server

// Broadcasting of publication events to WebSocket clients. Server implements
// publish.Broadcaster; the publisher calls in as it resolves each item.

import (
	"time"

	"github.com/easelhq/easel/publish"
)

// PublicationEvent is the wire message for publication outcomes.
type PublicationEvent struct {
	Type        string `json:"type"` // "published" | "publish_failed"
	ScheduleID  string `json:"schedule_id"`
	ContentID   string `json:"content_id"`
	ScheduledAt string `json:"scheduled_at"`
	Error       string `json:"error,omitempty"`
	Timestamp   int64  `json:"timestamp"`
}

// BroadcastPublished notifies clients that a schedule resolved successfully.
func (s *Server) BroadcastPublished(sp *publish.ScheduledPublication, contentID string) {
	s.broadcastMessage(PublicationEvent{
		Type:        "published",
		ScheduleID:  sp.ID,
		ContentID:   contentID,
		ScheduledAt: sp.ScheduledAt.UTC().Format(time.RFC3339),
		Timestamp:   time.Now().Unix(),
	})
}

// BroadcastPublishFailed notifies clients that a schedule failed.
func (s *Server) BroadcastPublishFailed(sp *publish.ScheduledPublication, reason string) {
	s.broadcastMessage(PublicationEvent{
		Type:        "publish_failed",
		ScheduleID:  sp.ID,
		ContentID:   sp.ContentID,
		ScheduledAt: sp.ScheduledAt.UTC().Format(time.RFC3339),
		Error:       reason,
		Timestamp:   time.Now().Unix(),
	})
}

// broadcastMessage sends a message to all connected clients.
// Returns the number of clients that accepted the message (channel not full).
// Delivery goes through Client.trySend, which holds the client's own lock,
// so a client unregistering mid-broadcast cannot close the channel under a
// send.
func (s *Server) broadcastMessage(msg interface{}) int {
	s.mu.RLock()
	clients := make([]*Client, 0, len(s.clients))
	for client := range s.clients {
		clients = append(clients, client)
	}
	s.mu.RUnlock()

	sent := 0
	for _, client := range clients {
		if client.trySend(msg) {
			sent++
		}
	}
	return sent
}
