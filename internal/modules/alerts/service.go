package alerts

import (
	"log"
	"time"

	"github.com/google/uuid"
)

// SecurityAlert is the event pushed to watchers. Never carries token material.
type SecurityAlert struct {
	ID        string    `json:"id"`
	Subject   string    `json:"subject"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// Service implements the alerting hook consumed by the token service:
// log the event, fan it out to websocket watchers, never fail the caller.
type Service struct {
	hub *Hub
}

func NewService(hub *Hub) *Service {
	return &Service{hub: hub}
}

func (s *Service) Alert(subject, message string) {
	event := SecurityAlert{
		ID:        uuid.NewString(),
		Subject:   subject,
		Message:   message,
		CreatedAt: time.Now().UTC(),
	}

	log.Printf("security_alert id=%s subject=%q message=%q", event.ID, event.Subject, event.Message)

	if s.hub == nil {
		return
	}
	// Broadcast off the caller's goroutine: a slow watcher must not stall a
	// rotation call.
	go s.hub.Broadcast(event)
}
