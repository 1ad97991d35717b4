package events

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shenikar/road_incident_triage/internal/models"
)

// Type - тип события
type Type string

const (
	IncidentCreated         Type = "incident.created"
	IncidentReportedAgain   Type = "incident.reported_again"
	IncidentStatusChanged   Type = "incident.status_changed"
	IncidentSeverityChanged Type = "incident.severity_changed"
	CaptureProcessed        Type = "capture.processed"
)

// Event - структура события, передаваемая через очередь
type Event struct {
	ID         uuid.UUID        `json:"id"`
	Type       Type             `json:"type"`
	OccurredAt time.Time        `json:"occurred_at"`
	Incident   *models.Incident `json:"incident,omitempty"`
	Capture    *models.Capture  `json:"capture,omitempty"`

	// PreviousStatus/PreviousSeverity заполняются для событий изменения
	PreviousStatus   models.Status   `json:"previous_status,omitempty"`
	PreviousSeverity models.Severity `json:"previous_severity,omitempty"`
}

func NewIncidentEvent(t Type, incident *models.Incident) Event {
	return Event{
		ID:         uuid.New(),
		Type:       t,
		OccurredAt: time.Now().UTC(),
		Incident:   incident,
	}
}

func NewCaptureEvent(capture *models.Capture) Event {
	return Event{
		ID:         uuid.New(),
		Type:       CaptureProcessed,
		OccurredAt: time.Now().UTC(),
		Capture:    capture,
	}
}

// Key - ключ партиционирования (id инцидента или снимка)
func (e Event) Key() string {
	switch {
	case e.Incident != nil:
		return e.Incident.ID.String()
	case e.Capture != nil:
		return e.Capture.ID.String()
	}
	return e.ID.String()
}

// Publisher - интерфейс для публикации событий
//
//go:generate mockgen -source=event.go -destination=mocks/mock_events.go -package=mocks
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Handler - получатель событий из очереди
type Handler interface {
	Name() string
	Handle(ctx context.Context, event Event, raw []byte) error
}
