package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Disposition - результат маршрутизации снимка
type Disposition string

const (
	DispositionAutoSubmit    Disposition = "auto_submit"
	DispositionPendingReview Disposition = "pending_review"
	DispositionDiscard       Disposition = "discard"
)

func ParseDisposition(s string) (Disposition, error) {
	switch d := Disposition(s); d {
	case DispositionAutoSubmit, DispositionPendingReview, DispositionDiscard:
		return d, nil
	}
	return "", fmt.Errorf("unknown disposition %q", s)
}

// Review - решение оператора по снимку в очереди проверки
type Review string

const (
	ReviewNone     Review = ""
	ReviewApproved Review = "approved"
	ReviewRejected Review = "rejected"
)

// Location - координаты и адрес, полученные при съемке
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Address   string  `json:"address"`
}

// Capture - одна попытка получения кадра
type Capture struct {
	ID             uuid.UUID             `json:"id"`
	CameraID       string                `json:"camera_id"`
	ImageRef       string                `json:"image_ref,omitempty"`
	ContentType    string                `json:"content_type,omitempty"`
	CapturedAt     time.Time             `json:"captured_at"`
	Location       *Location             `json:"location,omitempty"`
	Classification *ClassificationResult `json:"classification,omitempty"`
	Disposition    Disposition           `json:"disposition"`
	Review         Review                `json:"review,omitempty"`
	IncidentID     *uuid.UUID            `json:"incident_id,omitempty"`
	ReviewedBy     string                `json:"reviewed_by,omitempty"`
	ReviewedAt     *time.Time            `json:"reviewed_at,omitempty"`
	ReviewNotes    string                `json:"review_notes,omitempty"`
	Error          string                `json:"error,omitempty"`
	ProcessedAt    time.Time             `json:"processed_at"`
}

// Confidence возвращает уверенность классификатора или 0, если анализа нет
func (c *Capture) Confidence() float64 {
	if c.Classification == nil {
		return 0
	}
	return c.Classification.Confidence
}

// CaptureStats - статистика журнала снимков
type CaptureStats struct {
	Total         int  `json:"total_captures"`
	AutoSubmitted int  `json:"auto_submitted"`
	PendingReview int  `json:"pending_review"`
	Discarded     int  `json:"discarded"`
	Approved      int  `json:"approved"`
	Rejected      int  `json:"rejected"`
	Degraded      int  `json:"degraded"`
	IsActive      bool `json:"is_active"`
}
