package models

import (
	"time"

	"github.com/google/uuid"
)

// Hotspot - зона повышенного риска (центр + радиус), модель только для чтения панелями
type Hotspot struct {
	ID             uuid.UUID  `json:"id"`
	Name           string     `json:"name"`
	Description    string     `json:"description,omitempty"`
	Latitude       float64    `json:"latitude"`
	Longitude      float64    `json:"longitude"`
	RadiusMeters   int        `json:"radius_meters"`
	AccidentCount  int        `json:"accident_count"`
	RiskScore      float64    `json:"risk_score"`
	LastIncidentAt *time.Time `json:"last_incident_at,omitempty"`
	IsActive       bool       `json:"is_active"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}
