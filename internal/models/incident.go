package models

import (
	"time"

	"github.com/google/uuid"
)

// Category - тип ДТП
type Category string

const (
	CategoryVehicleCollision   Category = "vehicle_collision"
	CategoryPedestrianHit      Category = "pedestrian_hit"
	CategoryMotorcycleAccident Category = "motorcycle_accident"
	CategoryTruckAccident      Category = "truck_accident"
	CategoryMultiVehicle       Category = "multi_vehicle"
	CategoryHitAndRun          Category = "hit_and_run"
	CategoryBusAccident        Category = "bus_accident"
	CategoryAutoRickshaw       Category = "auto_rickshaw"
	CategoryBicycleAccident    Category = "bicycle_accident"
	CategoryOther              Category = "other"
)

var categories = map[Category]struct{}{
	CategoryVehicleCollision:   {},
	CategoryPedestrianHit:      {},
	CategoryMotorcycleAccident: {},
	CategoryTruckAccident:      {},
	CategoryMultiVehicle:       {},
	CategoryHitAndRun:          {},
	CategoryBusAccident:        {},
	CategoryAutoRickshaw:       {},
	CategoryBicycleAccident:    {},
	CategoryOther:              {},
}

func (c Category) Valid() bool {
	_, ok := categories[c]
	return ok
}

// Severity - уровень критичности, упорядочен: low < medium < high < critical
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rank возвращает порядковый номер уровня, 0 для неизвестного значения
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	}
	return 0
}

func (s Severity) Valid() bool {
	return s.Rank() > 0
}

// Source - источник сообщения об инциденте
type Source string

const (
	SourceCitizenApp  Source = "citizen_app"
	SourceSmartCamera Source = "smart_camera"
)

func (s Source) Valid() bool {
	return s == SourceCitizenApp || s == SourceSmartCamera
}

type Incident struct {
	ID                  uuid.UUID             `json:"id"`
	Title               string                `json:"title"`
	Description         string                `json:"description"`
	Category            Category              `json:"category"`
	Severity            Severity              `json:"severity"`
	Status              Status                `json:"status"`
	Latitude            float64               `json:"latitude"`
	Longitude           float64               `json:"longitude"`
	Address             string                `json:"address"`
	Source              Source                `json:"source"`
	CameraID            string                `json:"camera_id,omitempty"`
	AIConfidence        *float64              `json:"ai_confidence,omitempty"`
	AIAnalysis          *ClassificationResult `json:"ai_analysis,omitempty"`
	VehiclesInvolved    int                   `json:"vehicles_involved"`
	EstimatedCasualties int                   `json:"estimated_casualties"`
	ReportCount         int                   `json:"report_count"`
	Media               []Media               `json:"media,omitempty"`
	AcknowledgedAt      *time.Time            `json:"acknowledged_at,omitempty"`
	AcknowledgedBy      string                `json:"acknowledged_by,omitempty"`
	DispatchedAt        *time.Time            `json:"dispatched_at,omitempty"`
	EnRouteAt           *time.Time            `json:"en_route_at,omitempty"`
	OnSiteAt            *time.Time            `json:"on_site_at,omitempty"`
	ResolvedAt          *time.Time            `json:"resolved_at,omitempty"`
	ResolvedBy          string                `json:"resolved_by,omitempty"`
	ClosedAt            *time.Time            `json:"closed_at,omitempty"`
	ResolutionNotes     *string               `json:"resolution_notes,omitempty"`
	CreatedAt           time.Time             `json:"created_at"`
	UpdatedAt           time.Time             `json:"updated_at"`
}

// IncidentStats - сводка по инцидентам для панели оператора
type IncidentStats struct {
	Total      int `json:"total"`
	Pending    int `json:"pending"`
	InProgress int `json:"in_progress"`
	Resolved   int `json:"resolved"`
	FalseAlarm int `json:"false_alarm"`
	Critical   int `json:"critical"`
}

// Media - вложение инцидента, первое в списке является основным
type Media struct {
	ID          uuid.UUID `json:"id"`
	IncidentID  uuid.UUID `json:"incident_id"`
	FileName    string    `json:"file_name"`
	URL         string    `json:"url"`
	ContentType string    `json:"content_type"`
	Size        int       `json:"size"`
	IsPrimary   bool      `json:"is_primary"`
	CreatedAt   time.Time `json:"created_at"`
}
