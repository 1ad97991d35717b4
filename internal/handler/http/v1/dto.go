package v1

import (
	"time"

	"github.com/google/uuid"
	"github.com/shenikar/road_incident_triage/internal/models"
)

// PhotoRequest - фотография в base64
// @Description Фотография в base64
type PhotoRequest struct {
	Data        []byte `json:"data" validate:"required"`
	ContentType string `json:"content_type" validate:"required,oneof=image/jpeg image/png image/webp"`
}

// CreateIncidentRequest DTO для сообщения гражданина об инциденте
// @Description DTO для сообщения гражданина об инциденте
type CreateIncidentRequest struct {
	Title               string                       `json:"title" validate:"required,min=2,max=255"`
	Description         string                       `json:"description,omitempty" validate:"max=4000"`
	Category            string                       `json:"category" validate:"required"`
	Severity            string                       `json:"severity" validate:"required,oneof=low medium high critical"`
	Latitude            float64                      `json:"latitude" validate:"latitude"`
	Longitude           float64                      `json:"longitude" validate:"longitude"`
	Address             string                       `json:"address,omitempty" validate:"max=500"`
	VehiclesInvolved    int                          `json:"vehicles_involved" validate:"gte=0"`
	EstimatedCasualties int                          `json:"estimated_casualties" validate:"gte=0"`
	AIConfidence        *float64                     `json:"ai_confidence,omitempty" validate:"omitempty,gte=0,lte=1"`
	AIAnalysis          *models.ClassificationResult `json:"ai_analysis,omitempty"`
	Photos              []PhotoRequest               `json:"photos,omitempty" validate:"max=5,dive"`
}

// AdvanceStatusRequest DTO для перевода инцидента в следующий статус
// @Description DTO для перевода инцидента в следующий статус
type AdvanceStatusRequest struct {
	Status string  `json:"status" validate:"required,oneof=acknowledged dispatched en_route on_site resolved"`
	Actor  string  `json:"actor,omitempty" validate:"max=100"`
	Notes  *string `json:"notes,omitempty" validate:"omitempty,max=4000"`
}

// FalseAlarmRequest DTO для закрытия инцидента как ложного вызова
// @Description DTO для закрытия инцидента как ложного вызова
type FalseAlarmRequest struct {
	Actor string  `json:"actor,omitempty" validate:"max=100"`
	Notes *string `json:"notes,omitempty" validate:"omitempty,max=4000"`
}

// SeverityRequest DTO для смены критичности
// @Description DTO для смены критичности
type SeverityRequest struct {
	Severity string `json:"severity" validate:"required,oneof=low medium high critical"`
}

// NotesRequest DTO для заметок оператора
// @Description DTO для заметок оператора
type NotesRequest struct {
	Notes string `json:"notes" validate:"max=4000"`
}

// NearbyQuery - параметры поиска инцидентов рядом с точкой
type NearbyQuery struct {
	Latitude      *float64 `form:"lat" validate:"required,latitude"`
	Longitude     *float64 `form:"lon" validate:"required,longitude"`
	RadiusKm      float64  `form:"radius_km" validate:"gte=0,lte=100"`
	IncludeClosed bool     `form:"include_closed"`
	Limit         int      `form:"limit" validate:"gte=0,lte=100"`
}

// IncidentResponse DTO для ответа с информацией об инциденте
// @Description DTO для ответа с информацией об инциденте
type IncidentResponse struct {
	ID                  uuid.UUID                    `json:"id"`
	Title               string                       `json:"title"`
	Description         string                       `json:"description,omitempty"`
	Category            string                       `json:"category"`
	Severity            string                       `json:"severity"`
	Status              string                       `json:"status"`
	Latitude            float64                      `json:"latitude"`
	Longitude           float64                      `json:"longitude"`
	Address             string                       `json:"address"`
	Source              string                       `json:"source"`
	CameraID            string                       `json:"camera_id,omitempty"`
	AIConfidence        *float64                     `json:"ai_confidence,omitempty"`
	AIAnalysis          *models.ClassificationResult `json:"ai_analysis,omitempty"`
	VehiclesInvolved    int                          `json:"vehicles_involved"`
	EstimatedCasualties int                          `json:"estimated_casualties"`
	ReportCount         int                          `json:"report_count"`
	Media               []models.Media               `json:"media"`
	AcknowledgedAt      *time.Time                   `json:"acknowledged_at,omitempty"`
	AcknowledgedBy      string                       `json:"acknowledged_by,omitempty"`
	DispatchedAt        *time.Time                   `json:"dispatched_at,omitempty"`
	EnRouteAt           *time.Time                   `json:"en_route_at,omitempty"`
	OnSiteAt            *time.Time                   `json:"on_site_at,omitempty"`
	ResolvedAt          *time.Time                   `json:"resolved_at,omitempty"`
	ResolvedBy          string                       `json:"resolved_by,omitempty"`
	ClosedAt            *time.Time                   `json:"closed_at,omitempty"`
	ResolutionNotes     *string                      `json:"resolution_notes,omitempty"`
	CreatedAt           time.Time                    `json:"created_at"`
	UpdatedAt           time.Time                    `json:"updated_at"`
}

// SubmissionResponse DTO для ответа на сообщение об инциденте
// @Description DTO для ответа на сообщение об инциденте
type SubmissionResponse struct {
	Incident      *IncidentResponse `json:"incident"`
	Consolidated  bool              `json:"consolidated"`
	MediaUploaded int               `json:"media_uploaded"`
	MediaFailed   int               `json:"media_failed"`
}

// IncidentListResponse DTO для страницы инцидентов
// @Description DTO для страницы инцидентов
type IncidentListResponse struct {
	Items    []*IncidentResponse `json:"items"`
	Total    int                 `json:"total"`
	Page     int                 `json:"page"`
	PageSize int                 `json:"page_size"`
}

// ReviewRequest DTO для решения оператора по снимку
// @Description DTO для решения оператора по снимку
type ReviewRequest struct {
	Reviewer string `json:"reviewer" validate:"required,max=100"`
	Notes    string `json:"notes,omitempty" validate:"max=4000"`
}

// SettingsResponse DTO с текущими настройками съемки
// @Description DTO с текущими настройками съемки
type SettingsResponse struct {
	CaptureIntervalSeconds int     `json:"capture_interval_seconds"`
	LocationTracking       bool    `json:"location_tracking"`
	AutoSubmitThreshold    float64 `json:"auto_submit_threshold"`
	ManualReviewThreshold  float64 `json:"manual_review_threshold"`
}

// UpdateSettingsRequest DTO для частичного обновления настроек, пустые поля не меняются
// @Description DTO для частичного обновления настроек
type UpdateSettingsRequest struct {
	CaptureIntervalSeconds *int     `json:"capture_interval_seconds,omitempty" validate:"omitempty,gte=1,lte=3600"`
	LocationTracking       *bool    `json:"location_tracking,omitempty"`
	AutoSubmitThreshold    *float64 `json:"auto_submit_threshold,omitempty" validate:"omitempty,gte=0,lte=1"`
	ManualReviewThreshold  *float64 `json:"manual_review_threshold,omitempty" validate:"omitempty,gte=0,lte=1"`
}

// CaptureStatsResponse DTO статистики журнала снимков
// @Description DTO статистики журнала снимков
type CaptureStatsResponse struct {
	models.CaptureStats
	Dropped int64 `json:"dropped"`
	Failed  int64 `json:"failed"`
}

// HealthResponse DTO для проверки работоспособности
// @Description DTO для проверки работоспособности
type HealthResponse struct {
	Status     string `json:"status"`
	CameraID   string `json:"camera_id,omitempty"`
	Monitoring bool   `json:"monitoring"`
}
