package v1

import (
	"time"

	"github.com/shenikar/road_incident_triage/internal/config"
	"github.com/shenikar/road_incident_triage/internal/models"
	"github.com/shenikar/road_incident_triage/internal/service"
)

// DTOToNewIncident преобразует сообщение гражданина во входные данные сервиса
func DTOToNewIncident(dto CreateIncidentRequest) service.NewIncident {
	in := service.NewIncident{
		Title:               dto.Title,
		Description:         dto.Description,
		Category:            models.Category(dto.Category),
		Severity:            models.Severity(dto.Severity),
		Latitude:            dto.Latitude,
		Longitude:           dto.Longitude,
		Address:             dto.Address,
		Source:              models.SourceCitizenApp,
		AIConfidence:        dto.AIConfidence,
		AIAnalysis:          dto.AIAnalysis,
		VehiclesInvolved:    dto.VehiclesInvolved,
		EstimatedCasualties: dto.EstimatedCasualties,
	}
	for _, p := range dto.Photos {
		in.Photos = append(in.Photos, service.Photo{Data: p.Data, ContentType: p.ContentType})
	}
	return in
}

// ModelToIncidentResponse преобразует доменную модель в DTO для ответа
func ModelToIncidentResponse(model *models.Incident) *IncidentResponse {
	media := model.Media
	if media == nil {
		media = []models.Media{}
	}
	return &IncidentResponse{
		ID:                  model.ID,
		Title:               model.Title,
		Description:         model.Description,
		Category:            string(model.Category),
		Severity:            string(model.Severity),
		Status:              string(model.Status),
		Latitude:            model.Latitude,
		Longitude:           model.Longitude,
		Address:             model.Address,
		Source:              string(model.Source),
		CameraID:            model.CameraID,
		AIConfidence:        model.AIConfidence,
		AIAnalysis:          model.AIAnalysis,
		VehiclesInvolved:    model.VehiclesInvolved,
		EstimatedCasualties: model.EstimatedCasualties,
		ReportCount:         model.ReportCount,
		Media:               media,
		AcknowledgedAt:      model.AcknowledgedAt,
		AcknowledgedBy:      model.AcknowledgedBy,
		DispatchedAt:        model.DispatchedAt,
		EnRouteAt:           model.EnRouteAt,
		OnSiteAt:            model.OnSiteAt,
		ResolvedAt:          model.ResolvedAt,
		ResolvedBy:          model.ResolvedBy,
		ClosedAt:            model.ClosedAt,
		ResolutionNotes:     model.ResolutionNotes,
		CreatedAt:           model.CreatedAt,
		UpdatedAt:           model.UpdatedAt,
	}
}

// ModelsToIncidentResponses преобразует слайс моделей в слайс DTO
func ModelsToIncidentResponses(models []*models.Incident) []*IncidentResponse {
	responses := make([]*IncidentResponse, len(models))
	for i, model := range models {
		responses[i] = ModelToIncidentResponse(model)
	}
	return responses
}

func ResultToSubmissionResponse(res *service.SubmissionResult) *SubmissionResponse {
	return &SubmissionResponse{
		Incident:      ModelToIncidentResponse(res.Incident),
		Consolidated:  res.Consolidated,
		MediaUploaded: res.MediaUploaded,
		MediaFailed:   res.MediaFailed,
	}
}

func SettingsToResponse(s config.Settings) SettingsResponse {
	return SettingsResponse{
		CaptureIntervalSeconds: int(s.CaptureInterval / time.Second),
		LocationTracking:       s.LocationTracking,
		AutoSubmitThreshold:    s.Thresholds.AutoSubmit,
		ManualReviewThreshold:  s.Thresholds.ManualReview,
	}
}

func DTOToSettingsUpdate(dto UpdateSettingsRequest) config.SettingsUpdate {
	u := config.SettingsUpdate{
		LocationTracking:      dto.LocationTracking,
		AutoSubmitThreshold:   dto.AutoSubmitThreshold,
		ManualReviewThreshold: dto.ManualReviewThreshold,
	}
	if dto.CaptureIntervalSeconds != nil {
		d := time.Duration(*dto.CaptureIntervalSeconds) * time.Second
		u.CaptureInterval = &d
	}
	return u
}
