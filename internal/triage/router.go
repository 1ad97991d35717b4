package triage

import (
	"github.com/shenikar/road_incident_triage/internal/config"
	"github.com/shenikar/road_incident_triage/internal/models"
)

// Decide - правило маршрутизации снимка. Нижние границы включительно.
// Без координат снимок отбрасывается при любой уверенности: некуда направлять бригаду.
func Decide(confidence float64, hasLocation bool, t config.Thresholds) models.Disposition {
	switch {
	case !hasLocation:
		return models.DispositionDiscard
	case confidence >= t.AutoSubmit:
		return models.DispositionAutoSubmit
	case confidence >= t.ManualReview:
		return models.DispositionPendingReview
	default:
		return models.DispositionDiscard
	}
}
