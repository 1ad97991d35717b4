package hotspot

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shenikar/road_incident_triage/internal/events"
	"github.com/shenikar/road_incident_triage/internal/geo"
	"github.com/shenikar/road_incident_triage/internal/models"
	"github.com/sirupsen/logrus"
)

// MaxRiskScore - верхняя граница оценки риска зоны
const MaxRiskScore = 100.0

// RiskWeight - прирост риска зоны за один инцидент данной критичности
func RiskWeight(s models.Severity) float64 {
	switch s {
	case models.SeverityLow:
		return 1
	case models.SeverityMedium:
		return 2
	case models.SeverityHigh:
		return 4
	case models.SeverityCritical:
		return 8
	}
	return 2
}

// Repository определяет контракт хранилища зон
//
//go:generate mockgen -source=aggregator.go -destination=mocks/mock_hotspot.go -package=mocks
type Repository interface {
	// UpsertZone создает зону или обновляет ее геометрию по имени, счетчики не меняются
	UpsertZone(ctx context.Context, zone *models.Hotspot) error
	// ListActive возвращает активные зоны в порядке создания
	ListActive(ctx context.Context) ([]*models.Hotspot, error)
	// List возвращает активные зоны с риском не ниже minRisk, самые опасные первыми
	List(ctx context.Context, minRisk float64) ([]*models.Hotspot, error)
	// RecordIncident учитывает инцидент в зоне; false, если инцидент уже был учтен
	RecordIncident(ctx context.Context, hotspotID, incidentID uuid.UUID, at time.Time, riskBump float64) (bool, error)
}

// Aggregator обновляет статистику зон по событиям incident.created
type Aggregator struct {
	repo   Repository
	logger *logrus.Logger
}

func NewAggregator(repo Repository, logger *logrus.Logger) *Aggregator {
	return &Aggregator{repo: repo, logger: logger}
}

func (a *Aggregator) Name() string { return "hotspot" }

// Handle реализует events.Handler
func (a *Aggregator) Handle(ctx context.Context, event events.Event, _ []byte) error {
	if event.Type != events.IncidentCreated || event.Incident == nil {
		return nil
	}
	_, err := a.Record(ctx, event.Incident)
	return err
}

// Record относит инцидент к первой (по порядку создания) зоне, содержащей точку.
// Возвращает зону или nil, если точка вне всех зон.
func (a *Aggregator) Record(ctx context.Context, incident *models.Incident) (*models.Hotspot, error) {
	log := a.logger.WithFields(logrus.Fields{
		"service":     "hotspot",
		"method":      "Record",
		"incident_id": incident.ID,
	})

	zones, err := a.repo.ListActive(ctx)
	if err != nil {
		log.WithError(err).Error("Failed to list hotspot zones")
		return nil, fmt.Errorf("hotspot: could not list zones: %w", err)
	}

	zone := firstContaining(zones, incident.Latitude, incident.Longitude)
	if zone == nil {
		log.Debug("Incident is outside every hotspot zone")
		return nil, nil
	}
	log = log.WithField("hotspot", zone.Name)

	at := incident.CreatedAt
	if at.IsZero() {
		at = time.Now().UTC()
	}
	applied, err := a.repo.RecordIncident(ctx, zone.ID, incident.ID, at, RiskWeight(incident.Severity))
	if err != nil {
		log.WithError(err).Error("Failed to record incident in hotspot")
		return nil, fmt.Errorf("hotspot: could not record incident: %w", err)
	}
	if !applied {
		log.Debug("Incident already counted")
		return zone, nil
	}

	log.Info("Hotspot accident count incremented")
	return zone, nil
}

// Hotspots возвращает зоны для панелей
func (a *Aggregator) Hotspots(ctx context.Context, minRisk float64) ([]*models.Hotspot, error) {
	zones, err := a.repo.List(ctx, minRisk)
	if err != nil {
		return nil, fmt.Errorf("hotspot: could not list hotspots: %w", err)
	}
	return zones, nil
}

func firstContaining(zones []*models.Hotspot, lat, lon float64) *models.Hotspot {
	for _, z := range zones {
		if z.IsActive && geo.Within(lat, lon, z.Latitude, z.Longitude, z.RadiusMeters) {
			return z
		}
	}
	return nil
}
