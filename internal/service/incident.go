package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shenikar/road_incident_triage/internal/events"
	"github.com/shenikar/road_incident_triage/internal/geo"
	"github.com/shenikar/road_incident_triage/internal/media"
	"github.com/shenikar/road_incident_triage/internal/models"
	"github.com/sirupsen/logrus"
)

var (
	ErrIncidentNotFound  = errors.New("incident not found")
	ErrInvalidTransition = models.ErrInvalidTransition
	ErrInvalidIncident   = errors.New("invalid incident")
	ErrIncidentClosed    = errors.New("incident is closed")
	// ErrStaleIncident - статус изменился между чтением и записью
	ErrStaleIncident = errors.New("incident was modified concurrently")
)

// IncidentFilter - фильтры и пагинация списка инцидентов
type IncidentFilter struct {
	Status   *models.Status
	Severity *models.Severity
	Source   *models.Source
	Category *models.Category
	Page     int
	PageSize int
}

// DuplicateQuery - параметры поиска открытого инцидента того же события
type DuplicateQuery struct {
	Category     models.Category
	Latitude     float64
	Longitude    float64
	RadiusMeters int
	Since        time.Time
}

const (
	DefaultNearbyRadiusKm = 10.0
	MaxNearbyRadiusKm     = 100.0
	defaultNearbyLimit    = 50
	maxNearbyLimit        = 100
)

// NearbyQuery - поиск инцидентов вокруг точки
type NearbyQuery struct {
	Latitude      float64
	Longitude     float64
	RadiusMeters  float64
	IncludeClosed bool
	Limit         int
}

// IncidentRepository определяет контракт для работы с бд инцидентов
//
//go:generate mockgen -source=incident.go -destination=mocks/mock_incident.go -package=mocks
type IncidentRepository interface {
	Create(ctx context.Context, incident *models.Incident) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Incident, error)
	List(ctx context.Context, filter IncidentFilter) ([]*models.Incident, int, error)
	FindOpenDuplicate(ctx context.Context, q DuplicateQuery) (*models.Incident, error)
	FindNearby(ctx context.Context, q NearbyQuery) ([]*models.Incident, error)
	IncrementReportCount(ctx context.Context, id uuid.UUID) (*models.Incident, error)
	ApplyTransition(ctx context.Context, id uuid.UUID, tr models.StatusTransition) error
	UpdateSeverity(ctx context.Context, id uuid.UUID, severity models.Severity) error
	UpdateNotes(ctx context.Context, id uuid.UUID, notes string) error
	AddMedia(ctx context.Context, m *models.Media) error
	ListMedia(ctx context.Context, incidentID uuid.UUID) ([]models.Media, error)
	Stats(ctx context.Context) (*models.IncidentStats, error)

	GetIncidentFromCache(ctx context.Context, id uuid.UUID) (*models.Incident, error)
	SetIncidentCache(ctx context.Context, incident *models.Incident) error
	InvalidateIncidentCache(ctx context.Context, id uuid.UUID) error
}

// MediaStore - хранилище фотографий
type MediaStore interface {
	Upload(ctx context.Context, ownerID uuid.UUID, data []byte, contentType string) (*media.Object, error)
}

// IncidentService определяет контракт бизнес-логики жизненного цикла инцидента
type IncidentService interface {
	ReportIncident(ctx context.Context, in NewIncident) (*SubmissionResult, error)
	GetIncident(ctx context.Context, id uuid.UUID) (*models.Incident, error)
	ListIncidents(ctx context.Context, filter IncidentFilter) ([]*models.Incident, int, error)
	NearbyIncidents(ctx context.Context, latitude, longitude, radiusKm float64, includeClosed bool, limit int) ([]*models.Incident, error)
	AdvanceStatus(ctx context.Context, id uuid.UUID, to models.Status, actor string, notes *string) (*models.Incident, error)
	MarkFalseAlarm(ctx context.Context, id uuid.UUID, actor string, notes *string) (*models.Incident, error)
	ReassignSeverity(ctx context.Context, id uuid.UUID, severity models.Severity) (*models.Incident, error)
	UpdateNotes(ctx context.Context, id uuid.UUID, notes string) (*models.Incident, error)
	GetStats(ctx context.Context) (*models.IncidentStats, error)
}

// Photo - фотография, приложенная к сообщению
type Photo struct {
	Data        []byte
	ContentType string
}

// NewIncident - входные данные нового сообщения (гражданин или камера)
type NewIncident struct {
	Title               string
	Description         string
	Category            models.Category
	Severity            models.Severity
	Latitude            float64
	Longitude           float64
	Address             string
	Source              models.Source
	CameraID            string
	AIConfidence        *float64
	AIAnalysis          *models.ClassificationResult
	VehiclesInvolved    int
	EstimatedCasualties int
	Photos              []Photo
}

// SubmissionResult - итог приема сообщения
type SubmissionResult struct {
	Incident *models.Incident `json:"incident"`
	// Consolidated - сообщение присоединено к уже открытому инциденту
	Consolidated  bool `json:"consolidated"`
	MediaUploaded int  `json:"media_uploaded"`
	MediaFailed   int  `json:"media_failed"`
}

// Config - настройки объединения повторных сообщений
type Config struct {
	DedupEnabled      bool
	DedupRadiusMeters int
	DedupWindow       time.Duration
}

type incidentService struct {
	repo      IncidentRepository
	media     MediaStore
	publisher events.Publisher
	fallbacks []events.Handler
	cfg       Config
	logger    *logrus.Logger
	now       func() time.Time
}

// NewIncidentService создает сервис. fallbacks вызываются синхронно, если событие не удалось поставить в очередь.
func NewIncidentService(repo IncidentRepository, media MediaStore, publisher events.Publisher, cfg Config, logger *logrus.Logger, fallbacks ...events.Handler) IncidentService {
	return &incidentService{
		repo:      repo,
		media:     media,
		publisher: publisher,
		fallbacks: fallbacks,
		cfg:       cfg,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (in *NewIncident) validate() error {
	in.Title = strings.TrimSpace(in.Title)
	switch {
	case in.Title == "":
		return fmt.Errorf("%w: title is required", ErrInvalidIncident)
	case !in.Category.Valid():
		return fmt.Errorf("%w: unknown category %q", ErrInvalidIncident, in.Category)
	case !in.Severity.Valid():
		return fmt.Errorf("%w: unknown severity %q", ErrInvalidIncident, in.Severity)
	case !in.Source.Valid():
		return fmt.Errorf("%w: unknown source %q", ErrInvalidIncident, in.Source)
	case !geo.ValidCoordinates(in.Latitude, in.Longitude):
		return fmt.Errorf("%w: coordinates out of range", ErrInvalidIncident)
	}
	if in.Address == "" {
		in.Address = geo.FormatCoordinates(in.Latitude, in.Longitude)
	}
	return nil
}

// ReportIncident создает инцидент или присоединяет сообщение к открытому дубликату.
// Ошибка сохранения фатальна, ошибки загрузки фото - нет.
func (s *incidentService) ReportIncident(ctx context.Context, in NewIncident) (*SubmissionResult, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service":  "incident",
		"method":   "ReportIncident",
		"source":   in.Source,
		"category": in.Category,
	})

	if err := in.validate(); err != nil {
		log.WithError(err).Warn("Rejected invalid incident report")
		return nil, err
	}

	if s.cfg.DedupEnabled {
		result, err := s.consolidate(ctx, in, log)
		if err != nil {
			return nil, err
		}
		if result != nil {
			return result, nil
		}
	}

	log.Info("Attempting to create a new incident")
	now := s.now()
	incident := &models.Incident{
		ID:                  uuid.New(),
		Title:               in.Title,
		Description:         in.Description,
		Category:            in.Category,
		Severity:            in.Severity,
		Status:              models.StatusReported,
		Latitude:            in.Latitude,
		Longitude:           in.Longitude,
		Address:             in.Address,
		Source:              in.Source,
		CameraID:            in.CameraID,
		AIConfidence:        in.AIConfidence,
		AIAnalysis:          in.AIAnalysis,
		VehiclesInvolved:    in.VehiclesInvolved,
		EstimatedCasualties: in.EstimatedCasualties,
		ReportCount:         1,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	if err := s.repo.Create(ctx, incident); err != nil {
		log.WithError(err).Error("Failed to create incident in repository")
		return nil, fmt.Errorf("service: could not create incident: %w", err)
	}
	log = log.WithField("incident_id", incident.ID)
	log.Info("Incident created successfully")

	uploaded, failed := s.attachPhotos(ctx, incident, in.Photos, false)
	s.publish(ctx, events.NewIncidentEvent(events.IncidentCreated, incident), log)

	return &SubmissionResult{
		Incident:      incident,
		MediaUploaded: uploaded,
		MediaFailed:   failed,
	}, nil
}

// consolidate возвращает nil, nil если дубликат не найден
func (s *incidentService) consolidate(ctx context.Context, in NewIncident, log *logrus.Entry) (*SubmissionResult, error) {
	dup, err := s.repo.FindOpenDuplicate(ctx, DuplicateQuery{
		Category:     in.Category,
		Latitude:     in.Latitude,
		Longitude:    in.Longitude,
		RadiusMeters: s.cfg.DedupRadiusMeters,
		Since:        s.now().Add(-s.cfg.DedupWindow),
	})
	if err != nil {
		// без поиска дубликатов сообщение все равно должно быть принято
		log.WithError(err).Warn("Duplicate lookup failed, creating a new incident")
		return nil, nil
	}
	if dup == nil {
		return nil, nil
	}

	log = log.WithField("incident_id", dup.ID)
	updated, err := s.repo.IncrementReportCount(ctx, dup.ID)
	if errors.Is(err, ErrIncidentClosed) {
		log.Info("Duplicate closed before consolidation, creating a new incident")
		return nil, nil
	}
	if err != nil {
		log.WithError(err).Error("Failed to increment report count")
		return nil, fmt.Errorf("service: could not consolidate report: %w", err)
	}

	hasPrimary := false
	if existing, err := s.repo.ListMedia(ctx, dup.ID); err != nil {
		log.WithError(err).Warn("Failed to list media of consolidated incident")
	} else {
		updated.Media = existing
		for _, m := range existing {
			hasPrimary = hasPrimary || m.IsPrimary
		}
	}

	uploaded, failed := s.attachPhotos(ctx, updated, in.Photos, hasPrimary)
	s.invalidate(ctx, dup.ID, log)
	s.publish(ctx, events.NewIncidentEvent(events.IncidentReportedAgain, updated), log)

	log.WithField("report_count", updated.ReportCount).Info("Report consolidated into existing incident")
	return &SubmissionResult{
		Incident:      updated,
		Consolidated:  true,
		MediaUploaded: uploaded,
		MediaFailed:   failed,
	}, nil
}

// attachPhotos загружает фото по одному; первое успешно сохраненное становится основным
func (s *incidentService) attachPhotos(ctx context.Context, incident *models.Incident, photos []Photo, hasPrimary bool) (uploaded, failed int) {
	log := s.logger.WithFields(logrus.Fields{
		"service":     "incident",
		"method":      "attachPhotos",
		"incident_id": incident.ID,
	})

	for i, p := range photos {
		obj, err := s.media.Upload(ctx, incident.ID, p.Data, p.ContentType)
		if err != nil {
			log.WithError(err).WithField("photo", i).Warn("Failed to upload photo")
			failed++
			continue
		}

		m := &models.Media{
			ID:          uuid.New(),
			IncidentID:  incident.ID,
			FileName:    path.Base(obj.Key),
			URL:         obj.URL,
			ContentType: obj.ContentType,
			Size:        obj.Size,
			IsPrimary:   !hasPrimary,
			CreatedAt:   s.now(),
		}
		if err := s.repo.AddMedia(ctx, m); err != nil {
			log.WithError(err).WithField("photo", i).Warn("Failed to save media record")
			failed++
			continue
		}
		hasPrimary = true
		uploaded++
		incident.Media = append(incident.Media, *m)
	}
	return uploaded, failed
}

// GetIncident получает инцидент по ID, сначала из кэша
func (s *incidentService) GetIncident(ctx context.Context, id uuid.UUID) (*models.Incident, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service":     "incident",
		"method":      "GetIncident",
		"incident_id": id,
	})

	cached, err := s.repo.GetIncidentFromCache(ctx, id)
	if err != nil {
		log.WithError(err).Warn("Failed to read incident cache")
	}
	if cached != nil {
		log.Debug("Incident served from cache")
		return cached, nil
	}

	incident, err := s.load(ctx, id)
	if err != nil {
		log.WithError(err).Error("Failed to get incident in repository")
		return nil, err
	}

	if media, err := s.repo.ListMedia(ctx, id); err != nil {
		log.WithError(err).Warn("Failed to list incident media")
	} else {
		incident.Media = media
	}

	if err := s.repo.SetIncidentCache(ctx, incident); err != nil {
		log.WithError(err).Warn("Failed to cache incident")
	}
	return incident, nil
}

// ListIncidents возвращает список инцидентов с пагинацией
func (s *incidentService) ListIncidents(ctx context.Context, filter IncidentFilter) ([]*models.Incident, int, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 || filter.PageSize > 100 {
		filter.PageSize = 20
	}

	log := s.logger.WithFields(logrus.Fields{
		"service":   "incident",
		"method":    "ListIncidents",
		"page":      filter.Page,
		"page_size": filter.PageSize,
	})

	incidents, total, err := s.repo.List(ctx, filter)
	if err != nil {
		log.WithError(err).Error("Failed to list incidents from repository")
		return nil, 0, fmt.Errorf("service: could not list incidents: %w", err)
	}

	log.WithField("count", len(incidents)).Debug("Incidents listed successfully")
	return incidents, total, nil
}

// NearbyIncidents возвращает инциденты в радиусе radiusKm от точки, ближайшие первыми.
// По умолчанию только открытые.
func (s *incidentService) NearbyIncidents(ctx context.Context, latitude, longitude, radiusKm float64, includeClosed bool, limit int) ([]*models.Incident, error) {
	if !geo.ValidCoordinates(latitude, longitude) {
		return nil, fmt.Errorf("%w: coordinates out of range", ErrInvalidIncident)
	}
	if radiusKm <= 0 {
		radiusKm = DefaultNearbyRadiusKm
	}
	if radiusKm > MaxNearbyRadiusKm {
		return nil, fmt.Errorf("%w: radius must not exceed %.0f km", ErrInvalidIncident, MaxNearbyRadiusKm)
	}
	if limit < 1 || limit > maxNearbyLimit {
		limit = defaultNearbyLimit
	}

	log := s.logger.WithFields(logrus.Fields{
		"service":   "incident",
		"method":    "NearbyIncidents",
		"radius_km": radiusKm,
	})

	incidents, err := s.repo.FindNearby(ctx, NearbyQuery{
		Latitude:      latitude,
		Longitude:     longitude,
		RadiusMeters:  radiusKm * 1000,
		IncludeClosed: includeClosed,
		Limit:         limit,
	})
	if err != nil {
		log.WithError(err).Error("Failed to find nearby incidents in repository")
		return nil, fmt.Errorf("service: could not find nearby incidents: %w", err)
	}

	log.WithField("count", len(incidents)).Debug("Nearby incidents found")
	return incidents, nil
}

// AdvanceStatus переводит инцидент в следующий статус.
// Переход проверяется до записи, запись условна по текущему статусу.
func (s *incidentService) AdvanceStatus(ctx context.Context, id uuid.UUID, to models.Status, actor string, notes *string) (*models.Incident, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service":     "incident",
		"method":      "AdvanceStatus",
		"incident_id": id,
		"to":          to,
		"actor":       actor,
	})

	incident, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	from := incident.Status
	tr, err := models.NewStatusTransition(from, to, s.now(), actor, notes)
	if err != nil {
		log.WithError(err).WithField("from", from).Warn("Rejected status transition")
		return nil, err
	}

	if err := s.repo.ApplyTransition(ctx, id, tr); err != nil {
		log.WithError(err).Error("Failed to apply status transition")
		return nil, fmt.Errorf("service: could not update status: %w", err)
	}

	tr.Apply(incident)
	incident.UpdatedAt = tr.At
	s.invalidate(ctx, id, log)

	event := events.NewIncidentEvent(events.IncidentStatusChanged, incident)
	event.PreviousStatus = from
	s.publish(ctx, event, log)

	log.WithField("from", from).Info("Incident status updated")
	return incident, nil
}

// MarkFalseAlarm закрывает только что созданный инцидент как ложный вызов
func (s *incidentService) MarkFalseAlarm(ctx context.Context, id uuid.UUID, actor string, notes *string) (*models.Incident, error) {
	return s.AdvanceStatus(ctx, id, models.StatusFalseAlarm, actor, notes)
}

// ReassignSeverity меняет критичность в любом незакрытом статусе
func (s *incidentService) ReassignSeverity(ctx context.Context, id uuid.UUID, severity models.Severity) (*models.Incident, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service":     "incident",
		"method":      "ReassignSeverity",
		"incident_id": id,
		"severity":    severity,
	})

	if !severity.Valid() {
		return nil, fmt.Errorf("%w: unknown severity %q", ErrInvalidIncident, severity)
	}

	incident, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if incident.Status.IsTerminal() {
		return nil, fmt.Errorf("%w: status %s", ErrIncidentClosed, incident.Status)
	}
	if incident.Severity == severity {
		return incident, nil
	}

	if err := s.repo.UpdateSeverity(ctx, id, severity); err != nil {
		log.WithError(err).Error("Failed to update severity")
		return nil, fmt.Errorf("service: could not update severity: %w", err)
	}

	previous := incident.Severity
	incident.Severity = severity
	incident.UpdatedAt = s.now()
	s.invalidate(ctx, id, log)

	event := events.NewIncidentEvent(events.IncidentSeverityChanged, incident)
	event.PreviousSeverity = previous
	s.publish(ctx, event, log)

	log.WithField("previous", previous).Info("Incident severity reassigned")
	return incident, nil
}

// UpdateNotes сохраняет заметки оператора о реагировании
func (s *incidentService) UpdateNotes(ctx context.Context, id uuid.UUID, notes string) (*models.Incident, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service":     "incident",
		"method":      "UpdateNotes",
		"incident_id": id,
	})

	incident, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.repo.UpdateNotes(ctx, id, notes); err != nil {
		log.WithError(err).Error("Failed to update notes")
		return nil, fmt.Errorf("service: could not update notes: %w", err)
	}

	incident.ResolutionNotes = &notes
	incident.UpdatedAt = s.now()
	s.invalidate(ctx, id, log)
	return incident, nil
}

// GetStats возвращает сводку для панели оператора
func (s *incidentService) GetStats(ctx context.Context) (*models.IncidentStats, error) {
	stats, err := s.repo.Stats(ctx)
	if err != nil {
		s.logger.WithError(err).WithField("service", "incident").Error("Failed to get incident stats")
		return nil, fmt.Errorf("service: could not get stats: %w", err)
	}
	return stats, nil
}

func (s *incidentService) load(ctx context.Context, id uuid.UUID) (*models.Incident, error) {
	incident, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrIncidentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("service: could not get incident: %w", err)
	}
	return incident, nil
}

func (s *incidentService) invalidate(ctx context.Context, id uuid.UUID, log *logrus.Entry) {
	if err := s.repo.InvalidateIncidentCache(ctx, id); err != nil {
		log.WithError(err).Warn("Failed to invalidate incident cache")
	}
}

func (s *incidentService) publish(ctx context.Context, event events.Event, log *logrus.Entry) {
	err := s.publisher.Publish(ctx, event)
	if err == nil {
		return
	}
	log = log.WithField("event_type", event.Type)
	log.WithError(err).Warn("Failed to publish event")
	if len(s.fallbacks) == 0 {
		return
	}

	raw, err := json.Marshal(event)
	if err != nil {
		log.WithError(err).Error("Failed to marshal event for inline delivery")
		return
	}
	for _, h := range s.fallbacks {
		if err := h.Handle(ctx, event, raw); err != nil {
			log.WithError(err).WithField("handler", h.Name()).Error("Inline event delivery failed")
		}
	}
}
