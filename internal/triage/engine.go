package triage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shenikar/road_incident_triage/internal/capture"
	"github.com/shenikar/road_incident_triage/internal/classifier"
	"github.com/shenikar/road_incident_triage/internal/config"
	"github.com/shenikar/road_incident_triage/internal/media"
	"github.com/shenikar/road_incident_triage/internal/models"
	"github.com/shenikar/road_incident_triage/internal/service"
	"github.com/sirupsen/logrus"
)

var (
	ErrCaptureNotFound  = errors.New("capture not found")
	ErrNotPendingReview = errors.New("capture is not pending review")
)

// CaptureFilter - фильтр журнала снимков
type CaptureFilter struct {
	Disposition *models.Disposition
	// PendingOnly - только снимки, ожидающие решения оператора
	PendingOnly bool
	Limit       int
	Offset      int
}

// CaptureJournal - журнал снимков на устройстве
type CaptureJournal interface {
	Save(ctx context.Context, c *models.Capture) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Capture, error)
	List(ctx context.Context, filter CaptureFilter) ([]*models.Capture, error)
	// MarkReviewed сохраняет решение оператора, только если снимок еще ждет проверки
	MarkReviewed(ctx context.Context, c *models.Capture) error
	// AttachIncident связывает одобренный снимок с созданным инцидентом
	AttachIncident(ctx context.Context, id, incidentID uuid.UUID) error
	// ReleaseReview возвращает в очередь одобренный снимок, для которого инцидент не создан
	ReleaseReview(ctx context.Context, id uuid.UUID) error
	Stats(ctx context.Context) (*models.CaptureStats, error)
	// Prune оставляет keep последних снимков, не трогая ожидающие проверки
	Prune(ctx context.Context, keep int) (int64, error)
}

// BlobStore - хранилище кадров
type BlobStore interface {
	Upload(ctx context.Context, ownerID uuid.UUID, data []byte, contentType string) (*media.Object, error)
	Read(ctx context.Context, key string) ([]byte, error)
}

// IncidentReporter - менеджер жизненного цикла инцидентов
type IncidentReporter interface {
	ReportIncident(ctx context.Context, in service.NewIncident) (*service.SubmissionResult, error)
}

// CaptureObserver получает каждый снимок, дошедший до решения, и каждое решение оператора
type CaptureObserver interface {
	CaptureProcessed(ctx context.Context, c *models.Capture)
}

// EngineConfig - таймауты и хранение
type EngineConfig struct {
	PersistTimeout time.Duration
	Retention      int
}

// Engine - конвейер снимка: кадр, классификация, решение, инцидент, журнал
type Engine struct {
	analyzer  classifier.Analyzer
	journal   CaptureJournal
	blobs     BlobStore
	incidents IncidentReporter
	settings  *config.RuntimeSettings
	observers []CaptureObserver
	cfg       EngineConfig
	logger    *logrus.Logger

	// reviewMu сериализует решения операторов, чтобы один снимок не стал двумя инцидентами
	reviewMu sync.Mutex
}

func NewEngine(analyzer classifier.Analyzer, journal CaptureJournal, blobs BlobStore, incidents IncidentReporter, settings *config.RuntimeSettings, cfg EngineConfig, logger *logrus.Logger, observers ...CaptureObserver) *Engine {
	return &Engine{
		analyzer:  analyzer,
		journal:   journal,
		blobs:     blobs,
		incidents: incidents,
		settings:  settings,
		observers: observers,
		cfg:       cfg,
		logger:    logger,
	}
}

// Process реализует capture.FrameProcessor.
// Ошибка возвращается только при неудачном создании инцидента; снимок при этом все равно журналируется.
// Сохранение не зависит от отмены ctx: начатый снимок всегда доходит до журнала.
func (e *Engine) Process(ctx context.Context, acq capture.Acquisition) (*models.Capture, error) {
	c := &models.Capture{
		ID:          uuid.New(),
		CameraID:    acq.CameraID,
		ContentType: acq.Frame.ContentType,
		CapturedAt:  acq.Frame.CapturedAt,
		Location:    acq.Location,
	}
	log := e.logger.WithFields(logrus.Fields{
		"service":    "triage",
		"method":     "Process",
		"capture_id": c.ID,
		"camera_id":  c.CameraID,
	})

	if obj, err := e.blobs.Upload(ctx, c.ID, acq.Frame.Data, acq.Frame.ContentType); err != nil {
		log.WithError(err).Warn("Failed to store frame")
	} else {
		c.ImageRef = obj.Key
	}

	result, err := e.analyzer.Analyze(ctx, classifier.Image{Data: acq.Frame.Data, ContentType: acq.Frame.ContentType})
	persistCtx := context.WithoutCancel(ctx)
	if err != nil {
		// пустой кадр или отмена вызывающего
		log.WithError(err).Error("Frame could not be analyzed")
		c.Error = err.Error()
		c.Disposition = models.DispositionDiscard
		c.ProcessedAt = time.Now().UTC()
		e.record(persistCtx, c, log)
		return c, nil
	}
	c.Classification = result

	thresholds := e.settings.Thresholds()
	c.Disposition = Decide(result.Confidence, c.Location != nil, thresholds)
	log = log.WithFields(logrus.Fields{
		"confidence":  result.Confidence,
		"degraded":    result.Degraded,
		"disposition": c.Disposition,
	})

	var createErr error
	switch c.Disposition {
	case models.DispositionAutoSubmit:
		incident, err := e.createIncident(persistCtx, c, acq.Frame.Data)
		if err != nil {
			log.WithError(err).Error("Failed to create incident from capture")
			c.Error = err.Error()
			createErr = err
		} else {
			c.IncidentID = &incident.ID
			log.WithField("incident_id", incident.ID).Info("Capture auto-submitted as incident")
		}
	case models.DispositionPendingReview:
		log.Info("Capture queued for review")
	case models.DispositionDiscard:
		log.Debug("Capture discarded")
	default:
		panic(fmt.Sprintf("triage: unhandled disposition %q", c.Disposition))
	}

	c.ProcessedAt = time.Now().UTC()
	e.record(persistCtx, c, log)
	return c, createErr
}

// createIncident - ошибка сохранения фатальна, ее получает вызывающий
func (e *Engine) createIncident(ctx context.Context, c *models.Capture, image []byte) (*models.Incident, error) {
	if c.Location == nil || c.Classification == nil {
		return nil, fmt.Errorf("triage: capture %s has no location or analysis", c.ID)
	}

	ctx, cancel := context.WithTimeout(ctx, e.cfg.PersistTimeout)
	defer cancel()

	cls := c.Classification
	confidence := cls.Confidence
	in := service.NewIncident{
		Title:               cls.Title,
		Description:         cls.Description,
		Category:            cls.Category,
		Severity:            cls.Severity,
		Latitude:            c.Location.Latitude,
		Longitude:           c.Location.Longitude,
		Address:             c.Location.Address,
		Source:              models.SourceSmartCamera,
		CameraID:            c.CameraID,
		AIConfidence:        &confidence,
		AIAnalysis:          cls,
		VehiclesInvolved:    cls.VehicleCount,
		EstimatedCasualties: cls.CasualtyEstimate,
	}
	if len(image) > 0 {
		in.Photos = []service.Photo{{Data: image, ContentType: c.ContentType}}
	}

	res, err := e.incidents.ReportIncident(ctx, in)
	if err != nil {
		return nil, err
	}
	return res.Incident, nil
}

// record сохраняет снимок в журнал, чистит старые записи и уведомляет наблюдателей
func (e *Engine) record(ctx context.Context, c *models.Capture, log *logrus.Entry) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.PersistTimeout)
	defer cancel()

	if err := e.journal.Save(ctx, c); err != nil {
		log.WithError(err).Error("Failed to save capture to journal")
	} else if e.cfg.Retention > 0 {
		if pruned, err := e.journal.Prune(ctx, e.cfg.Retention); err != nil {
			log.WithError(err).Warn("Failed to prune capture journal")
		} else if pruned > 0 {
			log.WithField("pruned", pruned).Debug("Capture journal pruned")
		}
	}

	e.notify(ctx, c)
}

func (e *Engine) notify(ctx context.Context, c *models.Capture) {
	for _, o := range e.observers {
		o.CaptureProcessed(ctx, c)
	}
}
