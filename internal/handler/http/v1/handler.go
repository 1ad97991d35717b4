package v1

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shenikar/road_incident_triage/internal/capture"
	"github.com/shenikar/road_incident_triage/internal/classifier"
	"github.com/shenikar/road_incident_triage/internal/config"
	"github.com/shenikar/road_incident_triage/internal/models"
	"github.com/shenikar/road_incident_triage/internal/service"
	"github.com/shenikar/road_incident_triage/internal/triage"
	"github.com/sirupsen/logrus"
)

// CameraController - управление источником снимков
//
//go:generate mockgen -source=handler.go -destination=mocks/mock_handler.go -package=mocks
type CameraController interface {
	Start(ctx context.Context) error
	Stop()
	Trigger(ctx context.Context) (*models.Capture, error)
	Status() capture.Status
}

// CaptureReviewer - журнал снимков и очередь проверки
type CaptureReviewer interface {
	Approve(ctx context.Context, id uuid.UUID, reviewer, notes string) (*models.Capture, error)
	Reject(ctx context.Context, id uuid.UUID, reviewer, notes string) (*models.Capture, error)
	ListCaptures(ctx context.Context, filter triage.CaptureFilter) ([]*models.Capture, error)
	PendingCaptures(ctx context.Context, limit int) ([]*models.Capture, error)
	CaptureStats(ctx context.Context) (*models.CaptureStats, error)
}

// HotspotReader - зоны риска для панелей
type HotspotReader interface {
	Hotspots(ctx context.Context, minRisk float64) ([]*models.Hotspot, error)
}

type Handler struct {
	incidentService service.IncidentService
	analyzer        classifier.Analyzer
	camera          CameraController
	captures        CaptureReviewer
	hotspots        HotspotReader
	settings        *config.RuntimeSettings
	logger          *logrus.Logger
	validate        *validator.Validate
	cfg             *config.Config
}

func NewHandler(
	incidentService service.IncidentService,
	analyzer classifier.Analyzer,
	camera CameraController,
	captures CaptureReviewer,
	hotspots HotspotReader,
	settings *config.RuntimeSettings,
	logger *logrus.Logger,
	cfg *config.Config,
) *Handler {
	return &Handler{
		incidentService: incidentService,
		analyzer:        analyzer,
		camera:          camera,
		captures:        captures,
		hotspots:        hotspots,
		settings:        settings,
		logger:          logger,
		validate:        validator.New(),
		cfg:             cfg,
	}
}

// bind разбирает JSON и проверяет его по тегам validate
func (h *Handler) bind(c *gin.Context, input any, log *logrus.Entry) bool {
	if err := c.ShouldBindJSON(input); err != nil {
		log.WithError(err).Warn("Failed to bind JSON")
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return false
	}
	if err := h.validate.Struct(input); err != nil {
		log.WithError(err).Warn("Validation failed")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return false
	}
	return true
}

func parseID(c *gin.Context, what string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + what + " ID"})
		return uuid.Nil, false
	}
	return id, true
}

// statusFor сопоставляет ошибки слоев с HTTP-кодами
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrIncidentNotFound),
		errors.Is(err, triage.ErrCaptureNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrInvalidTransition),
		errors.Is(err, service.ErrStaleIncident),
		errors.Is(err, service.ErrIncidentClosed),
		errors.Is(err, triage.ErrNotPendingReview),
		errors.Is(err, capture.ErrCaptureInProgress),
		errors.Is(err, capture.ErrAlreadyMonitoring):
		return http.StatusConflict
	case errors.Is(err, service.ErrInvalidIncident),
		errors.Is(err, config.ErrInvalidThresholds),
		errors.Is(err, classifier.ErrEmptyImage):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// fail пишет ответ об ошибке; внутренние детали наружу не отдаются
func fail(c *gin.Context, log *logrus.Entry, err error, msg string) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		log.WithError(err).Error(msg)
		_ = c.Error(err)
		c.JSON(code, gin.H{"error": "internal server error"})
		return
	}
	log.WithError(err).Warn(msg)
	c.JSON(code, gin.H{"error": err.Error()})
}

// @Summary Get application health status
// @Description Get health status of the application
// @Tags System
// @Accept json
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /system/health [get]
func (h *Handler) healthCheck(c *gin.Context) {
	resp := HealthResponse{Status: "ok"}
	if h.camera != nil {
		st := h.camera.Status()
		resp.CameraID = st.CameraID
		resp.Monitoring = st.Monitoring
	}
	c.JSON(http.StatusOK, resp)
}
