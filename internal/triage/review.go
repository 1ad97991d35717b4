package triage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shenikar/road_incident_triage/internal/models"
	"github.com/sirupsen/logrus"
)

// Approve создает инцидент из снимка в очереди проверки.
// Снимок сначала помечается одобренным в журнале, поэтому повторное одобрение не создаст второй инцидент.
// Если инцидент создать не удалось, снимок возвращается в очередь.
func (e *Engine) Approve(ctx context.Context, id uuid.UUID, reviewer, notes string) (*models.Capture, error) {
	log := e.logger.WithFields(logrus.Fields{
		"service":    "triage",
		"method":     "Approve",
		"capture_id": id,
		"reviewer":   reviewer,
	})

	e.reviewMu.Lock()
	defer e.reviewMu.Unlock()

	c, err := e.pending(ctx, id)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	c.Review = models.ReviewApproved
	c.ReviewedBy = reviewer
	c.ReviewedAt = &now
	c.ReviewNotes = notes
	if err := e.journal.MarkReviewed(ctx, c); err != nil {
		if errors.Is(err, ErrNotPendingReview) {
			return nil, err
		}
		log.WithError(err).Error("Failed to record approval")
		return nil, fmt.Errorf("triage: could not record review: %w", err)
	}

	var image []byte
	if c.ImageRef != "" {
		if image, err = e.blobs.Read(ctx, c.ImageRef); err != nil {
			log.WithError(err).Warn("Stored frame unavailable, incident will have no photo")
			image = nil
		}
	}

	incident, err := e.createIncident(ctx, c, image)
	if err != nil {
		log.WithError(err).Error("Failed to create incident from approved capture")
		if relErr := e.journal.ReleaseReview(context.WithoutCancel(ctx), c.ID); relErr != nil {
			log.WithError(relErr).Error("Failed to return capture to review queue")
		}
		return nil, fmt.Errorf("triage: could not create incident: %w", err)
	}

	c.IncidentID = &incident.ID
	log = log.WithField("incident_id", incident.ID)
	if err := e.journal.AttachIncident(context.WithoutCancel(ctx), c.ID, incident.ID); err != nil {
		// снимок уже одобрен, повторного инцидента не будет; теряется только ссылка
		log.WithError(err).Error("Failed to link approved capture to incident")
	}

	log.Info("Capture approved")
	e.notify(ctx, c)
	return c, nil
}

// Reject закрывает снимок без создания инцидента
func (e *Engine) Reject(ctx context.Context, id uuid.UUID, reviewer, notes string) (*models.Capture, error) {
	log := e.logger.WithFields(logrus.Fields{
		"service":    "triage",
		"method":     "Reject",
		"capture_id": id,
		"reviewer":   reviewer,
	})

	e.reviewMu.Lock()
	defer e.reviewMu.Unlock()

	c, err := e.pending(ctx, id)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	c.Review = models.ReviewRejected
	c.ReviewedBy = reviewer
	c.ReviewedAt = &now
	c.ReviewNotes = notes
	if err := e.journal.MarkReviewed(ctx, c); err != nil {
		if errors.Is(err, ErrNotPendingReview) {
			return nil, err
		}
		log.WithError(err).Error("Failed to record rejection")
		return nil, fmt.Errorf("triage: could not record review: %w", err)
	}

	log.Info("Capture rejected")
	e.notify(ctx, c)
	return c, nil
}

func (e *Engine) pending(ctx context.Context, id uuid.UUID) (*models.Capture, error) {
	c, err := e.journal.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrCaptureNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("triage: could not get capture: %w", err)
	}
	if c.Disposition != models.DispositionPendingReview || c.Review != models.ReviewNone {
		return nil, ErrNotPendingReview
	}
	return c, nil
}

// ListCaptures возвращает журнал, новые сначала
func (e *Engine) ListCaptures(ctx context.Context, filter CaptureFilter) ([]*models.Capture, error) {
	if filter.Limit < 1 || filter.Limit > 100 {
		filter.Limit = 50
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	captures, err := e.journal.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("triage: could not list captures: %w", err)
	}
	return captures, nil
}

// PendingCaptures - очередь проверки
func (e *Engine) PendingCaptures(ctx context.Context, limit int) ([]*models.Capture, error) {
	return e.ListCaptures(ctx, CaptureFilter{PendingOnly: true, Limit: limit})
}

func (e *Engine) CaptureStats(ctx context.Context) (*models.CaptureStats, error) {
	stats, err := e.journal.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("triage: could not get capture stats: %w", err)
	}
	return stats, nil
}
