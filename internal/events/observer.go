package events

import (
	"context"

	"github.com/shenikar/road_incident_triage/internal/models"
	"github.com/sirupsen/logrus"
)

// CaptureObserver публикует capture.processed для каждого снимка, дошедшего до решения
type CaptureObserver struct {
	publisher Publisher
	logger    *logrus.Logger
}

func NewCaptureObserver(publisher Publisher, logger *logrus.Logger) *CaptureObserver {
	return &CaptureObserver{publisher: publisher, logger: logger}
}

func (o *CaptureObserver) CaptureProcessed(ctx context.Context, c *models.Capture) {
	if err := o.publisher.Publish(ctx, NewCaptureEvent(c)); err != nil {
		o.logger.WithError(err).WithFields(logrus.Fields{
			"capture_id":  c.ID,
			"disposition": c.Disposition,
		}).Warn("Failed to publish capture event")
	}
}
