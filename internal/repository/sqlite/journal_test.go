package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shenikar/road_incident_triage/internal/models"
	"github.com/shenikar/road_incident_triage/internal/triage"
	sqlitedb "github.com/shenikar/road_incident_triage/pkg/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestJournal(t *testing.T) *CaptureJournal {
	t.Helper()
	ctx := context.Background()
	db, err := sqlitedb.Open(ctx, filepath.Join(t.TempDir(), "captures.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, Migrate(db))
	// повторный запуск миграций безопасен
	require.NoError(t, Migrate(db))
	return NewCaptureJournal(db)
}

var base = time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC)

func newCapture(d models.Disposition, offset time.Duration) *models.Capture {
	return &models.Capture{
		ID:          uuid.New(),
		CameraID:    "camera-01",
		ImageRef:    "captures/frame.jpg",
		ContentType: "image/jpeg",
		CapturedAt:  base.Add(offset),
		Location:    &models.Location{Latitude: 12.97, Longitude: 77.59, Address: "MG Road"},
		Classification: &models.ClassificationResult{
			Category:        models.CategoryTruckAccident,
			Severity:        models.SeverityCritical,
			Confidence:      0.66,
			Title:           "Truck overturned",
			Recommendations: []string{"Close the lane"},
			Degraded:        true,
		},
		Disposition: d,
		ProcessedAt: base.Add(offset + 500*time.Millisecond),
	}
}

func TestCaptureJournal_SaveAndGet(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()

	c := newCapture(models.DispositionPendingReview, 0)
	require.NoError(t, j.Save(ctx, c))

	got, err := j.GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, c.ID, got.ID)
	assert.Equal(t, c.CameraID, got.CameraID)
	assert.True(t, c.CapturedAt.Equal(got.CapturedAt))
	assert.True(t, c.ProcessedAt.Equal(got.ProcessedAt))
	assert.Equal(t, c.Location, got.Location)
	assert.Equal(t, c.Classification, got.Classification)
	assert.Equal(t, models.ReviewNone, got.Review)
	assert.Nil(t, got.IncidentID)

	_, err = j.GetByID(ctx, uuid.New())
	assert.ErrorIs(t, err, triage.ErrCaptureNotFound)
}

func TestCaptureJournal_SaveWithoutLocation(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()

	c := newCapture(models.DispositionDiscard, 0)
	c.Location = nil
	c.Classification = nil
	c.Error = "empty frame"
	require.NoError(t, j.Save(ctx, c))

	got, err := j.GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Nil(t, got.Location)
	assert.Nil(t, got.Classification)
	assert.Equal(t, "empty frame", got.Error)
}

func TestCaptureJournal_MarkReviewedOnlyOnce(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()

	c := newCapture(models.DispositionPendingReview, 0)
	require.NoError(t, j.Save(ctx, c))

	incidentID := uuid.New()
	reviewedAt := base.Add(time.Hour)
	c.Review = models.ReviewApproved
	c.IncidentID = &incidentID
	c.ReviewedBy = "operator-7"
	c.ReviewedAt = &reviewedAt
	require.NoError(t, j.MarkReviewed(ctx, c))

	got, err := j.GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReviewApproved, got.Review)
	require.NotNil(t, got.IncidentID)
	assert.Equal(t, incidentID, *got.IncidentID)
	require.NotNil(t, got.ReviewedAt)
	assert.True(t, reviewedAt.Equal(*got.ReviewedAt))

	c.Review = models.ReviewRejected
	assert.ErrorIs(t, j.MarkReviewed(ctx, c), triage.ErrNotPendingReview)

	discarded := newCapture(models.DispositionDiscard, time.Second)
	require.NoError(t, j.Save(ctx, discarded))
	discarded.Review = models.ReviewApproved
	assert.ErrorIs(t, j.MarkReviewed(ctx, discarded), triage.ErrNotPendingReview)
}

func TestCaptureJournal_ClaimAttachAndRelease(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()

	c := newCapture(models.DispositionPendingReview, 0)
	require.NoError(t, j.Save(ctx, c))

	reviewedAt := base.Add(time.Hour)
	c.Review = models.ReviewApproved
	c.ReviewedBy = "operator-7"
	c.ReviewedAt = &reviewedAt
	require.NoError(t, j.MarkReviewed(ctx, c))

	// одобренный снимок без инцидента возвращается в очередь
	require.NoError(t, j.ReleaseReview(ctx, c.ID))
	got, err := j.GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReviewNone, got.Review)
	assert.Empty(t, got.ReviewedBy)
	assert.Nil(t, got.ReviewedAt)

	require.NoError(t, j.MarkReviewed(ctx, c))
	incidentID := uuid.New()
	require.NoError(t, j.AttachIncident(ctx, c.ID, incidentID))

	// со ссылкой на инцидент одобрение уже не снимается
	require.NoError(t, j.ReleaseReview(ctx, c.ID))
	got, err = j.GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReviewApproved, got.Review)
	require.NotNil(t, got.IncidentID)
	assert.Equal(t, incidentID, *got.IncidentID)

	assert.ErrorIs(t, j.AttachIncident(ctx, uuid.New(), incidentID), triage.ErrCaptureNotFound)
}

func TestCaptureJournal_ListNewestFirstAndPendingOnly(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()

	old := newCapture(models.DispositionPendingReview, 0)
	mid := newCapture(models.DispositionAutoSubmit, time.Minute)
	recent := newCapture(models.DispositionPendingReview, 2*time.Minute)
	for _, c := range []*models.Capture{mid, recent, old} {
		require.NoError(t, j.Save(ctx, c))
	}

	all, err := j.List(ctx, triage.CaptureFilter{Limit: 10})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []uuid.UUID{recent.ID, mid.ID, old.ID}, []uuid.UUID{all[0].ID, all[1].ID, all[2].ID})

	pending, err := j.List(ctx, triage.CaptureFilter{PendingOnly: true, Limit: 10})
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	auto := models.DispositionAutoSubmit
	onlyAuto, err := j.List(ctx, triage.CaptureFilter{Disposition: &auto, Limit: 10})
	require.NoError(t, err)
	require.Len(t, onlyAuto, 1)
	assert.Equal(t, mid.ID, onlyAuto[0].ID)

	page, err := j.List(ctx, triage.CaptureFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, mid.ID, page[0].ID)
}

func TestCaptureJournal_PruneKeepsPendingReview(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()

	pending := newCapture(models.DispositionPendingReview, 0)
	require.NoError(t, j.Save(ctx, pending))
	for i := 1; i <= 5; i++ {
		require.NoError(t, j.Save(ctx, newCapture(models.DispositionDiscard, time.Duration(i)*time.Minute)))
	}

	pruned, err := j.Prune(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), pruned)

	_, err = j.GetByID(ctx, pending.ID)
	assert.NoError(t, err, "pending review capture survives pruning")

	stats, err := j.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Total)
}

func TestCaptureJournal_Stats(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()

	approved := newCapture(models.DispositionPendingReview, 0)
	require.NoError(t, j.Save(ctx, approved))
	approved.Review = models.ReviewApproved
	require.NoError(t, j.MarkReviewed(ctx, approved))

	require.NoError(t, j.Save(ctx, newCapture(models.DispositionPendingReview, time.Minute)))
	require.NoError(t, j.Save(ctx, newCapture(models.DispositionAutoSubmit, 2*time.Minute)))
	require.NoError(t, j.Save(ctx, newCapture(models.DispositionDiscard, 3*time.Minute)))

	stats, err := j.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Total)
	assert.Equal(t, 1, stats.AutoSubmitted)
	assert.Equal(t, 1, stats.PendingReview)
	assert.Equal(t, 1, stats.Discarded)
	assert.Equal(t, 1, stats.Approved)
	assert.Equal(t, 0, stats.Rejected)
	assert.Equal(t, 4, stats.Degraded)
}
