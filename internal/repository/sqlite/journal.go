package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shenikar/road_incident_triage/internal/models"
	"github.com/shenikar/road_incident_triage/internal/triage"
)

// timeLayout - фиксированная ширина, чтобы строки сортировались как время
const timeLayout = "2006-01-02T15:04:05.000000000Z"

const captureColumns = `
	id, camera_id, image_ref, content_type, captured_at,
	latitude, longitude, address, classification,
	disposition, review, incident_id, reviewed_by, reviewed_at, review_notes,
	error, processed_at`

// CaptureJournal - журнал снимков в локальном файле SQLite
type CaptureJournal struct {
	db *sql.DB
}

func NewCaptureJournal(db *sql.DB) *CaptureJournal {
	return &CaptureJournal{db: db}
}

// Save записывает снимок; повторное сохранение того же id перезаписывает запись
func (j *CaptureJournal) Save(ctx context.Context, c *models.Capture) error {
	var lat, lon sql.NullFloat64
	var address sql.NullString
	if c.Location != nil {
		lat = sql.NullFloat64{Float64: c.Location.Latitude, Valid: true}
		lon = sql.NullFloat64{Float64: c.Location.Longitude, Valid: true}
		address = sql.NullString{String: c.Location.Address, Valid: true}
	}

	var classification sql.NullString
	degraded := 0
	if c.Classification != nil {
		raw, err := json.Marshal(c.Classification)
		if err != nil {
			return fmt.Errorf("failed to marshal classification: %w", err)
		}
		classification = sql.NullString{String: string(raw), Valid: true}
		if c.Classification.Degraded {
			degraded = 1
		}
	}

	_, err := j.db.ExecContext(ctx, `
		INSERT INTO captures(`+captureColumns+`, confidence, degraded)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			image_ref=excluded.image_ref,
			classification=excluded.classification,
			disposition=excluded.disposition,
			review=excluded.review,
			incident_id=excluded.incident_id,
			reviewed_by=excluded.reviewed_by,
			reviewed_at=excluded.reviewed_at,
			review_notes=excluded.review_notes,
			error=excluded.error,
			processed_at=excluded.processed_at,
			confidence=excluded.confidence,
			degraded=excluded.degraded
	`,
		c.ID.String(),
		c.CameraID,
		c.ImageRef,
		c.ContentType,
		formatTime(c.CapturedAt),
		lat,
		lon,
		address,
		classification,
		string(c.Disposition),
		string(c.Review),
		nullUUID(c.IncidentID),
		c.ReviewedBy,
		nullTime(c.ReviewedAt),
		c.ReviewNotes,
		c.Error,
		formatTime(c.ProcessedAt),
		c.Confidence(),
		degraded,
	)
	if err != nil {
		return fmt.Errorf("failed to save capture: %w", err)
	}
	return nil
}

func (j *CaptureJournal) GetByID(ctx context.Context, id uuid.UUID) (*models.Capture, error) {
	row := j.db.QueryRowContext(ctx, `SELECT `+captureColumns+` FROM captures WHERE id = ?`, id.String())
	c, err := scanCapture(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, triage.ErrCaptureNotFound
		}
		return nil, fmt.Errorf("failed to get capture: %w", err)
	}
	return c, nil
}

// List возвращает снимки, новые сначала
func (j *CaptureJournal) List(ctx context.Context, filter triage.CaptureFilter) ([]*models.Capture, error) {
	var where []string
	var args []any
	if filter.Disposition != nil {
		where = append(where, "disposition = ?")
		args = append(args, string(*filter.Disposition))
	}
	if filter.PendingOnly {
		where = append(where, "disposition = 'pending_review' AND review = ''")
	}

	query := `SELECT ` + captureColumns + ` FROM captures`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY processed_at DESC LIMIT ? OFFSET ?"
	args = append(args, filter.Limit, filter.Offset)

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list captures: %w", err)
	}
	defer rows.Close()

	var captures []*models.Capture
	for rows.Next() {
		c, err := scanCapture(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan capture: %w", err)
		}
		captures = append(captures, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate captures: %w", err)
	}
	return captures, nil
}

// MarkReviewed пишет решение оператора только поверх неразобранного снимка
func (j *CaptureJournal) MarkReviewed(ctx context.Context, c *models.Capture) error {
	res, err := j.db.ExecContext(ctx, `
		UPDATE captures
		SET review = ?, incident_id = ?, reviewed_by = ?, reviewed_at = ?, review_notes = ?
		WHERE id = ? AND disposition = 'pending_review' AND review = ''
	`,
		string(c.Review),
		nullUUID(c.IncidentID),
		c.ReviewedBy,
		nullTime(c.ReviewedAt),
		c.ReviewNotes,
		c.ID.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to mark capture reviewed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to mark capture reviewed: %w", err)
	}
	if n == 0 {
		return triage.ErrNotPendingReview
	}
	return nil
}

// AttachIncident пишет ссылку на инцидент в одобренный снимок
func (j *CaptureJournal) AttachIncident(ctx context.Context, id, incidentID uuid.UUID) error {
	res, err := j.db.ExecContext(ctx, `
		UPDATE captures SET incident_id = ?
		WHERE id = ? AND review = 'approved'
	`, incidentID.String(), id.String())
	if err != nil {
		return fmt.Errorf("failed to attach incident to capture: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to attach incident to capture: %w", err)
	}
	if n == 0 {
		return triage.ErrCaptureNotFound
	}
	return nil
}

// ReleaseReview снимает одобрение, если инцидент так и не был привязан
func (j *CaptureJournal) ReleaseReview(ctx context.Context, id uuid.UUID) error {
	_, err := j.db.ExecContext(ctx, `
		UPDATE captures
		SET review = '', reviewed_by = '', reviewed_at = NULL, review_notes = ''
		WHERE id = ? AND review = 'approved' AND incident_id IS NULL
	`, id.String())
	if err != nil {
		return fmt.Errorf("failed to release capture review: %w", err)
	}
	return nil
}

func (j *CaptureJournal) Stats(ctx context.Context) (*models.CaptureStats, error) {
	stats := &models.CaptureStats{}
	err := j.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN disposition = 'auto_submit' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN disposition = 'pending_review' AND review = '' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN disposition = 'discard' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN review = 'approved' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN review = 'rejected' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(degraded), 0)
		FROM captures
	`).Scan(
		&stats.Total,
		&stats.AutoSubmitted,
		&stats.PendingReview,
		&stats.Discarded,
		&stats.Approved,
		&stats.Rejected,
		&stats.Degraded,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get capture stats: %w", err)
	}
	return stats, nil
}

// Prune удаляет все, кроме keep последних снимков. Неразобранные снимки очереди проверки не удаляются.
func (j *CaptureJournal) Prune(ctx context.Context, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}
	res, err := j.db.ExecContext(ctx, `
		DELETE FROM captures
		WHERE NOT (disposition = 'pending_review' AND review = '')
		  AND id NOT IN (SELECT id FROM captures ORDER BY processed_at DESC LIMIT ?)
	`, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to prune captures: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to prune captures: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCapture(s scanner) (*models.Capture, error) {
	var (
		id, capturedAt, processedAt string
		lat, lon                    sql.NullFloat64
		address, classification     sql.NullString
		disposition, review         string
		incidentID, reviewedAt      sql.NullString
		c                           models.Capture
	)
	err := s.Scan(
		&id,
		&c.CameraID,
		&c.ImageRef,
		&c.ContentType,
		&capturedAt,
		&lat,
		&lon,
		&address,
		&classification,
		&disposition,
		&review,
		&incidentID,
		&c.ReviewedBy,
		&reviewedAt,
		&c.ReviewNotes,
		&c.Error,
		&processedAt,
	)
	if err != nil {
		return nil, err
	}

	if c.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("invalid capture id %q: %w", id, err)
	}
	if c.CapturedAt, err = parseTime(capturedAt); err != nil {
		return nil, err
	}
	if c.ProcessedAt, err = parseTime(processedAt); err != nil {
		return nil, err
	}
	if lat.Valid && lon.Valid {
		c.Location = &models.Location{Latitude: lat.Float64, Longitude: lon.Float64, Address: address.String}
	}
	if classification.Valid {
		c.Classification = &models.ClassificationResult{}
		if err := json.Unmarshal([]byte(classification.String), c.Classification); err != nil {
			return nil, fmt.Errorf("invalid classification for capture %s: %w", id, err)
		}
	}
	c.Disposition = models.Disposition(disposition)
	c.Review = models.Review(review)
	if incidentID.Valid {
		parsed, err := uuid.Parse(incidentID.String)
		if err != nil {
			return nil, fmt.Errorf("invalid incident id %q: %w", incidentID.String, err)
		}
		c.IncidentID = &parsed
	}
	if reviewedAt.Valid {
		t, err := parseTime(reviewedAt.String)
		if err != nil {
			return nil, err
		}
		c.ReviewedAt = &t
	}
	return &c, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return t, nil
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func nullUUID(id *uuid.UUID) sql.NullString {
	if id == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: id.String(), Valid: true}
}
