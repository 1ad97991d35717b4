package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/shenikar/road_incident_triage/internal/models"
	"github.com/shenikar/road_incident_triage/internal/service"
)

const incidentCacheTTL = 5 * time.Minute

const incidentColumns = `
	id,
	title,
	description,
	category,
	severity,
	status,
	ST_Y(location::geometry) AS latitude,
	ST_X(location::geometry) AS longitude,
	address,
	source,
	COALESCE(camera_id, ''),
	ai_confidence,
	ai_analysis,
	vehicles_involved,
	estimated_casualties,
	report_count,
	acknowledged_at,
	COALESCE(acknowledged_by, ''),
	dispatched_at,
	en_route_at,
	on_site_at,
	resolved_at,
	COALESCE(resolved_by, ''),
	closed_at,
	resolution_notes,
	created_at,
	updated_at`

type IncidentRepository struct {
	db          *pgxpool.Pool
	redisClient *redis.Client
}

func NewIncidentRepository(db *pgxpool.Pool, redisClient *redis.Client) service.IncidentRepository {
	return &IncidentRepository{
		db:          db,
		redisClient: redisClient,
	}
}

// Create создает новую запись об инциденте в бд одним INSERT
func (r *IncidentRepository) Create(ctx context.Context, incident *models.Incident) error {
	analysis, err := marshalAnalysis(incident.AIAnalysis)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO incidents (
			id, title, description, category, severity, status, location, address, source,
			camera_id, ai_confidence, ai_analysis, vehicles_involved, estimated_casualties,
			report_count, created_at, updated_at
		)
		VALUES (
			$1, $2, $3, $4, $5, $6, ST_SetSRID(ST_MakePoint($7, $8), 4326)::geography, $9, $10,
			NULLIF($11, ''), $12, $13, $14, $15, $16, $17, $18
		);
	`
	_, err = r.db.Exec(ctx, query,
		incident.ID,
		incident.Title,
		incident.Description,
		incident.Category,
		incident.Severity,
		incident.Status,
		incident.Longitude,
		incident.Latitude,
		incident.Address,
		incident.Source,
		incident.CameraID,
		incident.AIConfidence,
		analysis,
		incident.VehiclesInvolved,
		incident.EstimatedCasualties,
		incident.ReportCount,
		incident.CreatedAt,
		incident.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create incident: %w", err)
	}
	return nil
}

// GetByID возвращает инцидент по его UUID
func (r *IncidentRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Incident, error) {
	query := `SELECT ` + incidentColumns + ` FROM incidents WHERE id = $1;`
	incident, err := scanIncident(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", service.ErrIncidentNotFound, id)
		}
		return nil, fmt.Errorf("failed to get incident by id: %w", err)
	}
	return incident, nil
}

// List возвращает страницу инцидентов (новые сначала) и общее число под фильтром
func (r *IncidentRepository) List(ctx context.Context, filter service.IncidentFilter) ([]*models.Incident, int, error) {
	var where []string
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if filter.Status != nil {
		add("status = $%d", *filter.Status)
	}
	if filter.Severity != nil {
		add("severity = $%d", *filter.Severity)
	}
	if filter.Source != nil {
		add("source = $%d", *filter.Source)
	}
	if filter.Category != nil {
		add("category = $%d", *filter.Category)
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM incidents`+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count incidents: %w", err)
	}

	// рассчитываем смещение
	offset := (filter.Page - 1) * filter.PageSize
	query := fmt.Sprintf(`SELECT %s FROM incidents%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d;`,
		incidentColumns, clause, len(args)+1, len(args)+2)
	rows, err := r.db.Query(ctx, query, append(args, filter.PageSize, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list incidents: %w", err)
	}
	defer rows.Close()

	incidents := make([]*models.Incident, 0)
	for rows.Next() {
		incident, err := scanIncident(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan incident row: %w", err)
		}
		incidents = append(incidents, incident)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error list iteration: %w", err)
	}
	return incidents, total, nil
}

// FindOpenDuplicate ищет ближайший незакрытый инцидент той же категории в радиусе и окне времени
func (r *IncidentRepository) FindOpenDuplicate(ctx context.Context, q service.DuplicateQuery) (*models.Incident, error) {
	query := `
		SELECT ` + incidentColumns + `
		FROM incidents
		WHERE
			category = $1
			AND status NOT IN ('resolved', 'false_alarm')
			AND created_at >= $4
			AND ST_DWithin(
				location,
				ST_SetSRID(ST_MakePoint($2, $3), 4326)::geography,
				$5
			)
		ORDER BY
			ST_Distance(location, ST_SetSRID(ST_MakePoint($2, $3), 4326)::geography),
			created_at DESC
		LIMIT 1;
	`
	incident, err := scanIncident(r.db.QueryRow(ctx, query, q.Category, q.Longitude, q.Latitude, q.Since, q.RadiusMeters))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find duplicate incident: %w", err)
	}
	return incident, nil
}

// FindNearby возвращает инциденты в радиусе от точки, ближайшие первыми
func (r *IncidentRepository) FindNearby(ctx context.Context, q service.NearbyQuery) ([]*models.Incident, error) {
	query := `
		SELECT ` + incidentColumns + `
		FROM incidents
		WHERE
			ST_DWithin(
				location,
				ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography,
				$3
			)
			AND ($4 OR status NOT IN ('resolved', 'false_alarm'))
		ORDER BY
			ST_Distance(location, ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography),
			created_at DESC
		LIMIT $5;
	`
	rows, err := r.db.Query(ctx, query, q.Longitude, q.Latitude, q.RadiusMeters, q.IncludeClosed, q.Limit)
	if err != nil {
		return nil, fmt.Errorf("failed to find nearby incidents: %w", err)
	}
	defer rows.Close()

	var incidents []*models.Incident
	for rows.Next() {
		incident, err := scanIncident(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan nearby incident: %w", err)
		}
		incidents = append(incidents, incident)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate nearby incidents: %w", err)
	}
	return incidents, nil
}

// IncrementReportCount атомарно увеличивает report_count открытого инцидента.
// Если инцидент успел закрыться, возвращает service.ErrIncidentClosed.
func (r *IncidentRepository) IncrementReportCount(ctx context.Context, id uuid.UUID) (*models.Incident, error) {
	query := `
		UPDATE incidents SET
			report_count = report_count + 1,
			updated_at = NOW()
		WHERE id = $1 AND status NOT IN ('resolved', 'false_alarm')
		RETURNING ` + incidentColumns + `;`
	incident, err := scanIncident(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, r.missingOr(ctx, id, fmt.Errorf("%w: %s", service.ErrIncidentClosed, id))
		}
		return nil, fmt.Errorf("failed to increment report count: %w", err)
	}
	return incident, nil
}

// ApplyTransition пишет переход только если статус в бд все еще равен tr.From
func (r *IncidentRepository) ApplyTransition(ctx context.Context, id uuid.UUID, tr models.StatusTransition) error {
	set := []string{"status = $1", "updated_at = $2"}
	args := []any{tr.To, tr.At, id, tr.From}
	switch tr.To {
	case models.StatusAcknowledged:
		args = append(args, tr.Actor)
		set = append(set, "acknowledged_at = $2", "acknowledged_by = NULLIF($5, '')")
	case models.StatusDispatched:
		set = append(set, "dispatched_at = $2")
	case models.StatusEnRoute:
		set = append(set, "en_route_at = $2")
	case models.StatusOnSite:
		set = append(set, "on_site_at = $2")
	case models.StatusResolved:
		args = append(args, tr.Actor, tr.Notes)
		set = append(set, "resolved_at = $2", "resolved_by = NULLIF($5, '')", "resolution_notes = COALESCE($6, resolution_notes)")
	case models.StatusFalseAlarm:
		args = append(args, tr.Notes)
		set = append(set, "closed_at = $2", "resolution_notes = COALESCE($5, resolution_notes)")
	default:
		return fmt.Errorf("%w: unknown target status %q", models.ErrInvalidTransition, tr.To)
	}

	query := `UPDATE incidents SET ` + strings.Join(set, ", ") + ` WHERE id = $3 AND status = $4;`
	cmdTag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update incident status: %w", err)
	}

	// RowsAffected() == 0: инцидента нет или статус уже изменен другим оператором
	if cmdTag.RowsAffected() == 0 {
		return r.missingOr(ctx, id, service.ErrStaleIncident)
	}
	return nil
}

// UpdateSeverity меняет критичность только незакрытого инцидента
func (r *IncidentRepository) UpdateSeverity(ctx context.Context, id uuid.UUID, severity models.Severity) error {
	query := `
		UPDATE incidents SET
			severity = $1,
			updated_at = NOW()
		WHERE id = $2 AND status NOT IN ('resolved', 'false_alarm');
	`
	cmdTag, err := r.db.Exec(ctx, query, severity, id)
	if err != nil {
		return fmt.Errorf("failed to update incident severity: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return r.missingOr(ctx, id, service.ErrIncidentClosed)
	}
	return nil
}

func (r *IncidentRepository) UpdateNotes(ctx context.Context, id uuid.UUID, notes string) error {
	query := `
		UPDATE incidents SET
			resolution_notes = $1,
			updated_at = NOW()
		WHERE id = $2;
	`
	cmdTag, err := r.db.Exec(ctx, query, notes, id)
	if err != nil {
		return fmt.Errorf("failed to update incident notes: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", service.ErrIncidentNotFound, id)
	}
	return nil
}

func (r *IncidentRepository) AddMedia(ctx context.Context, m *models.Media) error {
	query := `
		INSERT INTO incident_media (id, incident_id, file_name, url, content_type, size, is_primary, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8);
	`
	_, err := r.db.Exec(ctx, query,
		m.ID,
		m.IncidentID,
		m.FileName,
		m.URL,
		m.ContentType,
		m.Size,
		m.IsPrimary,
		m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to add incident media: %w", err)
	}
	return nil
}

// ListMedia возвращает вложения, основное первым
func (r *IncidentRepository) ListMedia(ctx context.Context, incidentID uuid.UUID) ([]models.Media, error) {
	query := `
		SELECT id, incident_id, file_name, url, content_type, size, is_primary, created_at
		FROM incident_media
		WHERE incident_id = $1
		ORDER BY is_primary DESC, created_at ASC;
	`
	rows, err := r.db.Query(ctx, query, incidentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list incident media: %w", err)
	}
	defer rows.Close()

	media := make([]models.Media, 0)
	for rows.Next() {
		var m models.Media
		err := rows.Scan(
			&m.ID,
			&m.IncidentID,
			&m.FileName,
			&m.URL,
			&m.ContentType,
			&m.Size,
			&m.IsPrimary,
			&m.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan media row: %w", err)
		}
		media = append(media, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error media iteration: %w", err)
	}
	return media, nil
}

// Stats считает инциденты по группам статусов
func (r *IncidentRepository) Stats(ctx context.Context) (*models.IncidentStats, error) {
	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'reported'),
			COUNT(*) FILTER (WHERE status IN ('acknowledged', 'dispatched', 'en_route', 'on_site')),
			COUNT(*) FILTER (WHERE status = 'resolved'),
			COUNT(*) FILTER (WHERE status = 'false_alarm'),
			COUNT(*) FILTER (WHERE severity = 'critical' AND status NOT IN ('resolved', 'false_alarm'))
		FROM incidents;
	`
	stats := &models.IncidentStats{}
	err := r.db.QueryRow(ctx, query).Scan(
		&stats.Total,
		&stats.Pending,
		&stats.InProgress,
		&stats.Resolved,
		&stats.FalseAlarm,
		&stats.Critical,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get incident stats: %w", err)
	}
	return stats, nil
}

// GetIncidentFromCache пытается получить инцидент из Redis
func (r *IncidentRepository) GetIncidentFromCache(ctx context.Context, id uuid.UUID) (*models.Incident, error) {
	val, err := r.redisClient.Get(ctx, cacheKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get incident from cache: %w", err)
	}

	incident := &models.Incident{}
	if err := json.Unmarshal(val, incident); err != nil {
		return nil, fmt.Errorf("failed to unmarshal incident from cache: %w", err)
	}
	return incident, nil
}

// SetIncidentCache сохраняет инцидент в Redis
func (r *IncidentRepository) SetIncidentCache(ctx context.Context, incident *models.Incident) error {
	val, err := json.Marshal(incident)
	if err != nil {
		return fmt.Errorf("failed to marshal incident for cache: %w", err)
	}
	if err := r.redisClient.Set(ctx, cacheKey(incident.ID), val, incidentCacheTTL).Err(); err != nil {
		return fmt.Errorf("failed to set incident in cache: %w", err)
	}
	return nil
}

// InvalidateIncidentCache удаляет инцидент из Redis кэша
func (r *IncidentRepository) InvalidateIncidentCache(ctx context.Context, id uuid.UUID) error {
	if err := r.redisClient.Del(ctx, cacheKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate incident cache: %w", err)
	}
	return nil
}

func cacheKey(id uuid.UUID) string {
	return fmt.Sprintf("incident:%s", id.String())
}

// missingOr различает отсутствие инцидента и нарушенное условие записи
func (r *IncidentRepository) missingOr(ctx context.Context, id uuid.UUID, conflict error) error {
	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM incidents WHERE id = $1);`, id).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check incident existence: %w", err)
	}
	if !exists {
		return fmt.Errorf("%w: %s", service.ErrIncidentNotFound, id)
	}
	return conflict
}

func scanIncident(row pgx.Row) (*models.Incident, error) {
	incident := &models.Incident{}
	var analysis []byte
	err := row.Scan(
		&incident.ID,
		&incident.Title,
		&incident.Description,
		&incident.Category,
		&incident.Severity,
		&incident.Status,
		&incident.Latitude,
		&incident.Longitude,
		&incident.Address,
		&incident.Source,
		&incident.CameraID,
		&incident.AIConfidence,
		&analysis,
		&incident.VehiclesInvolved,
		&incident.EstimatedCasualties,
		&incident.ReportCount,
		&incident.AcknowledgedAt,
		&incident.AcknowledgedBy,
		&incident.DispatchedAt,
		&incident.EnRouteAt,
		&incident.OnSiteAt,
		&incident.ResolvedAt,
		&incident.ResolvedBy,
		&incident.ClosedAt,
		&incident.ResolutionNotes,
		&incident.CreatedAt,
		&incident.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(analysis) > 0 {
		incident.AIAnalysis = &models.ClassificationResult{}
		if err := json.Unmarshal(analysis, incident.AIAnalysis); err != nil {
			return nil, fmt.Errorf("failed to unmarshal ai analysis: %w", err)
		}
	}
	return incident, nil
}

func marshalAnalysis(a *models.ClassificationResult) ([]byte, error) {
	if a == nil {
		return nil, nil
	}
	raw, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal ai analysis: %w", err)
	}
	return raw, nil
}
