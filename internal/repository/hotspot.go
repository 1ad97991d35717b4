package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shenikar/road_incident_triage/internal/hotspot"
	"github.com/shenikar/road_incident_triage/internal/models"
)

const hotspotColumns = `
	id,
	name,
	description,
	ST_Y(location::geometry) AS latitude,
	ST_X(location::geometry) AS longitude,
	radius_meters,
	accident_count,
	risk_score,
	last_incident_at,
	is_active,
	created_at,
	updated_at`

type HotspotRepository struct {
	db *pgxpool.Pool
}

func NewHotspotRepository(db *pgxpool.Pool) hotspot.Repository {
	return &HotspotRepository{db: db}
}

// UpsertZone создает зону или обновляет ее описание и геометрию по имени
func (r *HotspotRepository) UpsertZone(ctx context.Context, zone *models.Hotspot) error {
	query := `
		INSERT INTO hotspots (id, name, description, location, radius_meters, is_active)
		VALUES ($1, $2, $3, ST_SetSRID(ST_MakePoint($4, $5), 4326)::geography, $6, $7)
		ON CONFLICT (name) DO UPDATE SET
			description = EXCLUDED.description,
			location = EXCLUDED.location,
			radius_meters = EXCLUDED.radius_meters,
			is_active = EXCLUDED.is_active,
			updated_at = NOW()
		RETURNING id, accident_count, risk_score, created_at, updated_at;
	`
	if zone.ID == uuid.Nil {
		zone.ID = uuid.New()
	}
	err := r.db.QueryRow(ctx, query,
		zone.ID,
		zone.Name,
		zone.Description,
		zone.Longitude,
		zone.Latitude,
		zone.RadiusMeters,
		zone.IsActive,
	).Scan(&zone.ID, &zone.AccidentCount, &zone.RiskScore, &zone.CreatedAt, &zone.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert hotspot: %w", err)
	}
	return nil
}

// ListActive возвращает активные зоны в порядке создания
func (r *HotspotRepository) ListActive(ctx context.Context) ([]*models.Hotspot, error) {
	query := `SELECT ` + hotspotColumns + ` FROM hotspots WHERE is_active ORDER BY created_at ASC, id ASC;`
	return r.query(ctx, query)
}

// List возвращает активные зоны по убыванию риска
func (r *HotspotRepository) List(ctx context.Context, minRisk float64) ([]*models.Hotspot, error) {
	query := `
		SELECT ` + hotspotColumns + `
		FROM hotspots
		WHERE is_active AND risk_score >= $1
		ORDER BY risk_score DESC, accident_count DESC, name ASC;
	`
	return r.query(ctx, query, minRisk)
}

// RecordIncident в одной транзакции помечает инцидент учтенным и увеличивает счетчик зоны.
// Повторное событие для того же инцидента ничего не меняет.
func (r *HotspotRepository) RecordIncident(ctx context.Context, hotspotID, incidentID uuid.UUID, at time.Time, riskBump float64) (applied bool, err error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to begin hotspot transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	cmdTag, err := tx.Exec(ctx, `
		INSERT INTO hotspot_incidents (incident_id, hotspot_id, counted_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (incident_id) DO NOTHING;
	`, incidentID, hotspotID)
	if err != nil {
		return false, fmt.Errorf("failed to mark incident counted: %w", err)
	}
	// инцидент уже учтен
	if cmdTag.RowsAffected() == 0 {
		if err = tx.Commit(ctx); err != nil {
			return false, fmt.Errorf("failed to commit hotspot transaction: %w", err)
		}
		return false, nil
	}

	cmdTag, err = tx.Exec(ctx, `
		UPDATE hotspots SET
			accident_count = accident_count + 1,
			risk_score = LEAST($2, risk_score + $3),
			last_incident_at = GREATEST(COALESCE(last_incident_at, $4), $4),
			updated_at = NOW()
		WHERE id = $1;
	`, hotspotID, hotspot.MaxRiskScore, riskBump, at)
	if err != nil {
		return false, fmt.Errorf("failed to increment hotspot: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		err = fmt.Errorf("hotspot with id %s not found", hotspotID)
		return false, err
	}

	if err = tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("failed to commit hotspot transaction: %w", err)
	}
	return true, nil
}

func (r *HotspotRepository) query(ctx context.Context, query string, args ...any) ([]*models.Hotspot, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list hotspots: %w", err)
	}
	defer rows.Close()

	hotspots := make([]*models.Hotspot, 0)
	for rows.Next() {
		h := &models.Hotspot{}
		err := rows.Scan(
			&h.ID,
			&h.Name,
			&h.Description,
			&h.Latitude,
			&h.Longitude,
			&h.RadiusMeters,
			&h.AccidentCount,
			&h.RiskScore,
			&h.LastIncidentAt,
			&h.IsActive,
			&h.CreatedAt,
			&h.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan hotspot row: %w", err)
		}
		hotspots = append(hotspots, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error hotspot iteration: %w", err)
	}
	return hotspots, nil
}
