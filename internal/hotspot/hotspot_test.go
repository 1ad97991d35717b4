package hotspot_test

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shenikar/road_incident_triage/internal/events"
	"github.com/shenikar/road_incident_triage/internal/hotspot"
	"github.com/shenikar/road_incident_triage/internal/hotspot/mocks"
	"github.com/shenikar/road_incident_triage/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newAggregator(t *testing.T) (*hotspot.Aggregator, *mocks.MockRepository) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockRepository(ctrl)
	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{})
	return hotspot.NewAggregator(repo, logger), repo
}

// две пересекающиеся зоны: точка в обеих, побеждает созданная раньше
func overlappingZones() []*models.Hotspot {
	return []*models.Hotspot{
		{ID: uuid.New(), Name: "silk-board", Latitude: 12.9172, Longitude: 77.6228, RadiusMeters: 400, IsActive: true},
		{ID: uuid.New(), Name: "hosur-road", Latitude: 12.9180, Longitude: 77.6235, RadiusMeters: 1000, IsActive: true},
	}
}

func TestAggregator_FirstMatchingZoneWins(t *testing.T) {
	// Подготовка
	agg, repo := newAggregator(t)
	ctx := context.Background()
	zones := overlappingZones()
	created := time.Date(2026, 4, 2, 8, 0, 0, 0, time.UTC)
	incident := &models.Incident{
		ID:        uuid.New(),
		Severity:  models.SeverityHigh,
		Latitude:  12.9175,
		Longitude: 77.6230,
		CreatedAt: created,
	}

	// Ожидания
	repo.EXPECT().ListActive(ctx).Return(zones, nil)
	repo.EXPECT().RecordIncident(ctx, zones[0].ID, incident.ID, created, 4.0).Return(true, nil)

	// Действие
	zone, err := agg.Record(ctx, incident)

	// Проверки
	require.NoError(t, err)
	require.NotNil(t, zone)
	assert.Equal(t, "silk-board", zone.Name)
}

func TestAggregator_OutsideEveryZone(t *testing.T) {
	agg, repo := newAggregator(t)
	ctx := context.Background()

	repo.EXPECT().ListActive(ctx).Return(overlappingZones(), nil)
	repo.EXPECT().RecordIncident(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	zone, err := agg.Record(ctx, &models.Incident{ID: uuid.New(), Latitude: 13.2, Longitude: 77.7})
	require.NoError(t, err)
	assert.Nil(t, zone)
}

func TestAggregator_RedeliveredEventCountsOnce(t *testing.T) {
	agg, repo := newAggregator(t)
	ctx := context.Background()
	zones := overlappingZones()
	incident := &models.Incident{ID: uuid.New(), Severity: models.SeverityLow, Latitude: 12.9172, Longitude: 77.6228, CreatedAt: time.Now().UTC()}
	event := events.NewIncidentEvent(events.IncidentCreated, incident)

	repo.EXPECT().ListActive(ctx).Return(zones, nil).Times(2)
	gomock.InOrder(
		repo.EXPECT().RecordIncident(ctx, zones[0].ID, incident.ID, incident.CreatedAt, 1.0).Return(true, nil),
		repo.EXPECT().RecordIncident(ctx, zones[0].ID, incident.ID, incident.CreatedAt, 1.0).Return(false, nil),
	)

	require.NoError(t, agg.Handle(ctx, event, nil))
	require.NoError(t, agg.Handle(ctx, event, nil))
}

func TestAggregator_IgnoresOtherEvents(t *testing.T) {
	agg, repo := newAggregator(t)
	repo.EXPECT().ListActive(gomock.Any()).Times(0)

	incident := &models.Incident{ID: uuid.New()}
	for _, typ := range []events.Type{events.IncidentReportedAgain, events.IncidentStatusChanged, events.IncidentSeverityChanged} {
		assert.NoError(t, agg.Handle(context.Background(), events.NewIncidentEvent(typ, incident), nil))
	}
	assert.NoError(t, agg.Handle(context.Background(), events.NewCaptureEvent(&models.Capture{ID: uuid.New()}), nil))
	assert.Equal(t, "hotspot", agg.Name())
}

func TestAggregator_RepositoryErrorSurfaces(t *testing.T) {
	agg, repo := newAggregator(t)
	repo.EXPECT().ListActive(gomock.Any()).Return(nil, errors.New("connection refused"))

	_, err := agg.Record(context.Background(), &models.Incident{ID: uuid.New()})
	assert.Error(t, err)
}

func TestRiskWeight(t *testing.T) {
	assert.Equal(t, 1.0, hotspot.RiskWeight(models.SeverityLow))
	assert.Equal(t, 2.0, hotspot.RiskWeight(models.SeverityMedium))
	assert.Equal(t, 4.0, hotspot.RiskWeight(models.SeverityHigh))
	assert.Equal(t, 8.0, hotspot.RiskWeight(models.SeverityCritical))
}

func TestParseZones(t *testing.T) {
	raw := []byte(`
zones:
  - name: silk-board
    latitude: 12.9172
    longitude: 77.6228
    radius_meters: 400
  - name: old-airport-road
    latitude: 12.96
    longitude: 77.648
    radius_meters: 500
    active: false
`)
	loaded, err := hotspot.ParseZones(raw)
	require.NoError(t, err)
	require.Len(t, loaded.Zones, 2)
	assert.Len(t, loaded.SHA256, 64)
	require.NotNil(t, loaded.Zones[1].Active)
	assert.False(t, *loaded.Zones[1].Active)
}

func TestParseZones_Invalid(t *testing.T) {
	cases := map[string]string{
		"missing name":   "zones:\n  - latitude: 1\n    longitude: 1\n    radius_meters: 10\n",
		"duplicate name": "zones:\n  - {name: a, latitude: 1, longitude: 1, radius_meters: 10}\n  - {name: a, latitude: 2, longitude: 2, radius_meters: 10}\n",
		"bad latitude":   "zones:\n  - {name: a, latitude: 91, longitude: 1, radius_meters: 10}\n",
		"zero radius":    "zones:\n  - {name: a, latitude: 1, longitude: 1, radius_meters: 0}\n",
		"not yaml":       "zones: [",
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := hotspot.ParseZones([]byte(raw))
			assert.Error(t, err)
		})
	}
}

func TestSyncZones_UpsertsInFileOrder(t *testing.T) {
	agg, repo := newAggregator(t)
	ctx := context.Background()
	inactive := false
	loaded := &hotspot.LoadedZones{Zones: []hotspot.Zone{
		{Name: " silk-board ", Latitude: 12.9, Longitude: 77.6, RadiusMeters: 400},
		{Name: "old-airport-road", Latitude: 12.96, Longitude: 77.64, RadiusMeters: 500, Active: &inactive},
	}}

	gomock.InOrder(
		repo.EXPECT().UpsertZone(ctx, gomock.Cond(func(x any) bool {
			z := x.(*models.Hotspot)
			return z.Name == "silk-board" && z.IsActive
		})).Return(nil),
		repo.EXPECT().UpsertZone(ctx, gomock.Cond(func(x any) bool {
			z := x.(*models.Hotspot)
			return z.Name == "old-airport-road" && !z.IsActive
		})).Return(nil),
	)

	require.NoError(t, agg.SyncZones(ctx, loaded))
}
