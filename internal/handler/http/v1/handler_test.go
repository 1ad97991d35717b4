package v1

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shenikar/road_incident_triage/internal/capture"
	"github.com/shenikar/road_incident_triage/internal/classifier"
	classifiermocks "github.com/shenikar/road_incident_triage/internal/classifier/mocks"
	"github.com/shenikar/road_incident_triage/internal/config"
	"github.com/shenikar/road_incident_triage/internal/handler/http/v1/mocks"
	"github.com/shenikar/road_incident_triage/internal/models"
	"github.com/shenikar/road_incident_triage/internal/service"
	servicemocks "github.com/shenikar/road_incident_triage/internal/service/mocks"
	"github.com/shenikar/road_incident_triage/internal/triage"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const testAPIKey = "test-api-key"

var authHeader = map[string]string{"X-API-Key": testAPIKey}

type testDeps struct {
	service  *servicemocks.MockIncidentService
	analyzer *classifiermocks.MockAnalyzer
	camera   *mocks.MockCameraController
	captures *mocks.MockCaptureReviewer
	hotspots *mocks.MockHotspotReader
	settings *config.RuntimeSettings
	router   *gin.Engine
}

// newTestHandler создает Handler с мокированными зависимостями и роутером Gin
func newTestHandler(t *testing.T) *testDeps {
	ctrl := gomock.NewController(t)
	d := &testDeps{
		service:  servicemocks.NewMockIncidentService(ctrl),
		analyzer: classifiermocks.NewMockAnalyzer(ctrl),
		camera:   mocks.NewMockCameraController(ctrl),
		captures: mocks.NewMockCaptureReviewer(ctrl),
		hotspots: mocks.NewMockHotspotReader(ctrl),
		settings: config.NewRuntimeSettings(config.Settings{
			CaptureInterval:  15 * time.Second,
			LocationTracking: true,
			Thresholds:       config.Thresholds{AutoSubmit: 0.80, ManualReview: 0.50},
		}),
	}

	logger := logrus.New()
	logger.SetOutput(io.Discard) // Отключаем вывод логов в тестах

	cfg := &config.Config{APIKeys: []string{testAPIKey}}
	handler := NewHandler(d.service, d.analyzer, d.camera, d.captures, d.hotspots, d.settings, logger, cfg)

	gin.SetMode(gin.TestMode)
	d.router = gin.New()
	handler.RegisterRoutes(d.router.Group("/api/v1"))
	return d
}

// makeRequest - вспомогательная функция для выполнения HTTP-запросов
func makeRequest(router *gin.Engine, method, url string, body io.Reader, headers ...map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, url, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, h := range headers {
		for key, value := range h {
			req.Header.Set(key, value)
		}
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func jsonBody(t *testing.T, v any) io.Reader {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewReader(b)
}

func testIncident(id uuid.UUID, status models.Status) *models.Incident {
	now := time.Now().UTC()
	return &models.Incident{
		ID:          id,
		Title:       "Collision near Silk Board",
		Category:    models.CategoryVehicleCollision,
		Severity:    models.SeverityHigh,
		Status:      status,
		Latitude:    12.9172,
		Longitude:   77.6228,
		Source:      models.SourceCitizenApp,
		ReportCount: 1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func validCreateRequest() CreateIncidentRequest {
	return CreateIncidentRequest{
		Title:     "Collision near Silk Board",
		Category:  string(models.CategoryVehicleCollision),
		Severity:  string(models.SeverityHigh),
		Latitude:  12.9172,
		Longitude: 77.6228,
		Photos: []PhotoRequest{
			{Data: []byte("jpeg-bytes"), ContentType: "image/jpeg"},
		},
	}
}

func TestHealthCheck_NoAuthRequired(t *testing.T) {
	d := newTestHandler(t)
	d.camera.EXPECT().Status().Return(capture.Status{CameraID: "camera-01", Monitoring: true})

	w := makeRequest(d.router, http.MethodGet, "/api/v1/system/health", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "camera-01", resp.CameraID)
	assert.True(t, resp.Monitoring)
}

func TestAuth_MissingAndInvalidKey(t *testing.T) {
	d := newTestHandler(t)
	d.service.EXPECT().GetStats(gomock.Any()).Times(0)

	w := makeRequest(d.router, http.MethodGet, "/api/v1/incidents/stats", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "API key required")

	w = makeRequest(d.router, http.MethodGet, "/api/v1/incidents/stats", nil, map[string]string{"X-API-Key": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid API key")
}

func TestAuth_BearerToken(t *testing.T) {
	d := newTestHandler(t)
	d.service.EXPECT().GetStats(gomock.Any()).Return(&models.IncidentStats{Total: 3}, nil)

	w := makeRequest(d.router, http.MethodGet, "/api/v1/incidents/stats", nil, map[string]string{"Authorization": "Bearer " + testAPIKey})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total":3`)
}

func TestCreateIncident_Success(t *testing.T) {
	d := newTestHandler(t)
	id := uuid.New()
	req := validCreateRequest()

	d.service.EXPECT().
		ReportIncident(gomock.Any(), gomock.Cond(func(x any) bool {
			in := x.(service.NewIncident)
			return in.Source == models.SourceCitizenApp &&
				in.Category == models.CategoryVehicleCollision &&
				len(in.Photos) == 1 &&
				string(in.Photos[0].Data) == "jpeg-bytes"
		})).
		Return(&service.SubmissionResult{Incident: testIncident(id, models.StatusReported), MediaUploaded: 1}, nil)

	w := makeRequest(d.router, http.MethodPost, "/api/v1/incidents", jsonBody(t, req), authHeader)

	assert.Equal(t, http.StatusCreated, w.Code)
	var resp SubmissionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, id, resp.Incident.ID)
	assert.Equal(t, "reported", resp.Incident.Status)
	assert.False(t, resp.Consolidated)
	assert.Equal(t, 1, resp.MediaUploaded)
	assert.NotNil(t, resp.Incident.Media)
}

func TestCreateIncident_Consolidated(t *testing.T) {
	d := newTestHandler(t)
	existing := testIncident(uuid.New(), models.StatusAcknowledged)
	existing.ReportCount = 2

	d.service.EXPECT().ReportIncident(gomock.Any(), gomock.Any()).
		Return(&service.SubmissionResult{Incident: existing, Consolidated: true}, nil)

	w := makeRequest(d.router, http.MethodPost, "/api/v1/incidents", jsonBody(t, validCreateRequest()), authHeader)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp SubmissionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Consolidated)
	assert.Equal(t, 2, resp.Incident.ReportCount)
}

func TestCreateIncident_InvalidJSON(t *testing.T) {
	d := newTestHandler(t)
	d.service.EXPECT().ReportIncident(gomock.Any(), gomock.Any()).Times(0) // Сервис не должен вызываться

	w := makeRequest(d.router, http.MethodPost, "/api/v1/incidents", bytes.NewBufferString(`{"title": "test"`), authHeader)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid request body")
}

func TestCreateIncident_ValidationError(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *CreateIncidentRequest)
		field  string
	}{
		{"missing title", func(r *CreateIncidentRequest) { r.Title = "" }, "Title"},
		{"unknown severity", func(r *CreateIncidentRequest) { r.Severity = "extreme" }, "Severity"},
		{"latitude out of range", func(r *CreateIncidentRequest) { r.Latitude = 91 }, "Latitude"},
		{"unsupported photo type", func(r *CreateIncidentRequest) { r.Photos[0].ContentType = "image/gif" }, "ContentType"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newTestHandler(t)
			d.service.EXPECT().ReportIncident(gomock.Any(), gomock.Any()).Times(0)

			req := validCreateRequest()
			tt.mutate(&req)
			w := makeRequest(d.router, http.MethodPost, "/api/v1/incidents", jsonBody(t, req), authHeader)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), fmt.Sprintf("'%s'", tt.field))
		})
	}
}

func TestCreateIncident_ServiceErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantBody string
	}{
		{"invalid incident", fmt.Errorf("%w: category %q", service.ErrInvalidIncident, "meteor"), http.StatusBadRequest, "invalid incident"},
		{"database failure", errors.New("connection refused"), http.StatusInternalServerError, "internal server error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newTestHandler(t)
			d.service.EXPECT().ReportIncident(gomock.Any(), gomock.Any()).Return(nil, tt.err)

			w := makeRequest(d.router, http.MethodPost, "/api/v1/incidents", jsonBody(t, validCreateRequest()), authHeader)

			assert.Equal(t, tt.wantCode, w.Code)
			assert.Contains(t, w.Body.String(), tt.wantBody)
			assert.NotContains(t, w.Body.String(), "connection refused")
		})
	}
}

func TestListIncidents_Filters(t *testing.T) {
	d := newTestHandler(t)
	items := []*models.Incident{testIncident(uuid.New(), models.StatusDispatched)}

	d.service.EXPECT().
		ListIncidents(gomock.Any(), gomock.Cond(func(x any) bool {
			f := x.(service.IncidentFilter)
			return f.Page == 2 && f.PageSize == 10 &&
				f.Status != nil && *f.Status == models.StatusDispatched &&
				f.Source != nil && *f.Source == models.SourceSmartCamera &&
				f.Severity == nil
		})).
		Return(items, 11, nil)

	w := makeRequest(d.router, http.MethodGet, "/api/v1/incidents?status=dispatched&source=smart_camera&page=2&page_size=10", nil, authHeader)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp IncidentListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Items, 1)
	assert.Equal(t, 11, resp.Total)
	assert.Equal(t, 2, resp.Page)
	assert.Equal(t, 10, resp.PageSize)
}

func TestNearbyIncidents(t *testing.T) {
	d := newTestHandler(t)
	items := []*models.Incident{
		testIncident(uuid.New(), models.StatusReported),
		testIncident(uuid.New(), models.StatusOnSite),
	}

	d.service.EXPECT().NearbyIncidents(gomock.Any(), 12.9716, 77.5946, 2.5, false, 0).Return(items, nil)

	w := makeRequest(d.router, http.MethodGet, "/api/v1/incidents/nearby?lat=12.9716&lon=77.5946&radius_km=2.5", nil, authHeader)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp []IncidentResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp, 2)
	assert.Equal(t, items[0].ID, resp[0].ID)
}

func TestNearbyIncidents_InvalidQuery(t *testing.T) {
	testCases := []struct {
		name  string
		query string
	}{
		{"missing latitude", "lon=77.59"},
		{"missing longitude", "lat=12.97"},
		{"latitude out of range", "lat=91&lon=77.59"},
		{"radius too large", "lat=12.97&lon=77.59&radius_km=500"},
		{"not a number", "lat=north&lon=77.59"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			d := newTestHandler(t)
			d.service.EXPECT().NearbyIncidents(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

			w := makeRequest(d.router, http.MethodGet, "/api/v1/incidents/nearby?"+tc.query, nil, authHeader)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestListIncidents_InvalidFilter(t *testing.T) {
	d := newTestHandler(t)
	d.service.EXPECT().ListIncidents(gomock.Any(), gomock.Any()).Times(0)

	w := makeRequest(d.router, http.MethodGet, "/api/v1/incidents?status=closed", nil, authHeader)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid status filter")
}

func TestGetIncident(t *testing.T) {
	d := newTestHandler(t)
	id := uuid.New()
	missing := uuid.New()

	d.service.EXPECT().GetIncident(gomock.Any(), id).Return(testIncident(id, models.StatusReported), nil)
	d.service.EXPECT().GetIncident(gomock.Any(), missing).
		Return(nil, fmt.Errorf("%w: %s", service.ErrIncidentNotFound, missing))

	w := makeRequest(d.router, http.MethodGet, "/api/v1/incidents/"+id.String(), nil, authHeader)
	assert.Equal(t, http.StatusOK, w.Code)

	w = makeRequest(d.router, http.MethodGet, "/api/v1/incidents/"+missing.String(), nil, authHeader)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = makeRequest(d.router, http.MethodGet, "/api/v1/incidents/not-a-uuid", nil, authHeader)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid incident ID")
}

func TestAdvanceStatus(t *testing.T) {
	d := newTestHandler(t)
	id := uuid.New()
	notes := "cleared by traffic police"

	// Подготовка
	resolved := testIncident(id, models.StatusResolved)
	resolved.ResolutionNotes = &notes

	// Ожидания
	gomock.InOrder(
		d.service.EXPECT().
			AdvanceStatus(gomock.Any(), id, models.StatusResolved, "officer-7", gomock.Cond(func(x any) bool {
				n, ok := x.(*string)
				return ok && n != nil && *n == notes
			})).
			Return(resolved, nil),
		d.service.EXPECT().
			AdvanceStatus(gomock.Any(), id, models.StatusDispatched, defaultActor, gomock.Nil()).
			Return(nil, fmt.Errorf("%w: resolved -> dispatched", service.ErrInvalidTransition)),
	)

	// Действие
	w := makeRequest(d.router, http.MethodPost, "/api/v1/incidents/"+id.String()+"/status",
		jsonBody(t, AdvanceStatusRequest{Status: "resolved", Actor: "officer-7", Notes: &notes}), authHeader)

	// Проверки
	assert.Equal(t, http.StatusOK, w.Code)
	var resp IncidentResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "resolved", resp.Status)
	require.NotNil(t, resp.ResolutionNotes)
	assert.Equal(t, notes, *resp.ResolutionNotes)

	w = makeRequest(d.router, http.MethodPost, "/api/v1/incidents/"+id.String()+"/status",
		jsonBody(t, AdvanceStatusRequest{Status: "dispatched"}), authHeader)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "invalid status transition")
}

func TestAdvanceStatus_RejectsUnknownTarget(t *testing.T) {
	d := newTestHandler(t)
	d.service.EXPECT().AdvanceStatus(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	w := makeRequest(d.router, http.MethodPost, "/api/v1/incidents/"+uuid.NewString()+"/status",
		jsonBody(t, AdvanceStatusRequest{Status: "false_alarm"}), authHeader)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMarkFalseAlarm(t *testing.T) {
	d := newTestHandler(t)
	id := uuid.New()
	busy := uuid.New()

	d.service.EXPECT().MarkFalseAlarm(gomock.Any(), id, defaultActor, gomock.Nil()).
		Return(testIncident(id, models.StatusFalseAlarm), nil)
	d.service.EXPECT().MarkFalseAlarm(gomock.Any(), busy, "dispatcher", gomock.Nil()).
		Return(nil, fmt.Errorf("%w: en_route -> false_alarm", service.ErrInvalidTransition))

	w := makeRequest(d.router, http.MethodPost, "/api/v1/incidents/"+id.String()+"/false-alarm", nil, authHeader)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"false_alarm"`)

	w = makeRequest(d.router, http.MethodPost, "/api/v1/incidents/"+busy.String()+"/false-alarm",
		jsonBody(t, FalseAlarmRequest{Actor: "dispatcher"}), authHeader)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestReassignSeverity_ClosedIncident(t *testing.T) {
	d := newTestHandler(t)
	id := uuid.New()

	d.service.EXPECT().ReassignSeverity(gomock.Any(), id, models.SeverityCritical).
		Return(nil, service.ErrIncidentClosed)

	w := makeRequest(d.router, http.MethodPut, "/api/v1/incidents/"+id.String()+"/severity",
		jsonBody(t, SeverityRequest{Severity: "critical"}), authHeader)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "incident is closed")
}

func TestUpdateNotes(t *testing.T) {
	d := newTestHandler(t)
	id := uuid.New()
	notes := "two lanes blocked"
	updated := testIncident(id, models.StatusOnSite)
	updated.ResolutionNotes = &notes

	d.service.EXPECT().UpdateNotes(gomock.Any(), id, notes).Return(updated, nil)

	w := makeRequest(d.router, http.MethodPut, "/api/v1/incidents/"+id.String()+"/notes",
		jsonBody(t, NotesRequest{Notes: notes}), authHeader)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), notes)
}

func TestGetStats_ServiceError(t *testing.T) {
	d := newTestHandler(t)
	d.service.EXPECT().GetStats(gomock.Any()).Return(nil, errors.New("db down"))

	w := makeRequest(d.router, http.MethodGet, "/api/v1/incidents/stats", nil, authHeader)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "internal server error")
}

func multipartImage(t *testing.T, field string, data []byte) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile(field, "frame.jpg")
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestAnalyzeImage(t *testing.T) {
	d := newTestHandler(t)
	jpeg := append([]byte{0xFF, 0xD8, 0xFF, 0xE0}, bytes.Repeat([]byte{0x01}, 64)...)

	d.analyzer.EXPECT().
		Analyze(gomock.Any(), gomock.Cond(func(x any) bool {
			img := x.(classifier.Image)
			return bytes.Equal(img.Data, jpeg)
		})).
		Return(&models.ClassificationResult{
			Category:   models.CategoryVehicleCollision,
			Severity:   models.SeverityHigh,
			Confidence: 0.91,
			Title:      "Two-car collision",
		}, nil)

	body, contentType := multipartImage(t, "image", jpeg)
	w := makeRequest(d.router, http.MethodPost, "/api/v1/analyze", body, authHeader, map[string]string{"Content-Type": contentType})

	assert.Equal(t, http.StatusOK, w.Code)
	var resp models.ClassificationResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.InDelta(t, 0.91, resp.Confidence, 1e-9)
	assert.False(t, resp.Degraded)
}

func TestAnalyzeImage_MissingFileAndEmptyImage(t *testing.T) {
	d := newTestHandler(t)

	body, contentType := multipartImage(t, "photo", []byte("x"))
	w := makeRequest(d.router, http.MethodPost, "/api/v1/analyze", body, authHeader, map[string]string{"Content-Type": contentType})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "image file is required")

	d.analyzer.EXPECT().Analyze(gomock.Any(), gomock.Any()).Return(nil, classifier.ErrEmptyImage)
	body, contentType = multipartImage(t, "image", nil)
	w = makeRequest(d.router, http.MethodPost, "/api/v1/analyze", body, authHeader, map[string]string{"Content-Type": contentType})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCameraStartStop(t *testing.T) {
	d := newTestHandler(t)

	gomock.InOrder(
		d.camera.EXPECT().Start(gomock.Any()).Return(nil),
		d.camera.EXPECT().Status().Return(capture.Status{CameraID: "camera-01", Monitoring: true}),
		d.camera.EXPECT().Start(gomock.Any()).Return(capture.ErrAlreadyMonitoring),
		d.camera.EXPECT().Stop(),
		d.camera.EXPECT().Status().Return(capture.Status{CameraID: "camera-01"}),
	)

	w := makeRequest(d.router, http.MethodPost, "/api/v1/camera/start", nil, authHeader)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"monitoring":true`)

	w = makeRequest(d.router, http.MethodPost, "/api/v1/camera/start", nil, authHeader)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = makeRequest(d.router, http.MethodPost, "/api/v1/camera/stop", nil, authHeader)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"monitoring":false`)
}

func TestTriggerCapture(t *testing.T) {
	d := newTestHandler(t)
	captured := &models.Capture{
		ID:          uuid.New(),
		CameraID:    "camera-01",
		Disposition: models.DispositionPendingReview,
		CapturedAt:  time.Now().UTC(),
		ProcessedAt: time.Now().UTC(),
	}

	gomock.InOrder(
		d.camera.EXPECT().Trigger(gomock.Any()).Return(captured, nil),
		d.camera.EXPECT().Trigger(gomock.Any()).Return(nil, capture.ErrCaptureInProgress),
	)

	w := makeRequest(d.router, http.MethodPost, "/api/v1/camera/capture", nil, authHeader)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"disposition":"pending_review"`)

	w = makeRequest(d.router, http.MethodPost, "/api/v1/camera/capture", nil, authHeader)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "capture already in progress")
}

func TestSettings_GetAndUpdate(t *testing.T) {
	d := newTestHandler(t)

	w := makeRequest(d.router, http.MethodGet, "/api/v1/camera/settings", nil, authHeader)
	assert.Equal(t, http.StatusOK, w.Code)
	var got SettingsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, 15, got.CaptureIntervalSeconds)
	assert.InDelta(t, 0.80, got.AutoSubmitThreshold, 1e-9)

	auto := 0.90
	interval := 30
	w = makeRequest(d.router, http.MethodPut, "/api/v1/camera/settings",
		jsonBody(t, UpdateSettingsRequest{AutoSubmitThreshold: &auto, CaptureIntervalSeconds: &interval}), authHeader)
	assert.Equal(t, http.StatusOK, w.Code)

	snap := d.settings.Snapshot()
	assert.InDelta(t, 0.90, snap.Thresholds.AutoSubmit, 1e-9)
	assert.InDelta(t, 0.50, snap.Thresholds.ManualReview, 1e-9)
	assert.Equal(t, 30*time.Second, snap.CaptureInterval)
}

func TestSettings_RejectsInvertedThresholds(t *testing.T) {
	d := newTestHandler(t)

	auto := 0.40
	w := makeRequest(d.router, http.MethodPut, "/api/v1/camera/settings",
		jsonBody(t, UpdateSettingsRequest{AutoSubmitThreshold: &auto}), authHeader)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.InDelta(t, 0.80, d.settings.Thresholds().AutoSubmit, 1e-9)
}

func TestListCaptures(t *testing.T) {
	d := newTestHandler(t)

	d.captures.EXPECT().
		ListCaptures(gomock.Any(), gomock.Cond(func(x any) bool {
			f := x.(triage.CaptureFilter)
			return f.Disposition != nil && *f.Disposition == models.DispositionDiscard && f.Limit == 5
		})).
		Return([]*models.Capture{{ID: uuid.New(), Disposition: models.DispositionDiscard}}, nil)

	w := makeRequest(d.router, http.MethodGet, "/api/v1/captures?disposition=discard&limit=5", nil, authHeader)
	assert.Equal(t, http.StatusOK, w.Code)

	w = makeRequest(d.router, http.MethodGet, "/api/v1/captures?disposition=maybe", nil, authHeader)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPendingCaptures(t *testing.T) {
	d := newTestHandler(t)
	d.captures.EXPECT().PendingCaptures(gomock.Any(), 50).Return([]*models.Capture{}, nil)

	w := makeRequest(d.router, http.MethodGet, "/api/v1/captures/pending", nil, authHeader)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestCaptureStats_MergesCameraCounters(t *testing.T) {
	d := newTestHandler(t)
	d.captures.EXPECT().CaptureStats(gomock.Any()).Return(&models.CaptureStats{Total: 7, PendingReview: 2}, nil)
	d.camera.EXPECT().Status().Return(capture.Status{Monitoring: true, Dropped: 3, Failed: 1})

	w := makeRequest(d.router, http.MethodGet, "/api/v1/captures/stats", nil, authHeader)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp CaptureStatsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 7, resp.Total)
	assert.True(t, resp.IsActive)
	assert.Equal(t, int64(3), resp.Dropped)
	assert.Equal(t, int64(1), resp.Failed)
}

func TestReviewCapture(t *testing.T) {
	d := newTestHandler(t)
	id := uuid.New()
	incidentID := uuid.New()

	// Ожидания
	gomock.InOrder(
		d.captures.EXPECT().Approve(gomock.Any(), id, "alice", "confirmed on feed").
			DoAndReturn(func(_ context.Context, id uuid.UUID, reviewer, notes string) (*models.Capture, error) {
				return &models.Capture{
					ID:          id,
					Disposition: models.DispositionPendingReview,
					Review:      models.ReviewApproved,
					IncidentID:  &incidentID,
					ReviewedBy:  reviewer,
					ReviewNotes: notes,
				}, nil
			}),
		d.captures.EXPECT().Reject(gomock.Any(), id, "bob", "").Return(nil, triage.ErrNotPendingReview),
	)

	// Действие
	w := makeRequest(d.router, http.MethodPost, "/api/v1/captures/"+id.String()+"/approve",
		jsonBody(t, ReviewRequest{Reviewer: "alice", Notes: "confirmed on feed"}), authHeader)

	// Проверки
	assert.Equal(t, http.StatusOK, w.Code)
	var resp models.Capture
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, models.ReviewApproved, resp.Review)
	require.NotNil(t, resp.IncidentID)
	assert.Equal(t, incidentID, *resp.IncidentID)

	w = makeRequest(d.router, http.MethodPost, "/api/v1/captures/"+id.String()+"/reject",
		jsonBody(t, ReviewRequest{Reviewer: "bob"}), authHeader)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestReviewCapture_ValidationAndNotFound(t *testing.T) {
	d := newTestHandler(t)
	id := uuid.New()

	d.captures.EXPECT().Reject(gomock.Any(), id, "bob", "").
		Return(nil, fmt.Errorf("%w: %s", triage.ErrCaptureNotFound, id))

	w := makeRequest(d.router, http.MethodPost, "/api/v1/captures/"+id.String()+"/approve",
		jsonBody(t, ReviewRequest{}), authHeader)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = makeRequest(d.router, http.MethodPost, "/api/v1/captures/"+id.String()+"/reject",
		jsonBody(t, ReviewRequest{Reviewer: "bob"}), authHeader)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListHotspots(t *testing.T) {
	d := newTestHandler(t)
	d.hotspots.EXPECT().Hotspots(gomock.Any(), 25.0).Return([]*models.Hotspot{
		{ID: uuid.New(), Name: "Silk Board Junction", RiskScore: 42, AccidentCount: 9, IsActive: true},
	}, nil)

	w := makeRequest(d.router, http.MethodGet, "/api/v1/hotspots?min_risk=25", nil, authHeader)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Silk Board Junction")

	w = makeRequest(d.router, http.MethodGet, "/api/v1/hotspots?min_risk=abc", nil, authHeader)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
