package classifier

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/shenikar/road_incident_triage/internal/models"
	"github.com/sirupsen/logrus"
)

// ErrEmptyImage - пустой кадр, ошибка вызывающей стороны
var ErrEmptyImage = errors.New("classifier: empty image")

// Image - кадр для анализа
type Image struct {
	Data        []byte
	ContentType string
}

// Classifier - удаленный сервис классификации
//
//go:generate mockgen -source=classifier.go -destination=mocks/mock_classifier.go -package=mocks
type Classifier interface {
	Classify(ctx context.Context, img Image, prompt string) (*models.ClassificationResult, error)
}

// Analyzer - то, чем пользуются маршрутизатор и обработчики HTTP
type Analyzer interface {
	Analyze(ctx context.Context, img Image) (*models.ClassificationResult, error)
}

var (
	fallbackCategories = []models.Category{
		models.CategoryVehicleCollision,
		models.CategoryMotorcycleAccident,
		models.CategoryMultiVehicle,
		models.CategoryTruckAccident,
	}
	fallbackSeverities = []models.Severity{
		models.SeverityMedium,
		models.SeverityHigh,
		models.SeverityCritical,
	}
	fallbackRecommendations = []string{
		"Dispatch emergency medical services",
		"Alert traffic control to manage congestion",
		"Notify local law enforcement",
	}
)

// Adapter оборачивает Classifier: один вызов с таймаутом, без повторов,
// при любой ошибке возвращает синтетический результат с Degraded = true
type Adapter struct {
	client  Classifier
	timeout time.Duration
	logger  *logrus.Logger

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewAdapter создает адаптер. client == nil означает отсутствие ключа (штатный деградированный режим).
func NewAdapter(client Classifier, timeout time.Duration, logger *logrus.Logger) *Adapter {
	return &Adapter{
		client:  client,
		timeout: timeout,
		logger:  logger,
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// WithRand подменяет источник случайности для детерминированных тестов
func (a *Adapter) WithRand(rnd *rand.Rand) *Adapter {
	a.rnd = rnd
	return a
}

// Analyze возвращает ошибку только для пустого изображения или отмененного ctx вызывающего.
// Сбой или таймаут самого классификатора заменяется синтетическим результатом.
func (a *Adapter) Analyze(ctx context.Context, img Image) (*models.ClassificationResult, error) {
	if len(img.Data) == 0 {
		return nil, ErrEmptyImage
	}

	log := a.logger.WithFields(logrus.Fields{
		"service": "classifier",
		"method":  "Analyze",
		"bytes":   len(img.Data),
	})

	if a.client == nil {
		log.Debug("Classifier credentials not configured, using fallback analysis")
		return a.fallback(), nil
	}

	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	result, err := a.client.Classify(callCtx, img, "")
	if err != nil {
		if ctx.Err() != nil {
			log.WithError(err).Info("Caller canceled, analysis abandoned")
			return nil, fmt.Errorf("classifier: analysis canceled: %w", ctx.Err())
		}
		log.WithError(err).Warn("Classifier call failed, using fallback analysis")
		return a.fallback(), nil
	}

	result.Degraded = false
	result.Normalize()
	log.WithFields(logrus.Fields{
		"category":   result.Category,
		"confidence": result.Confidence,
	}).Debug("Image classified")
	return result, nil
}

func (a *Adapter) fallback() *models.ClassificationResult {
	a.mu.Lock()
	category := fallbackCategories[a.rnd.Intn(len(fallbackCategories))]
	severity := fallbackSeverities[a.rnd.Intn(len(fallbackSeverities))]
	vehicles := a.rnd.Intn(3) + 1
	casualties := a.rnd.Intn(2)
	confidence := 0.75 + a.rnd.Float64()*0.2
	a.mu.Unlock()

	recs := make([]string, len(fallbackRecommendations))
	copy(recs, fallbackRecommendations)

	result := &models.ClassificationResult{
		Category:         category,
		Severity:         severity,
		Confidence:       confidence,
		Title:            "Vehicle collision detected on roadway",
		Description:      "Automated analysis detected a road accident involving vehicles. Emergency response may be required based on the apparent severity of the incident.",
		VehicleCount:     vehicles,
		CasualtyEstimate: casualties,
		Recommendations:  recs,
		Degraded:         true,
	}
	result.Normalize()
	return result
}
