package geo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shenikar/road_incident_triage/internal/models"
	"github.com/sirupsen/logrus"
)

var ErrPositionUnavailable = errors.New("position unavailable")

// Position - координаты устройства
type Position struct {
	Latitude  float64
	Longitude float64
}

// Locator - источник текущих координат камеры
type Locator interface {
	CurrentPosition(ctx context.Context) (Position, error)
}

// StaticLocator возвращает координаты установки стационарной камеры
type StaticLocator struct {
	position *Position
}

// NewStaticLocator создает локатор; nil координаты означают, что позиция неизвестна
func NewStaticLocator(lat, lon *float64) *StaticLocator {
	if lat == nil || lon == nil {
		return &StaticLocator{}
	}
	return &StaticLocator{position: &Position{Latitude: *lat, Longitude: *lon}}
}

func (l *StaticLocator) CurrentPosition(ctx context.Context) (Position, error) {
	if err := ctx.Err(); err != nil {
		return Position{}, err
	}
	if l.position == nil {
		return Position{}, ErrPositionUnavailable
	}
	return *l.position, nil
}

// Resolver объединяет получение координат и обратное геокодирование
type Resolver struct {
	locator  Locator
	geocoder Geocoder
	timeout  time.Duration
	logger   *logrus.Logger
}

func NewResolver(locator Locator, geocoder Geocoder, timeout time.Duration, logger *logrus.Logger) *Resolver {
	return &Resolver{
		locator:  locator,
		geocoder: geocoder,
		timeout:  timeout,
		logger:   logger,
	}
}

// Locate возвращает nil, если позиция недоступна за отведенное время.
// Ошибка геокодирования не фатальна: адрес заменяется строкой с координатами.
func (r *Resolver) Locate(ctx context.Context) *models.Location {
	log := r.logger.WithFields(logrus.Fields{
		"service": "geo",
		"method":  "Locate",
	})

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	pos, err := r.locator.CurrentPosition(ctx)
	if err != nil {
		log.WithError(err).Warn("Position unavailable")
		return nil
	}
	if !ValidCoordinates(pos.Latitude, pos.Longitude) {
		log.WithFields(logrus.Fields{"lat": pos.Latitude, "lon": pos.Longitude}).Warn("Locator returned invalid coordinates")
		return nil
	}

	loc := &models.Location{
		Latitude:  pos.Latitude,
		Longitude: pos.Longitude,
		Address:   FormatCoordinates(pos.Latitude, pos.Longitude),
	}
	if r.geocoder == nil {
		return loc
	}

	address, err := r.geocoder.ReverseGeocode(ctx, pos.Latitude, pos.Longitude)
	if err != nil {
		log.WithError(err).Debug("Reverse geocoding failed, using coordinates as address")
		return loc
	}
	loc.Address = address
	return loc
}

// FormatCoordinates - адрес по умолчанию
func FormatCoordinates(lat, lon float64) string {
	return fmt.Sprintf("%.6f, %.6f", lat, lon)
}
