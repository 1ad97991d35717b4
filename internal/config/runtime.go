package config

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

const (
	DefaultAutoSubmitThreshold   = 0.80
	DefaultManualReviewThreshold = 0.50
)

// ErrInvalidThresholds - нарушено условие 0 <= manualReview <= autoSubmit <= 1
var ErrInvalidThresholds = errors.New("invalid confidence thresholds")

// Thresholds - пороги уверенности для маршрутизации снимков
type Thresholds struct {
	AutoSubmit   float64 `json:"auto_submit_threshold"`
	ManualReview float64 `json:"manual_review_threshold"`
}

func (t Thresholds) Validate() error {
	return ValidateThresholds(t.AutoSubmit, t.ManualReview)
}

func ValidateThresholds(autoSubmit, manualReview float64) error {
	if !(0 <= manualReview && manualReview <= autoSubmit && autoSubmit <= 1) {
		return fmt.Errorf("%w: need 0 <= %.2f <= %.2f <= 1", ErrInvalidThresholds, manualReview, autoSubmit)
	}
	return nil
}

// Settings - снимок изменяемых настроек
type Settings struct {
	CaptureInterval  time.Duration `json:"capture_interval"`
	LocationTracking bool          `json:"location_tracking"`
	Thresholds       Thresholds    `json:"thresholds"`
}

// SettingsUpdate - частичное обновление, nil поля не меняются
type SettingsUpdate struct {
	CaptureInterval       *time.Duration
	LocationTracking      *bool
	AutoSubmitThreshold   *float64
	ManualReviewThreshold *float64
}

// RuntimeSettings - потокобезопасные настройки, общие для источника снимков и маршрутизатора.
// Изменение вступает в силу со следующего снимка.
type RuntimeSettings struct {
	mu       sync.RWMutex
	settings Settings
}

func NewRuntimeSettings(initial Settings) *RuntimeSettings {
	return &RuntimeSettings{settings: initial}
}

func (r *RuntimeSettings) Snapshot() Settings {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.settings
}

func (r *RuntimeSettings) Thresholds() Thresholds {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.settings.Thresholds
}

func (r *RuntimeSettings) CaptureInterval() time.Duration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.settings.CaptureInterval
}

func (r *RuntimeSettings) LocationTracking() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.settings.LocationTracking
}

// Update применяет частичное обновление целиком или не применяет ничего
func (r *RuntimeSettings) Update(u SettingsUpdate) (Settings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := r.settings
	if u.CaptureInterval != nil {
		if *u.CaptureInterval <= 0 {
			return r.settings, fmt.Errorf("capture interval must be positive, got %s", *u.CaptureInterval)
		}
		next.CaptureInterval = *u.CaptureInterval
	}
	if u.LocationTracking != nil {
		next.LocationTracking = *u.LocationTracking
	}
	if u.AutoSubmitThreshold != nil {
		next.Thresholds.AutoSubmit = *u.AutoSubmitThreshold
	}
	if u.ManualReviewThreshold != nil {
		next.Thresholds.ManualReview = *u.ManualReviewThreshold
	}
	if err := next.Thresholds.Validate(); err != nil {
		return r.settings, err
	}

	r.settings = next
	return next, nil
}
