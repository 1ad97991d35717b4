package models

import (
	"math"
	"strings"
)

// maxTitleLength - в символах, не в байтах
const maxTitleLength = 80

// ClassificationResult - нормализованный ответ классификатора изображений
type ClassificationResult struct {
	Category         Category `json:"category"`
	Severity         Severity `json:"severity"`
	Confidence       float64  `json:"confidence"`
	Title            string   `json:"title"`
	Description      string   `json:"description"`
	VehicleCount     int      `json:"vehicle_count"`
	CasualtyEstimate int      `json:"casualty_estimate"`
	Recommendations  []string `json:"recommendations"`
	// Degraded - результат синтезирован локально (нет ключа, таймаут, ошибка сервиса)
	Degraded bool `json:"degraded"`
}

// Normalize приводит произвольный ответ к фиксированной форме
func (r *ClassificationResult) Normalize() {
	switch {
	case math.IsNaN(r.Confidence), r.Confidence < 0:
		r.Confidence = 0
	case r.Confidence > 1:
		r.Confidence = 1
	}
	if !r.Category.Valid() {
		r.Category = CategoryOther
	}
	if !r.Severity.Valid() {
		r.Severity = SeverityMedium
	}
	if r.VehicleCount < 0 {
		r.VehicleCount = 0
	}
	if r.CasualtyEstimate < 0 {
		r.CasualtyEstimate = 0
	}
	r.Title = strings.TrimSpace(r.Title)
	if r.Title == "" {
		r.Title = strings.ReplaceAll(string(r.Category), "_", " ")
	}
	if runes := []rune(r.Title); len(runes) > maxTitleLength {
		r.Title = strings.TrimSpace(string(runes[:maxTitleLength]))
	}
	r.Description = strings.TrimSpace(r.Description)
	if r.Recommendations == nil {
		r.Recommendations = []string{}
	}
}
