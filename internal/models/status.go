package models

import (
	"errors"
	"fmt"
	"time"
)

// Status - положение инцидента в цикле реагирования
type Status string

const (
	StatusReported     Status = "reported"
	StatusAcknowledged Status = "acknowledged"
	StatusDispatched   Status = "dispatched"
	StatusEnRoute      Status = "en_route"
	StatusOnSite       Status = "on_site"
	StatusResolved     Status = "resolved"
	StatusFalseAlarm   Status = "false_alarm"
)

// ErrInvalidTransition возвращается при попытке перехода вне прямой цепочки
var ErrInvalidTransition = errors.New("invalid status transition")

// forwardChain - единственный допустимый порядок статусов
var forwardChain = []Status{
	StatusReported,
	StatusAcknowledged,
	StatusDispatched,
	StatusEnRoute,
	StatusOnSite,
	StatusResolved,
}

func (s Status) Valid() bool {
	if s == StatusFalseAlarm {
		return true
	}
	for _, st := range forwardChain {
		if st == s {
			return true
		}
	}
	return false
}

// Next возвращает следующий статус цепочки; false для конечных статусов
func (s Status) Next() (Status, bool) {
	for i, st := range forwardChain {
		if st == s && i+1 < len(forwardChain) {
			return forwardChain[i+1], true
		}
	}
	return "", false
}

func (s Status) IsTerminal() bool {
	return s == StatusResolved || s == StatusFalseAlarm
}

// IsInProgress - инцидент принят в работу, но не закрыт
func (s Status) IsInProgress() bool {
	switch s {
	case StatusAcknowledged, StatusDispatched, StatusEnRoute, StatusOnSite:
		return true
	}
	return false
}

// ValidateTransition проверяет переход from -> to до любой записи в хранилище.
// false_alarm допустим только из статуса создания (reported).
func ValidateTransition(from, to Status) error {
	if to == StatusFalseAlarm {
		if from == StatusReported {
			return nil
		}
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	next, ok := from.Next()
	if !ok || next != to {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}

// StatusTransition - проверенный переход, который репозиторий применяет условно (WHERE status = From)
type StatusTransition struct {
	From  Status
	To    Status
	At    time.Time
	Actor string
	Notes *string
}

// NewStatusTransition валидирует переход и возвращает его описание
func NewStatusTransition(from, to Status, at time.Time, actor string, notes *string) (StatusTransition, error) {
	if err := ValidateTransition(from, to); err != nil {
		return StatusTransition{}, err
	}
	if notes != nil && to != StatusResolved && to != StatusFalseAlarm {
		return StatusTransition{}, fmt.Errorf("%w: notes are accepted only when closing an incident", ErrInvalidTransition)
	}
	return StatusTransition{From: from, To: to, At: at.UTC(), Actor: actor, Notes: notes}, nil
}

// Apply переносит переход на копию инцидента в памяти (используется после успешной записи и в кэше)
func (t StatusTransition) Apply(inc *Incident) {
	at := t.At
	inc.Status = t.To
	inc.UpdatedAt = at
	switch t.To {
	case StatusAcknowledged:
		inc.AcknowledgedAt = &at
		inc.AcknowledgedBy = t.Actor
	case StatusDispatched:
		inc.DispatchedAt = &at
	case StatusEnRoute:
		inc.EnRouteAt = &at
	case StatusOnSite:
		inc.OnSiteAt = &at
	case StatusResolved:
		inc.ResolvedAt = &at
		inc.ResolvedBy = t.Actor
		inc.ResolutionNotes = t.Notes
	case StatusFalseAlarm:
		inc.ClosedAt = &at
		inc.ResolutionNotes = t.Notes
	}
}
