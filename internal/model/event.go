package model

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid payload")

// ValidationError describes the first field that failed validation.
type ValidationError struct {
	Kind   string // "event" or "intervention"
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s.%s: %s", e.Kind, e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrInvalid }

// Event is an immutable record of an observed condition change.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Source    string    `json:"source"`
	Severity  Severity  `json:"severity"`
	Timestamp time.Time `json:"timestamp"`
	Value     *float64  `json:"value,omitempty"` // normalized to [0,1]
	Metadata  Metadata  `json:"metadata,omitempty"`
}

// NewEvent stamps a fresh ID and the current time. value is clamped to [0,1].
func NewEvent(typ EventType, source string, severity Severity, value float64, meta Metadata) Event {
	v := Clamp01(value)
	return Event{
		ID:        uuid.NewString(),
		Type:      typ,
		Source:    source,
		Severity:  severity,
		Timestamp: time.Now(),
		Value:     &v,
		Metadata:  meta.Clone(),
	}
}

// ValueOr returns the normalized value or def when absent.
func (e Event) ValueOr(def float64) float64 {
	if e.Value == nil {
		return def
	}
	return *e.Value
}

// Clone returns a copy sharing no mutable state with e.
func (e Event) Clone() Event {
	out := e
	if e.Value != nil {
		v := *e.Value
		out.Value = &v
	}
	out.Metadata = e.Metadata.Clone()
	return out
}

// Validate checks shape and ranges.
func (e Event) Validate() error {
	fail := func(field, reason string) error {
		return &ValidationError{Kind: "event", Field: field, Reason: reason}
	}
	if _, err := uuid.Parse(e.ID); err != nil {
		return fail("id", "must be a uuid")
	}
	if !e.Type.Valid() {
		return fail("type", fmt.Sprintf("unknown event type %q", e.Type))
	}
	if e.Source == "" {
		return fail("source", "required")
	}
	if !e.Severity.Valid() {
		return fail("severity", fmt.Sprintf("unknown severity %d", int(e.Severity)))
	}
	if e.Timestamp.IsZero() {
		return fail("timestamp", "required")
	}
	if e.Value != nil && (*e.Value < 0 || *e.Value > 1) {
		return fail("value", fmt.Sprintf("%v outside [0,1]", *e.Value))
	}
	return nil
}

// Intervention is an immutable proposed remediation.
type Intervention struct {
	ID         string           `json:"id"`
	Type       InterventionType `json:"type"`
	Source     string           `json:"source"`
	Reason     string           `json:"reason"`
	Timestamp  time.Time        `json:"timestamp"`
	Urgency    float64          `json:"urgency"` // [0,1]
	Parameters Params           `json:"parameters,omitempty"`
}

// NewIntervention stamps a fresh ID and the current time. urgency is clamped to [0,1].
func NewIntervention(typ InterventionType, source, reason string, urgency float64, params Params) Intervention {
	return Intervention{
		ID:         uuid.NewString(),
		Type:       typ,
		Source:     source,
		Reason:     reason,
		Timestamp:  time.Now(),
		Urgency:    Clamp01(urgency),
		Parameters: params.Clone(),
	}
}

// Clone returns a copy sharing no mutable state with iv.
func (iv Intervention) Clone() Intervention {
	out := iv
	out.Parameters = iv.Parameters.Clone()
	return out
}

// Validate checks shape and ranges.
func (iv Intervention) Validate() error {
	fail := func(field, reason string) error {
		return &ValidationError{Kind: "intervention", Field: field, Reason: reason}
	}
	if _, err := uuid.Parse(iv.ID); err != nil {
		return fail("id", "must be a uuid")
	}
	if !iv.Type.Valid() {
		return fail("type", fmt.Sprintf("unknown intervention type %q", iv.Type))
	}
	if iv.Source == "" {
		return fail("source", "required")
	}
	if iv.Reason == "" {
		return fail("reason", "required")
	}
	if iv.Timestamp.IsZero() {
		return fail("timestamp", "required")
	}
	if iv.Urgency < 0 || iv.Urgency > 1 {
		return fail("urgency", fmt.Sprintf("%v outside [0,1]", iv.Urgency))
	}
	return nil
}

// Clamp01 limits v to [0,1]; NaN maps to 0.
func Clamp01(v float64) float64 {
	switch {
	case v != v:
		return 0
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
