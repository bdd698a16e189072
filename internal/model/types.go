package model

import (
	"fmt"
	"strings"
)

// EventType is the closed set of observable conditions.
type EventType string

const (
	// System signals
	EventCPUWarning     EventType = "cpu_usage_warning"
	EventCPUCritical    EventType = "cpu_usage_critical"
	EventCPUNormal      EventType = "cpu_usage_normal"
	EventMemoryWarning  EventType = "memory_usage_warning"
	EventMemoryCritical EventType = "memory_usage_critical"
	EventMemoryNormal   EventType = "memory_usage_normal"

	// Behavioral signals
	EventKeyboardBurst EventType = "keyboard_burst"
	EventMouseRapid    EventType = "mouse_rapid"
	EventIdleDetected  EventType = "idle_detected"

	// Development signals
	EventGitResetFrequent EventType = "git_reset_frequent"
	EventBuildFailed      EventType = "build_failed"
)

var eventTypes = map[EventType]struct{}{
	EventCPUWarning:       {},
	EventCPUCritical:      {},
	EventCPUNormal:        {},
	EventMemoryWarning:    {},
	EventMemoryCritical:   {},
	EventMemoryNormal:     {},
	EventKeyboardBurst:    {},
	EventMouseRapid:       {},
	EventIdleDetected:     {},
	EventGitResetFrequent: {},
	EventBuildFailed:      {},
}

// Valid reports whether t belongs to the closed event enumeration.
func (t EventType) Valid() bool {
	_, ok := eventTypes[t]
	return ok
}

// Severity is ordered: SeverityLow < SeverityMedium < SeverityHigh < SeverityCritical.
type Severity int

const (
	SeverityLow Severity = iota + 1
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "low"
	case SeverityMedium:
		return "medium"
	case SeverityHigh:
		return "high"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// Valid reports whether s is one of the four defined levels.
func (s Severity) Valid() bool {
	return s >= SeverityLow && s <= SeverityCritical
}

// ParseSeverity is the inverse of Severity.String.
func ParseSeverity(s string) (Severity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return SeverityLow, nil
	case "medium":
		return SeverityMedium, nil
	case "high":
		return SeverityHigh, nil
	case "critical":
		return SeverityCritical, nil
	default:
		return 0, fmt.Errorf("unknown severity %q", s)
	}
}

func (s Severity) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid severity %d", int(s))
	}
	return []byte(s.String()), nil
}

func (s *Severity) UnmarshalText(text []byte) error {
	parsed, err := ParseSeverity(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// InterventionType is the closed set of remediations the executor knows about.
type InterventionType string

const (
	InterventionBreathing InterventionType = "suggest_breathing_exercise"
	InterventionScream    InterventionType = "suggest_scream_session"
	InterventionQuestion  InterventionType = "ask_cognitive_question"
	InterventionQuote     InterventionType = "show_motivational_quote"
)

// Valid reports whether t belongs to the closed intervention enumeration.
func (t InterventionType) Valid() bool {
	switch t {
	case InterventionBreathing, InterventionScream, InterventionQuestion, InterventionQuote:
		return true
	}
	return false
}
