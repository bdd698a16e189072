package model

import "time"

// Feedback is the result of one notification attempt for an intervention.
type Feedback struct {
	InterventionID   string           `json:"intervention_id"`
	InterventionType InterventionType `json:"intervention_type"`
	Sink             string           `json:"sink"`
	Delivered        bool             `json:"delivered"`
	Action           string           `json:"action,omitempty"` // user response, e.g. "Start"
	Error            string           `json:"error,omitempty"`
	Timestamp        time.Time        `json:"timestamp"`
}

// Accepted reports whether the user picked the positive action.
func (f Feedback) Accepted() bool {
	switch f.Action {
	case "Start", "Answer", "Thanks":
		return true
	}
	return false
}
