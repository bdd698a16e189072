// Package journal persists events, interventions and notification feedback.
package journal

import (
	"context"

	"stoic/internal/model"
)

// Journal is an append-only record of agent activity.
type Journal interface {
	AppendEvent(ctx context.Context, e model.Event) error
	AppendIntervention(ctx context.Context, iv model.Intervention) error
	RecordFeedback(ctx context.Context, f model.Feedback) error
	// RecentEvents returns up to limit events, oldest first.
	RecentEvents(ctx context.Context, limit int) ([]model.Event, error)
	// RecentInterventions returns up to limit interventions, oldest first.
	RecentInterventions(ctx context.Context, limit int) ([]model.Intervention, error)
	Close() error
}
