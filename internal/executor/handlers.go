package executor

import (
	"fmt"
	"time"

	"stoic/internal/model"
	"stoic/internal/notify"
)

const (
	subtitle = "Stoic Agent Suggestion"

	// Action timeout offered with every request.
	actionTimeout = 30 * time.Second
)

// builder turns an intervention into a draft notification. phrase reports
// whether the message may be rewritten by a Phraser.
type builder func(iv model.Intervention) (req notify.Request, phrase bool)

func durationParam(iv model.Intervention, def int) int {
	if d, ok := iv.Parameters.Float(model.ParamDuration); ok && d > 0 {
		return int(d)
	}
	return def
}

func buildBreathing(iv model.Intervention) (notify.Request, bool) {
	return notify.Request{
		Title:    "High CPU Usage Detected!",
		Message:  fmt.Sprintf("How about a quick %d-second breathing exercise?", durationParam(iv, 60)),
		Subtitle: subtitle,
		Sound:    true,
		Actions:  []string{"Start", "Dismiss"},
		Timeout:  actionTimeout,
	}, false
}

func buildScream(iv model.Intervention) (notify.Request, bool) {
	return notify.Request{
		Title:    "Feeling Wound Up?",
		Message:  fmt.Sprintf("Step away and let it out for %d seconds. Then come back lighter.", durationParam(iv, 10)),
		Subtitle: subtitle,
		Sound:    true,
		Actions:  []string{"Start", "Dismiss"},
		Timeout:  actionTimeout,
	}, false
}

func buildQuestion(iv model.Intervention) (notify.Request, bool) {
	q, ok := iv.Parameters.String(model.ParamQuestion)
	if !ok || q == "" {
		q = "What is within your control right now?"
	}
	return notify.Request{
		Title:    "A Question Worth Asking",
		Message:  q,
		Subtitle: subtitle,
		Actions:  []string{"Answer", "Dismiss"},
		Timeout:  actionTimeout,
	}, true
}

func buildQuote(iv model.Intervention) (notify.Request, bool) {
	q, ok := iv.Parameters.String(model.ParamQuote)
	if !ok || q == "" {
		q = "The impediment to action advances action. What stands in the way becomes the way."
	}
	return notify.Request{
		Title:    "A Thought For The Moment",
		Message:  q,
		Subtitle: subtitle,
		Actions:  []string{"Thanks"},
		Timeout:  actionTimeout,
	}, true
}

func defaultBuilders() map[model.InterventionType]builder {
	return map[model.InterventionType]builder{
		model.InterventionBreathing: buildBreathing,
		model.InterventionScream:    buildScream,
		model.InterventionQuestion:  buildQuestion,
		model.InterventionQuote:     buildQuote,
	}
}
