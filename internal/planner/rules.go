package planner

import (
	"fmt"
	"sort"

	"stoic/internal/model"
)

// Rule maps matching events to one intervention. Higher Priority wins.
type Rule struct {
	Name        string
	Description string
	Priority    int
	Match       func(model.Event) bool
	Build       func(model.Event) model.Intervention
}

// RuleSet is an ordered collection of rules. It is not safe for concurrent
// mutation; the planner guards it.
type RuleSet struct {
	rules []Rule
}

// NewRuleSet creates an empty set.
func NewRuleSet(rules ...Rule) *RuleSet {
	rs := &RuleSet{}
	for _, r := range rules {
		rs.Add(r)
	}
	return rs
}

// Add appends a rule.
func (rs *RuleSet) Add(r Rule) {
	rs.rules = append(rs.rules, r)
}

// Remove deletes the rule with the given name.
func (rs *RuleSet) Remove(name string) bool {
	for i, r := range rs.rules {
		if r.Name == name {
			rs.rules = append(rs.rules[:i:i], rs.rules[i+1:]...)
			return true
		}
	}
	return false
}

// Len returns the number of rules.
func (rs *RuleSet) Len() int { return len(rs.rules) }

// Names lists rule names in insertion order.
func (rs *RuleSet) Names() []string {
	out := make([]string, len(rs.rules))
	for i, r := range rs.rules {
		out[i] = r.Name
	}
	return out
}

// Match returns every matching rule, highest priority first. Ties keep
// insertion order.
func (rs *RuleSet) Match(e model.Event) []Rule {
	var matched []Rule
	for _, r := range rs.rules {
		if r.Match != nil && r.Match(e) {
			matched = append(matched, r)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Priority > matched[j].Priority
	})
	return matched
}

// MatchFirst returns the highest priority matching rule.
func (rs *RuleSet) MatchFirst(e model.Event) (Rule, bool) {
	matched := rs.Match(e)
	if len(matched) == 0 {
		return Rule{}, false
	}
	return matched[0], true
}

// Source is stamped on every intervention built by the default rules.
const Source = "simple-rules-planner"

const (
	BreathingDuration = 60
	BreathingPattern  = "4-7-8"
	ScreamDuration    = 10
)

const defaultQuote = "You have power over your mind, not outside events. Realize this, and you will find strength."

func typeIn(types ...model.EventType) func(model.Event) bool {
	return func(e model.Event) bool {
		for _, t := range types {
			if e.Type == t {
				return true
			}
		}
		return false
	}
}

func percent(e model.Event) string {
	return fmt.Sprintf("%.0f%%", e.ValueOr(0)*100)
}

// DefaultRules returns the built-in rule table.
func DefaultRules() *RuleSet {
	return NewRuleSet(
		Rule{
			Name:        "cpu_breathing",
			Description: "Suggest a breathing exercise on elevated CPU load",
			Priority:    100,
			Match:       typeIn(model.EventCPUWarning, model.EventCPUCritical),
			Build: func(e model.Event) model.Intervention {
				urgency := 0.6
				if e.Severity == model.SeverityCritical {
					urgency = 0.9
				}
				reason := fmt.Sprintf("Detected %s CPU usage (%s). A short break could be helpful.", e.Severity, percent(e))
				return model.NewIntervention(model.InterventionBreathing, Source, reason, urgency, model.Params{
					model.ParamDuration: float64(BreathingDuration),
					model.ParamPattern:  BreathingPattern,
				})
			},
		},
		Rule{
			Name:        "memory_quote",
			Description: "Show a quote when memory pressure builds",
			Priority:    80,
			Match:       typeIn(model.EventMemoryWarning, model.EventMemoryCritical),
			Build: func(e model.Event) model.Intervention {
				urgency := 0.4
				if e.Severity == model.SeverityCritical {
					urgency = 0.7
				}
				reason := fmt.Sprintf("Detected %s memory usage (%s). Step back for a moment.", e.Severity, percent(e))
				return model.NewIntervention(model.InterventionQuote, Source, reason, urgency, model.Params{
					model.ParamQuote: defaultQuote,
				})
			},
		},
		Rule{
			Name:        "dev_frustration_question",
			Description: "Ask a reframing question after repeated failures",
			Priority:    60,
			Match:       typeIn(model.EventBuildFailed, model.EventGitResetFrequent),
			Build: func(e model.Event) model.Intervention {
				question := "What part of this problem is within your control right now?"
				if e.Type == model.EventGitResetFrequent {
					question = "What are you hoping the next reset will change?"
				}
				reason := fmt.Sprintf("Noticed %s from %s.", e.Type, e.Source)
				return model.NewIntervention(model.InterventionQuestion, Source, reason, 0.5, model.Params{
					model.ParamQuestion: question,
				})
			},
		},
		Rule{
			Name:        "input_burst_scream",
			Description: "Offer a scream session on bursts of agitated input",
			Priority:    40,
			Match:       typeIn(model.EventKeyboardBurst, model.EventMouseRapid),
			Build: func(e model.Event) model.Intervention {
				reason := fmt.Sprintf("Noticed %s with %s severity. Let it out.", e.Type, e.Severity)
				return model.NewIntervention(model.InterventionScream, Source, reason, 0.7, model.Params{
					model.ParamDuration: float64(ScreamDuration),
				})
			},
		},
	)
}
