package planner

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stoic/internal/eventbus"
	"stoic/internal/metrics"
	"stoic/internal/model"
)

func setup(t *testing.T, rules *RuleSet) (*eventbus.Bus, *[]model.Intervention) {
	t.Helper()
	bus := eventbus.New()
	p := New(bus, rules)
	require.NoError(t, p.Start())
	require.NoError(t, p.Start())
	t.Cleanup(p.Stop)

	var got []model.Intervention
	_, err := bus.OnIntervention(func(iv model.Intervention) error {
		got = append(got, iv)
		return nil
	})
	require.NoError(t, err)
	return bus, &got
}

func TestCPUEventsPlanBreathing(t *testing.T) {
	tests := []struct {
		name     string
		typ      model.EventType
		severity model.Severity
		value    float64
		urgency  float64
		reason   string
	}{
		{"critical", model.EventCPUCritical, model.SeverityCritical, 0.95, 0.9,
			"Detected critical CPU usage (95%). A short break could be helpful."},
		{"warning", model.EventCPUWarning, model.SeverityHigh, 0.75, 0.6,
			"Detected high CPU usage (75%). A short break could be helpful."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bus, got := setup(t, nil)
			e := model.NewEvent(tt.typ, "cpu-listener", tt.severity, tt.value, nil)
			require.NoError(t, bus.PublishEvent(e))

			require.Len(t, *got, 1)
			iv := (*got)[0]
			require.NoError(t, iv.Validate())
			assert.Equal(t, model.InterventionBreathing, iv.Type)
			assert.Equal(t, tt.urgency, iv.Urgency)
			assert.Equal(t, Source, iv.Source)
			assert.Equal(t, tt.reason, iv.Reason)

			d, ok := iv.Parameters.Float(model.ParamDuration)
			require.True(t, ok)
			assert.Equal(t, 60.0, d)
			pattern, _ := iv.Parameters.String(model.ParamPattern)
			assert.Equal(t, "4-7-8", pattern)
		})
	}
}

func TestUnmatchedEventsAreIgnored(t *testing.T) {
	bus, got := setup(t, nil)
	before := testutil.ToFloat64(metrics.PlannerDecisionsTotal.WithLabelValues("unmatched"))

	for _, typ := range []model.EventType{model.EventCPUNormal, model.EventIdleDetected, model.EventMemoryNormal} {
		require.NoError(t, bus.PublishEvent(model.NewEvent(typ, "test", model.SeverityLow, 0.1, nil)))
	}

	assert.Empty(t, *got)
	assert.Equal(t, before+3, testutil.ToFloat64(metrics.PlannerDecisionsTotal.WithLabelValues("unmatched")))
}

func TestOtherDefaultRules(t *testing.T) {
	tests := []struct {
		typ  model.EventType
		want model.InterventionType
		key  string
	}{
		{model.EventMemoryCritical, model.InterventionQuote, model.ParamQuote},
		{model.EventBuildFailed, model.InterventionQuestion, model.ParamQuestion},
		{model.EventGitResetFrequent, model.InterventionQuestion, model.ParamQuestion},
		{model.EventKeyboardBurst, model.InterventionScream, model.ParamDuration},
		{model.EventMouseRapid, model.InterventionScream, model.ParamDuration},
	}
	for _, tt := range tests {
		t.Run(string(tt.typ), func(t *testing.T) {
			bus, got := setup(t, nil)
			require.NoError(t, bus.PublishEvent(model.NewEvent(tt.typ, "test", model.SeverityCritical, 0.97, nil)))
			require.Len(t, *got, 1)
			assert.Equal(t, tt.want, (*got)[0].Type)
			assert.Contains(t, (*got)[0].Parameters, tt.key)
		})
	}
}

func TestInvalidInterventionIsDropped(t *testing.T) {
	broken := NewRuleSet(Rule{
		Name:     "broken",
		Priority: 1,
		Match:    typeIn(model.EventCPUWarning),
		Build: func(e model.Event) model.Intervention {
			return model.NewIntervention(model.InterventionBreathing, Source, "", 0.6, nil) // empty reason
		},
	})
	bus, got := setup(t, broken)
	before := testutil.ToFloat64(metrics.PlannerDecisionsTotal.WithLabelValues("dropped"))

	require.NoError(t, bus.PublishEvent(model.NewEvent(model.EventCPUWarning, "cpu-listener", model.SeverityHigh, 0.8, nil)))
	assert.Empty(t, *got)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.PlannerDecisionsTotal.WithLabelValues("dropped")))
}

func TestPriorityOrdering(t *testing.T) {
	build := func(typ model.InterventionType) func(model.Event) model.Intervention {
		return func(model.Event) model.Intervention {
			return model.NewIntervention(typ, Source, "r", 0.5, nil)
		}
	}
	always := func(model.Event) bool { return true }
	rs := NewRuleSet(
		Rule{Name: "low", Priority: 1, Match: always, Build: build(model.InterventionQuote)},
		Rule{Name: "high", Priority: 10, Match: always, Build: build(model.InterventionScream)},
		Rule{Name: "high-later", Priority: 10, Match: always, Build: build(model.InterventionQuestion)},
	)

	p := New(eventbus.New(), rs)
	iv, rule, ok, err := p.Plan(model.NewEvent(model.EventIdleDetected, "t", model.SeverityLow, 0, nil))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "high", rule)
	assert.Equal(t, model.InterventionScream, iv.Type)

	assert.True(t, rs.Remove("high"))
	assert.False(t, rs.Remove("missing"))
	assert.Equal(t, []string{"low", "high-later"}, rs.Names())
	first, ok := rs.MatchFirst(model.Event{})
	require.True(t, ok)
	assert.Equal(t, "high-later", first.Name)
}

func TestStopUnsubscribes(t *testing.T) {
	bus := eventbus.New()
	p := New(bus, nil)
	require.NoError(t, p.Start())
	assert.Equal(t, 1, bus.Subscribers(eventbus.TopicEvent))
	p.Stop()
	p.Stop()
	assert.Equal(t, 0, bus.Subscribers(eventbus.TopicEvent))
}
