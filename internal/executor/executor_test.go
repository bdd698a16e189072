package executor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"stoic/internal/eventbus"
	"stoic/internal/model"
	"stoic/internal/notify"
)

type recordingNotifier struct {
	mu       sync.Mutex
	requests []notify.Request
	out      notify.Outcome
	err      error
	block    chan struct{}
}

func (r *recordingNotifier) Name() string { return "recording" }

func (r *recordingNotifier) Notify(ctx context.Context, req notify.Request) (notify.Outcome, error) {
	r.mu.Lock()
	r.requests = append(r.requests, req)
	block := r.block
	r.mu.Unlock()
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return notify.Outcome{}, ctx.Err()
		}
	}
	return r.out, r.err
}

func (r *recordingNotifier) all() []notify.Request {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notify.Request(nil), r.requests...)
}

type feedbackLog struct {
	mu      sync.Mutex
	entries []model.Feedback
}

func (f *feedbackLog) RecordFeedback(_ context.Context, fb model.Feedback) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, fb)
	return nil
}

type stubPhraser struct {
	text string
	err  error
}

func (s stubPhraser) Phrase(context.Context, model.Intervention, string) (string, error) {
	return s.text, s.err
}

func newExecutor(t *testing.T, opts Options) (*eventbus.Bus, *Executor) {
	t.Helper()
	bus := eventbus.New()
	ex := New(bus, opts)
	require.NoError(t, ex.Start())
	return bus, ex
}

func breathing(duration float64) model.Intervention {
	return model.NewIntervention(model.InterventionBreathing, "simple-rules-planner", "Detected high CPU usage (75%). A short break could be helpful.", 0.6,
		model.Params{model.ParamDuration: duration, model.ParamPattern: "4-7-8"})
}

func TestBreathingNotifiesExactlyOnce(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	n := &recordingNotifier{out: notify.Outcome{Sink: "recording", Action: "Start"}}
	fb := &feedbackLog{}
	bus, ex := newExecutor(t, Options{Notifier: n, Feedback: fb})

	iv := breathing(45)
	require.NoError(t, bus.PublishIntervention(iv))
	ex.Wait()

	reqs := n.all()
	require.Len(t, reqs, 1)
	assert.Equal(t, "High CPU Usage Detected!", reqs[0].Title)
	assert.Equal(t, "How about a quick 45-second breathing exercise?", reqs[0].Message)
	assert.Equal(t, "Stoic Agent Suggestion", reqs[0].Subtitle)
	assert.Equal(t, []string{"Start", "Dismiss"}, reqs[0].Actions)
	assert.Equal(t, 30*time.Second, reqs[0].Timeout)
	assert.True(t, reqs[0].Sound)

	require.Len(t, fb.entries, 1)
	assert.Equal(t, iv.ID, fb.entries[0].InterventionID)
	assert.True(t, fb.entries[0].Delivered)
	assert.True(t, fb.entries[0].Accepted())

	ex.Stop(context.Background())
}

func TestUnknownTypeDoesNotNotify(t *testing.T) {
	n := &recordingNotifier{}
	_, ex := newExecutor(t, Options{Notifier: n})

	iv := breathing(60)
	iv.Type = "suggest_nap"
	require.NoError(t, ex.HandleIntervention(iv))
	ex.Wait()
	assert.Empty(t, n.all())
}

func TestNotificationFailureIsAbsorbed(t *testing.T) {
	n := &recordingNotifier{err: errors.New("notifier crashed")}
	fb := &feedbackLog{}
	bus, ex := newExecutor(t, Options{Notifier: n, Feedback: fb})

	require.NoError(t, bus.PublishIntervention(breathing(60)))
	ex.Wait()

	assert.Len(t, n.all(), 1, "no retry")
	require.Len(t, fb.entries, 1)
	assert.False(t, fb.entries[0].Delivered)
	assert.Equal(t, "notifier crashed", fb.entries[0].Error)
}

func TestPublishDoesNotWaitForNotification(t *testing.T) {
	n := &recordingNotifier{block: make(chan struct{})}
	bus, ex := newExecutor(t, Options{Notifier: n})

	done := make(chan struct{})
	go func() {
		_ = bus.PublishIntervention(breathing(60))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on notification")
	}

	close(n.block)
	ex.Wait()
}

func TestStopCancelsAfterGrace(t *testing.T) {
	n := &recordingNotifier{block: make(chan struct{})}
	bus, ex := newExecutor(t, Options{Notifier: n})
	require.NoError(t, bus.PublishIntervention(breathing(60)))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	ex.Stop(ctx)

	assert.Equal(t, 0, bus.Subscribers(eventbus.TopicIntervention))
}

func TestPhraserRewritesQuestionsOnly(t *testing.T) {
	n := &recordingNotifier{}
	_, ex := newExecutor(t, Options{Notifier: n, Phraser: stubPhraser{text: "rephrased"}})

	q := model.NewIntervention(model.InterventionQuestion, "p", "build failed", 0.5,
		model.Params{model.ParamQuestion: "What can you control?"})
	require.NoError(t, ex.HandleIntervention(q))
	require.NoError(t, ex.HandleIntervention(breathing(60)))
	ex.Wait()

	messages := map[string]bool{}
	for _, r := range n.all() {
		messages[r.Message] = true
	}
	assert.True(t, messages["rephrased"])
	assert.True(t, messages["How about a quick 60-second breathing exercise?"])
}

func TestPhraserFailureFallsBack(t *testing.T) {
	n := &recordingNotifier{}
	_, ex := newExecutor(t, Options{Notifier: n, Phraser: stubPhraser{err: errors.New("offline")}})

	quote := model.NewIntervention(model.InterventionQuote, "p", "memory", 0.4,
		model.Params{model.ParamQuote: "Waste no more time arguing what a good man should be. Be one."})
	require.NoError(t, ex.HandleIntervention(quote))
	ex.Wait()

	reqs := n.all()
	require.Len(t, reqs, 1)
	assert.Equal(t, "Waste no more time arguing what a good man should be. Be one.", reqs[0].Message)
}

func TestDisabledNotificationsAreNotFailures(t *testing.T) {
	gate := notify.Gate{Inner: &recordingNotifier{}, Enabled: func() bool { return false }}
	fb := &feedbackLog{}
	_, ex := newExecutor(t, Options{Notifier: gate, Feedback: fb})

	require.NoError(t, ex.HandleIntervention(breathing(60)))
	ex.Wait()
	require.Len(t, fb.entries, 1)
	assert.False(t, fb.entries[0].Delivered)
}

func TestStartRequiresNotifier(t *testing.T) {
	ex := New(eventbus.New(), Options{})
	require.Error(t, ex.Start())
}

func TestInterventionAfterStopIsDropped(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	n := &recordingNotifier{}
	_, ex := newExecutor(t, Options{Notifier: n})
	ex.Stop(context.Background())

	// A delivery round that snapshotted the handler before Unsubscribe.
	require.NoError(t, ex.HandleIntervention(breathing(60)))
	ex.Wait()
	assert.Empty(t, n.all())
	require.Error(t, ex.Start(), "a stopped executor cannot be restarted")
}
