package notify

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v3"
)

type stubSink struct {
	name   string
	out    Outcome
	err    error
	mu     sync.Mutex
	calls  int
	starts int
	stops  int
}

func (s *stubSink) Name() string { return s.name }

func (s *stubSink) Notify(context.Context, Request) (Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.out, s.err
}

type lifecycleSink struct{ stubSink }

func (l *lifecycleSink) Start(context.Context) error { l.starts++; return nil }
func (l *lifecycleSink) Stop(context.Context) error  { l.stops++; return nil }

func breathingRequest() Request {
	return Request{
		Title:    "High CPU Usage Detected!",
		Message:  "How about a quick 60-second breathing exercise?",
		Subtitle: "Stoic Agent Suggestion",
		Actions:  []string{"Start", "Dismiss"},
		Timeout:  30 * time.Second,
	}
}

func TestConsolePrintsFramedRequest(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf)

	out, err := c.Notify(context.Background(), breathingRequest())
	require.NoError(t, err)
	assert.Equal(t, "console", out.Sink)
	assert.Empty(t, out.Action)

	text := buf.String()
	assert.Contains(t, text, "High CPU Usage Detected!")
	assert.Contains(t, text, "60-second breathing exercise")
	assert.Contains(t, text, "[Start] [Dismiss]")
	assert.Contains(t, text, "╭")
}

func TestConsoleHonorsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewConsole(&bytes.Buffer{}).Notify(ctx, breathingRequest())
	require.ErrorIs(t, err, context.Canceled)
}

func TestGate(t *testing.T) {
	inner := &stubSink{name: "stub"}
	enabled := false
	g := Gate{Inner: inner, Enabled: func() bool { return enabled }}

	_, err := g.Notify(context.Background(), Request{})
	require.ErrorIs(t, err, ErrDisabled)
	assert.Equal(t, 0, inner.calls)

	enabled = true
	_, err = g.Notify(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, 1, inner.calls)
}

func TestFanoutPrefersOutcomeWithAction(t *testing.T) {
	f := NewFanout(
		&stubSink{name: "a", out: Outcome{Sink: "a"}},
		&stubSink{name: "b", out: Outcome{Sink: "b", Action: "Start"}},
	)
	out, err := f.Notify(context.Background(), breathingRequest())
	require.NoError(t, err)
	assert.Equal(t, Outcome{Sink: "b", Action: "Start"}, out)
	assert.Equal(t, []string{"a", "b"}, f.List())
}

func TestFanoutPartialFailureSucceeds(t *testing.T) {
	f := NewFanout(
		&stubSink{name: "a", err: errors.New("offline")},
		&stubSink{name: "b"},
	)
	out, err := f.Notify(context.Background(), breathingRequest())
	require.NoError(t, err)
	assert.Equal(t, "b", out.Sink)
}

func TestFanoutAllFail(t *testing.T) {
	boom := errors.New("boom")
	f := NewFanout(
		&stubSink{name: "a", err: boom},
		&stubSink{name: "b", err: errors.New("offline")},
	)
	_, err := f.Notify(context.Background(), breathingRequest())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "b: offline")
}

func TestFanoutAllDisabled(t *testing.T) {
	f := NewFanout(Gate{Inner: &stubSink{name: "a"}, Enabled: func() bool { return false }})
	_, err := f.Notify(context.Background(), breathingRequest())
	require.ErrorIs(t, err, ErrDisabled)

	_, err = NewFanout().Notify(context.Background(), breathingRequest())
	require.ErrorIs(t, err, ErrNoSinks)
}

func TestFanoutLifecycle(t *testing.T) {
	lc := &lifecycleSink{stubSink: stubSink{name: "lc"}}
	f := NewFanout(&stubSink{name: "plain"}, lc)
	require.NoError(t, f.StartAll(context.Background()))
	f.StopAll(context.Background())
	assert.Equal(t, 1, lc.starts)
	assert.Equal(t, 1, lc.stops)
}

type fakeSender struct {
	mu   sync.Mutex
	sent []string
	opts [][]interface{}
	err  error
}

func (f *fakeSender) Send(_ tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.sent = append(f.sent, what.(string))
	f.opts = append(f.opts, opts)
	return &tele.Message{ID: 7}, nil
}

func newTestTelegram(s messageSender) *Telegram {
	tg := NewTelegram(TelegramConfig{ChatID: 1, RatePerMinute: 6000})
	tg.sender = s
	return tg
}

func TestTelegramWaitsForAction(t *testing.T) {
	sender := &fakeSender{}
	tg := newTestTelegram(sender)

	go func() {
		deadline := time.Now().Add(time.Second)
		for time.Now().Before(deadline) {
			tg.pendingMu.Lock()
			waiting := tg.pending[7] != nil
			tg.pendingMu.Unlock()
			if waiting {
				tg.resolve(7, "Start")
				return
			}
			time.Sleep(time.Millisecond)
		}
	}()

	out, err := tg.Notify(context.Background(), breathingRequest())
	require.NoError(t, err)
	assert.Equal(t, Outcome{Sink: "telegram", Action: "Start"}, out)

	require.Len(t, sender.sent, 1)
	assert.Contains(t, sender.sent[0], "High CPU Usage Detected!")
	require.Len(t, sender.opts[0], 2, "send options plus inline keyboard")
	markup, ok := sender.opts[0][1].(*tele.ReplyMarkup)
	require.True(t, ok)
	require.Len(t, markup.InlineKeyboard, 1)
	assert.Len(t, markup.InlineKeyboard[0], 2)
}

func TestTelegramTimesOutWithoutAction(t *testing.T) {
	tg := newTestTelegram(&fakeSender{})
	req := breathingRequest()
	req.Timeout = 10 * time.Millisecond

	out, err := tg.Notify(context.Background(), req)
	require.NoError(t, err)
	assert.Empty(t, out.Action)

	tg.pendingMu.Lock()
	defer tg.pendingMu.Unlock()
	assert.Empty(t, tg.pending)
}

func TestTelegramSendFailure(t *testing.T) {
	tg := newTestTelegram(&fakeSender{err: errors.New("403")})
	_, err := tg.Notify(context.Background(), breathingRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "telegram send")
}

func TestTelegramNotStarted(t *testing.T) {
	_, err := NewTelegram(TelegramConfig{ChatID: 1}).Notify(context.Background(), Request{Title: "x"})
	require.Error(t, err)
}
