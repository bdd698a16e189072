package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
	tele "gopkg.in/telebot.v3"

	stoiclog "stoic/internal/log"
)

const actionUnique = "stoic_action"

// TelegramConfig holds Telegram-specific configuration.
type TelegramConfig struct {
	Token         string
	ChatID        int64
	AllowedIDs    []int64 // users allowed to press action buttons; empty allows all
	RatePerMinute int     // default 20
}

// messageSender is the part of *tele.Bot used to deliver notifications.
type messageSender interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// Telegram sends notifications to one chat and reports inline button presses.
type Telegram struct {
	mu         sync.Mutex
	cfg        TelegramConfig
	allowedIDs map[int64]bool
	bot        *tele.Bot
	sender     messageSender
	limiter    *rate.Limiter
	running    bool
	logger     zerolog.Logger

	pendingMu sync.Mutex
	pending   map[int]chan string // message id -> chosen action
}

// NewTelegram creates a stopped Telegram sink.
func NewTelegram(cfg TelegramConfig) *Telegram {
	allowed := make(map[int64]bool, len(cfg.AllowedIDs))
	for _, id := range cfg.AllowedIDs {
		allowed[id] = true
	}
	rpm := cfg.RatePerMinute
	if rpm <= 0 {
		rpm = 20
	}
	return &Telegram{
		cfg:        cfg,
		allowedIDs: allowed,
		limiter:    rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), 1),
		pending:    make(map[int]chan string),
		logger:     stoiclog.WithComponent("notify").With().Str("sink", "telegram").Logger(),
	}
}

func (t *Telegram) Name() string { return "telegram" }

// Start connects the bot and begins long polling for button presses.
func (t *Telegram) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.running {
		return nil
	}

	pref := tele.Settings{
		Token:  t.cfg.Token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	}

	bot, err := tele.NewBot(pref)
	if err != nil {
		return fmt.Errorf("telegram bot init: %w", err)
	}

	bot.Handle("\f"+actionUnique, func(c tele.Context) error {
		sender := c.Sender()
		if sender != nil && len(t.allowedIDs) > 0 && !t.allowedIDs[sender.ID] {
			t.logger.Warn().Int64("user", sender.ID).Str("username", sender.Username).Msg("unauthorized action press")
			return c.Respond()
		}
		cb := c.Callback()
		if cb == nil || cb.Message == nil {
			return nil
		}
		t.resolve(cb.Message.ID, cb.Data)
		return c.Respond(&tele.CallbackResponse{Text: "Got it: " + cb.Data})
	})

	t.bot = bot
	t.sender = bot
	t.running = true

	go func() {
		bot.Start()
	}()

	// Stop bot when context is cancelled
	go func() {
		<-ctx.Done()
		_ = t.Stop(context.Background())
	}()

	t.logger.Info().Int64("chat", t.cfg.ChatID).Msg("telegram sink started")
	return nil
}

func (t *Telegram) Stop(_ context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.bot != nil && t.running {
		t.bot.Stop()
	}
	t.running = false
	return nil
}

// Notify sends the request and, when actions and a timeout are set, waits
// for a button press.
func (t *Telegram) Notify(ctx context.Context, req Request) (Outcome, error) {
	out := Outcome{Sink: t.Name()}

	t.mu.Lock()
	sender := t.sender
	t.mu.Unlock()
	if sender == nil {
		return out, errors.New("telegram bot not started")
	}

	if err := t.limiter.Wait(ctx); err != nil {
		return out, fmt.Errorf("telegram rate limit: %w", err)
	}

	opts := []interface{}{&tele.SendOptions{DisableNotification: !req.Sound}}
	if len(req.Actions) > 0 {
		markup := &tele.ReplyMarkup{}
		btns := make([]tele.Btn, 0, len(req.Actions))
		for _, a := range req.Actions {
			btns = append(btns, markup.Data(a, actionUnique, a))
		}
		markup.Inline(markup.Row(btns...))
		opts = append(opts, markup)
	}

	msg, err := sender.Send(&tele.Chat{ID: t.cfg.ChatID}, formatTelegram(req), opts...)
	if err != nil {
		return out, fmt.Errorf("telegram send: %w", err)
	}
	if len(req.Actions) == 0 || req.Timeout <= 0 || msg == nil {
		return out, nil
	}

	ch := make(chan string, 1)
	t.pendingMu.Lock()
	t.pending[msg.ID] = ch
	t.pendingMu.Unlock()
	defer func() {
		t.pendingMu.Lock()
		delete(t.pending, msg.ID)
		t.pendingMu.Unlock()
	}()

	timer := time.NewTimer(req.Timeout)
	defer timer.Stop()
	select {
	case action := <-ch:
		out.Action = action
	case <-timer.C:
	case <-ctx.Done():
		return out, ctx.Err()
	}
	return out, nil
}

func (t *Telegram) resolve(messageID int, action string) {
	t.pendingMu.Lock()
	ch, ok := t.pending[messageID]
	t.pendingMu.Unlock()
	if !ok {
		return
	}
	select {
	case ch <- action:
	default:
	}
}

// Telegram limit is 4096 characters per message.
const maxTelegramText = 4000

func formatTelegram(req Request) string {
	var b strings.Builder
	b.WriteString(req.Title)
	b.WriteString("\n\n")
	b.WriteString(req.Message)
	if req.Subtitle != "" {
		b.WriteString("\n\n")
		b.WriteString(req.Subtitle)
	}
	text := b.String()
	if len(text) > maxTelegramText {
		text = text[:maxTelegramText]
	}
	return text
}
