package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/fatih/color"
)

// Console prints notifications as a framed block on a writer.
type Console struct {
	mu  sync.Mutex
	out io.Writer
}

// NewConsole writes to out, or stdout when nil.
func NewConsole(out io.Writer) *Console {
	if out == nil {
		out = os.Stdout
	}
	return &Console{out: out}
}

func (c *Console) Name() string { return "console" }

func (c *Console) Notify(ctx context.Context, req Request) (Outcome, error) {
	if err := ctx.Err(); err != nil {
		return Outcome{}, err
	}

	title := color.New(color.FgYellow, color.Bold).SprintFunc()
	subtle := color.New(color.FgCyan).SprintFunc()
	action := color.New(color.FgGreen).SprintFunc()

	lines := []string{req.Title, "", req.Message}
	if req.Subtitle != "" {
		lines = append(lines, "", req.Subtitle)
	}
	if len(req.Actions) > 0 {
		lines = append(lines, "", "["+strings.Join(req.Actions, "] [")+"]")
	}

	width := 0
	for _, l := range lines {
		if n := utf8.RuneCountInString(l); n > width {
			width = n
		}
	}

	var b strings.Builder
	if req.Sound {
		b.WriteString("\a")
	}
	border := strings.Repeat("─", width+2)
	fmt.Fprintf(&b, "╭%s╮\n", border)
	for i, l := range lines {
		pad := strings.Repeat(" ", width-utf8.RuneCountInString(l))
		styled := l
		switch {
		case i == 0:
			styled = title(l)
		case l != "" && l == req.Subtitle:
			styled = subtle(l)
		case len(req.Actions) > 0 && i == len(lines)-1:
			styled = action(l)
		}
		fmt.Fprintf(&b, "│ %s%s │\n", styled, pad)
	}
	fmt.Fprintf(&b, "╰%s╯\n", border)

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := io.WriteString(c.out, b.String()); err != nil {
		return Outcome{Sink: c.Name()}, fmt.Errorf("console write: %w", err)
	}
	return Outcome{Sink: c.Name()}, nil
}
