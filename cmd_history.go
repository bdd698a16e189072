package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"stoic/internal/journal"
	"stoic/internal/model"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent events and interventions from the journal",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		loader, err := loaderFor(cmd)
		if err != nil {
			return err
		}
		cfg, err := loader.Load()
		if err != nil {
			return err
		}
		path := expandHome(cfg.Storage.Path)
		if path == "" || !fileExists(path) {
			return fmt.Errorf("no journal at %q", cfg.Storage.Path)
		}

		j, err := journal.OpenSQLite(path)
		if err != nil {
			return err
		}
		defer j.Close()
		return printHistory(cmd.Context(), cmd.OutOrStdout(), j, limit)
	},
}

func init() {
	historyCmd.Flags().IntP("limit", "n", 20, "Number of rows per table")
	rootCmd.AddCommand(historyCmd)
}

func printHistory(ctx context.Context, w io.Writer, j *journal.SQLite, limit int) error {
	if ctx == nil {
		ctx = context.Background()
	}
	events, err := j.RecentEvents(ctx, limit)
	if err != nil {
		return fmt.Errorf("read events: %w", err)
	}
	ivs, err := j.RecentInterventions(ctx, limit)
	if err != nil {
		return fmt.Errorf("read interventions: %w", err)
	}

	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()

	fmt.Fprintf(w, "%s\n", cyan("=== Events ==="))
	if len(events) == 0 {
		fmt.Fprintf(w, "  %s\n", gray("none"))
	}
	for _, e := range events {
		avg, _ := e.Metadata.Float(model.MetaAverage)
		fmt.Fprintf(w, "  %s  %s %-16s %-8s avg=%5.1f%%\n",
			gray(e.Timestamp.Format("2006-01-02 15:04:05")), severityColor(e.Severity)("●"), e.Type, e.Severity, avg)
	}

	fmt.Fprintf(w, "\n%s\n", cyan("=== Interventions ==="))
	if len(ivs) == 0 {
		fmt.Fprintf(w, "  %s\n", gray("none"))
	}
	for _, iv := range ivs {
		outcome := gray("no response")
		if fb, err := j.FeedbackFor(ctx, iv.ID); err == nil && len(fb) > 0 {
			outcome = describeFeedback(fb[len(fb)-1])
		}
		fmt.Fprintf(w, "  %s  %-24s urgency=%.1f  %s\n    %s\n",
			gray(iv.Timestamp.Format("2006-01-02 15:04:05")), iv.Type, iv.Urgency, outcome, iv.Reason)
	}
	return nil
}

func severityColor(s model.Severity) func(a ...interface{}) string {
	switch s {
	case model.SeverityCritical:
		return color.New(color.FgRed).SprintFunc()
	case model.SeverityHigh:
		return color.New(color.FgYellow).SprintFunc()
	default:
		return color.New(color.FgGreen).SprintFunc()
	}
}

func describeFeedback(f model.Feedback) string {
	switch {
	case f.Error != "":
		return color.New(color.FgRed).Sprint("failed: " + f.Error)
	case f.Action != "":
		return color.New(color.FgGreen).Sprintf("%s via %s", f.Action, f.Sink)
	default:
		return "delivered via " + f.Sink
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
