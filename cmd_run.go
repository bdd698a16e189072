package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the agent in the foreground",
	Long:  `Start the listeners, planner and notifier and run until interrupted (Ctrl+C).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		loader, err := loaderFor(cmd)
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return NewApp(loader, cmd.OutOrStdout()).Run(ctx)
	},
}

func init() {
	rootCmd.RunE = runCmd.RunE
	rootCmd.AddCommand(runCmd)
}
