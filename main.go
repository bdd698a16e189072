package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"stoic/internal/config"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "stoic",
	Short: "Local digital wellness agent",
	Long: `Stoic watches CPU and memory pressure on this machine and, when load
stays high, suggests a short break through desktop-console or Telegram
notifications.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to config.yaml (default ~/.stoic/config.yaml)")
}

// loaderFor returns a loader for --config, or the default location.
func loaderFor(cmd *cobra.Command) (*config.Loader, error) {
	path, _ := cmd.Flags().GetString("config")
	if path != "" {
		return config.NewLoaderAt(path), nil
	}
	return config.NewLoader()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
