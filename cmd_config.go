package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"stoic/internal/config"
	"stoic/internal/security"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and validate the configuration",
}

var configCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate the configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		loader, err := loaderFor(cmd)
		if err != nil {
			return err
		}
		cfg, err := loader.Load()
		if err != nil {
			return err
		}
		if err := config.Validate(cfg); err != nil {
			red := color.New(color.FgRed).SprintFunc()
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", red("✗"), loader.FilePath())
			return err
		}
		green := color.New(color.FgGreen).SprintFunc()
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", green("✓"), loader.FilePath())
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration with secrets masked",
	RunE: func(cmd *cobra.Command, args []string) error {
		loader, err := loaderFor(cmd)
		if err != nil {
			return err
		}
		cfg, err := loader.Load()
		if err != nil {
			return err
		}
		if cfg.LLM.APIKey != "" && cfg.LLM.APIKey != security.KeyringPlaceholder {
			cfg.LLM.APIKey = security.MaskKey(cfg.LLM.APIKey)
		}
		if tg := cfg.Notifications.Telegram; tg != nil && tg.Token != security.KeyringPlaceholder {
			tg.Token = security.MaskKey(tg.Token)
		}
		data, err := yaml.Marshal(cfg)
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config file if none exists",
	RunE: func(cmd *cobra.Command, args []string) error {
		loader, err := loaderFor(cmd)
		if err != nil {
			return err
		}
		force, _ := cmd.Flags().GetBool("force")
		if !force && fileExists(loader.FilePath()) {
			return fmt.Errorf("%s already exists (use --force to overwrite)", loader.FilePath())
		}
		if err := loader.Save(config.Defaults()); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", loader.FilePath())
		return nil
	},
}

func init() {
	configInitCmd.Flags().Bool("force", false, "Overwrite an existing file")
	configCmd.AddCommand(configCheckCmd, configShowCmd, configInitCmd)
	rootCmd.AddCommand(configCmd)
}
