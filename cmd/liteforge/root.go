package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/liteforge/internal/cli"
	"github.com/aretw0/liteforge/internal/config"
	"github.com/aretw0/liteforge/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "liteforge",
	Short: "LiteForge turns a website into a WebView Android app",
	Long: `LiteForge customizes a React Native WebView template project for a website
(URL, app name, package name) and builds a release APK with the project's toolchain.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("project", "p", "", "Template project directory (default \".\")")
	rootCmd.PersistentFlags().String("config", "", "Config file (default \"liteforge.yaml\")")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
}

// loadConfig resolves the configuration with flag values taking precedence.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	loader := config.NewLoader()
	if cmd.Flags().Changed("project") {
		project, _ := cmd.Flags().GetString("project")
		loader.Set("project", project)
	}
	file, _ := cmd.Flags().GetString("config")
	return loader.Load(file)
}

// commandLogger builds the logger for a command. Quiet commands log nothing unless debugging.
func commandLogger(cmd *cobra.Command, cfg *config.Config, quiet bool) *slog.Logger {
	debug, _ := cmd.Flags().GetBool("debug")
	return cli.NewLogger(debug, cfg.Level(), quiet, logging.WithFormat(cfg.LogFormat))
}
