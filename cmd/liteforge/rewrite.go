package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/liteforge"
	"github.com/aretw0/liteforge/internal/cli"
	"github.com/aretw0/liteforge/internal/presentation/tui"
	"github.com/aretw0/liteforge/pkg/domain"
	"github.com/aretw0/liteforge/pkg/rewrite"
)

var rewriteCmd = &cobra.Command{
	Use:   "rewrite <url> <appName> <packageName>",
	Short: "Customize the template project without building",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		logger := commandLogger(cmd, cfg, true)

		req, err := domain.NewBuildRequest(args[0], args[1], args[2])
		if err != nil {
			return err
		}
		if sa, _ := cmd.Flags().GetString("service-account"); sa != "" {
			req = req.WithServiceAccount(sa)
			if err := req.Validate(); err != nil {
				return err
			}
		}

		ctx := cli.NewSignalContext(cmd.Context())
		defer ctx.Cancel()

		forge, closeForge, err := cli.CreateForge(ctx, cfg, logger, cli.ForgeOptions{})
		if err != nil {
			return err
		}
		defer closeForge()

		out := cmd.OutOrStdout()
		printEvent := tui.DetectPrinter(out)
		if plain, _ := cmd.Flags().GetBool("plain"); plain {
			printEvent = liteforge.PlainPrinter
		}
		var opts []rewrite.Option
		if raw, _ := cmd.Flags().GetBool("raw-markup"); raw {
			opts = append(opts, rewrite.WithMarkupEscaping(false))
		}

		report, err := forge.Rewrite(ctx, req, opts...)
		if report != nil {
			for _, step := range report.Steps {
				for _, e := range liteforge.StepEvents(step) {
					printEvent(out, e)
				}
			}
			if report.PlaceholderDescriptor {
				cli.PrintSystemMessage(os.Stderr, "google-services.json is a placeholder: analytics will not work until it is replaced")
			}
		}
		if err != nil {
			printEvent(out, domain.Event{Type: domain.EventError, Message: err.Error()})
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(rewriteCmd)
	rewriteCmd.Flags().String("service-account", "", "Path to a google-services.json to install")
	rewriteCmd.Flags().Bool("plain", false, "Disable colors")
	rewriteCmd.Flags().Bool("raw-markup", false, "Insert the app name into strings.xml without escaping")
}
