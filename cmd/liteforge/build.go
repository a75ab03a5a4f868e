package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/liteforge"
	"github.com/aretw0/liteforge/internal/cli"
	"github.com/aretw0/liteforge/internal/presentation/tui"
	"github.com/aretw0/liteforge/pkg/domain"
)

var buildCmd = &cobra.Command{
	Use:   "build [url] [appName] [packageName]",
	Short: "Customize the template and build a release APK",
	Long: `Rewrites the template project for the given website and runs the build toolchain.
Missing arguments are prompted for when stdin is a terminal.
Concurrent builds of the same project wait for each other.`,
	Args: cobra.MaximumNArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		logger := commandLogger(cmd, cfg, true)

		fields := make([]string, 3)
		copy(fields, args)
		req := domain.BuildRequest{URL: fields[0], AppName: fields[1], PackageName: fields[2]}
		if sa, _ := cmd.Flags().GetString("service-account"); sa != "" {
			req = req.WithServiceAccount(sa)
		}

		interactive := cli.IsTerminal(os.Stdin)
		if cli.NeedsPrompt(fields...) && !interactive {
			return cli.ErrNotInteractive
		}

		out := cmd.OutOrStdout()
		plain, _ := cmd.Flags().GetBool("plain")
		if noBanner, _ := cmd.Flags().GetBool("no-banner"); !noBanner && !plain {
			tui.PrintBanner(out)
		}

		ctx := cli.NewSignalContext(cmd.Context())
		defer ctx.Cancel()

		forge, closeForge, err := cli.CreateForge(ctx, cfg, logger, cli.ForgeOptions{})
		if err != nil {
			return err
		}
		defer closeForge()

		runner := liteforge.NewRunner()
		runner.Input = cmd.InOrStdin()
		runner.Output = out
		runner.Headless = !cli.NeedsPrompt(fields...)
		if !plain {
			runner.Printer = tui.DetectPrinter(out)
			runner.Renderer = tui.NewRenderer(100)
		}

		_, err = runner.Run(ctx, forge, req)
		if msg := cli.ExitMessage(err, ctx.Signal()); msg != "" {
			cli.PrintSystemMessage(out, "%s", msg)
		}
		if err != nil {
			return fmt.Errorf("build failed: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(buildCmd)
	buildCmd.Flags().String("service-account", "", "Path to a google-services.json to install before building")
	buildCmd.Flags().Bool("plain", false, "Disable colors, banner and markdown rendering")
	buildCmd.Flags().Bool("no-banner", false, "Do not print the banner")
}
