package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/aretw0/liteforge/internal/cli"
	"github.com/aretw0/liteforge/pkg/manifest"
)

var errNoManifestFile = errors.New("no manifest file configured (set manifestFile or LITEFORGE_MANIFEST_FILE)")

var manifestCmd = &cobra.Command{
	Use:   "manifest",
	Short: "Inspect or patch the app manifest",
}

var manifestShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective manifest as JSON",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		store := cli.CreateManifestStore(cmd.Context(), cfg, commandLogger(cmd, cfg, true))

		if target, _ := cmd.Flags().GetString("route"); target != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", target, store.Get().Route(target))
			return nil
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(store.Get())
	},
}

var manifestSetCmd = &cobra.Command{
	Use:   "set [patch]",
	Short: "Deep-merge a JSON or YAML patch into the manifest file",
	Long: `Applies a patch to the persisted manifest. Nested objects merge; lists and values replace.
The patch is read from the argument, or from --file.

  liteforge manifest set '{"minBuildNumber": 12, "splash": {"title": "Shop"}}'`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cfg.ManifestFile == "" {
			return errNoManifestFile
		}

		var raw []byte
		file, _ := cmd.Flags().GetString("file")
		switch {
		case file != "":
			raw, err = os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("read patch: %w", err)
			}
		case len(args) == 1:
			raw = []byte(args[0])
		default:
			return errors.New("a patch argument or --file is required")
		}

		patch, err := parsePatch(raw)
		if err != nil {
			return err
		}

		store := cli.CreateManifestStore(cmd.Context(), cfg, commandLogger(cmd, cfg, true))
		updated, err := store.Update(patch)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Manifest updated: %s (minBuildNumber %d)\n", cfg.ManifestFile, updated.MinBuildNumber)
		return nil
	},
}

var manifestValidateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Check that an override file merges into a valid manifest",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := manifest.Load(args[0], manifest.Default())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Manifest OK: %s (%d link patterns, minBuildNumber %d)\n",
			args[0], len(m.Webview.LinkPatterns), m.MinBuildNumber)
		return nil
	},
}

var manifestExportCmd = &cobra.Command{
	Use:   "export <file>",
	Short: "Write the effective manifest to a JSON or YAML file",
	Long:  "Writes the effective manifest atomically. A .yaml or .yml extension selects YAML, anything else JSON.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		store := cli.CreateManifestStore(cmd.Context(), cfg, commandLogger(cmd, cfg, true))
		if err := manifest.Save(args[0], store.Get()); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Manifest written: %s\n", args[0])
		return nil
	},
}

// parsePatch accepts JSON or YAML; YAML is a superset of JSON.
func parsePatch(raw []byte) (map[string]any, error) {
	if strings.TrimSpace(string(raw)) == "" {
		return nil, fmt.Errorf("%w: empty patch", manifest.ErrInvalidManifest)
	}
	patch := map[string]any{}
	if err := yaml.Unmarshal(raw, &patch); err != nil {
		return nil, fmt.Errorf("%w: %v", manifest.ErrInvalidManifest, err)
	}
	return patch, nil
}

func init() {
	rootCmd.AddCommand(manifestCmd)
	manifestCmd.AddCommand(manifestShowCmd, manifestSetCmd, manifestValidateCmd, manifestExportCmd)
	manifestShowCmd.Flags().String("route", "", "Print the action (webview or browser) chosen for this URL instead")
	manifestSetCmd.Flags().StringP("file", "f", "", "Read the patch from a JSON or YAML file")
}
