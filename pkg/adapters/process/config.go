package process

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/aretw0/liteforge/pkg/domain"
)

// ProcessConfig represents the configuration for an external tool execution.
type ProcessConfig struct {
	Name        string            `yaml:"name" json:"name"`
	Command     string            `yaml:"command" json:"command"`
	Args        []string          `yaml:"args" json:"args"`
	Environment map[string]string `yaml:"env" json:"env"`
	Description string            `yaml:"description" json:"description"`
}

// ConfigFile represents the structure of toolchain.yaml
type ConfigFile struct {
	Tools []ProcessConfig `yaml:"tools" json:"tools"`
}

// DefaultToolchain returns the commands used by the stock template.
func DefaultToolchain() map[string]ProcessConfig {
	return map[string]ProcessConfig{
		domain.ToolKeytool: {
			Name:        domain.ToolKeytool,
			Command:     "keytool",
			Description: "Generates the debug signing key",
		},
		domain.ToolCacheReset: {
			Name:        domain.ToolCacheReset,
			Command:     "yarn",
			Args:        []string{"start", "--reset-cache"},
			Description: "Starts Metro with a clean cache",
		},
		domain.ToolBuild: {
			Name:        domain.ToolBuild,
			Command:     "yarn",
			Args:        []string{"android:build"},
			Description: "Assembles the release APK",
		},
	}
}

// ParseCommandLine splits a whitespace-separated command line into a tool definition.
// Quoting is not interpreted.
func ParseCommandLine(name, line string) (ProcessConfig, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return ProcessConfig{}, fmt.Errorf("empty command line for tool %q", name)
	}
	return ProcessConfig{Name: name, Command: fields[0], Args: fields[1:]}, nil
}

// MergeTools overlays override onto base by tool name.
func MergeTools(base, override map[string]ProcessConfig) map[string]ProcessConfig {
	out := make(map[string]ProcessConfig, len(base)+len(override))
	for name, tool := range base {
		out[name] = tool
	}
	for name, tool := range override {
		out[name] = tool
	}
	return out
}

// LoadTools reads a configuration file (YAML or JSON) and returns a map of tool names to configs.
func LoadTools(path string) (map[string]ProcessConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// A missing file means no overrides.
			return map[string]ProcessConfig{}, nil
		}
		return nil, fmt.Errorf("failed to read tools config: %w", err)
	}

	var cfg ConfigFile
	ext := strings.ToLower(filepath.Ext(path))

	if ext == ".json" {
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
		}
	} else {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
		}
	}

	toolMap := make(map[string]ProcessConfig)
	for _, tool := range cfg.Tools {
		if tool.Name == "" {
			continue
		}
		toolMap[tool.Name] = tool
	}

	return toolMap, nil
}
