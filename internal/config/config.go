// Package config loads liteforge process settings from an optional file and the environment.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aretw0/liteforge"
	"github.com/aretw0/liteforge/pkg/adapters/process"
	"github.com/aretw0/liteforge/pkg/domain"
	"github.com/aretw0/liteforge/pkg/guard"
	"github.com/aretw0/liteforge/pkg/orchestrator"
)

// Config is the resolved process configuration.
type Config struct {
	Project        string        `mapstructure:"project"`
	UploadDir      string        `mapstructure:"uploadDir"`
	Addr           string        `mapstructure:"addr"`
	BuildTimeout   time.Duration `mapstructure:"buildTimeout"`
	MaxUploadBytes int64         `mapstructure:"maxUploadBytes"`
	RedisAddr      string        `mapstructure:"redisAddr"`
	LockTTL        time.Duration `mapstructure:"lockTTL"`
	ManifestFile   string        `mapstructure:"manifestFile"`
	BaseURL        string        `mapstructure:"baseURL"`
	ToolsFile      string        `mapstructure:"toolsFile"`
	LogLevel       string        `mapstructure:"logLevel"`
	LogFormat      string        `mapstructure:"logFormat"`
	Toolchain      Toolchain     `mapstructure:"toolchain"`
}

// Toolchain overrides the stock command lines. Empty fields keep the defaults.
type Toolchain struct {
	Keytool    string `mapstructure:"keytool"`
	CacheReset string `mapstructure:"cacheReset"`
	Build      string `mapstructure:"build"`
}

// Defaults returns the configuration used when nothing is set.
func Defaults() Config {
	return Config{
		Project:        ".",
		UploadDir:      "uploads",
		Addr:           ":3000",
		BuildTimeout:   orchestrator.DefaultTimeout,
		MaxUploadBytes: liteforge.DefaultMaxUploadBytes,
		LockTTL:        guard.DefaultTTL,
		LogLevel:       "info",
		LogFormat:      "text",
	}
}

// Level parses LogLevel, falling back to info.
func (c Config) Level() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(c.LogLevel))); err != nil {
		return slog.LevelInfo
	}
	return level
}

// Tools resolves the toolchain: stock commands, then the tools file, then the inline overrides.
func (c Config) Tools() (map[string]process.ProcessConfig, error) {
	tools := process.DefaultToolchain()
	if c.ToolsFile != "" {
		fromFile, err := process.LoadTools(c.ToolsFile)
		if err != nil {
			return nil, err
		}
		tools = process.MergeTools(tools, fromFile)
	}

	inline := map[string]string{
		domain.ToolKeytool:    c.Toolchain.Keytool,
		domain.ToolCacheReset: c.Toolchain.CacheReset,
		domain.ToolBuild:      c.Toolchain.Build,
	}
	overrides := make(map[string]process.ProcessConfig)
	for name, line := range inline {
		if strings.TrimSpace(line) == "" {
			continue
		}
		tool, err := process.ParseCommandLine(name, line)
		if err != nil {
			return nil, fmt.Errorf("toolchain.%s: %w", name, err)
		}
		overrides[name] = tool
	}
	return process.MergeTools(tools, overrides), nil
}

// ForgeOptions translates the configuration into liteforge options.
func (c Config) ForgeOptions() ([]liteforge.Option, error) {
	tools, err := c.Tools()
	if err != nil {
		return nil, err
	}
	opts := []liteforge.Option{
		liteforge.WithToolchain(tools),
		liteforge.WithUploadDir(c.UploadDir),
	}
	if c.BuildTimeout > 0 {
		opts = append(opts, liteforge.WithBuildTimeout(c.BuildTimeout))
	}
	if c.MaxUploadBytes > 0 {
		opts = append(opts, liteforge.WithMaxUploadBytes(c.MaxUploadBytes))
	}
	if c.LockTTL > 0 {
		opts = append(opts, liteforge.WithLockTTL(c.LockTTL))
	}
	return opts, nil
}
