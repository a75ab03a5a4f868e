package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Environment variable prefix for liteforge configuration.
const envPrefix = "LITEFORGE"

// DefaultFile is read from the working directory when no file is given.
const DefaultFile = "liteforge.yaml"

// Loader merges defaults, an optional config file and the environment.
// Environment variables take precedence over file values.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a loader with every key bound to its environment variable.
func NewLoader() *Loader {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	d := Defaults()
	v.SetDefault("project", d.Project)
	v.SetDefault("uploadDir", d.UploadDir)
	v.SetDefault("addr", d.Addr)
	v.SetDefault("buildTimeout", d.BuildTimeout)
	v.SetDefault("maxUploadBytes", d.MaxUploadBytes)
	v.SetDefault("redisAddr", "")
	v.SetDefault("lockTTL", d.LockTTL)
	v.SetDefault("manifestFile", "")
	v.SetDefault("baseURL", "")
	v.SetDefault("toolsFile", "")
	v.SetDefault("logLevel", d.LogLevel)
	v.SetDefault("logFormat", d.LogFormat)
	v.SetDefault("toolchain.keytool", "")
	v.SetDefault("toolchain.cacheReset", "")
	v.SetDefault("toolchain.build", "")

	_ = v.BindEnv("project", "LITEFORGE_PROJECT")
	// UPLOAD_DIR is the legacy name used by older web builder deployments.
	_ = v.BindEnv("uploadDir", "LITEFORGE_UPLOAD_DIR", "UPLOAD_DIR")
	_ = v.BindEnv("addr", "LITEFORGE_ADDR")
	_ = v.BindEnv("buildTimeout", "LITEFORGE_BUILD_TIMEOUT")
	_ = v.BindEnv("maxUploadBytes", "LITEFORGE_MAX_UPLOAD_BYTES")
	_ = v.BindEnv("redisAddr", "LITEFORGE_REDIS_ADDR")
	_ = v.BindEnv("lockTTL", "LITEFORGE_LOCK_TTL")
	_ = v.BindEnv("manifestFile", "LITEFORGE_MANIFEST_FILE")
	_ = v.BindEnv("baseURL", "LITEFORGE_BASE_URL")
	_ = v.BindEnv("toolsFile", "LITEFORGE_TOOLS_FILE")
	_ = v.BindEnv("logLevel", "LITEFORGE_LOG_LEVEL")
	_ = v.BindEnv("logFormat", "LITEFORGE_LOG_FORMAT")
	_ = v.BindEnv("toolchain.keytool", "LITEFORGE_TOOLCHAIN_KEYTOOL")
	_ = v.BindEnv("toolchain.cacheReset", "LITEFORGE_TOOLCHAIN_CACHE_RESET")
	_ = v.BindEnv("toolchain.build", "LITEFORGE_TOOLCHAIN_BUILD")

	return &Loader{v: v}
}

// Set overrides a key, typically from a command-line flag.
func (l *Loader) Set(key string, value any) {
	l.v.Set(key, value)
}

// Load reads configFile (or DefaultFile when empty) and unmarshals the merged view.
// A missing file is not an error.
func (l *Loader) Load(configFile string) (*Config, error) {
	if configFile == "" {
		configFile = DefaultFile
	}
	l.v.SetConfigFile(configFile)

	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	return &cfg, nil
}
