// Package config loads and validates convarr configuration from file,
// environment, and defaults. The resulting Config is immutable after Load;
// components receive it explicitly.
package config

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// Default configuration values.
const (
	defaultServerPort      = 8585
	defaultServerTimeout   = 30 * time.Second
	defaultShutdownTimeout = 10 * time.Second

	defaultMinFreeDisk = 100 * MB

	defaultVideoTimeout = time.Hour
	defaultAudioTimeout = 30 * time.Minute
	defaultEbookTimeout = 10 * time.Minute
	defaultImageTimeout = 5 * time.Minute

	defaultJobRetention    = time.Hour
	defaultCleanupSchedule = "*/30 * * * *"

	maxConcurrentCap = 4
)

// Config is the root configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Converter ConverterConfig `mapstructure:"converter"`
	Engines   EnginesConfig   `mapstructure:"engines"`
	Cleanup   CleanupConfig   `mapstructure:"cleanup"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
}

// ConverterConfig holds conversion pipeline settings.
type ConverterConfig struct {
	// MaxConcurrent bounds simultaneous engine runs. 0 means
	// min(4, NumCPU).
	MaxConcurrent int `mapstructure:"max_concurrent"`

	// OutputDir is the default output directory; empty places outputs
	// next to their source file.
	OutputDir string `mapstructure:"output_dir"`

	// MinFreeDisk is the free-space admission threshold on the output
	// volume.
	MinFreeDisk ByteSize `mapstructure:"min_free_disk"`

	VideoTimeout time.Duration `mapstructure:"video_timeout"`
	AudioTimeout time.Duration `mapstructure:"audio_timeout"`
	EbookTimeout time.Duration `mapstructure:"ebook_timeout"`
	ImageTimeout time.Duration `mapstructure:"image_timeout"`

	// JobRetention is how long finished jobs stay inspectable.
	JobRetention time.Duration `mapstructure:"job_retention"`
}

// EnginesConfig overrides external binary discovery.
type EnginesConfig struct {
	FFmpegPath       string `mapstructure:"ffmpeg_path"`
	EbookConvertPath string `mapstructure:"ebook_convert_path"`
	RSVGConvertPath  string `mapstructure:"rsvg_convert_path"`
}

// CleanupConfig controls the orphaned temp-file sweep.
type CleanupConfig struct {
	// Schedule is a standard 5-field cron expression; empty disables the
	// periodic sweep (the startup sweep always runs).
	Schedule string `mapstructure:"schedule"`
	// TempDir holds intermediate files; empty means the OS default.
	TempDir string `mapstructure:"temp_dir"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level     string `mapstructure:"level"`  // debug, info, warn, error
	Format    string `mapstructure:"format"` // json, text
	AddSource bool   `mapstructure:"add_source"`
}

// DefaultMaxConcurrent computes the effective concurrency bound for a zero
// MaxConcurrent setting.
func DefaultMaxConcurrent() int {
	n := runtime.NumCPU()
	if n > maxConcurrentCap {
		return maxConcurrentCap
	}
	if n < 1 {
		return 1
	}
	return n
}

// EffectiveMaxConcurrent resolves the configured bound, applying the
// default when unset.
func (c ConverterConfig) EffectiveMaxConcurrent() int {
	if c.MaxConcurrent > 0 {
		return c.MaxConcurrent
	}
	return DefaultMaxConcurrent()
}

// Timeout returns the engine deadline for the given category name.
func (c ConverterConfig) Timeout(category string) time.Duration {
	switch category {
	case "video":
		return c.VideoTimeout
	case "audio":
		return c.AudioTimeout
	case "ebook":
		return c.EbookTimeout
	case "image":
		return c.ImageTimeout
	}
	return 0
}

// Load reads configuration from the given path (or the standard search
// locations when empty), overlays CONVARR_-prefixed environment variables,
// and validates the result.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	SetDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("convarr")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/convarr")
		v.AddConfigPath("$HOME/.convarr")
	}

	v.SetEnvPrefix("CONVARR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// No config file is fine; defaults and env vars apply.
	}

	// The text-unmarshaller hook decodes ByteSize values like "100MB".
	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
		mapstructure.TextUnmarshallerHookFunc(),
	))); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &cfg, nil
}

// SetDefaults registers defaults for every key. Called before reading the
// config file so partial files work.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", defaultServerPort)
	v.SetDefault("server.read_timeout", defaultServerTimeout)
	v.SetDefault("server.write_timeout", defaultServerTimeout)
	v.SetDefault("server.shutdown_timeout", defaultShutdownTimeout)
	v.SetDefault("server.cors_origins", []string{"*"})

	v.SetDefault("converter.max_concurrent", 0)
	v.SetDefault("converter.output_dir", "")
	v.SetDefault("converter.min_free_disk", defaultMinFreeDisk.String())
	v.SetDefault("converter.video_timeout", defaultVideoTimeout)
	v.SetDefault("converter.audio_timeout", defaultAudioTimeout)
	v.SetDefault("converter.ebook_timeout", defaultEbookTimeout)
	v.SetDefault("converter.image_timeout", defaultImageTimeout)
	v.SetDefault("converter.job_retention", defaultJobRetention)

	v.SetDefault("engines.ffmpeg_path", "")
	v.SetDefault("engines.ebook_convert_path", "")
	v.SetDefault("engines.rsvg_convert_path", "")

	v.SetDefault("cleanup.schedule", defaultCleanupSchedule)
	v.SetDefault("cleanup.temp_dir", "")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.add_source", false)
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	const maxPort = 65535
	if c.Server.Port < 1 || c.Server.Port > maxPort {
		return fmt.Errorf("server.port must be between 1 and %d", maxPort)
	}

	if c.Converter.MaxConcurrent < 0 {
		return fmt.Errorf("converter.max_concurrent must not be negative")
	}
	if c.Converter.MinFreeDisk < 0 {
		return fmt.Errorf("converter.min_free_disk must not be negative")
	}
	for name, d := range map[string]time.Duration{
		"converter.video_timeout": c.Converter.VideoTimeout,
		"converter.audio_timeout": c.Converter.AudioTimeout,
		"converter.ebook_timeout": c.Converter.EbookTimeout,
		"converter.image_timeout": c.Converter.ImageTimeout,
	} {
		if d < 0 {
			return fmt.Errorf("%s must not be negative", name)
		}
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}
