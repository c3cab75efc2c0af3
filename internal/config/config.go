// Package config provides configuration loading and validation for ffwrap.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/jmylchreest/ffwrap/pkg/ffmpeg"
)

// EnvPrefix is prepended to every environment override, e.g.
// FFWRAP_PROCESS_TIMEOUT.
const EnvPrefix = "FFWRAP"

// Config holds all application configuration.
type Config struct {
	FFmpeg  FFmpegConfig  `mapstructure:"ffmpeg" yaml:"ffmpeg"`
	Process ProcessConfig `mapstructure:"process" yaml:"process"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// FFmpegConfig holds explicit executable paths. Empty paths fall back to
// FFWRAP_<TOOL>_BINARY and then PATH.
type FFmpegConfig struct {
	FFmpegPath  string `mapstructure:"ffmpeg_path" yaml:"ffmpeg_path"`
	FFprobePath string `mapstructure:"ffprobe_path" yaml:"ffprobe_path"`
	FFplayPath  string `mapstructure:"ffplay_path" yaml:"ffplay_path"`
	// HWAccelProbe runs a short test encode per accelerator during detection.
	HWAccelProbe bool `mapstructure:"hwaccel_probe" yaml:"hwaccel_probe"`
}

// ProcessConfig holds supervision limits applied to every invocation.
type ProcessConfig struct {
	// Timeout is the wall-clock limit for a single run. Zero disables it.
	Timeout         Duration `mapstructure:"timeout" yaml:"timeout"`
	GracePeriod     Duration `mapstructure:"grace_period" yaml:"grace_period"`
	KillTimeout     Duration `mapstructure:"kill_timeout" yaml:"kill_timeout"`
	DiagnosticsCap  ByteSize `mapstructure:"diagnostics_cap" yaml:"diagnostics_cap"`
	MonitorInterval Duration `mapstructure:"monitor_interval" yaml:"monitor_interval"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level" yaml:"level"`
	Format     string `mapstructure:"format" yaml:"format"`
	AddSource  bool   `mapstructure:"add_source" yaml:"add_source"`
	TimeFormat string `mapstructure:"time_format" yaml:"time_format"`
}

// MetricsConfig controls the Prometheus textfile export.
type MetricsConfig struct {
	// TextfilePath is written after each CLI run when set, in the format read
	// by node_exporter's textfile collector.
	TextfilePath string `mapstructure:"textfile_path" yaml:"textfile_path"`
}

// Load reads configuration from file, environment variables, and defaults.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	SetDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName(".ffwrap")
		v.SetConfigType("yaml")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/ffwrap")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.TextUnmarshallerHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// SetDefaults sets default values for all configuration options.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("ffmpeg.ffmpeg_path", "")
	v.SetDefault("ffmpeg.ffprobe_path", "")
	v.SetDefault("ffmpeg.ffplay_path", "")
	v.SetDefault("ffmpeg.hwaccel_probe", false)

	v.SetDefault("process.timeout", "0s")
	v.SetDefault("process.grace_period", ffmpeg.DefaultGracePeriod.String())
	v.SetDefault("process.kill_timeout", ffmpeg.DefaultKillTimeout.String())
	v.SetDefault("process.diagnostics_cap", "64KB")
	v.SetDefault("process.monitor_interval", ffmpeg.DefaultMonitorInterval.String())

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", "")

	v.SetDefault("metrics.textfile_path", "")
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	var errs []error

	if c.Process.Timeout < 0 {
		errs = append(errs, errors.New("process.timeout must not be negative"))
	}
	if c.Process.GracePeriod <= 0 {
		errs = append(errs, errors.New("process.grace_period must be positive"))
	}
	if c.Process.KillTimeout <= 0 {
		errs = append(errs, errors.New("process.kill_timeout must be positive"))
	}
	if c.Process.DiagnosticsCap < 1024 {
		errs = append(errs, errors.New("process.diagnostics_cap must be at least 1KB"))
	}
	if c.Process.MonitorInterval < 0 {
		errs = append(errs, errors.New("process.monitor_interval must not be negative"))
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Errorf("logging.level must be one of debug, info, warn, error; got %q", c.Logging.Level))
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		errs = append(errs, fmt.Errorf("logging.format must be json or text; got %q", c.Logging.Format))
	}

	return errors.Join(errs...)
}

// BinaryPath returns the configured executable path for tool, if any.
func (c *FFmpegConfig) BinaryPath(tool ffmpeg.Tool) string {
	switch tool {
	case ffmpeg.ToolFFmpeg:
		return c.FFmpegPath
	case ffmpeg.ToolFFprobe:
		return c.FFprobePath
	case ffmpeg.ToolFFplay:
		return c.FFplayPath
	default:
		return ""
	}
}

// Options converts the process limits into supervisor options.
func (c *ProcessConfig) Options() []ffmpeg.ProcessOption {
	return []ffmpeg.ProcessOption{
		ffmpeg.WithTimeout(c.Timeout.Duration()),
		ffmpeg.WithGracePeriod(c.GracePeriod.Duration()),
		ffmpeg.WithKillTimeout(c.KillTimeout.Duration()),
		ffmpeg.WithDiagnosticsCap(int(c.DiagnosticsCap.Bytes())),
		ffmpeg.WithMonitorInterval(c.MonitorInterval.Duration()),
	}
}
