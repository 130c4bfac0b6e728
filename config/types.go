// Package config holds memvfsctl's declarative configuration: the root
// Config struct decoded from YAML/flags via viper, the Octal type for
// mode fields, and the FileMap loader that feeds bulkapply.
package config

import (
	"strconv"

	"gopkg.in/yaml.v3"
)

// Octal is the datatype for mode fields (root-mode, a FileMap entry's mode) that accept
// a base-8 value in config/YAML, e.g. "0644".
type Octal uint32

func (o *Octal) UnmarshalText(text []byte) error {
	v, err := strconv.ParseUint(string(text), 8, 32)
	if err != nil {
		return err
	}
	*o = Octal(v)
	return nil
}

func (o Octal) MarshalText() ([]byte, error) {
	return []byte(strconv.FormatUint(uint64(o), 8)), nil
}

// UnmarshalYAML implements yaml.v3's Unmarshaler so a FileMap's quoted
// octal strings ("644") decode the same way viper/mapstructure's
// DecodeHook decodes them from flags or environment.
func (o *Octal) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	return o.UnmarshalText([]byte(s))
}

// Config is memvfsctl's top-level configuration.
type Config struct {
	AppName string `yaml:"app-name" mapstructure:"app-name"`

	FileSystem FileSystemConfig `yaml:"file-system" mapstructure:"file-system"`
	Logging    LoggingConfig    `yaml:"logging" mapstructure:"logging"`
	Metrics    MetricsConfig    `yaml:"metrics" mapstructure:"metrics"`
	Watch      WatchConfig      `yaml:"watch" mapstructure:"watch"`
}

// FileSystemConfig controls the in-memory root filesystem memvfsctl builds.
type FileSystemConfig struct {
	RootMode        Octal  `yaml:"root-mode" mapstructure:"root-mode"`
	CaseInsensitive bool   `yaml:"case-insensitive" mapstructure:"case-insensitive"`
	FileMapPath     string `yaml:"file-map" mapstructure:"file-map"`
}

// LoggingConfig controls log/slog output (spec ambient stack: logging).
type LoggingConfig struct {
	Severity   string `yaml:"severity" mapstructure:"severity"`
	LogFile    string `yaml:"log-file" mapstructure:"log-file"`
	MaxSizeMb  int    `yaml:"max-size-mb" mapstructure:"max-size-mb"`
	MaxBackups int    `yaml:"max-backups" mapstructure:"max-backups"`
	MaxAgeDays int    `yaml:"max-age-days" mapstructure:"max-age-days"`
}

// MetricsConfig controls the prometheus metrics HTTP endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Addr    string `yaml:"addr" mapstructure:"addr"`
}

// WatchConfig controls the poll-based stat watcher (pollwatch).
type WatchConfig struct {
	IntervalMs int64 `yaml:"interval-ms" mapstructure:"interval-ms"`
}

// Defaults returns a Config populated with memvfsctl's baseline values.
func Defaults() Config {
	return Config{
		AppName: "memvfsctl",
		FileSystem: FileSystemConfig{
			RootMode: 0o755,
		},
		Logging: LoggingConfig{
			Severity:   "INFO",
			MaxSizeMb:  100,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Metrics: MetricsConfig{
			Addr: ":9090",
		},
		Watch: WatchConfig{
			IntervalMs: 500,
		},
	}
}
