package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/nibzard/tasksync/internal/peripheral"
)

// ConfigSource represents where a configuration value came from.
type ConfigSource string

const (
	SourceDefault  ConfigSource = "default"
	SourceUserFile ConfigSource = "user file"
	SourceProjFile ConfigSource = "project file"
	SourceEnv      ConfigSource = "environment"
	SourceFlag     ConfigSource = "flag"
)

// ConfigWithSources holds configuration along with source information for each field.
type ConfigWithSources struct {
	Config  *Config
	Sources map[string]ConfigSource

	userFile    string
	projectFile string
}

// Default values.
const (
	DefaultServiceName        = "send-data"
	DefaultServiceUUID        = "7a6b0001-3c1d-4b8e-9f2a-5d4c3b2a1f00"
	DefaultCharacteristicName = "task-characteristic"
	DefaultCharacteristicUUID = "7a6b0002-3c1d-4b8e-9f2a-5d4c3b2a1f00"
	DefaultScanTimeout        = 30 * time.Second
	DefaultOpTimeout          = 10 * time.Second
	DefaultLogDir             = "~/.tasksync"
	DefaultLogLevel           = "info"
	DefaultLogFormat          = "text"
)

// Config holds the full configuration for tasksync.
type Config struct {
	// Peripheral link
	Peripheral PeripheralConfig `toml:"peripheral"`

	// Optional payload schema overriding the embedded one
	SchemaFile string `toml:"schema_file"`

	// Directory for per-run TUI log files
	LogDir string `toml:"log_dir"`

	// Logging configuration
	LogLevel      string `toml:"log_level"`
	LogFormat     string `toml:"log_format"`
	LogTimestamps bool   `toml:"log_timestamps"`
	LogCaller     bool   `toml:"log_caller"`

	// Project root (computed)
	ProjectRoot string `toml:"-"`
}

// PeripheralConfig names the GATT service and characteristic holding the task list.
type PeripheralConfig struct {
	ServiceName        string   `toml:"service_name"`
	ServiceUUID        string   `toml:"service_uuid"`
	CharacteristicName string   `toml:"characteristic_name"`
	CharacteristicUUID string   `toml:"characteristic_uuid"`
	ScanTimeout        Duration `toml:"scan_timeout"`
	OpTimeout          Duration `toml:"op_timeout"`
}

// Profile returns the peripheral profile described by the config.
func (c *Config) Profile() peripheral.Profile {
	return peripheral.Profile{
		Service: peripheral.Endpoint{
			Name: c.Peripheral.ServiceName,
			UUID: peripheral.UUID(c.Peripheral.ServiceUUID),
		},
		Characteristic: peripheral.Endpoint{
			Name: c.Peripheral.CharacteristicName,
			UUID: peripheral.UUID(c.Peripheral.CharacteristicUUID),
		},
	}
}

// Duration is a time.Duration that decodes from "30s" style strings or bare
// integer seconds.
type Duration time.Duration

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := parseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

func parseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty duration")
	}
	if secs, err := strconv.Atoi(s); err == nil {
		if secs < 0 {
			return 0, fmt.Errorf("negative duration %q", s)
		}
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %q", s)
	}
	return d, nil
}

// Set implements flag.Value.
func (d *Duration) Set(s string) error {
	return d.UnmarshalText([]byte(s))
}
