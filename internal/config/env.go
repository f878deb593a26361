package config

import (
	"fmt"
	"os"
	"strings"
)

// envBinding maps one TASKSYNC_* variable onto a config field.
type envBinding struct {
	name  string
	field string
	apply func(cfg *Config, value string) error
}

func envBindings() []envBinding {
	str := func(get func(*Config) *string) func(*Config, string) error {
		return func(cfg *Config, v string) error {
			*get(cfg) = v
			return nil
		}
	}
	boolean := func(get func(*Config) *bool) func(*Config, string) error {
		return func(cfg *Config, v string) error {
			*get(cfg) = boolFromString(v)
			return nil
		}
	}
	duration := func(get func(*Config) *Duration) func(*Config, string) error {
		return func(cfg *Config, v string) error {
			return get(cfg).UnmarshalText([]byte(v))
		}
	}

	return []envBinding{
		{"TASKSYNC_SERVICE_NAME", "peripheral.service_name", str(func(c *Config) *string { return &c.Peripheral.ServiceName })},
		{"TASKSYNC_SERVICE_UUID", "peripheral.service_uuid", str(func(c *Config) *string { return &c.Peripheral.ServiceUUID })},
		{"TASKSYNC_CHARACTERISTIC_NAME", "peripheral.characteristic_name", str(func(c *Config) *string { return &c.Peripheral.CharacteristicName })},
		{"TASKSYNC_CHARACTERISTIC_UUID", "peripheral.characteristic_uuid", str(func(c *Config) *string { return &c.Peripheral.CharacteristicUUID })},
		{"TASKSYNC_SCAN_TIMEOUT", "peripheral.scan_timeout", duration(func(c *Config) *Duration { return &c.Peripheral.ScanTimeout })},
		{"TASKSYNC_OP_TIMEOUT", "peripheral.op_timeout", duration(func(c *Config) *Duration { return &c.Peripheral.OpTimeout })},
		{"TASKSYNC_SCHEMA", "schema_file", str(func(c *Config) *string { return &c.SchemaFile })},
		{"TASKSYNC_LOG_DIR", "log_dir", str(func(c *Config) *string { return &c.LogDir })},
		{"TASKSYNC_LOG_LEVEL", "log_level", str(func(c *Config) *string { return &c.LogLevel })},
		{"TASKSYNC_LOG_FORMAT", "log_format", str(func(c *Config) *string { return &c.LogFormat })},
		{"TASKSYNC_LOG_TIMESTAMPS", "log_timestamps", boolean(func(c *Config) *bool { return &c.LogTimestamps })},
		{"TASKSYNC_LOG_CALLER", "log_caller", boolean(func(c *Config) *bool { return &c.LogCaller })},
	}
}

// loadFromEnv overrides config from environment variables and updates
// source tracking when sources is non-nil.
func loadFromEnv(cfg *Config, sources map[string]ConfigSource) error {
	for _, b := range envBindings() {
		v := os.Getenv(b.name)
		if v == "" {
			continue
		}
		if err := b.apply(cfg, v); err != nil {
			return fmt.Errorf("%s: %w", b.name, err)
		}
		if sources != nil {
			sources[b.field] = SourceEnv
		}
	}
	return nil
}

func boolFromString(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
