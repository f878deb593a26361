package config

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/nibzard/tasksync/internal/peripheral"
)

// Load loads configuration from multiple sources in priority order:
// 1. Defaults
// 2. User config file (~/.tasksync/tasksync.toml or OS-specific config dir)
// 3. Project config file (tasksync.toml or .tasksync.toml in current directory)
// 4. Environment variables
// 5. CLI flags
func Load(fs *flag.FlagSet, args []string) (*Config, error) {
	cws, err := LoadWithSources(fs, args)
	if err != nil {
		return nil, err
	}
	return cws.Config, nil
}

// LoadWithSources loads configuration and tracks the source of each value.
// Returns ConfigWithSources containing the config and a map of field names to their sources.
func LoadWithSources(fs *flag.FlagSet, args []string) (*ConfigWithSources, error) {
	sources := make(map[string]ConfigSource)
	cfg := &Config{}

	// 1. Set defaults (all fields start with default source)
	setDefaults(cfg)
	for _, field := range configFields() {
		sources[field] = SourceDefault
	}

	// 2. Try to load from user config file
	userConfigFile := findUserConfigFile()
	if userConfigFile != "" {
		if err := loadConfigFile(cfg, userConfigFile, sources, SourceUserFile); err != nil {
			return nil, fmt.Errorf("loading user config file %s: %w", userConfigFile, err)
		}
	}

	// 3. Try to load from project config file (overrides user config)
	projectConfigFile := findProjectConfigFile()
	if projectConfigFile != "" {
		if err := loadConfigFile(cfg, projectConfigFile, sources, SourceProjFile); err != nil {
			return nil, fmt.Errorf("loading project config file %s: %w", projectConfigFile, err)
		}
	}

	// 4. Override from environment
	if err := loadFromEnv(cfg, sources); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}

	// 5. Parse CLI flags (they override everything)
	if err := parseFlags(cfg, fs, args, sources); err != nil {
		return nil, fmt.Errorf("parsing flags: %w", err)
	}

	// 6. Compute derived values
	if err := finalizeConfig(cfg); err != nil {
		return nil, fmt.Errorf("finalizing config: %w", err)
	}

	return &ConfigWithSources{
		Config:      cfg,
		Sources:     sources,
		userFile:    userConfigFile,
		projectFile: projectConfigFile,
	}, nil
}

// configFields returns the list of configurable field names for source tracking.
func configFields() []string {
	return []string{
		"peripheral.service_name",
		"peripheral.service_uuid",
		"peripheral.characteristic_name",
		"peripheral.characteristic_uuid",
		"peripheral.scan_timeout",
		"peripheral.op_timeout",
		"schema_file",
		"log_dir",
		"log_level",
		"log_format",
		"log_timestamps",
		"log_caller",
	}
}

// setDefaults applies default values to the config.
func setDefaults(cfg *Config) {
	cfg.Peripheral = PeripheralConfig{
		ServiceName:        DefaultServiceName,
		ServiceUUID:        DefaultServiceUUID,
		CharacteristicName: DefaultCharacteristicName,
		CharacteristicUUID: DefaultCharacteristicUUID,
		ScanTimeout:        Duration(DefaultScanTimeout),
		OpTimeout:          Duration(DefaultOpTimeout),
	}
	cfg.SchemaFile = ""
	cfg.LogDir = DefaultLogDir
	cfg.LogLevel = DefaultLogLevel
	cfg.LogFormat = DefaultLogFormat
}

// loadConfigFile decodes TOML on top of cfg and marks every key the file
// defines with source.
func loadConfigFile(cfg *Config, path string, sources map[string]ConfigSource, source ConfigSource) error {
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("unknown key %q", undecoded[0].String())
	}
	for _, key := range md.Keys() {
		name := key.String()
		if _, ok := sources[name]; ok {
			sources[name] = source
		}
	}
	return nil
}

// finalizeConfig computes derived values and validates the peripheral profile.
func finalizeConfig(cfg *Config) error {
	// Expand ~ in paths
	cfg.LogDir = expandPath(cfg.LogDir)
	cfg.SchemaFile = expandPath(cfg.SchemaFile)

	// Determine project root
	if cfg.ProjectRoot == "" {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("getting working directory: %w", err)
		}
		cfg.ProjectRoot = wd
	}

	// Make paths absolute if they're relative
	if cfg.SchemaFile != "" && !filepath.IsAbs(cfg.SchemaFile) {
		cfg.SchemaFile = filepath.Join(cfg.ProjectRoot, cfg.SchemaFile)
	}
	if cfg.LogDir != "" && !filepath.IsAbs(cfg.LogDir) {
		cfg.LogDir = filepath.Join(cfg.ProjectRoot, cfg.LogDir)
	}

	service, err := peripheral.ParseUUID(cfg.Peripheral.ServiceUUID)
	if err != nil {
		return fmt.Errorf("peripheral.service_uuid: %w", err)
	}
	characteristic, err := peripheral.ParseUUID(cfg.Peripheral.CharacteristicUUID)
	if err != nil {
		return fmt.Errorf("peripheral.characteristic_uuid: %w", err)
	}
	cfg.Peripheral.ServiceUUID = string(service)
	cfg.Peripheral.CharacteristicUUID = string(characteristic)

	if cfg.Peripheral.ScanTimeout <= 0 {
		return fmt.Errorf("peripheral.scan_timeout must be positive")
	}
	if cfg.Peripheral.OpTimeout < 0 {
		return fmt.Errorf("peripheral.op_timeout must not be negative")
	}

	return nil
}

// ConfigFile returns the highest-priority config file that was loaded.
func (cws *ConfigWithSources) ConfigFile() string {
	if cws.projectFile != "" {
		return cws.projectFile
	}
	return cws.userFile
}
