package config

import (
	"flag"
)

// flagFields maps flag names to source field names.
var flagFields = map[string]string{
	"service-name":        "peripheral.service_name",
	"service-uuid":        "peripheral.service_uuid",
	"characteristic-name": "peripheral.characteristic_name",
	"characteristic-uuid": "peripheral.characteristic_uuid",
	"scan-timeout":        "peripheral.scan_timeout",
	"op-timeout":          "peripheral.op_timeout",
	"schema":              "schema_file",
	"log-dir":             "log_dir",
	"log-level":           "log_level",
	"log-format":          "log_format",
	"log-timestamps":      "log_timestamps",
	"log-caller":          "log_caller",
}

// parseFlags defines and parses CLI flags. Flags are bound to the values
// already loaded, so unset flags leave cfg unchanged.
func parseFlags(cfg *Config, fs *flag.FlagSet, args []string, sources map[string]ConfigSource) error {
	if fs == nil {
		fs = flag.NewFlagSet("tasksync", flag.ContinueOnError)
	}

	// Peripheral
	p := &cfg.Peripheral
	fs.StringVar(&p.ServiceName, "service-name", p.ServiceName, "Logical name of the task service")
	fs.StringVar(&p.ServiceUUID, "service-uuid", p.ServiceUUID, "UUID of the task service")
	fs.StringVar(&p.CharacteristicName, "characteristic-name", p.CharacteristicName, "Logical name of the task characteristic")
	fs.StringVar(&p.CharacteristicUUID, "characteristic-uuid", p.CharacteristicUUID, "UUID of the task characteristic")
	fs.Var(&p.ScanTimeout, "scan-timeout", "How long to scan for the device (e.g. 30s)")
	fs.Var(&p.OpTimeout, "op-timeout", "Timeout for each peripheral operation (0 disables)")

	// Paths
	fs.StringVar(&cfg.SchemaFile, "schema", cfg.SchemaFile, "Path to a payload schema overriding the built-in one")
	fs.StringVar(&cfg.LogDir, "log-dir", cfg.LogDir, "Log directory")

	// Logging
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "Log format (text, json, logfmt)")
	fs.BoolVar(&cfg.LogTimestamps, "log-timestamps", cfg.LogTimestamps, "Show timestamps in logs")
	fs.BoolVar(&cfg.LogCaller, "log-caller", cfg.LogCaller, "Show caller location in logs")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if sources != nil {
		fs.Visit(func(f *flag.Flag) {
			if field, ok := flagFields[f.Name]; ok {
				sources[field] = SourceFlag
			}
		})
	}
	return nil
}
