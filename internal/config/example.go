package config

// ExampleConfig returns an example configuration showing all available options.
// Top-level keys precede the [peripheral] table so they stay at the top level.
func ExampleConfig() string {
	return `# tasksync configuration file
# Values can be overridden by TASKSYNC_* environment variables or CLI flags

# Payload schema overriding the built-in one
# schema_file = "tasks.schema.json"

# Directory for TUI run logs (supports ~ expansion and %VAR% on Windows)
log_dir = "~/.tasksync"

# Logging
log_level = "info"     # debug, info, warn, error
log_format = "text"    # text, json, logfmt
log_timestamps = false
log_caller = false

[peripheral]
# Logical names are shown in logs and error messages
service_name = "send-data"
characteristic_name = "task-characteristic"

# 128-bit UUIDs the device advertises
service_uuid = "` + DefaultServiceUUID + `"
characteristic_uuid = "` + DefaultCharacteristicUUID + `"

# How long to scan for the device ("30s", or bare seconds)
scan_timeout = "30s"

# Timeout for each connect, lookup, read and write ("0" disables)
op_timeout = "10s"
`
}
