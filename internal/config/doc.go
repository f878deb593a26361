// Package config handles configuration loading and defaults.
//
// Configuration is loaded from multiple sources in priority order:
// 1. Built-in defaults
// 2. User config file (~/.tasksync/tasksync.toml or OS-specific config directory)
// 3. Project config file (tasksync.toml or .tasksync.toml in the working directory)
// 4. Environment variables (TASKSYNC_*)
// 5. CLI flags
//
// Each level overrides the previous one, so CLI flags take precedence.
//
// User-level config locations:
// - ~/.tasksync/tasksync.toml (preferred)
// - Windows: %APPDATA%\tasksync\tasksync.toml
// - macOS: ~/Library/Application Support/tasksync/tasksync.toml
// - Linux/BSD: $XDG_CONFIG_HOME/tasksync/tasksync.toml or ~/.config/tasksync/tasksync.toml
//
// Project-level config locations (overrides user config):
// - ./tasksync.toml (preferred)
// - ./.tasksync.toml
package config
