// Package config tests configuration loading.
package config

import (
	"flag"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/BurntSushi/toml"
)

// isolate points the user config lookup at an empty home, clears TASKSYNC_*
// variables and moves into a fresh working directory.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	t.Setenv("APPDATA", filepath.Join(home, "AppData"))
	for _, b := range envBindings() {
		t.Setenv(b.name, "")
	}
	wd := t.TempDir()
	// Equivalent of t.Chdir (Go 1.24+) for older toolchains.
	{
		prev, err := os.Getwd()
		if err != nil {
			t.Fatal(err)
		}
		if err := os.Chdir(wd); err != nil {
			t.Fatal(err)
		}
		t.Cleanup(func() { _ = os.Chdir(prev) })
	}
	return home
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestDefaults(t *testing.T) {
	cfg := &Config{}
	setDefaults(cfg)

	if cfg.Peripheral.ServiceName != "send-data" {
		t.Errorf("ServiceName: got %q, want send-data", cfg.Peripheral.ServiceName)
	}
	if cfg.Peripheral.CharacteristicName != "task-characteristic" {
		t.Errorf("CharacteristicName: got %q, want task-characteristic", cfg.Peripheral.CharacteristicName)
	}
	if cfg.Peripheral.ScanTimeout.Std() != DefaultScanTimeout {
		t.Errorf("ScanTimeout: got %v, want %v", cfg.Peripheral.ScanTimeout, DefaultScanTimeout)
	}
	if cfg.Peripheral.OpTimeout.Std() != DefaultOpTimeout {
		t.Errorf("OpTimeout: got %v, want %v", cfg.Peripheral.OpTimeout, DefaultOpTimeout)
	}
	if cfg.LogLevel != "info" || cfg.LogFormat != "text" {
		t.Errorf("logging defaults: got %q/%q", cfg.LogLevel, cfg.LogFormat)
	}
	if err := cfg.Profile().Validate(); err != nil {
		t.Errorf("default profile invalid: %v", err)
	}
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)

	cws, err := LoadWithSources(nil, nil)
	if err != nil {
		t.Fatalf("LoadWithSources: %v", err)
	}
	for field, src := range cws.Sources {
		if src != SourceDefault {
			t.Errorf("%s: got source %q, want default", field, src)
		}
	}
	if cws.ConfigFile() != "" {
		t.Errorf("ConfigFile: got %q, want none", cws.ConfigFile())
	}
	if !filepath.IsAbs(cws.Config.LogDir) {
		t.Errorf("LogDir should be absolute: %q", cws.Config.LogDir)
	}
	if cws.Config.SchemaFile != "" {
		t.Errorf("SchemaFile: got %q, want empty", cws.Config.SchemaFile)
	}
}

func TestLoadPrecedence(t *testing.T) {
	home := isolate(t)

	writeFile(t, filepath.Join(home, ".tasksync", "tasksync.toml"), `
log_level = "debug"
[peripheral]
service_name = "user-service"
scan_timeout = 5
`)
	writeFile(t, "tasksync.toml", `
[peripheral]
service_name = "project-service"
characteristic_uuid = "6E400002-B5A3-F393-E0A9-E50E24DCCA9E"
op_timeout = "2s"
`)
	t.Setenv("TASKSYNC_LOG_FORMAT", "json")
	t.Setenv("TASKSYNC_OP_TIMEOUT", "3s")

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cws, err := LoadWithSources(fs, []string{"--log-level", "warn", "extra"})
	if err != nil {
		t.Fatalf("LoadWithSources: %v", err)
	}
	cfg := cws.Config

	checks := []struct {
		field  string
		got    string
		want   string
		source ConfigSource
	}{
		{"peripheral.service_name", cfg.Peripheral.ServiceName, "project-service", SourceProjFile},
		{"peripheral.characteristic_uuid", cfg.Peripheral.CharacteristicUUID, "6e400002-b5a3-f393-e0a9-e50e24dcca9e", SourceProjFile},
		{"peripheral.scan_timeout", cfg.Peripheral.ScanTimeout.String(), "5s", SourceUserFile},
		{"peripheral.op_timeout", cfg.Peripheral.OpTimeout.String(), "3s", SourceEnv},
		{"log_format", cfg.LogFormat, "json", SourceEnv},
		{"log_level", cfg.LogLevel, "warn", SourceFlag},
		{"peripheral.service_uuid", cfg.Peripheral.ServiceUUID, DefaultServiceUUID, SourceDefault},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s: got %q, want %q", c.field, c.got, c.want)
		}
		if src := cws.Sources[c.field]; src != c.source {
			t.Errorf("%s: got source %q, want %q", c.field, src, c.source)
		}
	}

	if got := fs.Args(); len(got) != 1 || got[0] != "extra" {
		t.Errorf("remaining args: got %v, want [extra]", got)
	}
	if cws.ConfigFile() != "tasksync.toml" {
		t.Errorf("ConfigFile: got %q, want tasksync.toml", cws.ConfigFile())
	}
}

func TestFindUserConfigFile(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("XDG_CONFIG_HOME is only consulted on Unix")
	}
	home := isolate(t)
	if got := findUserConfigFile(); got != "" {
		t.Fatalf("empty home: got %q", got)
	}

	xdg := filepath.Join(home, ".config", "tasksync", "tasksync.toml")
	writeFile(t, xdg, `log_level = "debug"`)
	if got := findUserConfigFile(); got != xdg {
		t.Errorf("config dir fallback: got %q, want %q", got, xdg)
	}

	dotDir := filepath.Join(home, ".tasksync", "tasksync.toml")
	writeFile(t, dotDir, `log_level = "warn"`)
	if got := findUserConfigFile(); got != dotDir {
		t.Errorf("~/.tasksync should win: got %q, want %q", got, dotDir)
	}
}

func TestLoadHiddenProjectFile(t *testing.T) {
	isolate(t)
	writeFile(t, ".tasksync.toml", `schema_file = "schemas/tasks.json"`)

	cfg, err := Load(nil, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !strings.HasSuffix(cfg.SchemaFile, filepath.Join("schemas", "tasks.json")) || !filepath.IsAbs(cfg.SchemaFile) {
		t.Errorf("SchemaFile: got %q, want absolute path ending in schemas/tasks.json", cfg.SchemaFile)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		env     map[string]string
		args    []string
		wantErr string
	}{
		{
			name:    "bad uuid in file",
			file:    "[peripheral]\nservice_uuid = \"send-data\"\n",
			wantErr: "peripheral.service_uuid",
		},
		{
			name:    "unknown key",
			file:    "todo_file = \"to-do.json\"\n",
			wantErr: "unknown key",
		},
		{
			name:    "bad duration in file",
			file:    "[peripheral]\nscan_timeout = \"soon\"\n",
			wantErr: "invalid duration",
		},
		{
			name:    "bad env duration",
			env:     map[string]string{"TASKSYNC_SCAN_TIMEOUT": "-1"},
			wantErr: "TASKSYNC_SCAN_TIMEOUT",
		},
		{
			name:    "zero scan timeout",
			args:    []string{"--scan-timeout", "0"},
			wantErr: "scan_timeout must be positive",
		},
		{
			name:    "bad characteristic flag",
			args:    []string{"--characteristic-uuid", "task-characteristic"},
			wantErr: "peripheral.characteristic_uuid",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			if tt.file != "" {
				writeFile(t, "tasksync.toml", tt.file)
			}
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			fs := flag.NewFlagSet("test", flag.ContinueOnError)
			fs.SetOutput(new(strings.Builder))

			_, err := Load(fs, tt.args)
			if err == nil {
				t.Fatalf("Load should fail with %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q should contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestOpTimeoutZeroAllowed(t *testing.T) {
	isolate(t)
	cfg, err := Load(nil, []string{"--op-timeout", "0"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Peripheral.OpTimeout != 0 {
		t.Errorf("OpTimeout: got %v, want 0", cfg.Peripheral.OpTimeout)
	}
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"30", 30 * time.Second, false},
		{"1500ms", 1500 * time.Millisecond, false},
		{" 2m ", 2 * time.Minute, false},
		{"0", 0, false},
		{"", 0, true},
		{"-5", 0, true},
		{"-1s", 0, true},
		{"later", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseDuration(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseDuration(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("parseDuration(%q): got %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestExampleConfigDecodes(t *testing.T) {
	cfg := &Config{}
	setDefaults(cfg)
	md, err := toml.Decode(ExampleConfig(), cfg)
	if err != nil {
		t.Fatalf("ExampleConfig does not decode: %v", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		t.Errorf("ExampleConfig has unknown keys: %v", undecoded)
	}
	if cfg.Peripheral.OpTimeout.Std() != DefaultOpTimeout {
		t.Errorf("OpTimeout: got %v, want %v", cfg.Peripheral.OpTimeout, DefaultOpTimeout)
	}
}

func TestLoadExampleConfigFile(t *testing.T) {
	home := isolate(t)
	writeFile(t, "tasksync.toml", ExampleConfig())

	cws, err := LoadWithSources(nil, nil)
	if err != nil {
		t.Fatalf("loading the example config: %v", err)
	}
	cfg := cws.Config
	if cfg.LogLevel != DefaultLogLevel || cfg.LogFormat != DefaultLogFormat {
		t.Errorf("logging: got level %q format %q", cfg.LogLevel, cfg.LogFormat)
	}
	if want := filepath.Join(home, ".tasksync"); cfg.LogDir != want {
		t.Errorf("LogDir: got %q, want %q", cfg.LogDir, want)
	}
	for _, key := range []string{"log_dir", "log_level", "log_format", "log_timestamps", "log_caller", "peripheral.op_timeout"} {
		if cws.Sources[key] != SourceProjFile {
			t.Errorf("source of %s: got %q, want %q", key, cws.Sources[key], SourceProjFile)
		}
	}
	if cws.Sources["schema_file"] != SourceDefault {
		t.Errorf("commented-out schema_file should keep its default source, got %q", cws.Sources["schema_file"])
	}
}

func TestProfile(t *testing.T) {
	cfg := &Config{}
	setDefaults(cfg)
	p := cfg.Profile()
	if p.Service.Name != DefaultServiceName || string(p.Service.UUID) != DefaultServiceUUID {
		t.Errorf("Service: got %+v", p.Service)
	}
	if p.Characteristic.Name != DefaultCharacteristicName || string(p.Characteristic.UUID) != DefaultCharacteristicUUID {
		t.Errorf("Characteristic: got %+v", p.Characteristic)
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("Cannot get home directory")
	}

	tests := []struct {
		input string
		want  string
	}{
		{"~/test", filepath.Join(home, "test")},
		{"~", home},
		{"/absolute/path", "/absolute/path"},
		{"relative", "relative"},
	}
	if runtime.GOOS == "windows" {
		t.Setenv("TASKSYNC_TEST_HOME", home)
		tests = append(tests,
			struct{ input, want string }{`~\test`, filepath.Join(home, "test")},
			struct{ input, want string }{`%TASKSYNC_TEST_HOME%\logs`, filepath.Join(home, "logs")},
			struct{ input, want string }{`100%%`, `100%%`},
			struct{ input, want string }{`%TASKSYNC_UNSET_VAR%`, `%TASKSYNC_UNSET_VAR%`},
		)
	} else {
		tests = append(tests, struct{ input, want string }{`~\test`, `~\test`})
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := expandPath(tt.input)
			if got != tt.want {
				t.Errorf("expandPath(%q): got %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestBoolFromString(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"1", true},
		{"true", true},
		{"TRUE", true},
		{"yes", true},
		{"on", true},
		{"0", false},
		{"false", false},
		{"no", false},
		{"off", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := boolFromString(tt.input)
			if got != tt.want {
				t.Errorf("boolFromString(%q): got %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}
