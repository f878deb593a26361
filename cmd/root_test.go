// Package cmd provides tests for CLI command handlers.
package cmd

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/nibzard/tasksync/internal/config"
	"github.com/nibzard/tasksync/internal/payload"
	"github.com/nibzard/tasksync/internal/peripheral"
	"github.com/nibzard/tasksync/internal/peripheral/peripheraltest"
	"github.com/nibzard/tasksync/internal/syncer"
	"github.com/nibzard/tasksync/internal/ui"
)

const examplePayload = `[{"title":"Buy milk","completed":false},{"title":"Walk dog","completed":true}]`

type testApp struct {
	*app
	stdin  *bytes.Buffer
	stdout *bytes.Buffer
	stderr *bytes.Buffer
	device *peripheraltest.Device
}

// newTestApp returns an app with buffered streams whose adapter is an
// in-memory device built from the loaded profile.
func newTestApp(t *testing.T) *testApp {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	t.Setenv("APPDATA", filepath.Join(home, "AppData"))
	for _, name := range []string{
		"TASKSYNC_SERVICE_NAME", "TASKSYNC_SERVICE_UUID",
		"TASKSYNC_CHARACTERISTIC_NAME", "TASKSYNC_CHARACTERISTIC_UUID",
		"TASKSYNC_SCAN_TIMEOUT", "TASKSYNC_OP_TIMEOUT", "TASKSYNC_SCHEMA",
		"TASKSYNC_LOG_DIR", "TASKSYNC_LOG_LEVEL", "TASKSYNC_LOG_FORMAT",
		"TASKSYNC_LOG_TIMESTAMPS", "TASKSYNC_LOG_CALLER",
	} {
		t.Setenv(name, "")
	}
	// Equivalent of t.Chdir (Go 1.24+) for older toolchains.
	{
		dir := t.TempDir()
		prev, err := os.Getwd()
		if err != nil {
			t.Fatal(err)
		}
		if err := os.Chdir(dir); err != nil {
			t.Fatal(err)
		}
		t.Cleanup(func() { _ = os.Chdir(prev) })
	}

	ta := &testApp{
		stdin:  &bytes.Buffer{},
		stdout: &bytes.Buffer{},
		stderr: &bytes.Buffer{},
	}
	ta.app = &app{
		stdin:  ta.stdin,
		stdout: ta.stdout,
		stderr: ta.stderr,
		newCentral: func(cfg *config.Config, logger *log.Logger) (peripheral.Central, error) {
			if ta.device == nil {
				ta.device = peripheraltest.New(cfg.Profile())
			}
			return ta.device, nil
		},
	}
	return ta
}

func (ta *testApp) run(t *testing.T, args ...string) error {
	t.Helper()
	return ta.app.run(context.Background(), args)
}

func TestRunHelpAndVersion(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"long help", []string{"--help"}, "Commands:"},
		{"short help", []string{"-h"}, "Commands:"},
		{"help command", []string{"help"}, "Commands:"},
		{"long version", []string{"--version"}, "tasksync version dev"},
		{"short version", []string{"-v"}, "tasksync version dev"},
		{"version command", []string{"version"}, "tasksync version dev"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ta := newTestApp(t)
			if err := ta.run(t, tt.args...); err != nil {
				t.Fatalf("run(%v): %v", tt.args, err)
			}
			if !strings.Contains(ta.stdout.String(), tt.want) {
				t.Errorf("stdout missing %q:\n%s", tt.want, ta.stdout.String())
			}
		})
	}
}

func TestRunUnknownCommand(t *testing.T) {
	ta := newTestApp(t)
	err := ta.run(t, "frobnicate")
	if err == nil || !strings.Contains(err.Error(), "unknown command: frobnicate") {
		t.Fatalf("got %v, want unknown command error", err)
	}
	if !strings.Contains(ta.stderr.String(), "Usage:") {
		t.Error("usage should be printed to stderr")
	}
}

func TestRunBadConfig(t *testing.T) {
	ta := newTestApp(t)
	err := ta.run(t, "--service-uuid", "not-a-uuid", "version")
	if err == nil || !strings.Contains(err.Error(), "loading config") {
		t.Fatalf("got %v, want config error", err)
	}
}

func TestConfigCommand(t *testing.T) {
	ta := newTestApp(t)
	t.Setenv("TASKSYNC_LOG_LEVEL", "debug")
	if err := os.WriteFile("tasksync.toml", []byte("[peripheral]\nservice_name = \"desk\"\n"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := ta.run(t, "--op-timeout", "5s", "config"); err != nil {
		t.Fatal(err)
	}
	out := ta.stdout.String()
	for _, want := range []string{
		"Config file: ",
		"tasksync.toml",
		"[" + string(config.SourceProjFile) + "]",
		"[" + string(config.SourceEnv) + "]",
		"[" + string(config.SourceFlag) + "]",
		"[" + string(config.SourceDefault) + "]",
		"desk",
		"5s",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("config output missing %q:\n%s", want, out)
		}
	}
}

func TestConfigExample(t *testing.T) {
	ta := newTestApp(t)
	if err := ta.run(t, "config", "--example"); err != nil {
		t.Fatal(err)
	}
	if ta.stdout.String() != config.ExampleConfig() {
		t.Errorf("config --example did not print the example config:\n%s", ta.stdout.String())
	}
}

func TestSchemaCommand(t *testing.T) {
	ta := newTestApp(t)
	if err := ta.run(t, "schema"); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(ta.stdout.Bytes(), payload.EmbeddedSchema()) {
		t.Error("schema output differs from the embedded schema")
	}
	if err := ta.run(t, "schema", "extra"); err == nil {
		t.Error("schema should reject arguments")
	}
}

func TestValidateCommand(t *testing.T) {
	t.Run("valid file", func(t *testing.T) {
		ta := newTestApp(t)
		path := filepath.Join(t.TempDir(), "tasks.json")
		if err := os.WriteFile(path, []byte(examplePayload), 0644); err != nil {
			t.Fatal(err)
		}
		if err := ta.run(t, "validate", path); err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(ta.stdout.String(), "OK (2 tasks, 1 completed") {
			t.Errorf("stdout: %s", ta.stdout.String())
		}
	})

	t.Run("valid stdin", func(t *testing.T) {
		ta := newTestApp(t)
		ta.stdin.WriteString("[]")
		if err := ta.run(t, "validate", "-"); err != nil {
			t.Fatal(err)
		}
		if !strings.HasPrefix(ta.stdout.String(), "stdin: OK (0 tasks") {
			t.Errorf("stdout: %s", ta.stdout.String())
		}
	})

	t.Run("missing title", func(t *testing.T) {
		ta := newTestApp(t)
		ta.stdin.WriteString(`[{"completed":true}]`)
		err := ta.run(t, "validate")
		if !errors.Is(err, payload.ErrMalformed) {
			t.Fatalf("got %v, want ErrMalformed", err)
		}
		if !strings.Contains(ta.stdout.String(), "invalid payload") {
			t.Errorf("stdout: %s", ta.stdout.String())
		}
	})

	t.Run("not json", func(t *testing.T) {
		ta := newTestApp(t)
		ta.stdin.WriteString("tasks")
		if err := ta.run(t, "validate"); !errors.Is(err, payload.ErrMalformed) {
			t.Fatalf("got %v, want ErrMalformed", err)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		ta := newTestApp(t)
		if err := ta.run(t, "validate", filepath.Join(t.TempDir(), "nope.json")); err == nil {
			t.Fatal("expected error for missing file")
		}
	})

	t.Run("too many arguments", func(t *testing.T) {
		ta := newTestApp(t)
		err := ta.run(t, "validate", "a.json", "b.json")
		if err == nil || !strings.Contains(err.Error(), "unexpected arguments: b.json") {
			t.Fatalf("got %v", err)
		}
	})
}

func TestPullCommand(t *testing.T) {
	ta := newTestApp(t)
	// Create the device up front so the value is set before the pull.
	cfg, err := config.Load(nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	ta.device = peripheraltest.New(cfg.Profile())
	ta.device.SetValue([]byte(examplePayload))

	if err := ta.run(t, "pull"); err != nil {
		t.Fatalf("pull: %v", err)
	}
	out := ta.stdout.String()
	for _, want := range []string{"[ ] Buy milk", "[x] ", "Walk dog"} {
		if !strings.Contains(out, want) {
			t.Errorf("pull output missing %q:\n%s", want, out)
		}
	}
	if ta.device.OpenConnections() != 0 {
		t.Error("connection left open after pull")
	}

	ta.stdout.Reset()
	if err := ta.run(t, "sync", "--json"); err != nil {
		t.Fatalf("sync --json: %v", err)
	}
	if got := strings.TrimSpace(ta.stdout.String()); got != examplePayload {
		t.Errorf("json output: got %s, want %s", got, examplePayload)
	}
}

func TestPullCommandNoDevice(t *testing.T) {
	ta := newTestApp(t)
	cfg, err := config.Load(nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	ta.device = peripheraltest.New(cfg.Profile())
	ta.device.Fail(peripheraltest.OpDiscover, peripheral.ErrNoDevice)

	err = ta.run(t, "pull")
	if err == nil || !strings.HasPrefix(err.Error(), "Failed to sync tasks: discover:") {
		t.Fatalf("got %v", err)
	}
	if ta.stdout.Len() != 0 {
		t.Errorf("nothing should be printed on failure: %q", ta.stdout.String())
	}
}

func TestNewClientFeedsStages(t *testing.T) {
	ta := newTestApp(t)
	cfg, err := config.Load(nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	feed := ui.NewStageFeed()
	_, client, err := ta.newClient(cfg, log.New(&bytes.Buffer{}), syncer.WithStageHook(feed.Hook()))
	if err != nil {
		t.Fatal(err)
	}
	ta.device.SetValue([]byte(examplePayload))
	if _, err := client.Pull(context.Background()); err != nil {
		t.Fatalf("pull: %v", err)
	}

	var got []string
	for len(feed) > 0 {
		got = append(got, <-feed)
	}
	if len(got) == 0 || got[len(got)-1] != "" {
		t.Fatalf("stages: got %q, want a trailing empty stage", got)
	}
	if !strings.Contains(strings.Join(got, ","), string(syncer.StageRead)) {
		t.Errorf("stages %q missing %q", got, syncer.StageRead)
	}
}

func TestPushCommand(t *testing.T) {
	ta := newTestApp(t)
	ta.stdin.WriteString(examplePayload)

	if err := ta.run(t, "push"); err != nil {
		t.Fatalf("push: %v", err)
	}
	writes := ta.device.Writes()
	if len(writes) != 1 || string(writes[0]) != examplePayload {
		t.Errorf("writes: got %q", writes)
	}
	if !strings.HasPrefix(ta.stdout.String(), "Sent 2 tasks to "+config.DefaultServiceName) {
		t.Errorf("stdout: %s", ta.stdout.String())
	}
}

func TestPushCommandRejectsInvalidPayload(t *testing.T) {
	ta := newTestApp(t)
	ta.stdin.WriteString(`[{"title":42}]`)

	if err := ta.run(t, "send", "-"); !errors.Is(err, payload.ErrMalformed) {
		t.Fatalf("got %v, want ErrMalformed", err)
	}
	if ta.device != nil && len(ta.device.Writes()) != 0 {
		t.Error("invalid payload reached the device")
	}
}

func TestLogsCommandNoLogs(t *testing.T) {
	ta := newTestApp(t)
	logDir := t.TempDir()

	if err := ta.run(t, "--log-dir", logDir, "logs"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(ta.stdout.String(), "No log files found.") {
		t.Errorf("stdout: %s", ta.stdout.String())
	}

	ta.stdout.Reset()
	if err := ta.run(t, "--log-dir", logDir, "logs", "--list"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(ta.stdout.String(), "No log files found.") {
		t.Errorf("stdout: %s", ta.stdout.String())
	}
}

func TestUnexpectedArgs(t *testing.T) {
	if err := unexpectedArgs([]string{"a"}, 1); err != nil {
		t.Errorf("unexpectedArgs within limit: %v", err)
	}
	err := unexpectedArgs([]string{"a", "b", "c"}, 1)
	if err == nil || err.Error() != "unexpected arguments: b c" {
		t.Errorf("got %v", err)
	}
}
