// Package cmd implements the CLI command structure for tasksync.
package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/nibzard/tasksync/internal/config"
	"github.com/nibzard/tasksync/internal/logging"
	"github.com/nibzard/tasksync/internal/payload"
	"github.com/nibzard/tasksync/internal/peripheral"
	"github.com/nibzard/tasksync/internal/peripheral/ble"
	"github.com/nibzard/tasksync/internal/syncer"
	"github.com/nibzard/tasksync/internal/ui"
)

// Version is set via ldflags at build time.
var Version = "dev"

// CentralFactory opens the local wireless adapter.
type CentralFactory func(cfg *config.Config, logger *log.Logger) (peripheral.Central, error)

// app carries the process streams and adapter factory so commands can be
// exercised without a terminal or radio.
type app struct {
	stdin      io.Reader
	stdout     io.Writer
	stderr     io.Writer
	newCentral CentralFactory
}

func defaultApp() *app {
	return &app{
		stdin:      os.Stdin,
		stdout:     os.Stdout,
		stderr:     os.Stderr,
		newCentral: bleCentral,
	}
}

func bleCentral(cfg *config.Config, logger *log.Logger) (peripheral.Central, error) {
	return ble.New(nil,
		ble.WithScanTimeout(cfg.Peripheral.ScanTimeout.Std()),
		ble.WithLogger(logger),
	), nil
}

// Run executes the tasksync CLI.
func Run(ctx context.Context, args []string) error {
	return defaultApp().run(ctx, args)
}

func (a *app) run(ctx context.Context, args []string) error {
	// Create a flag set for global options
	fs := flag.NewFlagSet("tasksync", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	fs.Usage = func() {
		printUsage(fs, a.stderr)
	}
	help := fs.Bool("help", false, "Show help")
	fs.BoolVar(help, "h", false, "Show help")
	showVersion := fs.Bool("version", false, "Show version")
	fs.BoolVar(showVersion, "v", false, "Show version")

	// Global flags
	cws, err := config.LoadWithSources(fs, args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return fmt.Errorf("loading config: %w", err)
	}
	cfg := cws.Config
	if *help {
		printUsage(fs, a.stdout)
		return nil
	}
	if *showVersion {
		return a.versionCommand()
	}

	// No subcommand means the interactive view.
	subcommand := "tui"
	remainingArgs := fs.Args()
	if len(remainingArgs) > 0 {
		subcommand = remainingArgs[0]
		remainingArgs = remainingArgs[1:]
	}

	switch subcommand {
	case "tui":
		return a.tuiCommand(ctx, cfg, remainingArgs)
	case "pull", "sync":
		return a.pullCommand(ctx, cfg, remainingArgs)
	case "push", "send":
		return a.pushCommand(ctx, cfg, remainingArgs)
	case "validate":
		return a.validateCommand(cfg, remainingArgs)
	case "schema":
		return a.schemaCommand(remainingArgs)
	case "config":
		return a.configCommand(cws, remainingArgs)
	case "logs", "tail":
		return a.logsCommand(ctx, cfg, remainingArgs)
	case "version":
		return a.versionCommand()
	case "help":
		printUsage(fs, a.stdout)
		return nil
	default:
		fmt.Fprintf(a.stderr, "Unknown command: %s\n", subcommand)
		printUsage(fs, a.stderr)
		return fmt.Errorf("unknown command: %s", subcommand)
	}
}

// tuiCommand launches the interactive task list.
func (a *app) tuiCommand(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("tasksync tui", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	inline := fs.Bool("inline", false, "Render inline instead of using the alternate screen")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := unexpectedArgs(fs.Args(), 0); err != nil {
		return err
	}

	// The TUI owns the terminal, so logs go to a per-run file.
	logger := logging.Discard()
	run, err := logging.NewRunFile(cfg.LogDir, cfg.ProjectRoot)
	if err != nil {
		fmt.Fprintf(a.stderr, "Warning: run log disabled: %v\n", err)
	} else {
		defer run.Close()
		logger = logging.FromConfig(run.Writer(), cfg, "")
	}

	stages := ui.NewStageFeed()
	store, client, err := a.newClient(cfg, logger, syncer.WithStageHook(stages.Hook()))
	if err != nil {
		return err
	}

	return ui.RunTUI(ctx, store, client,
		ui.WithLogger(logger),
		ui.WithAltScreen(!*inline),
		ui.WithDevice(cfg.Profile().Service.String()),
		ui.WithStageFeed(stages),
	)
}

// versionCommand prints version information.
func (a *app) versionCommand() error {
	fmt.Fprintf(a.stdout, "tasksync version %s\n", Version)
	return nil
}

// configCommand prints the effective configuration and where each value came from.
func (a *app) configCommand(cws *config.ConfigWithSources, args []string) error {
	fs := flag.NewFlagSet("tasksync config", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	example := fs.Bool("example", false, "Print an example config file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := unexpectedArgs(fs.Args(), 0); err != nil {
		return err
	}
	if *example {
		fmt.Fprint(a.stdout, config.ExampleConfig())
		return nil
	}

	cfg := cws.Config
	values := map[string]string{
		"peripheral.service_name":        cfg.Peripheral.ServiceName,
		"peripheral.service_uuid":        cfg.Peripheral.ServiceUUID,
		"peripheral.characteristic_name": cfg.Peripheral.CharacteristicName,
		"peripheral.characteristic_uuid": cfg.Peripheral.CharacteristicUUID,
		"peripheral.scan_timeout":        cfg.Peripheral.ScanTimeout.String(),
		"peripheral.op_timeout":          cfg.Peripheral.OpTimeout.String(),
		"schema_file":                    cfg.SchemaFile,
		"log_dir":                        cfg.LogDir,
		"log_level":                      cfg.LogLevel,
		"log_format":                     cfg.LogFormat,
		"log_timestamps":                 fmt.Sprint(cfg.LogTimestamps),
		"log_caller":                     fmt.Sprint(cfg.LogCaller),
	}
	keys := make([]string, 0, len(values))
	width := 0
	for k := range values {
		keys = append(keys, k)
		if len(k) > width {
			width = len(k)
		}
	}
	sort.Strings(keys)

	if file := cws.ConfigFile(); file != "" {
		fmt.Fprintf(a.stdout, "Config file: %s\n\n", file)
	} else {
		fmt.Fprintln(a.stdout, "Config file: (none)")
		fmt.Fprintln(a.stdout)
	}
	for _, k := range keys {
		v := values[k]
		if v == "" {
			v = "(unset)"
		}
		fmt.Fprintf(a.stdout, "  %-*s  %-40s  [%s]\n", width, k, v, cws.Sources[k])
	}
	return nil
}

// logsCommand shows the latest TUI run log.
func (a *app) logsCommand(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("tasksync logs", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	follow := fs.Bool("f", false, "Follow the log (like tail -f)")
	fs.BoolVar(follow, "follow", false, "Follow the log (like tail -f)")
	n := fs.Int("n", 0, "Number of lines to show (0 = all)")
	list := fs.Bool("list", false, "List run logs instead of showing one")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := unexpectedArgs(fs.Args(), 0); err != nil {
		return err
	}

	logDir, err := logging.FindLogDir(cfg.LogDir, cfg.ProjectRoot)
	if err != nil {
		return fmt.Errorf("finding log directory: %w", err)
	}

	if *list {
		runs, err := logging.FindLogRuns(logDir)
		if err != nil {
			return fmt.Errorf("listing logs: %w", err)
		}
		if len(runs) == 0 {
			fmt.Fprintln(a.stdout, "No log files found.")
			return nil
		}
		for _, r := range runs {
			fmt.Fprintf(a.stdout, "%s  %s  %6d bytes  %s\n", r.RunID, r.ModTime.Format("2006-01-02 15:04:05"), r.Size, r.Path)
		}
		return nil
	}

	logPath, err := logging.FindLatestLog(logDir)
	if err != nil {
		return fmt.Errorf("finding latest log: %w", err)
	}
	if logPath == "" {
		fmt.Fprintln(a.stdout, "No log files found.")
		return nil
	}

	fmt.Fprintf(a.stdout, "Tailing: %s\n", logPath)
	if *follow {
		fmt.Fprintln(a.stdout, "(Ctrl+C to stop)")
	}
	fmt.Fprintln(a.stdout)

	return logging.TailLog(ctx, a.stdout, logPath, *n, *follow)
}

// schemaCommand prints the built-in payload schema.
func (a *app) schemaCommand(args []string) error {
	if err := unexpectedArgs(args, 0); err != nil {
		return err
	}
	_, err := a.stdout.Write(payload.EmbeddedSchema())
	return err
}

// printUsage prints the usage message.
func printUsage(fs *flag.FlagSet, w io.Writer) {
	fmt.Fprintln(w, "tasksync - a terminal to-do list that syncs with a wireless peripheral")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  tasksync [options] [command] [command options]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  tui               Interactive task list (default command)")
	fmt.Fprintln(w, "  pull              Read the task list from the device and print it")
	fmt.Fprintln(w, "  push [file|-]     Validate a task payload and write it to the device")
	fmt.Fprintln(w, "  validate [file|-] Validate a task payload without a device")
	fmt.Fprintln(w, "  schema            Print the built-in payload schema")
	fmt.Fprintln(w, "  config            Show the effective configuration and its sources")
	fmt.Fprintln(w, "  logs              Show the latest interactive session log")
	fmt.Fprintln(w, "  version           Show version information")
	fmt.Fprintln(w, "  help              Show this help message")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Global Options:")
	fs.SetOutput(w)
	fs.PrintDefaults()
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Pull Options:")
	fmt.Fprintln(w, "  -json")
	fmt.Fprintln(w, "        Print the raw payload instead of a list")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Tui Options:")
	fmt.Fprintln(w, "  -inline")
	fmt.Fprintln(w, "        Render inline instead of using the alternate screen")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Config Options:")
	fmt.Fprintln(w, "  -example")
	fmt.Fprintln(w, "        Print an example config file")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Logs Options:")
	fmt.Fprintln(w, "  -f, --follow")
	fmt.Fprintln(w, "        Follow the log (like tail -f)")
	fmt.Fprintln(w, "  -n int")
	fmt.Fprintln(w, "        Number of lines to show (0 = all)")
	fmt.Fprintln(w, "  -list")
	fmt.Fprintln(w, "        List run logs instead of showing one")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Environment variables use the TASKSYNC_ prefix, e.g. TASKSYNC_SERVICE_UUID.")
}

// unexpectedArgs reports args beyond the first max.
func unexpectedArgs(args []string, max int) error {
	if len(args) <= max {
		return nil
	}
	return fmt.Errorf("unexpected arguments: %s", strings.Join(args[max:], " "))
}
