package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"

	"github.com/nibzard/tasksync/internal/config"
	"github.com/nibzard/tasksync/internal/logging"
	"github.com/nibzard/tasksync/internal/payload"
	"github.com/nibzard/tasksync/internal/syncer"
	"github.com/nibzard/tasksync/internal/todo"
	"github.com/nibzard/tasksync/internal/ui"
)

// loadValidator returns the payload validator for cfg, logging any fallback.
func loadValidator(cfg *config.Config, logger *log.Logger) *payload.Validator {
	v, warnings := payload.LoadValidator(cfg.SchemaFile)
	for _, w := range warnings {
		logger.Warn(w)
	}
	return v
}

// newClient wires an empty store to the configured peripheral.
func (a *app) newClient(cfg *config.Config, logger *log.Logger, extra ...syncer.Option) (*todo.Store, *syncer.Client, error) {
	central, err := a.newCentral(cfg, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("opening adapter: %w", err)
	}
	store := todo.NewStore()
	opts := []syncer.Option{
		syncer.WithValidator(loadValidator(cfg, logger)),
		syncer.WithOpTimeout(cfg.Peripheral.OpTimeout.Std()),
		syncer.WithLogger(logger),
	}
	client := syncer.New(store, central, cfg.Profile(), append(opts, extra...)...)
	return store, client, nil
}

// pullCommand reads the task list from the device once and prints it.
func (a *app) pullCommand(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("tasksync pull", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	asJSON := fs.Bool("json", false, "Print the raw payload instead of a list")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := unexpectedArgs(fs.Args(), 0); err != nil {
		return err
	}

	logger := logging.FromConfig(a.stderr, cfg, "")
	_, client, err := a.newClient(cfg, logger)
	if err != nil {
		return err
	}

	tasks, err := client.Pull(ctx)
	if err != nil {
		return errors.New(syncer.Message(err))
	}

	if *asJSON {
		data, err := payload.Encode(tasks)
		if err != nil {
			return err
		}
		fmt.Fprintln(a.stdout, string(data))
		return nil
	}
	fmt.Fprint(a.stdout, ui.RenderTasks(tasks, -1))
	return nil
}

// pushCommand validates a payload and writes it to the device.
func (a *app) pushCommand(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("tasksync push", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := unexpectedArgs(fs.Args(), 1); err != nil {
		return err
	}

	logger := logging.FromConfig(a.stderr, cfg, "")
	data, source, err := a.readPayload(fs.Args())
	if err != nil {
		return err
	}
	tasks, err := loadValidator(cfg, logger).Decode(data)
	if err != nil {
		return fmt.Errorf("%s: %w", source, err)
	}

	_, client, err := a.newClient(cfg, logger)
	if err != nil {
		return err
	}
	if err := client.Push(ctx, tasks); err != nil {
		return errors.New(syncer.Message(err))
	}
	fmt.Fprintf(a.stdout, "Sent %d tasks to %s\n", len(tasks), cfg.Profile().Service.String())
	return nil
}

// validateCommand checks a payload against the schema without a device.
func (a *app) validateCommand(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("tasksync validate", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := unexpectedArgs(fs.Args(), 1); err != nil {
		return err
	}

	logger := logging.FromConfig(a.stderr, cfg, "")
	data, source, err := a.readPayload(fs.Args())
	if err != nil {
		return err
	}

	tasks, err := loadValidator(cfg, logger).Decode(data)
	if err != nil {
		var derr *payload.DecodeError
		if errors.As(err, &derr) {
			fmt.Fprintf(a.stdout, "%s: invalid payload\n", source)
			for _, e := range derr.Errors {
				fmt.Fprintf(a.stdout, "  - %s\n", e)
			}
		}
		return fmt.Errorf("%s: %w", source, err)
	}

	fmt.Fprintf(a.stdout, "%s: OK (%d tasks, %d completed, %d bytes)\n",
		source, len(tasks), todo.CountCompleted(tasks), len(data))
	return nil
}

// readPayload reads the named file, or stdin when the name is "-" or absent.
func (a *app) readPayload(args []string) ([]byte, string, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(a.stdin)
		if err != nil {
			return nil, "", fmt.Errorf("reading stdin: %w", err)
		}
		return data, "stdin", nil
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return nil, "", fmt.Errorf("reading payload: %w", err)
	}
	return data, args[0], nil
}
