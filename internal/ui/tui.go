// Package ui provides the interactive terminal view of the task list.
package ui

import (
	"context"
	"fmt"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"

	"github.com/nibzard/tasksync/internal/syncer"
	"github.com/nibzard/tasksync/internal/todo"
)

// Syncer exchanges the store with the peripheral.
type Syncer interface {
	Pull(ctx context.Context) ([]todo.Task, error)
	PushStore(ctx context.Context) error
}

// TUIOption configures the TUI behavior.
type TUIOption func(*tuiConfig)

type tuiConfig struct {
	logger    *log.Logger
	altScreen bool
	device    string
	stages    StageFeed
}

// StageFeed carries sync stage names from the sync goroutine to the view.
type StageFeed chan string

// NewStageFeed returns a buffered feed.
func NewStageFeed() StageFeed {
	return make(StageFeed, 16)
}

// Hook returns a stage hook publishing into f. Stages are dropped rather
// than blocking the sync when the view falls behind.
func (f StageFeed) Hook() syncer.StageHook {
	return func(_ syncer.Op, st syncer.Stage) {
		select {
		case f <- string(st):
		default:
		}
	}
}

// WithStageFeed shows the running sync stage in the status line.
func WithStageFeed(f StageFeed) TUIOption {
	return func(c *tuiConfig) {
		c.stages = f
	}
}

// WithLogger sets the logger for presenter events.
func WithLogger(logger *log.Logger) TUIOption {
	return func(c *tuiConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithAltScreen runs the TUI in the terminal's alternate screen.
func WithAltScreen(enabled bool) TUIOption {
	return func(c *tuiConfig) {
		c.altScreen = enabled
	}
}

// WithDevice sets the device label shown in the footer.
func WithDevice(label string) TUIOption {
	return func(c *tuiConfig) {
		c.device = label
	}
}

func newTUIConfig(opts []TUIOption) *tuiConfig {
	c := &tuiConfig{
		logger:    log.New(io.Discard),
		altScreen: true,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RunTUI shows the task list until the user quits or ctx is cancelled.
func RunTUI(ctx context.Context, store *todo.Store, client Syncer, opts ...TUIOption) error {
	if !IsTTY(os.Stdout) {
		return fmt.Errorf("tui requires a TTY")
	}

	c := newTUIConfig(opts)
	model := newTUIModel(ctx, store, client, c)

	programOpts := []tea.ProgramOption{tea.WithContext(ctx)}
	if c.altScreen {
		programOpts = append(programOpts, tea.WithAltScreen())
	}
	program := tea.NewProgram(model, programOpts...)

	// Send blocks until the event loop receives the message, and the loop
	// itself mutates the store, so forward from a separate goroutine.
	unsubscribe := store.Subscribe(func(tasks []todo.Task) {
		go program.Send(storeChangedMsg{count: len(tasks)})
	})
	defer unsubscribe()

	done := make(chan struct{})
	defer close(done)
	if c.stages != nil {
		go forwardStages(c.stages, done, program.Send)
	}

	c.logger.Info("tui started", "tasks", store.Len())
	_, err := program.Run()
	c.logger.Info("tui stopped", "tasks", store.Len(), "err", err)
	return err
}

// forwardStages sends each stage from feed as a message until done closes.
func forwardStages(feed StageFeed, done <-chan struct{}, send func(tea.Msg)) {
	for {
		select {
		case st := <-feed:
			send(stageMsg{stage: st})
		case <-done:
			return
		}
	}
}

// IsTTY returns true if w is a terminal.
func IsTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
