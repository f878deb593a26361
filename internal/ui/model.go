package ui

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"

	"github.com/nibzard/tasksync/internal/syncer"
	"github.com/nibzard/tasksync/internal/todo"
)

type mode int

const (
	modeList mode = iota
	modeAdd
)

// syncKind names the direction of a sync command.
type syncKind string

const (
	syncPull syncKind = "pull"
	syncPush syncKind = "push"
)

// storeChangedMsg reports a store mutation made outside the event loop.
type storeChangedMsg struct {
	count int
}

// stageMsg names the sync stage now running; "" when the round trip ends.
type stageMsg struct {
	stage string
}

// syncDoneMsg carries the result of a sync command.
type syncDoneMsg struct {
	kind  syncKind
	count int
	err   error
}

type tuiModel struct {
	ctx      context.Context
	store    *todo.Store
	client   Syncer
	logger   *log.Logger
	device   string
	input    textinput.Model
	mode     mode
	cursor   int
	status   string
	failed   bool
	syncing  bool
	showHelp bool
}

func newTUIModel(ctx context.Context, store *todo.Store, client Syncer, c *tuiConfig) *tuiModel {
	ti := textinput.New()
	ti.Placeholder = "What needs to be done?"
	ti.CharLimit = 200
	ti.Width = 40

	return &tuiModel{
		ctx:    ctx,
		store:  store,
		client: client,
		logger: c.logger,
		device: c.device,
		input:  ti,
		status: "Press a to add a task, s to sync from the device.",
	}
}

func (m *tuiModel) Init() tea.Cmd {
	return nil
}

func (m *tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.mode == modeAdd {
			return m.updateAddMode(msg)
		}
		return m.updateListMode(msg.String())
	case tea.WindowSizeMsg:
		if msg.Width > 10 {
			m.input.Width = msg.Width - 10
		}
	case storeChangedMsg:
		m.clampCursor()
	case stageMsg:
		if m.syncing && msg.stage != "" {
			m.setStatus("Syncing… " + msg.stage)
		}
	case syncDoneMsg:
		m.finishSync(msg)
	}
	return m, nil
}

func (m *tuiModel) updateAddMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.leaveAddMode()
		m.setStatus("Cancelled")
		return m, nil
	case "enter":
		if err := m.store.Append(m.input.Value()); err != nil {
			if errors.Is(err, todo.ErrEmptyTitle) {
				m.setError("Task title cannot be empty")
			} else {
				m.setError(err.Error())
			}
			return m, nil
		}
		m.leaveAddMode()
		m.cursor = m.store.Len() - 1
		m.setStatus("Added task")
		return m, nil
	case "ctrl+c":
		return m, tea.Quit
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *tuiModel) updateListMode(key string) (tea.Model, tea.Cmd) {
	switch key {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "?":
		m.showHelp = !m.showHelp
	case "a":
		m.mode = modeAdd
		m.input.SetValue("")
		return m, m.input.Focus()
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < m.store.Len()-1 {
			m.cursor++
		}
	case "enter", " ":
		if err := m.store.Toggle(m.cursor); err != nil {
			return m, nil
		}
		m.setStatus("")
	case "d", "x":
		if err := m.store.RemoveAt(m.cursor); err != nil {
			return m, nil
		}
		m.clampCursor()
		m.setStatus("Deleted task")
	case "c":
		m.store.Clear()
		m.cursor = 0
		m.setStatus("Cleared list")
	case "s":
		return m, m.startSync(syncPull)
	case "p":
		return m, m.startSync(syncPush)
	}
	return m, nil
}

func (m *tuiModel) leaveAddMode() {
	m.mode = modeList
	m.input.SetValue("")
	m.input.Blur()
}

// startSync returns the command running one round trip, or nil when a sync is
// already running.
func (m *tuiModel) startSync(kind syncKind) tea.Cmd {
	if m.client == nil {
		m.setError("Wireless sync is not configured")
		return nil
	}
	if m.syncing {
		m.setError(syncer.Message(syncer.ErrInProgress))
		return nil
	}
	m.syncing = true
	m.setStatus("Syncing…")
	m.logger.Debug("sync requested", "kind", kind)

	ctx, client := m.ctx, m.client
	switch kind {
	case syncPush:
		count := m.store.Len()
		return func() tea.Msg {
			err := client.PushStore(ctx)
			return syncDoneMsg{kind: kind, count: count, err: err}
		}
	default:
		return func() tea.Msg {
			tasks, err := client.Pull(ctx)
			return syncDoneMsg{kind: kind, count: len(tasks), err: err}
		}
	}
}

func (m *tuiModel) finishSync(msg syncDoneMsg) {
	m.syncing = false
	m.clampCursor()
	if msg.err != nil {
		m.logger.Warn("sync failed", "kind", msg.kind, "err", msg.err)
		m.setError(syncer.Message(msg.err))
		return
	}
	m.logger.Info("sync finished", "kind", msg.kind, "tasks", msg.count)
	if msg.kind == syncPush {
		m.setStatus(fmt.Sprintf("Sent %s to device", plural(msg.count, "task")))
		return
	}
	m.setStatus(fmt.Sprintf("Synced %s from device", plural(msg.count, "task")))
}

func (m *tuiModel) clampCursor() {
	n := m.store.Len()
	if m.cursor >= n {
		m.cursor = n - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m *tuiModel) setStatus(s string) {
	m.status = s
	m.failed = false
}

func (m *tuiModel) setError(s string) {
	m.status = s
	m.failed = true
}

func plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}
