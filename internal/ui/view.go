package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/nibzard/tasksync/internal/todo"
)

// DeleteGlyph marks the delete control on each row.
const DeleteGlyph = "✕"

var (
	titleStyle  = lipgloss.NewStyle().Bold(true)
	cursorStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	doneStyle   = lipgloss.NewStyle().Strikethrough(true).Faint(true)
	deleteStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	faintStyle  = lipgloss.NewStyle().Faint(true)
)

func (m *tuiModel) View() string {
	var b strings.Builder
	writeTitle(&b)

	if m.showHelp {
		writeHelp(&b)
		writeFooter(&b, m.store.All(), m.device)
		return b.String()
	}

	writeInput(&b, m)
	tasks := m.store.All()
	cursor := m.cursor
	if m.mode == modeAdd {
		cursor = -1
	}
	b.WriteString(RenderTasks(tasks, cursor))
	b.WriteString("\n")
	writeStatus(&b, m.status, m.failed)
	writeFooter(&b, tasks, m.device)
	return b.String()
}

// RenderTasks renders one row per task in store order. The row at cursor is
// marked as selected; pass -1 for no selection.
func RenderTasks(tasks []todo.Task, cursor int) string {
	if len(tasks) == 0 {
		return "  " + faintStyle.Render("No tasks yet.") + "\n"
	}

	var b strings.Builder
	for i, task := range tasks {
		b.WriteString(renderRow(task, i == cursor))
		b.WriteString("\n")
	}
	return b.String()
}

func renderRow(task todo.Task, selected bool) string {
	pointer := "  "
	if selected {
		pointer = cursorStyle.Render(">") + " "
	}

	marker := "[ ]"
	title := task.Title
	if task.Completed {
		marker = "[x]"
		title = doneStyle.Render(title)
	}

	return fmt.Sprintf("%s%s %s  %s", pointer, marker, title, deleteStyle.Render(DeleteGlyph))
}

func writeTitle(b *strings.Builder) {
	title := "Tasks"
	b.WriteString(titleStyle.Render(title) + "\n")
	b.WriteString(strings.Repeat("=", len(title)) + "\n\n")
}

func writeInput(b *strings.Builder, m *tuiModel) {
	if m.mode != modeAdd {
		return
	}
	b.WriteString("New task\n")
	b.WriteString(m.input.View() + "\n")
	b.WriteString(faintStyle.Render("enter to add, esc to cancel") + "\n\n")
}

func writeStatus(b *strings.Builder, status string, failed bool) {
	if status == "" {
		return
	}
	if failed {
		status = errorStyle.Render(status)
	}
	b.WriteString(status + "\n\n")
}

func writeHelp(b *strings.Builder) {
	b.WriteString("Keyboard Shortcuts\n\n")
	b.WriteString("  a            Add a task (enter to confirm, esc to cancel)\n")
	b.WriteString("  enter, space Toggle completed\n")
	b.WriteString("  d, x         Delete task\n")
	b.WriteString("  c            Clear all tasks\n")
	b.WriteString("  s            Sync tasks from the device\n")
	b.WriteString("  p            Send tasks to the device\n")
	b.WriteString("  j, k, ↑, ↓   Move selection\n")
	b.WriteString("  ?            Toggle this help screen\n")
	b.WriteString("  q, ctrl+c    Quit\n\n")
}

func writeFooter(b *strings.Builder, tasks []todo.Task, device string) {
	summary := fmt.Sprintf("%s, %d completed", plural(len(tasks), "task"), todo.CountCompleted(tasks))
	if device != "" {
		summary += " | " + device
	}
	b.WriteString(faintStyle.Render(summary+" | ? for help | q to quit") + "\n")
}
