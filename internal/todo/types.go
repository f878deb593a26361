// Package todo holds the in-memory task list.
package todo

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEmptyTitle is returned when a task title is empty or whitespace-only.
	ErrEmptyTitle = errors.New("task title is empty")

	// ErrIndexOutOfRange is returned when a position does not address a task.
	ErrIndexOutOfRange = errors.New("task index out of range")
)

// Task represents a single to-do item.
type Task struct {
	Title     string `json:"title"`
	Completed bool   `json:"completed"`
}

// NewTask returns an incomplete task with the given title.
func NewTask(title string) Task {
	return Task{Title: title}
}

// Toggle flips the completion state in place.
func (t *Task) Toggle() {
	t.Completed = !t.Completed
}

// Validate reports whether the task can be held by a Store.
func (t Task) Validate() error {
	if strings.TrimSpace(t.Title) == "" {
		return ErrEmptyTitle
	}
	return nil
}

// ValidationError reports an invalid task at a position in a batch.
type ValidationError struct {
	Index int
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("task %d: %s", e.Index, e.Err)
}

// Unwrap returns the underlying error.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// ValidateAll checks every task and returns the first failure.
func ValidateAll(tasks []Task) error {
	for i, task := range tasks {
		if err := task.Validate(); err != nil {
			return &ValidationError{Index: i, Err: err}
		}
	}
	return nil
}

// Equal reports whether two task sequences hold the same titles and
// completion states in the same order.
func Equal(a, b []Task) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// CountCompleted returns the number of completed tasks.
func CountCompleted(tasks []Task) int {
	n := 0
	for _, task := range tasks {
		if task.Completed {
			n++
		}
	}
	return n
}
