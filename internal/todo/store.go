package todo

import (
	"fmt"
	"strings"
	"sync"
)

// Listener receives a snapshot of the list after a mutation.
type Listener func(tasks []Task)

// Store is an ordered, index-addressed list of tasks.
// It is safe for concurrent use.
type Store struct {
	mu        sync.RWMutex
	tasks     []Task
	listeners map[int]Listener
	nextID    int
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		listeners: make(map[int]Listener),
	}
}

// Append adds an incomplete task with the trimmed title to the end of the list.
func (s *Store) Append(title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return ErrEmptyTitle
	}

	s.mu.Lock()
	s.tasks = append(s.tasks, NewTask(title))
	s.mu.Unlock()

	s.notify()
	return nil
}

// RemoveAt deletes the task at index and shifts later tasks down.
func (s *Store) RemoveAt(index int) error {
	s.mu.Lock()
	if err := s.checkIndex(index); err != nil {
		s.mu.Unlock()
		return err
	}
	s.tasks = append(s.tasks[:index], s.tasks[index+1:]...)
	s.mu.Unlock()

	s.notify()
	return nil
}

// Toggle flips the completion state of the task at index.
func (s *Store) Toggle(index int) error {
	s.mu.Lock()
	if err := s.checkIndex(index); err != nil {
		s.mu.Unlock()
		return err
	}
	s.tasks[index].Toggle()
	s.mu.Unlock()

	s.notify()
	return nil
}

// Clear removes every task.
func (s *Store) Clear() {
	s.mu.Lock()
	s.tasks = nil
	s.mu.Unlock()

	s.notify()
}

// ReplaceAll swaps the whole list. Every task is validated first; on
// failure the store is left untouched.
func (s *Store) ReplaceAll(tasks []Task) error {
	if err := ValidateAll(tasks); err != nil {
		return err
	}

	next := make([]Task, len(tasks))
	copy(next, tasks)

	s.mu.Lock()
	s.tasks = next
	s.mu.Unlock()

	s.notify()
	return nil
}

// All returns a copy of the current list.
func (s *Store) All() []Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// Get returns the task at index.
func (s *Store) Get(index int) (Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkIndex(index); err != nil {
		return Task{}, err
	}
	return s.tasks[index], nil
}

// Len returns the number of tasks.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tasks)
}

// Subscribe registers fn to be called after every mutation.
// The returned function removes the registration.
func (s *Store) Subscribe(fn Listener) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// notify runs listeners outside the lock so they may read the store.
func (s *Store) notify() {
	s.mu.RLock()
	snapshot := s.snapshotLocked()
	listeners := make([]Listener, 0, len(s.listeners))
	for id := 0; id < s.nextID; id++ {
		if fn, ok := s.listeners[id]; ok {
			listeners = append(listeners, fn)
		}
	}
	s.mu.RUnlock()

	for _, fn := range listeners {
		fn(snapshot)
	}
}

func (s *Store) snapshotLocked() []Task {
	out := make([]Task, len(s.tasks))
	copy(out, s.tasks)
	return out
}

func (s *Store) checkIndex(index int) error {
	if index < 0 || index >= len(s.tasks) {
		return fmt.Errorf("%w: %d (len %d)", ErrIndexOutOfRange, index, len(s.tasks))
	}
	return nil
}
