package syncer

import (
	"errors"
	"fmt"
)

var (
	// ErrInProgress is returned when a round trip is already running.
	ErrInProgress = errors.New("sync already in progress")

	// ErrNoTasks is returned when Push is given no task sequence.
	ErrNoTasks = errors.New("no task sequence to send")
)

// Op identifies the direction of a round trip.
type Op string

const (
	// OpSync reads the task list from the device.
	OpSync Op = "sync"
	// OpSend writes the task list to the device.
	OpSend Op = "send"
)

// Stage names one step of a round trip.
type Stage string

const (
	StageCapability     Stage = "capability check"
	StageDiscover       Stage = "discover"
	StageConnect        Stage = "connect"
	StageService        Stage = "service lookup"
	StageCharacteristic Stage = "characteristic lookup"
	StageRead           Stage = "read"
	StageDecode         Stage = "decode"
	StageApply          Stage = "apply"
	StageEncode         Stage = "encode"
	StageWrite          Stage = "write"
)

// Error reports the stage at which a round trip failed.
type Error struct {
	Op    Op
	Stage Stage
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Stage, e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Message returns the text shown to the user.
func (e *Error) Message() string {
	prefix := "Failed to sync tasks"
	if e.Op == OpSend {
		prefix = "Task update failed"
	}
	return fmt.Sprintf("%s: %s: %v", prefix, e.Stage, e.Err)
}

// Message returns user-facing text for any error returned by Client.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var se *Error
	if errors.As(err, &se) {
		return se.Message()
	}
	if errors.Is(err, ErrInProgress) {
		return "A sync is already in progress"
	}
	return err.Error()
}
