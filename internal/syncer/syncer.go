// Package syncer exchanges the task list with a wireless peripheral.
//
// A round trip is a fixed pipeline of named stages:
//
//	capability check -> discover -> connect -> service lookup ->
//	characteristic lookup -> read -> decode -> apply           (Pull)
//	encode -> capability check -> ... -> characteristic lookup -> write   (Push)
//
// The first failing stage ends the round trip with an *Error naming it.
// There is no retry, and the store is only touched by the final apply stage,
// after the payload has been fully validated.
package syncer

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"github.com/nibzard/tasksync/internal/payload"
	"github.com/nibzard/tasksync/internal/peripheral"
	"github.com/nibzard/tasksync/internal/todo"
)

// DefaultOpTimeout bounds each stage after discovery.
const DefaultOpTimeout = 10 * time.Second

// StageHook observes stage transitions.
type StageHook func(op Op, stage Stage)

// Option configures a Client.
type Option func(*Client)

// WithValidator sets the payload validator used by Pull.
func WithValidator(v *payload.Validator) Option {
	return func(c *Client) {
		if v != nil {
			c.validator = v
		}
	}
}

// WithOpTimeout bounds every stage except discovery. Zero disables the bound.
func WithOpTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.opTimeout = d
	}
}

// WithLogger sets the logger.
func WithLogger(logger *log.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithOnUpdate registers the callback run after Pull replaces the store.
func WithOnUpdate(fn func([]todo.Task)) Option {
	return func(c *Client) {
		c.onUpdate = fn
	}
}

// WithStageHook registers a callback for stage transitions. It runs on the
// goroutine driving the round trip and is called with "" when the trip ends.
func WithStageHook(fn StageHook) Option {
	return func(c *Client) {
		c.stageHook = fn
	}
}

// Client runs round trips against one peripheral profile and updates the
// store it was given.
type Client struct {
	store     *todo.Store
	central   peripheral.Central
	profile   peripheral.Profile
	validator *payload.Validator
	opTimeout time.Duration
	logger    *log.Logger
	onUpdate  func([]todo.Task)
	stageHook StageHook

	busy atomic.Bool
}

// New creates a client that replaces store on a successful Pull.
func New(store *todo.Store, central peripheral.Central, profile peripheral.Profile, opts ...Option) *Client {
	c := &Client{
		store:     store,
		central:   central,
		profile:   profile,
		validator: payload.DefaultValidator(),
		opTimeout: DefaultOpTimeout,
		logger:    log.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Pull reads the task list from the device and replaces the store with it.
// On any failure the store is unchanged.
func (c *Client) Pull(ctx context.Context) ([]todo.Task, error) {
	if !c.busy.CompareAndSwap(false, true) {
		return nil, ErrInProgress
	}
	defer c.busy.Store(false)

	s := &session{}
	stages := append(c.linkStages(),
		stage{StageRead, c.read},
		stage{StageDecode, c.decode},
		stage{StageApply, c.apply},
	)
	if err := c.runPipeline(ctx, OpSync, stages, s); err != nil {
		return nil, err
	}

	c.logger.Info("tasks synced from device", "device", s.adv.String(), "tasks", len(s.tasks))
	return s.tasks, nil
}

// Push writes tasks to the device. A nil sequence is rejected.
func (c *Client) Push(ctx context.Context, tasks []todo.Task) error {
	if tasks == nil {
		return &Error{Op: OpSend, Stage: StageEncode, Err: ErrNoTasks}
	}
	if !c.busy.CompareAndSwap(false, true) {
		return ErrInProgress
	}
	defer c.busy.Store(false)

	// Encode first so an invalid list never reaches the radio.
	s := &session{tasks: tasks}
	stages := append([]stage{{StageEncode, c.encode}}, c.linkStages()...)
	stages = append(stages, stage{StageWrite, c.write})
	if err := c.runPipeline(ctx, OpSend, stages, s); err != nil {
		return err
	}

	c.logger.Info("tasks sent to device", "device", s.adv.String(), "tasks", len(tasks), "bytes", len(s.raw))
	return nil
}

// PushStore writes the current store contents to the device.
func (c *Client) PushStore(ctx context.Context) error {
	var tasks []todo.Task
	if c.store != nil {
		tasks = c.store.All()
	}
	return c.Push(ctx, tasks)
}
