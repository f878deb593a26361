package syncer

import (
	"context"
	"errors"
	"fmt"

	"github.com/nibzard/tasksync/internal/payload"
	"github.com/nibzard/tasksync/internal/peripheral"
	"github.com/nibzard/tasksync/internal/todo"
)

// session carries values between the stages of one round trip.
type session struct {
	adv   peripheral.Advertisement
	conn  peripheral.Connection
	svc   peripheral.Service
	char  peripheral.Characteristic
	raw   []byte
	tasks []todo.Task
}

type stage struct {
	name Stage
	run  func(ctx context.Context, s *session) error
}

// linkStages returns the stages shared by Pull and Push.
func (c *Client) linkStages() []stage {
	return []stage{
		{StageCapability, c.checkCapability},
		{StageDiscover, c.discover},
		{StageConnect, c.connect},
		{StageService, c.resolveService},
		{StageCharacteristic, c.resolveCharacteristic},
	}
}

func (c *Client) runPipeline(ctx context.Context, op Op, stages []stage, s *session) error {
	defer c.reportStage(op, "")
	defer func() {
		if s.conn == nil {
			return
		}
		if err := s.conn.Disconnect(); err != nil {
			c.logger.Warn("disconnect failed", "op", op, "err", err)
		}
	}()

	for _, st := range stages {
		c.reportStage(op, st.name)
		c.logger.Debug("stage", "op", op, "stage", st.name)

		if err := c.runStage(ctx, st, s); err != nil {
			serr := &Error{Op: op, Stage: st.name, Err: err}
			c.logger.Error(serr.Message())
			return serr
		}
	}
	return nil
}

func (c *Client) runStage(ctx context.Context, st stage, s *session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	// Discovery carries its own scan window.
	if c.opTimeout > 0 && st.name != StageDiscover {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opTimeout)
		defer cancel()
	}
	return st.run(ctx, s)
}

func (c *Client) reportStage(op Op, st Stage) {
	if c.stageHook != nil {
		c.stageHook(op, st)
	}
}

func (c *Client) checkCapability(ctx context.Context, _ *session) error {
	if c.central == nil {
		return peripheral.ErrUnsupported
	}
	if err := c.profile.Validate(); err != nil {
		return fmt.Errorf("invalid profile: %w", err)
	}
	return c.central.Enable(ctx)
}

func (c *Client) discover(ctx context.Context, s *session) error {
	adv, err := c.central.Discover(ctx, c.profile.Service.UUID)
	if err != nil {
		return err
	}
	s.adv = adv
	c.logger.Debug("device found", "device", adv.String())
	return nil
}

func (c *Client) connect(ctx context.Context, s *session) error {
	conn, err := c.central.Connect(ctx, s.adv)
	if err != nil {
		return err
	}
	s.conn = conn
	c.logger.Debug("device connected", "device", s.adv.String())
	return nil
}

func (c *Client) resolveService(ctx context.Context, s *session) error {
	svc, err := s.conn.Service(ctx, c.profile.Service.UUID)
	if err != nil {
		return err
	}
	s.svc = svc
	c.logger.Debug("service found", "service", c.profile.Service.String())
	return nil
}

func (c *Client) resolveCharacteristic(ctx context.Context, s *session) error {
	char, err := s.svc.Characteristic(ctx, c.profile.Characteristic.UUID)
	if err != nil {
		return err
	}
	s.char = char
	c.logger.Debug("characteristic found", "characteristic", c.profile.Characteristic.String())
	return nil
}

func (c *Client) read(ctx context.Context, s *session) error {
	raw, err := s.char.Read(ctx)
	if err != nil {
		return err
	}
	s.raw = raw
	c.logger.Debug("received data", "bytes", len(raw))
	return nil
}

func (c *Client) decode(_ context.Context, s *session) error {
	tasks, err := c.validator.Decode(s.raw)
	if err != nil {
		return err
	}
	s.tasks = tasks
	return nil
}

func (c *Client) apply(_ context.Context, s *session) error {
	if c.store == nil {
		return errors.New("no task store")
	}
	if err := c.store.ReplaceAll(s.tasks); err != nil {
		return err
	}
	if c.onUpdate != nil {
		c.onUpdate(c.store.All())
	}
	return nil
}

func (c *Client) encode(_ context.Context, s *session) error {
	raw, err := payload.Encode(s.tasks)
	if err != nil {
		return err
	}
	s.raw = raw
	return nil
}

func (c *Client) write(ctx context.Context, s *session) error {
	c.logger.Debug("sending data", "bytes", len(s.raw))
	return s.char.Write(ctx, s.raw)
}
