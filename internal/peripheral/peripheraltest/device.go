// Package peripheraltest provides an in-memory peripheral for tests.
package peripheraltest

import (
	"context"
	"fmt"
	"sync"

	"github.com/nibzard/tasksync/internal/peripheral"
)

// Op names a step a Device can be told to fail or block.
type Op string

const (
	OpEnable         Op = "enable"
	OpDiscover       Op = "discover"
	OpConnect        Op = "connect"
	OpService        Op = "service"
	OpCharacteristic Op = "characteristic"
	OpRead           Op = "read"
	OpWrite          Op = "write"
	OpDisconnect     Op = "disconnect"
)

// Device is a fake peripheral that also plays the local adapter.
type Device struct {
	mu      sync.Mutex
	profile peripheral.Profile
	adv     peripheral.Advertisement
	value   []byte
	writes  [][]byte
	fail    map[Op]error
	block   map[Op]bool
	calls   []Op
	open    int
	closed  int
}

var _ peripheral.Central = (*Device)(nil)

// New creates a device exposing profile with an empty value.
func New(profile peripheral.Profile) *Device {
	return &Device{
		profile: profile,
		adv: peripheral.Advertisement{
			Address: "00:11:22:33:44:55",
			Name:    "tasksync-test",
			RSSI:    -40,
		},
		fail:  make(map[Op]error),
		block: make(map[Op]bool),
	}
}

// SetValue sets the characteristic value returned by reads.
func (d *Device) SetValue(value []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.value = append([]byte(nil), value...)
}

// Value returns the current characteristic value.
func (d *Device) Value() []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]byte(nil), d.value...)
}

// Writes returns every value written, oldest first.
func (d *Device) Writes() [][]byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([][]byte, len(d.writes))
	for i, w := range d.writes {
		out[i] = append([]byte(nil), w...)
	}
	return out
}

// Fail makes op return err. A nil err clears the failure.
func (d *Device) Fail(op Op, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err == nil {
		delete(d.fail, op)
		return
	}
	d.fail[op] = err
}

// Block makes op wait until its context is done.
func (d *Device) Block(op Op) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.block[op] = true
}

// Unblock undoes Block for later calls of op.
func (d *Device) Unblock(op Op) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.block, op)
}

// Calls returns the operations performed, in order.
func (d *Device) Calls() []Op {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Op(nil), d.calls...)
}

// OpenConnections returns connections made minus connections closed.
func (d *Device) OpenConnections() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.open - d.closed
}

// enter records op and applies any configured failure or block.
func (d *Device) enter(ctx context.Context, op Op) error {
	d.mu.Lock()
	d.calls = append(d.calls, op)
	err := d.fail[op]
	blocked := d.block[op]
	d.mu.Unlock()

	if blocked {
		<-ctx.Done()
		return ctx.Err()
	}
	if err != nil {
		return err
	}
	return ctx.Err()
}

func (d *Device) Enable(ctx context.Context) error {
	return d.enter(ctx, OpEnable)
}

func (d *Device) Discover(ctx context.Context, service peripheral.UUID) (peripheral.Advertisement, error) {
	if err := d.enter(ctx, OpDiscover); err != nil {
		return peripheral.Advertisement{}, err
	}
	if service != d.profile.Service.UUID {
		return peripheral.Advertisement{}, peripheral.ErrNoDevice
	}
	return d.adv, nil
}

func (d *Device) Connect(ctx context.Context, adv peripheral.Advertisement) (peripheral.Connection, error) {
	if err := d.enter(ctx, OpConnect); err != nil {
		return nil, err
	}
	if adv.Address != d.adv.Address {
		return nil, fmt.Errorf("unknown device %s", adv.Address)
	}
	d.mu.Lock()
	d.open++
	d.mu.Unlock()
	return &conn{d: d}, nil
}

type conn struct {
	d *Device
}

func (c *conn) Service(ctx context.Context, uuid peripheral.UUID) (peripheral.Service, error) {
	if err := c.d.enter(ctx, OpService); err != nil {
		return nil, err
	}
	if uuid != c.d.profile.Service.UUID {
		return nil, fmt.Errorf("%w: %s", peripheral.ErrServiceNotFound, uuid)
	}
	return &svc{d: c.d}, nil
}

func (c *conn) Disconnect() error {
	c.d.mu.Lock()
	c.d.calls = append(c.d.calls, OpDisconnect)
	c.d.closed++
	err := c.d.fail[OpDisconnect]
	c.d.mu.Unlock()
	return err
}

type svc struct {
	d *Device
}

func (s *svc) Characteristic(ctx context.Context, uuid peripheral.UUID) (peripheral.Characteristic, error) {
	if err := s.d.enter(ctx, OpCharacteristic); err != nil {
		return nil, err
	}
	if uuid != s.d.profile.Characteristic.UUID {
		return nil, fmt.Errorf("%w: %s", peripheral.ErrCharacteristicNotFound, uuid)
	}
	return &char{d: s.d}, nil
}

type char struct {
	d *Device
}

func (c *char) Read(ctx context.Context) ([]byte, error) {
	if err := c.d.enter(ctx, OpRead); err != nil {
		return nil, err
	}
	return c.d.Value(), nil
}

func (c *char) Write(ctx context.Context, value []byte) error {
	if err := c.d.enter(ctx, OpWrite); err != nil {
		return err
	}
	if len(value) > peripheral.MaxValueLength {
		return fmt.Errorf("%w: %d bytes", peripheral.ErrValueTooLarge, len(value))
	}
	c.d.mu.Lock()
	defer c.d.mu.Unlock()
	c.d.value = append([]byte(nil), value...)
	c.d.writes = append(c.d.writes, append([]byte(nil), value...))
	return nil
}
