// Package ble implements peripheral.Central over tinygo.org/x/bluetooth.
package ble

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"tinygo.org/x/bluetooth"

	"github.com/nibzard/tasksync/internal/peripheral"
)

// DefaultScanTimeout bounds discovery when no option overrides it.
const DefaultScanTimeout = 30 * time.Second

// scanStopGrace bounds the wait for a stopped scan to return.
const scanStopGrace = 2 * time.Second

// Option configures a Central.
type Option func(*Central)

// WithScanTimeout sets how long Discover scans before giving up.
func WithScanTimeout(d time.Duration) Option {
	return func(c *Central) {
		if d > 0 {
			c.scanTimeout = d
		}
	}
}

// WithLogger sets the logger used for adapter events.
func WithLogger(logger *log.Logger) Option {
	return func(c *Central) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Central drives a local Bluetooth adapter as a GATT central.
type Central struct {
	adapter     *bluetooth.Adapter
	scanTimeout time.Duration
	stopGrace   time.Duration
	logger      *log.Logger

	mu   sync.Mutex
	seen map[string]bluetooth.Address
}

var _ peripheral.Central = (*Central)(nil)

// New wraps adapter. A nil adapter selects bluetooth.DefaultAdapter.
func New(adapter *bluetooth.Adapter, opts ...Option) *Central {
	if adapter == nil {
		adapter = bluetooth.DefaultAdapter
	}
	c := &Central{
		adapter:     adapter,
		scanTimeout: DefaultScanTimeout,
		stopGrace:   scanStopGrace,
		logger:      log.Default(),
		seen:        make(map[string]bluetooth.Address),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Enable powers up the adapter. Any failure is reported as unsupported.
func (c *Central) Enable(ctx context.Context) error {
	if c.adapter == nil {
		return peripheral.ErrUnsupported
	}
	err := run(ctx, c.adapter.Enable)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return err
	}
	return fmt.Errorf("%w: %v", peripheral.ErrUnsupported, err)
}

// Discover scans until a device advertising service is seen or the scan
// timeout elapses.
func (c *Central) Discover(ctx context.Context, service peripheral.UUID) (peripheral.Advertisement, error) {
	uuid, err := bluetooth.ParseUUID(string(service))
	if err != nil {
		return peripheral.Advertisement{}, fmt.Errorf("parse service uuid: %w", err)
	}

	scanCtx, cancel := context.WithTimeout(ctx, c.scanTimeout)
	defer cancel()

	found := make(chan bluetooth.ScanResult, 1)
	scanDone := make(chan error, 1)
	go func() {
		scanDone <- c.adapter.Scan(func(a *bluetooth.Adapter, result bluetooth.ScanResult) {
			if !result.HasServiceUUID(uuid) {
				return
			}
			select {
			case found <- result:
			default:
			}
			if err := a.StopScan(); err != nil {
				c.logger.Warn("stop scan", "err", err)
			}
		})
	}()

	select {
	case result := <-found:
		c.awaitScanEnd(scanDone)
		return c.accept(result), nil
	case err := <-scanDone:
		select {
		case result := <-found:
			return c.accept(result), nil
		default:
		}
		if err != nil {
			return peripheral.Advertisement{}, fmt.Errorf("scan: %w", err)
		}
		return peripheral.Advertisement{}, peripheral.ErrNoDevice
	case <-scanCtx.Done():
		if err := c.adapter.StopScan(); err != nil {
			c.logger.Warn("stop scan", "err", err)
		}
		c.awaitScanEnd(scanDone)
		if ctx.Err() != nil {
			return peripheral.Advertisement{}, ctx.Err()
		}
		return peripheral.Advertisement{}, fmt.Errorf("%w within %s", peripheral.ErrNoDevice, c.scanTimeout)
	}
}

// awaitScanEnd waits a bounded time for the scan goroutine to return. A scan
// that ignores StopScan is abandoned; its result channel is buffered.
func (c *Central) awaitScanEnd(scanDone <-chan error) {
	if err := waitScanDone(scanDone, c.stopGrace); err != nil {
		c.logger.Warn("scan did not stop", "err", err)
	}
}

var errScanNotStopped = errors.New("scan still running after stop")

func waitScanDone(scanDone <-chan error, grace time.Duration) error {
	timer := time.NewTimer(grace)
	defer timer.Stop()
	select {
	case <-scanDone:
		return nil
	case <-timer.C:
		return fmt.Errorf("%w (waited %s)", errScanNotStopped, grace)
	}
}

// Connect opens a connection to a device returned by Discover.
func (c *Central) Connect(ctx context.Context, adv peripheral.Advertisement) (peripheral.Connection, error) {
	addr, ok := c.lookup(adv.Address)
	if !ok {
		return nil, fmt.Errorf("device %s was not discovered by this adapter", adv.Address)
	}

	device, err := call(ctx, func() (bluetooth.Device, error) {
		return c.adapter.Connect(addr, bluetooth.ConnectionParams{})
	})
	if err != nil {
		return nil, err
	}
	c.logger.Debug("connected", "device", adv.String())
	return &connection{device: device, logger: c.logger}, nil
}

func (c *Central) accept(result bluetooth.ScanResult) peripheral.Advertisement {
	adv := peripheral.Advertisement{
		Address: result.Address.String(),
		Name:    result.LocalName(),
		RSSI:    int(result.RSSI),
	}
	c.remember(adv.Address, result.Address)
	c.logger.Debug("device discovered", "device", adv.String(), "rssi", adv.RSSI)
	return adv
}

func (c *Central) remember(key string, addr bluetooth.Address) {
	c.mu.Lock()
	c.seen[key] = addr
	c.mu.Unlock()
}

func (c *Central) lookup(key string) (bluetooth.Address, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	addr, ok := c.seen[key]
	return addr, ok
}

type connection struct {
	device bluetooth.Device
	logger *log.Logger
}

func (c *connection) Service(ctx context.Context, id peripheral.UUID) (peripheral.Service, error) {
	uuid, err := bluetooth.ParseUUID(string(id))
	if err != nil {
		return nil, fmt.Errorf("parse service uuid: %w", err)
	}

	services, err := call(ctx, func() ([]bluetooth.DeviceService, error) {
		return c.device.DiscoverServices([]bluetooth.UUID{uuid})
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s: %v", peripheral.ErrServiceNotFound, id, err)
	}
	if len(services) == 0 {
		return nil, fmt.Errorf("%w: %s", peripheral.ErrServiceNotFound, id)
	}
	return &service{svc: services[0], logger: c.logger}, nil
}

func (c *connection) Disconnect() error {
	return c.device.Disconnect()
}

type service struct {
	svc    bluetooth.DeviceService
	logger *log.Logger
}

func (s *service) Characteristic(ctx context.Context, id peripheral.UUID) (peripheral.Characteristic, error) {
	uuid, err := bluetooth.ParseUUID(string(id))
	if err != nil {
		return nil, fmt.Errorf("parse characteristic uuid: %w", err)
	}

	chars, err := call(ctx, func() ([]bluetooth.DeviceCharacteristic, error) {
		return s.svc.DiscoverCharacteristics([]bluetooth.UUID{uuid})
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s: %v", peripheral.ErrCharacteristicNotFound, id, err)
	}
	if len(chars) == 0 {
		return nil, fmt.Errorf("%w: %s", peripheral.ErrCharacteristicNotFound, id)
	}
	return &characteristic{char: chars[0], logger: s.logger}, nil
}

type characteristic struct {
	char   bluetooth.DeviceCharacteristic
	logger *log.Logger
}

var _ peripheral.Characteristic = (*characteristic)(nil)

func (c *characteristic) Read(ctx context.Context) ([]byte, error) {
	buf := make([]byte, peripheral.MaxValueLength)
	n, err := call(ctx, func() (int, error) {
		return readValue(c.char, buf)
	})
	if err != nil {
		return nil, err
	}
	n, truncated := clampRead(n, len(buf))
	if truncated {
		c.logger.Warn("characteristic value filled the read buffer and may be truncated", "bytes", n)
	}
	return buf[:n], nil
}

// clampRead bounds a reported read length to the buffer size. Some backends
// report the full value length even when it did not fit.
func clampRead(n, size int) (int, bool) {
	if n < 0 {
		return 0, false
	}
	if n >= size {
		return size, true
	}
	return n, false
}

func (c *characteristic) Write(ctx context.Context, value []byte) error {
	if len(value) > peripheral.MaxValueLength {
		return fmt.Errorf("%w: %d > %d bytes", peripheral.ErrValueTooLarge, len(value), peripheral.MaxValueLength)
	}
	n, err := call(ctx, func() (int, error) {
		return writeValue(c.char, value)
	})
	if err != nil {
		return err
	}
	if n != len(value) {
		return fmt.Errorf("short write: %d of %d bytes", n, len(value))
	}
	return nil
}

var errNilCall = errors.New("nil call")

// call runs fn on its own goroutine so a hung adapter call is bounded by ctx.
// The adapter call itself cannot be interrupted and finishes in the background.
func call[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	var zero T
	if fn == nil {
		return zero, errNilCall
	}
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := fn()
		ch <- result{v: v, err: err}
	}()

	select {
	case r := <-ch:
		return r.v, r.err
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

func run(ctx context.Context, fn func() error) error {
	if fn == nil {
		return errNilCall
	}
	_, err := call(ctx, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}
