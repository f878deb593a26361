// Package peripheral defines the GATT central operations used to exchange
// the task list with a wireless peripheral.
//
// The interfaces mirror the steps of a single round trip: check that a radio
// is available, discover a device advertising the task service, connect,
// resolve the service, resolve the characteristic, then read or write one
// value. Each step is a separate call so callers can report which one failed.
package peripheral

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// MaxValueLength is the largest attribute value a characteristic may carry.
const MaxValueLength = 512

var (
	// ErrUnsupported means no usable wireless adapter is present.
	ErrUnsupported = errors.New("wireless peripheral access is not supported")

	// ErrNoDevice means discovery finished without finding the service.
	ErrNoDevice = errors.New("no device advertising the service was found")

	// ErrServiceNotFound means the connected device lacks the service.
	ErrServiceNotFound = errors.New("service not found")

	// ErrCharacteristicNotFound means the service lacks the characteristic.
	ErrCharacteristicNotFound = errors.New("characteristic not found")

	// ErrValueTooLarge means a write would not fit in one attribute value.
	ErrValueTooLarge = errors.New("value exceeds characteristic size limit")
)

// Central is the local side of the link.
type Central interface {
	// Enable checks for and powers up the adapter.
	Enable(ctx context.Context) error

	// Discover scans until a device advertising service is seen.
	Discover(ctx context.Context, service UUID) (Advertisement, error)

	// Connect opens a connection to a discovered device.
	Connect(ctx context.Context, adv Advertisement) (Connection, error)
}

// Connection is an open link to one device.
type Connection interface {
	Service(ctx context.Context, uuid UUID) (Service, error)
	Disconnect() error
}

// Service is a resolved GATT service.
type Service interface {
	Characteristic(ctx context.Context, uuid UUID) (Characteristic, error)
}

// Characteristic is a resolved GATT characteristic.
type Characteristic interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, value []byte) error
}

// Advertisement describes a device seen during discovery.
type Advertisement struct {
	Address string
	Name    string
	RSSI    int
}

func (a Advertisement) String() string {
	if a.Name != "" {
		return fmt.Sprintf("%s (%s)", a.Name, a.Address)
	}
	return a.Address
}

// UUID is a canonical, lower-case 128-bit UUID string.
type UUID string

// ParseUUID validates and normalizes s.
func ParseUUID(s string) (UUID, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) != 36 {
		return "", fmt.Errorf("invalid uuid %q: want 36 characters", s)
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch i {
		case 8, 13, 18, 23:
			if c != '-' {
				return "", fmt.Errorf("invalid uuid %q: expected '-' at %d", s, i)
			}
		default:
			if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
				return "", fmt.Errorf("invalid uuid %q: bad character %q", s, c)
			}
		}
	}
	return UUID(s), nil
}

// Endpoint names a GATT attribute by its logical name and UUID.
type Endpoint struct {
	Name string
	UUID UUID
}

func (e Endpoint) String() string {
	if e.Name == "" {
		return string(e.UUID)
	}
	return fmt.Sprintf("%s (%s)", e.Name, e.UUID)
}

// Profile is the service and characteristic a sync round trip uses.
type Profile struct {
	Service        Endpoint
	Characteristic Endpoint
}

// Validate checks that both UUIDs are well formed.
func (p Profile) Validate() error {
	if _, err := ParseUUID(string(p.Service.UUID)); err != nil {
		return fmt.Errorf("service %s: %w", p.Service.Name, err)
	}
	if _, err := ParseUUID(string(p.Characteristic.UUID)); err != nil {
		return fmt.Errorf("characteristic %s: %w", p.Characteristic.Name, err)
	}
	return nil
}
