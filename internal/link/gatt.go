package link

import (
	"context"
	"errors"
)

// Mower GATT service and characteristics
const (
	ServiceUUID = "98bd0001-0b0e-421a-84e5-ddbf75dc6de4"
	WriteUUID   = "98bd0002-0b0e-421a-84e5-ddbf75dc6de4"
	NotifyUUID  = "98bd0003-0b0e-421a-84e5-ddbf75dc6de4"
)

// ErrDeviceNotFound is returned by scanners when no device matches
var ErrDeviceNotFound = errors.New("device not found")

// Device is a handle to a discovered BLE device
type Device interface {
	Address() string
	Name() string
}

// Scanner resolves a Bluetooth address to a device handle
type Scanner interface {
	// FindDeviceByAddress scans until the address is seen or ctx ends.
	// It returns an error wrapping ErrDeviceNotFound when the scan ends
	// without a match.
	FindDeviceByAddress(ctx context.Context, address string) (Device, error)
}

// Transport opens GATT connections
type Transport interface {
	Connect(ctx context.Context, device Device) (Peripheral, error)
}

// Peripheral is a connected GATT server
type Peripheral interface {
	// Characteristics resolves the given characteristic UUIDs inside a
	// service. The map is keyed by lower-case UUID; missing characteristics
	// are absent from it.
	Characteristics(ctx context.Context, service string, uuids ...string) (map[string]Characteristic, error)

	// MTU returns the largest write payload in bytes, or 0 if unknown
	MTU() int

	// OnDisconnect registers a callback for link loss. It is not called
	// for Disconnect.
	OnDisconnect(fn func(err error))

	Disconnect() error
}

// Characteristic is one GATT characteristic
type Characteristic interface {
	UUID() string
	Write(data []byte) error
	Subscribe(fn func(data []byte)) error
	Unsubscribe() error
}
