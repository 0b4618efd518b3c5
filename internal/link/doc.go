// Package link owns one BLE connection to a mower and correlates requests
// with responses on it.
//
// The platform GATT stack is reached through the small interfaces in
// gatt.go (Scanner, Transport, Peripheral, Characteristic). internal/ble
// implements them with tinygo.org/x/bluetooth, internal/proxy over a
// WebSocket, and link/linktest in memory.
//
// # Lifecycle
//
//	Disconnected -> Connecting -> Connected -> Disconnected
//
// Connect is only accepted from Disconnected. While Connecting the manager
// resolves the write and notify characteristics, subscribes, and runs the
// optional Handshake; any failure returns straight to Disconnected with a
// connection error.
//
// # Requests
//
// RequestResponse allows one request in flight. A second caller gets
// protocol.ErrBusy immediately; there is no queue. The caller waits until
// exactly one of these happens:
//
//   - a frame with the same channel and command id arrives
//   - the timeout fires (protocol.ErrTimeout, connection stays usable)
//   - the link is torn down (protocol.ErrDisconnected)
//   - the context is cancelled (protocol.ErrTimeout wrapping ctx.Err())
//
// Frames for other commands are logged and dropped without disturbing the
// pending request.
package link
