// Package ble implements the link GATT interfaces on top of the host
// Bluetooth stack (BlueZ over D-Bus, CoreBluetooth or WinRT) through
// tinygo.org/x/bluetooth.
//
//	adapter := ble.New(log)
//	m := mower.New(adapter, mower.DefaultChannel,
//	    mower.WithScanner(adapter),
//	    mower.WithGate(adapter),
//	)
//
// The host stack allows one scan at a time per adapter; Scan and
// FindDeviceByAddress serialise on that.
package ble
