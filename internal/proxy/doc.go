// Package proxy relays GATT traffic over a websocket, so that mowerctl can
// reach a mower through a host that sits in Bluetooth range.
//
// Server wraps a local link.Scanner and link.Transport (normally the ble
// adapter) and serves one GATT session per websocket. Transport is the
// client half: it implements link.Scanner and link.Transport, so the
// connection manager runs unchanged on top of it.
//
// # Wire Format
//
// Control messages are JSON text frames:
//
//	{"op":"find","id":1,"address":"60:98:66:AA:BB:CC"}
//	{"op":"connect","id":2,"address":"60:98:66:AA:BB:CC"}
//	{"op":"discover","id":3,"service":"98bd0001-...","uuids":["98bd0002-...","98bd0003-..."]}
//	{"op":"subscribe","id":4,"index":1}
//	{"op":"unsubscribe","id":5,"index":1}
//	{"op":"disconnect","id":6}
//
// Every request is answered by {"op":"result","id":N} carrying an
// "error" on failure. The server reports link loss with
// {"op":"disconnected","error":"..."} and then closes the socket.
//
// Characteristic traffic uses binary frames: one byte holding the
// characteristic index from the discover result, followed by the raw
// GATT value. Client to server is a write without response, server to
// client is a notification.
package proxy
