package proxy

import (
	"time"
)

const (
	opFind         = "find"
	opConnect      = "connect"
	opDiscover     = "discover"
	opSubscribe    = "subscribe"
	opUnsubscribe  = "unsubscribe"
	opDisconnect   = "disconnect"
	opResult       = "result"
	opDisconnected = "disconnected"
	opWriteError   = "write_error"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 8192
)

type message struct {
	Op       string   `json:"op"`
	ID       uint64   `json:"id,omitempty"`
	Address  string   `json:"address,omitempty"`
	Name     string   `json:"name,omitempty"`
	Service  string   `json:"service,omitempty"`
	UUIDs    []string `json:"uuids,omitempty"`
	Index    int      `json:"index,omitempty"`
	MTU      int      `json:"mtu,omitempty"`
	Error    string   `json:"error,omitempty"`
	NotFound bool     `json:"not_found,omitempty"`
}
