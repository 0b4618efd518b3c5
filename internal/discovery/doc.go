// Package discovery finds and advertises GATT proxies with mDNS.
//
// A GATT proxy is a small host near the mower (a Raspberry Pi in the shed,
// say) that owns the Bluetooth adapter and relays GATT traffic over a
// websocket. Proxies advertise the "_mowerble._tcp" service with TXT
// records describing the websocket path, the adapter and the version.
//
// # Usage Example
//
//	scanner := discovery.NewScanner()
//	proxies, err := scanner.Browse(ctx)
//	if err != nil {
//	    return err
//	}
//	for _, p := range proxies {
//	    fmt.Println(p.Instance, p.URL())
//	}
//
// # Network Requirements
//
// - Requires multicast support on the network interface
// - Proxies must be on the same local network segment
// - Firewall must allow mDNS (UDP port 5353)
package discovery
