// Package server hosts a GATT proxy on the network.
//
// It wraps the proxy websocket handler in an HTTP server, optionally with
// TLS, and advertises it over mDNS so clients can find it with
// discovery.Scanner:
//
//	srv, err := server.New(&server.Config{
//	    Port:     8765,
//	    Instance: "garden-pi",
//	    Metadata: map[string]string{discovery.TxtAdapter: "hci0"},
//	}, proxy.NewServer(adapter, adapter), log)
//	if err != nil {
//	    return err
//	}
//	return srv.Start() // blocks until SIGINT or SIGTERM
//
// # Graceful Shutdown
//
// On shutdown the server:
//  1. Withdraws the mDNS advertisement
//  2. Stops accepting new connections
//  3. Closes every websocket session, which disconnects its peripheral
//  4. Waits for session goroutines, bounded by ShutdownTimeout
package server
