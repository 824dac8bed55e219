// Package api provides the HTTP REST API and WebSocket server for the
// fingerprint bridge.
//
// HTTP callers submit sensor commands and read bridge status; WebSocket
// clients receive the live event stream. Each WebSocket client is one
// subscription on the bridge's event bus, so a slow browser only loses
// its own oldest events and never stalls the serial read loop.
//
// The server follows the same lifecycle pattern as other infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api
