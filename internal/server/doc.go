// Package server exposes a running monitor over HTTP.
//
// Routes:
//
//	GET /               current devices (same as /devices)
//	GET /devices        current devices as JSON
//	GET /status         status snapshot keyed by device name
//	GET /status/{name}  one device and its status, 404 if unknown
//	GET /healthz        monitor state; 200 while RUNNING, 503 otherwise
//	GET /ws             WebSocket: a snapshot, then every monitor event
//
// The WebSocket hub subscribes to the monitor when Serve starts. A slow
// client misses events rather than holding up the others. When the monitor
// stops, its event channel closes and the hub disconnects every client.
//
// Usage:
//
//	srv, err := server.New(server.Config{Host: "0.0.0.0", Port: 8080}, mon)
//	if err != nil {
//		return err
//	}
//	return srv.Start(ctx) // returns after ctx is done and shutdown finished
package server
