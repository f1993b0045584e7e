// Package ws implements the WebSocket stream of meshwatch.
//
// New(view, alwaysActive) creates a Hub subscribed to the view. Hub.Run(ctx)
// blocks until ctx is cancelled, then closes all active connections.
// Hub.ServeHTTP upgrades an HTTP connection to WebSocket, sends the latest
// snapshot immediately on connect, then streams every published snapshot.
//
// Each connection counts as a viewer of the dashboard. The first viewer
// activates polling and the last one to disconnect deactivates it, so no
// upstream traffic is generated while nobody is watching.
//
// Message format sent to clients:
//
//	{
//	  "event": "snapshot",
//	  "data":  { /* same schema as GET /api/v1/snapshot */ }
//	}
//
// The upgrader accepts all origins. The endpoint is mounted at /ws/stream.
package ws
