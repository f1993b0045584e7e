// Package types defines the data model shared by the poller, the REST API and
// the websocket hub. These are the canonical in-memory representations of
// dashboard state, separate from any JSON wire format.
package types
