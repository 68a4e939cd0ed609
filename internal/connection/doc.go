// Package connection manages client WebSocket connections: the HTTP
// upgrade endpoint, per-connection read/write pumps, and the identity to
// connection mapping used by the broadcaster.
//
// A client declares its identity in every inbound message; the manager
// rebinds identity -> connection on each one, so reconnects need no
// handshake. Binding is last-writer-wins and never closes the socket it
// displaces.
package connection
