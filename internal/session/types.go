// Package session implements the Session Registry (C3): the concurrent
// IMEI-to-live-connection binding, persisted so that restarts and
// horizontally scaled instances see consistent state.
package session

import "time"

// Session is the runtime binding of a device to a live connection.
// ChannelID is an opaque handle into the Connection Handler; the registry
// never stores or serialises a live net.Conn (see SPEC_FULL.md's Open
// Question decisions) — the Connection Handler resolves the handle to an
// actual connection on demand.
type Session struct {
	ID           string
	IMEI         string
	ChannelID    string
	RemoteAddr   string
	Authenticated bool
	CreatedAt    time.Time
	LastActivity time.Time
	LastLoginAt  time.Time
	LastPosition *Position
	Attributes   map[string]string
}

// Position is the last known fix recorded against a session.
type Position struct {
	Latitude  float64
	Longitude float64
	At        time.Time
}

// EventKind names a SessionEvent variant.
type EventKind string

const (
	EventConnected    EventKind = "connected"
	EventDisconnected EventKind = "disconnected"
)

// Event is published on every lifecycle transition that crosses the
// session boundary.
type Event struct {
	Kind            EventKind
	SessionID       string
	IMEI            string
	RemoteAddr      string
	ProtocolVersion string
	At              time.Time
}
