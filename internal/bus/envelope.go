// Package bus implements the Telemetry Publisher (C5) and Command
// Consumer (C6): the gateway's only contact with the outside event bus.
// Records are serialised with msgpack, a compact schema-flexible binary
// codec standing in for the length-prefixed protobuf envelope spec.md
// asks for — protobuf needs its own `protoc`-generated bindings, which
// this build cannot produce (see DESIGN.md).
package bus

import "time"

// SessionRecord mirrors session.Event for the wire.
type SessionRecord struct {
	Kind            string    `msgpack:"kind"`
	SessionID       string    `msgpack:"session_id"`
	IMEI            string    `msgpack:"imei"`
	RemoteAddr      string    `msgpack:"remote_addr"`
	ProtocolVersion string    `msgpack:"protocol_version"`
	At              time.Time `msgpack:"at"`
}

// LocationRecord is the normalised position payload shared by the
// telemetry and location-only topics.
type LocationRecord struct {
	Latitude   float64   `msgpack:"lat"`
	Longitude  float64   `msgpack:"lon"`
	Altitude   float64   `msgpack:"alt"`
	Speed      float64   `msgpack:"speed"`
	Course     float64   `msgpack:"course"`
	Satellites int       `msgpack:"satellites"`
	Valid      bool      `msgpack:"valid"`
	Timestamp  time.Time `msgpack:"timestamp"`
}

// BatteryRecord summarises a device's power state.
type BatteryRecord struct {
	Mv  int `msgpack:"mv"`
	Pct int `msgpack:"pct"`
}

// GSMRecord summarises signal quality.
type GSMRecord struct {
	Dbm   int `msgpack:"dbm"`
	Level int `msgpack:"level"`
}

// TelemetryRecord is one decoded non-ack message.
type TelemetryRecord struct {
	IMEI        string            `msgpack:"imei"`
	MessageKind string            `msgpack:"message_kind"`
	Location    *LocationRecord   `msgpack:"location,omitempty"`
	Battery     *BatteryRecord    `msgpack:"battery,omitempty"`
	GSM         *GSMRecord        `msgpack:"gsm,omitempty"`
	Attributes  map[string]string `msgpack:"attributes,omitempty"`
	RawHex      string            `msgpack:"raw_hex"`
	At          time.Time         `msgpack:"at"`
}

// CommandRecord is one inbound command destined for a live connection.
type CommandRecord struct {
	CommandID   string            `msgpack:"command_id"`
	IMEI        string            `msgpack:"imei"`
	CommandText string            `msgpack:"command_text"`
	Parameters  map[string]string `msgpack:"parameters,omitempty"`
	Priority    int               `msgpack:"priority"`
	RetryCount  int               `msgpack:"retry_count"`
	MaxRetries  int               `msgpack:"max_retries"`
	At          time.Time         `msgpack:"at"`
}

// Topic names. The Publisher always writes to TopicSession, TopicTelemetry
// and TopicLocation; the session/telemetry/location topic settings in
// internal/config are not read by it. Only the command topic is taken from
// configuration (by cmd/gt06-gateway, for the command reader).
const (
	TopicSession   = "device.session"
	TopicTelemetry = "device.telemetry"
	TopicCommand   = "device.command"
	TopicLocation  = "device.location"
)
