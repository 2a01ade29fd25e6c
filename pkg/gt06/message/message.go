// Package message defines the typed, decoded form of a GT06 frame: the
// tagged variant {Login, Location, Status, Heartbeat, Alarm, String,
// LbsInfo, CommandResponse, Unknown} described by the gateway's data model.
package message

import (
	"time"

	"github.com/fleetlink/gt06-gateway/pkg/gt06/types"
)

// Kind names the decoded variant a Message carries.
type Kind string

const (
	KindLogin           Kind = "login"
	KindLocation        Kind = "location"
	KindStatus          Kind = "status"
	KindHeartbeat       Kind = "heartbeat"
	KindAlarm           Kind = "alarm"
	KindString          Kind = "string"
	KindLbsInfo         Kind = "lbs_info"
	KindCommandResponse Kind = "command_response"
	KindUnknown         Kind = "unknown"
)

// Header is the common envelope shared by every decoded message.
type Header struct {
	IMEI           types.IMEI
	ProtocolNumber byte
	SerialNumber   uint16
	ReceivedAt     time.Time
}

// Message is the typed decoded form of a frame. Body is one of the
// *Body types declared in this package, selected by Kind.
type Message struct {
	Header
	Kind Kind
	Body interface{}
}

// LoginBody is the body of a Kind == KindLogin message.
type LoginBody struct {
	ModelID  uint16
	Timezone int16 // minutes offset, west-negative
}

// LocationBody is the body of a Kind == KindLocation message.
type LocationBody struct {
	DeviceTime  time.Time
	Coordinates types.Coordinates
	Speed       uint8
	Course      types.CourseStatus
	Satellites  uint8
	GPSValid    bool
}

// StatusBody is the body of a Kind == KindStatus message.
type StatusBody struct {
	Ignition      bool
	ExternalPower bool
	Charging      bool
	BatteryMv     uint16
	BatteryPct    uint8
	GSMDbm        int
	GSMLevel      uint8
}

// HeartbeatBody is the body of a Kind == KindHeartbeat message.
type HeartbeatBody struct {
	Terminal types.TerminalInfo
	GSMLevel uint8
}

// AlarmBody is the body of a Kind == KindAlarm message.
type AlarmBody struct {
	Location   LocationBody
	SOS        bool
	Vibration  bool
	Tamper     bool
	LowBattery bool
	OverSpeed  bool
	Idle       bool
}

// StringBody is the body of a Kind == KindString message (an arbitrary
// text report, e.g. an address lookup response).
type StringBody struct {
	Text string
}

// LbsInfoBody is the body of a Kind == KindLbsInfo message (cell-tower
// location).
type LbsInfoBody struct {
	MCC    uint16
	MNC    uint8
	LAC    uint16
	CellID uint32
}

// CommandResponseBody is the body of a Kind == KindCommandResponse
// message: the device's reply to a previously sent online command.
type CommandResponseBody struct {
	ServerFlag uint32
	Text       string
}

// UnknownBody preserves the raw payload of a message with no registered
// decoder for its protocol number.
type UnknownBody struct {
	Payload []byte
}

// RequiresAck reports whether a message kind expects a protocol-level ACK
// frame to be written back to the device.
func RequiresAck(k Kind) bool {
	switch k {
	case KindLogin, KindHeartbeat, KindLocation, KindAlarm, KindLbsInfo:
		return true
	default:
		return false
	}
}
