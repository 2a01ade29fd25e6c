package codec

import (
	"github.com/fleetlink/gt06-gateway/internal/codec"
	"github.com/fleetlink/gt06-gateway/internal/frame"
	"github.com/fleetlink/gt06-gateway/pkg/gt06/message"
	"github.com/fleetlink/gt06-gateway/pkg/gt06/protocol"
	"github.com/fleetlink/gt06-gateway/pkg/gt06/types"
)

// alarmParser decodes protocol 0x16: a location payload followed by one
// alarm/status byte. Bit assignment in the trailing byte:
// bit0=SOS, bit1=vibration, bit2=tamper, bit3=low_battery, bit4=over_speed,
// bit5=idle.
type alarmParser struct{}

func (alarmParser) ProtocolNumber() byte { return protocol.ProtocolAlarm }
func (alarmParser) Name() string         { return "alarm" }

const (
	alarmBitSOS = iota
	alarmBitVibration
	alarmBitTamper
	alarmBitLowBattery
	alarmBitOverSpeed
	alarmBitIdle
)

func (alarmParser) Parse(f frame.Frame) (message.Message, error) {
	const locationLen = 6 + 1 + 4 + 4 + 1 + 2
	if len(f.Payload) < locationLen+1 {
		return message.Message{}, &DecodeError{Protocol: f.Protocol, Reason: "alarm payload too short"}
	}

	deviceTime, err := codec.DecodeDateTime(f.Payload[0:6])
	if err != nil {
		return message.Message{}, &DecodeError{Protocol: f.Protocol, Reason: "invalid date field", Err: err}
	}
	satellites := f.Payload[6] >> 4
	latBytes := f.Payload[7:11]
	lonBytes := f.Payload[11:15]
	speed := f.Payload[15]
	courseStatus, err := types.NewCourseStatusFromBytes(f.Payload[16:18])
	if err != nil {
		return message.Message{}, &DecodeError{Protocol: f.Protocol, Reason: "invalid course/status field", Err: err}
	}
	coords, err := types.NewCoordinatesFromBytes(latBytes, lonBytes, courseStatus.South, courseStatus.West)
	if err != nil {
		return message.Message{}, &DecodeError{Protocol: f.Protocol, Reason: "invalid coordinates", Err: err}
	}

	alarmByte := f.Payload[locationLen]
	bit := func(n uint) bool { return codec.IsBitSet(alarmByte, n) }

	loc := message.LocationBody{
		DeviceTime:  deviceTime,
		Coordinates: coords,
		Speed:       speed,
		Course:      courseStatus,
		Satellites:  satellites,
		GPSValid:    courseStatus.GPSValid,
	}

	body := message.AlarmBody{
		Location:   loc,
		SOS:        bit(alarmBitSOS),
		Vibration:  bit(alarmBitVibration),
		Tamper:     bit(alarmBitTamper),
		LowBattery: bit(alarmBitLowBattery),
		OverSpeed:  bit(alarmBitOverSpeed),
		Idle:       bit(alarmBitIdle),
	}

	return message.Message{
		Header: message.Header{ProtocolNumber: f.Protocol, SerialNumber: f.Serial},
		Kind:   message.KindAlarm,
		Body:   body,
	}, nil
}
