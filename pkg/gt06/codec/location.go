package codec

import (
	"github.com/fleetlink/gt06-gateway/internal/codec"
	"github.com/fleetlink/gt06-gateway/internal/frame"
	"github.com/fleetlink/gt06-gateway/pkg/gt06/message"
	"github.com/fleetlink/gt06-gateway/pkg/gt06/types"
)

// locationParser decodes the GT06 location payload: 6-byte date, 1-byte
// satellite count, 4+4 byte lat/lon, 1-byte speed, 2-byte course/status.
// The header's IMEI is left unset here — the device's identity is not
// repeated on every frame; the Connection Handler keys the resulting
// telemetry record by its session's IMEI instead. ReceivedAt is filled in
// by Decoder.Decode.
type locationParser struct {
	protocol byte
}

func (p locationParser) ProtocolNumber() byte { return p.protocol }
func (locationParser) Name() string           { return "location" }

func (p locationParser) Parse(f frame.Frame) (message.Message, error) {
	const minLen = 6 + 1 + 4 + 4 + 1 + 2
	if len(f.Payload) < minLen {
		return message.Message{}, &DecodeError{Protocol: f.Protocol, Reason: "location payload too short"}
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

	return message.Message{
		Header: message.Header{
			ProtocolNumber: f.Protocol,
			SerialNumber:   f.Serial,
		},
		Kind: message.KindLocation,
		Body: message.LocationBody{
			DeviceTime:  deviceTime,
			Coordinates: coords,
			Speed:       speed,
			Course:      courseStatus,
			Satellites:  satellites,
			GPSValid:    courseStatus.GPSValid,
		},
	}, nil
}
