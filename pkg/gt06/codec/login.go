package codec

import (
	"encoding/binary"

	"github.com/fleetlink/gt06-gateway/internal/codec"
	"github.com/fleetlink/gt06-gateway/internal/frame"
	"github.com/fleetlink/gt06-gateway/pkg/gt06/message"
	"github.com/fleetlink/gt06-gateway/pkg/gt06/protocol"
)

type loginParser struct{}

func (loginParser) ProtocolNumber() byte { return protocol.ProtocolLogin }
func (loginParser) Name() string         { return "login" }

func (loginParser) Parse(f frame.Frame) (message.Message, error) {
	if len(f.Payload) < 8 {
		return message.Message{}, &DecodeError{Protocol: f.Protocol, Reason: "login payload shorter than 8-byte IMEI"}
	}
	imei, err := decodeIMEIField(f.Payload)
	if err != nil {
		return message.Message{}, &DecodeError{Protocol: f.Protocol, Reason: "invalid BCD IMEI", Err: err}
	}

	body := message.LoginBody{}
	rest := f.Payload[8:]
	if len(rest) >= 2 {
		body.ModelID = binary.BigEndian.Uint16(rest[:2])
		rest = rest[2:]
	}
	if len(rest) >= 2 {
		minutes, _, err := codec.DecodeTimezone(rest[:2])
		if err == nil {
			body.Timezone = int16(minutes)
		}
	}

	return message.Message{
		Header: message.Header{
			IMEI:           imei,
			ProtocolNumber: f.Protocol,
			SerialNumber:   f.Serial,
		},
		Kind: message.KindLogin,
		Body: body,
	}, nil
}
