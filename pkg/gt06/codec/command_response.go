package codec

import (
	"encoding/binary"

	"github.com/fleetlink/gt06-gateway/internal/frame"
	"github.com/fleetlink/gt06-gateway/pkg/gt06/message"
)

// commandResponseParser decodes the device's reply to a previously sent
// online command: a 4-byte server flag echo followed by UTF-8 text.
type commandResponseParser struct {
	protocol byte
}

func (p commandResponseParser) ProtocolNumber() byte { return p.protocol }
func (commandResponseParser) Name() string           { return "command_response" }

func (p commandResponseParser) Parse(f frame.Frame) (message.Message, error) {
	if len(f.Payload) < 4 {
		return message.Message{}, &DecodeError{Protocol: f.Protocol, Reason: "command response payload too short"}
	}
	body := message.CommandResponseBody{
		ServerFlag: binary.BigEndian.Uint32(f.Payload[0:4]),
		Text:       string(f.Payload[4:]),
	}
	return message.Message{
		Header: message.Header{ProtocolNumber: f.Protocol, SerialNumber: f.Serial},
		Kind:   message.KindCommandResponse,
		Body:   body,
	}, nil
}
