package codec

import (
	"github.com/fleetlink/gt06-gateway/internal/frame"
	"github.com/fleetlink/gt06-gateway/pkg/gt06/message"
	"github.com/fleetlink/gt06-gateway/pkg/gt06/protocol"
)

type stringParser struct{}

func (stringParser) ProtocolNumber() byte { return protocol.ProtocolString }
func (stringParser) Name() string         { return "string" }

func (stringParser) Parse(f frame.Frame) (message.Message, error) {
	if len(f.Payload) < 1 {
		return message.Message{}, &DecodeError{Protocol: f.Protocol, Reason: "string payload missing length byte"}
	}
	length := int(f.Payload[0])
	if len(f.Payload) < 1+length {
		return message.Message{}, &DecodeError{Protocol: f.Protocol, Reason: "string payload shorter than declared length"}
	}
	text := string(f.Payload[1 : 1+length])

	return message.Message{
		Header: message.Header{ProtocolNumber: f.Protocol, SerialNumber: f.Serial},
		Kind:   message.KindString,
		Body:   message.StringBody{Text: text},
	}, nil
}
