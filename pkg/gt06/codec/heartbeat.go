package codec

import (
	"github.com/fleetlink/gt06-gateway/internal/frame"
	"github.com/fleetlink/gt06-gateway/pkg/gt06/message"
	"github.com/fleetlink/gt06-gateway/pkg/gt06/protocol"
	"github.com/fleetlink/gt06-gateway/pkg/gt06/types"
)

type heartbeatParser struct{}

func (heartbeatParser) ProtocolNumber() byte { return protocol.ProtocolHeartbeat }
func (heartbeatParser) Name() string         { return "heartbeat" }

func (heartbeatParser) Parse(f frame.Frame) (message.Message, error) {
	if len(f.Payload) < 2 {
		return message.Message{}, &DecodeError{Protocol: f.Protocol, Reason: "heartbeat payload too short"}
	}
	body := message.HeartbeatBody{
		Terminal: types.NewTerminalInfo(f.Payload[0]),
		GSMLevel: f.Payload[1],
	}
	return message.Message{
		Header: message.Header{ProtocolNumber: f.Protocol, SerialNumber: f.Serial},
		Kind:   message.KindHeartbeat,
		Body:   body,
	}, nil
}
