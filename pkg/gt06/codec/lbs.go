package codec

import (
	"github.com/fleetlink/gt06-gateway/internal/codec"
	"github.com/fleetlink/gt06-gateway/internal/frame"
	"github.com/fleetlink/gt06-gateway/pkg/gt06/message"
	"github.com/fleetlink/gt06-gateway/pkg/gt06/protocol"
)

type lbsParser struct{}

func (lbsParser) ProtocolNumber() byte { return protocol.ProtocolLBS }
func (lbsParser) Name() string         { return "lbs" }

func (lbsParser) Parse(f frame.Frame) (message.Message, error) {
	const minLen = 2 + 1 + 2 + 3
	if len(f.Payload) < minLen {
		return message.Message{}, &DecodeError{Protocol: f.Protocol, Reason: "lbs payload too short"}
	}
	body := message.LbsInfoBody{
		MCC:    codec.ReadUint16BE(f.Payload[0:2]),
		MNC:    f.Payload[2],
		LAC:    codec.ReadUint16BE(f.Payload[3:5]),
		CellID: codec.ReadUint24BE(f.Payload[5:8]),
	}
	return message.Message{
		Header: message.Header{ProtocolNumber: f.Protocol, SerialNumber: f.Serial},
		Kind:   message.KindLbsInfo,
		Body:   body,
	}, nil
}
