package server

import (
	"fmt"

	"rocketball/pkg/protocol"
)

// DecodePacket 解析服务端收到的数据包
func DecodePacket(data []byte) (*ServerEvent, error) {
	pkt, err := protocol.UnmarshalPacket(data)
	if err != nil {
		return nil, fmt.Errorf("解析包失败: %w", err)
	}

	switch pkt.Type {
	case protocol.MsgJoinRequest:
		req, err := protocol.ParseJoinRequest(pkt)
		if err != nil {
			return nil, err
		}
		return &ServerEvent{
			Kind: EventJoin,
			Join: &JoinEvent{Name: req.Name},
		}, nil

	case protocol.MsgReconnectRequest:
		req, err := protocol.ParseReconnectRequest(pkt)
		if err != nil {
			return nil, err
		}
		return &ServerEvent{
			Kind:      EventReconnect,
			Reconnect: &ReconnectEvent{SessionToken: req.Token},
		}, nil

	case protocol.MsgInputBatch:
		batch, err := protocol.ParseInputBatch(pkt)
		if err != nil {
			return nil, err
		}
		return &ServerEvent{
			Kind:  EventInput,
			Input: &InputEvent{Samples: batch.Samples},
		}, nil

	case protocol.MsgPing:
		ping, err := protocol.ParsePing(pkt)
		if err != nil {
			return nil, err
		}
		return &ServerEvent{
			Kind: EventPing,
			Ping: &PingEvent{ClientTime: ping.ClientTime},
		}, nil

	default:
		return &ServerEvent{Kind: EventUnknown}, nil
	}
}
