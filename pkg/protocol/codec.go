package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"rocketball/pkg/core"
)

const (
	// MaxPacketSize 单条消息上限（不含长度前缀）
	MaxPacketSize = 4096

	headerSize  = 2 // 版本 + 类型
	maxInputs   = 32
	maxNameLen  = 64
	maxTokenLen = 1024
)

var (
	ErrVersionMismatch = errors.New("协议版本不匹配")
	ErrTruncated       = errors.New("消息不完整")
	ErrTooLarge        = errors.New("消息过大")
)

// Packet 解出头部后的原始包
type Packet struct {
	Type MessageType
	Body []byte
}

// UnmarshalPacket 解析包头并校验版本
func UnmarshalPacket(data []byte) (*Packet, error) {
	if len(data) < headerSize {
		return nil, ErrTruncated
	}
	if len(data) > MaxPacketSize {
		return nil, ErrTooLarge
	}
	if data[0] != ProtocolVersion {
		return nil, fmt.Errorf("%w: 收到 %d，期望 %d", ErrVersionMismatch, data[0], ProtocolVersion)
	}
	return &Packet{
		Type: MessageType(data[1]),
		Body: data[headerSize:],
	}, nil
}

func marshalPacket(t MessageType, body []byte) []byte {
	out := make([]byte, 0, headerSize+len(body))
	out = append(out, ProtocolVersion, byte(t))
	return append(out, body...)
}

// encodeFixed 定长载荷：按字段声明顺序大端序列化
func encodeFixed(t MessageType, v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.BigEndian, v); err != nil {
		return nil, fmt.Errorf("序列化 %s 失败: %w", t, err)
	}
	return marshalPacket(t, buf.Bytes()), nil
}

func decodeFixed(p *Packet, v any) error {
	r := bytes.NewReader(p.Body)
	if err := binary.Read(r, binary.BigEndian, v); err != nil {
		return fmt.Errorf("解析 %s 失败: %w", p.Type, ErrTruncated)
	}
	if r.Len() != 0 {
		return fmt.Errorf("解析 %s 失败: 载荷长度不符", p.Type)
	}
	return nil
}

func writeString(buf *bytes.Buffer, s string, limit int) error {
	if len(s) > limit {
		return ErrTooLarge
	}
	if err := binary.Write(buf, binary.BigEndian, uint16(len(s))); err != nil {
		return err
	}
	buf.WriteString(s)
	return nil
}

func readString(r *bytes.Reader, limit int) (string, error) {
	var n uint16
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return "", ErrTruncated
	}
	if int(n) > limit || int(n) > r.Len() {
		return "", ErrTruncated
	}
	b := make([]byte, n)
	if _, err := r.Read(b); err != nil {
		return "", ErrTruncated
	}
	return string(b), nil
}

// ========== 会话消息 ==========

func NewJoinRequest(name string) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeString(&buf, name, maxNameLen); err != nil {
		return nil, fmt.Errorf("序列化加入请求失败: %w", err)
	}
	return marshalPacket(MsgJoinRequest, buf.Bytes()), nil
}

func ParseJoinRequest(p *Packet) (*JoinRequest, error) {
	r := bytes.NewReader(p.Body)
	name, err := readString(r, maxNameLen)
	if err != nil {
		return nil, fmt.Errorf("解析加入请求失败: %w", err)
	}
	return &JoinRequest{Name: name}, nil
}

func NewJoinAccept(tick int64, playerID int32, token string) ([]byte, error) {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.BigEndian, tick); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, playerID); err != nil {
		return nil, err
	}
	if err := writeString(&buf, token, maxTokenLen); err != nil {
		return nil, fmt.Errorf("序列化加入确认失败: %w", err)
	}
	return marshalPacket(MsgJoinAccept, buf.Bytes()), nil
}

func ParseJoinAccept(p *Packet) (*JoinAccept, error) {
	r := bytes.NewReader(p.Body)
	var a JoinAccept
	if err := binary.Read(r, binary.BigEndian, &a.Tick); err != nil {
		return nil, ErrTruncated
	}
	if err := binary.Read(r, binary.BigEndian, &a.PlayerID); err != nil {
		return nil, ErrTruncated
	}
	token, err := readString(r, maxTokenLen)
	if err != nil {
		return nil, fmt.Errorf("解析加入确认失败: %w", err)
	}
	a.Token = token
	return &a, nil
}

func NewReconnectRequest(token string) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeString(&buf, token, maxTokenLen); err != nil {
		return nil, fmt.Errorf("序列化重连请求失败: %w", err)
	}
	return marshalPacket(MsgReconnectRequest, buf.Bytes()), nil
}

func ParseReconnectRequest(p *Packet) (*ReconnectRequest, error) {
	r := bytes.NewReader(p.Body)
	token, err := readString(r, maxTokenLen)
	if err != nil {
		return nil, fmt.Errorf("解析重连请求失败: %w", err)
	}
	return &ReconnectRequest{Token: token}, nil
}

// ========== 输入 ==========

func NewInputBatch(samples []core.InputSample) ([]byte, error) {
	if len(samples) > maxInputs {
		samples = samples[len(samples)-maxInputs:]
	}
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.BigEndian, uint8(len(samples))); err != nil {
		return nil, err
	}
	for i := range samples {
		if err := binary.Write(&buf, binary.BigEndian, &samples[i]); err != nil {
			return nil, fmt.Errorf("序列化输入批次失败: %w", err)
		}
	}
	return marshalPacket(MsgInputBatch, buf.Bytes()), nil
}

func ParseInputBatch(p *Packet) (*InputBatch, error) {
	r := bytes.NewReader(p.Body)
	var count uint8
	if err := binary.Read(r, binary.BigEndian, &count); err != nil {
		return nil, ErrTruncated
	}
	if int(count) > maxInputs {
		return nil, ErrTooLarge
	}
	batch := &InputBatch{Samples: make([]core.InputSample, count)}
	for i := range batch.Samples {
		if err := binary.Read(r, binary.BigEndian, &batch.Samples[i]); err != nil {
			return nil, fmt.Errorf("解析输入批次失败: %w", ErrTruncated)
		}
	}
	return batch, nil
}

// ========== 快照 ==========

func NewCarSnapshot(state core.CarState) ([]byte, error) {
	return encodeFixed(MsgCarSnapshot, &state)
}

func ParseCarSnapshot(p *Packet) (*CarSnapshot, error) {
	var s CarSnapshot
	if err := decodeFixed(p, &s.State); err != nil {
		return nil, err
	}
	if err := validateFloats(s.State.Position, s.State.LinearVelocity); err != nil {
		return nil, err
	}
	return &s, nil
}

func NewRemoteCarSnapshot(s RemoteCarSnapshot) ([]byte, error) {
	return encodeFixed(MsgRemoteCarSnapshot, &s)
}

func ParseRemoteCarSnapshot(p *Packet) (*RemoteCarSnapshot, error) {
	var s RemoteCarSnapshot
	if err := decodeFixed(p, &s); err != nil {
		return nil, err
	}
	if err := validateFloats(s.Position, s.LinearVelocity); err != nil {
		return nil, err
	}
	return &s, nil
}

func NewBallSnapshot(state core.BallState) ([]byte, error) {
	return encodeFixed(MsgBallSnapshot, &state)
}

func ParseBallSnapshot(p *Packet) (*BallSnapshot, error) {
	var s BallSnapshot
	if err := decodeFixed(p, &s.State); err != nil {
		return nil, err
	}
	if err := validateFloats(s.State.Position, s.State.LinearVelocity); err != nil {
		return nil, err
	}
	return &s, nil
}

// ========== 时间同步 ==========

func NewPing(clientTime int64) ([]byte, error) {
	return encodeFixed(MsgPing, &Ping{ClientTime: clientTime})
}

func ParsePing(p *Packet) (*Ping, error) {
	var m Ping
	if err := decodeFixed(p, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func NewPong(clientTime, serverTime, serverTick int64) ([]byte, error) {
	return encodeFixed(MsgPong, &Pong{
		ClientTime: clientTime,
		ServerTime: serverTime,
		ServerTick: serverTick,
	})
}

func ParsePong(p *Packet) (*Pong, error) {
	var m Pong
	if err := decodeFixed(p, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// validateFloats 拒绝带 NaN/Inf 的载荷，避免污染模拟状态
func validateFloats(vs ...core.Vec3) error {
	for _, v := range vs {
		for _, f := range [3]float64{v.X, v.Y, v.Z} {
			if math.IsNaN(f) || math.IsInf(f, 0) {
				return errors.New("载荷包含非法浮点数")
			}
		}
	}
	return nil
}
