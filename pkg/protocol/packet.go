package protocol

import "rocketball/pkg/core"

// ProtocolVersion 线上协议版本
// 载荷字段按声明顺序定长序列化、tick 在最前，这一布局就是线上契约；
// 任何字段集或顺序的改动都必须抬升版本号，新旧端灰度期间并存。
const ProtocolVersion uint8 = 1

// MessageType 消息类型
type MessageType uint8

const (
	MsgUnknown MessageType = iota
	MsgJoinRequest
	MsgJoinAccept
	MsgReconnectRequest
	MsgInputBatch
	MsgCarSnapshot
	MsgRemoteCarSnapshot
	MsgBallSnapshot
	MsgPing
	MsgPong
)

func (t MessageType) String() string {
	switch t {
	case MsgJoinRequest:
		return "join_request"
	case MsgJoinAccept:
		return "join_accept"
	case MsgReconnectRequest:
		return "reconnect_request"
	case MsgInputBatch:
		return "input_batch"
	case MsgCarSnapshot:
		return "car_snapshot"
	case MsgRemoteCarSnapshot:
		return "remote_car_snapshot"
	case MsgBallSnapshot:
		return "ball_snapshot"
	case MsgPing:
		return "ping"
	case MsgPong:
		return "pong"
	default:
		return "unknown"
	}
}

// JoinRequest 客户端加入请求
type JoinRequest struct {
	Name string
}

// JoinAccept 服务端加入确认：分配玩家 ID 与会话 Token
type JoinAccept struct {
	Tick     int64 // 服务端当前 tick
	PlayerID int32
	Token    string
}

// ReconnectRequest 断线重连：凭会话 Token 重新绑定实体
type ReconnectRequest struct {
	Token string
}

// InputBatch 输入批次：携带最近若干 tick 的冗余窗口
// 单个丢包不会在服务端造成输入空洞。
type InputBatch struct {
	Samples []core.InputSample
}

// CarSnapshot 发给车主的权威完整快照
type CarSnapshot struct {
	State core.CarState
}

// RemoteCarSnapshot 发给非车主的精简快照（仅位姿加速度）
type RemoteCarSnapshot struct {
	Tick            int64
	PlayerID        int32
	Position        core.Vec3
	Rotation        core.Quat
	LinearVelocity  core.Vec3
	AngularVelocity core.Vec3
}

// BallSnapshot 球的广播快照
type BallSnapshot struct {
	State core.BallState
}

// Ping 时间同步探测（客户端发起）
type Ping struct {
	ClientTime int64 // 客户端毫秒时间戳，原样回传
}

// Pong 时间同步应答：带服务端时间与 tick
type Pong struct {
	ClientTime int64
	ServerTime int64
	ServerTick int64
}
