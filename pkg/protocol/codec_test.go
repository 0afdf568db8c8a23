package protocol

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rocketball/pkg/core"
)

func TestUnmarshalPacketVersionMismatch(t *testing.T) {
	data := []byte{ProtocolVersion + 1, byte(MsgPing), 0, 0}

	_, err := UnmarshalPacket(data)
	assert.ErrorIs(t, err, ErrVersionMismatch)
}

func TestUnmarshalPacketTruncated(t *testing.T) {
	_, err := UnmarshalPacket([]byte{ProtocolVersion})
	assert.ErrorIs(t, err, ErrTruncated)

	_, err = UnmarshalPacket(nil)
	assert.ErrorIs(t, err, ErrTruncated)
}

func TestUnmarshalPacketTooLarge(t *testing.T) {
	data := make([]byte, MaxPacketSize+1)
	data[0] = ProtocolVersion

	_, err := UnmarshalPacket(data)
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestCarSnapshotRoundTrip(t *testing.T) {
	state := core.NewCarState(core.Vec3{X: 3, Z: -7}, 0.6)
	state.Tick = 1234
	state.LinearVelocity = core.Vec3{X: 11, Y: 2, Z: -1}
	state.SimState = core.CarJumping
	state.Jumping = true
	state.JumpTimer = 0.1

	data, err := NewCarSnapshot(state)
	require.NoError(t, err)

	pkt, err := UnmarshalPacket(data)
	require.NoError(t, err)
	require.Equal(t, MsgCarSnapshot, pkt.Type)

	got, err := ParseCarSnapshot(pkt)
	require.NoError(t, err)
	assert.Equal(t, state, got.State)
}

func TestInputBatchRoundTrip(t *testing.T) {
	samples := []core.InputSample{
		{Tick: 100, Throttle: 1, Steer: -0.25, Jump: true, JumpPressed: true},
		{Tick: 101, Throttle: 1, Boost: true, Drift: true},
	}

	data, err := NewInputBatch(samples)
	require.NoError(t, err)

	pkt, err := UnmarshalPacket(data)
	require.NoError(t, err)

	got, err := ParseInputBatch(pkt)
	require.NoError(t, err)
	assert.Equal(t, samples, got.Samples)
}

func TestInputBatchCapsWindow(t *testing.T) {
	samples := make([]core.InputSample, maxInputs+10)
	for i := range samples {
		samples[i].Tick = int64(i)
	}

	data, err := NewInputBatch(samples)
	require.NoError(t, err)

	pkt, err := UnmarshalPacket(data)
	require.NoError(t, err)

	got, err := ParseInputBatch(pkt)
	require.NoError(t, err)
	require.Len(t, got.Samples, maxInputs)
	// 裁掉的是最老的，最新输入必须保留
	assert.Equal(t, int64(maxInputs+9), got.Samples[len(got.Samples)-1].Tick)
}

func TestInputBatchTruncatedBody(t *testing.T) {
	data, err := NewInputBatch([]core.InputSample{{Tick: 5}})
	require.NoError(t, err)

	pkt, err := UnmarshalPacket(data[:len(data)-4])
	require.NoError(t, err)

	_, err = ParseInputBatch(pkt)
	assert.ErrorIs(t, err, ErrTruncated)
}

func TestJoinHandshakeRoundTrip(t *testing.T) {
	data, err := NewJoinRequest("player-one")
	require.NoError(t, err)
	pkt, err := UnmarshalPacket(data)
	require.NoError(t, err)
	req, err := ParseJoinRequest(pkt)
	require.NoError(t, err)
	assert.Equal(t, "player-one", req.Name)

	data, err = NewJoinAccept(777, 2, "token-abc")
	require.NoError(t, err)
	pkt, err = UnmarshalPacket(data)
	require.NoError(t, err)
	accept, err := ParseJoinAccept(pkt)
	require.NoError(t, err)
	assert.Equal(t, int64(777), accept.Tick)
	assert.Equal(t, int32(2), accept.PlayerID)
	assert.Equal(t, "token-abc", accept.Token)
}

func TestPongRoundTrip(t *testing.T) {
	data, err := NewPong(111, 222, 333)
	require.NoError(t, err)

	pkt, err := UnmarshalPacket(data)
	require.NoError(t, err)
	require.Equal(t, MsgPong, pkt.Type)

	pong, err := ParsePong(pkt)
	require.NoError(t, err)
	assert.Equal(t, int64(111), pong.ClientTime)
	assert.Equal(t, int64(222), pong.ServerTime)
	assert.Equal(t, int64(333), pong.ServerTick)
}

func TestBallSnapshotRejectsNaN(t *testing.T) {
	s := core.NewBallState()
	s.Position.Y = math.NaN()

	data, err := NewBallSnapshot(s)
	require.NoError(t, err)

	pkt, err := UnmarshalPacket(data)
	require.NoError(t, err)

	_, err = ParseBallSnapshot(pkt)
	assert.Error(t, err, "NaN 载荷必须被拒绝")
}

func TestDecodeFixedRejectsTrailingBytes(t *testing.T) {
	data, err := NewPing(42)
	require.NoError(t, err)

	data = append(data, 0xFF)
	pkt, err := UnmarshalPacket(data)
	require.NoError(t, err)

	_, err = ParsePing(pkt)
	assert.Error(t, err)
}
