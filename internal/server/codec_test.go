package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rocketball/pkg/core"
	"rocketball/pkg/protocol"
)

func TestDecodePacketJoin(t *testing.T) {
	data, err := protocol.NewJoinRequest("alice")
	require.NoError(t, err)

	ev, err := DecodePacket(data)
	require.NoError(t, err)
	require.Equal(t, EventJoin, ev.Kind)
	assert.Equal(t, "alice", ev.Join.Name)
}

func TestDecodePacketInputBatch(t *testing.T) {
	samples := []core.InputSample{{Tick: 5, Throttle: 1}, {Tick: 6, Steer: -1}}
	data, err := protocol.NewInputBatch(samples)
	require.NoError(t, err)

	ev, err := DecodePacket(data)
	require.NoError(t, err)
	require.Equal(t, EventInput, ev.Kind)
	assert.Equal(t, samples, ev.Input.Samples)
}

func TestDecodePacketPing(t *testing.T) {
	data, err := protocol.NewPing(12345)
	require.NoError(t, err)

	ev, err := DecodePacket(data)
	require.NoError(t, err)
	require.Equal(t, EventPing, ev.Kind)
	assert.Equal(t, int64(12345), ev.Ping.ClientTime)
}

func TestDecodePacketUnknownType(t *testing.T) {
	data := []byte{protocol.ProtocolVersion, 0xEE}

	ev, err := DecodePacket(data)
	require.NoError(t, err)
	assert.Equal(t, EventUnknown, ev.Kind)
}

func TestDecodePacketBadVersion(t *testing.T) {
	data := []byte{protocol.ProtocolVersion + 1, 1}

	_, err := DecodePacket(data)
	assert.Error(t, err)
}
