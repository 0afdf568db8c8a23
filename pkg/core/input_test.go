package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInputLatchPressBetweenCaptures(t *testing.T) {
	var l InputLatch

	// 两个模拟步之间的短按：按下又松开
	l.Observe(true)
	l.Observe(false)

	s := l.Capture(10, AxisState{})
	assert.True(t, s.JumpPressed, "锁存的按下边沿必须被捕获")
	assert.True(t, s.JumpReleased, "锁存的抬起边沿必须被捕获")
	assert.False(t, s.Jump)

	// 捕获后锁存清空
	s = l.Capture(11, AxisState{})
	assert.False(t, s.JumpPressed)
	assert.False(t, s.JumpReleased)
}

func TestInputLatchHeldAcrossTicks(t *testing.T) {
	var l InputLatch

	s := l.Capture(1, AxisState{Jump: true})
	assert.True(t, s.JumpPressed)
	assert.True(t, s.Jump)

	// 持续按住：不再有新的按下边沿
	s = l.Capture(2, AxisState{Jump: true})
	assert.False(t, s.JumpPressed)
	assert.True(t, s.Jump)

	s = l.Capture(3, AxisState{Jump: false})
	assert.True(t, s.JumpReleased)
	assert.False(t, s.Jump)
}

func TestInputLatchCaptureCarriesAxes(t *testing.T) {
	var l InputLatch

	axes := AxisState{Throttle: 1, Steer: -0.5, Boost: true, Drift: true}
	s := l.Capture(7, axes)

	require.Equal(t, int64(7), s.Tick)
	assert.Equal(t, 1.0, s.Throttle)
	assert.Equal(t, -0.5, s.Steer)
	assert.True(t, s.Boost)
	assert.True(t, s.Drift)
}

func TestClearEdges(t *testing.T) {
	s := InputSample{Tick: 5, Jump: true, JumpPressed: true, JumpReleased: true}

	cleared := s.ClearEdges()

	assert.False(t, cleared.JumpPressed)
	assert.False(t, cleared.JumpReleased)
	assert.True(t, cleared.Jump, "持续按住状态保留")
	// 原样本不受影响
	assert.True(t, s.JumpPressed)
}

func TestNeutralInput(t *testing.T) {
	s := NeutralInput(9)

	assert.Equal(t, int64(9), s.Tick)
	assert.Zero(t, s.Throttle)
	assert.False(t, s.Jump)
}
