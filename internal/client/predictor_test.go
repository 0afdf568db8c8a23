package client

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rocketball/pkg/core"
)

func TestPredictorAdvanceRecordsHistory(t *testing.T) {
	spawn := core.NewCarState(core.Vec3{}, 0)
	p := NewPredictionEngine(1, spawn, 64, 8)

	for tick := int64(0); tick < 10; tick++ {
		in := p.Advance(tick, core.AxisState{Throttle: 1}, testDt)
		assert.Equal(t, tick, in.Tick)
	}

	assert.Equal(t, int64(9), p.LastTick())
	assert.True(t, p.Started())

	s, ok := p.StateAt(5)
	require.True(t, ok)
	assert.Equal(t, int64(5), s.Tick)

	in, ok := p.InputAt(7)
	require.True(t, ok)
	assert.Equal(t, 1.0, in.Throttle)
}

func TestPredictorWindowOrderedAndBounded(t *testing.T) {
	spawn := core.NewCarState(core.Vec3{}, 0)
	p := NewPredictionEngine(1, spawn, 64, 4)

	for tick := int64(0); tick < 10; tick++ {
		p.Advance(tick, core.AxisState{}, testDt)
	}

	w := p.Window(9)
	require.Len(t, w, 4)
	assert.Equal(t, int64(6), w[0].Tick)
	assert.Equal(t, int64(9), w[3].Tick)
}

func TestPredictorWindowEarlyTicks(t *testing.T) {
	spawn := core.NewCarState(core.Vec3{}, 0)
	p := NewPredictionEngine(1, spawn, 64, 8)

	p.Advance(0, core.AxisState{}, testDt)
	p.Advance(1, core.AxisState{}, testDt)

	// 开局不足一个窗口时只发已有的
	w := p.Window(1)
	require.Len(t, w, 2)
	assert.Equal(t, int64(0), w[0].Tick)
}

func TestPredictorLatchCarriesShortPress(t *testing.T) {
	spawn := core.NewCarState(core.Vec3{}, 0)
	p := NewPredictionEngine(1, spawn, 64, 8)

	p.Advance(0, core.AxisState{}, testDt)

	// 两个 tick 之间的快速点按
	p.Observe(true)
	p.Observe(false)

	in := p.Advance(1, core.AxisState{}, testDt)
	assert.True(t, in.JumpPressed)
	assert.True(t, in.JumpReleased)

	// 点按触发了预测起跳
	assert.Greater(t, p.LiveState().LinearVelocity.Y, 0.0)
}
