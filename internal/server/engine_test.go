package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rocketball/pkg/core"
)

const testDt = core.FixedDeltaTime

func newTestEngine() *EntityEngine {
	return NewEntityEngine(1, core.Vec3{}, 0, 64, nil)
}

func TestEngineWaitsForFirstInput(t *testing.T) {
	e := newTestEngine()
	spawn := e.State()

	for tick := int64(0); tick < 30; tick++ {
		e.Step(tick, testDt)
	}

	assert.Equal(t, PhaseWaitingForFirstInput, e.Phase())
	got := e.State()
	assert.Equal(t, spawn.Position, got.Position, "没有输入之前实体保持静止")
}

func TestEngineStartsDrivingOnFirstInput(t *testing.T) {
	e := newTestEngine()

	e.SubmitInput([]core.InputSample{{Tick: 5, Throttle: 1}})

	for tick := int64(0); tick <= 10; tick++ {
		e.Step(tick, testDt)
	}

	assert.Equal(t, PhaseDriving, e.Phase())
	assert.Greater(t, e.State().ForwardSpeed, 0.0)
}

func TestEngineDuplicateTickIsNoop(t *testing.T) {
	e := newTestEngine()
	e.SubmitInput([]core.InputSample{{Tick: 0, Throttle: 1}})

	e.Step(0, testDt)
	after := e.State()

	e.Step(0, testDt)
	assert.Equal(t, after, e.State(), "同一 tick 重复推进不能改变状态")
}

func TestEngineStaleRepeatClearsEdges(t *testing.T) {
	e := newTestEngine()

	// tick 0 起跳，tick 1 输入丢失
	e.SubmitInput([]core.InputSample{{Tick: 0, Throttle: 1, Jump: true, JumpPressed: true}})

	e.Step(0, testDt)
	s0 := e.State()
	require.True(t, s0.Jumping, "首跳生效")
	vAfterJump := s0.LinearVelocity.Y

	e.Step(1, testDt)
	s1 := e.State()

	// 重放的输入不带边沿，绝不允许二次起跳脉冲
	assert.Less(t, s1.LinearVelocity.Y, vAfterJump+core.JumpImpulse/2)
	// 油门保持，重放输入继续驱动
	assert.GreaterOrEqual(t, s1.ForwardSpeed, s0.ForwardSpeed)
}

func TestEngineResumesFreshInputAfterGap(t *testing.T) {
	e := newTestEngine()

	e.SubmitInput([]core.InputSample{{Tick: 0, Throttle: 1}})
	e.Step(0, testDt)
	e.Step(1, testDt) // 缺口，重放

	// 迟到的 tick 2 输入正常生效
	e.SubmitInput([]core.InputSample{{Tick: 2, Throttle: -1}})
	e.Step(2, testDt)

	in, ok := e.inputs.Get(2)
	require.True(t, ok)
	assert.Equal(t, -1.0, in.Throttle)
}

func TestEngineDropsOutdatedInput(t *testing.T) {
	e := newTestEngine()

	e.SubmitInput([]core.InputSample{{Tick: 0, Throttle: 1}})
	for tick := int64(0); tick <= 5; tick++ {
		e.Step(tick, testDt)
	}

	// 已处理过的 tick 再补输入只能被丢弃
	e.SubmitInput([]core.InputSample{{Tick: 3, Throttle: -1}})
	_, ok := e.inputs.Get(3)
	assert.False(t, ok)
}

func TestEngineRecordsStateHistory(t *testing.T) {
	e := newTestEngine()
	e.SubmitInput([]core.InputSample{{Tick: 0, Throttle: 1}})

	for tick := int64(0); tick <= 20; tick++ {
		e.Step(tick, testDt)
	}

	s, ok := e.StateAt(10)
	require.True(t, ok)
	assert.Equal(t, int64(10), s.Tick)

	s, ok = e.StateAt(20)
	require.True(t, ok)
	assert.Equal(t, e.State(), s)
}

func TestEngineRedundantWindowFillsGaps(t *testing.T) {
	e := newTestEngine()

	// 冗余窗口：同一输入在后续批次里重复出现，先到先得之后以新覆盖
	e.SubmitInput([]core.InputSample{{Tick: 0, Throttle: 1}, {Tick: 1, Throttle: 1}})
	e.SubmitInput([]core.InputSample{{Tick: 1, Throttle: 1}, {Tick: 2, Throttle: 0.5}})

	e.Step(0, testDt)
	e.Step(1, testDt)
	e.Step(2, testDt)

	in, ok := e.inputs.Get(2)
	require.True(t, ok)
	assert.Equal(t, 0.5, in.Throttle)
	assert.Equal(t, PhaseDriving, e.Phase())
}
