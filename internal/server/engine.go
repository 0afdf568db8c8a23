package server

import (
	"sync"

	"rocketball/internal/metrics"
	"rocketball/pkg/core"
)

// EnginePhase 表示单个实体引擎的运行阶段
type EnginePhase int

const (
	// PhaseWaitingForFirstInput 尚未收到任何输入，实体保持静止
	PhaseWaitingForFirstInput EnginePhase = iota
	// PhaseDriving 已收到输入，正常推进
	PhaseDriving
)

func (p EnginePhase) String() string {
	switch p {
	case PhaseWaitingForFirstInput:
		return "WaitingForFirstInput"
	case PhaseDriving:
		return "Driving"
	default:
		return "Unknown"
	}
}

// EntityEngine 服务端单个车辆的权威仿真引擎
// 每 tick 只推进一次：取该 tick 的客户端输入，缺包时重放上一份输入（清除边沿标志）
type EntityEngine struct {
	mu sync.Mutex

	playerID int32
	phase    EnginePhase

	inputs *core.RingBuffer[core.InputSample]
	states *core.RingBuffer[core.CarState]

	current   core.CarState
	lastInput core.InputSample
	hasInput  bool
	lastTick  int64

	step    core.CarStepFunc
	metrics *metrics.Metrics
}

// NewEntityEngine 创建权威引擎，实体初始落在出生点
func NewEntityEngine(playerID int32, spawn core.Vec3, yaw float64, capacity int, m *metrics.Metrics) *EntityEngine {
	if m == nil {
		m = metrics.Nop()
	}
	return &EntityEngine{
		playerID: playerID,
		phase:    PhaseWaitingForFirstInput,
		inputs:   core.NewRingBuffer[core.InputSample](capacity),
		states:   core.NewRingBuffer[core.CarState](capacity),
		current:  core.NewCarState(spawn, yaw),
		lastTick: -1,
		step:     core.StepCar,
		metrics:  m,
	}
}

// SubmitInput 收纳一批客户端输入
// 过期输入（早于已处理 tick）直接丢弃，重复 tick 以后到的为准
func (e *EntityEngine) SubmitInput(samples []core.InputSample) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, in := range samples {
		if in.Tick <= e.lastTick {
			continue
		}
		e.inputs.Put(in.Tick, in)
	}
}

// Step 把权威状态推进到指定 tick
// 同一 tick 重复调用是空操作
func (e *EntityEngine) Step(tick int64, dt float64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if tick <= e.lastTick {
		return
	}

	in, ok := e.inputs.Get(tick)
	switch {
	case ok:
		e.lastInput = in
		e.hasInput = true
		if e.phase == PhaseWaitingForFirstInput {
			e.phase = PhaseDriving
		}
	case e.hasInput:
		// 输入缺失：重放上一份输入，但清掉按下/抬起边沿，避免跳跃重复触发
		in = e.lastInput
		in.Tick = tick
		in.ClearEdges()
		e.metrics.StaleInput()
	default:
		in = core.NeutralInput(tick)
	}

	if e.phase == PhaseDriving {
		e.current = e.step(e.current, in, dt)
	}
	e.current.Tick = tick
	e.states.Put(tick, e.current)
	e.lastTick = tick
}

// State 返回当前权威状态的副本
func (e *EntityEngine) State() core.CarState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current
}

// StateAt 返回指定 tick 的历史权威状态
func (e *EntityEngine) StateAt(tick int64) (core.CarState, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.states.Get(tick)
}

// Phase 返回当前阶段
func (e *EntityEngine) Phase() EnginePhase {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.phase
}

func (e *EntityEngine) PlayerID() int32 {
	return e.playerID
}
