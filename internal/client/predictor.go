package client

import (
	"sync"

	"rocketball/pkg/core"
)

// PredictionEngine 本地车的预测引擎
// 每个 tick 边界锁存一次输入、推一步确定性物理，输入和预测状态
// 都按 tick 存进环形缓冲区，供对账回放和冗余重发使用。
type PredictionEngine struct {
	mu sync.Mutex

	playerID int32

	latch  core.InputLatch
	inputs *core.RingBuffer[core.InputSample]
	states *core.RingBuffer[core.CarState]

	current  core.CarState
	lastTick int64
	started  bool

	step core.CarStepFunc

	inputWindow int
}

// NewPredictionEngine 创建预测引擎
func NewPredictionEngine(playerID int32, spawn core.CarState, capacity, inputWindow int) *PredictionEngine {
	return &PredictionEngine{
		playerID:    playerID,
		inputs:      core.NewRingBuffer[core.InputSample](capacity),
		states:      core.NewRingBuffer[core.CarState](capacity),
		current:     spawn,
		lastTick:    -1,
		step:        core.StepCar,
		inputWindow: inputWindow,
	}
}

// Observe 每渲染帧调用，锁存跳跃键的按下与抬起边沿
// 渲染帧率高于 tick 率时，两个 tick 之间的快速点按不会丢。
func (p *PredictionEngine) Observe(jumpHeld bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.latch.Observe(jumpHeld)
}

// Advance 在 tick 边界捕获输入并推进一步预测
// 返回本 tick 捕获的输入样本。
func (p *PredictionEngine) Advance(tick int64, axes core.AxisState, dt float64) core.InputSample {
	p.mu.Lock()
	defer p.mu.Unlock()

	in := p.latch.Capture(tick, axes)
	p.inputs.Put(tick, in)

	p.current = p.step(p.current, in, dt)
	p.current.Tick = tick
	p.states.Put(tick, p.current)
	p.lastTick = tick
	p.started = true

	return in
}

// Window 取最近 inputWindow 个 tick 的输入冗余窗口（按 tick 升序）
// 缓冲里缺的 tick 直接跳过。
func (p *PredictionEngine) Window(tick int64) []core.InputSample {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]core.InputSample, 0, p.inputWindow)
	for t := tick - int64(p.inputWindow) + 1; t <= tick; t++ {
		if t < 0 {
			continue
		}
		if in, ok := p.inputs.Get(t); ok {
			out = append(out, in)
		}
	}
	return out
}

// LiveState 当前预测状态的副本
func (p *PredictionEngine) LiveState() core.CarState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// SetLiveState 用对账结果覆盖当前预测状态
func (p *PredictionEngine) SetLiveState(s core.CarState) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current = s
}

// StateAt 取指定 tick 的历史预测状态
func (p *PredictionEngine) StateAt(tick int64) (core.CarState, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.states.Get(tick)
}

// PutState 覆写指定 tick 的历史预测状态（回放时用）
func (p *PredictionEngine) PutState(tick int64, s core.CarState) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.states.Put(tick, s)
}

// InputAt 取指定 tick 的历史输入
func (p *PredictionEngine) InputAt(tick int64) (core.InputSample, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inputs.Get(tick)
}

// LastTick 最近一次预测到的 tick；尚未起步时为 -1
func (p *PredictionEngine) LastTick() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastTick
}

// Started 是否已经推进过至少一个 tick
func (p *PredictionEngine) Started() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.started
}

func (p *PredictionEngine) PlayerID() int32 {
	return p.playerID
}

// StepFunc 当前使用的物理步进函数（对账回放必须用同一个）
func (p *PredictionEngine) StepFunc() core.CarStepFunc {
	return p.step
}
