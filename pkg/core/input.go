package core

// InputSample 一个 tick 内的完整控制输入
// 字段声明顺序即线上序列化顺序，tick 在最前（线上契约，改动需升协议版本）。
type InputSample struct {
	Tick     int64
	Throttle float64 // -1..1
	Steer    float64 // -1..1
	Yaw      float64 // -1..1（空中）
	Pitch    float64 // -1..1（空中）
	Roll     float64 // -1..1（空中）
	Boost    bool
	Drift    bool
	AirRoll  bool
	Jump     bool // 当前是否按住
	// 边沿触发：由锁存器跨帧保持，采样后清除
	JumpPressed  bool
	JumpReleased bool
}

// NeutralInput 指定 tick 的空输入（从未收到任何输入时的回退）
func NeutralInput(tick int64) InputSample {
	return InputSample{Tick: tick}
}

// ClearEdges 清除边沿触发位
// 陈旧输入重放时调用：按下/抬起只允许生效一次，不随重复应用
func (s InputSample) ClearEdges() InputSample {
	s.JumpPressed = false
	s.JumpReleased = false
	return s
}

// AxisState 输入采集边界提供的原始轴/按键状态
type AxisState struct {
	Throttle float64
	Steer    float64
	Yaw      float64
	Pitch    float64
	Roll     float64
	Boost    bool
	Drift    bool
	AirRoll  bool
	Jump     bool
}

// InputLatch 跳跃按下/抬起的边沿锁存器
// 模拟步之间发生的按键边沿先锁存，待下一次采样捕获后清除，
// 保证两个模拟步之间的短按不会丢失。
type InputLatch struct {
	prevJump       bool
	pressLatched   bool
	releaseLatched bool
}

// Observe 观察一次原始按键状态（可高于模拟帧率调用）
func (l *InputLatch) Observe(jumpHeld bool) {
	if jumpHeld && !l.prevJump {
		l.pressLatched = true
	}
	if !jumpHeld && l.prevJump {
		l.releaseLatched = true
	}
	l.prevJump = jumpHeld
}

// Capture 生成本 tick 的输入样本并清空锁存
func (l *InputLatch) Capture(tick int64, axes AxisState) InputSample {
	l.Observe(axes.Jump)

	s := InputSample{
		Tick:         tick,
		Throttle:     axes.Throttle,
		Steer:        axes.Steer,
		Yaw:          axes.Yaw,
		Pitch:        axes.Pitch,
		Roll:         axes.Roll,
		Boost:        axes.Boost,
		Drift:        axes.Drift,
		AirRoll:      axes.AirRoll,
		Jump:         axes.Jump,
		JumpPressed:  l.pressLatched,
		JumpReleased: l.releaseLatched,
	}

	l.pressLatched = false
	l.releaseLatched = false
	return s
}
