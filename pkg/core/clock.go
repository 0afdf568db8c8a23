package core

import (
	"sync/atomic"
	"time"
)

// TickClock 由墙钟推导的单调 tick 计数器
// 服务端：tick = floor(经过时间 / 固定步长)，偏移恒为 0。
// 客户端：在本地计数的基础上加上对服务器的偏移估计；
// 会话建立前偏移未知，此时退化为纯本地计数。
// 双方对同一 tick N 指向同一模拟时刻。
type TickClock struct {
	step  time.Duration
	epoch time.Time

	offset atomic.Int64
	synced atomic.Bool
}

// NewTickClock 创建 tick 时钟；step 为固定模拟步长
func NewTickClock(step time.Duration) *TickClock {
	if step <= 0 {
		panic("core: tick 步长必须为正")
	}
	return &TickClock{
		step:  step,
		epoch: time.Now(),
	}
}

// CurrentTick 当前 tick（含偏移）
func (c *TickClock) CurrentTick() int64 {
	return c.RawTick() + c.offset.Load()
}

// RawTick 不含偏移的本地 tick
func (c *TickClock) RawTick() int64 {
	return int64(time.Since(c.epoch) / c.step)
}

// Step 固定步长
func (c *TickClock) Step() time.Duration {
	return c.step
}

// StepSeconds 固定步长（秒）
func (c *TickClock) StepSeconds() float64 {
	return c.step.Seconds()
}

// SetOffset 设置对服务器的 tick 偏移估计（时间同步回调调用）
func (c *TickClock) SetOffset(ticks int64) {
	c.offset.Store(ticks)
	c.synced.Store(true)
}

// Offset 当前偏移估计
func (c *TickClock) Offset() int64 {
	return c.offset.Load()
}

// Synced 是否已完成过一次时间同步
func (c *TickClock) Synced() bool {
	return c.synced.Load()
}
