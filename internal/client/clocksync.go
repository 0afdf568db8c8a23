package client

import (
	"sort"
	"sync"
	"time"

	"rocketball/pkg/core"
)

const (
	// offsetWindow 取中位数的偏移样本窗口
	offsetWindow = 16

	// leadMarginTicks 在半个 RTT 之上再加的安全余量
	leadMarginTicks = 1
)

// ClockSync 用 ping/pong 往返估计本地 tick 相对服务端的偏移
// 本地 tick 要领先服务端半个 RTT 再加余量，这样 tick T 的输入恰好在
// 服务端推进 T 之前到达。单次估计受网络抖动影响大，取滑动窗口中位数。
type ClockSync struct {
	mu    sync.Mutex
	clock *core.TickClock

	offsets []int64
	lastRTT time.Duration
}

func NewClockSync(clock *core.TickClock) *ClockSync {
	return &ClockSync{
		clock:   clock,
		offsets: make([]int64, 0, offsetWindow),
	}
}

// OnPong 处理一次时间同步应答
// clientTime 是 ping 里原样回传的本地毫秒时间戳。
func (cs *ClockSync) OnPong(clientTime, serverTick int64, now time.Time) {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	rtt := now.Sub(time.UnixMilli(clientTime))
	if rtt < 0 {
		return
	}
	cs.lastRTT = rtt

	stepMs := cs.clock.Step().Milliseconds()
	if stepMs <= 0 {
		return
	}

	oneWayTicks := rtt.Milliseconds() / 2 / stepMs
	// 服务端发出 pong 后又走了 oneWayTicks；再领先 oneWayTicks 加余量
	target := serverTick + 2*oneWayTicks + leadMarginTicks
	offset := target - cs.clock.RawTick()

	cs.offsets = append(cs.offsets, offset)
	if len(cs.offsets) > offsetWindow {
		cs.offsets = cs.offsets[1:]
	}

	cs.clock.SetOffset(medianInt64(cs.offsets))
}

// RTT 最近一次测得的往返时延
func (cs *ClockSync) RTT() time.Duration {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.lastRTT
}

// Synced 至少完成过一次偏移估计
func (cs *ClockSync) Synced() bool {
	return cs.clock.Synced()
}

func medianInt64(values []int64) int64 {
	sorted := make([]int64, len(values))
	copy(sorted, values)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
