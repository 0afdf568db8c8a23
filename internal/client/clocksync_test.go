package client

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rocketball/pkg/core"
)

// 步长取 1 秒，测试期间 RawTick 恒为 0，偏移可以精确断言

func TestClockSyncEstimatesOffset(t *testing.T) {
	clock := core.NewTickClock(time.Second)
	cs := NewClockSync(clock)
	require.False(t, cs.Synced())

	now := time.Now()
	// 往返 4 秒 = 4 tick，单程 2 tick
	cs.OnPong(now.Add(-4*time.Second).UnixMilli(), 100, now)

	require.True(t, cs.Synced())
	// 目标 = 100 + 2*2 + 1 余量 = 105
	assert.Equal(t, int64(105), clock.CurrentTick())
	assert.InDelta(t, 4, cs.RTT().Seconds(), 0.01)
}

func TestClockSyncMedianRejectsOutlier(t *testing.T) {
	clock := core.NewTickClock(time.Second)
	cs := NewClockSync(clock)

	now := time.Now()
	// 三个稳定样本加一个延迟毛刺
	cs.OnPong(now.Add(-2*time.Second).UnixMilli(), 100, now)
	cs.OnPong(now.Add(-2*time.Second).UnixMilli(), 100, now)
	cs.OnPong(now.Add(-40*time.Second).UnixMilli(), 100, now) // 毛刺
	cs.OnPong(now.Add(-2*time.Second).UnixMilli(), 100, now)

	// 稳定样本：100 + 2*1 + 1 = 103；毛刺样本 141 被中位数排除
	assert.Equal(t, int64(103), clock.CurrentTick())
}

func TestClockSyncIgnoresNegativeRTT(t *testing.T) {
	clock := core.NewTickClock(time.Second)
	cs := NewClockSync(clock)

	now := time.Now()
	cs.OnPong(now.Add(2*time.Second).UnixMilli(), 100, now)

	assert.False(t, cs.Synced(), "时钟倒退的样本直接丢弃")
}

func TestClockSyncConvergesAcrossWindow(t *testing.T) {
	clock := core.NewTickClock(time.Second)
	cs := NewClockSync(clock)

	now := time.Now()
	for i := 0; i < offsetWindow*2; i++ {
		cs.OnPong(now.Add(-2*time.Second).UnixMilli(), 100, now)
	}

	// 窗口滚动后估计保持稳定
	assert.Equal(t, int64(103), clock.CurrentTick())
}
