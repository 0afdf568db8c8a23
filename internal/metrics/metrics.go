package metrics

import (
	"context"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// Metrics 同步诊断计数器
// 这些事件按设计都是静默降级路径，计数器是它们唯一的外部可见性。
type Metrics struct {
	staleSnapshots metric.Int64Counter // 过期快照被丢弃
	staleInputs    metric.Int64Counter // 输入缺失走了重放回退
	corrections    metric.Int64Counter // 混合纠正
	hardSnaps      metric.Int64Counter // 硬拉回
}

// New 在给定 Meter 上注册计数器
func New(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	if m.staleSnapshots, err = meter.Int64Counter("rocketball.reconcile.stale_snapshots",
		metric.WithDescription("权威快照到达时本地槽位已过期")); err != nil {
		return nil, err
	}
	if m.staleInputs, err = meter.Int64Counter("rocketball.sim.stale_inputs",
		metric.WithDescription("当前 tick 输入缺失，使用最近输入重放")); err != nil {
		return nil, err
	}
	if m.corrections, err = meter.Int64Counter("rocketball.reconcile.corrections",
		metric.WithDescription("超出容差的混合纠正")); err != nil {
		return nil, err
	}
	if m.hardSnaps, err = meter.Int64Counter("rocketball.reconcile.hard_snaps",
		metric.WithDescription("超出硬拉回阈值的直接拉回")); err != nil {
		return nil, err
	}
	return m, nil
}

// Nop 空实现（测试与未接 SDK 的进程用）
func Nop() *Metrics {
	m, _ := New(noop.NewMeterProvider().Meter("rocketball"))
	return m
}

func (m *Metrics) StaleSnapshot() { m.staleSnapshots.Add(context.Background(), 1) }
func (m *Metrics) StaleInput()    { m.staleInputs.Add(context.Background(), 1) }
func (m *Metrics) Correction()    { m.corrections.Add(context.Background(), 1) }
func (m *Metrics) HardSnap()      { m.hardSnaps.Add(context.Background(), 1) }
