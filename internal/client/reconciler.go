package client

import (
	"sync/atomic"

	"github.com/rs/zerolog"

	"rocketball/internal/metrics"
	"rocketball/pkg/core"
)

// ReconcileOutcome 一次对账的结果分类
type ReconcileOutcome int

const (
	// OutcomeStale 快照过旧，直接丢弃
	OutcomeStale ReconcileOutcome = iota
	// OutcomeInTolerance 预测与权威一致，无需纠正
	OutcomeInTolerance
	// OutcomeBlended 回放纠正后平滑靠拢
	OutcomeBlended
	// OutcomeSnapped 偏差过大，硬吸附到纠正结果
	OutcomeSnapped
	// OutcomeAdopted 没有对应的历史预测，直接采纳权威状态
	OutcomeAdopted
)

func (o ReconcileOutcome) String() string {
	switch o {
	case OutcomeStale:
		return "stale"
	case OutcomeInTolerance:
		return "in_tolerance"
	case OutcomeBlended:
		return "blended"
	case OutcomeSnapped:
		return "snapped"
	case OutcomeAdopted:
		return "adopted"
	default:
		return "unknown"
	}
}

// ReconcilerConfig 对账阈值
type ReconcilerConfig struct {
	PositionTolerance float64 // 米
	RotationTolerance float64 // 弧度
	HardSnapThreshold float64 // 米，达到即硬吸附
	BlendFactor       float64 // 向纠正结果靠拢的比例
	StepSeconds       float64
}

// Reconciler 把服务端权威快照对回本地预测
// 流程：取同 tick 的历史预测比较，超容差则回滚到权威状态、
// 用缓存输入重放到当前 tick，再按偏差大小选择混合或硬吸附。
type Reconciler struct {
	cfg   ReconcilerConfig
	pred  *PredictionEngine
	log   zerolog.Logger
	meter *metrics.Metrics

	lastAcked    int64
	resimulating atomic.Bool
}

func NewReconciler(cfg ReconcilerConfig, pred *PredictionEngine, log zerolog.Logger, meter *metrics.Metrics) *Reconciler {
	if meter == nil {
		meter = metrics.Nop()
	}
	return &Reconciler{
		cfg:       cfg,
		pred:      pred,
		log:       log.With().Str("component", "reconciler").Logger(),
		meter:     meter,
		lastAcked: -1,
	}
}

// Reconcile 处理一份权威快照
// 重复调用同一份快照是空操作（第一次已把权威状态写回历史槽）。
func (r *Reconciler) Reconcile(auth core.CarState) ReconcileOutcome {
	if auth.Tick <= r.lastAcked {
		r.meter.StaleSnapshot()
		return OutcomeStale
	}

	predicted, ok := r.pred.StateAt(auth.Tick)
	if !ok {
		if !r.pred.Started() {
			// 预测还没起步：直接采纳权威状态作为起点
			r.adopt(auth)
			r.lastAcked = auth.Tick
			return OutcomeAdopted
		}
		// 槽位戳不匹配：快照超出了缓冲区覆盖的跨度，只能丢弃
		r.meter.StaleSnapshot()
		return OutcomeStale
	}

	r.lastAcked = auth.Tick

	posErr := predicted.Position.Sub(auth.Position).Length()
	rotErr := core.AngleBetween(predicted.Rotation, auth.Rotation)
	if posErr <= r.cfg.PositionTolerance && rotErr <= r.cfg.RotationTolerance {
		return OutcomeInTolerance
	}

	r.meter.Correction()
	r.resimulating.Store(true)
	defer r.resimulating.Store(false)

	prevLive := r.pred.LiveState()
	lastTick := r.pred.LastTick()

	// 回滚：权威状态写回历史槽，既是回放起点也保证同快照重放幂等
	r.pred.PutState(auth.Tick, auth)

	// 重放：用缓存输入从权威状态重新推到当前 tick
	step := r.pred.StepFunc()
	state := auth
	for t := auth.Tick + 1; t <= lastTick; t++ {
		in, ok := r.pred.InputAt(t)
		if !ok {
			// 输入槽已被覆盖，这一步只能原地保持
			state.Tick = t
			r.pred.PutState(t, state)
			continue
		}
		state = step(state, in, r.cfg.StepSeconds)
		state.Tick = t
		r.pred.PutState(t, state)
	}

	// 吸附判据用快照 tick 上的原始位置误差：重放后两条轨迹可能
	// 重新收敛（比如都被同一面墙挡住），但误差本身已经大到不该再混合
	if posErr >= r.cfg.HardSnapThreshold {
		r.pred.SetLiveState(state)
		r.meter.HardSnap()
		r.log.Debug().
			Int64("tick", auth.Tick).
			Float64("pos_err", posErr).
			Msg("对账硬吸附")
		return OutcomeSnapped
	}

	blended := blendCarStates(prevLive, state, r.cfg.BlendFactor)
	r.pred.SetLiveState(blended)
	r.log.Debug().
		Int64("tick", auth.Tick).
		Float64("pos_err", posErr).
		Float64("rot_err", rotErr).
		Msg("对账纠正")
	return OutcomeBlended
}

// Resimulating 是否正处在回放纠正中
func (r *Reconciler) Resimulating() bool {
	return r.resimulating.Load()
}

// LastAckedTick 最近一次成功对账的快照 tick
func (r *Reconciler) LastAckedTick() int64 {
	return r.lastAcked
}

func (r *Reconciler) adopt(auth core.CarState) {
	r.pred.PutState(auth.Tick, auth)
	if auth.Tick >= r.pred.LastTick() {
		r.pred.SetLiveState(auth)
	}
}

// blendCarStates 连续量按比例混合，离散量取纠正结果
// f=0 停在原预测，f=1 等价于硬吸附。
func blendCarStates(from, to core.CarState, f float64) core.CarState {
	out := to
	out.Position = core.LerpVec3(from.Position, to.Position, f)
	out.Rotation = core.SlerpQuat(from.Rotation, to.Rotation, f)
	out.LinearVelocity = core.LerpVec3(from.LinearVelocity, to.LinearVelocity, f)
	out.AngularVelocity = core.LerpVec3(from.AngularVelocity, to.AngularVelocity, f)
	return out
}
