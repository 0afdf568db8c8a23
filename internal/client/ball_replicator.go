package client

import (
	"math"
	"sync"

	"rocketball/pkg/core"
)

// BallReplicator 球的显示复制器
// 球是弹道运动，线性插值会把弧线切成直线，这里用 Hermite 三次插值，
// 切线取快照速度乘以区间时长。断流时按重力做弹道外推，到上限冻结。
type BallReplicator struct {
	mu  sync.Mutex
	cfg ReplicatorConfig

	from     core.BallState
	to       core.BallState
	duration float64
	elapsed  float64
	primed   bool
}

func NewBallReplicator(cfg ReplicatorConfig) *BallReplicator {
	return &BallReplicator{cfg: cfg}
}

// OnSnapshot 收到一份新的球快照
func (r *BallReplicator) OnSnapshot(s core.BallState) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.primed {
		r.from = s
		r.to = s
		r.duration = r.cfg.InterpMinDuration
		r.elapsed = r.duration
		r.primed = true
		return
	}

	if s.Tick <= r.to.Tick {
		return
	}

	cur := r.sampleLocked()
	tickDelta := float64(s.Tick - r.to.Tick)
	r.from = cur
	r.to = s
	r.duration = math.Max(tickDelta*r.cfg.StepSeconds, r.cfg.InterpMinDuration)
	r.elapsed = 0
}

// Advance 推进显示时间并返回当前球状态
func (r *BallReplicator) Advance(frameDt float64) core.BallState {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.elapsed += frameDt
	return r.sampleLocked()
}

// Primed 是否已收到过快照
func (r *BallReplicator) Primed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.primed
}

func (r *BallReplicator) sampleLocked() core.BallState {
	if !r.primed {
		return core.NewBallState()
	}

	if r.elapsed < r.duration {
		t := r.elapsed / r.duration
		// Hermite 切线按整段时长缩放，端点导数正好等于快照速度
		m0 := r.from.LinearVelocity.Scale(r.duration)
		m1 := r.to.LinearVelocity.Scale(r.duration)

		out := r.to
		out.Position = core.HermiteVec3(r.from.Position, r.to.Position, m0, m1, t)
		out.Rotation = core.SlerpQuat(r.from.Rotation, r.to.Rotation, t)
		out.LinearVelocity = core.LerpVec3(r.from.LinearVelocity, r.to.LinearVelocity, t)
		out.AngularVelocity = core.LerpVec3(r.from.AngularVelocity, r.to.AngularVelocity, t)
		return out
	}

	// 弹道外推：重力作用下的抛物线，到上限冻结
	over := math.Min(r.elapsed-r.duration, r.cfg.ExtrapMaxDuration)
	out := r.to
	out.Position = r.to.Position.
		Add(r.to.LinearVelocity.Scale(over)).
		Add(core.Vec3{Y: -0.5 * core.Gravity * over * over})
	out.LinearVelocity = r.to.LinearVelocity.Add(core.Vec3{Y: -core.Gravity * over})
	out.Rotation = core.IntegrateQuat(r.to.Rotation, r.to.AngularVelocity, over)

	// 外推也不许穿地
	if out.Position.Y < core.BallRadius {
		out.Position.Y = core.BallRadius
	}
	return out
}
