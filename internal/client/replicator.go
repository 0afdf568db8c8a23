package client

import (
	"math"
	"sync"

	"rocketball/pkg/core"
)

// ReplicatorConfig 远端复制参数
type ReplicatorConfig struct {
	StepSeconds       float64
	InterpMinDuration float64 // 插值时长下限（秒）
	ExtrapMaxDuration float64 // 外推时长上限（秒）
}

// RemotePose 远端实体的渲染位姿
type RemotePose struct {
	Tick            int64
	Position        core.Vec3
	Rotation        core.Quat
	LinearVelocity  core.Vec3
	AngularVelocity core.Vec3
}

// CarReplicator 远端车辆的显示复制器
// 不跑物理：在相邻快照之间插值，断流时按最后速度外推，
// 外推到上限后原地冻结等下一份快照。
type CarReplicator struct {
	mu  sync.Mutex
	cfg ReplicatorConfig

	playerID int32

	from     RemotePose
	to       RemotePose
	duration float64
	elapsed  float64
	primed   bool
}

func NewCarReplicator(playerID int32, cfg ReplicatorConfig) *CarReplicator {
	return &CarReplicator{cfg: cfg, playerID: playerID}
}

func (r *CarReplicator) PlayerID() int32 {
	return r.playerID
}

// OnSnapshot 收到一份新的远端快照
// 插值起点取当前显示位姿而不是上一份快照，避免接包瞬间跳变。
func (r *CarReplicator) OnSnapshot(p RemotePose) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.primed {
		r.from = p
		r.to = p
		r.duration = r.cfg.InterpMinDuration
		r.elapsed = r.duration
		r.primed = true
		return
	}

	// 乱序旧包直接丢
	if p.Tick <= r.to.Tick {
		return
	}

	cur := r.sampleLocked()
	tickDelta := float64(p.Tick - r.to.Tick)
	r.from = cur
	r.to = p
	r.duration = math.Max(tickDelta*r.cfg.StepSeconds, r.cfg.InterpMinDuration)
	r.elapsed = 0
}

// Advance 推进显示时间并返回当前位姿
func (r *CarReplicator) Advance(frameDt float64) RemotePose {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.elapsed += frameDt
	return r.sampleLocked()
}

// Primed 是否已收到过快照
func (r *CarReplicator) Primed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.primed
}

func (r *CarReplicator) sampleLocked() RemotePose {
	if !r.primed {
		return RemotePose{Rotation: core.IdentityQuat()}
	}

	if r.elapsed < r.duration {
		t := r.elapsed / r.duration
		return RemotePose{
			Tick:            r.to.Tick,
			Position:        core.LerpVec3(r.from.Position, r.to.Position, t),
			Rotation:        core.SlerpQuat(r.from.Rotation, r.to.Rotation, t),
			LinearVelocity:  core.LerpVec3(r.from.LinearVelocity, r.to.LinearVelocity, t),
			AngularVelocity: core.LerpVec3(r.from.AngularVelocity, r.to.AngularVelocity, t),
		}
	}

	// 断流外推：沿最后速度直线推进，到上限冻结
	over := math.Min(r.elapsed-r.duration, r.cfg.ExtrapMaxDuration)
	return RemotePose{
		Tick:            r.to.Tick,
		Position:        r.to.Position.Add(r.to.LinearVelocity.Scale(over)),
		Rotation:        core.IntegrateQuat(r.to.Rotation, r.to.AngularVelocity, over),
		LinearVelocity:  r.to.LinearVelocity,
		AngularVelocity: r.to.AngularVelocity,
	}
}
