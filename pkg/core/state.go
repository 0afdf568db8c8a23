package core

// CarSimState 车辆物理状态机
type CarSimState int32

const (
	CarGrounded CarSimState = iota // 四轮着地
	CarJumping                     // 起跳中（跳跃加速仍可持续）
	CarAirborne                    // 空中
)

func (s CarSimState) String() string {
	switch s {
	case CarGrounded:
		return "grounded"
	case CarJumping:
		return "jumping"
	case CarAirborne:
		return "airborne"
	default:
		return "unknown"
	}
}

// CarState 车辆的完整对账单元
// 任何影响后续物理决策的字段都必须在此捕获并可恢复，
// 否则回溯重放会偏离权威端当时的运算结果。
// 字段声明顺序即线上序列化顺序，tick 在最前。
type CarState struct {
	Tick            int64
	Position        Vec3
	Rotation        Quat
	LinearVelocity  Vec3
	AngularVelocity Vec3

	// 地面接触
	CanDrive             bool
	AllWheelsOnSurface   bool
	WheelsOnSurfaceCount int32
	BodyOnSurface        bool

	// 行驶
	ForwardSpeed     float64
	ForwardSpeedSign float64
	SimState         CarSimState

	// 跳跃状态机
	Jumping        bool
	CanFirstJump   bool
	CanKeepJumping bool
	JumpTimer      float64

	// 摩擦
	WheelSideFriction float64
}

// NewCarState 出生点上的静止车辆
func NewCarState(position Vec3, yaw float64) CarState {
	position.Y = CarRestHeight
	return CarState{
		Position:             position,
		Rotation:             QuatFromAxisAngle(Vec3{Y: 1}, yaw),
		CanDrive:             true,
		AllWheelsOnSurface:   true,
		WheelsOnSurfaceCount: 4,
		SimState:             CarGrounded,
		CanFirstJump:         true,
		WheelSideFriction:    NormalSideFriction,
	}
}

// BallState 球的完整状态
// 球没有依赖输入的内部状态机，位姿加速度即全部。
// 字段声明顺序即线上序列化顺序，tick 在最前。
type BallState struct {
	Tick            int64
	Position        Vec3
	Rotation        Quat
	LinearVelocity  Vec3
	AngularVelocity Vec3
}

// NewBallState 中圈上方的静止球
func NewBallState() BallState {
	return BallState{
		Position: Vec3{Y: BallRadius},
		Rotation: IdentityQuat(),
	}
}
