package core

// 模拟帧率
const (
	TickRate       = 60
	FixedDeltaTime = 1.0 / float64(TickRate)
)

// 场地（Y 轴向上，原点在场地中心的地面上）
const (
	ArenaHalfWidth  = 40.0 // X 方向半宽
	ArenaHalfLength = 50.0 // Z 方向半长
	ArenaHeight     = 20.0
)

// 车辆
const (
	CarRestHeight       = 0.35 // 四轮着地时车身中心离地高度
	DriveAcceleration   = 18.0 // 油门加速度
	BrakeAcceleration   = 26.0 // 反向油门（刹车）加速度
	BoostAcceleration   = 14.0
	MaxDriveSpeed       = 28.0
	MaxBoostSpeed       = 40.0
	SteerYawRate        = 2.4  // 地面转向角速度（弧度/秒，满速时）
	CoastDragRate       = 1.2  // 松油门时的速度衰减率
	NormalSideFriction  = 1.0  // 正常侧向摩擦系数
	DriftSideFriction   = 0.25 // 漂移时的侧向摩擦系数
	SideFrictionRate    = 9.0  // 侧向速度每秒按此比例衰减（乘以摩擦系数）
	JumpImpulse         = 5.2  // 起跳瞬时垂直速度
	JumpHoldAccel       = 14.0 // 按住跳跃时的持续加速度
	MaxJumpHoldTime     = 0.2  // 持续加速的最长时间（秒）
	AirPitchRate        = 3.4  // 空中俯仰角速度
	AirYawRate          = 2.6
	AirRollRate         = 3.8
	UprightDotThreshold = 0.5 // 车顶朝向判定：up.Y 高于此值视为四轮姿态
)

// 球
const (
	BallRadius         = 0.92
	BallRestitution    = 0.65 // 反弹恢复系数
	BallLinearDamping  = 0.03 // 每秒线速度衰减比例
	BallAngularDamping = 0.08
	BallGroundFriction = 0.6 // 触地时水平速度衰减率
	BallContactImpulse = 1.4 // 车撞球时附加的推出速度
)

// 重力（Y 轴向下为正值）
const Gravity = 13.0
