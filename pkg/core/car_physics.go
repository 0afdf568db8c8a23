package core

import "math"

// CarStepFunc 车辆物理步进函数签名
// 必须是纯函数且完全确定：同一状态加同一输入永远产生同一结果，
// 否则回溯重放无法复现权威端的运算。
type CarStepFunc func(s CarState, in InputSample, dt float64) CarState

// BallStepFunc 球物理步进函数签名
type BallStepFunc func(s BallState, dt float64) BallState

// StepCar 默认车辆步进实现
// 平坦场地 + 简化车辆动力学：地面行驶（油门/转向/漂移/加力）、
// 跳跃状态机（首跳脉冲 + 按住持续加速）、空中姿态控制、落地回正。
func StepCar(s CarState, in InputSample, dt float64) CarState {
	up := s.Rotation.Rotate(Vec3{Y: 1})
	grounded := s.Position.Y <= CarRestHeight+1e-9 && s.LinearVelocity.Y <= 1e-9

	// 接触面标记
	if grounded {
		if up.Y >= UprightDotThreshold {
			s.AllWheelsOnSurface = true
			s.WheelsOnSurfaceCount = 4
			s.BodyOnSurface = false
		} else {
			// 翻覆：车身贴地，无法行驶
			s.AllWheelsOnSurface = false
			s.WheelsOnSurfaceCount = 0
			s.BodyOnSurface = true
		}
	} else {
		s.AllWheelsOnSurface = false
		s.WheelsOnSurfaceCount = 0
		s.BodyOnSurface = false
	}
	s.CanDrive = grounded && s.AllWheelsOnSurface

	if grounded {
		s.Jumping = false
		s.CanFirstJump = s.CanDrive
		s.JumpTimer = 0
		s.SimState = CarGrounded
	}

	if s.CanDrive {
		s = stepCarGrounded(s, in, dt)
	}

	// 首跳：边沿触发
	if in.JumpPressed && s.CanFirstJump && s.CanDrive {
		s.LinearVelocity.Y += JumpImpulse
		s.Jumping = true
		s.CanFirstJump = false
		s.CanKeepJumping = true
		s.JumpTimer = 0
		s.SimState = CarJumping
		grounded = false
	}

	// 持续跳跃加速：按住且未超时
	if s.Jumping && s.CanKeepJumping && in.Jump && s.JumpTimer < MaxJumpHoldTime {
		s.LinearVelocity.Y += JumpHoldAccel * dt
		s.JumpTimer += dt
	}
	if in.JumpReleased {
		s.CanKeepJumping = false
	}
	if s.JumpTimer >= MaxJumpHoldTime {
		s.CanKeepJumping = false
	}

	if !grounded {
		s = stepCarAirborne(s, in, dt)
	}

	// 位置积分与边界
	s.Position = s.Position.Add(s.LinearVelocity.Scale(dt))
	s = clampCarToArena(s)

	// 行驶速度指标
	forward := s.Rotation.Rotate(Vec3{X: 1})
	s.ForwardSpeed = s.LinearVelocity.Dot(forward)
	s.ForwardSpeedSign = signum(s.ForwardSpeed)

	return s
}

func stepCarGrounded(s CarState, in InputSample, dt float64) CarState {
	forward := s.Rotation.Rotate(Vec3{X: 1})
	forwardFlat := Vec3{X: forward.X, Z: forward.Z}.Normalized()

	forwardSpeed := s.LinearVelocity.Dot(forwardFlat)

	// 油门/刹车
	accel := 0.0
	switch {
	case in.Throttle > 0 && forwardSpeed >= 0, in.Throttle < 0 && forwardSpeed <= 0:
		accel = in.Throttle * DriveAcceleration
	case in.Throttle != 0:
		// 与当前行驶方向相反：刹车
		accel = in.Throttle * BrakeAcceleration
	}
	if in.Boost {
		accel += BoostAcceleration
	}
	s.LinearVelocity = s.LinearVelocity.Add(forwardFlat.Scale(accel * dt))

	// 松油门滑行阻力
	if in.Throttle == 0 && !in.Boost {
		decay := 1 - CoastDragRate*dt
		if decay < 0 {
			decay = 0
		}
		s.LinearVelocity.X *= decay
		s.LinearVelocity.Z *= decay
	}

	// 转向：角速度与行驶方向符号相关，倒车时转向反转
	forwardSpeed = s.LinearVelocity.Dot(forwardFlat)
	speedFactor := math.Min(math.Abs(forwardSpeed)/8.0, 1.0)
	yawRate := -in.Steer * SteerYawRate * signum(forwardSpeed) * speedFactor
	s.AngularVelocity = Vec3{Y: yawRate}
	if yawRate != 0 {
		s.Rotation = QuatFromAxisAngle(Vec3{Y: 1}, yawRate*dt).Mul(s.Rotation).Normalized()
	}

	// 侧向摩擦：漂移时削弱
	friction := NormalSideFriction
	if in.Drift {
		friction = DriftSideFriction
	}
	s.WheelSideFriction = friction

	side := s.Rotation.Rotate(Vec3{Z: 1})
	sideFlat := Vec3{X: side.X, Z: side.Z}.Normalized()
	lateral := sideFlat.Scale(s.LinearVelocity.Dot(sideFlat))
	damp := friction * SideFrictionRate * dt
	if damp > 1 {
		damp = 1
	}
	s.LinearVelocity = s.LinearVelocity.Sub(lateral.Scale(damp))

	// 速度上限
	limit := MaxDriveSpeed
	if in.Boost {
		limit = MaxBoostSpeed
	}
	horizontal := Vec3{X: s.LinearVelocity.X, Z: s.LinearVelocity.Z}
	if hs := horizontal.Length(); hs > limit {
		scaled := horizontal.Scale(limit / hs)
		s.LinearVelocity.X = scaled.X
		s.LinearVelocity.Z = scaled.Z
	}

	return s
}

func stepCarAirborne(s CarState, in InputSample, dt float64) CarState {
	s.LinearVelocity.Y -= Gravity * dt

	// 空中姿态控制（机体系）
	pitchRate := in.Pitch * AirPitchRate
	yawRate := in.Yaw * AirYawRate
	rollRate := in.Roll * AirRollRate
	if in.AirRoll {
		// 按住空中翻滚时转向轴转为滚转
		rollRate = in.Steer * AirRollRate
		yawRate = 0
	}

	forward := s.Rotation.Rotate(Vec3{X: 1})
	upAxis := s.Rotation.Rotate(Vec3{Y: 1})
	side := s.Rotation.Rotate(Vec3{Z: 1})

	omega := forward.Scale(rollRate).
		Add(side.Scale(pitchRate)).
		Add(upAxis.Scale(yawRate))
	s.AngularVelocity = omega
	s.Rotation = IntegrateQuat(s.Rotation, omega, dt)

	if s.Jumping && s.JumpTimer < MaxJumpHoldTime {
		s.SimState = CarJumping
	} else {
		s.SimState = CarAirborne
	}

	return s
}

// clampCarToArena 落地与墙面约束
func clampCarToArena(s CarState) CarState {
	if s.Position.Y <= CarRestHeight {
		landing := s.Position.Y < CarRestHeight-1e-9 || s.LinearVelocity.Y < 0
		s.Position.Y = CarRestHeight
		if s.LinearVelocity.Y < 0 {
			s.LinearVelocity.Y = 0
		}
		if landing {
			// 落地回正：保留偏航，抹掉俯仰与滚转
			forward := s.Rotation.Rotate(Vec3{X: 1})
			yaw := math.Atan2(-forward.Z, forward.X)
			s.Rotation = QuatFromAxisAngle(Vec3{Y: 1}, yaw)
			s.AngularVelocity = Vec3{}
			s.Jumping = false
		}
	}
	if s.Position.Y > ArenaHeight-CarRestHeight {
		s.Position.Y = ArenaHeight - CarRestHeight
		if s.LinearVelocity.Y > 0 {
			s.LinearVelocity.Y = 0
		}
	}

	if s.Position.X > ArenaHalfWidth {
		s.Position.X = ArenaHalfWidth
		if s.LinearVelocity.X > 0 {
			s.LinearVelocity.X = 0
		}
	} else if s.Position.X < -ArenaHalfWidth {
		s.Position.X = -ArenaHalfWidth
		if s.LinearVelocity.X < 0 {
			s.LinearVelocity.X = 0
		}
	}

	if s.Position.Z > ArenaHalfLength {
		s.Position.Z = ArenaHalfLength
		if s.LinearVelocity.Z > 0 {
			s.LinearVelocity.Z = 0
		}
	} else if s.Position.Z < -ArenaHalfLength {
		s.Position.Z = -ArenaHalfLength
		if s.LinearVelocity.Z < 0 {
			s.LinearVelocity.Z = 0
		}
	}

	return s
}

func signum(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}
