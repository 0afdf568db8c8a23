package core

// StepBall 默认球步进实现：重力 + 场地反弹 + 阻尼
// 与车辆步进同样要求确定性。
func StepBall(s BallState, dt float64) BallState {
	s.LinearVelocity.Y -= Gravity * dt
	s.Position = s.Position.Add(s.LinearVelocity.Scale(dt))

	// 地面反弹
	if s.Position.Y < BallRadius {
		s.Position.Y = BallRadius
		if s.LinearVelocity.Y < 0 {
			s.LinearVelocity.Y = -s.LinearVelocity.Y * BallRestitution
		}
		// 触地摩擦
		decay := 1 - BallGroundFriction*dt
		if decay < 0 {
			decay = 0
		}
		s.LinearVelocity.X *= decay
		s.LinearVelocity.Z *= decay
	}

	// 天花板与墙面反弹
	if s.Position.Y > ArenaHeight-BallRadius {
		s.Position.Y = ArenaHeight - BallRadius
		if s.LinearVelocity.Y > 0 {
			s.LinearVelocity.Y = -s.LinearVelocity.Y * BallRestitution
		}
	}
	if s.Position.X > ArenaHalfWidth-BallRadius {
		s.Position.X = ArenaHalfWidth - BallRadius
		if s.LinearVelocity.X > 0 {
			s.LinearVelocity.X = -s.LinearVelocity.X * BallRestitution
		}
	} else if s.Position.X < -(ArenaHalfWidth - BallRadius) {
		s.Position.X = -(ArenaHalfWidth - BallRadius)
		if s.LinearVelocity.X < 0 {
			s.LinearVelocity.X = -s.LinearVelocity.X * BallRestitution
		}
	}
	if s.Position.Z > ArenaHalfLength-BallRadius {
		s.Position.Z = ArenaHalfLength - BallRadius
		if s.LinearVelocity.Z > 0 {
			s.LinearVelocity.Z = -s.LinearVelocity.Z * BallRestitution
		}
	} else if s.Position.Z < -(ArenaHalfLength - BallRadius) {
		s.Position.Z = -(ArenaHalfLength - BallRadius)
		if s.LinearVelocity.Z < 0 {
			s.LinearVelocity.Z = -s.LinearVelocity.Z * BallRestitution
		}
	}

	// 阻尼
	lin := 1 - BallLinearDamping*dt
	ang := 1 - BallAngularDamping*dt
	if lin < 0 {
		lin = 0
	}
	if ang < 0 {
		ang = 0
	}
	s.LinearVelocity = s.LinearVelocity.Scale(lin)
	s.AngularVelocity = s.AngularVelocity.Scale(ang)

	s.Rotation = IntegrateQuat(s.Rotation, s.AngularVelocity, dt)
	return s
}

// ResolveCarBallContact 车球接触判定与冲量
// 简化为球-球推挤：沿分离方向把球推出，并叠加车的速度分量。
// 权威端每步调用一次；确定性同样成立。
func ResolveCarBallContact(car CarState, ball BallState) BallState {
	const carContactRadius = 1.2

	delta := ball.Position.Sub(car.Position)
	dist := delta.Length()
	minDist := carContactRadius + BallRadius
	if dist >= minDist || dist == 0 {
		return ball
	}

	normal := delta.Scale(1 / dist)

	// 先把球推出穿透
	ball.Position = car.Position.Add(normal.Scale(minDist))

	// 沿法线方向的相对速度
	relVel := ball.LinearVelocity.Sub(car.LinearVelocity)
	closing := relVel.Dot(normal)
	if closing < 0 {
		impulse := -closing*(1+BallRestitution) + BallContactImpulse
		ball.LinearVelocity = ball.LinearVelocity.Add(normal.Scale(impulse))
		// 撞击带出旋转
		ball.AngularVelocity = ball.AngularVelocity.Add(normal.Cross(relVel).Scale(0.5))
	}

	return ball
}
