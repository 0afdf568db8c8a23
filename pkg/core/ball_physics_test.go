package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStepBallRestsOnGround(t *testing.T) {
	s := NewBallState()

	for i := 0; i < 120; i++ {
		s = StepBall(s, FixedDeltaTime)
	}

	assert.InDelta(t, BallRadius, s.Position.Y, 1e-6)
	assert.InDelta(t, 0, s.Position.X, 1e-9)
	assert.InDelta(t, 0, s.Position.Z, 1e-9)
}

func TestStepBallBounces(t *testing.T) {
	s := NewBallState()
	s.Position.Y = 10

	// 自由落体到触地
	for i := 0; i < 600 && !(s.Position.Y <= BallRadius+1e-9 && s.LinearVelocity.Y > 0); i++ {
		s = StepBall(s, FixedDeltaTime)
	}

	require.Greater(t, s.LinearVelocity.Y, 0.0, "触地后应反弹向上")

	// 反弹速度打了恢复系数折扣
	impactSpeed := s.LinearVelocity.Y / BallRestitution
	assert.Less(t, s.LinearVelocity.Y, impactSpeed)
}

func TestStepBallWallBounce(t *testing.T) {
	s := NewBallState()
	s.Position = Vec3{X: ArenaHalfWidth - BallRadius - 0.5, Y: BallRadius}
	s.LinearVelocity = Vec3{X: 20}

	for i := 0; i < 30; i++ {
		s = StepBall(s, FixedDeltaTime)
	}

	assert.Less(t, s.LinearVelocity.X, 0.0, "撞墙后 X 速度反向")
	assert.LessOrEqual(t, s.Position.X, ArenaHalfWidth-BallRadius+1e-9)
}

func TestStepBallDeterministic(t *testing.T) {
	start := NewBallState()
	start.Position = Vec3{X: 3, Y: 7, Z: -4}
	start.LinearVelocity = Vec3{X: 12, Y: 2, Z: -9}
	start.AngularVelocity = Vec3{Y: 3}

	a, b := start, start
	for i := 0; i < 300; i++ {
		a = StepBall(a, FixedDeltaTime)
		b = StepBall(b, FixedDeltaTime)
	}

	assert.Equal(t, a, b)
}

func TestResolveCarBallContactPushesOut(t *testing.T) {
	car := NewCarState(Vec3{Y: CarRestHeight}, 0)
	car.LinearVelocity = Vec3{X: 15}

	ball := NewBallState()
	ball.Position = Vec3{X: car.Position.X + 1.0, Y: BallRadius} // 穿透中

	out := ResolveCarBallContact(car, ball)

	dist := out.Position.Sub(car.Position).Length()
	assert.GreaterOrEqual(t, dist, 1.2+BallRadius-1e-9, "球被推出穿透")
	assert.Greater(t, out.LinearVelocity.X, ball.LinearVelocity.X, "球沿撞击方向获得速度")
}

func TestResolveCarBallContactNoTouch(t *testing.T) {
	car := NewCarState(Vec3{Y: CarRestHeight}, 0)
	ball := NewBallState()
	ball.Position = Vec3{X: 10, Y: BallRadius}

	out := ResolveCarBallContact(car, ball)

	assert.Equal(t, ball, out, "没接触就不改动球")
}
