package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stepN(s CarState, inputs []InputSample, dt float64) CarState {
	for _, in := range inputs {
		s = StepCar(s, in, dt)
	}
	return s
}

func TestStepCarDeterministic(t *testing.T) {
	start := NewCarState(Vec3{Y: CarRestHeight}, 0)

	inputs := make([]InputSample, 120)
	for i := range inputs {
		inputs[i] = InputSample{
			Tick:     int64(i),
			Throttle: 1,
			Steer:    0.3,
			Boost:    i%20 < 5,
			Jump:     i == 40,
		}
	}
	inputs[40].JumpPressed = true

	a := stepN(start, inputs, FixedDeltaTime)
	b := stepN(start, inputs, FixedDeltaTime)

	// 逐位一致，浮点不允许有任何偏差
	assert.Equal(t, a, b)
}

func TestStepCarThrottleAccelerates(t *testing.T) {
	s := NewCarState(Vec3{Y: CarRestHeight}, 0)
	in := InputSample{Throttle: 1}

	for i := 0; i < 60; i++ {
		s = StepCar(s, in, FixedDeltaTime)
	}

	assert.Greater(t, s.ForwardSpeed, 10.0, "一秒全油门应接近满加速")
	assert.Equal(t, 1.0, s.ForwardSpeedSign)
	assert.Equal(t, CarGrounded, s.SimState)
	assert.True(t, s.CanDrive)
}

func TestStepCarSpeedCap(t *testing.T) {
	s := NewCarState(Vec3{Y: CarRestHeight}, 0)
	in := InputSample{Throttle: 1}

	for i := 0; i < 600; i++ {
		s = StepCar(s, in, FixedDeltaTime)
	}

	horizontal := Vec3{X: s.LinearVelocity.X, Z: s.LinearVelocity.Z}
	assert.LessOrEqual(t, horizontal.Length(), MaxDriveSpeed+1e-9)
}

func TestStepCarJumpAndLand(t *testing.T) {
	s := NewCarState(Vec3{Y: CarRestHeight}, 0)

	s = StepCar(s, InputSample{Jump: true, JumpPressed: true}, FixedDeltaTime)

	require.True(t, s.Jumping)
	assert.Greater(t, s.LinearVelocity.Y, 0.0)
	assert.Equal(t, CarJumping, s.SimState)
	assert.False(t, s.CanFirstJump)

	// 松开后任其飞行直到落地
	for i := 0; i < 300 && s.SimState != CarGrounded; i++ {
		s = StepCar(s, InputSample{}, FixedDeltaTime)
	}

	assert.Equal(t, CarGrounded, s.SimState)
	assert.InDelta(t, CarRestHeight, s.Position.Y, 1e-9)
	assert.True(t, s.CanFirstJump, "落地后恢复起跳资格")
}

func TestStepCarHoldJumpRisesHigher(t *testing.T) {
	start := NewCarState(Vec3{Y: CarRestHeight}, 0)

	flightApex := func(hold int) float64 {
		s := StepCar(start, InputSample{Jump: true, JumpPressed: true}, FixedDeltaTime)
		for i := 0; i < hold; i++ {
			s = StepCar(s, InputSample{Jump: true}, FixedDeltaTime)
		}
		apex := s.Position.Y
		for i := 0; i < 300 && s.SimState != CarGrounded; i++ {
			s = StepCar(s, InputSample{}, FixedDeltaTime)
			if s.Position.Y > apex {
				apex = s.Position.Y
			}
		}
		return apex
	}

	short := flightApex(0)
	long := flightApex(12) // 0.2 秒按满

	assert.Greater(t, long, short, "按住跳跃应该跳得更高")
}

func TestStepCarEdgeClearedNoDoubleImpulse(t *testing.T) {
	s := NewCarState(Vec3{Y: CarRestHeight}, 0)

	pressed := InputSample{Jump: true, JumpPressed: true}
	s = StepCar(s, pressed, FixedDeltaTime)
	vAfterJump := s.LinearVelocity.Y

	// 同一份输入清除边沿后重放：不允许再次触发首跳脉冲
	repeated := pressed.ClearEdges()
	s2 := StepCar(s, repeated, FixedDeltaTime)

	assert.Less(t, s2.LinearVelocity.Y, vAfterJump+JumpImpulse/2,
		"清除边沿后的重放不能再次施加起跳脉冲")
}

func TestStepCarStaysInArena(t *testing.T) {
	s := NewCarState(Vec3{X: ArenaHalfWidth - 1, Y: CarRestHeight}, 0)
	in := InputSample{Throttle: 1} // 朝 +X 满油门

	for i := 0; i < 300; i++ {
		s = StepCar(s, in, FixedDeltaTime)
	}

	assert.LessOrEqual(t, s.Position.X, ArenaHalfWidth)
	assert.LessOrEqual(t, s.LinearVelocity.X, 0.0+1e-9, "顶墙后沿墙法线的速度被清零")
}

func TestStepCarLandingUprights(t *testing.T) {
	// 空中带着俯仰乱转，落地后应只剩偏航
	s := NewCarState(Vec3{}, 0.7)
	s.Position.Y = 5
	s.SimState = CarAirborne

	for i := 0; i < 300 && s.SimState != CarGrounded; i++ {
		s = StepCar(s, InputSample{Pitch: 1, Yaw: 0.5}, FixedDeltaTime)
	}

	require.Equal(t, CarGrounded, s.SimState)
	up := s.Rotation.Rotate(Vec3{Y: 1})
	assert.InDelta(t, 1.0, up.Y, 1e-6, "落地回正后车顶朝上")
}

func TestStepCarDriftReducesLateralGrip(t *testing.T) {
	run := func(drift bool) float64 {
		s := NewCarState(Vec3{Y: CarRestHeight}, 0)
		// 先加速再全转向
		for i := 0; i < 60; i++ {
			s = StepCar(s, InputSample{Throttle: 1}, FixedDeltaTime)
		}
		for i := 0; i < 30; i++ {
			s = StepCar(s, InputSample{Throttle: 1, Steer: 1, Drift: drift}, FixedDeltaTime)
		}
		side := s.Rotation.Rotate(Vec3{Z: 1})
		sideFlat := Vec3{X: side.X, Z: side.Z}.Normalized()
		return absFloat(s.LinearVelocity.Dot(sideFlat))
	}

	grip := run(false)
	slide := run(true)

	assert.Greater(t, slide, grip, "漂移时侧滑速度应明显更大")
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
