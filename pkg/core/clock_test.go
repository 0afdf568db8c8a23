package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTickClockStartsAtZero(t *testing.T) {
	c := NewTickClock(time.Hour)

	assert.Equal(t, int64(0), c.RawTick())
	assert.Equal(t, int64(0), c.CurrentTick())
	assert.False(t, c.Synced())
}

func TestTickClockOffset(t *testing.T) {
	c := NewTickClock(time.Hour)

	c.SetOffset(42)

	assert.Equal(t, int64(42), c.Offset())
	assert.Equal(t, int64(42), c.CurrentTick())
	assert.True(t, c.Synced())
}

func TestTickClockAdvances(t *testing.T) {
	c := NewTickClock(10 * time.Millisecond)

	time.Sleep(35 * time.Millisecond)

	got := c.RawTick()
	assert.GreaterOrEqual(t, got, int64(3))
	assert.Less(t, got, int64(20), "tick 不应远超经过时间")
}

func TestTickClockStep(t *testing.T) {
	c := NewTickClock(time.Second / 60)

	assert.Equal(t, time.Second/60, c.Step())
	assert.InDelta(t, 1.0/60.0, c.StepSeconds(), 1e-8)
}

func TestTickClockBadStepPanics(t *testing.T) {
	assert.Panics(t, func() { NewTickClock(0) })
}
