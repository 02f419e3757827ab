package sheet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestController(t *testing.T) *Controller {
	t.Helper()
	c, err := NewController(ForScreenHeight(800))
	require.NoError(t, err)
	return c
}

func TestControllerStartsCollapsed(t *testing.T) {
	c := newTestController(t)

	assert.Equal(t, 700.0, c.Position())
	assert.Equal(t, Collapsed, c.Target())
	assert.Equal(t, Collapsed, c.LastSnap())
	assert.True(t, c.Settled())
}

func TestSnapToPeekSettlesAtPeek(t *testing.T) {
	c := newTestController(t)

	c.SnapTo(Peek)
	assert.False(t, c.Settled())

	assert.Equal(t, Peek, c.Settle())
	assert.Equal(t, 480.0, c.Position())
	assert.Equal(t, Peek, c.LastSnap())
	assert.True(t, c.Settled())
}

func TestStepMovesTowardTarget(t *testing.T) {
	c := newTestController(t)
	c.SnapTo(Half)

	require.True(t, c.Step(0.05))
	pos := c.Position()
	assert.Less(t, pos, 700.0)
	assert.Greater(t, pos, 400.0)

	for c.Step(frame) {
	}
	assert.Equal(t, 400.0, c.Position())
}

func TestDragIsRelativeToLastSnapAndClamped(t *testing.T) {
	c := newTestController(t)
	c.BeginDrag()

	assert.Equal(t, 650.0, c.Drag(-50))
	assert.Equal(t, 700.0, c.Drag(200))
	assert.Equal(t, 160.0, c.Drag(-5000))
	assert.True(t, c.Dragging())
	assert.False(t, c.Settled())
}

func TestEndDragMidpointRules(t *testing.T) {
	c := newTestController(t)
	c.SnapTo(Peek)
	c.Settle()

	// 480-40 = 440 is the Half/Peek midpoint.
	c.BeginDrag()
	c.Drag(-40)
	assert.Equal(t, Half, c.EndDrag(-40))
	c.Settle()
	assert.Equal(t, 400.0, c.Position())

	// From Half, +41 lands one unit past the midpoint toward Peek.
	c.BeginDrag()
	assert.Equal(t, Peek, c.EndDrag(41))
	c.Settle()
	assert.Equal(t, 480.0, c.Position())
}

func TestEndDragFarBeyondRange(t *testing.T) {
	c := newTestController(t)

	c.BeginDrag()
	c.Drag(-5000)
	assert.Equal(t, Expanded, c.EndDrag(-5000))
	assert.Equal(t, Expanded, c.Settle())
	assert.Equal(t, 160.0, c.Position())
}

func TestNewMotionKeepsVelocity(t *testing.T) {
	c := newTestController(t)

	c.SnapTo(Expanded)
	c.Step(0.05)
	vel := c.Velocity()
	require.Less(t, vel, 0.0)

	c.SnapTo(Peek)
	assert.Equal(t, vel, c.Velocity())
	assert.Equal(t, Peek, c.Target())

	assert.Equal(t, Peek, c.Settle())
	assert.Equal(t, 480.0, c.Position())
}

func TestBeginDragInterruptsAnimation(t *testing.T) {
	c := newTestController(t)

	c.SnapTo(Expanded)
	c.Step(0.05)
	c.BeginDrag()

	pos := c.Position()
	assert.False(t, c.Step(0.1))
	assert.Equal(t, pos, c.Position())
	assert.Equal(t, 0.0, c.Velocity())
}

func TestPositionStaysInRangeDuringAnimation(t *testing.T) {
	c := newTestController(t)
	c.SnapTo(Expanded)

	for i := 0; i < 600 && c.Step(frame); i++ {
		pos := c.Position()
		assert.GreaterOrEqual(t, pos, 160.0)
		assert.LessOrEqual(t, pos, 700.0)
	}
	assert.True(t, c.Settled())
}

func TestControllerVisibility(t *testing.T) {
	c := newTestController(t)
	assert.Equal(t, Visibility{Detail: 0, Extended: 0, Radius: 1}, c.Visibility(false))

	c.SnapTo(Peek)
	c.Settle()
	v := c.Visibility(true)
	assert.Equal(t, 1.0, v.Detail)
	assert.InDelta(t, 0.3, v.Radius, 1e-9)
}
