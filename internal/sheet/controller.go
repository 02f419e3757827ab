package sheet

import (
	"fmt"
	"sync"
)

// Frame duration used by Settle.
const frame = 1.0 / 60

// Longest simulated time Settle runs before jumping to the target.
const settleLimit = 10.0

// Controller owns the sheet position. It starts at rest on Collapsed.
//
// Motion requests (SnapTo, EndDrag) replace the in-flight target and keep
// the current velocity. Dragging suspends any animation: the position
// follows lastSnap + translation, clamped to [Expanded, Collapsed].
type Controller struct {
	mu          sync.Mutex
	points      SnapPoints
	openSpring  Spring
	closeSpring Spring

	pos      float64
	vel      float64
	target   Snap
	spring   Spring
	lastSnap Snap
	dragging bool
	moving   bool
}

type Option func(*Controller)

// WithSprings overrides the opening and collapsing springs.
func WithSprings(open, collapse Spring) Option {
	return func(c *Controller) {
		c.openSpring = open
		c.closeSpring = collapse
	}
}

func NewController(points SnapPoints, opts ...Option) (*Controller, error) {
	if err := points.Validate(); err != nil {
		return nil, fmt.Errorf("new sheet controller: %w", err)
	}

	c := &Controller{
		points:      points,
		openSpring:  OpenSpring,
		closeSpring: CloseSpring,
		pos:         points.Collapsed,
		target:      Collapsed,
		lastSnap:    Collapsed,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.spring = c.openSpring
	return c, nil
}

func (c *Controller) Points() SnapPoints { return c.points }

// SnapTo animates programmatically to s and records it as the last snap.
func (c *Controller) SnapTo(s Snap) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.dragging = false
	c.animateTo(s)
}

func (c *Controller) animateTo(s Snap) {
	c.target = s
	c.lastSnap = s
	c.spring = c.openSpring
	if s == Collapsed {
		c.spring = c.closeSpring
	}
	c.moving = true
	if atRest(c.pos, c.vel, c.points.Offset(s)) {
		c.settleAt(s)
	}
}

func (c *Controller) settleAt(s Snap) {
	c.pos = c.points.Offset(s)
	c.vel = 0
	c.moving = false
}

// BeginDrag interrupts any animation and hands the position to the gesture.
func (c *Controller) BeginDrag() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.dragging = true
	c.moving = false
	c.vel = 0
}

// Drag moves the sheet to lastSnap + translation, clamped.
// Calling Drag without BeginDrag begins the drag implicitly.
func (c *Controller) Drag(translation float64) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.dragging = true
	c.moving = false
	c.vel = 0
	c.pos = c.points.Clamp(c.points.Offset(c.lastSnap) + translation)
	return c.pos
}

// EndDrag resolves the release point lastSnap + translation to the nearest
// snap, animates there and returns it.
func (c *Controller) EndDrag(translation float64) Snap {
	c.mu.Lock()
	defer c.mu.Unlock()

	end := c.points.Offset(c.lastSnap) + translation
	s := c.points.Nearest(end)

	c.dragging = false
	c.animateTo(s)
	return s
}

// Step advances the animation by dt seconds and reports whether it is
// still moving.
func (c *Controller) Step(dt float64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.step(dt)
}

func (c *Controller) step(dt float64) bool {
	if !c.moving || c.dragging || dt <= 0 {
		return c.moving
	}

	target := c.points.Offset(c.target)
	c.pos, c.vel = c.spring.advance(c.pos, c.vel, target, dt)

	// Overshoot is not allowed past either end of the range.
	if c.pos < c.points.Expanded || c.pos > c.points.Collapsed {
		c.pos = c.points.Clamp(c.pos)
		c.vel = 0
	}

	if atRest(c.pos, c.vel, target) {
		c.settleAt(c.target)
	}
	return c.moving
}

// Settle runs the animation to rest frame by frame and returns the final snap.
func (c *Controller) Settle() Snap {
	c.mu.Lock()
	defer c.mu.Unlock()

	for elapsed := 0.0; c.moving && elapsed < settleLimit; elapsed += frame {
		c.step(frame)
	}
	if c.moving {
		c.settleAt(c.target)
	}
	return c.target
}

func (c *Controller) Position() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pos
}

func (c *Controller) Velocity() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.vel
}

// Target is the snap the sheet is heading to, or resting on.
func (c *Controller) Target() Snap {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.target
}

func (c *Controller) LastSnap() Snap {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastSnap
}

func (c *Controller) Dragging() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dragging
}

// Settled reports whether the sheet is at rest on a snap.
func (c *Controller) Settled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.moving && !c.dragging
}

// Visibility evaluates every content block at the current position.
func (c *Controller) Visibility(selected bool) Visibility {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.points.Visibility(c.pos, selected)
}

// State is a point-in-time view of the controller.
type State struct {
	Position float64 `json:"position"`
	Target   string  `json:"target"`
	Settled  bool    `json:"settled"`
	Dragging bool    `json:"dragging"`
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return State{
		Position: c.pos,
		Target:   c.target.String(),
		Settled:  !c.moving && !c.dragging,
		Dragging: c.dragging,
	}
}
