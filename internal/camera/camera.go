// Package camera holds the pan/zoom state of the viewport and the animated
// focus transition that recenters the view on a node.
package camera

import "math"

// Transform is the affine view transform: world coordinates are scaled by
// Scale and then translated by (X, Y) into screen space.
type Transform struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Scale float64 `json:"scale"`
}

// Camera is the viewport controller. It is not safe for concurrent use; the
// engine serializes access from its tick loop.
type Camera struct {
	cur Transform

	minScale   float64
	maxScale   float64
	focusScale float64
	focusDur   float64 // seconds

	viewW, viewH float64

	anim *animation
}

type animation struct {
	from    Transform
	to      Transform
	elapsed float64
	dur     float64
}

// New creates a camera for a viewport of the given pixel size.
func New(viewW, viewH float64) *Camera {
	return &Camera{
		cur:        Transform{Scale: 1},
		minScale:   0.2,
		maxScale:   5.0,
		focusScale: 1.6,
		focusDur:   0.6,
		viewW:      viewW,
		viewH:      viewH,
	}
}

// Transform returns the current view transform.
func (c *Camera) Transform() Transform {
	return c.cur
}

// Animating reports whether a focus transition is in flight.
func (c *Camera) Animating() bool {
	return c.anim != nil
}

// Focus starts an animated transition that centers the given world point at
// the focus zoom level. A newer focus replaces any in-flight animation.
func (c *Camera) Focus(worldX, worldY float64) {
	target := Transform{
		X:     c.viewW/2 - worldX*c.focusScale,
		Y:     c.viewH/2 - worldY*c.focusScale,
		Scale: c.focusScale,
	}
	c.anim = &animation{from: c.cur, to: target, dur: c.focusDur}
}

// Tick advances any in-flight focus animation by dt seconds with an ease-out
// curve, so the motion decelerates into the target.
func (c *Camera) Tick(dt float64) {
	if c.anim == nil {
		return
	}
	a := c.anim
	a.elapsed += dt
	t := a.elapsed / a.dur
	if t >= 1 {
		c.cur = a.to
		c.anim = nil
		return
	}
	e := easeOutCubic(t)
	c.cur = Transform{
		X:     a.from.X + (a.to.X-a.from.X)*e,
		Y:     a.from.Y + (a.to.Y-a.from.Y)*e,
		Scale: a.from.Scale + (a.to.Scale-a.from.Scale)*e,
	}
}

func easeOutCubic(t float64) float64 {
	u := 1 - t
	return 1 - u*u*u
}

// Pan shifts the view by a screen-space delta. Direct manipulation cancels
// any focus animation.
func (c *Camera) Pan(dx, dy float64) {
	c.anim = nil
	c.cur.X += dx
	c.cur.Y += dy
}

// Zoom multiplies the scale by factor, clamped to the allowed range, keeping
// the screen point (cx, cy) fixed. Cancels any focus animation.
func (c *Camera) Zoom(factor, cx, cy float64) {
	c.anim = nil

	next := clamp(c.cur.Scale*factor, c.minScale, c.maxScale)
	if next == c.cur.Scale {
		return
	}
	// Keep the world point under (cx, cy) stationary on screen.
	ratio := next / c.cur.Scale
	c.cur.X = cx - (cx-c.cur.X)*ratio
	c.cur.Y = cy - (cy-c.cur.Y)*ratio
	c.cur.Scale = next
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}
