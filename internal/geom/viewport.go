package geom

import "math"

// Limits bounds the zoom factor of a viewport.
type Limits struct {
	Min        float64 // hard lower bound on scale
	Max        float64 // hard upper bound on scale
	Base       float64 // scale that is displayed as "100%"
	ComfortMin float64 // lower bound offered by zoom controls
	ComfortMax float64 // upper bound offered by zoom controls
}

// DefaultLimits are the canvas-wide zoom bounds.
var DefaultLimits = Limits{
	Min:        0.1,
	Max:        5.0,
	Base:       0.65,
	ComfortMin: 0.1,
	ComfortMax: 1.3,
}

// Clamp restricts scale to [Min, Max].
func (l Limits) Clamp(scale float64) float64 {
	if math.IsNaN(scale) {
		return l.Base
	}
	return math.Min(math.Max(scale, l.Min), l.Max)
}

// ClampComfort restricts scale to the range offered by zoom controls.
func (l Limits) ClampComfort(scale float64) float64 {
	return l.Clamp(math.Min(math.Max(scale, l.ComfortMin), l.ComfortMax))
}

// Percent returns the display percentage for scale relative to Base.
func (l Limits) Percent(scale float64) int {
	return int(math.Round(scale / l.Base * 100))
}

// Viewport describes how world space is projected on screen:
// screen = world*Scale + Offset.
type Viewport struct {
	Offset Point   `json:"offset"`
	Scale  float64 `json:"scale"`
}

// Centered returns a viewport whose world origin sits at the centre of a
// screen of the given size.
func Centered(screen Size, scale float64) Viewport {
	return Viewport{Offset: screen.Half(), Scale: scale}
}

// ToWorld maps a screen point into world space.
func (v Viewport) ToWorld(p Point) Point {
	return p.Sub(v.Offset).Div(v.Scale)
}

// ToScreen maps a world point into screen space.
func (v Viewport) ToScreen(p Point) Point {
	return p.Mul(v.Scale).Add(v.Offset)
}

// Pan shifts the viewport by a screen-space delta.
func (v Viewport) Pan(delta Point) Viewport {
	return Viewport{Offset: v.Offset.Add(delta), Scale: v.Scale}
}

// ZoomAt returns the viewport rescaled to newScale (clamped by limits) such
// that the world point under anchor stays under anchor. The receiver is not
// modified; callers swap the returned value in as a whole.
func (v Viewport) ZoomAt(newScale float64, anchor Point, limits Limits) Viewport {
	world := v.ToWorld(anchor)
	scale := limits.Clamp(newScale)
	return Viewport{
		Offset: anchor.Sub(world.Mul(scale)),
		Scale:  scale,
	}
}

// VisibleRect returns the world-space rectangle covered by a screen of the
// given size.
func (v Viewport) VisibleRect(screen Size) Rect {
	return Rect{
		Min:  v.ToWorld(Point{}),
		Size: Size{W: screen.W / v.Scale, H: screen.H / v.Scale},
	}
}
