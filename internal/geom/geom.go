// Package geom holds the 2D primitives shared by the canvas engine: points,
// sizes, axis-aligned rectangles and the pan/zoom viewport that maps screen
// space onto world space.
package geom

import "math"

// Point is a position in either screen or world space.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Add returns p+q.
func (p Point) Add(q Point) Point { return Point{X: p.X + q.X, Y: p.Y + q.Y} }

// Sub returns p-q.
func (p Point) Sub(q Point) Point { return Point{X: p.X - q.X, Y: p.Y - q.Y} }

// Mul scales both coordinates by k.
func (p Point) Mul(k float64) Point { return Point{X: p.X * k, Y: p.Y * k} }

// Div divides both coordinates by k.
func (p Point) Div(k float64) Point { return Point{X: p.X / k, Y: p.Y / k} }

// Size is a width/height pair.
type Size struct {
	W float64 `json:"width"`
	H float64 `json:"height"`
}

// Half returns the size halved in both dimensions, as a Point offset.
func (s Size) Half() Point { return Point{X: s.W / 2, Y: s.H / 2} }

// Rect is an axis-aligned rectangle anchored at its top-left corner.
type Rect struct {
	Min  Point
	Size Size
}

// RectAt builds a rectangle from a top-left corner and a size.
func RectAt(p Point, s Size) Rect { return Rect{Min: p, Size: s} }

// Max returns the bottom-right corner.
func (r Rect) Max() Point { return Point{X: r.Min.X + r.Size.W, Y: r.Min.Y + r.Size.H} }

// Center returns the midpoint of the rectangle.
func (r Rect) Center() Point { return r.Min.Add(r.Size.Half()) }

// Contains reports whether p lies inside r. Edges are inclusive.
func (r Rect) Contains(p Point) bool {
	max := r.Max()
	return p.X >= r.Min.X && p.X <= max.X && p.Y >= r.Min.Y && p.Y <= max.Y
}

// Overlaps reports whether r and o share interior area. Rectangles that
// merely touch along an edge do not overlap.
func (r Rect) Overlaps(o Rect) bool {
	rMax, oMax := r.Max(), o.Max()
	return r.Min.X < oMax.X && o.Min.X < rMax.X && r.Min.Y < oMax.Y && o.Min.Y < rMax.Y
}

// Clamp moves p onto the nearest point inside r.
func (r Rect) Clamp(p Point) Point {
	max := r.Max()
	return Point{
		X: math.Min(math.Max(p.X, r.Min.X), max.X),
		Y: math.Min(math.Max(p.Y, r.Min.Y), max.Y),
	}
}

// Union returns the smallest rectangle covering both r and o.
func (r Rect) Union(o Rect) Rect {
	rMax, oMax := r.Max(), o.Max()
	min := Point{X: math.Min(r.Min.X, o.Min.X), Y: math.Min(r.Min.Y, o.Min.Y)}
	max := Point{X: math.Max(rMax.X, oMax.X), Y: math.Max(rMax.Y, oMax.Y)}
	return Rect{Min: min, Size: Size{W: max.X - min.X, H: max.Y - min.Y}}
}
