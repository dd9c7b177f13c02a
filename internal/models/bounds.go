package models

import "math"

// Bounds is an axis-aligned rectangle. The zero-entity value returned by
// EmptyBounds is inverted (min > max) so that Enlarge acts as identity on it.
type Bounds struct {
	XMin float64 `json:"xmin" msgpack:"xmin"`
	YMin float64 `json:"ymin" msgpack:"ymin"`
	XMax float64 `json:"xmax" msgpack:"xmax"`
	YMax float64 `json:"ymax" msgpack:"ymax"`
}

// EmptyBounds returns the inverted sentinel rectangle.
func EmptyBounds() Bounds {
	return Bounds{
		XMin: math.Inf(1),
		YMin: math.Inf(1),
		XMax: math.Inf(-1),
		YMax: math.Inf(-1),
	}
}

// IsEmpty reports whether b is still the sentinel, i.e. nothing was folded in.
// Check this before using the rectangle as a paint region.
func (b Bounds) IsEmpty() bool {
	return b.XMin > b.XMax || b.YMin > b.YMax
}

// Enlarge returns the componentwise union of b and other.
func (b Bounds) Enlarge(other Bounds) Bounds {
	return Bounds{
		XMin: math.Min(b.XMin, other.XMin),
		YMin: math.Min(b.YMin, other.YMin),
		XMax: math.Max(b.XMax, other.XMax),
		YMax: math.Max(b.YMax, other.YMax),
	}
}

// Transform applies the entity transform rule to the rectangle corners.
func (b Bounds) Transform(offsetX, offsetY, scale float64) Bounds {
	if b.IsEmpty() {
		return b
	}
	x1, y1 := (b.XMin+offsetX)*scale, (b.YMin+offsetY)*scale
	x2, y2 := (b.XMax+offsetX)*scale, (b.YMax+offsetY)*scale
	return Bounds{
		XMin: math.Min(x1, x2),
		YMin: math.Min(y1, y2),
		XMax: math.Max(x1, x2),
		YMax: math.Max(y1, y2),
	}
}

// Width of the rectangle, 0 for the sentinel.
func (b Bounds) Width() float64 {
	if b.IsEmpty() {
		return 0
	}
	return b.XMax - b.XMin
}

// Height of the rectangle, 0 for the sentinel.
func (b Bounds) Height() float64 {
	if b.IsEmpty() {
		return 0
	}
	return b.YMax - b.YMin
}

// Intersects reports whether two non-empty rectangles overlap (edges count).
func (b Bounds) Intersects(other Bounds) bool {
	if b.IsEmpty() || other.IsEmpty() {
		return false
	}
	return b.XMin <= other.XMax && other.XMin <= b.XMax &&
		b.YMin <= other.YMax && other.YMin <= b.YMax
}

// ComputeBounds folds Enlarge over every entity's bounds. An empty slice
// yields EmptyBounds.
func ComputeBounds(entities []Entity) Bounds {
	b := EmptyBounds()
	for _, e := range entities {
		b = b.Enlarge(e.Bounds())
	}
	return b
}

func pointBounds(x, y float64) Bounds {
	return Bounds{XMin: x, YMin: y, XMax: x, YMax: y}
}

func circleBounds(x, y, r float64) Bounds {
	r = math.Abs(r)
	return Bounds{XMin: x - r, YMin: y - r, XMax: x + r, YMax: y + r}
}
