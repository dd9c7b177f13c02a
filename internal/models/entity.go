package models

import (
	"math"
	"strconv"
	"strings"
)

// EntityKind identifies one of the five drawing primitives.
type EntityKind string

const (
	KindLine     EntityKind = "LINE"
	KindCircle   EntityKind = "CIRCLE"
	KindArc      EntityKind = "ARC"
	KindPolyline EntityKind = "POLYLINE"
	KindText     EntityKind = "TEXT"
)

// EntityKinds lists every kind in record order.
var EntityKinds = []EntityKind{KindLine, KindCircle, KindArc, KindText, KindPolyline}

// RecordTag returns the single-letter command used in the drawing format.
func (k EntityKind) RecordTag() string {
	switch k {
	case KindLine:
		return "L"
	case KindCircle:
		return "C"
	case KindArc:
		return "A"
	case KindPolyline:
		return "P"
	case KindText:
		return "T"
	}
	return ""
}

// ParseEntityKind accepts either the kind name ("LINE") or its record tag ("L").
func ParseEntityKind(s string) (EntityKind, bool) {
	u := strings.ToUpper(strings.TrimSpace(s))
	for _, k := range EntityKinds {
		if u == string(k) || u == k.RecordTag() {
			return k, true
		}
	}
	return "", false
}

// Placeholder written for an absent color or layer.
const NonePlaceholder = "None"

// SquaredEscape is how "²" is written in the drawing format.
const SquaredEscape = "^2^"

// Squared is the superscript-two character.
const Squared = "²"

// Attributes are carried by every entity. A nil Color means the default
// color; an empty Layer means no layer.
type Attributes struct {
	Color *int
	Layer string
}

// Entity is the closed set of drawing primitives: *Line, *Circle, *Arc,
// *Polyline and *Text.
type Entity interface {
	Kind() EntityKind
	Attrs() Attributes
	// Transform translates every coordinate by the offset, then scales it.
	Transform(offsetX, offsetY, scale float64)
	Bounds() Bounds
	// Record renders the entity as one drawing-format line (no newline).
	Record() string
	entity()
}

// Line is a straight segment.
type Line struct {
	Attributes
	X1, Y1, X2, Y2 float64
}

// Circle is a full circle.
type Circle struct {
	Attributes
	X, Y, Radius float64
}

// Arc is a circular arc, angles in degrees, counter-clockwise from Angle1 to Angle2.
type Arc struct {
	Attributes
	X, Y, Radius   float64
	Angle1, Angle2 float64
}

// Polyline keeps index-aligned coordinate slices; point i is (Xs[i], Ys[i]).
type Polyline struct {
	Attributes
	Xs, Ys []float64
}

// Text is a single text label anchored at (X, Y).
type Text struct {
	Attributes
	X, Y    float64
	Content string
}

// NewLine, NewCircle and friends build entities with the given attributes.
func NewLine(x1, y1, x2, y2 float64, attrs Attributes) *Line {
	return &Line{Attributes: attrs, X1: x1, Y1: y1, X2: x2, Y2: y2}
}

func NewCircle(x, y, radius float64, attrs Attributes) *Circle {
	return &Circle{Attributes: attrs, X: x, Y: y, Radius: radius}
}

func NewArc(x, y, radius, angle1, angle2 float64, attrs Attributes) *Arc {
	return &Arc{Attributes: attrs, X: x, Y: y, Radius: radius, Angle1: angle1, Angle2: angle2}
}

// NewPolyline truncates the longer slice so both stay index-aligned.
func NewPolyline(xs, ys []float64, attrs Attributes) *Polyline {
	n := min(len(xs), len(ys))
	return &Polyline{Attributes: attrs, Xs: xs[:n:n], Ys: ys[:n:n]}
}

func NewText(x, y float64, content string, attrs Attributes) *Text {
	return &Text{Attributes: attrs, X: x, Y: y, Content: content}
}

// ColorPtr is a convenience for building Attributes literals.
func ColorPtr(c int) *int { return &c }

func (a Attributes) Attrs() Attributes { return a }

func (a Attributes) colorToken() string {
	if a.Color == nil {
		return NonePlaceholder
	}
	return strconv.Itoa(*a.Color)
}

func (a Attributes) layerToken() string {
	if a.Layer == "" {
		return NonePlaceholder
	}
	return a.Layer
}

func (*Line) Kind() EntityKind     { return KindLine }
func (*Circle) Kind() EntityKind   { return KindCircle }
func (*Arc) Kind() EntityKind      { return KindArc }
func (*Polyline) Kind() EntityKind { return KindPolyline }
func (*Text) Kind() EntityKind     { return KindText }

func (*Line) entity()     {}
func (*Circle) entity()   {}
func (*Arc) entity()      {}
func (*Polyline) entity() {}
func (*Text) entity()     {}

func (l *Line) Transform(offsetX, offsetY, scale float64) {
	l.X1 = (l.X1 + offsetX) * scale
	l.Y1 = (l.Y1 + offsetY) * scale
	l.X2 = (l.X2 + offsetX) * scale
	l.Y2 = (l.Y2 + offsetY) * scale
}

func (c *Circle) Transform(offsetX, offsetY, scale float64) {
	c.X = (c.X + offsetX) * scale
	c.Y = (c.Y + offsetY) * scale
	c.Radius *= scale
}

// Transform leaves the angles untouched.
func (a *Arc) Transform(offsetX, offsetY, scale float64) {
	a.X = (a.X + offsetX) * scale
	a.Y = (a.Y + offsetY) * scale
	a.Radius *= scale
}

func (p *Polyline) Transform(offsetX, offsetY, scale float64) {
	for i := range p.Xs {
		p.Xs[i] = (p.Xs[i] + offsetX) * scale
	}
	for i := range p.Ys {
		p.Ys[i] = (p.Ys[i] + offsetY) * scale
	}
}

func (t *Text) Transform(offsetX, offsetY, scale float64) {
	t.X = (t.X + offsetX) * scale
	t.Y = (t.Y + offsetY) * scale
}

func (l *Line) Bounds() Bounds {
	return Bounds{
		XMin: math.Min(l.X1, l.X2),
		YMin: math.Min(l.Y1, l.Y2),
		XMax: math.Max(l.X1, l.X2),
		YMax: math.Max(l.Y1, l.Y2),
	}
}

func (c *Circle) Bounds() Bounds { return circleBounds(c.X, c.Y, c.Radius) }

// Bounds is the full-circle box, not the swept wedge.
func (a *Arc) Bounds() Bounds { return circleBounds(a.X, a.Y, a.Radius) }

func (p *Polyline) Bounds() Bounds {
	b := EmptyBounds()
	for i := range p.Xs {
		b = b.Enlarge(pointBounds(p.Xs[i], p.Ys[i]))
	}
	return b
}

func (t *Text) Bounds() Bounds { return pointBounds(t.X, t.Y) }

// Len returns the vertex count.
func (p *Polyline) Len() int { return len(p.Xs) }

// Points returns the vertices as (x, y) pairs.
func (p *Polyline) Points() []Point {
	pts := make([]Point, len(p.Xs))
	for i := range p.Xs {
		pts[i] = Point{X: p.Xs[i], Y: p.Ys[i]}
	}
	return pts
}

func (l *Line) Record() string {
	return joinRecord(l.Kind().RecordTag(), l.colorToken(), l.layerToken(),
		FormatFloat(l.X1), FormatFloat(l.Y1), FormatFloat(l.X2), FormatFloat(l.Y2))
}

func (c *Circle) Record() string {
	return joinRecord(c.Kind().RecordTag(), c.colorToken(), c.layerToken(),
		FormatFloat(c.X), FormatFloat(c.Y), FormatFloat(c.Radius))
}

func (a *Arc) Record() string {
	return joinRecord(a.Kind().RecordTag(), a.colorToken(), a.layerToken(),
		FormatFloat(a.X), FormatFloat(a.Y), FormatFloat(a.Radius),
		FormatFloat(a.Angle1), FormatFloat(a.Angle2))
}

// Record writes one vertex count followed by all x values, then all y values.
func (p *Polyline) Record() string {
	parts := make([]string, 0, 4+2*len(p.Xs))
	parts = append(parts, p.Kind().RecordTag(), p.colorToken(), p.layerToken(), strconv.Itoa(len(p.Xs)))
	for _, x := range p.Xs {
		parts = append(parts, FormatFloat(x))
	}
	for _, y := range p.Ys {
		parts = append(parts, FormatFloat(y))
	}
	return strings.Join(parts, " ")
}

func (t *Text) Record() string {
	content := strings.ReplaceAll(t.Content, Squared, SquaredEscape)
	return joinRecord(t.Kind().RecordTag(), t.colorToken(), t.layerToken(),
		FormatFloat(t.X), FormatFloat(t.Y), content)
}

// FormatFloat is the shortest decimal form that parses back to the same
// value. Negative zero is written as 0.
func FormatFloat(v float64) string {
	if v == 0 {
		return "0"
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func joinRecord(parts ...string) string {
	return strings.Join(parts, " ")
}
