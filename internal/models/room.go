package models

// Point is one polygon vertex.
type Point struct {
	X float64 `json:"x" msgpack:"x"`
	Y float64 `json:"y" msgpack:"y"`
}

// RoomType records how a room's polygon was obtained. The empty value means
// no explicit type was ever set; it reports as RoomTypeUnknown but is not
// written out as a tag.
type RoomType string

const (
	RoomTypeUnset   RoomType = ""
	RoomTypePolygon RoomType = "P"
	RoomTypeLine    RoomType = "L"
	RoomTypeUnknown RoomType = "?"
)

// ParseRoomType maps a record tag to its type.
func ParseRoomType(tag string) (RoomType, bool) {
	switch RoomType(tag) {
	case RoomTypePolygon, RoomTypeLine, RoomTypeUnknown:
		return RoomType(tag), true
	}
	return RoomTypeUnset, false
}

// Effective returns the type callers should act on.
func (t RoomType) Effective() RoomType {
	if t == RoomTypeUnset {
		return RoomTypeUnknown
	}
	return t
}

// IsSet reports whether the type was given explicitly.
func (t RoomType) IsSet() bool { return t != RoomTypeUnset }

// Room is a named polygonal area kept next to the entity list.
type Room struct {
	ID      string   `json:"id" msgpack:"id"`
	Polygon []Point  `json:"polygon" msgpack:"polygon"`
	Type    RoomType `json:"type,omitempty" msgpack:"type,omitempty"`
	// CanvasRef relates the room to the editor's on-screen object.
	CanvasRef string `json:"canvasRef,omitempty" msgpack:"canvas_ref,omitempty"`
}

// HasPolygon reports whether the room has geometry yet.
func (r *Room) HasPolygon() bool {
	return len(r.Polygon) > 0
}

// Bounds of the polygon, or the empty sentinel.
func (r *Room) Bounds() Bounds {
	b := EmptyBounds()
	for _, p := range r.Polygon {
		b = b.Enlarge(pointBounds(p.X, p.Y))
	}
	return b
}
