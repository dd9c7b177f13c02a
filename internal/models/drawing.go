package models

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
)

// DefaultRoomIDPrefix is prepended to the room counter for new room ids.
const DefaultRoomIDPrefix = "SAP1000"

var (
	ErrRoomNotFound   = errors.New("room not found")
	ErrEntityNotFound = errors.New("entity not found")
	ErrNotPolyline    = errors.New("entity is not a polyline")
)

// Drawing ties the entity list, per-kind statistics, rooms and metadata
// together. A Drawing is not safe for concurrent use; callers sharing one
// across goroutines must serialize access.
type Drawing struct {
	ID       string
	Filename string
	Entities []Entity
	Counts   map[EntityKind]int
	// Lines is the number of source units read: pairs for interchange
	// input, physical lines for the drawing format.
	Lines    int
	Metadata map[string]string

	rooms       []*Room
	roomCounter int
	roomPrefix  string
}

// NewDrawing returns an empty drawing with the room counter at 1.
func NewDrawing() *Drawing {
	counts := make(map[EntityKind]int, len(EntityKinds))
	for _, k := range EntityKinds {
		counts[k] = 0
	}
	return &Drawing{
		Counts:      counts,
		Metadata:    make(map[string]string),
		roomCounter: 1,
		roomPrefix:  DefaultRoomIDPrefix,
	}
}

// AddEntity appends e and bumps its kind counter.
func (d *Drawing) AddEntity(e Entity) {
	d.Entities = append(d.Entities, e)
	d.Counts[e.Kind()]++
}

// Entity returns the entity at index i.
func (d *Drawing) Entity(i int) (Entity, error) {
	if i < 0 || i >= len(d.Entities) {
		return nil, fmt.Errorf("%w: index %d", ErrEntityNotFound, i)
	}
	return d.Entities[i], nil
}

// Rescale transforms every entity. Rooms are editor coordinates and are
// left alone.
func (d *Drawing) Rescale(offsetX, offsetY, scale float64) {
	for _, e := range d.Entities {
		e.Transform(offsetX, offsetY, scale)
	}
}

// Bounds of all entities, or the empty sentinel for an empty drawing.
func (d *Drawing) Bounds() Bounds {
	return ComputeBounds(d.Entities)
}

// SetRoomPrefix changes the prefix used by AddRoom.
func (d *Drawing) SetRoomPrefix(prefix string) {
	d.roomPrefix = prefix
}

// RoomPrefix returns the prefix used by AddRoom.
func (d *Drawing) RoomPrefix() string {
	return d.roomPrefix
}

// AdvanceRoomCounter moves the counter to n if that is further along.
func (d *Drawing) AdvanceRoomCounter(n int) {
	d.roomCounter = max(d.roomCounter, n)
}

// RoomCounter is the numeric suffix the next AddRoom will try.
func (d *Drawing) RoomCounter() int {
	return d.roomCounter
}

// SetRooms replaces the room list and seeds the counter to one more than the
// number of rooms, never moving it backwards.
func (d *Drawing) SetRooms(rooms []*Room) {
	d.rooms = rooms
	d.roomCounter = max(d.roomCounter, len(rooms)+1)
}

// Rooms returns copies of all rooms in order.
func (d *Drawing) Rooms() []Room {
	out := make([]Room, len(d.rooms))
	for i, r := range d.rooms {
		out[i] = copyRoom(r)
	}
	return out
}

// RoomCount returns the number of rooms.
func (d *Drawing) RoomCount() int {
	return len(d.rooms)
}

// AddRoom creates a room with a fresh id. Counter values whose id is already
// taken (e.g. by an imported room) are skipped, and no value is ever issued
// twice.
func (d *Drawing) AddRoom(canvasRef string, polygon []Point) string {
	id := d.nextRoomID()
	d.rooms = append(d.rooms, &Room{
		ID:        id,
		Polygon:   slices.Clone(polygon),
		CanvasRef: canvasRef,
	})
	return id
}

func (d *Drawing) nextRoomID() string {
	for {
		id := d.roomPrefix + strconv.Itoa(d.roomCounter)
		d.roomCounter++
		if d.findRoom(func(r *Room) bool { return r.ID == id }) == nil {
			return id
		}
	}
}

// AddRoomFromPolyline creates a line-derived room from the vertices of the
// polyline at entity index i.
func (d *Drawing) AddRoomFromPolyline(i int, canvasRef string) (string, error) {
	e, err := d.Entity(i)
	if err != nil {
		return "", err
	}
	p, ok := e.(*Polyline)
	if !ok {
		return "", fmt.Errorf("%w: index %d is %s", ErrNotPolyline, i, e.Kind())
	}
	id := d.AddRoom(canvasRef, p.Points())
	d.findRoom(func(r *Room) bool { return r.ID == id }).Type = RoomTypeLine
	return id, nil
}

// UpdateRoomPolygon sets the polygon, canvas reference and type of a room.
func (d *Drawing) UpdateRoomPolygon(roomID, canvasRef string, polygon []Point, typ RoomType) error {
	r := d.findRoom(func(r *Room) bool { return r.ID == roomID })
	if r == nil {
		return fmt.Errorf("%w: %s", ErrRoomNotFound, roomID)
	}
	r.CanvasRef = canvasRef
	r.Polygon = slices.Clone(polygon)
	r.Type = typ
	return nil
}

// FindRoomByID looks a room up by its id.
func (d *Drawing) FindRoomByID(roomID string) (Room, bool) {
	return d.lookup(func(r *Room) bool { return r.ID == roomID })
}

// FindRoomByCanvasRef looks a room up by the editor reference. An empty
// reference never matches.
func (d *Drawing) FindRoomByCanvasRef(ref string) (Room, bool) {
	if ref == "" {
		return Room{}, false
	}
	return d.lookup(func(r *Room) bool { return r.CanvasRef == ref })
}

// DeleteRoom removes the room. The counter is not rewound.
func (d *Drawing) DeleteRoom(roomID string) error {
	i := slices.IndexFunc(d.rooms, func(r *Room) bool { return r.ID == roomID })
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrRoomNotFound, roomID)
	}
	d.rooms = slices.Delete(d.rooms, i, i+1)
	return nil
}

// DeleteRoomPolygon clears the geometry and canvas reference but keeps the room.
func (d *Drawing) DeleteRoomPolygon(roomID string) error {
	r := d.findRoom(func(r *Room) bool { return r.ID == roomID })
	if r == nil {
		return fmt.Errorf("%w: %s", ErrRoomNotFound, roomID)
	}
	r.Polygon = nil
	r.CanvasRef = ""
	return nil
}

func (d *Drawing) findRoom(match func(*Room) bool) *Room {
	for _, r := range d.rooms {
		if match(r) {
			return r
		}
	}
	return nil
}

func (d *Drawing) lookup(match func(*Room) bool) (Room, bool) {
	r := d.findRoom(match)
	if r == nil {
		return Room{}, false
	}
	return copyRoom(r), true
}

func copyRoom(r *Room) Room {
	c := *r
	c.Polygon = slices.Clone(r.Polygon)
	return c
}

// DrawingStats summarizes a drawing for listings.
type DrawingStats struct {
	ID       string             `json:"id,omitempty" msgpack:"id,omitempty"`
	Filename string             `json:"filename,omitempty" msgpack:"filename,omitempty"`
	Entities int                `json:"entities" msgpack:"entities"`
	Counts   map[EntityKind]int `json:"counts" msgpack:"counts"`
	Rooms    int                `json:"rooms" msgpack:"rooms"`
	Lines    int                `json:"lines" msgpack:"lines"`
	Bounds   *Bounds            `json:"bounds,omitempty" msgpack:"bounds,omitempty"`
	Metadata map[string]string  `json:"metadata,omitempty" msgpack:"metadata,omitempty"`
}

// Stats returns a summary. Bounds is nil for a drawing without entities.
func (d *Drawing) Stats() DrawingStats {
	s := DrawingStats{
		ID:       d.ID,
		Filename: d.Filename,
		Entities: len(d.Entities),
		Counts:   make(map[EntityKind]int, len(d.Counts)),
		Rooms:    len(d.rooms),
		Lines:    d.Lines,
		Metadata: d.Metadata,
	}
	for k, v := range d.Counts {
		s.Counts[k] = v
	}
	if b := d.Bounds(); !b.IsEmpty() {
		s.Bounds = &b
	}
	return s
}
