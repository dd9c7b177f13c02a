// handlers_rooms.go - Room editing handlers
package api

import (
	"bytes"
	"io"
	"math"
	"net/http"
	"strconv"

	"github.com/chainring/backend/internal/models"
	"github.com/chainring/backend/internal/parser"
	"github.com/labstack/echo/v4"
)

// maxRoomImport bounds the size of an imported room list.
const maxRoomImport = 32 << 20

// RoomHandlerImpl implements the RoomHandler interface
type RoomHandlerImpl struct {
	sessions SessionManager
	writer   *parser.Writer
}

// NewRoomHandler creates a new room handler instance
func NewRoomHandler(sessions SessionManager, writer *parser.Writer) RoomHandler {
	if writer == nil {
		writer = parser.NewWriter()
	}
	return &RoomHandlerImpl{
		sessions: sessions,
		writer:   writer,
	}
}

// HandleListRooms returns every room of a drawing
func (h *RoomHandlerImpl) HandleListRooms(c echo.Context) error {
	id := c.Param("id")
	var rooms []roomView
	err := h.sessions.View(id, func(d *models.Drawing) error {
		for _, r := range d.Rooms() {
			rooms = append(rooms, newRoomView(r))
		}
		return nil
	})
	if err != nil {
		return fromDomainError(err, "drawing", id)
	}
	if rooms == nil {
		rooms = []roomView{}
	}
	return c.JSON(http.StatusOK, map[string]any{
		"rooms": rooms,
		"count": len(rooms),
	})
}

// HandleAddRoom creates a room with the next free id
func (h *RoomHandlerImpl) HandleAddRoom(c echo.Context) error {
	id := c.Param("id")
	var req roomRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid request body", err)
	}
	if err := validatePolygon(req.Polygon); err != nil {
		return err
	}

	var room models.Room
	err := h.sessions.Update(id, func(d *models.Drawing) error {
		roomID := d.AddRoom(req.CanvasRef, req.Polygon)
		room, _ = d.FindRoomByID(roomID)
		return nil
	})
	if err != nil {
		return fromDomainError(err, "drawing", id)
	}
	return c.JSON(http.StatusCreated, newRoomView(room))
}

// HandleGetRoom returns one room by id
func (h *RoomHandlerImpl) HandleGetRoom(c echo.Context) error {
	return h.lookup(c, c.Param("roomId"), func(d *models.Drawing, key string) (models.Room, bool) {
		return d.FindRoomByID(key)
	})
}

// HandleFindRoomByRef returns the room linked to an editor reference
func (h *RoomHandlerImpl) HandleFindRoomByRef(c echo.Context) error {
	return h.lookup(c, c.Param("ref"), func(d *models.Drawing, key string) (models.Room, bool) {
		return d.FindRoomByCanvasRef(key)
	})
}

func (h *RoomHandlerImpl) lookup(c echo.Context, key string, find func(*models.Drawing, string) (models.Room, bool)) error {
	id := c.Param("id")
	var room models.Room
	var found bool
	err := h.sessions.View(id, func(d *models.Drawing) error {
		room, found = find(d, key)
		return nil
	})
	if err != nil {
		return fromDomainError(err, "drawing", id)
	}
	if !found {
		return NewNotFoundError("room", key)
	}
	return c.JSON(http.StatusOK, newRoomView(room))
}

// HandleUpdateRoom replaces the polygon, reference and type of a room. A
// polygon without an explicit type is taken as drawn by hand.
func (h *RoomHandlerImpl) HandleUpdateRoom(c echo.Context) error {
	id, roomID := c.Param("id"), c.Param("roomId")
	var req roomRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid request body", err)
	}
	if err := validatePolygon(req.Polygon); err != nil {
		return err
	}

	typ := models.RoomTypeUnset
	switch {
	case req.Type != "":
		t, ok := models.ParseRoomType(req.Type)
		if !ok {
			return NewValidationError("type")
		}
		typ = t
	case len(req.Polygon) > 0:
		typ = models.RoomTypePolygon
	}

	var room models.Room
	err := h.sessions.Update(id, func(d *models.Drawing) error {
		if err := d.UpdateRoomPolygon(roomID, req.CanvasRef, req.Polygon, typ); err != nil {
			return err
		}
		room, _ = d.FindRoomByID(roomID)
		return nil
	})
	if err != nil {
		return fromDomainError(err, "room", roomID)
	}
	return c.JSON(http.StatusOK, newRoomView(room))
}

// HandleDeleteRoom removes a room
func (h *RoomHandlerImpl) HandleDeleteRoom(c echo.Context) error {
	id, roomID := c.Param("id"), c.Param("roomId")
	err := h.sessions.Update(id, func(d *models.Drawing) error {
		return d.DeleteRoom(roomID)
	})
	if err != nil {
		return fromDomainError(err, "room", roomID)
	}
	return c.NoContent(http.StatusNoContent)
}

// HandleDeleteRoomPolygon clears a room's geometry but keeps the room
func (h *RoomHandlerImpl) HandleDeleteRoomPolygon(c echo.Context) error {
	id, roomID := c.Param("id"), c.Param("roomId")
	err := h.sessions.Update(id, func(d *models.Drawing) error {
		return d.DeleteRoomPolygon(roomID)
	})
	if err != nil {
		return fromDomainError(err, "room", roomID)
	}
	return c.NoContent(http.StatusNoContent)
}

// HandleRoomFromPolyline creates a room from the polyline at an entity index
func (h *RoomHandlerImpl) HandleRoomFromPolyline(c echo.Context) error {
	id := c.Param("id")
	i, err := strconv.Atoi(c.Param("index"))
	if err != nil || i < 0 {
		return NewValidationError("index")
	}
	var req roomRequest
	if c.Request().ContentLength > 0 {
		if err := c.Bind(&req); err != nil {
			return NewBadRequestError("invalid request body", err)
		}
	}

	var room models.Room
	err = h.sessions.Update(id, func(d *models.Drawing) error {
		roomID, err := d.AddRoomFromPolyline(i, req.CanvasRef)
		if err != nil {
			return err
		}
		room, _ = d.FindRoomByID(roomID)
		return nil
	})
	if err != nil {
		return fromDomainError(err, "entity", c.Param("index"))
	}
	return c.JSON(http.StatusCreated, newRoomView(room))
}

// HandleExportRooms writes the room list in the room format
func (h *RoomHandlerImpl) HandleExportRooms(c echo.Context) error {
	id := c.Param("id")
	var buf bytes.Buffer
	var name string
	err := h.sessions.View(id, func(d *models.Drawing) error {
		name = exportName(d.Filename, id, parser.RoomsExt)
		return h.writer.WriteRooms(&buf, d.Rooms())
	})
	if err != nil {
		return fromDomainError(err, "export", id)
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+name+`"`)
	return c.Blob(http.StatusOK, "text/plain; charset=utf-8", buf.Bytes())
}

// HandleImportRooms replaces the room list with one read from the request
// body. format selects the room format (default) or a roster.
func (h *RoomHandlerImpl) HandleImportRooms(c echo.Context) error {
	id := c.Param("id")

	var read func(io.Reader) ([]*models.Room, map[string]string, error)
	switch c.QueryParam("format") {
	case "", "rooms":
		read = parser.ReadRooms
	case "roster":
		read = parser.ReadRoster
	default:
		return NewValidationError("format")
	}

	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxRoomImport))
	if err != nil {
		return NewBadRequestError("failed to read body", err)
	}
	rooms, _, err := read(bytes.NewReader(body))
	if err != nil {
		return fromDomainError(err, "import", id)
	}

	err = h.sessions.Update(id, func(d *models.Drawing) error {
		d.SetRooms(rooms)
		return nil
	})
	if err != nil {
		return fromDomainError(err, "drawing", id)
	}
	return c.JSON(http.StatusOK, map[string]int{"imported": len(rooms)})
}

// Request/Response types

type roomRequest struct {
	CanvasRef string         `json:"canvasRef"`
	Polygon   []models.Point `json:"polygon"`
	Type      string         `json:"type,omitempty"`
}

// roomView is a room as the editor sees it: the effective type is always
// reported.
type roomView struct {
	ID         string          `json:"id"`
	Polygon    []models.Point  `json:"polygon"`
	Type       models.RoomType `json:"type"`
	TypeSet    bool            `json:"typeSet"`
	CanvasRef  string          `json:"canvasRef,omitempty"`
	HasPolygon bool            `json:"hasPolygon"`
	Bounds     *models.Bounds  `json:"bounds,omitempty"`
}

func newRoomView(r models.Room) roomView {
	v := roomView{
		ID:         r.ID,
		Polygon:    r.Polygon,
		Type:       r.Type.Effective(),
		TypeSet:    r.Type.IsSet(),
		CanvasRef:  r.CanvasRef,
		HasPolygon: r.HasPolygon(),
	}
	if v.Polygon == nil {
		v.Polygon = []models.Point{}
	}
	if b := r.Bounds(); !b.IsEmpty() {
		v.Bounds = &b
	}
	return v
}

// validatePolygon accepts an empty polygon (no geometry yet) or at least
// three finite vertices.
func validatePolygon(pts []models.Point) error {
	if len(pts) != 0 && len(pts) < 3 {
		return NewBadRequestError("a polygon needs at least 3 vertices", nil)
	}
	for _, p := range pts {
		if math.IsNaN(p.X) || math.IsNaN(p.Y) || math.IsInf(p.X, 0) || math.IsInf(p.Y, 0) {
			return NewValidationError("polygon")
		}
	}
	return nil
}
