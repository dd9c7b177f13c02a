// handlers_drawings.go - Import session and drawing query handlers
package api

import (
	"bytes"
	"math"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/chainring/backend/internal/index"
	"github.com/chainring/backend/internal/models"
	"github.com/chainring/backend/internal/parser"
	"github.com/chainring/backend/internal/session"
	"github.com/chainring/backend/internal/storage"
	"github.com/labstack/echo/v4"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	defaultEntityPage = 1000
	maxEntityPage     = 10000
)

// DrawingHandlerImpl implements the DrawingHandler interface
type DrawingHandlerImpl struct {
	store     storage.Store
	sessions  SessionManager
	writer    *parser.Writer
	roomLayer string
}

// NewDrawingHandler creates a new drawing handler instance
func NewDrawingHandler(store storage.Store, sessions SessionManager, writer *parser.Writer, roomLayer string) DrawingHandler {
	if writer == nil {
		writer = parser.NewWriter()
	}
	return &DrawingHandlerImpl{
		store:     store,
		sessions:  sessions,
		writer:    writer,
		roomLayer: roomLayer,
	}
}

// HandleStartImport starts importing an uploaded file
func (h *DrawingHandlerImpl) HandleStartImport(c echo.Context) error {
	var req startImportRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid request body", err)
	}
	if req.FileID == "" {
		return NewValidationError("fileId")
	}

	info, err := h.store.Get(req.FileID)
	if err != nil {
		return NewNotFoundError("file", req.FileID)
	}
	path, err := h.store.GetFilePath(req.FileID)
	if err != nil {
		return NewNotFoundError("file", req.FileID)
	}

	sess, err := h.sessions.StartSession(session.ImportRequest{
		FileID:   info.ID,
		FileName: info.Name,
		Path:     path,
		Parser:   req.Parser,
		Fresh:    req.Fresh,
	})
	if err != nil {
		return NewInternalError("failed to start import", err)
	}
	h.store.SetStatus(info.ID, storage.StatusImporting, "")

	return c.JSON(http.StatusAccepted, sess)
}

// HandleImportStatus returns the state of an import session. Finished
// sessions also update the status of their source file.
func (h *DrawingHandlerImpl) HandleImportStatus(c echo.Context) error {
	id := c.Param("id")
	sess, ok := h.sessions.GetSession(id)
	if !ok {
		return NewNotFoundError("drawing", id)
	}
	h.sessions.TouchSession(id)

	if info, err := h.store.Get(sess.FileID); err == nil && info.Status == storage.StatusImporting {
		switch sess.Status {
		case models.SessionStatusComplete:
			format := sess.ParserName
			if format == session.SnapshotParser {
				format = ""
			}
			h.store.SetStatus(sess.FileID, storage.StatusImported, format)
		case models.SessionStatusError:
			h.store.SetStatus(sess.FileID, storage.StatusError, "")
		}
	}

	return c.JSON(http.StatusOK, sess)
}

// HandleKeepAlive extends the lifetime of a drawing being edited
func (h *DrawingHandlerImpl) HandleKeepAlive(c echo.Context) error {
	id := c.Param("id")
	if !h.sessions.TouchSession(id) {
		return NewNotFoundError("drawing", id)
	}
	return c.NoContent(http.StatusNoContent)
}

// HandleCloseDrawing discards a drawing and its unsaved edits
func (h *DrawingHandlerImpl) HandleCloseDrawing(c echo.Context) error {
	id := c.Param("id")
	if !h.sessions.CloseSession(id) {
		return NewNotFoundError("drawing", id)
	}
	return c.NoContent(http.StatusNoContent)
}

// HandleGetDrawing returns the drawing summary
func (h *DrawingHandlerImpl) HandleGetDrawing(c echo.Context) error {
	id := c.Param("id")
	var resp drawingResponse
	err := h.sessions.View(id, func(d *models.Drawing) error {
		resp.Stats = d.Stats()
		resp.RoomPrefix = d.RoomPrefix()
		resp.RoomOutlines = d.RoomOutlines(h.roomLayer)
		return nil
	})
	if err != nil {
		return fromDomainError(err, "drawing", id)
	}
	resp.RoomLayer = h.roomLayer
	return c.JSON(http.StatusOK, resp)
}

func (h *DrawingHandlerImpl) entityPage(c echo.Context) (entitiesResponse, error) {
	id := c.Param("id")
	offset, err := intQuery(c, "offset", 0)
	if err != nil || offset < 0 {
		return entitiesResponse{}, NewValidationError("offset")
	}
	limit, err := intQuery(c, "limit", defaultEntityPage)
	if err != nil || limit < 1 {
		return entitiesResponse{}, NewValidationError("limit")
	}
	limit = min(limit, maxEntityPage)

	resp := entitiesResponse{Offset: offset, Limit: limit}
	err = h.sessions.View(id, func(d *models.Drawing) error {
		resp.Total = len(d.Entities)
		start := min(offset, resp.Total)
		end := min(start+limit, resp.Total)
		resp.Entities = models.ToDTOs(d.Entities[start:end])
		return nil
	})
	if err != nil {
		return entitiesResponse{}, fromDomainError(err, "drawing", id)
	}
	return resp, nil
}

// HandleGetEntities returns a page of entities as JSON
func (h *DrawingHandlerImpl) HandleGetEntities(c echo.Context) error {
	resp, err := h.entityPage(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

// HandleGetEntitiesMsgpack returns a page of entities in MessagePack format
func (h *DrawingHandlerImpl) HandleGetEntitiesMsgpack(c echo.Context) error {
	resp, err := h.entityPage(c)
	if err != nil {
		return err
	}
	data, err := msgpack.Marshal(resp)
	if err != nil {
		return NewInternalError("failed to encode msgpack", err)
	}
	return c.Blob(http.StatusOK, "application/msgpack", data)
}

// HandleQueryEntities selects entities by window, layer and kind
func (h *DrawingHandlerImpl) HandleQueryEntities(c echo.Context) error {
	id := c.Param("id")
	q, err := buildQuery(c)
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	idx, err := h.sessions.Query(ctx, id, q)
	if err != nil {
		return fromDomainError(err, "query", id)
	}

	resp := queryResponse{Indexes: idx}
	err = h.sessions.View(id, func(d *models.Drawing) error {
		resp.Entities = make([]models.EntityDTO, 0, len(idx))
		for _, i := range idx {
			e, err := d.Entity(i)
			if err != nil {
				// The drawing changed after the query; report what is left.
				continue
			}
			resp.Entities = append(resp.Entities, models.ToDTO(e))
		}
		return nil
	})
	if err != nil {
		return fromDomainError(err, "drawing", id)
	}
	return c.JSON(http.StatusOK, resp)
}

// HandleGetLayers returns per-layer entity counts and extents
func (h *DrawingHandlerImpl) HandleGetLayers(c echo.Context) error {
	id := c.Param("id")
	layers, err := h.sessions.Layers(c.Request().Context(), id)
	if err != nil {
		return fromDomainError(err, "layers", id)
	}
	if layers == nil {
		layers = []index.LayerStat{}
	}
	return c.JSON(http.StatusOK, layers)
}

// HandleRescale translates then scales every entity
func (h *DrawingHandlerImpl) HandleRescale(c echo.Context) error {
	id := c.Param("id")
	var req rescaleRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid request body", err)
	}
	scale := 1.0
	if req.Scale != nil {
		scale = *req.Scale
	}
	for field, v := range map[string]float64{"xoffset": req.XOffset, "yoffset": req.YOffset, "scale": scale} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return NewValidationError(field)
		}
	}

	var bounds models.Bounds
	err := h.sessions.Update(id, func(d *models.Drawing) error {
		d.Rescale(req.XOffset, req.YOffset, scale)
		bounds = d.Bounds()
		return nil
	})
	if err != nil {
		return fromDomainError(err, "drawing", id)
	}
	resp := map[string]any{"status": "ok"}
	if !bounds.IsEmpty() {
		resp["bounds"] = bounds
	}
	return c.JSON(http.StatusOK, resp)
}

// HandleExport writes the drawing in the internal text format
func (h *DrawingHandlerImpl) HandleExport(c echo.Context) error {
	id := c.Param("id")
	var buf bytes.Buffer
	var name string
	err := h.sessions.View(id, func(d *models.Drawing) error {
		name = exportName(d.Filename, id, parser.DrawingExt)
		return h.writer.WriteDrawing(&buf, d)
	})
	if err != nil {
		return fromDomainError(err, "export", id)
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+name+`"`)
	return c.Blob(http.StatusOK, "text/plain; charset=utf-8", buf.Bytes())
}

// HandleSave stores the drawing so reopening its file restores the rooms
func (h *DrawingHandlerImpl) HandleSave(c echo.Context) error {
	id := c.Param("id")
	if err := h.sessions.Save(id); err != nil {
		return fromDomainError(err, "save", id)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "saved"})
}

// Request/Response types

type startImportRequest struct {
	FileID string `json:"fileId"`
	Parser string `json:"parser,omitempty"`
	Fresh  bool   `json:"fresh,omitempty"`
}

type drawingResponse struct {
	Stats        models.DrawingStats `json:"stats"`
	RoomPrefix   string              `json:"roomPrefix"`
	RoomLayer    string              `json:"roomLayer,omitempty"`
	RoomOutlines []int               `json:"roomOutlines"`
}

type entitiesResponse struct {
	Entities []models.EntityDTO `json:"entities" msgpack:"entities"`
	Offset   int                `json:"offset" msgpack:"offset"`
	Limit    int                `json:"limit" msgpack:"limit"`
	Total    int                `json:"total" msgpack:"total"`
}

type queryResponse struct {
	Indexes  []int              `json:"indexes"`
	Entities []models.EntityDTO `json:"entities"`
}

type rescaleRequest struct {
	XOffset float64  `json:"xoffset"`
	YOffset float64  `json:"yoffset"`
	Scale   *float64 `json:"scale"`
}

// Helper functions

func intQuery(c echo.Context, name string, def int) (int, error) {
	v := c.QueryParam(name)
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}

// buildQuery reads the window (all four corners or none), layer, kind and
// limit parameters.
func buildQuery(c echo.Context) (index.Query, error) {
	var q index.Query
	names := []string{"xmin", "ymin", "xmax", "ymax"}
	var corners [4]float64
	given := 0
	for i, name := range names {
		v := c.QueryParam(name)
		if v == "" {
			continue
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || math.IsNaN(f) {
			return q, NewValidationError(name)
		}
		corners[i] = f
		given++
	}
	switch given {
	case 0:
	case len(names):
		w := models.Bounds{XMin: corners[0], YMin: corners[1], XMax: corners[2], YMax: corners[3]}
		if w.XMin > w.XMax || w.YMin > w.YMax {
			return q, NewBadRequestError("window minimum exceeds maximum", nil)
		}
		q.Window = &w
	default:
		return q, NewBadRequestError("window needs xmin, ymin, xmax and ymax", nil)
	}

	q.Layer = c.QueryParam("layer")
	if v := c.QueryParam("kind"); v != "" {
		kind, ok := models.ParseEntityKind(v)
		if !ok {
			return q, NewValidationError("kind")
		}
		q.Kind = kind
	}
	limit, err := intQuery(c, "limit", 0)
	if err != nil || limit < 0 {
		return q, NewValidationError("limit")
	}
	q.Limit = limit
	return q, nil
}

func exportName(filename, id, ext string) string {
	base := filename
	if base == "" {
		base = id
	}
	return strings.TrimSuffix(base, filepath.Ext(base)) + ext
}
