// interfaces.go - Handler interface definitions for clean separation of concerns
package api

import (
	"context"

	"github.com/chainring/backend/internal/index"
	"github.com/chainring/backend/internal/models"
	"github.com/chainring/backend/internal/session"
	"github.com/labstack/echo/v4"
)

// FileHandler handles uploaded source files
type FileHandler interface {
	HandleUploadFile(c echo.Context) error
	HandleUploadBase64(c echo.Context) error
	HandleGetRecentFiles(c echo.Context) error
	HandleGetFile(c echo.Context) error
	HandleDeleteFile(c echo.Context) error
	HandleRenameFile(c echo.Context) error
}

// DrawingHandler handles import sessions and drawing queries
type DrawingHandler interface {
	HandleStartImport(c echo.Context) error
	HandleImportStatus(c echo.Context) error
	HandleKeepAlive(c echo.Context) error
	HandleGetDrawing(c echo.Context) error
	HandleGetEntities(c echo.Context) error
	HandleGetEntitiesMsgpack(c echo.Context) error
	HandleQueryEntities(c echo.Context) error
	HandleGetLayers(c echo.Context) error
	HandleRescale(c echo.Context) error
	HandleExport(c echo.Context) error
	HandleSave(c echo.Context) error
	HandleCloseDrawing(c echo.Context) error
}

// RoomHandler handles room editing on an imported drawing
type RoomHandler interface {
	HandleListRooms(c echo.Context) error
	HandleAddRoom(c echo.Context) error
	HandleGetRoom(c echo.Context) error
	HandleUpdateRoom(c echo.Context) error
	HandleDeleteRoom(c echo.Context) error
	HandleDeleteRoomPolygon(c echo.Context) error
	HandleFindRoomByRef(c echo.Context) error
	HandleRoomFromPolyline(c echo.Context) error
	HandleExportRooms(c echo.Context) error
	HandleImportRooms(c echo.Context) error
}

// HealthHandler handles health check operations
type HealthHandler interface {
	HandleHealth(c echo.Context) error
}

// SessionManager defines the interface for session management
// This allows mocking in tests
type SessionManager interface {
	StartSession(req session.ImportRequest) (*models.ImportSession, error)
	GetSession(id string) (*models.ImportSession, bool)
	TouchSession(id string) bool
	View(id string, fn func(d *models.Drawing) error) error
	Update(id string, fn func(d *models.Drawing) error) error
	Query(ctx context.Context, id string, q index.Query) ([]int, error)
	Layers(ctx context.Context, id string) ([]index.LayerStat, error)
	Save(id string) error
	CloseSession(id string) bool
	CloseFile(fileID string)
	Count() int
}

var _ SessionManager = (*session.Manager)(nil)
