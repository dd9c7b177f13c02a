// routes.go - Route registration helpers
package api

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/chainring/backend/internal/parser"
	"github.com/chainring/backend/internal/storage"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// Dependencies holds all handler dependencies
type Dependencies struct {
	Store     storage.Store
	Sessions  SessionManager
	Registry  *parser.Registry
	Writer    *parser.Writer
	RoomLayer string
	Version   string
}

// Handlers holds all handler instances
type Handlers struct {
	Health  HealthHandler
	Files   FileHandler
	Drawing DrawingHandler
	Rooms   RoomHandler
}

// NewHandlers creates all handler instances
func NewHandlers(deps *Dependencies) *Handlers {
	registry := deps.Registry
	if registry == nil {
		registry = parser.NewRegistry()
	}
	return &Handlers{
		Health:  NewHealthHandler(deps.Version, registry.Names(), deps.Sessions),
		Files:   NewFileHandler(deps.Store, deps.Sessions),
		Drawing: NewDrawingHandler(deps.Store, deps.Sessions, deps.Writer, deps.RoomLayer),
		Rooms:   NewRoomHandler(deps.Sessions, deps.Writer),
	}
}

// RegisterRoutes registers all API routes with the Echo instance
func RegisterRoutes(e *echo.Echo, handlers *Handlers, allowDelete bool) {
	apiGroup := e.Group("/api")
	apiGroup.GET("/health", handlers.Health.HandleHealth)

	// Source files
	files := apiGroup.Group("/files")
	files.POST("/upload", handlers.Files.HandleUploadFile)
	files.POST("/upload/base64", handlers.Files.HandleUploadBase64)
	files.GET("/recent", handlers.Files.HandleGetRecentFiles)
	files.GET("/:id", handlers.Files.HandleGetFile)
	files.PUT("/:id", handlers.Files.HandleRenameFile)
	if allowDelete {
		files.DELETE("/:id", handlers.Files.HandleDeleteFile)
	}

	// Drawings (one per import session)
	drawings := apiGroup.Group("/drawings")
	drawings.POST("", handlers.Drawing.HandleStartImport)
	drawings.GET("/:id", handlers.Drawing.HandleGetDrawing)
	drawings.DELETE("/:id", handlers.Drawing.HandleCloseDrawing)
	drawings.GET("/:id/status", handlers.Drawing.HandleImportStatus)
	drawings.POST("/:id/keepalive", handlers.Drawing.HandleKeepAlive)
	drawings.GET("/:id/entities", handlers.Drawing.HandleGetEntities)
	drawings.GET("/:id/entities/msgpack", handlers.Drawing.HandleGetEntitiesMsgpack)
	drawings.GET("/:id/query", handlers.Drawing.HandleQueryEntities)
	drawings.GET("/:id/layers", handlers.Drawing.HandleGetLayers)
	drawings.POST("/:id/rescale", handlers.Drawing.HandleRescale)
	drawings.GET("/:id/export", handlers.Drawing.HandleExport)
	drawings.POST("/:id/save", handlers.Drawing.HandleSave)

	// Rooms
	rooms := drawings.Group("/:id/rooms")
	rooms.GET("", handlers.Rooms.HandleListRooms)
	rooms.POST("", handlers.Rooms.HandleAddRoom)
	rooms.GET("/export", handlers.Rooms.HandleExportRooms)
	rooms.POST("/import", handlers.Rooms.HandleImportRooms)
	rooms.GET("/by-ref/:ref", handlers.Rooms.HandleFindRoomByRef)
	rooms.POST("/from-polyline/:index", handlers.Rooms.HandleRoomFromPolyline)
	rooms.GET("/:roomId", handlers.Rooms.HandleGetRoom)
	rooms.PUT("/:roomId", handlers.Rooms.HandleUpdateRoom)
	rooms.DELETE("/:roomId", handlers.Rooms.HandleDeleteRoom)
	rooms.DELETE("/:roomId/polygon", handlers.Rooms.HandleDeleteRoomPolygon)
}

// MiddlewareOptions select the common middleware.
type MiddlewareOptions struct {
	RequestLogging bool
	AllowOrigins   []string // empty disables CORS
	BodyLimit      string
	Timeout        time.Duration
}

// SetupMiddleware configures the error handler and common middleware
func SetupMiddleware(e *echo.Echo, opts MiddlewareOptions) {
	e.HTTPErrorHandler = ErrorHandler

	logger := slog.Default().With("component", "http")
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		Skipper: func(c echo.Context) bool {
			if !opts.RequestLogging {
				return true
			}
			path := c.Request().URL.Path
			return strings.HasSuffix(path, "/status") || path == "/api/health"
		},
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{"method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency}
			if v.Error != nil {
				logger.Warn("request", append(attrs, "error", v.Error)...)
				return nil
			}
			logger.Info("request", attrs...)
			return nil
		},
	}))

	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize: 1024 * 4,
	}))

	if opts.Timeout > 0 {
		e.Use(middleware.TimeoutWithConfig(middleware.TimeoutConfig{
			Timeout: opts.Timeout,
			Skipper: func(c echo.Context) bool {
				path := c.Request().URL.Path
				return strings.Contains(path, "/upload") || strings.Contains(path, "/import")
			},
			ErrorMessage: "Request timeout - query took too long",
		}))
	}

	if opts.BodyLimit != "" {
		e.Use(middleware.BodyLimit(opts.BodyLimit))
	}

	if len(opts.AllowOrigins) > 0 {
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: opts.AllowOrigins,
			AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
		}))
	}
}
