// handlers_health.go - Health check handlers
package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// HealthHandlerImpl reports liveness, the importable formats and how many
// drawings are open.
type HealthHandlerImpl struct {
	version  string
	formats  []string
	sessions SessionManager
	started  time.Time
}

func NewHealthHandler(version string, formats []string, sessions SessionManager) HealthHandler {
	return &HealthHandlerImpl{
		version:  version,
		formats:  formats,
		sessions: sessions,
		started:  time.Now(),
	}
}

type healthResponse struct {
	Status        string   `json:"status"`
	Version       string   `json:"version"`
	Formats       []string `json:"formats"`
	OpenDrawings  int      `json:"openDrawings"`
	UptimeSeconds int64    `json:"uptimeSeconds"`
}

func (h *HealthHandlerImpl) HandleHealth(c echo.Context) error {
	resp := healthResponse{
		Status:        "ok",
		Version:       h.version,
		Formats:       h.formats,
		UptimeSeconds: int64(time.Since(h.started) / time.Second),
	}
	if h.sessions != nil {
		resp.OpenDrawings = h.sessions.Count()
	}
	return c.JSON(http.StatusOK, resp)
}
