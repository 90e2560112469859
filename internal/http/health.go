package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vrwarp/versicle/internal/database"
)

type HealthResponse struct {
	Status  string            `json:"status"`
	Time    string            `json:"time"`
	Version string            `json:"version,omitempty"`
	Device  string            `json:"device,omitempty"`
	Checks  map[string]string `json:"checks"`
}

// HealthController reports liveness of the store behind the library. A
// failing ping usually means the SQLite file went away under a running
// process.
type HealthController struct {
	db       *database.Database
	version  string
	deviceID string
}

func NewHealthController(db *database.Database, version, deviceID string) *HealthController {
	return &HealthController{
		db:       db,
		version:  version,
		deviceID: deviceID,
	}
}

func (h *HealthController) Status(c *gin.Context) {
	checks := make(map[string]string)
	status := "healthy"

	if h.db != nil {
		sqlDB, err := h.db.DB.DB()
		if err == nil {
			err = sqlDB.Ping()
		}
		if err != nil {
			checks["store"] = "error: " + err.Error()
			status = "unhealthy"
		} else {
			checks["store"] = "ok"
		}
	} else {
		checks["store"] = "not configured"
	}

	health := HealthResponse{
		Status:  status,
		Time:    time.Now().UTC().Format(time.RFC3339),
		Version: h.version,
		Device:  h.deviceID,
		Checks:  checks,
	}

	statusCode := http.StatusOK
	if status != "healthy" {
		statusCode = http.StatusServiceUnavailable
	}

	c.IndentedJSON(statusCode, health)
}
