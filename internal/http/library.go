package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vrwarp/versicle/internal/bridge"
)

// LibrarySnapshotter serves the derived library view. Satisfied by
// bridge.Bridge.
type LibrarySnapshotter interface {
	Snapshot() []bridge.LibraryRow
}

type LibraryController struct {
	snapshotter LibrarySnapshotter
}

func NewLibraryController(snapshotter LibrarySnapshotter) *LibraryController {
	return &LibraryController{snapshotter: snapshotter}
}

func (controller *LibraryController) GetLibrary(c *gin.Context) {
	rows := controller.snapshotter.Snapshot()
	if rows == nil {
		rows = []bridge.LibraryRow{}
	}
	c.IndentedJSON(http.StatusOK, gin.H{"books": rows, "count": len(rows)})
}
