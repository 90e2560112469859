package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vrwarp/versicle/internal/services"
)

type DevicesController struct {
	library *services.LibraryService
}

func NewDevicesController(library *services.LibraryService) *DevicesController {
	return &DevicesController{library: library}
}

func (controller *DevicesController) GetDevices(c *gin.Context) {
	devices, err := controller.library.Devices()
	if err != nil {
		respondError(c, err)
		return
	}
	c.IndentedJSON(http.StatusOK, gin.H{"devices": devices, "count": len(devices)})
}
