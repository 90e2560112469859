package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vrwarp/versicle/internal/coalescer"
	"github.com/vrwarp/versicle/internal/entities"
	"github.com/vrwarp/versicle/internal/services"
)

// ProgressController handles position reports and read-range records.
// Position writes go through the coalescer so the rapid updates readers
// and the speech engine emit collapse into one store write per window.
type ProgressController struct {
	library   *services.LibraryService
	coalescer *coalescer.Coalescer
	deviceID  string
}

func NewProgressController(library *services.LibraryService, co *coalescer.Coalescer, deviceID string) *ProgressController {
	return &ProgressController{
		library:   library,
		coalescer: co,
		deviceID:  deviceID,
	}
}

type positionRequest struct {
	Percentage   float64 `json:"percentage"`
	Location     string  `json:"location"`
	QueueIndex   int     `json:"queue_index"`
	SectionIndex int     `json:"section_index"`
	Timestamp    int64   `json:"timestamp"`
}

// PutPosition buffers a reading position report. The playback endpoint
// shares this handler: a TTS position report carries the same shape and
// follows the same coalescing contract.
func (controller *ProgressController) PutPosition(c *gin.Context) {
	bookID := c.Param("id")

	var req positionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.IndentedJSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
		return
	}

	progress := entities.DeviceProgress{
		BookID:       bookID,
		DeviceID:     controller.deviceID,
		Percentage:   req.Percentage,
		Location:     req.Location,
		QueueIndex:   req.QueueIndex,
		SectionIndex: req.SectionIndex,
		LastRead:     req.Timestamp,
	}

	if err := controller.coalescer.Put(entities.ProgressKey(bookID, controller.deviceID), progress); err != nil {
		respondError(c, err)
		return
	}
	c.IndentedJSON(http.StatusAccepted, gin.H{"buffered": true})
}

type rangeRequest struct {
	Start  string `json:"start"`
	End    string `json:"end"`
	Source string `json:"source"`
	Label  string `json:"label"`
}

// PutRange records a completed read range into the book's history.
func (controller *ProgressController) PutRange(c *gin.Context) {
	bookID := c.Param("id")

	var req rangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.IndentedJSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
		return
	}

	source := entities.SessionSource(req.Source)
	if source != entities.SessionSourceReading && source != entities.SessionSourcePlayback {
		source = entities.SessionSourceReading
	}

	err := controller.library.RecordRange(bookID, entities.ReadRange{Start: req.Start, End: req.End}, source, req.Label)
	if err != nil {
		respondError(c, err)
		return
	}

	entry, err := controller.library.History(bookID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.IndentedJSON(http.StatusOK, entry)
}
