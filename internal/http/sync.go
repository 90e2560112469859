package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/vrwarp/versicle/internal/coalescer"
	"github.com/vrwarp/versicle/internal/crdt"
)

// SyncController is the seam a replication channel plugs into: pull the
// local update log, push remote updates for merging. No transport or peer
// discovery lives here.
type SyncController struct {
	doc       *crdt.Document
	coalescer *coalescer.Coalescer
}

func NewSyncController(doc *crdt.Document, co *coalescer.Coalescer) *SyncController {
	return &SyncController{doc: doc, coalescer: co}
}

func (controller *SyncController) GetStatus(c *gin.Context) {
	var pending []string
	if controller.coalescer != nil {
		pending = controller.coalescer.Pending()
	}
	if pending == nil {
		pending = []string{}
	}

	c.IndentedJSON(http.StatusOK, gin.H{
		"actor":    controller.doc.Actor(),
		"clock":    controller.doc.Clock(),
		"last_seq": controller.doc.LastSeq(),
		"pending":  pending,
	})
}

// GetUpdates returns updates with seq strictly greater than ?since.
func (controller *SyncController) GetUpdates(c *gin.Context) {
	since := uint64(0)
	if raw := c.Query("since"); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			c.IndentedJSON(http.StatusBadRequest, gin.H{"error": "since must be a non-negative integer"})
			return
		}
		since = parsed
	}

	updates, err := controller.doc.UpdatesSince(since)
	if err != nil {
		respondError(c, err)
		return
	}
	if updates == nil {
		updates = []crdt.SeqUpdate{}
	}
	c.IndentedJSON(http.StatusOK, gin.H{
		"updates":  updates,
		"last_seq": controller.doc.LastSeq(),
	})
}

type applyUpdatesRequest struct {
	Updates []crdt.Update `json:"updates"`
}

// PostUpdates merges a batch of remote updates. Merging is idempotent and
// order-independent, so a channel may replay freely.
func (controller *SyncController) PostUpdates(c *gin.Context) {
	var req applyUpdatesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.IndentedJSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
		return
	}

	for _, u := range req.Updates {
		if u.Collection == "" || u.EntityID == "" {
			c.IndentedJSON(http.StatusBadRequest, gin.H{"error": "update without collection or entity id"})
			return
		}
		if err := controller.doc.ApplyRemote(u); err != nil {
			respondError(c, err)
			return
		}
	}

	c.IndentedJSON(http.StatusOK, gin.H{
		"applied":  len(req.Updates),
		"last_seq": controller.doc.LastSeq(),
	})
}
