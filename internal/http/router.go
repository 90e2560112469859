package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// NewRouter creates and configures the HTTP router with all endpoints.
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	health := NewHealthController(cfg.Database, cfg.Version, cfg.Document.Actor())
	router.GET("/health", health.Status)
	router.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})

	library := NewLibraryController(cfg.Bridge)
	router.GET("/api/library", library.GetLibrary)

	books := NewBooksController(cfg.Library, cfg.Ingest, cfg.Enqueuer)
	router.POST("/api/books", books.Import)
	router.GET("/api/books/:id", books.GetBook)
	router.PATCH("/api/books/:id", books.UpdateBook)
	router.DELETE("/api/books/:id", books.DeleteBook)
	router.GET("/api/books/:id/resume", books.GetResume)
	router.GET("/api/books/:id/history", books.GetHistory)
	router.POST("/api/books/:id/reprocess", books.Reprocess)
	router.POST("/api/books/:id/offload", books.Offload)
	router.POST("/api/books/:id/restore", books.Restore)

	progress := NewProgressController(cfg.Library, cfg.Coalescer, cfg.Document.Actor())
	router.PUT("/api/books/:id/position", progress.PutPosition)
	router.PUT("/api/books/:id/playback", progress.PutPosition)
	router.PUT("/api/books/:id/ranges", progress.PutRange)

	annotations := NewAnnotationsController(cfg.Library)
	router.GET("/api/books/:id/annotations", annotations.GetAnnotations)
	router.POST("/api/books/:id/annotations", annotations.CreateAnnotation)
	router.DELETE("/api/annotations/:annotationId", annotations.DeleteAnnotation)

	devices := NewDevicesController(cfg.Library)
	router.GET("/api/devices", devices.GetDevices)

	sync := NewSyncController(cfg.Document, cfg.Coalescer)
	router.GET("/api/sync/status", sync.GetStatus)
	router.GET("/api/sync/updates", sync.GetUpdates)
	router.POST("/api/sync/updates", sync.PostUpdates)

	return router
}
