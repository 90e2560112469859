package http

import (
	"github.com/vrwarp/versicle/internal/bridge"
	"github.com/vrwarp/versicle/internal/coalescer"
	"github.com/vrwarp/versicle/internal/crdt"
	"github.com/vrwarp/versicle/internal/database"
	"github.com/vrwarp/versicle/internal/services"
)

// RouterConfig contains all dependencies needed to create the HTTP router.
type RouterConfig struct {
	Database  *database.Database
	Library   *services.LibraryService
	Ingest    *services.IngestService
	Bridge    *bridge.Bridge
	Coalescer *coalescer.Coalescer
	Document  *crdt.Document
	Enqueuer  ReprocessEnqueuer

	Version string
}
