package interfaces

// This file contains compile-time interface implementation checks.
// These ensure that concrete types satisfy their interfaces at compile time,
// catching missing methods before runtime.
//
// To verify all checks pass: go build ./internal/interfaces/...

import (
	"github.com/vrwarp/versicle/internal/bridge"
	"github.com/vrwarp/versicle/internal/coalescer"
	"github.com/vrwarp/versicle/internal/crdt"
	"github.com/vrwarp/versicle/internal/database/updatelog"
	"github.com/vrwarp/versicle/internal/extraction"
	"github.com/vrwarp/versicle/internal/http"
	"github.com/vrwarp/versicle/internal/tasks"
)

// The durable update log backs the replicated document.
var _ crdt.UpdateLog = (*updatelog.Repository)(nil)

// The bridge reads the document; the interface keeps it from writing back.
var _ bridge.DocumentReader = (*crdt.Document)(nil)

// Extractor implementations
var _ extraction.Extractor = (*extraction.PlainTextExtractor)(nil)

// HTTP controller dependencies
var _ http.LibrarySnapshotter = (*bridge.Bridge)(nil)
var _ http.ReprocessEnqueuer = (*tasks.Client)(nil)

// Clock implementations for the write coalescer
var _ coalescer.Clock = (coalescer.RealClock{})
var _ coalescer.Clock = (*coalescer.ManualClock)(nil)
