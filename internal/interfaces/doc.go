// Package interfaces documents the core abstractions used throughout the application.
//
// # Interface Categories
//
// ## Replication
//
//   - crdt.UpdateLog: durable append-only storage for the replicated
//     document (internal/crdt/document.go). Backed by updatelog.Repository.
//   - bridge.DocumentReader: read-only view of the document handed to the
//     library bridge (internal/bridge/bridge.go). The bridge can observe
//     and list but never write, which keeps derivation one-directional.
//
// ## Content
//
//   - extraction.Extractor: turns an imported binary into a manifest seed
//     and readable sections (internal/extraction/extractor.go). The plain
//     text extractor is the built-in implementation; a format-specific one
//     (EPUB, PDF) plugs in the same way.
//
// ## HTTP controller dependencies
//
//   - http.LibrarySnapshotter: serves the derived library view
//     (internal/http/library.go). Satisfied by bridge.Bridge.
//   - http.ReprocessEnqueuer: schedules background reprocessing
//     (internal/http/books.go). Satisfied by tasks.Client.
//
// ## Time
//
//   - coalescer.Clock: time source for the position-write coalescer
//     (internal/coalescer/clock.go). RealClock in production, ManualClock
//     in tests so debounce windows elapse deterministically.
//
// # Adding a New Extractor
//
// To support a new book format:
//
//  1. Implement Extractor in internal/extraction/
//
//     type EPUBExtractor struct{}
//
//     func (e *EPUBExtractor) Extract(ctx context.Context, blob []byte, opts Options) (Result, error)
//
//  2. Add a compile-time check here and select it by file extension in the
//     ingest service.
//
// # Compile-Time Interface Checks
//
// All implementations should include compile-time checks to ensure they satisfy
// their interfaces. This catches missing methods at compile time rather than runtime:
//
//	var _ SomeInterface = (*MyImplementation)(nil)
//
// See checks.go for the full set.
package interfaces
