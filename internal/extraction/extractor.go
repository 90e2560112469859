// Package extraction defines the content-extraction collaborator contract
// used at ingest, during legacy migration and by reprocessing tasks. The
// real EPUB pipeline lives outside this core; PlainTextExtractor is the
// reference implementation that keeps those flows runnable end to end.
package extraction

import (
	"context"

	"github.com/zeebo/errs"
)

var Error = errs.Class("extraction")

// Options carries hints the extractor may use when the content itself has
// no usable metadata.
type Options struct {
	TitleHint  string
	AuthorHint string
}

// ManifestSeed is the content-derived part of a book's manifest.
type ManifestSeed struct {
	Title       string
	Author      string
	Description string
	ByteSize    int64
	CharCount   int64
}

// Section is one unit of sectioned content.
type Section struct {
	Index int
	Title string
	Text  string
}

// Result is everything one extraction run produces.
type Result struct {
	Manifest ManifestSeed
	Sections []Section
}

// Extractor turns a raw book blob into a manifest seed and sectioned
// content.
type Extractor interface {
	Extract(ctx context.Context, blob []byte, opts Options) (Result, error)
}
