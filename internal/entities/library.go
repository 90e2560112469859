package entities

type ReadingStatus string

const (
	StatusUnread   ReadingStatus = "unread"
	StatusReading  ReadingStatus = "reading"
	StatusFinished ReadingStatus = "finished"
)

type SessionSource string

const (
	SessionSourceReading  SessionSource = "reading"
	SessionSourcePlayback SessionSource = "playback" // continuous speech playback
)

// InventoryItem is the per-library membership record for one book. It lives
// in the replicated document (collection "books") and converges across
// devices with field-level last-writer-wins.
//
// All timestamps in replicated values are milliseconds since the Unix epoch.
type InventoryItem struct {
	BookID          string        `json:"book_id"`
	Title           string        `json:"title"`
	Author          string        `json:"author"`
	TitleOverride   string        `json:"title_override,omitempty"`
	AuthorOverride  string        `json:"author_override,omitempty"`
	Tags            []string      `json:"tags,omitempty"`
	Status          ReadingStatus `json:"status"`
	StatusLine      string        `json:"status_line,omitempty"` // denormalized, rebuilt on progress flushes
	SourceFilename  string        `json:"source_filename,omitempty"`
	Offloaded       bool          `json:"offloaded"`
	AddedAt         int64         `json:"added_at"`
	LastInteraction int64         `json:"last_interaction"`
}

// DisplayTitle returns the user override when set, the manifest title
// otherwise.
func (i InventoryItem) DisplayTitle() string {
	if i.TitleOverride != "" {
		return i.TitleOverride
	}
	return i.Title
}

func (i InventoryItem) DisplayAuthor() string {
	if i.AuthorOverride != "" {
		return i.AuthorOverride
	}
	return i.Author
}

// DeviceProgress is one device's reading and playback position for one book
// (collection "progress", key "<bookID>/<deviceID>"). Each device writes
// only its own entry, so whole-value last-writer-wins is exact.
type DeviceProgress struct {
	BookID       string  `json:"book_id"`
	DeviceID     string  `json:"device_id"`
	Percentage   float64 `json:"percentage"`
	Location     string  `json:"location,omitempty"` // current position CFI
	QueueIndex   int     `json:"queue_index"`
	SectionIndex int     `json:"section_index"`
	LastRead     int64   `json:"last_read"`
}

// ProgressKey composes the document key for a device's progress entry.
func ProgressKey(bookID, deviceID string) string {
	return bookID + "/" + deviceID
}

// ReadRange is a span of book content identified by two fragment
// identifiers, Start <= End in spine order.
type ReadRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Session is one discrete reading or listening stretch kept for history
// display.
type Session struct {
	Start     string        `json:"start"`
	End       string        `json:"end"`
	Timestamp int64         `json:"timestamp"`
	Source    SessionSource `json:"source"`
	Label     string        `json:"label,omitempty"`
}

// HistoryEntry is the per-book reading history (collection "history", key
// bookID). ReadRanges is always the minimal sorted non-overlapping cover of
// everything read; only the reconcile package may rewrite it.
type HistoryEntry struct {
	BookID      string      `json:"book_id"`
	ReadRanges  []ReadRange `json:"read_ranges"`
	Sessions    []Session   `json:"sessions"`
	LastUpdated int64       `json:"last_updated"`
}

// Annotation is a highlight or note anchored to a content range
// (collection "annotations", key annotation id).
type Annotation struct {
	ID        string `json:"id"`
	BookID    string `json:"book_id"`
	Start     string `json:"start"`
	End       string `json:"end"`
	Text      string `json:"text"`
	Note      string `json:"note,omitempty"`
	Color     string `json:"color,omitempty"`
	CreatedAt int64  `json:"created_at"`
}

// Device is a registry entry used to attribute progress in cross-device
// resume suggestions. It is never consulted for access control.
type Device struct {
	DeviceID    string `json:"device_id"`
	DisplayName string `json:"display_name"`
	LastSeen    int64  `json:"last_seen"`
}
