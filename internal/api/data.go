package api

// Message is one typed event carried by the delivery queue. Data is a plain
// string for status events and a JSON object string for data events.
type Message struct {
	Event string `json:"event"`
	Data  string `json:"data"`
}

const (
	// EventStatus carries free-text progress, non-terminal.
	EventStatus = "status"
	// EventData carries a structured payload keyed by field name.
	EventData = "data"
	// EventResetState tells the client to discard a partially built document.
	EventResetState = "reset-state"
	// EventServerError ends the stream.
	EventServerError = "server-error"
)

// DataDone is the data-event payload that marks end of stream.
const DataDone = "done"

const (
	FieldKey         = "key"
	FieldBasename    = "basename"
	FieldNumChapters = "num_chapters"
	FieldMetadata    = "metadata"
	FieldChapters    = "chapters"
)

// ChapterPayload is the delivery form of a chapter with hh:mm:ss times.
type ChapterPayload struct {
	Title     string `json:"title"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Text      string `json:"text"`
	Number    int    `json:"number"`
}

// MissingContent is the resync request: the cache key plus the field names
// the client wants re-sent.
type MissingContent struct {
	Key             string   `json:"key"`
	MissingContents []string `json:"missing_contents"`
}

type StatusResponse struct {
	Status string `json:"status"`
}
