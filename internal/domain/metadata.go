package domain

// Metadata keeps the descriptive fields of the source plus derived timing
// stats. Durations are kept as hh:mm:ss strings, ready for display.
type Metadata struct {
	Title             string `json:"title,omitempty"`
	Tags              string `json:"tags,omitempty"`
	Description       string `json:"description,omitempty"`
	Duration          string `json:"duration,omitempty"`
	Channel           string `json:"channel,omitempty"`
	UploadDate        string `json:"upload_date,omitempty"`
	UploaderID        string `json:"uploader_id,omitempty"`
	DownloadTime      string `json:"download_time,omitempty"`
	TranscriptionTime string `json:"transcription_time,omitempty"`
}
