package process

// State tracks one transcription request through its lifecycle.
type State string

const (
	StateIdle              State = "idle"
	StateReceived          State = "received"
	StateKeyResolved       State = "key_resolved"
	StateMetadataExtracted State = "metadata_extracted"
	StateSegmented         State = "segmented"
	StateTranscribing      State = "transcribing"
	StateComplete          State = "complete"
	StateCancelled         State = "cancelled"
	StateErrored           State = "errored"
)
