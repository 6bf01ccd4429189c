package domain

// Segment is one timed text span produced by ASR.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Chapter is a titled, timed span of transcript text. EndTime == 0 is a
// sentinel: the audio has exactly one chapter and is not subdivided.
type Chapter struct {
	Title     string  `json:"title"`
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
	Text      string  `json:"text,omitempty"`
	Number    int     `json:"number,omitempty"`
}

// BuildChapters normalizes raw chapter boundaries from a metadata source.
// An empty list becomes the single sentinel chapter, and a one-element list
// gets the sentinel end time, so downstream code sees one shape for
// "no real chapters".
func BuildChapters(hints []Chapter) []Chapter {
	if len(hints) == 0 {
		return []Chapter{{StartTime: 0.0, EndTime: 0.0}}
	}
	res := make([]Chapter, len(hints))
	copy(res, hints)
	if len(res) == 1 {
		res[0].EndTime = 0.0
	}
	return res
}
