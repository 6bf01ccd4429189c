package domain

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// ModelSize selects the ASR model used for transcription.
type ModelSize string

const (
	ModelDefault ModelSize = "default"
	ModelTiny    ModelSize = "tiny"
	ModelSmall   ModelSize = "small"
	ModelMedium  ModelSize = "medium"
	ModelLarge   ModelSize = "large"
)

// ComputePrecision selects the numeric precision for ASR inference.
type ComputePrecision string

const (
	PrecisionDefault ComputePrecision = "default"
	PrecisionInt8    ComputePrecision = "int8"
	PrecisionFloat16 ComputePrecision = "float16"
	PrecisionFloat32 ComputePrecision = "float32"
)

const DefaultChunkMinutes = 10

// Quality holds the transcription parameters that, together with the source
// identity, define a distinct transcription result.
type Quality struct {
	Model        ModelSize        `json:"model_size"`
	Precision    ComputePrecision `json:"compute_precision"`
	ChunkMinutes int              `json:"chapter_chunk_minutes"`
}

// DefaultQuality returns the quality used when the client sends no overrides.
func DefaultQuality() Quality {
	return Quality{Model: ModelDefault, Precision: PrecisionDefault, ChunkMinutes: DefaultChunkMinutes}
}

// ChunkDuration returns the time-based chapter size in seconds.
func (q Quality) ChunkDuration() float64 {
	return float64(q.ChunkMinutes) * 60
}

// Suffix is the quality part of a cache key. Default values are omitted so
// a plain request maps to "<identity>_default".
func (q Quality) Suffix() string {
	parts := []string{string(q.Model)}
	if q.Precision != PrecisionDefault {
		parts = append(parts, string(q.Precision))
	}
	if q.ChunkMinutes != DefaultChunkMinutes {
		parts = append(parts, fmt.Sprintf("%d", q.ChunkMinutes))
	}
	return strings.Join(parts, "_")
}

func parseModel(s string) (ModelSize, error) {
	switch ModelSize(strings.TrimSpace(s)) {
	case "":
		return ModelDefault, nil
	case ModelDefault, ModelTiny, ModelSmall, ModelMedium, ModelLarge:
		return ModelSize(strings.TrimSpace(s)), nil
	}
	return "", fmt.Errorf("unknown model size '%s'", s)
}

func parsePrecision(s string) (ComputePrecision, error) {
	switch ComputePrecision(strings.TrimSpace(s)) {
	case "":
		return PrecisionDefault, nil
	case PrecisionDefault, PrecisionInt8, PrecisionFloat16, PrecisionFloat32:
		return ComputePrecision(strings.TrimSpace(s)), nil
	}
	return "", fmt.Errorf("unknown compute precision '%s'", s)
}

// ParseQuality validates raw form values. Empty strings and a zero chunk fall
// back to defaults.
func ParseQuality(model, precision string, chunkMinutes int) (Quality, error) {
	res := DefaultQuality()
	var err error
	if res.Model, err = parseModel(model); err != nil {
		return Quality{}, err
	}
	if res.Precision, err = parsePrecision(precision); err != nil {
		return Quality{}, err
	}
	if chunkMinutes < 0 {
		return Quality{}, fmt.Errorf("chapter chunk minutes must be positive, got %d", chunkMinutes)
	}
	if chunkMinutes > 0 {
		res.ChunkMinutes = chunkMinutes
	}
	return res, nil
}

// SourceKind tags the two AudioSource variants.
type SourceKind int

const (
	SourceYouTube SourceKind = iota
	SourceLocalFile
)

var ytRegexp = regexp.MustCompile(`^(https?://)?(www\.)?(youtube|youtu|youtube-nocookie)\.(com|be)/((watch\?v=)|(embed/)|(v/)|(.+\?v=))?([^&=%\?]{11})`)

var allowedAudioExt = map[string]bool{
	".mp3": true, ".m4a": true, ".wav": true, ".flac": true,
	".ogg": true, ".opus": true, ".aac": true, ".webm": true,
}

// AudioSource is the YouTube-URL-or-local-file identity of a transcription
// request plus its quality parameters. Construct with NewYouTubeSource or
// NewLocalFileSource; both validate, so a constructed value always has
// exactly one identity component.
type AudioSource struct {
	kind       SourceKind
	youtubeURL string
	localPath  string

	Quality Quality
}

// NewYouTubeSource validates the URL against the YouTube pattern.
func NewYouTubeSource(url string, quality Quality) (AudioSource, error) {
	if !ytRegexp.MatchString(url) {
		return AudioSource{}, fmt.Errorf("'%s' is not a valid YouTube URL", url)
	}
	return AudioSource{kind: SourceYouTube, youtubeURL: url, Quality: quality}, nil
}

// NewLocalFileSource validates the file extension against the audio allow-list.
func NewLocalFileSource(path string, quality Quality) (AudioSource, error) {
	if path == "" {
		return AudioSource{}, fmt.Errorf("no audio file path")
	}
	ext := strings.ToLower(filepath.Ext(path))
	if !allowedAudioExt[ext] {
		return AudioSource{}, fmt.Errorf("unsupported audio file extension '%s'", ext)
	}
	return AudioSource{kind: SourceLocalFile, localPath: path, Quality: quality}, nil
}

func (s AudioSource) Kind() SourceKind { return s.kind }

// URL returns the YouTube URL for a SourceYouTube value, else "".
func (s AudioSource) URL() string { return s.youtubeURL }

// Path returns the local file path for a SourceLocalFile value, else "".
func (s AudioSource) Path() string { return s.localPath }

// Identity returns the part of the source that names it: the URL, or the
// file basename. An empty result means the value bypassed the constructors.
func (s AudioSource) Identity() string {
	switch s.kind {
	case SourceYouTube:
		return s.youtubeURL
	case SourceLocalFile:
		if s.localPath == "" {
			return ""
		}
		return filepath.Base(s.localPath)
	}
	return ""
}
