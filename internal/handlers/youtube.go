package handlers

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/airenas/chapter-transcriber/internal/domain"
	"github.com/airenas/chapter-transcriber/internal/utils"
	"github.com/airenas/go-app/pkg/goapp"
)

// YouTubeHandler downloads the audio of a video with yt-dlp and turns the
// dumped metadata into the domain record plus raw chapter boundaries.
type YouTubeHandler struct {
	binPath  string
	audioDir string
	// Progress receives download progress lines. The handler calls it from
	// a reader goroutine, not the caller's goroutine; implementations must
	// be safe for that.
	Progress func(msg string)
}

// NewYouTubeHandler creates a handler storing downloads under audioDir.
func NewYouTubeHandler(binPath, audioDir string) (*YouTubeHandler, error) {
	if binPath == "" {
		return nil, fmt.Errorf("no yt-dlp path")
	}
	if audioDir == "" {
		return nil, fmt.Errorf("no audio dir")
	}
	goapp.Log.Info().Str("bin", binPath).Str("dir", audioDir).Msg("YouTube handler")
	return &YouTubeHandler{binPath: binPath, audioDir: audioDir}, nil
}

type ytInfo struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
	Channel     string   `json:"channel"`
	UploadDate  string   `json:"upload_date"`
	UploaderID  string   `json:"uploader_id"`
	Duration    float64  `json:"duration"`
	Filename    string   `json:"_filename"`
	Chapters    []struct {
		Title     string  `json:"title"`
		StartTime float64 `json:"start_time"`
		EndTime   float64 `json:"end_time"`
	} `json:"chapters"`
}

// Extract downloads the audio and returns metadata, chapter boundaries, and
// the local mp3 path. DownloadTime is filled with the elapsed wall time.
func (h *YouTubeHandler) Extract(ctx context.Context, url string) (*domain.Metadata, []domain.Chapter, string, error) {
	goapp.Log.Info().Str("url", url).Msg("starting YouTube download")
	defer utils.MeasureTime("youtube download", time.Now())

	start := time.Now()
	cmd := exec.CommandContext(ctx, h.binPath,
		"--extract-audio", "--audio-format", "mp3",
		"--output", filepath.Join(h.audioDir, "%(title)s.%(ext)s"),
		"--print-json", "--newline",
		url)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, nil, "", fmt.Errorf("open stderr: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, nil, "", fmt.Errorf("start yt-dlp: %w", err)
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		sc := bufio.NewScanner(stderr)
		for sc.Scan() {
			line := strings.TrimSpace(sc.Text())
			if line == "" {
				continue
			}
			goapp.Log.Debug().Str("yt-dlp", line).Send()
			if h.Progress != nil {
				h.Progress(line)
			}
		}
	}()
	// the pipe must be drained before Wait, or Wait closes it under the
	// scanner and the last progress lines are lost
	<-done
	err = cmd.Wait()
	if err != nil {
		return nil, nil, "", fmt.Errorf("yt-dlp failed: %w", err)
	}

	var info ytInfo
	if err := json.Unmarshal(stdout.Bytes(), &info); err != nil {
		return nil, nil, "", fmt.Errorf("parse yt-dlp output: %w", err)
	}
	path := mp3Path(info.Filename)
	if path == "" {
		return nil, nil, "", fmt.Errorf("no output filename in yt-dlp metadata")
	}
	meta := &domain.Metadata{
		Title:        info.Title,
		Description:  info.Description,
		Tags:         strings.Join(info.Tags, ", "),
		Channel:      info.Channel,
		UploadDate:   info.UploadDate,
		UploaderID:   info.UploaderID,
		Duration:     utils.FormatTime(info.Duration),
		DownloadTime: utils.FormatTime(time.Since(start).Seconds()),
	}
	chapters := make([]domain.Chapter, 0, len(info.Chapters))
	for _, ch := range info.Chapters {
		chapters = append(chapters, domain.Chapter{Title: ch.Title, StartTime: ch.StartTime, EndTime: ch.EndTime})
	}
	goapp.Log.Info().Str("path", path).Int("chapters", len(chapters)).Msg("download done")
	return meta, chapters, path, nil
}

// mp3Path maps yt-dlp's reported container filename to the extracted mp3.
func mp3Path(filename string) string {
	if filename == "" {
		return ""
	}
	ext := filepath.Ext(filename)
	return strings.TrimSuffix(filename, ext) + ".mp3"
}
