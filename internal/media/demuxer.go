// Package media shells out to ffprobe/ffmpeg to enumerate and extract
// subtitle tracks embedded in video containers.
package media

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/sublayer/sublayer/internal/errs"
	"github.com/sublayer/sublayer/pkg/log"
)

// Runner executes an external command and returns its combined output.
// Injected so tests run without the real binaries.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands through os/exec.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// Track describes one embedded subtitle stream. Index is the ordinal among
// subtitle streams (the N in ffmpeg's "-map 0:s:N"), not the container-wide
// stream index.
type Track struct {
	Index    int    `json:"index"`
	Language string `json:"language"`
	Codec    string `json:"codec"`
	Title    string `json:"title,omitempty"`
}

// DisplayName prefers the track title, then the language tag.
func (t Track) DisplayName() string {
	if t.Title != "" {
		return t.Title
	}
	if t.Language != "" && t.Language != "und" {
		return t.Language
	}
	return fmt.Sprintf("Track %d", t.Index)
}

// IsEnglish reports whether a container language tag means English.
func IsEnglish(languageTag string) bool {
	switch strings.ToLower(languageTag) {
	case "en", "eng", "english":
		return true
	}
	return false
}

// Demuxer wraps ffprobe/ffmpeg. Availability is probed once at startup.
type Demuxer struct {
	runner      Runner
	ffmpegPath  string
	ffprobePath string
	available   bool
}

// NewDemuxer probes for the binaries and returns the demuxer. A missing
// toolchain is not fatal; operations fail with UpstreamUnavailable.
func NewDemuxer(runner Runner) *Demuxer {
	d := &Demuxer{
		runner:      runner,
		ffmpegPath:  "ffmpeg",
		ffprobePath: "ffprobe",
	}

	ctx := context.Background()
	_, ffmpegErr := runner.Run(ctx, d.ffmpegPath, "-version")
	_, ffprobeErr := runner.Run(ctx, d.ffprobePath, "-version")
	d.available = ffmpegErr == nil && ffprobeErr == nil

	if d.available {
		log.Info("FFmpeg toolchain available, embedded track analysis enabled")
	} else {
		log.Warn("FFmpeg toolchain not found, embedded track analysis disabled")
	}
	return d
}

// Available reports whether the external toolchain was found.
func (d *Demuxer) Available() bool {
	return d.available
}

// SubtitleTracks lists the embedded subtitle streams of a local video file.
func (d *Demuxer) SubtitleTracks(ctx context.Context, videoPath string) ([]Track, error) {
	if !d.available {
		return nil, errs.New(errs.UpstreamUnavailable, "FFmpeg is not available")
	}

	output, err := d.runner.Run(ctx, d.ffprobePath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_streams",
		"-select_streams", "s",
		videoPath)
	if err != nil {
		return nil, errs.Wrap(errs.UpstreamUnavailable, "ffprobe failed", err).
			WithContext("path", videoPath)
	}

	tracks, err := parseStreams(output)
	if err != nil {
		return nil, err
	}
	log.Info("Found %d subtitle tracks in %s", len(tracks), videoPath)
	return tracks, nil
}

func parseStreams(probeOutput []byte) ([]Track, error) {
	var payload struct {
		Streams []struct {
			CodecType string `json:"codec_type"`
			CodecName string `json:"codec_name"`
			Tags      struct {
				Language string `json:"language"`
				Title    string `json:"title"`
			} `json:"tags"`
		} `json:"streams"`
	}
	if err := json.Unmarshal(probeOutput, &payload); err != nil {
		return nil, errs.Wrap(errs.UpstreamUnavailable, "failed to parse ffprobe output", err)
	}

	tracks := make([]Track, 0, len(payload.Streams))
	subtitleIndex := 0
	for _, stream := range payload.Streams {
		if stream.CodecType != "subtitle" {
			continue
		}
		language := stream.Tags.Language
		if language == "" {
			language = "und"
		}
		tracks = append(tracks, Track{
			Index:    subtitleIndex,
			Language: language,
			Codec:    stream.CodecName,
			Title:    stream.Tags.Title,
		})
		subtitleIndex++
	}
	return tracks, nil
}

// ExtractTrack converts one embedded subtitle stream to SRT text. The
// intermediate file is always removed.
func (d *Demuxer) ExtractTrack(ctx context.Context, videoPath string, trackIndex int) (string, error) {
	if !d.available {
		return "", errs.New(errs.UpstreamUnavailable, "FFmpeg is not available")
	}

	tmp, err := os.CreateTemp("", "subtitle_*.srt")
	if err != nil {
		return "", errs.Wrap(errs.Internal, "failed to create extraction temp file", err)
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpPath)

	_, err = d.runner.Run(ctx, d.ffmpegPath,
		"-i", videoPath,
		"-map", fmt.Sprintf("0:s:%d", trackIndex),
		"-c:s", "srt",
		"-y",
		tmpPath)
	if err != nil {
		return "", errs.Wrap(errs.UpstreamUnavailable, "subtitle extraction failed", err).
			WithContext("path", videoPath).
			WithContext("track", trackIndex)
	}

	content, err := os.ReadFile(tmpPath)
	if err != nil {
		return "", errs.Wrap(errs.Internal, "failed to read extracted subtitle", err)
	}

	log.Info("Extracted subtitle track %d (%d bytes)", trackIndex, len(content))
	return string(content), nil
}
