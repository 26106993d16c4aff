// Package batch translates every video in a folder that carries an English
// embedded subtitle track. Analysis is header-only; the per-video worker
// downloads the full file, extracts the track and funnels the translation
// through the global gate like any interactive job.
package batch

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sublayer/sublayer/internal/errs"
	"github.com/sublayer/sublayer/internal/media"
	"github.com/sublayer/sublayer/internal/service"
	"github.com/sublayer/sublayer/internal/vfs"
	"github.com/sublayer/sublayer/pkg/log"
)

// Status is the batch lifecycle state.
type Status string

const (
	StatusAnalyzing   Status = "ANALYZING"
	StatusTranslating Status = "TRANSLATING"
	StatusCompleted   Status = "COMPLETED"
	StatusFailed      Status = "FAILED"
	StatusCancelled   Status = "CANCELLED"
)

// terminal reports whether the status allows a new batch to replace this one.
func (s Status) terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Video is one analyzed row: a video file with its selected English track.
type Video struct {
	Path       string `json:"path"`
	FileName   string `json:"fileName"`
	TrackIndex int    `json:"trackIndex"`
	Language   string `json:"language"`
}

// Record is the batch state snapshot.
type Record struct {
	BatchID      string    `json:"batchId"`
	Folder       string    `json:"folder"`
	Videos       []Video   `json:"videos"`
	Total        int       `json:"total"`
	Completed    int       `json:"completed"`
	CurrentVideo string    `json:"currentVideo,omitempty"`
	StartTime    time.Time `json:"startTime"`
	Status       Status    `json:"status"`
	Error        string    `json:"error,omitempty"`
}

// Translator is the slice of the subtitle orchestrator the batch needs.
type Translator interface {
	TranslateContent(ctx context.Context, content, displayAs string) (string, error)
}

// TrackAnalyzer is the demuxer capability, injected so tests run without
// ffmpeg.
type TrackAnalyzer interface {
	SubtitleTracks(ctx context.Context, videoPath string) ([]media.Track, error)
	ExtractTrack(ctx context.Context, videoPath string, trackIndex int) (string, error)
}

// Orchestrator runs at most one batch process-wide.
type Orchestrator struct {
	fs         func() vfs.FileSystem
	demuxer    TrackAnalyzer
	translator Translator

	mu     sync.Mutex
	record *Record
	cancel bool
}

// NewOrchestrator wires the batch over a VFS selector (the active browse
// adapter can change between batches), the demuxer and the translator.
func NewOrchestrator(fs func() vfs.FileSystem, demuxer TrackAnalyzer, translator Translator) *Orchestrator {
	return &Orchestrator{fs: fs, demuxer: demuxer, translator: translator}
}

// Analyze walks the folder recursively, probes each video's container header
// and records the first English subtitle track. Only one batch may exist at
// a time; a finished one is replaced.
func (o *Orchestrator) Analyze(ctx context.Context, folder string) (Record, error) {
	o.mu.Lock()
	if o.record != nil && !o.record.Status.terminal() {
		o.mu.Unlock()
		return Record{}, errs.New(errs.Busy, "a batch is already in progress").
			WithContext("batchId", o.record.BatchID)
	}
	record := &Record{
		BatchID:   uuid.NewString(),
		Folder:    folder,
		StartTime: time.Now(),
		Status:    StatusAnalyzing,
	}
	o.record = record
	o.cancel = false
	o.mu.Unlock()

	log.Info("Batch analysis started for %s", folder)

	fs := o.fs()
	videoPaths, err := o.collectVideos(fs, folder)
	if err != nil {
		o.fail(err)
		return o.Progress(), err
	}

	for _, videoPath := range videoPaths {
		video, ok := o.analyzeVideo(ctx, fs, videoPath)
		if !ok {
			continue
		}
		o.mu.Lock()
		record.Videos = append(record.Videos, video)
		record.Total = len(record.Videos)
		o.mu.Unlock()
	}

	log.Info("Batch analysis finished: %d of %d videos have an English track",
		len(record.Videos), len(videoPaths))
	return o.Progress(), nil
}

// collectVideos walks the VFS tree depth-first and returns all video paths.
func (o *Orchestrator) collectVideos(fs vfs.FileSystem, dir string) ([]string, error) {
	entries, err := fs.List(dir)
	if err != nil {
		return nil, err
	}

	var videos []string
	for _, entry := range entries {
		switch {
		case entry.IsDirectory:
			nested, err := o.collectVideos(fs, entry.Path)
			if err != nil {
				log.Warn("Skipping unreadable folder %s: %v", entry.Path, err)
				continue
			}
			videos = append(videos, nested...)
		case entry.IsVideo:
			videos = append(videos, entry.Path)
		}
	}
	return videos, nil
}

// analyzeVideo probes one container header for an English subtitle track.
// The header temp file never outlives the probe.
func (o *Orchestrator) analyzeVideo(ctx context.Context, fs vfs.FileSystem, videoPath string) (Video, bool) {
	headerPath, err := fs.DownloadHeaderToTemp(videoPath, vfs.HeaderBytes)
	if err != nil {
		log.Warn("Could not fetch header of %s: %v", videoPath, err)
		return Video{}, false
	}
	defer os.Remove(headerPath)

	tracks, err := o.demuxer.SubtitleTracks(ctx, headerPath)
	if err != nil {
		log.Warn("Track analysis failed for %s: %v", videoPath, err)
		return Video{}, false
	}

	for _, track := range tracks {
		if media.IsEnglish(track.Language) {
			return Video{
				Path:       videoPath,
				FileName:   fileName(videoPath),
				TrackIndex: track.Index,
				Language:   track.Language,
			}, true
		}
	}
	return Video{}, false
}

// Start launches the background worker over the analyzed videos. Requires a
// completed analysis with at least one video.
func (o *Orchestrator) Start(targetLang string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.record == nil || o.record.Status != StatusAnalyzing {
		return errs.New(errs.BadInput, "no analyzed batch to start")
	}
	if len(o.record.Videos) == 0 {
		return errs.New(errs.BadInput, "analysis found no videos with an English track")
	}

	o.record.Status = StatusTranslating
	o.cancel = false
	langCode := service.LanguageCode(targetLang)

	go o.run(o.record, langCode)
	return nil
}

// Progress returns a snapshot of the current batch record.
func (o *Orchestrator) Progress() Record {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.record == nil {
		return Record{}
	}
	snapshot := *o.record
	snapshot.Videos = append([]Video(nil), o.record.Videos...)
	return snapshot
}

// Cancel flags the worker to stop. The flag is observed between videos, so
// an in-flight video finishes first.
func (o *Orchestrator) Cancel() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.cancel = true
}

func (o *Orchestrator) fail(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.record.Status = StatusFailed
	o.record.Error = err.Error()
}

// run is the sequential background worker. Per-video errors are logged and
// skipped; only a failure of the loop machinery itself fails the batch.
func (o *Orchestrator) run(record *Record, langCode string) {
	ctx := context.Background()
	fs := o.fs()

	for _, video := range record.Videos {
		o.mu.Lock()
		cancelled := o.cancel
		if !cancelled {
			record.CurrentVideo = video.FileName
		}
		o.mu.Unlock()

		if cancelled {
			o.finish(record, StatusCancelled)
			return
		}

		if err := o.translateVideo(ctx, fs, video, langCode); err != nil {
			log.Error("Batch video %s failed: %v", video.FileName, err)
			continue
		}

		o.mu.Lock()
		record.Completed++
		o.mu.Unlock()
	}

	o.finish(record, StatusCompleted)
}

func (o *Orchestrator) finish(record *Record, status Status) {
	o.mu.Lock()
	defer o.mu.Unlock()
	record.Status = status
	record.CurrentVideo = ""
	log.Info("Batch %s finished with status %s (%d/%d)",
		record.BatchID, status, record.Completed, record.Total)
}

// translateVideo is one pass of the per-video loop: full download, track
// extraction, translation under the gate, subtitle write-back. The temp
// download is removed on every path.
func (o *Orchestrator) translateVideo(ctx context.Context, fs vfs.FileSystem, video Video, langCode string) error {
	tempPath, err := fs.DownloadToTemp(video.Path)
	if err != nil {
		return err
	}
	defer os.Remove(tempPath)

	content, err := o.demuxer.ExtractTrack(ctx, tempPath, video.TrackIndex)
	if err != nil {
		return err
	}

	translated, err := o.translator.TranslateContent(ctx, content, video.FileName)
	if err != nil {
		return err
	}

	// BOM so media players detect the encoding; content is written verbatim.
	written, err := fs.WriteSubtitle(video.Path, "\uFEFF"+translated, langCode)
	if err != nil {
		return err
	}
	log.Info("Batch wrote %s", written)
	return nil
}

func fileName(p string) string {
	for i := len(p) - 1; i >= 0; i-- {
		if p[i] == '/' || p[i] == '\\' {
			return p[i+1:]
		}
	}
	return p
}
