package httpapi

import (
	"net/http"
	"os"
	"regexp"
	"strings"

	"github.com/sublayer/sublayer/internal/batch"
	"github.com/sublayer/sublayer/internal/catalog"
	"github.com/sublayer/sublayer/internal/config"
	"github.com/sublayer/sublayer/internal/errs"
	"github.com/sublayer/sublayer/internal/service"
	"github.com/sublayer/sublayer/internal/subtitle"
	"github.com/sublayer/sublayer/internal/vfs"
	"github.com/sublayer/sublayer/pkg/log"
)

// activeFS returns the browse adapter, rejecting requests while it is not
// configured.
func (s *Server) activeFS() (vfs.FileSystem, error) {
	fs := s.fs()
	if fs == nil || !fs.IsConfigured() {
		mode := s.settings.Get().BrowseMode
		return nil, errs.New(errs.NotConfigured, "file browsing is not configured").
			WithContext("mode", mode)
	}
	return fs, nil
}

func (s *Server) handleBrowse(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	fs, err := s.activeFS()
	if err != nil {
		writeAppError(w, err)
		return
	}

	dir := r.URL.Query().Get("path")
	entries, err := fs.List(dir)
	if err != nil {
		writeAppError(w, err)
		return
	}
	if entries == nil {
		entries = []vfs.Entry{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"path":    dir,
		"entries": entries,
	})
}

// handleBrowseSearch searches the catalog using the title extracted from a
// video file name.
func (s *Server) handleBrowseSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	videoPath := r.URL.Query().Get("path")
	if videoPath == "" {
		writeError(w, http.StatusBadRequest, "path parameter is required")
		return
	}

	fs, err := s.activeFS()
	if err != nil {
		writeAppError(w, err)
		return
	}

	title := fs.ExtractVideoTitle(videoPath)
	response, err := s.proxy.ProxySearch(r.Context(), catalog.SearchFilters{Query: title})
	if err != nil {
		writeAppError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"query":   title,
		"results": response,
	})
}

func (s *Server) handleBrowseSearchManual(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	query := r.URL.Query().Get("query")
	if query == "" {
		writeError(w, http.StatusBadRequest, "query parameter is required")
		return
	}

	response, err := s.proxy.ProxySearch(r.Context(), catalog.SearchFilters{Query: query})
	if err != nil {
		writeAppError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"query":   query,
		"results": response,
	})
}

// handleBrowseTranslate downloads a catalog subtitle, translates it and
// writes it next to the chosen video.
func (s *Server) handleBrowseTranslate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var body struct {
		FileID    int64  `json:"fileId"`
		VideoPath string `json:"videoPath"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeAppError(w, err)
		return
	}
	if body.VideoPath == "" {
		writeError(w, http.StatusBadRequest, "videoPath is required")
		return
	}

	fs, err := s.activeFS()
	if err != nil {
		writeAppError(w, err)
		return
	}

	content, _, err := s.proxy.ProxyDownloadAndTranslate(r.Context(), body.FileID, subtitle.FormatSRT, "")
	if err != nil {
		writeAppError(w, err)
		return
	}

	code := service.LanguageCode(s.settings.Get().TargetLanguage)
	written, err := fs.WriteSubtitle(body.VideoPath, "\uFEFF"+string(content), code)
	if err != nil {
		writeAppError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message":      "Subtitle translated and saved",
		"subtitlePath": written,
	})
}

// handleBrowseTranslateLocal translates a subtitle file already on the share
// and writes the result alongside it, swapping the language suffix.
func (s *Server) handleBrowseTranslateLocal(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var body struct {
		SubtitlePath string `json:"subtitlePath"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeAppError(w, err)
		return
	}
	if body.SubtitlePath == "" {
		writeError(w, http.StatusBadRequest, "subtitlePath is required")
		return
	}

	fs, err := s.activeFS()
	if err != nil {
		writeAppError(w, err)
		return
	}

	content, err := fs.ReadSubtitle(body.SubtitlePath)
	if err != nil {
		writeAppError(w, err)
		return
	}

	translated, err := s.proxy.TranslateContent(r.Context(), content, fileBase(body.SubtitlePath))
	if err != nil {
		writeAppError(w, err)
		return
	}

	code := service.LanguageCode(s.settings.Get().TargetLanguage)
	outPath := translatedPath(body.SubtitlePath, code)
	if err := fs.WriteSubtitleDirect(outPath, "\uFEFF"+translated); err != nil {
		writeAppError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message":      "Subtitle translated and saved",
		"subtitlePath": outPath,
	})
}

// handleBrowseEmbeddedTracks probes a video container header for subtitle
// tracks without downloading the whole file.
func (s *Server) handleBrowseEmbeddedTracks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if s.demuxer == nil || !s.demuxer.Available() {
		writeJSON(w, http.StatusOK, map[string]any{
			"available": false,
			"message":   "ffmpeg is not installed, embedded track analysis is disabled",
		})
		return
	}

	videoPath := r.URL.Query().Get("path")
	if videoPath == "" {
		writeError(w, http.StatusBadRequest, "path parameter is required")
		return
	}

	fs, err := s.activeFS()
	if err != nil {
		writeAppError(w, err)
		return
	}

	headerPath, err := fs.DownloadHeaderToTemp(videoPath, vfs.HeaderBytes)
	if err != nil {
		writeAppError(w, err)
		return
	}
	defer os.Remove(headerPath)

	tracks, err := s.demuxer.SubtitleTracks(r.Context(), headerPath)
	if err != nil {
		writeAppError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"available": true,
		"tracks":    tracks,
	})
}

// handleBrowseTranslateEmbedded extracts an embedded track, translates it
// and writes the subtitle next to the video. A cached translation skips the
// video download entirely.
func (s *Server) handleBrowseTranslateEmbedded(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var body struct {
		VideoPath  string `json:"videoPath"`
		TrackIndex int    `json:"trackIndex"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeAppError(w, err)
		return
	}
	if body.VideoPath == "" {
		writeError(w, http.StatusBadRequest, "videoPath is required")
		return
	}

	fs, err := s.activeFS()
	if err != nil {
		writeAppError(w, err)
		return
	}

	code := service.LanguageCode(s.settings.Get().TargetLanguage)
	fingerprint := service.EmbeddedFingerprint(body.VideoPath, body.TrackIndex)

	if translated, ok := s.proxy.CachedTranslation(fingerprint); ok {
		written, err := fs.WriteSubtitle(body.VideoPath, "\uFEFF"+translated, code)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"message":      "Subtitle translated and saved (from cache)",
			"subtitlePath": written,
			"cached":       true,
		})
		return
	}

	if s.demuxer == nil || !s.demuxer.Available() {
		writeAppError(w, errs.New(errs.NotConfigured, "ffmpeg is not installed"))
		return
	}

	tempPath, err := fs.DownloadToTemp(body.VideoPath)
	if err != nil {
		writeAppError(w, err)
		return
	}
	defer os.Remove(tempPath)

	content, err := s.demuxer.ExtractTrack(r.Context(), tempPath, body.TrackIndex)
	if err != nil {
		writeAppError(w, err)
		return
	}

	translated, err := s.proxy.TranslateEmbedded(r.Context(), fingerprint, fileBase(body.VideoPath), content, body.VideoPath, body.TrackIndex)
	if err != nil {
		writeAppError(w, err)
		return
	}

	written, err := fs.WriteSubtitle(body.VideoPath, "\uFEFF"+translated, code)
	if err != nil {
		writeAppError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message":      "Subtitle translated and saved",
		"subtitlePath": written,
		"cached":       false,
	})
}

func (s *Server) handleBrowseProgress(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	jobs := s.tracker.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"translations": jobs,
		"batch":        s.batch.Progress(),
	})
}

func (s *Server) handleBatchAnalyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var body struct {
		Folder string `json:"folder"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeAppError(w, err)
		return
	}

	if _, err := s.activeFS(); err != nil {
		writeAppError(w, err)
		return
	}

	record, err := s.batch.Analyze(r.Context(), body.Folder)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (s *Server) handleBatchStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var body struct {
		TargetLanguage string `json:"targetLanguage"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeAppError(w, err)
		return
	}
	if body.TargetLanguage == "" {
		body.TargetLanguage = s.settings.Get().TargetLanguage
	}

	if err := s.batch.Start(body.TargetLanguage); err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Batch translation started",
	})
}

func (s *Server) handleBatchProgress(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	record := s.batch.Progress()
	active := record.Status == batch.StatusAnalyzing || record.Status == batch.StatusTranslating
	writeJSON(w, http.StatusOK, map[string]any{
		"active": active,
		"batch":  record,
	})
}

func (s *Server) handleBatchCancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	s.batch.Cancel()
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Batch cancellation requested",
	})
}

// handleBrowseSettings exposes the browse configuration. Passwords never
// leave the server; an empty password on update keeps the stored one.
func (s *Server) handleBrowseSettings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		settings := s.settings.Get()
		writeJSON(w, http.StatusOK, map[string]any{
			"mode":          settings.BrowseMode,
			"localRootPath": settings.LocalRootPath,
			"smbHost":       settings.SMBHost,
			"smbShare":      settings.SMBShare,
			"smbUsername":   settings.SMBUsername,
			"smbDomain":     settings.SMBDomain,
			"smbConfigured": settings.SMBHost != "" && settings.SMBShare != "",
		})

	case http.MethodPost:
		var body struct {
			Mode          string `json:"mode"`
			LocalRootPath string `json:"localRootPath"`
			SMBHost       string `json:"smbHost"`
			SMBShare      string `json:"smbShare"`
			SMBUsername   string `json:"smbUsername"`
			SMBPassword   string `json:"smbPassword"`
			SMBDomain     string `json:"smbDomain"`
		}
		if err := decodeJSON(r, &body); err != nil {
			writeAppError(w, err)
			return
		}

		updated := s.settings.Get()
		if body.Mode != "" {
			if body.Mode != config.BrowseModeLocal && body.Mode != config.BrowseModeSMB {
				writeError(w, http.StatusBadRequest, "mode must be local or smb")
				return
			}
			updated.BrowseMode = body.Mode
		}
		updated.LocalRootPath = body.LocalRootPath
		updated.SMBHost = body.SMBHost
		updated.SMBShare = body.SMBShare
		updated.SMBUsername = body.SMBUsername
		updated.SMBPassword = body.SMBPassword
		updated.SMBDomain = body.SMBDomain

		if err := s.settings.Update(updated); err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"message": "Browse settings updated",
		})

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleBrowseMode(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]any{
			"mode": s.settings.Get().BrowseMode,
		})

	case http.MethodPost:
		var body struct {
			Mode string `json:"mode"`
		}
		if err := decodeJSON(r, &body); err != nil {
			writeAppError(w, err)
			return
		}
		if body.Mode != config.BrowseModeLocal && body.Mode != config.BrowseModeSMB {
			writeError(w, http.StatusBadRequest, "mode must be local or smb")
			return
		}

		updated := s.settings.Get()
		updated.BrowseMode = body.Mode
		if err := s.settings.Update(updated); err != nil {
			writeAppError(w, err)
			return
		}
		log.Info("Browse mode switched to %s", body.Mode)
		writeJSON(w, http.StatusOK, map[string]any{
			"mode": body.Mode,
		})

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleBrowseTest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost && r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	fs := s.fs()
	if fs == nil || !fs.IsConfigured() {
		writeJSON(w, http.StatusOK, map[string]any{
			"success": false,
			"message": "file browsing is not configured",
		})
		return
	}

	if err := fs.TestConnection(); err != nil {
		writeJSON(w, http.StatusOK, map[string]any{
			"success": false,
			"message": err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "connection ok",
	})
}

func (s *Server) handleBrowseDiscover(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if s.browser == nil {
		writeJSON(w, http.StatusOK, map[string]any{"devices": []any{}})
		return
	}

	devices := s.browser.Discover(r.Context())
	if devices == nil {
		writeJSON(w, http.StatusOK, map[string]any{"devices": []any{}})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"devices": devices})
}

// languageSuffix matches a trailing ".{lang}.{ext}" on a subtitle path.
var languageSuffix = regexp.MustCompile(`(?i)\.([a-z]{2,3})(\.[a-z]{3})$`)

// translatedPath derives the output path for a translated subtitle: swap the
// language suffix when present, insert the code before the extension
// otherwise.
func translatedPath(subtitlePath, code string) string {
	if m := languageSuffix.FindStringSubmatchIndex(subtitlePath); m != nil {
		return subtitlePath[:m[2]] + code + subtitlePath[m[4]:]
	}
	if dot := strings.LastIndex(subtitlePath, "."); dot > 0 {
		return subtitlePath[:dot] + "." + code + subtitlePath[dot:]
	}
	return subtitlePath + "." + code + ".srt"
}

func fileBase(p string) string {
	for i := len(p) - 1; i >= 0; i-- {
		if p[i] == '/' || p[i] == '\\' {
			return p[i+1:]
		}
	}
	return p
}
