// Package httpapi exposes the OpenSubtitles-compatible proxy surface, the
// browser/settings endpoints and the status dashboards.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/sublayer/sublayer/internal/batch"
	"github.com/sublayer/sublayer/internal/cache"
	"github.com/sublayer/sublayer/internal/catalog"
	"github.com/sublayer/sublayer/internal/config"
	"github.com/sublayer/sublayer/internal/discovery"
	"github.com/sublayer/sublayer/internal/index"
	"github.com/sublayer/sublayer/internal/llm"
	"github.com/sublayer/sublayer/internal/media"
	"github.com/sublayer/sublayer/internal/progress"
	"github.com/sublayer/sublayer/internal/subtitle"
	"github.com/sublayer/sublayer/internal/vfs"
)

// subtitleProxy is the slice of the subtitle orchestrator the handlers use.
type subtitleProxy interface {
	ProxySearch(ctx context.Context, filters catalog.SearchFilters) (*catalog.SearchResponse, error)
	ProxyDownloadAndTranslate(ctx context.Context, fileID int64, format subtitle.Format, requestedName string) ([]byte, string, error)
	TranslateContent(ctx context.Context, content, displayAs string) (string, error)
	TranslateEmbedded(ctx context.Context, fingerprint, name, content, videoPath string, trackIndex int) (string, error)
	CachedTranslation(fingerprint string) (string, bool)
	IsCached(fileID int64) bool
}

// batchRunner is the batch orchestrator capability.
type batchRunner interface {
	Analyze(ctx context.Context, folder string) (batch.Record, error)
	Start(targetLang string) error
	Progress() batch.Record
	Cancel()
}

// modelManager is the Ollama management capability.
type modelManager interface {
	ListModels(ctx context.Context) ([]llm.ModelInfo, error)
	StartPull(model string) error
	PullState() llm.PullStatus
}

// trackAnalyzer is the demuxer capability.
type trackAnalyzer interface {
	Available() bool
	SubtitleTracks(ctx context.Context, videoPath string) ([]media.Track, error)
	ExtractTrack(ctx context.Context, videoPath string, trackIndex int) (string, error)
}

// subtitleIndex is the local subtitle index capability.
type subtitleIndex interface {
	Add(ctx context.Context, fileName, content string) (index.Record, error)
	Search(ctx context.Context, query string) ([]index.Record, error)
	Get(ctx context.Context, id int64) (index.Record, error)
}

// nasBrowser scans for SMB hosts.
type nasBrowser interface {
	Discover(ctx context.Context) []discovery.Device
}

type Server struct {
	proxy    subtitleProxy
	batch    batchRunner
	settings *config.SettingsStore
	cache    *cache.Store
	tracker  *progress.Tracker
	fs       func() vfs.FileSystem
	demuxer  trackAnalyzer
	index    subtitleIndex
	ollama   modelManager
	browser  nasBrowser

	mux    *http.ServeMux
	server *http.Server
	tokens *tokenStore
}

type Option func(*Server)

func WithIndex(idx subtitleIndex) Option {
	return func(s *Server) { s.index = idx }
}

func WithOllamaManager(m modelManager) Option {
	return func(s *Server) { s.ollama = m }
}

func WithNASBrowser(b nasBrowser) Option {
	return func(s *Server) { s.browser = b }
}

func NewServer(
	proxy subtitleProxy,
	batchRunner batchRunner,
	settings *config.SettingsStore,
	cacheStore *cache.Store,
	tracker *progress.Tracker,
	fs func() vfs.FileSystem,
	demuxer trackAnalyzer,
	opts ...Option,
) *Server {
	s := &Server{
		proxy:    proxy,
		batch:    batchRunner,
		settings: settings,
		cache:    cacheStore,
		tracker:  tracker,
		fs:       fs,
		demuxer:  demuxer,
		mux:      http.NewServeMux(),
		tokens:   newTokenStore(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) ListenAndServe(addr string) error {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) routes() {
	// OpenSubtitles-compatible proxy surface.
	s.mux.HandleFunc("/api/v1/login", s.handleLogin)
	s.mux.HandleFunc("/api/v1/logout", s.handleLogout)
	s.mux.HandleFunc("/api/v1/subtitles", s.handleSearch)
	s.mux.HandleFunc("/api/v1/download", s.handleDownloadRequest)
	s.mux.HandleFunc("/api/v1/download/", s.handleDownloadFile)
	s.mux.HandleFunc("/api/v1/upload", s.handleUpload)
	s.mux.HandleFunc("/api/v1/infos/user", s.handleInfoUser)
	s.mux.HandleFunc("/api/v1/infos/languages", s.handleInfoLanguages)
	s.mux.HandleFunc("/api/v1/infos/formats", s.handleInfoFormats)

	// Settings.
	s.mux.HandleFunc("/api/settings", s.handleSettings)
	s.mux.HandleFunc("/api/settings/ollama/models", s.handleOllamaModels)
	s.mux.HandleFunc("/api/settings/ollama/pull", s.handleOllamaPull)
	s.mux.HandleFunc("/api/settings/ollama/pull/status", s.handleOllamaPullStatus)

	// Browser UI data endpoints.
	s.mux.HandleFunc("/api/browse", s.handleBrowse)
	s.mux.HandleFunc("/api/browse/search", s.handleBrowseSearch)
	s.mux.HandleFunc("/api/browse/search-manual", s.handleBrowseSearchManual)
	s.mux.HandleFunc("/api/browse/translate", s.handleBrowseTranslate)
	s.mux.HandleFunc("/api/browse/translate-local", s.handleBrowseTranslateLocal)
	s.mux.HandleFunc("/api/browse/translate-embedded", s.handleBrowseTranslateEmbedded)
	s.mux.HandleFunc("/api/browse/embedded-tracks", s.handleBrowseEmbeddedTracks)
	s.mux.HandleFunc("/api/browse/progress", s.handleBrowseProgress)
	s.mux.HandleFunc("/api/browse/batch-analyze", s.handleBatchAnalyze)
	s.mux.HandleFunc("/api/browse/batch-start", s.handleBatchStart)
	s.mux.HandleFunc("/api/browse/batch-progress", s.handleBatchProgress)
	s.mux.HandleFunc("/api/browse/batch-cancel", s.handleBatchCancel)
	s.mux.HandleFunc("/api/browse/settings", s.handleBrowseSettings)
	s.mux.HandleFunc("/api/browse/mode", s.handleBrowseMode)
	s.mux.HandleFunc("/api/browse/test", s.handleBrowseTest)
	s.mux.HandleFunc("/api/browse/discover", s.handleBrowseDiscover)

	// Dashboards and cache management.
	s.mux.HandleFunc("/", s.handleHome)
	s.mux.HandleFunc("/status", s.handleStatusPage)
	s.mux.HandleFunc("/settings", s.handleSettingsPage)
	s.mux.HandleFunc("/browse", s.handleBrowsePage)
	s.mux.HandleFunc("/language", s.handleLanguage)
	s.mux.HandleFunc("/cache", s.handleCache)
	s.mux.HandleFunc("/cache/", s.handleCacheEntry)
}
