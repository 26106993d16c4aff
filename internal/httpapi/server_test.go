package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sublayer/sublayer/internal/batch"
	"github.com/sublayer/sublayer/internal/cache"
	"github.com/sublayer/sublayer/internal/catalog"
	"github.com/sublayer/sublayer/internal/config"
	"github.com/sublayer/sublayer/internal/discovery"
	"github.com/sublayer/sublayer/internal/errs"
	"github.com/sublayer/sublayer/internal/index"
	"github.com/sublayer/sublayer/internal/llm"
	"github.com/sublayer/sublayer/internal/media"
	"github.com/sublayer/sublayer/internal/progress"
	"github.com/sublayer/sublayer/internal/service"
	"github.com/sublayer/sublayer/internal/subtitle"
	"github.com/sublayer/sublayer/internal/vfs"
)

const translatedSRT = "1\n00:00:01,000 --> 00:00:02,000\nShalom\n\n"

type proxySpy struct {
	searchResponse *catalog.SearchResponse
	searchErr      error
	gotFilters     catalog.SearchFilters

	downloadBytes []byte
	downloadName  string
	downloadErr   error
	downloads     int
	gotFileID     int64

	translated          string
	translateErr        error
	translateCalls      int
	embeddedFingerprint string

	cached    map[string]string
	cachedIDs map[int64]bool
}

func (p *proxySpy) ProxySearch(_ context.Context, filters catalog.SearchFilters) (*catalog.SearchResponse, error) {
	p.gotFilters = filters
	return p.searchResponse, p.searchErr
}

func (p *proxySpy) ProxyDownloadAndTranslate(_ context.Context, fileID int64, _ subtitle.Format, _ string) ([]byte, string, error) {
	p.downloads++
	p.gotFileID = fileID
	return p.downloadBytes, p.downloadName, p.downloadErr
}

func (p *proxySpy) TranslateContent(_ context.Context, _, _ string) (string, error) {
	p.translateCalls++
	return p.translated, p.translateErr
}

func (p *proxySpy) TranslateEmbedded(_ context.Context, fingerprint, _, _, _ string, _ int) (string, error) {
	p.translateCalls++
	p.embeddedFingerprint = fingerprint
	return p.translated, p.translateErr
}

func (p *proxySpy) CachedTranslation(fingerprint string) (string, bool) {
	content, ok := p.cached[fingerprint]
	return content, ok
}

func (p *proxySpy) IsCached(fileID int64) bool {
	return p.cachedIDs[fileID]
}

type batchSpy struct {
	record      batch.Record
	analyzeErr  error
	startErr    error
	analyzed    string
	startedLang string
	cancelled   bool
}

func (b *batchSpy) Analyze(_ context.Context, folder string) (batch.Record, error) {
	b.analyzed = folder
	return b.record, b.analyzeErr
}

func (b *batchSpy) Start(targetLang string) error {
	b.startedLang = targetLang
	return b.startErr
}

func (b *batchSpy) Progress() batch.Record { return b.record }
func (b *batchSpy) Cancel()                { b.cancelled = true }

type indexSpy struct {
	records map[int64]index.Record
	nextID  int64
}

func newIndexSpy() *indexSpy {
	return &indexSpy{records: make(map[int64]index.Record)}
}

func (i *indexSpy) Add(_ context.Context, fileName, content string) (index.Record, error) {
	i.nextID++
	record := index.Record{ID: i.nextID, FileName: fileName, Title: fileName, Content: content}
	i.records[i.nextID] = record
	return record, nil
}

func (i *indexSpy) Search(_ context.Context, _ string) ([]index.Record, error) {
	var records []index.Record
	for _, record := range i.records {
		records = append(records, record)
	}
	return records, nil
}

func (i *indexSpy) Get(_ context.Context, id int64) (index.Record, error) {
	record, ok := i.records[id]
	if !ok {
		return index.Record{}, errs.New(errs.BadInput, "no such subtitle")
	}
	return record, nil
}

type demuxSpy struct {
	available bool
	tracks    []media.Track
	content   string
	extracted int
}

func (d *demuxSpy) Available() bool { return d.available }

func (d *demuxSpy) SubtitleTracks(_ context.Context, _ string) ([]media.Track, error) {
	return d.tracks, nil
}

func (d *demuxSpy) ExtractTrack(_ context.Context, _ string, _ int) (string, error) {
	d.extracted++
	return d.content, nil
}

type browserSpy struct {
	devices []discovery.Device
}

func (b *browserSpy) Discover(_ context.Context) []discovery.Device { return b.devices }

type fakeFS struct {
	configured      bool
	connectionErr   error
	entries         map[string][]vfs.Entry
	subtitles       map[string]string
	directWrites    map[string]string
	subtitleWrites  map[string]string
	downloads       int
	headerDownloads int
}

func newFakeFS() *fakeFS {
	return &fakeFS{
		configured:     true,
		entries:        make(map[string][]vfs.Entry),
		subtitles:      make(map[string]string),
		directWrites:   make(map[string]string),
		subtitleWrites: make(map[string]string),
	}
}

func (f *fakeFS) IsConfigured() bool    { return f.configured }
func (f *fakeFS) TestConnection() error { return f.connectionErr }

func (f *fakeFS) List(dir string) ([]vfs.Entry, error) { return f.entries[dir], nil }

func (f *fakeFS) ReadSubtitle(subtitlePath string) (string, error) {
	if content, ok := f.subtitles[subtitlePath]; ok {
		return content, nil
	}
	return "", errs.New(errs.BadInput, "subtitle not found")
}

func (f *fakeFS) WriteSubtitle(videoPath, content, langCode string) (string, error) {
	p := strings.TrimSuffix(videoPath, filepath.Ext(videoPath)) + "." + langCode + ".srt"
	f.subtitleWrites[p] = content
	return p, nil
}

func (f *fakeFS) WriteSubtitleDirect(subtitlePath, content string) error {
	f.directWrites[subtitlePath] = content
	return nil
}

func (f *fakeFS) DownloadToTemp(string) (string, error) {
	f.downloads++
	return tempFile("video_")
}

func (f *fakeFS) DownloadHeaderToTemp(string, int64) (string, error) {
	f.headerDownloads++
	return tempFile("video_header_")
}

func (f *fakeFS) ExtractVideoTitle(videoPath string) string {
	return vfs.ExtractTitle(videoPath)
}

func tempFile(prefix string) (string, error) {
	tmp, err := os.CreateTemp("", prefix+"*")
	if err != nil {
		return "", err
	}
	defer tmp.Close()
	if _, err := tmp.WriteString("VIDEO"); err != nil {
		return "", err
	}
	return tmp.Name(), nil
}

type harness struct {
	server   *Server
	proxy    *proxySpy
	batch    *batchSpy
	fs       *fakeFS
	demux    *demuxSpy
	idx      *indexSpy
	settings *config.SettingsStore
	cache    *cache.Store
	tracker  *progress.Tracker
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	settings, err := config.NewSettingsStore(t.TempDir())
	require.NoError(t, err)
	store, err := cache.NewStore(t.TempDir())
	require.NoError(t, err)

	h := &harness{
		proxy: &proxySpy{
			translated: translatedSRT,
			cached:     make(map[string]string),
			cachedIDs:  make(map[int64]bool),
		},
		batch:    &batchSpy{},
		fs:       newFakeFS(),
		demux:    &demuxSpy{available: true},
		idx:      newIndexSpy(),
		settings: settings,
		cache:    store,
		tracker:  progress.NewTracker(),
	}
	h.server = NewServer(
		h.proxy, h.batch, settings, store, h.tracker,
		func() vfs.FileSystem { return h.fs }, h.demux,
		WithIndex(h.idx),
	)
	return h
}

func (h *harness) do(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	return payload
}

func TestLogin_IssuesToken(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodPost, "/api/v1/login", map[string]string{
		"username": "alice", "password": "secret",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	payload := decodeBody(t, rec)
	assert.NotEmpty(t, payload["token"])
	assert.Contains(t, payload["base_url"], "http://")

	user := payload["user"].(map[string]any)
	assert.Equal(t, true, user["vip"])
	assert.Equal(t, float64(1000), user["allowed_downloads"])
}

func TestLogout(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodPost, "/api/v1/login", map[string]string{"username": "alice"})
	token := decodeBody(t, rec)["token"].(string)

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/logout", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	out := httptest.NewRecorder()
	h.server.Handler().ServeHTTP(out, req)

	require.Equal(t, http.StatusOK, out.Code)
	assert.Equal(t, "Logged out successfully", decodeBody(t, out)["message"])
}

func TestSearch_ParentIDsFallBack(t *testing.T) {
	h := newHarness(t)
	h.proxy.searchResponse = &catalog.SearchResponse{
		TotalCount: 1, PerPage: 20, Page: 1,
		Data: []catalog.SearchItem{{ID: "1", Type: "subtitle"}},
	}

	rec := h.do(t, http.MethodGet, "/api/v1/subtitles?parent_imdb_id=12345&query=show", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "12345", h.proxy.gotFilters.IMDBID)
	assert.Equal(t, "show", h.proxy.gotFilters.Query)
}

func TestSearch_FallsBackToIndexOnCatalogError(t *testing.T) {
	h := newHarness(t)
	h.proxy.searchErr = errs.New(errs.UpstreamUnavailable, "catalog down")
	_, err := h.idx.Add(context.Background(), "The.Matrix.srt", translatedSRT)
	require.NoError(t, err)

	rec := h.do(t, http.MethodGet, "/api/v1/subtitles?query=matrix", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var response catalog.SearchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	require.Len(t, response.Data, 1)

	item := response.Data[0]
	assert.Equal(t, "-1", item.ID)
	assert.Equal(t, true, item.Attributes["ai_translated"])
	files := item.Attributes["files"].([]any)
	assert.Equal(t, float64(-1), files[0].(map[string]any)["file_id"])
}

func TestSearch_CatalogErrorWithoutIndexHitsIsEmpty(t *testing.T) {
	h := newHarness(t)
	h.proxy.searchErr = errs.New(errs.UpstreamUnavailable, "catalog down")

	rec := h.do(t, http.MethodGet, "/api/v1/subtitles?query=nothing", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var response catalog.SearchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Empty(t, response.Data)
	assert.Equal(t, 20, response.PerPage)
}

func TestDownloadRequest_LinkPointsBack(t *testing.T) {
	h := newHarness(t)
	h.proxy.cachedIDs[42] = true

	rec := h.do(t, http.MethodPost, "/api/v1/download", map[string]any{
		"file_id": 42, "sub_format": "vtt",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	payload := decodeBody(t, rec)
	assert.Contains(t, payload["link"], "/api/v1/download/42/subtitle.vtt")
	assert.Equal(t, float64(999), payload["remaining"])
	assert.Contains(t, payload["message"], "cached")
}

func TestDownloadFile_ServesTranslation(t *testing.T) {
	h := newHarness(t)
	h.proxy.downloadBytes = []byte(translatedSRT)
	h.proxy.downloadName = "movie.he.srt"

	rec := h.do(t, http.MethodGet, "/api/v1/download/42/subtitle.srt", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(42), h.proxy.gotFileID)
	assert.Equal(t, translatedSRT, rec.Body.String())
	assert.Equal(t, "application/x-subrip; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment")
}

func TestDownloadFile_NegativeIDServedFromIndex(t *testing.T) {
	h := newHarness(t)
	record, err := h.idx.Add(context.Background(), "local.srt", translatedSRT)
	require.NoError(t, err)

	rec := h.do(t, http.MethodGet, "/api/v1/download/-1/subtitle.srt", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "index_1", h.proxy.embeddedFingerprint)
	assert.Equal(t, translatedSRT, rec.Body.String())
	assert.Zero(t, h.proxy.downloads)
	_ = record
}

func TestDownloadFile_VTTSuffixConverts(t *testing.T) {
	h := newHarness(t)
	_, err := h.idx.Add(context.Background(), "local.srt", translatedSRT)
	require.NoError(t, err)

	rec := h.do(t, http.MethodGet, "/api/v1/download/-1/subtitle.vtt", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Body.String(), "WEBVTT"))
	assert.Equal(t, "text/vtt; charset=utf-8", rec.Header().Get("Content-Type"))
}

func TestUpload_AddsToIndex(t *testing.T) {
	h := newHarness(t)

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	part, err := form.CreateFormFile("file", "uploaded.srt")
	require.NoError(t, err)
	_, err = part.Write([]byte(translatedSRT))
	require.NoError(t, err)
	require.NoError(t, form.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/upload", &body)
	req.Header.Set("Content-Type", form.FormDataContentType())
	rec := httptest.NewRecorder()
	h.server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	payload := decodeBody(t, rec)
	assert.Equal(t, float64(-1), payload["file_id"])
	assert.Equal(t, "uploaded.srt", payload["file_name"])
}

func TestBrowse_NotConfigured(t *testing.T) {
	h := newHarness(t)
	h.fs.configured = false

	rec := h.do(t, http.MethodGet, "/api/browse", nil)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeBody(t, rec)["error"], "not configured")
}

func TestBrowse_ListsEntries(t *testing.T) {
	h := newHarness(t)
	h.fs.entries["movies"] = []vfs.Entry{
		{Name: "a.mkv", Path: "movies/a.mkv", IsVideo: true},
	}

	rec := h.do(t, http.MethodGet, "/api/browse?path=movies", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	payload := decodeBody(t, rec)
	assert.Equal(t, "movies", payload["path"])
	assert.Len(t, payload["entries"], 1)
}

func TestBrowseTranslateLocal_WritesNextToSource(t *testing.T) {
	h := newHarness(t)
	h.fs.subtitles["movies/film.en.srt"] = "1\n00:00:01,000 --> 00:00:02,000\nHello\n\n"

	rec := h.do(t, http.MethodPost, "/api/browse/translate-local", map[string]string{
		"subtitlePath": "movies/film.en.srt",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	payload := decodeBody(t, rec)
	assert.Equal(t, "movies/film.he.srt", payload["subtitlePath"])

	written := h.fs.directWrites["movies/film.he.srt"]
	assert.True(t, strings.HasPrefix(written, "\uFEFF"))
	assert.Contains(t, written, "Shalom")
}

func TestBrowseEmbeddedTracks_WithoutFFmpeg(t *testing.T) {
	h := newHarness(t)
	h.demux.available = false

	rec := h.do(t, http.MethodGet, "/api/browse/embedded-tracks?path=movies/a.mkv", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	payload := decodeBody(t, rec)
	assert.Equal(t, false, payload["available"])
	assert.NotEmpty(t, payload["message"])
}

func TestBrowseEmbeddedTracks_ProbesHeaderOnly(t *testing.T) {
	h := newHarness(t)
	h.demux.tracks = []media.Track{{Index: 0, Language: "eng", Codec: "subrip"}}

	rec := h.do(t, http.MethodGet, "/api/browse/embedded-tracks?path=movies/a.mkv", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	payload := decodeBody(t, rec)
	assert.Equal(t, true, payload["available"])
	assert.Len(t, payload["tracks"], 1)
	assert.Equal(t, 1, h.fs.headerDownloads)
	assert.Zero(t, h.fs.downloads)
}

func TestBrowseTranslateEmbedded_CachedSkipsVideoDownload(t *testing.T) {
	h := newHarness(t)
	fingerprint := service.EmbeddedFingerprint("movies/a.mkv", 1)
	h.proxy.cached[fingerprint] = translatedSRT

	rec := h.do(t, http.MethodPost, "/api/browse/translate-embedded", map[string]any{
		"videoPath": "movies/a.mkv", "trackIndex": 1,
	})

	require.Equal(t, http.StatusOK, rec.Code)
	payload := decodeBody(t, rec)
	assert.Equal(t, true, payload["cached"])
	assert.Zero(t, h.fs.downloads)

	written := h.fs.subtitleWrites["movies/a.he.srt"]
	assert.True(t, strings.HasPrefix(written, "\uFEFF"))
}

func TestBrowseTranslateEmbedded_ExtractsAndWrites(t *testing.T) {
	h := newHarness(t)
	h.demux.content = "1\n00:00:01,000 --> 00:00:02,000\nHello\n\n"

	rec := h.do(t, http.MethodPost, "/api/browse/translate-embedded", map[string]any{
		"videoPath": "movies/a.mkv", "trackIndex": 0,
	})

	require.Equal(t, http.StatusOK, rec.Code)
	payload := decodeBody(t, rec)
	assert.Equal(t, false, payload["cached"])
	assert.Equal(t, 1, h.fs.downloads)
	assert.Equal(t, 1, h.demux.extracted)
	assert.Equal(t, service.EmbeddedFingerprint("movies/a.mkv", 0), h.proxy.embeddedFingerprint)
	assert.Contains(t, h.fs.subtitleWrites, "movies/a.he.srt")
}

func TestBatchEndpoints(t *testing.T) {
	h := newHarness(t)
	h.batch.record = batch.Record{
		BatchID: "b1", Status: batch.StatusTranslating, Total: 3, Completed: 1,
	}

	rec := h.do(t, http.MethodPost, "/api/browse/batch-analyze", map[string]string{"folder": "movies"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "movies", h.batch.analyzed)

	rec = h.do(t, http.MethodPost, "/api/browse/batch-start", map[string]string{})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Hebrew", h.batch.startedLang)

	rec = h.do(t, http.MethodGet, "/api/browse/batch-progress", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	payload := decodeBody(t, rec)
	assert.Equal(t, true, payload["active"])

	rec = h.do(t, http.MethodPost, "/api/browse/batch-cancel", map[string]string{})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, h.batch.cancelled)
}

func TestBrowseProgress_CombinesTrackerAndBatch(t *testing.T) {
	h := newHarness(t)
	h.tracker.Begin("fp1", "Movie.srt", 100)
	defer h.tracker.End("fp1")

	rec := h.do(t, http.MethodGet, "/api/browse/progress", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	payload := decodeBody(t, rec)
	assert.Len(t, payload["translations"], 1)
	assert.Contains(t, payload, "batch")
}

func TestBrowseMode_RejectsUnknown(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodPost, "/api/browse/mode", map[string]string{"mode": "ftp"})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(t, http.MethodPost, "/api/browse/mode", map[string]string{"mode": "smb"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "smb", h.settings.Get().BrowseMode)
}

func TestBrowseDiscover_WithoutBrowser(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodGet, "/api/browse/discover", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeBody(t, rec)["devices"])
}

func TestBrowseDiscover_ReturnsDevices(t *testing.T) {
	h := newHarness(t)
	h.server = NewServer(
		h.proxy, h.batch, h.settings, h.cache, h.tracker,
		func() vfs.FileSystem { return h.fs }, h.demux,
		WithIndex(h.idx),
		WithNASBrowser(&browserSpy{devices: []discovery.Device{
			{Name: "nas", Host: "10.0.0.2", Port: 445},
		}}),
	)

	rec := h.do(t, http.MethodGet, "/api/browse/discover", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	devices := decodeBody(t, rec)["devices"].([]any)
	require.Len(t, devices, 1)
	assert.Equal(t, "nas", devices[0].(map[string]any)["name"])
}

func TestSettings_MasksSecrets(t *testing.T) {
	h := newHarness(t)
	settings := h.settings.Get()
	settings.OpenSubtitlesAPIKey = "secretapikey1234"
	settings.OpenSubtitlesPassword = "hunter2hunter2"
	require.NoError(t, h.settings.Update(settings))

	rec := h.do(t, http.MethodGet, "/api/settings", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	payload := decodeBody(t, rec)
	assert.Equal(t, "secr***1234", payload["openSubtitlesApiKey"])
	assert.Equal(t, true, payload["openSubtitlesPasswordSet"])
	assert.NotContains(t, rec.Body.String(), "hunter2")
}

func TestSettings_MaskedEchoKeepsSecrets(t *testing.T) {
	h := newHarness(t)
	settings := h.settings.Get()
	settings.OpenSubtitlesAPIKey = "secretapikey1234"
	settings.OpenSubtitlesPassword = "hunter2hunter2"
	require.NoError(t, h.settings.Update(settings))

	// Echo the GET payload back: masked key, empty password, one change.
	rec := h.do(t, http.MethodPost, "/api/settings", map[string]any{
		"openSubtitlesApiKey":   "secr***1234",
		"openSubtitlesPassword": "",
		"targetLanguage":        "Spanish",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	updated := h.settings.Get()
	assert.Equal(t, "secretapikey1234", updated.OpenSubtitlesAPIKey)
	assert.Equal(t, "hunter2hunter2", updated.OpenSubtitlesPassword)
	assert.Equal(t, "Spanish", updated.TargetLanguage)
}

func TestSettings_PartialUpdateLeavesOthers(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodPost, "/api/settings", map[string]any{
		"ollamaModel": "llama3:8b",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	updated := h.settings.Get()
	assert.Equal(t, "llama3:8b", updated.OllamaModel)
	assert.Equal(t, "Hebrew", updated.TargetLanguage)
}

func TestOllamaEndpoints_WithoutManager(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodGet, "/api/settings/ollama/models", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decodeBody(t, rec)["available"])

	rec = h.do(t, http.MethodGet, "/api/settings/ollama/pull/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var status llm.PullStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "idle", status.State)
}

func TestLanguageForm(t *testing.T) {
	h := newHarness(t)

	form := url.Values{"language": {"Arabic"}}
	req := httptest.NewRequest(http.MethodPost, "/language", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
	assert.Equal(t, "Arabic", h.settings.Get().TargetLanguage)
}

func TestCacheEndpoints(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.cache.StoreOriginal("42", translatedSRT, cache.Metadata{FileName: "movie.srt"}))
	require.NoError(t, h.cache.StoreTranslated("42", "he", translatedSRT))

	rec := h.do(t, http.MethodGet, "/cache", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), decodeBody(t, rec)["count"])

	rec = h.do(t, http.MethodDelete, "/cache/42", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = h.do(t, http.MethodGet, "/cache", nil)
	assert.Equal(t, float64(0), decodeBody(t, rec)["count"])

	require.NoError(t, h.cache.StoreOriginal("43", translatedSRT, cache.Metadata{}))
	rec = h.do(t, http.MethodDelete, "/cache", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	entries, err := h.cache.List()
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestStatusPage_Renders(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.cache.StoreOriginal("42", translatedSRT, cache.Metadata{FileName: "movie.srt"}))
	h.tracker.Begin("fp1", "Movie.srt", 100)
	defer h.tracker.End("fp1")

	rec := h.do(t, http.MethodGet, "/status", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	body := rec.Body.String()
	assert.Contains(t, body, "Movie.srt")
	assert.Contains(t, body, "In Progress")
}

func TestHome_RedirectsToStatus(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodGet, "/", nil)

	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/status", rec.Header().Get("Location"))
}

func TestTranslatedPath(t *testing.T) {
	assert.Equal(t, "movies/film.he.srt", translatedPath("movies/film.en.srt", "he"))
	assert.Equal(t, "movies/film.he.srt", translatedPath("movies/film.eng.srt", "he"))
	assert.Equal(t, "movies/film.he.srt", translatedPath("movies/film.srt", "he"))
	assert.Equal(t, "noext.he.srt", translatedPath("noext", "he"))
}
