package service

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sublayer/sublayer/internal/cache"
	"github.com/sublayer/sublayer/internal/catalog"
	"github.com/sublayer/sublayer/internal/config"
	"github.com/sublayer/sublayer/internal/errs"
	"github.com/sublayer/sublayer/internal/progress"
	"github.com/sublayer/sublayer/internal/subtitle"
	"github.com/sublayer/sublayer/internal/translator"
)

const sampleSRT = "1\n00:00:01,000 --> 00:00:02,000\nHello\n\n2\n00:00:03,000 --> 00:00:04,500\nGoodbye\n"

type catalogSpy struct {
	searches  atomic.Int64
	downloads atomic.Int64

	searchResponse *catalog.SearchResponse
	download       *catalog.Download
	downloadErr    error
}

func (c *catalogSpy) Search(ctx context.Context, filters catalog.SearchFilters) (*catalog.SearchResponse, error) {
	c.searches.Add(1)
	return c.searchResponse, nil
}

func (c *catalogSpy) DownloadSubtitle(ctx context.Context, fileID int64) (*catalog.Download, error) {
	c.downloads.Add(1)
	if c.downloadErr != nil {
		return nil, c.downloadErr
	}
	return c.download, nil
}

type engineSpy struct {
	calls atomic.Int64
	// transform rewrites each cue text; identity when nil.
	transform func(string) string
}

func (e *engineSpy) TranslateCues(ctx context.Context, cues []subtitle.Cue, p translator.Params) ([]subtitle.Cue, error) {
	e.calls.Add(1)
	out := make([]subtitle.Cue, len(cues))
	copy(out, cues)
	if e.transform != nil {
		for i := range out {
			out[i].Text = e.transform(out[i].Text)
		}
	}
	if p.Progress != nil {
		p.Progress(len(cues))
	}
	return out, nil
}

func newTestOrchestrator(t *testing.T, cat Catalog, engine Engine) *Orchestrator {
	t.Helper()
	store, err := cache.NewStore(t.TempDir())
	require.NoError(t, err)
	settings, err := config.NewSettingsStore(t.TempDir())
	require.NoError(t, err)
	return NewOrchestrator(cat, engine, store, progress.NewTracker(), settings)
}

func TestProxyDownload_SecondCallServedFromCache(t *testing.T) {
	cat := &catalogSpy{download: &catalog.Download{Content: sampleSRT, FileName: "movie.srt"}}
	engine := &engineSpy{transform: func(s string) string { return "[T] " + s }}
	o := newTestOrchestrator(t, cat, engine)

	first, name, err := o.ProxyDownloadAndTranslate(context.Background(), 42, subtitle.FormatSRT, "")
	require.NoError(t, err)
	assert.Equal(t, "movie.srt", name)
	assert.Contains(t, string(first), "[T] Hello")
	assert.EqualValues(t, 1, cat.downloads.Load())
	assert.EqualValues(t, 1, engine.calls.Load())

	second, _, err := o.ProxyDownloadAndTranslate(context.Background(), 42, subtitle.FormatSRT, "")
	require.NoError(t, err)

	assert.EqualValues(t, 1, cat.downloads.Load(), "cache hit must not touch the catalog")
	assert.EqualValues(t, 1, engine.calls.Load(), "cache hit must not invoke the model")
	assert.Equal(t, first, second)
}

func TestProxyDownload_EmptySubtitleRejected(t *testing.T) {
	cat := &catalogSpy{download: &catalog.Download{Content: "not a subtitle at all", FileName: "junk.srt"}}
	engine := &engineSpy{}
	o := newTestOrchestrator(t, cat, engine)

	_, _, err := o.ProxyDownloadAndTranslate(context.Background(), 7, subtitle.FormatSRT, "")
	require.Error(t, err)
	assert.Equal(t, errs.Empty, errs.KindOf(err))
	assert.EqualValues(t, 0, engine.calls.Load())
}

func TestProxyDownload_VTTConversion(t *testing.T) {
	cat := &catalogSpy{download: &catalog.Download{Content: sampleSRT, FileName: "movie.srt"}}
	o := newTestOrchestrator(t, cat, &engineSpy{})

	body, _, err := o.ProxyDownloadAndTranslate(context.Background(), 9, subtitle.FormatVTT, "")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(body), "WEBVTT"))
	assert.Contains(t, string(body), "00:00:01.000 --> 00:00:02.000")
}

func TestProxyDownload_NamePrecedence(t *testing.T) {
	cat := &catalogSpy{download: &catalog.Download{Content: sampleSRT}}
	o := newTestOrchestrator(t, cat, &engineSpy{})

	_, name, err := o.ProxyDownloadAndTranslate(context.Background(), 5, subtitle.FormatSRT, "requested.srt")
	require.NoError(t, err)
	assert.Equal(t, "requested.srt", name)

	cat2 := &catalogSpy{download: &catalog.Download{Content: sampleSRT}}
	o2 := newTestOrchestrator(t, cat2, &engineSpy{})
	_, name2, err := o2.ProxyDownloadAndTranslate(context.Background(), 5, subtitle.FormatSRT, "")
	require.NoError(t, err)
	assert.Equal(t, "subtitle_5.srt", name2)
}

func TestProxySearch_RelabelsResults(t *testing.T) {
	cat := &catalogSpy{searchResponse: &catalog.SearchResponse{
		TotalCount: 2,
		Data: []catalog.SearchItem{
			{ID: "1", Type: "subtitle", Attributes: map[string]any{
				"language": "en",
				"release":  "Movie.2024.1080p",
				"votes":    float64(12),
			}},
			{ID: "2", Type: "subtitle", Attributes: map[string]any{
				"language": "en",
			}},
		},
	}}
	o := newTestOrchestrator(t, cat, &engineSpy{})

	resp, err := o.ProxySearch(context.Background(), catalog.SearchFilters{Query: "movie"})
	require.NoError(t, err)

	first := resp.Data[0].Attributes
	assert.Equal(t, "he", first["language"])
	assert.Equal(t, true, first["ai_translated"])
	assert.Equal(t, true, first["machine_translated"])
	assert.Equal(t, "Movie.2024.1080p [Translated]", first["release"])
	// Unknown attributes survive untouched.
	assert.Equal(t, float64(12), first["votes"])

	second := resp.Data[1].Attributes
	assert.Equal(t, "he", second["language"])
	_, hasRelease := second["release"]
	assert.False(t, hasRelease)
}

func TestTranslateContent_NoCacheWrite(t *testing.T) {
	engine := &engineSpy{transform: func(s string) string { return "X" + s }}
	o := newTestOrchestrator(t, &catalogSpy{}, engine)

	out, err := o.TranslateContent(context.Background(), sampleSRT, "local.srt")
	require.NoError(t, err)
	assert.Contains(t, out, "XHello")

	entries, err := o.cache.List()
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestTranslateContent_EmptyRejected(t *testing.T) {
	o := newTestOrchestrator(t, &catalogSpy{}, &engineSpy{})

	_, err := o.TranslateContent(context.Background(), "", "x.srt")
	require.Error(t, err)
	assert.Equal(t, errs.Empty, errs.KindOf(err))
}

func TestTranslateEmbedded_CachedByFingerprint(t *testing.T) {
	engine := &engineSpy{transform: func(s string) string { return "[T] " + s }}
	o := newTestOrchestrator(t, &catalogSpy{}, engine)

	first, err := o.TranslateEmbedded(context.Background(), "abc123", "show.mkv track 0", sampleSRT, "/media/show.mkv", 0)
	require.NoError(t, err)

	second, err := o.TranslateEmbedded(context.Background(), "abc123", "show.mkv track 0", sampleSRT, "/media/show.mkv", 0)
	require.NoError(t, err)

	assert.EqualValues(t, 1, engine.calls.Load())
	assert.Equal(t, first, second)

	entries, err := o.cache.List()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "/media/show.mkv", entries[0].Metadata.VideoPath)
}

func TestIsCached(t *testing.T) {
	cat := &catalogSpy{download: &catalog.Download{Content: sampleSRT, FileName: "movie.srt"}}
	o := newTestOrchestrator(t, cat, &engineSpy{})

	assert.False(t, o.IsCached(11))
	_, _, err := o.ProxyDownloadAndTranslate(context.Background(), 11, subtitle.FormatSRT, "")
	require.NoError(t, err)
	assert.True(t, o.IsCached(11))
}

func TestLanguageCode(t *testing.T) {
	assert.Equal(t, "he", LanguageCode("Hebrew"))
	assert.Equal(t, "he", LanguageCode("Hebrew (RTL)"))
	assert.Equal(t, "es", LanguageCode("Spanish"))
	assert.Equal(t, "fa", LanguageCode("farsi"))
	assert.Equal(t, "de", LanguageCode("de"))
	assert.Equal(t, "und", LanguageCode("Klingonish"))
}

func TestEmbeddedFingerprint(t *testing.T) {
	fp := EmbeddedFingerprint("/media/Show S01E01 (2020).mkv", 2)
	assert.Equal(t, EmbeddedFingerprint("/media/Show S01E01 (2020).mkv", 2), fp)
	assert.NotEqual(t, EmbeddedFingerprint("/media/Show S01E01 (2020).mkv", 3), fp)
	assert.NotContains(t, fp, "/")
	assert.NotContains(t, fp, " ")

	// Windows-style separators select the same base name.
	assert.Equal(t, fp, EmbeddedFingerprint(`C:\media\Show S01E01 (2020).mkv`, 2))
}

func TestCachedTranslation(t *testing.T) {
	engine := &engineSpy{transform: func(s string) string { return "[T] " + s }}
	o := newTestOrchestrator(t, &catalogSpy{}, engine)

	_, ok := o.CachedTranslation("abc123")
	assert.False(t, ok)

	stored, err := o.TranslateEmbedded(context.Background(), "abc123", "show.mkv track 0", sampleSRT, "/media/show.mkv", 0)
	require.NoError(t, err)

	loaded, ok := o.CachedTranslation("abc123")
	require.True(t, ok)
	assert.Equal(t, stored, loaded)
}
