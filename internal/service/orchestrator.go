// Package service is the subtitle orchestrator: it front-ends the catalog
// proxy flow (search relabeling, download-translate-cache) and the ad-hoc
// content translation entrypoint.
package service

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/sublayer/sublayer/internal/cache"
	"github.com/sublayer/sublayer/internal/catalog"
	"github.com/sublayer/sublayer/internal/config"
	"github.com/sublayer/sublayer/internal/errs"
	"github.com/sublayer/sublayer/internal/progress"
	"github.com/sublayer/sublayer/internal/subtitle"
	"github.com/sublayer/sublayer/internal/translator"
	"github.com/sublayer/sublayer/pkg/file"
	"github.com/sublayer/sublayer/pkg/log"
)

// Catalog is the slice of the catalog client the orchestrator needs.
type Catalog interface {
	Search(ctx context.Context, filters catalog.SearchFilters) (*catalog.SearchResponse, error)
	DownloadSubtitle(ctx context.Context, fileID int64) (*catalog.Download, error)
}

// Engine is the translation capability.
type Engine interface {
	TranslateCues(ctx context.Context, cues []subtitle.Cue, p translator.Params) ([]subtitle.Cue, error)
}

// Orchestrator wires catalog, codec, engine, cache and the progress gate
// into the proxy flows.
type Orchestrator struct {
	catalog  Catalog
	engine   Engine
	cache    *cache.Store
	progress *progress.Tracker
	settings *config.SettingsStore

	localSeq atomic.Int64
}

func NewOrchestrator(cat Catalog, engine Engine, store *cache.Store, tracker *progress.Tracker, settings *config.SettingsStore) *Orchestrator {
	return &Orchestrator{
		catalog:  cat,
		engine:   engine,
		cache:    store,
		progress: tracker,
		settings: settings,
	}
}

// ProxySearch passes the search upstream (English sources) and relabels
// every hit as a machine translation into the configured target language.
func (o *Orchestrator) ProxySearch(ctx context.Context, filters catalog.SearchFilters) (*catalog.SearchResponse, error) {
	response, err := o.catalog.Search(ctx, filters)
	if err != nil {
		return nil, err
	}

	code := LanguageCode(o.settings.Get().TargetLanguage)
	for i := range response.Data {
		attrs := response.Data[i].Attributes
		if attrs == nil {
			continue
		}
		attrs["language"] = code
		attrs["ai_translated"] = true
		attrs["machine_translated"] = true
		if release, ok := attrs["release"].(string); ok {
			attrs["release"] = release + " [Translated]"
		}
	}
	return response, nil
}

// IsCached probes for a finished translation of the catalog file.
func (o *Orchestrator) IsCached(fileID int64) bool {
	code := LanguageCode(o.settings.Get().TargetLanguage)
	return o.cache.Has(fingerprintFor(fileID), code)
}

func fingerprintFor(fileID int64) string {
	return fmt.Sprintf("%d", fileID)
}

// ProxyDownloadAndTranslate serves a translated subtitle for a catalog file
// id: from cache when possible, otherwise download, translate under the
// gate, cache and return. The returned name is the display file name.
func (o *Orchestrator) ProxyDownloadAndTranslate(ctx context.Context, fileID int64, format subtitle.Format, requestedName string) ([]byte, string, error) {
	settings := o.settings.Get()
	targetLang := settings.TargetLanguage
	code := LanguageCode(targetLang)
	fingerprint := fingerprintFor(fileID)

	if o.cache.Has(fingerprint, code) {
		log.Info("Cache hit for file %d (%s)", fileID, code)
		translated, err := o.cache.LoadTranslated(fingerprint, code)
		if err != nil {
			return nil, "", err
		}
		name := displayName("", requestedName, fileID)
		return convertFormat(translated, format), name, nil
	}

	download, err := o.catalog.DownloadSubtitle(ctx, fileID)
	if err != nil {
		return nil, "", err
	}
	name := displayName(download.FileName, requestedName, fileID)

	_, cues := subtitle.Parse(download.Content)
	if len(cues) == 0 {
		return nil, "", errs.New(errs.Empty, "subtitle contains no cues").
			WithContext("fileId", fileID)
	}

	o.progress.Begin(fingerprint, name, len(cues))
	defer o.progress.End(fingerprint)

	// The original is stored first so the entry is visible as in-progress.
	if err := o.cache.StoreOriginal(fingerprint, download.Content, cache.Metadata{
		FileName: name,
		FileID:   fileID,
	}); err != nil {
		return nil, "", err
	}

	translated, err := o.engine.TranslateCues(ctx, cues, translator.Params{
		TargetLanguage:      targetLang,
		BatchSize:           settings.TranslationBatchSize,
		SkipHearingImpaired: settings.SkipHearingImpaired,
		Progress:            func(done int) { o.progress.Update(fingerprint, done) },
	})
	if err != nil {
		return nil, "", err
	}

	srt := subtitle.GenerateSRT(translated)
	if err := o.cache.StoreTranslated(fingerprint, code, srt); err != nil {
		return nil, "", err
	}

	return convertFormat(srt, format), name, nil
}

// TranslateContent translates raw subtitle text without touching the cache.
// It still takes the translation gate, visible under a synthetic local
// fingerprint.
func (o *Orchestrator) TranslateContent(ctx context.Context, content, displayAs string) (string, error) {
	settings := o.settings.Get()

	_, cues := subtitle.Parse(content)
	if len(cues) == 0 {
		return "", errs.New(errs.Empty, "subtitle contains no cues")
	}

	fingerprint := fmt.Sprintf("local_%d", o.localSeq.Add(1))
	if displayAs == "" {
		displayAs = "Ad-hoc translation"
	}

	o.progress.Begin(fingerprint, displayAs, len(cues))
	defer o.progress.End(fingerprint)

	translated, err := o.engine.TranslateCues(ctx, cues, translator.Params{
		TargetLanguage:      settings.TargetLanguage,
		BatchSize:           settings.TranslationBatchSize,
		SkipHearingImpaired: settings.SkipHearingImpaired,
		Progress:            func(done int) { o.progress.Update(fingerprint, done) },
	})
	if err != nil {
		return "", err
	}

	return subtitle.GenerateSRT(translated), nil
}

// EmbeddedFingerprint derives the cache fingerprint for an embedded track
// of a video file.
func EmbeddedFingerprint(videoPath string, trackIndex int) string {
	name := videoPath
	for i := len(name) - 1; i >= 0; i-- {
		if name[i] == '/' || name[i] == '\\' {
			name = name[i+1:]
			break
		}
	}
	return fmt.Sprintf("embedded_%s_track%d", file.SanitizeName(name), trackIndex)
}

// CachedTranslation returns the finished translation for a fingerprint in
// the configured target language, if present.
func (o *Orchestrator) CachedTranslation(fingerprint string) (string, bool) {
	code := LanguageCode(o.settings.Get().TargetLanguage)
	if !o.cache.Has(fingerprint, code) {
		return "", false
	}
	translated, err := o.cache.LoadTranslated(fingerprint, code)
	if err != nil {
		return "", false
	}
	return translated, true
}

// TranslateEmbedded translates extracted embedded-track content and caches
// it under a content-backed fingerprint.
func (o *Orchestrator) TranslateEmbedded(ctx context.Context, fingerprint, name, content, videoPath string, trackIndex int) (string, error) {
	settings := o.settings.Get()
	code := LanguageCode(settings.TargetLanguage)

	if o.cache.Has(fingerprint, code) {
		return o.cache.LoadTranslated(fingerprint, code)
	}

	_, cues := subtitle.Parse(content)
	if len(cues) == 0 {
		return "", errs.New(errs.Empty, "extracted track contains no cues").
			WithContext("fingerprint", fingerprint)
	}

	o.progress.Begin(fingerprint, name, len(cues))
	defer o.progress.End(fingerprint)

	if err := o.cache.StoreOriginal(fingerprint, content, cache.Metadata{
		FileName:   name,
		VideoPath:  videoPath,
		TrackIndex: trackIndex,
	}); err != nil {
		return "", err
	}

	translated, err := o.engine.TranslateCues(ctx, cues, translator.Params{
		TargetLanguage:      settings.TargetLanguage,
		BatchSize:           settings.TranslationBatchSize,
		SkipHearingImpaired: settings.SkipHearingImpaired,
		Progress:            func(done int) { o.progress.Update(fingerprint, done) },
	})
	if err != nil {
		return "", err
	}

	srt := subtitle.GenerateSRT(translated)
	if err := o.cache.StoreTranslated(fingerprint, code, srt); err != nil {
		return "", err
	}
	return srt, nil
}

// displayName picks the subtitle file name: catalog name, then the name the
// client asked for, then a synthetic fallback.
func displayName(actual, requested string, fileID int64) string {
	if actual != "" {
		return actual
	}
	if requested != "" {
		return requested
	}
	return fmt.Sprintf("subtitle_%d.srt", fileID)
}

// convertFormat re-renders cached SRT in the requested format.
func convertFormat(srt string, format subtitle.Format) []byte {
	if format != subtitle.FormatVTT {
		return []byte(srt)
	}
	_, cues := subtitle.Parse(srt)
	return []byte(subtitle.GenerateVTT(cues))
}
