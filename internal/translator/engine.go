// Package translator drives the LLM through subtitle translation: cues go
// out in marker-tagged batches, replies are parsed, cleaned and reshaped so
// every cue comes back with its timing and line structure intact.
package translator

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/sublayer/sublayer/internal/bidi"
	"github.com/sublayer/sublayer/internal/errs"
	"github.com/sublayer/sublayer/internal/llm"
	"github.com/sublayer/sublayer/internal/subtitle"
	"github.com/sublayer/sublayer/pkg/log"
)

// markerPattern locates "<<~i~>>" markers in a batch reply. The translation
// for a marker is everything up to the next marker (or the end of the
// reply), so a translation may span lines.
var markerPattern = regexp.MustCompile(`<<~(\d+)~>>`)

// hearingImpairedPattern matches one annotation-only line like
// "[music playing]" or "(door slams)".
var hearingImpairedPattern = regexp.MustCompile(`^\s*[\[\(][^\]\)]+[\]\)]\s*$`)

// Params configures a single translation run.
type Params struct {
	TargetLanguage string
	// BatchSize overrides the provider auto-tune when positive.
	BatchSize int
	// SkipHearingImpaired leaves annotation-only cues untranslated.
	SkipHearingImpaired bool
	// Progress, when set, receives the cumulative completed-cue count
	// after each batch.
	Progress func(completed int)
}

// Engine is the cue-batching translation driver.
type Engine struct {
	client         llm.Client
	sourceLanguage string
}

// NewEngine returns an engine translating from sourceLanguage (defaults to
// English) through the given client.
func NewEngine(client llm.Client, sourceLanguage string) *Engine {
	if sourceLanguage == "" {
		sourceLanguage = "English"
	}
	return &Engine{client: client, sourceLanguage: sourceLanguage}
}

// TranslateCues translates cues to the target language. The result has the
// same length as the input and every cue keeps its index, start, end and
// visible line count. Cues that defeat both the batch and the per-cue
// fallback keep their original text; the engine only errors when not a
// single cue could be translated.
func (e *Engine) TranslateCues(ctx context.Context, cues []subtitle.Cue, p Params) ([]subtitle.Cue, error) {
	if p.TargetLanguage == "" {
		return nil, errs.New(errs.BadInput, "target language is required")
	}
	if len(cues) == 0 {
		return []subtitle.Cue{}, nil
	}

	tuning := llm.TuningFor(e.client.Provider())
	batchSize := tuning.BatchSize
	if p.BatchSize > 0 {
		batchSize = p.BatchSize
	}

	log.Info("Starting translation of %d cues to %s (provider %s, batch size %d)",
		len(cues), p.TargetLanguage, e.client.Provider(), batchSize)

	out := make([]subtitle.Cue, 0, len(cues))
	var translated atomic.Int64

	for start := 0; start < len(cues); start += batchSize {
		end := start + batchSize
		if end > len(cues) {
			end = len(cues)
		}
		batch := cues[start:end]

		result, err := e.translateBatch(ctx, batch, p, &translated)
		if err != nil {
			log.Warn("Batch translation failed, falling back to per-cue: %v", err)
			result = e.translateIndividually(ctx, batch, p, &translated)
		}
		out = append(out, result...)

		if p.Progress != nil {
			p.Progress(len(out))
		}
	}

	if translated.Load() == 0 {
		return nil, errs.New(errs.UpstreamUnavailable, "no cue could be translated").
			WithContext("cues", len(cues)).
			WithContext("targetLanguage", p.TargetLanguage)
	}

	log.Info("Completed translation: %d/%d cues translated", translated.Load(), len(cues))
	return out, nil
}

// translateBatch sends one marker-tagged batch and maps the reply back by
// index. A reply with no parseable markers is an error so the caller can
// fall back per-cue.
func (e *Engine) translateBatch(ctx context.Context, batch []subtitle.Cue, p Params, translated *atomic.Int64) ([]subtitle.Cue, error) {
	skip := func(i int) bool {
		return p.SkipHearingImpaired && isHearingImpairedOnly(batch[i].Text)
	}

	allSkipped := true
	for i := range batch {
		if !skip(i) {
			allSkipped = false
			break
		}
	}
	if allSkipped {
		out := make([]subtitle.Cue, len(batch))
		copy(out, batch)
		translated.Add(int64(len(batch)))
		return out, nil
	}

	prompt := buildBatchPrompt(batch, p.TargetLanguage, skip)
	response, err := e.client.Complete(ctx, buildSystemPrompt(p.TargetLanguage), prompt)
	if err != nil {
		return nil, err
	}

	translations := parseBatchResponse(response, p.TargetLanguage)
	if len(translations) == 0 {
		return nil, errs.New(errs.UpstreamUnavailable, "batch reply contained no markers").
			WithContext("response", truncateForLog(response))
	}

	out := make([]subtitle.Cue, len(batch))
	for i, cue := range batch {
		out[i] = cue

		if skip(i) {
			translated.Add(1)
			continue
		}

		text, ok := translations[i]
		if !ok || strings.TrimSpace(text) == "" {
			log.Warn("No translation for cue at batch position %d, keeping original", i)
			continue
		}

		out[i].Text = finishCue(text, cue, p.TargetLanguage)
		translated.Add(1)
	}
	return out, nil
}

// parseBatchResponse extracts index to cleaned translation from a reply by
// slicing the text between consecutive markers.
func parseBatchResponse(response, targetLang string) map[int]string {
	translations := make(map[int]string)
	markers := markerPattern.FindAllStringSubmatchIndex(response, -1)
	for i, m := range markers {
		index, err := strconv.Atoi(response[m[2]:m[3]])
		if err != nil {
			continue
		}
		end := len(response)
		if i+1 < len(markers) {
			end = markers[i+1][0]
		}
		text := strings.TrimSpace(response[m[1]:end])
		if text == "" {
			continue
		}
		translations[index] = cleanResponse(text, targetLang)
	}
	return translations
}

// translateIndividually is the batch fallback: each cue goes to the LLM on
// its own, fanned out across the provider's thread budget. A cue whose
// individual call also fails keeps its original text.
func (e *Engine) translateIndividually(ctx context.Context, batch []subtitle.Cue, p Params, translated *atomic.Int64) []subtitle.Cue {
	out := make([]subtitle.Cue, len(batch))
	copy(out, batch)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(llm.TuningFor(e.client.Provider()).Threads)

	for i := range batch {
		i := i
		g.Go(func() error {
			text, err := e.translateSingle(gctx, batch[i], p)
			if err != nil {
				log.Warn("Individual translation failed for cue %d, keeping original: %v", batch[i].Index, err)
				return nil
			}
			out[i].Text = text
			translated.Add(1)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// translateSingle translates one cue through the delimiter protocol.
func (e *Engine) translateSingle(ctx context.Context, cue subtitle.Cue, p Params) (string, error) {
	if strings.TrimSpace(cue.Text) == "" {
		return cue.Text, nil
	}
	if p.SkipHearingImpaired && isHearingImpairedOnly(cue.Text) {
		return cue.Text, nil
	}

	prompt := buildSinglePrompt(cue.Text, e.sourceLanguage, p.TargetLanguage)
	response, err := e.client.Complete(ctx, buildSystemPrompt(p.TargetLanguage), prompt)
	if err != nil {
		return "", err
	}

	cleaned := cleanResponse(response, p.TargetLanguage)
	if cleaned == "" {
		return "", errs.New(errs.UpstreamUnavailable, "empty reply for cue").
			WithContext("cue", cue.Index)
	}
	return finishCue(cleaned, cue, p.TargetLanguage), nil
}

// finishCue applies line-count enforcement and bidi processing to a cleaned
// translation.
func finishCue(text string, original subtitle.Cue, targetLang string) string {
	text = enforceLineCount(text, original.LineCount())
	return bidi.Process(text, targetLang)
}

// isHearingImpairedOnly reports whether every non-empty line is a bracketed
// annotation like "[music playing]".
func isHearingImpairedOnly(text string) bool {
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed != "" && !hearingImpairedPattern.MatchString(trimmed) {
			return false
		}
	}
	return true
}

func truncateForLog(s string) string {
	if len(s) <= 200 {
		return s
	}
	return s[:200] + "..."
}
