package translator

import (
	"fmt"
	"strings"

	"github.com/sublayer/sublayer/internal/bidi"
	"github.com/sublayer/sublayer/internal/subtitle"
)

// buildSystemPrompt instructs the model to translate and nothing else. The
// rules mirror the failure modes seen in practice: skipped content, chatty
// preambles, mangled markers and broken inline tags.
func buildSystemPrompt(targetLang string) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, `You are a professional subtitle translator translating to %s.

CRITICAL RULES - FOLLOW EXACTLY:
1. COMPLETE TRANSLATION - Translate EVERYTHING between [[[ and ]]] delimiters
2. The symbol || represents a line break - keep it as || in your output
3. Do NOT skip, summarize, or shorten ANY content
4. Output ONLY the translated %s text, nothing else
5. No greetings, explanations, "Translation:", quotes, or markdown
6. Keep any HTML tags like <i> or <b> exactly as-is
`, targetLang, targetLang)

	if bidi.IsRTL(targetLang) {
		fmt.Fprintf(&sb, `
%s RTL RULES:
- %s is written RIGHT-TO-LEFT
- Punctuation (. , ! ? : ;) appears at END of sentence
- Numbers stay LTR but integrate naturally
`, strings.ToUpper(targetLang), targetLang)
	}

	return sb.String()
}

// buildBatchPrompt lists the batch cues as "<<~i~>> flattened-text", one per
// line, with internal newlines flattened to spaces. Skipped positions are
// simply absent; the parser maps translations back by index.
func buildBatchPrompt(batch []subtitle.Cue, targetLang string, skip func(int) bool) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Translate these subtitles to %s. Preserve the <<~N~>> markers exactly. Output ONLY the translations with markers.\n\n", targetLang)

	for i, cue := range batch {
		if skip != nil && skip(i) {
			continue
		}
		flattened := strings.ReplaceAll(cue.Text, "\n", " ")
		fmt.Fprintf(&sb, "<<~%d~>> %s\n", i, flattened)
	}
	return sb.String()
}

// buildSinglePrompt wraps one cue's text in explicit delimiters so the model
// treats the whole input as a single unit; newlines become the || token.
func buildSinglePrompt(text, sourceLang, targetLang string) string {
	marked := strings.ReplaceAll(text, "\n", " || ")
	return fmt.Sprintf("Translate %s to %s. Text: [[[%s]]]", sourceLang, targetLang, marked)
}
