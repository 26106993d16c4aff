// Package bidi stabilizes right-to-left translated text with Unicode
// bidirectional control marks so mixed-direction lines render correctly
// in subtitle players.
package bidi

import (
	"regexp"
	"strings"
)

// Unicode bidirectional control characters.
const (
	LRM = "\u200E" // left-to-right mark
	RLM = "\u200F" // right-to-left mark
	RLE = "\u202B" // right-to-left embedding
	PDF = "\u202C" // pop directional formatting
)

// rtlLanguages holds the target languages whose translations get bidi
// processing, by English name and ISO 639-1 code.
var rtlLanguages = map[string]bool{
	"hebrew":  true,
	"arabic":  true,
	"persian": true,
	"farsi":   true,
	"urdu":    true,
	"pashto":  true,
	"he":      true,
	"ar":      true,
	"fa":      true,
	"ur":      true,
	"ps":      true,
}

var (
	// Numeric runs, including decimals, prices, percentages and times.
	numberPattern = regexp.MustCompile(`[$€£¥₪]?[+-]?\d+(?:[,.]\d+)*(?::\d+)?%?`)

	// Terminal punctuation followed by whitespace or end of line.
	punctuationPattern = regexp.MustCompile(`([.!?,:;])(\s|$)`)

	// Bracketed or quoted spans.
	parentheticalPattern = regexp.MustCompile(`([(\["'])([^)\]"']+)([)\]"'])`)

	// Hebrew and Arabic script blocks.
	rtlCharPattern = regexp.MustCompile(`[\x{0590}-\x{05FF}\x{0600}-\x{06FF}\x{0750}-\x{077F}\x{08A0}-\x{08FF}]`)
)

// IsRTL reports whether the language (English name or ISO code, any case)
// is right-to-left.
func IsRTL(language string) bool {
	return rtlLanguages[strings.ToLower(strings.TrimSpace(language))]
}

// Process injects bidi control marks into text when the target language is
// RTL and the text actually contains RTL characters. Non-RTL targets and
// lines without RTL characters pass through unchanged.
func Process(text, targetLang string) string {
	if text == "" || !IsRTL(targetLang) || !containsRTL(text) {
		return text
	}

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = processLine(line)
	}
	return strings.Join(lines, "\n")
}

func containsRTL(s string) bool {
	return rtlCharPattern.MatchString(s)
}

func processLine(line string) string {
	if strings.TrimSpace(line) == "" {
		return line
	}

	line = wrapNumbers(line)
	line = fixPunctuation(line)
	line = handleParentheticals(line)

	// Embed the whole line to fix the base direction.
	return RLE + RLM + line + PDF
}

// wrapNumbers isolates numeric runs in LRM marks so digits keep their
// left-to-right order inside RTL text.
func wrapNumbers(line string) string {
	return numberPattern.ReplaceAllString(line, LRM+"$0"+LRM)
}

// fixPunctuation anchors terminal punctuation with a preceding RLM so it
// renders at the visual end of the sentence.
func fixPunctuation(line string) string {
	return punctuationPattern.ReplaceAllString(line, RLM+"$1$2")
}

// handleParentheticals keeps bracketed and quoted spans coherent: LTR
// content is wrapped in LRM, RTL content gets RLM around the bracket pair.
func handleParentheticals(line string) string {
	return parentheticalPattern.ReplaceAllStringFunc(line, func(m string) string {
		parts := parentheticalPattern.FindStringSubmatch(m)
		open, content, closing := parts[1], parts[2], parts[3]
		if containsRTL(content) {
			return RLM + open + content + closing + RLM
		}
		return open + LRM + content + LRM + closing
	})
}
