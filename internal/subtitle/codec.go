package subtitle

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/sublayer/sublayer/pkg/log"
)

// timesPattern matches an SRT/VTT timing line. Both millisecond separators
// are accepted; VTT times are canonicalized to the SRT comma form internally.
var timesPattern = regexp.MustCompile(
	`^(\d{2}):(\d{2}):(\d{2})[,.](\d{3})\s*-->\s*(\d{2}):(\d{2}):(\d{2})[,.](\d{3})`)

// Parse auto-detects the format and parses the content into cues.
// The format is VTT when the first non-BOM token is the literal WEBVTT,
// SRT otherwise. Line endings are normalized to LF and the BOM stripped.
// Malformed entries are skipped with a warning; a document with zero
// recoverable cues yields an empty slice (callers decide whether that is
// fatal).
func Parse(content string) (Format, []Cue) {
	content = normalize(content)

	if strings.HasPrefix(strings.TrimLeft(content, "\n"), "WEBVTT") {
		return FormatVTT, parseVTT(content)
	}
	return FormatSRT, parseSRT(content)
}

func normalize(content string) string {
	content = strings.TrimPrefix(content, "\uFEFF")
	content = strings.ReplaceAll(content, "\r\n", "\n")
	return strings.ReplaceAll(content, "\r", "\n")
}

// parseSRT walks the document with a small state machine: index line, then
// timing line, then text lines until a blank line. Multi-line text must
// survive intact; the terminator is the blank line, never the first newline.
func parseSRT(content string) []Cue {
	var cues []Cue

	lines := strings.Split(content, "\n")
	var cur Cue
	var textLines []string
	state := "index"

	flush := func() {
		cur.Text = strings.Join(textLines, "\n")
		cues = append(cues, cur)
		cur = Cue{}
		textLines = nil
	}

	for _, raw := range lines {
		line := strings.TrimRight(raw, " \t")

		switch state {
		case "index":
			trimmed := strings.TrimSpace(line)
			if trimmed == "" {
				continue
			}
			index, err := strconv.Atoi(trimmed)
			if err != nil {
				// Tolerate a missing index line when the timing line follows
				// directly; otherwise skip the stray line.
				if start, end, ok := parseTimes(trimmed); ok {
					cur.Index = len(cues) + 1
					cur.Start, cur.End = start, end
					state = "text"
					continue
				}
				log.Warn("Skipping malformed subtitle entry near: %q", trimmed)
				continue
			}
			cur.Index = index
			state = "times"

		case "times":
			trimmed := strings.TrimSpace(line)
			if trimmed == "" {
				continue
			}
			start, end, ok := parseTimes(trimmed)
			if !ok {
				log.Warn("Skipping cue %d: invalid timing line %q", cur.Index, trimmed)
				cur = Cue{}
				state = "index"
				continue
			}
			cur.Start, cur.End = start, end
			state = "text"

		case "text":
			if strings.TrimSpace(line) == "" {
				if len(textLines) > 0 {
					flush()
				} else {
					log.Warn("Skipping cue %d: no text lines", cur.Index)
					cur = Cue{}
				}
				state = "index"
				continue
			}
			textLines = append(textLines, line)
		}
	}

	if state == "text" {
		if len(textLines) > 0 {
			flush()
		} else {
			log.Warn("Skipping cue %d: no text lines", cur.Index)
		}
	}

	return cues
}

// parseVTT handles the WEBVTT header block, NOTE/STYLE blocks and the
// optional per-cue index line, then defers to the same cue shape as SRT.
func parseVTT(content string) []Cue {
	var cues []Cue

	lines := strings.Split(content, "\n")
	var cur Cue
	var textLines []string
	autoIndex := 0
	inCue := false
	skipBlock := false
	pendingIndex := -1

	flush := func() {
		cur.Text = strings.Join(textLines, "\n")
		cues = append(cues, cur)
		cur = Cue{}
		textLines = nil
		inCue = false
	}

	for _, raw := range lines {
		line := strings.TrimRight(raw, " \t")
		trimmed := strings.TrimSpace(line)

		if trimmed == "" {
			if inCue {
				if len(textLines) > 0 {
					flush()
				} else {
					log.Warn("Skipping cue %d: no text lines", cur.Index)
					cur = Cue{}
				}
			}
			inCue = false
			skipBlock = false
			pendingIndex = -1
			continue
		}

		if skipBlock {
			continue
		}

		if !inCue {
			if strings.HasPrefix(trimmed, "WEBVTT") {
				continue
			}
			if strings.HasPrefix(trimmed, "NOTE") || trimmed == "STYLE" || trimmed == "REGION" {
				skipBlock = true
				continue
			}

			if start, end, ok := parseTimes(trimmed); ok {
				autoIndex++
				cur.Index = autoIndex
				if pendingIndex > 0 {
					cur.Index = pendingIndex
				}
				pendingIndex = -1
				cur.Start, cur.End = start, end
				inCue = true
				continue
			}

			if n, err := strconv.Atoi(trimmed); err == nil {
				pendingIndex = n
				continue
			}

			// Header metadata (Kind:, Language:) or stray content.
			continue
		}

		textLines = append(textLines, line)
	}

	if inCue {
		if len(textLines) > 0 {
			flush()
		} else {
			log.Warn("Skipping cue %d: no text lines", cur.Index)
		}
	}

	return cues
}

func parseTimes(line string) (time.Duration, time.Duration, bool) {
	m := timesPattern.FindStringSubmatch(line)
	if m == nil {
		return 0, 0, false
	}

	field := func(i int) time.Duration {
		n, _ := strconv.Atoi(m[i])
		return time.Duration(n)
	}

	start := field(1)*time.Hour + field(2)*time.Minute + field(3)*time.Second + field(4)*time.Millisecond
	end := field(5)*time.Hour + field(6)*time.Minute + field(7)*time.Second + field(8)*time.Millisecond
	return start, end, true
}

// GenerateSRT renders cues as an SRT document: one blank line between cues,
// none after the last.
func GenerateSRT(cues []Cue) string {
	var sb strings.Builder

	for i, cue := range cues {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(strconv.Itoa(cue.Index))
		sb.WriteString("\n")
		sb.WriteString(formatTimestamp(cue.Start, ','))
		sb.WriteString(" --> ")
		sb.WriteString(formatTimestamp(cue.End, ','))
		sb.WriteString("\n")
		sb.WriteString(cue.Text)
		sb.WriteString("\n")
	}

	return sb.String()
}

// GenerateVTT renders cues as a WebVTT document.
func GenerateVTT(cues []Cue) string {
	var sb strings.Builder
	sb.WriteString("WEBVTT\n\n")

	for i, cue := range cues {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(strconv.Itoa(cue.Index))
		sb.WriteString("\n")
		sb.WriteString(formatTimestamp(cue.Start, '.'))
		sb.WriteString(" --> ")
		sb.WriteString(formatTimestamp(cue.End, '.'))
		sb.WriteString("\n")
		sb.WriteString(cue.Text)
		sb.WriteString("\n")
	}

	return sb.String()
}

// Generate renders cues in the requested format.
func Generate(format Format, cues []Cue) string {
	if format == FormatVTT {
		return GenerateVTT(cues)
	}
	return GenerateSRT(cues)
}

func formatTimestamp(d time.Duration, sep rune) string {
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60
	millis := int(d.Milliseconds()) % 1000

	return fmt.Sprintf("%02d:%02d:%02d%c%03d", hours, minutes, seconds, sep, millis)
}
