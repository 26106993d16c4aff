package translator

import "strings"

// enforceLineCount reshapes translated text to exactly targetLines visible
// lines so cue layout survives translation. Too many lines are grouped
// evenly and joined with spaces; too few are re-split at the space nearest
// to equal-width targets.
func enforceLineCount(text string, targetLines int) string {
	if targetLines <= 1 {
		return strings.TrimSpace(strings.ReplaceAll(text, "\n", " "))
	}

	lines := strings.Split(text, "\n")
	if len(lines) == targetLines {
		return text
	}
	if len(lines) > targetLines {
		return collapseLines(lines, targetLines)
	}
	return splitLines(strings.TrimSpace(strings.Join(lines, " ")), targetLines)
}

// collapseLines joins surplus lines into targetLines groups of near-equal
// size; earlier groups absorb the remainder.
func collapseLines(lines []string, targetLines int) string {
	perTarget := len(lines) / targetLines
	remainder := len(lines) % targetLines

	var out []string
	idx := 0
	for i := 0; i < targetLines; i++ {
		count := perTarget
		if i < remainder {
			count++
		}
		var group []string
		for j := 0; j < count && idx < len(lines); j++ {
			group = append(group, strings.TrimSpace(lines[idx]))
			idx++
		}
		out = append(out, strings.Join(group, " "))
	}
	return strings.Join(out, "\n")
}

// splitLines breaks joined text into targetLines lines, cutting at the
// space nearest each equal-width target position. Overflow lands on the
// last line.
func splitLines(joined string, targetLines int) string {
	runes := []rune(joined)
	if len(runes) == 0 {
		return joined
	}
	approx := len(runes) / targetLines

	var out []string
	pos := 0
	for i := 0; i < targetLines-1; i++ {
		target := pos + approx
		if target > len(runes)-1 {
			target = len(runes) - 1
		}
		breakPoint := findBreakPoint(runes, target, pos)
		out = append(out, strings.TrimSpace(string(runes[pos:breakPoint])))
		pos = breakPoint
	}
	if pos < len(runes) {
		out = append(out, strings.TrimSpace(string(runes[pos:])))
	}
	// Very short text can exhaust before every target line is produced.
	for len(out) < targetLines {
		out = append(out, "")
	}
	return strings.Join(out, "\n")
}

// findBreakPoint looks for a space within 15 runes after the target, then
// within 15 before it, and gives up one past the target otherwise.
func findBreakPoint(runes []rune, target, minPos int) int {
	limit := target + 15
	if limit > len(runes) {
		limit = len(runes)
	}
	for i := target; i < limit; i++ {
		if runes[i] == ' ' {
			return i + 1
		}
	}

	floor := target - 15
	if floor < minPos {
		floor = minPos
	}
	for i := target; i > floor; i-- {
		if runes[i] == ' ' {
			return i + 1
		}
	}

	if target+1 < len(runes) {
		return target + 1
	}
	return len(runes)
}
