package subtitle

import "time"

// Format identifies a time-coded subtitle format.
type Format string

const (
	FormatSRT Format = "srt"
	FormatVTT Format = "vtt"
)

// ContentType returns the HTTP content type for the format.
func (f Format) ContentType() string {
	if f == FormatVTT {
		return "text/vtt; charset=utf-8"
	}
	return "application/x-subrip; charset=utf-8"
}

// Cue is a single timed subtitle entry. Text is newline-significant: a cue
// may render on several visible lines. Cue identity is positional; Index is
// carried through but never used as a key.
type Cue struct {
	Index int
	Start time.Duration
	End   time.Duration
	Text  string
}

// LineCount returns the number of visible lines in the cue text.
func (c Cue) LineCount() int {
	if c.Text == "" {
		return 1
	}
	n := 1
	for _, r := range c.Text {
		if r == '\n' {
			n++
		}
	}
	return n
}
