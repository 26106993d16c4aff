package translator

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnforceLineCount_SingleLineFlattens(t *testing.T) {
	assert.Equal(t, "uno dos", enforceLineCount("uno\ndos", 1))
}

func TestEnforceLineCount_AlreadyMatching(t *testing.T) {
	assert.Equal(t, "uno\ndos", enforceLineCount("uno\ndos", 2))
}

func TestEnforceLineCount_CollapsesExtraLines(t *testing.T) {
	out := enforceLineCount("a\nb\nc\nd\ne", 2)

	lines := strings.Split(out, "\n")
	assert.Equal(t, []string{"a b c", "d e"}, lines, "earlier groups absorb the remainder")
}

func TestEnforceLineCount_SplitsAtSpaces(t *testing.T) {
	out := enforceLineCount("Bonjour cher ami comment vas tu aujourd'hui", 2)

	lines := strings.Split(out, "\n")
	assert.Len(t, lines, 2)
	// No word is cut in half.
	assert.Equal(t, "Bonjour cher ami comment vas tu aujourd'hui",
		strings.Join(lines, " "))
}

func TestEnforceLineCount_ThreeWaySplit(t *testing.T) {
	out := enforceLineCount("one two three four five six seven eight nine", 3)
	assert.Len(t, strings.Split(out, "\n"), 3)
}

func TestEnforceLineCount_ShortTextStillYieldsTargetLines(t *testing.T) {
	out := enforceLineCount("ab", 3)
	assert.Len(t, strings.Split(out, "\n"), 3)
}
