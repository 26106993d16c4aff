package bidi

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsRTL(t *testing.T) {
	assert.True(t, IsRTL("Hebrew"))
	assert.True(t, IsRTL("he"))
	assert.True(t, IsRTL("arabic"))
	assert.True(t, IsRTL("Pashto"))
	assert.False(t, IsRTL("Spanish"))
	assert.False(t, IsRTL("en"))
	assert.False(t, IsRTL(""))
}

func TestProcess_NonRTLTargetUnchanged(t *testing.T) {
	text := "Hello world."
	assert.Equal(t, text, Process(text, "Spanish"))
}

func TestProcess_LineWithoutRTLCharactersUnchanged(t *testing.T) {
	// RTL target, but the line is pure Latin: still a no-op.
	text := "Hello world."
	assert.Equal(t, text, Process(text, "Hebrew"))
}

func TestProcess_WrapsLineInEmbedding(t *testing.T) {
	out := Process("שלום", "Hebrew")

	require.True(t, strings.HasPrefix(out, RLE+RLM))
	assert.True(t, strings.HasSuffix(out, PDF))
	assert.Contains(t, out, "שלום")
}

func TestProcess_WrapsNumbersInLRM(t *testing.T) {
	out := Process("שלום 42%", "he")
	assert.Contains(t, out, LRM+"42%"+LRM)
}

func TestProcess_AnchorsTerminalPunctuation(t *testing.T) {
	out := Process("שלום.", "Hebrew")
	assert.Contains(t, out, RLM+".")
}

func TestProcess_LTRParenthetical(t *testing.T) {
	out := Process("שלום (John)", "Hebrew")
	assert.Contains(t, out, "("+LRM+"John"+LRM+")")
}

func TestProcess_RTLParenthetical(t *testing.T) {
	out := Process("טוב (שלום)", "Hebrew")
	assert.Contains(t, out, RLM+"(שלום)"+RLM)
}

func TestProcess_MultiLinePreservesLineCount(t *testing.T) {
	out := Process("שלום\nעולם", "Hebrew")

	lines := strings.Split(out, "\n")
	require.Len(t, lines, 2)
	for _, line := range lines {
		assert.True(t, strings.HasPrefix(line, RLE+RLM))
		assert.True(t, strings.HasSuffix(line, PDF))
	}
}

func TestProcess_EmptyText(t *testing.T) {
	assert.Equal(t, "", Process("", "Hebrew"))
}
