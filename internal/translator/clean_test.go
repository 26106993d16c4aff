package translator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanResponse_ChattyPrefixes(t *testing.T) {
	cases := map[string]string{
		"Translation: Hola":                  "Hola",
		"Here's the translation: Hola":       "Hola",
		"Here is translation: Hola":          "Hola",
		"The translation is: Hola":           "Hola",
		"Output: Hola":                       "Hola",
		"In Spanish: Hola":                   "Hola",
		"Spanish: Hola":                      "Hola",
		"```\nHola\n```":                     "Hola",
		"Hola":                               "Hola",
	}

	for input, want := range cases {
		assert.Equal(t, want, cleanResponse(input, "Spanish"), "input: %q", input)
	}
}

func TestCleanResponse_DelimiterEchoes(t *testing.T) {
	assert.Equal(t, "Hola", cleanResponse("[[[Hola]]]", "Spanish"))
	assert.Equal(t, "Hola", cleanResponse("[[Hola]]", "Spanish"))
}

func TestCleanResponse_OuterQuotes(t *testing.T) {
	assert.Equal(t, "Hola amigo", cleanResponse(`"Hola amigo"`, "Spanish"))
	assert.Equal(t, "Hola amigo", cleanResponse("'Hola amigo'", "Spanish"))
}

func TestCleanResponse_LineBreakToken(t *testing.T) {
	assert.Equal(t, "uno\ndos", cleanResponse("uno || dos", "Spanish"))
	assert.Equal(t, "uno\ndos", cleanResponse("uno||dos", "Spanish"))
}

func TestCleanResponse_KeepsInternalAnnotations(t *testing.T) {
	// [music] is content; only edge brackets without a closing pair go.
	assert.Equal(t, "[music] Hola", cleanResponse("[music] Hola", "Spanish"))
}

func TestCleanResponse_Empty(t *testing.T) {
	assert.Equal(t, "", cleanResponse("", "Spanish"))
	assert.Equal(t, "", cleanResponse("   ", "Spanish"))
}
