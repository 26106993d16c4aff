package translator

import (
	"fmt"
	"regexp"
	"strings"
)

// chattyPatterns strip preambles models prepend despite the system prompt.
// All are anchored at the start so each fires at most once.
var chattyPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^(?:Here(?:'s| is) (?:the )?translation:?)\s*`),
	regexp.MustCompile(`(?i)^(?:Translation:?)\s*`),
	regexp.MustCompile(`(?i)^(?:The translation is:?)\s*`),
	regexp.MustCompile(`(?i)^(?:Translated text:?)\s*`),
	regexp.MustCompile(`(?i)^(?:Output:?)\s*`),
	regexp.MustCompile("(?i)^```[a-z]*\\s*"),
	regexp.MustCompile("(?i)\\s*```$"),
}

// cleanResponse aggressively normalizes a model reply to bare translated
// text: chatty prefixes, delimiter echoes, outer quotes and markdown gone,
// || tokens back to newlines.
func cleanResponse(response, targetLang string) string {
	cleaned := strings.TrimSpace(response)

	for _, pattern := range chattyPatterns {
		cleaned = pattern.ReplaceAllString(cleaned, "")
	}
	for _, pattern := range languagePrefixPatterns(targetLang) {
		cleaned = pattern.ReplaceAllString(cleaned, "")
	}

	// Delimiter echoes: triple brackets first, then double.
	cleaned = strings.ReplaceAll(cleaned, "[[[", "")
	cleaned = strings.ReplaceAll(cleaned, "]]]", "")
	cleaned = strings.ReplaceAll(cleaned, "[[", "")
	cleaned = strings.ReplaceAll(cleaned, "]]", "")

	// Single stray brackets at the edges only; internal ones like [music]
	// are content.
	if strings.HasPrefix(cleaned, "[") && !strings.Contains(cleaned, "]") {
		cleaned = cleaned[1:]
	}
	if strings.HasSuffix(cleaned, "]") && strings.LastIndex(cleaned, "[") < len(cleaned)-10 {
		cleaned = cleaned[:len(cleaned)-1]
	}

	if len(cleaned) >= 2 {
		if (strings.HasPrefix(cleaned, `"`) && strings.HasSuffix(cleaned, `"`)) ||
			(strings.HasPrefix(cleaned, "'") && strings.HasSuffix(cleaned, "'")) {
			cleaned = cleaned[1 : len(cleaned)-1]
		}
	}

	cleaned = strings.ReplaceAll(cleaned, "`", "")

	cleaned = strings.ReplaceAll(cleaned, " || ", "\n")
	cleaned = strings.ReplaceAll(cleaned, "||", "\n")

	return strings.TrimSpace(cleaned)
}

// languagePrefixPatterns builds the target-language variants of the chatty
// prefixes ("In Hebrew:", "Hebrew:").
func languagePrefixPatterns(targetLang string) []*regexp.Regexp {
	if targetLang == "" {
		return nil
	}
	quoted := regexp.QuoteMeta(targetLang)
	return []*regexp.Regexp{
		regexp.MustCompile(fmt.Sprintf(`(?i)^(?:In %s:?)\s*`, quoted)),
		regexp.MustCompile(fmt.Sprintf(`(?i)^(?:%s:?)\s*`, quoted)),
	}
}
