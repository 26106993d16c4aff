package service

import (
	"regexp"
	"strings"

	"golang.org/x/text/language"
)

var nameToCode = map[string]string{
	"english":    "en",
	"hebrew":     "he",
	"arabic":     "ar",
	"persian":    "fa",
	"farsi":      "fa",
	"urdu":       "ur",
	"pashto":     "ps",
	"spanish":    "es",
	"french":     "fr",
	"german":     "de",
	"italian":    "it",
	"portuguese": "pt",
	"russian":    "ru",
	"polish":     "pl",
	"dutch":      "nl",
	"turkish":    "tr",
	"greek":      "el",
	"chinese":    "zh",
	"japanese":   "ja",
	"korean":     "ko",
}

var parenSuffix = regexp.MustCompile(`\s*\(.*\)$`)

// LanguageCode maps a configured target language ("Hebrew", "Hebrew (RTL)",
// "he") to its ISO 639-1 code.
func LanguageCode(name string) string {
	cleaned := strings.ToLower(strings.TrimSpace(parenSuffix.ReplaceAllString(name, "")))
	if code, ok := nameToCode[cleaned]; ok {
		return code
	}
	if tag, err := language.Parse(cleaned); err == nil {
		base, _ := tag.Base()
		return base.String()
	}
	return "und"
}
