// internal/rules/language.go
package rules

import (
	"strings"
	"unicode"
)

/*
 * Script heuristics for language-scoped matchers.
 *
 * A value is kept for a language when it contains a character of one of the
 * language's scripts. Languages without a table of their own keep values
 * that contain none of the tracked scripts (Han, Hiragana, Katakana, Hangul,
 * Thai), which is the Latin/Cyrillic/etc. catch-all.
 */

var languageScripts = map[string][]*unicode.RangeTable{
	"zh": {unicode.Han},
	"ja": {unicode.Hiragana, unicode.Katakana, unicode.Han},
	"ko": {unicode.Hangul},
	"th": {unicode.Thai},
}

var trackedScripts = []*unicode.RangeTable{
	unicode.Han, unicode.Hiragana, unicode.Katakana, unicode.Hangul, unicode.Thai,
}

// filterByLanguage keeps the values written in language's script. An empty
// language keeps every value.
func filterByLanguage(values []string, language string) []string {
	if language == "" {
		return values
	}
	lang := strings.ToLower(language)
	if i := strings.IndexAny(lang, "-_"); i > 0 {
		lang = lang[:i]
	}

	out := make([]string, 0, len(values))
	for _, v := range values {
		if scripts, ok := languageScripts[lang]; ok {
			if containsScript(v, scripts) {
				out = append(out, v)
			}
			continue
		}
		if !containsScript(v, trackedScripts) {
			out = append(out, v)
		}
	}
	return out
}

func containsScript(s string, scripts []*unicode.RangeTable) bool {
	for _, r := range s {
		if unicode.IsOneOf(scripts, r) {
			return true
		}
	}
	return false
}
