// Package language detects the reply language of an utterance.
package language

import "unicode"

// Supported reply languages.
const (
	English = "en"
	Chinese = "zh"
)

// HasHan reports whether s contains any Han script rune.
func HasHan(s string) bool {
	for _, r := range s {
		if unicode.Is(unicode.Han, r) {
			return true
		}
	}
	return false
}

// Detect returns Chinese when s contains Han script and English otherwise.
func Detect(s string) string {
	if HasHan(s) {
		return Chinese
	}
	return English
}
