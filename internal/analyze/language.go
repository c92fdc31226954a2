package analyze

import (
	"unicode/utf8"

	"github.com/abadojack/whatlanggo"
)

// langDetector wraps whatlanggo. Inputs shorter than minChars return ""
// rather than a guess.
type langDetector struct {
	minChars int
}

func NewLanguageDetector(minChars int) LanguageDetector {
	return &langDetector{minChars: minChars}
}

func (d *langDetector) Detect(text string) string {
	if utf8.RuneCountInString(text) < d.minChars {
		return ""
	}
	info := whatlanggo.Detect(text)
	if !info.IsReliable() {
		return ""
	}
	return whatlanggo.LangToString(info.Lang)
}
