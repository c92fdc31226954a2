package analyze

import (
	"strings"
	"unicode"

	"github.com/bbalet/stopwords"
)

// termTokenizer produces candidate keyword terms: stopwords stripped for the
// detected language, lowercased, punctuation trimmed, short tokens dropped.
type termTokenizer struct{}

func NewTermTokenizer() TermTokenizer {
	return termTokenizer{}
}

// platformNoise covers export artifacts that would otherwise dominate any
// frequency-based ranking.
var platformNoise = map[string]bool{
	"media": true, "omitted": true, "message": true, "deleted": true,
	"https": true, "http": true, "www": true, "attached": true,
}

func (termTokenizer) Terms(text, lang string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	cleaned := stopwords.CleanString(text, stopwordLang(lang), false)

	var terms []string
	for _, f := range strings.Fields(strings.ToLower(cleaned)) {
		t := strings.TrimFunc(f, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsNumber(r)
		})
		if len([]rune(t)) < 3 || platformNoise[t] {
			continue
		}
		terms = append(terms, t)
	}
	return terms
}

// stopwordLang maps the detector's ISO 639-3 codes onto the two-letter codes
// the stopword corpus is keyed by. Unknown languages fall back to English.
func stopwordLang(iso3 string) string {
	switch iso3 {
	case "eng", "":
		return "en"
	case "spa":
		return "es"
	case "por":
		return "pt"
	case "fra":
		return "fr"
	case "deu":
		return "de"
	case "ita":
		return "it"
	case "nld":
		return "nl"
	case "rus":
		return "ru"
	case "tur":
		return "tr"
	case "ara":
		return "ar"
	default:
		return "en"
	}
}
