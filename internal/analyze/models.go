// Package analyze produces one Annotation per message: language, sentiment,
// entities and keywords. Models are injected so the analyzer carries no
// process-global state and tests can run against stubs.
package analyze

import "github.com/chatlens/chatlens/internal/chat"

// LanguageDetector identifies the language of a text, returning an ISO code
// or "" when the input is too short or the detection is unreliable.
type LanguageDetector interface {
	Detect(text string) string
}

// SentimentScorer produces the four-way sentiment breakdown. Implementations
// must keep positive+negative+neutral within 1e-6 of 1.
type SentimentScorer interface {
	Score(text string) chat.SentimentScore
}

// EntityExtractor finds span-tagged named entities in a text.
type EntityExtractor interface {
	Extract(text string) ([]chat.Entity, error)
}

// TermTokenizer yields the candidate keyword terms of a text: lowercased,
// stopwords removed.
type TermTokenizer interface {
	Terms(text, lang string) []string
}

// Models bundles the injected NLP dependencies for one analyzer. Lifetime is
// owned by whoever constructs the pipeline, for the duration of one run.
type Models struct {
	Language  LanguageDetector
	Sentiment SentimentScorer
	Entities  EntityExtractor
	Terms     TermTokenizer
}

// DefaultModels wires the library-backed implementations.
func DefaultModels(minLangChars int) Models {
	return Models{
		Language:  NewLanguageDetector(minLangChars),
		Sentiment: NewSentimentScorer(),
		Entities:  NewEntityExtractor(),
		Terms:     NewTermTokenizer(),
	}
}
