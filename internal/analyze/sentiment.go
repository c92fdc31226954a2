package analyze

import (
	"strings"

	"github.com/grassmudhorses/vader-go/lexicon"
	"github.com/grassmudhorses/vader-go/sentitext"

	"github.com/chatlens/chatlens/internal/chat"
)

// vaderScorer scores polarity with the VADER lexicon. The raw compound score
// lies in [-1,1]; it is rescaled into [0,1] so every component shares the
// same range (0.5 is neutral).
type vaderScorer struct{}

func NewSentimentScorer() SentimentScorer {
	return vaderScorer{}
}

func (vaderScorer) Score(text string) chat.SentimentScore {
	if strings.TrimSpace(text) == "" {
		return NeutralSentiment()
	}
	parsed := sentitext.Parse(text, lexicon.DefaultLexicon)
	s := sentitext.PolarityScore(parsed)
	return chat.SentimentScore{
		Positive: s.Positive,
		Negative: s.Negative,
		Neutral:  s.Neutral,
		Compound: (s.Compound + 1) / 2,
	}
}

// NeutralSentiment is the score for empty, media-only, and degraded
// messages. Components still sum to 1.
func NeutralSentiment() chat.SentimentScore {
	return chat.SentimentScore{Neutral: 1, Compound: 0.5}
}
