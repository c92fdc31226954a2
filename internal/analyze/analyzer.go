package analyze

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"unicode/utf8"

	"github.com/chatlens/chatlens/internal/chat"
)

// Analyzer annotates batches of messages. Messages within a batch are
// independent; keyword weights are TF-IDF against the batch corpus, so they
// are comparable within a run but not across runs.
type Analyzer struct {
	models Models
	topN   int
	logger *slog.Logger
}

func New(models Models, topN int, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{models: models, topN: topN, logger: logger}
}

// Batch produces exactly one annotation per message. A failure analyzing one
// message degrades that message's annotation; it never aborts the batch.
// When ctx expires mid-batch the remaining messages get degraded
// annotations, keeping the one-annotation-per-message invariant.
func (a *Analyzer) Batch(ctx context.Context, msgs []chat.Message) []chat.Annotation {
	// First pass: terms per message and document frequencies for TF-IDF.
	termsPer := make([][]string, len(msgs))
	df := make(map[string]int)
	for i, m := range msgs {
		if !analyzable(m) {
			continue
		}
		terms := a.models.Terms.Terms(m.Content, "")
		termsPer[i] = terms
		for _, t := range uniqueTerms(terms) {
			df[t]++
		}
	}

	anns := make([]chat.Annotation, 0, len(msgs))
	for i, m := range msgs {
		if ctx.Err() != nil {
			anns = append(anns, Degraded(m.ID))
			continue
		}
		anns = append(anns, a.annotate(m, termsPer[i], df, len(msgs)))
	}
	return anns
}

func (a *Analyzer) annotate(m chat.Message, terms []string, df map[string]int, corpusSize int) chat.Annotation {
	ann := chat.Annotation{
		MessageID: m.ID,
		Sentiment: NeutralSentiment(),
	}
	if !analyzable(m) {
		return ann
	}

	ann.CharCount = utf8.RuneCountInString(m.Content)
	ann.WordCount = wordCount(m.Content)
	ann.EmojiCount = emojiCount(m.Content)
	ann.Language = a.models.Language.Detect(m.Content)
	ann.Sentiment = a.models.Sentiment.Score(m.Content)

	ents, err := a.models.Entities.Extract(m.Content)
	if err != nil {
		// Degrade this field only; the rest of the annotation stands.
		a.logger.Debug("entity extraction degraded", "message_id", m.ID, "error", err)
		ann.Degraded = true
	} else {
		ann.Entities = ents
	}

	ann.Keywords = topKeywords(terms, df, corpusSize, a.topN)
	return ann
}

// Degraded is the annotation for a message whose analysis did not run:
// no language, neutral sentiment, no entities or keywords.
func Degraded(id int64) chat.Annotation {
	return chat.Annotation{
		MessageID: id,
		Sentiment: NeutralSentiment(),
		Degraded:  true,
	}
}

// DegradeBatch replaces a timed-out batch's results wholesale.
func DegradeBatch(msgs []chat.Message) []chat.Annotation {
	anns := make([]chat.Annotation, len(msgs))
	for i, m := range msgs {
		anns[i] = Degraded(m.ID)
	}
	return anns
}

func analyzable(m chat.Message) bool {
	return !m.IsDeleted && m.Type != chat.TypeSystem && m.Content != ""
}

// topKeywords ranks a message's terms by TF-IDF against the batch corpus and
// keeps the top N. Ties break on the term for determinism.
func topKeywords(terms []string, df map[string]int, corpusSize, topN int) []chat.Keyword {
	if len(terms) == 0 || topN <= 0 {
		return nil
	}

	tf := make(map[string]int, len(terms))
	for _, t := range terms {
		tf[t]++
	}

	kws := make([]chat.Keyword, 0, len(tf))
	for t, f := range tf {
		idf := math.Log(1 + float64(corpusSize)/float64(df[t]))
		kws = append(kws, chat.Keyword{Term: t, Weight: float64(f) * idf})
	}
	sort.Slice(kws, func(i, j int) bool {
		if kws[i].Weight != kws[j].Weight {
			return kws[i].Weight > kws[j].Weight
		}
		return kws[i].Term < kws[j].Term
	})
	if len(kws) > topN {
		kws = kws[:topN]
	}
	return kws
}

func uniqueTerms(terms []string) []string {
	seen := make(map[string]bool, len(terms))
	out := terms[:0:0]
	for _, t := range terms {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}

// emojiCount counts runes in the emoji and pictograph blocks, plus the legacy
// dingbat/symbol ranges messaging apps emit.
func emojiCount(s string) int {
	n := 0
	for _, r := range s {
		switch {
		case r >= 0x1F300 && r <= 0x1FAFF, // pictographs, emoticons, symbols
			r >= 0x2600 && r <= 0x27BF, // misc symbols and dingbats
			r >= 0x1F1E6 && r <= 0x1F1FF: // regional indicators
			n++
		}
	}
	return n
}

func wordCount(s string) int {
	n := 0
	inWord := false
	for _, r := range s {
		if r == ' ' || r == '\n' || r == '\t' {
			inWord = false
		} else if !inWord {
			inWord = true
			n++
		}
	}
	return n
}
