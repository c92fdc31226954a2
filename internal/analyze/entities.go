package analyze

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	prose "github.com/jdkato/prose/v2"

	"github.com/chatlens/chatlens/internal/chat"
)

// Confidence levels: the NER model gives no per-entity score, so a fixed
// value is used; regex matches are structural and rated higher.
const (
	modelConfidence   = 0.8
	patternConfidence = 0.9
)

var entityPatterns = []struct {
	typ string
	re  *regexp.Regexp
}{
	{chat.EntityEmail, regexp.MustCompile(`\b[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}\b`)},
	{chat.EntityURL, regexp.MustCompile(`https?://[^\s<>"]+`)},
	{chat.EntityDate, regexp.MustCompile(`\b(?:\d{1,2}[-/.]\d{1,2}[-/.]\d{2,4}|\d{4}[-/]\d{1,2}[-/]\d{1,2})\b`)},
	{chat.EntityMoney, regexp.MustCompile(`[$€£¥₹]\s?\d+(?:,\d{3})*(?:\.\d{1,2})?|\b\d+(?:,\d{3})*(?:\.\d{1,2})?\s?(?:dollars?|euros?|pounds?|USD|EUR|GBP)\b`)},
	{chat.EntityPhone, regexp.MustCompile(`\+\d{1,3}[\s\-]?\d[\d\s\-]{7,13}\d`)},
	{chat.EntityOrganization, regexp.MustCompile(`\b[A-Z][A-Za-z0-9&.\- ]{1,40}\s(?:Inc|Ltd|LLC|Corp|GmbH|AG|PLC)\b\.?`)},
}

// proseExtractor runs the prose NER model and supplements it with the
// structural patterns above.
type proseExtractor struct{}

func NewEntityExtractor() EntityExtractor {
	return proseExtractor{}
}

func (proseExtractor) Extract(text string) ([]chat.Entity, error) {
	var ents []chat.Entity

	doc, err := prose.NewDocument(text, prose.WithSegmentation(false))
	if err != nil {
		return nil, fmt.Errorf("entity model: %w", err)
	}

	// Resolve each model entity to a span by scanning forward, so repeated
	// mentions get distinct spans.
	cursor := 0
	for _, e := range doc.Entities() {
		typ := mapEntityLabel(e.Label)
		if typ == "" {
			continue
		}
		idx := strings.Index(text[cursor:], e.Text)
		if idx < 0 {
			idx = strings.Index(text, e.Text)
			if idx < 0 {
				continue
			}
			cursor = 0
		}
		start := cursor + idx
		end := start + len(e.Text)
		cursor = end
		ents = append(ents, chat.Entity{
			Text:       e.Text,
			Type:       typ,
			Start:      start,
			End:        end,
			Confidence: modelConfidence,
		})
	}

	for _, p := range entityPatterns {
		for _, span := range p.re.FindAllStringIndex(text, -1) {
			if overlaps(ents, span[0], span[1]) {
				continue
			}
			ents = append(ents, chat.Entity{
				Text:       text[span[0]:span[1]],
				Type:       p.typ,
				Start:      span[0],
				End:        span[1],
				Confidence: patternConfidence,
			})
		}
	}

	sort.Slice(ents, func(i, j int) bool {
		if ents[i].Start != ents[j].Start {
			return ents[i].Start < ents[j].Start
		}
		return ents[i].Type < ents[j].Type
	})
	return ents, nil
}

func mapEntityLabel(label string) string {
	switch label {
	case "PERSON":
		return chat.EntityPerson
	case "GPE":
		return chat.EntityLocation
	}
	return ""
}

func overlaps(ents []chat.Entity, start, end int) bool {
	for _, e := range ents {
		if start < e.End && end > e.Start {
			return true
		}
	}
	return false
}
