package analyze

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/chatlens/chatlens/internal/chat"
)

type stubLanguage struct{ lang string }

func (s stubLanguage) Detect(string) string { return s.lang }

type stubSentiment struct{ score chat.SentimentScore }

func (s stubSentiment) Score(string) chat.SentimentScore { return s.score }

type stubEntities struct {
	ents []chat.Entity
	err  error
}

func (s stubEntities) Extract(string) ([]chat.Entity, error) { return s.ents, s.err }

type stubTerms struct{}

func (stubTerms) Terms(text, _ string) []string {
	var out []string
	for _, w := range strings.Fields(strings.ToLower(text)) {
		if len(w) >= 3 {
			out = append(out, w)
		}
	}
	return out
}

func stubModels() Models {
	return Models{
		Language:  stubLanguage{lang: "eng"},
		Sentiment: stubSentiment{score: chat.SentimentScore{Positive: 0.5, Negative: 0.1, Neutral: 0.4, Compound: 0.7}},
		Entities:  stubEntities{},
		Terms:     stubTerms{},
	}
}

func textMsg(id int64, content string) chat.Message {
	return chat.Message{
		ID:        id,
		SenderKey: "alice",
		Timestamp: time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC),
		Content:   content,
		Type:      chat.TypeText,
	}
}

func TestBatch_OneAnnotationPerMessage(t *testing.T) {
	a := New(stubModels(), 10, nil)
	msgs := []chat.Message{
		textMsg(1, "hello there friend"),
		textMsg(2, "goodbye cruel world"),
		{ID: 3, SenderKey: "system", Type: chat.TypeSystem, Content: "Alice added Bob"},
	}

	anns := a.Batch(context.Background(), msgs)
	if len(anns) != len(msgs) {
		t.Fatalf("expected %d annotations, got %d", len(msgs), len(anns))
	}
	for i, ann := range anns {
		if ann.MessageID != msgs[i].ID {
			t.Errorf("annotation %d has id %d, want %d", i, ann.MessageID, msgs[i].ID)
		}
	}
}

func TestBatch_SkipsUnanalyzableMessages(t *testing.T) {
	a := New(stubModels(), 10, nil)
	msgs := []chat.Message{
		{ID: 1, SenderKey: "alice", Type: chat.TypeText, IsDeleted: true},
		{ID: 2, SenderKey: "system", Type: chat.TypeSystem, Content: "joined"},
		textMsg(3, "real content here"),
	}

	anns := a.Batch(context.Background(), msgs)

	// Deleted and system messages get empty annotations with neutral sentiment.
	for _, i := range []int{0, 1} {
		if anns[i].Language != "" || anns[i].WordCount != 0 || len(anns[i].Keywords) != 0 {
			t.Errorf("annotation %d should be empty: %+v", i, anns[i])
		}
		if anns[i].Sentiment != NeutralSentiment() {
			t.Errorf("annotation %d sentiment = %+v, want neutral", i, anns[i].Sentiment)
		}
	}
	if anns[2].Language != "eng" {
		t.Errorf("analyzable message language = %q", anns[2].Language)
	}
	if anns[2].WordCount != 3 {
		t.Errorf("word count = %d, want 3", anns[2].WordCount)
	}
}

func TestBatch_SentimentComponentsSumToOne(t *testing.T) {
	a := New(DefaultModels(10), 10, nil)
	msgs := []chat.Message{
		textMsg(1, "I absolutely love this, it is wonderful and great!"),
		textMsg(2, "This is terrible, I hate it so much."),
		textMsg(3, "The meeting is at three."),
	}

	anns := a.Batch(context.Background(), msgs)
	for _, ann := range anns {
		sum := ann.Sentiment.Positive + ann.Sentiment.Negative + ann.Sentiment.Neutral
		if math.Abs(sum-1) > 1e-6 {
			t.Errorf("message %d sentiment sum = %f, want 1", ann.MessageID, sum)
		}
		if ann.Sentiment.Compound < 0 || ann.Sentiment.Compound > 1 {
			t.Errorf("message %d compound = %f, want [0,1]", ann.MessageID, ann.Sentiment.Compound)
		}
	}
}

func TestBatch_EntityErrorDegradesAnnotationOnly(t *testing.T) {
	models := stubModels()
	models.Entities = stubEntities{err: errors.New("model crashed")}
	a := New(models, 10, nil)

	anns := a.Batch(context.Background(), []chat.Message{textMsg(1, "hello world today")})
	if len(anns) != 1 {
		t.Fatalf("expected 1 annotation, got %d", len(anns))
	}
	if !anns[0].Degraded {
		t.Error("expected Degraded flag")
	}
	// Everything else still filled in.
	if anns[0].Language != "eng" || anns[0].WordCount != 3 {
		t.Errorf("other fields should survive: %+v", anns[0])
	}
}

func TestBatch_ExpiredContextDegradesRemaining(t *testing.T) {
	a := New(stubModels(), 10, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	msgs := []chat.Message{textMsg(1, "one two three"), textMsg(2, "four five six")}
	anns := a.Batch(ctx, msgs)
	if len(anns) != 2 {
		t.Fatalf("expected 2 annotations, got %d", len(anns))
	}
	for _, ann := range anns {
		if !ann.Degraded {
			t.Errorf("annotation %d should be degraded", ann.MessageID)
		}
	}
}

func TestTopKeywords_RanksByTFIDF(t *testing.T) {
	a := New(stubModels(), 2, nil)
	// "common" appears in both messages, "rare" only in one; rare should
	// outrank common for message 1.
	msgs := []chat.Message{
		textMsg(1, "common rare rare"),
		textMsg(2, "common filler words"),
	}

	anns := a.Batch(context.Background(), msgs)
	kws := anns[0].Keywords
	if len(kws) != 2 {
		t.Fatalf("expected 2 keywords, got %d", len(kws))
	}
	if kws[0].Term != "rare" {
		t.Errorf("top keyword = %q, want rare", kws[0].Term)
	}
	if kws[0].Weight <= kws[1].Weight {
		t.Errorf("weights not descending: %f, %f", kws[0].Weight, kws[1].Weight)
	}
}

func TestTopKeywords_CapsAtTopN(t *testing.T) {
	a := New(stubModels(), 3, nil)
	anns := a.Batch(context.Background(), []chat.Message{
		textMsg(1, "alpha beta gamma delta epsilon zeta"),
	})
	if len(anns[0].Keywords) != 3 {
		t.Errorf("expected 3 keywords, got %d", len(anns[0].Keywords))
	}
}

func TestDegradeBatch(t *testing.T) {
	msgs := []chat.Message{textMsg(7, "a"), textMsg(8, "b")}
	anns := DegradeBatch(msgs)
	if len(anns) != 2 {
		t.Fatalf("expected 2 annotations, got %d", len(anns))
	}
	if anns[0].MessageID != 7 || anns[1].MessageID != 8 {
		t.Errorf("ids = %d, %d", anns[0].MessageID, anns[1].MessageID)
	}
	for _, ann := range anns {
		if !ann.Degraded {
			t.Error("expected Degraded flag")
		}
		if ann.Sentiment != NeutralSentiment() {
			t.Errorf("sentiment = %+v, want neutral", ann.Sentiment)
		}
	}
}

func TestEmojiCount(t *testing.T) {
	cases := []struct {
		text string
		want int
	}{
		{"plain words", 0},
		{"nice \U0001F600", 1},
		{"\U0001F389\U0001F389 party", 2},
		{"sun ☀ and heart", 1},
	}
	for _, tc := range cases {
		if got := emojiCount(tc.text); got != tc.want {
			t.Errorf("emojiCount(%q) = %d, want %d", tc.text, got, tc.want)
		}
	}
}

func TestWordCount(t *testing.T) {
	cases := []struct {
		text string
		want int
	}{
		{"", 0},
		{"one", 1},
		{"one two three", 3},
		{"  padded   out  ", 2},
		{"line\nbreaks\ncount", 3},
	}
	for _, tc := range cases {
		if got := wordCount(tc.text); got != tc.want {
			t.Errorf("wordCount(%q) = %d, want %d", tc.text, got, tc.want)
		}
	}
}
