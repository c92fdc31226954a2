package parser

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/chatlens/chatlens/internal/chat"
)

func parseText(t *testing.T, input string, opts Options) []ParsedMessage {
	t.Helper()
	var msgs []ParsedMessage
	p := NewTextParser(opts)
	err := p.Parse(strings.NewReader(input), func(pm ParsedMessage) error {
		msgs = append(msgs, pm)
		return nil
	})
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	return msgs
}

func TestTextParser_BasicConversation(t *testing.T) {
	input := "1/1/24, 10:00 AM - Alice: Hello\n" +
		"1/1/24, 10:01 AM - Bob: Hi Alice!\n"

	msgs := parseText(t, input, Options{DateOrder: DateOrderMDY})
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}

	if msgs[0].Sender != "Alice" {
		t.Errorf("sender = %q, want Alice", msgs[0].Sender)
	}
	if msgs[0].Content != "Hello" {
		t.Errorf("content = %q, want Hello", msgs[0].Content)
	}
	want := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	if !msgs[0].Timestamp.Equal(want) {
		t.Errorf("timestamp = %v, want %v", msgs[0].Timestamp, want)
	}
	if !msgs[1].Timestamp.After(msgs[0].Timestamp) {
		t.Error("timestamps should be in order")
	}
}

func TestTextParser_MultiLineBody(t *testing.T) {
	input := "1/1/24, 10:00 AM - Alice: first\n" +
		"second\n" +
		"third\n"

	msgs := parseText(t, input, Options{DateOrder: DateOrderMDY})
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	if msgs[0].Content != "first\nsecond\nthird" {
		t.Errorf("content = %q", msgs[0].Content)
	}
	if msgs[0].LineStart != 1 || msgs[0].LineEnd != 3 {
		t.Errorf("line range = %d..%d, want 1..3", msgs[0].LineStart, msgs[0].LineEnd)
	}
}

func TestTextParser_SystemMessage(t *testing.T) {
	input := "1/1/24, 10:00 AM - Alice added Bob\n"

	msgs := parseText(t, input, Options{DateOrder: DateOrderMDY})
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	if msgs[0].Type != chat.TypeSystem {
		t.Errorf("type = %v, want system", msgs[0].Type)
	}
	if msgs[0].Sender != "" {
		t.Errorf("system message should have no sender, got %q", msgs[0].Sender)
	}
}

func TestTextParser_DeletedMessage(t *testing.T) {
	input := "1/1/24, 10:00 AM - Alice: This message was deleted\n"

	msgs := parseText(t, input, Options{DateOrder: DateOrderMDY})
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	if !msgs[0].IsDeleted {
		t.Error("expected IsDeleted")
	}
	if msgs[0].Content != "" {
		t.Errorf("deleted message content = %q, want empty", msgs[0].Content)
	}
}

func TestTextParser_EditedMessage(t *testing.T) {
	input := "1/1/24, 10:00 AM - Alice: fixed the typo <This message was edited>\n"

	msgs := parseText(t, input, Options{DateOrder: DateOrderMDY})
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	if !msgs[0].IsEdited {
		t.Error("expected IsEdited")
	}
	if msgs[0].Content != "fixed the typo" {
		t.Errorf("content = %q, want marker stripped", msgs[0].Content)
	}
}

func TestTextParser_MediaOmitted(t *testing.T) {
	input := "1/1/24, 10:00 AM - Alice: <Media omitted>\n"

	msgs := parseText(t, input, Options{DateOrder: DateOrderMDY})
	if msgs[0].Type != chat.TypeImage {
		t.Errorf("type = %v, want image", msgs[0].Type)
	}
}

func TestTextParser_AttachmentTypes(t *testing.T) {
	cases := []struct {
		file string
		want chat.MessageType
	}{
		{"photo.jpg", chat.TypeImage},
		{"sticker.webp", chat.TypeSticker},
		{"clip.mp4", chat.TypeVideo},
		{"voice.opus", chat.TypeAudio},
		{"contact.vcf", chat.TypeContact},
		{"report.pdf", chat.TypeDocument},
	}
	for _, tc := range cases {
		input := "1/1/24, 10:00 AM - Alice: <attached: " + tc.file + ">\n"
		msgs := parseText(t, input, Options{DateOrder: DateOrderMDY})
		if len(msgs) != 1 {
			t.Fatalf("%s: expected 1 message, got %d", tc.file, len(msgs))
		}
		if msgs[0].Type != tc.want {
			t.Errorf("%s: type = %v, want %v", tc.file, msgs[0].Type, tc.want)
		}
	}
}

func TestTextParser_AmbiguousDateFatal(t *testing.T) {
	// Both components could be day or month, no hint given.
	input := "2/3/24, 10:00 - Alice: Hello\n"

	p := NewTextParser(Options{})
	err := p.Parse(strings.NewReader(input), func(ParsedMessage) error { return nil })
	if !errors.Is(err, chat.ErrAmbiguousDate) {
		t.Fatalf("expected ErrAmbiguousDate, got %v", err)
	}
}

func TestTextParser_OrderInferredFromEvidence(t *testing.T) {
	// 15 can only be a day, which locks DMY for the whole run.
	input := "15/1/24, 10:00 - Alice: First\n" +
		"2/3/24, 11:00 - Bob: Second\n"

	msgs := parseText(t, input, Options{})
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].Timestamp.Month() != time.January {
		t.Errorf("first message month = %v, want January", msgs[0].Timestamp.Month())
	}
	// Second message parsed under the locked DMY order: 2 March.
	if msgs[1].Timestamp.Month() != time.March {
		t.Errorf("second message month = %v, want March", msgs[1].Timestamp.Month())
	}
}

func TestTextParser_DottedDatesAreDayFirst(t *testing.T) {
	input := "05.01.2024, 22:04 - Alice: Hallo\n"

	msgs := parseText(t, input, Options{})
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	if msgs[0].Timestamp.Month() != time.January || msgs[0].Timestamp.Day() != 5 {
		t.Errorf("timestamp = %v, want 5 January", msgs[0].Timestamp)
	}
}

func TestTextParser_ISODateHeader(t *testing.T) {
	input := "2024-01-15, 22:04 - Alice: Hello\n"

	msgs := parseText(t, input, Options{})
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	want := time.Date(2024, 1, 15, 22, 4, 0, 0, time.UTC)
	if !msgs[0].Timestamp.Equal(want) {
		t.Errorf("timestamp = %v, want %v", msgs[0].Timestamp, want)
	}
}

func TestTextParser_TwelveHourClock(t *testing.T) {
	input := "1/1/24, 12:05 AM - Alice: midnight\n" +
		"1/1/24, 12:10 PM - Alice: noon\n" +
		"1/1/24, 3:00 PM - Alice: afternoon\n"

	msgs := parseText(t, input, Options{DateOrder: DateOrderMDY})
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(msgs))
	}
	if h := msgs[0].Timestamp.Hour(); h != 0 {
		t.Errorf("12:05 AM hour = %d, want 0", h)
	}
	if h := msgs[1].Timestamp.Hour(); h != 12 {
		t.Errorf("12:10 PM hour = %d, want 12", h)
	}
	if h := msgs[2].Timestamp.Hour(); h != 15 {
		t.Errorf("3:00 PM hour = %d, want 15", h)
	}
}

func TestTextParser_InvalidDateDropsWithDiagnostic(t *testing.T) {
	input := "32/1/24, 10:00 - Alice: impossible date\n" +
		"15/1/24, 10:01 - Bob: fine\n"

	var diags []chat.Diagnostic
	msgs := parseText(t, input, Options{
		DateOrder: DateOrderDMY,
		Diag:      func(d chat.Diagnostic) { diags = append(diags, d) },
	})
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	if len(diags) != 1 {
		t.Fatalf("expected 1 diagnostic, got %d", len(diags))
	}
}

func TestTextParser_StripsDirectionMarks(t *testing.T) {
	input := "1/1/24, 10:00 AM - Alice: ‎hello‏\n"

	msgs := parseText(t, input, Options{DateOrder: DateOrderMDY})
	if msgs[0].Content != "hello" {
		t.Errorf("content = %q, want direction marks stripped", msgs[0].Content)
	}
}
