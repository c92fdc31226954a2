package parser

import (
	"io"
	"strings"
	"testing"

	"github.com/chatlens/chatlens/internal/chat"
)

func collectRecords(t *testing.T, input string, diag func(chat.Diagnostic)) []*RawRecord {
	t.Helper()
	tok := NewTokenizer(strings.NewReader(input), diag)
	var recs []*RawRecord
	for {
		rec, err := tok.Next()
		if err == io.EOF {
			return recs
		}
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		recs = append(recs, rec)
	}
}

func TestTokenizer_SplitsOnHeaders(t *testing.T) {
	input := "1/1/24, 10:00 AM - Alice: Hello\n" +
		"1/1/24, 10:01 AM - Bob: Hi Alice!\n"

	recs := collectRecords(t, input, nil)
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	if !strings.Contains(recs[0].Header, "Alice") {
		t.Errorf("record 0 header = %q", recs[0].Header)
	}
	if recs[0].LineStart != 1 || recs[1].LineStart != 2 {
		t.Errorf("line starts = %d, %d", recs[0].LineStart, recs[1].LineStart)
	}
}

func TestTokenizer_ContinuationLines(t *testing.T) {
	input := "1/1/24, 10:00 AM - Alice: First line\n" +
		"second line\n" +
		"third line\n" +
		"1/1/24, 10:01 AM - Bob: Hi\n"

	recs := collectRecords(t, input, nil)
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	if len(recs[0].Continuation) != 2 {
		t.Fatalf("expected 2 continuation lines, got %d", len(recs[0].Continuation))
	}
	if recs[0].LineEnd != 3 {
		t.Errorf("record 0 LineEnd = %d, want 3", recs[0].LineEnd)
	}
}

func TestTokenizer_OrphanLineDiagnostic(t *testing.T) {
	input := "no timestamp here\n" +
		"1/1/24, 10:00 AM - Alice: Hello\n"

	var diags []chat.Diagnostic
	recs := collectRecords(t, input, func(d chat.Diagnostic) { diags = append(diags, d) })

	if len(recs) != 1 {
		t.Fatalf("expected 1 record, got %d", len(recs))
	}
	if len(diags) != 1 {
		t.Fatalf("expected 1 diagnostic, got %d", len(diags))
	}
	if diags[0].LineStart != 1 {
		t.Errorf("diagnostic LineStart = %d, want 1", diags[0].LineStart)
	}
}

func TestTokenizer_SkipsBlankLines(t *testing.T) {
	input := "1/1/24, 10:00 AM - Alice: Hello\n" +
		"\n" +
		"   \n" +
		"1/1/24, 10:01 AM - Bob: Hi\n"

	recs := collectRecords(t, input, nil)
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	if len(recs[0].Continuation) != 0 {
		t.Errorf("blank lines should not become continuations, got %d", len(recs[0].Continuation))
	}
}

func TestTokenizer_BracketedHeaders(t *testing.T) {
	input := "[1/1/24, 10:00:05] Alice: Hello\n"

	recs := collectRecords(t, input, nil)
	if len(recs) != 1 {
		t.Fatalf("expected 1 record, got %d", len(recs))
	}
}

func TestTokenizer_CRLFInput(t *testing.T) {
	input := "1/1/24, 10:00 AM - Alice: Hello\r\n1/1/24, 10:01 AM - Bob: Hi\r\n"

	recs := collectRecords(t, input, nil)
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	if strings.HasSuffix(recs[0].Header, "\r") {
		t.Error("header should have CR stripped")
	}
}

func TestTokenizer_EmptyInput(t *testing.T) {
	recs := collectRecords(t, "", nil)
	if len(recs) != 0 {
		t.Fatalf("expected no records, got %d", len(recs))
	}
}
