package parser

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/chatlens/chatlens/internal/chat"
)

// headerRe matches the timestamp prefix that starts a new record in text
// exports. Covers "1/1/24, 10:00 AM - ", "2024-01-15, 22:04 - ",
// "15.01.2024, 22:04 - " and the bracketed "[1/1/24, 10:00] " variant.
// Groups: 1 first date field, 2 separator, 3 second field, 4 third field,
// 5 hour, 6 minute, 7 second, 8 AM/PM marker.
var headerRe = regexp.MustCompile(
	`^\[?(\d{1,4})([/.\-])(\d{1,2})[/.\-](\d{2,4}),?\s+(\d{1,2}):(\d{2})(?::(\d{2}))?\s*([AaPp][Mm])?(?:\]|\s*[-\x{2013}])\s*`)

// RawRecord is one logical unit of input before parsing: a header line plus
// any continuation lines. Ephemeral; consumed by exactly one parser call.
type RawRecord struct {
	Header       string
	Continuation []string
	LineStart    int
	LineEnd      int
}

// Tokenizer splits raw decoded text into RawRecords. A new record begins at
// any line matching the timestamp prefix; lines that don't match continue
// the current record. Lazy and restartable: construct a fresh Tokenizer for
// each pass over the input.
type Tokenizer struct {
	scanner *bufio.Scanner
	diag    func(chat.Diagnostic)
	line    int
	pending *RawRecord
	done    bool
}

// NewTokenizer wraps a decoded text stream. The caller owns charset
// detection; the tokenizer assumes UTF-8.
func NewTokenizer(r io.Reader, diag func(chat.Diagnostic)) *Tokenizer {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024) // 1MB line buffer
	if diag == nil {
		diag = func(chat.Diagnostic) {}
	}
	return &Tokenizer{scanner: sc, diag: diag}
}

// Next returns the next record, or io.EOF when the input is exhausted.
func (t *Tokenizer) Next() (*RawRecord, error) {
	if t.done {
		return t.flush()
	}

	for t.scanner.Scan() {
		t.line++
		line := strings.TrimRight(t.scanner.Text(), "\r")

		if strings.TrimSpace(line) == "" {
			continue
		}

		if headerRe.MatchString(line) {
			rec := t.pending
			t.pending = &RawRecord{Header: line, LineStart: t.line, LineEnd: t.line}
			if rec != nil {
				return rec, nil
			}
			continue
		}

		// Continuation of the current record, or an orphan with no record
		// to attach to.
		if t.pending != nil {
			t.pending.Continuation = append(t.pending.Continuation, line)
			t.pending.LineEnd = t.line
			continue
		}
		t.diag(chat.Diagnostic{
			LineStart: t.line,
			LineEnd:   t.line,
			Reason:    "orphaned line: no timestamp header to attach to",
		})
	}

	if err := t.scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan input: %w", err)
	}
	t.done = true
	return t.flush()
}

func (t *Tokenizer) flush() (*RawRecord, error) {
	if t.pending != nil {
		rec := t.pending
		t.pending = nil
		return rec, nil
	}
	return nil, io.EOF
}
