// Package parser turns raw chat export streams into per-message raw fields.
// It never touches storage or the network: input is an io.Reader plus a
// format, output is a stream of ParsedMessage values.
package parser

import (
	"io"
	"time"

	"github.com/chatlens/chatlens/internal/chat"
)

// ParsedMessage is the raw field set extracted for one record, before
// normalization. SourceID and ReplyToID carry the export's own identifiers
// when the flavor provides them (structured only).
type ParsedMessage struct {
	Sender    string
	Timestamp time.Time
	Content   string
	Type      chat.MessageType
	IsDeleted bool
	IsEdited  bool
	SourceID  string
	ReplyToID string
	LineStart int
	LineEnd   int
}

// Parser consumes an input stream and calls emit once per parsed record, in
// source order. Implementations must be streaming: memory use is bounded by
// one record, not by input size. Returning a non-nil error from emit stops
// the parse and propagates the error.
type Parser interface {
	Parse(r io.Reader, emit func(ParsedMessage) error) error
}

// Options configures a parser. Diag receives one entry per dropped or
// degraded record; nil disables collection.
type Options struct {
	DateOrder DateOrder
	Diag      func(chat.Diagnostic)
}

func (o Options) diag(d chat.Diagnostic) {
	if o.Diag != nil {
		o.Diag(d)
	}
}

// ForFormat returns the parser for a format. The switch is exhaustive over
// the Format constants; an out-of-range value is an unsupported format.
func ForFormat(f Format, opts Options) (Parser, error) {
	switch f {
	case FormatText:
		return NewTextParser(opts), nil
	case FormatStructured:
		return NewStructuredParser(opts), nil
	}
	return nil, chat.UnsupportedFormatError(f.String())
}
