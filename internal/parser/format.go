package parser

import (
	"strings"

	"github.com/chatlens/chatlens/internal/chat"
)

// Format identifies a supported export flavor. The set is closed: adding a
// flavor means adding a constant and extending the ForFormat switch, which the
// compiler checks.
type Format int

const (
	FormatText Format = iota
	FormatStructured
)

func (f Format) String() string {
	switch f {
	case FormatText:
		return "text"
	case FormatStructured:
		return "structured"
	}
	return "unknown"
}

// ParseFormat maps a caller-supplied format identifier to a Format. Unknown
// identifiers are fatal: no parsing happens for them.
func ParseFormat(id string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(id)) {
	case "text", "txt":
		return FormatText, nil
	case "structured", "json":
		return FormatStructured, nil
	}
	return 0, chat.UnsupportedFormatError(id)
}

// DateOrder resolves ambiguous two-digit dates like "02/03/24".
type DateOrder int

const (
	DateOrderUnknown DateOrder = iota
	DateOrderDMY
	DateOrderMDY
)

// ParseDateOrder maps a hint string to a DateOrder. Empty means no hint.
func ParseDateOrder(hint string) (DateOrder, error) {
	switch strings.ToLower(strings.TrimSpace(hint)) {
	case "":
		return DateOrderUnknown, nil
	case "dmy":
		return DateOrderDMY, nil
	case "mdy":
		return DateOrderMDY, nil
	}
	return 0, chat.UnsupportedFormatError("date order " + hint)
}
