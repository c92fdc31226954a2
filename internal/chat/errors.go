package chat

import (
	"errors"
	"fmt"
)

// Fatal errors. Only format selection and input-stream failures abort a run;
// everything per-record or per-message degrades into diagnostics instead.
var (
	ErrUnsupportedFormat = errors.New("unsupported format")
	ErrAmbiguousDate     = errors.New("ambiguous date order: supply a date order hint")
)

// UnsupportedFormatError reports an unknown format identifier.
func UnsupportedFormatError(id string) error {
	return fmt.Errorf("%w: %q", ErrUnsupportedFormat, id)
}

// AmbiguousDateError reports a two-digit date that cannot be resolved without
// a hint, e.g. "02/03/24".
func AmbiguousDateError(raw string, line int) error {
	return fmt.Errorf("%w (line %d: %q)", ErrAmbiguousDate, line, raw)
}
