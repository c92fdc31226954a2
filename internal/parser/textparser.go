package parser

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/chatlens/chatlens/internal/chat"
)

// Platform edit marker suffix in text exports, matched case-insensitively.
const editedMarker = "<this message was edited>"

var (
	attachmentRe   = regexp.MustCompile(`<attached:\s*(.+?)>`)
	deletedRe      = regexp.MustCompile(`(?i)^(this message was deleted|you deleted this message)\.?$`)
	locationRe     = regexp.MustCompile(`(?i)^location:|https://maps\.google\.com`)
	mediaOmittedRe = regexp.MustCompile(`(?i)<media omitted>`)
)

// TextParser parses the text-export flavor: one timestamped header line per
// message, continuation lines for multi-line bodies, platform placeholders
// for media, deletions and edits.
type TextParser struct {
	opts  Options
	order DateOrder // resolved order, locked for the run once known
}

func NewTextParser(opts Options) *TextParser {
	return &TextParser{opts: opts, order: opts.DateOrder}
}

// Parse tokenizes the stream and emits one ParsedMessage per record.
// Records with an unresolvable two-digit date abort the run with
// ErrAmbiguousDate; records with an unparseable date degrade to a
// diagnostic and are dropped.
func (p *TextParser) Parse(r io.Reader, emit func(ParsedMessage) error) error {
	tok := NewTokenizer(r, p.opts.Diag)
	for {
		rec, err := tok.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		pm, ok, err := p.parseRecord(rec)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if err := emit(pm); err != nil {
			return err
		}
	}
}

func (p *TextParser) parseRecord(rec *RawRecord) (ParsedMessage, bool, error) {
	m := headerRe.FindStringSubmatch(rec.Header)
	if m == nil {
		// Tokenizer only starts records on header matches, so this is
		// unreachable in practice; treat defensively as a drop.
		p.opts.diag(chat.Diagnostic{LineStart: rec.LineStart, LineEnd: rec.LineEnd, Reason: "malformed header"})
		return ParsedMessage{}, false, nil
	}

	ts, err := p.headerTime(m, rec.Header, rec.LineStart)
	if err != nil {
		if errors.Is(err, chat.ErrAmbiguousDate) {
			return ParsedMessage{}, false, err
		}
		p.opts.diag(chat.Diagnostic{LineStart: rec.LineStart, LineEnd: rec.LineEnd, Reason: err.Error()})
		return ParsedMessage{}, false, nil
	}

	rest := rec.Header[len(m[0]):]
	pm := ParsedMessage{
		Timestamp: ts,
		Type:      chat.TypeText,
		LineStart: rec.LineStart,
		LineEnd:   rec.LineEnd,
	}

	// "Sender: body" split on the first colon. No colon means an
	// administrative line ("X added Y"), which is a system message.
	if idx := strings.Index(rest, ": "); idx > 0 {
		pm.Sender = strings.TrimSpace(rest[:idx])
		pm.Content = rest[idx+2:]
	} else {
		pm.Type = chat.TypeSystem
		pm.Content = rest
	}

	if len(rec.Continuation) > 0 {
		pm.Content = pm.Content + "\n" + strings.Join(rec.Continuation, "\n")
	}
	pm.Content = cleanText(pm.Content)

	p.classify(&pm)
	return pm, true, nil
}

// classify applies the platform placeholder rules to fill in message type
// and the deleted/edited flags.
func (p *TextParser) classify(pm *ParsedMessage) {
	if pm.Type == chat.TypeSystem {
		return
	}

	if deletedRe.MatchString(strings.TrimSpace(pm.Content)) {
		pm.IsDeleted = true
		pm.Content = ""
		return
	}

	if strings.HasSuffix(strings.ToLower(pm.Content), editedMarker) {
		pm.IsEdited = true
		pm.Content = strings.TrimSpace(pm.Content[:len(pm.Content)-len(editedMarker)])
	}

	switch {
	case mediaOmittedRe.MatchString(pm.Content):
		pm.Type = chat.TypeImage
		pm.Content = strings.TrimSpace(mediaOmittedRe.ReplaceAllString(pm.Content, ""))
	case attachmentRe.MatchString(pm.Content):
		am := attachmentRe.FindStringSubmatch(pm.Content)
		pm.Type = attachmentType(am[1])
		pm.Content = strings.TrimSpace(attachmentRe.ReplaceAllString(pm.Content, ""))
	case locationRe.MatchString(pm.Content):
		pm.Type = chat.TypeLocation
	}
}

// headerTime builds the timestamp from the header submatches, resolving
// two-digit date order from the hint or from an unambiguous value. Dotted
// dates are day-first by platform convention.
func (p *TextParser) headerTime(m []string, raw string, line int) (time.Time, error) {
	a, _ := strconv.Atoi(m[1])
	b, _ := strconv.Atoi(m[3])
	c, _ := strconv.Atoi(m[4])

	var year, month, day int
	switch {
	case len(m[1]) == 4:
		year, month, day = a, b, c
	default:
		year = c
		if year < 100 {
			year += 2000
		}
		order := p.order
		if order == DateOrderUnknown && m[2] == "." {
			order = DateOrderDMY
		}
		if order == DateOrderUnknown {
			switch {
			case a > 12 && b <= 12:
				order = DateOrderDMY
			case b > 12 && a <= 12:
				order = DateOrderMDY
			default:
				return time.Time{}, chat.AmbiguousDateError(raw, line)
			}
		}
		p.order = order
		if order == DateOrderDMY {
			day, month = a, b
		} else {
			day, month = b, a
		}
	}

	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, fmt.Errorf("invalid date in header %q", strings.TrimSpace(raw))
	}

	hour, _ := strconv.Atoi(m[5])
	min, _ := strconv.Atoi(m[6])
	sec := 0
	if m[7] != "" {
		sec, _ = strconv.Atoi(m[7])
	}
	switch strings.ToLower(m[8]) {
	case "pm":
		if hour < 12 {
			hour += 12
		}
	case "am":
		if hour == 12 {
			hour = 0
		}
	}
	if hour > 23 || min > 59 || sec > 59 {
		return time.Time{}, fmt.Errorf("invalid time in header %q", strings.TrimSpace(raw))
	}

	return time.Date(year, time.Month(month), day, hour, min, sec, 0, time.UTC), nil
}

// attachmentType maps an attachment filename to a message type by extension.
func attachmentType(filename string) chat.MessageType {
	switch strings.ToLower(filepath.Ext(strings.TrimSpace(filename))) {
	case ".jpg", ".jpeg", ".png", ".gif", ".bmp":
		return chat.TypeImage
	case ".webp":
		return chat.TypeSticker
	case ".mp4", ".avi", ".mov", ".wmv", ".webm":
		return chat.TypeVideo
	case ".mp3", ".wav", ".ogg", ".m4a", ".opus", ".aac":
		return chat.TypeAudio
	case ".vcf":
		return chat.TypeContact
	default:
		return chat.TypeDocument
	}
}

// cleanText strips zero-width direction marks that text exports embed around
// media placeholders and normalizes line endings. Interior newlines are kept:
// multi-line bodies stay multi-line.
func cleanText(s string) string {
	s = strings.ReplaceAll(s, "‎", "")
	s = strings.ReplaceAll(s, "‏", "")
	return strings.TrimSpace(s)
}
