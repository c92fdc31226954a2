package parser

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/chatlens/chatlens/internal/chat"
)

// StructuredParser parses the structured-export flavor: JSON message objects,
// either as a top-level array, inside a {"messages": [...]} envelope, or as
// newline-delimited objects. All three paths decode one record at a time so
// input size never bounds memory.
type StructuredParser struct {
	opts Options
	seq  int // record ordinal, used as the line range for diagnostics
}

func NewStructuredParser(opts Options) *StructuredParser {
	return &StructuredParser{opts: opts}
}

type structRecord struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Timestamp json.RawMessage `json:"timestamp"`
	SentAt    json.RawMessage `json:"sent_at"`
	Date      json.RawMessage `json:"date"`
	From      json.RawMessage `json:"from"`
	Sender    json.RawMessage `json:"sender"`
	Author    json.RawMessage `json:"author"`
	Text      *struct {
		Body string `json:"body"`
	} `json:"text"`
	Body     string     `json:"body"`
	Image    *mediaPart `json:"image"`
	Video    *mediaPart `json:"video"`
	Audio    *mediaPart `json:"audio"`
	Document *mediaPart `json:"document"`
	Sticker  *mediaPart `json:"sticker"`
	Location *struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
		Name      string  `json:"name"`
	} `json:"location"`
	Contacts []struct {
		Name struct {
			FormattedName string `json:"formatted_name"`
		} `json:"name"`
	} `json:"contacts"`
	Deleted   bool `json:"deleted"`
	IsDeleted bool `json:"is_deleted"`
	Edited    bool `json:"edited"`
	IsEdited  bool `json:"is_edited"`
	Context   *struct {
		QuotedMessageID string `json:"quoted_message_id"`
	} `json:"context"`
}

type mediaPart struct {
	Caption  string `json:"caption"`
	Filename string `json:"filename"`
}

// Parse reads JSON message records and emits one ParsedMessage per record.
func (p *StructuredParser) Parse(r io.Reader, emit func(ParsedMessage) error) error {
	br := bufio.NewReaderSize(r, 64*1024)
	first, err := peekNonSpace(br)
	if err == io.EOF {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read structured input: %w", err)
	}

	dec := json.NewDecoder(br)
	switch first {
	case '[':
		return p.emitArray(dec, emit)
	case '{':
		envelope, err := p.parseFirstObject(dec, emit)
		if err != nil || envelope {
			return err
		}
		// Newline-delimited records: keep decoding top-level objects.
		for {
			var rec structRecord
			if err := dec.Decode(&rec); err == io.EOF {
				return nil
			} else if err != nil {
				return fmt.Errorf("decode record: %w", err)
			}
			if err := p.emitRecord(rec, emit); err != nil {
				return err
			}
		}
	}
	return fmt.Errorf("structured input is not JSON (starts with %q)", first)
}

// parseFirstObject walks the keys of the leading object. If it carries a
// "messages" or "data" array it is an envelope and the array is streamed;
// otherwise the object itself is treated as the first message record.
func (p *StructuredParser) parseFirstObject(dec *json.Decoder, emit func(ParsedMessage) error) (bool, error) {
	if _, err := dec.Token(); err != nil { // consume '{'
		return false, fmt.Errorf("decode envelope: %w", err)
	}

	envelope := false
	stash := make(map[string]json.RawMessage)

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return false, fmt.Errorf("decode envelope key: %w", err)
		}
		key, _ := keyTok.(string)

		if key == "messages" || key == "data" {
			envelope = true
			if err := p.emitArray(dec, emit); err != nil {
				return false, err
			}
			continue
		}

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return false, fmt.Errorf("decode envelope value %q: %w", key, err)
		}
		stash[key] = raw
	}
	if _, err := dec.Token(); err != nil { // consume '}'
		return false, fmt.Errorf("decode envelope close: %w", err)
	}

	if envelope {
		return true, nil
	}

	// Not an envelope: reassemble the stashed keys into one record.
	buf, err := json.Marshal(stash)
	if err != nil {
		return false, fmt.Errorf("reassemble record: %w", err)
	}
	var rec structRecord
	if err := json.Unmarshal(buf, &rec); err != nil {
		return false, fmt.Errorf("decode record: %w", err)
	}
	return false, p.emitRecord(rec, emit)
}

// emitArray streams the elements of a JSON array whose opening bracket is the
// decoder's next token.
func (p *StructuredParser) emitArray(dec *json.Decoder, emit func(ParsedMessage) error) error {
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("decode array: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '[' {
		return fmt.Errorf("expected array, got %v", tok)
	}
	for dec.More() {
		var rec structRecord
		if err := dec.Decode(&rec); err != nil {
			return fmt.Errorf("decode record: %w", err)
		}
		if err := p.emitRecord(rec, emit); err != nil {
			return err
		}
	}
	if _, err := dec.Token(); err != nil { // consume ']'
		return fmt.Errorf("decode array close: %w", err)
	}
	return nil
}

func (p *StructuredParser) emitRecord(rec structRecord, emit func(ParsedMessage) error) error {
	p.seq++

	ts, ok := parseStructTimestamp(rec.Timestamp, rec.SentAt, rec.Date)
	if !ok {
		p.opts.diag(chat.Diagnostic{
			LineStart: p.seq,
			LineEnd:   p.seq,
			Reason:    "record missing timestamp",
		})
		return nil
	}

	pm := ParsedMessage{
		Sender:    parseStructSender(rec.From, rec.Sender, rec.Author),
		Timestamp: ts,
		SourceID:  rec.ID,
		LineStart: p.seq,
		LineEnd:   p.seq,
	}

	p.fillContent(rec, &pm)

	if rec.Deleted || rec.IsDeleted {
		pm.IsDeleted = true
		pm.Content = ""
	}
	if rec.Edited || rec.IsEdited {
		pm.IsEdited = true
	}
	if rec.Context != nil {
		pm.ReplyToID = rec.Context.QuotedMessageID
	}

	return emit(pm)
}

func (p *StructuredParser) fillContent(rec structRecord, pm *ParsedMessage) {
	typ := rec.Type
	if typ == "" {
		typ = "text"
	}

	switch typ {
	case "text":
		pm.Type = chat.TypeText
		if rec.Text != nil {
			pm.Content = rec.Text.Body
		} else {
			pm.Content = rec.Body
		}
	case "image":
		pm.Type = chat.TypeImage
		pm.Content = captionOf(rec.Image)
	case "video":
		pm.Type = chat.TypeVideo
		pm.Content = captionOf(rec.Video)
	case "audio":
		pm.Type = chat.TypeAudio
		pm.Content = captionOf(rec.Audio)
	case "document":
		pm.Type = chat.TypeDocument
		pm.Content = captionOf(rec.Document)
	case "sticker":
		pm.Type = chat.TypeSticker
	case "location":
		pm.Type = chat.TypeLocation
		if rec.Location != nil {
			pm.Content = fmt.Sprintf("Location: %g, %g", rec.Location.Latitude, rec.Location.Longitude)
			if rec.Location.Name != "" {
				pm.Content += " (" + rec.Location.Name + ")"
			}
		}
	case "contact":
		pm.Type = chat.TypeContact
		var names []string
		for _, c := range rec.Contacts {
			if c.Name.FormattedName != "" {
				names = append(names, c.Name.FormattedName)
			}
		}
		pm.Content = strings.Join(names, ", ")
	case "system":
		pm.Type = chat.TypeSystem
		pm.Content = rec.Body
	default:
		pm.Type = chat.TypeText
		pm.Content = "[" + typ + "]"
		p.opts.diag(chat.Diagnostic{
			LineStart: p.seq,
			LineEnd:   p.seq,
			Reason:    "unknown message type " + typ,
		})
	}
	pm.Content = cleanText(pm.Content)
}

func captionOf(m *mediaPart) string {
	if m == nil {
		return ""
	}
	return m.Caption
}

// parseStructTimestamp accepts unix seconds, unix milliseconds, and a handful
// of string layouts across the candidate fields.
func parseStructTimestamp(fields ...json.RawMessage) (time.Time, bool) {
	for _, raw := range fields {
		if len(raw) == 0 {
			continue
		}

		var n float64
		if err := json.Unmarshal(raw, &n); err == nil && n > 0 {
			if n > 1e12 { // milliseconds
				n /= 1000
			}
			sec := int64(n)
			nsec := int64((n - float64(sec)) * 1e9)
			return time.Unix(sec, nsec).UTC(), true
		}

		var s string
		if err := json.Unmarshal(raw, &s); err != nil || s == "" {
			continue
		}
		for _, layout := range []string{
			time.RFC3339Nano,
			time.RFC3339,
			"2006-01-02T15:04:05.000Z",
			"2006-01-02 15:04:05",
			"2006-01-02",
		} {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UTC(), true
			}
		}
	}
	return time.Time{}, false
}

// parseStructSender accepts a plain string or an object with name/phone/id.
func parseStructSender(fields ...json.RawMessage) string {
	for _, raw := range fields {
		if len(raw) == 0 {
			continue
		}

		var s string
		if err := json.Unmarshal(raw, &s); err == nil && s != "" {
			return s
		}

		var obj struct {
			Name  string `json:"name"`
			Phone string `json:"phone"`
			ID    string `json:"id"`
		}
		if err := json.Unmarshal(raw, &obj); err == nil {
			switch {
			case obj.Name != "":
				return obj.Name
			case obj.Phone != "":
				return obj.Phone
			case obj.ID != "":
				return obj.ID
			}
		}
	}
	return ""
}

func peekNonSpace(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.ReadByte()
		if err != nil {
			return 0, err
		}
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		}
		if err := br.UnreadByte(); err != nil {
			return 0, err
		}
		return b, nil
	}
}
