// Package normalize turns parsed raw fields into canonical messages with
// stable ids, a normalized sender identity, and an incrementally built
// participant table.
package normalize

import (
	"strings"

	"github.com/chatlens/chatlens/internal/chat"
	"github.com/chatlens/chatlens/internal/parser"
)

// SystemSenderKey is the participant key for administrative messages.
const SystemSenderKey = "system"

// SenderKey canonicalizes a raw sender string: whitespace collapsed and
// trimmed, lowercased. Identity is exact normalized-string equality only; no
// fuzzy merging of superficially different senders is attempted.
func SenderKey(raw string) string {
	return strings.ToLower(strings.Join(strings.Fields(raw), " "))
}

// Normalizer assigns monotonically increasing message ids in source order and
// builds the participant table as messages are observed. One Normalizer per
// pipeline run.
type Normalizer struct {
	diag         func(chat.Diagnostic)
	nextID       int64
	participants map[string]*chat.Participant
	bySourceID   map[string]int64
	dropped      int
}

func New(diag func(chat.Diagnostic)) *Normalizer {
	if diag == nil {
		diag = func(chat.Diagnostic) {}
	}
	return &Normalizer{
		diag:         diag,
		participants: make(map[string]*chat.Participant),
		bySourceID:   make(map[string]int64),
	}
}

// Normalize converts one parsed record into a canonical message. Records that
// fail required-field validation are dropped with a diagnostic; the run
// continues.
func (n *Normalizer) Normalize(pm parser.ParsedMessage) (chat.Message, bool) {
	if pm.Timestamp.IsZero() {
		n.drop(pm, "record missing timestamp")
		return chat.Message{}, false
	}

	key := SenderKey(pm.Sender)
	if key == "" {
		if pm.Type != chat.TypeSystem {
			n.drop(pm, "record missing sender")
			return chat.Message{}, false
		}
		key = SystemSenderKey
	}

	if pm.Content == "" && pm.Type == chat.TypeText && !pm.IsDeleted {
		n.drop(pm, "record empty after trimming")
		return chat.Message{}, false
	}

	n.nextID++
	msg := chat.Message{
		ID:        n.nextID,
		SenderKey: key,
		Timestamp: pm.Timestamp,
		Content:   pm.Content,
		Type:      pm.Type,
		IsDeleted: pm.IsDeleted,
		IsEdited:  pm.IsEdited,
	}

	if pm.SourceID != "" {
		n.bySourceID[pm.SourceID] = msg.ID
	}
	if pm.ReplyToID != "" {
		if id, ok := n.bySourceID[pm.ReplyToID]; ok {
			msg.ReplyTo = &id
		}
	}

	n.observe(key, pm, msg)
	return msg, true
}

func (n *Normalizer) observe(key string, pm parser.ParsedMessage, msg chat.Message) {
	p, ok := n.participants[key]
	if !ok {
		display := strings.TrimSpace(pm.Sender)
		if key == SystemSenderKey && display == "" {
			display = "System"
		}
		p = &chat.Participant{
			Key:         key,
			DisplayName: display,
			FirstSeen:   msg.Timestamp,
			LastSeen:    msg.Timestamp,
		}
		n.participants[key] = p
	}
	if msg.Timestamp.Before(p.FirstSeen) {
		p.FirstSeen = msg.Timestamp
	}
	if msg.Timestamp.After(p.LastSeen) {
		p.LastSeen = msg.Timestamp
	}
	p.MessageCount++
}

func (n *Normalizer) drop(pm parser.ParsedMessage, reason string) {
	n.dropped++
	n.diag(chat.Diagnostic{LineStart: pm.LineStart, LineEnd: pm.LineEnd, Reason: reason})
}

// Participants returns the table built so far, keyed by sender key.
func (n *Normalizer) Participants() map[string]*chat.Participant {
	return n.participants
}

// Dropped reports how many records failed validation.
func (n *Normalizer) Dropped() int {
	return n.dropped
}
