package normalize

import (
	"testing"
	"time"

	"github.com/chatlens/chatlens/internal/chat"
	"github.com/chatlens/chatlens/internal/parser"
)

var base = time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

func TestSenderKey(t *testing.T) {
	cases := []struct {
		raw  string
		want string
	}{
		{"Alice", "alice"},
		{"  Alice  Smith ", "alice smith"},
		{"ALICE\tSMITH", "alice smith"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := SenderKey(tc.raw); got != tc.want {
			t.Errorf("SenderKey(%q) = %q, want %q", tc.raw, got, tc.want)
		}
	}
}

func TestNormalize_AssignsMonotonicIDs(t *testing.T) {
	n := New(nil)

	for i := 0; i < 3; i++ {
		msg, ok := n.Normalize(parser.ParsedMessage{
			Sender:    "Alice",
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			Content:   "hello",
			Type:      chat.TypeText,
		})
		if !ok {
			t.Fatalf("message %d dropped", i)
		}
		if msg.ID != int64(i+1) {
			t.Errorf("message %d id = %d, want %d", i, msg.ID, i+1)
		}
	}
}

func TestNormalize_DropsInvalidRecords(t *testing.T) {
	var diags []chat.Diagnostic
	n := New(func(d chat.Diagnostic) { diags = append(diags, d) })

	// Missing timestamp.
	if _, ok := n.Normalize(parser.ParsedMessage{Sender: "Alice", Content: "x", Type: chat.TypeText}); ok {
		t.Error("expected drop for missing timestamp")
	}
	// Missing sender on a non-system message.
	if _, ok := n.Normalize(parser.ParsedMessage{Timestamp: base, Content: "x", Type: chat.TypeText}); ok {
		t.Error("expected drop for missing sender")
	}
	// Empty text content.
	if _, ok := n.Normalize(parser.ParsedMessage{Sender: "Alice", Timestamp: base, Type: chat.TypeText}); ok {
		t.Error("expected drop for empty content")
	}

	if n.Dropped() != 3 {
		t.Errorf("Dropped() = %d, want 3", n.Dropped())
	}
	if len(diags) != 3 {
		t.Errorf("expected 3 diagnostics, got %d", len(diags))
	}
}

func TestNormalize_DeletedMessageKeptWithoutContent(t *testing.T) {
	n := New(nil)

	msg, ok := n.Normalize(parser.ParsedMessage{
		Sender:    "Alice",
		Timestamp: base,
		Type:      chat.TypeText,
		IsDeleted: true,
	})
	if !ok {
		t.Fatal("deleted message should not be dropped")
	}
	if !msg.IsDeleted {
		t.Error("expected IsDeleted")
	}
}

func TestNormalize_SystemMessagesUseSystemKey(t *testing.T) {
	n := New(nil)

	msg, ok := n.Normalize(parser.ParsedMessage{
		Timestamp: base,
		Content:   "Alice added Bob",
		Type:      chat.TypeSystem,
	})
	if !ok {
		t.Fatal("system message dropped")
	}
	if msg.SenderKey != SystemSenderKey {
		t.Errorf("sender key = %q, want %q", msg.SenderKey, SystemSenderKey)
	}
	if n.Participants()[SystemSenderKey].DisplayName != "System" {
		t.Errorf("system display name = %q", n.Participants()[SystemSenderKey].DisplayName)
	}
}

func TestNormalize_ParticipantTable(t *testing.T) {
	n := New(nil)

	inputs := []parser.ParsedMessage{
		{Sender: "Alice", Timestamp: base, Content: "a", Type: chat.TypeText},
		{Sender: "Bob", Timestamp: base.Add(time.Minute), Content: "b", Type: chat.TypeText},
		{Sender: "alice", Timestamp: base.Add(2 * time.Minute), Content: "c", Type: chat.TypeText},
	}
	for _, pm := range inputs {
		if _, ok := n.Normalize(pm); !ok {
			t.Fatal("unexpected drop")
		}
	}

	parts := n.Participants()
	if len(parts) != 2 {
		t.Fatalf("expected 2 participants, got %d", len(parts))
	}
	alice := parts["alice"]
	if alice.MessageCount != 2 {
		t.Errorf("alice count = %d, want 2", alice.MessageCount)
	}
	if !alice.FirstSeen.Equal(base) {
		t.Errorf("alice first seen = %v", alice.FirstSeen)
	}
	if !alice.LastSeen.Equal(base.Add(2 * time.Minute)) {
		t.Errorf("alice last seen = %v", alice.LastSeen)
	}
	// Display name comes from the first spelling observed.
	if alice.DisplayName != "Alice" {
		t.Errorf("alice display name = %q", alice.DisplayName)
	}
}

func TestNormalize_ResolvesReplyTargets(t *testing.T) {
	n := New(nil)

	first, _ := n.Normalize(parser.ParsedMessage{
		Sender: "Alice", Timestamp: base, Content: "original", Type: chat.TypeText, SourceID: "m1",
	})
	reply, ok := n.Normalize(parser.ParsedMessage{
		Sender: "Bob", Timestamp: base.Add(time.Minute), Content: "reply", Type: chat.TypeText,
		SourceID: "m2", ReplyToID: "m1",
	})
	if !ok {
		t.Fatal("reply dropped")
	}
	if reply.ReplyTo == nil || *reply.ReplyTo != first.ID {
		t.Errorf("reply target = %v, want %d", reply.ReplyTo, first.ID)
	}

	// Unknown targets stay nil.
	dangling, _ := n.Normalize(parser.ParsedMessage{
		Sender: "Bob", Timestamp: base.Add(2 * time.Minute), Content: "x", Type: chat.TypeText,
		ReplyToID: "missing",
	})
	if dangling.ReplyTo != nil {
		t.Error("dangling reply target should be nil")
	}
}
