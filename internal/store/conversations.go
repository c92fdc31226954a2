package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/chatlens/chatlens/internal/chat"
)

// Conversation lifecycle statuses.
const (
	StatusProcessing = "processing"
	StatusReady      = "ready"
	StatusFailed     = "failed"
)

// CreateConversation inserts a conversation shell in processing state and
// returns its id.
func (s *Store) CreateConversation(ctx context.Context, title, format string) (uuid.UUID, error) {
	id := uuid.New()
	_, err := s.pool.Exec(ctx, `
		INSERT INTO conversations (id, title, source_format, status, created_at)
		VALUES ($1, $2, $3, $4, now())`,
		id, title, format, StatusProcessing,
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert conversation: %w", err)
	}
	return id, nil
}

// SetStatus updates a conversation's lifecycle status.
func (s *Store) SetStatus(ctx context.Context, convID uuid.UUID, status string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE conversations SET status = $2, updated_at = now() WHERE id = $1`,
		convID, status,
	)
	if err != nil {
		return fmt.Errorf("update conversation status: %w", err)
	}
	return nil
}

// WriteParticipants inserts the participant table for a conversation.
func (s *Store) WriteParticipants(ctx context.Context, convID uuid.UUID, participants map[string]*chat.Participant) error {
	batch := &pgx.Batch{}
	for _, p := range participants {
		batch.Queue(`
			INSERT INTO participants (conversation_id, sender_key, display_name, first_seen, last_seen, message_count)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (conversation_id, sender_key) DO UPDATE
			SET last_seen = EXCLUDED.last_seen, message_count = EXCLUDED.message_count`,
			convID, p.Key, p.DisplayName, p.FirstSeen, p.LastSeen, p.MessageCount,
		)
	}
	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()
	for range participants {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("insert participant: %w", err)
		}
	}
	return nil
}

// WriteMessages bulk-inserts canonical messages for a conversation.
func (s *Store) WriteMessages(ctx context.Context, convID uuid.UUID, msgs []chat.Message) error {
	batch := &pgx.Batch{}
	for _, m := range msgs {
		batch.Queue(`
			INSERT INTO messages (conversation_id, seq, sender_key, sent_at, content, message_type, is_deleted, is_edited, reply_to_seq)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			convID, m.ID, m.SenderKey, m.Timestamp, m.Content, string(m.Type), m.IsDeleted, m.IsEdited, m.ReplyTo,
		)
	}
	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()
	for range msgs {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("insert message: %w", err)
		}
	}
	return nil
}
