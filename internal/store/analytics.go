package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/chatlens/chatlens/internal/chat"
)

// WriteAnalytics stores the analytics document and its run diagnostics for a
// conversation, replacing any previous run's result.
func (s *Store) WriteAnalytics(ctx context.Context, convID uuid.UUID, a *chat.ConversationAnalytics, diags []chat.Diagnostic) error {
	doc, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshal analytics: %w", err)
	}
	diagDoc, err := json.Marshal(diags)
	if err != nil {
		return fmt.Errorf("marshal diagnostics: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO conversation_analytics (conversation_id, analytics, diagnostics, generated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (conversation_id) DO UPDATE
		SET analytics = EXCLUDED.analytics, diagnostics = EXCLUDED.diagnostics, generated_at = now()`,
		convID, doc, diagDoc,
	)
	if err != nil {
		return fmt.Errorf("insert analytics: %w", err)
	}
	return nil
}

// ReadAnalytics loads a stored analytics document.
func (s *Store) ReadAnalytics(ctx context.Context, convID uuid.UUID) (*chat.ConversationAnalytics, error) {
	var doc []byte
	err := s.pool.QueryRow(ctx,
		`SELECT analytics FROM conversation_analytics WHERE conversation_id = $1`,
		convID,
	).Scan(&doc)
	if err != nil {
		return nil, fmt.Errorf("read analytics: %w", err)
	}
	var a chat.ConversationAnalytics
	if err := json.Unmarshal(doc, &a); err != nil {
		return nil, fmt.Errorf("unmarshal analytics: %w", err)
	}
	return &a, nil
}
