package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/chatlens/chatlens/internal/chat"
	"github.com/chatlens/chatlens/internal/events"
	"github.com/chatlens/chatlens/internal/parser"
	"github.com/chatlens/chatlens/internal/pipeline"
	"github.com/chatlens/chatlens/internal/store"
)

// Storage is the subset of the store the service needs. Nil storage means
// analytics are computed but not persisted.
type Storage interface {
	CreateConversation(ctx context.Context, title, format string) (uuid.UUID, error)
	SetStatus(ctx context.Context, convID uuid.UUID, status string) error
	WriteParticipants(ctx context.Context, convID uuid.UUID, participants map[string]*chat.Participant) error
	WriteMessages(ctx context.Context, convID uuid.UUID, msgs []chat.Message) error
	WriteAnalytics(ctx context.Context, convID uuid.UUID, a *chat.ConversationAnalytics, diags []chat.Diagnostic) error
}

// Publisher is the subset of the events client the service needs. Nil
// publisher means no events are emitted.
type Publisher interface {
	Publish(subject string, data any) error
}

// Options carries the pipeline tuning shared by every run.
type Options struct {
	BatchSize    int
	Workers      int
	BatchTimeout time.Duration
	MinLangChars int
	TopKeywords  int
	DateOrder    parser.DateOrder
}

// Service runs the analysis pipeline and wires its results into storage and
// the event bus.
type Service struct {
	db     Storage
	bus    Publisher
	opts   Options
	logger *slog.Logger
}

func New(db Storage, bus Publisher, opts Options, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{db: db, bus: bus, opts: opts, logger: logger}
}

// RunResult is one completed analysis with its persistence handle.
type RunResult struct {
	ConversationID uuid.UUID
	Analytics      *chat.ConversationAnalytics
	Diagnostics    []chat.Diagnostic
	Dropped        int
}

// AnalyzeStream parses, analyzes and aggregates one export stream. The format
// and date-order identifiers come from the caller; dateOrder may be empty to
// use the service default. On success the result is persisted (when storage
// is configured) and an analyzed event is published.
func (s *Service) AnalyzeStream(ctx context.Context, r io.Reader, formatID, dateOrder, title string) (*RunResult, error) {
	format, err := parser.ParseFormat(formatID)
	if err != nil {
		return nil, err
	}

	order := s.opts.DateOrder
	if dateOrder != "" {
		order, err = parser.ParseDateOrder(dateOrder)
		if err != nil {
			return nil, err
		}
	}

	p := pipeline.New(pipeline.Options{
		Format:       format,
		DateOrder:    order,
		BatchSize:    s.opts.BatchSize,
		Workers:      s.opts.Workers,
		BatchTimeout: s.opts.BatchTimeout,
		MinLangChars: s.opts.MinLangChars,
		TopKeywords:  s.opts.TopKeywords,
		Logger:       s.logger,
	})

	res, err := p.Run(ctx, r)
	if err != nil {
		return nil, err
	}

	out := &RunResult{
		Analytics:   res.Analytics,
		Diagnostics: res.Diagnostics,
		Dropped:     res.Dropped,
	}

	if s.db != nil {
		convID, err := s.persist(ctx, title, formatID, res)
		if err != nil {
			return nil, err
		}
		out.ConversationID = convID
	}

	if s.bus != nil {
		evt := events.Analyzed{
			ConversationID: out.ConversationID.String(),
			Messages:       res.Analytics.TotalMessages,
			Participants:   res.Analytics.TotalParticipants,
			Diagnostics:    len(res.Diagnostics),
			Timestamp:      time.Now().UTC().Format(time.RFC3339),
		}
		if err := s.bus.Publish(events.SubjectAnalyzed, evt); err != nil {
			s.logger.Warn("failed to publish analyzed event", "error", err)
		}
	}

	return out, nil
}

func (s *Service) persist(ctx context.Context, title, formatID string, res *pipeline.Result) (uuid.UUID, error) {
	convID, err := s.db.CreateConversation(ctx, title, formatID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("create conversation: %w", err)
	}

	if err := s.writeRun(ctx, convID, res); err != nil {
		if serr := s.db.SetStatus(ctx, convID, store.StatusFailed); serr != nil {
			s.logger.Error("failed to mark conversation failed", "conversation", convID, "error", serr)
		}
		return uuid.Nil, err
	}

	if err := s.db.SetStatus(ctx, convID, store.StatusReady); err != nil {
		return uuid.Nil, fmt.Errorf("mark conversation ready: %w", err)
	}
	return convID, nil
}

func (s *Service) writeRun(ctx context.Context, convID uuid.UUID, res *pipeline.Result) error {
	if err := s.db.WriteParticipants(ctx, convID, res.Participants); err != nil {
		return fmt.Errorf("write participants: %w", err)
	}
	if err := s.db.WriteMessages(ctx, convID, res.Messages); err != nil {
		return fmt.Errorf("write messages: %w", err)
	}
	if err := s.db.WriteAnalytics(ctx, convID, res.Analytics, res.Diagnostics); err != nil {
		return fmt.Errorf("write analytics: %w", err)
	}
	return nil
}

// HandleExportStored consumes chatlens.export.stored events and analyzes the
// referenced file. Malformed payloads and missing files are logged, not
// fatal; the bus keeps delivering.
func (s *Service) HandleExportStored(subject string, data []byte) {
	var evt events.ExportStored
	if err := json.Unmarshal(data, &evt); err != nil {
		s.logger.Error("malformed export event", "subject", subject, "error", err)
		return
	}

	f, err := os.Open(evt.Path)
	if err != nil {
		s.logger.Error("cannot open export", "path", evt.Path, "error", err)
		return
	}
	defer f.Close()

	ctx := context.Background()
	res, err := s.AnalyzeStream(ctx, f, evt.Format, evt.DateOrder, evt.Title)
	if err != nil {
		s.logger.Error("export analysis failed", "path", evt.Path, "error", err)
		return
	}

	s.logger.Info("export analyzed",
		"path", evt.Path,
		"conversation", res.ConversationID,
		"messages", res.Analytics.TotalMessages,
		"diagnostics", len(res.Diagnostics),
	)
}
