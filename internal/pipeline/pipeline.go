// Package pipeline drives parse → normalize → analyze → aggregate over one
// chat export stream. It is the only surface callers see: bytes plus a
// format in, analytics plus diagnostics out. It never touches storage or the
// network.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/chatlens/chatlens/internal/aggregate"
	"github.com/chatlens/chatlens/internal/analyze"
	"github.com/chatlens/chatlens/internal/chat"
	"github.com/chatlens/chatlens/internal/normalize"
	"github.com/chatlens/chatlens/internal/parser"
)

// State is the orchestrator's lifecycle position. Analyzing is the only
// state with parallel work in flight.
type State int32

const (
	StateIdle State = iota
	StateParsing
	StateNormalizing
	StateAnalyzing
	StateAggregating
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateParsing:
		return "parsing"
	case StateNormalizing:
		return "normalizing"
	case StateAnalyzing:
		return "analyzing"
	case StateAggregating:
		return "aggregating"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// Options is the caller-facing configuration surface.
type Options struct {
	Format       parser.Format
	DateOrder    parser.DateOrder
	BatchSize    int           // messages per analyzer batch
	Workers      int           // parallel analyzer workers
	BatchTimeout time.Duration // per-batch deadline; exceeding it degrades the batch
	MinLangChars int           // below this, language detection returns none
	TopKeywords  int           // keywords kept per message
	Models       *analyze.Models
	Logger       *slog.Logger
}

// Defaults for zero-valued options.
const (
	DefaultBatchSize    = 2000
	DefaultBatchTimeout = 60 * time.Second
	DefaultMinLangChars = 10
	DefaultTopKeywords  = 10
)

func (o *Options) fill() {
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultBatchSize
	}
	if o.Workers <= 0 {
		o.Workers = runtime.NumCPU()
	}
	if o.BatchTimeout <= 0 {
		o.BatchTimeout = DefaultBatchTimeout
	}
	if o.MinLangChars <= 0 {
		o.MinLangChars = DefaultMinLangChars
	}
	if o.TopKeywords <= 0 {
		o.TopKeywords = DefaultTopKeywords
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Models == nil {
		m := analyze.DefaultModels(o.MinLangChars)
		o.Models = &m
	}
}

// Result is a completed run: the analytics plus everything the caller needs
// to persist it. Dropped/degraded records are in Diagnostics; their count
// never fails a run.
type Result struct {
	Analytics    *chat.ConversationAnalytics
	Messages     []chat.Message
	Participants map[string]*chat.Participant
	Annotations  map[int64]chat.Annotation
	Diagnostics  []chat.Diagnostic
	Dropped      int
}

// Pipeline orchestrates one or more runs with a fixed configuration.
type Pipeline struct {
	opts  Options
	state atomic.Int32
}

func New(opts Options) *Pipeline {
	opts.fill()
	return &Pipeline{opts: opts}
}

// State reports the current lifecycle position.
func (p *Pipeline) State() State {
	return State(p.state.Load())
}

func (p *Pipeline) setState(s State) {
	p.state.Store(int32(s))
}

// Run executes the pipeline over one input stream. It returns a Result with
// (possibly empty) diagnostics, or a fatal error: unsupported format,
// unresolvable date ambiguity, or an unreadable input stream. Cancellation
// is cooperative: in-flight batches finish, no new batches dispatch, and
// partial results are discarded.
func (p *Pipeline) Run(ctx context.Context, r io.Reader) (*Result, error) {
	var (
		diags  []chat.Diagnostic
		diagMu sync.Mutex
	)
	diag := func(d chat.Diagnostic) {
		diagMu.Lock()
		diags = append(diags, d)
		diagMu.Unlock()
	}

	// Parsing: stream the input into raw per-record fields.
	p.setState(StateParsing)
	prs, err := parser.ForFormat(p.opts.Format, parser.Options{DateOrder: p.opts.DateOrder, Diag: diag})
	if err != nil {
		p.setState(StateFailed)
		return nil, err
	}

	var parsed []parser.ParsedMessage
	if err := prs.Parse(r, func(pm parser.ParsedMessage) error {
		parsed = append(parsed, pm)
		return nil
	}); err != nil {
		p.setState(StateFailed)
		return nil, fmt.Errorf("parse: %w", err)
	}

	// Normalizing: canonical messages, ids, participant table.
	p.setState(StateNormalizing)
	norm := normalize.New(diag)
	msgs := make([]chat.Message, 0, len(parsed))
	for _, pm := range parsed {
		if m, ok := norm.Normalize(pm); ok {
			msgs = append(msgs, m)
		}
	}
	parsed = nil

	p.opts.Logger.Info("input normalized",
		"messages", len(msgs),
		"participants", len(norm.Participants()),
		"dropped", norm.Dropped(),
	)

	// Analyzing: fan out fixed-size batches to the worker pool. Workers
	// share no mutable state; each batch's annotations are returned, then
	// re-associated by message id, so completion order is irrelevant.
	p.setState(StateAnalyzing)
	batches := splitBatches(msgs, p.opts.BatchSize)
	results := make([][]chat.Annotation, len(batches))
	analyzer := analyze.New(*p.opts.Models, p.opts.TopKeywords, p.opts.Logger)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Workers)
	for i, batch := range batches {
		if gctx.Err() != nil {
			break // cancelled: stop dispatching new batches
		}
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			bctx, cancel := context.WithTimeout(gctx, p.opts.BatchTimeout)
			defer cancel()

			anns := analyzer.Batch(bctx, batch)
			if errors.Is(bctx.Err(), context.DeadlineExceeded) && gctx.Err() == nil {
				// Batch-level failure: every message in the batch degrades,
				// the run continues.
				anns = analyze.DegradeBatch(batch)
				diag(chat.Diagnostic{
					LineStart: int(batch[0].ID),
					LineEnd:   int(batch[len(batch)-1].ID),
					Reason:    fmt.Sprintf("batch timeout after %s: annotations degraded", p.opts.BatchTimeout),
				})
				p.opts.Logger.Warn("batch timed out", "batch", i, "messages", len(batch))
			}
			results[i] = anns
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		p.setState(StateFailed)
		return nil, fmt.Errorf("analysis cancelled: %w", err)
	}
	if err := ctx.Err(); err != nil {
		p.setState(StateFailed)
		return nil, err
	}

	anns := make(map[int64]chat.Annotation, len(msgs))
	for _, batch := range results {
		for _, a := range batch {
			anns[a.MessageID] = a
		}
	}
	// Every message carries exactly one annotation before aggregation.
	for _, m := range msgs {
		if _, ok := anns[m.ID]; !ok {
			anns[m.ID] = analyze.Degraded(m.ID)
		}
	}

	// Aggregating: single-threaded fold; O(messages), dominated by the
	// analysis cost it follows.
	p.setState(StateAggregating)
	analytics := aggregate.Build(msgs, anns, norm.Participants())

	p.setState(StateDone)
	return &Result{
		Analytics:    analytics,
		Messages:     msgs,
		Participants: norm.Participants(),
		Annotations:  anns,
		Diagnostics:  diags,
		Dropped:      norm.Dropped(),
	}, nil
}

func splitBatches(msgs []chat.Message, size int) [][]chat.Message {
	var batches [][]chat.Message
	for start := 0; start < len(msgs); start += size {
		end := start + size
		if end > len(msgs) {
			end = len(msgs)
		}
		batches = append(batches, msgs[start:end])
	}
	return batches
}
