package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chatlens/chatlens/internal/parser"
	"github.com/chatlens/chatlens/internal/service"
)

// Config holds the ingest command configuration.
type Config struct {
	Dir        string    // directory of export files
	SingleFile string    // process a single file only
	Since      time.Time // skip files whose conversation ends before this
	Until      time.Time // skip files whose conversation starts after this
	DryRun     bool      // analyze but do not persist or publish
	StatePath  string    // override the default state file location
}

// FileSummary records the outcome of one ingested file.
type FileSummary struct {
	Path         string
	Format       string
	Messages     int
	Participants int
	Diagnostics  int
	Skipped      string // non-empty when the file was not analyzed
}

// Runner discovers export files, deduplicates them and feeds each through the
// analysis service.
type Runner struct {
	cfg    Config
	svc    *service.Service
	logger *slog.Logger
}

func NewRunner(cfg Config, svc *service.Service, logger *slog.Logger) *Runner {
	return &Runner{cfg: cfg, svc: svc, logger: logger}
}

// Run executes one ingest pass and returns per-file summaries.
func (r *Runner) Run(ctx context.Context) ([]FileSummary, error) {
	state, err := LoadState(r.cfg.StatePath)
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}

	textFiles, structFiles, err := r.discoverFiles()
	if err != nil {
		return nil, fmt.Errorf("discover files: %w", err)
	}

	r.logger.Info("files discovered",
		"text_files", len(textFiles),
		"structured_files", len(structFiles),
	)

	// First pass: fingerprint every unprocessed file so text/structured
	// exports of the same conversation can be matched.
	var structFPs, textFPs []fileFingerprint
	for _, path := range structFiles {
		if state.IsProcessed(path) {
			continue
		}
		fp, err := fingerprintFile(path, parser.FormatStructured)
		if err != nil {
			r.logger.Warn("failed to fingerprint file", "path", path, "error", err)
			state.AddError(fmt.Sprintf("fingerprint %s: %v", path, err))
			continue
		}
		structFPs = append(structFPs, fp)
	}
	for _, path := range textFiles {
		if state.IsProcessed(path) {
			continue
		}
		fp, err := fingerprintFile(path, parser.FormatText)
		if err != nil {
			r.logger.Warn("failed to fingerprint file", "path", path, "error", err)
			state.AddError(fmt.Sprintf("fingerprint %s: %v", path, err))
			continue
		}
		textFPs = append(textFPs, fp)
	}

	duplicates := FindDuplicates(structFPs, textFPs)

	var queue []fileFingerprint
	queue = append(queue, structFPs...)
	for _, fp := range textFPs {
		if duplicates[fp.Path] {
			r.logger.Info("skipping duplicate text export", "path", fp.Path)
			continue
		}
		queue = append(queue, fp)
	}

	state.FilesRemaining = len(queue)
	r.logger.Info("files to process",
		"total", len(queue),
		"structured", len(structFPs),
		"text_unique", len(queue)-len(structFPs),
		"text_skipped", len(duplicates),
	)

	var summaries []FileSummary
	for _, fp := range queue {
		select {
		case <-ctx.Done():
			r.logger.Info("ingest interrupted, saving state")
			_ = state.Save()
			return summaries, ctx.Err()
		default:
		}

		fs := r.processFile(ctx, fp, state)
		summaries = append(summaries, fs)

		if fs.Skipped == "" {
			state.MessagesSeen += fs.Messages
		}
		state.MarkProcessed(fp.Path)
		state.FilesRemaining--
		_ = state.Save()
	}

	_ = state.Save()

	printSummary(summaries, state)
	return summaries, nil
}

func (r *Runner) processFile(ctx context.Context, fp fileFingerprint, state *State) FileSummary {
	format := "text"
	if fp.Structured {
		format = "structured"
	}
	fs := FileSummary{Path: fp.Path, Format: format}

	if !r.inDateRange(fp.Timestamps) {
		fs.Skipped = "outside date range"
		return fs
	}
	if r.cfg.DryRun {
		fs.Skipped = "dry run"
		fs.Messages = len(fp.Timestamps)
		return fs
	}

	f, err := os.Open(fp.Path)
	if err != nil {
		r.logger.Error("cannot open file", "path", fp.Path, "error", err)
		state.AddError(fmt.Sprintf("open %s: %v", fp.Path, err))
		fs.Skipped = "open failed"
		return fs
	}
	defer f.Close()

	title := strings.TrimSuffix(filepath.Base(fp.Path), filepath.Ext(fp.Path))
	res, err := r.svc.AnalyzeStream(ctx, f, format, "", title)
	if err != nil {
		r.logger.Error("analysis failed", "path", fp.Path, "error", err)
		state.AddError(fmt.Sprintf("analyze %s: %v", fp.Path, err))
		fs.Skipped = "analysis failed"
		return fs
	}

	fs.Messages = res.Analytics.TotalMessages
	fs.Participants = res.Analytics.TotalParticipants
	fs.Diagnostics = len(res.Diagnostics)

	r.logger.Info("file ingested",
		"path", fp.Path,
		"conversation", res.ConversationID,
		"messages", fs.Messages,
		"diagnostics", fs.Diagnostics,
	)
	return fs
}

// fingerprintFile parses a file just far enough to collect its message
// timestamps. Parse diagnostics are ignored here; the real run reports them.
func fingerprintFile(path string, format parser.Format) (fileFingerprint, error) {
	fp := fileFingerprint{Path: path, Structured: format == parser.FormatStructured}

	f, err := os.Open(path)
	if err != nil {
		return fp, err
	}
	defer f.Close()

	p, err := parser.ForFormat(format, parser.Options{})
	if err != nil {
		return fp, err
	}
	err = p.Parse(f, func(pm parser.ParsedMessage) error {
		if !pm.Timestamp.IsZero() {
			fp.Timestamps = append(fp.Timestamps, pm.Timestamp)
		}
		return nil
	})
	return fp, err
}

func (r *Runner) discoverFiles() (textFiles, structFiles []string, err error) {
	if r.cfg.SingleFile != "" {
		path := expandHome(r.cfg.SingleFile)
		if _, err := os.Stat(path); err != nil {
			return nil, nil, fmt.Errorf("single file not found: %s", path)
		}
		if strings.HasSuffix(path, ".json") || strings.HasSuffix(path, ".jsonl") {
			return nil, []string{path}, nil
		}
		return []string{path}, nil, nil
	}

	dir := expandHome(r.cfg.Dir)
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, nil, fmt.Errorf("not a directory: %s", dir)
	}

	err = filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // skip errors
		}
		if info.IsDir() {
			return nil
		}
		switch {
		case strings.HasSuffix(info.Name(), ".txt"):
			textFiles = append(textFiles, path)
		case strings.HasSuffix(info.Name(), ".json"), strings.HasSuffix(info.Name(), ".jsonl"):
			structFiles = append(structFiles, path)
		}
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("walk %s: %w", dir, err)
	}
	return textFiles, structFiles, nil
}

// inDateRange checks if any timestamp falls within the configured range.
func (r *Runner) inDateRange(timestamps []time.Time) bool {
	if r.cfg.Since.IsZero() && r.cfg.Until.IsZero() {
		return true
	}
	for _, ts := range timestamps {
		if !r.cfg.Since.IsZero() && ts.Before(r.cfg.Since) {
			continue
		}
		if !r.cfg.Until.IsZero() && ts.After(r.cfg.Until) {
			continue
		}
		return true
	}
	return false
}

func printSummary(summaries []FileSummary, state *State) {
	ingested, skipped, messages := 0, 0, 0
	for _, s := range summaries {
		if s.Skipped != "" {
			skipped++
			continue
		}
		ingested++
		messages += s.Messages
	}

	fmt.Printf("\n=== Ingest Summary ===\n")
	fmt.Printf("Files ingested: %d\n", ingested)
	fmt.Printf("Files skipped: %d\n", skipped)
	fmt.Printf("Messages analyzed: %d\n", messages)
	fmt.Printf("Errors: %d\n", len(state.Errors))
	fmt.Printf("State file: %s\n", state.path)
}
