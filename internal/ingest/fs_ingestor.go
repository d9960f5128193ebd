package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/syllabus-templates/constants"
	"github.com/joseph-ayodele/syllabus-templates/internal/async"
	"github.com/joseph-ayodele/syllabus-templates/internal/extraction"
)

// maxFileSize bounds what is read into memory for one document.
const maxFileSize = 64 << 20

// FSIngestor reads documents from the local filesystem and extracts them.
type FSIngestor struct {
	extraction *extraction.Service
	logger     *slog.Logger
}

func NewFSIngestor(ext *extraction.Service, logger *slog.Logger) *FSIngestor {
	if logger == nil {
		logger = slog.Default()
	}
	return &FSIngestor{extraction: ext, logger: logger}
}

// IngestPath extracts one file into the session derived from its path.
func (i *FSIngestor) IngestPath(ctx context.Context, path string, category constants.Category, createdBy *string) (IngestionResult, error) {
	out := IngestionResult{SourcePath: path}

	abs, err := filepath.Abs(path)
	if err != nil {
		return out, fmt.Errorf("abs path: %w", err)
	}
	out.SourcePath = abs
	if !AllowedExt(filepath.Ext(abs)) {
		i.logger.Warn("unsupported or missing extension", "path", abs)
		return out, fmt.Errorf("unsupported or missing extension: %q", filepath.Ext(abs))
	}
	sessionID, err := SessionIDFor(abs)
	if err != nil {
		return out, err
	}
	out.SessionID = sessionID

	info, err := os.Stat(abs)
	if err != nil {
		return out, fmt.Errorf("stat: %w", err)
	}
	if info.Size() > maxFileSize {
		return out, fmt.Errorf("file too large: %d bytes", info.Size())
	}
	content, err := os.ReadFile(abs)
	if err != nil {
		return out, fmt.Errorf("read: %w", err)
	}

	sum, err := i.extraction.Extract(ctx, extraction.Upload{
		SessionID: sessionID,
		FileName:  abs,
		Content:   content,
		Category:  category,
		CreatedBy: createdBy,
	})
	if err != nil {
		return out, err
	}
	out.SourceKind = sum.SourceKind
	out.Candidates = sum.Candidates
	i.logger.Info("ingest.path.ok", "path", abs, "session_id", sessionID, "candidates", sum.Candidates)
	return out, nil
}

// Handle lets the ingestor serve as an async.Handler.
func (i *FSIngestor) Handle(ctx context.Context, job async.Job) error {
	_, err := i.IngestPath(ctx, job.Path, job.Category, job.CreatedBy)
	return err
}

// IngestDirectory walks root and extracts every matching file in place.
// Per-file failures are reported in the results and do not stop the walk.
func (i *FSIngestor) IngestDirectory(ctx context.Context, root string, opts DirOptions) ([]IngestionResult, DirStats, error) {
	var results []IngestionResult
	stats, err := walk(ctx, root, opts, func(path string) {
		r, err := i.IngestPath(ctx, path, opts.Category, opts.CreatedBy)
		if err != nil {
			r.Err = err.Error()
		}
		results = append(results, r)
	})
	for _, r := range results {
		if r.Err != "" {
			stats.Failed++
		} else {
			stats.Succeeded++
		}
	}
	return results, stats, err
}

// EnqueueDirectory walks root and hands every matching file to q.
func EnqueueDirectory(ctx context.Context, q async.Queue, root string, opts DirOptions) ([]IngestionResult, DirStats, error) {
	var results []IngestionResult
	stats, err := walk(ctx, root, opts, func(path string) {
		r := IngestionResult{SourcePath: path}
		sessionID, err := SessionIDFor(path)
		if err == nil {
			r.SessionID = sessionID
			err = q.Enqueue(ctx, async.Job{Path: path, SessionID: sessionID, Category: opts.Category, CreatedBy: opts.CreatedBy})
		}
		if err != nil {
			r.Err = err.Error()
		} else {
			r.Queued = true
		}
		results = append(results, r)
	})
	for _, r := range results {
		if r.Queued {
			stats.Succeeded++
		} else {
			stats.Failed++
		}
	}
	return results, stats, err
}

// walk calls fn with the absolute path of every file under root the options include.
func walk(ctx context.Context, root string, opts DirOptions, fn func(path string)) (DirStats, error) {
	var stats DirStats
	if strings.TrimSpace(root) == "" {
		return stats, errors.New("root path is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return stats, fmt.Errorf("abs path: %w", err)
	}
	m, err := NewMatcher(opts.Include)
	if err != nil {
		return stats, err
	}

	err = filepath.WalkDir(abs, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if walkErr != nil {
			if path == abs {
				return walkErr
			}
			stats.Failed++
			return nil
		}
		if opts.SkipHidden && path != abs && IsHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		stats.Scanned++
		rel, err := filepath.Rel(abs, path)
		if err != nil || !m.Match(rel) {
			return nil
		}
		stats.Matched++
		fn(path)
		return nil
	})
	if err != nil {
		return stats, fmt.Errorf("walk: %w", err)
	}
	return stats, nil
}
