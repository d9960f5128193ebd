package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/syllabus-templates/constants"
	"github.com/joseph-ayodele/syllabus-templates/internal/async"
	"github.com/joseph-ayodele/syllabus-templates/internal/extraction"
	"github.com/joseph-ayodele/syllabus-templates/internal/ingest"
)

func extractCmd(a *app) *cobra.Command {
	var (
		sessionID string
		category  string
		kind      string
		mimeType  string
		createdBy string
	)
	cmd := &cobra.Command{
		Use:   "extract <file>",
		Short: "Extract candidates from one document into a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := parseCategory(category)
			if err != nil {
				return err
			}
			path := args[0]
			if sessionID == "" {
				if sessionID, err = ingest.SessionIDFor(path); err != nil {
					return err
				}
			}
			sk := constants.SourceKind(kind)
			if sk == "" && mimeType != "" {
				var ok bool
				if sk, ok = constants.SourceKindFromMIME(mimeType); !ok {
					return fmt.Errorf("unsupported MIME type %q", mimeType)
				}
			}
			content, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read %s: %w", path, err)
			}
			sum, err := a.extraction.Extract(cmd.Context(), extraction.Upload{
				SessionID: sessionID,
				FileName:  path,
				Kind:      sk,
				Content:   content,
				Category:  cat,
				CreatedBy: optional(createdBy),
			})
			if err != nil {
				return err
			}
			return printJSON(cmd, sum)
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "", "Session id (default: derived from the file path)")
	cmd.Flags().StringVar(&category, "category", "", "Document category: syllabus, program or generic")
	cmd.Flags().StringVar(&kind, "kind", "", "Source kind: tabular or flow (default: from the file extension)")
	cmd.Flags().StringVar(&mimeType, "mime", "", "Declared MIME type, used when --kind is empty")
	cmd.Flags().StringVar(&createdBy, "created-by", "", "Acting user recorded on the session")
	return cmd
}

func extractDirCmd(a *app) *cobra.Command {
	var (
		include    []string
		skipHidden bool
		category   string
		createdBy  string
		queued     bool
	)
	cmd := &cobra.Command{
		Use:   "extract-dir <root>",
		Short: "Extract every matching document below a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := parseCategory(category)
			if err != nil {
				return err
			}
			opts := ingest.DirOptions{Include: include, SkipHidden: skipHidden, Category: cat, CreatedBy: optional(createdBy)}

			if !queued {
				results, stats, err := a.ingestor.IngestDirectory(cmd.Context(), args[0], opts)
				if err != nil {
					return err
				}
				return printJSON(cmd, map[string]any{"stats": stats, "results": results})
			}

			var (
				mu     sync.Mutex
				failed []string
			)
			q := a.newQueue(func(job async.Job, err error) {
				if err != nil {
					mu.Lock()
					failed = append(failed, fmt.Sprintf("%s: %v", job.Path, err))
					mu.Unlock()
				}
			})
			results, stats, walkErr := ingest.EnqueueDirectory(cmd.Context(), q, args[0], opts)
			q.Shutdown(context.Background())
			if walkErr != nil {
				return walkErr
			}
			return printJSON(cmd, map[string]any{"stats": stats, "results": results, "failed": failed})
		},
	}
	cmd.Flags().StringSliceVar(&include, "include", nil, "Doublestar patterns relative to root (default: every supported document)")
	cmd.Flags().BoolVar(&skipHidden, "skip-hidden", true, "Skip hidden files and directories")
	cmd.Flags().StringVar(&category, "category", "", "Document category: syllabus, program or generic")
	cmd.Flags().StringVar(&createdBy, "created-by", "", "Acting user recorded on the sessions")
	cmd.Flags().BoolVar(&queued, "queue", false, "Run extractions on the worker pool")
	return cmd
}

func watchCmd(a *app) *cobra.Command {
	var (
		include     []string
		initialScan bool
		category    string
	)
	cmd := &cobra.Command{
		Use:   "watch <dir>...",
		Short: "Extract documents dropped into watched directories until interrupted",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := parseCategory(category)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			events, errs, err := ingest.StartWatcher(ctx, ingest.WatchConfig{
				Roots:       args,
				Include:     include,
				InitialScan: initialScan,
				Debounce:    a.cfg.Worker.Debounce,
			}, a.logger)
			if err != nil {
				return err
			}
			q := a.newQueue(nil)
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Worker.ProcessTimeout)
				defer cancel()
				q.Shutdown(shutdownCtx)
			}()

			a.logger.Info("watching for documents", "roots", args)
			for {
				select {
				case path, ok := <-events:
					if !ok {
						return nil
					}
					sessionID, err := ingest.SessionIDFor(path)
					if err != nil {
						a.logger.Warn("skipping file", "path", path, "error", err)
						continue
					}
					abs, _ := filepath.Abs(path)
					if err := q.Enqueue(ctx, async.Job{Path: abs, SessionID: sessionID, Category: cat, SubmittedAt: time.Now().UTC()}); err != nil {
						a.logger.Warn("enqueue failed", "path", path, "error", err)
					}
				case err, ok := <-errs:
					if !ok {
						errs = nil
						continue
					}
					a.logger.Warn("watcher error", "error", err)
				case <-ctx.Done():
					return nil
				}
			}
		},
	}
	cmd.Flags().StringSliceVar(&include, "include", nil, "Doublestar patterns relative to each root (default: every supported document)")
	cmd.Flags().BoolVar(&initialScan, "initial-scan", true, "Extract documents already present at start")
	cmd.Flags().StringVar(&category, "category", "", "Document category: syllabus, program or generic")
	return cmd
}

func (a *app) newQueue(onDone func(async.Job, error)) *async.ExtractionQueue {
	return async.NewExtractionQueue(a.ingestor, a.logger,
		async.WithWorkers(a.cfg.Worker.Workers),
		async.WithQueueSize(a.cfg.Worker.QueueSize),
		async.WithProcessTimeout(a.cfg.Worker.ProcessTimeout),
		async.WithOnDone(onDone),
	)
}
