// Package ingest feeds documents from the local filesystem into extraction:
// single paths, whole directory trees filtered by glob patterns, and a
// watched drop folder.
package ingest

import (
	"context"

	"github.com/joseph-ayodele/syllabus-templates/constants"
)

// IngestionResult is the per-file ingest outcome.
type IngestionResult struct {
	SourcePath string               `json:"source_path"`
	SessionID  string               `json:"session_id,omitempty"`
	SourceKind constants.SourceKind `json:"source_kind,omitempty"`
	Candidates int                  `json:"candidates"`
	Queued     bool                 `json:"queued,omitempty"`
	Err        string               `json:"error,omitempty"`
}

// DirStats summarizes a directory ingest.
type DirStats struct {
	Scanned   uint32 `json:"scanned"`
	Matched   uint32 `json:"matched"`
	Succeeded uint32 `json:"succeeded"`
	Failed    uint32 `json:"failed"`
}

// DirOptions controls which files of a tree are picked up.
type DirOptions struct {
	// Include holds doublestar patterns relative to the root; empty means DefaultInclude.
	Include    []string
	SkipHidden bool
	Category   constants.Category
	CreatedBy  *string
}

// Ingestor is the behavior the CLI depends on.
type Ingestor interface {
	IngestPath(ctx context.Context, path string, category constants.Category, createdBy *string) (IngestionResult, error)
	IngestDirectory(ctx context.Context, root string, opts DirOptions) ([]IngestionResult, DirStats, error)
}
