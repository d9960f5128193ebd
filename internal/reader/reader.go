// Package reader turns uploaded tabular (XLSX) and flow (DOCX) documents into
// an ordered list of positioned text fragments.
package reader

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/joseph-ayodele/syllabus-templates/constants"
	"github.com/joseph-ayodele/syllabus-templates/internal/common"
	"github.com/joseph-ayodele/syllabus-templates/internal/entity"
)

const (
	workbookPart = "xl/workbook.xml"
	documentPart = "word/document.xml"
)

// Document is the reader output: the kind actually parsed plus its fragments
// in natural reading order.
type Document struct {
	Kind      constants.SourceKind
	Fragments []entity.Fragment
}

// Reader parses document bytes into fragments.
type Reader struct {
	logger *slog.Logger
}

func New(logger *slog.Logger) *Reader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reader{logger: logger}
}

// Read parses content according to the declared kind. When the bytes do not
// hold the declared structure but do hold the other one, the other one is used.
// It fails with ErrUnsupportedFormat when neither parses and ErrEmptyDocument
// when no non-empty fragment is found.
func (r *Reader) Read(ctx context.Context, content []byte, declared constants.SourceKind) (doc *Document, err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("reader.panic", "declared", declared, "panic", rec)
			doc, err = nil, common.UnsupportedFormat("decoder panic: %v", rec)
		}
	}()

	parts, err := packageParts(content)
	if err != nil {
		return nil, common.UnsupportedFormat("not an OOXML package: %v", err)
	}

	kind, ok := pickKind(declared, parts)
	if !ok {
		return nil, common.UnsupportedFormat("declared %q but package has neither %s nor %s", declared, workbookPart, documentPart)
	}
	if kind != declared {
		r.logger.Warn("reader.kind_mismatch", "declared", declared, "parsed", kind)
	}

	var frags []entity.Fragment
	switch kind {
	case constants.SourceTabular:
		frags, err = readTabular(ctx, content)
	case constants.SourceFlow:
		frags, err = readFlow(ctx, parts[documentPart])
	}
	if err != nil {
		return nil, err
	}
	if len(frags) == 0 {
		return nil, common.NewAppError(common.CodeEmptyDocument, "no non-empty text found", common.ErrEmptyDocument)
	}

	r.logger.Debug("reader.ok", "kind", kind, "fragments", len(frags))
	return &Document{Kind: kind, Fragments: frags}, nil
}

func packageParts(content []byte) (map[string]*zip.File, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, err
	}
	parts := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		parts[f.Name] = f
	}
	return parts, nil
}

func pickKind(declared constants.SourceKind, parts map[string]*zip.File) (constants.SourceKind, bool) {
	_, tabular := parts[workbookPart]
	_, flow := parts[documentPart]
	switch {
	case declared == constants.SourceTabular && tabular:
		return constants.SourceTabular, true
	case declared == constants.SourceFlow && flow:
		return constants.SourceFlow, true
	case tabular:
		return constants.SourceTabular, true
	case flow:
		return constants.SourceFlow, true
	}
	return "", false
}

func contextErr(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("read aborted: %w", err)
	}
	return nil
}
