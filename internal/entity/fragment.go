package entity

import "github.com/joseph-ayodele/syllabus-templates/constants"

// Fragment is one positioned piece of text found in a source document.
// It lives only for the duration of an extraction pass.
type Fragment struct {
	Text         string               `json:"text"`
	Row          int                  `json:"row"`
	Column       int                  `json:"column"`
	ColumnLetter string               `json:"column_letter"`
	SourceKind   constants.SourceKind `json:"source_kind"`
	Sheet        string               `json:"sheet,omitempty"`

	// Formatting hints, when the source exposes them.
	Bold         bool `json:"bold,omitempty"`
	Italic       bool `json:"italic,omitempty"`
	HeadingLevel int  `json:"heading_level,omitempty"`
	MergedSpan   int  `json:"merged_span,omitempty"`
	Numbered     bool `json:"numbered,omitempty"`

	// RowCells counts the non-empty cells on the fragment's row (itself included).
	RowCells int `json:"row_cells"`
	// GridWidth is the widest populated column of the fragment's sheet.
	GridWidth int `json:"grid_width"`
}
