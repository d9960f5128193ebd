// Package features computes the deterministic feature snapshot the
// classifier scores fragments with.
package features

import (
	"encoding/json"
	"math"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/joseph-ayodele/syllabus-templates/constants"
	"github.com/joseph-ayodele/syllabus-templates/internal/entity"
)

// Features is the per-fragment snapshot. Field order and rounding are fixed so
// identical input always serializes to identical bytes.
type Features struct {
	Length           int                  `json:"length"`
	WordCount        int                  `json:"word_count"`
	UpperRatio       float64              `json:"upper_ratio"`
	Numbered         bool                 `json:"numbered"`
	LabelColon       bool                 `json:"label_colon"`
	InlineLabel      bool                 `json:"inline_label"`
	PositionPct      int                  `json:"position_pct"`
	Row              int                  `json:"row"`
	Column           int                  `json:"column"`
	Bold             bool                 `json:"bold"`
	Italic           bool                 `json:"italic"`
	HeadingLevel     int                  `json:"heading_level"`
	MergedSpan       int                  `json:"merged_span"`
	RowSiblings      int                  `json:"row_siblings"`
	FirstColumnAlone bool                 `json:"first_column_alone"`
	SourceKind       constants.SourceKind `json:"source_kind"`
	HeaderKeywords   []string             `json:"header_keywords,omitempty"`
	SectionKeywords  []string             `json:"section_keywords,omitempty"`
	FieldKeywords    []string             `json:"field_keywords,omitempty"`
	LongTextKeywords []string             `json:"long_text_keywords,omitempty"`
	ListKeywords     []string             `json:"list_keywords,omitempty"`
}

var (
	// "1.", "1.2)", "2 -", "a)", "IV.", "•", "-", "*"
	reNumbered = regexp.MustCompile(`^\s*(?:\d+(?:[.)]\d+)*[.)\-:]?\s+|[a-zA-Z][.)]\s+|[IVXLC]+[.)]\s+|[•\-\*–·▪●○◦]\s*)`)
	// "Docente: Juan Pérez"
	reInlineLabel = regexp.MustCompile(`^\s*[^:\n]{1,40}:\s*\S`)
)

// Extractor computes feature snapshots against a keyword lexicon.
type Extractor struct {
	lex compiled
}

func NewExtractor(lex Lexicon) *Extractor {
	return &Extractor{lex: lex.compile()}
}

// Extract computes one snapshot per fragment, in input order. Position
// percentiles are relative to the row span of the whole fragment list.
func (e *Extractor) Extract(frags []entity.Fragment) []Features {
	minRow, maxRow := rowSpan(frags)
	out := make([]Features, len(frags))
	for i, f := range frags {
		out[i] = e.one(f, minRow, maxRow)
	}
	return out
}

func (e *Extractor) one(f entity.Fragment, minRow, maxRow int) Features {
	text := strings.TrimSpace(f.Text)
	folded := Fold(text)

	feat := Features{
		Length:       utf8.RuneCountInString(text),
		WordCount:    len(strings.Fields(text)),
		UpperRatio:   upperRatio(text),
		Numbered:     f.Numbered || reNumbered.MatchString(text),
		LabelColon:   strings.HasSuffix(text, ":") || strings.HasSuffix(text, "："),
		PositionPct:  percentile(f.Row, minRow, maxRow),
		Row:          f.Row,
		Column:       f.Column,
		Bold:         f.Bold,
		Italic:       f.Italic,
		HeadingLevel: f.HeadingLevel,
		MergedSpan:   f.MergedSpan,
		SourceKind:   f.SourceKind,
	}
	feat.InlineLabel = !feat.LabelColon && reInlineLabel.MatchString(text)
	if f.RowCells > 1 {
		feat.RowSiblings = f.RowCells - 1
	}
	feat.FirstColumnAlone = f.Column == 1 && f.RowCells <= 1 && f.GridWidth > 1

	feat.HeaderKeywords = matches(folded, e.lex.header)
	feat.SectionKeywords = matches(folded, e.lex.section)
	feat.FieldKeywords = matches(folded, e.lex.field)
	feat.LongTextKeywords = matches(folded, e.lex.longText)
	feat.ListKeywords = matches(folded, e.lex.list)
	return feat
}

// Snapshot serializes the features for storage alongside the candidate.
func (f Features) Snapshot() json.RawMessage {
	b, err := json.Marshal(f)
	if err != nil {
		return json.RawMessage(`{}`)
	}
	return b
}

// FromSnapshot decodes a stored snapshot. Unknown or empty input yields zero Features.
func FromSnapshot(raw json.RawMessage) Features {
	var f Features
	if len(raw) == 0 {
		return f
	}
	_ = json.Unmarshal(raw, &f)
	return f
}

func rowSpan(frags []entity.Fragment) (int, int) {
	if len(frags) == 0 {
		return 0, 0
	}
	minRow, maxRow := frags[0].Row, frags[0].Row
	for _, f := range frags[1:] {
		if f.Row < minRow {
			minRow = f.Row
		}
		if f.Row > maxRow {
			maxRow = f.Row
		}
	}
	return minRow, maxRow
}

func percentile(row, minRow, maxRow int) int {
	if maxRow <= minRow {
		return 0
	}
	return (row - minRow) * 100 / (maxRow - minRow)
}

// upperRatio is the share of letters that are uppercase, rounded to 3 decimals.
func upperRatio(s string) float64 {
	letters, upper := 0, 0
	for _, r := range s {
		if !unicode.IsLetter(r) {
			continue
		}
		letters++
		if unicode.IsUpper(r) {
			upper++
		}
	}
	if letters == 0 {
		return 0
	}
	return math.Round(float64(upper)/float64(letters)*1000) / 1000
}
