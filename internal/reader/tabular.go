package reader

import (
	"bytes"
	"context"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/syllabus-templates/constants"
	"github.com/joseph-ayodele/syllabus-templates/internal/common"
	"github.com/joseph-ayodele/syllabus-templates/internal/entity"
)

// readTabular walks every sheet in workbook order. Rows of later sheets are
// numbered after the rows of earlier sheets so (row, column) stays unique.
func readTabular(ctx context.Context, content []byte) ([]entity.Fragment, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, common.UnsupportedFormat("open workbook: %v", err)
	}
	defer func() { _ = f.Close() }()

	var out []entity.Fragment
	rowOffset := 0
	for _, sheet := range f.GetSheetList() {
		if err := contextErr(ctx); err != nil {
			return nil, err
		}
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, common.UnsupportedFormat("read sheet %q: %v", sheet, err)
		}
		spans := mergedSpans(f, sheet)
		styles := newStyleCache(f)

		width := 0
		for _, cells := range rows {
			if last := lastNonEmpty(cells); last > width {
				width = last
			}
		}

		for r, cells := range rows {
			rowCells := 0
			for _, v := range cells {
				if strings.TrimSpace(v) != "" {
					rowCells++
				}
			}
			for c, v := range cells {
				if strings.TrimSpace(v) == "" {
					continue
				}
				cell, err := excelize.CoordinatesToCellName(c+1, r+1)
				if err != nil {
					continue
				}
				bold, italic := styles.font(sheet, cell)
				out = append(out, entity.Fragment{
					Text:         v,
					Row:          rowOffset + r + 1,
					Column:       c + 1,
					ColumnLetter: ColumnLetter(c + 1),
					SourceKind:   constants.SourceTabular,
					Sheet:        sheet,
					Bold:         bold,
					Italic:       italic,
					MergedSpan:   spans[cell],
					RowCells:     rowCells,
					GridWidth:    width,
				})
			}
		}
		rowOffset += len(rows)
	}
	return out, nil
}

func lastNonEmpty(cells []string) int {
	for i := len(cells) - 1; i >= 0; i-- {
		if strings.TrimSpace(cells[i]) != "" {
			return i + 1
		}
	}
	return 0
}

// mergedSpans maps the top-left cell of every merged range to the number of
// columns it covers.
func mergedSpans(f *excelize.File, sheet string) map[string]int {
	spans := map[string]int{}
	merged, err := f.GetMergeCells(sheet)
	if err != nil {
		return spans
	}
	for _, m := range merged {
		startCol, _, err1 := excelize.CellNameToCoordinates(m.GetStartAxis())
		endCol, _, err2 := excelize.CellNameToCoordinates(m.GetEndAxis())
		if err1 != nil || err2 != nil {
			continue
		}
		spans[m.GetStartAxis()] = endCol - startCol + 1
	}
	return spans
}

type fontFlags struct{ bold, italic bool }

type styleCache struct {
	f     *excelize.File
	fonts map[int]fontFlags
}

func newStyleCache(f *excelize.File) *styleCache {
	return &styleCache{f: f, fonts: map[int]fontFlags{}}
}

func (s *styleCache) font(sheet, cell string) (bool, bool) {
	idx, err := s.f.GetCellStyle(sheet, cell)
	if err != nil || idx == 0 {
		return false, false
	}
	if ff, ok := s.fonts[idx]; ok {
		return ff.bold, ff.italic
	}
	var ff fontFlags
	if st, err := s.f.GetStyle(idx); err == nil && st != nil && st.Font != nil {
		ff = fontFlags{bold: st.Font.Bold, italic: st.Font.Italic}
	}
	s.fonts[idx] = ff
	return ff.bold, ff.italic
}
