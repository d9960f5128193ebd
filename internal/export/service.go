// Package export renders materialized templates for the data-entry side: a
// blank XLSX form and the JSON Schema that filled values must satisfy.
package export

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/syllabus-templates/constants"
	"github.com/joseph-ayodele/syllabus-templates/internal/entity"
	"github.com/joseph-ayodele/syllabus-templates/internal/repository"
)

const (
	maxSheetName  = 31
	tableBodyRows = 10
)

// Service produces XLSX bytes for template forms.
type Service struct {
	templates repository.TemplateRepository
	logger    *slog.Logger
}

func NewService(templates repository.TemplateRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{templates: templates, logger: logger}
}

// TemplateXLSX loads the template and renders its blank form.
func (s *Service) TemplateXLSX(ctx context.Context, templateID uuid.UUID) ([]byte, error) {
	t, err := s.templates.Get(ctx, templateID)
	if err != nil {
		return nil, err
	}
	return s.RenderXLSX(t)
}

// RenderXLSX writes one sheet per section. Scalar fields take one row with the
// label in column A and an empty input cell in column B. Table fields get a
// header row with their columns followed by empty body rows. Required labels
// end with " *".
func (s *Service) RenderXLSX(t *entity.Template) ([]byte, error) {
	start := time.Now()
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("xlsx style: %w", err)
	}
	header, err := f.NewStyle(&excelize.Style{
		Font:   &excelize.Font{Bold: true},
		Fill:   excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9E1F2"}},
		Border: []excelize.Border{{Type: "bottom", Color: "#000000", Style: 1}},
	})
	if err != nil {
		return nil, fmt.Errorf("xlsx style: %w", err)
	}

	used := map[string]bool{}
	fields := 0
	for i, sec := range t.Sections {
		sheet := sheetName(sec.Name, i, used)
		if i == 0 {
			if err := f.SetSheetName("Sheet1", sheet); err != nil {
				return nil, fmt.Errorf("xlsx sheet: %w", err)
			}
		} else if _, err := f.NewSheet(sheet); err != nil {
			return nil, fmt.Errorf("xlsx sheet: %w", err)
		}

		write := func(col, row int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(sheet, cell, v)
		}
		style := func(col, row, lastCol int, id int) {
			from, _ := excelize.CoordinatesToCellName(col, row)
			to, _ := excelize.CoordinatesToCellName(lastCol, row)
			_ = f.SetCellStyle(sheet, from, to, id)
		}

		write(1, 1, sec.Name)
		style(1, 1, 1, bold)
		row := 3
		widest := 2
		for _, fd := range sec.Fields {
			fields++
			if fd.Kind == constants.FieldTable {
				write(1, row, fieldLabel(fd))
				style(1, row, 1, bold)
				row++
				for c, name := range fd.Columns {
					write(c+1, row, name)
				}
				if n := len(fd.Columns); n > 0 {
					style(1, row, n, header)
					widest = max(widest, n)
				}
				row += tableBodyRows + 2
				continue
			}
			write(1, row, fieldLabel(fd))
			if fd.Placeholder != nil {
				write(2, row, *fd.Placeholder)
			}
			row++
			if fd.Kind == constants.FieldLongText || fd.Kind == constants.FieldList {
				row++
			}
		}
		last, _ := excelize.ColumnNumberToName(widest)
		_ = f.SetColWidth(sheet, "A", "A", 36)
		_ = f.SetColWidth(sheet, "B", last, 28)
	}
	if len(t.Sections) == 0 {
		_ = f.SetCellValue("Sheet1", "A1", t.Name)
	}
	f.SetActiveSheet(0)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	s.logger.Info("export.xlsx.ok",
		"template_id", t.ID.String(),
		"sections", len(t.Sections),
		"fields", fields,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func fieldLabel(f entity.Field) string {
	if f.Required {
		return f.Label + " *"
	}
	return f.Label
}

var sheetNameReplacer = strings.NewReplacer(
	":", " ", "\\", " ", "/", " ", "?", " ", "*", " ", "[", "(", "]", ")",
)

// sheetName makes name a valid, unused worksheet name.
func sheetName(name string, index int, used map[string]bool) string {
	base := strings.TrimSpace(sheetNameReplacer.Replace(name))
	base = strings.Trim(base, "'")
	if base == "" {
		base = fmt.Sprintf("Section %d", index+1)
	}
	base = truncate(base, maxSheetName)
	candidate := base
	for n := 2; used[strings.ToLower(candidate)]; n++ {
		suffix := fmt.Sprintf(" (%d)", n)
		candidate = truncate(base, maxSheetName-len(suffix)) + suffix
	}
	used[strings.ToLower(candidate)] = true
	return candidate
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return strings.TrimSpace(string([]rune(s)[:n]))
}
