// Package testutil builds in-memory XLSX and DOCX fixtures for tests.
package testutil

import (
	"archive/zip"
	"bytes"
	"fmt"
	"html"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
)

// Cell is one populated spreadsheet cell of a fixture workbook.
type Cell struct {
	Row     int
	Col     int
	Text    string
	Bold    bool
	MergeTo int // last column of a horizontal merge starting at this cell, 0 for none
}

// Workbook builds an XLSX with the given cells on the first sheet.
func Workbook(tb testing.TB, cells ...Cell) []byte {
	tb.Helper()
	return WorkbookSheets(tb, map[string][]Cell{"Sheet1": cells}, "Sheet1")
}

// WorkbookSheets builds an XLSX with one sheet per entry of order.
func WorkbookSheets(tb testing.TB, sheets map[string][]Cell, order ...string) []byte {
	tb.Helper()
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	boldStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		tb.Fatalf("new style: %v", err)
	}
	for i, name := range order {
		if i == 0 {
			if name != "Sheet1" {
				if err := f.SetSheetName("Sheet1", name); err != nil {
					tb.Fatalf("rename sheet: %v", err)
				}
			}
		} else if _, err := f.NewSheet(name); err != nil {
			tb.Fatalf("new sheet: %v", err)
		}
		for _, c := range sheets[name] {
			ref, err := excelize.CoordinatesToCellName(c.Col, c.Row)
			if err != nil {
				tb.Fatalf("cell name: %v", err)
			}
			if err := f.SetCellValue(name, ref, c.Text); err != nil {
				tb.Fatalf("set cell: %v", err)
			}
			if c.Bold {
				if err := f.SetCellStyle(name, ref, ref, boldStyle); err != nil {
					tb.Fatalf("set style: %v", err)
				}
			}
			if c.MergeTo > c.Col {
				end, _ := excelize.CoordinatesToCellName(c.MergeTo, c.Row)
				if err := f.MergeCell(name, ref, end); err != nil {
					tb.Fatalf("merge: %v", err)
				}
			}
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		tb.Fatalf("write workbook: %v", err)
	}
	return buf.Bytes()
}

// Paragraph is one paragraph of a fixture DOCX.
type Paragraph struct {
	Text  string
	Style string
	Bold  bool
	List  bool
}

// Docx builds a minimal .docx package holding the given paragraphs.
func Docx(tb testing.TB, paragraphs ...Paragraph) []byte {
	tb.Helper()
	var body strings.Builder
	for _, p := range paragraphs {
		body.WriteString("<w:p>")
		if p.Style != "" || p.List {
			body.WriteString("<w:pPr>")
			if p.Style != "" {
				fmt.Fprintf(&body, `<w:pStyle w:val="%s"/>`, p.Style)
			}
			if p.List {
				body.WriteString(`<w:numPr><w:ilvl w:val="0"/><w:numId w:val="1"/></w:numPr>`)
			}
			body.WriteString("</w:pPr>")
		}
		body.WriteString("<w:r>")
		if p.Bold {
			body.WriteString("<w:rPr><w:b/></w:rPr>")
		}
		fmt.Fprintf(&body, `<w:t xml:space="preserve">%s</w:t>`, html.EscapeString(p.Text))
		body.WriteString("</w:r></w:p>")
	}
	return DocxXML(tb, body.String())
}

// DocxXML wraps raw body XML into a .docx package.
func DocxXML(tb testing.TB, bodyXML string) []byte {
	tb.Helper()
	doc := `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
		bodyXML + `</w:body></w:document>`

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	fw, err := w.Create("word/document.xml")
	if err != nil {
		tb.Fatalf("zip create: %v", err)
	}
	if _, err := fw.Write([]byte(doc)); err != nil {
		tb.Fatalf("zip write: %v", err)
	}
	if err := w.Close(); err != nil {
		tb.Fatalf("zip close: %v", err)
	}
	return buf.Bytes()
}
