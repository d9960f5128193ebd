package reader

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"errors"
	"io"
	"strconv"
	"strings"

	"github.com/joseph-ayodele/syllabus-templates/constants"
	"github.com/joseph-ayodele/syllabus-templates/internal/common"
	"github.com/joseph-ayodele/syllabus-templates/internal/entity"
)

// paragraph accumulates one <w:p> while decoding.
type paragraph struct {
	text      strings.Builder
	style     string
	outline   int
	numbered  bool
	textRuns  int
	boldRuns  int
	italicRun int
}

// readFlow decodes word/document.xml. Each non-empty paragraph, including
// paragraphs inside table cells, becomes one fragment on its own row in column 1.
func readFlow(ctx context.Context, part *zip.File) ([]entity.Fragment, error) {
	rc, err := part.Open()
	if err != nil {
		return nil, common.UnsupportedFormat("open %s: %v", documentPart, err)
	}
	defer func() { _ = rc.Close() }()

	decoder := xml.NewDecoder(rc)
	var (
		out        []entity.Fragment
		p          *paragraph
		inRun      bool
		inRunProps bool
		inText     bool
		runBold    bool
		runItalic  bool
		row        int
	)

	for {
		tok, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, common.UnsupportedFormat("decode %s: %v", documentPart, err)
		}
		if row%64 == 0 {
			if err := contextErr(ctx); err != nil {
				return nil, err
			}
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "p":
				p = &paragraph{}
			case "pStyle":
				if p != nil {
					p.style = attr(t, "val")
				}
			case "outlineLvl":
				if p != nil {
					if n, err := strconv.Atoi(attr(t, "val")); err == nil && n >= 0 && n < 9 {
						p.outline = n + 1
					}
				}
			case "numPr":
				if p != nil {
					p.numbered = true
				}
			case "r":
				inRun, runBold, runItalic = true, false, false
			case "rPr":
				inRunProps = inRun
			case "b":
				if inRunProps {
					runBold = toggleOn(t)
				}
			case "i":
				if inRunProps {
					runItalic = toggleOn(t)
				}
			case "t":
				inText = p != nil
			case "tab":
				if p != nil && inRun {
					p.text.WriteByte(' ')
				}
			case "br", "cr":
				if p != nil && inRun {
					p.text.WriteByte('\n')
				}
			}

		case xml.CharData:
			if inText && p != nil {
				p.text.Write(t)
				if strings.TrimSpace(string(t)) != "" {
					p.textRuns++
					if runBold {
						p.boldRuns++
					}
					if runItalic {
						p.italicRun++
					}
				}
			}

		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "rPr":
				inRunProps = false
			case "r":
				inRun = false
			case "p":
				if p == nil {
					continue
				}
				text := p.text.String()
				if strings.TrimSpace(text) != "" {
					row++
					level := docxHeadingLevel(p.style)
					if level == 0 {
						level = p.outline
					}
					out = append(out, entity.Fragment{
						Text:         text,
						Row:          row,
						Column:       1,
						ColumnLetter: ColumnLetter(1),
						SourceKind:   constants.SourceFlow,
						Bold:         p.textRuns > 0 && p.boldRuns == p.textRuns,
						Italic:       p.textRuns > 0 && p.italicRun == p.textRuns,
						HeadingLevel: level,
						Numbered:     p.numbered || isListStyle(p.style),
						RowCells:     1,
						GridWidth:    1,
					})
				}
				p = nil
			}
		}
	}
	return out, nil
}

func attr(t xml.StartElement, local string) string {
	for _, a := range t.Attr {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}

// toggleOn reads an OOXML on/off property such as <w:b/> or <w:b w:val="0"/>.
func toggleOn(t xml.StartElement) bool {
	switch strings.ToLower(attr(t, "val")) {
	case "0", "false", "off", "none":
		return false
	default:
		return true
	}
}

// docxHeadingLevel extracts the heading level from a paragraph style name.
// e.g. "Heading1" → 1, "Titulo2" → 2, "Title" → 1.
func docxHeadingLevel(style string) int {
	lower := strings.ToLower(style)

	if lower == "title" || lower == "titulo" || lower == "título" {
		return 1
	}
	if lower == "subtitle" || lower == "subtitulo" || lower == "subtítulo" {
		return 2
	}

	for _, prefix := range []string{"heading", "titulo", "título", "titre", "encabezado"} {
		if strings.HasPrefix(lower, prefix) {
			rest := strings.TrimSpace(lower[len(prefix):])
			if len(rest) == 1 && rest[0] >= '1' && rest[0] <= '6' {
				return int(rest[0] - '0')
			}
		}
	}
	return 0
}

func isListStyle(style string) bool {
	lower := strings.ToLower(style)
	return strings.HasPrefix(lower, "listparagraph") || strings.HasPrefix(lower, "prrafodelista") ||
		strings.HasPrefix(lower, "list")
}
