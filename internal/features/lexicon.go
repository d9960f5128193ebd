package features

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Lexicon holds the domain keywords the extractor looks for, bucketed by the
// template concept they usually announce. Matching is case and accent insensitive
// and respects word boundaries.
type Lexicon struct {
	Header       []string `yaml:"header" json:"header"`
	SectionTitle []string `yaml:"section_title" json:"section_title"`
	Field        []string `yaml:"field" json:"field"`
	LongText     []string `yaml:"long_text" json:"long_text"`
	List         []string `yaml:"list" json:"list"`
}

// DefaultLexicon is tuned for Spanish-language university syllabi.
func DefaultLexicon() Lexicon {
	return Lexicon{
		Header: []string{
			"programa analitico", "programa sintetico", "programa", "syllabus", "silabo",
			"universidad", "facultad", "plan de estudios",
		},
		SectionTitle: []string{
			"unidad", "tema", "modulo", "capitulo", "contenidos", "bibliografia",
			"evaluacion", "cronograma", "metodologia", "datos generales", "estructura",
		},
		Field: []string{
			"carrera", "asignatura", "materia", "docente", "codigo", "creditos", "semestre",
			"gestion", "horas", "prerrequisito", "nivel", "paralelo", "sigla", "resultado",
		},
		LongText: []string{
			"descripcion", "objetivo", "objetivos", "justificacion", "fundamentacion",
			"competencia", "perfil", "resumen", "metodologia",
		},
		List: []string{
			"bibliografia", "resultados de aprendizaje", "competencias", "actividades",
			"criterios", "referencias",
		},
	}
}

// compiled is a Lexicon with every keyword folded once.
type compiled struct {
	header, section, field, longText, list []string
}

func (l Lexicon) compile() compiled {
	return compiled{
		header:   foldAll(l.Header),
		section:  foldAll(l.SectionTitle),
		field:    foldAll(l.Field),
		longText: foldAll(l.LongText),
		list:     foldAll(l.List),
	}
}

func foldAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, k := range in {
		if f := Fold(k); f != "" {
			out = append(out, f)
		}
	}
	return out
}

// Fold lowercases s, strips diacritics and collapses every run of
// non-alphanumeric characters into one space.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, s)
	if err != nil {
		stripped = s
	}
	var b strings.Builder
	space := true
	for _, r := range strings.ToLower(stripped) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			space = false
			continue
		}
		if !space {
			b.WriteByte(' ')
			space = true
		}
	}
	return strings.TrimSpace(b.String())
}

// matches returns the keywords of bucket contained in folded text, in bucket order.
func matches(folded string, bucket []string) []string {
	if folded == "" {
		return nil
	}
	padded := " " + folded + " "
	var hits []string
	for _, k := range bucket {
		if strings.Contains(padded, " "+k+" ") {
			hits = append(hits, k)
		}
	}
	return hits
}
