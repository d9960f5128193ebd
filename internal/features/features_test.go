package features

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/syllabus-templates/constants"
	"github.com/joseph-ayodele/syllabus-templates/internal/entity"
)

func frag(row, col int, text string) entity.Fragment {
	return entity.Fragment{Text: text, Row: row, Column: col, SourceKind: constants.SourceTabular, RowCells: 1, GridWidth: 1}
}

func TestExtract_Deterministic(t *testing.T) {
	frags := []entity.Fragment{
		frag(1, 1, "PROGRAMA ANALÍTICO"),
		frag(3, 1, "Unidad 1"),
		frag(5, 1, "Docente:"),
	}
	ex := NewExtractor(DefaultLexicon())

	a := ex.Extract(frags)
	b := NewExtractor(DefaultLexicon()).Extract(frags)
	require.Equal(t, a, b)
	for i := range a {
		assert.Equal(t, string(a[i].Snapshot()), string(b[i].Snapshot()))
		assert.Equal(t, a[i], FromSnapshot(a[i].Snapshot()))
	}
}

func TestExtract_Signals(t *testing.T) {
	frags := []entity.Fragment{
		frag(1, 1, "PROGRAMA ANALÍTICO"),
		frag(3, 1, "Unidad 1"),
		frag(5, 1, "Docente:"),
	}
	got := NewExtractor(DefaultLexicon()).Extract(frags)
	require.Len(t, got, 3)

	assert.Equal(t, 0, got[0].PositionPct)
	assert.Equal(t, 50, got[1].PositionPct)
	assert.Equal(t, 100, got[2].PositionPct)

	assert.Equal(t, 1.0, got[0].UpperRatio)
	assert.Equal(t, []string{"programa analitico", "programa"}, got[0].HeaderKeywords)
	assert.Equal(t, []string{"unidad"}, got[1].SectionKeywords)

	assert.True(t, got[2].LabelColon)
	assert.False(t, got[2].InlineLabel)
	assert.Equal(t, []string{"docente"}, got[2].FieldKeywords)
	assert.Equal(t, 8, got[2].Length)
	assert.Equal(t, 1, got[2].WordCount)
}

func TestExtract_RowShape(t *testing.T) {
	alone := entity.Fragment{Text: "Carrera", Row: 2, Column: 1, RowCells: 1, GridWidth: 4}
	sibling := entity.Fragment{Text: "Semana", Row: 3, Column: 2, RowCells: 3, GridWidth: 4}
	narrow := entity.Fragment{Text: "Nota", Row: 4, Column: 1, RowCells: 1, GridWidth: 1}

	got := NewExtractor(DefaultLexicon()).Extract([]entity.Fragment{alone, sibling, narrow})
	assert.True(t, got[0].FirstColumnAlone)
	assert.Equal(t, 0, got[0].RowSiblings)
	assert.False(t, got[1].FirstColumnAlone)
	assert.Equal(t, 2, got[1].RowSiblings)
	assert.False(t, got[2].FirstColumnAlone, "single-column documents have no empty siblings")
}

func TestExtract_SingleRowDocument(t *testing.T) {
	got := NewExtractor(DefaultLexicon()).Extract([]entity.Fragment{frag(7, 1, "x"), frag(7, 2, "y")})
	assert.Equal(t, 0, got[0].PositionPct)
	assert.Equal(t, 0, got[1].PositionPct)
	assert.Empty(t, NewExtractor(DefaultLexicon()).Extract(nil))
}

func TestNumbered(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"1. Introducción", true},
		{"1.2) Alcance", true},
		{"a) Objetivos", true},
		{"IV. Evaluación", true},
		{"• Lectura", true},
		{"- Ejercicios", true},
		{"Unidad 1", false},
		{"Docente:", false},
		{"Análisis", false},
	}
	ex := NewExtractor(DefaultLexicon())
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got := ex.Extract([]entity.Fragment{frag(1, 1, tt.text)})
			assert.Equal(t, tt.want, got[0].Numbered)
		})
	}
}

func TestInlineLabel(t *testing.T) {
	got := NewExtractor(DefaultLexicon()).Extract([]entity.Fragment{
		frag(1, 1, "Docente: Juan Pérez"),
		frag(2, 1, "Horario: "),
		frag(3, 1, "Sin etiqueta"),
	})
	assert.True(t, got[0].InlineLabel)
	assert.False(t, got[0].LabelColon)
	assert.True(t, got[1].LabelColon)
	assert.False(t, got[1].InlineLabel)
	assert.False(t, got[2].InlineLabel)
}

func TestUpperRatio(t *testing.T) {
	assert.Equal(t, 0.0, upperRatio("123 --"))
	assert.Equal(t, 1.0, upperRatio("ÁÉÍ 2024"))
	assert.Equal(t, 0.5, upperRatio("Ab"))
	assert.Equal(t, 0.333, upperRatio("Abc"))
}

func TestFold(t *testing.T) {
	assert.Equal(t, "bibliografia basica", Fold("  Bibliografía   BÁSICA: "))
	assert.Equal(t, "evaluacion 1 2", Fold("Evaluación (1/2)"))
	assert.Equal(t, "", Fold(" -- "))
}

func TestMatches_WordBoundaries(t *testing.T) {
	lex := Lexicon{Field: []string{"nivel", "horas"}}.compile()
	assert.Equal(t, []string{"nivel"}, matches(Fold("Nivel:"), lex.field))
	assert.Empty(t, matches(Fold("Desnivelado"), lex.field))
	assert.Equal(t, []string{"horas"}, matches(Fold("Total de HORAS teóricas"), lex.field))
}
