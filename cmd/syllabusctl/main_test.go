package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/syllabus-templates/internal/entity"
	"github.com/joseph-ayodele/syllabus-templates/internal/extraction"
	"github.com/joseph-ayodele/syllabus-templates/internal/features"
	"github.com/joseph-ayodele/syllabus-templates/internal/testutil"
)

// run executes one CLI invocation against dbPath and returns its stdout.
func run(t *testing.T, dbPath string, args ...string) []byte {
	t.Helper()
	var out bytes.Buffer
	cmd := rootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--sqlite", dbPath, "--log-level", "error"}, args...))
	require.NoError(t, cmd.Execute(), out.String())
	return out.Bytes()
}

func TestEndToEnd(t *testing.T) {
	t.Setenv("DB_URL", "")
	t.Setenv("RULES_FILE", "")
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "templates.db")
	doc := filepath.Join(dir, "programa.xlsx")
	require.NoError(t, os.WriteFile(doc, testutil.Workbook(t,
		testutil.Cell{Row: 1, Col: 1, Text: "PROGRAMA ANALITICO"},
		testutil.Cell{Row: 3, Col: 1, Text: "Unidad 1", Bold: true},
		testutil.Cell{Row: 5, Col: 1, Text: "Docente:"},
	), 0o644))

	run(t, dbPath, "migrate")

	var sum extraction.Summary
	require.NoError(t, json.Unmarshal(run(t, dbPath, "extract", doc, "--session", "s-1", "--category", "syllabus"), &sum))
	assert.Equal(t, 3, sum.Candidates)

	var groups []*entity.Grouping
	require.NoError(t, json.Unmarshal(run(t, dbPath, "group", "auto", "s-1"), &groups))
	require.Len(t, groups, 2)
	assert.Equal(t, "PROGRAMA ANALITICO", groups[0].TabName)
	assert.Equal(t, "Unidad 1", groups[1].TabName)

	var tmpl entity.Template
	require.NoError(t, json.Unmarshal(run(t, dbPath, "materialize", "s-1", "--name", "Programa"), &tmpl))
	assert.Equal(t, "Programa", tmpl.Name)
	require.Len(t, tmpl.Sections, 2)
	assert.Equal(t, "PROGRAMA ANALITICO", tmpl.Sections[0].Name)
	assert.Empty(t, tmpl.Sections[0].Fields, "the header names its section")
	assert.Equal(t, "Unidad 1", tmpl.Sections[1].Name)
	require.Len(t, tmpl.Sections[1].Fields, 1, "the section title names its section")
	assert.Equal(t, "Docente", tmpl.Sections[1].Fields[0].Label)

	out := filepath.Join(dir, "form.xlsx")
	run(t, dbPath, "template", "export", tmpl.ID.String(), "-o", out)
	info, err := os.Stat(out)
	require.NoError(t, err)
	assert.Positive(t, info.Size())

	var sess entity.Session
	require.NoError(t, json.Unmarshal(run(t, dbPath, "session", "show", "s-1"), &sess))
	assert.Equal(t, "materialized", string(sess.Status))
}

func TestRulesFileCategoryLexicon(t *testing.T) {
	t.Setenv("DB_URL", "")
	t.Setenv("RULES_FILE", "")
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "templates.db")
	rules := filepath.Join(dir, "rules.yaml")
	require.NoError(t, os.WriteFile(rules, []byte("categories:\n  program:\n    field: [matricula]\n"), 0o600))
	doc := filepath.Join(dir, "plan.xlsx")
	require.NoError(t, os.WriteFile(doc, testutil.Workbook(t,
		testutil.Cell{Row: 1, Col: 1, Text: "Matrícula"},
		testutil.Cell{Row: 2, Col: 1, Text: "Nota"},
	), 0o644))

	run(t, dbPath, "--rules", rules, "extract", doc, "--session", "p-1", "--category", "program")
	run(t, dbPath, "--rules", rules, "extract", doc, "--session", "g-1")

	var program, generic []*entity.Candidate
	require.NoError(t, json.Unmarshal(run(t, dbPath, "candidates", "p-1"), &program))
	require.NoError(t, json.Unmarshal(run(t, dbPath, "candidates", "g-1"), &generic))
	require.NotEmpty(t, program)
	require.NotEmpty(t, generic)
	assert.Equal(t, []string{"matricula"}, features.FromSnapshot(program[0].Features).FieldKeywords)
	assert.Empty(t, features.FromSnapshot(generic[0].Features).FieldKeywords)
}

func TestUnknownCategory(t *testing.T) {
	t.Setenv("DB_URL", "")
	dir := t.TempDir()
	cmd := rootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"--sqlite", filepath.Join(dir, "x.db"), "extract", filepath.Join(dir, "a.xlsx"), "--category", "menu"})
	assert.Error(t, cmd.Execute())
}
