package ingest

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/syllabus-templates/constants"
	"github.com/joseph-ayodele/syllabus-templates/internal/async"
	"github.com/joseph-ayodele/syllabus-templates/internal/entity"
	"github.com/joseph-ayodele/syllabus-templates/internal/extraction"
	"github.com/joseph-ayodele/syllabus-templates/internal/repository"
	"github.com/joseph-ayodele/syllabus-templates/internal/session"
	"github.com/joseph-ayodele/syllabus-templates/internal/testutil"
)

func newIngestor(t *testing.T) (*FSIngestor, *session.Service) {
	t.Helper()
	store := repository.NewStore(testutil.OpenMemory(t), nil)
	sessions := session.NewService(nil, store)
	return NewFSIngestor(extraction.NewService(nil, sessions), nil), sessions
}

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func sampleTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "programa.xlsx"), testutil.Workbook(t,
		testutil.Cell{Row: 1, Col: 1, Text: "PROGRAMA ANALITICO"},
		testutil.Cell{Row: 3, Col: 1, Text: "Docente:"},
	))
	writeFile(t, filepath.Join(root, "sub", "silabo.docx"), testutil.Docx(t,
		testutil.Paragraph{Text: "Unidad 1", Style: "Heading1"},
		testutil.Paragraph{Text: "Objetivos:"},
	))
	writeFile(t, filepath.Join(root, ".drafts", "old.xlsx"), testutil.Workbook(t, testutil.Cell{Row: 1, Col: 1, Text: "x"}))
	writeFile(t, filepath.Join(root, "notes.txt"), []byte("not a document"))
	writeFile(t, filepath.Join(root, "broken.xlsx"), []byte("not a zip"))
	return root
}

func TestSessionIDFor_Stable(t *testing.T) {
	a, err := SessionIDFor("/tmp/x/../x/programa.xlsx")
	require.NoError(t, err)
	b, err := SessionIDFor("/tmp/x/programa.xlsx")
	require.NoError(t, err)
	c, err := SessionIDFor("/tmp/x/otro.xlsx")
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, len("fs-")+32)
}

func TestMatcher(t *testing.T) {
	m, err := NewMatcher(nil)
	require.NoError(t, err)
	assert.True(t, m.Match("programa.xlsx"))
	assert.True(t, m.Match(filepath.Join("a", "b", "silabo.DOCX")))
	assert.False(t, m.Match("notes.txt"))

	m, err = NewMatcher([]string{"2024/**/*.xlsx"})
	require.NoError(t, err)
	assert.True(t, m.Match("2024/sem1/p.xlsx"))
	assert.False(t, m.Match("2023/p.xlsx"))
	assert.False(t, m.Match("2024/p.docx"))

	_, err = NewMatcher([]string{"[unclosed"})
	assert.Error(t, err)
}

func TestIngestDirectory(t *testing.T) {
	ctx := context.Background()
	ing, sessions := newIngestor(t)
	root := sampleTree(t)

	results, stats, err := ing.IngestDirectory(ctx, root, DirOptions{SkipHidden: true, Category: constants.CategorySyllabus})
	require.NoError(t, err)
	assert.EqualValues(t, 4, stats.Scanned)
	assert.EqualValues(t, 3, stats.Matched)
	assert.EqualValues(t, 2, stats.Succeeded)
	assert.EqualValues(t, 1, stats.Failed)
	require.Len(t, results, 3)

	byName := map[string]IngestionResult{}
	for _, r := range results {
		byName[filepath.Base(r.SourcePath)] = r
	}
	assert.NotEmpty(t, byName["broken.xlsx"].Err)
	assert.Equal(t, constants.SourceFlow, byName["silabo.docx"].SourceKind)

	prog := byName["programa.xlsx"]
	assert.Empty(t, prog.Err)
	assert.Equal(t, 2, prog.Candidates)
	want, err := SessionIDFor(filepath.Join(root, "programa.xlsx"))
	require.NoError(t, err)
	assert.Equal(t, want, prog.SessionID)

	// A second pass replaces rather than duplicates.
	_, _, err = ing.IngestDirectory(ctx, root, DirOptions{SkipHidden: true})
	require.NoError(t, err)
	cs, err := sessions.ListCandidates(ctx, prog.SessionID, entity.CandidateFilter{})
	require.NoError(t, err)
	assert.Len(t, cs, 2)
}

func TestIngestDirectory_Errors(t *testing.T) {
	ing, _ := newIngestor(t)
	_, _, err := ing.IngestDirectory(context.Background(), " ", DirOptions{})
	assert.Error(t, err)
	_, _, err = ing.IngestDirectory(context.Background(), filepath.Join(t.TempDir(), "missing"), DirOptions{})
	assert.Error(t, err)
	_, err = ing.IngestPath(context.Background(), "notes.txt", constants.CategoryGeneric, nil)
	assert.Error(t, err)
}

func TestEnqueueDirectory(t *testing.T) {
	ctx := context.Background()
	ing, sessions := newIngestor(t)
	root := sampleTree(t)

	var mu sync.Mutex
	var done []string
	q := async.NewExtractionQueue(ing, nil, async.WithWorkers(2), async.WithOnDone(func(job async.Job, err error) {
		if err == nil {
			mu.Lock()
			done = append(done, filepath.Base(job.Path))
			mu.Unlock()
		}
	}))

	results, stats, err := EnqueueDirectory(ctx, q, root, DirOptions{SkipHidden: true})
	require.NoError(t, err)
	assert.EqualValues(t, 3, stats.Succeeded)
	q.Shutdown(ctx)

	sort.Strings(done)
	assert.Equal(t, []string{"programa.xlsx", "silabo.docx"}, done)
	for _, r := range results {
		assert.True(t, r.Queued)
		if filepath.Base(r.SourcePath) == "programa.xlsx" {
			sess, err := sessions.GetSession(ctx, r.SessionID)
			require.NoError(t, err)
			assert.Equal(t, "programa.xlsx", sess.SourceFileName)
		}
	}
}

func TestStartWatcher(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	root := t.TempDir()
	existing := filepath.Join(root, "existing.xlsx")
	writeFile(t, existing, []byte("x"))

	events, _, err := StartWatcher(ctx, WatchConfig{Roots: []string{root}, InitialScan: true, Debounce: 100 * time.Millisecond}, nil)
	require.NoError(t, err)

	next := func() string {
		select {
		case p := <-events:
			return p
		case <-time.After(5 * time.Second):
			t.Fatal("no watcher event")
			return ""
		}
	}
	assert.Equal(t, existing, next())

	dropped := filepath.Join(root, "nuevo.docx")
	for i := 0; i < 3; i++ {
		writeFile(t, dropped, []byte{byte(i)})
	}
	writeFile(t, filepath.Join(root, "ignored.txt"), []byte("x"))
	assert.Equal(t, dropped, next())

	nested := filepath.Join(root, "sub", "inner.xlsx")
	writeFile(t, nested, []byte("x"))
	assert.Equal(t, nested, next())

	select {
	case p := <-events:
		t.Fatalf("unexpected extra event %q", p)
	case <-time.After(200 * time.Millisecond):
	}

	cancel()
	for range events {
	}
}

func TestStartWatcher_MovedFiles(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	root := t.TempDir()
	elsewhere := t.TempDir()

	events, _, err := StartWatcher(ctx, WatchConfig{Roots: []string{root}, Debounce: 150 * time.Millisecond}, nil)
	require.NoError(t, err)

	outgoing := filepath.Join(root, "saliente.xlsx")
	writeFile(t, outgoing, []byte("x"))
	require.NoError(t, os.Rename(outgoing, filepath.Join(elsewhere, "saliente.xlsx")))

	staged := filepath.Join(elsewhere, "entrante.xlsx")
	writeFile(t, staged, []byte("x"))
	incoming := filepath.Join(root, "entrante.xlsx")
	require.NoError(t, os.Rename(staged, incoming))

	select {
	case p := <-events:
		assert.Equal(t, incoming, p, "a file moved out of the root is not emitted")
	case <-time.After(5 * time.Second):
		t.Fatal("no watcher event")
	}
	select {
	case p := <-events:
		t.Fatalf("unexpected extra event %q", p)
	case <-time.After(300 * time.Millisecond):
	}

	cancel()
	for range events {
	}
}

func TestStartWatcher_NoRoots(t *testing.T) {
	_, _, err := StartWatcher(context.Background(), WatchConfig{}, nil)
	assert.Error(t, err)
}
