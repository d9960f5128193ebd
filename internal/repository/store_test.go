package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/syllabus-templates/constants"
	"github.com/joseph-ayodele/syllabus-templates/internal/common"
	"github.com/joseph-ayodele/syllabus-templates/internal/entity"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(openMemory(t), nil)
}

func seedSession(t *testing.T, s *Store, id string) *entity.Session {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Millisecond)
	sess := &entity.Session{
		ID:             id,
		Category:       constants.CategorySyllabus,
		SourceFileName: "programa.xlsx",
		SourceKind:     constants.SourceTabular,
		Status:         constants.SessionOpen,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	require.NoError(t, s.Sessions.Save(context.Background(), sess))
	return sess
}

func seedCandidates(t *testing.T, s *Store, sessionID string, n int) []uuid.UUID {
	t.Helper()
	now := time.Now().UTC()
	cs := make([]*entity.Candidate, n)
	ids := make([]uuid.UUID, n)
	for i := range cs {
		ids[i] = uuid.Must(uuid.NewV7())
		cs[i] = &entity.Candidate{
			ID:             ids[i],
			SessionID:      sessionID,
			SourceFileName: "programa.xlsx",
			SourceKind:     constants.SourceTabular,
			TitleText:      fmt.Sprintf("Campo %d", i),
			RawText:        fmt.Sprintf(" Campo %d ", i),
			Role:           constants.RoleField,
			Row:            i + 1,
			Column:         1,
			ColumnLetter:   "A",
			Score:          i * 10,
			Features:       []byte(`{"length":7}`),
			CreatedAt:      now,
		}
	}
	require.NoError(t, s.Candidates.InsertMany(context.Background(), cs))
	return ids
}

func newGrouping(sessionID string, order int) *entity.Grouping {
	now := time.Now().UTC()
	return &entity.Grouping{
		ID:           uuid.Must(uuid.NewV7()),
		SessionID:    sessionID,
		TabName:      fmt.Sprintf("Tab %d", order),
		DisplayOrder: order,
		Color:        "#336699",
		Icon:         "folder",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	db := openMemory(t)
	require.NoError(t, Migrate(context.Background(), db, nil))
}

func TestSessions(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	_, err := s.Sessions.Get(ctx, "missing")
	assert.ErrorIs(t, err, common.ErrSessionNotFound)

	sess := seedSession(t, s, "s-1")
	got, err := s.Sessions.Get(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, sess.Category, got.Category)
	assert.Equal(t, constants.SessionOpen, got.Status)
	assert.True(t, sess.CreatedAt.Equal(got.CreatedAt))
	assert.Nil(t, got.TemplateID)

	actor := "reviewer"
	sess.CreatedBy = &actor
	sess.Category = constants.CategoryProgram
	sess.UpdatedAt = sess.UpdatedAt.Add(time.Minute)
	require.NoError(t, s.Sessions.Save(ctx, sess))
	got, err = s.Sessions.Get(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, constants.CategoryProgram, got.Category)
	require.NotNil(t, got.CreatedBy)
	assert.Equal(t, "reviewer", *got.CreatedBy)

	at := time.Now().UTC()
	require.NoError(t, s.Sessions.SetStatus(ctx, "s-1", constants.SessionGrouped, at))
	tid := uuid.New()
	require.NoError(t, s.Sessions.MarkMaterialized(ctx, "s-1", tid, at))
	got, err = s.Sessions.Get(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, constants.SessionMaterialized, got.Status)
	require.NotNil(t, got.TemplateID)
	assert.Equal(t, tid, *got.TemplateID)
	require.NotNil(t, got.MaterializedAt)

	err = s.Sessions.SetStatus(ctx, "nope", constants.SessionGrouped, at)
	assert.ErrorIs(t, err, common.ErrSessionNotFound)
}

func TestSessions_ListExpired(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	now := time.Now().UTC()

	old := seedSession(t, s, "old")
	past := now.Add(-time.Hour)
	old.ExpiresAt = &past
	require.NoError(t, s.Sessions.Save(ctx, old))

	fresh := seedSession(t, s, "fresh")
	future := now.Add(time.Hour)
	fresh.ExpiresAt = &future
	require.NoError(t, s.Sessions.Save(ctx, fresh))

	seedSession(t, s, "forever")

	ids, err := s.Sessions.ListExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, []string{"old"}, ids)
}

func TestCandidates_ListAndFilter(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	seedSession(t, s, "s-1")
	ids := seedCandidates(t, s, "s-1", 5)

	all, err := s.Candidates.List(ctx, "s-1", entity.CandidateFilter{})
	require.NoError(t, err)
	require.Len(t, all, 5)
	for i, c := range all {
		assert.Equal(t, ids[i], c.ID)
		assert.Equal(t, i+1, c.Row)
		assert.JSONEq(t, `{"length":7}`, string(c.Features))
	}

	minScore := 30
	high, err := s.Candidates.List(ctx, "s-1", entity.CandidateFilter{MinScore: &minScore})
	require.NoError(t, err)
	assert.Len(t, high, 2)

	none, err := s.Candidates.List(ctx, "s-1", entity.CandidateFilter{Roles: []constants.Role{constants.RoleHeader}})
	require.NoError(t, err)
	assert.Empty(t, none)

	g := newGrouping("s-1", 0)
	require.NoError(t, s.Groupings.Insert(ctx, g))
	require.NoError(t, s.Groupings.AddMembers(ctx, g, ids[:2]))

	ungrouped, err := s.Candidates.List(ctx, "s-1", entity.CandidateFilter{UngroupedOnly: true})
	require.NoError(t, err)
	require.Len(t, ungrouped, 3)
	assert.Equal(t, ids[2], ungrouped[0].ID)

	uids, err := s.Candidates.UngroupedIDs(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, ids[2:], uids)

	n, err := s.Candidates.Count(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, 5, n)
}

func TestCandidates_UniquePosition(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	seedSession(t, s, "s-1")
	seedCandidates(t, s, "s-1", 1)

	dup := &entity.Candidate{
		ID: uuid.New(), SessionID: "s-1", SourceKind: constants.SourceTabular,
		Role: constants.RoleField, Row: 1, Column: 1, ColumnLetter: "A", CreatedAt: time.Now(),
	}
	err := s.Candidates.InsertMany(ctx, []*entity.Candidate{dup})
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrDatabase)
}

func TestCandidates_UpdateTitle(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	seedSession(t, s, "s-1")
	ids := seedCandidates(t, s, "s-1", 1)

	require.NoError(t, s.Candidates.UpdateTitle(ctx, ids[0], "Docente:", time.Now().UTC()))
	got, err := s.Candidates.GetMany(ctx, ids)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Docente:", got[0].TitleText)
	assert.Equal(t, " Campo 0 ", got[0].RawText)
	assert.NotNil(t, got[0].CleansedAt)
}

func TestGroupings_DuplicateOrder(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	seedSession(t, s, "s-1")
	seedSession(t, s, "s-2")

	require.NoError(t, s.Groupings.Insert(ctx, newGrouping("s-1", 3)))
	err := s.Groupings.Insert(ctx, newGrouping("s-1", 3))
	assert.ErrorIs(t, err, common.ErrDuplicateOrder)

	require.NoError(t, s.Groupings.Insert(ctx, newGrouping("s-2", 3)), "orders are per session")
}

func TestGroupings_MembershipIsExclusive(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	seedSession(t, s, "s-1")
	ids := seedCandidates(t, s, "s-1", 3)

	a, b := newGrouping("s-1", 0), newGrouping("s-1", 1)
	require.NoError(t, s.Groupings.Insert(ctx, a))
	require.NoError(t, s.Groupings.Insert(ctx, b))
	require.NoError(t, s.Groupings.AddMembers(ctx, a, []uuid.UUID{ids[2], ids[0]}))

	err := s.Groupings.AddMembers(ctx, b, []uuid.UUID{ids[0]})
	assert.ErrorIs(t, err, common.ErrCandidateAlreadyGrouped)

	require.NoError(t, s.Groupings.AddMembers(ctx, a, []uuid.UUID{ids[1]}))
	got, err := s.Groupings.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{ids[2], ids[0], ids[1]}, got.CandidateIDs, "members keep insertion order")

	owners, err := s.Groupings.Owners(ctx, ids)
	require.NoError(t, err)
	assert.Len(t, owners, 3)
	assert.Equal(t, a.ID, owners[ids[0]])

	n, err := s.Groupings.RemoveMembers(ctx, a.ID, []uuid.UUID{ids[0]})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	require.NoError(t, s.Groupings.AddMembers(ctx, b, []uuid.UUID{ids[0]}))

	list, err := s.Groupings.List(ctx, "s-1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, []uuid.UUID{ids[2], ids[1]}, list[0].CandidateIDs)
	assert.Equal(t, []uuid.UUID{ids[0]}, list[1].CandidateIDs)
}

func TestGroupings_MemberPositionIsUnique(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	seedSession(t, s, "s-1")
	ids := seedCandidates(t, s, "s-1", 2)
	g := newGrouping("s-1", 0)
	require.NoError(t, s.Groupings.Insert(ctx, g))
	require.NoError(t, s.Groupings.AddMembers(ctx, g, ids[:1]))

	// A writer that read a stale last position appends at the same slot.
	_, err := s.conn.exec(ctx, s.conn.builder().Insert(tableMembers).
		Columns("candidate_id", "grouping_id", "session_id", "position").
		Values(ids[1], g.ID, "s-1", 0))
	require.Error(t, err)
	assert.True(t, IsPositionConflict(err))
	assert.False(t, IsMembershipConflict(err))

	mapped := memberConflict(err, g.ID, ids[1:])
	assert.ErrorIs(t, mapped, common.ErrConcurrentUpdate)
	assert.Equal(t, common.CodeConcurrentUpdate, common.CodeOf(mapped))
	assert.Nil(t, memberConflict(errors.New("boom"), g.ID, ids))

	got, err := s.Groupings.Get(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, ids[:1], got.CandidateIDs)
}

func TestGroupings_GetMissing(t *testing.T) {
	s := newStore(t)
	_, err := s.Groupings.Get(context.Background(), uuid.New())
	assert.ErrorIs(t, err, common.ErrGroupingNotFound)
	assert.ErrorIs(t, s.Groupings.Delete(context.Background(), uuid.New()), common.ErrGroupingNotFound)
}

func TestSessionDelete_Cascades(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	seedSession(t, s, "s-1")
	ids := seedCandidates(t, s, "s-1", 2)
	g := newGrouping("s-1", 0)
	require.NoError(t, s.Groupings.Insert(ctx, g))
	require.NoError(t, s.Groupings.AddMembers(ctx, g, ids))

	require.NoError(t, s.Sessions.Delete(ctx, "s-1"))

	n, err := s.Candidates.Count(ctx, "s-1")
	require.NoError(t, err)
	assert.Zero(t, n)
	m, err := s.Groupings.CountMembers(ctx, "s-1")
	require.NoError(t, err)
	assert.Zero(t, m)
	_, err = s.Groupings.Get(ctx, g.ID)
	assert.ErrorIs(t, err, common.ErrGroupingNotFound)
}

func TestWithTx_RollsBack(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	seedSession(t, s, "s-1")

	boom := errors.New("boom")
	err := s.WithTx(ctx, func(tx *Store) error {
		seedCandidates(t, tx, "s-1", 3)
		if _, err := tx.Candidates.Count(ctx, "s-1"); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	n, err := s.Candidates.Count(ctx, "s-1")
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, s.WithTx(ctx, func(tx *Store) error {
		return tx.WithTx(ctx, func(inner *Store) error {
			seedCandidates(t, inner, "s-1", 2)
			return nil
		})
	}))
	n, err = s.Candidates.Count(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestTemplates_Tree(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	tpl := &entity.Template{
		ID: uuid.New(), Name: "Programa", Category: constants.CategorySyllabus,
		SourceFileName: "programa.xlsx", CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, s.Templates.InsertTemplate(ctx, tpl))

	for so := 1; so >= 0; so-- {
		sec := &entity.Section{ID: uuid.New(), TemplateID: tpl.ID, Name: fmt.Sprintf("S%d", so), DisplayOrder: so}
		require.NoError(t, s.Templates.InsertSection(ctx, sec))
		require.NoError(t, s.Templates.InsertField(ctx, &entity.Field{
			ID: uuid.New(), SectionID: sec.ID, Label: "Cronograma", Kind: constants.FieldTable,
			DisplayOrder: 1, Columns: []string{"Semana", "Tema"},
		}))
		require.NoError(t, s.Templates.InsertField(ctx, &entity.Field{
			ID: uuid.New(), SectionID: sec.ID, Label: "Docente", Kind: constants.FieldShortText,
			Required: true, DisplayOrder: 0,
		}))
	}

	got, err := s.Templates.Get(ctx, tpl.ID)
	require.NoError(t, err)
	require.Len(t, got.Sections, 2)
	assert.Equal(t, "S0", got.Sections[0].Name)
	require.Len(t, got.Sections[0].Fields, 2)
	assert.Equal(t, "Docente", got.Sections[0].Fields[0].Label)
	assert.True(t, got.Sections[0].Fields[0].Required)
	assert.Nil(t, got.Sections[0].Fields[0].Columns)
	assert.Equal(t, []string{"Semana", "Tema"}, got.Sections[0].Fields[1].Columns)
	assert.Equal(t, constants.FieldTable, got.Sections[0].Fields[1].Kind)

	dup := &entity.Section{ID: uuid.New(), TemplateID: tpl.ID, Name: "again", DisplayOrder: 0}
	assert.ErrorIs(t, s.Templates.InsertSection(ctx, dup), common.ErrDuplicateOrder)

	list, err := s.Templates.List(ctx, TemplateFilter{Category: constants.CategorySyllabus})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Empty(t, list[0].Sections)

	list, err = s.Templates.List(ctx, TemplateFilter{Category: constants.CategoryProgram})
	require.NoError(t, err)
	assert.Empty(t, list)

	_, err = s.Templates.Get(ctx, uuid.New())
	assert.ErrorIs(t, err, common.ErrTemplateNotFound)
}
