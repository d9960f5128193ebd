package grouping

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/syllabus-templates/constants"
	"github.com/joseph-ayodele/syllabus-templates/internal/common"
	"github.com/joseph-ayodele/syllabus-templates/internal/entity"
	"github.com/joseph-ayodele/syllabus-templates/internal/repository"
	"github.com/joseph-ayodele/syllabus-templates/internal/session"
	"github.com/joseph-ayodele/syllabus-templates/internal/testutil"
)

type fixture struct {
	svc      *Service
	sessions *session.Service
	store    *repository.Store
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	store := repository.NewStore(testutil.OpenMemory(t), nil)
	return fixture{svc: NewService(nil, store), sessions: session.NewService(nil, store), store: store}
}

type seed struct {
	title string
	role  constants.Role
}

// persist stores one candidate per seed, one per row, and returns their ids in row order.
func (f fixture) persist(t *testing.T, sessionID string, seeds ...seed) []uuid.UUID {
	t.Helper()
	ctx := context.Background()
	cs := make([]*entity.Candidate, len(seeds))
	for i, s := range seeds {
		cs[i] = &entity.Candidate{
			TitleText: s.title, RawText: s.title, Role: s.role,
			Row: i + 1, Column: 1, ColumnLetter: "A", Score: 60,
		}
	}
	require.NoError(t, f.sessions.PersistCandidates(ctx, session.Meta{
		SessionID:      sessionID,
		Category:       constants.CategorySyllabus,
		SourceFileName: "programa.xlsx",
		SourceKind:     constants.SourceTabular,
	}, cs))
	listed, err := f.sessions.ListCandidates(ctx, sessionID, entity.CandidateFilter{})
	require.NoError(t, err)
	ids := make([]uuid.UUID, len(listed))
	for i, c := range listed {
		ids[i] = c.ID
	}
	return ids
}

func fields(titles ...string) []seed {
	out := make([]seed, len(titles))
	for i, t := range titles {
		out[i] = seed{title: t, role: constants.RoleField}
	}
	return out
}

func (f fixture) status(t *testing.T, sessionID string) constants.SessionStatus {
	t.Helper()
	sess, err := f.sessions.GetSession(context.Background(), sessionID)
	require.NoError(t, err)
	return sess.Status
}

func TestCreate_DuplicateOrderLeavesStateUnchanged(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ids := f.persist(t, "s-1", fields("c1", "c2", "c3", "c4", "c5")...)

	g, err := f.svc.Create(ctx, "s-1", CreateInput{TabName: "DATOS GENERALES", DisplayOrder: 0, CandidateIDs: ids[:3]})
	require.NoError(t, err)
	assert.Equal(t, ids[:3], g.CandidateIDs)

	_, err = f.svc.Create(ctx, "s-1", CreateInput{TabName: "ESTRUCTURA", DisplayOrder: 0, CandidateIDs: ids[3:]})
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrDuplicateOrder))
	assert.Equal(t, common.CodeDuplicateOrder, common.CodeOf(err))

	gs, err := f.svc.ListGroupings(ctx, "s-1")
	require.NoError(t, err)
	require.Len(t, gs, 1)
	assert.Equal(t, "DATOS GENERALES", gs[0].TabName)

	ungrouped, err := f.sessions.ListCandidates(ctx, "s-1", entity.CandidateFilter{UngroupedOnly: true})
	require.NoError(t, err)
	assert.Len(t, ungrouped, 2)
	assert.Equal(t, constants.SessionOpen, f.status(t, "s-1"))
}

func TestCreate_OrderIsPerSession(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.persist(t, "s-a", fields("x")...)
	b := f.persist(t, "s-b", fields("y")...)

	_, err := f.svc.Create(ctx, "s-a", CreateInput{TabName: "A", DisplayOrder: 0, CandidateIDs: a})
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, "s-b", CreateInput{TabName: "B", DisplayOrder: 0, CandidateIDs: b})
	require.NoError(t, err)
}

func TestCreate_Rejections(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ids := f.persist(t, "s-1", fields("a", "b", "c")...)
	other := f.persist(t, "s-2", fields("z")...)

	_, err := f.svc.Create(ctx, "s-1", CreateInput{TabName: "First", DisplayOrder: 0, CandidateIDs: ids[:2]})
	require.NoError(t, err)

	t.Run("already grouped", func(t *testing.T) {
		_, err := f.svc.Create(ctx, "s-1", CreateInput{TabName: "Second", DisplayOrder: 1, CandidateIDs: []uuid.UUID{ids[1], ids[2]}})
		require.Error(t, err)
		assert.True(t, errors.Is(err, common.ErrCandidateAlreadyGrouped))
		assert.Equal(t, []uuid.UUID{ids[1]}, common.IDsOf(err))
	})
	t.Run("foreign candidate", func(t *testing.T) {
		_, err := f.svc.Create(ctx, "s-1", CreateInput{TabName: "Second", DisplayOrder: 1, CandidateIDs: other})
		require.Error(t, err)
		assert.True(t, errors.Is(err, common.ErrCrossSessionReference))
		assert.Equal(t, other, common.IDsOf(err))
	})
	t.Run("unknown candidate", func(t *testing.T) {
		unknown := uuid.New()
		_, err := f.svc.Create(ctx, "s-1", CreateInput{TabName: "Second", DisplayOrder: 1, CandidateIDs: []uuid.UUID{unknown}})
		require.Error(t, err)
		assert.True(t, errors.Is(err, common.ErrCrossSessionReference))
	})
	t.Run("unknown session", func(t *testing.T) {
		_, err := f.svc.Create(ctx, "nope", CreateInput{TabName: "X", CandidateIDs: ids[2:]})
		require.Error(t, err)
		assert.True(t, errors.Is(err, common.ErrSessionNotFound))
	})
	t.Run("invalid input", func(t *testing.T) {
		cases := []CreateInput{
			{TabName: " ", CandidateIDs: ids[2:]},
			{TabName: "X", DisplayOrder: -1, CandidateIDs: ids[2:]},
			{TabName: "X", Color: "red", CandidateIDs: ids[2:]},
			{TabName: "X", DisplayOrder: 1, CandidateIDs: []uuid.UUID{ids[2], ids[2]}},
		}
		for i, in := range cases {
			_, err := f.svc.Create(ctx, "s-1", in)
			require.Error(t, err, "case %d", i)
			assert.True(t, errors.Is(err, common.ErrInvalidInput), "case %d: %v", i, err)
		}
	})

	gs, err := f.svc.ListGroupings(ctx, "s-1")
	require.NoError(t, err)
	assert.Len(t, gs, 1, "rejected creates add nothing")
}

func TestCreate_ConcurrentClaimsHaveOneWinner(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ids := f.persist(t, "s-1", fields("a", "b")...)

	const writers = 8
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
		errs []error
	)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.svc.Create(ctx, "s-1", CreateInput{
				TabName:      fmt.Sprintf("tab %d", i),
				DisplayOrder: i,
				CandidateIDs: ids,
			})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				wins++
				return
			}
			errs = append(errs, err)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	for _, err := range errs {
		assert.True(t, errors.Is(err, common.ErrCandidateAlreadyGrouped), "%v", err)
	}
	owners, err := f.store.Groupings.Owners(ctx, ids)
	require.NoError(t, err)
	assert.Len(t, owners, 2)
	assert.Equal(t, owners[ids[0]], owners[ids[1]])
}

func TestStatusFollowsCoverage(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ids := f.persist(t, "s-1", fields("a", "b")...)
	assert.Equal(t, constants.SessionOpen, f.status(t, "s-1"))

	g, err := f.svc.Create(ctx, "s-1", CreateInput{TabName: "All", CandidateIDs: ids})
	require.NoError(t, err)
	assert.Equal(t, constants.SessionGrouped, f.status(t, "s-1"))

	_, err = f.svc.RemoveCandidates(ctx, g.ID, ids[1:])
	require.NoError(t, err)
	assert.Equal(t, constants.SessionOpen, f.status(t, "s-1"))

	_, err = f.svc.AddCandidates(ctx, g.ID, ids[1:])
	require.NoError(t, err)
	assert.Equal(t, constants.SessionGrouped, f.status(t, "s-1"))

	require.NoError(t, f.svc.DeleteGrouping(ctx, g.ID))
	assert.Equal(t, constants.SessionOpen, f.status(t, "s-1"))

	_, err = f.svc.GetGrouping(ctx, g.ID)
	assert.True(t, errors.Is(err, common.ErrGroupingNotFound))
}

func TestMoveCandidates(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ids := f.persist(t, "s-1", fields("a", "b", "c", "d")...)

	from, err := f.svc.Create(ctx, "s-1", CreateInput{TabName: "From", DisplayOrder: 0, CandidateIDs: ids[:3]})
	require.NoError(t, err)
	to, err := f.svc.Create(ctx, "s-1", CreateInput{TabName: "To", DisplayOrder: 1, CandidateIDs: ids[3:]})
	require.NoError(t, err)

	gotFrom, gotTo, err := f.svc.MoveCandidates(ctx, from.ID, to.ID, []uuid.UUID{ids[2], ids[0]})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{ids[1]}, gotFrom.CandidateIDs)
	assert.Equal(t, []uuid.UUID{ids[3], ids[2], ids[0]}, gotTo.CandidateIDs, "moved ids append in the given order")

	t.Run("not owned by source moves nothing", func(t *testing.T) {
		_, _, err := f.svc.MoveCandidates(ctx, from.ID, to.ID, []uuid.UUID{ids[1], ids[3]})
		require.Error(t, err)
		assert.True(t, errors.Is(err, common.ErrInvalidInput))
		assert.Equal(t, []uuid.UUID{ids[3]}, common.IDsOf(err))

		g, err := f.svc.GetGrouping(ctx, from.ID)
		require.NoError(t, err)
		assert.Equal(t, []uuid.UUID{ids[1]}, g.CandidateIDs)
	})
	t.Run("same grouping", func(t *testing.T) {
		_, _, err := f.svc.MoveCandidates(ctx, from.ID, from.ID, ids[1:2])
		assert.True(t, errors.Is(err, common.ErrInvalidInput))
	})
	t.Run("across sessions", func(t *testing.T) {
		other := f.persist(t, "s-2", fields("z")...)
		g, err := f.svc.Create(ctx, "s-2", CreateInput{TabName: "Other", CandidateIDs: other})
		require.NoError(t, err)
		_, _, err = f.svc.MoveCandidates(ctx, from.ID, g.ID, ids[1:2])
		assert.True(t, errors.Is(err, common.ErrCrossSessionReference))
	})
	t.Run("unknown grouping", func(t *testing.T) {
		_, _, err := f.svc.MoveCandidates(ctx, from.ID, uuid.New(), ids[1:2])
		assert.True(t, errors.Is(err, common.ErrGroupingNotFound))
	})
}

func TestReorderGroupings(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ids := f.persist(t, "s-1", fields("a", "b", "c")...)

	var gs []*entity.Grouping
	for i, id := range ids {
		g, err := f.svc.Create(ctx, "s-1", CreateInput{TabName: fmt.Sprintf("T%d", i), DisplayOrder: i, CandidateIDs: []uuid.UUID{id}})
		require.NoError(t, err)
		gs = append(gs, g)
	}

	out, err := f.svc.ReorderGroupings(ctx, "s-1", []uuid.UUID{gs[2].ID, gs[0].ID, gs[1].ID})
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, []string{"T2", "T0", "T1"}, []string{out[0].TabName, out[1].TabName, out[2].TabName})
	for i, g := range out {
		assert.Equal(t, i, g.DisplayOrder)
	}

	t.Run("incomplete", func(t *testing.T) {
		_, err := f.svc.ReorderGroupings(ctx, "s-1", []uuid.UUID{gs[0].ID, gs[1].ID})
		require.Error(t, err)
		assert.True(t, errors.Is(err, common.ErrIncompleteOrdering))
		assert.Equal(t, []uuid.UUID{gs[2].ID}, common.IDsOf(err))
	})
	t.Run("repeated", func(t *testing.T) {
		_, err := f.svc.ReorderGroupings(ctx, "s-1", []uuid.UUID{gs[0].ID, gs[0].ID, gs[1].ID})
		assert.True(t, errors.Is(err, common.ErrIncompleteOrdering))
	})
	t.Run("unknown id", func(t *testing.T) {
		_, err := f.svc.ReorderGroupings(ctx, "s-1", []uuid.UUID{gs[0].ID, gs[1].ID, uuid.New()})
		assert.True(t, errors.Is(err, common.ErrIncompleteOrdering))
	})

	after, err := f.svc.ListGroupings(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, "T2", after[0].TabName, "failed reorders change nothing")
}

func TestUpdateGrouping(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ids := f.persist(t, "s-1", fields("a")...)
	desc := "first"
	g, err := f.svc.Create(ctx, "s-1", CreateInput{TabName: "Old", Description: &desc, Color: "#fff", CandidateIDs: ids})
	require.NoError(t, err)

	name, color, empty := "New", "#112233", ""
	out, err := f.svc.UpdateGrouping(ctx, g.ID, UpdateInput{TabName: &name, Color: &color, Description: &empty})
	require.NoError(t, err)
	assert.Equal(t, "New", out.TabName)
	assert.Nil(t, out.Description)

	got, err := f.svc.GetGrouping(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, "#112233", got.Color)
	assert.Equal(t, ids, got.CandidateIDs)

	bad := "blue"
	_, err = f.svc.UpdateGrouping(ctx, g.ID, UpdateInput{Color: &bad})
	assert.True(t, errors.Is(err, common.ErrInvalidInput))
}

func TestAutoGroup(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ids := f.persist(t, "s-1",
		seed{"Docente:", constants.RoleField},
		seed{"UNIDAD 1", constants.RoleSectionTitle},
		seed{"Objetivos", constants.RoleField},
		seed{"Contenidos", constants.RoleField},
		seed{"UNIDAD 2", constants.RoleSectionTitle},
		seed{"Bibliografia", constants.RoleField},
	)

	gs, err := f.svc.AutoGroup(ctx, "s-1")
	require.NoError(t, err)
	require.Len(t, gs, 3)
	assert.Equal(t, "General", gs[0].TabName)
	assert.Equal(t, []uuid.UUID{ids[0]}, gs[0].CandidateIDs)
	assert.Equal(t, "UNIDAD 1", gs[1].TabName)
	assert.Equal(t, ids[1:4], gs[1].CandidateIDs)
	assert.Equal(t, "UNIDAD 2", gs[2].TabName)
	assert.Equal(t, []int{0, 1, 2}, []int{gs[0].DisplayOrder, gs[1].DisplayOrder, gs[2].DisplayOrder})
	assert.Equal(t, constants.SessionGrouped, f.status(t, "s-1"))

	again, err := f.svc.AutoGroup(ctx, "s-1")
	require.NoError(t, err)
	assert.Empty(t, again, "nothing left to group")
}

func TestAutoGroup_AppendsAfterExisting(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ids := f.persist(t, "s-1", fields("a", "b")...)
	_, err := f.svc.Create(ctx, "s-1", CreateInput{TabName: "Manual", DisplayOrder: 4, CandidateIDs: ids[:1]})
	require.NoError(t, err)

	gs, err := f.svc.AutoGroup(ctx, "s-1")
	require.NoError(t, err)
	require.Len(t, gs, 1)
	assert.Equal(t, 5, gs[0].DisplayOrder)
	assert.Equal(t, ids[1:], gs[0].CandidateIDs)
}

func TestArchivedSessionRejectsGroupingChanges(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ids := f.persist(t, "s-1", fields("a")...)
	require.NoError(t, f.sessions.Archive(ctx, "s-1"))

	_, err := f.svc.Create(ctx, "s-1", CreateInput{TabName: "X", CandidateIDs: ids})
	assert.True(t, errors.Is(err, common.ErrInvalidTransition))
	_, err = f.svc.AutoGroup(ctx, "s-1")
	assert.True(t, errors.Is(err, common.ErrInvalidTransition))
}

func TestWithTx_RetriesConcurrentUpdate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	conflict := common.NewAppError(common.CodeConcurrentUpdate, "members", common.ErrConcurrentUpdate)

	calls := 0
	err := f.svc.withTx(ctx, func(*repository.Store) error {
		calls++
		if calls < txAttempts {
			return conflict
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, txAttempts, calls)

	calls = 0
	err = f.svc.withTx(ctx, func(*repository.Store) error {
		calls++
		return conflict
	})
	assert.ErrorIs(t, err, common.ErrConcurrentUpdate)
	assert.Equal(t, txAttempts, calls, "gives up after the last attempt")

	calls = 0
	err = f.svc.withTx(ctx, func(*repository.Store) error {
		calls++
		return common.DuplicateOrder("s-1", 0)
	})
	assert.ErrorIs(t, err, common.ErrDuplicateOrder)
	assert.Equal(t, 1, calls, "other errors are not retried")
}
