package repository

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/syllabus-templates/internal/common"
	"github.com/joseph-ayodele/syllabus-templates/internal/entity"
)

type GroupingRepository interface {
	// Insert stores g without members. A clashing display order yields DuplicateOrder.
	Insert(ctx context.Context, g *entity.Grouping) error
	// Get returns the grouping with its ordered members, or GroupingNotFound.
	Get(ctx context.Context, id uuid.UUID) (*entity.Grouping, error)
	// List returns the session's groupings by display order, members included.
	List(ctx context.Context, sessionID string) ([]*entity.Grouping, error)
	UpdateAttributes(ctx context.Context, g *entity.Grouping) error
	SetDisplayOrder(ctx context.Context, id uuid.UUID, order int, at time.Time) error
	Touch(ctx context.Context, id uuid.UUID, at time.Time) error
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteBySession(ctx context.Context, sessionID string) (int64, error)

	// AddMembers appends ids after the grouping's last position. A candidate
	// already owned elsewhere yields CandidateAlreadyGrouped.
	AddMembers(ctx context.Context, g *entity.Grouping, ids []uuid.UUID) error
	RemoveMembers(ctx context.Context, groupingID uuid.UUID, ids []uuid.UUID) (int64, error)
	// Owners maps each owned id among ids to its grouping.
	Owners(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]uuid.UUID, error)
	CountMembers(ctx context.Context, sessionID string) (int, error)
}

type groupingRepo struct {
	conn
	log *slog.Logger
}

var groupingColumns = []string{
	"id", "session_id", "tab_name", "description", "display_order", "color", "icon",
	"created_at", "updated_at",
}

func (r *groupingRepo) Insert(ctx context.Context, g *entity.Grouping) error {
	_, err := r.exec(ctx, r.builder().Insert(tableGroupings).
		Columns(groupingColumns...).
		Values(g.ID, g.SessionID, g.TabName, nullString(g.Description), g.DisplayOrder,
			g.Color, g.Icon, g.CreatedAt, g.UpdatedAt))
	if err != nil {
		if IsDuplicateOrder(err) {
			return common.DuplicateOrder(g.SessionID, g.DisplayOrder)
		}
		r.log.Error("grouping insert failed", "session_id", g.SessionID, "err", err)
		return dbErr("insert grouping", err)
	}
	return nil
}

func (r *groupingRepo) Get(ctx context.Context, id uuid.UUID) (*entity.Grouping, error) {
	rows, err := r.query(ctx, r.builder().Select(groupingColumns...).
		From(r.table(tableGroupings)).
		Where(entsql.EQ("id", id)))
	if err != nil {
		return nil, dbErr("get grouping", err)
	}
	gs, err := scanGroupings(rows)
	if err != nil {
		return nil, dbErr("get grouping", err)
	}
	if len(gs) == 0 {
		return nil, groupingNotFound(id)
	}
	if err := r.loadMembers(ctx, gs); err != nil {
		return nil, err
	}
	return gs[0], nil
}

func (r *groupingRepo) List(ctx context.Context, sessionID string) ([]*entity.Grouping, error) {
	rows, err := r.query(ctx, r.builder().Select(groupingColumns...).
		From(r.table(tableGroupings)).
		Where(entsql.EQ("session_id", sessionID)).
		OrderBy("display_order"))
	if err != nil {
		return nil, dbErr("list groupings", err)
	}
	gs, err := scanGroupings(rows)
	if err != nil {
		return nil, dbErr("list groupings", err)
	}
	if err := r.loadMembers(ctx, gs); err != nil {
		return nil, err
	}
	return gs, nil
}

func (r *groupingRepo) loadMembers(ctx context.Context, gs []*entity.Grouping) error {
	if len(gs) == 0 {
		return nil
	}
	byID := make(map[uuid.UUID]*entity.Grouping, len(gs))
	ids := make([]uuid.UUID, len(gs))
	for i, g := range gs {
		byID[g.ID] = g
		ids[i] = g.ID
		g.CandidateIDs = []uuid.UUID{}
	}
	rows, err := r.query(ctx, r.builder().Select("grouping_id", "candidate_id").
		From(r.table(tableMembers)).
		Where(entsql.In("grouping_id", uuidArgs(ids)...)).
		OrderBy("grouping_id", "position"))
	if err != nil {
		return dbErr("load grouping members", err)
	}
	defer rows.Close()
	for rows.Next() {
		var gid, cid uuid.UUID
		if err := rows.Scan(&gid, &cid); err != nil {
			return dbErr("load grouping members", err)
		}
		if g, ok := byID[gid]; ok {
			g.CandidateIDs = append(g.CandidateIDs, cid)
		}
	}
	return dbErr("load grouping members", rows.Err())
}

func (r *groupingRepo) UpdateAttributes(ctx context.Context, g *entity.Grouping) error {
	return r.update(ctx, "update grouping", g.ID, r.builder().Update(tableGroupings).
		Set("tab_name", g.TabName).
		Set("description", nullString(g.Description)).
		Set("color", g.Color).
		Set("icon", g.Icon).
		Set("updated_at", g.UpdatedAt))
}

func (r *groupingRepo) SetDisplayOrder(ctx context.Context, id uuid.UUID, order int, at time.Time) error {
	return r.update(ctx, "set grouping display order", id, r.builder().Update(tableGroupings).
		Set("display_order", order).
		Set("updated_at", at))
}

func (r *groupingRepo) Touch(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.update(ctx, "touch grouping", id, r.builder().Update(tableGroupings).Set("updated_at", at))
}

func (r *groupingRepo) update(ctx context.Context, op string, id uuid.UUID, u *entsql.UpdateBuilder) error {
	res, err := r.exec(ctx, u.Where(entsql.EQ("id", id)))
	if err != nil {
		if IsDuplicateOrder(err) {
			return common.NewAppError(common.CodeDuplicateOrder, op, common.ErrDuplicateOrder)
		}
		r.log.Error("grouping update failed", "op", op, "grouping_id", id, "err", err)
		return dbErr(op, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return groupingNotFound(id)
	}
	return nil
}

func (r *groupingRepo) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.exec(ctx, r.builder().Delete(tableGroupings).Where(entsql.EQ("id", id)))
	if err != nil {
		r.log.Error("grouping delete failed", "grouping_id", id, "err", err)
		return dbErr("delete grouping", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return groupingNotFound(id)
	}
	return nil
}

func (r *groupingRepo) DeleteBySession(ctx context.Context, sessionID string) (int64, error) {
	res, err := r.exec(ctx, r.builder().Delete(tableGroupings).Where(entsql.EQ("session_id", sessionID)))
	if err != nil {
		r.log.Error("grouping delete failed", "session_id", sessionID, "err", err)
		return 0, dbErr("delete groupings", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func (r *groupingRepo) AddMembers(ctx context.Context, g *entity.Grouping, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	rows, err := r.query(ctx, r.builder().Select("COALESCE(MAX(position), -1)").
		From(r.table(tableMembers)).
		Where(entsql.EQ("grouping_id", g.ID)))
	if err != nil {
		return dbErr("next member position", err)
	}
	last, err := scanInt(rows)
	if err != nil {
		return dbErr("next member position", err)
	}

	for start := 0; start < len(ids); start += insertBatch {
		end := min(start+insertBatch, len(ids))
		ins := r.builder().Insert(tableMembers).Columns("candidate_id", "grouping_id", "session_id", "position")
		for i, id := range ids[start:end] {
			ins.Values(id, g.ID, g.SessionID, last+1+start+i)
		}
		if _, err := r.exec(ctx, ins); err != nil {
			if mapped := memberConflict(err, g.ID, ids); mapped != nil {
				return mapped
			}
			r.log.Error("grouping member insert failed", "grouping_id", g.ID, "err", err)
			return dbErr("add grouping members", err)
		}
	}
	return nil
}

func (r *groupingRepo) RemoveMembers(ctx context.Context, groupingID uuid.UUID, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res, err := r.exec(ctx, r.builder().Delete(tableMembers).Where(entsql.And(
		entsql.EQ("grouping_id", groupingID),
		entsql.In("candidate_id", uuidArgs(ids)...),
	)))
	if err != nil {
		r.log.Error("grouping member delete failed", "grouping_id", groupingID, "err", err)
		return 0, dbErr("remove grouping members", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func (r *groupingRepo) Owners(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]uuid.UUID, error) {
	out := make(map[uuid.UUID]uuid.UUID)
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := r.query(ctx, r.builder().Select("candidate_id", "grouping_id").
		From(r.table(tableMembers)).
		Where(entsql.In("candidate_id", uuidArgs(ids)...)))
	if err != nil {
		return nil, dbErr("load candidate owners", err)
	}
	defer rows.Close()
	for rows.Next() {
		var cid, gid uuid.UUID
		if err := rows.Scan(&cid, &gid); err != nil {
			return nil, dbErr("load candidate owners", err)
		}
		out[cid] = gid
	}
	return out, dbErr("load candidate owners", rows.Err())
}

func (r *groupingRepo) CountMembers(ctx context.Context, sessionID string) (int, error) {
	rows, err := r.query(ctx, r.builder().Select(entsql.Count("*")).
		From(r.table(tableMembers)).
		Where(entsql.EQ("session_id", sessionID)))
	if err != nil {
		return 0, dbErr("count grouping members", err)
	}
	n, err := scanInt(rows)
	return n, dbErr("count grouping members", err)
}

// memberConflict maps a member insert failure to its domain error, or nil
// when err is not a known constraint violation.
func memberConflict(err error, groupingID uuid.UUID, ids []uuid.UUID) error {
	switch {
	case IsMembershipConflict(err):
		return common.CandidateAlreadyGrouped(ids...)
	case IsPositionConflict(err):
		return common.NewAppError(common.CodeConcurrentUpdate,
			"grouping "+groupingID.String()+" members", errors.Join(common.ErrConcurrentUpdate, err))
	default:
		return nil
	}
}

func groupingNotFound(id uuid.UUID) error {
	return common.NewAppError(common.CodeGroupingNotFound, "grouping "+id.String(), common.ErrGroupingNotFound)
}

func scanGroupings(rows *sql.Rows) ([]*entity.Grouping, error) {
	defer rows.Close()
	var out []*entity.Grouping
	for rows.Next() {
		var (
			g           entity.Grouping
			description sql.NullString
		)
		if err := rows.Scan(&g.ID, &g.SessionID, &g.TabName, &description, &g.DisplayOrder,
			&g.Color, &g.Icon, &g.CreatedAt, &g.UpdatedAt); err != nil {
			return nil, err
		}
		g.Description = stringPtr(description)
		out = append(out, &g)
	}
	return out, rows.Err()
}
