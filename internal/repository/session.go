package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/syllabus-templates/constants"
	"github.com/joseph-ayodele/syllabus-templates/internal/common"
	"github.com/joseph-ayodele/syllabus-templates/internal/entity"
)

type SessionRepository interface {
	// Get returns the session or a SessionNotFound error.
	Get(ctx context.Context, id string) (*entity.Session, error)
	// Save inserts s, or overwrites every column but created_at when it exists.
	Save(ctx context.Context, s *entity.Session) error
	SetStatus(ctx context.Context, id string, status constants.SessionStatus, at time.Time) error
	MarkCleansed(ctx context.Context, id string, at time.Time) error
	MarkMaterialized(ctx context.Context, id string, templateID uuid.UUID, at time.Time) error
	List(ctx context.Context, limit int) ([]*entity.Session, error)
	// ListExpired returns ids of sessions whose expires_at is before now.
	ListExpired(ctx context.Context, now time.Time) ([]string, error)
	// Delete removes the session; candidates and groupings cascade.
	Delete(ctx context.Context, id string) error
}

type sessionRepo struct {
	conn
	log *slog.Logger
}

var sessionColumns = []string{
	"id", "category", "source_file_name", "source_kind", "status", "created_by",
	"created_at", "updated_at", "expires_at", "cleansed_at", "materialized_at", "template_id",
}

func (r *sessionRepo) selectSessions() *entsql.Selector {
	return r.builder().Select(sessionColumns...).From(r.table(tableSessions))
}

func (r *sessionRepo) Get(ctx context.Context, id string) (*entity.Session, error) {
	rows, err := r.query(ctx, r.selectSessions().Where(entsql.EQ("id", id)))
	if err != nil {
		return nil, dbErr("get session", err)
	}
	out, err := scanSessions(rows)
	if err != nil {
		return nil, dbErr("get session", err)
	}
	if len(out) == 0 {
		return nil, common.SessionNotFound(id)
	}
	return out[0], nil
}

func (r *sessionRepo) Save(ctx context.Context, s *entity.Session) error {
	_, err := r.Get(ctx, s.ID)
	switch {
	case err == nil:
		_, err = r.exec(ctx, r.builder().Update(tableSessions).
			Set("category", string(s.Category)).
			Set("source_file_name", s.SourceFileName).
			Set("source_kind", string(s.SourceKind)).
			Set("status", string(s.Status)).
			Set("created_by", nullString(s.CreatedBy)).
			Set("updated_at", s.UpdatedAt).
			Set("expires_at", nullTime(s.ExpiresAt)).
			Set("cleansed_at", nullTime(s.CleansedAt)).
			Set("materialized_at", nullTime(s.MaterializedAt)).
			Set("template_id", nullUUID(s.TemplateID)).
			Where(entsql.EQ("id", s.ID)))
	case common.CodeOf(err) == common.CodeSessionNotFound:
		_, err = r.exec(ctx, r.builder().Insert(tableSessions).
			Columns(sessionColumns...).
			Values(s.ID, string(s.Category), s.SourceFileName, string(s.SourceKind), string(s.Status),
				nullString(s.CreatedBy), s.CreatedAt, s.UpdatedAt, nullTime(s.ExpiresAt),
				nullTime(s.CleansedAt), nullTime(s.MaterializedAt), nullUUID(s.TemplateID)))
	}
	if err != nil {
		r.log.Error("session save failed", "session_id", s.ID, "err", err)
		return dbErr("save session", err)
	}
	return nil
}

func (r *sessionRepo) update(ctx context.Context, op, id string, u *entsql.UpdateBuilder) error {
	res, err := r.exec(ctx, u.Where(entsql.EQ("id", id)))
	if err != nil {
		r.log.Error("session update failed", "op", op, "session_id", id, "err", err)
		return dbErr(op, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return common.SessionNotFound(id)
	}
	return nil
}

func (r *sessionRepo) SetStatus(ctx context.Context, id string, status constants.SessionStatus, at time.Time) error {
	return r.update(ctx, "set session status", id, r.builder().Update(tableSessions).
		Set("status", string(status)).
		Set("updated_at", at))
}

func (r *sessionRepo) MarkCleansed(ctx context.Context, id string, at time.Time) error {
	return r.update(ctx, "mark session cleansed", id, r.builder().Update(tableSessions).
		Set("cleansed_at", at).
		Set("updated_at", at))
}

func (r *sessionRepo) MarkMaterialized(ctx context.Context, id string, templateID uuid.UUID, at time.Time) error {
	return r.update(ctx, "mark session materialized", id, r.builder().Update(tableSessions).
		Set("status", string(constants.SessionMaterialized)).
		Set("template_id", templateID).
		Set("materialized_at", at).
		Set("updated_at", at))
}

func (r *sessionRepo) List(ctx context.Context, limit int) ([]*entity.Session, error) {
	sel := r.selectSessions().OrderBy(entsql.Desc("updated_at"), "id")
	if limit > 0 {
		sel.Limit(limit)
	}
	rows, err := r.query(ctx, sel)
	if err != nil {
		return nil, dbErr("list sessions", err)
	}
	out, err := scanSessions(rows)
	return out, dbErr("list sessions", err)
}

func (r *sessionRepo) ListExpired(ctx context.Context, now time.Time) ([]string, error) {
	rows, err := r.query(ctx, r.builder().Select("id").
		From(r.table(tableSessions)).
		Where(entsql.And(entsql.NotNull("expires_at"), entsql.LT("expires_at", now))).
		OrderBy("id"))
	if err != nil {
		return nil, dbErr("list expired sessions", err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, dbErr("list expired sessions", err)
		}
		ids = append(ids, id)
	}
	return ids, dbErr("list expired sessions", rows.Err())
}

func (r *sessionRepo) Delete(ctx context.Context, id string) error {
	res, err := r.exec(ctx, r.builder().Delete(tableSessions).Where(entsql.EQ("id", id)))
	if err != nil {
		r.log.Error("session delete failed", "session_id", id, "err", err)
		return dbErr("delete session", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return common.SessionNotFound(id)
	}
	return nil
}

func scanSessions(rows *sql.Rows) ([]*entity.Session, error) {
	defer rows.Close()
	var out []*entity.Session
	for rows.Next() {
		var (
			s                                     entity.Session
			category, kind, status                string
			createdBy                             sql.NullString
			expiresAt, cleansedAt, materializedAt sql.NullTime
			templateID                            uuid.NullUUID
		)
		if err := rows.Scan(&s.ID, &category, &s.SourceFileName, &kind, &status, &createdBy,
			&s.CreatedAt, &s.UpdatedAt, &expiresAt, &cleansedAt, &materializedAt, &templateID); err != nil {
			return nil, err
		}
		s.Category = constants.Category(category)
		s.SourceKind = constants.SourceKind(kind)
		s.Status = constants.SessionStatus(status)
		s.CreatedBy = stringPtr(createdBy)
		s.ExpiresAt = timePtr(expiresAt)
		s.CleansedAt = timePtr(cleansedAt)
		s.MaterializedAt = timePtr(materializedAt)
		if templateID.Valid {
			id := templateID.UUID
			s.TemplateID = &id
		}
		out = append(out, &s)
	}
	return out, rows.Err()
}
