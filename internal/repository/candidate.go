package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/syllabus-templates/constants"
	"github.com/joseph-ayodele/syllabus-templates/internal/entity"
)

// insertBatch bounds rows per INSERT so bind parameters stay under driver limits.
const insertBatch = 200

type CandidateRepository interface {
	InsertMany(ctx context.Context, cs []*entity.Candidate) error
	// List returns the session's candidates ordered by (row, column).
	List(ctx context.Context, sessionID string, filter entity.CandidateFilter) ([]*entity.Candidate, error)
	// GetMany returns the candidates that exist among ids, in no particular order.
	GetMany(ctx context.Context, ids []uuid.UUID) ([]*entity.Candidate, error)
	UpdateTitle(ctx context.Context, id uuid.UUID, title string, cleansedAt time.Time) error
	Count(ctx context.Context, sessionID string) (int, error)
	// UngroupedIDs lists candidates of the session no grouping owns, in (row, column) order.
	UngroupedIDs(ctx context.Context, sessionID string) ([]uuid.UUID, error)
	DeleteBySession(ctx context.Context, sessionID string) (int64, error)
}

type candidateRepo struct {
	conn
	log *slog.Logger
}

var candidateColumns = []string{
	"id", "session_id", "source_file_name", "source_kind", "title_text", "raw_text", "role",
	"row_index", "column_index", "column_letter", "score", "features", "created_by",
	"created_at", "cleansed_at",
}

func (r *candidateRepo) InsertMany(ctx context.Context, cs []*entity.Candidate) error {
	for start := 0; start < len(cs); start += insertBatch {
		end := min(start+insertBatch, len(cs))
		ins := r.builder().Insert(tableCandidates).Columns(candidateColumns...)
		for _, c := range cs[start:end] {
			var features any
			if len(c.Features) > 0 {
				features = string(c.Features)
			}
			ins.Values(c.ID, c.SessionID, c.SourceFileName, string(c.SourceKind), c.TitleText, c.RawText,
				string(c.Role), c.Row, c.Column, c.ColumnLetter, c.Score, features,
				nullString(c.CreatedBy), c.CreatedAt, nullTime(c.CleansedAt))
		}
		if _, err := r.exec(ctx, ins); err != nil {
			r.log.Error("candidate insert failed", "session_id", cs[start].SessionID, "batch_start", start, "err", err)
			return dbErr("insert candidates", err)
		}
	}
	return nil
}

func (r *candidateRepo) ungroupedPredicate(sessionID string) *entsql.Predicate {
	owned := r.builder().Select("candidate_id").
		From(r.table(tableMembers)).
		Where(entsql.EQ("session_id", sessionID))
	return entsql.NotIn("id", owned)
}

func (r *candidateRepo) List(ctx context.Context, sessionID string, filter entity.CandidateFilter) ([]*entity.Candidate, error) {
	preds := []*entsql.Predicate{entsql.EQ("session_id", sessionID)}
	if len(filter.Roles) > 0 {
		roles := make([]any, len(filter.Roles))
		for i, role := range filter.Roles {
			roles[i] = string(role)
		}
		preds = append(preds, entsql.In("role", roles...))
	}
	if filter.MinScore != nil {
		preds = append(preds, entsql.GTE("score", *filter.MinScore))
	}
	if filter.UngroupedOnly {
		preds = append(preds, r.ungroupedPredicate(sessionID))
	}
	rows, err := r.query(ctx, r.builder().Select(candidateColumns...).
		From(r.table(tableCandidates)).
		Where(entsql.And(preds...)).
		OrderBy("row_index", "column_index"))
	if err != nil {
		return nil, dbErr("list candidates", err)
	}
	out, err := scanCandidates(rows)
	return out, dbErr("list candidates", err)
}

func (r *candidateRepo) GetMany(ctx context.Context, ids []uuid.UUID) ([]*entity.Candidate, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.query(ctx, r.builder().Select(candidateColumns...).
		From(r.table(tableCandidates)).
		Where(entsql.In("id", uuidArgs(ids)...)))
	if err != nil {
		return nil, dbErr("get candidates", err)
	}
	out, err := scanCandidates(rows)
	return out, dbErr("get candidates", err)
}

func (r *candidateRepo) UpdateTitle(ctx context.Context, id uuid.UUID, title string, cleansedAt time.Time) error {
	_, err := r.exec(ctx, r.builder().Update(tableCandidates).
		Set("title_text", title).
		Set("cleansed_at", cleansedAt).
		Where(entsql.EQ("id", id)))
	if err != nil {
		r.log.Error("candidate title update failed", "candidate_id", id, "err", err)
	}
	return dbErr("update candidate title", err)
}

func (r *candidateRepo) Count(ctx context.Context, sessionID string) (int, error) {
	rows, err := r.query(ctx, r.builder().Select(entsql.Count("*")).
		From(r.table(tableCandidates)).
		Where(entsql.EQ("session_id", sessionID)))
	if err != nil {
		return 0, dbErr("count candidates", err)
	}
	n, err := scanInt(rows)
	return n, dbErr("count candidates", err)
}

func (r *candidateRepo) UngroupedIDs(ctx context.Context, sessionID string) ([]uuid.UUID, error) {
	rows, err := r.query(ctx, r.builder().Select("id").
		From(r.table(tableCandidates)).
		Where(entsql.And(entsql.EQ("session_id", sessionID), r.ungroupedPredicate(sessionID))).
		OrderBy("row_index", "column_index"))
	if err != nil {
		return nil, dbErr("list ungrouped candidates", err)
	}
	ids, err := scanUUIDs(rows)
	return ids, dbErr("list ungrouped candidates", err)
}

func (r *candidateRepo) DeleteBySession(ctx context.Context, sessionID string) (int64, error) {
	res, err := r.exec(ctx, r.builder().Delete(tableCandidates).Where(entsql.EQ("session_id", sessionID)))
	if err != nil {
		r.log.Error("candidate delete failed", "session_id", sessionID, "err", err)
		return 0, dbErr("delete candidates", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func scanCandidates(rows *sql.Rows) ([]*entity.Candidate, error) {
	defer rows.Close()
	var out []*entity.Candidate
	for rows.Next() {
		var (
			c          entity.Candidate
			kind, role string
			features   []byte
			createdBy  sql.NullString
			cleansedAt sql.NullTime
		)
		if err := rows.Scan(&c.ID, &c.SessionID, &c.SourceFileName, &kind, &c.TitleText, &c.RawText,
			&role, &c.Row, &c.Column, &c.ColumnLetter, &c.Score, &features, &createdBy,
			&c.CreatedAt, &cleansedAt); err != nil {
			return nil, err
		}
		c.SourceKind = constants.SourceKind(kind)
		c.Role = constants.Role(role)
		if len(features) > 0 {
			c.Features = append([]byte(nil), features...)
		}
		c.CreatedBy = stringPtr(createdBy)
		c.CleansedAt = timePtr(cleansedAt)
		out = append(out, &c)
	}
	return out, rows.Err()
}

func scanUUIDs(rows *sql.Rows) ([]uuid.UUID, error) {
	defer rows.Close()
	var out []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func scanInt(rows *sql.Rows) (int, error) {
	defer rows.Close()
	var n int
	if rows.Next() {
		if err := rows.Scan(&n); err != nil {
			return 0, err
		}
	}
	return n, rows.Err()
}
