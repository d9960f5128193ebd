package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	entsql "entgo.io/ent/dialect/sql"
	"entgo.io/ent/dialect/sql/sqlgraph"

	"github.com/joseph-ayodele/syllabus-templates/internal/common"
)

// Querier is satisfied by both *sql.DB and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// conn is what every repository runs statements through.
type conn struct {
	q       Querier
	dialect string
}

func (c conn) builder() *entsql.DialectBuilder {
	return entsql.Dialect(c.dialect)
}

func (c conn) table(name string) *entsql.SelectTable {
	return c.builder().Table(name)
}

func (c conn) exec(ctx context.Context, b entsql.Querier) (sql.Result, error) {
	query, args := b.Query()
	return c.q.ExecContext(ctx, query, args...)
}

func (c conn) query(ctx context.Context, b entsql.Querier) (*sql.Rows, error) {
	query, args := b.Query()
	return c.q.QueryContext(ctx, query, args...)
}

// Store groups the repositories over one connection or transaction.
type Store struct {
	db   *DB
	conn conn
	tx   *sql.Tx
	log  *slog.Logger

	Sessions   SessionRepository
	Candidates CandidateRepository
	Groupings  GroupingRepository
	Templates  TemplateRepository
}

func NewStore(db *DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return bind(db, conn{q: db.SQL, dialect: db.Dialect}, nil, logger)
}

func bind(db *DB, c conn, tx *sql.Tx, logger *slog.Logger) *Store {
	return &Store{
		db:         db,
		conn:       c,
		tx:         tx,
		log:        logger,
		Sessions:   &sessionRepo{conn: c, log: logger},
		Candidates: &candidateRepo{conn: c, log: logger},
		Groupings:  &groupingRepo{conn: c, log: logger},
		Templates:  &templateRepo{conn: c, log: logger},
	}
}

func (s *Store) Dialect() string { return s.db.Dialect }

// WithTx runs fn with a Store bound to a single transaction, committing when
// fn returns nil and rolling back otherwise. Inside fn only the given Store may
// be used. Nested calls reuse the outer transaction.
func (s *Store) WithTx(ctx context.Context, fn func(tx *Store) error) (err error) {
	if s.tx != nil {
		return fn(s)
	}
	tx, err := s.db.SQL.BeginTx(ctx, nil)
	if err != nil {
		return common.NewAppError(common.CodeDatabase, "begin transaction", errors.Join(common.ErrDatabase, err))
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				s.log.Error("transaction rollback failed", "error", rbErr)
			}
		}
	}()

	if err = fn(bind(s.db, conn{q: tx, dialect: s.db.Dialect}, tx, s.log)); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return common.NewAppError(common.CodeDatabase, "commit transaction", errors.Join(common.ErrDatabase, err))
	}
	return nil
}

// IsUniqueViolation reports whether err is a unique constraint failure on any dialect.
func IsUniqueViolation(err error) bool {
	return err != nil && sqlgraph.IsUniqueConstraintError(err)
}

// uniqueOn reports whether err is a unique failure naming the given index or column.
func uniqueOn(err error, names ...string) bool {
	if !IsUniqueViolation(err) {
		return false
	}
	msg := err.Error()
	for _, n := range names {
		if strings.Contains(msg, n) {
			return true
		}
	}
	return false
}

// IsDuplicateOrder reports a clash on a per-parent display_order index.
func IsDuplicateOrder(err error) bool {
	return uniqueOn(err, "display_order")
}

// IsMembershipConflict reports a second owner for a candidate.
func IsMembershipConflict(err error) bool {
	return uniqueOn(err, "grouping_members_pkey", "grouping_members.candidate_id")
}

// IsPositionConflict reports two members written at the same position of one
// grouping, which happens when concurrent appends read the same last position.
func IsPositionConflict(err error) bool {
	return uniqueOn(err, "grouping_members_grouping_id_position", "grouping_members.position")
}

func dbErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var ae *common.AppError
	if errors.As(err, &ae) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return common.NewAppError(common.CodeDatabase, op, errors.Join(common.ErrDatabase, err))
}
