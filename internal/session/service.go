// Package session owns the extraction session lifecycle: persisting the
// classified candidates of a run, listing and re-cleansing them, archiving and
// purging.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/syllabus-templates/constants"
	"github.com/joseph-ayodele/syllabus-templates/internal/cleanse"
	"github.com/joseph-ayodele/syllabus-templates/internal/common"
	"github.com/joseph-ayodele/syllabus-templates/internal/entity"
	"github.com/joseph-ayodele/syllabus-templates/internal/repository"
)

// Service implements the session store operations over a repository.Store.
type Service struct {
	logger *slog.Logger
	store  *repository.Store
	ttl    time.Duration
	now    func() time.Time
}

type Option func(*Service)

// WithTTL sets how long a session lives after its last extraction. Zero keeps sessions forever.
func WithTTL(ttl time.Duration) Option { return func(s *Service) { s.ttl = ttl } }

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

func NewService(logger *slog.Logger, store *repository.Store, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{logger: logger, store: store, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Service) clock() time.Time { return s.now().UTC() }

// Meta describes the session a candidate set belongs to.
type Meta struct {
	SessionID      string
	Category       constants.Category
	SourceFileName string
	SourceKind     constants.SourceKind
	CreatedBy      *string
}

// PersistCandidates replaces the session's candidates with cs in one
// transaction. Existing groupings of the session are dropped and the session
// is (re)opened. Repeating the call with the same input yields the same state;
// a failed call leaves the previous state untouched.
func (s *Service) PersistCandidates(ctx context.Context, meta Meta, cs []*entity.Candidate) error {
	if meta.SessionID == "" {
		return common.InvalidInput("session id is required")
	}
	if !meta.SourceKind.Valid() {
		return common.InvalidInput("unknown source kind %q", meta.SourceKind)
	}
	if meta.Category == "" {
		meta.Category = constants.CategoryGeneric
	}
	if err := validateCandidates(cs); err != nil {
		return err
	}

	now := s.clock()
	err := s.store.WithTx(ctx, func(tx *repository.Store) error {
		sess, err := tx.Sessions.Get(ctx, meta.SessionID)
		switch {
		case err == nil:
			if !sess.Status.Mutable() {
				return invalidTransition(sess.ID, sess.Status, constants.SessionOpen)
			}
		case common.CodeOf(err) == common.CodeSessionNotFound:
			sess = &entity.Session{ID: meta.SessionID, CreatedAt: now}
		default:
			return err
		}

		sess.Category = meta.Category
		sess.SourceFileName = meta.SourceFileName
		sess.SourceKind = meta.SourceKind
		sess.Status = constants.SessionOpen
		if meta.CreatedBy != nil {
			sess.CreatedBy = meta.CreatedBy
		}
		sess.UpdatedAt = now
		sess.ExpiresAt = nil
		if s.ttl > 0 {
			exp := now.Add(s.ttl)
			sess.ExpiresAt = &exp
		}
		sess.CleansedAt = nil
		sess.MaterializedAt = nil
		sess.TemplateID = nil
		if err := tx.Sessions.Save(ctx, sess); err != nil {
			return err
		}

		if _, err := tx.Groupings.DeleteBySession(ctx, meta.SessionID); err != nil {
			return err
		}
		if _, err := tx.Candidates.DeleteBySession(ctx, meta.SessionID); err != nil {
			return err
		}

		for _, c := range cs {
			if c.ID == uuid.Nil {
				c.ID = uuid.Must(uuid.NewV7())
			}
			c.SessionID = meta.SessionID
			c.SourceFileName = meta.SourceFileName
			c.SourceKind = meta.SourceKind
			if c.CreatedBy == nil {
				c.CreatedBy = meta.CreatedBy
			}
			c.CreatedAt = now
		}
		return tx.Candidates.InsertMany(ctx, cs)
	})
	if err != nil {
		s.logger.Error("session.persist.failed", "session_id", meta.SessionID, "err", err)
		return err
	}
	s.logger.Info("session.persist.ok", "session_id", meta.SessionID, "candidates", len(cs))
	return nil
}

func validateCandidates(cs []*entity.Candidate) error {
	seen := make(map[[2]int]struct{}, len(cs))
	for i, c := range cs {
		if c == nil {
			return common.InvalidInput("candidate %d is nil", i)
		}
		if !c.Role.Valid() {
			return common.InvalidInput("candidate %d: unknown role %q", i, c.Role)
		}
		if c.Score < 0 || c.Score > 100 {
			return common.InvalidInput("candidate %d: score %d out of [0,100]", i, c.Score)
		}
		if c.Row < 1 || c.Column < 1 {
			return common.InvalidInput("candidate %d: position (%d,%d) must be 1-based", i, c.Row, c.Column)
		}
		key := [2]int{c.Row, c.Column}
		if _, dup := seen[key]; dup {
			return common.InvalidInput("candidate %d: duplicate position (%d,%d)", i, c.Row, c.Column)
		}
		seen[key] = struct{}{}
	}
	return nil
}

// GetSession returns the session or SessionNotFound.
func (s *Service) GetSession(ctx context.Context, id string) (*entity.Session, error) {
	return s.store.Sessions.Get(ctx, id)
}

func (s *Service) ListSessions(ctx context.Context, limit int) ([]*entity.Session, error) {
	return s.store.Sessions.List(ctx, limit)
}

// ListCandidates returns the session's candidates ordered by (row, column).
func (s *Service) ListCandidates(ctx context.Context, sessionID string, filter entity.CandidateFilter) ([]*entity.Candidate, error) {
	if _, err := s.store.Sessions.Get(ctx, sessionID); err != nil {
		return nil, err
	}
	for _, r := range filter.Roles {
		if !r.Valid() {
			return nil, common.InvalidInput("unknown role %q", r)
		}
	}
	return s.store.Candidates.List(ctx, sessionID, filter)
}

// Recleanse re-applies title normalization to every candidate of the session
// and stamps cleansed_at. It returns how many titles changed.
func (s *Service) Recleanse(ctx context.Context, sessionID string) (int, error) {
	now := s.clock()
	changed := 0
	err := s.store.WithTx(ctx, func(tx *repository.Store) error {
		if _, err := LoadMutable(ctx, tx, sessionID); err != nil {
			return err
		}
		cs, err := tx.Candidates.List(ctx, sessionID, entity.CandidateFilter{})
		if err != nil {
			return err
		}
		if len(cs) == 0 {
			return common.EmptySession(sessionID)
		}
		for _, c := range cs {
			if cleanse.CleanseCandidate(c) {
				changed++
			}
			if err := tx.Candidates.UpdateTitle(ctx, c.ID, c.TitleText, now); err != nil {
				return err
			}
		}
		return tx.Sessions.MarkCleansed(ctx, sessionID, now)
	})
	if err != nil {
		s.logger.Error("session.recleanse.failed", "session_id", sessionID, "err", err)
		return 0, err
	}
	s.logger.Info("session.recleanse.ok", "session_id", sessionID, "changed", changed)
	return changed, nil
}

// Archive moves the session to archived and drops its candidates and groupings.
func (s *Service) Archive(ctx context.Context, sessionID string) error {
	now := s.clock()
	err := s.store.WithTx(ctx, func(tx *repository.Store) error {
		sess, err := tx.Sessions.Get(ctx, sessionID)
		if err != nil {
			return err
		}
		if !sess.Status.CanTransition(constants.SessionArchived) {
			return invalidTransition(sessionID, sess.Status, constants.SessionArchived)
		}
		if _, err := tx.Groupings.DeleteBySession(ctx, sessionID); err != nil {
			return err
		}
		if _, err := tx.Candidates.DeleteBySession(ctx, sessionID); err != nil {
			return err
		}
		return tx.Sessions.SetStatus(ctx, sessionID, constants.SessionArchived, now)
	})
	if err != nil {
		s.logger.Error("session.archive.failed", "session_id", sessionID, "err", err)
		return err
	}
	s.logger.Info("session.archive.ok", "session_id", sessionID)
	return nil
}

// PurgeExpired deletes every session whose expires_at is before now and
// returns their ids. Templates are never touched.
func (s *Service) PurgeExpired(ctx context.Context, now time.Time) ([]string, error) {
	var ids []string
	err := s.store.WithTx(ctx, func(tx *repository.Store) error {
		var err error
		ids, err = tx.Sessions.ListExpired(ctx, now.UTC())
		if err != nil {
			return err
		}
		for _, id := range ids {
			if err := tx.Sessions.Delete(ctx, id); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.logger.Error("session.purge.failed", "err", err)
		return nil, err
	}
	s.logger.Info("session.purge.ok", "purged", len(ids))
	return ids, nil
}

// LoadMutable returns the session when it exists and still accepts changes.
func LoadMutable(ctx context.Context, tx *repository.Store, sessionID string) (*entity.Session, error) {
	sess, err := tx.Sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !sess.Status.Mutable() {
		return nil, common.NewAppError(common.CodeInvalidTransition,
			fmt.Sprintf("session %q is %s", sessionID, sess.Status), common.ErrInvalidTransition)
	}
	return sess, nil
}

// RefreshStatus sets the session to grouped when every candidate is owned by a
// grouping and to open otherwise. Callers run it after every grouping change.
func RefreshStatus(ctx context.Context, tx *repository.Store, sess *entity.Session, at time.Time) (constants.SessionStatus, error) {
	total, err := tx.Candidates.Count(ctx, sess.ID)
	if err != nil {
		return "", err
	}
	owned, err := tx.Groupings.CountMembers(ctx, sess.ID)
	if err != nil {
		return "", err
	}
	next := constants.SessionOpen
	if total > 0 && owned == total {
		next = constants.SessionGrouped
	}
	if next == sess.Status {
		return next, nil
	}
	if !sess.Status.CanTransition(next) {
		return "", invalidTransition(sess.ID, sess.Status, next)
	}
	if err := tx.Sessions.SetStatus(ctx, sess.ID, next, at); err != nil {
		return "", err
	}
	sess.Status = next
	return next, nil
}

func invalidTransition(id string, from, to constants.SessionStatus) error {
	return common.NewAppError(common.CodeInvalidTransition,
		fmt.Sprintf("session %q cannot move from %s to %s", id, from, to), common.ErrInvalidTransition)
}
