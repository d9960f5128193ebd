// Package grouping lets reviewers assemble a session's candidates into
// ordered tabs. Every mutation runs in one transaction and changes nothing
// when it fails.
package grouping

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/syllabus-templates/constants"
	"github.com/joseph-ayodele/syllabus-templates/internal/common"
	"github.com/joseph-ayodele/syllabus-templates/internal/entity"
	"github.com/joseph-ayodele/syllabus-templates/internal/repository"
	"github.com/joseph-ayodele/syllabus-templates/internal/session"
)

const (
	maxTabName     = 120
	maxDescription = 2000
	maxIcon        = 64
)

type Service struct {
	logger *slog.Logger
	store  *repository.Store
	now    func() time.Time
}

func NewService(logger *slog.Logger, store *repository.Store) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger, store: store, now: time.Now}
}

func (s *Service) clock() time.Time { return s.now().UTC() }

// txAttempts bounds how often a mutation that lost a member position race is rerun.
const txAttempts = 3

func (s *Service) withTx(ctx context.Context, fn func(tx *repository.Store) error) error {
	var err error
	for attempt := 1; attempt <= txAttempts; attempt++ {
		if err = s.store.WithTx(ctx, fn); !errors.Is(err, common.ErrConcurrentUpdate) {
			return err
		}
		s.logger.Warn("grouping.tx.retry", "attempt", attempt, "err", err)
	}
	return err
}

// CreateInput describes a new grouping. CandidateIDs keep the given order.
type CreateInput struct {
	TabName      string
	Description  *string
	DisplayOrder int
	Color        string
	Icon         string
	CandidateIDs []uuid.UUID
}

func (in CreateInput) validate() error {
	v := common.NewValidator().
		Field("tab_name", in.TabName, common.Required, common.MaxLength(maxTabName)).
		Field("description", in.Description, common.MaxLength(maxDescription)).
		Field("display_order", in.DisplayOrder, common.NonNegative).
		Field("color", in.Color, common.HexColor).
		Field("icon", in.Icon, common.MaxLength(maxIcon))
	return common.ValidateAndReturnError(v)
}

// Create stores a grouping owning in.CandidateIDs. It fails with DuplicateOrder
// when the session already uses in.DisplayOrder, CandidateAlreadyGrouped when
// another grouping owns one of the ids and CrossSessionReference when an id is
// not a candidate of the session.
func (s *Service) Create(ctx context.Context, sessionID string, in CreateInput) (*entity.Grouping, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	if err := distinct(in.CandidateIDs); err != nil {
		return nil, err
	}

	now := s.clock()
	g := &entity.Grouping{
		ID:           uuid.Must(uuid.NewV7()),
		SessionID:    sessionID,
		TabName:      in.TabName,
		Description:  in.Description,
		DisplayOrder: in.DisplayOrder,
		Color:        in.Color,
		Icon:         in.Icon,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	var out *entity.Grouping
	err := s.withTx(ctx, func(tx *repository.Store) error {
		sess, err := session.LoadMutable(ctx, tx, sessionID)
		if err != nil {
			return err
		}
		existing, err := tx.Groupings.List(ctx, sessionID)
		if err != nil {
			return err
		}
		for _, e := range existing {
			if e.DisplayOrder == in.DisplayOrder {
				return common.DuplicateOrder(sessionID, in.DisplayOrder)
			}
		}
		if err := claimable(ctx, tx, sessionID, in.CandidateIDs); err != nil {
			return err
		}
		if err := tx.Groupings.Insert(ctx, g); err != nil {
			return err
		}
		if err := tx.Groupings.AddMembers(ctx, g, in.CandidateIDs); err != nil {
			return err
		}
		if _, err := session.RefreshStatus(ctx, tx, sess, now); err != nil {
			return err
		}
		out, err = tx.Groupings.Get(ctx, g.ID)
		return err
	})
	if err != nil {
		s.logger.Warn("grouping.create.failed", "session_id", sessionID, "display_order", in.DisplayOrder, "err", err)
		return nil, err
	}
	s.logger.Info("grouping.create.ok", "session_id", sessionID, "grouping_id", g.ID, "candidates", len(in.CandidateIDs))
	return out, nil
}

// MoveCandidates transfers ids from one grouping to another of the same
// session. Either every id moves or none does. Moved ids are appended to the
// target in the given order.
func (s *Service) MoveCandidates(ctx context.Context, fromID, toID uuid.UUID, ids []uuid.UUID) (*entity.Grouping, *entity.Grouping, error) {
	if len(ids) == 0 {
		return nil, nil, common.InvalidInput("no candidates to move")
	}
	if fromID == toID {
		return nil, nil, common.InvalidInput("source and target grouping are the same")
	}
	if err := distinct(ids); err != nil {
		return nil, nil, err
	}

	now := s.clock()
	var from, to *entity.Grouping
	err := s.withTx(ctx, func(tx *repository.Store) error {
		var err error
		if from, err = tx.Groupings.Get(ctx, fromID); err != nil {
			return err
		}
		if to, err = tx.Groupings.Get(ctx, toID); err != nil {
			return err
		}
		if from.SessionID != to.SessionID {
			return common.CrossSessionReference(from.SessionID, ids...)
		}
		sess, err := session.LoadMutable(ctx, tx, from.SessionID)
		if err != nil {
			return err
		}
		if err := ownedBy(ctx, tx, from, ids); err != nil {
			return err
		}

		if _, err := tx.Groupings.RemoveMembers(ctx, from.ID, ids); err != nil {
			return err
		}
		if err := tx.Groupings.AddMembers(ctx, to, ids); err != nil {
			return err
		}
		if err := tx.Groupings.Touch(ctx, from.ID, now); err != nil {
			return err
		}
		if err := tx.Groupings.Touch(ctx, to.ID, now); err != nil {
			return err
		}
		if _, err := session.RefreshStatus(ctx, tx, sess, now); err != nil {
			return err
		}
		if from, err = tx.Groupings.Get(ctx, fromID); err != nil {
			return err
		}
		to, err = tx.Groupings.Get(ctx, toID)
		return err
	})
	if err != nil {
		s.logger.Warn("grouping.move.failed", "from", fromID, "to", toID, "count", len(ids), "err", err)
		return nil, nil, err
	}
	s.logger.Info("grouping.move.ok", "from", fromID, "to", toID, "count", len(ids))
	return from, to, nil
}

// ReorderGroupings sets each grouping's display order to its index in
// ordering, which must list every grouping of the session exactly once.
func (s *Service) ReorderGroupings(ctx context.Context, sessionID string, ordering []uuid.UUID) ([]*entity.Grouping, error) {
	now := s.clock()
	var out []*entity.Grouping
	err := s.withTx(ctx, func(tx *repository.Store) error {
		if _, err := session.LoadMutable(ctx, tx, sessionID); err != nil {
			return err
		}
		existing, err := tx.Groupings.List(ctx, sessionID)
		if err != nil {
			return err
		}
		if err := completeOrdering(existing, ordering); err != nil {
			return err
		}
		// Park every grouping on a negative order first so no intermediate
		// state collides with the unique (session_id, display_order) index.
		for i, id := range ordering {
			if err := tx.Groupings.SetDisplayOrder(ctx, id, -(i + 1), now); err != nil {
				return err
			}
		}
		for i, id := range ordering {
			if err := tx.Groupings.SetDisplayOrder(ctx, id, i, now); err != nil {
				return err
			}
		}
		out, err = tx.Groupings.List(ctx, sessionID)
		return err
	})
	if err != nil {
		s.logger.Warn("grouping.reorder.failed", "session_id", sessionID, "err", err)
		return nil, err
	}
	s.logger.Info("grouping.reorder.ok", "session_id", sessionID, "groupings", len(ordering))
	return out, nil
}

func completeOrdering(existing []*entity.Grouping, ordering []uuid.UUID) error {
	known := make(map[uuid.UUID]bool, len(existing))
	for _, g := range existing {
		known[g.ID] = false
	}
	var offending []uuid.UUID
	for _, id := range ordering {
		seen, ok := known[id]
		if !ok || seen {
			offending = append(offending, id)
			continue
		}
		known[id] = true
	}
	for _, g := range existing {
		if !known[g.ID] {
			offending = append(offending, g.ID)
		}
	}
	if len(offending) > 0 || len(ordering) != len(existing) {
		return common.NewAppError(common.CodeIncompleteOrdering,
			fmt.Sprintf("ordering lists %d ids, session has %d groupings", len(ordering), len(existing)),
			common.ErrIncompleteOrdering).WithIDs(offending...)
	}
	return nil
}

// ListGroupings returns the session's groupings by display order.
func (s *Service) ListGroupings(ctx context.Context, sessionID string) ([]*entity.Grouping, error) {
	if _, err := s.store.Sessions.Get(ctx, sessionID); err != nil {
		return nil, err
	}
	return s.store.Groupings.List(ctx, sessionID)
}

func (s *Service) GetGrouping(ctx context.Context, id uuid.UUID) (*entity.Grouping, error) {
	return s.store.Groupings.Get(ctx, id)
}

// UpdateInput changes grouping attributes; nil leaves a value as is.
type UpdateInput struct {
	TabName     *string
	Description *string
	Color       *string
	Icon        *string
}

func (s *Service) UpdateGrouping(ctx context.Context, id uuid.UUID, in UpdateInput) (*entity.Grouping, error) {
	v := common.NewValidator()
	if in.TabName != nil {
		v.Field("tab_name", *in.TabName, common.Required, common.MaxLength(maxTabName))
	}
	if in.Description != nil {
		v.Field("description", *in.Description, common.MaxLength(maxDescription))
	}
	if in.Color != nil {
		v.Field("color", *in.Color, common.HexColor)
	}
	if in.Icon != nil {
		v.Field("icon", *in.Icon, common.MaxLength(maxIcon))
	}
	if err := common.ValidateAndReturnError(v); err != nil {
		return nil, err
	}

	var out *entity.Grouping
	err := s.withTx(ctx, func(tx *repository.Store) error {
		g, err := tx.Groupings.Get(ctx, id)
		if err != nil {
			return err
		}
		if _, err := session.LoadMutable(ctx, tx, g.SessionID); err != nil {
			return err
		}
		if in.TabName != nil {
			g.TabName = *in.TabName
		}
		if in.Description != nil {
			g.Description = in.Description
			if *in.Description == "" {
				g.Description = nil
			}
		}
		if in.Color != nil {
			g.Color = *in.Color
		}
		if in.Icon != nil {
			g.Icon = *in.Icon
		}
		g.UpdatedAt = s.clock()
		if err := tx.Groupings.UpdateAttributes(ctx, g); err != nil {
			return err
		}
		out = g
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("grouping.update.ok", "grouping_id", id)
	return out, nil
}

// DeleteGrouping removes the grouping and releases its candidates.
func (s *Service) DeleteGrouping(ctx context.Context, id uuid.UUID) error {
	now := s.clock()
	err := s.withTx(ctx, func(tx *repository.Store) error {
		g, err := tx.Groupings.Get(ctx, id)
		if err != nil {
			return err
		}
		sess, err := session.LoadMutable(ctx, tx, g.SessionID)
		if err != nil {
			return err
		}
		if err := tx.Groupings.Delete(ctx, id); err != nil {
			return err
		}
		_, err = session.RefreshStatus(ctx, tx, sess, now)
		return err
	})
	if err != nil {
		s.logger.Warn("grouping.delete.failed", "grouping_id", id, "err", err)
		return err
	}
	s.logger.Info("grouping.delete.ok", "grouping_id", id)
	return nil
}

// AddCandidates appends ungrouped candidates of the grouping's session.
func (s *Service) AddCandidates(ctx context.Context, groupingID uuid.UUID, ids []uuid.UUID) (*entity.Grouping, error) {
	if len(ids) == 0 {
		return nil, common.InvalidInput("no candidates to add")
	}
	if err := distinct(ids); err != nil {
		return nil, err
	}
	now := s.clock()
	var out *entity.Grouping
	err := s.withTx(ctx, func(tx *repository.Store) error {
		g, err := tx.Groupings.Get(ctx, groupingID)
		if err != nil {
			return err
		}
		sess, err := session.LoadMutable(ctx, tx, g.SessionID)
		if err != nil {
			return err
		}
		if err := claimable(ctx, tx, g.SessionID, ids); err != nil {
			return err
		}
		if err := tx.Groupings.AddMembers(ctx, g, ids); err != nil {
			return err
		}
		if err := tx.Groupings.Touch(ctx, g.ID, now); err != nil {
			return err
		}
		if _, err := session.RefreshStatus(ctx, tx, sess, now); err != nil {
			return err
		}
		out, err = tx.Groupings.Get(ctx, groupingID)
		return err
	})
	if err != nil {
		s.logger.Warn("grouping.add.failed", "grouping_id", groupingID, "err", err)
		return nil, err
	}
	return out, nil
}

// RemoveCandidates releases ids from the grouping; every id must be a member.
func (s *Service) RemoveCandidates(ctx context.Context, groupingID uuid.UUID, ids []uuid.UUID) (*entity.Grouping, error) {
	if len(ids) == 0 {
		return nil, common.InvalidInput("no candidates to remove")
	}
	if err := distinct(ids); err != nil {
		return nil, err
	}
	now := s.clock()
	var out *entity.Grouping
	err := s.withTx(ctx, func(tx *repository.Store) error {
		g, err := tx.Groupings.Get(ctx, groupingID)
		if err != nil {
			return err
		}
		sess, err := session.LoadMutable(ctx, tx, g.SessionID)
		if err != nil {
			return err
		}
		if err := ownedBy(ctx, tx, g, ids); err != nil {
			return err
		}
		if _, err := tx.Groupings.RemoveMembers(ctx, g.ID, ids); err != nil {
			return err
		}
		if err := tx.Groupings.Touch(ctx, g.ID, now); err != nil {
			return err
		}
		if _, err := session.RefreshStatus(ctx, tx, sess, now); err != nil {
			return err
		}
		out, err = tx.Groupings.Get(ctx, groupingID)
		return err
	})
	if err != nil {
		s.logger.Warn("grouping.remove.failed", "grouping_id", groupingID, "err", err)
		return nil, err
	}
	return out, nil
}

// claimable checks that every id is a candidate of sessionID owned by no grouping.
func claimable(ctx context.Context, tx *repository.Store, sessionID string, ids []uuid.UUID) error {
	if err := inSession(ctx, tx, sessionID, ids); err != nil {
		return err
	}
	owners, err := tx.Groupings.Owners(ctx, ids)
	if err != nil {
		return err
	}
	var owned []uuid.UUID
	for _, id := range ids {
		if _, ok := owners[id]; ok {
			owned = append(owned, id)
		}
	}
	if len(owned) > 0 {
		return common.CandidateAlreadyGrouped(owned...)
	}
	return nil
}

// ownedBy checks that g owns every id.
func ownedBy(ctx context.Context, tx *repository.Store, g *entity.Grouping, ids []uuid.UUID) error {
	if err := inSession(ctx, tx, g.SessionID, ids); err != nil {
		return err
	}
	owners, err := tx.Groupings.Owners(ctx, ids)
	if err != nil {
		return err
	}
	var foreign []uuid.UUID
	for _, id := range ids {
		if owners[id] != g.ID {
			foreign = append(foreign, id)
		}
	}
	if len(foreign) > 0 {
		return common.NewAppError(common.CodeInvalidInput,
			fmt.Sprintf("candidates are not members of grouping %s", g.ID), common.ErrInvalidInput).WithIDs(foreign...)
	}
	return nil
}

// inSession fails with CrossSessionReference for ids that are unknown or belong elsewhere.
func inSession(ctx context.Context, tx *repository.Store, sessionID string, ids []uuid.UUID) error {
	cs, err := tx.Candidates.GetMany(ctx, ids)
	if err != nil {
		return err
	}
	local := make(map[uuid.UUID]bool, len(cs))
	for _, c := range cs {
		if c.SessionID == sessionID {
			local[c.ID] = true
		}
	}
	var bad []uuid.UUID
	for _, id := range ids {
		if !local[id] {
			bad = append(bad, id)
		}
	}
	if len(bad) > 0 {
		return common.CrossSessionReference(sessionID, bad...)
	}
	return nil
}

func distinct(ids []uuid.UUID) error {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	var dups []uuid.UUID
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			dups = append(dups, id)
			continue
		}
		seen[id] = struct{}{}
	}
	if len(dups) > 0 {
		return common.InvalidInput("candidate ids repeat").WithIDs(dups...)
	}
	return nil
}

const (
	autoIcon    = "folder"
	leadingName = "General"
)

var autoPalette = []string{"#4f46e5", "#0891b2", "#16a34a", "#ca8a04", "#dc2626", "#9333ea"}

// AutoGroup suggests groupings for the session's ungrouped candidates. Each
// header or section title opens a tab named after it and the candidates that
// follow join that tab. Candidates before the first title go to a "General"
// tab. New tabs are ordered after the existing ones.
func (s *Service) AutoGroup(ctx context.Context, sessionID string) ([]*entity.Grouping, error) {
	now := s.clock()
	var created []*entity.Grouping
	err := s.withTx(ctx, func(tx *repository.Store) error {
		sess, err := session.LoadMutable(ctx, tx, sessionID)
		if err != nil {
			return err
		}
		existing, err := tx.Groupings.List(ctx, sessionID)
		if err != nil {
			return err
		}
		next := 0
		for _, g := range existing {
			if g.DisplayOrder >= next {
				next = g.DisplayOrder + 1
			}
		}
		cs, err := tx.Candidates.List(ctx, sessionID, entity.CandidateFilter{UngroupedOnly: true})
		if err != nil {
			return err
		}
		if len(cs) == 0 {
			return nil
		}

		var plan []*entity.Grouping
		open := func(name string) *entity.Grouping {
			g := &entity.Grouping{
				ID:           uuid.Must(uuid.NewV7()),
				SessionID:    sessionID,
				TabName:      tabName(name),
				DisplayOrder: next + len(plan),
				Color:        autoPalette[(next+len(plan))%len(autoPalette)],
				Icon:         autoIcon,
				CreatedAt:    now,
				UpdatedAt:    now,
			}
			plan = append(plan, g)
			return g
		}
		var cur *entity.Grouping
		for _, c := range cs {
			if c.Role == constants.RoleHeader || c.Role == constants.RoleSectionTitle {
				cur = open(c.TitleText)
			} else if cur == nil {
				cur = open(leadingName)
			}
			cur.CandidateIDs = append(cur.CandidateIDs, c.ID)
		}

		for _, g := range plan {
			if err := tx.Groupings.Insert(ctx, g); err != nil {
				return err
			}
			if err := tx.Groupings.AddMembers(ctx, g, g.CandidateIDs); err != nil {
				return err
			}
		}
		if _, err := session.RefreshStatus(ctx, tx, sess, now); err != nil {
			return err
		}
		created = plan
		return nil
	})
	if err != nil {
		s.logger.Warn("grouping.auto.failed", "session_id", sessionID, "err", err)
		return nil, err
	}
	s.logger.Info("grouping.auto.ok", "session_id", sessionID, "groupings", len(created))
	return created, nil
}

func tabName(title string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		return leadingName
	}
	r := []rune(title)
	if len(r) > maxTabName {
		return string(r[:maxTabName])
	}
	return title
}
