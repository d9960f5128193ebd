// Package materialize turns a fully grouped session into a persistent
// template of ordered sections and fields.
package materialize

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/syllabus-templates/constants"
	"github.com/joseph-ayodele/syllabus-templates/internal/common"
	"github.com/joseph-ayodele/syllabus-templates/internal/entity"
	"github.com/joseph-ayodele/syllabus-templates/internal/features"
	"github.com/joseph-ayodele/syllabus-templates/internal/repository"
	"github.com/joseph-ayodele/syllabus-templates/internal/session"
)

const (
	requiredScore = 70
	longLabel     = 80
)

type Service struct {
	logger    *slog.Logger
	store     *repository.Store
	extractor *features.Extractor
	now       func() time.Time

	// afterSection runs inside the transaction once per stored section.
	afterSection func(n int) error
}

type Option func(*Service)

// WithLexicon sets the keywords used to infer long text and list fields.
func WithLexicon(lex features.Lexicon) Option {
	return func(s *Service) { s.extractor = features.NewExtractor(lex) }
}

func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

func NewService(logger *slog.Logger, store *repository.Store, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		logger:    logger,
		store:     store,
		extractor: features.NewExtractor(features.DefaultLexicon()),
		now:       time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Options names the template. An empty Name uses the source file name without extension.
type Options struct {
	Name      string
	CreatedBy *string
}

// Materialize builds a new template from the session's groupings. Every
// candidate must be grouped. Each call creates an independent template; on
// failure nothing is stored.
func (s *Service) Materialize(ctx context.Context, sessionID string, opts Options) (*entity.Template, error) {
	now := s.now().UTC()
	var tmpl *entity.Template
	err := s.store.WithTx(ctx, func(tx *repository.Store) error {
		sess, err := session.LoadMutable(ctx, tx, sessionID)
		if err != nil {
			return err
		}
		total, err := tx.Candidates.Count(ctx, sessionID)
		if err != nil {
			return err
		}
		if total == 0 {
			return common.EmptySession(sessionID)
		}
		ungrouped, err := tx.Candidates.UngroupedIDs(ctx, sessionID)
		if err != nil {
			return err
		}
		if len(ungrouped) > 0 {
			return common.NewAppError(common.CodeUngroupedCandidates,
				fmt.Sprintf("session %q has %d ungrouped candidates", sessionID, len(ungrouped)),
				common.ErrUngroupedCandidates).WithIDs(ungrouped...)
		}

		groupings, err := tx.Groupings.List(ctx, sessionID)
		if err != nil {
			return err
		}
		cs, err := tx.Candidates.List(ctx, sessionID, entity.CandidateFilter{})
		if err != nil {
			return err
		}
		byID := make(map[uuid.UUID]*entity.Candidate, len(cs))
		for _, c := range cs {
			byID[c.ID] = c
		}

		tmpl = &entity.Template{
			ID:             uuid.Must(uuid.NewV7()),
			Name:           templateName(opts.Name, sess.SourceFileName),
			Category:       sess.Category,
			SourceFileName: sess.SourceFileName,
			CreatedBy:      actor(ctx, opts.CreatedBy),
			CreatedAt:      now,
		}
		if err := tx.Templates.InsertTemplate(ctx, tmpl); err != nil {
			return err
		}
		for i, g := range groupings {
			members := make([]*entity.Candidate, 0, len(g.CandidateIDs))
			for _, id := range g.CandidateIDs {
				if c, ok := byID[id]; ok {
					members = append(members, c)
				}
			}
			sec := s.buildSection(tmpl.ID, g, members)
			if err := store(ctx, tx, &sec); err != nil {
				return err
			}
			tmpl.Sections = append(tmpl.Sections, sec)
			if s.afterSection != nil {
				if err := s.afterSection(i + 1); err != nil {
					return err
				}
			}
		}
		return tx.Sessions.MarkMaterialized(ctx, sessionID, tmpl.ID, now)
	})
	if err != nil {
		s.logger.Warn("materialize.failed", "session_id", sessionID, "err", err)
		return nil, err
	}
	s.logger.Info("materialize.ok", "session_id", sessionID, "template_id", tmpl.ID, "sections", len(tmpl.Sections))
	return tmpl, nil
}

func store(ctx context.Context, tx *repository.Store, sec *entity.Section) error {
	if err := tx.Templates.InsertSection(ctx, sec); err != nil {
		return err
	}
	for i := range sec.Fields {
		if err := tx.Templates.InsertField(ctx, &sec.Fields[i]); err != nil {
			return err
		}
	}
	return nil
}

// buildSection maps one grouping to a section. A leading header or section
// title names the section; runs of same-row field candidates become one table field.
func (s *Service) buildSection(templateID uuid.UUID, g *entity.Grouping, members []*entity.Candidate) entity.Section {
	sec := entity.Section{
		ID:           uuid.Must(uuid.NewV7()),
		TemplateID:   templateID,
		Name:         g.TabName,
		Description:  g.Description,
		DisplayOrder: g.DisplayOrder,
	}
	if len(members) > 0 && (members[0].Role == constants.RoleHeader || members[0].Role == constants.RoleSectionTitle) {
		if name := strings.TrimSpace(members[0].TitleText); name != "" {
			sec.Name = name
		}
		members = members[1:]
	}

	rowFields := make(map[int]int)
	for _, c := range members {
		if c.Role == constants.RoleField {
			rowFields[c.Row]++
		}
	}
	emitted := make(map[int]bool)
	for _, c := range members {
		if c.Role == constants.RoleField && rowFields[c.Row] > 1 {
			if emitted[c.Row] {
				continue
			}
			emitted[c.Row] = true
			sec.Fields = append(sec.Fields, s.tableField(sec.ID, c.Row, members))
			continue
		}
		sec.Fields = append(sec.Fields, s.field(sec.ID, c))
	}
	for i := range sec.Fields {
		sec.Fields[i].DisplayOrder = i
	}
	return sec
}

func (s *Service) field(sectionID uuid.UUID, c *entity.Candidate) entity.Field {
	feat := s.features(c)
	return entity.Field{
		ID:        uuid.Must(uuid.NewV7()),
		SectionID: sectionID,
		Label:     label(c.TitleText),
		Kind:      kindOf(feat),
		Required:  feat.LabelColon || c.Score >= requiredScore,
	}
}

// features recomputes text features from the cleansed title and merges the
// formatting signals stored at extraction time, which the title alone lacks.
func (s *Service) features(c *entity.Candidate) features.Features {
	feat := s.extractor.Extract([]entity.Fragment{{Text: c.TitleText, Row: c.Row, Column: c.Column}})[0]
	if len(c.Features) == 0 {
		return feat
	}
	stored := features.FromSnapshot(c.Features)
	feat.Numbered = feat.Numbered || stored.Numbered
	feat.Bold = stored.Bold
	feat.HeadingLevel = stored.HeadingLevel
	feat.MergedSpan = stored.MergedSpan
	feat.ListKeywords = union(feat.ListKeywords, stored.ListKeywords)
	feat.LongTextKeywords = union(feat.LongTextKeywords, stored.LongTextKeywords)
	return feat
}

func union(a, b []string) []string {
	out := append([]string(nil), a...)
	for _, k := range b {
		if !slices.Contains(out, k) {
			out = append(out, k)
		}
	}
	return out
}

// tableField collapses the field candidates of row into one table field whose
// columns are their labels in column order.
func (s *Service) tableField(sectionID uuid.UUID, row int, members []*entity.Candidate) entity.Field {
	var cells []*entity.Candidate
	for _, c := range members {
		if c.Role == constants.RoleField && c.Row == row {
			cells = append(cells, c)
		}
	}
	sort.SliceStable(cells, func(i, j int) bool { return cells[i].Column < cells[j].Column })

	f := entity.Field{
		ID:        uuid.Must(uuid.NewV7()),
		SectionID: sectionID,
		Kind:      constants.FieldTable,
	}
	for _, c := range cells {
		f.Columns = append(f.Columns, label(c.TitleText))
		if c.Score >= requiredScore || strings.HasSuffix(strings.TrimSpace(c.TitleText), ":") {
			f.Required = true
		}
	}
	f.Label = strings.Join(f.Columns, " / ")
	return f
}

func kindOf(f features.Features) constants.FieldKind {
	switch {
	case f.Numbered || len(f.ListKeywords) > 0:
		return constants.FieldList
	case f.Length > longLabel || len(f.LongTextKeywords) > 0:
		return constants.FieldLongText
	default:
		return constants.FieldShortText
	}
}

// label drops the trailing colon of "Docente:" style labels.
func label(text string) string {
	t := strings.TrimSpace(text)
	t = strings.TrimRight(t, ":：")
	return strings.TrimSpace(t)
}

func templateName(name, sourceFile string) string {
	if n := strings.TrimSpace(name); n != "" {
		return n
	}
	base := filepath.Base(sourceFile)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// GetTemplate returns the template with its sections and fields.
func (s *Service) GetTemplate(ctx context.Context, id uuid.UUID) (*entity.Template, error) {
	return s.store.Templates.Get(ctx, id)
}

func (s *Service) ListTemplates(ctx context.Context, filter repository.TemplateFilter) ([]*entity.Template, error) {
	return s.store.Templates.List(ctx, filter)
}

// CloneTemplate copies a template tree under new ids. An empty name keeps the original one.
func (s *Service) CloneTemplate(ctx context.Context, id uuid.UUID, name string, createdBy *string) (*entity.Template, error) {
	var out *entity.Template
	err := s.store.WithTx(ctx, func(tx *repository.Store) error {
		src, err := tx.Templates.Get(ctx, id)
		if err != nil {
			return err
		}
		out = &entity.Template{
			ID:             uuid.Must(uuid.NewV7()),
			Name:           src.Name,
			Category:       src.Category,
			SourceFileName: src.SourceFileName,
			CreatedBy:      actor(ctx, createdBy),
			CreatedAt:      s.now().UTC(),
		}
		if n := strings.TrimSpace(name); n != "" {
			out.Name = n
		}
		if err := tx.Templates.InsertTemplate(ctx, out); err != nil {
			return err
		}
		for _, srcSec := range src.Sections {
			sec := srcSec
			sec.ID = uuid.Must(uuid.NewV7())
			sec.TemplateID = out.ID
			sec.Fields = make([]entity.Field, len(srcSec.Fields))
			for i, f := range srcSec.Fields {
				f.ID = uuid.Must(uuid.NewV7())
				f.SectionID = sec.ID
				f.Columns = append([]string(nil), f.Columns...)
				sec.Fields[i] = f
			}
			if err := store(ctx, tx, &sec); err != nil {
				return err
			}
			out.Sections = append(out.Sections, sec)
		}
		return nil
	})
	if err != nil {
		s.logger.Warn("template.clone.failed", "template_id", id, "err", err)
		return nil, err
	}
	s.logger.Info("template.clone.ok", "template_id", id, "clone_id", out.ID)
	return out, nil
}

func (s *Service) DeleteTemplate(ctx context.Context, id uuid.UUID) error {
	if err := s.store.Templates.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("template.delete.ok", "template_id", id)
	return nil
}

// actor prefers an explicit creator over the one carried by ctx.
func actor(ctx context.Context, explicit *string) *string {
	if explicit != nil {
		return explicit
	}
	return common.ActorFromContext(ctx)
}
