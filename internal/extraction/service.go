// Package extraction runs the full pass over one uploaded document:
// read fragments, compute features, classify, cleanse titles and persist the
// candidates under the caller's session.
package extraction

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/joseph-ayodele/syllabus-templates/constants"
	"github.com/joseph-ayodele/syllabus-templates/internal/classify"
	"github.com/joseph-ayodele/syllabus-templates/internal/cleanse"
	"github.com/joseph-ayodele/syllabus-templates/internal/common"
	"github.com/joseph-ayodele/syllabus-templates/internal/entity"
	"github.com/joseph-ayodele/syllabus-templates/internal/features"
	"github.com/joseph-ayodele/syllabus-templates/internal/reader"
	"github.com/joseph-ayodele/syllabus-templates/internal/session"
)

// Upload is one document handed in for extraction.
type Upload struct {
	SessionID string
	FileName  string
	// Kind is the declared structure; empty derives it from FileName.
	Kind      constants.SourceKind
	Content   []byte
	Category  constants.Category
	CreatedBy *string
}

// Summary reports what an extraction produced.
type Summary struct {
	SessionID  string                 `json:"session_id"`
	SourceKind constants.SourceKind   `json:"source_kind"`
	Candidates int                    `json:"candidates"`
	ByRole     map[constants.Role]int `json:"by_role"`
}

type Service struct {
	logger     *slog.Logger
	reader     *reader.Reader
	classifier *classify.Classifier
	extractor  *features.Extractor
	byCategory map[constants.Category]*features.Extractor
	sessions   *session.Service
}

type Option func(*Service)

func WithClassifier(c *classify.Classifier) Option { return func(s *Service) { s.classifier = c } }

// WithLexicon replaces the default keyword lexicon.
func WithLexicon(lex features.Lexicon) Option {
	return func(s *Service) { s.extractor = features.NewExtractor(lex) }
}

// WithCategoryLexicon uses lex for uploads tagged with category.
func WithCategoryLexicon(category constants.Category, lex features.Lexicon) Option {
	return func(s *Service) { s.byCategory[category] = features.NewExtractor(lex) }
}

func NewService(logger *slog.Logger, sessions *session.Service, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		logger:     logger,
		reader:     reader.New(logger),
		classifier: classify.Default(),
		extractor:  features.NewExtractor(features.DefaultLexicon()),
		byCategory: map[constants.Category]*features.Extractor{},
		sessions:   sessions,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Extract reads up.Content, classifies every fragment and replaces the
// session's candidates with the result. Running it again on the same upload
// leaves the session in the same state.
func (s *Service) Extract(ctx context.Context, up Upload) (*Summary, error) {
	if up.SessionID == "" {
		return nil, common.InvalidInput("session id is required")
	}
	declared := up.Kind
	if declared == "" {
		if k, ok := constants.SourceKindFromFilename(up.FileName); ok {
			declared = k
		}
	}
	if declared != "" && !declared.Valid() {
		return nil, common.UnsupportedFormat("unknown source kind %q", declared)
	}
	category := up.Category
	if category == "" {
		category = constants.CategoryGeneric
	}

	doc, err := s.reader.Read(ctx, up.Content, declared)
	if err != nil {
		s.logger.Error("extraction.read.failed", "session_id", up.SessionID, "file", up.FileName, "err", err)
		return nil, err
	}

	candidates, byRole := s.Classify(category, doc.Fragments)
	if len(candidates) == 0 {
		return nil, common.NewAppError(common.CodeEmptyDocument, "no fragment survived cleansing", common.ErrEmptyDocument)
	}
	meta := session.Meta{
		SessionID:      up.SessionID,
		Category:       category,
		SourceFileName: filepath.Base(up.FileName),
		SourceKind:     doc.Kind,
		CreatedBy:      actor(ctx, up.CreatedBy),
	}
	if err := s.sessions.PersistCandidates(ctx, meta, candidates); err != nil {
		return nil, err
	}

	s.logger.Info("extraction.ok",
		"session_id", up.SessionID,
		"kind", doc.Kind,
		"candidates", len(candidates),
		"headers", byRole[constants.RoleHeader],
		"sections", byRole[constants.RoleSectionTitle],
		"fields", byRole[constants.RoleField],
	)
	return &Summary{
		SessionID:  up.SessionID,
		SourceKind: doc.Kind,
		Candidates: len(candidates),
		ByRole:     byRole,
	}, nil
}

// Classify turns fragments into unsaved candidates: features, role, score and
// a cleansed title. Fragments whose title cleanses to nothing are dropped.
func (s *Service) Classify(category constants.Category, frags []entity.Fragment) ([]*entity.Candidate, map[constants.Role]int) {
	ex := s.extractor
	if e, ok := s.byCategory[category]; ok {
		ex = e
	}
	feats := ex.Extract(frags)

	byRole := map[constants.Role]int{
		constants.RoleHeader:       0,
		constants.RoleSectionTitle: 0,
		constants.RoleField:        0,
	}
	out := make([]*entity.Candidate, 0, len(frags))
	for i, f := range frags {
		title := cleanse.Cleanse(f.Text)
		if title == "" {
			continue
		}
		res := s.classifier.Classify(feats[i])
		letter := f.ColumnLetter
		if letter == "" {
			letter = reader.ColumnLetter(f.Column)
		}
		out = append(out, &entity.Candidate{
			SourceKind:   f.SourceKind,
			TitleText:    title,
			RawText:      f.Text,
			Role:         res.Role,
			Row:          f.Row,
			Column:       f.Column,
			ColumnLetter: letter,
			Score:        res.Score,
			Features:     feats[i].Snapshot(),
		})
		byRole[res.Role]++
	}
	return out, byRole
}

func actor(ctx context.Context, explicit *string) *string {
	if explicit != nil {
		return explicit
	}
	return common.ActorFromContext(ctx)
}
