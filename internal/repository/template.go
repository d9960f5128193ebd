package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/syllabus-templates/constants"
	"github.com/joseph-ayodele/syllabus-templates/internal/common"
	"github.com/joseph-ayodele/syllabus-templates/internal/entity"
)

// TemplateFilter narrows List. Zero value returns every template.
type TemplateFilter struct {
	Category constants.Category
	Limit    int
}

type TemplateRepository interface {
	InsertTemplate(ctx context.Context, t *entity.Template) error
	InsertSection(ctx context.Context, s *entity.Section) error
	InsertField(ctx context.Context, f *entity.Field) error
	// Get returns the template with sections and fields in display order.
	Get(ctx context.Context, id uuid.UUID) (*entity.Template, error)
	// List returns template headers, newest first, without sections.
	List(ctx context.Context, filter TemplateFilter) ([]*entity.Template, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type templateRepo struct {
	conn
	log *slog.Logger
}

var (
	templateColumns = []string{"id", "name", "category", "source_file_name", "created_by", "created_at"}
	sectionColumns  = []string{"id", "template_id", "name", "description", "display_order"}
	fieldColumns    = []string{"id", "section_id", "label", "field_kind", "required", "display_order", "columns", "placeholder"}
)

func (r *templateRepo) InsertTemplate(ctx context.Context, t *entity.Template) error {
	_, err := r.exec(ctx, r.builder().Insert(tableTemplates).
		Columns(templateColumns...).
		Values(t.ID, t.Name, string(t.Category), t.SourceFileName, nullString(t.CreatedBy), t.CreatedAt))
	if err != nil {
		r.log.Error("template insert failed", "template_id", t.ID, "err", err)
	}
	return dbErr("insert template", err)
}

func (r *templateRepo) InsertSection(ctx context.Context, s *entity.Section) error {
	_, err := r.exec(ctx, r.builder().Insert(tableSections).
		Columns(sectionColumns...).
		Values(s.ID, s.TemplateID, s.Name, nullString(s.Description), s.DisplayOrder))
	if err != nil {
		if IsDuplicateOrder(err) {
			return common.NewAppError(common.CodeDuplicateOrder, "section display order", common.ErrDuplicateOrder)
		}
		r.log.Error("template section insert failed", "template_id", s.TemplateID, "err", err)
	}
	return dbErr("insert template section", err)
}

func (r *templateRepo) InsertField(ctx context.Context, f *entity.Field) error {
	var columns any
	if len(f.Columns) > 0 {
		b, err := json.Marshal(f.Columns)
		if err != nil {
			return common.InvalidInput("field columns: %v", err)
		}
		columns = string(b)
	}
	_, err := r.exec(ctx, r.builder().Insert(tableFields).
		Columns(fieldColumns...).
		Values(f.ID, f.SectionID, f.Label, string(f.Kind), f.Required, f.DisplayOrder, columns, nullString(f.Placeholder)))
	if err != nil {
		if IsDuplicateOrder(err) {
			return common.NewAppError(common.CodeDuplicateOrder, "field display order", common.ErrDuplicateOrder)
		}
		r.log.Error("template field insert failed", "section_id", f.SectionID, "err", err)
	}
	return dbErr("insert template field", err)
}

func (r *templateRepo) Get(ctx context.Context, id uuid.UUID) (*entity.Template, error) {
	rows, err := r.query(ctx, r.builder().Select(templateColumns...).
		From(r.table(tableTemplates)).
		Where(entsql.EQ("id", id)))
	if err != nil {
		return nil, dbErr("get template", err)
	}
	ts, err := scanTemplates(rows)
	if err != nil {
		return nil, dbErr("get template", err)
	}
	if len(ts) == 0 {
		return nil, common.NewAppError(common.CodeTemplateNotFound, "template "+id.String(), common.ErrTemplateNotFound)
	}
	t := ts[0]

	rows, err = r.query(ctx, r.builder().Select(sectionColumns...).
		From(r.table(tableSections)).
		Where(entsql.EQ("template_id", id)).
		OrderBy("display_order"))
	if err != nil {
		return nil, dbErr("get template sections", err)
	}
	sections, err := scanSections(rows)
	if err != nil {
		return nil, dbErr("get template sections", err)
	}
	if len(sections) == 0 {
		return t, nil
	}

	index := make(map[uuid.UUID]int, len(sections))
	sectionIDs := make([]uuid.UUID, len(sections))
	for i, s := range sections {
		index[s.ID] = i
		sectionIDs[i] = s.ID
	}
	rows, err = r.query(ctx, r.builder().Select(fieldColumns...).
		From(r.table(tableFields)).
		Where(entsql.In("section_id", uuidArgs(sectionIDs)...)).
		OrderBy("section_id", "display_order"))
	if err != nil {
		return nil, dbErr("get template fields", err)
	}
	fields, err := scanFields(rows)
	if err != nil {
		return nil, dbErr("get template fields", err)
	}
	for _, f := range fields {
		i := index[f.SectionID]
		sections[i].Fields = append(sections[i].Fields, f)
	}
	t.Sections = sections
	return t, nil
}

func (r *templateRepo) List(ctx context.Context, filter TemplateFilter) ([]*entity.Template, error) {
	sel := r.builder().Select(templateColumns...).
		From(r.table(tableTemplates)).
		OrderBy(entsql.Desc("created_at"), "id")
	if filter.Category != "" {
		sel.Where(entsql.EQ("category", string(filter.Category)))
	}
	if filter.Limit > 0 {
		sel.Limit(filter.Limit)
	}
	rows, err := r.query(ctx, sel)
	if err != nil {
		return nil, dbErr("list templates", err)
	}
	out, err := scanTemplates(rows)
	return out, dbErr("list templates", err)
}

func (r *templateRepo) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.exec(ctx, r.builder().Delete(tableTemplates).Where(entsql.EQ("id", id)))
	if err != nil {
		r.log.Error("template delete failed", "template_id", id, "err", err)
		return dbErr("delete template", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return common.NewAppError(common.CodeTemplateNotFound, "template "+id.String(), common.ErrTemplateNotFound)
	}
	return nil
}

func scanTemplates(rows *sql.Rows) ([]*entity.Template, error) {
	defer rows.Close()
	var out []*entity.Template
	for rows.Next() {
		var (
			t         entity.Template
			category  string
			createdBy sql.NullString
		)
		if err := rows.Scan(&t.ID, &t.Name, &category, &t.SourceFileName, &createdBy, &t.CreatedAt); err != nil {
			return nil, err
		}
		t.Category = constants.Category(category)
		t.CreatedBy = stringPtr(createdBy)
		out = append(out, &t)
	}
	return out, rows.Err()
}

func scanSections(rows *sql.Rows) ([]entity.Section, error) {
	defer rows.Close()
	var out []entity.Section
	for rows.Next() {
		var (
			s           entity.Section
			description sql.NullString
		)
		if err := rows.Scan(&s.ID, &s.TemplateID, &s.Name, &description, &s.DisplayOrder); err != nil {
			return nil, err
		}
		s.Description = stringPtr(description)
		out = append(out, s)
	}
	return out, rows.Err()
}

func scanFields(rows *sql.Rows) ([]entity.Field, error) {
	defer rows.Close()
	var out []entity.Field
	for rows.Next() {
		var (
			f           entity.Field
			kind        string
			columns     []byte
			placeholder sql.NullString
		)
		if err := rows.Scan(&f.ID, &f.SectionID, &f.Label, &kind, &f.Required, &f.DisplayOrder, &columns, &placeholder); err != nil {
			return nil, err
		}
		f.Kind = constants.FieldKind(kind)
		if len(columns) > 0 {
			if err := json.Unmarshal(columns, &f.Columns); err != nil {
				return nil, err
			}
		}
		f.Placeholder = stringPtr(placeholder)
		out = append(out, f)
	}
	return out, rows.Err()
}
