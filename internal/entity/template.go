package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/joseph-ayodele/syllabus-templates/constants"
)

// Template is the reusable structure materialized from a finished grouping.
type Template struct {
	ID             uuid.UUID          `json:"id"`
	Name           string             `json:"name"`
	Category       constants.Category `json:"category"`
	SourceFileName string             `json:"source_file_name"`
	CreatedBy      *string            `json:"created_by,omitempty"`
	CreatedAt      time.Time          `json:"created_at"`
	Sections       []Section          `json:"sections,omitempty"`
}

// Section is one ordered part of a template.
type Section struct {
	ID           uuid.UUID `json:"id"`
	TemplateID   uuid.UUID `json:"template_id"`
	Name         string    `json:"name"`
	Description  *string   `json:"description,omitempty"`
	DisplayOrder int       `json:"display_order"`
	Fields       []Field   `json:"fields,omitempty"`
}

// Field is one input of a section. Columns is set only for table fields.
type Field struct {
	ID           uuid.UUID           `json:"id"`
	SectionID    uuid.UUID           `json:"section_id"`
	Label        string              `json:"label"`
	Kind         constants.FieldKind `json:"field_kind"`
	Required     bool                `json:"required"`
	DisplayOrder int                 `json:"display_order"`
	Columns      []string            `json:"columns,omitempty"`
	Placeholder  *string             `json:"placeholder,omitempty"`
}

// FieldAddress locates one stored value of a program built from a template.
// RowIndex is only meaningful for table fields.
type FieldAddress struct {
	SectionID uuid.UUID `json:"section_id"`
	FieldID   uuid.UUID `json:"field_id"`
	RowIndex  *int      `json:"row_index,omitempty"`
}

// Addresses lists the value addresses of a template for the data-entry side.
// Table fields yield one address without a row index; rows are appended by the caller.
func (t *Template) Addresses() []FieldAddress {
	var out []FieldAddress
	for _, s := range t.Sections {
		for _, f := range s.Fields {
			out = append(out, FieldAddress{SectionID: s.ID, FieldID: f.ID})
		}
	}
	return out
}
