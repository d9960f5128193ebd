package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/joseph-ayodele/syllabus-templates/constants"
)

// Session is one extraction run over one uploaded document.
type Session struct {
	ID             string                  `json:"id"`
	Category       constants.Category      `json:"category"`
	SourceFileName string                  `json:"source_file_name"`
	SourceKind     constants.SourceKind    `json:"source_kind"`
	Status         constants.SessionStatus `json:"status"`
	CreatedBy      *string                 `json:"created_by,omitempty"`
	CreatedAt      time.Time               `json:"created_at"`
	UpdatedAt      time.Time               `json:"updated_at"`
	ExpiresAt      *time.Time              `json:"expires_at,omitempty"`
	CleansedAt     *time.Time              `json:"cleansed_at,omitempty"`
	MaterializedAt *time.Time              `json:"materialized_at,omitempty"`
	TemplateID     *uuid.UUID              `json:"template_id,omitempty"`
}
