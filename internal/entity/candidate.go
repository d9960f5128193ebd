package entity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/joseph-ayodele/syllabus-templates/constants"
)

// Candidate is a classified fragment persisted under an extraction session.
type Candidate struct {
	ID             uuid.UUID            `json:"id"`
	SessionID      string               `json:"session_id"`
	SourceFileName string               `json:"source_file_name"`
	SourceKind     constants.SourceKind `json:"source_kind"`
	TitleText      string               `json:"title_text"`
	RawText        string               `json:"raw_text"`
	Role           constants.Role       `json:"role"`
	Row            int                  `json:"row"`
	Column         int                  `json:"column"`
	ColumnLetter   string               `json:"column_letter"`
	Score          int                  `json:"score"`
	Features       json.RawMessage      `json:"features,omitempty"`
	CreatedBy      *string              `json:"created_by,omitempty"`
	CreatedAt      time.Time            `json:"created_at"`
	CleansedAt     *time.Time           `json:"cleansed_at,omitempty"`
}

// CandidateFilter narrows ListCandidates. Zero value returns everything.
type CandidateFilter struct {
	Roles         []constants.Role
	MinScore      *int
	UngroupedOnly bool
}
