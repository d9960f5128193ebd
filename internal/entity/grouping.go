package entity

import (
	"time"

	"github.com/google/uuid"
)

// Grouping is a reviewer-curated tab over a session's candidates.
// CandidateIDs is ordered; each id is owned by at most one grouping.
type Grouping struct {
	ID           uuid.UUID   `json:"id"`
	SessionID    string      `json:"session_id"`
	TabName      string      `json:"tab_name"`
	Description  *string     `json:"description,omitempty"`
	DisplayOrder int         `json:"display_order"`
	Color        string      `json:"color"`
	Icon         string      `json:"icon"`
	CandidateIDs []uuid.UUID `json:"candidate_ids"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}
