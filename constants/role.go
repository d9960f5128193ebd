package constants

// Role is the part a text fragment plays in a template document.
type Role string

const (
	RoleHeader       Role = "header"
	RoleSectionTitle Role = "section_title"
	RoleField        Role = "field"
)

// Roles lists every role in tie-break priority order (highest first).
var Roles = []Role{RoleField, RoleSectionTitle, RoleHeader}

// RolePriority returns the tie-break rank of a role; higher wins.
func RolePriority(r Role) int {
	switch r {
	case RoleField:
		return 3
	case RoleSectionTitle:
		return 2
	case RoleHeader:
		return 1
	default:
		return 0
	}
}

func (r Role) Valid() bool {
	return RolePriority(r) > 0
}

// FieldKind is the input shape inferred for a materialized field.
type FieldKind string

const (
	FieldShortText FieldKind = "short_text"
	FieldLongText  FieldKind = "long_text"
	FieldTable     FieldKind = "table"
	FieldList      FieldKind = "list"
)

var FieldKinds = []string{string(FieldShortText), string(FieldLongText), string(FieldTable), string(FieldList)}
