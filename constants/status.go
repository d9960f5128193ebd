package constants

// SessionStatus is the lifecycle state of an extraction session.
type SessionStatus string

// Stable values (store these exact strings in DB).
const (
	SessionOpen         SessionStatus = "open"         // candidates extracted, grouping incomplete
	SessionGrouped      SessionStatus = "grouped"      // every candidate owned by a grouping
	SessionMaterialized SessionStatus = "materialized" // a template was produced
	SessionArchived     SessionStatus = "archived"     // terminal; candidates and groupings purged
)

// Mutable reports whether candidates and groupings of the session may still change.
func (s SessionStatus) Mutable() bool {
	return s != SessionArchived
}

// CanTransition reports whether moving from s to next is a legal lifecycle step.
func (s SessionStatus) CanTransition(next SessionStatus) bool {
	switch s {
	case SessionOpen:
		return next == SessionOpen || next == SessionGrouped || next == SessionArchived
	case SessionGrouped:
		return next == SessionOpen || next == SessionGrouped || next == SessionMaterialized || next == SessionArchived
	case SessionMaterialized:
		return next == SessionOpen || next == SessionGrouped || next == SessionMaterialized || next == SessionArchived
	default:
		return false
	}
}
