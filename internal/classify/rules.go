package classify

import (
	"math"
	"sort"

	"github.com/joseph-ayodele/syllabus-templates/constants"
	"github.com/joseph-ayodele/syllabus-templates/internal/features"
)

// Signal names a measurable property of a feature snapshot.
type Signal string

const (
	SignalTopUppercase   Signal = "top_uppercase"
	SignalHeaderKeyword  Signal = "header_keyword"
	SignalMergedBanner   Signal = "merged_banner"
	SignalHeadingLevel   Signal = "heading_level"
	SignalBoldShort      Signal = "bold_short"
	SignalShortText      Signal = "short_text"
	SignalSectionKeyword Signal = "section_keyword"
	SignalLabelColon     Signal = "label_colon"
	SignalInlineLabel    Signal = "inline_label"
	SignalFirstColAlone  Signal = "first_column_alone"
	SignalFieldKeyword   Signal = "field_keyword"
	SignalRowSiblings    Signal = "row_siblings"
	SignalLongText       Signal = "long_text"
	SignalListItem       Signal = "list_item"
)

// strengthFunc maps a snapshot to a signal strength in [0, 1].
type strengthFunc func(f features.Features) float64

var signals = map[Signal]strengthFunc{
	SignalTopUppercase: func(f features.Features) float64 {
		if hasColon(f) {
			return 0
		}
		top := clamp(float64(25-f.PositionPct) / 25)
		upper := clamp((f.UpperRatio - 0.5) / 0.5)
		return top * upper
	},
	SignalHeaderKeyword: func(f features.Features) float64 {
		if hasColon(f) {
			return 0
		}
		return boolStrength(len(f.HeaderKeywords) > 0)
	},
	SignalMergedBanner: func(f features.Features) float64 {
		if hasColon(f) || f.MergedSpan < 2 {
			return 0
		}
		return clamp(float64(f.MergedSpan-1) / 3)
	},
	SignalHeadingLevel: func(f features.Features) float64 {
		return boolStrength(f.HeadingLevel > 0)
	},
	SignalBoldShort: func(f features.Features) float64 {
		return boolStrength(f.Bold && !hasColon(f) && f.WordCount <= 8)
	},
	SignalShortText: func(f features.Features) float64 {
		return boolStrength(!hasColon(f) && f.WordCount > 0 && f.WordCount <= 6 && f.Length <= 60)
	},
	SignalSectionKeyword: func(f features.Features) float64 {
		return boolStrength(!hasColon(f) && len(f.SectionKeywords) > 0)
	},
	SignalLabelColon: func(f features.Features) float64 {
		return boolStrength(f.LabelColon)
	},
	SignalInlineLabel: func(f features.Features) float64 {
		return boolStrength(f.InlineLabel)
	},
	SignalFirstColAlone: func(f features.Features) float64 {
		return boolStrength(f.FirstColumnAlone)
	},
	SignalFieldKeyword: func(f features.Features) float64 {
		return boolStrength(len(f.FieldKeywords) > 0)
	},
	SignalRowSiblings: func(f features.Features) float64 {
		return clamp(float64(f.RowSiblings) / 3)
	},
	SignalLongText: func(f features.Features) float64 {
		return clamp(float64(f.Length-60) / 120)
	},
	SignalListItem: func(f features.Features) float64 {
		return boolStrength(f.Numbered)
	},
}

// KnownSignals returns every signal name, sorted.
func KnownSignals() []string {
	out := make([]string, 0, len(signals))
	for s := range signals {
		out = append(out, string(s))
	}
	sort.Strings(out)
	return out
}

// Rule is one row of the classification table: when Signal is present it adds
// round(Weight × strength) to Role's total.
type Rule struct {
	Name   string         `yaml:"name" json:"name"`
	Signal Signal         `yaml:"signal" json:"signal"`
	Role   constants.Role `yaml:"role" json:"role"`
	Weight int            `yaml:"weight" json:"weight"`
}

// Contribution returns the points r adds for f.
func (r Rule) Contribution(f features.Features) int {
	fn, ok := signals[r.Signal]
	if !ok || r.Weight <= 0 {
		return 0
	}
	return int(math.Round(float64(r.Weight) * fn(f)))
}

// DefaultRules is the built-in table. Order is informational; ties between
// roles are settled by constants.RolePriority, not by rule order.
func DefaultRules() []Rule {
	return []Rule{
		{Name: "header.top_uppercase", Signal: SignalTopUppercase, Role: constants.RoleHeader, Weight: 60},
		{Name: "header.keyword", Signal: SignalHeaderKeyword, Role: constants.RoleHeader, Weight: 25},
		{Name: "header.merged_banner", Signal: SignalMergedBanner, Role: constants.RoleHeader, Weight: 15},

		{Name: "section.heading_level", Signal: SignalHeadingLevel, Role: constants.RoleSectionTitle, Weight: 55},
		{Name: "section.bold_short", Signal: SignalBoldShort, Role: constants.RoleSectionTitle, Weight: 35},
		{Name: "section.keyword", Signal: SignalSectionKeyword, Role: constants.RoleSectionTitle, Weight: 25},
		{Name: "section.short_text", Signal: SignalShortText, Role: constants.RoleSectionTitle, Weight: 10},

		{Name: "field.label_colon", Signal: SignalLabelColon, Role: constants.RoleField, Weight: 60},
		{Name: "field.inline_label", Signal: SignalInlineLabel, Role: constants.RoleField, Weight: 35},
		{Name: "field.row_siblings", Signal: SignalRowSiblings, Role: constants.RoleField, Weight: 30},
		{Name: "field.keyword", Signal: SignalFieldKeyword, Role: constants.RoleField, Weight: 25},
		{Name: "field.first_column_alone", Signal: SignalFirstColAlone, Role: constants.RoleField, Weight: 20},
		{Name: "field.long_text", Signal: SignalLongText, Role: constants.RoleField, Weight: 20},
		{Name: "field.list_item", Signal: SignalListItem, Role: constants.RoleField, Weight: 20},
	}
}

func hasColon(f features.Features) bool {
	return f.LabelColon || f.InlineLabel
}

func boolStrength(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
