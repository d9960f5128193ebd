package constants

import (
	"strings"
)

// Category tags the kind of academic document a session was extracted from.
// Syllabus and program documents share one session/candidate/grouping model.
type Category string

const (
	CategorySyllabus Category = "syllabus"
	CategoryProgram  Category = "program"
	CategoryGeneric  Category = "generic"
)

var allCategories = []Category{
	CategorySyllabus,
	CategoryProgram,
	CategoryGeneric,
}

func CategoriesAsStrings() []string {
	result := make([]string, len(allCategories))
	for i, cat := range allCategories {
		result[i] = string(cat)
	}
	return result
}

// CanonicalCategory maps free-form input (including the Spanish names used by
// the upload forms) to a Category. Unknown input yields CategoryGeneric, false.
func CanonicalCategory(input string) (Category, bool) {
	if input == "" {
		return CategoryGeneric, false
	}

	normalized := strings.ToLower(strings.TrimSpace(input))

	synonyms := map[string]Category{
		"programa analitico":  CategorySyllabus,
		"programa analítico":  CategorySyllabus,
		"programa sintetico":  CategorySyllabus,
		"programa sintético":  CategorySyllabus,
		"silabo":              CategorySyllabus,
		"sílabo":              CategorySyllabus,
		"programa":            CategoryProgram,
		"plan de estudios":    CategoryProgram,
		"programa de carrera": CategoryProgram,
	}

	if cat, ok := synonyms[normalized]; ok {
		return cat, true
	}

	for _, cat := range allCategories {
		if normalized == string(cat) {
			return cat, true
		}
	}

	return CategoryGeneric, false
}
