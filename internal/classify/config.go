package classify

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/joseph-ayodele/syllabus-templates/constants"
	"github.com/joseph-ayodele/syllabus-templates/internal/features"
	"github.com/joseph-ayodele/syllabus-templates/internal/schema"
)

// RuleSet is the on-disk override of the classifier rules and lexicon.
// Omitted parts fall back to the built-in defaults. Categories replaces the
// lexicon for sessions tagged with that category.
type RuleSet struct {
	Rules      []Rule                                  `yaml:"rules"`
	Lexicon    *features.Lexicon                       `yaml:"lexicon"`
	Categories map[constants.Category]features.Lexicon `yaml:"categories"`
}

// BuildRuleSetSchema returns the JSON Schema rule files are validated against.
func BuildRuleSetSchema() map[string]any {
	keywords := map[string]any{
		"type":  "array",
		"items": map[string]any{"type": "string", "minLength": 1},
	}
	lexicon := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"header":        keywords,
			"section_title": keywords,
			"field":         keywords,
			"long_text":     keywords,
			"list":          keywords,
		},
	}
	roles := make([]string, 0, len(constants.Roles))
	for _, r := range constants.Roles {
		roles = append(roles, string(r))
	}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"rules": map[string]any{
				"type":     "array",
				"minItems": 1,
				"items": map[string]any{
					"type":                 "object",
					"additionalProperties": false,
					"required":             []string{"name", "signal", "role", "weight"},
					"properties": map[string]any{
						"name":   map[string]any{"type": "string", "minLength": 1},
						"signal": map[string]any{"type": "string", "enum": KnownSignals()},
						"role":   map[string]any{"type": "string", "enum": roles},
						"weight": map[string]any{"type": "integer", "minimum": MinScore, "maximum": MaxScore},
					},
				},
			},
			"lexicon": lexicon,
			"categories": map[string]any{
				"type":                 "object",
				"propertyNames":        map[string]any{"enum": constants.CategoriesAsStrings()},
				"additionalProperties": lexicon,
			},
		},
	}
}

// ParseRuleSet validates and decodes a YAML rule file.
func ParseRuleSet(data []byte) (*RuleSet, error) {
	if err := schema.ValidateYAMLAgainstSchema(BuildRuleSetSchema(), data); err != nil {
		return nil, fmt.Errorf("rules file: %w", err)
	}
	var rs RuleSet
	if err := yaml.Unmarshal(data, &rs); err != nil {
		return nil, fmt.Errorf("rules file: decode: %w", err)
	}
	return &rs, nil
}

// LoadRuleSet reads path; an empty path yields the defaults.
func LoadRuleSet(path string) (*RuleSet, error) {
	if path == "" {
		return &RuleSet{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}
	return ParseRuleSet(data)
}

// Build returns the classifier and lexicon described by rs, defaults filling gaps.
func (rs *RuleSet) Build() (*Classifier, features.Lexicon, error) {
	rules := rs.Rules
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	c, err := New(rules)
	if err != nil {
		return nil, features.Lexicon{}, err
	}
	lex := features.DefaultLexicon()
	if rs.Lexicon != nil {
		lex = *rs.Lexicon
	}
	return c, lex, nil
}

// CategoryLexicons returns the per-category lexicon overrides.
func (rs *RuleSet) CategoryLexicons() map[constants.Category]features.Lexicon {
	out := make(map[constants.Category]features.Lexicon, len(rs.Categories))
	for c, lex := range rs.Categories {
		out[c] = lex
	}
	return out
}
