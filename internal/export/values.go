package export

import (
	"encoding/json"
	"errors"

	"github.com/joseph-ayodele/syllabus-templates/constants"
	"github.com/joseph-ayodele/syllabus-templates/internal/common"
	"github.com/joseph-ayodele/syllabus-templates/internal/entity"
	"github.com/joseph-ayodele/syllabus-templates/internal/schema"
)

// ValuesSchema builds the JSON Schema of a filled form: an object keyed by
// section id, each an object keyed by field id. Table fields hold an array of
// rows keyed by column name; list fields an array of strings.
func ValuesSchema(t *entity.Template) map[string]any {
	sections := map[string]any{}
	for _, sec := range t.Sections {
		props := map[string]any{}
		required := []any{}
		for _, f := range sec.Fields {
			props[f.ID.String()] = fieldSchema(f)
			if f.Required {
				required = append(required, f.ID.String())
			}
		}
		secSchema := map[string]any{
			"type":                 "object",
			"title":                sec.Name,
			"properties":           props,
			"additionalProperties": false,
		}
		if len(required) > 0 {
			secSchema["required"] = required
		}
		sections[sec.ID.String()] = secSchema
	}
	return map[string]any{
		"$schema":              "https://json-schema.org/draft/2020-12/schema",
		"title":                t.Name,
		"type":                 "object",
		"properties":           sections,
		"additionalProperties": false,
	}
}

func fieldSchema(f entity.Field) map[string]any {
	switch f.Kind {
	case constants.FieldTable:
		cols := map[string]any{}
		for _, c := range f.Columns {
			cols[c] = map[string]any{"type": "string"}
		}
		out := map[string]any{
			"type":  "array",
			"title": f.Label,
			"items": map[string]any{
				"type":                 "object",
				"properties":           cols,
				"additionalProperties": false,
			},
		}
		if f.Required {
			out["minItems"] = 1
		}
		return out
	case constants.FieldList:
		out := map[string]any{
			"type":  "array",
			"title": f.Label,
			"items": map[string]any{"type": "string"},
		}
		if f.Required {
			out["minItems"] = 1
		}
		return out
	default:
		out := map[string]any{"type": "string", "title": f.Label}
		if f.Required {
			out["minLength"] = 1
		}
		return out
	}
}

// ValidateValues checks a filled form document against the template.
func ValidateValues(t *entity.Template, data []byte) error {
	if !json.Valid(data) {
		return common.InvalidInput("values are not valid JSON")
	}
	if err := schema.ValidateJSONAgainstSchema(ValuesSchema(t), data); err != nil {
		return common.NewAppError(common.CodeInvalidInput, "values do not match template "+t.ID.String(),
			errors.Join(common.ErrInvalidInput, common.ErrValidation, err))
	}
	return nil
}
