package llm

import "github.com/cloneofkoha/form-filler/constants"

// BuildSynthesisJSONSchema returns a JSON-Schema (draft 2020-12 subset) as a
// generic map. We pass it to the model as a structured-output constraint and
// also use it locally to validate the response before trusting it.
func BuildSynthesisJSONSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"value": map[string]any{
				"type":      "string",
				"maxLength": constants.MaxSynthesizedValueLen,
			},
			"abstain": map[string]any{"type": "boolean"},
			"confidence": map[string]any{
				"type":    "number",
				"minimum": 0.0,
				"maximum": 1.0,
			},
		},
		"required": []string{"abstain"},
	}
}
