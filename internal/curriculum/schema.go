package curriculum

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// skillSchema constrains skill documents before they enter the registry.
// The code format is hierarchical: LEVEL.DOMAIN.SUBDOMAIN.N.
const skillSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["code", "name", "level", "domain"],
	"properties": {
		"code": {
			"type": "string",
			"pattern": "^[A-Za-z0-9]+(\\.[A-Za-z0-9]+)+$"
		},
		"name": {"type": "string", "minLength": 1},
		"level": {"type": "string", "minLength": 1},
		"domain": {"type": "string", "minLength": 1},
		"subdomain": {"type": "string"},
		"prerequisites": {
			"type": "array",
			"items": {"type": "string", "minLength": 1}
		},
		"qualitative_leap": {"type": "boolean"}
	}
}`

var compiledSkillSchema = gojsonschema.NewStringLoader(skillSchema)

// validateSkillDocument checks a decoded skill document against the
// schema and returns all violations joined into one error.
func validateSkillDocument(doc map[string]any) error {
	result, err := gojsonschema.Validate(compiledSkillSchema, gojsonschema.NewGoLoader(doc))
	if err != nil {
		return fmt.Errorf("schema validation: %w", err)
	}
	if result.Valid() {
		return nil
	}

	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return fmt.Errorf("invalid skill document: %s", strings.Join(msgs, "; "))
}
