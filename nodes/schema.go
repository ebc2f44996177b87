package nodes

import "github.com/deepresearchhq/engine/llm/schema"

// queriesSchemaDoc constrains generate_query's structured output: a
// non-empty list of non-empty query strings. Duplicates are not rejected
// here; the SearchQuery reducer in package state drops them.
var queriesSchemaDoc = map[string]any{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type":    "object",
	"properties": map[string]any{
		"queries": map[string]any{
			"type":     "array",
			"items":    map[string]any{"type": "string", "minLength": 1},
			"minItems": 1,
		},
	},
	"required": []any{"queries"},
}

// reflectionSchemaDoc constrains reflection's structured verdict.
var reflectionSchemaDoc = map[string]any{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type":    "object",
	"properties": map[string]any{
		"is_sufficient": map[string]any{"type": "boolean"},
		"knowledge_gap": map[string]any{"type": "string"},
		"follow_up_queries": map[string]any{
			"type":  "array",
			"items": map[string]any{"type": "string"},
		},
	},
	"required": []any{"is_sufficient", "knowledge_gap", "follow_up_queries"},
}

// Compile builds and caches the JSON schemas generate_query and reflection
// validate against. The caller runs it once after constructing Deps and
// before handing Deps to driver.New.
func (d *Deps) Compile() error {
	qs, err := schema.Compile("generate_query", queriesSchemaDoc)
	if err != nil {
		return err
	}
	rs, err := schema.Compile("reflection", reflectionSchemaDoc)
	if err != nil {
		return err
	}
	d.queriesSchema = qs
	d.reflectSchema = rs
	return nil
}
