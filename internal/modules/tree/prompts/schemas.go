package prompts

import (
	"sort"

	"github.com/yungbote/coursetree-backend/internal/domain/tree"
)

// Schemas follow the strict json_schema rules: every property is required and
// additionalProperties is false. Optional semantics are expressed as empty strings.

func objectSchema(props map[string]any) map[string]any {
	required := make([]string, 0, len(props))
	for k := range props {
		required = append(required, k)
	}
	sort.Strings(required)
	return map[string]any{
		"type":                 "object",
		"properties":           props,
		"required":             required,
		"additionalProperties": false,
	}
}

func stringSchema() map[string]any { return map[string]any{"type": "string"} }

func EnumSchema(values ...string) map[string]any {
	return map[string]any{"type": "string", "enum": values}
}

func StyleSchema() map[string]any {
	return objectSchema(map[string]any{
		"title":       stringSchema(),
		"description": stringSchema(),
		"example":     stringSchema(),
	})
}

// ClassificationResultSchema is the LevelClassifier output shape.
func ClassificationResultSchema() map[string]any {
	return objectSchema(map[string]any{
		"goal":     stringSchema(),
		"content":  stringSchema(),
		"category": EnumSchema(tree.CategoryNames()...),
	})
}

func ExampleResultSchema() map[string]any {
	return objectSchema(map[string]any{
		"subject":     stringSchema(),
		"description": stringSchema(),
	})
}

// StyleListResultSchema is shared by ModelStyles, WebStyles synthesis and StyleMerger.
func StyleListResultSchema() map[string]any {
	return objectSchema(map[string]any{
		"styles": map[string]any{"type": "array", "items": StyleSchema()},
	})
}

// InsightResultSchema is the per-chunk narrative style extraction.
func InsightResultSchema() map[string]any {
	return StyleSchema()
}

// ChildListResultSchema is the FanoutGenerator output shape for every level.
func ChildListResultSchema() map[string]any {
	child := objectSchema(map[string]any{
		"title":       stringSchema(),
		"order":       map[string]any{"type": "integer", "minimum": 1},
		"mandatory":   map[string]any{"type": "boolean"},
		"description": stringSchema(),
		"content":     stringSchema(),
	})
	return objectSchema(map[string]any{
		"children": map[string]any{"type": "array", "items": child, "minItems": 1},
	})
}
