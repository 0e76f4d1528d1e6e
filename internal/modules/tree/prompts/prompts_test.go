package prompts

import (
	"strings"
	"testing"
)

func TestBuildClassify(t *testing.T) {
	p, err := Build(PromptClassifyLevel, Input{UserInput: "Learn JPA", Categories: "program, none", Language: "Korean"})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !strings.Contains(p.User, "Learn JPA") || !strings.Contains(p.System, "Korean") {
		t.Fatalf("rendered prompt missing fields:\n%s\n%s", p.System, p.User)
	}
	if p.SchemaName != "classification_result" || p.Schema == nil {
		t.Fatalf("schema not attached: %q", p.SchemaName)
	}
}

func TestBuildRunsValidators(t *testing.T) {
	if _, err := Build(PromptClassifyLevel, Input{}); err == nil {
		t.Fatalf("expected validator error for empty input")
	}
	if _, err := Build(PromptMergeStyles, Input{Goal: "g", Count: 5}); err == nil {
		t.Fatalf("expected error when both candidate lists are empty")
	}
	if _, err := Build(PromptMergeStyles, Input{Goal: "g", Count: 5, ModelStylesJSON: "[]"}); err != nil {
		t.Fatalf("one candidate list should be enough: %v", err)
	}
}

func TestBuildUnknown(t *testing.T) {
	if _, err := Build(PromptName("nope"), Input{}); err == nil {
		t.Fatalf("expected unknown prompt error")
	}
}

func TestSchemasAreStrict(t *testing.T) {
	for _, name := range []PromptName{PromptClassifyLevel, PromptSelectExample, PromptModelStyles, PromptExtractInsight, PromptWebStyles, PromptMergeStyles, PromptGenerateChildren} {
		_, schema, ok := Schema(name)
		if !ok {
			t.Fatalf("%s: schema missing", name)
		}
		checkStrict(t, string(name), schema)
	}
}

func checkStrict(t *testing.T, path string, schema map[string]any) {
	t.Helper()
	switch schema["type"] {
	case "object":
		if schema["additionalProperties"] != false {
			t.Fatalf("%s: additionalProperties must be false", path)
		}
		props := schema["properties"].(map[string]any)
		req := schema["required"].([]string)
		if len(req) != len(props) {
			t.Fatalf("%s: required lists %d of %d properties", path, len(req), len(props))
		}
		for k, v := range props {
			checkStrict(t, path+"."+k, v.(map[string]any))
		}
	case "array":
		checkStrict(t, path+"[]", schema["items"].(map[string]any))
	}
}

func TestFingerprintStable(t *testing.T) {
	in := Input{Goal: "JPA", Level: "module", ParentTitle: "JPA", ParentLevel: "subject"}
	a, err := Build(PromptGenerateChildren, in)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	b, _ := Build(PromptGenerateChildren, in)
	if a.Fingerprint() != b.Fingerprint() {
		t.Fatalf("fingerprint not stable")
	}
	in.ParentTitle = "Hibernate"
	c, _ := Build(PromptGenerateChildren, in)
	if a.Fingerprint() == c.Fingerprint() {
		t.Fatalf("fingerprint ignores input")
	}
}
