package observability

import (
	"testing"

	"go.opentelemetry.io/otel/attribute"
)

func TestOtelConfig_Resource(t *testing.T) {
	res := OtelConfig{
		Environment:       "staging",
		CheckpointBackend: "postgres",
		Runner:            "temporal",
		Language:          "Korean",
	}.Resource()
	set := res.Set()

	want := map[string]string{
		"service.name":                  defaultServiceName,
		"service.namespace":             "coursetree",
		"deployment.environment.name":   "staging",
		"coursetree.checkpoint_backend": "postgres",
		"coursetree.runner":             "temporal",
		"coursetree.output_language":    "Korean",
	}
	for k, v := range want {
		got, ok := set.Value(attribute.Key(k))
		if !ok || got.AsString() != v {
			t.Fatalf("%s: got %q (present=%v), want %q", k, got.AsString(), ok, v)
		}
	}
	if _, ok := set.Value("service.version"); ok {
		t.Fatalf("empty version should be omitted")
	}
}
