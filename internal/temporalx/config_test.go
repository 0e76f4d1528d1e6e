package temporalx

import (
	"testing"
	"time"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("TEMPORAL_ADDRESS", "")
	t.Setenv("TEMPORAL_NAMESPACE_RETENTION_DAYS", "900")
	cfg := LoadConfig()
	if cfg.Enabled() {
		t.Fatalf("expected Temporal disabled without an address")
	}
	if cfg.Namespace != "coursetree" || cfg.TaskQueue != "coursetree-sessions" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.RetentionDays != 7 {
		t.Fatalf("retention should clamp back to 7, got %d", cfg.RetentionDays)
	}
}

func TestClampBackoff(t *testing.T) {
	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
		{10, time.Second},
	}
	for _, tc := range cases {
		if got := ClampBackoff(100*time.Millisecond, time.Second, tc.attempt); got != tc.want {
			t.Fatalf("attempt %d: want %s got %s", tc.attempt, tc.want, got)
		}
	}
}

func TestLoadTLSConfig_RequiresPair(t *testing.T) {
	if _, err := loadTLSConfig(Config{ClientCAPath: "/tmp/ca.pem"}); err == nil {
		t.Fatalf("expected an error without cert and key")
	}
}
