package main

import (
	"bytes"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"

	"github.com/yungbote/coursetree-backend/internal/domain/tree"
)

func TestParseSelection(t *testing.T) {
	cases := []struct {
		raw  string
		want tree.Selection
	}{
		{"0,2", tree.Selection{Indices: []int{0, 2}}},
		{" 1 , style-a ,, ", tree.Selection{Indices: []int{1}, IDs: []string{"style-a"}}},
		{"", tree.Selection{}},
	}
	for _, tc := range cases {
		if got := parseSelection(tc.raw); !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("%q: want %+v got %+v", tc.raw, tc.want, got)
		}
	}
}

func TestInitViper_EnvOverridesDefault(t *testing.T) {
	t.Setenv("TREECTL_CHECKPOINT_BACKEND", "memory")
	cmd := newRootCmd()
	v := viper.New()
	_ = v.BindPFlags(cmd.PersistentFlags())
	if err := initViper(v, ""); err != nil {
		t.Fatalf("initViper: %v", err)
	}
	if got := v.GetString("checkpoint-backend"); got != "memory" {
		t.Fatalf("want memory, got %q", got)
	}
}

func TestPrintShortlist(t *testing.T) {
	sess := tree.NewSession("s1", "learn go", "", time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
	sess.State = tree.StateAwaitSelection
	sess.Shortlist = []tree.Style{{Title: "Socratic", Description: "questions first"}}
	var buf bytes.Buffer
	printShortlist(&buf, sess)
	if !strings.Contains(buf.String(), "[0] Socratic: questions first") {
		t.Fatalf("unexpected output %q", buf.String())
	}
}
