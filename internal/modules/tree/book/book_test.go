package book

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/yungbote/coursetree-backend/internal/domain/tree"
)

func sampleTree() *tree.Node {
	return &tree.Node{ID: "s", Level: tree.LevelSubject, Title: "JPA 학습", Order: 1, Children: []*tree.Node{
		{ID: "m1", Level: tree.LevelModule, Title: "Mapping", Order: 1, Children: []*tree.Node{
			{ID: "l1", Level: tree.LevelLesson, Title: "Entities", Order: 1, Children: []*tree.Node{
				{ID: "t1", Level: tree.LevelTopic, Title: "@Entity", Order: 1, Content: "body"},
			}},
		}},
		{ID: "m2", Level: tree.LevelModule, Title: "Queries", Order: 2, Children: []*tree.Node{}},
	}}
}

func TestDocument_UsesPluralLevelKeys(t *testing.T) {
	doc := Document(sampleTree())
	modules, ok := doc["modules"].([]map[string]any)
	if !ok || len(modules) != 2 {
		t.Fatalf("modules=%v", doc["modules"])
	}
	lessons := modules[0]["lessons"].([]map[string]any)
	topics := lessons[0]["topics"].([]map[string]any)
	if topics[0]["content"] != "body" {
		t.Fatalf("topic content missing: %v", topics[0])
	}
	if _, ok := topics[0]["children"]; ok {
		t.Fatalf("topics must not carry children")
	}
	if got := modules[1]["lessons"].([]map[string]any); len(got) != 0 {
		t.Fatalf("failed module should render an empty lesson list")
	}
}

func TestRender_RequiresFinishedSession(t *testing.T) {
	s := tree.NewSession("s1", "Learn JPA", "", time.Now())
	if _, err := Render(s, time.Now()); err == nil {
		t.Fatalf("expected error for unfinished session")
	}
	s.State = tree.StateDone
	s.EntryLevel = tree.LevelSubject
	s.Tree = sampleTree()
	b, err := Render(s, time.Now())
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(b.Content, &doc); err != nil {
		t.Fatalf("content: %v", err)
	}
	if b.SessionID != "s1" || b.Title != "JPA 학습" || b.EntryLevel != "subject" || doc["modules"] == nil {
		t.Fatalf("book=%+v", b)
	}
}

func TestCounts(t *testing.T) {
	got := Counts(sampleTree())
	if got["subjects"] != 1 || got["modules"] != 2 || got["topics"] != 1 {
		t.Fatalf("counts=%v", got)
	}
}
