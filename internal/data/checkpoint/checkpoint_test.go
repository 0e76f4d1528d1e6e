package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/yungbote/coursetree-backend/internal/domain/tree"
	"github.com/yungbote/coursetree-backend/internal/platform/logger"
)

type store interface {
	Save(ctx context.Context, s *tree.Session) error
	Load(ctx context.Context, id string) (*tree.Session, error)
}

func mustTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	t.Cleanup(log.Sync)
	return log
}

func sampleSession(id string) *tree.Session {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	s := tree.NewSession(id, "Learn JPA", "owner-1", now)
	s.Goal = "JPA 학습"
	s.EntryLevel = tree.LevelLesson
	s.Root = &tree.Node{ID: "root", Level: tree.LevelLesson, Title: "JPA 학습", Order: 1}
	s.State = tree.StateAwaitSelection
	s.Shortlist = []tree.Style{{ID: "s1", Title: "story", Description: "d", Example: "e"}}
	s.SetLevelResult(tree.LevelTopic, tree.LevelResultMap{
		"root": {{ID: "t1", Level: tree.LevelTopic, Title: "entity", Order: 1, Content: "body"}},
	})
	return s
}

func exerciseStore(t *testing.T, st store) {
	t.Helper()
	ctx := context.Background()
	id := fmt.Sprintf("sess-%d", time.Now().UnixNano())

	if _, err := st.Load(ctx, id); !errors.Is(err, tree.ErrSessionNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	s := sampleSession(id)
	if err := st.Save(ctx, s); err != nil {
		t.Fatalf("first save: %v", err)
	}
	if s.Version != 1 {
		t.Fatalf("version=%d want 1", s.Version)
	}

	stale, err := st.Load(ctx, id)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if stale.Version != 1 || stale.Goal != "JPA 학습" || stale.EntryLevel != tree.LevelLesson {
		t.Fatalf("loaded %+v", stale)
	}
	m, ok := stale.LevelResult(tree.LevelTopic)
	if !ok || m["root"][0].Content != "body" {
		t.Fatalf("level results not round-tripped: %+v", stale.Levels)
	}

	s.State = tree.StateRoute
	if err := st.Save(ctx, s); err != nil {
		t.Fatalf("second save: %v", err)
	}
	if err := st.Save(ctx, stale); !errors.Is(err, tree.ErrVersionConflict) {
		t.Fatalf("expected version conflict, got %v", err)
	}
	dup := sampleSession(id)
	if err := st.Save(ctx, dup); !errors.Is(err, tree.ErrVersionConflict) {
		t.Fatalf("expected conflict on re-insert, got %v", err)
	}

	got, err := st.Load(ctx, id)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.State != tree.StateRoute || got.Version != 2 {
		t.Fatalf("state=%s version=%d", got.State, got.Version)
	}
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestMemoryStore_LoadReturnsCopies(t *testing.T) {
	st := NewMemoryStore()
	s := sampleSession("a")
	if err := st.Save(context.Background(), s); err != nil {
		t.Fatalf("Save: %v", err)
	}
	s.Goal = "mutated"
	got, _ := st.Load(context.Background(), "a")
	if got.Goal != "JPA 학습" {
		t.Fatalf("store aliased caller state")
	}
}

func TestGormStore_SQLite(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&tree.SessionCheckpoint{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	exerciseStore(t, NewGormStore(db, mustTestLogger(t)))
}

func TestGormStore_Interrupted(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&tree.SessionCheckpoint{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	st := NewGormStore(db, mustTestLogger(t))
	ctx := context.Background()

	states := map[string]tree.State{
		"gen":   tree.StateGenerate,
		"wait":  tree.StateAwaitSelection,
		"done":  tree.StateDone,
		"fresh": tree.StateClassify,
	}
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	for i, id := range []string{"gen", "wait", "done", "fresh"} {
		s := sampleSession(id)
		s.State = states[id]
		s.UpdatedAt = base.Add(time.Duration(i) * time.Minute)
		if err := st.Save(ctx, s); err != nil {
			t.Fatalf("Save %s: %v", id, err)
		}
	}

	ids, err := st.Interrupted(ctx, 10)
	if err != nil {
		t.Fatalf("Interrupted: %v", err)
	}
	if len(ids) != 2 || ids[0] != "gen" || ids[1] != "fresh" {
		t.Fatalf("want [gen fresh], got %v", ids)
	}
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	rdb := goredis.NewClient(&goredis.Options{Addr: addr})
	t.Cleanup(func() { _ = rdb.Close() })
	exerciseStore(t, NewRedisStore(mustTestLogger(t), rdb, "coursetree:test:", time.Minute))
}
