package repos

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/yungbote/coursetree-backend/internal/domain/tree"
	pkgerrors "github.com/yungbote/coursetree-backend/internal/pkg/errors"
	"github.com/yungbote/coursetree-backend/internal/platform/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&tree.Book{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newBook(sessionID, owner, title string, at time.Time) *tree.Book {
	return &tree.Book{
		ID:         tree.NewNodeID(),
		SessionID:  sessionID,
		OwnerID:    owner,
		Title:      title,
		EntryLevel: "subject",
		Styles:     datatypes.JSON(`[]`),
		Content:    datatypes.JSON(`{"modules":[]}`),
		CreatedAt:  at,
		UpdatedAt:  at,
	}
}

func TestBookRepo_UpsertIsIdempotentPerSession(t *testing.T) {
	ctx := context.Background()
	repo := NewBookRepo(openTestDB(t), logger.Nop())
	now := time.Now().UTC()

	first, err := repo.Upsert(ctx, nil, newBook("s1", "u1", "v1", now))
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	second, err := repo.Upsert(ctx, nil, newBook("s1", "u1", "v2", now.Add(time.Second)))
	if err != nil {
		t.Fatalf("Upsert again: %v", err)
	}
	if second.ID != first.ID || second.Title != "v2" {
		t.Fatalf("expected one book per session, got %+v then %+v", first, second)
	}
}

func TestBookRepo_ListFiltersByOwner(t *testing.T) {
	ctx := context.Background()
	repo := NewBookRepo(openTestDB(t), logger.Nop())
	now := time.Now().UTC()
	for i, owner := range []string{"u1", "u2", "u1"} {
		if _, err := repo.Upsert(ctx, nil, newBook(fmt.Sprintf("s%d", i), owner, "t", now.Add(time.Duration(i)*time.Second))); err != nil {
			t.Fatalf("Upsert: %v", err)
		}
	}
	got, err := repo.List(ctx, nil, "u1", 10, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 2 || got[0].SessionID != "s2" {
		t.Fatalf("unexpected list: %+v", got)
	}
}

func TestBookRepo_NotFound(t *testing.T) {
	repo := NewBookRepo(openTestDB(t), logger.Nop())
	if _, err := repo.GetByID(context.Background(), nil, "missing"); !errors.Is(err, pkgerrors.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := repo.UpdateExportURI(context.Background(), nil, "missing", "gs://x"); !errors.Is(err, pkgerrors.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
