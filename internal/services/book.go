package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/yungbote/coursetree-backend/internal/data/graph"
	"github.com/yungbote/coursetree-backend/internal/data/repos"
	"github.com/yungbote/coursetree-backend/internal/domain/tree"
	"github.com/yungbote/coursetree-backend/internal/modules/tree/book"
	pkgerrors "github.com/yungbote/coursetree-backend/internal/pkg/errors"
	"github.com/yungbote/coursetree-backend/internal/platform/gcp"
	"github.com/yungbote/coursetree-backend/internal/platform/logger"
	"github.com/yungbote/coursetree-backend/internal/platform/neo4jdb"
)

type BookService interface {
	Publish(ctx context.Context, s *tree.Session) (*tree.Book, error)
	Get(ctx context.Context, id, owner string) (*tree.Book, error)
	List(ctx context.Context, owner string, limit, offset int) ([]*tree.Book, error)
	Cover(ctx context.Context, id, owner string) ([]byte, error)
}

type bookService struct {
	db     *gorm.DB
	log    *logger.Logger
	repo   repos.BookRepo
	bucket gcp.BucketService
	graph  *neo4jdb.Client
	covers CoverService
	now    func() time.Time
}

// NewBookService accepts nil bucket and graph clients; those exports are then skipped.
func NewBookService(
	db *gorm.DB,
	baseLog *logger.Logger,
	repo repos.BookRepo,
	bucket gcp.BucketService,
	graphClient *neo4jdb.Client,
	covers CoverService,
) BookService {
	return &bookService{
		db:     db,
		log:    baseLog.With("service", "BookService"),
		repo:   repo,
		bucket: bucket,
		graph:  graphClient,
		covers: covers,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Publish stores the finished tree as a book. Re-publishing a session updates the same book.
// Export and graph projection failures are logged and do not fail the publish.
func (bs *bookService) Publish(ctx context.Context, s *tree.Session) (*tree.Book, error) {
	b, err := book.Render(s, bs.now())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", pkgerrors.ErrConflict, err)
	}
	saved, err := bs.repo.Upsert(ctx, bs.db, b)
	if err != nil {
		return nil, fmt.Errorf("store book for session %s: %w", s.ID, err)
	}

	if bs.bucket != nil {
		if uri, err := bs.export(ctx, saved); err != nil {
			bs.log.Warn("Book export failed", "book_id", saved.ID, "session_id", s.ID, "error", err)
		} else {
			saved.ExportURI = uri
		}
	}
	if err := graph.UpsertTreeGraph(ctx, bs.graph, bs.log, saved.ID, s.Tree); err != nil {
		bs.log.Warn("Tree graph projection failed", "book_id", saved.ID, "session_id", s.ID, "error", err)
	}

	bs.log.Info("Book published", "book_id", saved.ID, "session_id", s.ID, "counts", book.Counts(s.Tree))
	return saved, nil
}

func (bs *bookService) export(ctx context.Context, b *tree.Book) (string, error) {
	payload, err := json.Marshal(b)
	if err != nil {
		return "", err
	}
	key := bs.bucket.ObjectKey(gcp.BucketCategoryBook, b.ID)
	uri, err := gcp.UploadBytes(ctx, bs.bucket, gcp.BucketCategoryBook, key, payload)
	if err != nil {
		return "", err
	}
	if bs.covers != nil {
		if _, err := bs.covers.Upload(ctx, b); err != nil {
			bs.log.Warn("Cover export failed", "book_id", b.ID, "error", err)
		}
	}
	if err := bs.repo.UpdateExportURI(ctx, bs.db, b.ID, uri); err != nil {
		return "", err
	}
	return uri, nil
}

func (bs *bookService) Get(ctx context.Context, id, owner string) (*tree.Book, error) {
	b, err := bs.repo.GetByID(ctx, bs.db, id)
	if err != nil {
		return nil, err
	}
	if !ownerMatches(b.OwnerID, owner) {
		return nil, pkgerrors.ErrNotFound
	}
	return b, nil
}

func (bs *bookService) List(ctx context.Context, owner string, limit, offset int) ([]*tree.Book, error) {
	return bs.repo.List(ctx, bs.db, owner, limit, offset)
}

func (bs *bookService) Cover(ctx context.Context, id, owner string) ([]byte, error) {
	if bs.covers == nil {
		return nil, errors.New("cover rendering not configured")
	}
	b, err := bs.Get(ctx, id, owner)
	if err != nil {
		return nil, err
	}
	return bs.covers.Render(ctx, b)
}

// PublishOnDone returns a FinishFunc that publishes sessions reaching done and counts the final state.
func PublishOnDone(log *logger.Logger, books BookService, counter SessionCounter) FinishFunc {
	return func(ctx context.Context, s *tree.Session) {
		if counter != nil && s.State.Terminal() {
			counter.IncSession(string(s.State))
		}
		if s.State != tree.StateDone || books == nil {
			return
		}
		if _, err := books.Publish(ctx, s); err != nil {
			log.Error("Publishing book failed", "session_id", s.ID, "error", err)
		}
	}
}
