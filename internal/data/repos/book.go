package repos

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/coursetree-backend/internal/domain/tree"
	pkgerrors "github.com/yungbote/coursetree-backend/internal/pkg/errors"
	"github.com/yungbote/coursetree-backend/internal/platform/logger"
)

type BookRepo interface {
	// Upsert stores b, replacing the book already published for the same session.
	Upsert(ctx context.Context, tx *gorm.DB, b *tree.Book) (*tree.Book, error)
	GetByID(ctx context.Context, tx *gorm.DB, id string) (*tree.Book, error)
	GetBySessionID(ctx context.Context, tx *gorm.DB, sessionID string) (*tree.Book, error)
	List(ctx context.Context, tx *gorm.DB, ownerID string, limit, offset int) ([]*tree.Book, error)
	UpdateExportURI(ctx context.Context, tx *gorm.DB, id, uri string) error
}

type bookRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewBookRepo(db *gorm.DB, baseLog *logger.Logger) BookRepo {
	repoLog := baseLog.With("repo", "BookRepo")
	return &bookRepo{db: db, log: repoLog}
}

func (r *bookRepo) tx(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *bookRepo) Upsert(ctx context.Context, tx *gorm.DB, b *tree.Book) (*tree.Book, error) {
	if b == nil || b.SessionID == "" {
		return nil, pkgerrors.ErrInvalidArgument
	}
	err := r.tx(tx).WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "session_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"title", "description", "entry_level", "styles", "content", "updated_at"}),
	}).Create(b).Error
	if err != nil {
		return nil, err
	}
	return r.GetBySessionID(ctx, tx, b.SessionID)
}

func (r *bookRepo) GetByID(ctx context.Context, tx *gorm.DB, id string) (*tree.Book, error) {
	var b tree.Book
	err := r.tx(tx).WithContext(ctx).Where("id = ?", id).Take(&b).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *bookRepo) GetBySessionID(ctx context.Context, tx *gorm.DB, sessionID string) (*tree.Book, error) {
	var b tree.Book
	err := r.tx(tx).WithContext(ctx).Where("session_id = ?", sessionID).Take(&b).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *bookRepo) List(ctx context.Context, tx *gorm.DB, ownerID string, limit, offset int) ([]*tree.Book, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	q := r.tx(tx).WithContext(ctx).Model(&tree.Book{})
	if ownerID != "" {
		q = q.Where("owner_id = ?", ownerID)
	}
	var out []*tree.Book
	if err := q.Order("created_at DESC").Limit(limit).Offset(offset).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *bookRepo) UpdateExportURI(ctx context.Context, tx *gorm.DB, id, uri string) error {
	res := r.tx(tx).WithContext(ctx).Model(&tree.Book{}).Where("id = ?", id).Update("export_uri", uri)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return pkgerrors.ErrNotFound
	}
	return nil
}
