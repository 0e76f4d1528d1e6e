package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/coursetree-backend/internal/domain/tree"
	"github.com/yungbote/coursetree-backend/internal/platform/logger"
)

// GormStore keeps one row per session in tree_session_checkpoint, guarded by its version column.
type GormStore struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewGormStore(db *gorm.DB, baseLog *logger.Logger) *GormStore {
	return &GormStore{db: db, log: baseLog.With("repo", "SessionCheckpointRepo")}
}

func (g *GormStore) Save(ctx context.Context, s *tree.Session) error {
	if err := validate(s); err != nil {
		return err
	}
	next := s.Version + 1
	raw, err := encode(s, next)
	if err != nil {
		return err
	}
	row := tree.SessionCheckpoint{
		ID:         s.ID,
		OwnerID:    s.OwnerID,
		State:      string(s.State),
		EntryLevel: s.EntryLevel.String(),
		Version:    next,
		Snapshot:   datatypes.JSON(raw),
		CreatedAt:  s.CreatedAt,
		UpdatedAt:  s.UpdatedAt,
	}

	if s.Version == 0 {
		if err := g.db.WithContext(ctx).Create(&row).Error; err != nil {
			if isUniqueViolation(err) {
				return tree.ErrVersionConflict
			}
			return fmt.Errorf("insert checkpoint %s: %w", s.ID, err)
		}
		s.Version = next
		return nil
	}

	res := g.db.WithContext(ctx).
		Model(&tree.SessionCheckpoint{}).
		Where("id = ? AND version = ?", s.ID, s.Version).
		Updates(map[string]any{
			"state":       row.State,
			"entry_level": row.EntryLevel,
			"version":     row.Version,
			"snapshot":    row.Snapshot,
			"updated_at":  row.UpdatedAt,
		})
	if res.Error != nil {
		return fmt.Errorf("update checkpoint %s: %w", s.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return tree.ErrVersionConflict
	}
	s.Version = next
	return nil
}

func (g *GormStore) Load(ctx context.Context, id string) (*tree.Session, error) {
	var row tree.SessionCheckpoint
	err := g.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, tree.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load checkpoint %s: %w", id, err)
	}
	s, err := decode(row.Snapshot)
	if err != nil {
		return nil, err
	}
	s.Version = row.Version
	return s, nil
}

// Interrupted lists sessions checkpointed in a running stage, oldest first. Sessions waiting for a
// selection or finished are excluded.
func (g *GormStore) Interrupted(ctx context.Context, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 100
	}
	running := []string{
		string(tree.StateClassify),
		string(tree.StateStylePipeline),
		string(tree.StateRoute),
		string(tree.StateGenerate),
		string(tree.StateAssemble),
	}
	var ids []string
	err := g.db.WithContext(ctx).
		Model(&tree.SessionCheckpoint{}).
		Where("state IN ?", running).
		Order("updated_at ASC").
		Limit(limit).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("list interrupted checkpoints: %w", err)
	}
	return ids, nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint")
}
