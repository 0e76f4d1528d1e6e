package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/coursetree-backend/internal/domain/tree"
	"github.com/yungbote/coursetree-backend/internal/platform/logger"
)

const defaultKeyPrefix = "coursetree:session:"

// RedisStore keeps one JSON snapshot per key and uses WATCH for optimistic versioning.
type RedisStore struct {
	log    *logger.Logger
	rdb    goredis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisStore stores snapshots under prefix+id. A zero ttl keeps them forever.
func NewRedisStore(log *logger.Logger, rdb goredis.UniversalClient, prefix string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &RedisStore{log: log.With("service", "RedisCheckpointStore"), rdb: rdb, prefix: prefix, ttl: ttl}
}

func (r *RedisStore) key(id string) string { return r.prefix + id }

func (r *RedisStore) Save(ctx context.Context, s *tree.Session) error {
	if err := validate(s); err != nil {
		return err
	}
	next := s.Version + 1
	raw, err := encode(s, next)
	if err != nil {
		return err
	}
	key := r.key(s.ID)

	err = r.rdb.Watch(ctx, func(tx *goredis.Tx) error {
		var cur int64
		b, err := tx.Get(ctx, key).Bytes()
		switch {
		case errors.Is(err, goredis.Nil):
		case err != nil:
			return err
		default:
			if cur, err = storedVersion(b); err != nil {
				return err
			}
		}
		if cur != s.Version {
			return tree.ErrVersionConflict
		}
		_, err = tx.TxPipelined(ctx, func(p goredis.Pipeliner) error {
			p.Set(ctx, key, raw, r.ttl)
			return nil
		})
		return err
	}, key)
	if errors.Is(err, goredis.TxFailedErr) {
		return tree.ErrVersionConflict
	}
	if err != nil {
		if errors.Is(err, tree.ErrVersionConflict) {
			return err
		}
		return fmt.Errorf("save checkpoint %s: %w", s.ID, err)
	}
	s.Version = next
	return nil
}

func (r *RedisStore) Load(ctx context.Context, id string) (*tree.Session, error) {
	b, err := r.rdb.Get(ctx, r.key(id)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, tree.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load checkpoint %s: %w", id, err)
	}
	return decode(b)
}
