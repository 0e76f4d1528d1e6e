package checkpoint

import (
	"context"
	"sync"

	"github.com/yungbote/coursetree-backend/internal/domain/tree"
)

// MemoryStore keeps serialized snapshots in process.
type MemoryStore struct {
	mu   sync.RWMutex
	rows map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rows: map[string][]byte{}}
}

func (m *MemoryStore) Save(ctx context.Context, s *tree.Session) error {
	if err := validate(s); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var cur int64
	if raw, ok := m.rows[s.ID]; ok {
		v, err := storedVersion(raw)
		if err != nil {
			return err
		}
		cur = v
	}
	if cur != s.Version {
		return tree.ErrVersionConflict
	}
	next := s.Version + 1
	raw, err := encode(s, next)
	if err != nil {
		return err
	}
	m.rows[s.ID] = raw
	s.Version = next
	return nil
}

func (m *MemoryStore) Load(ctx context.Context, id string) (*tree.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	raw, ok := m.rows[id]
	m.mu.RUnlock()
	if !ok {
		return nil, tree.ErrSessionNotFound
	}
	return decode(raw)
}
