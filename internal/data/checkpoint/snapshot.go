package checkpoint

import (
	"encoding/json"
	"fmt"

	"github.com/yungbote/coursetree-backend/internal/domain/tree"
)

// encode serializes s as it will look once stored at version.
func encode(s *tree.Session, version int64) ([]byte, error) {
	cp := *s
	cp.Version = version
	b, err := json.Marshal(&cp)
	if err != nil {
		return nil, fmt.Errorf("encode session %s: %w", s.ID, err)
	}
	return b, nil
}

func decode(raw []byte) (*tree.Session, error) {
	var s tree.Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &s, nil
}

func storedVersion(raw []byte) (int64, error) {
	var v struct {
		Version int64 `json:"version"`
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, fmt.Errorf("decode session version: %w", err)
	}
	return v.Version, nil
}

func validate(s *tree.Session) error {
	if s == nil || s.ID == "" {
		return fmt.Errorf("session id required")
	}
	return nil
}
