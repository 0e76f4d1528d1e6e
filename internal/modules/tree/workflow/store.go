package workflow

import (
	"context"

	"github.com/yungbote/coursetree-backend/internal/domain/tree"
)

// Store persists session checkpoints.
//
// Save writes s when the stored version equals s.Version (zero means "not stored yet") and then
// increments s.Version. A mismatch returns tree.ErrVersionConflict. Load returns
// tree.ErrSessionNotFound for unknown ids and always hands out a copy.
type Store interface {
	Save(ctx context.Context, s *tree.Session) error
	Load(ctx context.Context, id string) (*tree.Session, error)
}

// InterruptedLister is implemented by durable stores that can find sessions a crash left mid-stage.
type InterruptedLister interface {
	Interrupted(ctx context.Context, limit int) ([]string, error)
}

// Recorder receives stage timings. Implementations must be safe for concurrent use.
type Recorder interface {
	ObserveStage(stage string, outcome string, seconds float64)
	ObserveFanoutFailures(level string, failed int)
}
