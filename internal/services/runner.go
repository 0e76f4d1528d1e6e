package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/yungbote/coursetree-backend/internal/domain/tree"
	"github.com/yungbote/coursetree-backend/internal/modules/tree/workflow"
	"github.com/yungbote/coursetree-backend/internal/platform/logger"
)

// SessionRunner moves a stored session forward outside the request that created or resumed it.
type SessionRunner interface {
	Launch(ctx context.Context, sessionID string) error
}

// FinishFunc observes a session after a background run stops, whatever state it stopped in.
type FinishFunc func(ctx context.Context, s *tree.Session)

var errRunnerClosed = errors.New("session runner closed")

// LocalRunner runs sessions on goroutines owned by the process. Close cancels in-flight runs;
// their sessions keep the last checkpoint and can be continued later.
type LocalRunner struct {
	log    *logger.Logger
	engine *workflow.Engine
	finish FinishFunc

	base   context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

func NewLocalRunner(log *logger.Logger, engine *workflow.Engine, finish FinishFunc) *LocalRunner {
	base, cancel := context.WithCancel(context.Background())
	return &LocalRunner{
		log:    log.With("service", "LocalRunner"),
		engine: engine,
		finish: finish,
		base:   base,
		cancel: cancel,
	}
}

func (r *LocalRunner) Launch(_ context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return errRunnerClosed
	}
	r.wg.Add(1)
	go r.run(sessionID)
	return nil
}

func (r *LocalRunner) run(sessionID string) {
	defer r.wg.Done()
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("Session run panic", "session_id", sessionID, "panic", fmt.Sprint(rec))
		}
	}()

	s, err := r.engine.Continue(r.base, sessionID)
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled):
		r.log.Info("Session run interrupted", "session_id", sessionID)
		return
	case s != nil && s.State.Terminal():
		// The engine already recorded and logged the failure.
	default:
		r.log.Warn("Session run stopped", "session_id", sessionID, "error", err)
	}
	if s != nil && r.finish != nil {
		r.finish(r.base, s)
	}
}

// Wait blocks until every launched run has returned.
func (r *LocalRunner) Wait() { r.wg.Wait() }

func (r *LocalRunner) Close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	r.cancel()
	r.wg.Wait()
}
