package treerun

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"github.com/yungbote/coursetree-backend/internal/domain/tree"
	"github.com/yungbote/coursetree-backend/internal/modules/tree/workflow"
	pkgerrors "github.com/yungbote/coursetree-backend/internal/pkg/errors"
	"github.com/yungbote/coursetree-backend/internal/platform/logger"
	"github.com/yungbote/coursetree-backend/internal/services"
)

// heartbeatInterval stays well under the workflow's HeartbeatTimeout.
var heartbeatInterval = 10 * time.Second

type Activities struct {
	Log    *logger.Logger
	Engine *workflow.Engine
	Finish services.FinishFunc
}

// Continue advances the session to its next resting state. A session that failed inside the engine
// is a result, not an activity error, so Temporal does not retry a recorded failure.
func (a *Activities) Continue(ctx context.Context, sessionID string) (ContinueResult, error) {
	res := ContinueResult{SessionID: sessionID}
	if a == nil || a.Engine == nil {
		return res, fmt.Errorf("treerun: activity not configured")
	}
	stop := startHeartbeat(ctx, sessionID)
	s, err := a.Engine.Continue(ctx, sessionID)
	stop()
	if s != nil {
		res.State = s.State
		res.Version = s.Version
	}
	switch {
	case err == nil:
		return res, nil
	case s != nil && s.State.Terminal():
		return res, nil
	case errors.Is(err, pkgerrors.ErrNotFound):
		return res, temporal.NewNonRetryableApplicationError(err.Error(), "SessionNotFound", err)
	default:
		a.Log.Warn("Continue activity failed", "session_id", sessionID, "error", err)
		return res, err
	}
}

func (a *Activities) FinishSession(ctx context.Context, sessionID string) error {
	if a == nil || a.Engine == nil {
		return fmt.Errorf("treerun: activity not configured")
	}
	if a.Finish == nil {
		return nil
	}
	s, err := a.Engine.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	if !s.State.Terminal() {
		return fmt.Errorf("treerun: session %s is %s: %w", sessionID, s.State, tree.ErrNotAwaitingSelection)
	}
	a.Finish(ctx, s)
	return nil
}

// startHeartbeat reports liveness while a stage runs; one Continue call can span many oracle calls.
func startHeartbeat(ctx context.Context, sessionID string) func() {
	activity.RecordHeartbeat(ctx, sessionID)
	done := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		t := time.NewTicker(heartbeatInterval)
		defer t.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-t.C:
				activity.RecordHeartbeat(ctx, sessionID)
			}
		}
	}()
	return func() {
		close(done)
		<-stopped
	}
}
