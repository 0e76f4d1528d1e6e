package treerun

import (
	"fmt"
	"strings"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/yungbote/coursetree-backend/internal/domain/tree"
)

const (
	selectionPollInterval = 30 * time.Minute
	continueHistoryLimit  = 10000
)

// Workflow drives one session: advance it, then sleep on the continue signal while it awaits a selection.
// Selections are validated and stored by the API before it signals, so the workflow only ever continues.
func Workflow(ctx workflow.Context, sessionID string) error {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return fmt.Errorf("treerun: missing session_id")
	}

	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Hour,
		HeartbeatTimeout:    time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    2 * time.Second,
			BackoffCoefficient: 2,
			MaximumInterval:    time.Minute,
			MaximumAttempts:    5,
		},
	})

	signals := workflow.GetSignalChannel(ctx, SignalContinue)
	for {
		drainSignals(ctx, signals)

		var out ContinueResult
		if err := workflow.ExecuteActivity(ctx, ActivityContinue, sessionID).Get(ctx, &out); err != nil {
			return err
		}
		if out.State.Terminal() {
			if err := workflow.ExecuteActivity(ctx, ActivityFinish, sessionID).Get(ctx, nil); err != nil {
				workflow.GetLogger(ctx).Warn("Session finish failed", "session_id", sessionID, "error", err)
			}
			if out.State == tree.StateFailed {
				return temporal.NewNonRetryableApplicationError("session failed", "SessionFailed", nil, sessionID)
			}
			return nil
		}

		if out.State == tree.StateAwaitSelection {
			waitForSignalOrPoll(ctx, signals, selectionPollInterval)
		}
		if workflow.GetInfo(ctx).GetCurrentHistoryLength() >= continueHistoryLimit {
			return workflow.NewContinueAsNewError(ctx, Workflow, sessionID)
		}
	}
}

// drainSignals consumes signals already buffered; the next Continue observes their effect anyway.
func drainSignals(ctx workflow.Context, ch workflow.ReceiveChannel) {
	for {
		var v any
		if !ch.ReceiveAsync(&v) {
			return
		}
	}
}

func waitForSignalOrPoll(ctx workflow.Context, ch workflow.ReceiveChannel, maxWait time.Duration) {
	timerCtx, cancel := workflow.WithCancel(ctx)
	defer cancel()
	timer := workflow.NewTimer(timerCtx, maxWait)
	sel := workflow.NewSelector(ctx)
	sel.AddReceive(ch, func(c workflow.ReceiveChannel, more bool) {
		var v any
		c.Receive(ctx, &v)
	})
	sel.AddFuture(timer, func(f workflow.Future) {})
	sel.Select(ctx)
}
