package treerun

import (
	"context"
	"fmt"
	"strings"

	enumspb "go.temporal.io/api/enums/v1"
	temporalsdkclient "go.temporal.io/sdk/client"

	"github.com/yungbote/coursetree-backend/internal/platform/logger"
)

// Runner launches sessions as Temporal workflows. It satisfies services.SessionRunner.
type Runner struct {
	log       *logger.Logger
	tc        temporalsdkclient.Client
	taskQueue string
}

func NewRunner(log *logger.Logger, tc temporalsdkclient.Client, taskQueue string) (*Runner, error) {
	if tc == nil {
		return nil, fmt.Errorf("temporal client is not configured")
	}
	if strings.TrimSpace(taskQueue) == "" {
		return nil, fmt.Errorf("temporal task queue required")
	}
	return &Runner{log: log.With("runner", "TemporalRunner"), tc: tc, taskQueue: taskQueue}, nil
}

// Launch starts the session workflow, or signals the running one to continue.
func (r *Runner) Launch(ctx context.Context, sessionID string) error {
	opts := temporalsdkclient.StartWorkflowOptions{
		ID:                    WorkflowID(sessionID),
		TaskQueue:             r.taskQueue,
		WorkflowIDReusePolicy: enumspb.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE,
	}
	run, err := r.tc.SignalWithStartWorkflow(ctx, opts.ID, SignalContinue, nil, opts, WorkflowName, sessionID)
	if err != nil {
		return fmt.Errorf("signal-with-start %s: %w", opts.ID, err)
	}
	r.log.Debug("Session workflow signaled", "session_id", sessionID, "workflow_id", run.GetID(), "run_id", run.GetRunID())
	return nil
}
