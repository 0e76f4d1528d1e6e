package treerun

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/testsuite"

	"github.com/yungbote/coursetree-backend/internal/domain/tree"
)

type scriptedActivities struct {
	states   []tree.State
	calls    int
	finished int
}

func (s *scriptedActivities) Continue(ctx context.Context, sessionID string) (ContinueResult, error) {
	st := s.states[s.calls]
	if s.calls < len(s.states)-1 {
		s.calls++
	}
	return ContinueResult{SessionID: sessionID, State: st}, nil
}

func (s *scriptedActivities) Finish(ctx context.Context, sessionID string) error {
	s.finished++
	return nil
}

func newEnv(t *testing.T, acts *scriptedActivities) *testsuite.TestWorkflowEnvironment {
	t.Helper()
	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestWorkflowEnvironment()
	env.RegisterActivityWithOptions(acts.Continue, activity.RegisterOptions{Name: ActivityContinue})
	env.RegisterActivityWithOptions(acts.Finish, activity.RegisterOptions{Name: ActivityFinish})
	return env
}

func TestWorkflow_WaitsForSelectionSignal(t *testing.T) {
	acts := &scriptedActivities{states: []tree.State{tree.StateAwaitSelection, tree.StateDone}}
	env := newEnv(t, acts)
	env.RegisterDelayedCallback(func() {
		env.SignalWorkflow(SignalContinue, nil)
	}, time.Minute)

	env.ExecuteWorkflow(Workflow, "s1")

	if !env.IsWorkflowCompleted() {
		t.Fatalf("workflow did not complete")
	}
	if err := env.GetWorkflowError(); err != nil {
		t.Fatalf("workflow error: %v", err)
	}
	if acts.calls != 1 || acts.finished != 1 {
		t.Fatalf("want one continue after the signal and one finish, got calls=%d finished=%d", acts.calls, acts.finished)
	}
}

func TestWorkflow_FailedSessionEndsWorkflowWithError(t *testing.T) {
	acts := &scriptedActivities{states: []tree.State{tree.StateFailed}}
	env := newEnv(t, acts)

	env.ExecuteWorkflow(Workflow, "s1")

	if !env.IsWorkflowCompleted() {
		t.Fatalf("workflow did not complete")
	}
	if err := env.GetWorkflowError(); err == nil {
		t.Fatalf("expected workflow error for a failed session")
	}
	if acts.finished != 1 {
		t.Fatalf("finish should run for failed sessions, got %d", acts.finished)
	}
}

func TestWorkflow_RejectsEmptySessionID(t *testing.T) {
	env := newEnv(t, &scriptedActivities{states: []tree.State{tree.StateDone}})
	env.ExecuteWorkflow(Workflow, "  ")
	if err := env.GetWorkflowError(); err == nil || errors.Is(err, context.Canceled) {
		t.Fatalf("expected a missing session error, got %v", err)
	}
}

func TestWorkflowID(t *testing.T) {
	if got := WorkflowID("abc"); got != "tree-session-abc" {
		t.Fatalf("got %q", got)
	}
}
