package temporalworker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/activity"
	temporalsdkclient "go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	"github.com/yungbote/coursetree-backend/internal/platform/logger"
	"github.com/yungbote/coursetree-backend/internal/temporalx"
	"github.com/yungbote/coursetree-backend/internal/temporalx/treerun"
)

// Worker polls the session task queue and executes tree_session workflows in this process.
type Worker struct {
	log  *logger.Logger
	tc   temporalsdkclient.Client
	cfg  temporalx.Config
	acts *treerun.Activities
}

func New(log *logger.Logger, tc temporalsdkclient.Client, cfg temporalx.Config, acts *treerun.Activities) (*Worker, error) {
	if tc == nil {
		return nil, fmt.Errorf("temporal client is not configured")
	}
	if acts == nil || acts.Engine == nil {
		return nil, fmt.Errorf("temporal worker missing deps")
	}
	return &Worker{log: log.With("component", "TemporalWorker"), tc: tc, cfg: cfg, acts: acts}, nil
}

// Start retries until the worker polls or cfg.WorkerMaxWait elapses. The worker stops when ctx ends.
func (w *Worker) Start(ctx context.Context) error {
	cfg := w.cfg
	w.log.Info("Starting Temporal worker", "address", cfg.Address, "namespace", cfg.Namespace, "task_queue", cfg.TaskQueue)

	if cfg.AutoRegisterNamespace {
		if err := temporalx.EnsureNamespace(ctx, w.log, cfg); err != nil {
			w.log.Warn("Temporal namespace ensure failed; worker will retry on start", "namespace", cfg.Namespace, "error", err)
		}
	}

	deadline := time.Now().Add(cfg.WorkerMaxWait)
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		tw := w.newWorker()
		startErr := tw.Start()
		if startErr == nil {
			go func() {
				<-ctx.Done()
				tw.Stop()
			}()
			w.log.Info("Temporal worker started", "task_queue", cfg.TaskQueue, "attempts", attempt)
			return nil
		}
		tw.Stop()

		var nfe *serviceerror.NamespaceNotFound
		notFound := errors.As(startErr, &nfe)
		if notFound && cfg.AutoRegisterNamespace {
			_ = temporalx.EnsureNamespace(ctx, w.log, cfg)
		}
		if cfg.WorkerMaxWait <= 0 || time.Now().After(deadline) {
			if notFound {
				return fmt.Errorf("temporal namespace not found (namespace=%s): %w", cfg.Namespace, startErr)
			}
			return startErr
		}
		w.log.Warn("Temporal worker failed to start; retrying", "attempt", attempt, "error", startErr)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(temporalx.ClampBackoff(cfg.Backoff, cfg.BackoffMax, attempt)):
		}
	}
}

func (w *Worker) newWorker() worker.Worker {
	tw := worker.New(w.tc, w.cfg.TaskQueue, worker.Options{
		MaxConcurrentActivityExecutionSize:     w.cfg.WorkerPollSize,
		MaxConcurrentWorkflowTaskExecutionSize: w.cfg.WorkerPollSize,
	})
	tw.RegisterWorkflowWithOptions(treerun.Workflow, workflow.RegisterOptions{Name: treerun.WorkflowName})
	tw.RegisterActivityWithOptions(w.acts.Continue, activity.RegisterOptions{Name: treerun.ActivityContinue})
	tw.RegisterActivityWithOptions(w.acts.FinishSession, activity.RegisterOptions{Name: treerun.ActivityFinish})
	return tw
}
