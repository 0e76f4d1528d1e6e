package steps

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/yungbote/coursetree-backend/internal/domain/tree"
	"github.com/yungbote/coursetree-backend/internal/jobs/orchestrator"
	"github.com/yungbote/coursetree-backend/internal/modules/tree/oracle"
	"github.com/yungbote/coursetree-backend/internal/modules/tree/prompts"
	"github.com/yungbote/coursetree-backend/internal/pkg/workpool"
	"github.com/yungbote/coursetree-backend/internal/platform/logger"
)

// GenerateStage is the stage name of Generate(l).
func GenerateStage(l tree.Level) string {
	return "generate:" + l.String()
}

type FanoutRequest struct {
	Goal    string
	Level   tree.Level
	Parents []*tree.Node
	Styles  []tree.Style
}

// ParentFailure records a parent whose call failed after its retry budget.
type ParentFailure struct {
	ParentID string
	Attempts int
	Err      error
}

type FanoutResult struct {
	Children tree.LevelResultMap
	Failed   []ParentFailure
}

type childResult struct {
	Title       string `json:"title"`
	Order       int    `json:"order"`
	Mandatory   bool   `json:"mandatory"`
	Description string `json:"description"`
	Content     string `json:"content"`
}

type childListResult struct {
	Children []childResult `json:"children"`
}

// Fanout issues one oracle call per parent under a shared concurrency cap.
type Fanout struct {
	log    *logger.Logger
	oracle oracle.Caller
	pool   *workpool.Pool
	retry  orchestrator.RetryPolicy
}

// DefaultFanoutRetry is a small bounded budget. Cancellation is never retried.
func DefaultFanoutRetry() orchestrator.RetryPolicy {
	return orchestrator.RetryPolicy{
		MaxAttempts: 3,
		MinBackoff:  500 * time.Millisecond,
		MaxBackoff:  5 * time.Second,
	}
}

func NewFanout(log *logger.Logger, oc oracle.Caller, pool *workpool.Pool, retry orchestrator.RetryPolicy) *Fanout {
	if retry.MaxAttempts <= 0 {
		retry.MaxAttempts = 1
	}
	if retry.Retryable == nil {
		retry.Retryable = func(err error) bool {
			return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
		}
	}
	return &Fanout{log: log.With("service", "FanoutGenerator"), oracle: oc, pool: pool, retry: retry}
}

// Generate produces req.Level children for every parent. The result has exactly one key per parent;
// a parent that fails after retries maps to an empty list and is listed in Failed. When every parent
// fails the stage fails with ErrFanoutTotalFailure. If ctx ends before the barrier, nothing is returned.
func (f *Fanout) Generate(ctx context.Context, req FanoutRequest) (FanoutResult, error) {
	stage := GenerateStage(req.Level)
	if !req.Level.Valid() || req.Level == tree.LevelProgram {
		return FanoutResult{}, fmt.Errorf("%s: level %s has no parent level", stage, req.Level)
	}
	if len(req.Parents) == 0 {
		return FanoutResult{}, &tree.StageError{Kind: tree.ErrFanoutTotalFailure, Stage: stage, Level: req.Level, Err: fmt.Errorf("no parents")}
	}
	stylesJSON := stylesJSON(req.Styles)
	parentLevel, _ := req.Level.Prev()

	children := make([][]*tree.Node, len(req.Parents))
	attempts := make([]int, len(req.Parents))
	errs := workpool.Each(ctx, f.pool, req.Parents, func(ctx context.Context, i int, parent *tree.Node) error {
		in := prompts.Input{
			Goal:              req.Goal,
			Level:             req.Level.String(),
			ParentLevel:       parentLevel.String(),
			ParentTitle:       parent.Title,
			ParentDescription: parent.Description,
			StylesJSON:        stylesJSON,
		}
		n, err := orchestrator.Retry(ctx, f.retry, func(ctx context.Context, attempt int) error {
			var res childListResult
			if err := f.oracle.Call(ctx, prompts.PromptGenerateChildren, in, &res); err != nil {
				return err
			}
			list, err := toNodes(req.Level, res.Children)
			if err != nil {
				return err
			}
			children[i] = list
			return nil
		}, func(attempt int, err error, wait time.Duration) {
			f.log.Warn("Child generation retrying",
				"stage", stage,
				"parent_id", parent.ID,
				"attempt", attempt,
				"wait", wait.String(),
				"error", err,
			)
		})
		attempts[i] = n
		return err
	})
	if err := ctx.Err(); err != nil {
		return FanoutResult{}, err
	}

	out := FanoutResult{Children: make(tree.LevelResultMap, len(req.Parents))}
	var causes []error
	for i, parent := range req.Parents {
		if errs[i] == nil {
			out.Children[parent.ID] = children[i]
			continue
		}
		out.Children[parent.ID] = []*tree.Node{}
		perr := &tree.StageError{Kind: tree.ErrFanoutPartialFailure, Stage: stage, Level: req.Level, ParentID: parent.ID, Err: errs[i]}
		out.Failed = append(out.Failed, ParentFailure{ParentID: parent.ID, Attempts: attempts[i], Err: perr})
		causes = append(causes, errs[i])
		f.log.Warn("Parent generation failed; subtree left empty",
			"stage", stage,
			"level", req.Level.String(),
			"parent_id", parent.ID,
			"error", errs[i],
		)
	}
	if len(out.Failed) == len(req.Parents) {
		return FanoutResult{}, &tree.StageError{Kind: tree.ErrFanoutTotalFailure, Stage: stage, Level: req.Level, Err: errors.Join(causes...)}
	}
	return out, nil
}

// toNodes keeps the oracle's order and order values as returned. Count and order bounds are
// enforced by the response schema; blank text is rejected here.
func toNodes(level tree.Level, in []childResult) ([]*tree.Node, error) {
	out := make([]*tree.Node, 0, len(in))
	for i, c := range in {
		path := fmt.Sprintf("/children/%d", i)
		title := strings.TrimSpace(c.Title)
		if title == "" {
			return nil, &tree.SchemaError{Schema: "child_list_result", Path: path + "/title", Reason: "empty"}
		}
		n := &tree.Node{
			ID:          tree.NewNodeID(),
			Level:       level,
			Title:       title,
			Order:       c.Order,
			Mandatory:   c.Mandatory,
			Description: strings.TrimSpace(c.Description),
		}
		if level == tree.LevelTopic {
			n.Content = strings.TrimSpace(c.Content)
			if n.Content == "" {
				return nil, &tree.SchemaError{Schema: "child_list_result", Path: path + "/content", Reason: "topic content is empty"}
			}
		}
		out = append(out, n)
	}
	return out, nil
}

// Summary is the observer payload for a finished Generate stage.
func (r FanoutResult) Summary() map[string]any {
	failed := make([]string, 0, len(r.Failed))
	for _, f := range r.Failed {
		failed = append(failed, f.ParentID)
	}
	children := 0
	for _, list := range r.Children {
		children += len(list)
	}
	return map[string]any{
		"parents":        len(r.Children),
		"children":       children,
		"failed_parents": failed,
	}
}

// MarshalJSON lets the result be streamed to observers directly.
func (r FanoutResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Summary())
}
