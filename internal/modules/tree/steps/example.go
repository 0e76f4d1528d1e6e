package steps

import (
	"context"
	"strings"

	"github.com/yungbote/coursetree-backend/internal/domain/tree"
	"github.com/yungbote/coursetree-backend/internal/modules/tree/oracle"
	"github.com/yungbote/coursetree-backend/internal/modules/tree/prompts"
	"github.com/yungbote/coursetree-backend/internal/platform/logger"
)

const StageSelectExample = "select_example"

// ExampleSelector picks the subject that model styles are demonstrated on.
type ExampleSelector struct {
	log    *logger.Logger
	oracle oracle.Caller
}

func NewExampleSelector(log *logger.Logger, oc oracle.Caller) *ExampleSelector {
	return &ExampleSelector{log: log.With("service", "ExampleSelector"), oracle: oc}
}

func (s *ExampleSelector) Select(ctx context.Context, goal, content string) (*tree.Example, error) {
	var res tree.Example
	if err := s.oracle.Call(ctx, prompts.PromptSelectExample, prompts.Input{Goal: goal, Content: content}, &res); err != nil {
		return nil, err
	}
	res.Subject = strings.TrimSpace(res.Subject)
	res.Description = strings.TrimSpace(res.Description)
	if res.Subject == "" {
		return nil, &tree.SchemaError{Schema: "example_result", Path: "subject", Reason: "empty"}
	}
	return &res, nil
}

// FallbackExample summarizes the goal itself when no example could be selected.
func FallbackExample(goal, content string) *tree.Example {
	return &tree.Example{Subject: goal, Description: content}
}
