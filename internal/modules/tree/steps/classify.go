package steps

import (
	"context"
	"fmt"
	"strings"

	"github.com/yungbote/coursetree-backend/internal/domain/tree"
	"github.com/yungbote/coursetree-backend/internal/modules/tree/oracle"
	"github.com/yungbote/coursetree-backend/internal/modules/tree/prompts"
	"github.com/yungbote/coursetree-backend/internal/platform/logger"
)

const StageClassify = "classify"

// Classification is the LevelClassifier output. Root is nil when Category is LevelNone.
type Classification struct {
	Goal     string     `json:"goal"`
	Content  string     `json:"content"`
	Category tree.Level `json:"category"`
	Root     *tree.Node `json:"root,omitempty"`
}

type classificationResult struct {
	Goal     string `json:"goal"`
	Content  string `json:"content"`
	Category string `json:"category"`
}

type Classifier struct {
	log    *logger.Logger
	oracle oracle.Caller
}

func NewClassifier(log *logger.Logger, oc oracle.Caller) *Classifier {
	return &Classifier{log: log.With("service", "LevelClassifier"), oracle: oc}
}

// Classify makes exactly one oracle call. Any failure is a ClassificationFailure.
func (c *Classifier) Classify(ctx context.Context, input string) (Classification, error) {
	fail := func(err error) (Classification, error) {
		return Classification{}, &tree.StageError{Kind: tree.ErrClassificationFailure, Stage: StageClassify, Err: err}
	}
	input = strings.TrimSpace(input)
	if input == "" {
		return fail(fmt.Errorf("empty input"))
	}

	var res classificationResult
	if err := c.oracle.Call(ctx, prompts.PromptClassifyLevel, prompts.Input{
		UserInput:  input,
		Categories: strings.Join(tree.CategoryNames(), ", "),
	}, &res); err != nil {
		return fail(err)
	}
	level, err := tree.ParseLevel(res.Category)
	if err != nil {
		return fail(&tree.SchemaError{Schema: "classification_result", Path: "category", Reason: err.Error()})
	}
	out := Classification{
		Goal:     strings.TrimSpace(res.Goal),
		Content:  strings.TrimSpace(res.Content),
		Category: level,
	}
	if level == tree.LevelNone {
		return out, nil
	}
	if out.Goal == "" {
		return fail(&tree.SchemaError{Schema: "classification_result", Path: "goal", Reason: "empty"})
	}
	out.Root = &tree.Node{
		ID:          tree.NewNodeID(),
		Level:       level,
		Title:       out.Goal,
		Order:       1,
		Mandatory:   true,
		Description: out.Content,
	}
	c.log.Debug("Input classified", "goal", out.Goal, "category", level.String())
	return out, nil
}
