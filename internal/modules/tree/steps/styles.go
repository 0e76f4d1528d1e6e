package steps

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/yungbote/coursetree-backend/internal/domain/tree"
	"github.com/yungbote/coursetree-backend/internal/platform/logger"
)

// StageFunc receives a stage name and its result as soon as the stage completes.
type StageFunc func(stage string, result any)

// StyleResult is everything the style pipeline resolved. Source errors are absorbed here.
type StyleResult struct {
	Example     *tree.Example
	ModelStyles []tree.Style
	WebStyles   []tree.Style
	Shortlist   []tree.Style
	ModelErr    error
	WebErr      error
}

type StylePipeline struct {
	log     *logger.Logger
	example *ExampleSelector
	model   *ModelStyles
	web     *WebStyles
	merger  *StyleMerger
}

func NewStylePipeline(log *logger.Logger, example *ExampleSelector, model *ModelStyles, web *WebStyles, merger *StyleMerger) *StylePipeline {
	return &StylePipeline{
		log:     log.With("service", "StylePipeline"),
		example: example,
		model:   model,
		web:     web,
		merger:  merger,
	}
}

// Run resolves ModelStyles (after example selection) and WebStyles concurrently, then merges once
// both are done. A failing source leaves its list empty; if both fail the shortlist is empty.
func (p *StylePipeline) Run(ctx context.Context, goal, content string, emit StageFunc) (StyleResult, error) {
	var mu sync.Mutex
	notify := func(stage string, result any) {
		if emit == nil {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		emit(stage, result)
	}

	var res StyleResult
	var g errgroup.Group
	g.Go(func() error {
		ex, err := p.example.Select(ctx, goal, content)
		if err != nil {
			p.log.Warn("Example selection failed; using goal as example", "error", err)
			ex = FallbackExample(goal, content)
		}
		res.Example = ex
		notify(StageSelectExample, ex)

		res.ModelStyles, res.ModelErr = p.model.Generate(ctx, ex)
		if res.ModelErr != nil {
			p.log.Warn("Model style source failed", "error", res.ModelErr)
		}
		notify(StageModelStyles, res.ModelStyles)
		return nil
	})
	g.Go(func() error {
		if p.web == nil {
			res.WebErr = &tree.StageError{Kind: tree.ErrStyleSourceFailure, Stage: StageWebStyles, Err: fmt.Errorf("web styles disabled")}
		} else {
			res.WebStyles, res.WebErr = p.web.Generate(ctx, goal)
		}
		if res.WebErr != nil {
			p.log.Warn("Web style source failed", "error", res.WebErr)
		}
		notify(StageWebStyles, res.WebStyles)
		return nil
	})
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return StyleResult{}, err
	}

	if len(res.ModelStyles) == 0 && len(res.WebStyles) == 0 {
		p.log.Warn("Both style sources failed; shortlist is empty")
	}
	shortlist, err := p.merger.Merge(ctx, goal, res.ModelStyles, res.WebStyles)
	if err != nil {
		return StyleResult{}, err
	}
	res.Shortlist = shortlist
	notify(StageMergeStyles, shortlist)
	return res, nil
}
