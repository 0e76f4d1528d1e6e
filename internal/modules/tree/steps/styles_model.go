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

const StageModelStyles = "model_styles"

type styleListResult struct {
	Styles []tree.Style `json:"styles"`
}

type ModelStyles struct {
	log    *logger.Logger
	oracle oracle.Caller
	count  int
}

func NewModelStyles(log *logger.Logger, oc oracle.Caller, count int) *ModelStyles {
	if count <= 0 {
		count = DefaultModelStyleCount
	}
	return &ModelStyles{log: log.With("service", "ModelStyles"), oracle: oc, count: count}
}

// Generate asks for count styles demonstrated on ex. Failures are StyleSourceFailures.
func (m *ModelStyles) Generate(ctx context.Context, ex *tree.Example) ([]tree.Style, error) {
	fail := func(err error) ([]tree.Style, error) {
		return nil, &tree.StageError{Kind: tree.ErrStyleSourceFailure, Stage: StageModelStyles, Err: err}
	}
	if ex == nil || strings.TrimSpace(ex.Subject) == "" {
		return fail(fmt.Errorf("missing example subject"))
	}
	var res styleListResult
	if err := m.oracle.Call(ctx, prompts.PromptModelStyles, prompts.Input{
		ExampleSubject:     ex.Subject,
		ExampleDescription: ex.Description,
		Count:              m.count,
	}, &res); err != nil {
		return fail(err)
	}
	styles := cleanStyles(res.Styles, tree.StyleSourceModel, m.count)
	if len(styles) == 0 {
		return fail(fmt.Errorf("no usable styles returned"))
	}
	return styles, nil
}

// cleanStyles trims fields, drops styles without a title or whose description just repeats the
// example, removes duplicate titles and caps the list at limit.
func cleanStyles(in []tree.Style, source string, limit int) []tree.Style {
	out := make([]tree.Style, 0, len(in))
	seen := map[string]bool{}
	for _, s := range in {
		s.Title = strings.TrimSpace(s.Title)
		s.Description = strings.TrimSpace(s.Description)
		s.Example = strings.TrimSpace(s.Example)
		if s.Title == "" || s.Example == "" {
			continue
		}
		if strings.EqualFold(s.Description, s.Example) {
			continue
		}
		key := strings.ToLower(s.Title)
		if seen[key] {
			continue
		}
		seen[key] = true
		s.ID = ""
		s.Source = source
		out = append(out, s)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}
