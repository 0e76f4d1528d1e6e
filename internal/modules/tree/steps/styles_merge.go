package steps

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/yungbote/coursetree-backend/internal/domain/tree"
	"github.com/yungbote/coursetree-backend/internal/modules/tree/oracle"
	"github.com/yungbote/coursetree-backend/internal/modules/tree/prompts"
	"github.com/yungbote/coursetree-backend/internal/platform/logger"
)

const StageMergeStyles = "merge_styles"

type StyleMerger struct {
	log    *logger.Logger
	oracle oracle.Caller
	size   int
}

func NewStyleMerger(log *logger.Logger, oc oracle.Caller, size int) *StyleMerger {
	if size <= 0 {
		size = DefaultShortlistSize
	}
	return &StyleMerger{log: log.With("service", "StyleMerger"), oracle: oc, size: size}
}

// Merge asks the oracle for a shortlist drawn from both resolved lists and gives every entry a fresh id.
//
// With only one non-empty list the shortlist is restricted to that list's titles. With two empty
// lists the shortlist is empty and no call is made. If the merge call fails the shortlist falls
// back to the inputs in order (model first), so a failed merge never loses resolved styles.
// The only error returned is ctx's.
func (m *StyleMerger) Merge(ctx context.Context, goal string, model, web []tree.Style) ([]tree.Style, error) {
	if len(model) == 0 && len(web) == 0 {
		return []tree.Style{}, nil
	}
	candidates := make([]tree.Style, 0, len(model)+len(web))
	candidates = append(candidates, model...)
	candidates = append(candidates, web...)

	modelJSON, webJSON := stylesJSON(model), stylesJSON(web)
	var res styleListResult
	err := m.oracle.Call(ctx, prompts.PromptMergeStyles, prompts.Input{
		Goal:            goal,
		ModelStylesJSON: modelJSON,
		WebStylesJSON:   webJSON,
		Count:           m.size,
	}, &res)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		m.log.Warn("Style merge failed; falling back to source order", "error", err)
		return withIDs(truncateStyles(candidates, m.size)), nil
	}

	onlyOne := len(model) == 0 || len(web) == 0
	byTitle := map[string]tree.Style{}
	for _, s := range candidates {
		key := strings.ToLower(strings.TrimSpace(s.Title))
		if _, ok := byTitle[key]; !ok {
			byTitle[key] = s
		}
	}

	out := make([]tree.Style, 0, m.size)
	seen := map[string]bool{}
	for _, s := range res.Styles {
		key := strings.ToLower(strings.TrimSpace(s.Title))
		if key == "" || seen[key] {
			continue
		}
		src, known := byTitle[key]
		switch {
		case known:
			s = src
		case onlyOne:
			continue
		default:
			s.Title = strings.TrimSpace(s.Title)
			s.Source = tree.StyleSourceMerged
		}
		seen[key] = true
		out = append(out, s)
		if len(out) == m.size {
			break
		}
	}
	if len(out) == 0 {
		m.log.Warn("Style merge returned no known styles; falling back to source order")
		out = truncateStyles(candidates, m.size)
	}
	return withIDs(out), nil
}

func stylesJSON(list []tree.Style) string {
	if len(list) == 0 {
		return ""
	}
	type wire struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		Example     string `json:"example"`
	}
	w := make([]wire, 0, len(list))
	for _, s := range list {
		w = append(w, wire{Title: s.Title, Description: s.Description, Example: s.Example})
	}
	b, err := json.Marshal(w)
	if err != nil {
		return ""
	}
	return string(b)
}

func truncateStyles(list []tree.Style, n int) []tree.Style {
	if len(list) > n {
		list = list[:n]
	}
	out := make([]tree.Style, len(list))
	copy(out, list)
	return out
}

func withIDs(list []tree.Style) []tree.Style {
	for i := range list {
		list[i].ID = tree.NewNodeID()
	}
	return list
}
