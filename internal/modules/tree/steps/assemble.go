package steps

import (
	"fmt"

	"github.com/yungbote/coursetree-backend/internal/domain/tree"
)

const StageAssemble = "assemble"

// Assemble nests the per-level results under root, attaching Topic lists first and moving up one
// level at a time, so every node is attached only after its own children are. Inputs are never
// mutated, so repeated calls on the same inputs yield equal trees.
func Assemble(entry tree.Level, root *tree.Node, levels map[tree.Level]tree.LevelResultMap) (*tree.Node, error) {
	if root == nil {
		return nil, fmt.Errorf("assemble: missing root")
	}
	chain := tree.Chain(entry)
	for _, l := range chain {
		if _, ok := levels[l]; !ok {
			return nil, fmt.Errorf("assemble: level %s has not been generated", l)
		}
	}

	// attached[parentID] holds the fully nested children of that parent.
	attached := map[string][]*tree.Node{}
	for i := len(chain) - 1; i >= 0; i-- {
		next := make(map[string][]*tree.Node, len(levels[chain[i]]))
		for parentID, children := range levels[chain[i]] {
			list := make([]*tree.Node, 0, len(children))
			for _, c := range children {
				n := c.Shallow()
				if sub, ok := attached[c.ID]; ok {
					n.Children = sub
				}
				list = append(list, n)
			}
			next[parentID] = list
		}
		attached = next
	}

	out := root.Shallow()
	if len(chain) > 0 {
		out.Children = attached[root.ID]
	}
	return out, nil
}
