package book

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"

	"github.com/yungbote/coursetree-backend/internal/domain/tree"
)

// Document renders n as a nested object whose children sit under the plural name of their level
// (a subject has "modules", a module has "lessons", and so on).
func Document(n *tree.Node) map[string]any {
	if n == nil {
		return nil
	}
	doc := map[string]any{
		"id":          n.ID,
		"level":       n.Level.String(),
		"title":       n.Title,
		"order":       n.Order,
		"mandatory":   n.Mandatory,
		"description": n.Description,
	}
	if n.Level == tree.LevelTopic {
		doc["content"] = n.Content
	}
	if next, ok := n.Level.Next(); ok && n.Children != nil {
		list := make([]map[string]any, 0, len(n.Children))
		for _, c := range n.Children {
			list = append(list, Document(c))
		}
		doc[next.Plural()] = list
	}
	return doc
}

// Render turns a finished session into a Book keyed by the session id.
func Render(s *tree.Session, now time.Time) (*tree.Book, error) {
	if s == nil || s.State != tree.StateDone || s.Tree == nil {
		return nil, fmt.Errorf("session is not finished")
	}
	content, err := json.Marshal(Document(s.Tree))
	if err != nil {
		return nil, fmt.Errorf("render book content: %w", err)
	}
	styles, err := json.Marshal(s.SelectedStyles)
	if err != nil {
		return nil, fmt.Errorf("render book styles: %w", err)
	}
	return &tree.Book{
		ID:          tree.NewNodeID(),
		SessionID:   s.ID,
		OwnerID:     s.OwnerID,
		Title:       s.Tree.Title,
		Description: s.Tree.Description,
		EntryLevel:  s.EntryLevel.String(),
		Styles:      datatypes.JSON(styles),
		Content:     datatypes.JSON(content),
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// Counts returns the number of nodes per level under root, root included.
func Counts(root *tree.Node) map[string]int {
	out := map[string]int{}
	root.Walk(func(n *tree.Node) bool {
		out[n.Level.Plural()]++
		return true
	})
	return out
}
