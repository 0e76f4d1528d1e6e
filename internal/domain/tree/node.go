package tree

import "github.com/google/uuid"

// Node is one element of the content hierarchy. Children stays nil until the assembler attaches them.
type Node struct {
	ID          string  `json:"id"`
	Level       Level   `json:"level"`
	Title       string  `json:"title"`
	Order       int     `json:"order"`
	Mandatory   bool    `json:"mandatory"`
	Description string  `json:"description"`
	Content     string  `json:"content,omitempty"`
	Children    []*Node `json:"children,omitempty"`
}

// NewNodeID returns a fresh identifier for a node created by a stage.
func NewNodeID() string {
	return uuid.NewString()
}

// Shallow copies n without its children.
func (n *Node) Shallow() *Node {
	if n == nil {
		return nil
	}
	out := *n
	out.Children = nil
	return &out
}

// Walk visits n and its descendants depth-first; returning false from fn prunes that subtree.
func (n *Node) Walk(fn func(*Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	for _, c := range n.Children {
		c.Walk(fn)
	}
}

// LevelResultMap maps a parent node id to the children generated for it, in oracle order.
type LevelResultMap map[string][]*Node

// Style is a candidate presentation style for generated content.
type Style struct {
	ID          string `json:"id,omitempty"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Example     string `json:"example"`
	Source      string `json:"source,omitempty"`
}

const (
	StyleSourceModel  = "model"
	StyleSourceWeb    = "web"
	StyleSourceMerged = "merged"
)

// Example is the representative subject picked for a goal before style discovery.
type Example struct {
	Subject     string `json:"subject"`
	Description string `json:"description"`
}
