// Package oracletest provides a scripted oracle for stage and workflow tests.
package oracletest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/yungbote/coursetree-backend/internal/modules/tree/oracle"
	"github.com/yungbote/coursetree-backend/internal/modules/tree/prompts"
)

// Handler returns the raw JSON-shaped response for one call.
type Handler func(ctx context.Context, in prompts.Input) (map[string]any, error)

// Caller answers oracle calls from per-prompt handlers and validates every answer
// against the registered schema, like the production oracle does.
type Caller struct {
	mu       sync.Mutex
	handlers map[prompts.PromptName]Handler
	calls    map[prompts.PromptName]int
	inputs   map[prompts.PromptName][]prompts.Input
}

func New() *Caller {
	return &Caller{
		handlers: map[prompts.PromptName]Handler{},
		calls:    map[prompts.PromptName]int{},
		inputs:   map[prompts.PromptName][]prompts.Input{},
	}
}

func (c *Caller) On(name prompts.PromptName, h Handler) *Caller {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[name] = h
	return c
}

func (c *Caller) Calls(name prompts.PromptName) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[name]
}

func (c *Caller) Inputs(name prompts.PromptName) []prompts.Input {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]prompts.Input, len(c.inputs[name]))
	copy(out, c.inputs[name])
	return out
}

func (c *Caller) Call(ctx context.Context, name prompts.PromptName, in prompts.Input, out any) error {
	c.mu.Lock()
	h := c.handlers[name]
	c.calls[name]++
	c.inputs[name] = append(c.inputs[name], in)
	c.mu.Unlock()
	if h == nil {
		return fmt.Errorf("oracletest: no handler for %s", name)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := prompts.Build(name, in); err != nil {
		return err
	}
	obj, err := h(ctx, in)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(obj)
	if err != nil {
		return err
	}
	var generic map[string]any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return err
	}
	schemaName, schema, _ := prompts.Schema(name)
	if err := oracle.Validate(schemaName, schema, generic); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(raw, out)
}

// Styles builds a StyleListResult payload with n styles titled prefix-1..prefix-n.
func Styles(prefix string, n int) map[string]any {
	list := make([]any, 0, n)
	for i := 1; i <= n; i++ {
		list = append(list, map[string]any{
			"title":       fmt.Sprintf("%s-%d", prefix, i),
			"description": fmt.Sprintf("how %s-%d explains things", prefix, i),
			"example":     fmt.Sprintf("a worked passage in the %s-%d voice", prefix, i),
		})
	}
	return map[string]any{"styles": list}
}

// Children builds a ChildListResult payload with n children.
func Children(prefix string, n int, content bool) map[string]any {
	list := make([]any, 0, n)
	for i := 1; i <= n; i++ {
		c := ""
		if content {
			c = fmt.Sprintf("%s-%d body", prefix, i)
		}
		list = append(list, map[string]any{
			"title":       fmt.Sprintf("%s-%d", prefix, i),
			"order":       i,
			"mandatory":   i == 1,
			"description": fmt.Sprintf("%s-%d description", prefix, i),
			"content":     c,
		})
	}
	return map[string]any{"children": list}
}
