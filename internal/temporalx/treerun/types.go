package treerun

import "github.com/yungbote/coursetree-backend/internal/domain/tree"

const (
	WorkflowName     = "tree_session"
	ActivityContinue = "tree_session_continue"
	ActivityFinish   = "tree_session_finish"
	SignalContinue   = "session_continue"

	workflowIDPrefix = "tree-session-"
)

// WorkflowID is deterministic so every launch of a session lands on the same execution.
func WorkflowID(sessionID string) string { return workflowIDPrefix + sessionID }

type ContinueResult struct {
	SessionID string     `json:"session_id"`
	State     tree.State `json:"state"`
	Version   int64      `json:"version"`
}
