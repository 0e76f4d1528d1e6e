package runtime

import (
	"strings"
	"time"
)

/*
WaitpointAction is one choice offered to the external actor.
Token is what the actor sends back to pick it.
*/
type WaitpointAction struct {
	ID      string `json:"id"`
	Label   string `json:"label,omitempty"`
	Token   string `json:"token,omitempty"`
	Variant string `json:"variant,omitempty"`
}

/*
WaitpointSpec describes what a suspended run is waiting for.
Blocking=true means nothing advances until the actor answers.
*/
type WaitpointSpec struct {
	Version  int               `json:"version"`
	Kind     string            `json:"kind"`
	Step     string            `json:"step,omitempty"`
	Blocking bool              `json:"blocking"`
	ThreadID string            `json:"thread_id,omitempty"`
	Actions  []WaitpointAction `json:"actions,omitempty"`
}

// WaitpointState tracks answers the run has already seen.
type WaitpointState struct {
	Version    int        `json:"version"`
	Attempts   int        `json:"attempts,omitempty"`
	OpenedAt   time.Time  `json:"opened_at"`
	AnsweredAt *time.Time `json:"answered_at,omitempty"`
}

/*
WaitpointEnvelope is persisted with the checkpoint while the run is suspended.
*/
type WaitpointEnvelope struct {
	Waitpoint WaitpointSpec  `json:"waitpoint"`
	State     WaitpointState `json:"state"`
	Message   string         `json:"message,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
}

// OpenWaitpoint builds a blocking envelope, filling defaults the way every caller expects.
func OpenWaitpoint(spec WaitpointSpec, msg string, data map[string]any, now time.Time) *WaitpointEnvelope {
	if spec.Version <= 0 {
		spec.Version = 1
	}
	if strings.TrimSpace(spec.Kind) == "" {
		spec.Kind = "unknown"
	}
	if strings.TrimSpace(msg) == "" {
		msg = "Waiting for your response..."
	}
	spec.Blocking = true
	return &WaitpointEnvelope{
		Waitpoint: spec,
		State:     WaitpointState{Version: 1, OpenedAt: now},
		Message:   msg,
		Data:      data,
	}
}

// Close marks the waitpoint answered.
func (e *WaitpointEnvelope) Close(now time.Time) {
	if e == nil {
		return
	}
	e.State.Attempts++
	e.State.AnsweredAt = &now
	e.Waitpoint.Blocking = false
}
