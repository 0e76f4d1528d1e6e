package workflow

import (
	"context"
	"time"

	"github.com/yungbote/coursetree-backend/internal/platform/logger"
)

// Stage names emitted to observers besides the step stages.
const (
	StageTerminate      = "terminate"
	StageAwaitSelection = "await_selection"
	StageRoute          = "route"
	StageDone           = "done"
	StageFailed         = "failed"
)

// Event is emitted once per completed stage.
type Event struct {
	SessionID string    `json:"session_id"`
	Stage     string    `json:"stage"`
	Result    any       `json:"result,omitempty"`
	At        time.Time `json:"at"`
}

// Observer receives one-way progress notifications. It must not block the engine for long.
type Observer interface {
	OnStage(ctx context.Context, ev Event)
}

type ObserverFunc func(ctx context.Context, ev Event)

func (f ObserverFunc) OnStage(ctx context.Context, ev Event) { f(ctx, ev) }

// Observers fans an event out in order.
type Observers []Observer

func (os Observers) OnStage(ctx context.Context, ev Event) {
	for _, o := range os {
		if o != nil {
			o.OnStage(ctx, ev)
		}
	}
}

// LogObserver writes each event at debug level.
type LogObserver struct {
	Log *logger.Logger
}

func (o LogObserver) OnStage(ctx context.Context, ev Event) {
	if o.Log == nil {
		return
	}
	o.Log.Debug("Stage completed", "session_id", ev.SessionID, "stage", ev.Stage)
}

