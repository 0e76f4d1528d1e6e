package bus

import (
	"context"

	"github.com/yungbote/coursetree-backend/internal/modules/tree/workflow"
	"github.com/yungbote/coursetree-backend/internal/platform/logger"
	"github.com/yungbote/coursetree-backend/internal/realtime"
)

// Bus carries stage events between processes so any replica can serve a session's SSE stream.
type Bus interface {
	Publish(ctx context.Context, msg realtime.Message) error
	StartForwarder(ctx context.Context, onMsg func(m realtime.Message)) error
	Close() error
}

// Observer publishes workflow stage events on a Bus, one channel per session.
type Observer struct {
	Bus Bus
	Log *logger.Logger
}

func (o Observer) OnStage(ctx context.Context, ev workflow.Event) {
	if o.Bus == nil {
		return
	}
	if err := o.Bus.Publish(context.WithoutCancel(ctx), MessageFromEvent(ev)); err != nil && o.Log != nil {
		o.Log.Warn("publish stage event failed", "session_id", ev.SessionID, "stage", ev.Stage, "error", err)
	}
}

func MessageFromEvent(ev workflow.Event) realtime.Message {
	return realtime.Message{
		Channel: ev.SessionID,
		Event:   ev.Stage,
		Data:    ev.Result,
		At:      ev.At,
	}
}
