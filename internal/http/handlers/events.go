package handlers

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/coursetree-backend/internal/domain/tree"
	"github.com/yungbote/coursetree-backend/internal/http/response"
	"github.com/yungbote/coursetree-backend/internal/modules/tree/workflow"
	"github.com/yungbote/coursetree-backend/internal/platform/ctxutil"
	"github.com/yungbote/coursetree-backend/internal/platform/logger"
	"github.com/yungbote/coursetree-backend/internal/realtime"
	"github.com/yungbote/coursetree-backend/internal/services"
)

const eventSnapshot = "snapshot"

type EventsHandler struct {
	log      *logger.Logger
	hub      *realtime.Hub
	sessions services.SessionService
}

func NewEventsHandler(log *logger.Logger, hub *realtime.Hub, sessions services.SessionService) *EventsHandler {
	return &EventsHandler{
		log:      log.With("handler", "EventsHandler"),
		hub:      hub,
		sessions: sessions,
	}
}

// GET /api/sessions/:id/events
//
// Streams stage events for one session. The first event is the current snapshot; the stream
// closes after the session pauses for a selection or reaches a terminal stage.
func (h *EventsHandler) StreamSession(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	ctx := c.Request.Context()
	owner := ctxutil.OwnerID(ctx)
	sess, err := h.sessions.Get(ctx, id, owner)
	if err != nil {
		response.RespondErr(c, err)
		return
	}

	client := h.hub.NewClient(owner)
	defer h.hub.CloseClient(client)
	// The snapshot goes into the buffer before subscribing so it is always the first event.
	client.Outbound <- snapshotMessage(sess)
	if pausedOrFinished(sess) {
		h.hub.ServeHTTP(c.Writer, c.Request, client, func(realtime.Message) bool { return true })
		return
	}
	h.hub.AddChannel(client, id)

	// A stage that completed between the first read and subscribing shows up as a second snapshot.
	if fresh, err := h.sessions.Get(ctx, id, owner); err == nil && fresh.Version != sess.Version {
		sess = fresh
		select {
		case client.Outbound <- snapshotMessage(sess):
		default:
		}
	}

	h.log.Debug("Session stream open", "session_id", id, "client_id", client.ID)
	h.hub.ServeHTTP(c.Writer, c.Request, client, endsStream)
}

func snapshotMessage(sess *tree.Session) realtime.Message {
	return realtime.Message{Channel: sess.ID, Event: eventSnapshot, Data: sess, At: sess.UpdatedAt}
}

func pausedOrFinished(sess *tree.Session) bool {
	return sess.State.Terminal() || sess.State == tree.StateAwaitSelection
}

func endsStream(msg realtime.Message) bool {
	if snap, ok := msg.Data.(*tree.Session); ok && msg.Event == eventSnapshot {
		return pausedOrFinished(snap)
	}
	switch msg.Event {
	case workflow.StageAwaitSelection, workflow.StageDone, workflow.StageFailed, workflow.StageTerminate:
		return true
	}
	return false
}
