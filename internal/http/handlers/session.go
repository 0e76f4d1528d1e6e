package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/coursetree-backend/internal/domain/tree"
	"github.com/yungbote/coursetree-backend/internal/http/response"
	"github.com/yungbote/coursetree-backend/internal/platform/ctxutil"
	"github.com/yungbote/coursetree-backend/internal/services"
)

type SessionHandler struct {
	sessions services.SessionService
}

func NewSessionHandler(sessions services.SessionService) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

type startSessionRequest struct {
	Input string `json:"input"`
}

// POST /api/sessions
func (h *SessionHandler) StartSession(c *gin.Context) {
	var req startSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	ctx := c.Request.Context()
	sess, err := h.sessions.Start(ctx, req.Input, ctxutil.OwnerID(ctx))
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	ctxutil.SetSessionID(ctx, sess.ID)
	response.RespondAccepted(c, gin.H{"session": sess})
}

// GET /api/sessions/:id
func (h *SessionHandler) GetSession(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	ctx := c.Request.Context()
	sess, err := h.sessions.Get(ctx, id, ctxutil.OwnerID(ctx))
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"session": sess})
}

// POST /api/sessions/:id/selection
func (h *SessionHandler) SubmitSelection(c *gin.Context) {
	var sel tree.Selection
	if err := c.ShouldBindJSON(&sel); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	id := strings.TrimSpace(c.Param("id"))
	ctx := c.Request.Context()
	sess, err := h.sessions.Resume(ctx, id, ctxutil.OwnerID(ctx), sel)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondAccepted(c, gin.H{"session": sess})
}

// GET /api/example?goal=...
func (h *SessionHandler) PreviewExample(c *gin.Context) {
	p, err := h.sessions.Preview(c.Request.Context(), c.Query("goal"))
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, p)
}
