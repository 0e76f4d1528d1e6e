package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/coursetree-backend/internal/domain/tree"
	"github.com/yungbote/coursetree-backend/internal/modules/tree/workflow"
	pkgerrors "github.com/yungbote/coursetree-backend/internal/pkg/errors"
	"github.com/yungbote/coursetree-backend/internal/platform/ctxutil"
	"github.com/yungbote/coursetree-backend/internal/platform/logger"
	"github.com/yungbote/coursetree-backend/internal/realtime"
	"github.com/yungbote/coursetree-backend/internal/services"
)

func mustTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	t.Cleanup(log.Sync)
	return log
}

type fakeSessions struct {
	sessions map[string]*tree.Session
	lastSel  tree.Selection
}

func (f *fakeSessions) Start(ctx context.Context, input, owner string) (*tree.Session, error) {
	if strings.TrimSpace(input) == "" {
		return nil, fmt.Errorf("input required: %w", pkgerrors.ErrInvalidArgument)
	}
	s := tree.NewSession("s-new", input, owner, time.Now())
	f.sessions[s.ID] = s
	return s, nil
}

func (f *fakeSessions) Resume(ctx context.Context, id, owner string, sel tree.Selection) (*tree.Session, error) {
	s, err := f.Get(ctx, id, owner)
	if err != nil {
		return nil, err
	}
	if s.State != tree.StateAwaitSelection {
		return nil, fmt.Errorf("session %s is %s: %w", id, s.State, tree.ErrNotAwaitingSelection)
	}
	if _, err := sel.Resolve(s.Shortlist); err != nil {
		return s, err
	}
	f.lastSel = sel
	return s, nil
}

func (f *fakeSessions) Get(ctx context.Context, id, owner string) (*tree.Session, error) {
	s, ok := f.sessions[id]
	if !ok || (s.OwnerID != "" && owner != "" && s.OwnerID != owner) {
		return nil, tree.ErrSessionNotFound
	}
	return s, nil
}

func (f *fakeSessions) Preview(ctx context.Context, goal string) (*services.Preview, error) {
	if goal == "" {
		return nil, fmt.Errorf("goal required: %w", pkgerrors.ErrInvalidArgument)
	}
	return &services.Preview{Example: &tree.Example{Subject: goal}}, nil
}

func newFakeSessions() *fakeSessions {
	waiting := tree.NewSession("s-wait", "learn go", "alice", time.Now())
	waiting.State = tree.StateAwaitSelection
	waiting.Shortlist = []tree.Style{{ID: "a", Title: "Socratic"}, {ID: "b", Title: "Worked examples"}}
	done := tree.NewSession("s-done", "learn rust", "", time.Now())
	done.State = tree.StateDone
	return &fakeSessions{sessions: map[string]*tree.Session{waiting.ID: waiting, done.ID: done}}
}

func newTestRouter(t *testing.T, owner string, fs services.SessionService, hub *realtime.Hub) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if owner != "" {
			ctx := ctxutil.WithRequestData(c.Request.Context(), &ctxutil.RequestData{OwnerID: owner})
			c.Request = c.Request.WithContext(ctx)
		}
		c.Next()
	})
	sh := NewSessionHandler(fs)
	r.POST("/api/sessions", sh.StartSession)
	r.GET("/api/sessions/:id", sh.GetSession)
	r.POST("/api/sessions/:id/selection", sh.SubmitSelection)
	r.GET("/api/example", sh.PreviewExample)
	if hub != nil {
		eh := NewEventsHandler(mustTestLogger(t), hub, fs)
		r.GET("/api/sessions/:id/events", eh.StreamSession)
	}
	return r
}

func doJSON(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var env struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode error body %q: %v", w.Body.String(), err)
	}
	return env.Error.Code
}

func TestSessionHandler_StartAndGet(t *testing.T) {
	fs := newFakeSessions()
	r := newTestRouter(t, "alice", fs, nil)

	w := doJSON(r, http.MethodPost, "/api/sessions", `{"input":"learn go"}`)
	if w.Code != http.StatusAccepted {
		t.Fatalf("start: status %d body %s", w.Code, w.Body.String())
	}
	var out struct {
		Session tree.Session `json:"session"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Session.OwnerID != "alice" || out.Session.State != tree.StateClassify {
		t.Fatalf("unexpected session %+v", out.Session)
	}

	w = doJSON(r, http.MethodGet, "/api/sessions/"+out.Session.ID, "")
	if w.Code != http.StatusOK {
		t.Fatalf("get: status %d", w.Code)
	}
}

func TestSessionHandler_ErrorMapping(t *testing.T) {
	fs := newFakeSessions()
	cases := []struct {
		name   string
		owner  string
		method string
		path   string
		body   string
		status int
		code   string
	}{
		{"empty input", "alice", http.MethodPost, "/api/sessions", `{"input":"  "}`, http.StatusBadRequest, "invalid_argument"},
		{"malformed body", "alice", http.MethodPost, "/api/sessions", `{`, http.StatusBadRequest, "invalid_request"},
		{"unknown session", "alice", http.MethodGet, "/api/sessions/nope", "", http.StatusNotFound, "session_not_found"},
		{"other owner", "bob", http.MethodGet, "/api/sessions/s-wait", "", http.StatusNotFound, "session_not_found"},
		{"bad index", "alice", http.MethodPost, "/api/sessions/s-wait/selection", `{"indices":[5]}`, http.StatusBadRequest, "invalid_selection"},
		{"not awaiting", "alice", http.MethodPost, "/api/sessions/s-done/selection", `{"indices":[0]}`, http.StatusConflict, "not_awaiting_selection"},
		{"preview without goal", "alice", http.MethodGet, "/api/example", "", http.StatusBadRequest, "invalid_argument"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := newTestRouter(t, tc.owner, fs, nil)
			w := doJSON(r, tc.method, tc.path, tc.body)
			if w.Code != tc.status {
				t.Fatalf("status: want %d got %d body %s", tc.status, w.Code, w.Body.String())
			}
			if got := errorCode(t, w); got != tc.code {
				t.Fatalf("code: want %s got %s", tc.code, got)
			}
		})
	}
}

func TestSessionHandler_SubmitSelection(t *testing.T) {
	fs := newFakeSessions()
	r := newTestRouter(t, "alice", fs, nil)
	w := doJSON(r, http.MethodPost, "/api/sessions/s-wait/selection", `{"indices":[1],"ids":["a"]}`)
	if w.Code != http.StatusAccepted {
		t.Fatalf("status %d body %s", w.Code, w.Body.String())
	}
	if len(fs.lastSel.Indices) != 1 || fs.lastSel.Indices[0] != 1 || len(fs.lastSel.IDs) != 1 || fs.lastSel.IDs[0] != "a" {
		t.Fatalf("selection not forwarded: %+v", fs.lastSel)
	}
}

func TestEventsHandler_TerminalSessionSendsSnapshotOnly(t *testing.T) {
	fs := newFakeSessions()
	hub := realtime.NewHub(mustTestLogger(t))
	r := newTestRouter(t, "", fs, hub)

	w := doJSON(r, http.MethodGet, "/api/sessions/s-done/events", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "event: snapshot\n") {
		t.Fatalf("missing snapshot event: %q", body)
	}
	if hub.Subscribers("s-done") != 0 {
		t.Fatalf("client not released")
	}
}

func TestEventsHandler_StreamsUntilAwaitSelection(t *testing.T) {
	fs := newFakeSessions()
	fs.sessions["s-wait"].State = tree.StateStylePipeline
	hub := realtime.NewHub(mustTestLogger(t))
	r := newTestRouter(t, "alice", fs, hub)

	go func() {
		deadline := time.Now().Add(2 * time.Second)
		for hub.Subscribers("s-wait") == 0 && time.Now().Before(deadline) {
			time.Sleep(5 * time.Millisecond)
		}
		hub.Broadcast(realtime.Message{Channel: "s-wait", Event: "style_pipeline"})
		hub.Broadcast(realtime.Message{Channel: "s-wait", Event: workflow.StageAwaitSelection})
	}()

	w := doJSON(r, http.MethodGet, "/api/sessions/s-wait/events", "")
	body := w.Body.String()
	for _, want := range []string{"event: snapshot\n", "event: style_pipeline\n", "event: await_selection\n"} {
		if !strings.Contains(body, want) {
			t.Fatalf("missing %q in %q", want, body)
		}
	}
}

func TestEventsHandler_RejectsOtherOwner(t *testing.T) {
	fs := newFakeSessions()
	hub := realtime.NewHub(mustTestLogger(t))
	r := newTestRouter(t, "mallory", fs, hub)
	w := doJSON(r, http.MethodGet, "/api/sessions/s-wait/events", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("status %d", w.Code)
	}
}
