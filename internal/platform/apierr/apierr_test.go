package apierr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/yungbote/coursetree-backend/internal/domain/tree"
	pkgerrors "github.com/yungbote/coursetree-backend/internal/pkg/errors"
)

func TestFrom(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"invalid selection", &tree.InvalidSelectionError{Indices: []int{7}, ShortlistLen: 5}, http.StatusBadRequest, "invalid_selection"},
		{"invalid argument", fmt.Errorf("input required: %w", pkgerrors.ErrInvalidArgument), http.StatusBadRequest, "invalid_argument"},
		{"session not found", tree.ErrSessionNotFound, http.StatusNotFound, "session_not_found"},
		{"not found", pkgerrors.ErrNotFound, http.StatusNotFound, "not_found"},
		{"not awaiting", fmt.Errorf("session s1 is done: %w", tree.ErrNotAwaitingSelection), http.StatusConflict, "not_awaiting_selection"},
		{"version conflict", tree.ErrVersionConflict, http.StatusConflict, "version_conflict"},
		{"other", errors.New("boom"), http.StatusInternalServerError, "internal"},
		{"passthrough", New(http.StatusTeapot, "teapot", nil), http.StatusTeapot, "teapot"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ae := From(tc.err)
			if ae.Status != tc.status || ae.Code != tc.code {
				t.Fatalf("want %d/%s got %d/%s", tc.status, tc.code, ae.Status, ae.Code)
			}
		})
	}
	if From(nil) != nil {
		t.Fatalf("nil error should map to nil")
	}
}
