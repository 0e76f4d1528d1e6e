package apierr

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/yungbote/coursetree-backend/internal/domain/tree"
	pkgerrors "github.com/yungbote/coursetree-backend/internal/pkg/errors"
)

type Error struct {
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

// From maps a service error to its HTTP status and stable error code.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	switch {
	case errors.Is(err, tree.ErrInvalidSelection):
		return New(http.StatusBadRequest, "invalid_selection", err)
	case errors.Is(err, pkgerrors.ErrInvalidArgument):
		return New(http.StatusBadRequest, "invalid_argument", err)
	case errors.Is(err, pkgerrors.ErrUnauthorized):
		return New(http.StatusUnauthorized, "unauthorized", err)
	case errors.Is(err, tree.ErrSessionNotFound):
		return New(http.StatusNotFound, "session_not_found", err)
	case errors.Is(err, pkgerrors.ErrNotFound):
		return New(http.StatusNotFound, "not_found", err)
	case errors.Is(err, tree.ErrNotAwaitingSelection):
		return New(http.StatusConflict, "not_awaiting_selection", err)
	case errors.Is(err, tree.ErrVersionConflict):
		return New(http.StatusConflict, "version_conflict", err)
	case errors.Is(err, pkgerrors.ErrConflict):
		return New(http.StatusConflict, "conflict", err)
	case errors.Is(err, context.DeadlineExceeded):
		return New(http.StatusGatewayTimeout, "timeout", err)
	case errors.Is(err, tree.ErrStyleSourceFailure):
		return New(http.StatusBadGateway, "style_source_failure", err)
	case errors.Is(err, tree.ErrSchemaViolation):
		return New(http.StatusBadGateway, "schema_violation", err)
	default:
		return New(http.StatusInternalServerError, "internal", err)
	}
}
