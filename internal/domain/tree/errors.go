package tree

import (
	"errors"
	"fmt"
	"strings"

	pkgerrors "github.com/yungbote/coursetree-backend/internal/pkg/errors"
)

var (
	ErrClassificationFailure = errors.New("classification failure")
	ErrStyleSourceFailure    = errors.New("style source failure")
	ErrFanoutPartialFailure  = errors.New("fanout partial failure")
	ErrFanoutTotalFailure    = errors.New("fanout total failure")
	ErrInvalidSelection      = errors.New("invalid selection")
	ErrSchemaViolation       = errors.New("schema violation")

	ErrSessionNotFound      = fmt.Errorf("session %w", pkgerrors.ErrNotFound)
	ErrNotAwaitingSelection = fmt.Errorf("session is not awaiting a selection: %w", pkgerrors.ErrConflict)
	ErrVersionConflict      = fmt.Errorf("checkpoint version %w", pkgerrors.ErrConflict)
	ErrSessionTerminated    = errors.New("session terminated")
)

var kinds = []struct {
	err  error
	name string
}{
	{ErrClassificationFailure, "classification_failure"},
	{ErrStyleSourceFailure, "style_source_failure"},
	{ErrFanoutTotalFailure, "fanout_total_failure"},
	{ErrFanoutPartialFailure, "fanout_partial_failure"},
	{ErrInvalidSelection, "invalid_selection"},
	{ErrSchemaViolation, "schema_violation"},
}

// KindName returns the taxonomy name of err, or "internal" when it carries no known kind.
func KindName(err error) string {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.name
		}
	}
	if errors.Is(err, pkgerrors.ErrConflict) {
		return "conflict"
	}
	return "internal"
}

// StageError locates a failure inside the workflow.
type StageError struct {
	Kind     error
	Stage    string
	Level    Level
	ParentID string
	Err      error
}

func (e *StageError) Error() string {
	var b strings.Builder
	if e.Kind != nil {
		b.WriteString(e.Kind.Error())
	} else {
		b.WriteString("stage failure")
	}
	if e.Stage != "" {
		fmt.Fprintf(&b, " (stage=%s", e.Stage)
		if e.Level != LevelNone {
			fmt.Fprintf(&b, " level=%s", e.Level)
		}
		if e.ParentID != "" {
			fmt.Fprintf(&b, " parent=%s", e.ParentID)
		}
		b.WriteString(")")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *StageError) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// SchemaError describes why an oracle response did not match the requested shape.
type SchemaError struct {
	Schema string
	Path   string
	Reason string
}

func (e *SchemaError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %s", e.Schema, e.Reason)
	}
	return fmt.Sprintf("%s: %s: %s", e.Schema, e.Path, e.Reason)
}

func (e *SchemaError) Unwrap() error { return ErrSchemaViolation }

// InvalidSelectionError lists the selection entries that do not resolve against the shortlist.
type InvalidSelectionError struct {
	Indices      []int
	IDs          []string
	ShortlistLen int
}

func (e *InvalidSelectionError) Error() string {
	parts := make([]string, 0, 2)
	if len(e.Indices) > 0 {
		parts = append(parts, fmt.Sprintf("indices %v out of range [0,%d)", e.Indices, e.ShortlistLen))
	}
	if len(e.IDs) > 0 {
		parts = append(parts, fmt.Sprintf("unknown style ids %v", e.IDs))
	}
	if len(parts) == 0 {
		return ErrInvalidSelection.Error()
	}
	return ErrInvalidSelection.Error() + ": " + strings.Join(parts, "; ")
}

func (e *InvalidSelectionError) Unwrap() []error {
	return []error{ErrInvalidSelection, pkgerrors.ErrInvalidArgument}
}
