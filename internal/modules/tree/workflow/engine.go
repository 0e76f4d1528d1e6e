package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/yungbote/coursetree-backend/internal/domain/tree"
	"github.com/yungbote/coursetree-backend/internal/jobs/orchestrator"
	jobrt "github.com/yungbote/coursetree-backend/internal/jobs/runtime"
	"github.com/yungbote/coursetree-backend/internal/modules/tree/steps"
	"github.com/yungbote/coursetree-backend/internal/platform/logger"
)

const waitpointKind = "style_selection"

type Deps struct {
	Log        *logger.Logger
	Store      Store
	Classifier *steps.Classifier
	Styles     *steps.StylePipeline
	Fanout     *steps.Fanout
	Observer   Observer
	Recorder   Recorder
	Now        func() time.Time
}

// Engine drives sessions through classify, style discovery, the selection waitpoint, per-level
// generation and assembly, checkpointing after every stage.
type Engine struct {
	log        *logger.Logger
	store      Store
	classifier *steps.Classifier
	styles     *steps.StylePipeline
	fanout     *steps.Fanout
	observer   Observer
	rec        Recorder
	now        func() time.Time
	tracer     trace.Tracer
	locks      keyedMutex
}

func New(d Deps) (*Engine, error) {
	if d.Log == nil || d.Store == nil || d.Classifier == nil || d.Styles == nil || d.Fanout == nil {
		return nil, fmt.Errorf("workflow: missing dependency")
	}
	if d.Now == nil {
		d.Now = func() time.Time { return time.Now().UTC() }
	}
	return &Engine{
		log:        d.Log.With("service", "WorkflowEngine"),
		store:      d.Store,
		classifier: d.Classifier,
		styles:     d.Styles,
		fanout:     d.Fanout,
		observer:   d.Observer,
		rec:        d.Recorder,
		now:        d.Now,
		tracer:     otel.Tracer("coursetree/workflow"),
	}, nil
}

// Start creates the session and runs it until it suspends at the selection waitpoint or ends.
// A ClassificationFailure is returned together with the failed session.
func (e *Engine) Start(ctx context.Context, id, input, owner string) (*tree.Session, error) {
	unlock := e.locks.Lock(id)
	defer unlock()

	s, err := e.create(ctx, id, input, owner)
	if err != nil {
		return nil, err
	}
	return s, e.advance(ctx, s)
}

// Create stores a new session positioned at classify without running it. Continue picks it up.
func (e *Engine) Create(ctx context.Context, id, input, owner string) (*tree.Session, error) {
	unlock := e.locks.Lock(id)
	defer unlock()
	return e.create(ctx, id, input, owner)
}

func (e *Engine) create(ctx context.Context, id, input, owner string) (*tree.Session, error) {
	s := tree.NewSession(id, input, owner, e.now())
	if err := e.store.Save(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

// Select validates sel against the shortlist and records it. An invalid selection leaves the
// stored session untouched and still suspended.
func (e *Engine) Select(ctx context.Context, id string, sel tree.Selection) (*tree.Session, error) {
	unlock := e.locks.Lock(id)
	defer unlock()
	return e.selectLocked(ctx, id, sel)
}

func (e *Engine) selectLocked(ctx context.Context, id string, sel tree.Selection) (*tree.Session, error) {
	s, err := e.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.State != tree.StateAwaitSelection {
		return s, fmt.Errorf("session %s is %s: %w", id, s.State, tree.ErrNotAwaitingSelection)
	}
	chosen, err := sel.Resolve(s.Shortlist)
	if err != nil {
		e.log.Warn("Selection rejected", "session_id", id, "error", err)
		return s, err
	}
	now := e.now()
	s.SelectedStyles = chosen
	s.Waitpoint.Close(now)
	s.Stages.Finish(StageAwaitSelection, orchestrator.StageSucceeded, nil, now, map[string]any{"selected": len(chosen)})
	s.State = tree.StateRoute
	if err := e.checkpoint(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

// Continue runs a stored session forward from its last checkpoint. It is a no-op for sessions
// that are suspended or finished.
func (e *Engine) Continue(ctx context.Context, id string) (*tree.Session, error) {
	unlock := e.locks.Lock(id)
	defer unlock()

	s, err := e.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	return s, e.advance(ctx, s)
}

// Resume is Select followed by Continue under one lock.
func (e *Engine) Resume(ctx context.Context, id string, sel tree.Selection) (*tree.Session, error) {
	unlock := e.locks.Lock(id)
	defer unlock()

	s, err := e.selectLocked(ctx, id, sel)
	if err != nil {
		return s, err
	}
	return s, e.advance(ctx, s)
}

// Get loads the current checkpoint.
func (e *Engine) Get(ctx context.Context, id string) (*tree.Session, error) {
	return e.store.Load(ctx, id)
}

func (e *Engine) advance(ctx context.Context, s *tree.Session) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		var err error
		switch s.State {
		case tree.StateClassify:
			err = e.runClassify(ctx, s)
		case tree.StateStylePipeline:
			err = e.runStyles(ctx, s)
		case tree.StateRoute:
			err = e.runRoute(ctx, s)
		case tree.StateGenerate:
			err = e.runGenerate(ctx, s)
		case tree.StateAssemble:
			err = e.runAssemble(ctx, s)
		case tree.StateAwaitSelection, tree.StateDone, tree.StateTerminated, tree.StateFailed:
			return nil
		default:
			return fmt.Errorf("session %s: unknown state %q", s.ID, s.State)
		}
		if err != nil {
			return err
		}
	}
}

func (e *Engine) runClassify(ctx context.Context, s *tree.Session) error {
	ctx, end := e.begin(ctx, s, steps.StageClassify)
	res, err := e.classifier.Classify(ctx, s.Input)
	end(err)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return e.fail(ctx, s, steps.StageClassify, err)
	}

	now := e.now()
	s.Goal = res.Goal
	s.Content = res.Content
	s.EntryLevel = res.Category
	s.Root = res.Root
	s.Stages.Finish(steps.StageClassify, orchestrator.StageSucceeded, nil, now, map[string]any{"category": res.Category.String()})
	if res.Category == tree.LevelNone {
		s.State = tree.StateTerminated
		if err := e.checkpoint(ctx, s); err != nil {
			return err
		}
		e.emit(ctx, s, steps.StageClassify, res)
		e.emit(ctx, s, StageTerminate, nil)
		return nil
	}
	s.State = tree.StateStylePipeline
	if err := e.checkpoint(ctx, s); err != nil {
		return err
	}
	e.emit(ctx, s, steps.StageClassify, res)
	return nil
}

func (e *Engine) runStyles(ctx context.Context, s *tree.Session) error {
	const stage = "style_pipeline"
	ctx, end := e.begin(ctx, s, stage)
	res, err := e.styles.Run(ctx, s.Goal, s.Content, func(name string, result any) {
		e.emit(ctx, s, name, result)
	})
	end(err)
	if err != nil {
		return err
	}

	now := e.now()
	s.Example = res.Example
	s.ModelStyles = res.ModelStyles
	s.WebStyles = res.WebStyles
	s.Shortlist = res.Shortlist
	if s.Shortlist == nil {
		s.Shortlist = []tree.Style{}
	}
	outputs := map[string]any{"shortlist": len(s.Shortlist)}
	if res.ModelErr != nil {
		outputs["model_error"] = res.ModelErr.Error()
	}
	if res.WebErr != nil {
		outputs["web_error"] = res.WebErr.Error()
	}
	s.Stages.Finish(stage, orchestrator.StageSucceeded, nil, now, outputs)

	msg := "Choose the presentation styles to write with."
	if len(s.Shortlist) == 0 {
		msg = "No styles available. Continue without a style."
	}
	actions := make([]jobrt.WaitpointAction, 0, len(s.Shortlist))
	for _, st := range s.Shortlist {
		actions = append(actions, jobrt.WaitpointAction{ID: st.ID, Label: st.Title, Token: st.ID})
	}
	s.Waitpoint = jobrt.OpenWaitpoint(jobrt.WaitpointSpec{
		Kind:     waitpointKind,
		Step:     StageAwaitSelection,
		ThreadID: s.ID,
		Actions:  actions,
	}, msg, map[string]any{"shortlist_size": len(s.Shortlist)}, now)
	s.Stages.EnsureStage(StageAwaitSelection).Status = orchestrator.StageWaiting
	s.State = tree.StateAwaitSelection
	if err := e.checkpoint(ctx, s); err != nil {
		return err
	}
	e.emit(ctx, s, StageAwaitSelection, s.Shortlist)
	return nil
}

func (e *Engine) runRoute(ctx context.Context, s *tree.Session) error {
	chain := tree.Chain(s.EntryLevel)
	for _, l := range tree.Levels() {
		if l <= s.EntryLevel {
			s.Stages.EnsureStage(steps.GenerateStage(l)).Status = orchestrator.StageSkipped
		}
	}
	if len(chain) == 0 {
		s.State = tree.StateAssemble
		s.NextLevel = tree.LevelNone
	} else {
		s.State = tree.StateGenerate
		s.NextLevel = chain[0]
	}
	if err := e.checkpoint(ctx, s); err != nil {
		return err
	}
	e.emit(ctx, s, StageRoute, map[string]any{"entry_level": s.EntryLevel, "levels": chain})
	return nil
}

func (e *Engine) runGenerate(ctx context.Context, s *tree.Session) error {
	level := s.NextLevel
	stage := steps.GenerateStage(level)
	parents := s.Parents(level)
	ctx, end := e.begin(ctx, s, stage)
	res, err := e.fanout.Generate(ctx, steps.FanoutRequest{
		Goal:    s.Goal,
		Level:   level,
		Parents: parents,
		Styles:  s.SelectedStyles,
	})
	end(err)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return e.fail(ctx, s, stage, err)
	}
	if e.rec != nil && len(res.Failed) > 0 {
		e.rec.ObserveFanoutFailures(level.String(), len(res.Failed))
	}

	s.SetLevelResult(level, res.Children)
	summary := res.Summary()
	s.Stages.Finish(stage, orchestrator.StageSucceeded, nil, e.now(), summary)
	if next, ok := level.Next(); ok {
		s.NextLevel = next
	} else {
		s.NextLevel = tree.LevelNone
		s.State = tree.StateAssemble
	}
	if err := e.checkpoint(ctx, s); err != nil {
		return err
	}
	e.emit(ctx, s, stage, summary)
	return nil
}

func (e *Engine) runAssemble(ctx context.Context, s *tree.Session) error {
	ctx, end := e.begin(ctx, s, steps.StageAssemble)
	root, err := steps.Assemble(s.EntryLevel, s.Root, s.Levels)
	end(err)
	if err != nil {
		return e.fail(ctx, s, steps.StageAssemble, err)
	}
	s.Tree = root
	s.Stages.Finish(steps.StageAssemble, orchestrator.StageSucceeded, nil, e.now(), nil)
	s.State = tree.StateDone
	if err := e.checkpoint(ctx, s); err != nil {
		return err
	}
	e.emit(ctx, s, steps.StageAssemble, root)
	e.emit(ctx, s, StageDone, map[string]any{"root_id": root.ID})
	return nil
}

// fail records a fatal stage error on the session and returns it to the caller.
func (e *Engine) fail(ctx context.Context, s *tree.Session, stage string, cause error) error {
	f := &tree.Failure{Kind: tree.KindName(cause), Stage: stage, Message: cause.Error()}
	var se *tree.StageError
	if errors.As(cause, &se) {
		f.Level = se.Level
		f.ParentID = se.ParentID
	}
	e.log.Error("Session failed",
		"session_id", s.ID,
		"stage", stage,
		"kind", f.Kind,
		"level", f.Level.String(),
		"error", cause,
	)
	s.Failure = f
	s.State = tree.StateFailed
	s.Stages.Finish(stage, orchestrator.StageFailed, cause, e.now(), nil)
	if err := e.checkpoint(ctx, s); err != nil {
		return errors.Join(cause, err)
	}
	e.emit(ctx, s, StageFailed, f)
	return cause
}

func (e *Engine) checkpoint(ctx context.Context, s *tree.Session) error {
	s.UpdatedAt = e.now()
	if err := e.store.Save(ctx, s); err != nil {
		return fmt.Errorf("checkpoint session %s at %s: %w", s.ID, s.State, err)
	}
	return nil
}

func (e *Engine) emit(ctx context.Context, s *tree.Session, stage string, result any) {
	if e.observer == nil {
		return
	}
	e.observer.OnStage(ctx, Event{SessionID: s.ID, Stage: stage, Result: result, At: e.now()})
}

// begin opens a span and marks the stage running; the returned func closes both.
func (e *Engine) begin(ctx context.Context, s *tree.Session, stage string) (context.Context, func(error)) {
	start := time.Now()
	s.Stages.Start(stage, e.now())
	ctx, span := e.tracer.Start(ctx, "stage."+stage, trace.WithAttributes(
		attribute.String("session.id", s.ID),
		attribute.String("stage", stage),
	))
	return ctx, func(err error) {
		outcome := "ok"
		if err != nil {
			outcome = tree.KindName(err)
			span.RecordError(err)
			span.SetStatus(codes.Error, outcome)
		}
		span.End()
		if e.rec != nil {
			e.rec.ObserveStage(stage, outcome, time.Since(start).Seconds())
		}
	}
}
