package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/yungbote/coursetree-backend/internal/domain/tree"
	"github.com/yungbote/coursetree-backend/internal/modules/tree/steps"
	"github.com/yungbote/coursetree-backend/internal/modules/tree/workflow"
	pkgerrors "github.com/yungbote/coursetree-backend/internal/pkg/errors"
	"github.com/yungbote/coursetree-backend/internal/platform/logger"
)

const maxInputRunes = 2000

// SessionCounter counts sessions by lifecycle event.
type SessionCounter interface {
	IncSession(state string)
}

type Preview struct {
	Example *tree.Example `json:"example"`
	Styles  []tree.Style  `json:"styles"`
}

type SessionService interface {
	Start(ctx context.Context, input, owner string) (*tree.Session, error)
	Resume(ctx context.Context, id, owner string, sel tree.Selection) (*tree.Session, error)
	Get(ctx context.Context, id, owner string) (*tree.Session, error)
	Preview(ctx context.Context, goal string) (*Preview, error)
}

type sessionService struct {
	log     *logger.Logger
	engine  *workflow.Engine
	runner  SessionRunner
	example *steps.ExampleSelector
	model   *steps.ModelStyles
	counter SessionCounter
}

func NewSessionService(
	baseLog *logger.Logger,
	engine *workflow.Engine,
	runner SessionRunner,
	example *steps.ExampleSelector,
	model *steps.ModelStyles,
	counter SessionCounter,
) SessionService {
	return &sessionService{
		log:     baseLog.With("service", "SessionService"),
		engine:  engine,
		runner:  runner,
		example: example,
		model:   model,
		counter: counter,
	}
}

// Start stores a new session and hands it to the runner; the returned snapshot is still at classify.
func (s *sessionService) Start(ctx context.Context, input, owner string) (*tree.Session, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, fmt.Errorf("input required: %w", pkgerrors.ErrInvalidArgument)
	}
	if len([]rune(input)) > maxInputRunes {
		return nil, fmt.Errorf("input longer than %d characters: %w", maxInputRunes, pkgerrors.ErrInvalidArgument)
	}
	id := uuid.NewString()
	sess, err := s.engine.Create(ctx, id, input, owner)
	if err != nil {
		return nil, err
	}
	if err := s.runner.Launch(ctx, id); err != nil {
		return nil, fmt.Errorf("launch session %s: %w", id, err)
	}
	if s.counter != nil {
		s.counter.IncSession("started")
	}
	s.log.Info("Session started", "session_id", id, "input", input)
	return sess, nil
}

// Resume validates the selection synchronously and continues generation in the background.
func (s *sessionService) Resume(ctx context.Context, id, owner string, sel tree.Selection) (*tree.Session, error) {
	if _, err := s.Get(ctx, id, owner); err != nil {
		return nil, err
	}
	sess, err := s.engine.Select(ctx, id, sel)
	if err != nil {
		return sess, err
	}
	if err := s.runner.Launch(ctx, id); err != nil {
		return sess, fmt.Errorf("launch session %s: %w", id, err)
	}
	if s.counter != nil {
		s.counter.IncSession("resumed")
	}
	return sess, nil
}

// Get hides sessions owned by someone else behind not found.
func (s *sessionService) Get(ctx context.Context, id, owner string) (*tree.Session, error) {
	sess, err := s.engine.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ownerMatches(sess.OwnerID, owner) {
		return nil, tree.ErrSessionNotFound
	}
	return sess, nil
}

// Preview runs example selection and model style discovery for a goal without creating a session.
func (s *sessionService) Preview(ctx context.Context, goal string) (*Preview, error) {
	goal = strings.TrimSpace(goal)
	if goal == "" {
		return nil, fmt.Errorf("goal required: %w", pkgerrors.ErrInvalidArgument)
	}
	ex, err := s.example.Select(ctx, goal, "")
	if err != nil {
		s.log.Warn("Example selection failed; using goal", "error", err)
		ex = steps.FallbackExample(goal, "")
	}
	styles, err := s.model.Generate(ctx, ex)
	if err != nil {
		return nil, err
	}
	return &Preview{Example: ex, Styles: styles}, nil
}

func ownerMatches(resourceOwner, requester string) bool {
	return resourceOwner == "" || requester == "" || resourceOwner == requester
}
