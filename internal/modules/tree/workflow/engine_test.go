package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/yungbote/coursetree-backend/internal/data/checkpoint"
	"github.com/yungbote/coursetree-backend/internal/domain/tree"
	"github.com/yungbote/coursetree-backend/internal/jobs/orchestrator"
	"github.com/yungbote/coursetree-backend/internal/modules/tree/oracle/oracletest"
	"github.com/yungbote/coursetree-backend/internal/modules/tree/prompts"
	"github.com/yungbote/coursetree-backend/internal/modules/tree/steps"
	"github.com/yungbote/coursetree-backend/internal/pkg/workpool"
	"github.com/yungbote/coursetree-backend/internal/platform/logger"
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

type noResults struct{}

func (noResults) Search(ctx context.Context, query string, limit int) ([]string, error) {
	return nil, errors.New("search quota exhausted")
}

func (noResults) Fetch(ctx context.Context, u string) (string, error) {
	return "", errors.New("unreachable")
}

type recorder struct {
	mu     sync.Mutex
	stages []string
}

func (r *recorder) OnStage(ctx context.Context, ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stages = append(r.stages, ev.Stage)
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.stages))
	copy(out, r.stages)
	return out
}

type harness struct {
	engine *Engine
	store  *checkpoint.MemoryStore
	oc     *oracletest.Caller
	obs    *recorder
}

func newHarness(t *testing.T, oc *oracletest.Caller) *harness {
	t.Helper()
	log := mustTestLogger(t)
	pool := workpool.New(10)
	styles := steps.NewStylePipeline(log,
		steps.NewExampleSelector(log, oc),
		steps.NewModelStyles(log, oc, 10),
		steps.NewWebStyles(log, oc, noResults{}, noResults{}, pool, steps.WebStylesConfig{Domains: []string{"velog.io"}}),
		steps.NewStyleMerger(log, oc, 5),
	)
	h := &harness{store: checkpoint.NewMemoryStore(), oc: oc, obs: &recorder{}}
	e, err := New(Deps{
		Log:        log,
		Store:      h.store,
		Classifier: steps.NewClassifier(log, oc),
		Styles:     styles,
		Fanout:     steps.NewFanout(log, oc, pool, orchestrator.RetryPolicy{MaxAttempts: 2, MinBackoff: time.Millisecond, MaxBackoff: time.Millisecond}),
		Observer:   h.obs,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	h.engine = e
	return h
}

// jpaOracle classifies to category and answers every other prompt with small valid payloads.
func jpaOracle(category string) *oracletest.Caller {
	return oracletest.New().
		On(prompts.PromptClassifyLevel, func(ctx context.Context, in prompts.Input) (map[string]any, error) {
			return map[string]any{"goal": "JPA 학습", "content": "JPA로 영속성을 다루는 법", "category": category}, nil
		}).
		On(prompts.PromptSelectExample, func(ctx context.Context, in prompts.Input) (map[string]any, error) {
			return map[string]any{"subject": "JPA", "description": "Java persistence"}, nil
		}).
		On(prompts.PromptModelStyles, func(ctx context.Context, in prompts.Input) (map[string]any, error) {
			return oracletest.Styles("model", in.Count), nil
		}).
		On(prompts.PromptMergeStyles, func(ctx context.Context, in prompts.Input) (map[string]any, error) {
			return oracletest.Styles("model", in.Count), nil
		}).
		On(prompts.PromptGenerateChildren, func(ctx context.Context, in prompts.Input) (map[string]any, error) {
			return oracletest.Children(in.ParentTitle+"/"+in.Level, 2, in.Level == "topic"), nil
		})
}

func TestEngine_LearnJPAEndToEnd(t *testing.T) {
	h := newHarness(t, jpaOracle("subject"))
	ctx := context.Background()

	s, err := h.engine.Start(ctx, "s1", "Learn JPA", "u1")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if s.State != tree.StateAwaitSelection || s.Goal != "JPA 학습" || s.EntryLevel != tree.LevelSubject {
		t.Fatalf("after start: state=%s goal=%q entry=%s", s.State, s.Goal, s.EntryLevel)
	}
	if len(s.Shortlist) != 5 || s.Waitpoint == nil || !s.Waitpoint.Waitpoint.Blocking {
		t.Fatalf("expected suspended with 5 styles: %+v", s.Shortlist)
	}

	s, err = h.engine.Resume(ctx, "s1", tree.Selection{Indices: []int{0, 2}})
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if s.State != tree.StateDone || s.Tree == nil {
		t.Fatalf("state=%s", s.State)
	}
	if len(s.SelectedStyles) != 2 || s.SelectedStyles[1].ID != s.Shortlist[2].ID {
		t.Fatalf("selected=%+v", s.SelectedStyles)
	}
	for _, l := range []tree.Level{tree.LevelProgram, tree.LevelCurriculum, tree.LevelSubject} {
		if _, ok := s.LevelResult(l); ok {
			t.Fatalf("level %s above the entry level was generated", l)
		}
	}
	if s.Tree.Level != tree.LevelSubject || len(s.Tree.Children) == 0 || s.Tree.Children[0].Level != tree.LevelModule {
		t.Fatalf("root should be a subject with modules: %+v", s.Tree)
	}

	ids := s.NodeIDs()
	seen := map[string]bool{}
	for _, id := range ids {
		if seen[id] {
			t.Fatalf("duplicate node id %s", id)
		}
		seen[id] = true
	}
	topics, walked := 0, 0
	s.Tree.Walk(func(n *tree.Node) bool {
		walked++
		if !seen[n.ID] {
			t.Fatalf("assembled node %s is not in the session", n.ID)
		}
		if n.Level == tree.LevelTopic {
			topics++
			if n.Content == "" {
				t.Fatalf("topic %s has no content", n.Title)
			}
		}
		return true
	})
	if topics != 8 {
		t.Fatalf("topics=%d want 8", topics)
	}
	if walked != len(ids) {
		t.Fatalf("assembled %d nodes, session knows %d", walked, len(ids))
	}

	for _, in := range h.oc.Inputs(prompts.PromptGenerateChildren) {
		if in.StylesJSON == "" {
			t.Fatalf("generation call without selected styles")
		}
	}

	stored, err := h.store.Load(ctx, "s1")
	if err != nil || stored.State != tree.StateDone {
		t.Fatalf("stored state=%v err=%v", stored, err)
	}
}

func TestEngine_NoneTerminates(t *testing.T) {
	h := newHarness(t, jpaOracle("none"))
	s, err := h.engine.Start(context.Background(), "s1", "hi there", "")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if s.State != tree.StateTerminated || len(s.Levels) != 0 || s.Root != nil {
		t.Fatalf("expected terminal session without levels: %+v", s)
	}
	if got := h.obs.list(); len(got) != 2 || got[0] != steps.StageClassify || got[1] != StageTerminate {
		t.Fatalf("stages=%v", got)
	}
	if h.oc.Calls(prompts.PromptModelStyles) != 0 {
		t.Fatalf("style pipeline ran for a terminated session")
	}
}

func TestEngine_ClassificationFailureIsFatal(t *testing.T) {
	oc := oracletest.New().On(prompts.PromptClassifyLevel, func(ctx context.Context, in prompts.Input) (map[string]any, error) {
		return map[string]any{"goal": "x"}, nil
	})
	h := newHarness(t, oc)
	s, err := h.engine.Start(context.Background(), "s1", "x", "")
	if !errors.Is(err, tree.ErrClassificationFailure) {
		t.Fatalf("expected classification failure, got %v", err)
	}
	if s.State != tree.StateFailed || s.Failure == nil || s.Failure.Stage != steps.StageClassify {
		t.Fatalf("session=%+v", s)
	}
	if oc.Calls(prompts.PromptClassifyLevel) != 1 {
		t.Fatalf("classifier retried")
	}
}

func TestEngine_InvalidSelectionLeavesSessionSuspended(t *testing.T) {
	h := newHarness(t, jpaOracle("subject"))
	ctx := context.Background()
	if _, err := h.engine.Start(ctx, "s1", "Learn JPA", ""); err != nil {
		t.Fatalf("Start: %v", err)
	}
	before, _ := h.store.Load(ctx, "s1")

	_, err := h.engine.Resume(ctx, "s1", tree.Selection{Indices: []int{7, 1}})
	var ise *tree.InvalidSelectionError
	if !errors.Is(err, tree.ErrInvalidSelection) || !errors.As(err, &ise) || len(ise.Indices) != 1 || ise.Indices[0] != 7 {
		t.Fatalf("expected invalid selection for index 7, got %v", err)
	}

	after, _ := h.store.Load(ctx, "s1")
	if after.State != tree.StateAwaitSelection || after.Version != before.Version || after.SelectedStyles != nil {
		t.Fatalf("session modified: state=%s version %d->%d", after.State, before.Version, after.Version)
	}
	if h.oc.Calls(prompts.PromptGenerateChildren) != 0 {
		t.Fatalf("generation started after an invalid selection")
	}

	if _, err := h.engine.Resume(ctx, "s1", tree.Selection{IDs: []string{after.Shortlist[4].ID}}); err != nil {
		t.Fatalf("corrected resume: %v", err)
	}
}

func TestEngine_SelectRequiresSuspension(t *testing.T) {
	h := newHarness(t, jpaOracle("topic"))
	ctx := context.Background()
	if _, err := h.engine.Start(ctx, "s1", "what is @Entity", ""); err != nil {
		t.Fatalf("Start: %v", err)
	}
	s, err := h.engine.Resume(ctx, "s1", tree.Selection{})
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if s.State != tree.StateDone || s.Tree == nil || len(s.Tree.Children) != 0 || len(s.Levels) != 0 {
		t.Fatalf("topic entry should finish with a root-only tree: %+v", s)
	}
	if _, err := h.engine.Select(ctx, "s1", tree.Selection{}); !errors.Is(err, tree.ErrNotAwaitingSelection) {
		t.Fatalf("expected not awaiting selection, got %v", err)
	}
}

func TestEngine_EmptyShortlistCanStillContinue(t *testing.T) {
	oc := jpaOracle("lesson").
		On(prompts.PromptModelStyles, func(ctx context.Context, in prompts.Input) (map[string]any, error) {
			return nil, errors.New("model down")
		})
	h := newHarness(t, oc)
	ctx := context.Background()
	s, err := h.engine.Start(ctx, "s1", "JPA lesson", "")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if s.State != tree.StateAwaitSelection || len(s.Shortlist) != 0 {
		t.Fatalf("expected empty shortlist awaiting selection: %+v", s.Shortlist)
	}
	if _, err := h.engine.Resume(ctx, "s1", tree.Selection{Indices: []int{0}}); !errors.Is(err, tree.ErrInvalidSelection) {
		t.Fatalf("expected invalid selection on empty shortlist, got %v", err)
	}
	s, err = h.engine.Resume(ctx, "s1", tree.Selection{})
	if err != nil || s.State != tree.StateDone {
		t.Fatalf("state=%v err=%v", s, err)
	}
}

func TestEngine_PartialFanoutFailureContinues(t *testing.T) {
	oc := jpaOracle("subject").
		On(prompts.PromptGenerateChildren, func(ctx context.Context, in prompts.Input) (map[string]any, error) {
			if in.Level == "lesson" && in.ParentTitle == "JPA 학습/module-2" {
				return nil, errors.New("oracle unavailable")
			}
			return oracletest.Children(in.ParentTitle+"/"+in.Level, 2, in.Level == "topic"), nil
		})
	h := newHarness(t, oc)
	ctx := context.Background()
	if _, err := h.engine.Start(ctx, "s1", "Learn JPA", ""); err != nil {
		t.Fatalf("Start: %v", err)
	}
	s, err := h.engine.Resume(ctx, "s1", tree.Selection{Indices: []int{0}})
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}
	lessons, _ := s.LevelResult(tree.LevelLesson)
	if len(lessons) != 2 {
		t.Fatalf("lesson map keys=%d want 2", len(lessons))
	}
	if s.State != tree.StateDone || len(s.Tree.Children[1].Children) != 0 || len(s.Tree.Children[0].Children) != 2 {
		t.Fatalf("unexpected tree after partial failure")
	}
}

func TestEngine_TotalFanoutFailureFailsSession(t *testing.T) {
	oc := jpaOracle("module").
		On(prompts.PromptGenerateChildren, func(ctx context.Context, in prompts.Input) (map[string]any, error) {
			if in.Level == "topic" {
				return nil, errors.New("oracle unavailable")
			}
			return oracletest.Children("lesson", 2, false), nil
		})
	h := newHarness(t, oc)
	ctx := context.Background()
	if _, err := h.engine.Start(ctx, "s1", "JPA mapping", ""); err != nil {
		t.Fatalf("Start: %v", err)
	}
	s, err := h.engine.Resume(ctx, "s1", tree.Selection{})
	if !errors.Is(err, tree.ErrFanoutTotalFailure) {
		t.Fatalf("expected total failure, got %v", err)
	}
	if s.State != tree.StateFailed || s.Failure.Level != tree.LevelTopic || s.Failure.Kind != "fanout_total_failure" {
		t.Fatalf("failure=%+v", s.Failure)
	}
	if got := h.obs.list(); got[len(got)-1] != StageFailed {
		t.Fatalf("last stage=%s", got[len(got)-1])
	}
}

func TestEngine_CanceledGenerationResumesFromLastLevel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var once sync.Once
	oc := jpaOracle("module").
		On(prompts.PromptGenerateChildren, func(c context.Context, in prompts.Input) (map[string]any, error) {
			if in.Level == "topic" {
				once.Do(cancel)
			}
			return oracletest.Children(in.ParentTitle+"/"+in.Level, 2, in.Level == "topic"), nil
		})
	h := newHarness(t, oc)
	if _, err := h.engine.Start(context.Background(), "s1", "JPA mapping", ""); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := h.engine.Resume(ctx, "s1", tree.Selection{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}

	stored, _ := h.store.Load(context.Background(), "s1")
	if stored.State != tree.StateGenerate || stored.NextLevel != tree.LevelTopic {
		t.Fatalf("checkpoint state=%s next=%s", stored.State, stored.NextLevel)
	}
	if _, ok := stored.LevelResult(tree.LevelTopic); ok {
		t.Fatalf("partial topic map was persisted")
	}
	lessonCalls := 0
	for _, in := range oc.Inputs(prompts.PromptGenerateChildren) {
		if in.Level == "lesson" {
			lessonCalls++
		}
	}

	s, err := h.engine.Continue(context.Background(), "s1")
	if err != nil || s.State != tree.StateDone {
		t.Fatalf("Continue: state=%v err=%v", s, err)
	}
	after := 0
	for _, in := range oc.Inputs(prompts.PromptGenerateChildren) {
		if in.Level == "lesson" {
			after++
		}
	}
	if after != lessonCalls {
		t.Fatalf("completed level regenerated on continue")
	}
}

func TestEngine_EmitsStagesInOrder(t *testing.T) {
	h := newHarness(t, jpaOracle("lesson"))
	ctx := context.Background()
	if _, err := h.engine.Start(ctx, "s1", "JPA lesson", ""); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := h.engine.Resume(ctx, "s1", tree.Selection{Indices: []int{1}}); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	got := h.obs.list()
	idx := map[string]int{}
	for i, st := range got {
		idx[st] = i
	}
	order := []string{
		steps.StageClassify, steps.StageModelStyles, steps.StageMergeStyles, StageAwaitSelection,
		StageRoute, steps.GenerateStage(tree.LevelTopic), steps.StageAssemble, StageDone,
	}
	for i := 1; i < len(order); i++ {
		a, okA := idx[order[i-1]]
		b, okB := idx[order[i]]
		if !okA || !okB || a >= b {
			t.Fatalf("stage order wrong: %v", got)
		}
	}
	if _, ok := idx[steps.StageWebStyles]; !ok {
		t.Fatalf("web styles stage not emitted: %v", got)
	}
}

func TestEngine_SessionsAreIndependent(t *testing.T) {
	h := newHarness(t, jpaOracle("lesson"))
	ctx := context.Background()
	var wg sync.WaitGroup
	errs := make(chan error, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("s%d", i)
			if _, err := h.engine.Start(ctx, id, "JPA lesson", ""); err != nil {
				errs <- err
				return
			}
			if _, err := h.engine.Resume(ctx, id, tree.Selection{}); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent session: %v", err)
	}
}

func TestEngine_CreateThenContinue(t *testing.T) {
	h := newHarness(t, jpaOracle("lesson"))
	ctx := context.Background()

	s, err := h.engine.Create(ctx, "c1", "Learn JPA", "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if s.State != tree.StateClassify || h.oc.Calls(prompts.PromptClassifyLevel) != 0 {
		t.Fatalf("Create must not run any stage: state=%s calls=%d", s.State, h.oc.Calls(prompts.PromptClassifyLevel))
	}
	s, err = h.engine.Continue(ctx, "c1")
	if err != nil {
		t.Fatalf("Continue: %v", err)
	}
	if s.State != tree.StateAwaitSelection {
		t.Fatalf("expected await_selection, got %s", s.State)
	}
}
