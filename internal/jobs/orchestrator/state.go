package orchestrator

import "time"

type StageStatus string

const (
	StagePending   StageStatus = "pending"
	StageRunning   StageStatus = "running"
	StageWaiting   StageStatus = "waiting_user"
	StageSucceeded StageStatus = "succeeded"
	StageFailed    StageStatus = "failed"
	StageSkipped   StageStatus = "skipped"
)

type StageState struct {
	Name       string         `json:"name"`
	Status     StageStatus    `json:"status"`
	Attempts   int            `json:"attempts"`
	StartedAt  *time.Time     `json:"started_at,omitempty"`
	FinishedAt *time.Time     `json:"finished_at,omitempty"`
	LastError  string         `json:"last_error,omitempty"`
	Outputs    map[string]any `json:"outputs,omitempty"`
}

// State is the per-stage ledger carried inside a checkpoint.
type State struct {
	Version int                    `json:"version"`
	Stages  map[string]*StageState `json:"stages"`
	Meta    map[string]any         `json:"meta,omitempty"`
}

func (s *State) ensure() {
	if s.Version <= 0 {
		s.Version = 1
	}
	if s.Stages == nil {
		s.Stages = map[string]*StageState{}
	}
}

func (s *State) EnsureStage(name string) *StageState {
	s.ensure()
	ss := s.Stages[name]
	if ss == nil {
		ss = &StageState{Name: name, Status: StagePending}
		s.Stages[name] = ss
	}
	return ss
}

// Start marks a stage running and counts the attempt.
func (s *State) Start(name string, now time.Time) *StageState {
	ss := s.EnsureStage(name)
	ss.Status = StageRunning
	ss.Attempts++
	ss.StartedAt = ptrTime(now)
	ss.FinishedAt = nil
	ss.LastError = ""
	return ss
}

// Finish closes a stage with its terminal status. A nil err clears LastError.
func (s *State) Finish(name string, status StageStatus, err error, now time.Time, outputs map[string]any) *StageState {
	ss := s.EnsureStage(name)
	ss.Status = status
	ss.FinishedAt = ptrTime(now)
	ss.LastError = errString(err)
	if len(outputs) > 0 {
		if ss.Outputs == nil {
			ss.Outputs = map[string]any{}
		}
		for k, v := range outputs {
			ss.Outputs[k] = v
		}
	}
	return ss
}

func (s *State) Status(name string) StageStatus {
	if s == nil || s.Stages == nil || s.Stages[name] == nil {
		return StagePending
	}
	return s.Stages[name].Status
}

func ptrTime(t time.Time) *time.Time { return &t }

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
