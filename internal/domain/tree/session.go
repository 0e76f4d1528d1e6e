package tree

import (
	"encoding/json"
	"time"

	"github.com/yungbote/coursetree-backend/internal/jobs/orchestrator"
	jobrt "github.com/yungbote/coursetree-backend/internal/jobs/runtime"
)

// State is the workflow position a Session was checkpointed at.
type State string

const (
	StateClassify       State = "classify"
	StateStylePipeline  State = "style_pipeline"
	StateAwaitSelection State = "await_selection"
	StateRoute          State = "route"
	StateGenerate       State = "generate"
	StateAssemble       State = "assemble"
	StateDone           State = "done"
	StateTerminated     State = "terminated"
	StateFailed         State = "failed"
)

func (s State) Terminal() bool {
	return s == StateDone || s == StateTerminated || s == StateFailed
}

// Failure records a fatal stage error in a persistable form.
type Failure struct {
	Kind     string `json:"kind"`
	Stage    string `json:"stage"`
	Level    Level  `json:"level,omitempty"`
	ParentID string `json:"parent_id,omitempty"`
	Message  string `json:"message"`
}

// Session is the unit of checkpointed workflow state.
type Session struct {
	ID        string `json:"id"`
	Version   int64  `json:"version"`
	OwnerID   string `json:"owner_id,omitempty"`
	State     State  `json:"state"`
	NextLevel Level  `json:"next_level,omitempty"`

	Input      string `json:"input"`
	Goal       string `json:"goal,omitempty"`
	Content    string `json:"content,omitempty"`
	EntryLevel Level  `json:"entry_level"`
	Root       *Node  `json:"root,omitempty"`

	Example        *Example `json:"example,omitempty"`
	ModelStyles    []Style  `json:"model_styles,omitempty"`
	WebStyles      []Style  `json:"web_styles,omitempty"`
	Shortlist      []Style  `json:"shortlist"`
	SelectedStyles []Style  `json:"selected_styles,omitempty"`

	Levels map[Level]LevelResultMap `json:"levels,omitempty"`
	Tree   *Node                    `json:"tree,omitempty"`

	Waitpoint *jobrt.WaitpointEnvelope `json:"waitpoint,omitempty"`
	Stages    orchestrator.State       `json:"stages"`
	Failure   *Failure                 `json:"failure,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewSession returns a Session positioned at Classify.
func NewSession(id, input, owner string, now time.Time) *Session {
	return &Session{
		ID:        id,
		OwnerID:   owner,
		State:     StateClassify,
		Input:     input,
		Shortlist: []Style{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Clone returns an independent copy; stores hand these out so callers never alias persisted state.
func (s *Session) Clone() (*Session, error) {
	if s == nil {
		return nil, nil
	}
	b, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	var out Session
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// LevelResult returns the map generated for l, if the Generate stage for l has completed.
func (s *Session) LevelResult(l Level) (LevelResultMap, bool) {
	if s == nil || s.Levels == nil {
		return nil, false
	}
	m, ok := s.Levels[l]
	return m, ok
}

// SetLevelResult records the barrier output of Generate(l).
func (s *Session) SetLevelResult(l Level, m LevelResultMap) {
	if s.Levels == nil {
		s.Levels = map[Level]LevelResultMap{}
	}
	s.Levels[l] = m
}

// Parents lists the nodes that Generate(l) fans out over, in a stable order:
// the root for the first generated level, otherwise the children of the level above in parent order.
func (s *Session) Parents(l Level) []*Node {
	if s == nil || s.Root == nil {
		return nil
	}
	first, ok := s.EntryLevel.Next()
	if !ok || l < first || l > LevelTopic {
		return nil
	}
	parents := []*Node{s.Root}
	for cur := first; cur < l; cur++ {
		m, ok := s.LevelResult(cur)
		if !ok {
			return nil
		}
		next := make([]*Node, 0, len(parents))
		for _, p := range parents {
			next = append(next, m[p.ID]...)
		}
		parents = next
	}
	return parents
}

// NodeIDs returns every node id known to the session (root and all generated levels).
func (s *Session) NodeIDs() []string {
	var out []string
	if s.Root != nil {
		out = append(out, s.Root.ID)
	}
	for _, m := range s.Levels {
		for _, children := range m {
			for _, c := range children {
				out = append(out, c.ID)
			}
		}
	}
	return out
}
