// Package exam contains the exam aggregate and its preparation state machine.
package exam

import (
	"strings"
	"time"

	"github.com/calculus-oom/gradebook/internal/domain/asset"
	"github.com/calculus-oom/gradebook/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// STATE
// ══════════════════════════════════════════════════════════════════════════════

// State tracks how far an exam has progressed.
//
//	not_prepared --paper uploaded--> prepared --histogram uploaded / weight assigned--> finalized
type State string

const (
	StateNotPrepared State = "not_prepared"
	StatePrepared    State = "prepared"
	StateFinalized   State = "finalized"
)

var legacyStates = map[string]State{
	"尚未出考卷":  StateNotPrepared,
	"考卷完成":   StatePrepared,
	"考卷成績結算": StateFinalized,
}

// IsValid checks that the state belongs to the closed set.
func (s State) IsValid() bool {
	return s.rank() > 0
}

// String returns the canonical spelling.
func (s State) String() string {
	return string(s)
}

func (s State) rank() int {
	switch s {
	case StateNotPrepared:
		return 1
	case StatePrepared:
		return 2
	case StateFinalized:
		return 3
	default:
		return 0
	}
}

// ParseState accepts canonical and legacy spellings.
func ParseState(s string) (State, error) {
	st := State(strings.TrimSpace(s))
	if st.IsValid() {
		return st, nil
	}
	if legacy, ok := legacyStates[string(st)]; ok {
		return legacy, nil
	}
	return "", shared.NewValidationError("exam", "ParseState",
		"state must be one of not_prepared, prepared, finalized", FieldState)
}

// ══════════════════════════════════════════════════════════════════════════════
// ENTITY
// ══════════════════════════════════════════════════════════════════════════════

// Fields accepted by repository lookups and filters.
const (
	FieldID    = "id"
	FieldName  = "name"
	FieldTerm  = "term"
	FieldState = "state"

	FieldAssetBundleID = "asset_bundle_id"
)

// Exam is one graded assessment of a term.
type Exam struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Term          string    `json:"term"`
	Date          string    `json:"date"`
	Range         string    `json:"range"`
	Weight        string    `json:"weight"`
	State         State     `json:"state"`
	AssetBundleID string    `json:"asset_bundle_id"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// NewExamParams holds the input for NewExam.
type NewExamParams struct {
	ID    string
	Name  string
	Term  string
	Date  string
	Range string
	State State // optional, defaults to StateNotPrepared
	Now   time.Time
}

// NewExam validates params and builds an Exam with no weight and no assets.
func NewExam(p NewExamParams) (*Exam, error) {
	var missing []string
	if strings.TrimSpace(p.ID) == "" {
		missing = append(missing, FieldID)
	}
	if strings.TrimSpace(p.Name) == "" {
		missing = append(missing, FieldName)
	}
	if len(missing) > 0 {
		return nil, shared.NewValidationError("exam", "Create", "missing required fields", missing...)
	}
	if err := shared.ValidateTerm(p.Term); err != nil {
		return nil, err
	}
	state := p.State
	if state == "" {
		state = StateNotPrepared
	}
	if !state.IsValid() {
		return nil, shared.NewValidationError("exam", "Create", "invalid state", FieldState)
	}

	now := p.Now.UTC()
	return &Exam{
		ID:        p.ID,
		Name:      strings.TrimSpace(p.Name),
		Term:      p.Term,
		Date:      p.Date,
		Range:     p.Range,
		State:     state,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Advance moves the exam from one state to the next. It is a no-op unless
// the exam is currently in from, so automated transitions never regress.
func (e *Exam) Advance(from, to State, now time.Time) bool {
	if e.State != from || to.rank() <= from.rank() {
		return false
	}
	e.State = to
	e.UpdatedAt = now.UTC()
	return true
}

// AdvanceIfPrepared finalizes a prepared exam.
func (e *Exam) AdvanceIfPrepared(now time.Time) bool {
	return e.Advance(StatePrepared, StateFinalized, now)
}

// OnAssetUploaded applies the state change triggered by an upload and
// records the bundle reference if the exam has none yet.
func (e *Exam) OnAssetUploaded(kind asset.Kind, bundleID string, now time.Time) (changed bool) {
	if e.AssetBundleID == "" && bundleID != "" {
		e.AssetBundleID = bundleID
		e.UpdatedAt = now.UTC()
	}
	switch kind {
	case asset.KindPaper:
		return e.Advance(StateNotPrepared, StatePrepared, now)
	case asset.KindHistogram:
		return e.Advance(StatePrepared, StateFinalized, now)
	default:
		return false
	}
}

// AssignWeight stores the weight and finalizes a prepared exam.
func (e *Exam) AssignWeight(weight string, now time.Time) (advanced bool) {
	e.Weight = weight
	e.UpdatedAt = now.UTC()
	return e.AdvanceIfPrepared(now)
}

// SetState writes the state directly. Manual writes may regress.
func (e *Exam) SetState(state State, now time.Time) error {
	if !state.IsValid() {
		return shared.NewValidationError("exam", "SetState", "invalid state", FieldState)
	}
	e.State = state
	e.UpdatedAt = now.UTC()
	return nil
}

// Details holds the editable descriptive fields. Nil means "don't change".
type Details struct {
	Name  *string
	Term  *string
	Date  *string
	Range *string
}

// Update applies the non-nil fields of d.
func (e *Exam) Update(d Details, now time.Time) error {
	if d.Name != nil {
		if strings.TrimSpace(*d.Name) == "" {
			return shared.NewValidationError("exam", "Update", "name cannot be empty", FieldName)
		}
		e.Name = strings.TrimSpace(*d.Name)
	}
	if d.Term != nil {
		if err := shared.ValidateTerm(*d.Term); err != nil {
			return err
		}
		e.Term = *d.Term
	}
	if d.Date != nil {
		e.Date = *d.Date
	}
	if d.Range != nil {
		e.Range = *d.Range
	}
	e.UpdatedAt = now.UTC()
	return nil
}

// HasWeight reports whether a weight was assigned.
func (e *Exam) HasWeight() bool {
	return strings.TrimSpace(e.Weight) != ""
}
