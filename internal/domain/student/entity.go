package student

import (
	"strings"
	"time"

	"github.com/calculus-oom/gradebook/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENUMS
// ══════════════════════════════════════════════════════════════════════════════

// Status is the enrollment status of a student in a term.
type Status string

const (
	// StatusInProgress - the student is taking the course.
	StatusInProgress Status = "in_progress"
	// StatusWithdrawn - the student dropped the course; scores are cleared.
	StatusWithdrawn Status = "withdrawn"
	// StatusFailed - finalize computed a total below the threshold.
	StatusFailed Status = "failed"
	// StatusCompleted - finalize computed a passing total.
	StatusCompleted Status = "completed"
)

// legacyStatuses maps the spellings used by the previous system.
var legacyStatuses = map[string]Status{
	"修業中":  StatusInProgress,
	"二退":   StatusWithdrawn,
	"被當":   StatusFailed,
	"修業完畢": StatusCompleted,
}

// IsValid checks that the status belongs to the closed set.
func (s Status) IsValid() bool {
	switch s {
	case StatusInProgress, StatusWithdrawn, StatusFailed, StatusCompleted:
		return true
	default:
		return false
	}
}

// String returns the canonical spelling.
func (s Status) String() string {
	return string(s)
}

// ParseStatus accepts canonical and legacy spellings.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.TrimSpace(s))
	if st.IsValid() {
		return st, nil
	}
	if legacy, ok := legacyStatuses[string(st)]; ok {
		return legacy, nil
	}
	return "", shared.NewValidationError("student", "ParseStatus",
		"status must be one of in_progress, withdrawn, failed, completed", "status")
}

// ══════════════════════════════════════════════════════════════════════════════
// FIELDS
// ══════════════════════════════════════════════════════════════════════════════

// Fields accepted by repository lookups and filters.
const (
	FieldID     = "id"
	FieldNumber = "number"
	FieldTerm   = "term"
	FieldStatus = "status"
	FieldName   = "name"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENTITY
// ══════════════════════════════════════════════════════════════════════════════

// Student is a person enrolled in a term.
type Student struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Number    string    `json:"number"`
	Term      string    `json:"term"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewStudentParams holds the input for NewStudent.
type NewStudentParams struct {
	ID     string
	Name   string
	Number string
	Term   string
	Status Status // optional, defaults to StatusInProgress
	Now    time.Time
}

// NewStudent validates params and builds a Student.
func NewStudent(p NewStudentParams) (*Student, error) {
	var missing []string
	if strings.TrimSpace(p.ID) == "" {
		missing = append(missing, "id")
	}
	if strings.TrimSpace(p.Name) == "" {
		missing = append(missing, FieldName)
	}
	if strings.TrimSpace(p.Number) == "" {
		missing = append(missing, FieldNumber)
	}
	if len(missing) > 0 {
		return nil, shared.NewValidationError("student", "Create", "missing required fields", missing...)
	}
	if err := shared.ValidateTerm(p.Term); err != nil {
		return nil, err
	}

	status := p.Status
	if status == "" {
		status = StatusInProgress
	}
	if !status.IsValid() {
		return nil, shared.NewValidationError("student", "Create", "invalid status", FieldStatus)
	}

	now := p.Now.UTC()
	return &Student{
		ID:        p.ID,
		Name:      strings.TrimSpace(p.Name),
		Number:    strings.TrimSpace(p.Number),
		Term:      p.Term,
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// IsWithdrawn reports whether finalize must leave the student untouched.
func (s *Student) IsWithdrawn() bool {
	return s.Status == StatusWithdrawn
}

// SetStatus changes the status. Clearing scores on withdrawal is the caller's
// responsibility since scores live in a separate aggregate.
func (s *Student) SetStatus(status Status, now time.Time) error {
	if !status.IsValid() {
		return shared.NewValidationError("student", "SetStatus", "invalid status", FieldStatus)
	}
	s.Status = status
	s.UpdatedAt = now.UTC()
	return nil
}

// Finalize records the pass/fail outcome of a finalize pass.
func (s *Student) Finalize(passed bool, now time.Time) {
	if passed {
		s.Status = StatusCompleted
	} else {
		s.Status = StatusFailed
	}
	s.UpdatedAt = now.UTC()
}

// Profile holds the editable descriptive fields. Nil means "don't change".
type Profile struct {
	Name   *string
	Number *string
	Term   *string
}

// UpdateProfile applies the non-nil fields of p.
func (s *Student) UpdateProfile(p Profile, now time.Time) error {
	if p.Name != nil {
		if strings.TrimSpace(*p.Name) == "" {
			return shared.NewValidationError("student", "Update", "name cannot be empty", FieldName)
		}
		s.Name = strings.TrimSpace(*p.Name)
	}
	if p.Number != nil {
		if strings.TrimSpace(*p.Number) == "" {
			return shared.NewValidationError("student", "Update", "number cannot be empty", FieldNumber)
		}
		s.Number = strings.TrimSpace(*p.Number)
	}
	if p.Term != nil {
		if err := shared.ValidateTerm(*p.Term); err != nil {
			return err
		}
		s.Term = *p.Term
	}
	s.UpdatedAt = now.UTC()
	return nil
}
