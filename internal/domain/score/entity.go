// Package score contains the per-student score row and the closed slot enum.
package score

import (
	"time"

	"github.com/calculus-oom/gradebook/internal/domain/shared"
)

// Fields accepted by repository lookups and filters.
const (
	FieldID        = "id"
	FieldStudentID = "student_id"
)

// Score holds the four exam slots and the derived total of one student.
// Values are numeric strings; the empty string means unset.
type Score struct {
	ID        string    `json:"id"`
	StudentID string    `json:"student_id"`
	Quiz1     string    `json:"quiz1"`
	Midterm   string    `json:"midterm"`
	Quiz2     string    `json:"quiz2"`
	Final     string    `json:"final"`
	Total     string    `json:"total"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// New returns an empty score row for a student.
func New(id, studentID string, now time.Time) *Score {
	now = now.UTC()
	return &Score{
		ID:        id,
		StudentID: studentID,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Get returns the raw value of a slot.
func (s *Score) Get(slot Slot) string {
	switch slot {
	case SlotQuiz1:
		return s.Quiz1
	case SlotMidterm:
		return s.Midterm
	case SlotQuiz2:
		return s.Quiz2
	case SlotFinal:
		return s.Final
	default:
		return ""
	}
}

// Set validates and writes a slot. Any slot may be rewritten freely.
func (s *Score) Set(slot Slot, value string, now time.Time) error {
	if err := shared.ValidateScoreValue(slot.String(), value); err != nil {
		return err
	}
	switch slot {
	case SlotQuiz1:
		s.Quiz1 = value
	case SlotMidterm:
		s.Midterm = value
	case SlotQuiz2:
		s.Quiz2 = value
	case SlotFinal:
		s.Final = value
	default:
		return shared.NewValidationError("score", "Set", "unknown slot", "slot")
	}
	s.UpdatedAt = now.UTC()
	return nil
}

// ClearScores empties all four slots and the total.
func (s *Score) ClearScores(now time.Time) {
	s.Quiz1, s.Midterm, s.Quiz2, s.Final = "", "", "", ""
	s.Total = ""
	s.UpdatedAt = now.UTC()
}

// Complete reports whether every slot holds a value.
func (s *Score) Complete() bool {
	for _, slot := range AllSlots {
		if s.Get(slot) == "" {
			return false
		}
	}
	return true
}

// ByExamName returns the slot values keyed by exam name.
// ok is false if any slot is empty or not a valid score.
func (s *Score) ByExamName() (values map[string]float64, ok bool) {
	values = make(map[string]float64, len(AllSlots))
	for _, slot := range AllSlots {
		raw := s.Get(slot)
		if raw == "" {
			return nil, false
		}
		v, valid := shared.ParseScore(raw)
		if !valid {
			return nil, false
		}
		values[slot.ExamName()] = v
	}
	return values, true
}

// SetTotal stores the derived total.
func (s *Score) SetTotal(total string, now time.Time) {
	s.Total = total
	s.UpdatedAt = now.UTC()
}
