package score

import (
	"strings"

	"github.com/calculus-oom/gradebook/internal/domain/shared"
)

// Slot names one of the four per-exam score fields of a score row.
type Slot int

const (
	SlotQuiz1 Slot = iota + 1
	SlotMidterm
	SlotQuiz2
	SlotFinal
)

// AllSlots lists the slots in exam order.
var AllSlots = []Slot{SlotQuiz1, SlotMidterm, SlotQuiz2, SlotFinal}

// String returns the canonical slot name used in APIs and storage.
func (s Slot) String() string {
	switch s {
	case SlotQuiz1:
		return "quiz1"
	case SlotMidterm:
		return "midterm"
	case SlotQuiz2:
		return "quiz2"
	case SlotFinal:
		return "final"
	default:
		return "unknown"
	}
}

// ExamName is the exam name whose weight applies to this slot.
func (s Slot) ExamName() string {
	switch s {
	case SlotQuiz1:
		return "Quiz 1"
	case SlotMidterm:
		return "Midterm"
	case SlotQuiz2:
		return "Quiz 2"
	case SlotFinal:
		return "Final Exam"
	default:
		return ""
	}
}

// Code is the short form used inside exam identifiers.
func (s Slot) Code() string {
	switch s {
	case SlotQuiz1:
		return "q1"
	case SlotMidterm:
		return "mid"
	case SlotQuiz2:
		return "q2"
	case SlotFinal:
		return "final"
	default:
		return "gen"
	}
}

// IsValid reports whether s is one of the four slots.
func (s Slot) IsValid() bool {
	return s >= SlotQuiz1 && s <= SlotFinal
}

// MarshalText implements encoding.TextMarshaler.
func (s Slot) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Slot) UnmarshalText(text []byte) error {
	parsed, err := ParseSlot(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

var slotNames = map[string]Slot{
	"quiz1":           SlotQuiz1,
	"midterm":         SlotMidterm,
	"quiz2":           SlotQuiz2,
	"final":           SlotFinal,
	"score_quiz1":     SlotQuiz1,
	"score_midterm":   SlotMidterm,
	"score_quiz2":     SlotQuiz2,
	"score_finalexam": SlotFinal,
}

var examNames = map[string]Slot{
	"quiz 1":     SlotQuiz1,
	"midterm":    SlotMidterm,
	"quiz 2":     SlotQuiz2,
	"final exam": SlotFinal,
	"第一次小考":      SlotQuiz1,
	"期中考":        SlotMidterm,
	"第二次小考":      SlotQuiz2,
	"期末考":        SlotFinal,
}

// ParseSlot accepts the canonical slot names and the legacy field names.
func ParseSlot(name string) (Slot, error) {
	if s, ok := slotNames[strings.ToLower(strings.TrimSpace(name))]; ok {
		return s, nil
	}
	return 0, shared.NewValidationError("score", "ParseSlot",
		"slot must be one of quiz1, midterm, quiz2, final", "slot")
}

// SlotForExamName maps an exam name to the slot it grades.
func SlotForExamName(name string) (Slot, bool) {
	s, ok := examNames[strings.ToLower(strings.TrimSpace(name))]
	return s, ok
}
