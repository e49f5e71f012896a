package score

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calculus-oom/gradebook/internal/domain/shared"
)

var now = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

func TestParseSlot(t *testing.T) {
	tests := map[string]Slot{
		"quiz1":           SlotQuiz1,
		"Midterm":         SlotMidterm,
		"quiz2":           SlotQuiz2,
		"final":           SlotFinal,
		"score_quiz1":     SlotQuiz1,
		"score_finalexam": SlotFinal,
	}
	for in, want := range tests {
		got, err := ParseSlot(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}

	_, err := ParseSlot("bonus")
	assert.True(t, shared.IsValidation(err))
}

func TestSlotForExamName(t *testing.T) {
	for _, slot := range AllSlots {
		got, ok := SlotForExamName(slot.ExamName())
		require.True(t, ok, slot.String())
		assert.Equal(t, slot, got)
	}

	got, ok := SlotForExamName("期末考")
	assert.True(t, ok)
	assert.Equal(t, SlotFinal, got)

	_, ok = SlotForExamName("Bonus")
	assert.False(t, ok)
}

func TestSet(t *testing.T) {
	s := New("scr_1141_a", "stu_1141_a", now)

	require.NoError(t, s.Set(SlotQuiz1, "80", now))
	require.NoError(t, s.Set(SlotQuiz1, "85.5", now))
	assert.Equal(t, "85.5", s.Get(SlotQuiz1))

	require.NoError(t, s.Set(SlotMidterm, "", now))

	err := s.Set(SlotQuiz2, "101", now)
	assert.True(t, shared.IsValidation(err))
	assert.Equal(t, []string{"quiz2"}, shared.FieldsOf(err))

	assert.True(t, shared.IsValidation(s.Set(SlotFinal, "A+", now)))
	assert.True(t, shared.IsValidation(s.Set(Slot(0), "10", now)))
}

func TestComplete(t *testing.T) {
	s := New("scr", "stu", now)
	assert.False(t, s.Complete())

	for _, slot := range AllSlots {
		require.NoError(t, s.Set(slot, "70", now))
	}
	assert.True(t, s.Complete())

	values, ok := s.ByExamName()
	require.True(t, ok)
	assert.Equal(t, map[string]float64{"Quiz 1": 70, "Midterm": 70, "Quiz 2": 70, "Final Exam": 70}, values)
}

func TestClearScores(t *testing.T) {
	s := New("scr", "stu", now)
	for _, slot := range AllSlots {
		require.NoError(t, s.Set(slot, "90", now))
	}
	s.SetTotal("90", now)

	later := now.Add(time.Minute)
	s.ClearScores(later)

	for _, slot := range AllSlots {
		assert.Empty(t, s.Get(slot))
	}
	assert.Empty(t, s.Total)
	assert.Equal(t, later, s.UpdatedAt)
}

func TestSlotText(t *testing.T) {
	var s Slot
	require.NoError(t, s.UnmarshalText([]byte("score_midterm")))
	assert.Equal(t, SlotMidterm, s)

	b, err := s.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "midterm", string(b))
	assert.Equal(t, "mid", s.Code())
}
