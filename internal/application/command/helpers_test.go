package command

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/calculus-oom/gradebook/internal/domain/exam"
	"github.com/calculus-oom/gradebook/internal/domain/score"
	"github.com/calculus-oom/gradebook/internal/domain/shared"
	"github.com/calculus-oom/gradebook/internal/domain/student"
	"github.com/calculus-oom/gradebook/internal/infrastructure/filestore"
	"github.com/calculus-oom/gradebook/internal/infrastructure/persistence/memory"
	"github.com/calculus-oom/gradebook/pkg/timeutil"
)

const term = "1141"

var t0 = time.Date(2025, 6, 20, 9, 0, 0, 0, time.UTC)

type recorder struct {
	mu     sync.Mutex
	events []shared.Event
}

func (r *recorder) Publish(e shared.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) types() []shared.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]shared.EventType, len(r.events))
	for i, e := range r.events {
		out[i] = e.EventType()
	}
	return out
}

type fixture struct {
	deps   Deps
	store  *memory.Store
	assets *memory.AssetStore
	events *recorder
	clock  *timeutil.ManualClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	files, err := filestore.NewLocal(t.TempDir())
	require.NoError(t, err)

	seq := 0
	f := &fixture{
		store:  memory.NewStore(),
		assets: memory.NewAssetStore(),
		events: &recorder{},
		clock:  timeutil.NewManualClock(t0),
	}
	f.deps = Deps{
		UnitOfWork: f.store,
		Locker:     memory.NewTermLocker(),
		Assets:     f.assets,
		Files:      files,
		Events:     f.events,
		IDs: shared.NewIDGeneratorWithEntropy(func() string {
			seq++
			return fmt.Sprintf("%08x", seq)
		}),
		Clock:  f.clock,
		Policy: DefaultPolicy(),
	}.withDefaults()
	return f
}

func (f *fixture) addExam(t *testing.T, name string, state exam.State, weight string) exam.Exam {
	t.Helper()
	e, err := NewExamHandler(f.deps).Create(context.Background(), CreateExamCommand{Name: name, Term: term, State: string(state)})
	require.NoError(t, err)
	if weight != "" {
		e.Weight = weight
		require.NoError(t, f.store.Repositories().Exams.Update(context.Background(), *e))
	}
	return *e
}

// addStudent creates a student with the given slot values in exam order.
// An empty value leaves the slot unset.
func (f *fixture) addStudent(t *testing.T, number string, values ...string) student.Student {
	t.Helper()
	ctx := context.Background()
	res, err := NewCreateStudentHandler(f.deps).Handle(ctx, CreateStudentCommand{Name: "S" + number, Number: number, Term: term})
	require.NoError(t, err)

	for i, v := range values {
		if v == "" {
			continue
		}
		_, err := NewScoreHandler(f.deps).Record(ctx, RecordScoreCommand{
			StudentID: res.Student.ID, Slot: score.AllSlots[i].String(), Value: v,
		})
		require.NoError(t, err)
	}
	return res.Student
}

func (f *fixture) student(t *testing.T, id string) student.Student {
	t.Helper()
	st, err := f.store.Repositories().Students.Get(context.Background(), student.FieldID, id)
	require.NoError(t, err)
	return st
}

func (f *fixture) scoreOf(t *testing.T, studentID string) score.Score {
	t.Helper()
	sc, err := f.store.Repositories().Scores.Get(context.Background(), score.FieldStudentID, studentID)
	require.NoError(t, err)
	return sc
}

func (f *fixture) exam(t *testing.T, id string) exam.Exam {
	t.Helper()
	e, err := f.store.Repositories().Exams.Get(context.Background(), exam.FieldID, id)
	require.NoError(t, err)
	return e
}

// standardExams adds the four slot exams with weights .2/.3/.2/.3.
func (f *fixture) standardExams(t *testing.T) {
	f.addExam(t, "Quiz 1", exam.StateFinalized, "0.2")
	f.addExam(t, "Midterm", exam.StateFinalized, "0.3")
	f.addExam(t, "Quiz 2", exam.StateFinalized, "0.2")
	f.addExam(t, "Final Exam", exam.StateFinalized, "0.3")
}
