package memory

import (
	"context"
	"sync"

	"github.com/calculus-oom/gradebook/internal/domain/exam"
	"github.com/calculus-oom/gradebook/internal/domain/gradebook"
	"github.com/calculus-oom/gradebook/internal/domain/score"
	"github.com/calculus-oom/gradebook/internal/domain/student"
)

var studentSpec = Spec[student.Student]{
	Domain: "student",
	Key:    func(s student.Student) string { return s.ID },
	Fields: map[string]func(student.Student) string{
		student.FieldID:     func(s student.Student) string { return s.ID },
		student.FieldName:   func(s student.Student) string { return s.Name },
		student.FieldNumber: func(s student.Student) string { return s.Number },
		student.FieldTerm:   func(s student.Student) string { return s.Term },
		student.FieldStatus: func(s student.Student) string { return string(s.Status) },
	},
	Unique: []string{student.FieldNumber},
}

var examSpec = Spec[exam.Exam]{
	Domain: "exam",
	Key:    func(e exam.Exam) string { return e.ID },
	Fields: map[string]func(exam.Exam) string{
		exam.FieldID:            func(e exam.Exam) string { return e.ID },
		exam.FieldName:          func(e exam.Exam) string { return e.Name },
		exam.FieldTerm:          func(e exam.Exam) string { return e.Term },
		exam.FieldState:         func(e exam.Exam) string { return string(e.State) },
		exam.FieldAssetBundleID: func(e exam.Exam) string { return e.AssetBundleID },
	},
}

var scoreSpec = Spec[score.Score]{
	Domain: "score",
	Key:    func(s score.Score) string { return s.ID },
	Fields: map[string]func(score.Score) string{
		score.FieldID:        func(s score.Score) string { return s.ID },
		score.FieldStudentID: func(s score.Score) string { return s.StudentID },
	},
}

// Store holds students, exams and scores behind one lock and implements
// gradebook.UnitOfWork. Transactions are serialized and roll back by
// restoring a snapshot.
type Store struct {
	mu       sync.RWMutex
	students *Table[student.Student]
	exams    *Table[exam.Exam]
	scores   *Table[score.Score]
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		students: NewTable(studentSpec),
		exams:    NewTable(examSpec),
		scores:   NewTable(scoreSpec),
	}
}

// Repositories returns repositories that lock the store per call.
func (s *Store) Repositories() gradebook.Repositories {
	return s.bind(&s.mu)
}

func (s *Store) bind(mu *sync.RWMutex) gradebook.Repositories {
	return gradebook.Repositories{
		Students: repo[student.Student]{table: s.students, mu: mu},
		Exams:    repo[exam.Exam]{table: s.exams, mu: mu},
		Scores:   repo[score.Score]{table: s.scores, mu: mu},
	}
}

type snapshot struct {
	students *Table[student.Student]
	exams    *Table[exam.Exam]
	scores   *Table[score.Score]
}

func (s *Store) snapshot() snapshot {
	return snapshot{
		students: s.students.clone(),
		exams:    s.exams.clone(),
		scores:   s.scores.clone(),
	}
}

func (s *Store) restore(snap snapshot) {
	s.students.restore(snap.students)
	s.exams.restore(snap.exams)
	s.scores.restore(snap.scores)
}

// WithinTx runs fn with exclusive access to the store. Any error or panic
// restores the state as it was before fn ran.
func (s *Store) WithinTx(ctx context.Context, fn gradebook.TxFunc) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snapshot()
	defer func() {
		if p := recover(); p != nil {
			s.restore(snap)
			panic(p)
		}
	}()

	if err = fn(ctx, s.bind(nil)); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

// Ping satisfies the health checker contract.
func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}
