package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/calculus-oom/gradebook/internal/domain/exam"
	"github.com/calculus-oom/gradebook/internal/domain/gradebook"
	"github.com/calculus-oom/gradebook/internal/domain/score"
	"github.com/calculus-oom/gradebook/internal/domain/shared"
	"github.com/calculus-oom/gradebook/internal/domain/student"
)

var studentTable = &tableSpec[student.Student]{
	domain:  "student",
	name:    "students",
	columns: []string{"id", "name", "number", "term", "status", "created_at", "updated_at"},
	fields: map[string]string{
		student.FieldID:     "id",
		student.FieldName:   "name",
		student.FieldNumber: "number",
		student.FieldTerm:   "term",
		student.FieldStatus: "status",
	},
	uniques: map[string]string{
		"students_pkey":       student.FieldID,
		"students_number_key": student.FieldNumber,
	},
	values: func(s *student.Student) []any {
		return []any{s.ID, s.Name, s.Number, s.Term, string(s.Status), s.CreatedAt, s.UpdatedAt}
	},
	dest: func(s *student.Student) []any {
		return []any{&s.ID, &s.Name, &s.Number, &s.Term, (*string)(&s.Status), &s.CreatedAt, &s.UpdatedAt}
	},
}

var examTable = &tableSpec[exam.Exam]{
	domain: "exam",
	name:   "exams",
	columns: []string{"id", "name", "term", "exam_date", "exam_range", "weight", "state",
		"asset_bundle_id", "created_at", "updated_at"},
	fields: map[string]string{
		exam.FieldID:            "id",
		exam.FieldName:          "name",
		exam.FieldTerm:          "term",
		exam.FieldState:         "state",
		exam.FieldAssetBundleID: "asset_bundle_id",
	},
	uniques: map[string]string{"exams_pkey": exam.FieldID},
	values: func(e *exam.Exam) []any {
		return []any{e.ID, e.Name, e.Term, e.Date, e.Range, e.Weight, string(e.State),
			e.AssetBundleID, e.CreatedAt, e.UpdatedAt}
	},
	dest: func(e *exam.Exam) []any {
		return []any{&e.ID, &e.Name, &e.Term, &e.Date, &e.Range, &e.Weight, (*string)(&e.State),
			&e.AssetBundleID, &e.CreatedAt, &e.UpdatedAt}
	},
}

var scoreTable = &tableSpec[score.Score]{
	domain:  "score",
	name:    "scores",
	columns: []string{"id", "student_id", "quiz1", "midterm", "quiz2", "final", "total", "created_at", "updated_at"},
	fields: map[string]string{
		score.FieldID:        "id",
		score.FieldStudentID: "student_id",
	},
	uniques: map[string]string{"scores_pkey": score.FieldID},
	values: func(s *score.Score) []any {
		return []any{s.ID, s.StudentID, s.Quiz1, s.Midterm, s.Quiz2, s.Final, s.Total, s.CreatedAt, s.UpdatedAt}
	},
	dest: func(s *score.Score) []any {
		return []any{&s.ID, &s.StudentID, &s.Quiz1, &s.Midterm, &s.Quiz2, &s.Final, &s.Total, &s.CreatedAt, &s.UpdatedAt}
	},
}

// UnitOfWork implements gradebook.UnitOfWork on a connection pool.
type UnitOfWork struct {
	conn *Connection
	opts TxOptions
}

var _ gradebook.UnitOfWork = (*UnitOfWork)(nil)

// NewUnitOfWork creates a unit of work using read-committed transactions.
func NewUnitOfWork(conn *Connection) *UnitOfWork {
	return &UnitOfWork{conn: conn, opts: DefaultTxOptions()}
}

func bind(q Querier, lock bool) gradebook.Repositories {
	return gradebook.Repositories{
		Students: table[student.Student]{spec: studentTable, q: q, lock: lock},
		Exams:    table[exam.Exam]{spec: examTable, q: q, lock: lock},
		Scores:   table[score.Score]{spec: scoreTable, q: q, lock: lock},
	}
}

// Repositories returns repositories running each statement on the pool.
func (u *UnitOfWork) Repositories() gradebook.Repositories {
	return bind(u.conn, false)
}

// WithinTx runs fn in one transaction. Rows read with Get are locked until
// commit, so read-modify-write sequences in fn do not interleave. Errors
// returned by fn keep their kind; failures to begin or commit are storage
// errors.
func (u *UnitOfWork) WithinTx(ctx context.Context, fn gradebook.TxFunc) error {
	var fnErr error
	err := u.conn.WithTx(ctx, u.opts, func(tx pgx.Tx) error {
		fnErr = fn(ctx, bind(tx, true))
		return fnErr
	})
	if err != nil && fnErr == nil {
		return shared.StorageFailure("gradebook", "WithinTx", err)
	}
	return err
}

// Ping checks the connection.
func (u *UnitOfWork) Ping(ctx context.Context) error {
	return u.conn.Ping(ctx)
}
