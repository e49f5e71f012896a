package score

import (
	"github.com/calculus-oom/gradebook/internal/domain/shared"
)

// Repository stores score rows.
//
// Student and score rows are correlated by StudentID only; the store does not
// cascade. Get by FieldStudentID returns the student's row or shared.ErrNotFound.
type Repository interface {
	shared.Repository[Score]
}
