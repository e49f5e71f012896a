package exam

import (
	"github.com/calculus-oom/gradebook/internal/domain/shared"
)

// Repository stores exams.
//
// List with FieldTerm returns the exams finalize and setWeights operate on.
type Repository interface {
	shared.Repository[Exam]
}
