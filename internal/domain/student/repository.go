package student

import (
	"github.com/calculus-oom/gradebook/internal/domain/shared"
)

// Repository stores students.
//
// Get by FieldID or FieldNumber returns shared.ErrNotFound when nothing matches.
// Create returns shared.ErrConflict on a duplicate id or number.
type Repository interface {
	shared.Repository[Student]
}
