// Package student contains the student aggregate of the gradebook.
//
// A student belongs to exactly one term and owns one score row, stored in
// the score package and correlated by student ID. The package defines:
//
//   - Student, the enrolled person with a name, a number and a term
//   - Status, the closed enrollment status set
//   - Repository, the storage contract implemented in infrastructure
//
// # Status lifecycle
//
//	in_progress --withdraw--> withdrawn
//	in_progress --finalize--> completed | failed
//
// Withdrawn students are skipped by finalize. Any status may be set
// manually; moving into withdrawn clears the student's scores.
//
// # Legacy spellings
//
// ParseStatus accepts the spellings of the previous system:
//
//	修業中 -> in_progress
//	二退   -> withdrawn
//	被當   -> failed
//	修業完畢 -> completed
//
// Output always uses the canonical spelling.
package student
