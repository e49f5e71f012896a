// Package query contains the read operations of the gradebook.
package query

import (
	"context"
	"fmt"

	"github.com/calculus-oom/gradebook/internal/domain/asset"
	"github.com/calculus-oom/gradebook/internal/domain/exam"
	"github.com/calculus-oom/gradebook/internal/domain/gradebook"
	"github.com/calculus-oom/gradebook/internal/domain/score"
	"github.com/calculus-oom/gradebook/internal/domain/shared"
	"github.com/calculus-oom/gradebook/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECORD QUERIES
// Plain lookups by id and filtered listings. Filters use the repository field
// whitelist; unknown fields are validation errors.
// ══════════════════════════════════════════════════════════════════════════════

// RecordsHandler serves record lookups.
type RecordsHandler struct {
	uow    gradebook.UnitOfWork
	assets asset.Store
	files  asset.FileStore
}

// NewRecordsHandler creates a new RecordsHandler.
func NewRecordsHandler(uow gradebook.UnitOfWork, assets asset.Store, files asset.FileStore) *RecordsHandler {
	return &RecordsHandler{uow: uow, assets: assets, files: files}
}

// GetStudent returns one student by id.
func (h *RecordsHandler) GetStudent(ctx context.Context, id string) (*student.Student, error) {
	st, err := h.uow.Repositories().Students.Get(ctx, student.FieldID, id)
	if err != nil {
		return nil, fmt.Errorf("get_student: %w", err)
	}
	return &st, nil
}

// ListStudents returns the students matching filter.
func (h *RecordsHandler) ListStudents(ctx context.Context, filter shared.Filter) ([]student.Student, error) {
	if status, ok := filter[student.FieldStatus]; ok {
		parsed, err := student.ParseStatus(status)
		if err != nil {
			return nil, err
		}
		filter[student.FieldStatus] = parsed.String()
	}
	out, err := h.uow.Repositories().Students.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list_students: %w", err)
	}
	return out, nil
}

// GetScore returns one score row by id.
func (h *RecordsHandler) GetScore(ctx context.Context, id string) (*score.Score, error) {
	sc, err := h.uow.Repositories().Scores.Get(ctx, score.FieldID, id)
	if err != nil {
		return nil, fmt.Errorf("get_score: %w", err)
	}
	return &sc, nil
}

// ListScores returns the score rows matching filter.
func (h *RecordsHandler) ListScores(ctx context.Context, filter shared.Filter) ([]score.Score, error) {
	out, err := h.uow.Repositories().Scores.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list_scores: %w", err)
	}
	return out, nil
}

// GetExam returns one exam by id.
func (h *RecordsHandler) GetExam(ctx context.Context, id string) (*exam.Exam, error) {
	e, err := h.uow.Repositories().Exams.Get(ctx, exam.FieldID, id)
	if err != nil {
		return nil, fmt.Errorf("get_exam: %w", err)
	}
	return &e, nil
}

// ListExams returns the exams matching filter.
func (h *RecordsHandler) ListExams(ctx context.Context, filter shared.Filter) ([]exam.Exam, error) {
	if state, ok := filter[exam.FieldState]; ok {
		parsed, err := exam.ParseState(state)
		if err != nil {
			return nil, err
		}
		filter[exam.FieldState] = parsed.String()
	}
	out, err := h.uow.Repositories().Exams.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list_exams: %w", err)
	}
	return out, nil
}

// GetAsset returns an asset bundle.
func (h *RecordsHandler) GetAsset(ctx context.Context, bundleID string) (*asset.Bundle, error) {
	b, err := h.assets.Get(ctx, bundleID)
	if err != nil {
		return nil, fmt.Errorf("get_asset: %w", err)
	}
	return &b, nil
}

// AssetFile is the content of one file of a bundle.
type AssetFile struct {
	Path    string
	Content []byte
}

// GetAssetFile loads the file of one kind. A bundle without that kind is NotFound.
func (h *RecordsHandler) GetAssetFile(ctx context.Context, bundleID, kindName string) (*AssetFile, error) {
	kind, err := asset.ParseKind(kindName)
	if err != nil {
		return nil, err
	}
	b, err := h.assets.Get(ctx, bundleID)
	if err != nil {
		return nil, fmt.Errorf("get_asset_file: %w", err)
	}
	path := b.PathFor(kind)
	if path == "" {
		return nil, shared.NotFound("asset", "GetFile", bundleID+"/"+kind.String())
	}
	content, err := h.files.Open(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("get_asset_file: %w", err)
	}
	return &AssetFile{Path: path, Content: content}, nil
}
