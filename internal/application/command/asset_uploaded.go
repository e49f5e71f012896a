package command

import (
	"context"
	"fmt"

	"github.com/calculus-oom/gradebook/internal/domain/asset"
	"github.com/calculus-oom/gradebook/internal/domain/exam"
	"github.com/calculus-oom/gradebook/internal/domain/gradebook"
	"github.com/calculus-oom/gradebook/internal/domain/shared"
	"github.com/calculus-oom/gradebook/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// ASSET UPLOADED COMMAND
// Advances an exam after one of its files was stored. A paper prepares the
// exam, a histogram finalizes a prepared exam. Nothing ever moves backwards.
// ══════════════════════════════════════════════════════════════════════════════

// AssetUploadedCommand names the exam and the kind of file stored.
type AssetUploadedCommand struct {
	ExamID   string
	Kind     asset.Kind
	BundleID string
}

// Validate validates the command.
func (c AssetUploadedCommand) Validate() error {
	if c.ExamID == "" {
		return shared.NewValidationError("exam", "AssetUploaded", "exam id is required", "exam_id")
	}
	if !c.Kind.IsValid() {
		return shared.NewValidationError("exam", "AssetUploaded", "invalid asset kind", "kind")
	}
	return nil
}

// AssetUploadedResult contains the exam after the transition.
type AssetUploadedResult struct {
	Exam    exam.Exam  `json:"exam"`
	From    exam.State `json:"from"`
	Changed bool       `json:"changed"`
}

// AssetUploadedHandler handles the AssetUploadedCommand.
type AssetUploadedHandler struct {
	deps Deps
}

// NewAssetUploadedHandler creates a new AssetUploadedHandler.
func NewAssetUploadedHandler(deps Deps) *AssetUploadedHandler {
	return &AssetUploadedHandler{deps: deps.withDefaults()}
}

// Handle applies the transition and records the bundle reference if unset.
func (h *AssetUploadedHandler) Handle(ctx context.Context, cmd AssetUploadedCommand) (*AssetUploadedResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	var result AssetUploadedResult
	err := h.deps.UnitOfWork.WithinTx(ctx, func(ctx context.Context, repos gradebook.Repositories) error {
		e, err := repos.Exams.Get(ctx, exam.FieldID, cmd.ExamID)
		if err != nil {
			return err
		}
		result.From = e.State
		hadBundle := e.AssetBundleID != ""

		result.Changed = e.OnAssetUploaded(cmd.Kind, cmd.BundleID, h.deps.Clock.Now())
		if result.Changed || (!hadBundle && e.AssetBundleID != "") {
			if err := repos.Exams.Update(ctx, e); err != nil {
				return err
			}
		}
		result.Exam = e
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("asset_uploaded: %w", err)
	}

	if result.Changed {
		h.deps.Logger.Info("exam advanced",
			logger.ExamID(cmd.ExamID),
			logger.String("kind", cmd.Kind.String()),
			logger.String("from", result.From.String()),
			logger.String("to", result.Exam.State.String()),
		)
		h.deps.publish(shared.NewExamStateChangedEvent(
			result.Exam.ID, result.Exam.Term, result.From.String(), result.Exam.State.String(), "asset_uploaded:"+cmd.Kind.String(),
		))
	}
	return &result, nil
}
