package command

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/calculus-oom/gradebook/internal/domain/asset"
	"github.com/calculus-oom/gradebook/internal/domain/exam"
	"github.com/calculus-oom/gradebook/internal/domain/gradebook"
	"github.com/calculus-oom/gradebook/internal/domain/shared"
	"github.com/calculus-oom/gradebook/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// ASSET COMMANDS
// Exam files are written to the file store first, then recorded in the
// bundle document, then reflected on the exam.
// ══════════════════════════════════════════════════════════════════════════════

// MaxAssetSize caps a single uploaded file.
const MaxAssetSize = 10 << 20

var allowedExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".webp": true, ".pdf": true,
}

func validateFile(op, fileName string, content []byte) error {
	if len(content) == 0 {
		return shared.NewValidationError("asset", op, "file is empty", "file")
	}
	if len(content) > MaxAssetSize {
		return shared.NewValidationError("asset", op, "file is too large", "file")
	}
	if !allowedExtensions[strings.ToLower(filepath.Ext(fileName))] {
		return shared.NewValidationError("asset", op, "unsupported file type", "file")
	}
	return nil
}

func storedName(bundleID string, kind asset.Kind, fileName string) string {
	return bundleID + "_" + kind.String() + strings.ToLower(filepath.Ext(fileName))
}

// ─────────────────────────────────────────────────────────────────────────────
// Upload
// ─────────────────────────────────────────────────────────────────────────────

// UploadAssetCommand stores one file for an exam.
type UploadAssetCommand struct {
	ExamID   string
	Kind     string
	FileName string
	Content  []byte
}

// Validate validates the command.
func (c UploadAssetCommand) Validate() error {
	if c.ExamID == "" {
		return shared.NewValidationError("asset", "Upload", "exam id is required", "exam_id")
	}
	if _, err := asset.ParseKind(c.Kind); err != nil {
		return err
	}
	return validateFile("Upload", c.FileName, c.Content)
}

// UploadAssetResult contains the stored bundle and the exam after upload.
type UploadAssetResult struct {
	Bundle  asset.Bundle `json:"bundle"`
	Exam    exam.Exam    `json:"exam"`
	Changed bool         `json:"state_changed"`
}

// UploadAssetHandler handles the UploadAssetCommand.
type UploadAssetHandler struct {
	deps     Deps
	uploaded *AssetUploadedHandler
}

// NewUploadAssetHandler creates a new UploadAssetHandler.
func NewUploadAssetHandler(deps Deps) *UploadAssetHandler {
	deps = deps.withDefaults()
	return &UploadAssetHandler{deps: deps, uploaded: NewAssetUploadedHandler(deps)}
}

// Handle stores the file, upserts the bundle, then advances the exam.
// An exam without a bundle gets a fresh bundle id.
func (h *UploadAssetHandler) Handle(ctx context.Context, cmd UploadAssetCommand) (*UploadAssetResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	kind, _ := asset.ParseKind(cmd.Kind)

	e, err := h.claimBundle(ctx, cmd.ExamID)
	if err != nil {
		return nil, fmt.Errorf("upload_asset: %w", err)
	}
	bundleID := e.AssetBundleID

	path, err := h.deps.Files.Save(ctx, storedName(bundleID, kind, cmd.FileName), cmd.Content)
	if err != nil {
		return nil, fmt.Errorf("upload_asset: save file: %w", err)
	}

	bundle, err := h.deps.Assets.Upsert(ctx, bundleID, kind, path, h.deps.Clock.Now())
	if err != nil {
		return nil, fmt.Errorf("upload_asset: upsert bundle: %w", err)
	}

	advanced, err := h.uploaded.Handle(ctx, AssetUploadedCommand{ExamID: e.ID, Kind: kind, BundleID: bundleID})
	if err != nil {
		return nil, fmt.Errorf("upload_asset: %w", err)
	}

	h.deps.Logger.Info("asset uploaded",
		logger.ExamID(e.ID),
		logger.BundleID(bundleID),
		logger.String("kind", kind.String()),
	)
	return &UploadAssetResult{Bundle: bundle, Exam: advanced.Exam, Changed: advanced.Changed}, nil
}

// claimBundle returns the exam with its bundle id set. The id is assigned
// in a transaction so concurrent first uploads share one bundle.
func (h *UploadAssetHandler) claimBundle(ctx context.Context, examID string) (exam.Exam, error) {
	var claimed exam.Exam
	err := h.deps.UnitOfWork.WithinTx(ctx, func(ctx context.Context, repos gradebook.Repositories) error {
		e, err := repos.Exams.Get(ctx, exam.FieldID, examID)
		if err != nil {
			return err
		}
		if e.AssetBundleID == "" {
			e.AssetBundleID = h.deps.IDs.Asset(e.Term, "file")
			e.UpdatedAt = h.deps.Clock.Now()
			if err := repos.Exams.Update(ctx, e); err != nil {
				return err
			}
		}
		claimed = e
		return nil
	})
	return claimed, err
}

// ─────────────────────────────────────────────────────────────────────────────
// Replace
// ─────────────────────────────────────────────────────────────────────────────

// ReplaceAssetCommand swaps one file of an existing bundle. It does not
// change any exam state.
type ReplaceAssetCommand struct {
	BundleID string
	Kind     string
	FileName string
	Content  []byte
}

// Validate validates the command.
func (c ReplaceAssetCommand) Validate() error {
	if c.BundleID == "" {
		return shared.NewValidationError("asset", "Replace", "bundle id is required", "bundle_id")
	}
	if _, err := asset.ParseKind(c.Kind); err != nil {
		return err
	}
	return validateFile("Replace", c.FileName, c.Content)
}

// ReplaceAssetHandler handles the ReplaceAssetCommand.
type ReplaceAssetHandler struct {
	deps Deps
}

// NewReplaceAssetHandler creates a new ReplaceAssetHandler.
func NewReplaceAssetHandler(deps Deps) *ReplaceAssetHandler {
	return &ReplaceAssetHandler{deps: deps.withDefaults()}
}

// Handle stores the new file and removes the old one if its path differs.
func (h *ReplaceAssetHandler) Handle(ctx context.Context, cmd ReplaceAssetCommand) (*asset.Bundle, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	kind, _ := asset.ParseKind(cmd.Kind)

	current, err := h.deps.Assets.Get(ctx, cmd.BundleID)
	if err != nil {
		return nil, fmt.Errorf("replace_asset: %w", err)
	}
	old := current.PathFor(kind)

	path, err := h.deps.Files.Save(ctx, storedName(cmd.BundleID, kind, cmd.FileName), cmd.Content)
	if err != nil {
		return nil, fmt.Errorf("replace_asset: save file: %w", err)
	}

	now := h.deps.Clock.Now()
	current.SetPath(kind, path, now)
	if err := h.deps.Assets.Update(ctx, current); err != nil {
		return nil, fmt.Errorf("replace_asset: %w", err)
	}

	if old != "" && old != path {
		if err := h.deps.Files.Remove(ctx, old); err != nil {
			h.deps.Logger.Warn("old asset file not removed", logger.BundleID(cmd.BundleID), logger.Err(err))
		}
	}
	return &current, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Delete
// ─────────────────────────────────────────────────────────────────────────────

// DeleteAssetCommand removes a bundle and its files.
type DeleteAssetCommand struct {
	BundleID string
}

// DeleteAssetHandler handles the DeleteAssetCommand.
type DeleteAssetHandler struct {
	deps Deps
}

// NewDeleteAssetHandler creates a new DeleteAssetHandler.
func NewDeleteAssetHandler(deps Deps) *DeleteAssetHandler {
	return &DeleteAssetHandler{deps: deps.withDefaults()}
}

// Handle removes the files, the bundle document and the exam references to it.
// Exam states are left as they are.
func (h *DeleteAssetHandler) Handle(ctx context.Context, cmd DeleteAssetCommand) error {
	if cmd.BundleID == "" {
		return shared.NewValidationError("asset", "Delete", "bundle id is required", "bundle_id")
	}

	bundle, err := h.deps.Assets.Get(ctx, cmd.BundleID)
	if err != nil {
		return fmt.Errorf("delete_asset: %w", err)
	}
	for _, p := range bundle.Paths() {
		if err := h.deps.Files.Remove(ctx, p); err != nil {
			return fmt.Errorf("delete_asset: remove file: %w", err)
		}
	}
	if err := h.deps.Assets.Delete(ctx, cmd.BundleID); err != nil {
		return fmt.Errorf("delete_asset: %w", err)
	}

	err = h.deps.UnitOfWork.WithinTx(ctx, func(ctx context.Context, repos gradebook.Repositories) error {
		exams, err := repos.Exams.List(ctx, shared.Filter{exam.FieldAssetBundleID: cmd.BundleID})
		if err != nil {
			return err
		}
		now := h.deps.Clock.Now()
		for _, e := range exams {
			e.AssetBundleID = ""
			e.UpdatedAt = now
			if err := repos.Exams.Update(ctx, e); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete_asset: clear exam reference: %w", err)
	}

	h.deps.Logger.Info("asset bundle deleted", logger.BundleID(cmd.BundleID))
	return nil
}
