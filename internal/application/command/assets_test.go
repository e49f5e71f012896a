package command

import (
	"context"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calculus-oom/gradebook/internal/domain/asset"
	"github.com/calculus-oom/gradebook/internal/domain/exam"
	"github.com/calculus-oom/gradebook/internal/domain/shared"
)

func upload(t *testing.T, f *fixture, examID, kind string) *UploadAssetResult {
	t.Helper()
	res, err := NewUploadAssetHandler(f.deps).Handle(context.Background(), UploadAssetCommand{
		ExamID: examID, Kind: kind, FileName: "scan.PNG", Content: []byte("png-bytes-" + kind),
	})
	require.NoError(t, err)
	return res
}

func TestUploadAsset_PaperThenHistogram(t *testing.T) {
	f := newFixture(t)
	e := f.addExam(t, "Quiz 1", exam.StateNotPrepared, "")

	paper := upload(t, f, e.ID, "paper")
	assert.True(t, paper.Changed)
	assert.Equal(t, exam.StatePrepared, paper.Exam.State)
	assert.NotEmpty(t, paper.Exam.AssetBundleID)
	assert.Equal(t, paper.Bundle.ID, paper.Exam.AssetBundleID)
	assert.FileExists(t, paper.Bundle.PaperPath)

	hist := upload(t, f, e.ID, "test_pic_histogram")
	assert.True(t, hist.Changed)
	assert.Equal(t, exam.StateFinalized, hist.Exam.State)
	assert.Equal(t, paper.Bundle.ID, hist.Bundle.ID)
	assert.Equal(t, paper.Bundle.PaperPath, hist.Bundle.PaperPath)
	assert.FileExists(t, hist.Bundle.HistogramPath)
	assert.Equal(t, paper.Bundle.CreatedAt, hist.Bundle.CreatedAt)

	stored := f.exam(t, e.ID)
	assert.Equal(t, exam.StateFinalized, stored.State)
}

func TestUploadAsset_ConcurrentFirstUploadsShareBundle(t *testing.T) {
	f := newFixture(t)
	e := f.addExam(t, "Quiz 2", exam.StateNotPrepared, "")

	kinds := []string{"paper", "test_pic_histogram", "paper", "test_pic_histogram"}
	results := make([]*UploadAssetResult, len(kinds))
	errs := make([]error, len(kinds))
	var wg sync.WaitGroup
	for i, kind := range kinds {
		wg.Add(1)
		go func(i int, kind string) {
			defer wg.Done()
			results[i], errs[i] = NewUploadAssetHandler(f.deps).Handle(context.Background(), UploadAssetCommand{
				ExamID: e.ID, Kind: kind, FileName: "scan.png", Content: []byte("bytes-" + kind),
			})
		}(i, kind)
	}
	wg.Wait()

	bundleID := f.exam(t, e.ID).AssetBundleID
	require.NotEmpty(t, bundleID)
	for i := range kinds {
		require.NoError(t, errs[i])
		assert.Equal(t, bundleID, results[i].Bundle.ID)
	}

	bundle, err := f.assets.Get(context.Background(), bundleID)
	require.NoError(t, err)
	assert.NotEmpty(t, bundle.PaperPath)
	assert.NotEmpty(t, bundle.HistogramPath)
}

func TestUploadAsset_LatePaperDoesNotRegress(t *testing.T) {
	f := newFixture(t)
	e := f.addExam(t, "Midterm", exam.StateFinalized, "")

	res := upload(t, f, e.ID, "paper")
	assert.False(t, res.Changed)
	assert.Equal(t, exam.StateFinalized, f.exam(t, e.ID).State)
	assert.NotEmpty(t, res.Bundle.PaperPath)
	assert.NotContains(t, f.events.types(), shared.EventExamStateChanged)
}

func TestUploadAsset_HistogramFirstIsStoredWithoutTransition(t *testing.T) {
	f := newFixture(t)
	e := f.addExam(t, "Midterm", exam.StateNotPrepared, "")

	res := upload(t, f, e.ID, "histogram")
	assert.False(t, res.Changed)
	assert.Equal(t, exam.StateNotPrepared, f.exam(t, e.ID).State)
	assert.Equal(t, res.Bundle.ID, f.exam(t, e.ID).AssetBundleID)
}

func TestUploadAsset_Validation(t *testing.T) {
	f := newFixture(t)
	e := f.addExam(t, "Quiz 1", exam.StateNotPrepared, "")
	h := NewUploadAssetHandler(f.deps)
	ctx := context.Background()

	_, err := h.Handle(ctx, UploadAssetCommand{ExamID: e.ID, Kind: "answers", FileName: "a.png", Content: []byte("x")})
	assert.True(t, shared.IsValidation(err))

	_, err = h.Handle(ctx, UploadAssetCommand{ExamID: e.ID, Kind: "paper", FileName: "a.exe", Content: []byte("x")})
	assert.True(t, shared.IsValidation(err))

	_, err = h.Handle(ctx, UploadAssetCommand{ExamID: e.ID, Kind: "paper", FileName: "a.png"})
	assert.True(t, shared.IsValidation(err))

	_, err = h.Handle(ctx, UploadAssetCommand{ExamID: "tst_missing", Kind: "paper", FileName: "a.png", Content: []byte("x")})
	assert.True(t, shared.IsNotFound(err))
}

func TestReplaceAsset(t *testing.T) {
	f := newFixture(t)
	e := f.addExam(t, "Quiz 1", exam.StateNotPrepared, "")
	first := upload(t, f, e.ID, "paper")
	ctx := context.Background()

	b, err := NewReplaceAssetHandler(f.deps).Handle(ctx, ReplaceAssetCommand{
		BundleID: first.Bundle.ID, Kind: "paper", FileName: "v2.pdf", Content: []byte("pdf"),
	})
	require.NoError(t, err)
	assert.NotEqual(t, first.Bundle.PaperPath, b.PaperPath)
	assert.FileExists(t, b.PaperPath)
	_, statErr := os.Stat(first.Bundle.PaperPath)
	assert.True(t, os.IsNotExist(statErr))

	assert.Equal(t, exam.StatePrepared, f.exam(t, e.ID).State)

	_, err = NewReplaceAssetHandler(f.deps).Handle(ctx, ReplaceAssetCommand{
		BundleID: "tpic_none", Kind: "paper", FileName: "v2.pdf", Content: []byte("pdf"),
	})
	assert.True(t, shared.IsNotFound(err))
}

func TestDeleteAsset(t *testing.T) {
	f := newFixture(t)
	e := f.addExam(t, "Quiz 1", exam.StateNotPrepared, "")
	res := upload(t, f, e.ID, "paper")
	ctx := context.Background()

	require.NoError(t, NewDeleteAssetHandler(f.deps).Handle(ctx, DeleteAssetCommand{BundleID: res.Bundle.ID}))

	_, err := f.assets.Get(ctx, res.Bundle.ID)
	assert.True(t, shared.IsNotFound(err))
	_, statErr := os.Stat(res.Bundle.PaperPath)
	assert.True(t, os.IsNotExist(statErr))

	after := f.exam(t, e.ID)
	assert.Empty(t, after.AssetBundleID)
	assert.Equal(t, exam.StatePrepared, after.State)

	err = NewDeleteAssetHandler(f.deps).Handle(ctx, DeleteAssetCommand{BundleID: res.Bundle.ID})
	assert.True(t, shared.IsNotFound(err))
}

func TestAssetUploaded_UnknownKind(t *testing.T) {
	f := newFixture(t)
	_, err := NewAssetUploadedHandler(f.deps).Handle(context.Background(), AssetUploadedCommand{ExamID: "x", Kind: asset.Kind("x")})
	assert.True(t, shared.IsValidation(err))
}
