package query

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calculus-oom/gradebook/internal/domain/asset"
	"github.com/calculus-oom/gradebook/internal/domain/exam"
	"github.com/calculus-oom/gradebook/internal/domain/score"
	"github.com/calculus-oom/gradebook/internal/domain/shared"
	"github.com/calculus-oom/gradebook/internal/domain/student"
	"github.com/calculus-oom/gradebook/internal/infrastructure/filestore"
	"github.com/calculus-oom/gradebook/internal/infrastructure/persistence/memory"
)

type mapCache struct {
	mu   sync.Mutex
	data map[string]*SlotStatistics
	gets int
}

func newMapCache() *mapCache { return &mapCache{data: map[string]*SlotStatistics{}} }

func key(term, slot string, w int) string { return fmt.Sprintf("%s/%s/%d", term, slot, w) }

func (c *mapCache) Get(_ context.Context, term, slot string, w int) (*SlotStatistics, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	return c.data[key(term, slot, w)], nil
}

func (c *mapCache) Set(_ context.Context, s *SlotStatistics) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key(s.Term, s.Slot, s.BinWidth)] = s
	return nil
}

func (c *mapCache) InvalidateTerm(_ context.Context, term string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, s := range c.data {
		if s.Term == term {
			delete(c.data, k)
		}
	}
	return nil
}

func seed(t *testing.T, store *memory.Store, id string, status student.Status, midterm string) {
	t.Helper()
	ctx := context.Background()
	repos := store.Repositories()
	require.NoError(t, repos.Students.Create(ctx, student.Student{ID: id, Number: id, Term: "1141", Status: status}))
	sc := score.New("scr_"+id, id, time.Now())
	sc.Midterm = midterm
	require.NoError(t, repos.Scores.Create(ctx, *sc))
}

func TestSlotStatistics(t *testing.T) {
	store := memory.NewStore()
	seed(t, store, "a", student.StatusInProgress, "60")
	seed(t, store, "b", student.StatusCompleted, "75")
	seed(t, store, "c", student.StatusFailed, "100")
	seed(t, store, "d", student.StatusInProgress, "")
	seed(t, store, "e", student.StatusInProgress, "abc")
	seed(t, store, "f", student.StatusWithdrawn, "5")

	h := NewSlotStatisticsHandler(store, nil, nil)
	stats, err := h.Handle(context.Background(), SlotStatisticsQuery{Term: "1141", Slot: "score_midterm"})
	require.NoError(t, err)

	assert.Equal(t, "midterm", stats.Slot)
	assert.Equal(t, 3, stats.Count)
	assert.Equal(t, 78.33, stats.Average)
	assert.Equal(t, 75.0, stats.Median)
	assert.Equal(t, DefaultBinWidth, stats.BinWidth)
	require.Len(t, stats.Histogram, 10)

	counts := stats.Histogram.Counts()
	assert.Equal(t, 1, counts["60-69"])
	assert.Equal(t, 1, counts["70-79"])
	assert.Equal(t, 1, counts["90-100"])
	assert.Zero(t, counts["0-9"])
}

func TestSlotStatistics_IgnoresNonFiniteValues(t *testing.T) {
	store := memory.NewStore()
	seed(t, store, "a", student.StatusInProgress, "80")
	seed(t, store, "b", student.StatusInProgress, "NaN")
	seed(t, store, "c", student.StatusInProgress, "Inf")

	var stats *SlotStatistics
	require.NotPanics(t, func() {
		var err error
		stats, err = NewSlotStatisticsHandler(store, nil, nil).Handle(context.Background(), SlotStatisticsQuery{Term: "1141", Slot: "midterm"})
		require.NoError(t, err)
	})
	assert.Equal(t, 1, stats.Count)
	assert.Equal(t, 80.0, stats.Average)
}

func TestSlotStatistics_NoValuesIsNotFound(t *testing.T) {
	store := memory.NewStore()
	seed(t, store, "a", student.StatusInProgress, "")
	seed(t, store, "b", student.StatusWithdrawn, "90")

	_, err := NewSlotStatisticsHandler(store, nil, nil).Handle(context.Background(), SlotStatisticsQuery{Term: "1141", Slot: "midterm"})
	assert.True(t, shared.IsNotFound(err))
}

func TestSlotStatistics_Validation(t *testing.T) {
	h := NewSlotStatisticsHandler(memory.NewStore(), nil, nil)
	ctx := context.Background()

	_, err := h.Handle(ctx, SlotStatisticsQuery{Term: "1141", Slot: "bonus"})
	assert.True(t, shared.IsValidation(err))

	_, err = h.Handle(ctx, SlotStatisticsQuery{Term: "1141", Slot: "quiz1", BinWidth: -1})
	assert.True(t, shared.IsValidation(err))
}

func TestSlotStatistics_ConfiguredDefaultBinWidth(t *testing.T) {
	store := memory.NewStore()
	seed(t, store, "a", student.StatusInProgress, "60")

	h := NewSlotStatisticsHandler(store, nil, nil).WithDefaultBinWidth(25)
	stats, err := h.Handle(context.Background(), SlotStatisticsQuery{Term: "1141", Slot: "midterm"})
	require.NoError(t, err)
	assert.Equal(t, 25, stats.BinWidth)
	assert.Len(t, stats.Histogram, 4)
}

func TestSlotStatistics_Cached(t *testing.T) {
	store := memory.NewStore()
	seed(t, store, "a", student.StatusInProgress, "60")
	cache := newMapCache()
	h := NewSlotStatisticsHandler(store, cache, nil)
	ctx := context.Background()

	first, err := h.Handle(ctx, SlotStatisticsQuery{Term: "1141", Slot: "midterm"})
	require.NoError(t, err)

	seed(t, store, "b", student.StatusInProgress, "80")
	second, err := h.Handle(ctx, SlotStatisticsQuery{Term: "1141", Slot: "midterm"})
	require.NoError(t, err)
	assert.Equal(t, first.Count, second.Count)

	require.NoError(t, cache.InvalidateTerm(ctx, "1141"))
	third, err := h.Handle(ctx, SlotStatisticsQuery{Term: "1141", Slot: "midterm"})
	require.NoError(t, err)
	assert.Equal(t, 2, third.Count)
}

func TestRecords(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	assets := memory.NewAssetStore()
	files, err := filestore.NewLocal(t.TempDir())
	require.NoError(t, err)
	h := NewRecordsHandler(store, assets, files)

	seed(t, store, "a", student.StatusWithdrawn, "60")
	seed(t, store, "b", student.StatusInProgress, "70")
	require.NoError(t, store.Repositories().Exams.Create(ctx, exam.Exam{ID: "tst_1", Name: "Midterm", Term: "1141", State: exam.StatePrepared}))

	st, err := h.GetStudent(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "a", st.ID)

	withdrawn, err := h.ListStudents(ctx, shared.Filter{"status": "二退"})
	require.NoError(t, err)
	require.Len(t, withdrawn, 1)
	assert.Equal(t, "a", withdrawn[0].ID)

	_, err = h.ListStudents(ctx, shared.Filter{"email": "x"})
	assert.True(t, shared.IsValidation(err))

	scores, err := h.ListScores(ctx, shared.Filter{"student_id": "b"})
	require.NoError(t, err)
	require.Len(t, scores, 1)
	sc, err := h.GetScore(ctx, scores[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "70", sc.Midterm)

	exams, err := h.ListExams(ctx, shared.Filter{"state": "考卷完成"})
	require.NoError(t, err)
	assert.Len(t, exams, 1)

	_, err = h.GetExam(ctx, "tst_missing")
	assert.True(t, shared.IsNotFound(err))

	path, err := files.Save(ctx, "b1_paper.png", []byte("img"))
	require.NoError(t, err)
	_, err = assets.Upsert(ctx, "b1", asset.KindPaper, path, time.Now())
	require.NoError(t, err)

	f, err := h.GetAssetFile(ctx, "b1", "test_pic")
	require.NoError(t, err)
	assert.Equal(t, []byte("img"), f.Content)

	_, err = h.GetAssetFile(ctx, "b1", "histogram")
	assert.True(t, shared.IsNotFound(err))

	b, err := h.GetAsset(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, path, b.PaperPath)
}
