package query

import (
	"context"
	"errors"
	"fmt"

	"github.com/calculus-oom/gradebook/internal/domain/gradebook"
	"github.com/calculus-oom/gradebook/internal/domain/grading"
	"github.com/calculus-oom/gradebook/internal/domain/score"
	"github.com/calculus-oom/gradebook/internal/domain/shared"
	"github.com/calculus-oom/gradebook/internal/domain/student"
	"github.com/calculus-oom/gradebook/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// SLOT STATISTICS QUERY
// Descriptive statistics of one exam slot over the active students of a term.
// ══════════════════════════════════════════════════════════════════════════════

// DefaultBinWidth is used when the query does not set one.
const DefaultBinWidth = 10

// SlotStatisticsQuery selects the term and slot. Slot accepts legacy names.
type SlotStatisticsQuery struct {
	Term     string
	Slot     string
	BinWidth int
}

// Validate validates the query and fills the default bin width.
func (q *SlotStatisticsQuery) Validate() error {
	if err := shared.ValidateTerm(q.Term); err != nil {
		return err
	}
	if _, err := score.ParseSlot(q.Slot); err != nil {
		return err
	}
	if q.BinWidth == 0 {
		q.BinWidth = DefaultBinWidth
	}
	if q.BinWidth < 0 || q.BinWidth > grading.HistogramMax {
		return shared.NewValidationError("statistics", "Validate", "bin width must be between 1 and 100", "bin_width")
	}
	return nil
}

// SlotStatistics is the statistics DTO.
type SlotStatistics struct {
	Term      string            `json:"term"`
	Slot      string            `json:"slot"`
	BinWidth  int               `json:"bin_width"`
	Count     int               `json:"count"`
	Average   float64           `json:"average"`
	Median    float64           `json:"median"`
	Histogram grading.Histogram `json:"histogram"`
}

// StatisticsCache stores computed statistics. Get returns (nil, nil) on a miss.
type StatisticsCache interface {
	Get(ctx context.Context, term, slot string, binWidth int) (*SlotStatistics, error)
	Set(ctx context.Context, stats *SlotStatistics) error
	InvalidateTerm(ctx context.Context, term string) error
}

// SlotStatisticsHandler handles the SlotStatisticsQuery.
type SlotStatisticsHandler struct {
	uow    gradebook.UnitOfWork
	cache  StatisticsCache // optional
	logger *logger.Logger

	defaultBinWidth int
}

// NewSlotStatisticsHandler creates a new SlotStatisticsHandler. cache may be nil.
func NewSlotStatisticsHandler(uow gradebook.UnitOfWork, cache StatisticsCache, log *logger.Logger) *SlotStatisticsHandler {
	if log == nil {
		log = logger.Discard()
	}
	return &SlotStatisticsHandler{uow: uow, cache: cache, logger: log, defaultBinWidth: DefaultBinWidth}
}

// WithDefaultBinWidth sets the bin width used when a query leaves it unset.
func (h *SlotStatisticsHandler) WithDefaultBinWidth(width int) *SlotStatisticsHandler {
	if width > 0 && width <= grading.HistogramMax {
		h.defaultBinWidth = width
	}
	return h
}

// Handle returns the statistics, from cache when possible. A slot with no
// valid values among non-withdrawn students is NotFound.
func (h *SlotStatisticsHandler) Handle(ctx context.Context, q SlotStatisticsQuery) (*SlotStatistics, error) {
	if q.BinWidth == 0 {
		q.BinWidth = h.defaultBinWidth
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}
	slot, _ := score.ParseSlot(q.Slot)

	if h.cache != nil {
		cached, err := h.cache.Get(ctx, q.Term, slot.String(), q.BinWidth)
		if err != nil {
			h.logger.Warn("statistics cache read failed", logger.Term(q.Term), logger.Slot(slot.String()), logger.Err(err))
		} else if cached != nil {
			return cached, nil
		}
	}

	stats, err := h.compute(ctx, q.Term, slot, q.BinWidth)
	if err != nil {
		return nil, fmt.Errorf("slot_statistics: %w", err)
	}

	if h.cache != nil {
		if err := h.cache.Set(ctx, stats); err != nil {
			h.logger.Warn("statistics cache write failed", logger.Term(q.Term), logger.Err(err))
		}
	}
	return stats, nil
}

func (h *SlotStatisticsHandler) compute(ctx context.Context, term string, slot score.Slot, binWidth int) (*SlotStatistics, error) {
	repos := h.uow.Repositories()

	students, err := repos.Students.List(ctx, shared.Filter{student.FieldTerm: term})
	if err != nil {
		return nil, err
	}

	raw := make([]string, 0, len(students))
	for _, st := range students {
		if st.IsWithdrawn() {
			continue
		}
		rows, err := repos.Scores.List(ctx, shared.Filter{score.FieldStudentID: st.ID})
		if err != nil {
			return nil, err
		}
		for _, sc := range rows {
			raw = append(raw, sc.Get(slot))
		}
	}

	values := grading.FilterValid(raw)
	avg, err := grading.Average(values)
	if errors.Is(err, grading.ErrEmptySample) {
		return nil, shared.NotFound("statistics", "Handle", term+"/"+slot.String())
	}
	if err != nil {
		return nil, err
	}
	med, err := grading.Median(values)
	if err != nil {
		return nil, err
	}
	hist, err := grading.NewHistogram(values, binWidth)
	if err != nil {
		return nil, err
	}

	return &SlotStatistics{
		Term:      term,
		Slot:      slot.String(),
		BinWidth:  binWidth,
		Count:     len(values),
		Average:   grading.Round2(avg),
		Median:    grading.Round2(med),
		Histogram: hist,
	}, nil
}
