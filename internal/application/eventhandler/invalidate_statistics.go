// Package eventhandler contains the reactions to domain events.
package eventhandler

import (
	"context"
	"log/slog"
	"time"

	"github.com/calculus-oom/gradebook/internal/domain/shared"
)

// ═══════════════════════════════════════════════════════════════════════════
// INVALIDATE STATISTICS HANDLER
// Drops cached slot statistics of a term whenever its scores or the set of
// counted students may have changed.
// ═══════════════════════════════════════════════════════════════════════════

// TermCache is the part of the statistics cache this handler needs.
type TermCache interface {
	InvalidateTerm(ctx context.Context, term string) error
}

// InvalidatedBy lists the events that make cached statistics stale.
var InvalidatedBy = []shared.EventType{
	shared.EventScoreChanged,
	shared.EventStudentStatusChanged,
	shared.EventStudentCreated,
	shared.EventStudentDeleted,
	shared.EventTermFinalized,
}

// InvalidateStatisticsHandler handles InvalidatedBy events.
type InvalidateStatisticsHandler struct {
	cache   TermCache
	logger  *slog.Logger
	timeout time.Duration
}

// NewInvalidateStatisticsHandler creates a new InvalidateStatisticsHandler.
func NewInvalidateStatisticsHandler(cache TermCache, logger *slog.Logger) *InvalidateStatisticsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &InvalidateStatisticsHandler{
		cache:   cache,
		logger:  logger.With("handler", "invalidate_statistics"),
		timeout: 5 * time.Second,
	}
}

// Handle implements shared.EventHandler.
func (h *InvalidateStatisticsHandler) Handle(event shared.Event) error {
	term := event.Term()
	if term == "" {
		h.logger.Debug("event without term, nothing to invalidate", "event_type", event.EventType())
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	if err := h.cache.InvalidateTerm(ctx, term); err != nil {
		h.logger.Error("statistics invalidation failed", "term", term, "event_type", event.EventType(), "error", err)
		return err
	}
	h.logger.Debug("statistics invalidated", "term", term, "event_type", event.EventType())
	return nil
}

// Register subscribes the handler to every event in InvalidatedBy.
func (h *InvalidateStatisticsHandler) Register(bus shared.EventSubscriber) error {
	for _, t := range InvalidatedBy {
		if err := bus.Subscribe(t, h.Handle); err != nil {
			return err
		}
	}
	return nil
}
