package event

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	apperrors "github.com/utafrali/coursereviews/pkg/errors"
	pkgkafka "github.com/utafrali/coursereviews/pkg/kafka"
	"github.com/utafrali/coursereviews/services/review/internal/domain"
)

// StatsRepairer is the part of the stats service the repair consumer needs.
type StatsRepairer interface {
	Repair(ctx context.Context, reviewType domain.ReviewType, targetID string) error
}

// Consumer processes stats.repair events.
type Consumer struct {
	stats  StatsRepairer
	logger *slog.Logger
}

// NewConsumer creates a stats repair consumer.
func NewConsumer(stats StatsRepairer, logger *slog.Logger) *Consumer {
	return &Consumer{stats: stats, logger: logger}
}

// HandleStatsRepair recomputes the target named by the event. A target that
// no longer exists is not an error: the repair is moot.
func (c *Consumer) HandleStatsRepair(ctx context.Context, event *pkgkafka.Event) error {
	var data StatsRepairData
	if err := event.UnmarshalData(&data); err != nil {
		return fmt.Errorf("unmarshal stats.repair data: %w", err)
	}
	if !data.Type.HasStats() || data.TargetID == "" {
		c.logger.WarnContext(ctx, "ignoring stats.repair event without a stats target",
			slog.String("event_id", event.EventID),
			slog.String("type", string(data.Type)),
		)
		return nil
	}

	err := c.stats.Repair(ctx, data.Type, data.TargetID)
	switch {
	case err == nil:
	case errors.Is(err, apperrors.ErrInvalidState), errors.Is(err, apperrors.ErrNotFound):
		c.logger.InfoContext(ctx, "stats repair target gone",
			slog.String("type", string(data.Type)),
			slog.String("target_id", data.TargetID),
		)
		return nil
	default:
		return fmt.Errorf("repair stats of %s %s: %w", data.Type, data.TargetID, err)
	}

	c.logger.InfoContext(ctx, "stats repaired",
		slog.String("type", string(data.Type)),
		slog.String("target_id", data.TargetID),
		slog.String("reason", data.Reason),
	)
	return nil
}
