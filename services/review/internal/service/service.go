// Package service implements the review engine: the review ledger, stats
// aggregation, the interaction state machine, notification fan-out and the
// filtered listings built on top of them.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/utafrali/coursereviews/services/review/internal/domain"
)

// EventPublisher publishes review domain events. Implementations must treat
// a disabled broker as success.
type EventPublisher interface {
	PublishReviewSubmitted(ctx context.Context, review *domain.Review, isNew bool) error
	PublishReviewDeleted(ctx context.Context, review *domain.Review) error
	PublishInteractionChanged(ctx context.Context, key domain.InteractionKey, kind domain.InteractionKind, delta int) error
	PublishSubscriptionChanged(ctx context.Context, userID, courseID string, subscribed bool) error
	PublishStatsRepair(ctx context.Context, reviewType domain.ReviewType, targetID, reason string) error
}

// Post-write stages that may fail after a review write committed.
const (
	StageStats        = "stats"
	StageFanout       = "fanout"
	StageInteractions = "interactions"
	StageCache        = "cache"
)

// PartialWriteError reports that a review write committed but a follow-up
// step failed. The write is not rolled back.
type PartialWriteError struct {
	Review *domain.Review
	IsNew  bool
	Stages []string
	Err    error
}

func (e *PartialWriteError) Error() string {
	return fmt.Sprintf("review %s committed, follow-up failed (%s): %v", e.Review.ID, strings.Join(e.Stages, ", "), e.Err)
}

func (e *PartialWriteError) Unwrap() error { return e.Err }

// Warnings renders one message per failed stage for API responses.
func (e *PartialWriteError) Warnings() []string {
	out := make([]string, len(e.Stages))
	for i, s := range e.Stages {
		out[i] = s + " update pending"
	}
	return out
}

// StaleCacheError reports that an interaction change committed but cached
// listings of its target could not be invalidated.
type StaleCacheError struct {
	Key domain.InteractionKey
	Err error
}

func (e *StaleCacheError) Error() string {
	return fmt.Sprintf("interaction on %s/%s committed, cache invalidation failed: %v", e.Key.TargetID, e.Key.UserID, e.Err)
}

func (e *StaleCacheError) Unwrap() error { return e.Err }

// Warnings renders the pending cache update for API responses.
func (e *StaleCacheError) Warnings() []string {
	return []string{StageCache + " update pending"}
}

// followUps collects post-write failures.
type followUps struct {
	stages []string
	errs   []error
}

func (f *followUps) record(stage string, err error) {
	if err == nil {
		return
	}
	partialWritesTotal.WithLabelValues(stage).Inc()
	f.stages = append(f.stages, stage)
	f.errs = append(f.errs, fmt.Errorf("%s: %w", stage, err))
}

func (f *followUps) failed(stage string) bool {
	for _, s := range f.stages {
		if s == stage {
			return true
		}
	}
	return false
}

func (f *followUps) err(review *domain.Review, isNew bool) error {
	if len(f.errs) == 0 {
		return nil
	}
	return &PartialWriteError{Review: review, IsNew: isNew, Stages: f.stages, Err: errors.Join(f.errs...)}
}

// clock is replaced in tests.
var clock = func() time.Time { return time.Now().UTC() }

func logPublishError(ctx context.Context, logger *slog.Logger, what string, err error) {
	if err != nil {
		logger.WarnContext(ctx, "failed to publish event",
			slog.String("event", what),
			slog.String("error", err.Error()),
		)
	}
}
